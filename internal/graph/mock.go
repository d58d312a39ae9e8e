package graph

import (
	"context"
	"sync"
	"time"

	"github.com/c-daly/logos/internal/types"
)

// MockCall represents a recorded method call on the mock client.
type MockCall struct {
	Method    string
	Cypher    string
	Params    map[string]any
	Timestamp time.Time
}

// MockClient is a mock implementation of Client for testing. It records every
// call, returns configured results FIFO, and can inject a bounded number of
// transient failures ahead of a success to exercise retry paths.
type MockClient struct {
	mu sync.Mutex

	connected bool
	calls     []MockCall

	readResults  []QueryResult
	writeResults []QueryResult
	readErr      error
	writeErr     error

	// failuresLeft injects a transient error on the next N Read/Write calls.
	failuresLeft int
	injected     error
}

// NewMockClient creates a connected mock client.
func NewMockClient() *MockClient {
	return &MockClient{connected: true}
}

// EnqueueRead adds a result returned by the next Read call.
func (m *MockClient) EnqueueRead(r QueryResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readResults = append(m.readResults, r)
}

// EnqueueWrite adds a result returned by the next Write call.
func (m *MockClient) EnqueueWrite(r QueryResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeResults = append(m.writeResults, r)
}

// SetReadError makes every Read fail with err until cleared.
func (m *MockClient) SetReadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

// SetWriteError makes every Write fail with err until cleared.
func (m *MockClient) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// FailNext injects err on the next n Read/Write calls, then resumes normal
// behavior. Use a retryable error to exercise the retry policy.
func (m *MockClient) FailNext(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failuresLeft = n
	m.injected = err
}

// Calls returns a copy of all recorded calls.
func (m *MockClient) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of recorded calls for the given method.
func (m *MockClient) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Connect records the call and marks the mock connected.
func (m *MockClient) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Connect", "", nil)
	m.connected = true
	return nil
}

// Close records the call and marks the mock disconnected.
func (m *MockClient) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Close", "", nil)
	m.connected = false
	return nil
}

// Health reports healthy while connected.
func (m *MockClient) Health(ctx context.Context) types.HealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Health", "", nil)
	if !m.connected {
		return types.Unhealthy("not connected")
	}
	return types.Healthy()
}

// Read records the call and returns the next configured read result.
func (m *MockClient) Read(ctx context.Context, cypher string, params map[string]any) (QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Read", cypher, params)

	if err := m.nextError(m.readErr); err != nil {
		return QueryResult{}, err
	}
	if len(m.readResults) > 0 {
		r := m.readResults[0]
		m.readResults = m.readResults[1:]
		return r, nil
	}
	return QueryResult{}, nil
}

// Write records the call and returns the next configured write result.
func (m *MockClient) Write(ctx context.Context, cypher string, params map[string]any) (QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Write", cypher, params)

	if err := m.nextError(m.writeErr); err != nil {
		return QueryResult{}, err
	}
	if len(m.writeResults) > 0 {
		r := m.writeResults[0]
		m.writeResults = m.writeResults[1:]
		return r, nil
	}
	return QueryResult{}, nil
}

// WriteBatch records each statement as a single call and dequeues one
// configured write result per statement. Failure injection fires once per
// batch so an injected transient error fails the batch atomically. A
// RequireRow statement with no result enqueued is answered with a synthetic
// single row; an enqueued empty result aborts the batch with NODE_NOT_FOUND,
// matching the rollback behavior of the real client.
func (m *MockClient) WriteBatch(ctx context.Context, stmts []Statement) ([]QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, stmt := range stmts {
		m.record("WriteBatch", stmt.Cypher, stmt.Params)
	}

	if err := m.nextError(m.writeErr); err != nil {
		return nil, err
	}

	out := make([]QueryResult, 0, len(stmts))
	for _, stmt := range stmts {
		var r QueryResult
		if len(m.writeResults) > 0 {
			r = m.writeResults[0]
			m.writeResults = m.writeResults[1:]
		} else if stmt.RequireRow {
			r = QueryResult{Records: []map[string]any{{}}}
		}
		if stmt.RequireRow && len(r.Records) == 0 {
			return nil, types.NewError(types.NODE_NOT_FOUND,
				"batch statement matched no rows, rolling back")
		}
		out = append(out, r)
	}
	return out, nil
}

// PoolUtilization always reports an idle pool.
func (m *MockClient) PoolUtilization() float64 {
	return 0
}

func (m *MockClient) record(method, cypher string, params map[string]any) {
	m.calls = append(m.calls, MockCall{
		Method:    method,
		Cypher:    cypher,
		Params:    params,
		Timestamp: time.Now(),
	})
}

func (m *MockClient) nextError(sticky error) error {
	if !m.connected {
		return types.NewError(ErrCodeConnectionClosed, "not connected")
	}
	if m.failuresLeft > 0 {
		m.failuresLeft--
		return m.injected
	}
	return sticky
}
