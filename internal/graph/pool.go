package graph

import (
	"context"
	"sync"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/c-daly/logos/internal/types"
)

// SessionPool hands out bolt sessions under a fixed bound. Acquire blocks up
// to the caller's deadline when the pool is exhausted rather than opening
// unbounded connections. A session is never shared across concurrent callers.
//
// CloseAll is terminal: waiters are interrupted and further Acquire calls fail
// with POOL_CLOSED.
type SessionPool struct {
	factory        sessionFactory
	size           int
	acquireTimeout time.Duration

	slots   chan struct{}
	closeCh chan struct{}

	mu     sync.Mutex
	closed bool
}

// sessionFactory opens a raw bolt session. Split out so pool accounting can be
// tested without a live driver.
type sessionFactory func(ctx context.Context) neo4j.SessionWithContext

// NewSessionPool creates a pool of at most size sessions over the given driver.
func NewSessionPool(driver neo4j.DriverWithContext, database string, size int, acquireTimeout time.Duration) *SessionPool {
	return newSessionPool(func(ctx context.Context) neo4j.SessionWithContext {
		return driver.NewSession(ctx, neo4j.SessionConfig{
			DatabaseName: database,
		})
	}, size, acquireTimeout)
}

func newSessionPool(factory sessionFactory, size int, acquireTimeout time.Duration) *SessionPool {
	slots := make(chan struct{}, size)
	for i := 0; i < size; i++ {
		slots <- struct{}{}
	}
	return &SessionPool{
		factory:        factory,
		size:           size,
		acquireTimeout: acquireTimeout,
		slots:          slots,
		closeCh:        make(chan struct{}),
	}
}

// Acquire obtains a session, blocking while the pool is exhausted. The wait is
// bounded by the context deadline, or by the pool's configured acquire timeout
// when the context carries none.
func (p *SessionPool) Acquire(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, types.NewError(ErrCodePoolClosed, "session pool is closed")
	}
	p.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok && p.acquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.acquireTimeout)
		defer cancel()
	}

	select {
	case <-p.slots:
	case <-p.closeCh:
		return nil, types.NewError(ErrCodePoolClosed, "session pool is closed")
	case <-ctx.Done():
		return nil, types.WrapError(ErrCodeAcquireTimeout,
			"timed out waiting for a pool session", ctx.Err())
	}

	// Re-check: CloseAll may have raced the slot grant.
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, types.NewError(ErrCodePoolClosed, "session pool is closed")
	}
	p.mu.Unlock()

	return &Session{raw: p.factory(ctx), pool: p}, nil
}

// Release closes the session and returns its slot to the pool. Closing the
// session rolls back any transaction left open, so a released session never
// carries a half-committed write. Releasing twice is a no-op.
func (p *SessionPool) Release(ctx context.Context, s *Session) {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		if s.raw != nil {
			// Session close is bounded so a hung backend cannot wedge Release.
			closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = s.raw.Close(closeCtx)
		}

		p.mu.Lock()
		closed := p.closed
		p.mu.Unlock()
		if !closed {
			p.slots <- struct{}{}
		}
	})
}

// CloseAll marks the pool closed and interrupts all blocked Acquire calls.
// Outstanding sessions are closed by their holders via Release.
func (p *SessionPool) CloseAll(ctx context.Context) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.closeCh)
}

// Utilization reports the fraction of sessions currently in use, 0..1.
func (p *SessionPool) Utilization() float64 {
	if p.size == 0 {
		return 0
	}
	return float64(p.size-len(p.slots)) / float64(p.size)
}

// Size returns the configured pool capacity.
func (p *SessionPool) Size() int {
	return p.size
}

// Session is a pooled bolt session. It must be released back to the pool by
// the caller that acquired it.
type Session struct {
	raw       neo4j.SessionWithContext
	pool      *SessionPool
	closeOnce sync.Once
}

// ExecuteRead runs cypher inside a read transaction and converts the result.
func (s *Session) ExecuteRead(ctx context.Context, cypher string, params map[string]any) (QueryResult, error) {
	result, err := s.raw.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return runAndCollect(ctx, tx, cypher, params)
	})
	if err != nil {
		return QueryResult{}, err
	}
	return result.(QueryResult), nil
}

// ExecuteWrite runs cypher inside a write transaction and converts the result.
// The transaction either commits fully or rolls back; a failed write leaves
// nothing behind.
func (s *Session) ExecuteWrite(ctx context.Context, cypher string, params map[string]any) (QueryResult, error) {
	result, err := s.raw.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return runAndCollect(ctx, tx, cypher, params)
	})
	if err != nil {
		return QueryResult{}, err
	}
	return result.(QueryResult), nil
}

// ExecuteWriteBatch runs all statements in order inside a single write
// transaction, returning one result per statement. A failure on any
// statement, or a RequireRow statement matching no rows, errors out of the
// transaction function so the driver rolls back the whole batch.
func (s *Session) ExecuteWriteBatch(ctx context.Context, stmts []Statement) ([]QueryResult, error) {
	result, err := s.raw.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		out := make([]QueryResult, 0, len(stmts))
		for _, stmt := range stmts {
			r, err := runAndCollect(ctx, tx, stmt.Cypher, stmt.Params)
			if err != nil {
				return nil, err
			}
			qr := r.(QueryResult)
			if stmt.RequireRow && len(qr.Records) == 0 {
				return nil, types.NewError(types.NODE_NOT_FOUND,
					"batch statement matched no rows, rolling back")
			}
			out = append(out, qr)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]QueryResult), nil
}

// runAndCollect executes a statement and converts all records plus the summary.
func runAndCollect(ctx context.Context, tx neo4j.ManagedTransaction, cypher string, params map[string]any) (any, error) {
	neoResult, err := tx.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}

	records, err := neoResult.Collect(ctx)
	if err != nil {
		return nil, err
	}

	summary, err := neoResult.Consume(ctx)
	if err != nil {
		return nil, err
	}

	return convertResult(records, summary), nil
}

// convertResult converts driver records and summary to our QueryResult format.
func convertResult(records []*neo4j.Record, summary neo4j.ResultSummary) QueryResult {
	result := QueryResult{
		Records: make([]map[string]any, 0, len(records)),
		Columns: []string{},
	}

	if len(records) > 0 {
		result.Columns = records[0].Keys
	}

	for _, record := range records {
		recordMap := make(map[string]any)
		for i, key := range record.Keys {
			recordMap[key] = record.Values[i]
		}
		result.Records = append(result.Records, recordMap)
	}

	if summary != nil && summary.Counters() != nil {
		counters := summary.Counters()
		result.Summary = QuerySummary{
			NodesCreated:         counters.NodesCreated(),
			NodesDeleted:         counters.NodesDeleted(),
			RelationshipsCreated: counters.RelationshipsCreated(),
			RelationshipsDeleted: counters.RelationshipsDeleted(),
			PropertiesSet:        counters.PropertiesSet(),
		}
	}

	return result
}
