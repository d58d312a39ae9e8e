package graph

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/c-daly/logos/internal/types"
)

// Neo4jClient implements Client for bolt-protocol graph backends.
// Sessions are handed out by a bounded SessionPool; one session per operation.
type Neo4jClient struct {
	config Config
	driver neo4j.DriverWithContext
	pool   *SessionPool
}

// NewNeo4jClient creates a new client with the given configuration.
// The client must be connected via Connect() before use.
func NewNeo4jClient(config Config) (*Neo4jClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Neo4jClient{
		config: config,
	}, nil
}

// Connect establishes the driver connection and builds the session pool.
// Uses exponential backoff for the initial connectivity check.
func (c *Neo4jClient) Connect(ctx context.Context) error {
	auth := neo4j.BasicAuth(c.config.Username, c.config.Password, "")

	driverConfig := func(config *neo4j.Config) {
		config.MaxConnectionPoolSize = c.config.PoolMaxSize
		config.ConnectionAcquisitionTimeout = c.config.ConnectionTimeout
	}

	var driver neo4j.DriverWithContext
	var lastErr error
	maxRetries := 5
	baseDelay := 100 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		var err error
		driver, err = neo4j.NewDriverWithContext(c.config.URI, auth, driverConfig)
		if err == nil {
			err = driver.VerifyConnectivity(ctx)
			if err == nil {
				c.driver = driver
				c.pool = NewSessionPool(driver, c.config.Database,
					c.config.PoolMaxSize, c.config.AcquireTimeout)
				return nil
			}
		}

		lastErr = err

		if ctx.Err() != nil {
			return types.WrapError(ErrCodeConnectionFailed,
				"connection attempt cancelled", ctx.Err())
		}

		delay := baseDelay * time.Duration(math.Pow(2, float64(attempt)))
		if delay > c.config.ConnectionTimeout {
			delay = c.config.ConnectionTimeout
		}

		select {
		case <-time.After(delay):
			continue
		case <-ctx.Done():
			return types.WrapError(ErrCodeConnectionFailed,
				"connection attempt cancelled", ctx.Err())
		}
	}

	return types.WrapRetryableError(ErrCodeConnectionFailed,
		fmt.Sprintf("failed to connect after %d attempts", maxRetries), lastErr)
}

// Close shuts down the pool and the driver. The client is terminal afterwards.
func (c *Neo4jClient) Close(ctx context.Context) error {
	if c.pool != nil {
		c.pool.CloseAll(ctx)
	}
	if c.driver == nil {
		return nil
	}

	if err := c.driver.Close(ctx); err != nil {
		return types.WrapError(ErrCodeConnectionClosed,
			"failed to close driver", err)
	}

	c.driver = nil
	return nil
}

// Health probes backend reachability with a single bounded connectivity check.
// Never retries: a failed probe is reported as-is.
func (c *Neo4jClient) Health(ctx context.Context) types.HealthStatus {
	if c.driver == nil {
		return types.Unhealthy("driver not initialized")
	}

	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := c.driver.VerifyConnectivity(healthCtx); err != nil {
		status := types.Unhealthy(fmt.Sprintf("connectivity check failed: %v", err))
		status.PoolUtilization = c.PoolUtilization()
		return status
	}

	status := types.Healthy()
	status.PoolUtilization = c.PoolUtilization()
	return status
}

// Read executes cypher in a read transaction on a pooled session.
func (c *Neo4jClient) Read(ctx context.Context, cypher string, params map[string]any) (QueryResult, error) {
	return c.execute(ctx, cypher, params, false)
}

// Write executes cypher in a write transaction on a pooled session.
func (c *Neo4jClient) Write(ctx context.Context, cypher string, params map[string]any) (QueryResult, error) {
	return c.execute(ctx, cypher, params, true)
}

// WriteBatch executes all statements inside one write transaction on a pooled
// session: the batch commits as a unit or rolls back as a unit.
func (c *Neo4jClient) WriteBatch(ctx context.Context, stmts []Statement) ([]QueryResult, error) {
	if c.driver == nil || c.pool == nil {
		return nil, types.NewError(ErrCodeConnectionClosed,
			"client not connected")
	}
	if len(stmts) == 0 {
		return nil, types.NewError(ErrCodeInvalidQuery, "empty statement batch")
	}

	session, err := c.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer c.pool.Release(ctx, session)

	startTime := time.Now()
	results, err := session.ExecuteWriteBatch(ctx, stmts)
	if err != nil {
		return nil, classifyDriverError(err)
	}
	elapsed := time.Since(startTime)
	for i := range results {
		results[i].Summary.ExecutionTime = elapsed
	}
	return results, nil
}

func (c *Neo4jClient) execute(ctx context.Context, cypher string, params map[string]any, write bool) (QueryResult, error) {
	if c.driver == nil || c.pool == nil {
		return QueryResult{}, types.NewError(ErrCodeConnectionClosed,
			"client not connected")
	}

	session, err := c.pool.Acquire(ctx)
	if err != nil {
		return QueryResult{}, err
	}
	defer c.pool.Release(ctx, session)

	startTime := time.Now()

	var result QueryResult
	if write {
		result, err = session.ExecuteWrite(ctx, cypher, params)
	} else {
		result, err = session.ExecuteRead(ctx, cypher, params)
	}
	if err != nil {
		return QueryResult{}, classifyDriverError(err)
	}

	result.Summary.ExecutionTime = time.Since(startTime)
	return result, nil
}

// PoolUtilization reports the fraction of pool sessions currently in use.
func (c *Neo4jClient) PoolUtilization() float64 {
	if c.pool == nil {
		return 0
	}
	return c.pool.Utilization()
}

// classifyDriverError maps a driver error into the coded taxonomy, carrying
// the driver's own retryability verdict. Errors already coded (such as a
// rolled-back batch) pass through untouched. Connection-level failures become
// retryable CONNECTION_FAILED; everything else (constraint violations,
// malformed statements, auth failures) is terminal QUERY_FAILED.
func classifyDriverError(err error) error {
	var coded *types.LogosError
	if errors.As(err, &coded) {
		return err
	}
	if neo4j.IsRetryable(err) {
		return types.WrapRetryableError(ErrCodeConnectionFailed,
			"transient backend failure", err)
	}
	return types.WrapError(ErrCodeQueryFailed, "query execution failed", err)
}
