package graph

import (
	"context"
	"time"

	"github.com/c-daly/logos/internal/types"
)

// Querier executes parameterized Cypher against the graph backend.
// Read runs in a read transaction, Write in a write transaction; both acquire
// a session from the pool for the duration of the call.
// Implementations must be safe for concurrent use.
type Querier interface {
	Read(ctx context.Context, cypher string, params map[string]any) (QueryResult, error)
	Write(ctx context.Context, cypher string, params map[string]any) (QueryResult, error)

	// WriteBatch runs all statements inside one write transaction, in order,
	// returning one result per statement. Either every statement commits or
	// none does; a statement marked RequireRow that matches nothing aborts
	// and rolls back the whole batch.
	WriteBatch(ctx context.Context, stmts []Statement) ([]QueryResult, error)
}

// Statement is one parameterized Cypher statement within a batch.
type Statement struct {
	Cypher string
	Params map[string]any

	// RequireRow aborts the batch when the statement returns no rows, e.g.
	// an edge merge whose MATCH found no endpoint.
	RequireRow bool
}

// Client is the full lifecycle contract for a graph backend connection.
type Client interface {
	Querier

	// Connect establishes the driver connection and the session pool.
	Connect(ctx context.Context) error

	// Close releases the pool and the driver. The client is unusable afterwards.
	Close(ctx context.Context) error

	// Health probes backend reachability once, without retries.
	Health(ctx context.Context) types.HealthStatus

	// PoolUtilization reports the fraction of pool sessions currently in use.
	PoolUtilization() float64
}

// QueryResult represents the result of a Cypher query execution.
type QueryResult struct {
	// Records contains the result rows as maps of column name to value.
	Records []map[string]any

	// Columns contains the names of the columns in the result set.
	Columns []string

	// Summary contains metadata about the query execution.
	Summary QuerySummary
}

// QuerySummary provides metadata about query execution.
type QuerySummary struct {
	ExecutionTime        time.Duration
	NodesCreated         int
	NodesDeleted         int
	RelationshipsCreated int
	RelationshipsDeleted int
	PropertiesSet        int
}

// Config contains connection options for the graph backend.
type Config struct {
	// URI is the bolt connection URI, e.g. "bolt://localhost:7687".
	URI string

	// Username and Password authenticate against the backend.
	Username string
	Password string

	// Database selects the backend database; empty uses the default.
	Database string

	// PoolMaxSize bounds the number of concurrently held sessions.
	PoolMaxSize int

	// AcquireTimeout caps how long Acquire blocks when the pool is exhausted
	// and the caller's context carries no deadline of its own.
	AcquireTimeout time.Duration

	// ConnectionTimeout is the maximum time to establish the initial connection.
	ConnectionTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		URI:               "bolt://localhost:7687",
		Username:          "neo4j",
		Password:          "password",
		Database:          "",
		PoolMaxSize:       50,
		AcquireTimeout:    10 * time.Second,
		ConnectionTimeout: 30 * time.Second,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.URI == "" {
		return types.NewError(ErrCodeInvalidConfig, "URI cannot be empty")
	}
	if c.Username == "" {
		return types.NewError(ErrCodeInvalidConfig, "Username cannot be empty")
	}
	if c.Password == "" {
		return types.NewError(ErrCodeInvalidConfig, "Password cannot be empty")
	}
	if c.PoolMaxSize <= 0 {
		return types.NewError(ErrCodeInvalidConfig, "PoolMaxSize must be positive")
	}
	if c.ConnectionTimeout <= 0 {
		return types.NewError(ErrCodeInvalidConfig, "ConnectionTimeout must be positive")
	}
	return nil
}
