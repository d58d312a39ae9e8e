package graph

import "github.com/c-daly/logos/internal/types"

// Graph backend error codes
const (
	// Connection errors
	ErrCodeConnectionFailed types.ErrorCode = types.CONNECTION_FAILED
	ErrCodeConnectionClosed types.ErrorCode = types.CONNECTION_CLOSED

	// Pool and deadline errors
	ErrCodeAcquireTimeout   types.ErrorCode = types.ACQUIRE_TIMEOUT
	ErrCodeOperationTimeout types.ErrorCode = types.OPERATION_TIMEOUT
	ErrCodePoolClosed       types.ErrorCode = types.POOL_CLOSED

	// Query errors
	ErrCodeQueryFailed   types.ErrorCode = types.QUERY_FAILED
	ErrCodeInvalidQuery  types.ErrorCode = types.INVALID_QUERY
	ErrCodeResultParsing types.ErrorCode = types.RESULT_PARSING

	// Configuration errors
	ErrCodeInvalidConfig types.ErrorCode = "GRAPH_INVALID_CONFIG"
)
