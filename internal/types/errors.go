package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a namespaced error code for Logos HCG errors.
type ErrorCode string

// Connection and pool error codes
const (
	CONNECTION_FAILED ErrorCode = "CONNECTION_FAILED"
	CONNECTION_CLOSED ErrorCode = "CONNECTION_CLOSED"
	ACQUIRE_TIMEOUT   ErrorCode = "ACQUIRE_TIMEOUT"
	OPERATION_TIMEOUT ErrorCode = "OPERATION_TIMEOUT"
	POOL_CLOSED       ErrorCode = "POOL_CLOSED"
)

// Query error codes
const (
	QUERY_FAILED         ErrorCode = "QUERY_FAILED"
	INVALID_QUERY        ErrorCode = "INVALID_QUERY"
	INVALID_RELATIONSHIP ErrorCode = "INVALID_RELATIONSHIP"
	NODE_NOT_FOUND       ErrorCode = "NODE_NOT_FOUND"
	RESULT_PARSING       ErrorCode = "RESULT_PARSING"
)

// Validation error codes
const (
	VALIDATION_FAILED  ErrorCode = "VALIDATION_FAILED"
	SHAPE_LOAD_FAILED  ErrorCode = "SHAPE_LOAD_FAILED"
	DELTA_PARSE_FAILED ErrorCode = "DELTA_PARSE_FAILED"
	INVALID_ID         ErrorCode = "INVALID_ID"
	INVALID_TIMESTAMP  ErrorCode = "INVALID_TIMESTAMP"
	DUPLICATE_CONCEPT  ErrorCode = "DUPLICATE_CONCEPT"
	WRITE_FAILED       ErrorCode = "WRITE_FAILED"
	WRITE_REJECTED     ErrorCode = "WRITE_REJECTED"
)

// Configuration error codes
const (
	CONFIG_LOAD_FAILED       ErrorCode = "CONFIG_LOAD_FAILED"
	CONFIG_VALIDATION_FAILED ErrorCode = "CONFIG_VALIDATION_FAILED"
)

// LogosError represents a structured error with error code, message, and optional cause.
// It supports error wrapping and retryability hints for error handling logic.
type LogosError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface, returning a formatted error message.
// Format: "[CODE] message" or "[CODE] message: cause" if cause exists.
func (e *LogosError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error unwrapping chains.
func (e *LogosError) Unwrap() error {
	return e.Cause
}

// Is checks if the target error matches this error by error code.
// Returns true if target is a LogosError with the same Code.
func (e *LogosError) Is(target error) bool {
	var logosErr *LogosError
	if errors.As(target, &logosErr) {
		return e.Code == logosErr.Code
	}
	return false
}

// NewError creates a new non-retryable LogosError with the given code and message.
func NewError(code ErrorCode, message string) *LogosError {
	return &LogosError{
		Code:      code,
		Message:   message,
		Retryable: false,
		Cause:     nil,
	}
}

// NewRetryableError creates a new retryable LogosError with the given code and message.
// Use this for transient errors that may succeed on retry (e.g., network timeouts).
func NewRetryableError(code ErrorCode, message string) *LogosError {
	return &LogosError{
		Code:      code,
		Message:   message,
		Retryable: true,
		Cause:     nil,
	}
}

// WrapError creates a new non-retryable LogosError that wraps an existing error.
// The wrapped error is accessible via Unwrap() for error chain inspection.
func WrapError(code ErrorCode, message string, cause error) *LogosError {
	return &LogosError{
		Code:      code,
		Message:   message,
		Retryable: false,
		Cause:     cause,
	}
}

// WrapRetryableError creates a new retryable LogosError that wraps an existing error.
func WrapRetryableError(code ErrorCode, message string, cause error) *LogosError {
	return &LogosError{
		Code:      code,
		Message:   message,
		Retryable: true,
		Cause:     cause,
	}
}

// IsRetryable reports whether err carries a retryable hint anywhere in its chain.
func IsRetryable(err error) bool {
	var logosErr *LogosError
	if errors.As(err, &logosErr) {
		return logosErr.Retryable
	}
	return false
}

// CodeOf extracts the error code from err, or empty string if err is not a LogosError.
func CodeOf(err error) ErrorCode {
	var logosErr *LogosError
	if errors.As(err, &logosErr) {
		return logosErr.Code
	}
	return ""
}
