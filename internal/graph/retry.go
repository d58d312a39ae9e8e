package graph

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/c-daly/logos/internal/types"
)

// RetryPolicy wraps an operation with bounded, jittered exponential backoff.
// Transient failures are retried up to MaxAttempts; terminal failures
// propagate immediately on first occurrence. The policy is a value object:
// all retry state is local to a single Execute call, never shared.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int

	// BaseDelay is the backoff before the first retry; doubled per attempt.
	BaseDelay time.Duration

	// MaxDelay caps the computed backoff.
	MaxDelay time.Duration

	// Jitter is the fraction of the delay randomized in either direction,
	// e.g. 0.2 spreads each delay across ±20%.
	Jitter float64
}

// DefaultRetryPolicy returns the standard policy: 3 attempts, 100ms base,
// 5s cap, ±20% jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Jitter:      0.2,
	}
}

// Classify reports whether err is transient (worth retrying). Coded errors
// carry their own retryability hint; driver errors are classified by the
// driver itself. Context cancellation and deadline expiry are terminal.
func (p RetryPolicy) Classify(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var logosErr *types.LogosError
	if errors.As(err, &logosErr) {
		return logosErr.Retryable
	}
	return neo4j.IsRetryable(err)
}

// Execute runs op, retrying transient failures with exponential backoff and
// jitter. Returns the last error after exhausting attempts, or the first
// terminal error as-is.
func (p RetryPolicy) Execute(ctx context.Context, op func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := p.backoff(attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return types.WrapError(ErrCodeOperationTimeout,
					"retried operation cancelled while backing off", ctx.Err())
			}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !p.Classify(lastErr) {
			return lastErr
		}
	}

	return types.WrapError(ErrCodeConnectionFailed,
		fmt.Sprintf("operation failed after %d attempts", attempts), lastErr)
}

// backoff computes base × 2^attempt ± jitter, capped at MaxDelay.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	delay := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	if p.Jitter > 0 {
		spread := delay * p.Jitter
		delay += (rand.Float64()*2 - 1) * spread
	}
	if max := float64(p.MaxDelay); p.MaxDelay > 0 && delay > max {
		delay = max
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
