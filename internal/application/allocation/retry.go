package allocation

import (
	"context"
	"errors"
	"time"

	"github.com/wms/backend/internal/domain/inventory"
)

// RetryPolicy bounds the retry loop around one allocation attempt
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts including the first
	MaxAttempts int
	// BaseBackoff is the delay before the second attempt; each further
	// attempt doubles it
	BaseBackoff time.Duration
	// MaxBackoff caps the delay between attempts
	MaxBackoff time.Duration
}

// DefaultRetryPolicy returns the retry policy used in production
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseBackoff: 50 * time.Millisecond,
		MaxBackoff:  1 * time.Second,
	}
}

// backoffFor returns the delay before the given attempt (1-based; attempt 1
// has no delay)
func (p RetryPolicy) backoffFor(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	d := p.BaseBackoff
	for i := 2; i < attempt; i++ {
		d *= 2
		if d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}

// IsRetryable reports whether an allocation attempt failed transiently.
// Concurrent modification and reserve-time stock races are retryable: the
// next attempt re-reads candidates and sees the new state. Everything else
// (invalid input, over-release, repository faults) is terminal.
func IsRetryable(err error) bool {
	return errors.Is(err, inventory.ErrConcurrentModification) ||
		errors.Is(err, inventory.ErrInsufficientStock)
}

// runWithRetry executes fn up to policy.MaxAttempts times, backing off
// between attempts. It stops early on success, on a non-retryable error,
// or when the context is done. Returns the attempt count alongside the
// final error.
func runWithRetry(ctx context.Context, policy RetryPolicy, fn func(attempt int) error) (int, error) {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if delay := policy.backoffFor(attempt); delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return attempt - 1, ctx.Err()
			}
		}

		err = fn(attempt)
		if err == nil {
			return attempt, nil
		}
		if !IsRetryable(err) {
			return attempt, err
		}
	}
	return attempts, err
}
