// Package retry provides a bounded-retry helper for fallible network calls.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/open-build/ogc-pipeline/pkg/clock"
)

// ErrAttemptsExhausted wraps the last error once every attempt has failed.
var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

// Policy bounds the retry loop. Attempts is the total number of tries,
// Backoff the fixed delay between them.
type Policy struct {
	Attempts int
	Backoff  time.Duration
	Clock    clock.Clock
}

// NewPolicy constructs a Policy backed by the system clock.
func NewPolicy(attempts int, backoff time.Duration) Policy {
	return Policy{
		Attempts: attempts,
		Backoff:  backoff,
		Clock:    clock.SystemClock{},
	}
}

// Do invokes fn until it succeeds, the context is cancelled, a
// non-retryable error occurs, or the attempt budget runs out.
// retryable decides whether an error is worth another attempt; a nil
// retryable retries every error.
func Do[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error), retryable func(error) bool) (T, error) {
	var zero T

	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if retryable != nil && !retryable(err) {
			return zero, err
		}
		lastErr = err

		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-clk.After(p.Backoff):
		}
	}

	return zero, fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, attempts, lastErr)
}
