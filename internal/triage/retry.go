package triage

import (
	"context"
	"time"
)

// Defaults for the bounded retry loops around the oracle and the store.
const (
	retryAttempts = 3
	retryBackoff  = 500 * time.Millisecond
)

// retryLinear runs fn up to attempts times, sleeping base*n after the n-th
// failure. A nil retryable treats every error as transient; otherwise errors
// it rejects are returned immediately. The last error is returned when the
// budget is exhausted. Context cancellation aborts the wait.
func retryLinear(ctx context.Context, attempts int, base time.Duration, retryable func(error) bool, fn func(context.Context) error) error {
	var last error
	for n := 1; n <= attempts; n++ {
		last = fn(ctx)
		if last == nil {
			return nil
		}
		if retryable != nil && !retryable(last) {
			return last
		}
		if n == attempts {
			break
		}
		select {
		case <-time.After(base * time.Duration(n)):
		case <-ctx.Done():
			return last
		}
	}
	return last
}
