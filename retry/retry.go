package retry

import (
	"context"
	"time"

	ai "github.com/tracebound/reagent"
)

// Do executes fn with retry logic. Only rate-limit errors are retried;
// anything else returns immediately. A server-suggested Retry-After delay
// takes precedence over the computed backoff. Context cancellation is
// respected during backoff waits.
func Do[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}

		lastErr = err

		if !IsRetryable(err) {
			return zero, err
		}

		// Don't sleep after the last attempt
		if attempt < cfg.MaxAttempts-1 {
			delay := cfg.Delay(attempt)
			if suggested := ai.RetryAfterOf(err); suggested > 0 {
				delay = suggested
			}

			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return zero, lastErr
}
