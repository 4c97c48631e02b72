package util

import (
	"context"
	"time"
)

// Retry calls fn up to maxAttempts times with linear backoff: the wait after
// attempt n is n*baseDelay. It returns nil on the first successful call, or
// the last error if all attempts fail. The function respects context
// cancellation between retries.
func Retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	var err error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		// Don't sleep after the last failed attempt.
		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * baseDelay):
			}
		}
	}

	return err
}
