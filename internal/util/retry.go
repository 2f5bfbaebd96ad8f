package util

import (
	"context"
	"time"
)

// MaxRetryDelay caps the backoff between attempts.
const MaxRetryDelay = 5 * time.Second

// Retry calls fn until it succeeds or attempts calls have failed, doubling
// the pause after each failure from baseDelay up to MaxRetryDelay. It
// returns the last error, or ctx.Err() if the context ends while waiting.
func Retry(ctx context.Context, attempts int, baseDelay time.Duration, fn func() error) error {
	var err error
	delay := baseDelay

	for i := 1; i <= attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay = min(delay*2, MaxRetryDelay)
	}
	return err
}
