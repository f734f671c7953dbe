package resilience

import (
	"context"
	"time"
)

// BackoffStrategy defines retry backoff behavior
type BackoffStrategy interface {
	NextDelay(attempt int) time.Duration
}

// FixedBackoff waits the same delay between every attempt
type FixedBackoff struct {
	Delay time.Duration
}

// NextDelay returns the fixed delay regardless of attempt number
func (fb *FixedBackoff) NextDelay(attempt int) time.Duration {
	return fb.Delay
}

// Retry runs fn up to maxAttempts times, sleeping per the strategy
// between attempts. It stops early when fn succeeds, when shouldRetry
// rejects the error, or when the context is done.
func Retry(ctx context.Context, maxAttempts int, strategy BackoffStrategy, shouldRetry func(error) bool, fn func() error) error {
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if shouldRetry != nil && !shouldRetry(err) {
			return err
		}
		if attempt == maxAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(strategy.NextDelay(attempt)):
		}
	}
	return err
}
