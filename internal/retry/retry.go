// Package retry provides the single retry policy shared by every component
// that has to wait out a remote service.
package retry

import (
	"context"
	"time"
)

// Policy describes how an operation is retried. The first attempt always runs
// immediately; Backoff(n) is the delay after the nth failed attempt.
type Policy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
	Retryable   func(error) bool
}

// Exponential returns a backoff where the delay multiplies by factor after
// each attempt: base, base*factor, base*factor^2, ...
func Exponential(base time.Duration, factor float64) func(int) time.Duration {
	return func(attempt int) time.Duration {
		d := float64(base)
		for i := 1; i < attempt; i++ {
			d *= factor
		}
		return time.Duration(d)
	}
}

// Linear returns a backoff where the delay grows by a fixed step per attempt:
// step, 2*step, 3*step, ...
func Linear(step time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * step
	}
}

// Do runs fn until it succeeds, the policy's attempts are exhausted, an error
// is not retryable, or ctx is cancelled. The sleep between attempts honors
// ctx cancellation. The last error is returned on exhaustion.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if attempt == p.MaxAttempts {
			break
		}
		if werr := Sleep(ctx, p.Backoff(attempt)); werr != nil {
			return werr
		}
	}
	return err
}

// Sleep blocks for d or until ctx is cancelled, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
