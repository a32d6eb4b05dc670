// Package retry runs a fallible call a bounded number of times and reports
// how the attempts resolved.
package retry

import (
	"context"
	"time"
)

// Policy bounds the attempts made by Attempt.
// MaxAttempts below one is treated as one. OnRetry, when set, is called
// with the failed attempt number and its error before each retry.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	OnRetry     func(attempt int, err error)
}

// Outcome is the tagged result of Attempt.
// Exactly one of Value or Err is meaningful. Exhausted is true when every
// permitted attempt was made and the last one failed.
type Outcome[T any] struct {
	Value     T
	Err       error
	Attempts  int
	Exhausted bool
}

// OK reports whether an attempt succeeded.
func (o Outcome[T]) OK() bool {
	return o.Err == nil
}

// Attempt calls fn until it succeeds or the policy is spent.
// Cancellation of ctx stops further attempts; the last error is returned
// with Exhausted left false.
func Attempt[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) Outcome[T] {
	maxAttempts := max(p.MaxAttempts, 1)

	var out Outcome[T]
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		out.Attempts = attempt

		value, err := fn(ctx)
		if err == nil {
			out.Value = value
			out.Err = nil
			return out
		}
		out.Err = err

		if attempt == maxAttempts {
			out.Exhausted = true
			return out
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}

		if !wait(ctx, p.Delay) {
			return out
		}
	}

	return out
}

func wait(ctx context.Context, d time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if d <= 0 {
		return true
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
