// Package retry runs an operation a bounded number of times with a backoff
// between attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted wraps the last error once every attempt has failed.
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy configures Do. Zero Multiplier means a fixed delay.
type Policy struct {
	Attempts    int
	Delay       time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	IsRetryable func(error) bool
}

// Fixed returns a policy of n attempts spaced by d.
func Fixed(n int, d time.Duration) Policy {
	return Policy{Attempts: n, Delay: d}
}

// Do calls fn until it succeeds, returns a non-retryable error, the context
// ends, or the attempts run out.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	delay := p.Delay
	var last error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if last != nil {
				return fmt.Errorf("%w: %w", err, last)
			}
			return err
		}
		last = fn(ctx)
		if last == nil {
			return nil
		}
		if p.IsRetryable != nil && !p.IsRetryable(last) {
			return last
		}
		if attempt == p.Attempts {
			break
		}
		if delay > 0 {
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return fmt.Errorf("%w: %w", ctx.Err(), last)
			case <-t.C:
			}
		}
		if p.Multiplier > 1 {
			delay = time.Duration(float64(delay) * p.Multiplier)
			if p.MaxDelay > 0 && delay > p.MaxDelay {
				delay = p.MaxDelay
			}
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, p.Attempts, last)
}
