package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDo_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Fixed(5, time.Millisecond), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestDo_Exhausted(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Do(context.Background(), Fixed(2, 0), func(context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, ErrExhausted) || !errors.Is(err, boom) {
		t.Fatalf("want exhausted wrapping boom, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls=%d", calls)
	}
}

func TestDo_NonRetryableStopsEarly(t *testing.T) {
	fatal := errors.New("fatal")
	calls := 0
	p := Policy{Attempts: 5, IsRetryable: func(err error) bool { return !errors.Is(err, fatal) }}
	err := Do(context.Background(), p, func(context.Context) error {
		calls++
		return fatal
	})
	if !errors.Is(err, fatal) || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestDo_ContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Fixed(3, time.Hour), func(context.Context) error {
		calls++
		cancel()
		return errors.New("x")
	})
	if !errors.Is(err, context.Canceled) || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestDo_BackoffCapped(t *testing.T) {
	p := Policy{Attempts: 3, Delay: time.Millisecond, Multiplier: 10, MaxDelay: 2 * time.Millisecond}
	start := time.Now()
	_ = Do(context.Background(), p, func(context.Context) error { return errors.New("x") })
	if time.Since(start) > time.Second {
		t.Fatalf("backoff not capped")
	}
}
