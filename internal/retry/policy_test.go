package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}
}

func TestDelaysDouble(t *testing.T) {
	t.Parallel()

	p := Policy{MaxAttempts: 4, BaseDelay: 5 * time.Second, MaxDelay: time.Minute}
	got := p.Delays()
	want := []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}
	if len(got) != len(want) {
		t.Fatalf("expected %d delays, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("delay %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDelaysCapped(t *testing.T) {
	t.Parallel()

	p := Policy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 3 * time.Second}
	got := p.Delays()
	if got[len(got)-1] != 3*time.Second {
		t.Fatalf("expected last delay capped at 3s, got %v", got)
	}
}

func TestDoSucceedsAfterFailures(t *testing.T) {
	t.Parallel()

	var notified []int
	calls := 0
	got, err := Do(context.Background(), fastPolicy(3), func(attempt int) (string, error) {
		calls++
		if attempt < 3 {
			return "", errors.New("boom")
		}
		return "ok", nil
	}, func(attempt int, err error, wait time.Duration) {
		notified = append(notified, attempt)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" || calls != 3 {
		t.Fatalf("expected ok after 3 calls, got %q after %d", got, calls)
	}
	if len(notified) != 2 || notified[0] != 1 || notified[1] != 2 {
		t.Fatalf("unexpected notifications %v", notified)
	}
}

func TestDoStopsAtCeiling(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("still down")
	calls := 0
	err := Run(context.Background(), fastPolicy(3), func(int) error {
		calls++
		return sentinel
	}, nil)
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestDoPermanentNotRetried(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("rejected")
	calls := 0
	err := Run(context.Background(), fastPolicy(5), func(int) error {
		calls++
		return Permanent(sentinel)
	}, nil)
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single call, got %d", calls)
	}
}

func TestDoHonoursCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}
	calls := 0
	err := Run(ctx, p, func(int) error {
		calls++
		cancel()
		return errors.New("fail")
	}, nil)
	if err == nil {
		t.Fatal("expected an error after cancellation")
	}
	if calls != 1 {
		t.Fatalf("expected no retry after cancellation, got %d calls", calls)
	}
}
