package providers

import (
	"context"
	"testing"
	"time"
)

func TestDelayMonotonicAndCapped(t *testing.T) {
	policy := Policy{MaxAttempts: 8, BaseDelay: time.Second, MaxDelay: 30 * time.Second}

	prev := time.Duration(0)
	for attempt := 0; attempt < 10; attempt++ {
		delay := policy.Delay(attempt, 0)
		if delay < prev {
			t.Errorf("delay decreased at attempt %d: %v < %v", attempt, delay, prev)
		}
		if delay > policy.MaxDelay {
			t.Errorf("delay %v exceeds cap %v at attempt %d", delay, policy.MaxDelay, attempt)
		}
		prev = delay
	}
	if policy.Delay(0, 0) != time.Second {
		t.Errorf("attempt 0 delay = %v, want base", policy.Delay(0, 0))
	}
	if policy.Delay(2, 0) != 4*time.Second {
		t.Errorf("attempt 2 delay = %v, want 4s", policy.Delay(2, 0))
	}
}

func TestDelayUsesOverrideBase(t *testing.T) {
	policy := Policy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 60 * time.Second}

	if got := policy.Delay(0, 7*time.Second); got != 7*time.Second {
		t.Errorf("override base not used: got %v", got)
	}
	if got := policy.Delay(1, 7*time.Second); got != 14*time.Second {
		t.Errorf("override base not doubled: got %v", got)
	}
	// Override above the ceiling is clamped.
	if got := policy.Delay(0, 2*time.Minute); got != 60*time.Second {
		t.Errorf("override base not capped: got %v", got)
	}
}

func TestJitterBoundsAndFloor(t *testing.T) {
	delay := 10 * time.Second

	low := jitter(delay, func() float64 { return 0 })   // -15%
	high := jitter(delay, func() float64 { return 1 })  // +15%
	mid := jitter(delay, func() float64 { return 0.5 }) // no spread

	if low != 8500*time.Millisecond {
		t.Errorf("low jitter = %v, want 8.5s", low)
	}
	if high != 11500*time.Millisecond {
		t.Errorf("high jitter = %v, want 11.5s", high)
	}
	if mid != delay {
		t.Errorf("mid jitter = %v, want %v", mid, delay)
	}

	// Tiny delays are floored, never zero or negative.
	if got := jitter(10*time.Millisecond, func() float64 { return 0 }); got != minDelay {
		t.Errorf("small delay not floored: got %v", got)
	}
}

func TestSleepWithContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := SleepWithContext(ctx, time.Minute); err == nil {
		t.Error("cancelled context should abort sleep")
	}
	if err := SleepWithContext(context.Background(), 0); err != nil {
		t.Errorf("zero sleep should be a no-op, got %v", err)
	}
}
