package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"cardloom/internal/services"
)

func noSleep(sleeps *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		if sleeps != nil {
			*sleeps = append(*sleeps, d)
		}
		return nil
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	caller := NewCaller(nil, WithSleeper(noSleep(nil)))

	calls := 0
	payload, err := caller.Do(context.Background(), "tts", "synthesize", func(context.Context) ([]byte, error) {
		calls++
		return []byte("audio"), nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if string(payload) != "audio" {
		t.Errorf("payload = %q", payload)
	}
}

func TestDoRetriesTransientThenSucceeds(t *testing.T) {
	var sleeps []time.Duration
	caller := NewCaller(nil,
		WithPolicy(Policy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 30 * time.Second}),
		WithSleeper(noSleep(&sleeps)),
		WithJitterSource(func() float64 { return 0.5 }))

	calls := 0
	_, err := caller.Do(context.Background(), "images", "search", func(context.Context) ([]byte, error) {
		calls++
		if calls < 3 {
			return nil, services.Wrap(services.ErrTransient, "images", "search", "boom", nil)
		}
		return []byte("ok"), nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	// Backoff doubles: 1s then 2s (jitter neutralized).
	if len(sleeps) != 2 || sleeps[0] != time.Second || sleeps[1] != 2*time.Second {
		t.Errorf("sleeps = %v, want [1s 2s]", sleeps)
	}
}

func TestDoNotFoundIsTerminal(t *testing.T) {
	caller := NewCaller(nil, WithSleeper(noSleep(nil)))

	calls := 0
	_, err := caller.Do(context.Background(), "images", "search", func(context.Context) ([]byte, error) {
		calls++
		return nil, services.Wrap(services.ErrNotFound, "images", "search", "no hits", nil)
	})
	if !errors.Is(err, services.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on not found)", calls)
	}
}

func TestDoConfigurationIsTerminal(t *testing.T) {
	caller := NewCaller(nil, WithSleeper(noSleep(nil)))

	calls := 0
	_, err := caller.Do(context.Background(), "tts", "synthesize", func(context.Context) ([]byte, error) {
		calls++
		return nil, services.Wrap(services.ErrConfiguration, "tts", "synthesize", "api key missing", nil)
	})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Errorf("err = %v, want ErrConfiguration", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoExhaustionDistinctFromNotFound(t *testing.T) {
	caller := NewCaller(nil,
		WithPolicy(Policy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second}),
		WithSleeper(noSleep(nil)))

	calls := 0
	_, err := caller.Do(context.Background(), "tts", "synthesize", func(context.Context) ([]byte, error) {
		calls++
		return nil, services.Wrap(services.ErrTransient, "tts", "synthesize", "flaky", nil)
	})
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if !errors.Is(err, services.ErrTransient) {
		t.Errorf("exhaustion should classify as transient, got %v", err)
	}
	if errors.Is(err, services.ErrNotFound) {
		t.Error("exhaustion must not look like not-found")
	}
}

func TestDoRetryAfterUsedAsBackoffBase(t *testing.T) {
	var sleeps []time.Duration
	caller := NewCaller(nil,
		WithPolicy(Policy{MaxAttempts: 2, BaseDelay: time.Second, MaxDelay: 60 * time.Second}),
		WithSleeper(noSleep(&sleeps)),
		WithJitterSource(func() float64 { return 0.5 }))

	calls := 0
	_, _ = caller.Do(context.Background(), "images", "search", func(context.Context) ([]byte, error) {
		calls++
		if calls == 1 {
			return nil, services.Wrap(services.ErrRateLimited, "images", "search", "",
				&services.RateLimitError{RetryAfter: 9 * time.Second})
		}
		return []byte("ok"), nil
	})
	if len(sleeps) != 1 || sleeps[0] != 9*time.Second {
		t.Errorf("sleeps = %v, want [9s] (server hint as base)", sleeps)
	}
}

func TestDoRefusesRetryPastDeadline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	caller := NewCaller(nil, WithSleeper(noSleep(nil)))
	_, err := caller.Do(ctx, "tts", "synthesize", func(context.Context) ([]byte, error) {
		calls++
		cancel() // deadline passes while the call is in flight
		return nil, services.Wrap(services.ErrTransient, "tts", "synthesize", "flaky", nil)
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no new retry after cancellation)", calls)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestPacingOnlyAfterFirstSuccess(t *testing.T) {
	// 50 calls/s means 20ms between paced calls.
	caller := NewCaller(nil, WithPace(50), WithSleeper(noSleep(nil)))

	ok := func(context.Context) ([]byte, error) { return []byte("x"), nil }

	start := time.Now()
	if _, err := caller.Do(context.Background(), "tts", "a", ok); err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed >= 15*time.Millisecond {
		t.Errorf("first call waited %s, pacing must not apply before a success", elapsed)
	}
	if !caller.hadSuccess.Load() {
		t.Fatal("success not recorded")
	}

	// The call immediately following the first success already waits.
	start = time.Now()
	if _, err := caller.Do(context.Background(), "tts", "b", ok); err != nil {
		t.Fatalf("paced call failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Errorf("call after first success waited only %s, want the pacing interval", elapsed)
	}
}
