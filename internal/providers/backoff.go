package providers

import (
	"context"
	"math/rand"
	"time"
)

const (
	defaultMaxAttempts = 5
	defaultBaseDelay   = 1 * time.Second
	defaultMaxDelay    = 30 * time.Second

	// jitterFraction spreads retry delays by ±15% so concurrent callers do
	// not synchronize their retry storms.
	jitterFraction = 0.15

	// minDelay floors every jittered delay; retries never hit a provider
	// more than once per second even with tiny configured bases.
	minDelay = 1 * time.Second
)

// Policy describes the retry schedule for provider calls.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: defaultMaxAttempts,
		BaseDelay:   defaultBaseDelay,
		MaxDelay:    defaultMaxDelay,
	}
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p Policy) base() time.Duration {
	if p.BaseDelay <= 0 {
		return defaultBaseDelay
	}
	return p.BaseDelay
}

func (p Policy) cap() time.Duration {
	if p.MaxDelay <= 0 {
		return defaultMaxDelay
	}
	return p.MaxDelay
}

// Delay computes the pre-jitter backoff for the given 0-based attempt:
// base doubled per attempt, capped at the policy ceiling. base overrides
// the policy base when positive (used for server-suggested Retry-After).
func (p Policy) Delay(attempt int, base time.Duration) time.Duration {
	if base <= 0 {
		base = p.base()
	}
	ceiling := p.cap()
	if base >= ceiling {
		return ceiling
	}
	delay := base
	for i := 0; i < attempt; i++ {
		if delay > ceiling/2 {
			return ceiling
		}
		delay *= 2
	}
	return delay
}

// jitter applies symmetric jitter and the minimum floor to a computed delay.
func jitter(delay time.Duration, rng func() float64) time.Duration {
	if rng == nil {
		rng = rand.Float64
	}
	spread := (rng()*2 - 1) * jitterFraction * float64(delay)
	jittered := delay + time.Duration(spread)
	if jittered < minDelay {
		return minDelay
	}
	return jittered
}

// SleepWithContext blocks for the given duration, returning early if the
// context is cancelled.
func SleepWithContext(ctx context.Context, d time.Duration) error {
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
