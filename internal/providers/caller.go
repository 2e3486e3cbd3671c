package providers

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"cardloom/internal/logging"
	"cardloom/internal/services"
)

// Caller executes one logical call against a rate-limited, occasionally
// flaky provider, retrying according to policy. A single Caller is shared
// by all requests to one provider so the courtesy pacing applies across
// the whole run.
type Caller struct {
	policy     Policy
	pace       *rate.Limiter
	logger     *slog.Logger
	sleeper    func(context.Context, time.Duration) error
	rng        func() float64
	hadSuccess atomic.Bool
}

// Option customizes a Caller.
type Option func(*Caller)

// WithPolicy overrides the default retry policy.
func WithPolicy(policy Policy) Option {
	return func(c *Caller) {
		c.policy = policy
	}
}

// WithPace installs a courtesy pacing limit in calls per second. Pacing is
// only applied once the caller has seen a successful call, so a lone
// request never waits.
func WithPace(perSecond float64) Option {
	return func(c *Caller) {
		if perSecond > 0 {
			c.pace = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithSleeper overrides how backoff sleeps are performed (useful for tests).
func WithSleeper(sleeper func(context.Context, time.Duration) error) Option {
	return func(c *Caller) {
		c.sleeper = sleeper
	}
}

// WithJitterSource overrides the jitter randomness source (useful for tests).
func WithJitterSource(rng func() float64) Option {
	return func(c *Caller) {
		c.rng = rng
	}
}

// NewCaller constructs a Caller with the supplied logger and options.
func NewCaller(logger *slog.Logger, opts ...Option) *Caller {
	c := &Caller{
		policy:  DefaultPolicy(),
		logger:  logging.NewComponentLogger(logger, "providers"),
		sleeper: SleepWithContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sleeper == nil {
		c.sleeper = SleepWithContext
	}
	return c
}

// Do runs fn until it succeeds, fails terminally, or the attempt budget is
// exhausted. NotFound and configuration errors surface immediately; rate
// limits and transient failures are retried with capped, jittered
// exponential backoff, preferring a server-suggested delay as the backoff
// base. A new retry is never started once ctx's deadline has passed.
func (c *Caller) Do(ctx context.Context, component, operation string, fn func(context.Context) ([]byte, error)) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	attempts := c.policy.attempts()
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if err := c.waitForPace(ctx); err != nil {
			return nil, err
		}

		payload, err := fn(ctx)
		if err == nil {
			if c.hadSuccess.CompareAndSwap(false, true) && c.pace != nil {
				// Start the pacing window now: consume the limiter's initial
				// token so the call right after this success already waits.
				c.pace.Reserve()
			}
			return payload, nil
		}
		if !services.Retryable(err) {
			return nil, err
		}
		lastErr = err

		if attempt == attempts-1 {
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		base := time.Duration(0)
		if hint, ok := services.RetryAfterHint(err); ok {
			base = hint
		}
		delay := jitter(c.policy.Delay(attempt, base), c.rng)

		c.logger.Warn("provider call failed, retrying",
			logging.String(logging.FieldComponent, component),
			logging.String("operation", operation),
			logging.Int("attempt", attempt+1),
			logging.Int("max_attempts", attempts),
			logging.Duration("backoff", delay),
			logging.Error(err),
			logging.String(logging.FieldEventType, "provider_retry"))

		if sleepErr := c.sleeper(ctx, delay); sleepErr != nil {
			return nil, sleepErr
		}
	}

	return nil, services.Wrap(services.ErrTransient, component, operation,
		fmt.Sprintf("failed after %d attempts", attempts), lastErr)
}

// waitForPace enforces the courtesy limit between calls after the first
// success in a sequence.
func (c *Caller) waitForPace(ctx context.Context) error {
	if c.pace == nil || !c.hadSuccess.Load() {
		return nil
	}
	return c.pace.Wait(ctx)
}
