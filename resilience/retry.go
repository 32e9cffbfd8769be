package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// BackoffStrategy selects how the wait between attempts grows.
type BackoffStrategy int

const (
	// BackoffExponential multiplies the delay by Multiplier per attempt.
	BackoffExponential BackoffStrategy = iota
	// BackoffLinear adds InitialDelay per attempt.
	BackoffLinear
	// BackoffConstant waits InitialDelay every time.
	BackoffConstant
)

// RetryConfig configures Retry.
type RetryConfig struct {
	// MaxAttempts counts the first call.
	// Default: 3
	MaxAttempts int

	// InitialDelay is the wait after the first failed attempt.
	// Default: 100ms
	InitialDelay time.Duration

	// MaxDelay caps the wait, before jitter.
	// Default: 30s
	MaxDelay time.Duration

	// Multiplier is used by BackoffExponential.
	// Default: 2.0
	Multiplier float64

	// Strategy is the backoff strategy.
	// Default: BackoffExponential
	Strategy BackoffStrategy

	// Jitter adds up to 25% to each wait.
	// Default: false
	Jitter bool

	// RetryIf decides whether err is worth another attempt.
	// Default: RetryableError
	RetryIf func(err error) bool

	// OnRetry is called before waiting for the next attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Retry re-runs a function with backoff. It is for callers composing
// commands: the Executor itself never retries, so each attempt is a fresh
// command that the breaker and bulkhead see.
type Retry struct {
	config RetryConfig
}

// NewRetry creates a retrier, filling unset fields with their defaults.
func NewRetry(config RetryConfig) *Retry {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 100 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}
	if config.RetryIf == nil {
		config.RetryIf = RetryableError
	}
	return &Retry{config: config}
}

// RetryableError reports whether err is worth another attempt. Open circuits
// and saturated bulkheads are not: a retry would only add load to a call
// type that is already shedding it. Caller cancellation is never retried.
func RetryableError(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrShortCircuited), errors.Is(err, ErrRejected):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, ErrExecutorClosed):
		return false
	}
	return true
}

// Execute calls fn until it succeeds, returns a non-retryable error, the
// attempts run out or ctx ends. Exhaustion returns ErrMaxRetriesExceeded
// wrapping the last error.
func (r *Retry) Execute(ctx context.Context, fn func(context.Context) error) error {
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if !r.config.RetryIf(err) {
			return err
		}
		if attempt == r.config.MaxAttempts {
			return fmt.Errorf("%w: %w", ErrMaxRetriesExceeded, err)
		}

		delay := r.Backoff(attempt)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}
		if werr := sleep(ctx, delay); werr != nil {
			return werr
		}
	}
}

// Backoff returns the wait after the given failed attempt, starting at 1.
func (r *Retry) Backoff(attempt int) time.Duration {
	c := r.config

	var d time.Duration
	switch c.Strategy {
	case BackoffConstant:
		d = c.InitialDelay
	case BackoffLinear:
		d = c.InitialDelay * time.Duration(attempt)
	default:
		f := float64(c.InitialDelay) * math.Pow(c.Multiplier, float64(attempt-1))
		if f > float64(c.MaxDelay) {
			f = float64(c.MaxDelay)
		}
		d = time.Duration(f)
	}
	d = min(d, c.MaxDelay)

	if c.Jitter && d >= 4 {
		// #nosec G404 -- timing jitter, not a secret.
		d += time.Duration(rand.Int64N(int64(d / 4)))
	}
	return d
}

// Config returns the effective configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// DoWithRetry is Do repeated under r. Every attempt is a separate command,
// so fallback runs per attempt and a fallback success ends the loop.
func DoWithRetry[T any](
	ctx context.Context,
	r *Retry,
	e *Executor,
	callType string,
	op func(ctx context.Context) (T, error),
	fallback func(ctx context.Context, err error) (T, error),
) (T, error) {
	var out T
	err := r.Execute(ctx, func(ctx context.Context) error {
		v, err := Do(ctx, e, callType, op, fallback)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
