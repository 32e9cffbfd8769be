package resilience

import (
	"fmt"
	"time"
)

// Clock returns the current time. Tests substitute a controllable clock.
type Clock func() time.Time

// CallConfig configures one call type. It is immutable once handed to an
// Executor.
type CallConfig struct {
	// CoreSize is the number of bulkhead workers.
	// Default: 10
	CoreSize int

	// MaxQueueSize is the number of submitted but not yet running calls
	// allowed before new calls are rejected. Zero disables queueing.
	// Default: 0
	MaxQueueSize int

	// Timeout bounds the wait for a call's result, measured from submission.
	// Default: 1 second
	Timeout time.Duration

	// RollingWindow is the span of the statistics window.
	// Default: 10 seconds
	RollingWindow time.Duration

	// NumBuckets is the number of buckets RollingWindow is split into. It
	// must divide RollingWindow evenly.
	// Default: 10
	NumBuckets int

	// RequestVolumeThreshold is the minimum number of calls in the window
	// before the breaker evaluates the error rate. Zero selects the
	// default; use 1 to evaluate from the first call.
	// Default: 20
	RequestVolumeThreshold int64

	// ErrorThresholdPercentage is the failure percentage (0-100] at which
	// the breaker opens. Zero selects the default, since a circuit that
	// opens at 0% errors would open on every call.
	// Default: 50
	ErrorThresholdPercentage float64

	// SleepWindow is how long the breaker stays open before letting a
	// single trial call through.
	// Default: 5 seconds
	SleepWindow time.Duration
}

// DefaultCallConfig returns the configuration used for call types that were
// not configured explicitly.
func DefaultCallConfig() CallConfig {
	return CallConfig{}.withDefaults()
}

func (c CallConfig) withDefaults() CallConfig {
	if c.CoreSize <= 0 {
		c.CoreSize = 10
	}
	if c.Timeout == 0 {
		c.Timeout = time.Second
	}
	if c.RollingWindow == 0 {
		c.RollingWindow = 10 * time.Second
	}
	if c.NumBuckets == 0 {
		c.NumBuckets = 10
	}
	if c.RequestVolumeThreshold == 0 {
		c.RequestVolumeThreshold = 20
	}
	if c.ErrorThresholdPercentage == 0 {
		c.ErrorThresholdPercentage = 50
	}
	if c.SleepWindow == 0 {
		c.SleepWindow = 5 * time.Second
	}
	return c
}

// Validate reports whether c satisfies the call config invariants. Zero
// values are replaced by their defaults before checking.
func (c CallConfig) Validate() error {
	c = c.withDefaults()

	switch {
	case c.MaxQueueSize < 0:
		return fmt.Errorf("%w: max queue size %d is negative", ErrInvalidConfig, c.MaxQueueSize)
	case c.Timeout < 0:
		return fmt.Errorf("%w: timeout %v must be positive", ErrInvalidConfig, c.Timeout)
	case c.NumBuckets < 1:
		return fmt.Errorf("%w: bucket count %d must be at least 1", ErrInvalidConfig, c.NumBuckets)
	case c.RollingWindow < 0:
		return fmt.Errorf("%w: rolling window %v must be positive", ErrInvalidConfig, c.RollingWindow)
	case c.RollingWindow%time.Duration(c.NumBuckets) != 0:
		return fmt.Errorf("%w: rolling window %v is not divisible into %d buckets",
			ErrInvalidConfig, c.RollingWindow, c.NumBuckets)
	case c.RequestVolumeThreshold < 0:
		return fmt.Errorf("%w: request volume threshold %d is negative", ErrInvalidConfig, c.RequestVolumeThreshold)
	case c.ErrorThresholdPercentage < 0 || c.ErrorThresholdPercentage > 100:
		return fmt.Errorf("%w: error threshold %.1f%% is outside 0-100", ErrInvalidConfig, c.ErrorThresholdPercentage)
	case c.SleepWindow < 0:
		return fmt.Errorf("%w: sleep window %v must be positive", ErrInvalidConfig, c.SleepWindow)
	}
	return nil
}

// BucketSize returns the duration covered by one bucket.
func (c CallConfig) BucketSize() time.Duration {
	c = c.withDefaults()
	return c.RollingWindow / time.Duration(c.NumBuckets)
}
