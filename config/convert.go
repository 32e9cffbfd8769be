package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/callguard/auth"
	"github.com/jonwraymond/callguard/cache"
	"github.com/jonwraymond/callguard/execctx"
	"github.com/jonwraymond/callguard/observe"
	"github.com/jonwraymond/callguard/resilience"
)

func ms(n int64) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// CallConfig converts c to a resilience.CallConfig.
func (c CommandConfig) CallConfig() resilience.CallConfig {
	return resilience.CallConfig{
		CoreSize:                 c.CoreSize,
		MaxQueueSize:             c.MaxQueueSize,
		Timeout:                  ms(c.TimeoutMS),
		RollingWindow:            ms(c.RollingWindowMS),
		NumBuckets:               c.NumBuckets,
		RequestVolumeThreshold:   c.RequestVolumeThreshold,
		ErrorThresholdPercentage: c.ErrorThresholdPercentage,
		SleepWindow:              ms(c.SleepWindowMS),
	}
}

// CallConfigs returns the configured call types keyed by name.
func (c *Config) CallConfigs() map[string]resilience.CallConfig {
	out := make(map[string]resilience.CallConfig, len(c.Commands))
	for _, cmd := range c.Commands {
		out[cmd.Name] = cmd.CallConfig()
	}
	return out
}

// ExecutorOptions configures a resilience.Executor with the default and
// per call type settings.
func (c *Config) ExecutorOptions() []resilience.ExecutorOption {
	return []resilience.ExecutorOption{
		resilience.WithDefaultCallConfig(c.DefaultCommand.CallConfig()),
		resilience.WithCallConfigs(c.CallConfigs()),
	}
}

// ObserveConfig converts the telemetry sections to an observe.Config.
func (c *Config) ObserveConfig() observe.Config {
	return observe.Config{
		ServiceName: c.Service,
		Version:     c.Version,
		Tracing: observe.TracingConfig{
			Enabled:   c.Tracing.Enabled,
			Exporter:  c.Tracing.Exporter,
			SamplePct: c.Tracing.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  c.Metrics.Enabled,
			Exporter: c.Metrics.Exporter,
		},
		Logging: observe.LoggingConfig{
			Enabled:    c.Logging.Enabled,
			Level:      c.Logging.Level,
			File:       c.Logging.File,
			MaxSizeMB:  c.Logging.MaxSizeMB,
			MaxBackups: c.Logging.MaxBackups,
			MaxAgeDays: c.Logging.MaxAgeDays,
			Compress:   c.Logging.Compress,
		},
	}
}

// Enabled reports whether a signing key is configured.
func (a AuthConfig) Enabled() bool {
	return a.SigningKey != ""
}

// JWTConfig converts a to an auth.JWTConfig.
func (a AuthConfig) JWTConfig() auth.JWTConfig {
	return auth.JWTConfig{
		Issuer:    a.Issuer,
		Audience:  a.Audience,
		UserClaim: a.UserClaim,
		OrgClaim:  a.OrgClaim,
		Leeway:    ms(a.LeewayMS),
	}
}

// NewDecoder builds the token decoder, or returns a nil TokenDecoder when
// auth is disabled. The result can go straight to execctx.WithTokenDecoder.
func (a AuthConfig) NewDecoder() (execctx.TokenDecoder, error) {
	if !a.Enabled() {
		return nil, nil
	}
	d, err := auth.NewJWTDecoder(a.JWTConfig(), auth.NewStaticKeyProvider([]byte(a.SigningKey)))
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Policy converts the TTL settings to a cache.Policy.
func (c CacheConfig) Policy() cache.Policy {
	return cache.Policy{
		DefaultTTL: ms(c.DefaultTTLMS),
		MaxTTL:     ms(c.MaxTTLMS),
		MaxEntries: c.MaxEntries,
	}
}

// NewCache builds the configured backend. Backend "none" returns nil.
func (c CacheConfig) NewCache() (cache.Cache, error) {
	switch c.Backend {
	case "", "memory":
		return cache.NewMemoryCache(c.Policy()), nil
	case "redis":
		client := cache.NewRedisClient(cache.RedisConfig{
			Addr:     c.Redis.Addr,
			Username: c.Redis.Username,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		})
		return cache.NewRedisCache(client, c.Policy()), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unknown cache backend %q", ErrInvalid, c.Backend)
	}
}

// Validate reports every constraint violation in c.
func (c *Config) Validate() error {
	var errs []error

	oc := c.ObserveConfig()
	if err := oc.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalid, err))
	}

	if err := c.DefaultCommand.CallConfig().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: default_command: %w", ErrInvalid, err))
	}
	seen := make(map[string]bool, len(c.Commands))
	for i, cmd := range c.Commands {
		switch {
		case cmd.Name == "":
			errs = append(errs, fmt.Errorf("%w: commands[%d]: name is required", ErrInvalid, i))
			continue
		case seen[cmd.Name]:
			errs = append(errs, fmt.Errorf("%w: commands[%d]: duplicate call type %q", ErrInvalid, i, cmd.Name))
		}
		seen[cmd.Name] = true
		if err := cmd.CallConfig().Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%w: commands[%d] %s: %w", ErrInvalid, i, cmd.Name, err))
		}
	}

	switch c.Cache.Backend {
	case "", "memory", "redis", "none":
	default:
		errs = append(errs, fmt.Errorf("%w: unknown cache backend %q", ErrInvalid, c.Cache.Backend))
	}
	if c.Cache.DefaultTTLMS < 0 || c.Cache.MaxTTLMS < 0 {
		errs = append(errs, fmt.Errorf("%w: cache TTLs must not be negative", ErrInvalid))
	}
	if c.Auth.LeewayMS < 0 {
		errs = append(errs, fmt.Errorf("%w: auth leeway must not be negative", ErrInvalid))
	}

	return errors.Join(errs...)
}
