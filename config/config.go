package config

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides: CALLGUARD_LOGGING_LEVEL sets
// logging.level.
const EnvPrefix = "CALLGUARD"

// Config is the complete configuration of a service using callguard.
type Config struct {
	Service string `mapstructure:"service"`
	Version string `mapstructure:"version"`

	Logging LoggingConfig `mapstructure:"logging"`
	Tracing TracingConfig `mapstructure:"tracing"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Cache   CacheConfig   `mapstructure:"cache"`

	// DefaultCommand applies to call types without an entry in Commands.
	DefaultCommand CommandConfig `mapstructure:"default_command"`

	// Commands configures individual call types. A list rather than a map
	// so call type names keep their case.
	Commands []CommandConfig `mapstructure:"commands"`
}

// LoggingConfig mirrors observe.LoggingConfig.
type LoggingConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// TracingConfig mirrors observe.TracingConfig.
type TracingConfig struct {
	Enabled   bool    `mapstructure:"enabled"`
	Exporter  string  `mapstructure:"exporter"`
	SamplePct float64 `mapstructure:"sample_pct"`
}

// MetricsConfig mirrors observe.MetricsConfig.
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Exporter string `mapstructure:"exporter"`
}

// AuthConfig configures decoding of inbound identity tokens. An empty
// SigningKey disables decoding.
type AuthConfig struct {
	SigningKey string `mapstructure:"signing_key"`
	Issuer     string `mapstructure:"issuer"`
	Audience   string `mapstructure:"audience"`
	UserClaim  string `mapstructure:"user_claim"`
	OrgClaim   string `mapstructure:"org_claim"`
	LeewayMS   int64  `mapstructure:"leeway_ms"`
}

// CacheConfig configures the last-known-good fallback cache.
type CacheConfig struct {
	// Backend is memory, redis or none.
	// Default: "memory"
	Backend      string      `mapstructure:"backend"`
	DefaultTTLMS int64       `mapstructure:"default_ttl_ms"`
	MaxTTLMS     int64       `mapstructure:"max_ttl_ms"`
	MaxEntries   int         `mapstructure:"max_entries"`
	Redis        RedisConfig `mapstructure:"redis"`
}

// RedisConfig locates the Redis server of the redis cache backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CommandConfig is the file form of resilience.CallConfig. Zero fields take
// the resilience defaults.
type CommandConfig struct {
	Name                     string  `mapstructure:"name"`
	CoreSize                 int     `mapstructure:"core_size"`
	MaxQueueSize             int     `mapstructure:"max_queue_size"`
	TimeoutMS                int64   `mapstructure:"timeout_ms"`
	RollingWindowMS          int64   `mapstructure:"rolling_window_ms"`
	NumBuckets               int     `mapstructure:"num_buckets"`
	RequestVolumeThreshold   int64   `mapstructure:"request_volume_threshold"`
	ErrorThresholdPercentage float64 `mapstructure:"error_threshold_percentage"`
	SleepWindowMS            int64   `mapstructure:"sleep_window_ms"`
}

// Load reads the configuration file at path, applies CALLGUARD_*
// environment overrides and expands ${VAR} references. The format follows
// the file extension (yaml, json, toml). An empty path loads defaults and
// environment only.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrRead, path, err)
		}
	}
	return decode(v)
}

// Parse is Load for an in-memory document of the given format.
func Parse(r io.Reader, format string) (*Config, error) {
	v := newViper()
	v.SetConfigType(format)
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// setDefaults registers every scalar key so environment overrides reach
// Unmarshal even when the file omits the key.
func setDefaults(v *viper.Viper) {
	v.SetDefault("service", "")
	v.SetDefault("version", "")

	v.SetDefault("logging.enabled", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 7)
	v.SetDefault("logging.max_age_days", 7)
	v.SetDefault("logging.compress", false)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.sample_pct", 1.0)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.exporter", "prometheus")

	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.audience", "")
	v.SetDefault("auth.user_claim", "sub")
	v.SetDefault("auth.org_claim", "org_id")
	v.SetDefault("auth.leeway_ms", 0)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.default_ttl_ms", (5 * time.Minute).Milliseconds())
	v.SetDefault("cache.max_ttl_ms", time.Hour.Milliseconds())
	v.SetDefault("cache.max_entries", 1024)
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.username", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)

	for _, k := range []string{
		"core_size", "max_queue_size", "timeout_ms", "rolling_window_ms", "num_buckets",
		"request_volume_threshold", "error_threshold_percentage", "sleep_window_ms",
	} {
		v.SetDefault("default_command."+k, 0)
	}
}

func decode(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
	if err := c.expand(); err != nil {
		return nil, err
	}
	return &c, nil
}

// expand resolves ${VAR} references in the string fields that commonly hold
// secrets or deployment specific values.
func (c *Config) expand() error {
	fields := []*string{
		&c.Service,
		&c.Logging.File,
		&c.Auth.SigningKey,
		&c.Auth.Issuer,
		&c.Auth.Audience,
		&c.Cache.Redis.Addr,
		&c.Cache.Redis.Username,
		&c.Cache.Redis.Password,
	}

	var errs []error
	for _, f := range fields {
		out, err := ExpandEnvStrict(*f)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		*f = out
	}
	return errors.Join(errs...)
}
