package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonwraymond/callguard/resilience"
)

const licensingYAML = `
service: licensing-service
version: 1.4.0
logging:
  level: debug
tracing:
  enabled: true
  exporter: none
  sample_pct: 0.25
auth:
  signing_key: ${LICENSING_JWT_KEY}
  issuer: ostock
cache:
  backend: memory
  default_ttl_ms: 60000
default_command:
  timeout_ms: 2000
commands:
  - name: licenseByOrg
    core_size: 30
    max_queue_size: 10
    timeout_ms: 12000
    rolling_window_ms: 15000
    num_buckets: 5
    request_volume_threshold: 10
    error_threshold_percentage: 75
    sleep_window_ms: 7000
  - name: orgById
    core_size: 5
`

func parseYAML(t *testing.T, doc string) *Config {
	t.Helper()
	c, err := Parse(strings.NewReader(doc), "yaml")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return c
}

func TestParse(t *testing.T) {
	t.Setenv("LICENSING_JWT_KEY", "s3cret")
	c := parseYAML(t, licensingYAML)

	if c.Service != "licensing-service" || c.Version != "1.4.0" {
		t.Errorf("Service/Version = %q/%q", c.Service, c.Version)
	}
	if c.Logging.Level != "debug" || !c.Logging.Enabled {
		t.Errorf("Logging = %+v, want enabled debug", c.Logging)
	}
	if c.Logging.MaxSizeMB != 100 {
		t.Errorf("Logging.MaxSizeMB = %d, want default 100", c.Logging.MaxSizeMB)
	}
	if c.Tracing.SamplePct != 0.25 {
		t.Errorf("Tracing.SamplePct = %v, want 0.25", c.Tracing.SamplePct)
	}
	if c.Auth.SigningKey != "s3cret" {
		t.Errorf("Auth.SigningKey = %q, want expanded value", c.Auth.SigningKey)
	}
	if c.Auth.OrgClaim != "org_id" {
		t.Errorf("Auth.OrgClaim = %q, want default org_id", c.Auth.OrgClaim)
	}
	if c.Cache.DefaultTTLMS != 60000 || c.Cache.MaxTTLMS != time.Hour.Milliseconds() {
		t.Errorf("Cache = %+v", c.Cache)
	}
	if len(c.Commands) != 2 {
		t.Fatalf("len(Commands) = %d, want 2", len(c.Commands))
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestCallConfigs(t *testing.T) {
	t.Setenv("LICENSING_JWT_KEY", "s3cret")
	c := parseYAML(t, licensingYAML)

	cfgs := c.CallConfigs()
	got, ok := cfgs["licenseByOrg"]
	if !ok {
		t.Fatalf("CallConfigs() = %v, want licenseByOrg with its case kept", cfgs)
	}
	want := resilience.CallConfig{
		CoreSize:                 30,
		MaxQueueSize:             10,
		Timeout:                  12 * time.Second,
		RollingWindow:            15 * time.Second,
		NumBuckets:               5,
		RequestVolumeThreshold:   10,
		ErrorThresholdPercentage: 75,
		SleepWindow:              7 * time.Second,
	}
	if got != want {
		t.Errorf("licenseByOrg = %+v, want %+v", got, want)
	}
	if cfgs["orgById"].CoreSize != 5 {
		t.Errorf("orgById.CoreSize = %d, want 5", cfgs["orgById"].CoreSize)
	}
	if c.DefaultCommand.CallConfig().Timeout != 2*time.Second {
		t.Errorf("default timeout = %v, want 2s", c.DefaultCommand.CallConfig().Timeout)
	}
}

func TestExecutorOptions(t *testing.T) {
	t.Setenv("LICENSING_JWT_KEY", "s3cret")
	c := parseYAML(t, licensingYAML)

	exec, err := resilience.NewExecutor(c.ExecutorOptions()...)
	if err != nil {
		t.Fatalf("NewExecutor() error = %v", err)
	}
	defer exec.Close()

	types := exec.CallTypes()
	if len(types) != 2 {
		t.Errorf("CallTypes() = %v, want configured types", types)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LICENSING_JWT_KEY", "s3cret")
	t.Setenv("CALLGUARD_LOGGING_LEVEL", "warn")
	t.Setenv("CALLGUARD_CACHE_BACKEND", "none")
	t.Setenv("CALLGUARD_DEFAULT_COMMAND_CORE_SIZE", "4")
	t.Setenv("CALLGUARD_METRICS_ENABLED", "true")

	c := parseYAML(t, licensingYAML)

	if c.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", c.Logging.Level)
	}
	if c.Cache.Backend != "none" {
		t.Errorf("Cache.Backend = %q, want none", c.Cache.Backend)
	}
	if c.DefaultCommand.CoreSize != 4 {
		t.Errorf("DefaultCommand.CoreSize = %d, want 4", c.DefaultCommand.CoreSize)
	}
	if !c.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}
}

func TestParse_MissingEnv(t *testing.T) {
	_, err := Parse(strings.NewReader("auth:\n  signing_key: ${CALLGUARD_TEST_UNSET_KEY}\n"), "yaml")
	if !errors.Is(err, ErrMissingEnv) {
		t.Errorf("Parse() error = %v, want ErrMissingEnv", err)
	}
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse(strings.NewReader("commands: [\n"), "yaml")
	if !errors.Is(err, ErrRead) {
		t.Errorf("Parse() error = %v, want ErrRead", err)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("LICENSING_JWT_KEY", "s3cret")

	dir := t.TempDir()
	path := filepath.Join(dir, "callguard.json")
	doc := `{"service": "licensing-service", "commands": [{"name": "licenseByOrg", "timeout_ms": 12000}]}`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.Service != "licensing-service" {
		t.Errorf("Service = %q", c.Service)
	}
	if got := c.CallConfigs()["licenseByOrg"].Timeout; got != 12*time.Second {
		t.Errorf("licenseByOrg timeout = %v, want 12s", got)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); !errors.Is(err, ErrRead) {
		t.Errorf("Load(missing) error = %v, want ErrRead", err)
	}
}

func TestLoad_NoFile(t *testing.T) {
	t.Setenv("CALLGUARD_SERVICE", "from-env")

	c, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if c.Service != "from-env" {
		t.Errorf("Service = %q, want from-env", c.Service)
	}
	if c.Cache.Backend != "memory" {
		t.Errorf("Cache.Backend = %q, want memory", c.Cache.Backend)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Service:  "licensing-service",
			Logging:  LoggingConfig{Enabled: true, Level: "info"},
			Cache:    CacheConfig{Backend: "memory"},
			Commands: []CommandConfig{{Name: "licenseByOrg"}},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"valid", func(*Config) {}, ""},
		{"no service", func(c *Config) { c.Service = "" }, "service name"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "log level"},
		{"unnamed command", func(c *Config) { c.Commands = append(c.Commands, CommandConfig{}) }, "name is required"},
		{"duplicate command", func(c *Config) { c.Commands = append(c.Commands, CommandConfig{Name: "licenseByOrg"}) }, "duplicate"},
		{"indivisible window", func(c *Config) {
			c.Commands[0].RollingWindowMS = 10000
			c.Commands[0].NumBuckets = 3
		}, "divisible"},
		{"negative queue", func(c *Config) { c.DefaultCommand.MaxQueueSize = -1 }, "default_command"},
		{"bad backend", func(c *Config) { c.Cache.Backend = "memcached" }, "memcached"},
		{"negative ttl", func(c *Config) { c.Cache.MaxTTLMS = -1 }, "TTL"},
		{"negative leeway", func(c *Config) { c.Auth.LeewayMS = -1 }, "leeway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("Validate() error = %v, want ErrInvalid", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() error = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}
