package observe

import (
	"errors"

	"github.com/jonwraymond/callguard/observe/exporters"
)

// Errors returned by Config.Validate.
var (
	ErrMissingServiceName     = errors.New("observe: service name is required")
	ErrInvalidSamplePct       = errors.New("observe: sample percentage must be between 0.0 and 1.0")
	ErrInvalidTracingExporter = errors.New("observe: invalid tracing exporter")
	ErrInvalidMetricsExporter = errors.New("observe: invalid metrics exporter")
	ErrInvalidLogLevel        = errors.New("observe: invalid log level")
)

var (
	// ErrNilObserver is returned by CommandHooksFromObserver for a nil
	// Observer.
	ErrNilObserver = errors.New("observe: observer is nil")

	// ErrNilExecutor is returned by RegisterExecutorGauges for a nil
	// executor.
	ErrNilExecutor = errors.New("observe: executor is nil")

	// ErrEndpointNotConfigured is returned when the otlp exporter is
	// selected without OTEL_EXPORTER_OTLP_ENDPOINT.
	ErrEndpointNotConfigured = exporters.ErrEndpointNotConfigured
)

// Sampling ratio bounds accepted for Tracing.SamplePct.
const (
	MinSamplePct = 0.0
	MaxSamplePct = 1.0
)

// Accepted exporter and level names. The empty string selects the default.
var (
	ValidTracingExporters = []string{"otlp", "jaeger", "stdout", "none", ""}
	ValidMetricsExporters = []string{"otlp", "prometheus", "stdout", "none", ""}
	ValidLogLevels        = []string{"debug", "info", "warn", "error", ""}
)

// RedactedFields are field keys whose values are replaced by [REDACTED] in
// log output. The execution context's auth token is never logged by
// contextFields; these cover fields callers pass explicitly.
var RedactedFields = []string{
	"auth_token",
	"authorization",
	"token",
	"password",
	"secret",
	"api_key",
	"apiKey",
	"credential",
	"signing_key",
}
