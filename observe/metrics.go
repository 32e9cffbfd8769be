package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jonwraymond/callguard/resilience"
)

// Metric names.
const (
	MetricExecutions       = "command.exec.total"
	MetricDuration         = "command.exec.duration_ms"
	MetricFallbacks        = "command.fallback.total"
	MetricStateChanges     = "command.circuit.transitions"
	MetricCircuitState     = "command.circuit.state"
	MetricErrorPercentage  = "command.window.error_pct"
	MetricBulkheadActive   = "command.bulkhead.active"
	MetricBulkheadQueued   = "command.bulkhead.queued"
	MetricBulkheadRejected = "command.bulkhead.rejected"
)

// Metrics records command execution metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordExecution records one finished command by outcome.
	RecordExecution(ctx context.Context, meta CommandMeta, outcome resilience.Outcome, duration time.Duration)

	// RecordFallback records one fallback invocation and whether it failed.
	RecordFallback(ctx context.Context, meta CommandMeta, err error)

	// RecordStateChange records a circuit breaker transition.
	RecordStateChange(ctx context.Context, meta CommandMeta, from, to resilience.State)
}

type metricsImpl struct {
	executions   metric.Int64Counter
	fallbacks    metric.Int64Counter
	transitions  metric.Int64Counter
	durationHist metric.Float64Histogram
}

// NewMetrics creates the command instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	return newMetrics(meter)
}

func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	executions, err := meter.Int64Counter(
		MetricExecutions,
		metric.WithDescription("Total number of command executions by outcome"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	fallbacks, err := meter.Int64Counter(
		MetricFallbacks,
		metric.WithDescription("Total number of fallback invocations"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	transitions, err := meter.Int64Counter(
		MetricStateChanges,
		metric.WithDescription("Circuit breaker state transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		MetricDuration,
		metric.WithDescription("Command execution duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		executions:   executions,
		fallbacks:    fallbacks,
		transitions:  transitions,
		durationHist: durationHist,
	}, nil
}

func (m *metricsImpl) RecordExecution(ctx context.Context, meta CommandMeta, outcome resilience.Outcome, duration time.Duration) {
	attrs := append(meta.attributes(), attribute.String("command.outcome", outcome.String()))
	opt := metric.WithAttributes(attrs...)

	m.executions.Add(ctx, 1, opt)
	m.durationHist.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

func (m *metricsImpl) RecordFallback(ctx context.Context, meta CommandMeta, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	attrs := append(meta.attributes(), attribute.String("fallback.result", result))
	m.fallbacks.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *metricsImpl) RecordStateChange(ctx context.Context, meta CommandMeta, from, to resilience.State) {
	attrs := append(meta.attributes(),
		attribute.String("circuit.from", from.String()),
		attribute.String("circuit.to", to.String()),
	)
	m.transitions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

type noopMetrics struct{}

func (noopMetrics) RecordExecution(context.Context, CommandMeta, resilience.Outcome, time.Duration) {}
func (noopMetrics) RecordFallback(context.Context, CommandMeta, error)                           {}
func (noopMetrics) RecordStateChange(context.Context, CommandMeta, resilience.State, resilience.State) {
}

// RegisterExecutorGauges exports per call type breaker and bulkhead state as
// observable gauges. The circuit state gauge reports 0 closed, 1 open and
// 2 half-open. Unregister the returned registration before closing exec.
func RegisterExecutorGauges(meter metric.Meter, exec *resilience.Executor) (metric.Registration, error) {
	if exec == nil {
		return nil, ErrNilExecutor
	}

	state, err := meter.Int64ObservableGauge(MetricCircuitState,
		metric.WithDescription("Circuit breaker state (0 closed, 1 open, 2 half-open)"))
	if err != nil {
		return nil, err
	}
	errPct, err := meter.Float64ObservableGauge(MetricErrorPercentage,
		metric.WithDescription("Error percentage over the rolling window"),
		metric.WithUnit("%"))
	if err != nil {
		return nil, err
	}
	active, err := meter.Int64ObservableGauge(MetricBulkheadActive,
		metric.WithDescription("Bulkhead workers running an operation"),
		metric.WithUnit("{worker}"))
	if err != nil {
		return nil, err
	}
	queued, err := meter.Int64ObservableGauge(MetricBulkheadQueued,
		metric.WithDescription("Operations waiting for a bulkhead worker"),
		metric.WithUnit("{call}"))
	if err != nil {
		return nil, err
	}
	rejected, err := meter.Int64ObservableCounter(MetricBulkheadRejected,
		metric.WithDescription("Submissions rejected by a saturated bulkhead"),
		metric.WithUnit("{call}"))
	if err != nil {
		return nil, err
	}

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		for _, m := range exec.AllMetrics() {
			opt := metric.WithAttributes(attribute.String("command.call_type", m.CallType))
			o.ObserveInt64(state, int64(m.Breaker.State), opt)
			o.ObserveFloat64(errPct, m.Breaker.Snapshot.ErrorPercentage(), opt)
			o.ObserveInt64(active, int64(m.Bulkhead.Active), opt)
			o.ObserveInt64(queued, int64(m.Bulkhead.Queued), opt)
			o.ObserveInt64(rejected, m.Bulkhead.Rejected, opt)
		}
		return nil
	}, state, errPct, active, queued, rejected)
}
