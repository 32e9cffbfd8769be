package observe

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonwraymond/callguard/resilience"
)

// CommandHooks instruments a resilience.Executor with tracing, metrics and
// logging.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Context: BeforeExecute returns ctx with the command span; the executor
//     passes that context back to AfterExecute, which ends the span.
//   - Errors: command errors are recorded, never altered.
type CommandHooks struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
	meta    func(callType string) CommandMeta
}

var _ resilience.Hooks = (*CommandHooks)(nil)

// HooksOption configures CommandHooks.
type HooksOption func(*CommandHooks)

// WithServiceNames attributes call types to the downstream services they call.
func WithServiceNames(services map[string]string) HooksOption {
	return func(h *CommandHooks) {
		h.meta = func(callType string) CommandMeta {
			return CommandMeta{CallType: callType, Service: services[callType]}
		}
	}
}

// NewCommandHooks creates hooks from the given components. Nil components
// are replaced by no-ops.
func NewCommandHooks(tracer Tracer, metrics Metrics, logger Logger, opts ...HooksOption) *CommandHooks {
	if tracer == nil {
		tracer = newNoopTracer()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = &noopLogger{}
	}
	h := &CommandHooks{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
		meta:    func(callType string) CommandMeta { return CommandMeta{CallType: callType} },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// CommandHooksFromObserver creates hooks from an Observer.
func CommandHooksFromObserver(obs Observer, opts ...HooksOption) (*CommandHooks, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	metrics, err := newMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewCommandHooks(NewTracer(obs.Tracer()), metrics, obs.Logger(), opts...), nil
}

// BeforeExecute starts the command span.
func (h *CommandHooks) BeforeExecute(ctx context.Context, callType string) context.Context {
	ctx, _ = h.tracer.StartSpan(ctx, h.meta(callType))
	return ctx
}

// AfterExecute ends the command span, records metrics and logs the result.
func (h *CommandHooks) AfterExecute(ctx context.Context, exec resilience.Execution) {
	meta := h.meta(exec.CallType)
	logger := h.logger.WithCommand(meta)

	fields := []Field{
		{Key: "duration_ms", Value: float64(exec.Duration.Microseconds()) / 1000},
	}

	if exec.Canceled {
		h.endSpan(ctx, exec, exec.Err)
		logger.Warn(ctx, "command abandoned by caller",
			append(fields, Field{Key: "error", Value: exec.Err.Error()})...)
		return
	}

	if !errors.Is(exec.Err, resilience.ErrExecutorClosed) {
		h.metrics.RecordExecution(ctx, meta, exec.Outcome, exec.Duration)
	}
	fields = append(fields, Field{Key: "outcome", Value: exec.Outcome.String()})

	final := exec.Err
	if exec.FallbackUsed {
		final = exec.FallbackErr
		h.metrics.RecordFallback(ctx, meta, exec.FallbackErr)
	}
	h.endSpan(ctx, exec, final)

	switch {
	case exec.Err == nil:
		logger.Debug(ctx, "command completed", fields...)
	case exec.FallbackUsed && exec.FallbackErr == nil:
		logger.Warn(ctx, "command failed, fallback used",
			append(fields, Field{Key: "error", Value: exec.Err.Error()})...)
	case exec.FallbackUsed:
		logger.Error(ctx, "command and fallback failed",
			append(fields,
				Field{Key: "error", Value: exec.Err.Error()},
				Field{Key: "fallback_error", Value: exec.FallbackErr.Error()},
			)...)
	default:
		logger.Error(ctx, "command failed",
			append(fields, Field{Key: "error", Value: exec.Err.Error()})...)
	}
}

func (h *CommandHooks) endSpan(ctx context.Context, exec resilience.Execution, err error) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("command.outcome", exec.Outcome.String()),
		attribute.Bool("command.fallback", exec.FallbackUsed),
		attribute.Bool("command.canceled", exec.Canceled),
	)
	h.tracer.EndSpan(span, err)
}

// OnStateChange logs and counts a circuit breaker transition.
func (h *CommandHooks) OnStateChange(callType string, from, to resilience.State) {
	meta := h.meta(callType)
	ctx := context.Background()

	h.metrics.RecordStateChange(ctx, meta, from, to)

	fields := []Field{
		{Key: "from", Value: from.String()},
		{Key: "to", Value: to.String()},
	}
	if to == resilience.StateOpen {
		h.logger.WithCommand(meta).Warn(ctx, "circuit opened", fields...)
		return
	}
	h.logger.WithCommand(meta).Info(ctx, "circuit state changed", fields...)
}

// ExecutorOptions returns the executor options that install h and propagate
// the command span to workers.
func (h *CommandHooks) ExecutorOptions() []resilience.ExecutorOption {
	return []resilience.ExecutorOption{
		resilience.WithHooks(h),
		resilience.WithContextPropagator(PropagateSpan),
	}
}
