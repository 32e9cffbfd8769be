package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/jonwraymond/callguard/execctx"
)

// CommandMeta describes a command for telemetry purposes.
type CommandMeta struct {
	CallType string // Call type of the command (required)
	Service  string // Downstream service the command calls (optional)
}

// SpanName returns the deterministic span name for this command.
// Format: command.<callType>
func (m CommandMeta) SpanName() string {
	return "command." + m.CallType
}

func (m CommandMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String("command.call_type", m.CallType)}
	if m.Service != "" {
		attrs = append(attrs, attribute.String("command.service", m.Service))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with command span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a command execution.
	StartSpan(ctx context.Context, meta CommandMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	if t == nil {
		return newNoopTracer()
	}
	return &tracerImpl{tracer: t}
}

// StartSpan starts a span tagged with the command and the caller's
// correlation id.
func (t *tracerImpl) StartSpan(ctx context.Context, meta CommandMeta) (context.Context, trace.Span) {
	attrs := append(meta.attributes(), attribute.Bool("command.error", false))
	if ec, ok := execctx.FromContext(ctx); ok {
		attrs = append(attrs, attribute.String("correlation_id", ec.CorrelationID()))
	}

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("command.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

func newNoopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta CommandMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, err error) {
	span.End()
}

// PropagateSpan copies the caller's span into the worker context so spans
// started by the operation are children of the command span. It has the
// shape of resilience.ContextPropagator.
func PropagateSpan(caller, worker context.Context) context.Context {
	span := trace.SpanFromContext(caller)
	if !span.SpanContext().IsValid() {
		return worker
	}
	return trace.ContextWithSpan(worker, span)
}
