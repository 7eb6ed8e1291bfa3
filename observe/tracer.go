package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// ProbeMeta describes a probe for telemetry purposes.
type ProbeMeta struct {
	Kind   string // resource|dependency|full (required)
	Target string // dependency service name (optional)
}

// SpanName returns the deterministic span name for this probe.
// Format: probe.<kind>.<target> or probe.<kind>
func (m ProbeMeta) SpanName() string {
	if m.Target != "" {
		return "probe." + m.Kind + "." + m.Target
	}
	return "probe." + m.Kind
}

func (m ProbeMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("probe.kind", m.Kind),
	}
	if m.Target != "" {
		attrs = append(attrs, attribute.String("probe.target", m.Target))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with probe span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a probe.
	StartSpan(ctx context.Context, meta ProbeMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording the probe status and any failure.
	EndSpan(span trace.Span, status string, err error)
}

// tracerImpl is the concrete implementation of Tracer.
type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a new span with probe metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta ProbeMeta) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(meta.attributes()...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpan ends the span. A failing probe is recorded as a span error.
func (t *tracerImpl) EndSpan(span trace.Span, status string, err error) {
	span.SetAttributes(
		attribute.String("probe.status", status),
		attribute.Bool("probe.failed", err != nil),
	)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// noopTracer is a tracer that does nothing.
type noopTracer struct {
	noop trace.Tracer
}

// NewNoopTracer creates a no-op tracer.
func NewNoopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta ProbeMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, status string, err error) {
	span.End()
}
