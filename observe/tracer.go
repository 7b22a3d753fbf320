package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// OpMeta describes one instrumented operation.
type OpMeta struct {
	Service string // login target, e.g. "sophia" (required)
	Op      string // operation, e.g. "fetch"
	Key     string // hashed cache key, never a raw identity (optional)
}

// SpanName returns the deterministic span name.
// Format: session.<op>.<service>
func (m OpMeta) SpanName() string {
	op := m.Op
	if op == "" {
		op = "fetch"
	}
	return "session." + op + "." + m.Service
}

func (m OpMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("session.service", m.Service),
	}
	if m.Op != "" {
		attrs = append(attrs, attribute.String("session.op", m.Op))
	}
	return attrs
}

func (m OpMeta) logAttrs() []any {
	attrs := []any{slog.String("service", m.Service)}
	if m.Op != "" {
		attrs = append(attrs, slog.String("op", m.Op))
	}
	if m.Key != "" {
		attrs = append(attrs, slog.String("key", m.Key))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with operation span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for an operation.
	StartSpan(ctx context.Context, meta OpMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	if t == nil {
		t = tracenoop.NewTracerProvider().Tracer("noop")
	}
	return &tracerImpl{tracer: t}
}

// StartSpan starts a span carrying the operation attributes. The cache key
// is attached as an attribute because it is already a hash.
func (t *tracerImpl) StartSpan(ctx context.Context, meta OpMeta) (context.Context, trace.Span) {
	attrs := append(meta.attributes(), attribute.Bool("session.error", false))
	if meta.Key != "" {
		attrs = append(attrs, attribute.String("session.key", meta.Key))
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
		span.SetAttributes(attribute.Bool("session.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
