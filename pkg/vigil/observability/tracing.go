package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the vigil tracer instance.
// Uses the global OTel tracer provider.
var tracer = otel.Tracer("vigil")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartCompileSpan starts a span covering parse, analysis and planning.
	StartCompileSpan(ctx context.Context, text string) (context.Context, trace.Span)

	// StartQuerySpan starts a span for one execution. It ends when the
	// rows are closed.
	StartQuerySpan(ctx context.Context, queryID, plan string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// The span manager uses the global OTel tracer provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

func (m *otelSpanManager) StartCompileSpan(ctx context.Context, text string) (context.Context, trace.Span) {
	return StartCompileSpan(ctx, text)
}

func (m *otelSpanManager) StartQuerySpan(ctx context.Context, queryID, plan string) (context.Context, trace.Span) {
	return StartQuerySpan(ctx, queryID, plan)
}

func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	EndSpanWithError(span, err)
}

func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	AddSpanEvent(ctx, name, attrs...)
}

// StartCompileSpan starts a compile span on the global tracer.
func StartCompileSpan(ctx context.Context, text string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "vigil.compile",
		trace.WithAttributes(attribute.String("query.text", text)),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartQuerySpan starts an execution span on the global tracer.
func StartQuerySpan(ctx context.Context, queryID, plan string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "vigil.query",
		trace.WithAttributes(
			attribute.String("query.id", queryID),
			attribute.String("query.plan", plan),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span in context.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
