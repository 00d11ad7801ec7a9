package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTracingTest installs an in-memory span exporter for the test.
func setupTracingTest(t *testing.T) *tracetest.InMemoryExporter {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	tracer = otel.Tracer("vigil")

	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("shutting down tracer provider: %v", err)
		}
	})
	return exporter
}

func attrValue(attrs []attribute.KeyValue, key string) string {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value.AsString()
		}
	}
	return ""
}

func TestSpanManager_CompileSpan(t *testing.T) {
	exporter := setupTracingTest(t)
	sm := NewSpanManager()

	_, span := sm.StartCompileSpan(context.Background(), "FROM e IN events PROJECT INTO {id: e.id}")
	sm.EndSpanWithError(span, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "vigil.compile", spans[0].Name)
	assert.Equal(t, "FROM e IN events PROJECT INTO {id: e.id}", attrValue(spans[0].Attributes, "query.text"))
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
}

func TestSpanManager_QuerySpanWithError(t *testing.T) {
	exporter := setupTracingTest(t)
	sm := NewSpanManager()

	ctx, span := sm.StartQuerySpan(context.Background(), "q-7", "Scan(full-scan) -> Project({id: e.id})")
	sm.AddSpanEvent(ctx, "first-row", attribute.Int("rows", 1))
	sm.EndSpanWithError(span, errors.New("store closed"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	s := spans[0]
	assert.Equal(t, "vigil.query", s.Name)
	assert.Equal(t, "q-7", attrValue(s.Attributes, "query.id"))
	assert.Equal(t, codes.Error, s.Status.Code)
	assert.Equal(t, "store closed", s.Status.Description)
	require.Len(t, s.Events, 2) // the span event and the recorded error
	assert.Equal(t, "first-row", s.Events[0].Name)
}

func TestEndSpanWithError_NilSpan(t *testing.T) {
	assert.NotPanics(t, func() { EndSpanWithError(nil, errors.New("x")) })
}

func TestAddSpanEvent_NoSpan(t *testing.T) {
	assert.NotPanics(t, func() { AddSpanEvent(context.Background(), "nothing") })
}
