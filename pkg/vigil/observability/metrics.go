package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records query engine metrics.
// Use NewMetricsRecorder() for OTel metrics, NewPrometheusRecorder() for a
// Prometheus registry, or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordCompile records a compilation with its duration and error status.
	RecordCompile(ctx context.Context, duration time.Duration, err error)

	// RecordQuery records a finished execution, labelled by access path.
	RecordQuery(ctx context.Context, access string, duration time.Duration, err error)

	// RecordRows records how many events an execution read, how many rows
	// it returned and how many it skipped.
	RecordRows(ctx context.Context, access string, scanned, rows, skipped int64)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	compiles       metric.Int64Counter
	compileErrors  metric.Int64Counter
	compileLatency metric.Float64Histogram
	queries        metric.Int64Counter
	queryErrors    metric.Int64Counter
	queryLatency   metric.Float64Histogram
	eventsScanned  metric.Int64Counter
	rowsReturned   metric.Int64Counter
	rowsSkipped    metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("vigil")
	m := &otelMetrics{}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.compiles, "vigil.compile.count", "Number of query compilations"},
		{&m.compileErrors, "vigil.compile.errors", "Number of rejected queries"},
		{&m.queries, "vigil.query.count", "Number of query executions"},
		{&m.queryErrors, "vigil.query.errors", "Number of failed query executions"},
		{&m.eventsScanned, "vigil.events.scanned", "Number of events read by queries"},
		{&m.rowsReturned, "vigil.rows.returned", "Number of result rows returned"},
		{&m.rowsSkipped, "vigil.rows.skipped", "Number of rows skipped by runtime type errors"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	var err error
	m.compileLatency, err = meter.Float64Histogram("vigil.compile.latency_ms",
		metric.WithDescription("Query compilation latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	m.queryLatency, err = meter.Float64Histogram("vigil.query.latency_ms",
		metric.WithDescription("Query execution latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordCompile records a compilation.
func (m *otelMetrics) RecordCompile(ctx context.Context, duration time.Duration, err error) {
	m.compiles.Add(ctx, 1)
	m.compileLatency.Record(ctx, durationMs(duration))
	if err != nil {
		m.compileErrors.Add(ctx, 1)
	}
}

// RecordQuery records an execution.
func (m *otelMetrics) RecordQuery(ctx context.Context, access string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("access", access))
	m.queries.Add(ctx, 1, attrs)
	m.queryLatency.Record(ctx, durationMs(duration), attrs)
	if err != nil {
		m.queryErrors.Add(ctx, 1, attrs)
	}
}

// RecordRows records row counts for an execution.
func (m *otelMetrics) RecordRows(ctx context.Context, access string, scanned, rows, skipped int64) {
	attrs := metric.WithAttributes(attribute.String("access", access))
	m.eventsScanned.Add(ctx, scanned, attrs)
	m.rowsReturned.Add(ctx, rows, attrs)
	m.rowsSkipped.Add(ctx, skipped, attrs)
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
