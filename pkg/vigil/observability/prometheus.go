package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// prometheusMetrics implements MetricsRecorder on a Prometheus registry.
type prometheusMetrics struct {
	compiles      *prometheus.CounterVec
	compileTime   prometheus.Histogram
	queries       *prometheus.CounterVec
	queryTime     *prometheus.HistogramVec
	eventsScanned *prometheus.CounterVec
	rowsReturned  *prometheus.CounterVec
	rowsSkipped   *prometheus.CounterVec
}

var latencyBuckets = []float64{0.1, 0.5, 1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500}

// NewPrometheusRecorder registers the engine metrics with reg and returns a
// recorder that updates them. Pass prometheus.DefaultRegisterer to expose
// them through promhttp.Handler(). Registering twice on the same registry
// panics.
func NewPrometheusRecorder(reg prometheus.Registerer) MetricsRecorder {
	factory := promauto.With(reg)
	return &prometheusMetrics{
		compiles: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_compiles_total",
			Help: "Total number of query compilations, labelled by status.",
		}, []string{"status"}),
		compileTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "vigil_compile_duration_ms",
			Help:    "Query compilation latency in milliseconds.",
			Buckets: latencyBuckets,
		}),
		queries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_queries_total",
			Help: "Total number of query executions, labelled by access path and status.",
		}, []string{"access", "status"}),
		queryTime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vigil_query_duration_ms",
			Help:    "Query execution latency in milliseconds.",
			Buckets: latencyBuckets,
		}, []string{"access"}),
		eventsScanned: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_events_scanned_total",
			Help: "Total number of events read by queries.",
		}, []string{"access"}),
		rowsReturned: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_rows_returned_total",
			Help: "Total number of result rows returned.",
		}, []string{"access"}),
		rowsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vigil_rows_skipped_total",
			Help: "Total number of rows skipped by runtime type errors.",
		}, []string{"access"}),
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordCompile records a compilation.
func (m *prometheusMetrics) RecordCompile(_ context.Context, duration time.Duration, err error) {
	m.compiles.WithLabelValues(status(err)).Inc()
	m.compileTime.Observe(durationMs(duration))
}

// RecordQuery records an execution.
func (m *prometheusMetrics) RecordQuery(_ context.Context, access string, duration time.Duration, err error) {
	m.queries.WithLabelValues(access, status(err)).Inc()
	m.queryTime.WithLabelValues(access).Observe(durationMs(duration))
}

// RecordRows records row counts for an execution.
func (m *prometheusMetrics) RecordRows(_ context.Context, access string, scanned, rows, skipped int64) {
	m.eventsScanned.WithLabelValues(access).Add(float64(scanned))
	m.rowsReturned.WithLabelValues(access).Add(float64(rows))
	m.rowsSkipped.WithLabelValues(access).Add(float64(skipped))
}
