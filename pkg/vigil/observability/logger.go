// Package observability provides logging, metrics and tracing hooks for the
// query engine.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry or Prometheus
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds query context to a logger.
// Returns a new logger with a query_id field.
//
// Example:
//
//	enriched := EnrichLogger(logger, "q-123")
//	enriched.Info("scanning") // includes query_id
func EnrichLogger(logger *slog.Logger, queryID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(slog.String("query_id", queryID))
}

// LogCompile logs a successful compilation.
func LogCompile(logger *slog.Logger, text string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("query compiled",
		slog.String("query", text),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogCompileError logs a query rejected by the parser or analyzer.
func LogCompileError(logger *slog.Logger, text string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("query rejected",
		slog.String("query", text),
		slog.String("error", err.Error()),
	)
}

// LogQueryStart logs the start of an execution.
func LogQueryStart(logger *slog.Logger, queryID, plan string) {
	if logger == nil {
		return
	}
	logger.Info("query starting",
		slog.String("query_id", queryID),
		slog.String("plan", plan),
	)
}

// LogQueryComplete logs a finished execution.
func LogQueryComplete(logger *slog.Logger, queryID string, durationMs float64, scanned, rows, skipped int) {
	if logger == nil {
		return
	}
	logger.Info("query completed",
		slog.String("query_id", queryID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("events_scanned", scanned),
		slog.Int("rows", rows),
		slog.Int("rows_skipped", skipped),
	)
}

// LogQueryError logs an execution that ended with an error.
func LogQueryError(logger *slog.Logger, queryID string, err error, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Error("query failed",
		slog.String("query_id", queryID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogRowSkipped logs a row excluded by a runtime type error.
func LogRowSkipped(logger *slog.Logger, stage string, err error) {
	if logger == nil {
		return
	}
	logger.Debug("row skipped",
		slog.String("stage", stage),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
