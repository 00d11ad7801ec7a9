package vigil

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/randalmurphal/vigil/pkg/vigil/exec"
	"github.com/randalmurphal/vigil/pkg/vigil/observability"
	"github.com/randalmurphal/vigil/pkg/vigil/value"
)

// Rows is the lazy result of one execution. It is not safe for concurrent
// use.
type Rows struct {
	engine *Engine
	cursor *exec.Cursor
	id     string
	access string

	ctx    context.Context
	cancel context.CancelFunc
	span   trace.Span
	logger *slog.Logger
	start  time.Time

	cur      value.Value
	err      error
	closed   bool
	finished bool
}

// ID returns the query id used in logs and spans.
func (r *Rows) ID() string { return r.id }

// Next advances to the next row. It returns false when the rows are
// exhausted or an error ended the query; check Err afterwards.
func (r *Rows) Next() bool {
	if r.closed {
		if r.err == nil {
			r.err = ErrRowsClosed
		}
		return false
	}
	if r.finished {
		return false
	}

	v, ok, err := r.cursor.Next()
	if err != nil {
		r.err = &RuntimeError{QueryID: r.id, Err: err}
		r.cur = value.Null()
		r.finish(r.err)
		return false
	}
	if !ok {
		r.cur = value.Null()
		r.finish(nil)
		return false
	}
	r.cur = v
	return true
}

// Value returns the current row. It is Null before the first call to Next
// and after the rows are exhausted.
func (r *Rows) Value() value.Value { return r.cur }

// Err returns the error that ended the rows, if any.
func (r *Rows) Err() error { return r.err }

// Stats returns the execution counters so far.
func (r *Rows) Stats() exec.Stats {
	if r.cursor == nil {
		return exec.Stats{}
	}
	return r.cursor.Stats()
}

// All reads every remaining row and closes the rows.
func (r *Rows) All() ([]value.Value, error) {
	if r.closed {
		return nil, ErrRowsClosed
	}
	defer r.Close()
	var out []value.Value
	for r.Next() {
		out = append(out, r.Value())
	}
	return out, r.Err()
}

// Close releases the execution. It is safe to call more than once.
func (r *Rows) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.finish(nil)
	return nil
}

// finish releases the cursor and records the outcome exactly once.
func (r *Rows) finish(err error) {
	if r.finished {
		return
	}
	r.finished = true
	if r.cursor != nil {
		r.cursor.Close()
	}

	duration := time.Since(r.start)
	durationMs := float64(duration.Microseconds()) / 1000
	stats := r.Stats()
	cfg := r.engine.cfg

	cfg.metrics.RecordQuery(r.ctx, r.access, duration, err)
	cfg.metrics.RecordRows(r.ctx, r.access, int64(stats.Scanned), int64(stats.Rows), int64(stats.Skipped))
	cfg.spans.EndSpanWithError(r.span, err)
	if err != nil {
		observability.LogQueryError(r.logger, r.id, err, durationMs)
	} else {
		observability.LogQueryComplete(r.logger, r.id, durationMs, stats.Scanned, stats.Rows, stats.Skipped)
	}
	r.cancel()
}
