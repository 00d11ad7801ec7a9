package vigil

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/vigil/pkg/vigil/store"
)

func raw(s string) json.RawMessage { return json.RawMessage(s) }

// employees returns a store holding four employee events.
func employees(t *testing.T) *store.MemoryStore {
	t.Helper()
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })
	_, err := s.Append(context.Background(),
		store.MustEvent("employee-hired", "companies/acme/employees/1", raw(`{"name":"ada","department":"eng","salary":100}`)),
		store.MustEvent("employee-hired", "companies/acme/employees/2", raw(`{"name":"bob","department":"sales","salary":150}`)),
		store.MustEvent("employee-left", "companies/acme/employees/1", raw(`{"name":"ada"}`)),
		store.MustEvent("employee-hired", "companies/globex/employees/3", raw(`{"name":"cy","department":"eng","salary":200}`)),
	)
	require.NoError(t, err)
	return s
}

// collect drains rows as compact JSON.
func collect(t *testing.T, rows *Rows) []string {
	t.Helper()
	vals, err := rows.All()
	require.NoError(t, err)
	out := make([]string, len(vals))
	for i, v := range vals {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		out[i] = string(b)
	}
	return out
}

// testLogHandler captures log records for testing.
type testLogHandler struct {
	mu    *sync.Mutex
	buf   *bytes.Buffer
	attrs []slog.Attr
}

func newTestLogHandler() *testLogHandler {
	return &testLogHandler{mu: &sync.Mutex{}, buf: &bytes.Buffer{}}
}

func (h *testLogHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *testLogHandler) Handle(_ context.Context, r slog.Record) error {
	data := map[string]any{
		"level": r.Level.String(),
		"msg":   r.Message,
	}
	for _, a := range h.attrs {
		data[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		data[a.Key] = a.Value.Any()
		return true
	})
	h.mu.Lock()
	defer h.mu.Unlock()
	return json.NewEncoder(h.buf).Encode(data)
}

func (h *testLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &testLogHandler{mu: h.mu, buf: h.buf, attrs: append(append([]slog.Attr{}, h.attrs...), attrs...)}
}

func (h *testLogHandler) WithGroup(string) slog.Handler { return h }

func (h *testLogHandler) records() []map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()
	var records []map[string]any
	for _, line := range bytes.Split(h.buf.Bytes(), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(line, &m); err == nil {
			records = append(records, m)
		}
	}
	return records
}

// recordingMetrics is a MetricsRecorder that keeps every call.
type recordingMetrics struct {
	mu       sync.Mutex
	compiles []error
	queries  []string // access paths
	errs     []error
	rows     [][3]int64
}

func (m *recordingMetrics) RecordCompile(_ context.Context, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.compiles = append(m.compiles, err)
}

func (m *recordingMetrics) RecordQuery(_ context.Context, access string, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, access)
	m.errs = append(m.errs, err)
}

func (m *recordingMetrics) RecordRows(_ context.Context, _ string, scanned, rows, skipped int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, [3]int64{scanned, rows, skipped})
}
