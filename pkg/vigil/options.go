package vigil

import (
	"log/slog"
	"time"

	"github.com/randalmurphal/vigil/pkg/vigil/config"
	"github.com/randalmurphal/vigil/pkg/vigil/eventql"
	"github.com/randalmurphal/vigil/pkg/vigil/observability"
)

// engineConfig holds the settings shared by every query of an Engine.
type engineConfig struct {
	logger       *slog.Logger
	metrics      observability.MetricsRecorder
	spans        observability.SpanManager
	strict       bool
	maxGroups    int
	queryTimeout time.Duration
	schema       *eventql.Schema
}

// defaultEngineConfig returns the default engine configuration.
func defaultEngineConfig() engineConfig {
	return engineConfig{
		logger:  slog.Default(),
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
	}
}

// Option configures an Engine.
type Option func(*engineConfig)

// WithLogger sets the logger. Every query logs with a query_id attribute.
// Default: slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(c *engineConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records compile and query metrics.
//
// Example:
//
//	engine := vigil.New(src, idx, vigil.WithMetrics(observability.NewMetricsRecorder()))
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *engineConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithSpanManager enables tracing of compilation and execution.
func WithSpanManager(s observability.SpanManager) Option {
	return func(c *engineConfig) {
		if s != nil {
			c.spans = s
		}
	}
}

// WithStrict makes a runtime type error fail the query instead of
// skipping the row.
func WithStrict(strict bool) Option {
	return func(c *engineConfig) {
		c.strict = strict
	}
}

// WithMaxGroups bounds the number of groups an aggregating query may build.
// Zero means unlimited.
func WithMaxGroups(n int) Option {
	return func(c *engineConfig) {
		if n >= 0 {
			c.maxGroups = n
		}
	}
}

// WithQueryTimeout bounds each execution. Zero means no timeout.
func WithQueryTimeout(d time.Duration) Option {
	return func(c *engineConfig) {
		if d >= 0 {
			c.queryTimeout = d
		}
	}
}

// WithSchema sets the payload type hints used by Engine.Compile.
func WithSchema(s *eventql.Schema) Option {
	return func(c *engineConfig) {
		c.schema = s
	}
}

// WithEngineConfig applies the engine: section of a config file, as decoded
// by config.Config.Engine, which rejects invalid values with a
// *config.SectionError.
func WithEngineConfig(ec config.Engine) Option {
	return func(c *engineConfig) {
		c.strict = ec.StrictRuntimeTypes
		c.maxGroups = ec.MaxGroups
		c.queryTimeout = ec.QueryTimeout
	}
}

// execConfig holds settings for one execution.
type execConfig struct {
	queryID string
	now     time.Time
}

// ExecOption configures a single execution.
type ExecOption func(*execConfig)

// WithQueryID sets the id used in logs and spans. Default: a random UUID.
func WithQueryID(id string) ExecOption {
	return func(c *execConfig) {
		if id != "" {
			c.queryID = id
		}
	}
}

// WithNow fixes the value of NOW() for the execution.
func WithNow(t time.Time) ExecOption {
	return func(c *execConfig) {
		c.now = t
	}
}
