package vigil

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/vigil/pkg/vigil/eventql"
	"github.com/randalmurphal/vigil/pkg/vigil/exec"
	"github.com/randalmurphal/vigil/pkg/vigil/index"
	"github.com/randalmurphal/vigil/pkg/vigil/observability"
	"github.com/randalmurphal/vigil/pkg/vigil/plan"
	"github.com/randalmurphal/vigil/pkg/vigil/store"
)

// CompiledQuery is a parsed, analyzed and planned query. It is immutable and
// can be executed any number of times, concurrently.
type CompiledQuery struct {
	text  string
	query *eventql.Query
	plan  *plan.Plan
}

// Text returns the query text it was compiled from.
func (cq *CompiledQuery) Text() string { return cq.text }

// Query returns the analyzed syntax tree.
func (cq *CompiledQuery) Query() *eventql.Query { return cq.query }

// Compile parses, type-checks and plans text against schema. A nil schema
// leaves every payload path untyped.
//
// The error is an *eventql.ParseError or an *eventql.AnalysisError.
func Compile(text string, schema *eventql.Schema) (*CompiledQuery, error) {
	q, err := eventql.Parse(text)
	if err != nil {
		return nil, err
	}
	if err := eventql.Analyze(q, schema); err != nil {
		return nil, err
	}
	p, err := plan.Build(q)
	if err != nil {
		return nil, err
	}
	return &CompiledQuery{text: text, query: q, plan: p}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(text string, schema *eventql.Schema) *CompiledQuery {
	cq, err := Compile(text, schema)
	if err != nil {
		panic(err)
	}
	return cq
}

// Engine executes compiled queries against one event source.
//
// Engine is safe for concurrent use. Each execution owns its own state, so
// concurrent executions only share the source and the index.
type Engine struct {
	src    store.Source
	idx    index.Reader
	cfg    engineConfig
	schema atomic.Pointer[eventql.Schema]
}

// New creates an engine over src. idx may be nil, in which case every query
// scans the full source and the eventtypes and subjects sources fail.
func New(src store.Source, idx index.Reader, opts ...Option) *Engine {
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	e := &Engine{src: src, idx: idx, cfg: cfg}
	e.schema.Store(cfg.schema)
	return e
}

// NewFromStore creates an engine over a store and its own index.
func NewFromStore(st store.Store, opts ...Option) *Engine {
	return New(st, st.Index(), opts...)
}

// Schema returns the schema used by Engine.Compile.
func (e *Engine) Schema() *eventql.Schema {
	return e.schema.Load()
}

// SetSchema replaces the schema used by later calls to Engine.Compile.
// Queries compiled earlier keep the schema they were checked against.
func (e *Engine) SetSchema(s *eventql.Schema) {
	e.schema.Store(s)
}

// Compile compiles text against the engine's current schema, recording
// compile metrics and a span.
func (e *Engine) Compile(ctx context.Context, text string) (cq *CompiledQuery, err error) {
	spanCtx, span := e.cfg.spans.StartCompileSpan(ctx, text)
	start := time.Now()
	defer func() {
		e.cfg.spans.EndSpanWithError(span, err)
		e.cfg.metrics.RecordCompile(spanCtx, time.Since(start), err)
	}()

	elapsed := observability.TimedOperation()
	cq, err = Compile(text, e.Schema())
	if err != nil {
		observability.LogCompileError(e.cfg.logger, text, err)
		return nil, err
	}
	observability.LogCompile(e.cfg.logger, text, elapsed())
	return cq, nil
}

// Explain returns the physical plan of a compiled query.
func (e *Engine) Explain(cq *CompiledQuery) *plan.Plan {
	if cq == nil {
		return nil
	}
	return cq.plan
}

// Query compiles and executes text in one step.
func (e *Engine) Query(ctx context.Context, text string, opts ...ExecOption) (*Rows, error) {
	cq, err := e.Compile(ctx, text)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, cq, opts...)
}

// Execute starts executing cq. Rows are produced lazily as the caller pulls
// them; the caller must Close the returned Rows if it stops early.
//
// Runtime type errors exclude only the row that raised them unless the
// engine is strict. Failures of the source, cancellation and the group
// limit end the query with a *RuntimeError.
//
// Example:
//
//	rows, err := engine.Execute(ctx, cq)
//	if err != nil {
//	    return err
//	}
//	defer rows.Close()
//	for rows.Next() {
//	    fmt.Println(rows.Value())
//	}
//	return rows.Err()
func (e *Engine) Execute(ctx context.Context, cq *CompiledQuery, opts ...ExecOption) (*Rows, error) {
	if cq == nil {
		return nil, ErrNilQuery
	}

	xc := execConfig{}
	for _, opt := range opts {
		opt(&xc)
	}
	if xc.queryID == "" {
		xc.queryID = uuid.NewString()
	}

	cancel := func() {}
	if e.cfg.queryTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, e.cfg.queryTimeout)
	}

	explain := cq.plan.String()
	logger := observability.EnrichLogger(e.cfg.logger, xc.queryID)
	observability.LogQueryStart(logger, xc.queryID, explain)
	spanCtx, span := e.cfg.spans.StartQuerySpan(ctx, xc.queryID, explain)

	rows := &Rows{
		engine: e,
		id:     xc.queryID,
		access: cq.plan.Scan().Access.String(),
		ctx:    spanCtx,
		cancel: cancel,
		span:   span,
		logger: logger,
		start:  time.Now(),
	}

	cursor, err := exec.Run(spanCtx, cq.plan, e.src, e.idx, exec.Options{
		Strict:    e.cfg.strict,
		MaxGroups: e.cfg.maxGroups,
		Logger:    logger,
		Now:       xc.now,
	})
	if err != nil {
		err = &RuntimeError{QueryID: xc.queryID, Err: err}
		rows.finish(err)
		return nil, err
	}
	rows.cursor = cursor
	return rows, nil
}
