// Package exec evaluates a plan against an event source.
//
// Every stage is a pull iterator: rows are produced one at a time as the
// consumer asks for them. Grouping and ORDER BY are the two stages that
// drain their upstream before emitting anything.
//
// Runtime type errors, such as comparing a payload string with a number, are
// per-row: by default the row is excluded, counted in Stats.Skipped and
// logged at debug level. Options.Strict turns them into query failures.
package exec

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/randalmurphal/vigil/pkg/vigil/index"
	"github.com/randalmurphal/vigil/pkg/vigil/plan"
	"github.com/randalmurphal/vigil/pkg/vigil/store"
	"github.com/randalmurphal/vigil/pkg/vigil/value"
)

// ErrNoIndex is returned when a catalog source is queried without an index.
var ErrNoIndex = errors.New("source requires an index")

// Options controls a single execution.
type Options struct {
	// Strict aborts the query on the first runtime type error instead of
	// skipping the row.
	Strict bool

	// MaxGroups bounds the number of distinct groups. Zero means unlimited.
	MaxGroups int

	// Logger receives debug records for skipped rows. Nil disables them.
	Logger *slog.Logger

	// Now is the value of NOW(). Defaults to the time Run is called.
	Now time.Time
}

// Stats counts what a cursor has done so far.
type Stats struct {
	Scanned int // events or catalog items read
	Matched int // of those, rows that passed WHERE
	Skipped int // rows dropped by runtime type errors
	Groups  int // distinct groups, for aggregating queries
	Rows    int // rows returned to the caller
}

// run is the state shared by the stages of one execution.
type run struct {
	opts   Options
	logger *slog.Logger
	stats  Stats
}

// Cursor yields the result rows of one execution. It is not safe for
// concurrent use.
type Cursor struct {
	r       *run
	root    iterator
	project evalFn
	left    int // rows still allowed by TOP; negative means unlimited
	done    bool
}

// Run builds the stage pipeline for p. Nothing is read from src until the
// first call to Next.
func Run(ctx context.Context, p *plan.Plan, src store.Source, idx index.Reader, opts Options) (*Cursor, error) {
	if p == nil {
		return nil, plan.ErrNotAnalyzed
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	r := &run{opts: opts, logger: opts.Logger}
	q := p.Query

	rowCompiler := &compiler{
		binding: q.Binding,
		events:  q.Source.YieldsEvents(),
		now:     opts.Now,
	}
	c := rowCompiler
	_, hasFilter := stageOf[*plan.Filter](p)

	var (
		it  iterator
		cur *Cursor
	)
	for _, stage := range p.Stages {
		var err error
		switch s := stage.(type) {
		case *plan.Scan:
			it, err = newScan(ctx, r, s, src, idx, !hasFilter)
		case *plan.Filter:
			var pred evalFn
			if pred, err = c.compile(s.Predicate); err == nil {
				it = &filter{r: r, up: it, stage: "where", expr: s.Predicate, pred: pred, count: true}
			}
		case *plan.GroupBy:
			var g *grouper
			if g, c, err = newGrouper(r, it, p, s, rowCompiler); err == nil {
				it = g
			}
		case *plan.Aggregate:
			// folded into the grouper
		case *plan.Having:
			var pred evalFn
			if pred, err = c.compile(s.Predicate); err == nil {
				it = &filter{r: r, up: it, stage: "having", expr: s.Predicate, pred: pred}
			}
		case *plan.Order:
			var key evalFn
			if key, err = c.compile(s.Expr); err == nil {
				it = &sorter{r: r, up: it, key: key, desc: s.Desc}
			}
		case *plan.Project:
			cur = &Cursor{r: r, root: it, left: -1}
			cur.project, err = c.compile(s.Object)
		case *plan.Limit:
			if cur == nil {
				err = errors.New("limit stage precedes projection")
			} else {
				cur.left = s.N
			}
		}
		if err != nil {
			if it != nil {
				it.close()
			}
			return nil, fmt.Errorf("compile %s stage: %w", stage.Name(), err)
		}
	}
	if cur == nil {
		if it != nil {
			it.close()
		}
		return nil, errors.New("plan has no Project stage")
	}
	return cur, nil
}

func stageOf[S plan.Stage](p *plan.Plan) (S, bool) {
	for _, s := range p.Stages {
		if found, ok := s.(S); ok {
			return found, true
		}
	}
	var zero S
	return zero, false
}

func newScan(ctx context.Context, r *run, s *plan.Scan, src store.Source, idx index.Reader, counts bool) (iterator, error) {
	switch s.Access {
	case plan.TypeCatalog, plan.SubjectCatalog:
		if idx == nil {
			return nil, ErrNoIndex
		}
		items := idx.Types()
		if s.Access == plan.SubjectCatalog {
			items = idx.Subjects()
		}
		return &catalogScan{r: r, items: items, counts: counts}, nil
	}

	scan := &eventScan{r: r, ctx: ctx, src: src, counts: counts}
	if idx != nil {
		var postings *index.Postings
		switch s.Access {
		case plan.TypeLookup:
			postings = idx.LookupByType(s.Type)
		case plan.SubjectLookup:
			postings = idx.LookupBySubject(s.Subject)
			if s.HasType {
				postings = postings.And(idx.LookupByType(s.Type))
			}
		case plan.SubjectExact:
			postings = idx.LookupSubjectExact(s.Subject)
		}
		if postings != nil {
			scan.postings = postings.Iterator()
			return scan, nil
		}
	}

	// Without an index a subject source restricts the full scan itself;
	// every other access path is backed by the WHERE filter.
	if s.Access == plan.SubjectLookup {
		scan.prefix = index.SplitSubject(s.Subject)
	}
	scan.pull, scan.stop = iter.Pull2(src.Scan(ctx))
	return scan, nil
}

func newGrouper(r *run, up iterator, p *plan.Plan, s *plan.GroupBy, rows *compiler) (*grouper, *compiler, error) {
	agg, _ := stageOf[*plan.Aggregate](p)
	g := &grouper{r: r, up: up}

	keys, err := rows.compileAll(s.Keys)
	if err != nil {
		return nil, nil, err
	}
	g.keys = keys

	grouped := &compiler{
		binding: rows.binding,
		events:  rows.events,
		now:     rows.now,
		grouped: true,
		keys:    make(map[string]int, len(s.Keys)),
		aggs:    make(map[string]int),
	}
	for i, k := range s.Keys {
		if _, dup := grouped.keys[k.String()]; !dup {
			grouped.keys[k.String()] = i
		}
	}
	if agg != nil {
		for i, call := range agg.Calls {
			spec, err := newAggSpec(rows, call)
			if err != nil {
				return nil, nil, err
			}
			g.specs = append(g.specs, spec)
			grouped.aggs[call.String()] = i
		}
	}
	return g, grouped, nil
}

// Next returns the next row. ok is false when the rows are exhausted or an
// error ended the query. After an error the cursor is closed.
func (c *Cursor) Next() (value.Value, bool, error) {
	for !c.done {
		if c.left == 0 {
			c.Close()
			break
		}
		f, ok, err := c.root.next()
		if err != nil {
			c.Close()
			return value.Null(), false, err
		}
		if !ok {
			c.Close()
			return value.Null(), false, nil
		}
		row, err := c.project(f)
		if err != nil {
			if err = c.r.skip("project", err); err != nil {
				c.Close()
				return value.Null(), false, err
			}
			continue
		}
		c.r.stats.Rows++
		if c.left > 0 {
			c.left--
			if c.left == 0 {
				c.Close()
			}
		}
		return row, true, nil
	}
	return value.Null(), false, nil
}

// Close releases the pipeline. It is safe to call more than once.
func (c *Cursor) Close() {
	if c.done {
		return
	}
	c.done = true
	c.root.close()
}

// Stats returns the counters so far.
func (c *Cursor) Stats() Stats {
	return c.r.stats
}
