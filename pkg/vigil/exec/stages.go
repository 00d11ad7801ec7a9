package exec

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/randalmurphal/vigil/pkg/vigil/eventql"
	"github.com/randalmurphal/vigil/pkg/vigil/index"
	"github.com/randalmurphal/vigil/pkg/vigil/observability"
	"github.com/randalmurphal/vigil/pkg/vigil/store"
	"github.com/randalmurphal/vigil/pkg/vigil/value"
)

// ctx is checked once per this many positions.
const checkInterval = 1024

// iterator is a pull-based stage. next returns false once the stage is
// exhausted; close releases upstream resources and is idempotent.
type iterator interface {
	next() (*frame, bool, error)
	close()
}

// skip decides what a per-row error means for the query. Runtime type errors
// exclude the row unless the run is strict; everything else aborts.
func (r *run) skip(stage string, err error) error {
	var rte *RuntimeTypeError
	if !errors.As(err, &rte) || r.opts.Strict {
		return err
	}
	r.stats.Skipped++
	observability.LogRowSkipped(r.logger, stage, err)
	return nil
}

// eventScan yields events from index postings or, without a usable index,
// from Source.Scan.
type eventScan struct {
	r      *run
	ctx    context.Context
	src    store.Source
	counts bool // no Filter stage follows

	postings *index.Iterator
	pulled   int

	pull   func() (store.Seq, error, bool)
	stop   func()
	prefix []string // subject restriction when no index serves it
	closed bool
}

func (s *eventScan) next() (*frame, bool, error) {
	for {
		seq, ok, err := s.nextSeq()
		if err != nil || !ok {
			return nil, false, err
		}
		e, err := s.src.Get(s.ctx, seq)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, false, err
		}
		if s.prefix != nil && !underSubject(e.Subject, s.prefix) {
			continue
		}
		s.r.stats.Scanned++
		if s.counts {
			s.r.stats.Matched++
		}
		return &frame{event: e}, true, nil
	}
}

func (s *eventScan) nextSeq() (store.Seq, bool, error) {
	if s.closed {
		return 0, false, nil
	}
	if s.postings != nil {
		if s.pulled%checkInterval == 0 {
			if err := s.ctx.Err(); err != nil {
				return 0, false, err
			}
		}
		s.pulled++
		seq, ok := s.postings.Next()
		return store.Seq(seq), ok, nil
	}
	seq, err, ok := s.pull()
	return seq, ok, err
}

func (s *eventScan) close() {
	if s.closed {
		return
	}
	s.closed = true
	if s.stop != nil {
		s.stop()
	}
}

// underSubject reports whether subject equals the path or lies below it.
func underSubject(subject string, path []string) bool {
	segs := index.SplitSubject(subject)
	if len(segs) < len(path) {
		return false
	}
	for i, p := range path {
		if segs[i] != p {
			return false
		}
	}
	return true
}

// catalogScan yields the strings of the eventtypes or subjects source.
type catalogScan struct {
	r      *run
	items  []string
	counts bool
}

func (s *catalogScan) next() (*frame, bool, error) {
	if len(s.items) == 0 {
		return nil, false, nil
	}
	item := s.items[0]
	s.items = s.items[1:]
	s.r.stats.Scanned++
	if s.counts {
		s.r.stats.Matched++
	}
	return &frame{item: value.String(item)}, true, nil
}

func (s *catalogScan) close() { s.items = nil }

// filter applies a WHERE or HAVING predicate.
type filter struct {
	r     *run
	up    iterator
	stage string
	expr  eventql.Expr
	pred  evalFn
	count bool
}

func (s *filter) next() (*frame, bool, error) {
	for {
		f, ok, err := s.up.next()
		if err != nil || !ok {
			return nil, false, err
		}
		v, err := s.pred(f)
		var pass bool
		if err == nil {
			pass, err = predicate(s.expr, v)
		}
		if err != nil {
			if err = s.r.skip(s.stage, err); err != nil {
				return nil, false, err
			}
			continue
		}
		if pass {
			if s.count {
				s.r.stats.Matched++
			}
			return f, true, nil
		}
	}
}

func (s *filter) close() { s.up.close() }

// group is one distinct key tuple and its accumulators.
type group struct {
	keys    []value.Value
	accs    []accumulator
	results []value.Value
}

// grouper drains upstream on its first pull, then emits one frame per group
// in first-seen order.
type grouper struct {
	r     *run
	up    iterator
	keys  []evalFn
	specs []*aggSpec

	drained bool
	groups  []*group
}

func (s *grouper) next() (*frame, bool, error) {
	if !s.drained {
		if err := s.drain(); err != nil {
			return nil, false, err
		}
	}
	if len(s.groups) == 0 {
		return nil, false, nil
	}
	g := s.groups[0]
	s.groups = s.groups[1:]
	return &frame{group: g}, true, nil
}

func (s *grouper) drain() error {
	defer s.up.close()
	s.drained = true

	byKey := make(map[string]*group)
	var sb strings.Builder
	for {
		f, ok, err := s.up.next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}

		keys, args, err := s.evaluate(f)
		if err != nil {
			if err = s.r.skip("group", err); err != nil {
				return err
			}
			continue
		}

		sb.Reset()
		for _, k := range keys {
			sb.WriteString(k.Key())
			sb.WriteByte(0)
		}
		g, ok := byKey[sb.String()]
		if !ok {
			if limit := s.r.opts.MaxGroups; limit > 0 && len(s.groups) >= limit {
				return ErrTooManyGroups
			}
			g = s.newGroup(keys)
			byKey[sb.String()] = g
		}
		for i, spec := range s.specs {
			spec.fold(g.accs[i], args[i])
		}
	}

	// an aggregate without GROUP BY always has one row
	if len(s.keys) == 0 && len(s.groups) == 0 {
		s.newGroup(nil)
	}
	for _, g := range s.groups {
		g.results = make([]value.Value, len(g.accs))
		for i, acc := range g.accs {
			g.results[i] = acc.result()
		}
	}
	s.r.stats.Groups = len(s.groups)
	return nil
}

// evaluate computes every key and aggregate argument for one event before
// any accumulator sees it, so a failing event leaves no partial state.
func (s *grouper) evaluate(f *frame) ([]value.Value, []value.Value, error) {
	keys := make([]value.Value, len(s.keys))
	for i, key := range s.keys {
		v, err := key(f)
		if err != nil {
			return nil, nil, err
		}
		keys[i] = v
	}
	args := make([]value.Value, len(s.specs))
	for i, spec := range s.specs {
		v, err := spec.eval(f)
		if err != nil {
			return nil, nil, err
		}
		args[i] = v
	}
	return keys, args, nil
}

func (s *grouper) newGroup(keys []value.Value) *group {
	g := &group{keys: keys, accs: make([]accumulator, len(s.specs))}
	for i, spec := range s.specs {
		g.accs[i] = spec.newAcc()
	}
	s.groups = append(s.groups, g)
	return g
}

func (s *grouper) close() {
	s.up.close()
	s.groups = nil
}

// sorter buffers upstream and emits it stably sorted.
type sorter struct {
	r    *run
	up   iterator
	key  evalFn
	desc bool

	sorted bool
	rows   []sortRow
}

type sortRow struct {
	f   *frame
	key value.Value
}

func (s *sorter) next() (*frame, bool, error) {
	if !s.sorted {
		if err := s.sort(); err != nil {
			return nil, false, err
		}
	}
	if len(s.rows) == 0 {
		return nil, false, nil
	}
	row := s.rows[0]
	s.rows = s.rows[1:]
	return row.f, true, nil
}

func (s *sorter) sort() error {
	defer s.up.close()
	s.sorted = true
	for {
		f, ok, err := s.up.next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		k, err := s.key(f)
		if err != nil {
			if err = s.r.skip("order", err); err != nil {
				return err
			}
			continue
		}
		s.rows = append(s.rows, sortRow{f: f, key: k})
	}
	slices.SortStableFunc(s.rows, func(a, b sortRow) int {
		if s.desc {
			return value.Compare(b.key, a.key)
		}
		return value.Compare(a.key, b.key)
	})
	return nil
}

func (s *sorter) close() {
	s.up.close()
	s.rows = nil
}
