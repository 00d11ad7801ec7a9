// Package plan turns an analyzed EventQL query into an ordered list of
// execution stages and chooses the index access path for its scan.
//
// Planning never reads event data: it looks only at the query and at which
// lookups the index supports. An index lookup produces a candidate set, so
// the WHERE filter is always kept after the scan.
package plan

import (
	"errors"
	"fmt"
	"strings"

	"github.com/randalmurphal/vigil/pkg/vigil/eventql"
)

// AccessPath is how the scan stage obtains candidate events.
type AccessPath int

const (
	// FullScan visits every event through Source.Scan.
	FullScan AccessPath = iota
	// TypeLookup reads the type index.
	TypeLookup
	// SubjectLookup reads a subject subtree, optionally narrowed by type.
	SubjectLookup
	// SubjectExact reads events whose subject equals a path.
	SubjectExact
	// TypeCatalog yields the distinct event types.
	TypeCatalog
	// SubjectCatalog yields the distinct subject paths.
	SubjectCatalog
)

func (a AccessPath) String() string {
	switch a {
	case FullScan:
		return "full-scan"
	case TypeLookup:
		return "type-index"
	case SubjectLookup:
		return "subject-index"
	case SubjectExact:
		return "subject-exact"
	case TypeCatalog:
		return "eventtypes"
	case SubjectCatalog:
		return "subjects"
	default:
		return "unknown"
	}
}

// Stage is one step of a plan. The set of implementations is closed.
type Stage interface {
	Name() string
	String() string
	stage()
}

// Scan is always the first stage.
type Scan struct {
	Access  AccessPath
	Subject string // SubjectLookup, SubjectExact
	Type    string // TypeLookup, or the narrowing type of SubjectLookup
	HasType bool
}

// Filter applies the WHERE predicate.
type Filter struct {
	Predicate eventql.Expr
}

// GroupBy partitions events by key tuple. Keys is empty for the implicit
// single group of an aggregate query without GROUP BY.
type GroupBy struct {
	Keys []eventql.Expr
}

// Aggregate lists the distinct aggregate calls every group accumulates, in
// first-seen order across PROJECT INTO, HAVING and ORDER BY.
type Aggregate struct {
	Calls []*eventql.Call
}

// Having filters groups.
type Having struct {
	Predicate eventql.Expr
}

// Order sorts the result stream.
type Order struct {
	Expr eventql.Expr
	Desc bool
}

// Limit stops after N projected rows.
type Limit struct {
	N int
}

// Project builds each output row.
type Project struct {
	Object *eventql.ObjectConstruct
}

func (*Scan) stage()      {}
func (*Filter) stage()    {}
func (*GroupBy) stage()   {}
func (*Aggregate) stage() {}
func (*Having) stage()    {}
func (*Order) stage()     {}
func (*Limit) stage()     {}
func (*Project) stage()   {}

func (*Scan) Name() string      { return "Scan" }
func (*Filter) Name() string    { return "Filter" }
func (*GroupBy) Name() string   { return "GroupBy" }
func (*Aggregate) Name() string { return "Aggregate" }
func (*Having) Name() string    { return "Having" }
func (*Order) Name() string     { return "Order" }
func (*Limit) Name() string     { return "Limit" }
func (*Project) Name() string   { return "Project" }

func (s *Scan) String() string {
	switch s.Access {
	case TypeLookup:
		return fmt.Sprintf("Scan(type-index %q)", s.Type)
	case SubjectLookup:
		if s.HasType {
			return fmt.Sprintf("Scan(subject-index %q & type-index %q)", s.Subject, s.Type)
		}
		return fmt.Sprintf("Scan(subject-index %q)", s.Subject)
	case SubjectExact:
		return fmt.Sprintf("Scan(subject-exact %q)", s.Subject)
	default:
		return "Scan(" + s.Access.String() + ")"
	}
}

func (f *Filter) String() string { return "Filter(" + f.Predicate.String() + ")" }

func (g *GroupBy) String() string {
	if len(g.Keys) == 0 {
		return "GroupBy(<all>)"
	}
	return "GroupBy(" + joinExprs(g.Keys) + ")"
}

func (a *Aggregate) String() string {
	exprs := make([]eventql.Expr, len(a.Calls))
	for i, c := range a.Calls {
		exprs[i] = c
	}
	return "Aggregate(" + joinExprs(exprs) + ")"
}

func (h *Having) String() string { return "Having(" + h.Predicate.String() + ")" }

func (o *Order) String() string {
	dir := "ASC"
	if o.Desc {
		dir = "DESC"
	}
	return "Order(" + o.Expr.String() + " " + dir + ")"
}

func (l *Limit) String() string   { return fmt.Sprintf("Limit(%d)", l.N) }
func (p *Project) String() string { return "Project(" + p.Object.String() + ")" }

func joinExprs(exprs []eventql.Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

// Plan is an immutable, ordered list of stages built for one query.
type Plan struct {
	Query  *eventql.Query
	Stages []Stage
}

// Scan returns the plan's scan stage.
func (p *Plan) Scan() *Scan {
	return p.Stages[0].(*Scan)
}

// String renders the plan as a single explain line.
func (p *Plan) String() string {
	parts := make([]string, len(p.Stages))
	for i, s := range p.Stages {
		parts[i] = s.String()
	}
	return strings.Join(parts, " -> ")
}

// ErrNotAnalyzed is returned when building a plan for a query that has not
// passed analysis.
var ErrNotAnalyzed = errors.New("query has not been analyzed")

// Build plans an analyzed query.
func Build(q *eventql.Query) (*Plan, error) {
	if q == nil || !q.Analyzed() {
		return nil, ErrNotAnalyzed
	}

	p := &Plan{Query: q}
	p.Stages = append(p.Stages, chooseScan(q))

	if q.Where != nil {
		p.Stages = append(p.Stages, &Filter{Predicate: q.Where})
	}
	if q.Aggregating() {
		p.Stages = append(p.Stages,
			&GroupBy{Keys: q.GroupBy},
			&Aggregate{Calls: collectAggregates(q)},
		)
		if q.Having != nil {
			p.Stages = append(p.Stages, &Having{Predicate: q.Having})
		}
	}
	if q.OrderBy != nil {
		p.Stages = append(p.Stages, &Order{Expr: q.OrderBy.Expr, Desc: q.OrderBy.Desc})
	}
	p.Stages = append(p.Stages, &Project{Object: q.Project})
	// Limit counts projected rows, so a row dropped while projecting does
	// not use up a slot.
	if q.Top != nil {
		p.Stages = append(p.Stages, &Limit{N: *q.Top})
	}
	return p, nil
}

// collectAggregates returns the distinct aggregate calls of q by canonical
// text.
func collectAggregates(q *eventql.Query) []*eventql.Call {
	var calls []*eventql.Call
	seen := make(map[string]bool)
	visit := func(e eventql.Expr) bool {
		call, ok := e.(*eventql.Call)
		if !ok || !eventql.IsAggregate(call.Name) {
			return true
		}
		if key := call.String(); !seen[key] {
			seen[key] = true
			calls = append(calls, call)
		}
		return false
	}
	eventql.Walk(q.Project, visit)
	if q.Having != nil {
		eventql.Walk(q.Having, visit)
	}
	if q.OrderBy != nil {
		eventql.Walk(q.OrderBy.Expr, visit)
	}
	return calls
}

func chooseScan(q *eventql.Query) *Scan {
	src := q.Source
	if src.Kind == eventql.SourceNamed {
		switch strings.ToLower(src.Name) {
		case eventql.SourceEventTypes:
			return &Scan{Access: TypeCatalog}
		case eventql.SourceSubjects:
			return &Scan{Access: SubjectCatalog}
		}
	}

	conjuncts := splitAnd(q.Where)
	eventType, hasType := findEquality(conjuncts, q.Binding, "type")

	if src.Kind == eventql.SourceSubject {
		return &Scan{Access: SubjectLookup, Subject: src.Path, Type: eventType, HasType: hasType}
	}
	if hasType {
		return &Scan{Access: TypeLookup, Type: eventType, HasType: true}
	}
	if subject, ok := findEquality(conjuncts, q.Binding, "subject"); ok {
		return &Scan{Access: SubjectExact, Subject: subject}
	}
	return &Scan{Access: FullScan}
}

// splitAnd flattens a top-level AND chain.
func splitAnd(e eventql.Expr) []eventql.Expr {
	if e == nil {
		return nil
	}
	if b, ok := e.(*eventql.Binary); ok && b.Op == eventql.OpAnd {
		return append(splitAnd(b.Left), splitAnd(b.Right)...)
	}
	return []eventql.Expr{e}
}

// findEquality finds a conjunct binding.field == "literal" in either operand
// order and returns the literal.
func findEquality(conjuncts []eventql.Expr, binding, field string) (string, bool) {
	for _, c := range conjuncts {
		b, ok := c.(*eventql.Binary)
		if !ok || b.Op != eventql.OpEq {
			continue
		}
		if s, ok := matchFieldLiteral(b.Left, b.Right, binding, field); ok {
			return s, true
		}
		if s, ok := matchFieldLiteral(b.Right, b.Left, binding, field); ok {
			return s, true
		}
	}
	return "", false
}

func matchFieldLiteral(fieldSide, litSide eventql.Expr, binding, field string) (string, bool) {
	m, ok := fieldSide.(*eventql.MemberAccess)
	if !ok || m.Field != field {
		return "", false
	}
	id, ok := m.Target.(*eventql.Identifier)
	if !ok || id.Name != binding {
		return "", false
	}
	lit, ok := litSide.(*eventql.Literal)
	if !ok {
		return "", false
	}
	return lit.Value.AsString()
}
