package eventql

import (
	"fmt"
	"strings"
)

// Event attribute names visible through the binding.
var eventFields = []string{"id", "type", "subject", "time", "source", "specversion", "datacontenttype"}

// EventType returns the static type of an event binding under schema.
func EventType(schema *Schema) Type {
	fields := make(map[string]Type, len(eventFields)+1)
	for _, name := range eventFields {
		fields[name] = StringType
	}
	fields["data"] = schema.DataType()
	return ObjectOf(fields, false)
}

// where an expression appears, for aggregate legality
type clause int

const (
	clauseWhere clause = iota
	clauseGroupBy
	clauseHaving
	clauseProject
	clauseOrderBy
)

func (c clause) String() string {
	switch c {
	case clauseWhere:
		return "WHERE"
	case clauseGroupBy:
		return "GROUP BY"
	case clauseHaving:
		return "HAVING"
	case clauseProject:
		return "PROJECT INTO"
	default:
		return "ORDER BY"
	}
}

type analyzer struct {
	query       *Query
	binding     Type
	aggregating bool
	keys        map[string]bool
	errs        []error
}

func (a *analyzer) typeErr(pos Pos, format string, args ...any) {
	a.errs = append(a.errs, &TypeError{Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

func (a *analyzer) groupErr(pos Pos, format string, args ...any) {
	a.errs = append(a.errs, &GroupingError{Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

// Analyze type-checks q against an optional payload schema, annotating
// every expression with its static type. All diagnostics are collected
// into a single *AnalysisError.
func Analyze(q *Query, schema *Schema) error {
	a := &analyzer{query: q, keys: make(map[string]bool)}

	switch {
	case q.Source.Kind == SourceSubject:
		a.binding = EventType(schema)
	default:
		switch normalizeName(q.Source.Name) {
		case SourceEvents:
			a.binding = EventType(schema)
		case SourceEventTypes, SourceSubjects:
			a.binding = StringType
		default:
			a.typeErr(q.Source.Pos, "unknown source %q (want events, eventtypes, subjects or a quoted subject path)", q.Source.Name)
			a.binding = Unknown
		}
	}

	a.aggregating = len(q.GroupBy) > 0 || a.usesAggregates()

	if q.Where != nil {
		a.expectPredicate(a.check(q.Where, clauseWhere, false), q.Where, "WHERE")
	}
	for _, key := range q.GroupBy {
		a.check(key, clauseGroupBy, false)
		a.keys[key.String()] = true
	}
	if q.Having != nil {
		if !a.aggregating {
			a.groupErr(q.Having.Pos(), "HAVING requires GROUP BY or an aggregate")
		}
		a.expectPredicate(a.check(q.Having, clauseHaving, false), q.Having, "HAVING")
		if a.aggregating {
			a.checkGroupedRefs(q.Having, clauseHaving)
		}
	}
	if q.Project != nil {
		a.checkProject(q.Project)
	}
	if q.OrderBy != nil {
		a.check(q.OrderBy.Expr, clauseOrderBy, false)
		if a.aggregating {
			a.checkGroupedRefs(q.OrderBy.Expr, clauseOrderBy)
		}
	}

	if len(a.errs) > 0 {
		return &AnalysisError{Errors: a.errs}
	}
	q.analyzed = true
	q.aggregating = a.aggregating
	return nil
}

// usesAggregates reports whether any clause that admits aggregates calls one.
func (a *analyzer) usesAggregates() bool {
	found := false
	visit := func(e Expr) bool {
		if c, ok := e.(*Call); ok && IsAggregate(c.Name) {
			found = true
		}
		return !found
	}
	if a.query.Project != nil {
		Walk(a.query.Project, visit)
	}
	if a.query.Having != nil {
		Walk(a.query.Having, visit)
	}
	if a.query.OrderBy != nil {
		Walk(a.query.OrderBy.Expr, visit)
	}
	return found
}

func (a *analyzer) expectPredicate(t Type, e Expr, what string) {
	if !t.IsUnknown() && !t.Is(TypeBool) && !t.Is(TypeNull) {
		a.typeErr(e.Pos(), "%s must be bool, got %s", what, t.Base())
	}
}

func (a *analyzer) checkProject(obj *ObjectConstruct) {
	fields := make(map[string]Type, len(obj.Fields))
	for _, f := range obj.Fields {
		t := a.check(f.Value, clauseProject, false)
		fields[f.Name] = t.Base()

		if !a.aggregating {
			continue
		}
		if call, ok := f.Value.(*Call); ok && IsAggregate(call.Name) {
			continue
		}
		if len(a.query.GroupBy) == 0 {
			a.groupErr(f.Pos, "field %q must be an aggregate when the query aggregates without GROUP BY", f.Name)
			continue
		}
		if !a.keys[f.Value.String()] {
			a.groupErr(f.Pos, "field %q must be a GROUP BY key or an aggregate, got %s", f.Name, f.Value)
		}
	}
	obj.setType(ObjectOf(fields, false))
}

// checkGroupedRefs rejects binding references in an aggregating context
// that are neither inside an aggregate nor part of a GROUP BY key.
func (a *analyzer) checkGroupedRefs(e Expr, c clause) {
	Walk(e, func(n Expr) bool {
		if a.keys[n.String()] {
			return false
		}
		if call, ok := n.(*Call); ok && IsAggregate(call.Name) {
			return false
		}
		if id, ok := n.(*Identifier); ok {
			a.groupErr(id.Pos(), "%s references %q outside of a GROUP BY key or aggregate", c, id.Name)
		}
		return true
	})
}

// check infers the type of e, recording diagnostics. inAgg is true inside
// an aggregate's arguments.
func (a *analyzer) check(e Expr, c clause, inAgg bool) Type {
	t := a.infer(e, c, inAgg)
	e.setType(t)
	return t
}

func (a *analyzer) infer(e Expr, c clause, inAgg bool) Type {
	switch n := e.(type) {
	case *Identifier:
		if n.Name != a.query.Binding {
			a.typeErr(n.Pos(), "unknown identifier %q", n.Name)
			return Unknown
		}
		return a.binding

	case *Literal:
		switch {
		case n.Value.IsNull():
			return NullType
		default:
			if _, ok := n.Value.AsBool(); ok {
				return BoolType
			}
			if _, ok := n.Value.AsNumber(); ok {
				return NumberType
			}
			return StringType
		}

	case *MemberAccess:
		target := a.check(n.Target, c, inAgg).Base()
		switch target.Kind {
		case TypeUnknown:
			return Unknown
		case TypeNull:
			return NullType
		case TypeObject:
			if ft, ok := target.Fields[n.Field]; ok {
				return ft
			}
			if target.Open {
				return Unknown
			}
			a.typeErr(n.Pos(), "%s has no field %q", n.Target, n.Field)
			return Unknown
		default:
			a.typeErr(n.Pos(), "cannot access field %q of %s", n.Field, target)
			return Unknown
		}

	case *Unary:
		operand := a.check(n.Operand, c, inAgg)
		if n.Op == OpNot {
			a.expectKind(n.Operand, operand, TypeBool, "NOT")
			return BoolType
		}
		a.expectKind(n.Operand, operand, TypeNumber, "unary -")
		return NumberType

	case *Binary:
		return a.inferBinary(n, c, inAgg)

	case *Call:
		return a.inferCall(n, c, inAgg)

	case *ObjectConstruct:
		fields := make(map[string]Type, len(n.Fields))
		for _, f := range n.Fields {
			fields[f.Name] = a.check(f.Value, c, inAgg).Base()
		}
		return ObjectOf(fields, false)

	case *ListConstruct:
		var elem *Type
		for _, item := range n.Items {
			t := a.check(item, c, inAgg).Base()
			switch {
			case elem == nil:
				elem = &t
			case elem.Kind != t.Kind || t.Kind == TypeList || t.Kind == TypeObject:
				elem = &Unknown
			}
		}
		if elem == nil {
			return ListOf(Unknown)
		}
		return ListOf(*elem)
	}
	return Unknown
}

// expectKind reports a TypeError when t is known and neither null nor want.
func (a *analyzer) expectKind(e Expr, t Type, want TypeKind, what string) {
	base := t.Base()
	if base.Kind == TypeUnknown || base.Kind == TypeNull || base.Kind == want {
		return
	}
	a.typeErr(e.Pos(), "%s requires %s, got %s", what, Type{Kind: want}, base)
}

func (a *analyzer) inferBinary(n *Binary, c clause, inAgg bool) Type {
	lt := a.check(n.Left, c, inAgg).Base()
	rt := a.check(n.Right, c, inAgg).Base()
	known := !lt.IsUnknown() && !rt.IsUnknown() && lt.Kind != TypeNull && rt.Kind != TypeNull

	switch {
	case n.Op.IsLogical():
		a.expectKind(n.Left, lt, TypeBool, n.Op.String())
		a.expectKind(n.Right, rt, TypeBool, n.Op.String())
		return BoolType

	case n.Op.IsArithmetic():
		a.expectKind(n.Left, lt, TypeNumber, fmt.Sprintf("operator %s", n.Op))
		a.expectKind(n.Right, rt, TypeNumber, fmt.Sprintf("operator %s", n.Op))
		return NumberType

	case n.Op == OpEq || n.Op == OpNeq:
		if known && lt.Kind != rt.Kind {
			a.typeErr(n.Pos(), "cannot compare %s %s %s", lt, n.Op, rt)
		}
		return BoolType

	case n.Op == OpContains:
		switch lt.Kind {
		case TypeUnknown, TypeNull, TypeList:
		case TypeString:
			a.expectKind(n.Right, rt, TypeString, "CONTAINS on a string")
		default:
			a.typeErr(n.Left.Pos(), "CONTAINS requires a list or string on the left, got %s", lt)
		}
		return BoolType

	default: // ordering
		orderable := func(t Type) bool {
			return t.Kind == TypeUnknown || t.Kind == TypeNull || t.Kind == TypeNumber || t.Kind == TypeString
		}
		switch {
		case !orderable(lt):
			a.typeErr(n.Left.Pos(), "operator %s requires number or string, got %s", n.Op, lt)
		case !orderable(rt):
			a.typeErr(n.Right.Pos(), "operator %s requires number or string, got %s", n.Op, rt)
		case known && lt.Kind != rt.Kind:
			a.typeErr(n.Pos(), "cannot compare %s %s %s", lt, n.Op, rt)
		}
		return BoolType
	}
}

func (a *analyzer) inferCall(n *Call, c clause, inAgg bool) Type {
	fn, ok := LookupFunction(n.Name)
	if !ok {
		a.typeErr(n.Pos(), "unknown function %s", strings.ToUpper(n.Name))
		for _, arg := range n.Args {
			a.check(arg, c, inAgg)
		}
		return Unknown
	}

	if fn.Aggregate {
		switch {
		case inAgg:
			a.groupErr(n.Pos(), "aggregate %s cannot be nested in another aggregate", fn.Name)
		case c == clauseWhere || c == clauseGroupBy:
			a.groupErr(n.Pos(), "aggregate %s is not allowed in %s", fn.Name, c)
		}
	}

	args := make([]Type, len(n.Args))
	for i, arg := range n.Args {
		args[i] = a.check(arg, c, inAgg || fn.Aggregate)
	}

	minArgs, maxArgs := fn.Arity()
	if len(args) < minArgs || len(args) > maxArgs {
		if minArgs == maxArgs {
			a.typeErr(n.Pos(), "%s takes %d argument(s), got %d", fn.Name, minArgs, len(args))
		} else {
			a.typeErr(n.Pos(), "%s takes %d to %d arguments, got %d", fn.Name, minArgs, maxArgs, len(args))
		}
	} else {
		for i, t := range args {
			if !fn.params[i].accepts(t) {
				a.typeErr(n.Args[i].Pos(), "argument %d of %s must be %s, got %s", i+1, fn.Name, fn.params[i], t.Base())
			}
		}
	}

	result := fn.result(args)
	if fn.Aggregate {
		return AggregateOf(result)
	}
	return result
}
