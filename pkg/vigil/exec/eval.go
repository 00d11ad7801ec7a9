package exec

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/randalmurphal/vigil/pkg/vigil/eventql"
	"github.com/randalmurphal/vigil/pkg/vigil/value"
)

// evalFn evaluates a compiled expression against a frame.
type evalFn func(f *frame) (value.Value, error)

// compiler turns analyzed expressions into closures.
//
// A grouped compiler evaluates over finished groups: any subexpression whose
// canonical text equals a GROUP BY key reads that key, and aggregate calls
// read their finalized slot.
type compiler struct {
	binding string
	events  bool
	now     time.Time

	grouped bool
	keys    map[string]int
	aggs    map[string]int
}

func (c *compiler) compile(e eventql.Expr) (evalFn, error) {
	if c.grouped {
		text := e.String()
		if i, ok := c.keys[text]; ok {
			return func(f *frame) (value.Value, error) { return f.group.keys[i], nil }, nil
		}
		if call, ok := e.(*eventql.Call); ok && eventql.IsAggregate(call.Name) {
			i, ok := c.aggs[text]
			if !ok {
				return nil, fmt.Errorf("aggregate %s has no accumulator", text)
			}
			return func(f *frame) (value.Value, error) { return f.group.results[i], nil }, nil
		}
	}

	switch n := e.(type) {
	case *eventql.Literal:
		v := n.Value
		return func(*frame) (value.Value, error) { return v, nil }, nil
	case *eventql.Identifier:
		return c.compileIdentifier(n)
	case *eventql.MemberAccess:
		return c.compileMember(n)
	case *eventql.Unary:
		return c.compileUnary(n)
	case *eventql.Binary:
		return c.compileBinary(n)
	case *eventql.Call:
		return c.compileCall(n)
	case *eventql.ObjectConstruct:
		return c.compileObject(n)
	case *eventql.ListConstruct:
		return c.compileList(n)
	default:
		return nil, fmt.Errorf("unsupported expression %T", e)
	}
}

func (c *compiler) compileAll(exprs []eventql.Expr) ([]evalFn, error) {
	fns := make([]evalFn, len(exprs))
	for i, e := range exprs {
		fn, err := c.compile(e)
		if err != nil {
			return nil, err
		}
		fns[i] = fn
	}
	return fns, nil
}

func (c *compiler) compileIdentifier(n *eventql.Identifier) (evalFn, error) {
	if n.Name != c.binding {
		return nil, fmt.Errorf("unknown identifier %q at %s", n.Name, n.Pos())
	}
	if c.grouped {
		return nil, fmt.Errorf("%s is neither a group key nor an aggregate", n.Name)
	}
	if c.events {
		return func(f *frame) (value.Value, error) { return f.eventValue(n) }, nil
	}
	return func(f *frame) (value.Value, error) { return f.item, nil }, nil
}

func (c *compiler) compileMember(n *eventql.MemberAccess) (evalFn, error) {
	if path, ok := c.eventPath(n); ok {
		return c.compileEventPath(n, path)
	}
	target, err := c.compile(n.Target)
	if err != nil {
		return nil, err
	}
	return func(f *frame) (value.Value, error) {
		v, err := target(f)
		if err != nil {
			return v, err
		}
		return member(n, v, n.Field)
	}, nil
}

// eventPath returns the field names of a member chain rooted at the event
// binding, outermost last.
func (c *compiler) eventPath(n *eventql.MemberAccess) ([]string, bool) {
	if c.grouped || !c.events {
		return nil, false
	}
	var path []string
	var e eventql.Expr = n
	for {
		m, ok := e.(*eventql.MemberAccess)
		if !ok {
			break
		}
		path = append(path, m.Field)
		e = m.Target
	}
	id, ok := e.(*eventql.Identifier)
	if !ok || id.Name != c.binding {
		return nil, false
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, true
}

func (c *compiler) compileEventPath(n *eventql.MemberAccess, path []string) (evalFn, error) {
	head, rest := path[0], path[1:]
	if head == "data" {
		if len(rest) == 0 {
			return func(f *frame) (value.Value, error) { return f.payload(n) }, nil
		}
		return func(f *frame) (value.Value, error) { return f.payloadPath(n, rest) }, nil
	}
	if !isAttr(head) {
		return nil, fmt.Errorf("events have no field %q", head)
	}
	return func(f *frame) (value.Value, error) {
		v, _ := attr(f.event, head)
		var err error
		for _, name := range rest {
			if v, err = member(n, v, name); err != nil {
				return v, err
			}
		}
		return v, nil
	}, nil
}

func isAttr(name string) bool {
	for _, a := range attrOrder {
		if a == name {
			return true
		}
	}
	return false
}

func (c *compiler) compileUnary(n *eventql.Unary) (evalFn, error) {
	operand, err := c.compile(n.Operand)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case eventql.OpNot:
		return func(f *frame) (value.Value, error) {
			v, err := operand(f)
			if err != nil || v.IsNull() {
				return value.Null(), err
			}
			b, ok := v.AsBool()
			if !ok {
				return value.Null(), kindErr(n, "bool", v)
			}
			return value.Bool(!b), nil
		}, nil
	default:
		return func(f *frame) (value.Value, error) {
			v, err := operand(f)
			if err != nil || v.IsNull() {
				return value.Null(), err
			}
			x, ok := v.AsNumber()
			if !ok {
				return value.Null(), kindErr(n, "number", v)
			}
			return value.Number(-x), nil
		}, nil
	}
}

func (c *compiler) compileBinary(n *eventql.Binary) (evalFn, error) {
	left, err := c.compile(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := c.compile(n.Right)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case eventql.OpAnd, eventql.OpOr:
		return logical(n, left, right), nil
	case eventql.OpXor:
		return func(f *frame) (value.Value, error) {
			a, b, err := operands(f, left, right)
			if err != nil || a.IsNull() || b.IsNull() {
				return value.Null(), err
			}
			x, ok := a.AsBool()
			if !ok {
				return value.Null(), kindErr(n.Left, "bool", a)
			}
			y, ok := b.AsBool()
			if !ok {
				return value.Null(), kindErr(n.Right, "bool", b)
			}
			return value.Bool(x != y), nil
		}, nil
	case eventql.OpEq, eventql.OpNeq:
		neq := n.Op == eventql.OpNeq
		return func(f *frame) (value.Value, error) {
			a, b, err := operands(f, left, right)
			if err != nil {
				return value.Null(), err
			}
			if a.IsNull() || b.IsNull() {
				return value.Bool((a.IsNull() && b.IsNull()) != neq), nil
			}
			if a.Kind() != b.Kind() {
				return value.Null(), typeErr(n, "cannot compare %s with %s", a.Kind(), b.Kind())
			}
			return value.Bool(value.Equal(a, b) != neq), nil
		}, nil
	case eventql.OpLt, eventql.OpLte, eventql.OpGt, eventql.OpGte:
		return ordering(n, left, right), nil
	case eventql.OpContains:
		return func(f *frame) (value.Value, error) {
			a, b, err := operands(f, left, right)
			if err != nil || a.IsNull() {
				return value.Null(), err
			}
			if items, ok := a.AsList(); ok {
				for _, item := range items {
					if value.Equal(item, b) {
						return value.Bool(true), nil
					}
				}
				return value.Bool(false), nil
			}
			s, ok := a.AsString()
			if !ok {
				return value.Null(), kindErr(n.Left, "string or list", a)
			}
			if b.IsNull() {
				return value.Null(), nil
			}
			sub, ok := b.AsString()
			if !ok {
				return value.Null(), kindErr(n.Right, "string", b)
			}
			return value.Bool(strings.Contains(s, sub)), nil
		}, nil
	default:
		return arithmetic(n, left, right), nil
	}
}

func operands(f *frame, left, right evalFn) (value.Value, value.Value, error) {
	a, err := left(f)
	if err != nil {
		return a, a, err
	}
	b, err := right(f)
	return a, b, err
}

// logical implements three-valued AND and OR with short-circuiting.
func logical(n *eventql.Binary, left, right evalFn) evalFn {
	isAnd := n.Op == eventql.OpAnd
	truthValue := func(e eventql.Expr, v value.Value) (b, null bool, err error) {
		if v.IsNull() {
			return false, true, nil
		}
		b, ok := v.AsBool()
		if !ok {
			return false, false, kindErr(e, "bool", v)
		}
		return b, false, nil
	}
	return func(f *frame) (value.Value, error) {
		a, err := left(f)
		if err != nil {
			return value.Null(), err
		}
		x, xNull, err := truthValue(n.Left, a)
		if err != nil {
			return value.Null(), err
		}
		// false AND _ is false, true OR _ is true
		if !xNull && x != isAnd {
			return value.Bool(x), nil
		}
		b, err := right(f)
		if err != nil {
			return value.Null(), err
		}
		y, yNull, err := truthValue(n.Right, b)
		if err != nil {
			return value.Null(), err
		}
		if !yNull && y != isAnd {
			return value.Bool(y), nil
		}
		if xNull || yNull {
			return value.Null(), nil
		}
		return value.Bool(isAnd), nil
	}
}

func ordering(n *eventql.Binary, left, right evalFn) evalFn {
	return func(f *frame) (value.Value, error) {
		a, b, err := operands(f, left, right)
		if err != nil || a.IsNull() || b.IsNull() {
			return value.Null(), err
		}
		var cmp int
		switch {
		case a.Kind() == value.KindNumber && b.Kind() == value.KindNumber:
			x, _ := a.AsNumber()
			y, _ := b.AsNumber()
			if math.IsNaN(x) || math.IsNaN(y) {
				return value.Bool(false), nil
			}
			cmp = value.Compare(a, b)
		case a.Kind() == value.KindString && b.Kind() == value.KindString:
			cmp = value.Compare(a, b)
		default:
			return value.Null(), typeErr(n, "cannot order %s against %s", a.Kind(), b.Kind())
		}
		switch n.Op {
		case eventql.OpLt:
			return value.Bool(cmp < 0), nil
		case eventql.OpLte:
			return value.Bool(cmp <= 0), nil
		case eventql.OpGt:
			return value.Bool(cmp > 0), nil
		default:
			return value.Bool(cmp >= 0), nil
		}
	}
}

func arithmetic(n *eventql.Binary, left, right evalFn) evalFn {
	return func(f *frame) (value.Value, error) {
		a, b, err := operands(f, left, right)
		if err != nil || a.IsNull() || b.IsNull() {
			return value.Null(), err
		}
		x, ok := a.AsNumber()
		if !ok {
			return value.Null(), kindErr(n.Left, "number", a)
		}
		y, ok := b.AsNumber()
		if !ok {
			return value.Null(), kindErr(n.Right, "number", b)
		}
		switch n.Op {
		case eventql.OpAdd:
			return value.Number(x + y), nil
		case eventql.OpSub:
			return value.Number(x - y), nil
		case eventql.OpMul:
			return value.Number(x * y), nil
		default:
			return value.Number(x / y), nil
		}
	}
}

func (c *compiler) compileObject(n *eventql.ObjectConstruct) (evalFn, error) {
	names := make([]string, len(n.Fields))
	fns := make([]evalFn, len(n.Fields))
	for i, field := range n.Fields {
		fn, err := c.compile(field.Value)
		if err != nil {
			return nil, err
		}
		names[i], fns[i] = field.Name, fn
	}
	return func(f *frame) (value.Value, error) {
		obj := value.NewObject(len(fns))
		for i, fn := range fns {
			v, err := fn(f)
			if err != nil {
				return value.Null(), err
			}
			obj.Set(names[i], v)
		}
		return value.FromObject(obj), nil
	}, nil
}

func (c *compiler) compileList(n *eventql.ListConstruct) (evalFn, error) {
	fns, err := c.compileAll(n.Items)
	if err != nil {
		return nil, err
	}
	return func(f *frame) (value.Value, error) {
		items := make([]value.Value, len(fns))
		for i, fn := range fns {
			v, err := fn(f)
			if err != nil {
				return value.Null(), err
			}
			items[i] = v
		}
		return value.List(items...), nil
	}, nil
}

// predicate reports whether a WHERE or HAVING result selects the row. Null
// does not; anything but a bool is a runtime type error.
func predicate(e eventql.Expr, v value.Value) (bool, error) {
	switch v.Kind() {
	case value.KindNull:
		return false, nil
	case value.KindBool:
		b, _ := v.AsBool()
		return b, nil
	default:
		return false, kindErr(e, "bool", v)
	}
}
