package eventql

import "github.com/randalmurphal/vigil/pkg/vigil/value"

// Expr is an EventQL expression node. The set of implementations is closed.
type Expr interface {
	// Pos returns the position of the node's first token.
	Pos() Pos
	// Type returns the static type assigned by Analyze, Unknown before.
	Type() Type
	// String renders the node as canonical EventQL.
	String() string

	setType(Type)
	exprNode()
}

type node struct {
	pos Pos
	typ Type
}

func (n *node) Pos() Pos       { return n.pos }
func (n *node) Type() Type     { return n.typ }
func (n *node) setType(t Type) { n.typ = t }
func (n *node) exprNode()      {}

// Identifier references the query binding, e.g. e.
type Identifier struct {
	node
	Name string
}

// MemberAccess reads a field: Target.Field.
type MemberAccess struct {
	node
	Target Expr
	Field  string
}

// Literal is a constant Null, Bool, Number or String.
type Literal struct {
	node
	Value value.Value
}

// BinaryOp identifies a binary operator.
type BinaryOp int

const (
	OpOr BinaryOp = iota
	OpXor
	OpAnd
	OpEq
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
	OpContains
	OpAdd
	OpSub
	OpMul
	OpDiv
)

var binaryOpText = [...]string{
	OpOr: "OR", OpXor: "XOR", OpAnd: "AND",
	OpEq: "==", OpNeq: "!=", OpLt: "<", OpLte: "<=", OpGt: ">", OpGte: ">=",
	OpContains: "CONTAINS",
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/",
}

func (op BinaryOp) String() string {
	if int(op) < len(binaryOpText) {
		return binaryOpText[op]
	}
	return "?"
}

// IsComparison reports whether op is one of == != < <= > >= CONTAINS.
func (op BinaryOp) IsComparison() bool { return op >= OpEq && op <= OpContains }

// IsLogical reports whether op is AND, OR or XOR.
func (op BinaryOp) IsLogical() bool { return op <= OpAnd }

// IsArithmetic reports whether op is + - * or /.
func (op BinaryOp) IsArithmetic() bool { return op >= OpAdd }

// Binary applies an infix operator.
type Binary struct {
	node
	Op    BinaryOp
	Left  Expr
	Right Expr
}

// UnaryOp identifies a prefix operator.
type UnaryOp int

const (
	OpNot UnaryOp = iota
	OpNeg
)

func (op UnaryOp) String() string {
	if op == OpNeg {
		return "-"
	}
	return "NOT"
}

// Unary applies a prefix operator.
type Unary struct {
	node
	Op      UnaryOp
	Operand Expr
}

// Call invokes a scalar or aggregate function. Name is kept as written;
// function lookup is case-insensitive.
type Call struct {
	node
	Name string
	Args []Expr
}

// Field is one key/value pair of an ObjectConstruct.
type Field struct {
	Name  string
	Pos   Pos
	Value Expr
}

// ObjectConstruct builds an object; fields keep declaration order.
type ObjectConstruct struct {
	node
	Fields []Field
}

// ListConstruct builds a list.
type ListConstruct struct {
	node
	Items []Expr
}

// SourceKind distinguishes named sources from subject paths.
type SourceKind int

const (
	// SourceNamed is events, eventtypes or subjects.
	SourceNamed SourceKind = iota
	// SourceSubject is a quoted subject path.
	SourceSubject
)

// Named source identifiers.
const (
	SourceEvents     = "events"
	SourceEventTypes = "eventtypes"
	SourceSubjects   = "subjects"
)

// Source is the FROM clause target.
type Source struct {
	Kind SourceKind
	Name string // SourceNamed
	Path string // SourceSubject
	Pos  Pos
}

// YieldsEvents reports whether the binding is bound to events rather than
// to catalog strings.
func (s Source) YieldsEvents() bool {
	return s.Kind == SourceSubject || normalizeName(s.Name) == SourceEvents
}

// OrderBy is an ORDER BY clause.
type OrderBy struct {
	Expr Expr
	Desc bool
}

// Query is a parsed EventQL query.
type Query struct {
	Binding    string
	BindingPos Pos
	Source     Source
	Where      Expr
	GroupBy    []Expr
	Having     Expr
	Project    *ObjectConstruct
	OrderBy    *OrderBy
	Top        *int

	analyzed    bool
	aggregating bool
}

// Analyzed reports whether Analyze accepted the query.
func (q *Query) Analyzed() bool { return q.analyzed }

// Aggregating reports whether the query groups events, either through
// GROUP BY or by using aggregates without one. Valid after Analyze.
func (q *Query) Aggregating() bool { return q.aggregating }

// ResultType returns the static type of each result row.
func (q *Query) ResultType() Type {
	if q.Project == nil {
		return Unknown
	}
	return q.Project.Type()
}

// Walk calls fn for e and every descendant in depth-first pre-order. When fn
// returns false the children of that node are skipped.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch n := e.(type) {
	case *MemberAccess:
		Walk(n.Target, fn)
	case *Binary:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *Unary:
		Walk(n.Operand, fn)
	case *Call:
		for _, a := range n.Args {
			Walk(a, fn)
		}
	case *ObjectConstruct:
		for _, f := range n.Fields {
			Walk(f.Value, fn)
		}
	case *ListConstruct:
		for _, item := range n.Items {
			Walk(item, fn)
		}
	}
}
