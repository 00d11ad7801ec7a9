package eventql

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Binding strength of each expression form, used to decide where the
// printer needs parentheses.
const (
	precOr = iota + 1
	precXor
	precAnd
	precCmp
	precAdd
	precMul
	precUnary
	precPostfix
	precPrimary
)

func binaryPrec(op BinaryOp) int {
	switch {
	case op == OpOr:
		return precOr
	case op == OpXor:
		return precXor
	case op == OpAnd:
		return precAnd
	case op.IsComparison():
		return precCmp
	case op == OpAdd || op == OpSub:
		return precAdd
	default:
		return precMul
	}
}

func precedence(e Expr) int {
	switch n := e.(type) {
	case *Binary:
		return binaryPrec(n.Op)
	case *Unary:
		return precUnary
	case *MemberAccess:
		return precPostfix
	case *Literal:
		if num, ok := n.Value.AsNumber(); ok && math.Signbit(num) {
			return precUnary
		}
	}
	return precPrimary
}

// writeExpr writes e, parenthesized when it binds looser than minPrec.
func writeExpr(sb *strings.Builder, e Expr, minPrec int) {
	if precedence(e) < minPrec {
		sb.WriteByte('(')
		writeNode(sb, e)
		sb.WriteByte(')')
		return
	}
	writeNode(sb, e)
}

func writeNode(sb *strings.Builder, e Expr) {
	switch n := e.(type) {
	case *Identifier:
		sb.WriteString(n.Name)
	case *MemberAccess:
		writeExpr(sb, n.Target, precPostfix)
		sb.WriteByte('.')
		sb.WriteString(n.Field)
	case *Literal:
		sb.WriteString(n.Value.String())
	case *Binary:
		prec := binaryPrec(n.Op)
		right := prec + 1
		left := prec
		if n.Op.IsComparison() {
			left = prec + 1
		}
		writeExpr(sb, n.Left, left)
		sb.WriteByte(' ')
		sb.WriteString(n.Op.String())
		sb.WriteByte(' ')
		writeExpr(sb, n.Right, right)
	case *Unary:
		if n.Op == OpNot {
			sb.WriteString("NOT ")
			writeExpr(sb, n.Operand, precUnary)
			return
		}
		sb.WriteByte('-')
		// Keep -(1) and -(-x) distinct from the literal -1 and from --x.
		switch operand := n.Operand.(type) {
		case *Literal:
			if _, isNum := operand.Value.AsNumber(); isNum {
				sb.WriteByte('(')
				writeNode(sb, operand)
				sb.WriteByte(')')
				return
			}
		case *Unary:
			if operand.Op == OpNeg {
				sb.WriteByte('(')
				writeNode(sb, operand)
				sb.WriteByte(')')
				return
			}
		}
		writeExpr(sb, n.Operand, precUnary)
	case *Call:
		sb.WriteString(strings.ToUpper(n.Name))
		sb.WriteByte('(')
		for i, a := range n.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeNode(sb, a)
		}
		sb.WriteByte(')')
	case *ObjectConstruct:
		sb.WriteByte('{')
		for i, f := range n.Fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeFieldName(sb, f.Name)
			sb.WriteString(": ")
			writeNode(sb, f.Value)
		}
		sb.WriteByte('}')
	case *ListConstruct:
		sb.WriteByte('[')
		for i, item := range n.Items {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeNode(sb, item)
		}
		sb.WriteByte(']')
	}
}

func writeFieldName(sb *strings.Builder, name string) {
	if isIdentifier(name) {
		sb.WriteString(name)
		return
	}
	sb.WriteString(strconv.Quote(name))
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}

func exprString(e Expr) string {
	var sb strings.Builder
	writeNode(&sb, e)
	return sb.String()
}

func (n *Identifier) String() string      { return exprString(n) }
func (n *MemberAccess) String() string    { return exprString(n) }
func (n *Literal) String() string         { return exprString(n) }
func (n *Binary) String() string          { return exprString(n) }
func (n *Unary) String() string           { return exprString(n) }
func (n *Call) String() string            { return exprString(n) }
func (n *ObjectConstruct) String() string { return exprString(n) }
func (n *ListConstruct) String() string   { return exprString(n) }

// String renders the FROM clause target.
func (s Source) String() string {
	if s.Kind == SourceSubject {
		return strconv.Quote(s.Path)
	}
	return s.Name
}

// String renders q as canonical EventQL. Parse(q.String()) yields an
// equivalent query.
func (q *Query) String() string {
	var sb strings.Builder
	sb.WriteString("FROM ")
	sb.WriteString(q.Binding)
	sb.WriteString(" IN ")
	sb.WriteString(q.Source.String())

	if q.Where != nil {
		sb.WriteString(" WHERE ")
		writeNode(&sb, q.Where)
	}
	if len(q.GroupBy) > 0 {
		sb.WriteString(" GROUP BY ")
		for i, k := range q.GroupBy {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeNode(&sb, k)
		}
		if q.Having != nil {
			sb.WriteString(" HAVING ")
			writeNode(&sb, q.Having)
		}
	}
	sb.WriteString(" PROJECT INTO ")
	if q.Project != nil {
		writeNode(&sb, q.Project)
	} else {
		sb.WriteString("{}")
	}
	if q.OrderBy != nil {
		sb.WriteString(" ORDER BY ")
		writeNode(&sb, q.OrderBy.Expr)
		if q.OrderBy.Desc {
			sb.WriteString(" DESC")
		} else {
			sb.WriteString(" ASC")
		}
	}
	if q.Top != nil {
		sb.WriteString(" TOP ")
		sb.WriteString(strconv.Itoa(*q.Top))
	}
	return sb.String()
}
