package eventql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/randalmurphal/vigil/pkg/vigil/value"
)

// Parse parses EventQL text into a Query. It stops at the first malformed
// token and returns a *ParseError.
func Parse(text string) (*Query, error) {
	tokens, err := tokenize(text)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	q, err := p.parseQuery()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.unexpected(tok, "end of query")
	}
	return q, nil
}

// ParseExpr parses a standalone expression.
func ParseExpr(text string) (Expr, error) {
	tokens, err := tokenize(text)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.unexpected(tok, "end of expression")
	}
	return e, nil
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) peekAt(offset int) token {
	if i := p.pos + offset; i < len(p.tokens) {
		return p.tokens[i]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *parser) consume() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) unexpected(tok token, want string) *ParseError {
	text := tok.text
	if tok.kind == tokString {
		text = strconv.Quote(tok.text)
	}
	msg := "expected " + want
	if tok.kind == tokEOF {
		msg = "unexpected end of query, " + msg
	}
	return &ParseError{Pos: tok.pos, Token: text, Msg: msg}
}

// accept consumes the next token when it matches.
func (p *parser) accept(kind tokenKind, text string) bool {
	if p.peek().is(kind, text) {
		p.consume()
		return true
	}
	return false
}

func (p *parser) expect(kind tokenKind, text string) (token, error) {
	tok := p.peek()
	if !tok.is(kind, text) {
		return tok, p.unexpected(tok, fmt.Sprintf("%q", text))
	}
	return p.consume(), nil
}

func (p *parser) expectKeyword(kw string) error {
	_, err := p.expect(tokWord, kw)
	return err
}

// ident consumes a non-reserved word.
func (p *parser) ident(what string) (token, error) {
	tok := p.peek()
	if tok.kind != tokWord || isKeyword(tok.text) {
		return tok, p.unexpected(tok, what)
	}
	return p.consume(), nil
}

func (p *parser) parseQuery() (*Query, error) {
	q := &Query{}

	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	binding, err := p.ident("binding name")
	if err != nil {
		return nil, err
	}
	q.Binding, q.BindingPos = binding.text, binding.pos

	if err := p.expectKeyword("IN"); err != nil {
		return nil, err
	}
	switch tok := p.peek(); {
	case tok.kind == tokString:
		p.consume()
		q.Source = Source{Kind: SourceSubject, Path: tok.text, Pos: tok.pos}
	case tok.kind == tokWord && !isKeyword(tok.text):
		p.consume()
		q.Source = Source{Kind: SourceNamed, Name: tok.text, Pos: tok.pos}
	default:
		return nil, p.unexpected(tok, "source name or subject path")
	}

	if p.accept(tokWord, "WHERE") {
		if q.Where, err = p.parseExpr(); err != nil {
			return nil, err
		}
	}

	if p.accept(tokWord, "GROUP") {
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		if q.GroupBy, err = p.parseExprList(tokEOF, ""); err != nil {
			return nil, err
		}
		if p.accept(tokWord, "HAVING") {
			if q.Having, err = p.parseExpr(); err != nil {
				return nil, err
			}
		}
	}

	if err := p.expectKeyword("PROJECT"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("INTO"); err != nil {
		return nil, err
	}
	if !p.peek().is(tokPunct, "{") {
		return nil, p.unexpected(p.peek(), "object after PROJECT INTO")
	}
	if q.Project, err = p.parseObject(); err != nil {
		return nil, err
	}

	if p.accept(tokWord, "ORDER") {
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		q.OrderBy = &OrderBy{Expr: expr}
		if p.accept(tokWord, "DESC") {
			q.OrderBy.Desc = true
		} else {
			p.accept(tokWord, "ASC")
		}
	}

	if p.accept(tokWord, "TOP") {
		tok := p.peek()
		if tok.kind != tokNumber {
			return nil, p.unexpected(tok, "row count after TOP")
		}
		n, err := strconv.Atoi(tok.text)
		if err != nil || n < 0 {
			return nil, &ParseError{Pos: tok.pos, Token: tok.text, Msg: "TOP requires a non-negative integer"}
		}
		p.consume()
		q.Top = &n
	}

	return q, nil
}

// parseExprList parses a comma-separated list. When closeKind is tokPunct
// the list stops before the closing delimiter and may be empty.
func (p *parser) parseExprList(closeKind tokenKind, closeText string) ([]Expr, error) {
	var exprs []Expr
	if closeKind == tokPunct && p.peek().is(tokPunct, closeText) {
		return exprs, nil
	}
	for {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
		if !p.accept(tokPunct, ",") {
			return exprs, nil
		}
		if closeKind == tokPunct && p.peek().is(tokPunct, closeText) {
			return exprs, nil
		}
	}
}

func (p *parser) parseExpr() (Expr, error) {
	return p.parseOr()
}

// binaryLevel parses one left-associative precedence level.
func (p *parser) binaryLevel(next func() (Expr, error), ops map[string]BinaryOp) (Expr, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		op, ok := lookupOp(tok, ops)
		if !ok {
			return left, nil
		}
		p.consume()
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = &Binary{node: node{pos: left.Pos()}, Op: op, Left: left, Right: right}
	}
}

func lookupOp(tok token, ops map[string]BinaryOp) (BinaryOp, bool) {
	switch tok.kind {
	case tokWord:
		op, ok := ops[strings.ToUpper(tok.text)]
		return op, ok
	case tokPunct:
		op, ok := ops[tok.text]
		return op, ok
	}
	return 0, false
}

var (
	orOps  = map[string]BinaryOp{"OR": OpOr}
	xorOps = map[string]BinaryOp{"XOR": OpXor}
	andOps = map[string]BinaryOp{"AND": OpAnd}
	cmpOps = map[string]BinaryOp{
		"==": OpEq, "!=": OpNeq, "<": OpLt, "<=": OpLte, ">": OpGt, ">=": OpGte,
		"CONTAINS": OpContains,
	}
	addOps = map[string]BinaryOp{"+": OpAdd, "-": OpSub}
	mulOps = map[string]BinaryOp{"*": OpMul, "/": OpDiv}
)

func (p *parser) parseOr() (Expr, error)  { return p.binaryLevel(p.parseXor, orOps) }
func (p *parser) parseXor() (Expr, error) { return p.binaryLevel(p.parseAnd, xorOps) }
func (p *parser) parseAnd() (Expr, error) { return p.binaryLevel(p.parseCmp, andOps) }
func (p *parser) parseAdd() (Expr, error) { return p.binaryLevel(p.parseMul, addOps) }
func (p *parser) parseMul() (Expr, error) { return p.binaryLevel(p.parseUnary, mulOps) }

// parseCmp parses a single, non-associative comparison.
func (p *parser) parseCmp() (Expr, error) {
	left, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	op, ok := lookupOp(p.peek(), cmpOps)
	if !ok {
		return left, nil
	}
	p.consume()
	right, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); isComparisonToken(tok) {
		return nil, &ParseError{Pos: tok.pos, Token: tok.text, Msg: "comparisons cannot be chained; use AND"}
	}
	return &Binary{node: node{pos: left.Pos()}, Op: op, Left: left, Right: right}, nil
}

func isComparisonToken(tok token) bool {
	_, ok := lookupOp(tok, cmpOps)
	return ok
}

func (p *parser) parseUnary() (Expr, error) {
	tok := p.peek()
	switch {
	case tok.is(tokWord, "NOT"), tok.is(tokPunct, "!"):
		p.consume()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{node: node{pos: tok.pos}, Op: OpNot, Operand: operand}, nil
	case tok.is(tokPunct, "-"):
		p.consume()
		// A minus directly followed by a number is a negative literal.
		if num := p.peek(); num.kind == tokNumber && !p.peekAt(1).is(tokPunct, ".") {
			p.consume()
			n, err := parseNumber(num)
			if err != nil {
				return nil, err
			}
			return &Literal{node: node{pos: tok.pos}, Value: value.Number(-n)}, nil
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{node: node{pos: tok.pos}, Op: OpNeg, Operand: operand}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (Expr, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.accept(tokPunct, ".") {
		tok := p.peek()
		if tok.kind != tokWord {
			return nil, p.unexpected(tok, "field name after '.'")
		}
		p.consume()
		e = &MemberAccess{node: node{pos: e.Pos()}, Target: e, Field: tok.text}
	}
	return e, nil
}

func parseNumber(tok token) (float64, error) {
	n, err := strconv.ParseFloat(tok.text, 64)
	if err != nil {
		return 0, &ParseError{Pos: tok.pos, Token: tok.text, Msg: "invalid number"}
	}
	return n, nil
}

func (p *parser) parsePrimary() (Expr, error) {
	tok := p.peek()
	switch tok.kind {
	case tokNumber:
		p.consume()
		n, err := parseNumber(tok)
		if err != nil {
			return nil, err
		}
		return &Literal{node: node{pos: tok.pos}, Value: value.Number(n)}, nil

	case tokString:
		p.consume()
		return &Literal{node: node{pos: tok.pos}, Value: value.String(tok.text)}, nil

	case tokWord:
		switch strings.ToUpper(tok.text) {
		case "TRUE":
			p.consume()
			return &Literal{node: node{pos: tok.pos}, Value: value.Bool(true)}, nil
		case "FALSE":
			p.consume()
			return &Literal{node: node{pos: tok.pos}, Value: value.Bool(false)}, nil
		case "NULL":
			p.consume()
			return &Literal{node: node{pos: tok.pos}, Value: value.Null()}, nil
		}
		if isKeyword(tok.text) {
			return nil, p.unexpected(tok, "expression")
		}
		p.consume()
		if p.accept(tokPunct, "(") {
			args, err := p.parseExprList(tokPunct, ")")
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokPunct, ")"); err != nil {
				return nil, err
			}
			return &Call{node: node{pos: tok.pos}, Name: tok.text, Args: args}, nil
		}
		return &Identifier{node: node{pos: tok.pos}, Name: tok.text}, nil

	case tokPunct:
		switch tok.text {
		case "(":
			p.consume()
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokPunct, ")"); err != nil {
				return nil, err
			}
			return e, nil
		case "{":
			return p.parseObject()
		case "[":
			p.consume()
			items, err := p.parseExprList(tokPunct, "]")
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokPunct, "]"); err != nil {
				return nil, err
			}
			return &ListConstruct{node: node{pos: tok.pos}, Items: items}, nil
		}
	}
	return nil, p.unexpected(tok, "expression")
}

func (p *parser) parseObject() (*ObjectConstruct, error) {
	open, err := p.expect(tokPunct, "{")
	if err != nil {
		return nil, err
	}
	obj := &ObjectConstruct{node: node{pos: open.pos}}
	seen := make(map[string]bool)

	for !p.peek().is(tokPunct, "}") {
		tok := p.peek()
		if tok.kind != tokWord && tok.kind != tokString {
			return nil, p.unexpected(tok, "field name")
		}
		p.consume()
		if seen[tok.text] {
			return nil, &ParseError{Pos: tok.pos, Token: tok.text, Msg: "duplicate field name"}
		}
		seen[tok.text] = true

		if _, err := p.expect(tokPunct, ":"); err != nil {
			return nil, err
		}
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		obj.Fields = append(obj.Fields, Field{Name: tok.text, Pos: tok.pos, Value: v})

		if !p.accept(tokPunct, ",") {
			break
		}
	}
	if _, err := p.expect(tokPunct, "}"); err != nil {
		return nil, err
	}
	return obj, nil
}
