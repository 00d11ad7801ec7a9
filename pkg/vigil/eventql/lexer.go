package eventql

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF    tokenKind = iota
	tokWord             // identifier or keyword
	tokNumber           // 42 | 3.14 | 1e-3
	tokString           // "..." or '...', unescaped
	tokPunct            // operators and delimiters
)

type token struct {
	kind tokenKind
	text string // unescaped text for strings, raw text otherwise
	pos  Pos
}

// keywords are reserved and cannot be used as bare identifiers. Member
// names and object field names may still use them.
var keywords = map[string]bool{
	"FROM": true, "IN": true, "WHERE": true, "GROUP": true, "BY": true,
	"HAVING": true, "PROJECT": true, "INTO": true, "ORDER": true, "ASC": true,
	"DESC": true, "TOP": true, "AND": true, "OR": true, "XOR": true,
	"NOT": true, "CONTAINS": true, "TRUE": true, "FALSE": true, "NULL": true,
}

func isKeyword(word string) bool {
	return keywords[strings.ToUpper(word)]
}

func (t token) is(kind tokenKind, text string) bool {
	if t.kind != kind {
		return false
	}
	if kind == tokWord {
		return strings.EqualFold(t.text, text)
	}
	return t.text == text
}

// twoCharOps are checked before single characters.
var twoCharOps = []string{"==", "!=", "<=", ">="}

const singleCharOps = "<>+-*/!(){}[],:."

type lexer struct {
	src  string
	off  int
	line int
	col  int
}

// tokenize splits src into tokens, ending with tokEOF.
func tokenize(src string) ([]token, error) {
	lx := &lexer{src: src, line: 1, col: 1}
	var tokens []token
	for {
		tok, err := lx.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.kind == tokEOF {
			return tokens, nil
		}
	}
}

func (lx *lexer) advance(n int) {
	for _, r := range lx.src[lx.off : lx.off+n] {
		if r == '\n' {
			lx.line++
			lx.col = 1
		} else {
			lx.col++
		}
	}
	lx.off += n
}

func (lx *lexer) errorf(pos Pos, tok, msg string) *ParseError {
	return &ParseError{Pos: pos, Token: tok, Msg: msg}
}

func (lx *lexer) next() (token, error) {
	for lx.off < len(lx.src) {
		r, size := utf8.DecodeRuneInString(lx.src[lx.off:])
		if !unicode.IsSpace(r) {
			break
		}
		lx.advance(size)
	}

	pos := Pos{Line: lx.line, Column: lx.col}
	if lx.off >= len(lx.src) {
		return token{kind: tokEOF, pos: pos}, nil
	}

	rest := lx.src[lx.off:]
	r, size := utf8.DecodeRuneInString(rest)

	switch {
	case r == '"' || r == '\'':
		return lx.lexString(pos, byte(r))
	case r >= '0' && r <= '9':
		return lx.lexNumber(pos), nil
	case unicode.IsLetter(r) || r == '_':
		end := size
		for end < len(rest) {
			c, n := utf8.DecodeRuneInString(rest[end:])
			if !unicode.IsLetter(c) && !unicode.IsDigit(c) && c != '_' {
				break
			}
			end += n
		}
		lx.advance(end)
		return token{kind: tokWord, text: rest[:end], pos: pos}, nil
	}

	for _, op := range twoCharOps {
		if strings.HasPrefix(rest, op) {
			lx.advance(2)
			return token{kind: tokPunct, text: op, pos: pos}, nil
		}
	}
	if strings.ContainsRune(singleCharOps, r) {
		lx.advance(1)
		return token{kind: tokPunct, text: string(r), pos: pos}, nil
	}
	return token{}, lx.errorf(pos, string(r), "unexpected character")
}

func (lx *lexer) lexNumber(pos Pos) token {
	rest := lx.src[lx.off:]
	end := digits(rest, 0)
	if end+1 < len(rest) && rest[end] == '.' && isDigit(rest[end+1]) {
		end = digits(rest, end+1)
	}
	if end < len(rest) && (rest[end] == 'e' || rest[end] == 'E') {
		exp := end + 1
		if exp < len(rest) && (rest[exp] == '+' || rest[exp] == '-') {
			exp++
		}
		if exp < len(rest) && isDigit(rest[exp]) {
			end = digits(rest, exp)
		}
	}
	lx.advance(end)
	return token{kind: tokNumber, text: rest[:end], pos: pos}
}

func digits(s string, i int) int {
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	return i
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func (lx *lexer) lexString(pos Pos, quote byte) (token, error) {
	rest := lx.src[lx.off:]
	end := 1
	for end < len(rest) && rest[end] != quote {
		if rest[end] == '\\' {
			end++
		}
		end++
	}
	if end >= len(rest) {
		return token{}, lx.errorf(pos, rest[:1], "unterminated string")
	}

	var sb strings.Builder
	body := rest[1:end]
	for len(body) > 0 {
		r, multibyte, tail, err := strconv.UnquoteChar(body, quote)
		if err != nil {
			return token{}, lx.errorf(pos, rest[:end+1], "invalid escape sequence")
		}
		if r < utf8.RuneSelf || !multibyte {
			sb.WriteByte(byte(r))
		} else {
			sb.WriteRune(r)
		}
		body = tail
	}

	lx.advance(end + 1)
	return token{kind: tokString, text: sb.String(), pos: pos}, nil
}
