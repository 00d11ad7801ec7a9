package eventql

import (
	"fmt"
	"strings"
)

// Pos is a 1-based line/column position in query text.
type Pos struct {
	Line   int
	Column int
}

// String formats the position as "line:column".
func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// ParseError reports the first malformed token of a query.
type ParseError struct {
	Pos   Pos
	Token string // offending token text, empty at end of input
	Msg   string
}

func (e *ParseError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("eventql: parse error at %s: %s", e.Pos, e.Msg)
	}
	return fmt.Sprintf("eventql: parse error at %s near %q: %s", e.Pos, e.Token, e.Msg)
}

// TypeError reports an expression whose static type is invalid where it is
// used.
type TypeError struct {
	Pos Pos
	Msg string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("eventql: type error at %s: %s", e.Pos, e.Msg)
}

// GroupingError reports a projection or clause that is illegal for the
// query's aggregation context.
type GroupingError struct {
	Pos Pos
	Msg string
}

func (e *GroupingError) Error() string {
	return fmt.Sprintf("eventql: grouping error at %s: %s", e.Pos, e.Msg)
}

// AnalysisError collects every TypeError and GroupingError found in a query.
// errors.As reaches the individual diagnostics through Unwrap.
type AnalysisError struct {
	Errors []error
}

func (e *AnalysisError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("eventql: %d analysis errors:\n  %s", len(e.Errors), strings.Join(msgs, "\n  "))
}

// Unwrap returns the collected diagnostics.
func (e *AnalysisError) Unwrap() []error {
	return e.Errors
}
