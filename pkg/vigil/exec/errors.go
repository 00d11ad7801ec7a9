package exec

import (
	"errors"
	"fmt"

	"github.com/randalmurphal/vigil/pkg/vigil/eventql"
	"github.com/randalmurphal/vigil/pkg/vigil/value"
)

// ErrTooManyGroups is returned when a grouping query produces more distinct
// key tuples than Options.MaxGroups allows.
var ErrTooManyGroups = errors.New("too many groups")

// RuntimeTypeError reports a value whose runtime kind does not fit the
// operation applied to it, such as comparing a string payload field with a
// number. By default it only excludes the row being evaluated.
type RuntimeTypeError struct {
	Pos  eventql.Pos
	Expr string
	Msg  string
}

func (e *RuntimeTypeError) Error() string {
	return fmt.Sprintf("runtime type error at %s in %s: %s", e.Pos, e.Expr, e.Msg)
}

func typeErr(e eventql.Expr, format string, args ...any) *RuntimeTypeError {
	return &RuntimeTypeError{Pos: e.Pos(), Expr: e.String(), Msg: fmt.Sprintf(format, args...)}
}

func kindErr(e eventql.Expr, want string, got value.Value) *RuntimeTypeError {
	return typeErr(e, "want %s, got %s", want, got.Kind())
}
