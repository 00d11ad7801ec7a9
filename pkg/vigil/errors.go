package vigil

import (
	"errors"
	"fmt"

	"github.com/randalmurphal/vigil/pkg/vigil/eventql"
	"github.com/randalmurphal/vigil/pkg/vigil/exec"
)

// Sentinel errors for execution.
var (
	// ErrNilQuery indicates Execute was called without a compiled query.
	ErrNilQuery = errors.New("compiled query is nil")

	// ErrRowsClosed indicates rows were read after Close.
	ErrRowsClosed = errors.New("rows are closed")
)

// RuntimeError ends a query because a collaborator failed: the event source,
// the index, cancellation, or a guard such as exec.ErrTooManyGroups. Rows
// yielded before the error remain valid.
type RuntimeError struct {
	// QueryID identifies the execution in logs and spans.
	QueryID string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	return fmt.Sprintf("vigil: query %s: %v", e.QueryID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// Kind classifies an error returned by this package.
type Kind int

const (
	// KindUnknown is any error not produced by the query pipeline.
	KindUnknown Kind = iota
	// KindParse is a malformed query.
	KindParse
	// KindType is a statically ill-typed expression.
	KindType
	// KindGrouping is a projection illegal for the query's grouping.
	KindGrouping
	// KindRuntimeType is a value of the wrong type met during evaluation.
	KindRuntimeType
	// KindRuntime is a failure that ended execution.
	KindRuntime
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindParse:
		return "parse"
	case KindType:
		return "type"
	case KindGrouping:
		return "grouping"
	case KindRuntimeType:
		return "runtime_type"
	case KindRuntime:
		return "runtime"
	default:
		return "unknown"
	}
}

// KindOf classifies err. An analysis error with several diagnostics is
// classified by its first one.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var parseErr *eventql.ParseError
	if errors.As(err, &parseErr) {
		return KindParse
	}

	var analysisErr *eventql.AnalysisError
	if errors.As(err, &analysisErr) && len(analysisErr.Errors) > 0 {
		return KindOf(analysisErr.Errors[0])
	}

	var typeErr *eventql.TypeError
	if errors.As(err, &typeErr) {
		return KindType
	}

	var groupingErr *eventql.GroupingError
	if errors.As(err, &groupingErr) {
		return KindGrouping
	}

	// Checked before RuntimeError: strict mode wraps these.
	var rte *exec.RuntimeTypeError
	if errors.As(err, &rte) {
		return KindRuntimeType
	}

	var runtimeErr *RuntimeError
	if errors.As(err, &runtimeErr) {
		return KindRuntime
	}

	return KindUnknown
}
