package exec

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/randalmurphal/vigil/pkg/vigil/eventql"
	"github.com/randalmurphal/vigil/pkg/vigil/value"
)

// accumulator folds the non-null argument values of one aggregate call for
// one group. COUNT() receives Null once per event.
type accumulator interface {
	add(v value.Value)
	result() value.Value
}

// aggSpec is a compiled aggregate call.
type aggSpec struct {
	call    *eventql.Call
	arg     evalFn // nil for COUNT()
	numeric bool
	newAcc  func() accumulator
}

func newAggSpec(c *compiler, call *eventql.Call) (*aggSpec, error) {
	spec := &aggSpec{call: call, numeric: true}
	switch strings.ToUpper(call.Name) {
	case "COUNT":
		spec.newAcc = func() accumulator { return &countAcc{} }
	case "SUM":
		spec.newAcc = func() accumulator { return &sumAcc{} }
	case "AVG":
		spec.newAcc = func() accumulator { return &avgAcc{} }
	case "MIN":
		spec.newAcc = func() accumulator { return &extremumAcc{less: true} }
	case "MAX":
		spec.newAcc = func() accumulator { return &extremumAcc{} }
	case "MEDIAN":
		spec.newAcc = func() accumulator { return &medianAcc{} }
	case "STDDEV":
		spec.newAcc = func() accumulator { return &momentsAcc{stddev: true} }
	case "VARIANCE":
		spec.newAcc = func() accumulator { return &momentsAcc{} }
	case "UNIQUE":
		spec.numeric = false
		spec.newAcc = func() accumulator { return &uniqueAcc{seen: make(map[string]bool)} }
	default:
		return nil, fmt.Errorf("unknown aggregate %s", call.Name)
	}

	if len(call.Args) > 0 {
		arg, err := c.compile(call.Args[0])
		if err != nil {
			return nil, err
		}
		spec.arg = arg
	}
	return spec, nil
}

// eval computes the argument for one event without touching any
// accumulator.
func (s *aggSpec) eval(f *frame) (value.Value, error) {
	if s.arg == nil {
		return value.Null(), nil
	}
	v, err := s.arg(f)
	if err != nil {
		return v, err
	}
	if s.numeric && !v.IsNull() && v.Kind() != value.KindNumber {
		return value.Null(), kindErr(s.call.Args[0], "number", v)
	}
	return v, nil
}

func (s *aggSpec) fold(acc accumulator, v value.Value) {
	if s.arg == nil || !v.IsNull() {
		acc.add(v)
	}
}

type countAcc struct{ n int }

func (a *countAcc) add(value.Value)      { a.n++ }
func (a *countAcc) result() value.Value { return value.Number(float64(a.n)) }

type sumAcc struct{ sum float64 }

func (a *sumAcc) add(v value.Value) {
	x, _ := v.AsNumber()
	a.sum += x
}

func (a *sumAcc) result() value.Value { return value.Number(a.sum) }

type avgAcc struct {
	sum float64
	n   int
}

func (a *avgAcc) add(v value.Value) {
	x, _ := v.AsNumber()
	a.sum += x
	a.n++
}

func (a *avgAcc) result() value.Value {
	if a.n == 0 {
		return value.Number(0)
	}
	return value.Number(a.sum / float64(a.n))
}

type extremumAcc struct {
	less bool
	val  float64
	seen bool
}

func (a *extremumAcc) add(v value.Value) {
	x, _ := v.AsNumber()
	switch {
	case !a.seen:
		a.val, a.seen = x, true
	case a.less:
		a.val = math.Min(a.val, x)
	default:
		a.val = math.Max(a.val, x)
	}
}

func (a *extremumAcc) result() value.Value {
	if !a.seen {
		return value.Null()
	}
	return value.Number(a.val)
}

type medianAcc struct{ vals []float64 }

func (a *medianAcc) add(v value.Value) {
	x, _ := v.AsNumber()
	a.vals = append(a.vals, x)
}

func (a *medianAcc) result() value.Value {
	n := len(a.vals)
	if n == 0 {
		return value.Null()
	}
	sorted := slices.Clone(a.vals)
	slices.Sort(sorted)
	if n%2 == 0 {
		return value.Number((sorted[n/2-1] + sorted[n/2]) / 2)
	}
	return value.Number(sorted[n/2])
}

// momentsAcc computes the population variance or standard deviation.
type momentsAcc struct {
	stddev     bool
	n          int
	sum, sumSq float64
}

func (a *momentsAcc) add(v value.Value) {
	x, _ := v.AsNumber()
	a.n++
	a.sum += x
	a.sumSq += x * x
}

func (a *momentsAcc) result() value.Value {
	if a.n == 0 {
		return value.Null()
	}
	mean := a.sum / float64(a.n)
	variance := math.Max(a.sumSq/float64(a.n)-mean*mean, 0)
	if a.stddev {
		return value.Number(math.Sqrt(variance))
	}
	return value.Number(variance)
}

// uniqueAcc keeps distinct values in first-seen order. No value yields
// Null, one yields the value itself, more yield a list.
type uniqueAcc struct {
	seen map[string]bool
	vals []value.Value
}

func (a *uniqueAcc) add(v value.Value) {
	k := v.Key()
	if a.seen[k] {
		return
	}
	a.seen[k] = true
	a.vals = append(a.vals, v)
}

func (a *uniqueAcc) result() value.Value {
	switch len(a.vals) {
	case 0:
		return value.Null()
	case 1:
		return a.vals[0]
	default:
		return value.List(a.vals...)
	}
}
