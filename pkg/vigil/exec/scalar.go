package exec

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/randalmurphal/vigil/pkg/vigil/eventql"
	"github.com/randalmurphal/vigil/pkg/vigil/value"
)

// scalarFn receives non-null arguments whose kinds passed analysis where
// the static types were known. Errors become runtime type errors.
type scalarFn func(args []value.Value) (value.Value, error)

var scalars = map[string]scalarFn{
	"ABS":   math1(math.Abs),
	"CEIL":  math1(math.Ceil),
	"FLOOR": math1(math.Floor),
	"SQRT":  math1(math.Sqrt),
	"EXP":   math1(math.Exp),
	"SIN":   math1(math.Sin),
	"COS":   math1(math.Cos),
	"TAN":   math1(math.Tan),
	"PI":    func([]value.Value) (value.Value, error) { return value.Number(math.Pi), nil },
	"POW": func(args []value.Value) (value.Value, error) {
		x, y, err := num2(args)
		if err != nil {
			return value.Null(), err
		}
		return value.Number(math.Pow(x, y)), nil
	},
	"ROUND": round,

	"LOWER": string1(strings.ToLower),
	"UPPER": string1(strings.ToUpper),
	"TRIM":  string1(strings.TrimSpace),
	"LTRIM": string1(func(s string) string { return strings.TrimLeft(s, " \t\r\n") }),
	"RTRIM": string1(func(s string) string { return strings.TrimRight(s, " \t\r\n") }),
	"LEN":   length,
	"INSTR": func(args []value.Value) (value.Value, error) {
		s, sub, err := str2(args)
		if err != nil {
			return value.Null(), err
		}
		i := strings.Index(s, sub)
		if i < 0 {
			return value.Number(0), nil
		}
		return value.Number(float64(utf8.RuneCountInString(s[:i]) + 1)), nil
	},
	"SUBSTRING": substring,
	"REPLACE": func(args []value.Value) (value.Value, error) {
		s, old, err := str2(args)
		if err != nil {
			return value.Null(), err
		}
		repl, err := str(args, 2)
		if err != nil {
			return value.Null(), err
		}
		return value.String(strings.ReplaceAll(s, old, repl)), nil
	},
	"STARTSWITH": func(args []value.Value) (value.Value, error) {
		s, prefix, err := str2(args)
		if err != nil {
			return value.Null(), err
		}
		return value.Bool(strings.HasPrefix(s, prefix)), nil
	},
	"ENDSWITH": func(args []value.Value) (value.Value, error) {
		s, suffix, err := str2(args)
		if err != nil {
			return value.Null(), err
		}
		return value.Bool(strings.HasSuffix(s, suffix)), nil
	},

	"YEAR":    timePart(func(t time.Time) int { return t.Year() }),
	"MONTH":   timePart(func(t time.Time) int { return int(t.Month()) }),
	"DAY":     timePart(func(t time.Time) int { return t.Day() }),
	"HOUR":    timePart(func(t time.Time) int { return t.Hour() }),
	"MINUTE":  timePart(func(t time.Time) int { return t.Minute() }),
	"WEEKDAY": timePart(func(t time.Time) int { return int(t.Weekday()) }),
}

func (c *compiler) compileCall(n *eventql.Call) (evalFn, error) {
	name := strings.ToUpper(n.Name)
	if eventql.IsAggregate(name) {
		return nil, fmt.Errorf("aggregate %s outside of a grouping context", n)
	}
	args, err := c.compileAll(n.Args)
	if err != nil {
		return nil, err
	}

	switch name {
	case "NOW":
		now := value.String(c.now.UTC().Format(time.RFC3339))
		return func(*frame) (value.Value, error) { return now, nil }, nil
	case "IF":
		return func(f *frame) (value.Value, error) {
			cond, err := args[0](f)
			if err != nil {
				return value.Null(), err
			}
			ok, err := predicate(n.Args[0], cond)
			if err != nil {
				return value.Null(), err
			}
			if ok {
				return args[1](f)
			}
			return args[2](f)
		}, nil
	case "COALESCE":
		return func(f *frame) (value.Value, error) {
			v, err := args[0](f)
			if err != nil || !v.IsNull() {
				return v, err
			}
			return args[1](f)
		}, nil
	}

	fn, ok := scalars[name]
	if !ok {
		return nil, fmt.Errorf("unknown function %s", n.Name)
	}
	return func(f *frame) (value.Value, error) {
		vals := make([]value.Value, len(args))
		for i, arg := range args {
			v, err := arg(f)
			if err != nil {
				return value.Null(), err
			}
			if v.IsNull() {
				return value.Null(), nil
			}
			vals[i] = v
		}
		v, err := fn(vals)
		if err != nil {
			return value.Null(), typeErr(n, "%v", err)
		}
		return v, nil
	}, nil
}

func num(args []value.Value, i int) (float64, error) {
	x, ok := args[i].AsNumber()
	if !ok {
		return 0, fmt.Errorf("argument %d: want number, got %s", i+1, args[i].Kind())
	}
	return x, nil
}

func num2(args []value.Value) (float64, float64, error) {
	x, err := num(args, 0)
	if err != nil {
		return 0, 0, err
	}
	y, err := num(args, 1)
	return x, y, err
}

func str(args []value.Value, i int) (string, error) {
	s, ok := args[i].AsString()
	if !ok {
		return "", fmt.Errorf("argument %d: want string, got %s", i+1, args[i].Kind())
	}
	return s, nil
}

func str2(args []value.Value) (string, string, error) {
	a, err := str(args, 0)
	if err != nil {
		return "", "", err
	}
	b, err := str(args, 1)
	return a, b, err
}

func math1(fn func(float64) float64) scalarFn {
	return func(args []value.Value) (value.Value, error) {
		x, err := num(args, 0)
		if err != nil {
			return value.Null(), err
		}
		return value.Number(fn(x)), nil
	}
}

func string1(fn func(string) string) scalarFn {
	return func(args []value.Value) (value.Value, error) {
		s, err := str(args, 0)
		if err != nil {
			return value.Null(), err
		}
		return value.String(fn(s)), nil
	}
}

// round rounds half away from zero, optionally to a number of decimal
// digits.
func round(args []value.Value) (value.Value, error) {
	x, err := num(args, 0)
	if err != nil {
		return value.Null(), err
	}
	if len(args) == 1 {
		return value.Number(math.Round(x)), nil
	}
	digits, err := num(args, 1)
	if err != nil {
		return value.Null(), err
	}
	p := math.Pow(10, math.Trunc(digits))
	return value.Number(math.Round(x*p) / p), nil
}

func length(args []value.Value) (value.Value, error) {
	v := args[0]
	switch v.Kind() {
	case value.KindString:
		s, _ := v.AsString()
		return value.Number(float64(utf8.RuneCountInString(s))), nil
	case value.KindList:
		items, _ := v.AsList()
		return value.Number(float64(len(items))), nil
	case value.KindObject:
		obj, _ := v.AsObject()
		return value.Number(float64(obj.Len())), nil
	default:
		return value.Null(), fmt.Errorf("want string, list or object, got %s", v.Kind())
	}
}

// substring takes a 0-based rune offset and an optional rune count. Out of
// range bounds are clamped.
func substring(args []value.Value) (value.Value, error) {
	s, err := str(args, 0)
	if err != nil {
		return value.Null(), err
	}
	start, err := num(args, 1)
	if err != nil {
		return value.Null(), err
	}
	runes := []rune(s)
	from := clamp(int(start), 0, len(runes))
	to := len(runes)
	if len(args) == 3 {
		count, err := num(args, 2)
		if err != nil {
			return value.Null(), err
		}
		to = clamp(from+int(math.Max(count, 0)), from, len(runes))
	}
	return value.String(string(runes[from:to])), nil
}

func clamp(x, lo, hi int) int {
	return max(lo, min(x, hi))
}

var errTimestamp = errors.New("want an RFC 3339 timestamp")

func timePart(fn func(time.Time) int) scalarFn {
	return func(args []value.Value) (value.Value, error) {
		s, err := str(args, 0)
		if err != nil {
			return value.Null(), err
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return value.Null(), fmt.Errorf("%w, got %q", errTimestamp, s)
		}
		return value.Number(float64(fn(t))), nil
	}
}
