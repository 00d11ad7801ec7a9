package eventql

import (
	"slices"
	"strings"
)

// argKinds is a set of acceptable static kinds for one parameter.
type argKinds uint16

const (
	argAny    argKinds = 0
	argBool   argKinds = 1 << TypeBool
	argNumber argKinds = 1 << TypeNumber
	argString argKinds = 1 << TypeString
	argList   argKinds = 1 << TypeList
	argObject argKinds = 1 << TypeObject
)

func (a argKinds) accepts(t Type) bool {
	base := t.Base()
	if a == argAny || base.Kind == TypeUnknown || base.Kind == TypeNull {
		return true
	}
	return a&(1<<base.Kind) != 0
}

func (a argKinds) String() string {
	if a == argAny {
		return "any"
	}
	var names []string
	for _, k := range []TypeKind{TypeBool, TypeNumber, TypeString, TypeList, TypeObject} {
		if a&(1<<k) != 0 {
			names = append(names, Type{Kind: k}.String())
		}
	}
	return strings.Join(names, " or ")
}

// Function describes a built-in function's signature.
type Function struct {
	Name      string
	Aggregate bool
	params    []argKinds
	optional  int // trailing params that may be omitted
	result    func(args []Type) Type
}

// Arity returns the minimum and maximum argument count.
func (f *Function) Arity() (minArgs, maxArgs int) {
	return len(f.params) - f.optional, len(f.params)
}

func fixed(t Type) func([]Type) Type {
	return func([]Type) Type { return t }
}

// sameAsArg returns the (base) type of argument i.
func sameAsArg(i int) func([]Type) Type {
	return func(args []Type) Type {
		if i < len(args) {
			return args[i].Base()
		}
		return Unknown
	}
}

func numeric(name string, arity int) *Function {
	params := make([]argKinds, arity)
	for i := range params {
		params[i] = argNumber
	}
	return &Function{Name: name, params: params, result: fixed(NumberType)}
}

func aggregate(name string, param []argKinds, result func([]Type) Type) *Function {
	return &Function{Name: name, Aggregate: true, params: param, result: result}
}

var functions = map[string]*Function{}

func register(fns ...*Function) {
	for _, f := range fns {
		functions[f.Name] = f
	}
}

func init() {
	register(
		// Aggregates
		aggregate("COUNT", nil, fixed(NumberType)),
		aggregate("SUM", []argKinds{argNumber}, fixed(NumberType)),
		aggregate("AVG", []argKinds{argNumber}, fixed(NumberType)),
		aggregate("MIN", []argKinds{argNumber}, fixed(NumberType)),
		aggregate("MAX", []argKinds{argNumber}, fixed(NumberType)),
		aggregate("MEDIAN", []argKinds{argNumber}, fixed(NumberType)),
		aggregate("STDDEV", []argKinds{argNumber}, fixed(NumberType)),
		aggregate("VARIANCE", []argKinds{argNumber}, fixed(NumberType)),
		aggregate("UNIQUE", []argKinds{argAny}, fixed(Unknown)),

		// Math
		numeric("ABS", 1), numeric("CEIL", 1), numeric("FLOOR", 1),
		numeric("SQRT", 1), numeric("EXP", 1), numeric("POW", 2), numeric("PI", 0),
		numeric("SIN", 1), numeric("COS", 1), numeric("TAN", 1),
		&Function{Name: "ROUND", params: []argKinds{argNumber, argNumber}, optional: 1, result: fixed(NumberType)},

		// Strings
		&Function{Name: "LOWER", params: []argKinds{argString}, result: fixed(StringType)},
		&Function{Name: "UPPER", params: []argKinds{argString}, result: fixed(StringType)},
		&Function{Name: "TRIM", params: []argKinds{argString}, result: fixed(StringType)},
		&Function{Name: "LTRIM", params: []argKinds{argString}, result: fixed(StringType)},
		&Function{Name: "RTRIM", params: []argKinds{argString}, result: fixed(StringType)},
		&Function{Name: "LEN", params: []argKinds{argString | argList | argObject}, result: fixed(NumberType)},
		&Function{Name: "INSTR", params: []argKinds{argString, argString}, result: fixed(NumberType)},
		&Function{Name: "SUBSTRING", params: []argKinds{argString, argNumber, argNumber}, optional: 1, result: fixed(StringType)},
		&Function{Name: "REPLACE", params: []argKinds{argString, argString, argString}, result: fixed(StringType)},
		&Function{Name: "STARTSWITH", params: []argKinds{argString, argString}, result: fixed(BoolType)},
		&Function{Name: "ENDSWITH", params: []argKinds{argString, argString}, result: fixed(BoolType)},

		// Time, over RFC 3339 strings
		&Function{Name: "NOW", result: fixed(StringType)},
		&Function{Name: "YEAR", params: []argKinds{argString}, result: fixed(NumberType)},
		&Function{Name: "MONTH", params: []argKinds{argString}, result: fixed(NumberType)},
		&Function{Name: "DAY", params: []argKinds{argString}, result: fixed(NumberType)},
		&Function{Name: "HOUR", params: []argKinds{argString}, result: fixed(NumberType)},
		&Function{Name: "MINUTE", params: []argKinds{argString}, result: fixed(NumberType)},
		&Function{Name: "WEEKDAY", params: []argKinds{argString}, result: fixed(NumberType)},

		// Conditionals
		&Function{Name: "IF", params: []argKinds{argBool, argAny, argAny}, result: unify(1, 2)},
		&Function{Name: "COALESCE", params: []argKinds{argAny, argAny}, result: unify(0, 1)},
	)
}

// unify returns the common base type of two arguments, Unknown when they
// differ. Null unifies with anything.
func unify(i, j int) func([]Type) Type {
	return func(args []Type) Type {
		a, b := sameAsArg(i)(args), sameAsArg(j)(args)
		switch {
		case a.Kind == TypeNull:
			return b
		case b.Kind == TypeNull:
			return a
		case a.Kind == b.Kind && a.Kind != TypeList && a.Kind != TypeObject:
			return a
		}
		return Unknown
	}
}

// LookupFunction finds a built-in by case-insensitive name.
func LookupFunction(name string) (*Function, bool) {
	f, ok := functions[strings.ToUpper(name)]
	return f, ok
}

// IsAggregate reports whether name is an aggregate function.
func IsAggregate(name string) bool {
	f, ok := LookupFunction(name)
	return ok && f.Aggregate
}

// FunctionNames returns every built-in name, sorted.
func FunctionNames() []string {
	names := make([]string, 0, len(functions))
	for name := range functions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func normalizeName(name string) string {
	return strings.ToLower(name)
}
