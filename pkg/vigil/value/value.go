// Package value provides the dynamic Value type that event payloads and every
// computed EventQL result are expressed in.
//
// A Value is a tagged union over Null, Bool, Number, String, List and Object.
// The zero Value is Null. Objects preserve field insertion order, which is the
// order rows are projected and serialized in.
package value

import (
	"fmt"
	"strconv"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindObject
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is an immutable dynamic value.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	list []Value
	obj  *Object
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number wraps a float64.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// List wraps a slice of values. The slice is retained, not copied.
func List(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindList, list: items}
}

// FromObject wraps an Object. A nil object becomes an empty one.
func FromObject(o *Object) Value {
	if o == nil {
		o = NewObject(0)
	}
	return Value{kind: KindObject, obj: o}
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is Null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean and whether v holds one.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsNumber returns the number and whether v holds one.
func (v Value) AsNumber() (float64, bool) { return v.n, v.kind == KindNumber }

// AsString returns the string and whether v holds one.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsList returns the list items and whether v holds a list.
// Callers must not modify the returned slice.
func (v Value) AsList() ([]Value, bool) { return v.list, v.kind == KindList }

// AsObject returns the object and whether v holds one.
func (v Value) AsObject() (*Object, bool) { return v.obj, v.kind == KindObject }

// Field returns the named field of an object value. ok is false when v is
// not an object or the field is absent.
func (v Value) Field(name string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	return v.obj.Get(name)
}

// Truthy reports whether v is the boolean true.
func (v Value) Truthy() bool { return v.kind == KindBool && v.b }

// String renders v as EventQL literal text. Strings are quoted.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return FormatNumber(v.n)
	case KindString:
		return strconv.Quote(v.s)
	case KindList:
		out := "["
		for i, item := range v.list {
			if i > 0 {
				out += ", "
			}
			out += item.String()
		}
		return out + "]"
	case KindObject:
		out := "{"
		for i, k := range v.obj.keys {
			if i > 0 {
				out += ", "
			}
			out += fmt.Sprintf("%s: %s", k, v.obj.fields[k].String())
		}
		return out + "}"
	default:
		return "?"
	}
}

// FormatNumber formats n in the shortest representation that round-trips.
func FormatNumber(n float64) string {
	return strconv.FormatFloat(n, 'g', -1, 64)
}

// Object is an insertion-ordered string-keyed map of values.
type Object struct {
	keys   []string
	fields map[string]Value
}

// NewObject creates an empty object with room for size fields.
func NewObject(size int) *Object {
	return &Object{
		keys:   make([]string, 0, size),
		fields: make(map[string]Value, size),
	}
}

// Set assigns a field. Re-assigning keeps the original position.
func (o *Object) Set(key string, v Value) *Object {
	if _, exists := o.fields[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.fields[key] = v
	return o
}

// Get returns a field and whether it exists.
func (o *Object) Get(key string) (Value, bool) {
	v, ok := o.fields[key]
	return v, ok
}

// Keys returns field names in insertion order.
// Callers must not modify the returned slice.
func (o *Object) Keys() []string { return o.keys }

// Len returns the number of fields.
func (o *Object) Len() int { return len(o.keys) }

// Map converts v into plain Go values (nil, bool, float64, string, []any,
// map[string]any). Field order is lost.
func (v Value) Map() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Map()
		}
		return out
	case KindObject:
		out := make(map[string]any, v.obj.Len())
		for _, k := range v.obj.keys {
			out[k] = v.obj.fields[k].Map()
		}
		return out
	default:
		return nil
	}
}

// FromAny converts plain Go values into a Value. Maps are ordered by the
// iteration order of the input, so callers needing a stable order should
// build Objects directly.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case int32:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case uint32:
		return Number(float64(t)), nil
	case uint64:
		return Number(float64(t)), nil
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			v, err := FromAny(item)
			if err != nil {
				return Null(), err
			}
			items[i] = v
		}
		return List(items...), nil
	case []string:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = String(item)
		}
		return List(items...), nil
	case map[string]any:
		obj := NewObject(len(t))
		for k, item := range t {
			v, err := FromAny(item)
			if err != nil {
				return Null(), err
			}
			obj.Set(k, v)
		}
		return FromObject(obj), nil
	default:
		return Null(), fmt.Errorf("value: unsupported type %T", x)
	}
}
