package eventql

import (
	"fmt"
	"slices"
	"strings"
)

// TypeKind is the variant of a static Type.
type TypeKind uint8

const (
	TypeUnknown TypeKind = iota
	TypeNull
	TypeBool
	TypeNumber
	TypeString
	TypeList
	TypeObject
	TypeAggregate
)

// Type is a static type in the analyzer's lattice.
//
// Unknown means "decided at runtime" and is compatible with everything.
// List carries its element type in Elem, Aggregate carries the finalized
// result type in Elem. Object carries declared Fields; an Open object may
// hold fields beyond those declared.
type Type struct {
	Kind   TypeKind
	Elem   *Type
	Fields map[string]Type
	Open   bool
}

// Predefined scalar types.
var (
	Unknown    = Type{Kind: TypeUnknown}
	NullType   = Type{Kind: TypeNull}
	BoolType   = Type{Kind: TypeBool}
	NumberType = Type{Kind: TypeNumber}
	StringType = Type{Kind: TypeString}
)

// ListOf returns the list type with the given element type.
func ListOf(elem Type) Type {
	return Type{Kind: TypeList, Elem: &elem}
}

// ObjectOf returns an object type.
func ObjectOf(fields map[string]Type, open bool) Type {
	if fields == nil {
		fields = map[string]Type{}
	}
	return Type{Kind: TypeObject, Fields: fields, Open: open}
}

// AggregateOf returns the type of an aggregate call producing result.
func AggregateOf(result Type) Type {
	return Type{Kind: TypeAggregate, Elem: &result}
}

// Base strips an Aggregate wrapper.
func (t Type) Base() Type {
	if t.Kind == TypeAggregate && t.Elem != nil {
		return *t.Elem
	}
	return t
}

// IsUnknown reports whether the type is deferred to runtime.
func (t Type) IsUnknown() bool { return t.Base().Kind == TypeUnknown }

// Is reports whether the base type is known and of kind k.
func (t Type) Is(k TypeKind) bool { return t.Base().Kind == k }

// String renders the type, e.g. "list<number>" or "object{a: string, ...}".
func (t Type) String() string {
	switch t.Kind {
	case TypeUnknown:
		return "unknown"
	case TypeNull:
		return "null"
	case TypeBool:
		return "bool"
	case TypeNumber:
		return "number"
	case TypeString:
		return "string"
	case TypeList:
		if t.Elem == nil {
			return "list<unknown>"
		}
		return "list<" + t.Elem.String() + ">"
	case TypeAggregate:
		if t.Elem == nil {
			return "aggregate<unknown>"
		}
		return "aggregate<" + t.Elem.String() + ">"
	case TypeObject:
		names := make([]string, 0, len(t.Fields))
		for name := range t.Fields {
			names = append(names, name)
		}
		slices.Sort(names)
		parts := make([]string, 0, len(names)+1)
		for _, name := range names {
			parts = append(parts, name+": "+t.Fields[name].String())
		}
		if t.Open {
			parts = append(parts, "...")
		}
		return "object{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprintf("type(%d)", t.Kind)
	}
}

// Schema declares types for payload paths below an event's data field.
// Undeclared paths stay Unknown.
type Schema struct {
	paths map[string]Type
	data  Type
}

// typeNames maps schema type names to types.
var typeNames = map[string]Type{
	"bool":    BoolType,
	"boolean": BoolType,
	"number":  NumberType,
	"string":  StringType,
	"list":    ListOf(Unknown),
	"array":   ListOf(Unknown),
	"object":  ObjectOf(nil, true),
}

// NewSchema builds a schema from dotted payload paths ("salary",
// "address.city") to type names (bool, number, string, list, object).
func NewSchema(paths map[string]string) (*Schema, error) {
	s := &Schema{paths: make(map[string]Type, len(paths))}
	root := ObjectOf(nil, true)

	keys := make([]string, 0, len(paths))
	for p := range paths {
		keys = append(keys, p)
	}
	// Parents before children so "a" and "a.b" merge deterministically.
	slices.SortFunc(keys, func(a, b string) int {
		if d := strings.Count(a, ".") - strings.Count(b, "."); d != 0 {
			return d
		}
		return strings.Compare(a, b)
	})

	for _, p := range keys {
		name := strings.ToLower(strings.TrimSpace(paths[p]))
		typ, ok := typeNames[name]
		if !ok {
			return nil, fmt.Errorf("schema path %q: unknown type %q", p, paths[p])
		}
		if typ.Kind == TypeObject {
			typ = ObjectOf(nil, true)
		}
		segments := strings.Split(p, ".")
		if slices.Contains(segments, "") {
			return nil, fmt.Errorf("schema path %q: empty segment", p)
		}
		if err := declare(&root, segments, typ); err != nil {
			return nil, fmt.Errorf("schema path %q: %w", p, err)
		}
		s.paths[p] = typ
	}
	s.data = root
	return s, nil
}

func declare(obj *Type, segments []string, typ Type) error {
	name := segments[0]
	if len(segments) == 1 {
		if existing, ok := obj.Fields[name]; ok && existing.Kind == TypeObject && typ.Kind == TypeObject {
			return nil
		}
		obj.Fields[name] = typ
		return nil
	}
	child, ok := obj.Fields[name]
	if !ok {
		child = ObjectOf(nil, true)
	}
	if child.Kind != TypeObject {
		return fmt.Errorf("%q is declared %s, not object", name, child)
	}
	if err := declare(&child, segments[1:], typ); err != nil {
		return err
	}
	obj.Fields[name] = child
	return nil
}

// DataType returns the static type of an event's data field: an open
// object carrying the declared paths, or Unknown for a nil schema.
func (s *Schema) DataType() Type {
	if s == nil {
		return Unknown
	}
	return s.data
}

// Lookup returns the declared type of a dotted path.
func (s *Schema) Lookup(path string) (Type, bool) {
	if s == nil {
		return Unknown, false
	}
	t, ok := s.paths[path]
	return t, ok
}

// Len returns the number of declared paths.
func (s *Schema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.paths)
}
