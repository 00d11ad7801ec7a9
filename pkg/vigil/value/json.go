package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/buger/jsonparser"
)

// DecodeJSON decodes a JSON document into a Value, preserving the field order
// of every object.
func DecodeJSON(data []byte) (Value, error) {
	raw, typ, _, err := jsonparser.Get(data)
	if err != nil {
		return Null(), fmt.Errorf("decode json: %w", err)
	}
	return decodeRaw(raw, typ)
}

// DecodeJSONPath extracts and decodes the value at path without decoding the
// rest of the document. found is false when the path does not exist or
// traverses a non-object. A key repeated within one object resolves to its
// last occurrence, as in DecodeJSON.
func DecodeJSONPath(data []byte, path ...string) (v Value, found bool, err error) {
	raw, typ, found, err := walkJSON(data, path)
	if err != nil || !found {
		return Null(), false, err
	}
	v, err = decodeRaw(raw, typ)
	return v, err == nil, err
}

// JSONKindAt reports the kind of the value at path without decoding it.
// Duplicate keys resolve like DecodeJSONPath.
func JSONKindAt(data []byte, path ...string) (kind Kind, found bool, err error) {
	_, typ, found, err := walkJSON(data, path)
	if err != nil || !found {
		return KindNull, false, err
	}
	return jsonKind(typ), true, nil
}

func walkJSON(data []byte, path []string) ([]byte, jsonparser.ValueType, bool, error) {
	raw, typ, _, err := jsonparser.Get(data)
	if err != nil {
		return nil, jsonparser.NotExist, false, fmt.Errorf("decode json path: %w", err)
	}
	for _, name := range path {
		if typ != jsonparser.Object {
			return nil, jsonparser.NotExist, false, nil
		}
		var found bool
		raw, typ, found, err = lastField(raw, name)
		if err != nil {
			return nil, jsonparser.NotExist, false, fmt.Errorf("decode json path: %w", err)
		}
		if !found {
			return nil, jsonparser.NotExist, false, nil
		}
	}
	return raw, typ, true, nil
}

// lastField returns the last occurrence of key in the object raw.
func lastField(raw []byte, key string) ([]byte, jsonparser.ValueType, bool, error) {
	var (
		val   []byte
		typ   jsonparser.ValueType
		found bool
	)
	err := jsonparser.ObjectEach(raw, func(k, item []byte, t jsonparser.ValueType, _ int) error {
		if string(k) == key {
			val, typ, found = item, t, true
		}
		return nil
	})
	return val, typ, found, err
}

func jsonKind(t jsonparser.ValueType) Kind {
	switch t {
	case jsonparser.Boolean:
		return KindBool
	case jsonparser.Number:
		return KindNumber
	case jsonparser.String:
		return KindString
	case jsonparser.Array:
		return KindList
	case jsonparser.Object:
		return KindObject
	default:
		return KindNull
	}
}

func decodeRaw(raw []byte, typ jsonparser.ValueType) (Value, error) {
	switch typ {
	case jsonparser.Null:
		return Null(), nil
	case jsonparser.Boolean:
		b, err := jsonparser.ParseBoolean(raw)
		if err != nil {
			return Null(), err
		}
		return Bool(b), nil
	case jsonparser.Number:
		n, err := jsonparser.ParseFloat(raw)
		if err != nil {
			return Null(), err
		}
		return Number(n), nil
	case jsonparser.String:
		s, err := jsonparser.ParseString(raw)
		if err != nil {
			return Null(), err
		}
		return String(s), nil
	case jsonparser.Array:
		items := []Value{}
		var itemErr error
		_, err := jsonparser.ArrayEach(raw, func(item []byte, t jsonparser.ValueType, _ int, err error) {
			if itemErr != nil {
				return
			}
			if err != nil {
				itemErr = err
				return
			}
			v, err := decodeRaw(item, t)
			if err != nil {
				itemErr = err
				return
			}
			items = append(items, v)
		})
		if err == nil {
			err = itemErr
		}
		if err != nil {
			return Null(), err
		}
		return List(items...), nil
	case jsonparser.Object:
		obj := NewObject(4)
		err := jsonparser.ObjectEach(raw, func(key, item []byte, t jsonparser.ValueType, _ int) error {
			v, err := decodeRaw(item, t)
			if err != nil {
				return err
			}
			obj.Set(string(key), v)
			return nil
		})
		if err != nil {
			return Null(), err
		}
		return FromObject(obj), nil
	default:
		return Null(), fmt.Errorf("unsupported json value type %s", typ)
	}
}

// MarshalJSON encodes v as JSON, keeping object field order. Non-finite
// numbers encode as null.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) writeJSON(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindNumber:
		if math.IsNaN(v.n) || math.IsInf(v.n, 0) {
			buf.WriteString("null")
			return nil
		}
		buf.WriteString(FormatNumber(v.n))
	case KindString:
		return writeJSONString(buf, v.s)
	case KindList:
		buf.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, k := range v.obj.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSONString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := v.obj.fields[k].writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

func writeJSONString(buf *bytes.Buffer, s string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}
