package exec

import (
	"time"

	"github.com/randalmurphal/vigil/pkg/vigil/eventql"
	"github.com/randalmurphal/vigil/pkg/vigil/store"
	"github.com/randalmurphal/vigil/pkg/vigil/value"
)

// frame is the unit passed between stages: one event, one catalog item, or
// one finished group.
type frame struct {
	event *store.Event
	item  value.Value
	group *group

	// decoded payload, filled on first whole-payload access
	data    value.Value
	decoded bool
}

// attr returns a string attribute of the event.
func attr(e *store.Event, name string) (value.Value, bool) {
	switch name {
	case "id":
		return value.String(e.ID), true
	case "source":
		return value.String(e.Source), true
	case "specversion":
		return value.String(e.SpecVersion), true
	case "type":
		return value.String(e.Type), true
	case "subject":
		return value.String(e.Subject), true
	case "time":
		return value.String(e.Time.UTC().Format(time.RFC3339Nano)), true
	case "datacontenttype":
		return value.String(e.DataContentType), true
	default:
		return value.Null(), false
	}
}

var attrOrder = []string{"id", "source", "specversion", "type", "subject", "time", "datacontenttype"}

// payload decodes the whole event payload once per frame. Non-JSON payloads
// are exposed as strings.
func (f *frame) payload(at eventql.Expr) (value.Value, error) {
	if f.decoded {
		return f.data, nil
	}
	e := f.event
	switch {
	case !e.IsJSON():
		f.data = value.String(string(e.Data))
	case len(e.Data) == 0:
		f.data = value.Null()
	default:
		v, err := value.DecodeJSON(e.Data)
		if err != nil {
			return value.Null(), typeErr(at, "malformed payload: %v", err)
		}
		f.data = v
	}
	f.decoded = true
	return f.data, nil
}

// payloadPath reads a nested payload field. JSON payloads are not decoded
// as a whole: only the addressed value is parsed.
func (f *frame) payloadPath(at eventql.Expr, path []string) (value.Value, error) {
	e := f.event
	if f.decoded || !e.IsJSON() || len(e.Data) == 0 {
		v, err := f.payload(at)
		if err != nil {
			return v, err
		}
		for _, name := range path {
			if v, err = member(at, v, name); err != nil {
				return v, err
			}
		}
		return v, nil
	}

	v, found, err := value.DecodeJSONPath(e.Data, path...)
	if err != nil {
		return value.Null(), typeErr(at, "malformed payload: %v", err)
	}
	if found {
		return v, nil
	}
	return value.Null(), missingPath(at, e.Data, path)
}

// missingPath distinguishes an absent field, which reads as Null, from a
// path that walks through a scalar or list.
func missingPath(at eventql.Expr, data []byte, path []string) error {
	for i := 0; i < len(path); i++ {
		kind, found, err := value.JSONKindAt(data, path[:i]...)
		if err != nil || !found {
			return nil
		}
		switch kind {
		case value.KindObject:
			continue
		case value.KindNull:
			return nil
		default:
			return typeErr(at, "cannot read field %q of %s", path[i], kind)
		}
	}
	return nil
}

// eventValue materializes the whole event as an object.
func (f *frame) eventValue(at eventql.Expr) (value.Value, error) {
	obj := value.NewObject(len(attrOrder) + 1)
	for _, name := range attrOrder {
		v, _ := attr(f.event, name)
		obj.Set(name, v)
	}
	data, err := f.payload(at)
	if err != nil {
		return value.Null(), err
	}
	obj.Set("data", data)
	return value.FromObject(obj), nil
}

// member reads a field of v. Fields of Null are Null, missing fields are
// Null, and any other kind is a runtime type error.
func member(at eventql.Expr, v value.Value, name string) (value.Value, error) {
	switch v.Kind() {
	case value.KindNull:
		return value.Null(), nil
	case value.KindObject:
		field, _ := v.Field(name)
		return field, nil
	default:
		return value.Null(), typeErr(at, "cannot read field %q of %s", name, v.Kind())
	}
}
