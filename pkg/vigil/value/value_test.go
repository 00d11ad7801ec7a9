package value_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/vigil/pkg/vigil/value"
)

func TestZeroValueIsNull(t *testing.T) {
	var v value.Value
	assert.True(t, v.IsNull())
	assert.Equal(t, value.KindNull, v.Kind())
	assert.Equal(t, "null", v.String())
}

func TestObject_PreservesInsertionOrder(t *testing.T) {
	obj := value.NewObject(3).
		Set("zeta", value.Number(1)).
		Set("alpha", value.Number(2)).
		Set("mid", value.Number(3))

	assert.Equal(t, []string{"zeta", "alpha", "mid"}, obj.Keys())

	// Overwriting keeps the original position
	obj.Set("zeta", value.Number(9))
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, obj.Keys())
	got, ok := obj.Get("zeta")
	require.True(t, ok)
	n, _ := got.AsNumber()
	assert.Equal(t, 9.0, n)
}

func TestEqual(t *testing.T) {
	a := value.FromObject(value.NewObject(2).Set("x", value.Number(1)).Set("y", value.String("s")))
	b := value.FromObject(value.NewObject(2).Set("y", value.String("s")).Set("x", value.Number(1)))

	tests := []struct {
		name string
		a, b value.Value
		want bool
	}{
		{"nulls", value.Null(), value.Null(), true},
		{"numbers", value.Number(1.5), value.Number(1.5), true},
		{"number vs string", value.Number(1), value.String("1"), false},
		{"lists", value.List(value.Number(1), value.Bool(true)), value.List(value.Number(1), value.Bool(true)), true},
		{"list length", value.List(value.Number(1)), value.List(value.Number(1), value.Number(2)), false},
		{"objects ignore order", a, b, true},
		{"nan", value.Number(math.NaN()), value.Number(math.NaN()), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, value.Equal(tt.a, tt.b))
		})
	}
}

func TestKey_EqualValuesShareKey(t *testing.T) {
	a := value.FromObject(value.NewObject(2).Set("x", value.Number(1)).Set("y", value.String("s")))
	b := value.FromObject(value.NewObject(2).Set("y", value.String("s")).Set("x", value.Number(1)))
	assert.Equal(t, a.Key(), b.Key())

	assert.Equal(t, value.Number(0).Key(), value.Number(math.Copysign(0, -1)).Key())
	assert.NotEqual(t, value.Number(1).Key(), value.String("1").Key())
	assert.NotEqual(t, value.Null().Key(), value.String("null").Key())
}

func TestCompare(t *testing.T) {
	assert.Equal(t, -1, value.Compare(value.Number(1), value.Number(2)))
	assert.Equal(t, 1, value.Compare(value.String("b"), value.String("a")))
	assert.Equal(t, 0, value.Compare(value.Bool(true), value.Bool(true)))
	assert.Equal(t, -1, value.Compare(value.Null(), value.Bool(false)))
	assert.Equal(t, -1, value.Compare(value.Number(100), value.String("1")))
	assert.Equal(t, -1, value.Compare(value.List(value.Number(1)), value.List(value.Number(1), value.Number(0))))
}

func TestDecodeJSON_PreservesOrder(t *testing.T) {
	v, err := value.DecodeJSON([]byte(`{"b": 1, "a": [true, null, "x\"y"], "c": {"z": 2.5, "y": -1}}`))
	require.NoError(t, err)

	obj, ok := v.AsObject()
	require.True(t, ok)
	assert.Equal(t, []string{"b", "a", "c"}, obj.Keys())

	a, _ := obj.Get("a")
	items, ok := a.AsList()
	require.True(t, ok)
	require.Len(t, items, 3)
	assert.True(t, items[0].Truthy())
	assert.True(t, items[1].IsNull())
	s, _ := items[2].AsString()
	assert.Equal(t, `x"y`, s)

	c, _ := obj.Get("c")
	inner, _ := c.AsObject()
	assert.Equal(t, []string{"z", "y"}, inner.Keys())

	out, err := v.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"b":1,"a":[true,null,"x\"y"],"c":{"z":2.5,"y":-1}}`, string(out))
}

func TestDecodeJSONPath(t *testing.T) {
	doc := []byte(`{"user": {"name": "ada", "age": 36}, "tags": ["a"]}`)

	v, found, err := value.DecodeJSONPath(doc, "user", "name")
	require.NoError(t, err)
	assert.True(t, found)
	s, _ := v.AsString()
	assert.Equal(t, "ada", s)

	v, found, err = value.DecodeJSONPath(doc, "user", "age")
	require.NoError(t, err)
	assert.True(t, found)
	n, _ := v.AsNumber()
	assert.Equal(t, 36.0, n)

	_, found, err = value.DecodeJSONPath(doc, "user", "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDecodeJSONPath_DuplicateKeysLastWins(t *testing.T) {
	doc := []byte(`{"a": 1, "u": {"n": "x"}, "a": 2, "u": {"n": "y"}}`)

	whole, err := value.DecodeJSON(doc)
	require.NoError(t, err)
	fromWhole, _ := whole.Field("a")

	v, found, err := value.DecodeJSONPath(doc, "a")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, value.Equal(fromWhole, v))
	n, _ := v.AsNumber()
	assert.Equal(t, 2.0, n)

	v, found, err = value.DecodeJSONPath(doc, "u", "n")
	require.NoError(t, err)
	require.True(t, found)
	s, _ := v.AsString()
	assert.Equal(t, "y", s)

	kind, found, err := value.JSONKindAt(doc, "u")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, value.KindObject, kind)

	_, found, err = value.JSONKindAt(doc, "a", "b")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMarshalJSON_NonFinite(t *testing.T) {
	out, err := value.Number(math.NaN()).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}

func TestFromAny(t *testing.T) {
	v, err := value.FromAny([]any{1, "two", true, nil})
	require.NoError(t, err)
	assert.Equal(t, `[1, "two", true, null]`, v.String())

	_, err = value.FromAny(struct{}{})
	assert.Error(t, err)
}
