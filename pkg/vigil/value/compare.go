package value

import (
	"math"
	"slices"
	"strconv"
	"strings"
)

// Equal reports structural equality. Numbers compare by value, so NaN is not
// equal to itself; objects compare field sets regardless of order.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return a.n == b.n
	case KindString:
		return a.s == b.s
	case KindList:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if a.obj.Len() != b.obj.Len() {
			return false
		}
		for _, k := range a.obj.keys {
			other, ok := b.obj.fields[k]
			if !ok || !Equal(a.obj.fields[k], other) {
				return false
			}
		}
		return true
	}
	return false
}

// Compare orders two values. Values of different kinds order by kind
// (null < bool < number < string < list < object), so Compare is a total
// order usable for sorting. NaN sorts before every other number.
func Compare(a, b Value) int {
	if a.kind != b.kind {
		return cmpInt(int(a.kind), int(b.kind))
	}
	switch a.kind {
	case KindBool:
		switch {
		case a.b == b.b:
			return 0
		case !a.b:
			return -1
		default:
			return 1
		}
	case KindNumber:
		an, bn := math.IsNaN(a.n), math.IsNaN(b.n)
		switch {
		case an && bn:
			return 0
		case an:
			return -1
		case bn:
			return 1
		case a.n < b.n:
			return -1
		case a.n > b.n:
			return 1
		}
		return 0
	case KindString:
		return strings.Compare(a.s, b.s)
	case KindList:
		for i := 0; i < len(a.list) && i < len(b.list); i++ {
			if c := Compare(a.list[i], b.list[i]); c != 0 {
				return c
			}
		}
		return cmpInt(len(a.list), len(b.list))
	case KindObject:
		return strings.Compare(a.Key(), b.Key())
	}
	return 0
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Key returns a canonical encoding of v such that Equal values share a key.
// Object fields are encoded in sorted order.
func (v Value) Key() string {
	var sb strings.Builder
	v.writeKey(&sb)
	return sb.String()
}

func (v Value) writeKey(sb *strings.Builder) {
	switch v.kind {
	case KindNull:
		sb.WriteByte('z')
	case KindBool:
		if v.b {
			sb.WriteString("t")
		} else {
			sb.WriteString("f")
		}
	case KindNumber:
		sb.WriteByte('n')
		if v.n == 0 {
			// -0 and +0 are Equal
			sb.WriteByte('0')
		} else {
			sb.WriteString(FormatNumber(v.n))
		}
	case KindString:
		sb.WriteByte('s')
		sb.WriteString(strconv.Quote(v.s))
	case KindList:
		sb.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				sb.WriteByte(',')
			}
			item.writeKey(sb)
		}
		sb.WriteByte(']')
	case KindObject:
		keys := append([]string(nil), v.obj.keys...)
		slices.Sort(keys)
		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.Quote(k))
			sb.WriteByte(':')
			v.obj.fields[k].writeKey(sb)
		}
		sb.WriteByte('}')
	}
}
