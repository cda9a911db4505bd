package schema

import (
	"math"
	"reflect"
	"time"
)

// AsInt64 converts any Go integer kind to int64. Floats are rejected, as are
// unsigned values above math.MaxInt64.
func AsInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true //nolint:gosec // checked above
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true //nolint:gosec // checked above
	default:
		return 0, false
	}
}

// AsFloat64 converts floats and integer kinds to float64.
func AsFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		i, ok := AsInt64(v)
		return float64(i), ok
	}
}

// AsObject accepts Object or map[string]any.
func AsObject(v any) (Object, bool) {
	switch o := v.(type) {
	case Object:
		return o, true
	case map[string]any:
		return Object(o), true
	default:
		return nil, false
	}
}

// Elements returns the elements of any slice or array value. []byte is
// treated as opaque data, not as a list.
func Elements(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []byte, string, nil:
		return nil, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// canonicalScalar checks that v is a valid value of kind k and returns it in
// its canonical shape.
func canonicalScalar(k Kind, v any) (any, bool) {
	switch k {
	case KindString:
		s, ok := v.(string)
		return s, ok
	case KindInteger:
		return AsInt64(v)
	case KindFloat:
		return AsFloat64(v)
	case KindBoolean:
		b, ok := v.(bool)
		return b, ok
	case KindOpaque:
		b, ok := v.([]byte)
		return b, ok
	case KindTime:
		t, ok := v.(time.Time)
		return t, ok
	case KindObjectLink:
		return AsObject(v)
	default:
		return nil, false
	}
}
