package schema

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Normalize converts loosely typed input, typically decoded from JSON, to the
// canonical value shapes described on Object. It accepts json.Number and
// float64 for numeric kinds, RFC 3339 strings or epoch seconds for Time,
// base64 strings for Opaque and nested maps for object links. Names not
// declared in the schema are copied unchanged. The input is not modified.
func (s *Schema) Normalize(obj Object) (Object, error) {
	return s.normalize(obj, "")
}

func (s *Schema) normalize(obj Object, prefix string) (Object, error) {
	out := make(Object, len(obj))
	for name, val := range obj {
		i, ok := s.byName[name]
		if !ok || val == nil {
			out[name] = val
			continue
		}
		res := &s.resources[i]
		path := prefix + name

		if !res.Type.Array {
			v, err := res.normalizeScalar(val, path)
			if err != nil {
				return nil, err
			}
			out[name] = v
			continue
		}

		elems, ok := Elements(val)
		if !ok {
			return nil, typeMismatch(path, res.Type, val)
		}
		list := make([]any, len(elems))
		for j, el := range elems {
			v, err := res.normalizeScalar(el, fmt.Sprintf("%s[%d]", path, j))
			if err != nil {
				return nil, err
			}
			list[j] = v
		}
		out[name] = list
	}
	return out, nil
}

func (r *Resource) normalizeScalar(val any, path string) (any, error) {
	want := Scalar(r.Type.Kind)
	switch r.Type.Kind {
	case KindInteger:
		switch v := val.(type) {
		case json.Number:
			n, err := v.Int64()
			if err != nil {
				return nil, typeMismatch(path, want, val)
			}
			return n, nil
		case float64:
			if v != math.Trunc(v) || v < math.MinInt64 || v >= math.MaxInt64 {
				return nil, typeMismatch(path, want, val)
			}
			return int64(v), nil
		}

	case KindFloat:
		if v, ok := val.(json.Number); ok {
			f, err := v.Float64()
			if err != nil {
				return nil, typeMismatch(path, want, val)
			}
			return f, nil
		}

	case KindOpaque:
		if v, ok := val.(string); ok {
			b, err := base64.StdEncoding.DecodeString(v)
			if err != nil {
				return nil, &ValidationError{Resource: path, Err: ErrTypeMismatch, Detail: "opaque value is not base64"}
			}
			return b, nil
		}

	case KindTime:
		switch v := val.(type) {
		case string:
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return nil, &ValidationError{Resource: path, Err: ErrTypeMismatch, Detail: "time is not RFC 3339"}
			}
			return t.UTC().Truncate(time.Second), nil
		case json.Number:
			n, err := v.Int64()
			if err != nil {
				return nil, typeMismatch(path, want, val)
			}
			return time.Unix(n, 0).UTC(), nil
		case float64:
			return time.Unix(int64(v), 0).UTC(), nil
		default:
			if n, ok := AsInt64(val); ok {
				return time.Unix(n, 0).UTC(), nil
			}
		}

	case KindObjectLink:
		if obj, ok := AsObject(val); ok {
			return r.Schema.normalize(obj, path+".")
		}
	}

	v, ok := canonicalScalar(r.Type.Kind, val)
	if !ok {
		return nil, typeMismatch(path, want, val)
	}
	if t, isTime := v.(time.Time); isTime {
		return t.UTC(), nil
	}
	return v, nil
}
