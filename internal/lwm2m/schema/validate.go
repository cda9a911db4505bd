package schema

import (
	"fmt"
	"time"
)

// Validate checks obj against the schema.
//
// A single-key object is treated as a single-resource write: only that
// resource is checked, and an unknown name is accepted (codecs skip it).
// Otherwise every declared resource is checked: a present value must match
// its type and constraints, and a required resource must be present. A nil
// value counts as absent.
func (s *Schema) Validate(obj Object) error {
	if s == nil {
		return nil
	}
	if len(obj) == 1 {
		for name, val := range obj {
			i, ok := s.byName[name]
			if !ok {
				return nil
			}
			return s.resources[i].check(val, name)
		}
	}
	return s.validateAll(obj, "")
}

func (s *Schema) validateAll(obj Object, prefix string) error {
	for i := range s.resources {
		res := &s.resources[i]
		if err := res.check(obj[res.Name], prefix+res.Name); err != nil {
			return err
		}
	}
	return nil
}

// check validates one resource value. path names the resource in errors.
func (r *Resource) check(val any, path string) error {
	if val == nil {
		if r.Required {
			return &ValidationError{Resource: path, Err: ErrMissingResource}
		}
		return nil
	}

	if !r.Type.Array {
		return r.checkScalar(val, path)
	}

	elems, ok := Elements(val)
	if !ok {
		return typeMismatch(path, r.Type, val)
	}
	for i, el := range elems {
		if err := r.checkScalar(el, fmt.Sprintf("%s[%d]", path, i)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Resource) checkScalar(val any, path string) error {
	v, ok := canonicalScalar(r.Type.Kind, val)
	if !ok {
		return typeMismatch(path, Scalar(r.Type.Kind), val)
	}

	if r.Type.Kind == KindObjectLink {
		return r.Schema.validateAll(v.(Object), path+".")
	}

	if r.Enum != nil && !enumContains(r.Enum, v) {
		return &ValidationError{
			Resource: path,
			Err:      ErrConstraint,
			Detail:   fmt.Sprintf("%v not in %v", v, r.Enum),
		}
	}

	if r.Range != nil {
		f, _ := AsFloat64(v)
		if !r.Range.Contains(f) {
			return &ValidationError{
				Resource: path,
				Err:      ErrConstraint,
				Detail:   fmt.Sprintf("%v outside [%v, %v]", v, r.Range.Min, r.Range.Max),
			}
		}
	}

	return nil
}

func enumContains(enum []any, v any) bool {
	for _, e := range enum {
		if t, ok := v.(time.Time); ok {
			if et, ok := e.(time.Time); ok && et.Equal(t) {
				return true
			}
			continue
		}
		if e == v {
			return true
		}
	}
	return false
}
