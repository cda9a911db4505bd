package schema

import (
	"math"
)

// maxResourceID is the largest ID representable on the wire.
const maxResourceID = math.MaxUint16

// Schema is an ordered, validated set of resource descriptors.
//
// The zero value is an empty schema. Construct non-empty schemas with New
// or Parse.
type Schema struct {
	resources []Resource
	byName    map[string]int
	byID      map[uint16]int
}

// New validates the descriptors and returns an immutable Schema that keeps
// their declaration order.
func New(resources ...Resource) (*Schema, error) {
	s := &Schema{
		resources: make([]Resource, 0, len(resources)),
		byName:    make(map[string]int, len(resources)),
		byID:      make(map[uint16]int, len(resources)),
	}

	for _, res := range resources {
		res, err := checkDescriptor(res)
		if err != nil {
			return nil, err
		}
		if _, dup := s.byName[res.Name]; dup {
			return nil, invalidDefinition(res.Name, "duplicate name")
		}
		if other, dup := s.byID[res.WireID()]; dup {
			return nil, invalidDefinition(res.Name, "id %d already used by %q", res.ID, s.resources[other].Name)
		}

		s.byName[res.Name] = len(s.resources)
		s.byID[res.WireID()] = len(s.resources)
		s.resources = append(s.resources, res)
	}

	return s, nil
}

// MustNew is like New but panics on error. Intended for package-level
// fixtures whose definitions are known to be valid.
func MustNew(resources ...Resource) *Schema {
	s, err := New(resources...)
	if err != nil {
		panic(err)
	}
	return s
}

// checkDescriptor validates one descriptor and returns it with enum values
// in canonical form.
func checkDescriptor(res Resource) (Resource, error) {
	if res.Name == "" {
		return res, invalidDefinition(res.Name, "empty name")
	}
	if res.ID < 0 || res.ID > maxResourceID {
		return res, invalidDefinition(res.Name, "id %d out of range 0-%d", res.ID, maxResourceID)
	}
	if !res.Type.Kind.Valid() {
		return res, invalidDefinition(res.Name, "unknown type %s", res.Type.Kind)
	}

	if res.Type.Kind == KindObjectLink {
		if res.Schema == nil {
			return res, invalidDefinition(res.Name, "object link without nested schema")
		}
	} else if res.Schema != nil {
		return res, invalidDefinition(res.Name, "nested schema on %s resource", res.Type)
	}

	if res.Range != nil {
		if !res.Type.Kind.Numeric() {
			return res, invalidDefinition(res.Name, "range on %s resource", res.Type)
		}
		if !res.Range.valid() {
			return res, invalidDefinition(res.Name, "range min %v > max %v", res.Range.Min, res.Range.Max)
		}
	}

	if res.Enum != nil {
		if res.Type.Kind == KindObjectLink || res.Type.Kind == KindOpaque {
			return res, invalidDefinition(res.Name, "enum on %s resource", res.Type)
		}
		enum := make([]any, len(res.Enum))
		for i, v := range res.Enum {
			c, ok := canonicalScalar(res.Type.Kind, v)
			if !ok {
				return res, invalidDefinition(res.Name, "enum value %v is not %s", v, res.Type.Kind)
			}
			enum[i] = c
		}
		res.Enum = enum
	}

	return res.clone(), nil
}

// Len returns the number of declared resources.
func (s *Schema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.resources)
}

// Resources returns the descriptors in declaration order.
func (s *Schema) Resources() []Resource {
	if s == nil {
		return nil
	}
	out := make([]Resource, len(s.resources))
	for i, res := range s.resources {
		out[i] = res.clone()
	}
	return out
}

// Lookup returns the descriptor for a resource name.
func (s *Schema) Lookup(name string) (Resource, bool) {
	if s == nil {
		return Resource{}, false
	}
	i, ok := s.byName[name]
	if !ok {
		return Resource{}, false
	}
	return s.resources[i].clone(), true
}

// ByID returns the descriptor for a wire resource ID.
func (s *Schema) ByID(id uint16) (Resource, bool) {
	if s == nil {
		return Resource{}, false
	}
	i, ok := s.byID[id]
	if !ok {
		return Resource{}, false
	}
	return s.resources[i].clone(), true
}

// Names returns the resource names in declaration order.
func (s *Schema) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, len(s.resources))
	for i, res := range s.resources {
		names[i] = res.Name
	}
	return names
}
