package schema

import (
	"fmt"
	"math"
	"strings"
)

// Kind is the scalar type of a resource value.
//
// The set is closed: codecs switch over every Kind exhaustively, so adding
// a kind means touching both the TLV and SenML encoders and decoders.
type Kind uint8

// Scalar kinds.
const (
	KindString Kind = iota + 1
	KindInteger
	KindFloat
	KindBoolean
	KindOpaque
	KindTime
	KindObjectLink
)

// kindNames maps kinds to their names in definition files.
var kindNames = map[Kind]string{
	KindString:     "String",
	KindInteger:    "Integer",
	KindFloat:      "Float",
	KindBoolean:    "Boolean",
	KindOpaque:     "Opaque",
	KindTime:       "Time",
	KindObjectLink: "Objlnk",
}

// String returns the definition-file name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k >= KindString && k <= KindObjectLink
}

// Numeric reports whether range constraints apply to k.
func (k Kind) Numeric() bool {
	return k == KindInteger || k == KindFloat
}

// ParseKind converts a definition-file type name to a Kind.
// "ObjectLink" is accepted as an alias of "Objlnk".
func ParseKind(name string) (Kind, error) {
	if strings.EqualFold(name, "ObjectLink") {
		return KindObjectLink, nil
	}
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown type %q", name)
}

// Type is a scalar kind, optionally multi-instance.
type Type struct {
	Kind  Kind
	Array bool
}

// Scalar returns a single-instance type of kind k.
func Scalar(k Kind) Type {
	return Type{Kind: k}
}

// ArrayOf returns a multi-instance type with elements of kind k.
func ArrayOf(k Kind) Type {
	return Type{Kind: k, Array: true}
}

// String renders the type the way definition files spell it.
func (t Type) String() string {
	if t.Array {
		return "[" + t.Kind.String() + "]"
	}
	return t.Kind.String()
}

// Range is an inclusive numeric bound.
type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Contains reports whether min <= v <= max.
func (r Range) Contains(v float64) bool {
	return r.Min <= v && v <= r.Max
}

func (r Range) valid() bool {
	return !math.IsNaN(r.Min) && !math.IsNaN(r.Max) && r.Min <= r.Max
}

// Resource describes a single LWM2M resource.
type Resource struct {
	// Name is the key used in decoded Objects.
	Name string

	// ID is the LWM2M resource ID (0-65535).
	ID int

	// Type is the scalar kind and multi-instance flag.
	Type Type

	// Required marks the resource as mandatory in full writes.
	Required bool

	// Enum lists the allowed values. Integers are compared as int64,
	// floats as float64.
	Enum []any

	// Range bounds numeric values (Integer and Float only).
	Range *Range

	// Schema describes the linked instance of an ObjectLink resource.
	Schema *Schema
}

// WireID returns the resource ID as it appears on the wire.
func (r Resource) WireID() uint16 {
	return uint16(r.ID) //nolint:gosec // bounded to 0-65535 by New
}

// clone returns a copy that shares no mutable state with r.
func (r Resource) clone() Resource {
	if r.Enum != nil {
		r.Enum = append([]any(nil), r.Enum...)
	}
	if r.Range != nil {
		rng := *r.Range
		r.Range = &rng
	}
	return r
}

// Object holds decoded resource values keyed by resource name.
//
// Value shapes: String→string, Integer→int64, Float→float64, Boolean→bool,
// Opaque→[]byte, Time→time.Time, ObjectLink→Object, arrays→[]any.
type Object map[string]any
