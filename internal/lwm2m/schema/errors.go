package schema

import (
	"errors"
	"fmt"
)

// Domain errors for the schema package.
//
// Every error produced by New, Parse, Validate and Normalize is a
// *ValidationError that matches ErrValidation and one of the more specific
// causes below:
//
//	if errors.Is(err, schema.ErrMissingResource) {
//	    // a required resource was absent
//	}
var (
	// ErrValidation matches every schema or value validation failure.
	ErrValidation = errors.New("schema: validation failed")

	// ErrInvalidDefinition is returned when a resource descriptor is malformed.
	ErrInvalidDefinition = errors.New("schema: bad definition")

	// ErrTypeMismatch is returned when a value does not match its declared type.
	ErrTypeMismatch = errors.New("schema: invalid resource")

	// ErrMissingResource is returned when a required resource is absent.
	ErrMissingResource = errors.New("schema: missing resource")

	// ErrConstraint is returned when a value violates an enum or range constraint.
	ErrConstraint = errors.New("schema: constraint violated")

	// ErrObjectNotFound is returned when a catalog has no schema for an object ID.
	ErrObjectNotFound = errors.New("schema: object not found")
)

// ValidationError describes a failure tied to a single resource.
type ValidationError struct {
	// Resource is the resource name. Nested object-link resources are
	// reported as "parent.child", array elements as "name[i]".
	Resource string

	// Err is the specific cause (ErrInvalidDefinition, ErrTypeMismatch,
	// ErrMissingResource or ErrConstraint).
	Err error

	// Detail is an optional human-readable explanation.
	Detail string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%v `%s`", e.Err, e.Resource)
	}
	return fmt.Sprintf("%v `%s`: %s", e.Err, e.Resource, e.Detail)
}

// Unwrap exposes both ErrValidation and the specific cause to errors.Is.
func (e *ValidationError) Unwrap() []error {
	return []error{ErrValidation, e.Err}
}

func invalidDefinition(name, format string, args ...any) error {
	return &ValidationError{Resource: name, Err: ErrInvalidDefinition, Detail: fmt.Sprintf(format, args...)}
}

func typeMismatch(name string, want Type, got any) error {
	return &ValidationError{
		Resource: name,
		Err:      ErrTypeMismatch,
		Detail:   fmt.Sprintf("expected %s, got %T", want, got),
	}
}
