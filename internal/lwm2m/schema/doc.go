// Package schema describes the shape of LWM2M Objects.
//
// A Schema is an ordered set of resource descriptors, each mapping a
// resource name to its numeric LWM2M resource ID, a scalar or array type
// and optional constraints (required, enum, range). Object-link resources
// carry a nested Schema describing the linked instance.
//
// # Key Types
//
//   - Kind: closed set of scalar kinds (String, Integer, Float, Boolean,
//     Opaque, Time, ObjectLink)
//   - Type: a Kind plus the multi-instance (array) flag
//   - Resource: one resource descriptor
//   - Schema: immutable, validated collection of descriptors
//   - Object: decoded resource values keyed by resource name
//   - Catalog: object ID → Schema registry injected into codecs and routers
//
// # Usage
//
//	temperature, err := schema.New(
//	    schema.Resource{Name: "sensorValue", ID: 5700, Type: schema.Scalar(schema.KindFloat), Required: true},
//	    schema.Resource{Name: "units", ID: 5701, Type: schema.Scalar(schema.KindString)},
//	)
//	if err != nil {
//	    return err
//	}
//
//	if err := temperature.Validate(schema.Object{"sensorValue": 21.5}); err != nil {
//	    // errors.Is(err, schema.ErrValidation) == true
//	}
//
// Definitions can also be loaded from YAML or JSON text with Parse, which
// preserves declaration order:
//
//	s, err := schema.Parse([]byte(`{"foo": {"id": 5, "type": "String"}}`))
//
// # Thread Safety
//
// A Schema is never mutated after New returns, so it can be shared freely
// between goroutines. Catalog is safe for concurrent use.
package schema
