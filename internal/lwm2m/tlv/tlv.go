// Package tlv implements the LWM2M binary TLV content format
// (application/vnd.oma.lwm2m+tlv).
//
// Each record starts with a header byte: bits 7-6 hold the record type,
// bit 5 selects a 16-bit identifier, bits 4-3 the width of an explicit
// length field (0-3 bytes) and bits 2-0 an inline length for values shorter
// than 8 bytes. The identifier and length follow big-endian, then the value.
//
// Serialize and Parse work on one object instance. Resources are resolved
// through a schema.Schema; identifiers the schema does not declare are
// skipped so payloads from newer object versions still decode.
//
// Integers are written in the narrowest of 1, 2, 4 or 8 bytes that holds
// the magnitude and read back as signed. A value such as 200 is written as
// the single byte 0xC8, which parses as -56 and serialises back to 0xC8.
package tlv

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m/schema"
)

var (
	// ErrMalformedTLV is returned when a payload cannot be decoded.
	ErrMalformedTLV = errors.New("tlv: malformed payload")

	// ErrValueTooLarge is returned when a value exceeds the 24-bit length field.
	ErrValueTooLarge = errors.New("tlv: value too large")
)

// Serialize validates obj against s and encodes it in schema order.
// Names not declared in s are skipped.
func Serialize(obj schema.Object, s *schema.Schema) ([]byte, error) {
	if err := s.Validate(obj); err != nil {
		return nil, err
	}
	out, err := appendObject(nil, obj, s)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Parse decodes one object instance.
func Parse(data []byte, s *schema.Schema) (schema.Object, error) {
	obj, err := parseObject(data, s)
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// SerializeInstances encodes several instances of one object, each wrapped in
// an object-instance record, in ascending instance order.
func SerializeInstances(instances map[uint16]schema.Object, s *schema.Schema) ([]byte, error) {
	ids := make([]uint16, 0, len(instances))
	for id := range instances {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var out []byte
	for _, id := range ids {
		obj := instances[id]
		if err := s.Validate(obj); err != nil {
			return nil, fmt.Errorf("instance %d: %w", id, err)
		}
		body, err := appendObject(nil, obj, s)
		if err != nil {
			return nil, err
		}
		if out, err = appendRecord(out, ObjectInstance, id, body); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ParseInstances decodes a payload made of object-instance records.
func ParseInstances(data []byte, s *schema.Schema) (map[uint16]schema.Object, error) {
	recs, err := readRecords(data)
	if err != nil {
		return nil, err
	}

	out := make(map[uint16]schema.Object, len(recs))
	for _, rec := range recs {
		if rec.Type != ObjectInstance {
			return nil, fmt.Errorf("%w: expected object instance record, got type %d", ErrMalformedTLV, rec.Type)
		}
		obj, err := parseObject(rec.Value, s)
		if err != nil {
			return nil, err
		}
		out[rec.ID] = obj
	}
	return out, nil
}

func appendObject(dst []byte, obj schema.Object, s *schema.Schema) ([]byte, error) {
	for _, res := range s.Resources() {
		v, ok := obj[res.Name]
		if !ok || v == nil {
			continue
		}

		var err error
		if res.Type.Array {
			dst, err = appendMultiple(dst, res, v)
		} else {
			dst, err = appendSingle(dst, res, v)
		}
		if err != nil {
			return nil, err
		}
	}
	return dst, nil
}

func appendSingle(dst []byte, res schema.Resource, v any) ([]byte, error) {
	val, err := encodeScalar(res, v)
	if err != nil {
		return nil, err
	}
	typ := ResourceValue
	if res.Type.Kind == schema.KindObjectLink {
		typ = ObjectInstance
	}
	return appendRecord(dst, typ, res.WireID(), val)
}

func appendMultiple(dst []byte, res schema.Resource, v any) ([]byte, error) {
	elems, _ := schema.Elements(v)
	if len(elems) > math.MaxUint16+1 {
		return nil, fmt.Errorf("%w: %d instances of %q", ErrValueTooLarge, len(elems), res.Name)
	}

	var inner []byte
	for i, el := range elems {
		val, err := encodeScalar(res, el)
		if err != nil {
			return nil, err
		}
		if inner, err = appendRecord(inner, ResourceInstance, uint16(i), val); err != nil { //nolint:gosec // bounded above
			return nil, err
		}
	}
	return appendRecord(dst, MultipleResource, res.WireID(), inner)
}

func parseObject(data []byte, s *schema.Schema) (schema.Object, error) {
	obj := make(schema.Object)
	for len(data) > 0 {
		rec, n, err := readRecord(data)
		if err != nil {
			return nil, err
		}
		data = data[n:]

		res, ok := s.ByID(rec.ID)
		if !ok {
			continue
		}

		var v any
		if res.Type.Array {
			v, err = parseMultiple(rec, res)
		} else {
			if rec.Type == MultipleResource {
				return nil, fmt.Errorf("%w: %q is single-instance but got a multiple resource record", ErrMalformedTLV, res.Name)
			}
			v, err = decodeScalar(res, rec.Value)
		}
		if err != nil {
			return nil, err
		}
		obj[res.Name] = v
	}
	return obj, nil
}

// parseMultiple collects the resource-instance records of a multiple resource
// ordered by instance index.
func parseMultiple(rec Record, res schema.Resource) ([]any, error) {
	if rec.Type != MultipleResource {
		return nil, fmt.Errorf("%w: %q is multi-instance but got record type %d", ErrMalformedTLV, res.Name, rec.Type)
	}

	inner, err := readRecords(rec.Value)
	if err != nil {
		return nil, err
	}

	type indexed struct {
		idx uint16
		val any
	}
	items := make([]indexed, 0, len(inner))
	for _, r := range inner {
		if r.Type != ResourceInstance {
			continue
		}
		v, err := decodeScalar(res, r.Value)
		if err != nil {
			return nil, err
		}
		items = append(items, indexed{idx: r.ID, val: v})
	}
	slices.SortStableFunc(items, func(a, b indexed) int { return int(a.idx) - int(b.idx) })

	out := make([]any, len(items))
	for i, it := range items {
		out[i] = it.val
	}
	return out, nil
}

// Codec exposes Serialize and Parse as a value, for content format lookup.
type Codec struct{}

// Serialize implements the content codec interface.
func (Codec) Serialize(obj schema.Object, s *schema.Schema) ([]byte, error) {
	return Serialize(obj, s)
}

// Parse implements the content codec interface.
func (Codec) Parse(data []byte, s *schema.Schema) (schema.Object, error) {
	return Parse(data, s)
}
