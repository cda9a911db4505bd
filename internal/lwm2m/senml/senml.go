// Package senml implements the JSON based LWM2M content formats.
//
// Three wire forms share one flattened record model:
//
//   - LWM2M JSON (application/vnd.oma.lwm2m+json): {"bn":..., "e":[{"n","v"|"sv"|"bv"}]}
//     with opaque values base64 encoded under "sv"
//   - SenML JSON (application/senml+json): RFC 8428 array of records using
//     "vs", "vb" and "vd"
//   - SenML CBOR (application/senml+cbor): RFC 8428 integer labels
//
// Records are named by resource ID relative to the object instance.
// Multi-instance resources produce one record per element ("<id>/<index>")
// and object links one record per nested resource ("<id>/<nestedId>").
// Records whose ID the schema does not declare are skipped.
package senml

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m/schema"
)

var (
	// ErrInvalidPayload is returned for undecodable input or a missing
	// record list.
	ErrInvalidPayload = errors.New("senml: invalid payload")

	// ErrSchemaMismatch is returned when a record's value tag does not fit
	// the declared resource kind.
	ErrSchemaMismatch = errors.New("senml: payload does not match schema")
)

// Record is one flattened resource value. Value holds int64 or float64
// (numeric "v"), string, bool or []byte.
type Record struct {
	Name  string
	Value any
}

// Option configures serialisation.
type Option func(*options)

type options struct {
	baseName string
}

// WithBaseName sets the base name written with the records, for example
// "/3303/0/". It is not written when only one resource is serialised.
func WithBaseName(bn string) Option {
	return func(o *options) { o.baseName = bn }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// toRecords validates obj and flattens it in schema order. The second result
// is the number of top-level resources written.
func toRecords(obj schema.Object, s *schema.Schema) ([]Record, int, error) {
	if err := s.Validate(obj); err != nil {
		return nil, 0, err
	}
	n := 0
	for _, res := range s.Resources() {
		if v, ok := obj[res.Name]; ok && v != nil {
			n++
		}
	}
	return flatten(nil, obj, s, ""), n, nil
}

func flatten(recs []Record, obj schema.Object, s *schema.Schema, prefix string) []Record {
	for _, res := range s.Resources() {
		v, ok := obj[res.Name]
		if !ok || v == nil {
			continue
		}
		name := prefix + strconv.Itoa(res.ID)
		if !res.Type.Array {
			recs = appendValue(recs, res, name, v)
			continue
		}
		elems, _ := schema.Elements(v)
		for i, el := range elems {
			recs = appendValue(recs, res, name+"/"+strconv.Itoa(i), el)
		}
	}
	return recs
}

func appendValue(recs []Record, res schema.Resource, name string, v any) []Record {
	switch res.Type.Kind {
	case schema.KindObjectLink:
		nested, _ := schema.AsObject(v)
		return flatten(recs, nested, res.Schema, name+"/")
	case schema.KindInteger:
		i, _ := schema.AsInt64(v)
		return append(recs, Record{Name: name, Value: i})
	case schema.KindFloat:
		f, _ := schema.AsFloat64(v)
		return append(recs, Record{Name: name, Value: f})
	case schema.KindTime:
		return append(recs, Record{Name: name, Value: v.(time.Time).Unix()})
	default:
		// String, Boolean and Opaque values are already canonical after
		// validation.
		return append(recs, Record{Name: name, Value: v})
	}
}

// entry is a record with its name split into path segments relative to the
// object instance.
type entry struct {
	segs  []string
	value any
}

// resolveName converts a base name and record name into instance-relative
// segments. A base name or a leading "/" makes the path absolute
// (/object/instance/resource/...), and the object and instance segments are
// dropped.
func resolveName(bn, n string) ([]string, error) {
	full := bn + n
	if bn == "" && !strings.HasPrefix(n, "/") {
		return strings.Split(n, "/"), nil
	}
	segs := strings.Split(strings.Trim(full, "/"), "/")
	if len(segs) < 3 {
		return nil, fmt.Errorf("%w: name %q does not address a resource", ErrInvalidPayload, full)
	}
	return segs[2:], nil
}

// fromRecords rebuilds an object from instance-relative entries.
func fromRecords(entries []entry, s *schema.Schema) (schema.Object, error) {
	obj := make(schema.Object)

	// group by resource ID, keeping first-seen order
	var order []uint16
	groups := make(map[uint16][]entry)
	for _, e := range entries {
		if len(e.segs) == 0 {
			return nil, fmt.Errorf("%w: object link value without nested resource", ErrSchemaMismatch)
		}
		id, err := strconv.ParseUint(e.segs[0], 10, 16)
		if err != nil {
			continue
		}
		if _, seen := groups[uint16(id)]; !seen {
			order = append(order, uint16(id))
		}
		groups[uint16(id)] = append(groups[uint16(id)], entry{segs: e.segs[1:], value: e.value})
	}

	for _, id := range order {
		res, ok := s.ByID(id)
		if !ok {
			continue
		}
		var (
			v   any
			err error
		)
		switch {
		case res.Type.Array:
			v, err = decodeArray(res, groups[id])
		case res.Type.Kind == schema.KindObjectLink:
			v, err = fromRecords(groups[id], res.Schema)
		default:
			v, err = decodeSingle(res, groups[id])
		}
		if err != nil {
			return nil, err
		}
		obj[res.Name] = v
	}
	return obj, nil
}

func decodeSingle(res schema.Resource, group []entry) (any, error) {
	last := group[len(group)-1]
	if len(last.segs) != 0 {
		return nil, fmt.Errorf("%w: %q is single-instance", ErrSchemaMismatch, res.Name)
	}
	return decodeValue(res, last.value)
}

func decodeArray(res schema.Resource, group []entry) ([]any, error) {
	var indices []int
	byIndex := make(map[int][]entry)
	for _, e := range group {
		if len(e.segs) == 0 {
			return nil, fmt.Errorf("%w: %q needs an instance index", ErrSchemaMismatch, res.Name)
		}
		idx, err := strconv.Atoi(e.segs[0])
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("%w: bad instance index %q for %q", ErrSchemaMismatch, e.segs[0], res.Name)
		}
		if _, seen := byIndex[idx]; !seen {
			indices = append(indices, idx)
		}
		byIndex[idx] = append(byIndex[idx], entry{segs: e.segs[1:], value: e.value})
	}
	slices.Sort(indices)

	out := make([]any, 0, len(indices))
	for _, idx := range indices {
		var (
			v   any
			err error
		)
		if res.Type.Kind == schema.KindObjectLink {
			v, err = fromRecords(byIndex[idx], res.Schema)
		} else {
			v, err = decodeSingle(res, byIndex[idx])
		}
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// decodeValue converts a wire value to the canonical shape of res's kind.
func decodeValue(res schema.Resource, v any) (any, error) {
	mismatch := func() error {
		return fmt.Errorf("%w: %q is %s, got %T", ErrSchemaMismatch, res.Name, res.Type.Kind, v)
	}

	switch res.Type.Kind {
	case schema.KindString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case schema.KindBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case schema.KindInteger:
		if i, ok := integral(v); ok {
			return i, nil
		}
	case schema.KindFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int64:
			return float64(n), nil
		}
	case schema.KindTime:
		if i, ok := integral(v); ok {
			return time.Unix(i, 0).UTC(), nil
		}
	case schema.KindOpaque:
		switch d := v.(type) {
		case []byte:
			return d, nil
		case string:
			b, err := decodeBase64(d)
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not base64", ErrSchemaMismatch, res.Name)
			}
			return b, nil
		}
	}
	return nil, mismatch()
}

func integral(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case float64:
		if n == math.Trunc(n) && n >= math.MinInt64 && n < math.MaxInt64 {
			return int64(n), true
		}
	}
	return 0, false
}
