package senml

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"

	"github.com/fxamacker/cbor/v2"

	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m/schema"
)

// packRecord is an RFC 8428 record. The same struct serves SenML JSON
// (string labels) and SenML CBOR (integer labels).
type packRecord struct {
	BaseName    string  `json:"bn,omitempty" cbor:"-2,keyasint,omitempty"`
	Name        string  `json:"n,omitempty" cbor:"0,keyasint,omitempty"`
	Value       any     `json:"v,omitempty" cbor:"2,keyasint,omitempty"`
	StringValue *string `json:"vs,omitempty" cbor:"3,keyasint,omitempty"`
	BoolValue   *bool   `json:"vb,omitempty" cbor:"4,keyasint,omitempty"`
	DataValue   *[]byte `json:"-" cbor:"8,keyasint,omitempty"`
	DataString  *string `json:"vd,omitempty" cbor:"-"`
}

// encMode writes deterministic CBOR.
var encMode cbor.EncMode

// decMode ignores unknown labels and duplicate keys.
var decMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		ShortestFloat: cbor.ShortestFloat16,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// toPack converts flattened records to RFC 8428 records. cborData selects
// byte-string opaque values instead of base64url text.
func toPack(obj schema.Object, s *schema.Schema, o options, cborData bool) ([]packRecord, error) {
	recs, n, err := toRecords(obj, s)
	if err != nil {
		return nil, err
	}

	pack := make([]packRecord, 0, len(recs))
	for i, r := range recs {
		pr := packRecord{Name: r.Name}
		if i == 0 && o.baseName != "" && n > 1 {
			pr.BaseName = o.baseName
		}
		switch v := r.Value.(type) {
		case string:
			pr.StringValue = &v
		case bool:
			pr.BoolValue = &v
		case []byte:
			if cborData {
				pr.DataValue = &v
			} else {
				enc := base64.RawURLEncoding.EncodeToString(v)
				pr.DataString = &enc
			}
		case int64, float64:
			if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
				return nil, fmt.Errorf("senml: %s: %v cannot be encoded", r.Name, f)
			}
			pr.Value = v
			if !cborData {
				if pr.Value, err = formatNumber(r); err != nil {
					return nil, err
				}
			}
		}
		pack = append(pack, pr)
	}
	return pack, nil
}

// fromPack resolves names against the running base name and rebuilds the
// object.
func fromPack(pack []packRecord, s *schema.Schema) (schema.Object, error) {
	if pack == nil {
		return nil, fmt.Errorf("%w: missing record list", ErrInvalidPayload)
	}

	var bn string
	entries := make([]entry, 0, len(pack))
	for _, r := range pack {
		if r.BaseName != "" {
			bn = r.BaseName
		}
		segs, err := resolveName(bn, r.Name)
		if err != nil {
			return nil, err
		}

		num, err := packNumber(r.Value)
		if err != nil {
			return nil, err
		}
		var data []byte
		switch {
		case r.DataValue != nil:
			data = *r.DataValue
			if data == nil {
				data = []byte{}
			}
		case r.DataString != nil:
			if data, err = decodeBase64(*r.DataString); err != nil {
				return nil, fmt.Errorf("%w: vd is not base64", ErrInvalidPayload)
			}
		}

		v, err := jsonValue("", r.StringValue, r.BoolValue, data)
		if err != nil {
			return nil, err
		}
		if num != nil {
			if v != nil {
				return nil, fmt.Errorf("%w: record carries more than one value", ErrInvalidPayload)
			}
			v = num
		}
		entries = append(entries, entry{segs: segs, value: v})
	}

	obj, err := fromRecords(entries, s)
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// packNumber normalises a decoded "v" to int64 or float64.
func packNumber(v any) (any, error) {
	switch n := v.(type) {
	case nil:
		return nil, nil
	case json.Number:
		return jsonValue(n, nil, nil, nil)
	case int64:
		return n, nil
	case uint64:
		if n > math.MaxInt64 {
			return float64(n), nil
		}
		return int64(n), nil
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	default:
		return nil, fmt.Errorf("%w: numeric value has type %T", ErrInvalidPayload, v)
	}
}

// SerializeSenMLJSON encodes obj as an RFC 8428 SenML JSON pack.
func SerializeSenMLJSON(obj schema.Object, s *schema.Schema, opts ...Option) ([]byte, error) {
	pack, err := toPack(obj, s, buildOptions(opts), false)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(pack)
	if err != nil {
		return nil, fmt.Errorf("senml: encoding: %w", err)
	}
	return out, nil
}

// ParseSenMLJSON decodes an RFC 8428 SenML JSON pack.
func ParseSenMLJSON(data []byte, s *schema.Schema) (schema.Object, error) {
	var pack []packRecord
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&pack); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return fromPack(pack, s)
}

// SerializeCBOR encodes obj as an RFC 8428 SenML CBOR pack.
func SerializeCBOR(obj schema.Object, s *schema.Schema, opts ...Option) ([]byte, error) {
	pack, err := toPack(obj, s, buildOptions(opts), true)
	if err != nil {
		return nil, err
	}
	out, err := encMode.Marshal(pack)
	if err != nil {
		return nil, fmt.Errorf("senml: encoding: %w", err)
	}
	return out, nil
}

// ParseCBOR decodes an RFC 8428 SenML CBOR pack.
func ParseCBOR(data []byte, s *schema.Schema) (schema.Object, error) {
	var pack []packRecord
	if err := decMode.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return fromPack(pack, s)
}

// SenMLJSONCodec is the application/senml+json content codec.
type SenMLJSONCodec struct {
	BaseName string
}

// Serialize implements the content codec interface.
func (c SenMLJSONCodec) Serialize(obj schema.Object, s *schema.Schema) ([]byte, error) {
	return SerializeSenMLJSON(obj, s, WithBaseName(c.BaseName))
}

// Parse implements the content codec interface.
func (SenMLJSONCodec) Parse(data []byte, s *schema.Schema) (schema.Object, error) {
	return ParseSenMLJSON(data, s)
}

// CBORCodec is the application/senml+cbor content codec.
type CBORCodec struct {
	BaseName string
}

// Serialize implements the content codec interface.
func (c CBORCodec) Serialize(obj schema.Object, s *schema.Schema) ([]byte, error) {
	return SerializeCBOR(obj, s, WithBaseName(c.BaseName))
}

// Parse implements the content codec interface.
func (CBORCodec) Parse(data []byte, s *schema.Schema) (schema.Object, error) {
	return ParseCBOR(data, s)
}
