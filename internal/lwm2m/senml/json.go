package senml

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m/schema"
)

// envelope is the LWM2M JSON top-level object.
type envelope struct {
	BaseName string       `json:"bn,omitempty"`
	Entries  []jsonRecord `json:"e"`
}

type jsonRecord struct {
	Name        string      `json:"n"`
	Value       json.Number `json:"v,omitempty"`
	StringValue *string     `json:"sv,omitempty"`
	BoolValue   *bool       `json:"bv,omitempty"`
}

// Serialize validates obj against s and encodes it as LWM2M JSON, in schema
// order.
func Serialize(obj schema.Object, s *schema.Schema, opts ...Option) ([]byte, error) {
	o := buildOptions(opts)
	recs, n, err := toRecords(obj, s)
	if err != nil {
		return nil, err
	}

	env := envelope{Entries: make([]jsonRecord, 0, len(recs))}
	if o.baseName != "" && n > 1 {
		env.BaseName = o.baseName
	}
	for _, r := range recs {
		jr := jsonRecord{Name: r.Name}
		switch v := r.Value.(type) {
		case string:
			jr.StringValue = &v
		case bool:
			jr.BoolValue = &v
		case []byte:
			enc := base64.StdEncoding.EncodeToString(v)
			jr.StringValue = &enc
		default:
			if jr.Value, err = formatNumber(r); err != nil {
				return nil, err
			}
		}
		env.Entries = append(env.Entries, jr)
	}

	out, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("senml: encoding: %w", err)
	}
	return out, nil
}

// Parse decodes an LWM2M JSON payload.
func Parse(data []byte, s *schema.Schema) (schema.Object, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if env.Entries == nil {
		return nil, fmt.Errorf("%w: missing record list", ErrInvalidPayload)
	}

	entries := make([]entry, 0, len(env.Entries))
	for _, r := range env.Entries {
		segs, err := resolveName(env.BaseName, r.Name)
		if err != nil {
			return nil, err
		}
		v, err := jsonValue(r.Value, r.StringValue, r.BoolValue, nil)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry{segs: segs, value: v})
	}

	obj, err := fromRecords(entries, s)
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// formatNumber renders an int64 or float64 record value.
func formatNumber(r Record) (json.Number, error) {
	switch v := r.Value.(type) {
	case int64:
		return json.Number(strconv.FormatInt(v, 10)), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "", fmt.Errorf("senml: %s: %v cannot be encoded", r.Name, v)
		}
		return json.Number(strconv.FormatFloat(v, 'g', -1, 64)), nil
	default:
		return "", fmt.Errorf("senml: %s: unsupported value %T", r.Name, r.Value)
	}
}

// jsonValue picks the single value field of a decoded record.
func jsonValue(num json.Number, str *string, b *bool, data []byte) (any, error) {
	var (
		v   any
		set int
	)
	if num != "" {
		set++
		if i, err := num.Int64(); err == nil {
			v = i
		} else if f, err := num.Float64(); err == nil {
			v = f
		} else {
			return nil, fmt.Errorf("%w: bad number %q", ErrInvalidPayload, num)
		}
	}
	if str != nil {
		set++
		v = *str
	}
	if b != nil {
		set++
		v = *b
	}
	if data != nil {
		set++
		v = data
	}
	if set > 1 {
		return nil, fmt.Errorf("%w: record carries more than one value", ErrInvalidPayload)
	}
	return v, nil
}

// decodeBase64 accepts standard and URL alphabets, padded or not.
func decodeBase64(s string) ([]byte, error) {
	var err error
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding, base64.RawStdEncoding,
		base64.URLEncoding, base64.RawURLEncoding,
	} {
		var b []byte
		if b, err = enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, err
}

// Codec is the LWM2M JSON content codec.
type Codec struct {
	// BaseName is written as "bn" when more than one resource is encoded.
	BaseName string
}

// Serialize implements the content codec interface.
func (c Codec) Serialize(obj schema.Object, s *schema.Schema) ([]byte, error) {
	return Serialize(obj, s, WithBaseName(c.BaseName))
}

// Parse implements the content codec interface.
func (Codec) Parse(data []byte, s *schema.Schema) (schema.Object, error) {
	return Parse(data, s)
}
