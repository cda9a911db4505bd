package content

import (
	"fmt"
	"strings"

	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m/schema"
	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m/senml"
	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m/tlv"
)

// Codec encodes and decodes one object instance against its schema.
type Codec interface {
	Serialize(obj schema.Object, s *schema.Schema) ([]byte, error)
	Parse(data []byte, s *schema.Schema) (schema.Object, error)
}

// CodecFor returns the instance codec for f. Text, opaque and link formats
// have no instance codec.
func CodecFor(f Format) (Codec, error) {
	switch f {
	case TLV:
		return tlv.Codec{}, nil
	case JSON:
		return senml.Codec{}, nil
	case SenMLJSON:
		return senml.SenMLJSONCodec{}, nil
	case SenMLCBOR:
		return senml.CBORCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: no codec for %s", ErrUnsupportedFormat, f)
	}
}

// codecWithBaseName returns the codec for f, writing bn where the format
// supports a base name.
func codecWithBaseName(f Format, bn string) (Codec, error) {
	switch f {
	case JSON:
		return senml.Codec{BaseName: bn}, nil
	case SenMLJSON:
		return senml.SenMLJSONCodec{BaseName: bn}, nil
	case SenMLCBOR:
		return senml.CBORCodec{BaseName: bn}, nil
	default:
		return CodecFor(f)
	}
}

// Negotiate picks the format for sending value to path. A hint naming a
// format ("json", "tlv", "text", "opaque", "senml", "cbor") wins. Otherwise
// instance paths use TLV for structured values and bytes and LWM2M JSON for
// pre-encoded strings, and resource paths use opaque for bytes and plain
// text for everything else.
func Negotiate(path Path, value any, hint string) (Format, error) {
	if hint != "" {
		h := strings.ToLower(hint)
		switch {
		case strings.Contains(h, "cbor"):
			return SenMLCBOR, nil
		case strings.Contains(h, "senml"):
			return SenMLJSON, nil
		case strings.Contains(h, "json"):
			return JSON, nil
		case strings.Contains(h, "tlv"):
			return TLV, nil
		case strings.Contains(h, "text"):
			return Text, nil
		case strings.Contains(h, "opaque"), strings.Contains(h, "octet-stream"):
			return Opaque, nil
		}
		return 0, fmt.Errorf("%w: hint %q", ErrUnsupportedFormat, hint)
	}

	switch {
	case path.IsInstance():
		switch value.(type) {
		case string:
			return JSON, nil
		case []byte:
			return TLV, nil
		}
		if _, ok := schema.AsObject(value); ok {
			return TLV, nil
		}
	case path.IsResource():
		if _, ok := value.([]byte); ok {
			return Opaque, nil
		}
		return Text, nil
	}
	return 0, fmt.Errorf("%w: cannot choose a format for %T at %s", ErrUnsupportedFormat, value, path)
}
