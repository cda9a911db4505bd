package tlv

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m/schema"
)

// encodeInt writes v big-endian in 1, 2, 4 or 8 bytes. Non-negative values
// use the smallest width holding their unsigned magnitude, negative values
// the smallest signed width.
func encodeInt(v int64) []byte {
	var n int
	if v >= 0 {
		switch u := uint64(v); {
		case u <= math.MaxUint8:
			n = 1
		case u <= math.MaxUint16:
			n = 2
		case u <= math.MaxUint32:
			n = 4
		default:
			n = 8
		}
	} else {
		switch {
		case v >= math.MinInt8:
			n = 1
		case v >= math.MinInt16:
			n = 2
		case v >= math.MinInt32:
			n = 4
		default:
			n = 8
		}
	}

	b := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

// decodeInt reads a big-endian two's-complement integer of 0-8 bytes.
func decodeInt(b []byte) (int64, error) {
	if len(b) > 8 {
		return 0, fmt.Errorf("%w: %d-byte integer", ErrMalformedTLV, len(b))
	}
	if len(b) == 0 {
		return 0, nil
	}
	v := int64(int8(b[0]))
	for _, c := range b[1:] {
		v = v<<8 | int64(c)
	}
	return v, nil
}

// encodeScalar encodes one validated value of res's kind.
func encodeScalar(res schema.Resource, v any) ([]byte, error) {
	switch res.Type.Kind {
	case schema.KindString:
		return []byte(v.(string)), nil
	case schema.KindInteger:
		i, _ := schema.AsInt64(v)
		return encodeInt(i), nil
	case schema.KindFloat:
		f, _ := schema.AsFloat64(v)
		return binary.BigEndian.AppendUint64(nil, math.Float64bits(f)), nil
	case schema.KindBoolean:
		if v.(bool) {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case schema.KindOpaque:
		return v.([]byte), nil
	case schema.KindTime:
		return encodeInt(v.(time.Time).Unix()), nil
	case schema.KindObjectLink:
		obj, _ := schema.AsObject(v)
		return appendObject(nil, obj, res.Schema)
	default:
		return nil, fmt.Errorf("tlv: unsupported kind %s for %q", res.Type.Kind, res.Name)
	}
}

// decodeScalar decodes one value of res's kind.
func decodeScalar(res schema.Resource, b []byte) (any, error) {
	switch res.Type.Kind {
	case schema.KindString:
		return string(b), nil
	case schema.KindInteger:
		return decodeInt(b)
	case schema.KindFloat:
		switch len(b) {
		case 4:
			return float64(math.Float32frombits(binary.BigEndian.Uint32(b))), nil
		case 8:
			return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
		default:
			return nil, fmt.Errorf("%w: %d-byte float for %q", ErrMalformedTLV, len(b), res.Name)
		}
	case schema.KindBoolean:
		if len(b) != 1 {
			return nil, fmt.Errorf("%w: %d-byte boolean for %q", ErrMalformedTLV, len(b), res.Name)
		}
		return b[0] != 0, nil
	case schema.KindOpaque:
		return bytes.Clone(b), nil
	case schema.KindTime:
		sec, err := decodeInt(b)
		if err != nil {
			return nil, err
		}
		return time.Unix(sec, 0).UTC(), nil
	case schema.KindObjectLink:
		return parseObject(b, res.Schema)
	default:
		return nil, fmt.Errorf("tlv: unsupported kind %s for %q", res.Type.Kind, res.Name)
	}
}
