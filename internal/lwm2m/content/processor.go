package content

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m/schema"
	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m/tlv"
)

// Catalog resolves object schemas. *schema.Catalog implements it.
type Catalog interface {
	Lookup(id uint16) (*schema.Schema, error)
}

// Processor decodes and encodes payloads for LWM2M paths.
//
// Instance and resource paths accept every instance codec. Resource paths
// additionally accept plain text and opaque payloads. Object paths accept
// TLV only, through DecodeObject and EncodeObject.
type Processor struct {
	catalog Catalog
}

// NewProcessor creates a processor backed by catalog.
func NewProcessor(catalog Catalog) *Processor {
	return &Processor{catalog: catalog}
}

// Schema returns the schema for an object ID.
func (p *Processor) Schema(object uint16) (*schema.Schema, error) {
	s, err := p.catalog.Lookup(object)
	if err != nil {
		if errors.Is(err, schema.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrUnknownObject, object)
		}
		return nil, err
	}
	return s, nil
}

// Decode parses payload for an instance or resource path.
func (p *Processor) Decode(path Path, f Format, payload []byte) (schema.Object, error) {
	s, err := p.Schema(path.Object)
	if err != nil {
		return nil, err
	}

	switch f {
	case Text, Opaque:
		res, err := singleResource(path, f, s)
		if err != nil {
			return nil, err
		}
		v, err := decodeSingle(res, f, payload)
		if err != nil {
			return nil, err
		}
		return schema.Object{res.Name: v}, nil
	}

	if path.IsObject() {
		return nil, fmt.Errorf("%w: %s at object path %s", ErrUnsupportedFormat, f, path)
	}
	codec, err := CodecFor(f)
	if err != nil {
		return nil, err
	}
	return codec.Parse(payload, s)
}

// Encode serialises obj for an instance or resource path.
func (p *Processor) Encode(path Path, f Format, obj schema.Object) ([]byte, error) {
	s, err := p.Schema(path.Object)
	if err != nil {
		return nil, err
	}

	switch f {
	case Text, Opaque:
		res, err := singleResource(path, f, s)
		if err != nil {
			return nil, err
		}
		if obj[res.Name] == nil {
			return nil, &schema.ValidationError{Resource: res.Name, Err: schema.ErrMissingResource}
		}
		if err := s.Validate(schema.Object{res.Name: obj[res.Name]}); err != nil {
			return nil, err
		}
		return encodeSingle(res, f, obj[res.Name])
	}

	if path.IsObject() {
		return nil, fmt.Errorf("%w: %s at object path %s", ErrUnsupportedFormat, f, path)
	}
	codec, err := codecWithBaseName(f, path.BaseName())
	if err != nil {
		return nil, err
	}
	return codec.Serialize(obj, s)
}

// DecodeObject parses a TLV payload holding several instances.
func (p *Processor) DecodeObject(object uint16, f Format, payload []byte) (map[uint16]schema.Object, error) {
	if f != TLV {
		return nil, fmt.Errorf("%w: %s for object reads", ErrUnsupportedFormat, f)
	}
	s, err := p.Schema(object)
	if err != nil {
		return nil, err
	}
	return tlv.ParseInstances(payload, s)
}

// EncodeObject serialises several instances as TLV.
func (p *Processor) EncodeObject(object uint16, f Format, instances map[uint16]schema.Object) ([]byte, error) {
	if f != TLV {
		return nil, fmt.Errorf("%w: %s for object writes", ErrUnsupportedFormat, f)
	}
	s, err := p.Schema(object)
	if err != nil {
		return nil, err
	}
	return tlv.SerializeInstances(instances, s)
}

func singleResource(path Path, f Format, s *schema.Schema) (schema.Resource, error) {
	if !path.IsResource() {
		return schema.Resource{}, fmt.Errorf("%w: %s needs a resource path, got %s", ErrUnsupportedFormat, f, path)
	}
	res, ok := s.ByID(path.Resource)
	if !ok {
		return schema.Resource{}, fmt.Errorf("%w: %s", ErrUnknownResource, path)
	}
	if res.Type.Array || res.Type.Kind == schema.KindObjectLink {
		return schema.Resource{}, fmt.Errorf("%w: %s for %s resource %q", ErrUnsupportedFormat, f, res.Type, res.Name)
	}
	if f == Opaque && res.Type.Kind != schema.KindOpaque {
		return schema.Resource{}, fmt.Errorf("%w: opaque payload for %s resource %q", ErrUnsupportedFormat, res.Type, res.Name)
	}
	return res, nil
}

func decodeSingle(res schema.Resource, f Format, payload []byte) (any, error) {
	if f == Opaque {
		return append([]byte{}, payload...), nil
	}

	text := strings.TrimSpace(string(payload))
	var (
		v   any
		err error
	)
	switch res.Type.Kind {
	case schema.KindString:
		return string(payload), nil
	case schema.KindInteger:
		v, err = strconv.ParseInt(text, 10, 64)
	case schema.KindFloat:
		v, err = strconv.ParseFloat(text, 64)
	case schema.KindBoolean:
		switch text {
		case "1", "true":
			v = true
		case "0", "false":
			v = false
		default:
			err = errors.New("not a boolean")
		}
	case schema.KindTime:
		var sec int64
		sec, err = strconv.ParseInt(text, 10, 64)
		v = time.Unix(sec, 0).UTC()
	case schema.KindOpaque:
		v, err = base64.StdEncoding.DecodeString(text)
	}
	if err != nil {
		return nil, &schema.ValidationError{Resource: res.Name, Err: schema.ErrTypeMismatch, Detail: fmt.Sprintf("text %q: %v", text, err)}
	}
	return v, nil
}

func encodeSingle(res schema.Resource, f Format, v any) ([]byte, error) {
	if f == Opaque {
		return v.([]byte), nil
	}

	switch res.Type.Kind {
	case schema.KindString:
		return []byte(v.(string)), nil
	case schema.KindInteger:
		i, _ := schema.AsInt64(v)
		return strconv.AppendInt(nil, i, 10), nil
	case schema.KindFloat:
		fl, _ := schema.AsFloat64(v)
		return strconv.AppendFloat(nil, fl, 'g', -1, 64), nil
	case schema.KindBoolean:
		if v.(bool) {
			return []byte("1"), nil
		}
		return []byte("0"), nil
	case schema.KindTime:
		return strconv.AppendInt(nil, v.(time.Time).Unix(), 10), nil
	case schema.KindOpaque:
		return []byte(base64.StdEncoding.EncodeToString(v.([]byte))), nil
	}
	return nil, fmt.Errorf("%w: %s resource %q", ErrUnsupportedFormat, res.Type, res.Name)
}
