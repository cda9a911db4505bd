// Package content selects LWM2M payload codecs by content format.
//
// It maps CoAP content-format numbers and media types to codecs, parses
// request paths (/object[/instance[/resource]]), picks a media type for an
// outgoing value, and provides Processor, which resolves the object schema
// from an injected catalog and decodes or encodes payloads for a path.
package content

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrUnsupportedFormat is returned when no codec handles a format, or a
	// format cannot be used at the requested path.
	ErrUnsupportedFormat = errors.New("content: unsupported format")

	// ErrUnknownObject is returned when the catalog has no schema for the
	// path's object ID.
	ErrUnknownObject = errors.New("content: unknown object")

	// ErrUnknownResource is returned when a resource path names an ID the
	// object schema does not declare.
	ErrUnknownResource = errors.New("content: unknown resource")

	// ErrInvalidPath is returned by ParsePath.
	ErrInvalidPath = errors.New("content: invalid path")
)

// Format is a CoAP content-format number.
type Format uint16

// Content formats.
const (
	Text       Format = 0
	LinkFormat Format = 40
	Opaque     Format = 42
	SenMLJSON  Format = 110
	SenMLCBOR  Format = 112
	TLV        Format = 11542
	JSON       Format = 11543
)

var mediaTypes = map[Format]string{
	Text:       "text/plain",
	LinkFormat: "application/link-format",
	Opaque:     "application/octet-stream",
	SenMLJSON:  "application/senml+json",
	SenMLCBOR:  "application/senml+cbor",
	TLV:        "application/vnd.oma.lwm2m+tlv",
	JSON:       "application/vnd.oma.lwm2m+json",
}

// Formats lists every known format in ascending order.
func Formats() []Format {
	return []Format{Text, LinkFormat, Opaque, SenMLJSON, SenMLCBOR, TLV, JSON}
}

// MediaType returns the media type of f, or "" if f is unknown.
func (f Format) MediaType() string {
	return mediaTypes[f]
}

// String returns the media type, or the number for unknown formats.
func (f Format) String() string {
	if mt, ok := mediaTypes[f]; ok {
		return mt
	}
	return strconv.Itoa(int(f))
}

// ParseFormat accepts a media type (parameters after ";" are ignored), a
// content-format number, or one of the short names "tlv", "json", "senml",
// "cbor", "text" and "opaque".
func ParseFormat(s string) (Format, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	s = strings.ToLower(s)

	if n, err := strconv.ParseUint(s, 10, 16); err == nil {
		f := Format(n)
		if _, ok := mediaTypes[f]; ok {
			return f, nil
		}
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedFormat, n)
	}

	for f, mt := range mediaTypes {
		if s == mt {
			return f, nil
		}
	}

	switch s {
	case "tlv":
		return TLV, nil
	case "json":
		return JSON, nil
	case "senml", "senml+json":
		return SenMLJSON, nil
	case "cbor", "senml+cbor":
		return SenMLCBOR, nil
	case "text":
		return Text, nil
	case "opaque":
		return Opaque, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}
