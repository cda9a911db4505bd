package tlv

import (
	"encoding/binary"
	"fmt"
)

// RecordType is the identifier type held in bits 7-6 of a record header.
type RecordType uint8

// Record types.
const (
	ObjectInstance   RecordType = 0 // nested resources of one instance
	ResourceInstance RecordType = 1 // one element of a multiple resource
	MultipleResource RecordType = 2 // wraps ResourceInstance records
	ResourceValue    RecordType = 3 // single-instance resource
)

// Header bit layout.
const (
	typeShift    = 6
	wideIDBit    = 0x20
	lenTypeShift = 3
	lenTypeMask  = 0x03
	inlineMask   = 0x07

	maxInlineLength = 7
	maxLength       = 1<<24 - 1
)

// Record is one decoded TLV record. Value aliases the parsed buffer.
type Record struct {
	Type  RecordType
	ID    uint16
	Value []byte
}

// appendRecord writes a header followed by value.
func appendRecord(dst []byte, typ RecordType, id uint16, value []byte) ([]byte, error) {
	n := len(value)
	if n > maxLength {
		return nil, fmt.Errorf("%w: %d bytes for id %d", ErrValueTooLarge, n, id)
	}

	h := byte(typ) << typeShift
	if id > 0xFF {
		h |= wideIDBit
	}

	lenBytes := 0
	switch {
	case n <= maxInlineLength:
		h |= byte(n)
	case n <= 0xFF:
		lenBytes = 1
	case n <= 0xFFFF:
		lenBytes = 2
	default:
		lenBytes = 3
	}
	h |= byte(lenBytes) << lenTypeShift

	dst = append(dst, h)
	if id > 0xFF {
		dst = binary.BigEndian.AppendUint16(dst, id)
	} else {
		dst = append(dst, byte(id))
	}
	for i := lenBytes - 1; i >= 0; i-- {
		dst = append(dst, byte(n>>(8*i)))
	}
	return append(dst, value...), nil
}

// readRecord decodes the record at the start of data and returns it with the
// number of bytes consumed.
func readRecord(data []byte) (Record, int, error) {
	if len(data) < 2 {
		return Record{}, 0, fmt.Errorf("%w: truncated header", ErrMalformedTLV)
	}

	h := data[0]
	pos := 1
	rec := Record{Type: RecordType(h >> typeShift)}

	if h&wideIDBit != 0 {
		if len(data) < pos+2 {
			return Record{}, 0, fmt.Errorf("%w: truncated identifier", ErrMalformedTLV)
		}
		rec.ID = binary.BigEndian.Uint16(data[pos:])
		pos += 2
	} else {
		rec.ID = uint16(data[pos])
		pos++
	}

	n := int(h & inlineMask)
	if lenBytes := int(h>>lenTypeShift) & lenTypeMask; lenBytes > 0 {
		if n != 0 {
			return Record{}, 0, fmt.Errorf("%w: id %d has both length field and inline length", ErrMalformedTLV, rec.ID)
		}
		if len(data) < pos+lenBytes {
			return Record{}, 0, fmt.Errorf("%w: truncated length field for id %d", ErrMalformedTLV, rec.ID)
		}
		for i := 0; i < lenBytes; i++ {
			n = n<<8 | int(data[pos+i])
		}
		pos += lenBytes
	}

	if len(data)-pos < n {
		return Record{}, 0, fmt.Errorf("%w: id %d declares %d bytes, %d remain", ErrMalformedTLV, rec.ID, n, len(data)-pos)
	}
	rec.Value = data[pos : pos+n]
	return rec, pos + n, nil
}

// readRecords decodes every record in data.
func readRecords(data []byte) ([]Record, error) {
	var recs []Record
	for len(data) > 0 {
		rec, n, err := readRecord(data)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
		data = data[n:]
	}
	return recs, nil
}
