package storage

import (
	"encoding/binary"
	"fmt"
)

// RIDSize is the length of an encoded RecordId.
const RIDSize = 8

// RecordId locates one record inside a table's record store.
// A deleted record's id is never handed back to a re-inserted image.
type RecordId struct {
	Page uint32
	Slot uint16
}

func (r RecordId) String() string {
	return fmt.Sprintf("%d:%d", r.Page, r.Slot)
}

// Encode returns the big-endian encoding of r, so encoded ids sort in page/slot order.
// Format: [page (4)][slot (2)][reserved (2)]
func (r RecordId) Encode() []byte {
	buf := make([]byte, RIDSize)
	binary.BigEndian.PutUint32(buf[0:4], r.Page)
	binary.BigEndian.PutUint16(buf[4:6], r.Slot)
	return buf
}

// DecodeRecordId parses the output of RecordId.Encode.
func DecodeRecordId(data []byte) (RecordId, error) {
	if len(data) != RIDSize {
		return RecordId{}, &StoreError{
			Err:   ErrInvalidRecordId,
			Op:    "decode_rid",
			Cause: fmt.Errorf("want %d bytes, have %d", RIDSize, len(data)),
		}
	}
	return RecordId{
		Page: binary.BigEndian.Uint32(data[0:4]),
		Slot: binary.BigEndian.Uint16(data[4:6]),
	}, nil
}

// ParseRecordId parses the "page:slot" form produced by String.
func ParseRecordId(s string) (RecordId, error) {
	var page uint32
	var slot uint16
	n, err := fmt.Sscanf(s, "%d:%d", &page, &slot)
	if err != nil || n != 2 {
		return RecordId{}, &StoreError{Err: ErrInvalidRecordId, Op: "parse_rid", Cause: err}
	}
	return RecordId{Page: page, Slot: slot}, nil
}

// Compare orders ids by page, then slot.
func (r RecordId) Compare(o RecordId) int {
	switch {
	case r.Page < o.Page:
		return -1
	case r.Page > o.Page:
		return 1
	case r.Slot < o.Slot:
		return -1
	case r.Slot > o.Slot:
		return 1
	}
	return 0
}
