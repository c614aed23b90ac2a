package record

import (
	"encoding/binary"
	"io"

	"github.com/julianstephens/go-utils/checksum"
)

const (
	RecordHeaderSize     = 4                // Length of the record length field
	RecordTypeHeaderSize = 1                // Length of the record type field
	RecordCRCSize        = 4                // Length of the CRC32 field
	MaxRecordSize        = 16 * 1024 * 1024 // 16 MB
	MaxTableNameSize     = 255
	MaxImageSize         = 4 * 1024 * 1024 // 4 MB
	TxnIdSize            = 8               // Size of Transaction ID field (uint64)
	RIDSize              = 8
	TableLenSize         = 2
	ImageLenSize         = 4
)

// EncodeFrame frames payload as a record of type rt.
// Format: [len (4)][type (1)][payload][crc32c (4)], len covering type + payload.
func EncodeFrame(rt RecordType, payload []byte) ([]byte, error) {
	recordLen := uint32(len(payload)) + RecordTypeHeaderSize //nolint:gosec
	if err := ValidateRecordLength(recordLen); err != nil {
		return nil, err
	}

	data := make([]byte, RecordHeaderSize+recordLen+RecordCRCSize)
	binary.LittleEndian.PutUint32(data[:RecordHeaderSize], recordLen)
	data[RecordHeaderSize] = byte(rt)
	copy(data[RecordHeaderSize+RecordTypeHeaderSize:], payload)

	crc := ComputeChecksum(data[RecordHeaderSize : RecordHeaderSize+recordLen])
	binary.LittleEndian.PutUint32(data[RecordHeaderSize+recordLen:], crc)
	return data, nil
}

// DecodeFrame decodes exactly one framed record from data.
func DecodeFrame(data []byte) (FramedRecord, error) {
	if len(data) < RecordHeaderSize+RecordCRCSize {
		return FramedRecord{}, &ParseError{
			Kind: KindTruncated,
			Want: RecordHeaderSize + RecordCRCSize,
			Have: len(data),
			Err:  io.ErrUnexpectedEOF,
		}
	}

	recordLen := binary.LittleEndian.Uint32(data[:RecordHeaderSize])
	if err := ValidateRecordLength(recordLen); err != nil {
		return FramedRecord{}, err
	}

	wantTotal := RecordHeaderSize + int(recordLen) + RecordCRCSize
	switch {
	case len(data) < wantTotal:
		return FramedRecord{}, &ParseError{
			Kind:        KindTruncated,
			DeclaredLen: recordLen,
			Want:        wantTotal,
			Have:        len(data),
			Err:         io.ErrUnexpectedEOF,
		}
	case len(data) > wantTotal:
		return FramedRecord{}, &ParseError{
			Kind:        KindCorrupt,
			DeclaredLen: recordLen,
			Want:        wantTotal,
			Have:        len(data),
			Err:         ErrCorrupt,
		}
	}

	return parseBody(0, recordLen, data[RecordHeaderSize:])
}

// parseBody checks type and checksum of body ([type][payload][crc]) for a record
// starting at offset.
func parseBody(offset int64, recordLen uint32, body []byte) (FramedRecord, error) {
	rawType := body[0]
	rt := RecordType(rawType)
	if !rt.Valid() {
		return FramedRecord{}, &ParseError{
			Kind:               KindInvalidType,
			Offset:             offset,
			SafeTruncateOffset: offset,
			DeclaredLen:        recordLen,
			RawType:            rawType,
			RecordType:         rt,
			Err:                ErrInvalidType,
		}
	}

	rec := FramedRecord{
		Offset: offset,
		Size:   int64(RecordHeaderSize + recordLen + RecordCRCSize),
		Record: Record{
			Len:     recordLen,
			Type:    rt,
			Payload: body[RecordTypeHeaderSize:recordLen],
			CRC:     binary.LittleEndian.Uint32(body[recordLen : recordLen+RecordCRCSize]),
		},
	}

	if !VerifyChecksum(&rec.Record) {
		return FramedRecord{}, &ParseError{
			Kind:               KindChecksumMismatch,
			Offset:             offset,
			SafeTruncateOffset: offset,
			DeclaredLen:        recordLen,
			RawType:            rawType,
			RecordType:         rt,
			Err:                ErrChecksumMismatch,
		}
	}
	return rec, nil
}

// ValidateRecordLength checks a declared type+payload length.
func ValidateRecordLength(length uint32) error {
	if length < RecordTypeHeaderSize {
		return &ParseError{
			Kind:        KindInvalidLength,
			DeclaredLen: length,
			Err:         ErrInvalidLength,
		}
	}
	if length > MaxRecordSize {
		return &ParseError{
			Kind:        KindTooLarge,
			DeclaredLen: length,
			Want:        MaxRecordSize,
			Have:        int(length),
			Err:         ErrTooLarge,
		}
	}
	return nil
}

// EncodedRecordSize is the on-disk size of a record with a payloadLen payload.
func EncodedRecordSize(payloadLen int) int64 {
	return RecordHeaderSize + RecordTypeHeaderSize + int64(payloadLen) + RecordCRCSize
}

// ComputeChecksum computes the CRC32-C (Castagnoli) checksum of data.
func ComputeChecksum(data []byte) uint32 {
	return checksum.CRC32C(data)
}

// VerifyChecksum checks rec.CRC against its type and payload.
func VerifyChecksum(rec *Record) bool {
	if rec == nil {
		return false
	}
	data := make([]byte, RecordTypeHeaderSize+len(rec.Payload))
	data[0] = byte(rec.Type)
	copy(data[RecordTypeHeaderSize:], rec.Payload)
	return checksum.VerifyCRC32C(data, rec.CRC)
}
