package record

import (
	"encoding/binary"
	"fmt"
)

func need(data []byte, at, want int, field string) error {
	have := len(data) - at
	if have >= want {
		return nil
	}
	return &CodecError{
		Kind:  CodecTruncated,
		Field: field,
		At:    at,
		Want:  want,
		Have:  have,
		Err:   ErrCodecTruncated,
	}
}

func rejectTrailing(data []byte, expectedLen int, field string) error {
	if len(data) == expectedLen {
		return nil
	}
	return &CodecError{
		Kind:  CodecCorrupt,
		Field: field,
		At:    expectedLen,
		Want:  expectedLen,
		Have:  len(data),
		Err:   fmt.Errorf("%w: trailing bytes", ErrCodecCorrupt),
	}
}

func invalid(field string, at, want, have int) error {
	return &CodecError{Kind: CodecInvalid, Field: field, At: at, Want: want, Have: have, Err: ErrCodecInvalid}
}

// EncodeTxnPayload encodes a BEGIN, COMMIT or ABORT payload.
// Format: [txn_id (8)]
func EncodeTxnPayload(txnID uint64) []byte {
	payload := make([]byte, TxnIdSize)
	binary.LittleEndian.PutUint64(payload, txnID)
	return payload
}

// DecodeTxnPayload decodes a BEGIN, COMMIT or ABORT payload.
func DecodeTxnPayload(data []byte) (*TxnPayload, error) {
	if err := need(data, 0, TxnIdSize, "txn_id"); err != nil {
		return nil, err
	}
	if err := rejectTrailing(data, TxnIdSize, "payload_length"); err != nil {
		return nil, err
	}
	return &TxnPayload{TxnID: binary.LittleEndian.Uint64(data)}, nil
}

// EncodeDataPayload encodes an INSERT, DELETE or UPDATE payload.
// Format: [txn_id (8)][table_len (2)][table][rid (8)][before_len (4)][before][after_len (4)][after]
func EncodeDataPayload(rt RecordType, p *DataPayload) ([]byte, error) {
	if err := checkImages(rt, p.Before, p.After, 0); err != nil {
		return nil, err
	}
	if len(p.Table) == 0 || len(p.Table) > MaxTableNameSize {
		return nil, invalid("table_len", 0, MaxTableNameSize, len(p.Table))
	}
	if len(p.RID) != RIDSize {
		return nil, invalid("rid", 0, RIDSize, len(p.RID))
	}

	data := make([]byte, 0, dataPayloadSize(p))
	data = binary.LittleEndian.AppendUint64(data, p.TxnID)
	data = binary.LittleEndian.AppendUint16(data, uint16(len(p.Table))) //nolint:gosec
	data = append(data, p.Table...)
	data = append(data, p.RID...)
	data = binary.LittleEndian.AppendUint32(data, uint32(len(p.Before))) //nolint:gosec
	data = append(data, p.Before...)
	data = binary.LittleEndian.AppendUint32(data, uint32(len(p.After))) //nolint:gosec
	data = append(data, p.After...)
	return data, nil
}

func dataPayloadSize(p *DataPayload) int {
	return TxnIdSize + TableLenSize + len(p.Table) + RIDSize + ImageLenSize + len(p.Before) + ImageLenSize + len(p.After)
}

// DecodeDataPayload decodes an INSERT, DELETE or UPDATE payload. The returned slices
// alias data.
func DecodeDataPayload(rt RecordType, data []byte) (*DataPayload, error) {
	off := 0
	if err := need(data, off, TxnIdSize, "txn_id"); err != nil {
		return nil, err
	}
	txnID := binary.LittleEndian.Uint64(data[off:])
	off += TxnIdSize

	if err := need(data, off, TableLenSize, "table_len"); err != nil {
		return nil, err
	}
	tableLen := int(binary.LittleEndian.Uint16(data[off:]))
	off += TableLenSize
	if tableLen == 0 || tableLen > MaxTableNameSize {
		return nil, invalid("table_len", off-TableLenSize, MaxTableNameSize, tableLen)
	}
	if err := need(data, off, tableLen, "table"); err != nil {
		return nil, err
	}
	table := string(data[off : off+tableLen])
	off += tableLen

	if err := need(data, off, RIDSize, "rid"); err != nil {
		return nil, err
	}
	rid := data[off : off+RIDSize]
	off += RIDSize

	before, off, err := readImage(data, off, "before")
	if err != nil {
		return nil, err
	}
	after, off, err := readImage(data, off, "after")
	if err != nil {
		return nil, err
	}
	if err := rejectTrailing(data, off, "payload_length"); err != nil {
		return nil, err
	}
	if err := checkImages(rt, before, after, off); err != nil {
		return nil, err
	}

	return &DataPayload{TxnID: txnID, Table: table, RID: rid, Before: before, After: after}, nil
}

func readImage(data []byte, off int, field string) ([]byte, int, error) {
	if err := need(data, off, ImageLenSize, field+"_len"); err != nil {
		return nil, off, err
	}
	n := binary.LittleEndian.Uint32(data[off:])
	off += ImageLenSize
	if n > MaxImageSize {
		return nil, off, invalid(field+"_len", off-ImageLenSize, MaxImageSize, int(n))
	}
	if err := need(data, off, int(n), field); err != nil {
		return nil, off, err
	}
	if n == 0 {
		return nil, off, nil
	}
	return data[off : off+int(n)], off + int(n), nil
}

// checkImages enforces which images each data record type carries.
func checkImages(rt RecordType, before, after []byte, at int) error {
	switch rt {
	case RecordTypeInsert:
		if len(before) != 0 {
			return invalid("before", at, 0, len(before))
		}
	case RecordTypeDelete:
		if len(after) != 0 {
			return invalid("after", at, 0, len(after))
		}
	case RecordTypeUpdate:
	default:
		return &CodecError{Kind: CodecInvalid, Field: "type", At: at, Err: ErrCodecInvalid}
	}
	if len(before) > MaxImageSize {
		return invalid("before_len", at, MaxImageSize, len(before))
	}
	if len(after) > MaxImageSize {
		return invalid("after_len", at, MaxImageSize, len(after))
	}
	return nil
}
