package record

// ValidateRecordFrame checks that payload is well-formed for rt before it is framed.
func ValidateRecordFrame(rt RecordType, payload []byte) error {
	if err := ValidateRecordLength(uint32(len(payload)) + RecordTypeHeaderSize); err != nil { //nolint:gosec
		return err
	}
	switch {
	case rt == RecordTypeBegin || rt == RecordTypeCommit || rt == RecordTypeAbort:
		if len(payload) != TxnIdSize {
			return &ParseError{
				Kind:       KindInvalidLength,
				RecordType: rt,
				Want:       TxnIdSize,
				Have:       len(payload),
				Err:        ErrInvalidLength,
			}
		}
		return nil
	case rt.IsData():
		_, err := DecodeDataPayload(rt, payload)
		return err
	default:
		return &ParseError{
			Kind:       KindInvalidType,
			RecordType: rt,
			RawType:    byte(rt),
			Err:        ErrInvalidType,
		}
	}
}
