package record

import (
	"errors"
	"fmt"
	"io"
)

var (
	ErrTruncated        = errors.New("record: truncated")
	ErrCorrupt          = errors.New("record: corrupt")
	ErrTooLarge         = errors.New("record: too large")
	ErrInvalidType      = errors.New("record: invalid type")
	ErrInvalidLength    = errors.New("record: invalid length (must be > 0)")
	ErrChecksumMismatch = errors.New("record: checksum mismatch")
	ErrIO               = errors.New("record: read failed")
)

type ParseErrorKind uint8

const (
	KindTruncated ParseErrorKind = iota
	KindInvalidLength
	KindTooLarge
	KindChecksumMismatch
	KindInvalidType
	KindCorrupt
	KindIO
)

var parseKinds = [...]struct {
	name     string
	sentinel error
}{
	KindTruncated:        {"truncated", ErrTruncated},
	KindInvalidLength:    {"invalid_length", ErrInvalidLength},
	KindTooLarge:         {"too_large", ErrTooLarge},
	KindChecksumMismatch: {"checksum_mismatch", ErrChecksumMismatch},
	KindInvalidType:      {"invalid_type", ErrInvalidType},
	KindCorrupt:          {"corrupt", ErrCorrupt},
	KindIO:               {"io_error", ErrIO},
}

func (k ParseErrorKind) String() string {
	if int(k) < len(parseKinds) {
		return parseKinds[k].name
	}
	return "unknown"
}

type ParseError struct {
	Kind ParseErrorKind
	// Offset is the starting byte offset of the record (at the length prefix)
	Offset int64
	// SafeTruncateOffset is where the log can be cut to drop the invalid tail. For
	// record-level failures it equals Offset.
	SafeTruncateOffset int64
	DeclaredLen        uint32
	RawType            byte
	RecordType         RecordType
	Want               int
	Have               int
	Err                error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("record: %s at offset %d (len=%d type=0x%02x want=%d have=%d, safe truncate at %d): %v",
		e.Kind, e.Offset, e.DeclaredLen, e.RawType, e.Want, e.Have, e.SafeTruncateOffset, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for e.Kind, so callers can test with errors.Is.
func (e *ParseError) Is(target error) bool {
	return int(e.Kind) < len(parseKinds) && parseKinds[e.Kind].sentinel == target
}

func AsParseError(err error) (*ParseError, bool) {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

func IsCleanEOF(err error) bool {
	return errors.Is(err, io.EOF)
}

// IsTornTail reports whether err means the log simply ends mid-record, as it does
// after a crash during append.
func IsTornTail(err error) bool {
	return errors.Is(err, ErrTruncated)
}

func IsCorruption(err error) bool {
	return errors.Is(err, ErrCorrupt) || errors.Is(err, ErrInvalidLength) || errors.Is(err, ErrTooLarge) ||
		errors.Is(err, ErrInvalidType) || errors.Is(err, ErrChecksumMismatch)
}

var (
	ErrCodecTruncated = errors.New("record: codec truncated payload")
	ErrCodecCorrupt   = errors.New("record: codec corrupt payload")
	ErrCodecInvalid   = errors.New("record: codec invalid payload")
)

type CodecErrorKind uint8

const (
	CodecTruncated CodecErrorKind = iota
	CodecCorrupt
	CodecInvalid
)

var codecKinds = [...]struct {
	name     string
	sentinel error
}{
	CodecTruncated: {"truncated", ErrCodecTruncated},
	CodecCorrupt:   {"corrupt", ErrCodecCorrupt},
	CodecInvalid:   {"invalid", ErrCodecInvalid},
}

func (k CodecErrorKind) String() string {
	if int(k) < len(codecKinds) {
		return codecKinds[k].name
	}
	return "unknown"
}

type CodecError struct {
	Kind  CodecErrorKind
	Field string // "txn_id", "table_len", "before", ...
	At    int    // byte offset within payload where failure occurred
	Want  int
	Have  int
	Err   error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("record: codec %s field=%s at=%d want=%d have=%d: %v",
		e.Kind.String(), e.Field, e.At, e.Want, e.Have, e.Err,
	)
}

func (e *CodecError) Unwrap() error { return e.Err }

func (e *CodecError) Is(target error) bool {
	return int(e.Kind) < len(codecKinds) && codecKinds[e.Kind].sentinel == target
}
