package record

import (
	"encoding/binary"
	"io"
)

// FrameReader reads consecutive framed records from a stream, tracking the byte offset
// of each so a caller can truncate at the first bad one.
type FrameReader struct {
	r      io.Reader
	offset int64
}

func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: r}
}

// NewFrameReaderAt is NewFrameReader for a stream already positioned at offset.
func NewFrameReaderAt(r io.Reader, offset int64) *FrameReader {
	return &FrameReader{r: r, offset: offset}
}

// Next returns the next record. A clean end of stream is io.EOF; anything else that
// stops parsing is a *ParseError.
func (fr *FrameReader) Next() (FramedRecord, error) {
	recordStart := fr.offset

	hdr := make([]byte, RecordHeaderSize)
	n, err := io.ReadFull(fr.r, hdr)
	if err != nil {
		fr.offset += int64(n)
		if err == io.EOF && n == 0 {
			return FramedRecord{}, io.EOF
		}
		return FramedRecord{}, fr.ioErr(err, &ParseError{
			Kind:               KindTruncated,
			Offset:             recordStart,
			SafeTruncateOffset: recordStart,
			Want:               RecordHeaderSize,
			Have:               n,
			Err:                io.ErrUnexpectedEOF,
		})
	}

	recordLen := binary.LittleEndian.Uint32(hdr)
	if err = ValidateRecordLength(recordLen); err != nil {
		if pe, ok := AsParseError(err); ok {
			pe.Offset = recordStart
			pe.SafeTruncateOffset = recordStart
			return FramedRecord{}, pe
		}
		return FramedRecord{}, err
	}

	body := make([]byte, recordLen+RecordCRCSize)
	n, err = io.ReadFull(fr.r, body)
	if err != nil {
		fr.offset += int64(RecordHeaderSize + n)
		return FramedRecord{}, fr.ioErr(err, &ParseError{
			Kind:               KindTruncated,
			Offset:             recordStart,
			SafeTruncateOffset: recordStart,
			DeclaredLen:        recordLen,
			Want:               int(recordLen) + RecordCRCSize,
			Have:               n,
			Err:                io.ErrUnexpectedEOF,
		})
	}
	fr.offset += int64(RecordHeaderSize + len(body))

	return parseBody(recordStart, recordLen, body)
}

// ioErr keeps genuine read failures distinct from a torn tail.
func (fr *FrameReader) ioErr(err error, truncated *ParseError) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return truncated
	}
	truncated.Kind = KindIO
	truncated.Err = err
	return truncated
}

// Offset is the byte offset just past the last record read.
func (fr *FrameReader) Offset() int64 {
	return fr.offset
}
