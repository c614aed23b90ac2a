package wal

import (
	"io"

	"github.com/julianstephens/heaptxn/internal/heaptxn/wal/record"
)

// FirstSegmentID names the segment a fresh log starts in.
const FirstSegmentID uint64 = 1

// LogAppender is the framed-record sink under LogManager. Append returns the
// segment offset at which the record's frame header begins.
type LogAppender interface {
	Append(recordType record.RecordType, payload []byte) (offset int64, err error)
	Flush() error
	FSync() error
	Close() error
}

// SegmentProvider lists and opens log segments for analysis and dumping.
// SegmentIDs is ascending.
type SegmentProvider interface {
	SegmentIDs() []uint64
	OpenSegment(segID uint64) (SegmentReader, error)
}

// SegmentReader streams one segment from an absolute offset set by SeekTo.
type SegmentReader interface {
	SegID() uint64
	SeekTo(offset int64) error
	Reader() io.Reader
	Close() error
}
