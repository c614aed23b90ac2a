package wal

import (
	"bufio"
	"io"
	"os"
	"sync"

	"github.com/julianstephens/heaptxn/internal/heaptxn/wal/record"
)

const (
	segmentWriterBufferSize = 64 << 10 // 64KiB
)

// SegmentAppender appends framed records to one segment file through a write buffer.
// Append never flushes; Flush pushes the buffer to the OS and FSync makes it durable.
type SegmentAppender struct {
	mu         sync.Mutex
	file       *os.File
	writer     *bufio.Writer
	currOffset int64
	closed     bool
}

// NewSegmentAppender positions a new appender at the end of file.
func NewSegmentAppender(file *os.File) (*SegmentAppender, error) {
	if file == nil {
		return nil, ErrNilSegmentFile
	}

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return nil, err
	}

	return &SegmentAppender{
		file:       file,
		writer:     bufio.NewWriterSize(file, segmentWriterBufferSize),
		currOffset: info.Size(),
	}, nil
}

var _ LogAppender = (*SegmentAppender)(nil)

// Append validates and frames payload and buffers it. It returns the offset the record
// starts at.
func (sa *SegmentAppender) Append(rt record.RecordType, payload []byte) (int64, error) {
	sa.mu.Lock()
	defer sa.mu.Unlock()

	if sa.closed {
		return 0, &SegmentAppendError{Err: ErrClosedWriter, Offset: sa.currOffset, RecordType: rt}
	}
	if err := record.ValidateRecordFrame(rt, payload); err != nil {
		return 0, &SegmentAppendError{Err: ErrInvalidRecord, Cause: err, Offset: sa.currOffset, RecordType: rt}
	}

	data, err := record.EncodeFrame(rt, payload)
	if err != nil {
		return 0, &SegmentAppendError{Err: ErrInvalidRecord, Cause: err, Offset: sa.currOffset, RecordType: rt}
	}

	offset := sa.currOffset
	n, err := sa.writer.Write(data)
	if err != nil {
		return 0, &SegmentAppendError{Err: ErrAppendFailed, Cause: err, Offset: offset, RecordType: rt, Have: n, Want: len(data)}
	}
	if n != len(data) {
		return 0, &SegmentAppendError{Err: ErrShortWrite, Offset: offset, RecordType: rt, Have: n, Want: len(data)}
	}
	sa.currOffset += int64(n)
	return offset, nil
}

func (sa *SegmentAppender) Flush() error {
	sa.mu.Lock()
	defer sa.mu.Unlock()
	if sa.closed {
		return &SegmentAppendError{Err: ErrClosedWriter, Offset: sa.currOffset}
	}
	if err := sa.writer.Flush(); err != nil {
		return &SegmentAppendError{Err: ErrFlushFailed, Cause: err, Offset: sa.currOffset}
	}
	return nil
}

func (sa *SegmentAppender) FSync() error {
	sa.mu.Lock()
	defer sa.mu.Unlock()
	if sa.closed {
		return &SegmentAppendError{Err: ErrClosedWriter, Offset: sa.currOffset}
	}
	if err := sa.writer.Flush(); err != nil {
		return &SegmentAppendError{Err: ErrFlushFailed, Cause: err, Offset: sa.currOffset}
	}
	if err := sa.file.Sync(); err != nil {
		return &SegmentAppendError{Err: ErrSyncFailed, Cause: err, Offset: sa.currOffset}
	}
	return nil
}

// Close flushes (without fsync) and closes the file. Closing twice is a no-op.
func (sa *SegmentAppender) Close() error {
	sa.mu.Lock()
	defer sa.mu.Unlock()
	if sa.closed {
		return nil
	}
	sa.closed = true

	flushErr := sa.writer.Flush()
	closeErr := sa.file.Close()
	if flushErr != nil {
		return &SegmentAppendError{Err: ErrFlushFailed, Cause: flushErr, Offset: sa.currOffset}
	}
	if closeErr != nil {
		return &SegmentAppendError{Err: ErrCloseFailed, Cause: closeErr, Offset: sa.currOffset}
	}
	return nil
}

// CurrentOffset is the offset the next record will start at.
func (sa *SegmentAppender) CurrentOffset() int64 {
	sa.mu.Lock()
	defer sa.mu.Unlock()
	return sa.currOffset
}
