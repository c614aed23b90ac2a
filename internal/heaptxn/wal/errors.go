package wal

import (
	"errors"
	"fmt"

	"github.com/julianstephens/heaptxn/internal/heaptxn/wal/record"
)

var (
	// Programmer / caller error
	ErrInvalidRecord = errors.New("wal: invalid record")

	// I/O layer failures
	ErrAppendFailed = errors.New("wal: append failed")
	ErrShortWrite   = errors.New("wal: short write")
	ErrFlushFailed  = errors.New("wal: flush failed")
	ErrSyncFailed   = errors.New("wal: fsync failed")
	ErrCloseFailed  = errors.New("wal: close failed")

	// Construction / lifecycle errors
	ErrNilSegmentFile = errors.New("wal: nil segment file")
	ErrClosedWriter   = errors.New("wal: segment appender closed")
)

// SegmentAppendError wraps segment-level write failures.
type SegmentAppendError struct {
	Err        error
	Cause      error // underlying error, if any
	Offset     int64 // offset where write was attempted
	RecordType record.RecordType
	Have       int // bytes written (if short write)
	Want       int // bytes expected
}

func (e *SegmentAppendError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s at=%d type=%s: %v", e.Err.Error(), e.Offset, e.RecordType, e.Cause)
	}
	return fmt.Sprintf("%s at=%d type=%s", e.Err.Error(), e.Offset, e.RecordType)
}
func (e *SegmentAppendError) Unwrap() error   { return e.Err }
func (e *SegmentAppendError) CauseErr() error { return e.Cause }

var (
	ErrWALClosed       = errors.New("wal: log closed")
	ErrSegmentNotFound = errors.New("wal: segment not found")
	ErrSegmentList     = errors.New("wal: list segments failed")
	ErrSegmentOpen     = errors.New("wal: open segment failed")
	ErrSegmentCreate   = errors.New("wal: create segment failed")
	ErrSegmentRotate   = errors.New("wal: rotate segment failed")
	ErrSegmentClose    = errors.New("wal: close segment failed")
	ErrSegmentFlush    = errors.New("wal: flush segment failed")
	ErrSegmentSync     = errors.New("wal: fsync segment failed")
	ErrInvalidWALDir   = errors.New("wal: invalid wal dir")
	ErrEncode          = errors.New("wal: encode log record failed")
	ErrDecode          = errors.New("wal: decode log record failed")
	ErrCorruptLog      = errors.New("wal: corrupt log")
)

// LogError wraps log-level failures with context.
type LogError struct {
	Err error

	Dir   string
	SegID uint64

	// Op is a short label for where the error occurred:
	// "open", "append", "flush", "fsync", "rotate", "close", "list", etc.
	Op string

	Cause error
}

func (e *LogError) Error() string {
	msg := e.Err.Error()
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.SegID != 0 {
		msg = fmt.Sprintf("%s seg=%d", msg, e.SegID)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *LogError) Unwrap() error { return e.Err }

func (e *LogError) CauseErr() error { return e.Cause }

func wrapLogErr(op string, sentinel error, dir string, segID uint64, cause error) error {
	return &LogError{
		Err:   sentinel,
		Dir:   dir,
		SegID: segID,
		Op:    op,
		Cause: cause,
	}
}

func logClosed(dir string) error {
	return &LogError{Err: ErrWALClosed, Dir: dir, Op: "log"}
}
