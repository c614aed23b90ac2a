package wal

import (
	"errors"
	"fmt"
	"os"
	"path"
	"slices"
	"sync"

	"github.com/julianstephens/go-utils/helpers"

	"github.com/julianstephens/heaptxn/internal/heaptxn/wal/record"
	"github.com/julianstephens/heaptxn/internal/logger"
)

type LogOpts struct {
	// 0 means "never rotate" (single segment)
	SegmentMaxBytes int64
}

// Log is a directory of numbered segment files. Only the newest segment is appended to;
// older segments are read-only.
type Log struct {
	mu sync.Mutex

	dir  string
	opts LogOpts
	lg   logger.Logger

	// segments is always kept sorted for binary search
	segments    []uint64 // sorted ascending; includes activeSegId
	activeSegId uint64
	active      *SegmentAppender

	closed bool
}

func listSegments(dir string) ([]uint64, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var segs []uint64
	for _, fi := range files {
		if fi.IsDir() {
			continue
		}
		var segId uint64
		n, err := fmt.Sscanf(fi.Name(), "segment-%020d.wal", &segId)
		if err != nil || n != 1 {
			continue
		}
		segs = append(segs, segId)
	}
	return segs, nil
}

// OpenLog opens or creates the log directory, discovers existing segments and prepares
// the newest one for append. A torn record at the end of the newest segment, left by a
// crash mid-append, is cut off first.
func OpenLog(dir string, opts LogOpts, lg logger.Logger) (*Log, error) {
	if lg == nil {
		lg = logger.NoOpLogger{}
	}
	l := &Log{dir: dir, opts: opts, lg: lg}

	if err := helpers.Ensure(dir, true); err != nil {
		return nil, wrapLogErr("ensure_wal_dir", ErrInvalidWALDir, dir, 0, err)
	}

	segs, err := listSegments(dir)
	if err != nil {
		return nil, wrapLogErr("list_segments", ErrSegmentList, dir, 0, err)
	}
	l.segments = segs
	slices.Sort(l.segments)

	var activeFile *os.File
	if len(l.segments) == 0 {
		activeFile, l.activeSegId, err = l.createNextSegment(0)
		if err != nil {
			return nil, wrapLogErr("create_segment", ErrSegmentCreate, dir, 0, err)
		}
		l.segments = append(l.segments, l.activeSegId)
	} else {
		l.activeSegId = l.segments[len(l.segments)-1]
		segPath := l.segmentPath(l.activeSegId, true)
		if err := l.trimTornTail(segPath); err != nil {
			return nil, wrapLogErr("trim_segment", ErrCorruptLog, dir, l.activeSegId, err)
		}
		activeFile, err = os.OpenFile(segPath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600) //nolint:gosec
		if err != nil {
			return nil, wrapLogErr("open_segment", ErrSegmentOpen, dir, l.activeSegId, err)
		}
	}

	l.active, err = NewSegmentAppender(activeFile)
	if err != nil {
		_ = activeFile.Close()
		return nil, wrapLogErr("create_segment_appender", ErrSegmentOpen, dir, l.activeSegId, err)
	}

	l.lg.Debug("log opened", "dir", dir, "segments", len(l.segments), "active_seg", l.activeSegId)
	return l, nil
}

// trimTornTail truncates the segment at the first torn record. Checksum or type
// corruption is not a torn tail and is reported instead.
func (l *Log) trimTornTail(segPath string) error {
	f, err := os.Open(segPath) //nolint:gosec
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	fr := record.NewFrameReader(NewFileSegmentReader(l.activeSegId, f).Reader())
	for {
		_, err := fr.Next()
		if err == nil {
			continue
		}
		if record.IsCleanEOF(err) {
			return nil
		}
		pe, ok := record.AsParseError(err)
		if !ok || !record.IsTornTail(err) {
			return err
		}
		l.lg.Warn("truncating torn log tail", "segment", segPath, "at", pe.SafeTruncateOffset)
		return os.Truncate(segPath, pe.SafeTruncateOffset)
	}
}

func (l *Log) Dir() string {
	return l.dir
}

func (l *Log) SegmentIDs() []uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.segments)
}

func (l *Log) SegmentPath(segId uint64) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.segmentPath(segId, true)
}

func (l *Log) OpenSegment(segId uint64) (SegmentReader, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	segPath := l.segmentPath(segId, true)
	if segPath == "" {
		return nil, wrapLogErr("get_segment_path", ErrSegmentNotFound, l.dir, segId, nil)
	}

	file, err := os.Open(segPath) //nolint:gosec
	if err != nil {
		return nil, wrapLogErr("open_segment", ErrSegmentOpen, l.dir, segId, err)
	}
	return NewFileSegmentReader(segId, file), nil
}

// Append appends a single framed record to the active segment, rotating first if the
// record would push the segment past SegmentMaxBytes.
func (l *Log) Append(rt record.RecordType, payload []byte) (segID uint64, offset int64, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return 0, 0, logClosed(l.dir)
	}

	if err := l.maybeRotateLocked(len(payload)); err != nil {
		return 0, 0, wrapLogErr("rotate_segment", ErrSegmentRotate, l.dir, l.activeSegId, err)
	}

	offset, err = l.active.Append(rt, payload)
	if err != nil {
		sentinel := ErrAppendFailed
		if errors.Is(err, ErrInvalidRecord) {
			sentinel = ErrInvalidRecord
		}
		return 0, 0, wrapLogErr("append_record", sentinel, l.dir, l.activeSegId, err)
	}
	return l.activeSegId, offset, nil
}

// Flush flushes buffered writes of the active segment.
func (l *Log) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return logClosed(l.dir)
	}
	if err := l.active.Flush(); err != nil {
		return wrapLogErr("flush_segment", ErrSegmentFlush, l.dir, l.activeSegId, err)
	}
	return nil
}

// FSync flushes then fsyncs the active segment.
func (l *Log) FSync() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return logClosed(l.dir)
	}
	if err := l.active.FSync(); err != nil {
		return wrapLogErr("fsync_segment", ErrSegmentSync, l.dir, l.activeSegId, err)
	}
	return nil
}

// Close closes the active segment and marks the log closed.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	if err := l.active.Close(); err != nil {
		return wrapLogErr("close_segment", ErrSegmentClose, l.dir, l.activeSegId, err)
	}
	return nil
}

// segmentPath returns the path for the given segment ID.
// If shouldExist is true, it returns an empty string if the segment ID is not found.
func (l *Log) segmentPath(segId uint64, shouldExist bool) string {
	if _, exists := slices.BinarySearch(l.segments, segId); shouldExist && !exists {
		return ""
	}
	return path.Join(l.dir, fmt.Sprintf("segment-%020d.wal", segId))
}

func (l *Log) createNextSegment(segId uint64) (*os.File, uint64, error) {
	p := l.segmentPath(segId+1, false)
	file, err := os.OpenFile(p, os.O_CREATE|os.O_RDWR|os.O_EXCL, 0o600) //nolint:gosec
	if err != nil {
		return nil, 0, err
	}
	return file, segId + 1, nil
}

func (l *Log) maybeRotateLocked(payloadLen int) error {
	if l.opts.SegmentMaxBytes <= 0 {
		return nil
	}
	offset := l.active.CurrentOffset()
	// An empty segment always takes the record, however large.
	if offset == 0 || offset+record.EncodedRecordSize(payloadLen) <= l.opts.SegmentMaxBytes {
		return nil
	}

	// The outgoing segment is made durable before the new one takes appends.
	if err := l.active.FSync(); err != nil {
		return err
	}
	if err := l.active.Close(); err != nil {
		return err
	}
	newFile, newSegId, err := l.createNextSegment(l.activeSegId)
	if err != nil {
		return err
	}
	newAppender, err := NewSegmentAppender(newFile)
	if err != nil {
		return err
	}

	l.segments = append(l.segments, newSegId)
	l.activeSegId = newSegId
	l.active = newAppender
	l.lg.Info("log segment rotated", "segment", newSegId)
	return nil
}
