package wal_test

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	tst "github.com/julianstephens/go-utils/tests"

	"github.com/julianstephens/heaptxn/internal/heaptxn/wal"
	"github.com/julianstephens/heaptxn/internal/heaptxn/wal/record"
)

func createTempSegmentFile(t *testing.T) *os.File {
	t.Helper()
	file, err := os.Create(filepath.Join(t.TempDir(), "segment")) //nolint:gosec
	tst.RequireNoError(t, err)
	return file
}

func readFrames(t *testing.T, path string) []record.FramedRecord {
	t.Helper()
	f, err := os.Open(path) //nolint:gosec
	tst.RequireNoError(t, err)
	defer f.Close() //nolint:errcheck

	var out []record.FramedRecord
	fr := record.NewFrameReader(f)
	for {
		rec, err := fr.Next()
		if record.IsCleanEOF(err) {
			return out
		}
		tst.RequireNoError(t, err)
		out = append(out, rec)
	}
}

func TestNewSegmentAppenderNilFile(t *testing.T) {
	_, err := wal.NewSegmentAppender(nil)
	tst.AssertTrue(t, errors.Is(err, wal.ErrNilSegmentFile), "expected ErrNilSegmentFile")
}

func TestSegmentAppender_OffsetsAreExact(t *testing.T) {
	file := createTempSegmentFile(t)
	sa, err := wal.NewSegmentAppender(file)
	tst.RequireNoError(t, err)

	size := record.EncodedRecordSize(record.TxnIdSize)
	for i := range 3 {
		off, err := sa.Append(record.RecordTypeBegin, record.EncodeTxnPayload(uint64(i+1)))
		tst.RequireNoError(t, err)
		tst.AssertEqual(t, off, int64(i)*size, "record offset")
	}
	tst.AssertEqual(t, sa.CurrentOffset(), 3*size, "current offset")
	tst.RequireNoError(t, sa.Close())

	recs := readFrames(t, file.Name())
	tst.AssertEqual(t, len(recs), 3, "records on disk")
}

func TestSegmentAppender_AppendDoesNotFlush(t *testing.T) {
	file := createTempSegmentFile(t)
	sa, err := wal.NewSegmentAppender(file)
	tst.RequireNoError(t, err)

	_, err = sa.Append(record.RecordTypeCommit, record.EncodeTxnPayload(1))
	tst.RequireNoError(t, err)
	info, err := os.Stat(file.Name())
	tst.RequireNoError(t, err)
	tst.AssertEqual(t, info.Size(), int64(0), "buffered until flush")

	tst.RequireNoError(t, sa.Flush())
	info, err = os.Stat(file.Name())
	tst.RequireNoError(t, err)
	tst.AssertEqual(t, info.Size(), record.EncodedRecordSize(record.TxnIdSize), "flushed")

	tst.RequireNoError(t, sa.FSync())
	tst.RequireNoError(t, sa.Close())
}

func TestSegmentAppender_ResumesAtEnd(t *testing.T) {
	file := createTempSegmentFile(t)
	sa, err := wal.NewSegmentAppender(file)
	tst.RequireNoError(t, err)
	_, err = sa.Append(record.RecordTypeBegin, record.EncodeTxnPayload(1))
	tst.RequireNoError(t, err)
	tst.RequireNoError(t, sa.Close())

	reopened, err := os.OpenFile(file.Name(), os.O_RDWR|os.O_APPEND, 0o600) //nolint:gosec
	tst.RequireNoError(t, err)
	sa, err = wal.NewSegmentAppender(reopened)
	tst.RequireNoError(t, err)
	off, err := sa.Append(record.RecordTypeAbort, record.EncodeTxnPayload(1))
	tst.RequireNoError(t, err)
	tst.AssertEqual(t, off, record.EncodedRecordSize(record.TxnIdSize), "appends after existing data")
	tst.RequireNoError(t, sa.Close())

	recs := readFrames(t, file.Name())
	tst.AssertEqual(t, recs[1].Record.Type, record.RecordTypeAbort, "second record")
}

func TestSegmentAppender_RejectsInvalidPayload(t *testing.T) {
	sa, err := wal.NewSegmentAppender(createTempSegmentFile(t))
	tst.RequireNoError(t, err)
	defer sa.Close() //nolint:errcheck

	_, err = sa.Append(record.RecordTypeBegin, []byte{1})
	tst.AssertTrue(t, errors.Is(err, wal.ErrInvalidRecord), "short begin payload")
	var ae *wal.SegmentAppendError
	tst.AssertTrue(t, errors.As(err, &ae), "expected *SegmentAppendError")
	tst.AssertEqual(t, ae.RecordType, record.RecordTypeBegin, "record type on error")

	_, err = sa.Append(record.RecordTypeUnknown, record.EncodeTxnPayload(1))
	tst.AssertTrue(t, errors.Is(err, wal.ErrInvalidRecord), "unknown type")
	tst.AssertEqual(t, sa.CurrentOffset(), int64(0), "nothing written")
}

func TestSegmentAppender_Closed(t *testing.T) {
	sa, err := wal.NewSegmentAppender(createTempSegmentFile(t))
	tst.RequireNoError(t, err)
	tst.RequireNoError(t, sa.Close())
	tst.RequireNoError(t, sa.Close())

	_, err = sa.Append(record.RecordTypeBegin, record.EncodeTxnPayload(1))
	tst.AssertTrue(t, errors.Is(err, wal.ErrClosedWriter), "append after close")
	tst.AssertTrue(t, errors.Is(sa.Flush(), wal.ErrClosedWriter), "flush after close")
	tst.AssertTrue(t, errors.Is(sa.FSync(), wal.ErrClosedWriter), "fsync after close")
}

func TestSegmentAppender_ConcurrentAppends(t *testing.T) {
	file := createTempSegmentFile(t)
	sa, err := wal.NewSegmentAppender(file)
	tst.RequireNoError(t, err)

	const workers, per = 4, 50
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range per {
				_, err := sa.Append(record.RecordTypeBegin, record.EncodeTxnPayload(uint64(w*per+i+1)))
				if err != nil {
					t.Error(err)
				}
			}
		}()
	}
	wg.Wait()
	tst.RequireNoError(t, sa.Close())

	recs := readFrames(t, file.Name())
	tst.AssertEqual(t, len(recs), workers*per, "every record intact")
}
