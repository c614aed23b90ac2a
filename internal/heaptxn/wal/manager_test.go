package wal_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	tst "github.com/julianstephens/go-utils/tests"

	"github.com/julianstephens/heaptxn/internal/heaptxn/storage"
	"github.com/julianstephens/heaptxn/internal/heaptxn/txn"
	"github.com/julianstephens/heaptxn/internal/heaptxn/wal"
)

func openManager(t *testing.T, dir string, fsync bool) (*wal.Log, *wal.LogManager) {
	t.Helper()
	l, err := wal.OpenLog(dir, wal.LogOpts{}, nil)
	tst.RequireNoError(t, err)
	return l, wal.NewLogManager(l, wal.ManagerOpts{FsyncOnFlush: fsync}, nil)
}

func TestLogManager_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	l, m := openManager(t, dir, true)

	rid := storage.RecordId{Page: 1, Slot: 2}
	in := []txn.LogRecord{
		{Kind: txn.LogBegin, TxnID: 5},
		{Kind: txn.LogInsert, TxnID: 5, Table: "people", RID: rid, After: storage.RawRecord("after")},
		{Kind: txn.LogUpdate, TxnID: 5, Table: "people", RID: rid, Before: storage.RawRecord("after"), After: storage.RawRecord("again")},
		{Kind: txn.LogDelete, TxnID: 5, Table: "people", RID: rid, Before: storage.RawRecord("again")},
		{Kind: txn.LogAbort, TxnID: 5},
	}
	for _, rec := range in {
		tst.RequireNoError(t, m.Append(rec))
	}
	tst.RequireNoError(t, m.FlushToDisk())
	appended, flushes := m.Stats()
	tst.AssertEqual(t, appended, uint64(len(in)), "appended count")
	tst.AssertEqual(t, flushes, uint64(1), "flush count")

	var out []txn.LogRecord
	err := wal.ReadLogRecords(l, func(_ wal.Position, rec txn.LogRecord) error {
		out = append(out, rec)
		return nil
	})
	tst.RequireNoError(t, err)
	tst.RequireDeepEqual(t, out, in)
	tst.RequireNoError(t, m.Close())
}

func TestLogManager_FlushMakesRecordsVisible(t *testing.T) {
	dir := t.TempDir()
	l, m := openManager(t, dir, false)
	defer m.Close() //nolint:errcheck

	tst.RequireNoError(t, m.Append(txn.LogRecord{Kind: txn.LogCommit, TxnID: 1}))
	count := func() int {
		n := 0
		tst.RequireNoError(t, wal.ReadLogRecords(l, func(wal.Position, txn.LogRecord) error { n++; return nil }))
		return n
	}
	tst.AssertEqual(t, count(), 0, "buffered record not on disk")
	tst.RequireNoError(t, m.FlushToDisk())
	tst.AssertEqual(t, count(), 1, "visible after flush")
}

func TestLogManager_EncodeErrors(t *testing.T) {
	_, m := openManager(t, t.TempDir(), false)
	defer m.Close() //nolint:errcheck

	err := m.Append(txn.LogRecord{Kind: txn.LogKind(99)})
	tst.AssertTrue(t, errors.Is(err, wal.ErrEncode), "unknown kind")

	err = m.Append(txn.LogRecord{Kind: txn.LogInsert, TxnID: 1, Table: ""})
	tst.AssertTrue(t, errors.Is(err, wal.ErrEncode), "data record without table")
}

func TestLogManager_FlushAfterClose(t *testing.T) {
	_, m := openManager(t, t.TempDir(), true)
	tst.RequireNoError(t, m.Close())
	tst.AssertTrue(t, errors.Is(m.FlushToDisk(), wal.ErrWALClosed), "flush after close")
}

func TestScan_CorruptOlderSegment(t *testing.T) {
	dir := t.TempDir()
	l, err := wal.OpenLog(dir, wal.LogOpts{SegmentMaxBytes: 20}, nil)
	tst.RequireNoError(t, err)
	m := wal.NewLogManager(l, wal.ManagerOpts{}, nil)
	tst.RequireNoError(t, m.Append(txn.LogRecord{Kind: txn.LogBegin, TxnID: 1}))
	tst.RequireNoError(t, m.Append(txn.LogRecord{Kind: txn.LogCommit, TxnID: 1}))
	tst.RequireNoError(t, m.Close())

	seg1 := filepath.Join(dir, "segment-00000000000000000001.wal")
	info, err := os.Stat(seg1)
	tst.RequireNoError(t, err)
	tst.RequireNoError(t, os.Truncate(seg1, info.Size()-2))

	l, err = wal.OpenLog(dir, wal.LogOpts{}, nil)
	tst.RequireNoError(t, err)
	defer l.Close() //nolint:errcheck
	err = wal.ReadLogRecords(l, func(wal.Position, txn.LogRecord) error { return nil })
	tst.AssertTrue(t, errors.Is(err, wal.ErrCorruptLog), "torn record in sealed segment is corruption")
}
