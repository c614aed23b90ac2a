package heap_test

import (
	"path/filepath"
	"testing"

	tst "github.com/julianstephens/go-utils/tests"

	"github.com/julianstephens/heaptxn/internal/heaptxn/heap"
	"github.com/julianstephens/heaptxn/internal/heaptxn/storage"
)

func openBolt(t *testing.T) (*heap.BoltDB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "heap.db")
	db, err := heap.OpenBoltDB(path)
	tst.RequireNoError(t, err)
	return db, path
}

// TestBoltStoreRoundTrip exercises insert, get, update, delete
func TestBoltStoreRoundTrip(t *testing.T) {
	db, _ := openBolt(t)
	defer db.Close() //nolint:errcheck

	s, err := db.Store("people", 3)
	tst.RequireNoError(t, err)

	rid, err := s.Insert(storage.RawRecord("abc"))
	tst.RequireNoError(t, err)
	tst.RequireDeepEqual(t, rid, storage.RecordId{Page: 0, Slot: 0})

	rec, err := s.Get(rid)
	tst.RequireNoError(t, err)
	tst.AssertEqual(t, string(rec), "abc", "unexpected image")

	tst.RequireNoError(t, s.Update(rid, storage.RawRecord("xyz")))
	rec, err = s.Get(rid)
	tst.RequireNoError(t, err)
	tst.AssertEqual(t, string(rec), "xyz", "unexpected updated image")

	tst.RequireNoError(t, s.Delete(rid))
	_, err = s.Get(rid)
	tst.AssertTrue(t, storage.IsNotFound(err), "expected not found after delete")
	tst.AssertTrue(t, storage.IsNotFound(s.Delete(rid)), "expected not found on second delete")
}

// TestBoltStoreSurvivesReopen verifies records and id allocation persist
func TestBoltStoreSurvivesReopen(t *testing.T) {
	db, path := openBolt(t)
	s, err := db.Store("people", 2)
	tst.RequireNoError(t, err)

	rid1, err := s.Insert(storage.RawRecord("aa"))
	tst.RequireNoError(t, err)
	tst.RequireNoError(t, s.Delete(rid1))
	rid2, err := s.Insert(storage.RawRecord("bb"))
	tst.RequireNoError(t, err)
	tst.RequireNoError(t, db.Close())

	db, err = heap.OpenBoltDB(path)
	tst.RequireNoError(t, err)
	defer db.Close() //nolint:errcheck
	s, err = db.Store("people", 2)
	tst.RequireNoError(t, err)

	rec, err := s.Get(rid2)
	tst.RequireNoError(t, err)
	tst.AssertEqual(t, string(rec), "bb", "expected persisted image")

	rid3, err := s.Insert(storage.RawRecord("cc"))
	tst.RequireNoError(t, err)
	tst.AssertTrue(t, rid3 != rid1 && rid3 != rid2, "expected ids to keep advancing after reopen")
}

// TestBoltStoreTablesAreIsolated checks buckets do not share records
func TestBoltStoreTablesAreIsolated(t *testing.T) {
	db, _ := openBolt(t)
	defer db.Close() //nolint:errcheck

	a, err := db.Store("a", 1)
	tst.RequireNoError(t, err)
	b, err := db.Store("b", 1)
	tst.RequireNoError(t, err)

	rid, err := a.Insert(storage.RawRecord("x"))
	tst.RequireNoError(t, err)
	_, err = b.Get(rid)
	tst.AssertTrue(t, storage.IsNotFound(err), "expected table b to be empty")
}

// TestBoltStoreScanAllowsWrites checks fn can write while scanning
func TestBoltStoreScanAllowsWrites(t *testing.T) {
	db, _ := openBolt(t)
	defer db.Close() //nolint:errcheck

	s, err := db.Store("t", 1)
	tst.RequireNoError(t, err)
	for _, c := range "abc" {
		_, err := s.Insert(storage.RawRecord{byte(c)})
		tst.RequireNoError(t, err)
	}

	count := 0
	err = s.Scan(func(rid storage.RecordId, _ storage.RawRecord) error {
		count++
		return s.Delete(rid)
	})
	tst.RequireNoError(t, err)
	tst.AssertEqual(t, count, 3, "expected three records")

	remaining := 0
	tst.RequireNoError(t, s.Scan(func(storage.RecordId, storage.RawRecord) error {
		remaining++
		return nil
	}))
	tst.AssertEqual(t, remaining, 0, "expected empty table")
}
