package index_test

import (
	"errors"
	"testing"

	tst "github.com/julianstephens/go-utils/tests"

	"github.com/julianstephens/heaptxn/internal/heaptxn/index"
	"github.com/julianstephens/heaptxn/internal/heaptxn/storage"
)

func TestBTreeIndex_InsertLookupDelete(t *testing.T) {
	ix := index.NewBTreeIndex(ageName, 0)
	key := index.PackKey(ageName, record(30, "alice"))
	rid := storage.RecordId{Page: 0, Slot: 3}

	tst.RequireNoError(t, ix.InsertEntry(key, rid, nil))
	got, ok := ix.Lookup(key)
	tst.AssertTrue(t, ok, "key present")
	tst.RequireDeepEqual(t, got, rid)

	err := ix.InsertEntry(key, storage.RecordId{Slot: 4}, nil)
	tst.AssertTrue(t, errors.Is(err, index.ErrDuplicateKey), "duplicate rejected")
	got, _ = ix.Lookup(key)
	tst.RequireDeepEqual(t, got, rid)

	tst.RequireNoError(t, ix.DeleteEntry(key, nil))
	_, ok = ix.Lookup(key)
	tst.AssertFalse(t, ok, "key removed")

	err = ix.DeleteEntry(key, nil)
	tst.AssertTrue(t, errors.Is(err, index.ErrKeyNotFound), "missing key")
	tst.AssertEqual(t, ix.Len(), 0, "empty")
}

func TestBTreeIndex_KeyIsCopied(t *testing.T) {
	ix := index.NewBTreeIndex(ageName, 4)
	key := index.PackKey(ageName, record(1, "a"))
	tst.RequireNoError(t, ix.InsertEntry(key, storage.RecordId{}, nil))
	key[0] = 2

	_, ok := ix.Lookup(index.PackKey(ageName, record(1, "a")))
	tst.AssertTrue(t, ok, "stored key independent of caller buffer")
}

func TestBTreeIndex_KeyLength(t *testing.T) {
	ix := index.NewBTreeIndex(ageName, 0)
	err := ix.InsertEntry([]byte{1, 2}, storage.RecordId{}, nil)
	tst.AssertTrue(t, errors.Is(err, index.ErrKeyLength), "short key rejected")
}

func TestBTreeIndex_AscendInKeyOrder(t *testing.T) {
	ix := index.NewBTreeIndex(ageName, 2)
	for i, age := range []byte{40, 10, 30, 20} {
		tst.RequireNoError(t, ix.InsertEntry(index.PackKey(ageName, record(age, "n")), storage.RecordId{Slot: uint16(i)}, nil))
	}

	var ages []byte
	ix.Ascend(nil, func(key []byte, _ storage.RecordId) bool {
		ages = append(ages, key[0])
		return true
	})
	tst.RequireDeepEqual(t, ages, []byte{10, 20, 30, 40})

	ages = nil
	from := index.PackKey(ageName, record(25, ""))
	ix.Ascend(from, func(key []byte, _ storage.RecordId) bool {
		ages = append(ages, key[0])
		return len(ages) < 1
	})
	tst.RequireDeepEqual(t, ages, []byte{30})

	// fn may mutate the index it is iterating.
	ix.Ascend(nil, func(key []byte, _ storage.RecordId) bool {
		return ix.DeleteEntry(key, nil) == nil
	})
	tst.AssertEqual(t, ix.Len(), 0, "all deleted during ascend")
	tst.AssertEqual(t, ix.Descriptor().Name, "age_name", "descriptor")
}
