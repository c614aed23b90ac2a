package index

import (
	"bytes"
	"sync"

	"github.com/google/btree"

	"github.com/julianstephens/heaptxn/internal/heaptxn/storage"
	"github.com/julianstephens/heaptxn/internal/heaptxn/txn"
)

// DefaultDegree is the B-tree degree used when none is given.
const DefaultDegree = 32

type item struct {
	key []byte
	rid storage.RecordId
}

func lessItem(a, b item) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// BTreeIndex is an in-memory unique SecondaryIndex over a google/btree.
type BTreeIndex struct {
	desc Descriptor

	mu   sync.RWMutex
	tree *btree.BTreeG[item]
}

var _ SecondaryIndex = (*BTreeIndex)(nil)

// NewBTreeIndex builds an empty index for desc. degree <= 1 uses DefaultDegree.
func NewBTreeIndex(desc Descriptor, degree int) *BTreeIndex {
	if degree <= 1 {
		degree = DefaultDegree
	}
	return &BTreeIndex{
		desc: desc,
		tree: btree.NewG(degree, lessItem),
	}
}

func (ix *BTreeIndex) Descriptor() Descriptor { return ix.desc }

func (ix *BTreeIndex) InsertEntry(key []byte, rid storage.RecordId, t *txn.Transaction) error {
	if err := ix.checkKey("insert_entry", key, t); err != nil {
		return err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.tree.Has(item{key: key}) {
		return keyErr("insert_entry", ErrDuplicateKey, ix.desc.Name, txnID(t), key)
	}
	ix.tree.ReplaceOrInsert(item{key: bytes.Clone(key), rid: rid})
	return nil
}

func (ix *BTreeIndex) DeleteEntry(key []byte, t *txn.Transaction) error {
	if err := ix.checkKey("delete_entry", key, t); err != nil {
		return err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, ok := ix.tree.Delete(item{key: key}); !ok {
		return keyErr("delete_entry", ErrKeyNotFound, ix.desc.Name, txnID(t), key)
	}
	return nil
}

func (ix *BTreeIndex) Lookup(key []byte) (storage.RecordId, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	it, ok := ix.tree.Get(item{key: key})
	return it.rid, ok
}

// Ascend runs fn on a snapshot so fn may call back into the index.
func (ix *BTreeIndex) Ascend(from []byte, fn func(key []byte, rid storage.RecordId) bool) {
	ix.mu.RLock()
	var snap []item
	collect := func(it item) bool {
		snap = append(snap, it)
		return true
	}
	if from == nil {
		ix.tree.Ascend(collect)
	} else {
		ix.tree.AscendGreaterOrEqual(item{key: from}, collect)
	}
	ix.mu.RUnlock()

	for _, it := range snap {
		if !fn(bytes.Clone(it.key), it.rid) {
			return
		}
	}
}

func (ix *BTreeIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.tree.Len()
}

func (ix *BTreeIndex) checkKey(op string, key []byte, t *txn.Transaction) error {
	if len(key) != ix.desc.KeyLen() {
		return keyErr(op, ErrKeyLength, ix.desc.Name, txnID(t), key)
	}
	return nil
}

func txnID(t *txn.Transaction) uint64 {
	if t == nil {
		return 0
	}
	return t.ID()
}
