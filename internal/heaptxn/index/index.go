package index

import (
	"github.com/julianstephens/heaptxn/internal/heaptxn/storage"
	"github.com/julianstephens/heaptxn/internal/heaptxn/txn"
)

// SecondaryIndex maps a packed key to the record it was built from. Keys are unique.
type SecondaryIndex interface {
	// InsertEntry maps key to rid. It fails with ErrDuplicateKey if key is present.
	InsertEntry(key []byte, rid storage.RecordId, t *txn.Transaction) error
	// DeleteEntry removes key. It fails with ErrKeyNotFound if key is absent.
	DeleteEntry(key []byte, t *txn.Transaction) error
	// Lookup resolves key to a record id.
	Lookup(key []byte) (storage.RecordId, bool)
	// Ascend visits entries in key order starting at from (nil for the first key)
	// until fn returns false.
	Ascend(from []byte, fn func(key []byte, rid storage.RecordId) bool)
	Len() int
	Descriptor() Descriptor
}
