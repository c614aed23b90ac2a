package txn

import (
	"fmt"

	"github.com/julianstephens/heaptxn/internal/heaptxn/storage"
)

// LockMode is the strength of a record lock.
type LockMode uint8

const (
	LockShared LockMode = iota + 1
	LockExclusive
)

func (m LockMode) String() string {
	switch m {
	case LockShared:
		return "S"
	case LockExclusive:
		return "X"
	default:
		return "?"
	}
}

// LockID names one lockable record. RecordIds are only unique inside a table's store,
// so the table is part of the identity.
type LockID struct {
	Table string
	RID   storage.RecordId
}

func (id LockID) String() string {
	return fmt.Sprintf("%s/%s", id.Table, id.RID)
}

// LockManager grants and releases record locks on behalf of transactions.
type LockManager interface {
	// Lock blocks until t holds id in at least mode, or fails.
	Lock(t *Transaction, id LockID, mode LockMode) error
	// Unlock releases t's hold on id.
	Unlock(t *Transaction, id LockID) error
}
