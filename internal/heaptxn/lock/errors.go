package lock

import (
	"errors"
	"fmt"

	"github.com/julianstephens/heaptxn/internal/heaptxn/txn"
)

var (
	ErrLockTimeout = errors.New("lock: wait timed out")
	ErrNotHeld     = errors.New("lock: not held by transaction")
	ErrInvalidMode = errors.New("lock: invalid mode")
)

// LockError carries the record and transaction a lock request was for.
type LockError struct {
	Err   error
	Op    string
	ID    txn.LockID
	TxnID uint64
	Mode  txn.LockMode
}

func (e *LockError) Error() string {
	return fmt.Sprintf("%s: %s id=%s txn=%d mode=%s", e.Op, e.Err.Error(), e.ID, e.TxnID, e.Mode)
}

func (e *LockError) Unwrap() error { return e.Err }

func wrapLockErr(op string, sentinel error, id txn.LockID, txnID uint64, mode txn.LockMode) error {
	return &LockError{Err: sentinel, Op: op, ID: id, TxnID: txnID, Mode: mode}
}
