package txn

import (
	"errors"
	"fmt"

	"github.com/julianstephens/heaptxn/internal/heaptxn/errorutil"
	"github.com/julianstephens/heaptxn/internal/heaptxn/storage"
)

var (
	// Returned when an id is 0 or otherwise forbidden.
	ErrInvalidTxnID = errors.New("txn: invalid transaction id")

	// Returned when SetNext attempts to move the allocator backwards.
	ErrTxnIDRegression = errors.New("txn: transaction id regression")
)

// TxnIDError reports an allocator misuse.
type TxnIDError struct {
	Err  error
	Have uint64
	Want uint64
}

func (e *TxnIDError) Error() string {
	return fmt.Sprintf("%s (have=%d want=%d)", e.Err.Error(), e.Have, e.Want)
}
func (e *TxnIDError) Unwrap() error { return e.Err }

var (
	ErrNotActive       = errors.New("txn: transaction not active")
	ErrNoLogManager    = errors.New("txn: no log manager")
	ErrReleaseLocks    = errors.New("txn: release locks failed")
	ErrLogAppend       = errors.New("txn: log append failed")
	ErrLogFlush        = errors.New("txn: log flush failed")
	ErrRollbackFailed  = errors.New("txn: rollback failed")
	ErrInvalidKind     = errors.New("txn: invalid write kind")
	ErrStillRegistered = errors.New("txn: transaction still active")
	ErrNoRollbacker    = errors.New("txn: no rollbacker configured")
	ErrCommitInDoubt   = errors.New("txn: commit record logged but not flushed")
)

// TxnError wraps commit/abort failures with the transaction they belong to.
type TxnError struct {
	Err error

	// Op is "commit", "abort", "forget", ...
	Op    string
	TxnID uint64

	Cause error
}

func (e *TxnError) Error() string {
	base := fmt.Sprintf("%s: %s txn=%d", e.Op, e.Err.Error(), e.TxnID)
	if e.Cause != nil {
		base = fmt.Sprintf("%s: %v", base, e.Cause)
	}
	return base
}

func (e *TxnError) Unwrap() error   { return e.Err }
func (e *TxnError) CauseErr() error { return e.Cause }

func wrapTxnErr(op string, sentinel error, txnID uint64, cause error) error {
	return &TxnError{
		Err:   sentinel,
		Op:    op,
		TxnID: txnID,
		Cause: cause,
	}
}

// RollbackError is returned when inverting a write-set entry fails. It is fatal to the
// engine: the store and its indexes can no longer be assumed consistent.
type RollbackError struct {
	TxnID uint64
	// Pending is the number of write-set entries still to undo, including the failed one.
	Pending int
	Kind    WriteKind
	Table   string
	RID     storage.RecordId

	Cause error
}

func (e *RollbackError) Error() string {
	txnID := e.TxnID
	coords := errorutil.Coordinates{Table: &e.Table, RID: &e.RID, TxnID: &txnID}
	return fmt.Sprintf("%s: undo %s %s pending=%d: %v",
		ErrRollbackFailed.Error(), e.Kind, coords.String(), e.Pending, e.Cause)
}

func (e *RollbackError) Unwrap() error   { return ErrRollbackFailed }
func (e *RollbackError) CauseErr() error { return e.Cause }
