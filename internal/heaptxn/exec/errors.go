package exec

import (
	"errors"
	"fmt"

	"github.com/julianstephens/heaptxn/internal/heaptxn/errorutil"
	"github.com/julianstephens/heaptxn/internal/heaptxn/storage"
)

var (
	ErrTxnNotActive = errors.New("exec: transaction not active")
	ErrBind         = errors.New("exec: unable to resolve table")
	ErrStore        = errors.New("exec: record store failure")
	ErrLock         = errors.New("exec: lock not acquired")
	ErrIndex        = errors.New("exec: index maintenance failed")
	ErrLog          = errors.New("exec: log append failed")
	ErrKeyNotFound  = errors.New("exec: key not found")

	// ErrCompensate means an operation failed and undoing its partial effects failed
	// too. Store and indexes may disagree afterwards.
	ErrCompensate = errors.New("exec: compensation failed")
)

// MutationError reports a failed step of a record operation. errors.Is matches both
// the step sentinel in Err and anything in the Cause chain.
type MutationError struct {
	Err   error
	Op    string
	Table string
	RID   *storage.RecordId
	TxnID uint64

	Cause error
}

func (e *MutationError) Error() string {
	coords := errorutil.Coordinates{Table: &e.Table, RID: e.RID, TxnID: &e.TxnID}
	msg := fmt.Sprintf("%s: %s %s", e.Op, e.Err.Error(), coords.FormatCoordinates())
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

func (e *MutationError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func (e *MutationError) CauseErr() error { return e.Cause }

func wrapMutationErr(op string, sentinel error, table string, rid *storage.RecordId, txnID uint64, cause error) error {
	return &MutationError{Err: sentinel, Op: op, Table: table, RID: rid, TxnID: txnID, Cause: cause}
}
