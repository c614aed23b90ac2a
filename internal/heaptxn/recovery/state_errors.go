package recovery

import (
	"errors"
	"fmt"
)

var (
	ErrOrphanOp      = errors.New("recovery: data record outside transaction")
	ErrCommitNoTxn   = errors.New("recovery: commit with no begun transaction")
	ErrDoubleBegin   = errors.New("recovery: begin of a known transaction")
	ErrAfterCommit   = errors.New("recovery: record after commit or abort")
	ErrUnknownRecord = errors.New("recovery: unknown record kind")
)

type StateErrorKind uint8

const (
	StateUnknown StateErrorKind = iota
	StateOrphanOp
	StateCommitNoTxn
	StateDoubleBegin
	StateAfterCommit
)

// StateError is a log record that does not fit the transaction history seen so far.
type StateError struct {
	Kind StateErrorKind

	// TxnID is the transaction id carried by the record.
	TxnID uint64

	// Op is the record kind, e.g. "BEGIN", "INSERT", "COMMIT".
	Op string
}

func (e *StateError) Error() string {
	// Analyze adds coordinates.
	return fmt.Sprintf("recovery state error: %v op=%s txn=%d", e.Unwrap(), e.Op, e.TxnID)
}

func (e *StateError) Unwrap() error {
	switch e.Kind {
	case StateOrphanOp:
		return ErrOrphanOp
	case StateCommitNoTxn:
		return ErrCommitNoTxn
	case StateDoubleBegin:
		return ErrDoubleBegin
	case StateAfterCommit:
		return ErrAfterCommit
	default:
		return ErrUnknownRecord
	}
}
