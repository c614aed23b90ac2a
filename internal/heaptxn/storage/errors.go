package storage

import (
	"errors"
	"fmt"
)

var (
	ErrRecordNotFound  = errors.New("storage: record not found")
	ErrInvalidRecordId = errors.New("storage: invalid record id")
	ErrRecordSize      = errors.New("storage: record size mismatch")
	ErrStoreClosed     = errors.New("storage: store closed")
	ErrStoreFull       = errors.New("storage: store full")
	ErrStoreIO         = errors.New("storage: io failure")
)

// StoreError wraps record store failures with a stable sentinel in Err.
type StoreError struct {
	Err error

	// Op is a short label: "get", "insert", "delete", "update", "scan", "open", ...
	Op    string
	Table string
	RID   *RecordId

	Cause error
}

func (e *StoreError) Error() string {
	msg := e.Err.Error()
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.Table != "" {
		msg = fmt.Sprintf("%s table=%s", msg, e.Table)
	}
	if e.RID != nil {
		msg = fmt.Sprintf("%s rid=%s", msg, e.RID)
	}
	return msg
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) CauseErr() error { return e.Cause }

// WrapStoreErr builds a StoreError for op on table. rid may be nil.
func WrapStoreErr(op string, sentinel error, table string, rid *RecordId, cause error) error {
	return &StoreError{
		Err:   sentinel,
		Op:    op,
		Table: table,
		RID:   rid,
		Cause: cause,
	}
}

// IsNotFound reports whether err is, or wraps, ErrRecordNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound)
}
