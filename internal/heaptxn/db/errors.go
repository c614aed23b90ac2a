package db

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDir      = errors.New("db: invalid dir")
	ErrManifestMissing = errors.New("db: manifest missing")
	ErrManifestInvalid = errors.New("db: manifest invalid")
	ErrInitFailed      = errors.New("db: init failed")
	ErrClosed          = errors.New("db: closed")
	ErrCloseFailed     = errors.New("db: close failed")
	ErrRecoveryFailed  = errors.New("db: log analysis failed")
	ErrWALOpenFailed   = errors.New("db: wal open failed")
	ErrStoreOpenFailed = errors.New("db: store open failed")
	ErrBeginFailed     = errors.New("db: begin failed")
	ErrCommitFailed    = errors.New("db: commit failed")
	ErrAbortFailed     = errors.New("db: abort failed")
	ErrOpFailed        = errors.New("db: operation failed")

	// ErrEngineUnusable is returned by every operation once a rollback or a
	// compensation step has failed.
	ErrEngineUnusable = errors.New("db: engine unusable after rollback fault")
)

// DBError wraps DB-layer failures with stable sentinels for errors.Is,
// while preserving Cause for inspection/logging.
type DBError struct {
	Err error

	// Op describes the operation: "open", "begin", "insert", "commit", "close", etc.
	Op string

	// Path is the data directory.
	Path string

	Cause error
}

func (e *DBError) Error() string {
	msg := e.Err.Error()
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.Path != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Path)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap exposes the sentinel and the cause chain, so callers can match either
// ErrOpFailed or, say, storage.ErrRecordNotFound.
func (e *DBError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func (e *DBError) CauseErr() error { return e.Cause }

func wrapDBErr(op string, sentinel error, path string, cause error) error {
	return &DBError{
		Err:   sentinel,
		Op:    op,
		Path:  path,
		Cause: cause,
	}
}
