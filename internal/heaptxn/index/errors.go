package index

import (
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	ErrDuplicateKey      = errors.New("index: duplicate key")
	ErrKeyNotFound       = errors.New("index: key not found")
	ErrKeyLength         = errors.New("index: key length mismatch")
	ErrColumnOutOfRange  = errors.New("index: column outside record")
	ErrInvalidDescriptor = errors.New("index: invalid descriptor")
)

// IndexError wraps index failures with the index name, the transaction and, when
// relevant, the key.
type IndexError struct {
	Err   error
	Op    string
	Index string
	TxnID uint64
	Key   []byte

	Cause error
}

func (e *IndexError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Err.Error())
	if e.Index != "" {
		msg += " index=" + e.Index
	}
	if e.TxnID != 0 {
		msg += fmt.Sprintf(" txn=%d", e.TxnID)
	}
	if e.Key != nil {
		msg += " key=" + hex.EncodeToString(e.Key)
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

func (e *IndexError) Unwrap() error   { return e.Err }
func (e *IndexError) CauseErr() error { return e.Cause }

func wrapIndexErr(op string, sentinel error, index string, txnID uint64, cause error) error {
	return &IndexError{Err: sentinel, Op: op, Index: index, TxnID: txnID, Cause: cause}
}

func keyErr(op string, sentinel error, index string, txnID uint64, key []byte) error {
	return &IndexError{Err: sentinel, Op: op, Index: index, TxnID: txnID, Key: append([]byte(nil), key...)}
}
