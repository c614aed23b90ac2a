package recovery

import (
	"slices"

	"github.com/julianstephens/go-utils/generic"

	"github.com/julianstephens/heaptxn/internal/heaptxn/txn"
)

type txnStatus uint8

const (
	statusOpen txnStatus = iota + 1
	statusCommitted
	statusAborted
)

// HistoryStateMachine folds log records into per-transaction outcomes. Transactions
// interleave in the log, so it tracks every transaction independently.
type HistoryStateMachine struct {
	txns         map[uint64]txnStatus
	maxTxnID     uint64
	maxCommitted uint64
	committed    int
	aborted      int
}

func NewHistoryStateMachine() *HistoryStateMachine {
	return &HistoryStateMachine{txns: make(map[uint64]txnStatus)}
}

// Apply advances the history by one record.
//
// An ABORT without a BEGIN is accepted: a transaction whose BEGIN append failed is
// aborted straight away.
func (h *HistoryStateMachine) Apply(rec txn.LogRecord) error {
	id := rec.TxnID
	status, known := h.txns[id]
	if id > h.maxTxnID {
		h.maxTxnID = id
	}

	switch rec.Kind {
	case txn.LogBegin:
		if known {
			return &StateError{Kind: StateDoubleBegin, TxnID: id, Op: rec.Kind.String()}
		}
		h.txns[id] = statusOpen

	case txn.LogInsert, txn.LogDelete, txn.LogUpdate:
		if !known {
			return &StateError{Kind: StateOrphanOp, TxnID: id, Op: rec.Kind.String()}
		}
		if status != statusOpen {
			return &StateError{Kind: StateAfterCommit, TxnID: id, Op: rec.Kind.String()}
		}

	case txn.LogCommit, txn.LogAbort:
		if !known && rec.Kind == txn.LogCommit {
			return &StateError{Kind: StateCommitNoTxn, TxnID: id, Op: rec.Kind.String()}
		}
		if known && status != statusOpen {
			return &StateError{Kind: StateAfterCommit, TxnID: id, Op: rec.Kind.String()}
		}
		h.txns[id] = generic.If(rec.Kind == txn.LogCommit, statusCommitted, statusAborted)
		if rec.Kind == txn.LogCommit {
			h.committed++
			h.maxCommitted = max(h.maxCommitted, id)
		} else {
			h.aborted++
		}

	default:
		return &StateError{Kind: StateUnknown, TxnID: id, Op: rec.Kind.String()}
	}
	return nil
}

// InDoubt returns the ids of transactions that began but never reached COMMIT or
// ABORT, ascending.
func (h *HistoryStateMachine) InDoubt() []uint64 {
	var ids []uint64
	for id, s := range h.txns {
		if s == statusOpen {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// NextTxnID is one past the highest transaction id seen.
func (h *HistoryStateMachine) NextTxnID() uint64 {
	return h.maxTxnID + 1
}

// MaxCommittedTxnID returns the highest committed transaction id, or 0.
func (h *HistoryStateMachine) MaxCommittedTxnID() uint64 {
	return h.maxCommitted
}

// Counts returns how many transactions committed and aborted.
func (h *HistoryStateMachine) Counts() (committed, aborted int) {
	return h.committed, h.aborted
}
