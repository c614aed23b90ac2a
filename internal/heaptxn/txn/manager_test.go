package txn_test

import (
	"errors"
	"testing"

	tst "github.com/julianstephens/go-utils/tests"

	"github.com/julianstephens/heaptxn/internal/heaptxn/storage"
	"github.com/julianstephens/heaptxn/internal/heaptxn/txn"
	"github.com/julianstephens/heaptxn/internal/testutil"
)

type harness struct {
	mgr   *txn.Manager
	locks *testutil.LockManager
	log   *testutil.LogManager
	undo  *testutil.Rollbacker
	fatal []error
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		locks: testutil.NewLockManager(),
		log:   testutil.NewLogManager(),
		undo:  testutil.NewRollbacker(),
	}
	opts := txn.ManagerOpts{OnFatal: func(err error) { h.fatal = append(h.fatal, err) }}
	h.mgr = txn.NewManager(testutil.NewIDAllocator(1), h.locks, h.undo, opts, nil)
	return h
}

func rid(page uint32, slot uint16) storage.RecordId {
	return storage.RecordId{Page: page, Slot: slot}
}

// lockRecords takes X locks on slots 0..n-1 of table "t" for tx.
func (h *harness) lockRecords(t *testing.T, tx *txn.Transaction, n int) {
	t.Helper()
	ctx := txn.NewContext(h.locks, h.log, tx)
	for i := range n {
		tst.RequireNoError(t, ctx.LockExclusive("t", rid(0, uint16(i))))
	}
}

func TestManager_BeginAllocatesAndRegisters(t *testing.T) {
	h := newHarness(t)

	t1 := h.mgr.Begin(nil)
	t2 := h.mgr.Begin(nil)

	tst.AssertEqual(t, t1.State(), txn.StateActive, "new txn state")
	tst.AssertGreaterThan(t, t2.ID(), t1.ID(), "ids increase")
	tst.AssertGreaterThan(t, t2.StartTS(), t1.StartTS(), "timestamps increase")
	tst.AssertTrue(t, len(t1.WriteSet()) == 0, "empty write-set")
	tst.AssertTrue(t, len(t1.LockSet()) == 0, "empty lock-set")

	got, ok := h.mgr.Lookup(t1.ID())
	tst.AssertTrue(t, ok, "t1 registered")
	tst.AssertTrue(t, got == t1, "lookup returns same handle")
	tst.AssertEqual(t, h.mgr.Len(), 2, "registered count")
	tst.AssertTrue(t, len(h.log.Calls()) == 0, "begin does not log")
}

func TestManager_BeginExistingReRegisters(t *testing.T) {
	h := newHarness(t)
	tx := h.mgr.Begin(nil)
	tst.RequireNoError(t, h.mgr.Commit(tx, h.log))
	tst.RequireNoError(t, h.mgr.Forget(tx.ID()))
	_, ok := h.mgr.Lookup(tx.ID())
	tst.AssertFalse(t, ok, "forgotten")

	again := h.mgr.Begin(tx)
	tst.AssertTrue(t, again == tx, "same handle returned")
	tst.AssertEqual(t, again.State(), txn.StateCommitted, "state unchanged")
	_, ok = h.mgr.Lookup(tx.ID())
	tst.AssertTrue(t, ok, "re-registered")
}

func TestManager_NilTransactionIsNoOp(t *testing.T) {
	h := newHarness(t)
	tst.RequireNoError(t, h.mgr.Commit(nil, h.log))
	tst.RequireNoError(t, h.mgr.Abort(nil, h.log))
	tst.AssertTrue(t, len(h.log.Calls()) == 0, "no log traffic")
}

func TestManager_CommitOrdering(t *testing.T) {
	h := newHarness(t)
	tx := h.mgr.Begin(nil)
	h.lockRecords(t, tx, 3)
	tst.RequireNoError(t, tx.AppendWrite(txn.InsertedRecord("t", rid(0, 0))))
	tst.RequireNoError(t, tx.AppendWrite(txn.InsertedRecord("t", rid(0, 1))))

	var stateAtFlush txn.State
	var heldAtFlush int
	h.log.OnFlush = func() {
		stateAtFlush = tx.State()
		heldAtFlush = h.locks.Held()
	}

	tst.RequireNoError(t, h.mgr.Commit(tx, h.log))

	tst.AssertEqual(t, stateAtFlush, txn.StateActive, "state still ACTIVE while flushing")
	tst.AssertEqual(t, heldAtFlush, 0, "locks released before flush")
	tst.AssertEqual(t, tx.State(), txn.StateCommitted, "committed after flush")
	tst.AssertTrue(t, len(tx.WriteSet()) == 0, "write-set discarded")
	tst.AssertTrue(t, len(tx.LockSet()) == 0, "lock-set cleared")
	tst.AssertTrue(t, len(h.undo.Undone()) == 0, "commit never undoes")
	tst.RequireDeepEqual(t, h.log.CallSequence(), []string{"Append", "FlushToDisk"})
	tst.RequireDeepEqual(t, h.log.Kinds(), []txn.LogKind{txn.LogCommit})
	tst.AssertEqual(t, len(h.locks.Unlocked()), 3, "every lock released")
}

func TestManager_CommitTwiceIsNoOp(t *testing.T) {
	h := newHarness(t)
	tx := h.mgr.Begin(nil)
	tst.RequireNoError(t, h.mgr.Commit(tx, h.log))
	before := len(h.log.Calls())

	tst.RequireNoError(t, h.mgr.Commit(tx, h.log))
	tst.RequireNoError(t, h.mgr.Abort(tx, h.log))
	tst.AssertEqual(t, len(h.log.Calls()), before, "no side effects on terminal txn")
	tst.AssertEqual(t, tx.State(), txn.StateCommitted, "terminal state sticks")
}

func TestManager_CommitFlushFailureIsInDoubt(t *testing.T) {
	h := newHarness(t)
	tx := h.mgr.Begin(nil)
	h.lockRecords(t, tx, 1)
	tst.RequireNoError(t, tx.AppendWrite(txn.InsertedRecord("t", rid(0, 0))))
	h.log.SetFailOnFlush(true)

	err := h.mgr.Commit(tx, h.log)
	tst.AssertTrue(t, errors.Is(err, txn.ErrLogFlush), "expected ErrLogFlush")
	tst.AssertEqual(t, tx.State(), txn.StateActive, "not committed")
	tst.AssertTrue(t, tx.CommitLogged(), "commit record logged")

	h.log.SetFailOnFlush(false)
	err = h.mgr.Abort(tx, h.log)
	tst.AssertTrue(t, errors.Is(err, txn.ErrCommitInDoubt), "abort after logged commit refused")
	tst.AssertEqual(t, tx.State(), txn.StateActive, "abort did not report a rollback")
	tst.AssertTrue(t, len(h.undo.Undone()) == 0, "nothing undone")

	tst.RequireNoError(t, h.mgr.Commit(tx, h.log))
	tst.AssertEqual(t, tx.State(), txn.StateCommitted, "retried commit completes")
	tst.RequireDeepEqual(t, h.log.Kinds(), []txn.LogKind{txn.LogCommit})
	tst.RequireDeepEqual(t, h.log.CallSequence(), []string{"Append", "FlushToDisk", "FlushToDisk"})
}

func TestManager_CommitAppendFailureStaysAbortable(t *testing.T) {
	h := newHarness(t)
	tx := h.mgr.Begin(nil)
	h.lockRecords(t, tx, 2)
	tst.RequireNoError(t, tx.AppendWrite(txn.InsertedRecord("t", rid(0, 0))))
	tst.RequireNoError(t, tx.AppendWrite(txn.UpdatedRecord("t", rid(0, 1), storage.RawRecord("old"))))
	h.log.SetFailOnAppend(0)

	err := h.mgr.Commit(tx, h.log)
	tst.AssertTrue(t, errors.Is(err, txn.ErrLogAppend), "expected ErrLogAppend")
	tst.AssertFalse(t, tx.CommitLogged(), "no commit record")
	tst.AssertEqual(t, len(tx.WriteSet()), 2, "write-set kept")
	tst.AssertEqual(t, len(tx.LockSet()), 2, "locks kept")
	tst.AssertEqual(t, h.locks.Held(), 2, "nothing released")

	h.log.SetFailOnAppend(-1)
	tst.RequireNoError(t, h.mgr.Abort(tx, h.log))
	tst.AssertEqual(t, len(h.undo.Undone()), 2, "both entries undone")
	tst.AssertEqual(t, tx.State(), txn.StateAborted, "aborted")
	tst.RequireDeepEqual(t, h.log.Kinds(), []txn.LogKind{txn.LogAbort})
}

func TestManager_CommitWithoutLogManager(t *testing.T) {
	h := newHarness(t)
	tx := h.mgr.Begin(nil)

	err := h.mgr.Commit(tx, nil)
	tst.AssertTrue(t, errors.Is(err, txn.ErrNoLogManager), "expected ErrNoLogManager")
	var te *txn.TxnError
	tst.AssertTrue(t, errors.As(err, &te), "expected *TxnError")
	tst.AssertEqual(t, te.TxnID, tx.ID(), "error carries txn id")
	tst.AssertEqual(t, tx.State(), txn.StateActive, "still active")
}

func TestManager_ReleaseContinuesPastFailures(t *testing.T) {
	h := newHarness(t)
	tx := h.mgr.Begin(nil)
	h.lockRecords(t, tx, 4)
	bad := txn.LockID{Table: "t", RID: rid(0, 1)}
	h.locks.FailUnlock(bad)

	err := h.mgr.Commit(tx, h.log)
	tst.AssertTrue(t, errors.Is(err, txn.ErrReleaseLocks), "expected ErrReleaseLocks")
	tst.AssertEqual(t, len(h.locks.Unlocked()), 4, "every lock attempted")
	tst.RequireDeepEqual(t, tx.LockSet(), []txn.LockID{bad})
	tst.AssertEqual(t, tx.State(), txn.StateActive, "not committed")
	tst.RequireDeepEqual(t, h.log.CallSequence(), []string{"Append"})

	h.locks.AllowUnlock(bad)
	tst.RequireNoError(t, h.mgr.Commit(tx, h.log))
	tst.AssertEqual(t, tx.State(), txn.StateCommitted, "retry commits")
	tst.AssertEqual(t, h.locks.Held(), 0, "remaining lock released")
	tst.RequireDeepEqual(t, h.log.CallSequence(), []string{"Append", "FlushToDisk"})
}

func TestManager_AbortRelocatesRestoredRow(t *testing.T) {
	h := newHarness(t)
	tx := h.mgr.Begin(nil)
	h.lockRecords(t, tx, 1)

	orig, moved := rid(0, 0), rid(0, 5)
	tst.RequireNoError(t, tx.AppendWrite(txn.InsertedRecord("t", orig)))
	tst.RequireNoError(t, tx.AppendWrite(txn.UpdatedRecord("t", orig, storage.RawRecord("v1"))))
	tst.RequireNoError(t, tx.AppendWrite(txn.InsertedRecord("u", orig)))
	tst.RequireNoError(t, tx.AppendWrite(txn.DeletedRecord("t", orig, storage.RawRecord("v2"))))
	h.undo.RestoreAt(orig, moved)

	tst.RequireNoError(t, h.mgr.Abort(tx, h.log))

	undone := h.undo.Undone()
	tst.AssertEqual(t, len(undone), 4, "every entry undone")
	tst.RequireDeepEqual(t, undone[0].RID, orig)
	tst.RequireDeepEqual(t, undone[1].RID, orig)
	tst.AssertEqual(t, undone[1].Table, "u", "other table untouched")
	tst.RequireDeepEqual(t, undone[2].RID, moved)
	tst.RequireDeepEqual(t, undone[3].RID, moved)
	tst.AssertEqual(t, tx.State(), txn.StateAborted, "aborted")
}

func TestManager_AbortUndoesNewestFirst(t *testing.T) {
	h := newHarness(t)
	tx := h.mgr.Begin(nil)
	h.lockRecords(t, tx, 2)

	w1 := txn.InsertedRecord("t", rid(0, 0))
	w2 := txn.UpdatedRecord("t", rid(0, 1), storage.RawRecord("old"))
	w3 := txn.DeletedRecord("t", rid(0, 2), storage.RawRecord("gone"))
	for _, w := range []txn.WriteRecord{w1, w2, w3} {
		tst.RequireNoError(t, tx.AppendWrite(w))
	}

	var contexts []*txn.Context
	var pendingAtUndo []int
	h.undo.OnUndo = func(ctx *txn.Context, wr txn.WriteRecord) {
		contexts = append(contexts, ctx)
		ws := ctx.Txn.WriteSet()
		pendingAtUndo = append(pendingAtUndo, len(ws))
		tst.AssertEqual(t, ws[len(ws)-1].Kind, wr.Kind, "entry still in write-set while undone")
	}

	tst.RequireNoError(t, h.mgr.Abort(tx, h.log))

	undone := h.undo.Undone()
	tst.AssertEqual(t, len(undone), 3, "every entry undone")
	tst.AssertEqual(t, undone[0].Kind, txn.WriteDeleted, "newest first")
	tst.AssertEqual(t, undone[1].Kind, txn.WriteUpdated, "then update")
	tst.AssertEqual(t, undone[2].Kind, txn.WriteInserted, "oldest last")
	tst.RequireDeepEqual(t, pendingAtUndo, []int{3, 2, 1})
	tst.AssertTrue(t, contexts[0] != contexts[1] && contexts[1] != contexts[2], "fresh context per entry")

	tst.AssertEqual(t, tx.State(), txn.StateAborted, "aborted")
	tst.AssertTrue(t, len(tx.WriteSet()) == 0, "write-set drained")
	tst.AssertTrue(t, len(tx.LockSet()) == 0, "locks released")
	tst.AssertEqual(t, h.locks.Held(), 0, "lock manager empty")
	tst.RequireDeepEqual(t, h.log.Kinds(), []txn.LogKind{txn.LogAbort})
	tst.RequireDeepEqual(t, h.log.CallSequence(), []string{"Append", "FlushToDisk"})
}

func TestManager_RollbackFaultIsFatal(t *testing.T) {
	h := newHarness(t)
	tx := h.mgr.Begin(nil)
	for i := range 3 {
		tst.RequireNoError(t, tx.AppendWrite(txn.InsertedRecord("t", rid(0, uint16(i)))))
	}
	h.undo.SetFailOnUndo(1)

	err := h.mgr.Abort(tx, h.log)
	tst.AssertTrue(t, errors.Is(err, txn.ErrRollbackFailed), "expected ErrRollbackFailed")
	var rb *txn.RollbackError
	tst.AssertTrue(t, errors.As(err, &rb), "expected *RollbackError")
	tst.RequireDeepEqual(t, rb.RID, rid(0, 1))
	tst.AssertEqual(t, rb.Pending, 2, "pending entries")

	tst.AssertEqual(t, tx.State(), txn.StateActive, "not aborted")
	tst.AssertEqual(t, len(tx.WriteSet()), 2, "failed entry stays in write-set")
	tst.AssertNotNil(t, h.mgr.Fatal(), "manager poisoned")
	tst.AssertEqual(t, len(h.fatal), 1, "OnFatal called once")
	tst.AssertTrue(t, len(h.log.Calls()) == 0, "no ABORT record")

	other := h.mgr.Begin(nil)
	err = h.mgr.Commit(other, h.log)
	tst.AssertTrue(t, errors.Is(err, txn.ErrRollbackFailed), "poisoned manager refuses commit")
	err = h.mgr.Abort(tx, h.log)
	tst.AssertTrue(t, errors.Is(err, txn.ErrRollbackFailed), "poisoned manager refuses abort")
	tst.AssertEqual(t, len(h.fatal), 1, "OnFatal not repeated")
}

func TestManager_ForgetAndActive(t *testing.T) {
	h := newHarness(t)
	t1 := h.mgr.Begin(nil)
	t2 := h.mgr.Begin(nil)
	t3 := h.mgr.Begin(nil)

	err := h.mgr.Forget(t1.ID())
	tst.AssertTrue(t, errors.Is(err, txn.ErrStillRegistered), "cannot forget active txn")

	tst.RequireNoError(t, h.mgr.Abort(t2, h.log))
	active := h.mgr.Active()
	tst.AssertEqual(t, len(active), 2, "two active")
	tst.AssertTrue(t, active[0] == t1 && active[1] == t3, "ordered by id")

	tst.RequireNoError(t, h.mgr.Forget(t2.ID()))
	tst.RequireNoError(t, h.mgr.Forget(999))
	tst.AssertEqual(t, h.mgr.Len(), 2, "one forgotten")
}
