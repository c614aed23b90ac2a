package txn_test

import (
	"errors"
	"testing"

	tst "github.com/julianstephens/go-utils/tests"

	"github.com/julianstephens/heaptxn/internal/heaptxn/storage"
	"github.com/julianstephens/heaptxn/internal/heaptxn/txn"
	"github.com/julianstephens/heaptxn/internal/testutil"
)

func TestTransaction_AppendWrite(t *testing.T) {
	h := newHarness(t)
	tx := h.mgr.Begin(nil)

	before := storage.RawRecord("abcd")
	wr := txn.UpdatedRecord("t", rid(1, 2), before)
	before[0] = 'z'
	tst.RequireNoError(t, tx.AppendWrite(wr))

	ws := tx.WriteSet()
	tst.AssertEqual(t, len(ws), 1, "one entry")
	tst.AssertEqual(t, string(ws[0].Before), "abcd", "image copied at construction")

	err := tx.AppendWrite(txn.WriteRecord{Table: "t"})
	tst.AssertTrue(t, errors.Is(err, txn.ErrInvalidKind), "zero kind rejected")

	tst.RequireNoError(t, h.mgr.Commit(tx, h.log))
	err = tx.AppendWrite(txn.InsertedRecord("t", rid(0, 0)))
	tst.AssertTrue(t, errors.Is(err, txn.ErrNotActive), "terminal txn rejects writes")
}

func TestContext_LockReuseAndUpgrade(t *testing.T) {
	locks := testutil.NewLockManager()
	log := testutil.NewLogManager()
	mgr := txn.NewManager(testutil.NewIDAllocator(1), locks, nil, txn.ManagerOpts{}, nil)
	tx := mgr.Begin(nil)
	ctx := txn.NewContext(locks, log, tx)

	r := rid(3, 4)
	tst.RequireNoError(t, ctx.LockShared("t", r))
	tst.RequireNoError(t, ctx.LockShared("t", r))
	mode, ok := tx.Holds("t", r)
	tst.AssertTrue(t, ok && mode == txn.LockShared, "holds S")

	tst.RequireNoError(t, ctx.LockExclusive("t", r))
	tst.RequireNoError(t, ctx.LockShared("t", r))
	mode, _ = tx.Holds("t", r)
	tst.AssertEqual(t, mode, txn.LockExclusive, "upgraded to X")

	calls := locks.Calls()
	tst.AssertEqual(t, len(calls), 2, "one S request and one upgrade")
	tst.AssertEqual(t, calls[1].Mode, txn.LockExclusive, "upgrade requested X")

	// Same rid in another table is a different lock.
	tst.RequireNoError(t, ctx.LockShared("u", r))
	tst.AssertEqual(t, len(tx.LockSet()), 2, "two distinct locks")
}

func TestContext_LockFailureNotRecorded(t *testing.T) {
	locks := testutil.NewLockManager()
	mgr := txn.NewManager(testutil.NewIDAllocator(1), locks, nil, txn.ManagerOpts{}, nil)
	tx := mgr.Begin(nil)
	ctx := txn.NewContext(locks, nil, tx)

	locks.FailLock(txn.LockID{Table: "t", RID: rid(0, 0)})
	tst.AssertTrue(t, ctx.LockExclusive("t", rid(0, 0)) != nil, "lock error surfaced")
	tst.AssertTrue(t, len(tx.LockSet()) == 0, "failed lock not in lock-set")
}

func TestContext_AppendStampsTxnID(t *testing.T) {
	log := testutil.NewLogManager()
	ids := testutil.NewIDAllocator(7)
	mgr := txn.NewManager(ids, nil, nil, txn.ManagerOpts{}, nil)
	tx := mgr.Begin(nil)
	tst.AssertEqual(t, ids.Issued(), int64(1), "one id issued")
	ctx := txn.NewContext(nil, log, tx)

	tst.RequireNoError(t, ctx.Append(txn.LogRecord{Kind: txn.LogInsert, Table: "t", RID: rid(0, 1)}))
	calls := log.Calls()
	tst.AssertEqual(t, len(calls), 1, "one append")
	tst.AssertEqual(t, calls[0].TxnID, uint64(7), "txn id stamped")

	log.SetFailOnAppend(1)
	err := ctx.Append(txn.LogRecord{Kind: txn.LogDelete})
	tst.AssertTrue(t, errors.Is(err, txn.ErrLogAppend), "append failure wrapped")
}
