package exec

import (
	"errors"

	"github.com/julianstephens/heaptxn/internal/heaptxn/catalog"
	"github.com/julianstephens/heaptxn/internal/heaptxn/index"
	"github.com/julianstephens/heaptxn/internal/heaptxn/storage"
	"github.com/julianstephens/heaptxn/internal/heaptxn/txn"
	"github.com/julianstephens/heaptxn/internal/logger"
)

// Catalog is the metadata the executor resolves tables through.
type Catalog interface {
	Table(name string) (*catalog.Table, error)
	Store(name string) (storage.RecordStore, error)
	Index(table string, desc index.Descriptor) (index.SecondaryIndex, error)
}

// Executor applies record mutations to a table's store and indexes as one unit and
// records each in the transaction's write-set. It is also the Rollbacker that inverts
// those write-set entries on abort.
type Executor struct {
	cat Catalog
	lg  logger.Logger
}

var _ txn.Rollbacker = (*Executor)(nil)

func NewExecutor(cat Catalog, lg logger.Logger) *Executor {
	return &Executor{cat: cat, lg: logger.Named(lg, "exec")}
}

// Insert stores rec, indexes it and records the insert. On failure nothing of the
// insert remains and the write-set is unchanged.
func (e *Executor) Insert(ctx *txn.Context, table string, rec storage.RawRecord) (storage.RecordId, error) {
	const op = "insert"
	if err := checkActive(op, ctx, table, nil); err != nil {
		return storage.RecordId{}, err
	}
	id := ctx.Txn.ID()
	b, err := e.bind(op, table, id)
	if err != nil {
		return storage.RecordId{}, err
	}
	if err := b.checkSize(op, rec); err != nil {
		return storage.RecordId{}, wrapMutationErr(op, ErrStore, table, nil, id, err)
	}

	rid, err := b.store.Insert(rec)
	if err != nil {
		return storage.RecordId{}, wrapMutationErr(op, ErrStore, table, nil, id, err)
	}
	dropRecord := func() error { return b.store.Delete(rid) }

	if err := ctx.LockExclusive(table, rid); err != nil {
		return storage.RecordId{}, e.fail(op, ErrLock, table, &rid, id, err, dropRecord)
	}
	if err := ctx.Append(txn.LogRecord{Kind: txn.LogInsert, Table: table, RID: rid, After: rec}); err != nil {
		return storage.RecordId{}, e.fail(op, ErrLog, table, &rid, id, err, dropRecord)
	}
	if err, cerr := b.insertKeys(rid, rec, ctx.Txn); err != nil {
		return storage.RecordId{}, e.fail(op, ErrIndex, table, &rid, id, err, func() error {
			return errors.Join(cerr, dropRecord())
		})
	}
	if err := ctx.Txn.AppendWrite(txn.InsertedRecord(table, rid)); err != nil {
		return storage.RecordId{}, e.fail(op, ErrTxnNotActive, table, &rid, id, err, func() error {
			return errors.Join(removeKeys(b.indexes, rec, ctx.Txn), dropRecord())
		})
	}

	e.lg.Debug("record inserted", "txn", id, "table", table, "rid", rid.String())
	return rid, nil
}

// Delete removes the record at rid and its index entries, keeping the old image in the
// write-set.
func (e *Executor) Delete(ctx *txn.Context, table string, rid storage.RecordId) error {
	const op = "delete"
	if err := checkActive(op, ctx, table, &rid); err != nil {
		return err
	}
	id := ctx.Txn.ID()
	b, err := e.bind(op, table, id)
	if err != nil {
		return err
	}

	if err := ctx.LockExclusive(table, rid); err != nil {
		return wrapMutationErr(op, ErrLock, table, &rid, id, err)
	}
	got, err := b.store.Get(rid)
	if err != nil {
		return wrapMutationErr(op, ErrStore, table, &rid, id, err)
	}
	// The copy outlives the heap record; index keys are packed from it.
	old := got.Clone()

	if err := ctx.Append(txn.LogRecord{Kind: txn.LogDelete, Table: table, RID: rid, Before: old}); err != nil {
		return wrapMutationErr(op, ErrLog, table, &rid, id, err)
	}
	if err, cerr := b.deleteKeys(rid, old, ctx.Txn); err != nil {
		return e.fail(op, ErrIndex, table, &rid, id, err, func() error { return cerr })
	}
	if err := b.store.Delete(rid); err != nil {
		return e.fail(op, ErrStore, table, &rid, id, err, func() error {
			return restoreKeys(b.indexes, rid, old, ctx.Txn)
		})
	}
	if err := ctx.Txn.AppendWrite(txn.DeletedRecord(table, rid, old)); err != nil {
		return e.fail(op, ErrTxnNotActive, table, &rid, id, err, func() error {
			_, rerr := b.reinsert(ctx, old)
			return rerr
		})
	}

	e.lg.Debug("record deleted", "txn", id, "table", table, "rid", rid.String())
	return nil
}

// Update overwrites the record at rid with rec in place and moves its index entries
// from the old keys to the new ones.
func (e *Executor) Update(ctx *txn.Context, table string, rid storage.RecordId, rec storage.RawRecord) error {
	const op = "update"
	if err := checkActive(op, ctx, table, &rid); err != nil {
		return err
	}
	id := ctx.Txn.ID()
	b, err := e.bind(op, table, id)
	if err != nil {
		return err
	}
	if err := b.checkSize(op, rec); err != nil {
		return wrapMutationErr(op, ErrStore, table, &rid, id, err)
	}

	if err := ctx.LockExclusive(table, rid); err != nil {
		return wrapMutationErr(op, ErrLock, table, &rid, id, err)
	}
	got, err := b.store.Get(rid)
	if err != nil {
		return wrapMutationErr(op, ErrStore, table, &rid, id, err)
	}
	old := got.Clone()
	next := rec.Clone()

	if err := ctx.Append(txn.LogRecord{Kind: txn.LogUpdate, Table: table, RID: rid, Before: old, After: next}); err != nil {
		return wrapMutationErr(op, ErrLog, table, &rid, id, err)
	}
	if err, cerr := b.swapKeys(rid, old, next, ctx.Txn); err != nil {
		return e.fail(op, ErrIndex, table, &rid, id, err, func() error { return cerr })
	}
	if err := b.store.Update(rid, next); err != nil {
		return e.fail(op, ErrStore, table, &rid, id, err, func() error {
			return unswapKeys(b.indexes, rid, old, next, ctx.Txn)
		})
	}
	if err := ctx.Txn.AppendWrite(txn.UpdatedRecord(table, rid, old)); err != nil {
		return e.fail(op, ErrTxnNotActive, table, &rid, id, err, func() error {
			return errors.Join(unswapKeys(b.indexes, rid, old, next, ctx.Txn), b.store.Update(rid, old))
		})
	}

	e.lg.Debug("record updated", "txn", id, "table", table, "rid", rid.String())
	return nil
}

// Get reads the record at rid under a shared lock.
func (e *Executor) Get(ctx *txn.Context, table string, rid storage.RecordId) (storage.RawRecord, error) {
	const op = "get"
	if err := checkActive(op, ctx, table, &rid); err != nil {
		return nil, err
	}
	id := ctx.Txn.ID()
	b, err := e.bind(op, table, id)
	if err != nil {
		return nil, err
	}
	if err := ctx.LockShared(table, rid); err != nil {
		return nil, wrapMutationErr(op, ErrLock, table, &rid, id, err)
	}
	rec, err := b.store.Get(rid)
	if err != nil {
		return nil, wrapMutationErr(op, ErrStore, table, &rid, id, err)
	}
	return rec, nil
}

// Lookup resolves key through the named index and reads the record it points at
// under a shared lock.
func (e *Executor) Lookup(ctx *txn.Context, table, indexName string, key []byte) (storage.RecordId, storage.RawRecord, error) {
	const op = "lookup"
	if err := checkActive(op, ctx, table, nil); err != nil {
		return storage.RecordId{}, nil, err
	}
	id := ctx.Txn.ID()
	b, err := e.bind(op, table, id)
	if err != nil {
		return storage.RecordId{}, nil, err
	}
	bi, ok := b.index(indexName)
	if !ok {
		return storage.RecordId{}, nil, wrapMutationErr(op, ErrBind, table, nil, id, catalog.ErrIndexNotFound)
	}
	rid, ok := bi.ix.Lookup(key)
	if !ok {
		return storage.RecordId{}, nil, wrapMutationErr(op, ErrKeyNotFound, table, nil, id, nil)
	}
	rec, err := e.Get(ctx, table, rid)
	if err != nil {
		return storage.RecordId{}, nil, err
	}
	return rid, rec, nil
}

// fail runs undo, if any, and reports the original failure. When undo fails as well
// the error carries ErrCompensate.
func (e *Executor) fail(
	op string,
	sentinel error,
	table string,
	rid *storage.RecordId,
	txnID uint64,
	cause error,
	undo func() error,
) error {
	if undo != nil {
		if cerr := undo(); cerr != nil {
			e.lg.Error("compensation failed", cerr, "op", op, "txn", txnID, "table", table)
			return wrapMutationErr(op, ErrCompensate, table, rid, txnID, errors.Join(cause, cerr))
		}
	}
	return wrapMutationErr(op, sentinel, table, rid, txnID, cause)
}

func checkActive(op string, ctx *txn.Context, table string, rid *storage.RecordId) error {
	if ctx == nil || ctx.Txn == nil {
		return wrapMutationErr(op, ErrTxnNotActive, table, rid, 0, nil)
	}
	if ctx.Txn.State() != txn.StateActive || ctx.Txn.CommitLogged() {
		return wrapMutationErr(op, ErrTxnNotActive, table, rid, ctx.Txn.ID(), txn.ErrNotActive)
	}
	return nil
}
