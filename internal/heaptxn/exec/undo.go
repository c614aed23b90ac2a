package exec

import (
	"github.com/julianstephens/heaptxn/internal/heaptxn/index"
	"github.com/julianstephens/heaptxn/internal/heaptxn/storage"
	"github.com/julianstephens/heaptxn/internal/heaptxn/txn"
)

// Undo inverts one write-set entry. It runs during abort with a context built for
// this entry alone, so it takes locks exactly like a forward operation. Undo writes no
// data log records and does not re-check index uniqueness; any failure is returned
// unchanged for the transaction manager to treat as fatal.
//
// The returned id is where the row lives afterwards. Only a restored delete moves it.
func (e *Executor) Undo(ctx *txn.Context, wr txn.WriteRecord) (storage.RecordId, error) {
	if ctx == nil || ctx.Txn == nil {
		return wr.RID, wrapMutationErr("undo", ErrTxnNotActive, wr.Table, &wr.RID, 0, nil)
	}
	op := "undo_" + wr.Kind.String()
	b, err := e.bind(op, wr.Table, ctx.Txn.ID())
	if err != nil {
		return wr.RID, err
	}

	rid := wr.RID
	switch wr.Kind {
	case txn.WriteInserted:
		err = e.undoInsert(op, ctx, b, wr.RID)
	case txn.WriteDeleted:
		rid, err = e.undoDelete(op, ctx, b, wr.RID, wr.Before)
	case txn.WriteUpdated:
		err = e.undoUpdate(op, ctx, b, wr.RID, wr.Before)
	default:
		err = wrapMutationErr(op, txn.ErrInvalidKind, wr.Table, &wr.RID, ctx.Txn.ID(), nil)
	}
	if err != nil {
		return wr.RID, err
	}

	e.lg.Debug("write undone", "txn", ctx.Txn.ID(), "table", wr.Table, "rid", rid.String(), "kind", wr.Kind.String())
	return rid, nil
}

// undoInsert deletes the inserted record, packing index keys from its current image.
func (e *Executor) undoInsert(op string, ctx *txn.Context, b *binding, rid storage.RecordId) error {
	table, id := b.table.Name, ctx.Txn.ID()
	if err := ctx.LockExclusive(table, rid); err != nil {
		return wrapMutationErr(op, ErrLock, table, &rid, id, err)
	}
	cur, err := b.store.Get(rid)
	if err != nil {
		return wrapMutationErr(op, ErrStore, table, &rid, id, err)
	}
	for _, bi := range b.indexes {
		if err := bi.ix.DeleteEntry(index.PackKey(bi.desc, cur), ctx.Txn); err != nil {
			return wrapMutationErr(op, ErrIndex, table, &rid, id, err)
		}
	}
	if err := b.store.Delete(rid); err != nil {
		return wrapMutationErr(op, ErrStore, table, &rid, id, err)
	}
	return nil
}

// undoDelete re-inserts the deleted image. The store issues a new id and the indexes
// point at it.
func (e *Executor) undoDelete(op string, ctx *txn.Context, b *binding, was storage.RecordId, before storage.RawRecord) (storage.RecordId, error) {
	table, id := b.table.Name, ctx.Txn.ID()
	rid, err := b.store.Insert(before)
	if err != nil {
		return was, wrapMutationErr(op, ErrStore, table, &was, id, err)
	}
	if err := ctx.LockExclusive(table, rid); err != nil {
		return was, wrapMutationErr(op, ErrLock, table, &rid, id, err)
	}
	for _, bi := range b.indexes {
		if err := bi.ix.InsertEntry(index.PackKey(bi.desc, before), rid, ctx.Txn); err != nil {
			return was, wrapMutationErr(op, ErrIndex, table, &rid, id, err)
		}
	}
	e.lg.Debug("deleted record restored", "txn", id, "table", table, "rid", rid.String(), "was", was.String())
	return rid, nil
}

// undoUpdate writes the old image back at the same id and re-keys the indexes from the
// current image to the old one.
func (e *Executor) undoUpdate(op string, ctx *txn.Context, b *binding, rid storage.RecordId, before storage.RawRecord) error {
	table, id := b.table.Name, ctx.Txn.ID()
	if err := ctx.LockExclusive(table, rid); err != nil {
		return wrapMutationErr(op, ErrLock, table, &rid, id, err)
	}
	cur, err := b.store.Get(rid)
	if err != nil {
		return wrapMutationErr(op, ErrStore, table, &rid, id, err)
	}
	for _, bi := range b.indexes {
		if err := bi.ix.DeleteEntry(index.PackKey(bi.desc, cur), ctx.Txn); err != nil {
			return wrapMutationErr(op, ErrIndex, table, &rid, id, err)
		}
		if err := bi.ix.InsertEntry(index.PackKey(bi.desc, before), rid, ctx.Txn); err != nil {
			return wrapMutationErr(op, ErrIndex, table, &rid, id, err)
		}
	}
	if err := b.store.Update(rid, before); err != nil {
		return wrapMutationErr(op, ErrStore, table, &rid, id, err)
	}
	return nil
}
