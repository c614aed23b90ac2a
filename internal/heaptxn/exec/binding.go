package exec

import (
	"errors"

	"github.com/julianstephens/heaptxn/internal/heaptxn/catalog"
	"github.com/julianstephens/heaptxn/internal/heaptxn/index"
	"github.com/julianstephens/heaptxn/internal/heaptxn/storage"
	"github.com/julianstephens/heaptxn/internal/heaptxn/txn"
)

type boundIndex struct {
	desc index.Descriptor
	ix   index.SecondaryIndex
}

// binding is a table resolved to its live store and indexes for one operation.
type binding struct {
	table   *catalog.Table
	store   storage.RecordStore
	indexes []boundIndex
}

func (e *Executor) bind(op, table string, txnID uint64) (*binding, error) {
	t, err := e.cat.Table(table)
	if err != nil {
		return nil, wrapMutationErr(op, ErrBind, table, nil, txnID, err)
	}
	store, err := e.cat.Store(table)
	if err != nil {
		return nil, wrapMutationErr(op, ErrBind, table, nil, txnID, err)
	}
	descs := t.Descriptors()
	b := &binding{table: t, store: store, indexes: make([]boundIndex, 0, len(descs))}
	for _, d := range descs {
		ix, err := e.cat.Index(table, d)
		if err != nil {
			return nil, wrapMutationErr(op, ErrBind, table, nil, txnID, err)
		}
		b.indexes = append(b.indexes, boundIndex{desc: d, ix: ix})
	}
	return b, nil
}

func (b *binding) index(name string) (boundIndex, bool) {
	for _, bi := range b.indexes {
		if bi.desc.Name == name {
			return bi, true
		}
	}
	return boundIndex{}, false
}

func (b *binding) checkSize(op string, rec storage.RawRecord) error {
	if rec.Len() != b.table.RecordSize {
		return storage.WrapStoreErr(op, storage.ErrRecordSize, b.table.Name, nil, nil)
	}
	return nil
}

// reinsert stores img under a fresh id, locks it and indexes it.
func (b *binding) reinsert(ctx *txn.Context, img storage.RawRecord) (storage.RecordId, error) {
	rid, err := b.store.Insert(img)
	if err != nil {
		return storage.RecordId{}, err
	}
	if err := ctx.LockExclusive(b.table.Name, rid); err != nil {
		return rid, err
	}
	if err, cerr := b.insertKeys(rid, img, ctx.Txn); err != nil {
		return rid, errors.Join(err, cerr)
	}
	return rid, nil
}

// insertKeys adds rec's key to every index at rid. If one insert fails the keys added
// so far are removed again; cerr reports a failure of that cleanup.
func (b *binding) insertKeys(rid storage.RecordId, rec storage.RawRecord, t *txn.Transaction) (err, cerr error) {
	for i, bi := range b.indexes {
		if err := bi.ix.InsertEntry(index.PackKey(bi.desc, rec), rid, t); err != nil {
			return err, removeKeys(b.indexes[:i], rec, t)
		}
	}
	return nil, nil
}

// deleteKeys removes rec's key from every index. If one delete fails the keys removed
// so far are put back at rid.
func (b *binding) deleteKeys(rid storage.RecordId, rec storage.RawRecord, t *txn.Transaction) (err, cerr error) {
	for i, bi := range b.indexes {
		if err := bi.ix.DeleteEntry(index.PackKey(bi.desc, rec), t); err != nil {
			return err, restoreKeys(b.indexes[:i], rid, rec, t)
		}
	}
	return nil, nil
}

// swapKeys moves every index entry for rid from the key of from to the key of to.
// A failure puts the indexes back the way they were.
func (b *binding) swapKeys(rid storage.RecordId, from, to storage.RawRecord, t *txn.Transaction) (err, cerr error) {
	for i, bi := range b.indexes {
		if err := bi.ix.DeleteEntry(index.PackKey(bi.desc, from), t); err != nil {
			return err, unswapKeys(b.indexes[:i], rid, from, to, t)
		}
		if err := bi.ix.InsertEntry(index.PackKey(bi.desc, to), rid, t); err != nil {
			back := bi.ix.InsertEntry(index.PackKey(bi.desc, from), rid, t)
			return err, errors.Join(back, unswapKeys(b.indexes[:i], rid, from, to, t))
		}
	}
	return nil, nil
}

func removeKeys(indexes []boundIndex, rec storage.RawRecord, t *txn.Transaction) error {
	var errs []error
	for i := len(indexes) - 1; i >= 0; i-- {
		bi := indexes[i]
		if err := bi.ix.DeleteEntry(index.PackKey(bi.desc, rec), t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func restoreKeys(indexes []boundIndex, rid storage.RecordId, rec storage.RawRecord, t *txn.Transaction) error {
	var errs []error
	for i := len(indexes) - 1; i >= 0; i-- {
		bi := indexes[i]
		if err := bi.ix.InsertEntry(index.PackKey(bi.desc, rec), rid, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// unswapKeys reverses a completed swapKeys over indexes.
func unswapKeys(indexes []boundIndex, rid storage.RecordId, from, to storage.RawRecord, t *txn.Transaction) error {
	var errs []error
	for i := len(indexes) - 1; i >= 0; i-- {
		bi := indexes[i]
		if err := bi.ix.DeleteEntry(index.PackKey(bi.desc, to), t); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := bi.ix.InsertEntry(index.PackKey(bi.desc, from), rid, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
