package db

import (
	"errors"

	"github.com/julianstephens/heaptxn/internal/heaptxn/catalog"
	"github.com/julianstephens/heaptxn/internal/heaptxn/exec"
	"github.com/julianstephens/heaptxn/internal/heaptxn/storage"
	"github.com/julianstephens/heaptxn/internal/heaptxn/txn"
)

// Begin starts a transaction and logs its BEGIN record. If the record cannot be
// appended the fresh transaction is aborted and the append error returned.
func (db *DB) Begin() (*txn.Transaction, error) {
	if err := db.guard("begin"); err != nil {
		return nil, err
	}
	t := db.txns.Begin(nil)
	if err := db.logm.Append(txn.LogRecord{Kind: txn.LogBegin, TxnID: t.ID()}); err != nil {
		db.logger.Error("failed to log begin", err, "txn", t.ID())
		if aerr := db.txns.Abort(t, db.logm); aerr != nil {
			err = errors.Join(err, aerr)
		}
		return nil, wrapDBErr("begin", ErrBeginFailed, db.dir, err)
	}
	db.logger.Debug("transaction started", "txn", t.ID())
	return t, nil
}

// Commit commits t and drops it from the transaction table.
func (db *DB) Commit(t *txn.Transaction) error {
	if err := db.guard("commit"); err != nil {
		return err
	}
	if err := db.txns.Commit(t, db.logm); err != nil {
		db.logger.Error("commit failed", err, "txn", txnID(t))
		return wrapDBErr("commit", ErrCommitFailed, db.dir, err)
	}
	db.forget(t)
	db.logger.Info("commit successful", "txn", txnID(t))
	return nil
}

// Abort rolls t back and drops it from the transaction table. A rollback fault makes
// the engine unusable.
func (db *DB) Abort(t *txn.Transaction) error {
	if err := db.guard("abort"); err != nil {
		return err
	}
	if err := db.txns.Abort(t, db.logm); err != nil {
		db.logger.Error("abort failed", err, "txn", txnID(t))
		if errors.Is(err, txn.ErrRollbackFailed) {
			return wrapDBErr("abort", ErrEngineUnusable, db.dir, err)
		}
		return wrapDBErr("abort", ErrAbortFailed, db.dir, err)
	}
	db.forget(t)
	db.logger.Info("abort successful", "txn", txnID(t))
	return nil
}

// Insert adds rec to table inside t.
func (db *DB) Insert(t *txn.Transaction, table string, rec storage.RawRecord) (storage.RecordId, error) {
	if err := db.guard("insert"); err != nil {
		return storage.RecordId{}, err
	}
	rid, err := db.exec.Insert(db.context(t), table, rec)
	if err != nil {
		return storage.RecordId{}, db.opErr("insert", err)
	}
	return rid, nil
}

// Delete removes the record at rid from table inside t.
func (db *DB) Delete(t *txn.Transaction, table string, rid storage.RecordId) error {
	if err := db.guard("delete"); err != nil {
		return err
	}
	if err := db.exec.Delete(db.context(t), table, rid); err != nil {
		return db.opErr("delete", err)
	}
	return nil
}

// Update overwrites the record at rid in table with rec inside t.
func (db *DB) Update(t *txn.Transaction, table string, rid storage.RecordId, rec storage.RawRecord) error {
	if err := db.guard("update"); err != nil {
		return err
	}
	if err := db.exec.Update(db.context(t), table, rid, rec); err != nil {
		return db.opErr("update", err)
	}
	return nil
}

// Get reads the record at rid under a shared lock held by t.
func (db *DB) Get(t *txn.Transaction, table string, rid storage.RecordId) (storage.RawRecord, error) {
	if err := db.guard("get"); err != nil {
		return nil, err
	}
	rec, err := db.exec.Get(db.context(t), table, rid)
	if err != nil {
		return nil, db.opErr("get", err)
	}
	return rec, nil
}

// Lookup finds the record whose key in the named index is key.
func (db *DB) Lookup(t *txn.Transaction, table, indexName string, key []byte) (storage.RecordId, storage.RawRecord, error) {
	if err := db.guard("lookup"); err != nil {
		return storage.RecordId{}, nil, err
	}
	rid, rec, err := db.exec.Lookup(db.context(t), table, indexName, key)
	if err != nil {
		return storage.RecordId{}, nil, db.opErr("lookup", err)
	}
	return rid, rec, nil
}

// Scan visits every record of table in RecordId order without taking locks.
func (db *DB) Scan(table string, fn func(rid storage.RecordId, rec storage.RawRecord) error) error {
	if err := db.guard("scan"); err != nil {
		return err
	}
	store, err := db.catalog.Store(table)
	if err != nil {
		return wrapDBErr("scan", ErrOpFailed, db.dir, err)
	}
	return store.Scan(fn)
}

// Table returns the layout of the named table.
func (db *DB) Table(name string) (*catalog.Table, error) {
	return db.catalog.Table(name)
}

// Tables returns the table names, sorted.
func (db *DB) Tables() []string {
	return db.catalog.Tables()
}

func (db *DB) context(t *txn.Transaction) *txn.Context {
	return txn.NewContext(db.locks, db.logm, t)
}

// opErr wraps a mutation failure. A failed compensation leaves store and indexes out of
// step, which is as bad as a rollback fault.
func (db *DB) opErr(op string, err error) error {
	if errors.Is(err, exec.ErrCompensate) {
		db.markUnusable(err)
		return wrapDBErr(op, ErrEngineUnusable, db.dir, err)
	}
	return wrapDBErr(op, ErrOpFailed, db.dir, err)
}

func (db *DB) forget(t *txn.Transaction) {
	if t == nil {
		return
	}
	if err := db.txns.Forget(t.ID()); err != nil {
		db.logger.Warn("transaction not forgotten", "txn", t.ID(), "error", err)
	}
}

func txnID(t *txn.Transaction) uint64 {
	if t == nil {
		return 0
	}
	return t.ID()
}
