package txn

import (
	"github.com/julianstephens/heaptxn/internal/heaptxn/storage"
)

// Context bundles what the mutation protocol needs for one transaction: the lock
// manager, the log manager and the transaction itself. It is cheap to build and is
// built fresh for each rollback step.
type Context struct {
	Locks LockManager
	Log   LogManager
	Txn   *Transaction
}

func NewContext(locks LockManager, log LogManager, t *Transaction) *Context {
	return &Context{Locks: locks, Log: log, Txn: t}
}

// LockShared takes a shared lock on the record unless the transaction already holds it.
func (c *Context) LockShared(table string, rid storage.RecordId) error {
	return c.lock(table, rid, LockShared)
}

// LockExclusive takes an exclusive lock on the record, upgrading a held shared lock.
func (c *Context) LockExclusive(table string, rid storage.RecordId) error {
	return c.lock(table, rid, LockExclusive)
}

func (c *Context) lock(table string, rid storage.RecordId, mode LockMode) error {
	if held, ok := c.Txn.Holds(table, rid); ok && held >= mode {
		return nil
	}
	id := LockID{Table: table, RID: rid}
	if c.Locks != nil {
		if err := c.Locks.Lock(c.Txn, id, mode); err != nil {
			return err
		}
	}
	c.Txn.addLock(id, mode)
	return nil
}

// Append writes rec to the log with the transaction id filled in. With no log manager
// attached it does nothing.
func (c *Context) Append(rec LogRecord) error {
	if c.Log == nil {
		return nil
	}
	rec.TxnID = c.Txn.ID()
	if err := c.Log.Append(rec); err != nil {
		return wrapTxnErr("log_append", ErrLogAppend, c.Txn.ID(), err)
	}
	return nil
}
