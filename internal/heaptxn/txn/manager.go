package txn

import (
	"errors"
	"slices"
	"sync"

	"go.uber.org/atomic"

	"github.com/julianstephens/heaptxn/internal/heaptxn/storage"
	"github.com/julianstephens/heaptxn/internal/logger"
)

// Rollbacker inverts one write-set entry. The mutation executor implements it.
// Undo returns the id the row holds once the entry is undone; for a deleted row
// that is the id it was restored under, otherwise wr.RID.
type Rollbacker interface {
	Undo(ctx *Context, wr WriteRecord) (storage.RecordId, error)
}

// ManagerOpts tunes a Manager.
type ManagerOpts struct {
	// OnFatal, if set, is called once when a rollback fault leaves the engine
	// inconsistent.
	OnFatal func(err error)
}

// Manager drives transactions from begin to a terminal state and owns the table of
// live transactions.
//
// Registration happens in Begin. Entries stay in the table after commit or abort so
// callers can still query the outcome; Forget removes a terminal entry.
type Manager struct {
	ids   IDAllocator
	locks LockManager
	undo  Rollbacker
	opts  ManagerOpts
	lg    logger.Logger

	clock atomic.Uint64

	mu    sync.RWMutex
	table map[uint64]*Transaction

	fatalOnce sync.Once
	fatal     atomic.Error
}

// NewManager wires a manager. undo may be nil only if no transaction ever writes.
func NewManager(ids IDAllocator, locks LockManager, undo Rollbacker, opts ManagerOpts, lg logger.Logger) *Manager {
	if lg == nil {
		lg = logger.NoOpLogger{}
	}
	return &Manager{
		ids:   ids,
		locks: locks,
		undo:  undo,
		opts:  opts,
		lg:    lg,
		table: make(map[uint64]*Transaction),
	}
}

// Begin registers and returns a transaction. With existing == nil a new ACTIVE
// transaction is allocated with the next id and logical timestamp; otherwise existing
// is re-registered and returned unchanged.
func (m *Manager) Begin(existing *Transaction) *Transaction {
	t := existing
	if t == nil {
		t = newTransaction(m.ids.Next(), m.clock.Inc())
		m.lg.Debug("transaction begun", "txn_id", t.ID(), "start_ts", t.StartTS())
	}

	m.mu.Lock()
	m.table[t.ID()] = t
	m.mu.Unlock()
	return t
}

// Commit makes t's effects permanent. The COMMIT record is appended while t still
// holds its write-set and locks, so a failed append leaves t fully abortable. After
// that the write-set is discarded and every lock is released before the log is
// flushed; t only becomes COMMITTED once the flush returns. Calling Commit on nil or
// on a non-ACTIVE transaction does nothing.
//
// If releasing locks or flushing fails after the append, t stays ACTIVE with
// CommitLogged set. Abort then refuses with ErrCommitInDoubt and calling Commit again
// finishes the remaining steps without logging a second COMMIT.
func (m *Manager) Commit(t *Transaction, log LogManager) error {
	if t == nil || t.State() != StateActive {
		return nil
	}
	if err := m.Fatal(); err != nil {
		return err
	}
	if log == nil {
		return wrapTxnErr("commit", ErrNoLogManager, t.ID(), nil)
	}

	if !t.CommitLogged() {
		if err := log.Append(LogRecord{Kind: LogCommit, TxnID: t.ID()}); err != nil {
			m.lg.Error("commit: log append failed", err, "txn_id", t.ID())
			return wrapTxnErr("commit", ErrLogAppend, t.ID(), err)
		}
		t.markCommitLogged()
	}

	t.dropWrites()

	if err := m.releaseLocks(t); err != nil {
		m.lg.Error("commit: release locks failed", err, "txn_id", t.ID())
		return wrapTxnErr("commit", ErrReleaseLocks, t.ID(), err)
	}

	if err := log.FlushToDisk(); err != nil {
		m.lg.Error("commit: log flush failed", err, "txn_id", t.ID())
		return wrapTxnErr("commit", ErrLogFlush, t.ID(), err)
	}

	t.setState(StateCommitted)
	m.lg.Debug("transaction committed", "txn_id", t.ID())
	return nil
}

// Abort rolls t back by inverting its write-set newest-first, then releases its locks
// and logs ABORT. A failure while inverting an entry is fatal: the manager is poisoned,
// OnFatal runs and a *RollbackError is returned with t still ACTIVE. A transaction
// whose COMMIT is already logged cannot be aborted.
func (m *Manager) Abort(t *Transaction, log LogManager) error {
	if t == nil || t.State() != StateActive {
		return nil
	}
	if err := m.Fatal(); err != nil {
		return err
	}
	if t.CommitLogged() {
		return wrapTxnErr("abort", ErrCommitInDoubt, t.ID(), nil)
	}
	if log == nil {
		return wrapTxnErr("abort", ErrNoLogManager, t.ID(), nil)
	}

	for {
		wr, pending, ok := t.lastWrite()
		if !ok {
			break
		}
		rid, err := m.rollback(t, log, wr)
		if err != nil {
			rbErr := &RollbackError{
				TxnID:   t.ID(),
				Pending: pending,
				Kind:    wr.Kind,
				Table:   wr.Table,
				RID:     wr.RID,
				Cause:   err,
			}
			m.setFatal(rbErr)
			return rbErr
		}
		t.popWrite()
		if rid != wr.RID {
			n := t.relocateWrites(wr.Table, wr.RID, rid)
			m.lg.Debug("restored row relocated", "txn_id", t.ID(), "table", wr.Table,
				"from", wr.RID.String(), "to", rid.String(), "entries", n)
		}
	}

	if err := m.releaseLocks(t); err != nil {
		m.lg.Error("abort: release locks failed", err, "txn_id", t.ID())
		return wrapTxnErr("abort", ErrReleaseLocks, t.ID(), err)
	}

	if err := log.Append(LogRecord{Kind: LogAbort, TxnID: t.ID()}); err != nil {
		m.lg.Error("abort: log append failed", err, "txn_id", t.ID())
		return wrapTxnErr("abort", ErrLogAppend, t.ID(), err)
	}
	if err := log.FlushToDisk(); err != nil {
		m.lg.Error("abort: log flush failed", err, "txn_id", t.ID())
		return wrapTxnErr("abort", ErrLogFlush, t.ID(), err)
	}

	t.setState(StateAborted)
	m.lg.Debug("transaction aborted", "txn_id", t.ID())
	return nil
}

func (m *Manager) rollback(t *Transaction, log LogManager, wr WriteRecord) (storage.RecordId, error) {
	if m.undo == nil {
		return storage.RecordId{}, ErrNoRollbacker
	}
	return m.undo.Undo(NewContext(m.locks, log, t), wr)
}

// releaseLocks tries every held lock even if some fail. Locks that were released are
// dropped from the lock-set; the ones that failed stay so a retry can reach them.
func (m *Manager) releaseLocks(t *Transaction) error {
	var errs []error
	for _, id := range t.LockSet() {
		if m.locks != nil {
			if err := m.locks.Unlock(t, id); err != nil {
				errs = append(errs, err)
				continue
			}
		}
		t.removeLock(id)
	}
	return errors.Join(errs...)
}

func (m *Manager) setFatal(err error) {
	m.fatalOnce.Do(func() {
		m.fatal.Store(err)
		m.lg.Error("rollback failed, engine is no longer consistent", err)
		if m.opts.OnFatal != nil {
			m.opts.OnFatal(err)
		}
	})
}

// Fatal returns the rollback fault that poisoned the manager, or nil.
func (m *Manager) Fatal() error {
	return m.fatal.Load()
}

// Lookup returns the registered transaction with the given id.
func (m *Manager) Lookup(id uint64) (*Transaction, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.table[id]
	return t, ok
}

// Forget drops a terminal transaction from the table. Forgetting an unknown id is a
// no-op; forgetting an ACTIVE transaction is an error.
func (m *Manager) Forget(id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.table[id]
	if !ok {
		return nil
	}
	if !t.State().Terminal() {
		return wrapTxnErr("forget", ErrStillRegistered, id, nil)
	}
	delete(m.table, id)
	return nil
}

// Active returns the ACTIVE transactions ordered by id.
func (m *Manager) Active() []*Transaction {
	m.mu.RLock()
	out := make([]*Transaction, 0, len(m.table))
	for _, t := range m.table {
		if t.State() == StateActive {
			out = append(out, t)
		}
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Transaction) int {
		switch {
		case a.ID() < b.ID():
			return -1
		case a.ID() > b.ID():
			return 1
		}
		return 0
	})
	return out
}

// Len returns how many transactions are registered, terminal ones included.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.table)
}
