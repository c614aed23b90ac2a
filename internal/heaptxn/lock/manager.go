package lock

import (
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/julianstephens/heaptxn/internal/heaptxn/txn"
	"github.com/julianstephens/heaptxn/internal/logger"
)

// Manager is a record lock table for strict two-phase locking. Any number of
// transactions may share a record; an exclusive holder excludes everyone else. A sole
// shared holder can upgrade in place.
//
// Waiters park on the entry's changed channel, which is closed and replaced whenever a
// holder leaves, so every waiter re-checks after each release. There is no deadlock
// detection; a non-zero timeout bounds every wait instead.
type Manager struct {
	mu      sync.Mutex
	entries map[txn.LockID]*entry
	byTxn   map[uint64]map[txn.LockID]struct{}

	timeout time.Duration
	lg      logger.Logger

	waits    atomic.Int64
	timeouts atomic.Int64
}

type entry struct {
	holders map[uint64]txn.LockMode
	changed chan struct{}
}

// NewManager builds a lock table. timeout <= 0 waits forever.
func NewManager(timeout time.Duration, lg logger.Logger) *Manager {
	if lg == nil {
		lg = logger.NoOpLogger{}
	}
	return &Manager{
		entries: make(map[txn.LockID]*entry),
		byTxn:   make(map[uint64]map[txn.LockID]struct{}),
		timeout: timeout,
		lg:      lg,
	}
}

var _ txn.LockManager = (*Manager)(nil)

// Lock blocks until t holds id in at least mode. Re-requesting a held lock is a no-op.
func (m *Manager) Lock(t *txn.Transaction, id txn.LockID, mode txn.LockMode) error {
	if mode != txn.LockShared && mode != txn.LockExclusive {
		return wrapLockErr("lock", ErrInvalidMode, id, t.ID(), mode)
	}

	var deadline <-chan time.Time
	if m.timeout > 0 {
		timer := time.NewTimer(m.timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	waited := false
	for {
		m.mu.Lock()
		e := m.entry(id)
		if grantable(e, t.ID(), mode) {
			if cur, ok := e.holders[t.ID()]; !ok || cur < mode {
				e.holders[t.ID()] = mode
			}
			m.index(t.ID(), id)
			m.mu.Unlock()
			return nil
		}
		ch := e.changed
		m.mu.Unlock()

		if !waited {
			waited = true
			m.waits.Inc()
			m.lg.Debug("lock wait", "txn_id", t.ID(), "lock", id.String(), "mode", mode.String())
		}

		select {
		case <-ch:
		case <-deadline:
			m.timeouts.Inc()
			m.lg.Warn("lock wait timed out", "txn_id", t.ID(), "lock", id.String(), "mode", mode.String())
			return wrapLockErr("lock", ErrLockTimeout, id, t.ID(), mode)
		}
	}
}

// Unlock drops t's hold on id and wakes every waiter on it.
func (m *Manager) Unlock(t *txn.Transaction, id txn.LockID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return wrapLockErr("unlock", ErrNotHeld, id, t.ID(), 0)
	}
	if _, held := e.holders[t.ID()]; !held {
		return wrapLockErr("unlock", ErrNotHeld, id, t.ID(), 0)
	}

	delete(e.holders, t.ID())
	if ids := m.byTxn[t.ID()]; ids != nil {
		delete(ids, id)
		if len(ids) == 0 {
			delete(m.byTxn, t.ID())
		}
	}

	close(e.changed)
	if len(e.holders) == 0 {
		delete(m.entries, id)
		return nil
	}
	e.changed = make(chan struct{})
	return nil
}

// HeldBy returns the locks the lock table believes txnID holds, in table/record order.
func (m *Manager) HeldBy(txnID uint64) []txn.LockID {
	m.mu.Lock()
	out := make([]txn.LockID, 0, len(m.byTxn[txnID]))
	for id := range m.byTxn[txnID] {
		out = append(out, id)
	}
	m.mu.Unlock()

	slices.SortFunc(out, func(a, b txn.LockID) int {
		if c := strings.Compare(a.Table, b.Table); c != 0 {
			return c
		}
		return a.RID.Compare(b.RID)
	})
	return out
}

// Len returns how many records are currently locked.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Stats reports how many requests had to wait and how many of those timed out.
func (m *Manager) Stats() (waits, timeouts int64) {
	return m.waits.Load(), m.timeouts.Load()
}

func (m *Manager) entry(id txn.LockID) *entry {
	e, ok := m.entries[id]
	if !ok {
		e = &entry{
			holders: make(map[uint64]txn.LockMode),
			changed: make(chan struct{}),
		}
		m.entries[id] = e
	}
	return e
}

func (m *Manager) index(txnID uint64, id txn.LockID) {
	ids, ok := m.byTxn[txnID]
	if !ok {
		ids = make(map[txn.LockID]struct{})
		m.byTxn[txnID] = ids
	}
	ids[id] = struct{}{}
}

func grantable(e *entry, txnID uint64, mode txn.LockMode) bool {
	if cur, ok := e.holders[txnID]; ok && cur >= mode {
		return true
	}
	for holder, held := range e.holders {
		if holder == txnID {
			continue
		}
		if mode == txn.LockExclusive || held == txn.LockExclusive {
			return false
		}
	}
	return true
}
