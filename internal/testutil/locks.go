package testutil

import (
	"sync"

	"github.com/julianstephens/heaptxn/internal/heaptxn/txn"
)

// LockManager is a txn.LockManager that grants everything and records every call.
type LockManager struct {
	mu         sync.Mutex
	calls      []RecordedCall
	held       map[txn.LockID]uint64
	failLock   map[txn.LockID]bool
	failUnlock map[txn.LockID]bool
}

func NewLockManager() *LockManager {
	return &LockManager{
		held:       make(map[txn.LockID]uint64),
		failLock:   make(map[txn.LockID]bool),
		failUnlock: make(map[txn.LockID]bool),
	}
}

// FailLock makes Lock on id fail.
func (f *LockManager) FailLock(id txn.LockID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failLock[id] = true
}

// FailUnlock makes Unlock on id fail.
func (f *LockManager) FailUnlock(id txn.LockID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failUnlock[id] = true
}

// AllowUnlock undoes FailUnlock for id.
func (f *LockManager) AllowUnlock(id txn.LockID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.failUnlock, id)
}

func (f *LockManager) Lock(t *txn.Transaction, id txn.LockID, mode txn.LockMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, RecordedCall{Method: "Lock", TxnID: t.ID(), LockID: id, Mode: mode})
	if f.failLock[id] {
		return Fault("lock")
	}
	f.held[id] = t.ID()
	return nil
}

func (f *LockManager) Unlock(t *txn.Transaction, id txn.LockID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, RecordedCall{Method: "Unlock", TxnID: t.ID(), LockID: id})
	if f.failUnlock[id] {
		return Fault("unlock")
	}
	delete(f.held, id)
	return nil
}

// Held returns how many locks are currently granted.
func (f *LockManager) Held() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.held)
}

func (f *LockManager) Calls() []RecordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RecordedCall(nil), f.calls...)
}

// Unlocked returns the ids passed to Unlock, in order.
func (f *LockManager) Unlocked() []txn.LockID {
	var out []txn.LockID
	for _, c := range f.Calls() {
		if c.Method == "Unlock" {
			out = append(out, c.LockID)
		}
	}
	return out
}
