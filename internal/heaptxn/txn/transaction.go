package txn

import (
	"slices"
	"strings"
	"sync"

	"github.com/julianstephens/heaptxn/internal/heaptxn/storage"
)

// Transaction is the unit of atomicity. Its write-set is the undo log, appended in
// the order mutations were applied; its lock-set holds every record lock acquired
// on its behalf until commit or abort releases them.
//
// A Transaction is used by one executor at a time, but the manager may inspect it
// from other goroutines, so all mutable state sits behind mu.
type Transaction struct {
	id      uint64
	startTS uint64

	mu       sync.Mutex
	state    State
	writeSet []WriteRecord
	lockSet  map[LockID]LockMode

	// commitLogged is set once the COMMIT record is in the log. From then on the
	// transaction can only finish as COMMITTED.
	commitLogged bool
}

func newTransaction(id, startTS uint64) *Transaction {
	return &Transaction{
		id:      id,
		startTS: startTS,
		state:   StateActive,
		lockSet: make(map[LockID]LockMode),
	}
}

func (t *Transaction) ID() uint64      { return t.id }
func (t *Transaction) StartTS() uint64 { return t.startTS }

func (t *Transaction) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// WriteSet returns a copy of the write-set in application order.
func (t *Transaction) WriteSet() []WriteRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.writeSet)
}

// AppendWrite records a mutation for rollback. Only ACTIVE transactions whose
// commit has not been logged accept writes.
func (t *Transaction) AppendWrite(wr WriteRecord) error {
	switch wr.Kind {
	case WriteInserted, WriteDeleted, WriteUpdated:
	default:
		return wrapTxnErr("append_write", ErrInvalidKind, t.id, nil)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateActive || t.commitLogged {
		return wrapTxnErr("append_write", ErrNotActive, t.id, nil)
	}
	t.writeSet = append(t.writeSet, wr)
	return nil
}

// lastWrite returns the newest write-set entry without removing it.
func (t *Transaction) lastWrite() (WriteRecord, int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.writeSet)
	if n == 0 {
		return WriteRecord{}, 0, false
	}
	return t.writeSet[n-1], n, true
}

func (t *Transaction) popWrite() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n := len(t.writeSet); n > 0 {
		t.writeSet[n-1] = WriteRecord{}
		t.writeSet = t.writeSet[:n-1]
	}
}

// relocateWrites repoints the remaining entries for table/from at to. Undoing a
// delete restores the row under a new id, and older entries for that row must follow.
func (t *Transaction) relocateWrites(table string, from, to storage.RecordId) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for i := range t.writeSet {
		if t.writeSet[i].Table == table && t.writeSet[i].RID == from {
			t.writeSet[i].RID = to
			n++
		}
	}
	return n
}

// CommitLogged reports whether a COMMIT record was appended for t. An ACTIVE
// transaction with a logged commit is in doubt until Commit is retried.
func (t *Transaction) CommitLogged() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.commitLogged
}

func (t *Transaction) markCommitLogged() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.commitLogged = true
}

func (t *Transaction) dropWrites() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeSet = nil
}

// LockSet returns the held locks ordered by table then record id.
func (t *Transaction) LockSet() []LockID {
	t.mu.Lock()
	ids := make([]LockID, 0, len(t.lockSet))
	for id := range t.lockSet {
		ids = append(ids, id)
	}
	t.mu.Unlock()

	slices.SortFunc(ids, func(a, b LockID) int {
		if c := strings.Compare(a.Table, b.Table); c != 0 {
			return c
		}
		return a.RID.Compare(b.RID)
	})
	return ids
}

// Holds reports the mode t holds on the given record, if any.
func (t *Transaction) Holds(table string, rid storage.RecordId) (LockMode, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.lockSet[LockID{Table: table, RID: rid}]
	return m, ok
}

// addLock records a granted lock, keeping the stronger mode on re-acquisition.
func (t *Transaction) addLock(id LockID, mode LockMode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.lockSet[id]; ok && cur >= mode {
		return
	}
	t.lockSet[id] = mode
}

func (t *Transaction) removeLock(id LockID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.lockSet, id)
}

func (t *Transaction) setState(s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = s
}
