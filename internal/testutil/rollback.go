package testutil

import (
	"sync"

	"github.com/julianstephens/heaptxn/internal/heaptxn/storage"
	"github.com/julianstephens/heaptxn/internal/heaptxn/txn"
)

// Rollbacker is a txn.Rollbacker that records the entries it is asked to undo.
type Rollbacker struct {
	mu        sync.Mutex
	calls     []RecordedCall
	failIndex int // -1 means no failure
	restored  map[storage.RecordId]storage.RecordId

	// OnUndo, if set, runs before each Undo returns.
	OnUndo func(ctx *txn.Context, wr txn.WriteRecord)
}

func NewRollbacker() *Rollbacker {
	return &Rollbacker{failIndex: -1}
}

// SetFailOnUndo makes the Undo call with the given 0-based index fail.
func (f *Rollbacker) SetFailOnUndo(index int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failIndex = index
}

// RestoreAt makes undoing a DELETED entry at from report the row restored at to.
func (f *Rollbacker) RestoreAt(from, to storage.RecordId) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.restored == nil {
		f.restored = make(map[storage.RecordId]storage.RecordId)
	}
	f.restored[from] = to
}

func (f *Rollbacker) Undo(ctx *txn.Context, wr txn.WriteRecord) (storage.RecordId, error) {
	f.mu.Lock()
	idx := len(f.calls)
	f.calls = append(f.calls, RecordedCall{Method: "Undo", TxnID: ctx.Txn.ID(), Write: wr})
	fail := f.failIndex == idx
	hook := f.OnUndo
	rid := wr.RID
	if to, ok := f.restored[wr.RID]; ok && wr.Kind == txn.WriteDeleted {
		rid = to
	}
	f.mu.Unlock()

	if hook != nil {
		hook(ctx, wr)
	}
	if fail {
		return wr.RID, Fault("undo")
	}
	return rid, nil
}

// Undone returns the entries passed to Undo, in call order.
func (f *Rollbacker) Undone() []txn.WriteRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]txn.WriteRecord, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Write
	}
	return out
}
