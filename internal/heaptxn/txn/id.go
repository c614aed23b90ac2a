package txn

import (
	"math"
	"sync"
)

// IDAllocator hands out monotonically increasing transaction ids for one process
// lifetime. 0 is reserved as "unset".
type IDAllocator interface {
	// Next reserves and returns the next transaction id.
	Next() uint64

	// Peek returns the id Next would hand out, without reserving it.
	Peek() uint64

	// SetNext moves the allocator forward so the next id is next.
	SetNext(next uint64) error
}

// CounterAllocator is the default in-memory IDAllocator.
type CounterAllocator struct {
	mu   sync.Mutex
	next uint64
}

// NewCounterAllocator constructs an allocator whose first id is next (>= 1).
func NewCounterAllocator(next uint64) (*CounterAllocator, error) {
	if next < 1 {
		return nil, &TxnIDError{Err: ErrInvalidTxnID, Have: next, Want: 1}
	}
	return &CounterAllocator{next: next}, nil
}

// Next reserves and returns the next id. The counter saturates at MaxUint64 rather
// than wrapping back into ids that may still be registered.
func (a *CounterAllocator) Next() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.next
	if a.next < math.MaxUint64 {
		a.next++
	}
	return id
}

func (a *CounterAllocator) Peek() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.next
}

// SetNext never moves the allocator backwards.
func (a *CounterAllocator) SetNext(next uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if next < 1 {
		return &TxnIDError{Err: ErrInvalidTxnID, Have: next, Want: 1}
	}
	if next < a.next {
		return &TxnIDError{Err: ErrTxnIDRegression, Have: next, Want: a.next}
	}
	a.next = next
	return nil
}
