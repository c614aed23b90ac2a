package testutil

import "go.uber.org/atomic"

// IDAllocator is a txn.IDAllocator for tests. Unlike the counter it accepts any
// SetNext, so tests can rewind it, and it counts how many ids it has issued.
type IDAllocator struct {
	next   atomic.Uint64
	issued atomic.Int64
}

func NewIDAllocator(first uint64) *IDAllocator {
	a := &IDAllocator{}
	a.next.Store(first)
	return a
}

func (a *IDAllocator) Next() uint64 {
	a.issued.Inc()
	return a.next.Inc() - 1
}

func (a *IDAllocator) Peek() uint64 { return a.next.Load() }

func (a *IDAllocator) SetNext(next uint64) error {
	a.next.Store(next)
	return nil
}

// Issued returns the number of ids handed out by Next.
func (a *IDAllocator) Issued() int64 { return a.issued.Load() }
