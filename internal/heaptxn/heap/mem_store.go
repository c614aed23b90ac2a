package heap

import (
	"math"
	"slices"
	"sync"

	"github.com/julianstephens/heaptxn/internal/heaptxn/storage"
)

// DefaultSlotsPerPage is the number of record slots addressed per logical page.
const DefaultSlotsPerPage = 256

// MemStore is an in-memory record store. Slots are handed out sequentially and a freed
// slot is never reissued, so a re-inserted image always gets a fresh RecordId.
type MemStore struct {
	mu sync.RWMutex

	table        string
	recordSize   int
	slotsPerPage uint16

	next    uint64
	records map[storage.RecordId]storage.RawRecord
	closed  bool
}

// NewMemStore creates an empty store for table whose records are recordSize bytes long.
// A recordSize of 0 disables the length check.
func NewMemStore(table string, recordSize int) *MemStore {
	return &MemStore{
		table:        table,
		recordSize:   recordSize,
		slotsPerPage: DefaultSlotsPerPage,
		records:      make(map[storage.RecordId]storage.RawRecord),
	}
}

// Get returns a copy of the record at rid.
func (s *MemStore) Get(rid storage.RecordId) (storage.RawRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.WrapStoreErr("get", storage.ErrStoreClosed, s.table, &rid, nil)
	}
	rec, ok := s.records[rid]
	if !ok {
		return nil, storage.WrapStoreErr("get", storage.ErrRecordNotFound, s.table, &rid, nil)
	}
	return rec.Clone(), nil
}

// Insert stores a copy of rec in the next free slot.
func (s *MemStore) Insert(rec storage.RawRecord) (storage.RecordId, error) {
	if err := checkSize(s.table, s.recordSize, rec); err != nil {
		return storage.RecordId{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.RecordId{}, storage.WrapStoreErr("insert", storage.ErrStoreClosed, s.table, nil, nil)
	}

	rid, err := ridFromSeq(s.next, s.slotsPerPage)
	if err != nil {
		return storage.RecordId{}, storage.WrapStoreErr("insert", storage.ErrStoreFull, s.table, nil, err)
	}
	s.next++
	s.records[rid] = rec.Clone()
	return rid, nil
}

// Delete removes the record at rid.
func (s *MemStore) Delete(rid storage.RecordId) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.WrapStoreErr("delete", storage.ErrStoreClosed, s.table, &rid, nil)
	}
	if _, ok := s.records[rid]; !ok {
		return storage.WrapStoreErr("delete", storage.ErrRecordNotFound, s.table, &rid, nil)
	}
	delete(s.records, rid)
	return nil
}

// Update overwrites the record at rid with a copy of rec.
func (s *MemStore) Update(rid storage.RecordId, rec storage.RawRecord) error {
	if err := checkSize(s.table, s.recordSize, rec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.WrapStoreErr("update", storage.ErrStoreClosed, s.table, &rid, nil)
	}
	if _, ok := s.records[rid]; !ok {
		return storage.WrapStoreErr("update", storage.ErrRecordNotFound, s.table, &rid, nil)
	}
	s.records[rid] = rec.Clone()
	return nil
}

// Scan visits a snapshot of the live records in RecordId order. fn may call back into
// the store.
func (s *MemStore) Scan(fn func(rid storage.RecordId, rec storage.RawRecord) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return storage.WrapStoreErr("scan", storage.ErrStoreClosed, s.table, nil, nil)
	}
	rids := make([]storage.RecordId, 0, len(s.records))
	snap := make(map[storage.RecordId]storage.RawRecord, len(s.records))
	for rid, rec := range s.records {
		rids = append(rids, rid)
		snap[rid] = rec.Clone()
	}
	s.mu.RUnlock()

	slices.SortFunc(rids, storage.RecordId.Compare)
	for _, rid := range rids {
		if err := fn(rid, snap[rid]); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of live records.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *MemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func ridFromSeq(seq uint64, slotsPerPage uint16) (storage.RecordId, error) {
	page := seq / uint64(slotsPerPage)
	if page > math.MaxUint32 {
		return storage.RecordId{}, storage.ErrStoreFull
	}
	return storage.RecordId{
		Page: uint32(page),                      //nolint:gosec
		Slot: uint16(seq % uint64(slotsPerPage)), //nolint:gosec
	}, nil
}

func checkSize(table string, want int, rec storage.RawRecord) error {
	if want > 0 && rec.Len() != want {
		return &storage.StoreError{
			Err:   storage.ErrRecordSize,
			Op:    "check_size",
			Table: table,
		}
	}
	return nil
}
