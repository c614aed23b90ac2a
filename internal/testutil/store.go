package testutil

import (
	"sync"

	"github.com/julianstephens/heaptxn/internal/heaptxn/storage"
)

// FaultyStore wraps a record store and fails the configured operation once armed.
type FaultyStore struct {
	storage.RecordStore

	mu   sync.Mutex
	fail map[string]bool
}

func NewFaultyStore(inner storage.RecordStore) *FaultyStore {
	return &FaultyStore{RecordStore: inner, fail: make(map[string]bool)}
}

// FailOn arms or disarms failure for op ("get", "insert", "delete", "update").
func (s *FaultyStore) FailOn(op string, fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[op] = fail
}

func (s *FaultyStore) check(op string, rid *storage.RecordId) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[op] {
		return storage.WrapStoreErr(op, storage.ErrStoreIO, "", rid, Fault(op))
	}
	return nil
}

func (s *FaultyStore) Get(rid storage.RecordId) (storage.RawRecord, error) {
	if err := s.check("get", &rid); err != nil {
		return nil, err
	}
	return s.RecordStore.Get(rid)
}

func (s *FaultyStore) Insert(rec storage.RawRecord) (storage.RecordId, error) {
	if err := s.check("insert", nil); err != nil {
		return storage.RecordId{}, err
	}
	return s.RecordStore.Insert(rec)
}

func (s *FaultyStore) Delete(rid storage.RecordId) error {
	if err := s.check("delete", &rid); err != nil {
		return err
	}
	return s.RecordStore.Delete(rid)
}

func (s *FaultyStore) Update(rid storage.RecordId, rec storage.RawRecord) error {
	if err := s.check("update", &rid); err != nil {
		return err
	}
	return s.RecordStore.Update(rid, rec)
}
