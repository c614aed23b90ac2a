package heap

import (
	"sync"

	"github.com/dgraph-io/ristretto/v2"
	"go.uber.org/atomic"

	"github.com/julianstephens/heaptxn/internal/heaptxn/storage"
)

// CachedStore fronts a RecordStore with a ristretto cache of record images.
//
// Writes go to the inner store first and then evict the cached image. The mutex keeps
// a reader's miss-then-fill from racing a concurrent eviction.
type CachedStore struct {
	mu    sync.RWMutex
	inner storage.RecordStore
	cache *ristretto.Cache[uint64, storage.RawRecord]

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCachedStore wraps inner with a cache holding up to maxEntries images.
func NewCachedStore(inner storage.RecordStore, maxEntries int64) (*CachedStore, error) {
	if maxEntries < 1 {
		maxEntries = 1
	}
	cache, err := ristretto.NewCache(&ristretto.Config[uint64, storage.RawRecord]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
		// Cost is counted in entries, not bytes.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, storage.WrapStoreErr("open_cache", storage.ErrStoreIO, "", nil, err)
	}
	return &CachedStore{inner: inner, cache: cache}, nil
}

func cacheKey(rid storage.RecordId) uint64 {
	return uint64(rid.Page)<<16 | uint64(rid.Slot)
}

func (s *CachedStore) Get(rid storage.RecordId) (storage.RawRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if rec, ok := s.cache.Get(cacheKey(rid)); ok {
		s.hits.Inc()
		return rec.Clone(), nil
	}
	s.misses.Inc()

	rec, err := s.inner.Get(rid)
	if err != nil {
		return nil, err
	}
	s.cache.Set(cacheKey(rid), rec.Clone(), 1)
	return rec, nil
}

// Insert never touches the cache; the new id cannot have a cached image.
func (s *CachedStore) Insert(rec storage.RawRecord) (storage.RecordId, error) {
	return s.inner.Insert(rec)
}

func (s *CachedStore) Delete(rid storage.RecordId) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.inner.Delete(rid)
	s.cache.Del(cacheKey(rid))
	return err
}

func (s *CachedStore) Update(rid storage.RecordId, rec storage.RawRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.inner.Update(rid, rec)
	s.cache.Del(cacheKey(rid))
	return err
}

func (s *CachedStore) Scan(fn func(rid storage.RecordId, rec storage.RawRecord) error) error {
	return s.inner.Scan(fn)
}

// Wait blocks until buffered cache writes have been applied.
func (s *CachedStore) Wait() {
	s.cache.Wait()
}

// Stats returns the cache hit and miss counts.
func (s *CachedStore) Stats() (hits, misses uint64) {
	return s.hits.Load(), s.misses.Load()
}

func (s *CachedStore) Close() error {
	s.cache.Close()
	return s.inner.Close()
}
