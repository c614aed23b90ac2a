package db

import "time"

// Stats is a point-in-time view of engine counters.
type Stats struct {
	ActiveTxns   int
	LocksHeld    int
	LockWaits    int64
	LockTimeouts int64
	LogAppended  uint64
	LogFlushes   uint64
	CacheHits    uint64
	CacheMisses  uint64
}

func (db *DB) Stats() Stats {
	s := Stats{
		ActiveTxns: len(db.txns.Active()),
		LocksHeld:  db.locks.Len(),
	}
	s.LockWaits, s.LockTimeouts = db.locks.Stats()
	s.LogAppended, s.LogFlushes = db.logm.Stats()
	for _, c := range db.caches {
		hits, misses := c.Stats()
		s.CacheHits += hits
		s.CacheMisses += misses
	}
	return s
}

func parseTimeout(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
