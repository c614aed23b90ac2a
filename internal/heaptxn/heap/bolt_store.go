package heap

import (
	"errors"

	"go.etcd.io/bbolt"

	"github.com/julianstephens/heaptxn/internal/heaptxn/storage"
)

// BoltDB is a single bbolt file holding one bucket per table.
type BoltDB struct {
	db   *bbolt.DB
	path string
}

// BoltStore is the record store of one table inside a BoltDB.
//
// Bucket sequence numbers drive RecordId allocation; bbolt never rewinds a bucket
// sequence, so ids are not reused across restarts either.
type BoltStore struct {
	db           *bbolt.DB
	table        string
	bucket       []byte
	recordSize   int
	slotsPerPage uint16
}

// OpenBoltDB opens or creates the bbolt file at path.
func OpenBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, storage.WrapStoreErr("open", storage.ErrStoreIO, "", nil, err)
	}
	return &BoltDB{db: db, path: path}, nil
}

// Path returns the bbolt file path.
func (b *BoltDB) Path() string {
	return b.path
}

// Store returns the record store for table, creating its bucket if needed.
func (b *BoltDB) Store(table string, recordSize int) (*BoltStore, error) {
	bucket := []byte("table:" + table)
	err := b.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		return nil, storage.WrapStoreErr("create_bucket", storage.ErrStoreIO, table, nil, err)
	}
	return &BoltStore{
		db:           b.db,
		table:        table,
		bucket:       bucket,
		recordSize:   recordSize,
		slotsPerPage: DefaultSlotsPerPage,
	}, nil
}

// Close closes the underlying bbolt file. Stores obtained from b become unusable.
func (b *BoltDB) Close() error {
	if err := b.db.Close(); err != nil {
		return storage.WrapStoreErr("close", storage.ErrStoreIO, "", nil, err)
	}
	return nil
}

func (s *BoltStore) Get(rid storage.RecordId) (storage.RawRecord, error) {
	var out storage.RawRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(s.bucket).Get(rid.Encode())
		if v == nil {
			return storage.ErrRecordNotFound
		}
		// bbolt memory is only valid for the life of the tx.
		out = storage.RawRecord(v).Clone()
		return nil
	})
	if err != nil {
		return nil, s.wrap("get", &rid, err)
	}
	return out, nil
}

func (s *BoltStore) Insert(rec storage.RawRecord) (storage.RecordId, error) {
	if err := checkSize(s.table, s.recordSize, rec); err != nil {
		return storage.RecordId{}, err
	}

	var rid storage.RecordId
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		rid, err = ridFromSeq(seq-1, s.slotsPerPage)
		if err != nil {
			return err
		}
		return b.Put(rid.Encode(), rec.Clone())
	})
	if err != nil {
		return storage.RecordId{}, s.wrap("insert", nil, err)
	}
	return rid, nil
}

func (s *BoltStore) Delete(rid storage.RecordId) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		key := rid.Encode()
		if b.Get(key) == nil {
			return storage.ErrRecordNotFound
		}
		return b.Delete(key)
	})
	if err != nil {
		return s.wrap("delete", &rid, err)
	}
	return nil
}

func (s *BoltStore) Update(rid storage.RecordId, rec storage.RawRecord) error {
	if err := checkSize(s.table, s.recordSize, rec); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		key := rid.Encode()
		if b.Get(key) == nil {
			return storage.ErrRecordNotFound
		}
		return b.Put(key, rec.Clone())
	})
	if err != nil {
		return s.wrap("update", &rid, err)
	}
	return nil
}

// Scan copies the bucket out under a read tx and then calls fn, so fn is free to
// write to the same database.
func (s *BoltStore) Scan(fn func(rid storage.RecordId, rec storage.RawRecord) error) error {
	type entry struct {
		rid storage.RecordId
		rec storage.RawRecord
	}
	var entries []entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).ForEach(func(k, v []byte) error {
			rid, err := storage.DecodeRecordId(k)
			if err != nil {
				return err
			}
			entries = append(entries, entry{rid: rid, rec: storage.RawRecord(v).Clone()})
			return nil
		})
	})
	if err != nil {
		return s.wrap("scan", nil, err)
	}
	for _, e := range entries {
		if err := fn(e.rid, e.rec); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op; the owning BoltDB closes the file.
func (s *BoltStore) Close() error {
	return nil
}

func (s *BoltStore) wrap(op string, rid *storage.RecordId, err error) error {
	var se *storage.StoreError
	switch {
	case errors.As(err, &se):
		return err
	case errors.Is(err, storage.ErrRecordNotFound):
		return storage.WrapStoreErr(op, storage.ErrRecordNotFound, s.table, rid, nil)
	case errors.Is(err, storage.ErrStoreFull):
		return storage.WrapStoreErr(op, storage.ErrStoreFull, s.table, rid, err)
	case errors.Is(err, bbolt.ErrDatabaseNotOpen):
		return storage.WrapStoreErr(op, storage.ErrStoreClosed, s.table, rid, err)
	default:
		return storage.WrapStoreErr(op, storage.ErrStoreIO, s.table, rid, err)
	}
}
