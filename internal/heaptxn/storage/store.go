package storage

// RecordStore is durable keyed storage of fixed-format records for one table.
//
// Implementations copy images on the way in and on the way out, so callers never
// share memory with the store.
type RecordStore interface {
	// Get returns a copy of the record at rid, or ErrRecordNotFound.
	Get(rid RecordId) (RawRecord, error)

	// Insert stores rec and returns the id it was issued.
	Insert(rec RawRecord) (RecordId, error)

	// Delete removes the record at rid, or returns ErrRecordNotFound.
	Delete(rid RecordId) error

	// Update overwrites the record at rid in place, or returns ErrRecordNotFound.
	Update(rid RecordId, rec RawRecord) error

	// Scan calls fn for every live record in RecordId order. Returning an error from fn
	// stops the scan and is returned unchanged.
	Scan(fn func(rid RecordId, rec RawRecord) error) error

	Close() error
}
