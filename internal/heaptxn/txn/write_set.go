package txn

import (
	"github.com/julianstephens/heaptxn/internal/heaptxn/storage"
)

// WriteKind is the closed set of mutations a write-set can hold.
type WriteKind uint8

const (
	WriteInserted WriteKind = iota + 1
	WriteDeleted
	WriteUpdated
)

func (k WriteKind) String() string {
	switch k {
	case WriteInserted:
		return "inserted"
	case WriteDeleted:
		return "deleted"
	case WriteUpdated:
		return "updated"
	default:
		return "unknown"
	}
}

// WriteRecord is one undo-log entry. Before is the image the mutation replaced; it is
// nil for WriteInserted because the stored record is its own image.
type WriteRecord struct {
	Kind   WriteKind
	Table  string
	RID    storage.RecordId
	Before storage.RawRecord
}

// InsertedRecord records that rid was inserted into table.
func InsertedRecord(table string, rid storage.RecordId) WriteRecord {
	return WriteRecord{Kind: WriteInserted, Table: table, RID: rid}
}

// DeletedRecord records that rid, holding before, was deleted from table.
func DeletedRecord(table string, rid storage.RecordId, before storage.RawRecord) WriteRecord {
	return WriteRecord{Kind: WriteDeleted, Table: table, RID: rid, Before: before.Clone()}
}

// UpdatedRecord records that rid, holding before, was overwritten in place.
func UpdatedRecord(table string, rid storage.RecordId, before storage.RawRecord) WriteRecord {
	return WriteRecord{Kind: WriteUpdated, Table: table, RID: rid, Before: before.Clone()}
}
