package txn

import (
	"github.com/julianstephens/heaptxn/internal/heaptxn/storage"
)

// LogKind identifies a log record.
type LogKind uint8

const (
	LogBegin LogKind = iota + 1
	LogCommit
	LogAbort
	LogInsert
	LogDelete
	LogUpdate
)

func (k LogKind) String() string {
	switch k {
	case LogBegin:
		return "BEGIN"
	case LogCommit:
		return "COMMIT"
	case LogAbort:
		return "ABORT"
	case LogInsert:
		return "INSERT"
	case LogDelete:
		return "DELETE"
	case LogUpdate:
		return "UPDATE"
	default:
		return "UNKNOWN"
	}
}

// LogRecord is what the write path hands to the log manager. Table, RID and the images
// are only set for data records.
type LogRecord struct {
	Kind   LogKind
	TxnID  uint64
	Table  string
	RID    storage.RecordId
	Before storage.RawRecord
	After  storage.RawRecord
}

// LogManager is the durability sink.
type LogManager interface {
	Append(rec LogRecord) error
	// FlushToDisk blocks until everything appended so far is on stable storage.
	FlushToDisk() error
}
