package record

// RecordType tags every framed log record.
type RecordType uint8

const (
	RecordTypeUnknown RecordType = iota
	RecordTypeBegin
	RecordTypeCommit
	RecordTypeAbort
	RecordTypeInsert
	RecordTypeDelete
	RecordTypeUpdate

	maxRecordType = RecordTypeUpdate
)

func (rt RecordType) String() string {
	switch rt {
	case RecordTypeBegin:
		return "BEGIN"
	case RecordTypeCommit:
		return "COMMIT"
	case RecordTypeAbort:
		return "ABORT"
	case RecordTypeInsert:
		return "INSERT"
	case RecordTypeDelete:
		return "DELETE"
	case RecordTypeUpdate:
		return "UPDATE"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether rt is a known, non-zero type.
func (rt RecordType) Valid() bool {
	return rt > RecordTypeUnknown && rt <= maxRecordType
}

// IsData reports whether records of type rt carry a DataPayload.
func (rt RecordType) IsData() bool {
	return rt == RecordTypeInsert || rt == RecordTypeDelete || rt == RecordTypeUpdate
}

type Record struct {
	Type    RecordType `json:"type"`
	Payload []byte     `json:"payload"`
	CRC     uint32     `json:"crc"`
	// The length of the record type + payload (excluding CRC)
	Len uint32 `json:"len"`
}

type FramedRecord struct {
	Record Record `json:"record"`
	Size   int64  `json:"size"`
	Offset int64  `json:"offset"`
}

// TxnPayload is the payload of BEGIN, COMMIT and ABORT records.
type TxnPayload struct {
	TxnID uint64 `json:"txn_id"`
}

// DataPayload is the payload of INSERT, DELETE and UPDATE records. RID is the encoded
// record id. INSERT carries no Before image and DELETE no After image.
type DataPayload struct {
	TxnID  uint64 `json:"txn_id"`
	Table  string `json:"table"`
	RID    []byte `json:"rid"`
	Before []byte `json:"before,omitempty"`
	After  []byte `json:"after,omitempty"`
}
