package errorutil

import (
	"fmt"
	"strings"

	"github.com/julianstephens/heaptxn/internal/heaptxn/storage"
)

// Coordinates locates an error inside the engine: which table and record it touched,
// which transaction was running, and, for log errors, where in the log it happened.
// Only non-nil fields are rendered.
type Coordinates struct {
	Table *string
	RID   *storage.RecordId
	TxnID *uint64

	// SegId is the log segment the error occurred in.
	SegId *uint64
	// Offset is the byte offset within that segment.
	Offset *int64
}

// FormatCoordinates renders the set fields as "table=t rid=p:s txn=n seg=x at=y".
func (c *Coordinates) FormatCoordinates() string {
	if c == nil {
		return ""
	}

	parts := make([]string, 0, 5)
	if c.Table != nil {
		parts = append(parts, "table="+*c.Table)
	}
	if c.RID != nil {
		parts = append(parts, "rid="+c.RID.String())
	}
	if c.TxnID != nil {
		parts = append(parts, fmt.Sprintf("txn=%d", *c.TxnID))
	}
	if c.SegId != nil {
		parts = append(parts, fmt.Sprintf("seg=%d", *c.SegId))
	}
	if c.Offset != nil {
		parts = append(parts, fmt.Sprintf("at=%d", *c.Offset))
	}
	return strings.Join(parts, " ")
}

func (c *Coordinates) String() string {
	return c.FormatCoordinates()
}
