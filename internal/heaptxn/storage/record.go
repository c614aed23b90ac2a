package storage

// RawRecord is the fixed-length physical image of one row.
//
// A RawRecord is owned by exactly one holder at a time. Anything that keeps an image
// beyond the call that produced it must Clone it first.
type RawRecord []byte

// Clone returns an independent copy of r. A nil record clones to nil.
func (r RawRecord) Clone() RawRecord {
	if r == nil {
		return nil
	}
	out := make(RawRecord, len(r))
	copy(out, r)
	return out
}

// Len returns the record length in bytes.
func (r RawRecord) Len() int {
	return len(r)
}
