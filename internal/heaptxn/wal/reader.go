package wal

import (
	"github.com/julianstephens/heaptxn/internal/heaptxn/wal/record"
)

// Position locates a record in the log.
type Position struct {
	SegID  uint64
	Offset int64
}

// Scan visits every record in segment order until fn returns an error. A torn record
// at the very end of the newest segment ends the scan cleanly; any other parse failure
// is reported as ErrCorruptLog.
func Scan(p SegmentProvider, fn func(pos Position, rec record.FramedRecord) error) error {
	segs := p.SegmentIDs()
	for i, segID := range segs {
		last := i == len(segs)-1
		if err := scanSegment(p, segID, last, fn); err != nil {
			return err
		}
	}
	return nil
}

func scanSegment(p SegmentProvider, segID uint64, last bool, fn func(Position, record.FramedRecord) error) error {
	sr, err := p.OpenSegment(segID)
	if err != nil {
		return err
	}
	defer sr.Close() //nolint:errcheck

	fr := record.NewFrameReader(sr.Reader())
	for {
		rec, err := fr.Next()
		if err != nil {
			if record.IsCleanEOF(err) || (last && record.IsTornTail(err)) {
				return nil
			}
			return wrapLogErr("scan_segment", ErrCorruptLog, "", segID, err)
		}
		if err := fn(Position{SegID: segID, Offset: rec.Offset}, rec); err != nil {
			return err
		}
	}
}
