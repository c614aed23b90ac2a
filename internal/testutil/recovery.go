package testutil

import (
	"bytes"
	"errors"
	"io"

	"github.com/julianstephens/heaptxn/internal/heaptxn/wal"
)

// SegmentReader is an in-memory wal.SegmentReader.
type SegmentReader struct {
	SegmentID uint64
	Data      []byte
	pos       int64
	Closed    bool
}

func (m *SegmentReader) SegID() uint64 {
	return m.SegmentID
}

func (m *SegmentReader) SeekTo(offset int64) error {
	if offset < 0 || offset > int64(len(m.Data)) {
		return errors.New("seek out of range")
	}
	m.pos = offset
	return nil
}

func (m *SegmentReader) Reader() io.Reader {
	return bytes.NewReader(m.Data[m.pos:])
}

func (m *SegmentReader) Close() error {
	m.Closed = true
	return nil
}

// SegmentProvider is an in-memory wal.SegmentProvider.
type SegmentProvider struct {
	Segments map[uint64]*SegmentReader
	SegIDs   []uint64
}

var _ wal.SegmentProvider = (*SegmentProvider)(nil)

func NewSegmentProvider() *SegmentProvider {
	return &SegmentProvider{Segments: make(map[uint64]*SegmentReader)}
}

// AddSegment adds a segment. Ids must be added in ascending order.
func (p *SegmentProvider) AddSegment(segID uint64, data []byte) {
	p.Segments[segID] = &SegmentReader{SegmentID: segID, Data: data}
	p.SegIDs = append(p.SegIDs, segID)
}

func (p *SegmentProvider) SegmentIDs() []uint64 {
	return p.SegIDs
}

func (p *SegmentProvider) OpenSegment(segID uint64) (wal.SegmentReader, error) {
	sr, ok := p.Segments[segID]
	if !ok {
		return nil, errors.New("segment not found")
	}
	sr.pos = 0
	return sr, nil
}
