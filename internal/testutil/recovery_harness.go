package testutil

import (
	"errors"
	"fmt"
	"slices"

	"github.com/julianstephens/heaptxn/internal/heaptxn/recovery"
	"github.com/julianstephens/heaptxn/internal/heaptxn/storage"
	"github.com/julianstephens/heaptxn/internal/heaptxn/txn"
	"github.com/julianstephens/heaptxn/internal/heaptxn/wal"
	"github.com/julianstephens/heaptxn/internal/heaptxn/wal/record"
	"github.com/julianstephens/heaptxn/internal/logger"
)

// Sequence is a list of log records to be written to segments and analyzed.
type Sequence struct {
	recs []txn.LogRecord
}

func NewSequence() *Sequence {
	return &Sequence{}
}

func (s *Sequence) Begin(txnID uint64) *Sequence {
	return s.add(txn.LogRecord{Kind: txn.LogBegin, TxnID: txnID})
}

func (s *Sequence) Commit(txnID uint64) *Sequence {
	return s.add(txn.LogRecord{Kind: txn.LogCommit, TxnID: txnID})
}

func (s *Sequence) Abort(txnID uint64) *Sequence {
	return s.add(txn.LogRecord{Kind: txn.LogAbort, TxnID: txnID})
}

func (s *Sequence) Insert(txnID uint64, table string, rid storage.RecordId, after []byte) *Sequence {
	return s.add(txn.LogRecord{Kind: txn.LogInsert, TxnID: txnID, Table: table, RID: rid, After: after})
}

func (s *Sequence) Delete(txnID uint64, table string, rid storage.RecordId, before []byte) *Sequence {
	return s.add(txn.LogRecord{Kind: txn.LogDelete, TxnID: txnID, Table: table, RID: rid, Before: before})
}

func (s *Sequence) Update(txnID uint64, table string, rid storage.RecordId, before, after []byte) *Sequence {
	return s.add(txn.LogRecord{
		Kind: txn.LogUpdate, TxnID: txnID, Table: table, RID: rid, Before: before, After: after,
	})
}

func (s *Sequence) add(rec txn.LogRecord) *Sequence {
	s.recs = append(s.recs, rec)
	return s
}

// Records returns the sequence's log records.
func (s *Sequence) Records() []txn.LogRecord {
	return slices.Clone(s.recs)
}

// BuildSegments frames the whole sequence into segment 1.
func (s *Sequence) BuildSegments() (map[uint64][]byte, error) {
	return s.BuildSegmentsWithIDs([]uint64{1})
}

// BuildSegmentsWithIDs frames the sequence into the given segments, one record per
// segment until the last id, which takes the rest.
func (s *Sequence) BuildSegmentsWithIDs(segIDs []uint64) (map[uint64][]byte, error) {
	if len(segIDs) == 0 {
		return nil, errors.New("segment ids cannot be empty")
	}
	segments := make(map[uint64][]byte, len(segIDs))
	for i, rec := range s.recs {
		rt, payload, err := wal.EncodeLogRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("encode record %d: %w", i, err)
		}
		frame, err := record.EncodeFrame(rt, payload)
		if err != nil {
			return nil, fmt.Errorf("frame record %d: %w", i, err)
		}
		segID := segIDs[min(i, len(segIDs)-1)]
		segments[segID] = append(segments[segID], frame...)
	}
	return segments, nil
}

// RecoveryHarness writes a Sequence to in-memory segments and runs log analysis on it.
type RecoveryHarness struct {
	sequence *Sequence
	segments map[uint64][]byte
	result   *recovery.Result
	err      error
	lg       logger.Logger
}

func NewHarness(seq *Sequence) *RecoveryHarness {
	return &RecoveryHarness{sequence: seq, lg: logger.NoOpLogger{}}
}

func (h *RecoveryHarness) WithLogger(lg logger.Logger) *RecoveryHarness {
	h.lg = lg
	return h
}

func (h *RecoveryHarness) BuildSegments() error {
	var err error
	h.segments, err = h.sequence.BuildSegments()
	return err
}

func (h *RecoveryHarness) BuildSegmentsWithIDs(segIDs []uint64) error {
	var err error
	h.segments, err = h.sequence.BuildSegmentsWithIDs(segIDs)
	return err
}

// Truncate cuts n bytes off the end of segment segID, simulating a torn append.
func (h *RecoveryHarness) Truncate(segID uint64, n int) {
	data := h.segments[segID]
	h.segments[segID] = data[:max(0, len(data)-n)]
}

// Analyze runs recovery.Analyze over the built segments.
func (h *RecoveryHarness) Analyze() error {
	if h.segments == nil {
		return errors.New("segments not built yet; call BuildSegments first")
	}
	ids := make([]uint64, 0, len(h.segments))
	for id := range h.segments {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	provider := NewSegmentProvider()
	for _, id := range ids {
		provider.AddSegment(id, h.segments[id])
	}
	h.result, h.err = recovery.Analyze(provider, h.lg)
	return h.err
}

func (h *RecoveryHarness) AssertAnalyzeError(t TestingT, target error) {
	if h.err == nil {
		t.Fatalf("expected analysis to fail, but it succeeded")
	}
	if target != nil && !errors.Is(h.err, target) {
		t.Fatalf("expected error matching %v, got %v", target, h.err)
	}
}

func (h *RecoveryHarness) AssertAnalyzeSuccess(t TestingT) {
	if h.err != nil {
		t.Fatalf("expected analysis to succeed, but got error: %v", h.err)
	}
}

func (h *RecoveryHarness) AssertLastCommittedTxnID(t TestingT, expected uint64) {
	h.requireResult(t)
	if h.result.LastCommittedTxnID != expected {
		t.Fatalf("expected LastCommittedTxnID=%d, got %d", expected, h.result.LastCommittedTxnID)
	}
}

func (h *RecoveryHarness) AssertNextTxnID(t TestingT, expected uint64) {
	h.requireResult(t)
	if h.result.NextTxnID != expected {
		t.Fatalf("expected NextTxnID=%d, got %d", expected, h.result.NextTxnID)
	}
}

func (h *RecoveryHarness) AssertInDoubt(t TestingT, expected ...uint64) {
	h.requireResult(t)
	if !slices.Equal(h.result.InDoubt, expected) {
		t.Fatalf("expected in-doubt txns %v, got %v", expected, h.result.InDoubt)
	}
}

func (h *RecoveryHarness) AssertRecords(t TestingT, expected int) {
	h.requireResult(t)
	if h.result.Records != expected {
		t.Fatalf("expected %d records, got %d", expected, h.result.Records)
	}
}

func (h *RecoveryHarness) Result() *recovery.Result {
	return h.result
}

func (h *RecoveryHarness) requireResult(t TestingT) {
	if h.result == nil {
		t.Fatalf("no analysis result available; call Analyze first")
	}
}

// TestingT is a minimal interface for test assertions.
type TestingT interface {
	Fatalf(format string, args ...interface{})
}
