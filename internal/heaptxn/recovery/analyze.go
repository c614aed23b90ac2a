package recovery

import (
	"errors"

	"github.com/julianstephens/go-utils/validator"

	"github.com/julianstephens/heaptxn/internal/heaptxn/errorutil"
	"github.com/julianstephens/heaptxn/internal/heaptxn/txn"
	"github.com/julianstephens/heaptxn/internal/heaptxn/wal"
	"github.com/julianstephens/heaptxn/internal/logger"
)

// Result summarizes the log found at open.
type Result struct {
	Records            int
	NextTxnID          uint64
	LastCommittedTxnID uint64
	Committed          int
	Aborted            int

	// InDoubt lists transactions with no COMMIT or ABORT record. Their effects are
	// reported, not undone.
	InDoubt []uint64

	// LastValid is the position of the last record read.
	LastValid wal.Position
}

// Analyze reads the whole log and reconstructs transaction outcomes so a reopened
// engine never reissues a transaction id.
func Analyze(p wal.SegmentProvider, lg logger.Logger) (*Result, error) {
	if lg == nil {
		lg = logger.NoOpLogger{}
	}

	ids := p.SegmentIDs()
	if err := validateSegments(ids); err != nil {
		lg.Error("segment validation failed", err)
		return nil, &AnalysisError{Coordinates: &errorutil.Coordinates{}, Err: errors.Join(ErrSegmentOrder, err)}
	}
	lg.Info("starting log analysis", "total_segs", len(ids))

	h := NewHistoryStateMachine()
	res := &Result{}
	err := wal.ReadLogRecords(p, func(pos wal.Position, rec txn.LogRecord) error {
		if err := h.Apply(rec); err != nil {
			return &AnalysisError{
				Coordinates: &errorutil.Coordinates{TxnID: &rec.TxnID, SegId: &pos.SegID, Offset: &pos.Offset},
				Kind:        rec.Kind,
				Err:         err,
			}
		}
		res.Records++
		res.LastValid = pos
		return nil
	})
	if err != nil {
		lg.Error("log analysis failed", err, "records", res.Records)
		return nil, err
	}

	res.NextTxnID = h.NextTxnID()
	res.LastCommittedTxnID = h.MaxCommittedTxnID()
	res.Committed, res.Aborted = h.Counts()
	res.InDoubt = h.InDoubt()

	if len(res.InDoubt) > 0 {
		lg.Warn("transactions without outcome in log", "count", len(res.InDoubt), "txns", res.InDoubt)
	}
	lg.Info(
		"log analysis complete",
		"records",
		res.Records,
		"next_txn_id",
		res.NextTxnID,
		"last_committed_txn_id",
		res.LastCommittedTxnID,
	)
	return res, nil
}

// validateSegments checks that the given segment IDs are well-ordered, consecutive, and non-zero.
func validateSegments(ids []uint64) error {
	v := validator.Numbers[uint64]()

	if len(ids) == 0 {
		return nil
	}

	if err := v.ValidateNonZero(ids[0]); err != nil {
		return err
	}

	for i := 1; i < len(ids); i++ {
		if err := v.ValidateNonZero(ids[i]); err != nil {
			return err
		}
		if err := v.ValidateConsecutive(ids[i-1], ids[i]); err != nil {
			return err
		}
	}

	return nil
}
