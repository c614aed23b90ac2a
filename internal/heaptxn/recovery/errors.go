package recovery

import (
	"errors"
	"fmt"

	"github.com/julianstephens/heaptxn/internal/heaptxn/errorutil"
	"github.com/julianstephens/heaptxn/internal/heaptxn/txn"
)

var ErrSegmentOrder = errors.New("recovery: segment ids not consecutive")

// AnalysisError locates a failure of the log analysis pass.
type AnalysisError struct {
	*errorutil.Coordinates
	Kind txn.LogKind
	Err  error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("recovery: analysis failed kind=%s %s: %v", e.Kind, e.FormatCoordinates(), e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }
