package errorutil_test

import (
	"testing"

	tst "github.com/julianstephens/go-utils/tests"

	"github.com/julianstephens/heaptxn/internal/heaptxn/errorutil"
	"github.com/julianstephens/heaptxn/internal/heaptxn/storage"
)

func TestFormatCoordinates(t *testing.T) {
	table := "people"
	rid := storage.RecordId{Page: 2, Slot: 7}
	txnID := uint64(11)
	seg := uint64(3)
	off := int64(4096)

	tests := []struct {
		name   string
		coords *errorutil.Coordinates
		want   string
	}{
		{name: "nil", coords: nil, want: ""},
		{name: "empty", coords: &errorutil.Coordinates{}, want: ""},
		{name: "record", coords: &errorutil.Coordinates{Table: &table, RID: &rid}, want: "table=people rid=2:7"},
		{name: "txn only", coords: &errorutil.Coordinates{TxnID: &txnID}, want: "txn=11"},
		{
			name:   "all",
			coords: &errorutil.Coordinates{Table: &table, RID: &rid, TxnID: &txnID, SegId: &seg, Offset: &off},
			want:   "table=people rid=2:7 txn=11 seg=3 at=4096",
		},
		{name: "log position", coords: &errorutil.Coordinates{SegId: &seg, Offset: &off}, want: "seg=3 at=4096"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tst.AssertEqual(t, tt.coords.String(), tt.want, "coordinates")
		})
	}
}
