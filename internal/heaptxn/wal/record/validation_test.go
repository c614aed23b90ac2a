package record_test

import (
	"errors"
	"testing"

	tst "github.com/julianstephens/go-utils/tests"

	"github.com/julianstephens/heaptxn/internal/heaptxn/wal/record"
)

func TestValidateRecordFrame(t *testing.T) {
	insert, err := record.EncodeDataPayload(record.RecordTypeInsert, &record.DataPayload{TxnID: 1, Table: "t", RID: rid, After: []byte("x")})
	tst.RequireNoError(t, err)

	tests := []struct {
		name    string
		rt      record.RecordType
		payload []byte
		want    error
	}{
		{name: "begin", rt: record.RecordTypeBegin, payload: record.EncodeTxnPayload(1)},
		{name: "abort", rt: record.RecordTypeAbort, payload: record.EncodeTxnPayload(1)},
		{name: "commit short", rt: record.RecordTypeCommit, payload: []byte{1}, want: record.ErrInvalidLength},
		{name: "insert", rt: record.RecordTypeInsert, payload: insert},
		{name: "insert as delete", rt: record.RecordTypeDelete, payload: insert, want: record.ErrCodecInvalid},
		{name: "garbage data", rt: record.RecordTypeUpdate, payload: []byte{1, 2}, want: record.ErrCodecTruncated},
		{name: "unknown", rt: record.RecordTypeUnknown, payload: record.EncodeTxnPayload(1), want: record.ErrInvalidType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := record.ValidateRecordFrame(tt.rt, tt.payload)
			if tt.want == nil {
				tst.RequireNoError(t, err)
				return
			}
			tst.AssertTrue(t, errors.Is(err, tt.want), "unexpected error kind")
		})
	}
}
