package index_test

import (
	"bytes"
	"errors"
	"testing"

	tst "github.com/julianstephens/go-utils/tests"

	"github.com/julianstephens/heaptxn/internal/heaptxn/index"
	"github.com/julianstephens/heaptxn/internal/heaptxn/storage"
)

// ageName lays out a 12-byte record: age int32 at 0, name char(8) at 4.
var ageName = index.Descriptor{
	Name: "age_name",
	Columns: []index.Column{
		{Name: "age", Offset: 0, Len: 4},
		{Name: "name", Offset: 4, Len: 8},
	},
}

func record(age byte, name string) storage.RawRecord {
	rec := make(storage.RawRecord, 12)
	rec[0] = age
	copy(rec[4:], name)
	return rec
}

func TestPackKey(t *testing.T) {
	rec := record(30, "alice")

	tests := []struct {
		name string
		desc index.Descriptor
		want []byte
	}{
		{
			name: "all columns in order",
			desc: ageName,
			want: append([]byte{30, 0, 0, 0}, []byte("alice\x00\x00\x00")...),
		},
		{
			name: "reordered columns",
			desc: index.Descriptor{Name: "x", Columns: []index.Column{{Offset: 4, Len: 2}, {Offset: 0, Len: 1}}},
			want: []byte{'a', 'l', 30},
		},
		{
			name: "zero-length column contributes nothing",
			desc: index.Descriptor{Name: "x", Columns: []index.Column{{Offset: 0, Len: 1}, {Offset: 5, Len: 0}, {Offset: 4, Len: 1}}},
			want: []byte{30, 'a'},
		},
		{
			name: "no columns",
			desc: index.Descriptor{Name: "x"},
			want: []byte{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := index.PackKey(tt.desc, rec)
			tst.AssertEqual(t, len(got), tt.desc.KeyLen(), "key length")
			tst.AssertTrue(t, bytes.Equal(got, tt.want), "key bytes")
		})
	}
}

func TestPackKey_DoesNotAlias(t *testing.T) {
	rec := record(30, "alice")
	key := index.PackKey(ageName, rec)
	rec[0] = 99
	rec[4] = 'X'
	tst.AssertEqual(t, key[0], byte(30), "key unaffected by record change")
	tst.AssertEqual(t, key[4], byte('a'), "key unaffected by record change")
}

func TestPackKey_EqualValuesEqualKeys(t *testing.T) {
	a := record(30, "bob")
	b := record(30, "bob")
	tst.AssertTrue(t, bytes.Equal(index.PackKey(ageName, a), index.PackKey(ageName, b)), "same values, same key")
	tst.AssertFalse(t, bytes.Equal(index.PackKey(ageName, a), index.PackKey(ageName, record(31, "bob"))), "different values")
}

func TestPackKeyChecked(t *testing.T) {
	_, err := index.PackKeyChecked(ageName, storage.RawRecord(make([]byte, 10)))
	tst.AssertTrue(t, errors.Is(err, index.ErrColumnOutOfRange), "short record rejected")

	key, err := index.PackKeyChecked(ageName, record(1, "z"))
	tst.RequireNoError(t, err)
	tst.AssertEqual(t, len(key), 12, "key length")
}

func TestDescriptor_Validate(t *testing.T) {
	tst.RequireNoError(t, ageName.Validate(12))
	err := ageName.Validate(11)
	tst.AssertTrue(t, errors.Is(err, index.ErrColumnOutOfRange), "column past record end")
	err = index.Descriptor{}.Validate(12)
	tst.AssertTrue(t, errors.Is(err, index.ErrInvalidDescriptor), "unnamed index")
	tst.AssertEqual(t, ageName.String(), "age_name(age,name)", "string form")
}
