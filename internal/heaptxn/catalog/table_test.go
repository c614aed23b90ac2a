package catalog_test

import (
	"errors"
	"testing"

	tst "github.com/julianstephens/go-utils/tests"

	"github.com/julianstephens/heaptxn/internal/heaptxn/catalog"
	"github.com/julianstephens/heaptxn/internal/heaptxn/storage"
)

func people(t *testing.T) *catalog.Table {
	t.Helper()
	tbl, err := catalog.NewTable("people",
		[]catalog.Column{
			{Name: "age", Type: catalog.TypeInt},
			{Name: "name", Type: catalog.TypeChar, Len: 8},
			{Name: "score", Type: catalog.TypeFloat},
		},
		[]catalog.IndexDef{{Name: "by_age_name", Columns: []string{"age", "name"}}},
	)
	tst.RequireNoError(t, err)
	return tbl
}

func TestNewTableLayout(t *testing.T) {
	tbl := people(t)

	tst.AssertEqual(t, tbl.RecordSize, 20, "record size")
	name, ok := tbl.Column("name")
	tst.AssertTrue(t, ok, "expected name column")
	tst.AssertEqual(t, name.Offset, 4, "name offset")
	score, _ := tbl.Column("score")
	tst.AssertEqual(t, score.Offset, 12, "score offset")
	tst.AssertEqual(t, score.Len, 8, "float len")

	d, ok := tbl.Descriptor("by_age_name")
	tst.AssertTrue(t, ok, "expected index descriptor")
	tst.AssertEqual(t, d.KeyLen(), 12, "key len")
	tst.AssertEqual(t, d.String(), "by_age_name(age,name)", "descriptor")
	tst.AssertEqual(t, len(tbl.Descriptors()), 1, "descriptor count")
}

func TestNewTableRejects(t *testing.T) {
	tests := []struct {
		name    string
		cols    []catalog.Column
		indexes []catalog.IndexDef
		want    error
	}{
		{
			name: "no columns",
			want: catalog.ErrInvalidSchema,
		},
		{
			name: "char without len",
			cols: []catalog.Column{{Name: "a", Type: catalog.TypeChar}},
			want: catalog.ErrInvalidSchema,
		},
		{
			name: "unknown type",
			cols: []catalog.Column{{Name: "a", Type: "blob"}},
			want: catalog.ErrInvalidSchema,
		},
		{
			name: "duplicate column",
			cols: []catalog.Column{{Name: "a", Type: catalog.TypeInt}, {Name: "a", Type: catalog.TypeInt}},
			want: catalog.ErrInvalidSchema,
		},
		{
			name:    "index on unknown column",
			cols:    []catalog.Column{{Name: "a", Type: catalog.TypeInt}},
			indexes: []catalog.IndexDef{{Name: "ix", Columns: []string{"b"}}},
			want:    catalog.ErrColumnNotFound,
		},
		{
			name:    "index without columns",
			cols:    []catalog.Column{{Name: "a", Type: catalog.TypeInt}},
			indexes: []catalog.IndexDef{{Name: "ix"}},
			want:    catalog.ErrInvalidSchema,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := catalog.NewTable("t", tt.cols, tt.indexes)
			tst.AssertTrue(t, errors.Is(err, tt.want), "unexpected error kind")
		})
	}
}

func TestRowRoundTrip(t *testing.T) {
	tbl := people(t)

	rec, err := tbl.EncodeRow(map[string]string{"age": "-30", "name": "alice", "score": "1.5"})
	tst.RequireNoError(t, err)
	tst.AssertEqual(t, rec.Len(), 20, "image len")
	tst.AssertEqual(t, string(rec[4:12]), "alice   ", "char is space padded")

	vals, err := tbl.DecodeRow(rec)
	tst.RequireNoError(t, err)
	tst.RequireDeepEqual(t, vals, []string{"-30", "alice", "1.5"})
}

func TestEncodeRowDefaults(t *testing.T) {
	tbl := people(t)

	rec, err := tbl.EncodeRow(map[string]string{"name": "bob"})
	tst.RequireNoError(t, err)

	vals, err := tbl.DecodeRow(rec)
	tst.RequireNoError(t, err)
	tst.RequireDeepEqual(t, vals, []string{"0", "bob", "0"})
}

func TestEncodeRowRejects(t *testing.T) {
	tbl := people(t)

	_, err := tbl.EncodeRow(map[string]string{"height": "1"})
	tst.AssertTrue(t, errors.Is(err, catalog.ErrColumnNotFound), "expected ErrColumnNotFound")

	_, err = tbl.EncodeRow(map[string]string{"age": "old"})
	tst.AssertTrue(t, errors.Is(err, catalog.ErrInvalidValue), "expected ErrInvalidValue for int")

	_, err = tbl.EncodeRow(map[string]string{"age": "4294967296"})
	tst.AssertTrue(t, errors.Is(err, catalog.ErrInvalidValue), "expected ErrInvalidValue for int32 overflow")

	_, err = tbl.EncodeRow(map[string]string{"name": "bartholomew"})
	tst.AssertTrue(t, errors.Is(err, catalog.ErrInvalidValue), "expected ErrInvalidValue for long char")

	_, err = tbl.DecodeRow(storage.RawRecord("short"))
	tst.AssertTrue(t, errors.Is(err, storage.ErrRecordSize), "expected ErrRecordSize")
}
