package catalog

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"

	"github.com/julianstephens/heaptxn/internal/heaptxn/storage"
)

// EncodeRow builds a record image from textual column values. Columns missing from
// values are zero (int, float) or blank (char).
func (t *Table) EncodeRow(values map[string]string) (storage.RawRecord, error) {
	for name := range values {
		if _, ok := t.Column(name); !ok {
			return nil, wrapCatalogErr("encode_row", ErrColumnNotFound, t.Name, name, nil)
		}
	}

	rec := make(storage.RawRecord, t.RecordSize)
	for _, c := range t.Columns {
		v, ok := values[c.Name]
		if !ok {
			v = ""
		}
		if err := encodeValue(rec[c.Offset:c.Offset+c.Len], c, v); err != nil {
			return nil, wrapCatalogErr("encode_row", ErrInvalidValue, t.Name, c.Name, err)
		}
	}
	return rec, nil
}

func encodeValue(dst []byte, c Column, v string) error {
	switch c.Type {
	case TypeInt:
		var n int64
		if v != "" {
			var err error
			if n, err = strconv.ParseInt(v, 10, 32); err != nil {
				return err
			}
		}
		binary.LittleEndian.PutUint32(dst, uint32(int32(n))) //nolint:gosec
	case TypeFloat:
		var f float64
		if v != "" {
			var err error
			if f, err = strconv.ParseFloat(v, 64); err != nil {
				return err
			}
		}
		binary.LittleEndian.PutUint64(dst, math.Float64bits(f))
	case TypeChar:
		if len(v) > c.Len {
			return strconv.ErrRange
		}
		n := copy(dst, v)
		for i := n; i < len(dst); i++ {
			dst[i] = ' '
		}
	}
	return nil
}

// DecodeRow renders rec as one string per column, in column order.
func (t *Table) DecodeRow(rec storage.RawRecord) ([]string, error) {
	if len(rec) != t.RecordSize {
		return nil, wrapCatalogErr("decode_row", storage.ErrRecordSize, t.Name, "", nil)
	}
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		b := rec[c.Offset : c.Offset+c.Len]
		switch c.Type {
		case TypeInt:
			out[i] = strconv.FormatInt(int64(int32(binary.LittleEndian.Uint32(b))), 10) //nolint:gosec
		case TypeFloat:
			out[i] = strconv.FormatFloat(math.Float64frombits(binary.LittleEndian.Uint64(b)), 'g', -1, 64)
		case TypeChar:
			out[i] = strings.TrimRight(string(b), " ")
		}
	}
	return out, nil
}

// ColumnNames returns the column names in layout order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}
