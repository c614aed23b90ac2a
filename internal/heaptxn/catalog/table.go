package catalog

import (
	"fmt"

	"github.com/julianstephens/heaptxn/internal/heaptxn/index"
)

// ColumnType is the logical type of a fixed-width column.
type ColumnType string

const (
	TypeInt   ColumnType = "int"   // 4-byte little-endian int32
	TypeFloat ColumnType = "float" // 8-byte little-endian IEEE 754
	TypeChar  ColumnType = "char"  // Len bytes, space padded
)

const (
	intLen   = 4
	floatLen = 8
)

// Column is one column of a table. Offset is derived from column order.
type Column struct {
	Name   string     `json:"name"`
	Type   ColumnType `json:"type"`
	Len    int        `json:"len"`
	Offset int        `json:"offset"`
}

// IndexDef names a secondary index and the columns its key packs, in key order.
type IndexDef struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
}

// Table is the metadata of one heap table: fixed record layout plus its indexes.
type Table struct {
	Name       string     `json:"name"`
	Columns    []Column   `json:"columns"`
	Indexes    []IndexDef `json:"indexes,omitempty"`
	RecordSize int        `json:"record_size"`

	descs []index.Descriptor
}

// NewTable lays out columns back to back, sizes int and float columns, and resolves
// every index to a key descriptor.
func NewTable(name string, columns []Column, indexes []IndexDef) (*Table, error) {
	if name == "" {
		return nil, wrapCatalogErr("new_table", ErrInvalidSchema, name, "", fmt.Errorf("empty table name"))
	}
	if len(columns) == 0 {
		return nil, wrapCatalogErr("new_table", ErrInvalidSchema, name, "", fmt.Errorf("no columns"))
	}

	t := &Table{Name: name, Indexes: indexes}
	seen := make(map[string]bool, len(columns))
	off := 0
	for _, c := range columns {
		if c.Name == "" || seen[c.Name] {
			return nil, wrapCatalogErr("new_table", ErrInvalidSchema, name, c.Name, fmt.Errorf("empty or duplicate column name"))
		}
		seen[c.Name] = true

		switch c.Type {
		case TypeInt:
			c.Len = intLen
		case TypeFloat:
			c.Len = floatLen
		case TypeChar:
			if c.Len <= 0 {
				return nil, wrapCatalogErr("new_table", ErrInvalidSchema, name, c.Name, fmt.Errorf("char column needs len > 0"))
			}
		default:
			return nil, wrapCatalogErr("new_table", ErrInvalidSchema, name, c.Name, fmt.Errorf("unknown type %q", c.Type))
		}
		c.Offset = off
		off += c.Len
		t.Columns = append(t.Columns, c)
	}
	t.RecordSize = off

	idxSeen := make(map[string]bool, len(indexes))
	for _, def := range indexes {
		if idxSeen[def.Name] {
			return nil, wrapCatalogErr("new_table", ErrInvalidSchema, name, "", fmt.Errorf("duplicate index %q", def.Name))
		}
		idxSeen[def.Name] = true

		d, err := t.descriptor(def)
		if err != nil {
			return nil, err
		}
		t.descs = append(t.descs, d)
	}
	return t, nil
}

func (t *Table) descriptor(def IndexDef) (index.Descriptor, error) {
	d := index.Descriptor{Name: def.Name}
	if len(def.Columns) == 0 {
		return d, wrapCatalogErr("index", ErrInvalidSchema, t.Name, "", fmt.Errorf("index %q has no columns", def.Name))
	}
	for _, name := range def.Columns {
		c, ok := t.Column(name)
		if !ok {
			return d, wrapCatalogErr("index", ErrColumnNotFound, t.Name, name, nil)
		}
		d.Columns = append(d.Columns, index.Column{Name: c.Name, Offset: c.Offset, Len: c.Len})
	}
	if err := d.Validate(t.RecordSize); err != nil {
		return d, wrapCatalogErr("index", ErrInvalidSchema, t.Name, "", err)
	}
	return d, nil
}

// Column finds a column by name.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Descriptors returns the key descriptor of every index, in definition order.
func (t *Table) Descriptors() []index.Descriptor {
	return append([]index.Descriptor(nil), t.descs...)
}

// Descriptor returns the key descriptor of the named index.
func (t *Table) Descriptor(name string) (index.Descriptor, bool) {
	for _, d := range t.descs {
		if d.Name == name {
			return d, true
		}
	}
	return index.Descriptor{}, false
}
