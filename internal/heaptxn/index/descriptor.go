package index

import (
	"fmt"
	"strings"
)

// Column is a fixed byte range of a record.
type Column struct {
	Name   string `json:"name"`
	Offset int    `json:"offset"`
	Len    int    `json:"len"`
}

func (c Column) end() int { return c.Offset + c.Len }

// Descriptor names an index and the ordered columns its key is built from.
type Descriptor struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// KeyLen is the length of every key packed for d.
func (d Descriptor) KeyLen() int {
	n := 0
	for _, c := range d.Columns {
		n += c.Len
	}
	return n
}

// Validate checks that every column fits inside a record of recordSize bytes.
func (d Descriptor) Validate(recordSize int) error {
	if d.Name == "" {
		return wrapIndexErr("validate", ErrInvalidDescriptor, "", 0, fmt.Errorf("empty index name"))
	}
	for _, c := range d.Columns {
		if c.Offset < 0 || c.Len < 0 || c.end() > recordSize {
			return wrapIndexErr("validate", ErrColumnOutOfRange, d.Name, 0,
				fmt.Errorf("column %q [%d,%d) outside record of %d bytes", c.Name, c.Offset, c.end(), recordSize))
		}
	}
	return nil
}

func (d Descriptor) String() string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return fmt.Sprintf("%s(%s)", d.Name, strings.Join(names, ","))
}
