package index

import (
	"fmt"

	"github.com/julianstephens/heaptxn/internal/heaptxn/storage"
)

// PackKey builds the lookup key for rec under d: each column's bytes copied in
// descriptor order with nothing in between. The result is always d.KeyLen() bytes and
// never aliases rec. Bytes a column would read past the end of rec are left zero; use
// PackKeyChecked where rec has not been size-checked.
func PackKey(d Descriptor, rec storage.RawRecord) []byte {
	key := make([]byte, d.KeyLen())
	pos := 0
	for _, c := range d.Columns {
		if c.Offset < len(rec) {
			copy(key[pos:pos+c.Len], rec[c.Offset:min(c.end(), len(rec))])
		}
		pos += c.Len
	}
	return key
}

// PackKeyChecked is PackKey that fails instead of zero-filling.
func PackKeyChecked(d Descriptor, rec storage.RawRecord) ([]byte, error) {
	for _, c := range d.Columns {
		if c.Offset < 0 || c.Len < 0 || c.end() > len(rec) {
			return nil, wrapIndexErr("pack_key", ErrColumnOutOfRange, d.Name, 0,
				fmt.Errorf("column %q [%d,%d) outside record of %d bytes", c.Name, c.Offset, c.end(), len(rec)))
		}
	}
	return PackKey(d, rec), nil
}
