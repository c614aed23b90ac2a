package cli

import (
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/julianstephens/heaptxn/internal/heaptxn/db"
	"github.com/julianstephens/heaptxn/internal/heaptxn/storage"
	"github.com/julianstephens/heaptxn/internal/heaptxn/txn"
	"github.com/julianstephens/heaptxn/internal/heaptxn/wal"
	"github.com/julianstephens/heaptxn/internal/logger"
)

// ScanTable renders every row of table, in RecordId order.
func ScanTable(d *db.DB, table string, w io.Writer) error {
	tbl, err := d.Table(table)
	if err != nil {
		return err
	}

	tw := tablewriter.NewWriter(w)
	tw.SetHeader(append([]string{"rid"}, tbl.ColumnNames()...))
	tw.SetAutoFormatHeaders(false)
	err = d.Scan(table, func(rid storage.RecordId, rec storage.RawRecord) error {
		vals, err := tbl.DecodeRow(rec)
		if err != nil {
			return err
		}
		tw.Append(append([]string{rid.String()}, vals...))
		return nil
	})
	if err != nil {
		return err
	}
	tw.Render()
	return nil
}

// DumpLog renders every record in the write-ahead log of the data directory at dir.
func DumpLog(dir string, w io.Writer, lg logger.Logger) error {
	l, err := wal.OpenLog(filepath.Join(dir, db.WALDirName), wal.LogOpts{}, lg)
	if err != nil {
		return err
	}
	defer l.Close() //nolint:errcheck

	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"segment", "offset", "kind", "txn", "table", "rid", "before", "after"})
	tw.SetAutoFormatHeaders(false)
	err = wal.ReadLogRecords(l, func(pos wal.Position, rec txn.LogRecord) error {
		row := []string{
			strconv.FormatUint(pos.SegID, 10),
			strconv.FormatInt(pos.Offset, 10),
			rec.Kind.String(),
			strconv.FormatUint(rec.TxnID, 10),
			"", "", "", "",
		}
		if isDataRecord(rec.Kind) {
			row[4] = rec.Table
			row[5] = rec.RID.String()
			row[6] = hex.EncodeToString(rec.Before)
			row[7] = hex.EncodeToString(rec.After)
		}
		tw.Append(row)
		return nil
	})
	if err != nil {
		return err
	}
	tw.Render()
	return nil
}

// PrintStats renders the open-time log analysis, the engine counters and the row count
// of every table.
func PrintStats(d *db.DB, w io.Writer) error {
	rec := d.Recovery()
	s := d.Stats()

	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"stat", "value"})
	tw.SetAutoFormatHeaders(false)
	tw.AppendBulk([][]string{
		{"log records", strconv.Itoa(rec.Records)},
		{"committed txns", strconv.Itoa(rec.Committed)},
		{"aborted txns", strconv.Itoa(rec.Aborted)},
		{"in-doubt txns", fmt.Sprint(rec.InDoubt)},
		{"next txn id", strconv.FormatUint(rec.NextTxnID, 10)},
		{"active txns", strconv.Itoa(s.ActiveTxns)},
		{"locks held", strconv.Itoa(s.LocksHeld)},
	})
	for _, name := range d.Tables() {
		n := 0
		if err := d.Scan(name, func(storage.RecordId, storage.RawRecord) error {
			n++
			return nil
		}); err != nil {
			return err
		}
		tw.Append([]string{"rows in " + name, strconv.Itoa(n)})
	}
	tw.Render()
	return nil
}

func isDataRecord(k txn.LogKind) bool {
	return k == txn.LogInsert || k == txn.LogDelete || k == txn.LogUpdate
}
