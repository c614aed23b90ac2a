package testutil

import (
	"testing"
	"time"

	tst "github.com/julianstephens/go-utils/tests"

	"github.com/julianstephens/heaptxn/internal/heaptxn"
	"github.com/julianstephens/heaptxn/internal/heaptxn/db"
	"github.com/julianstephens/heaptxn/internal/heaptxn/storage"
)

// PeopleConfig returns a config with one table, people(age int, name char(8)), with a
// unique index on (age, name).
func PeopleConfig(store string) *heaptxn.Config {
	cfg := heaptxn.DefaultConfig()
	cfg.Engine.Store = store
	cfg.Engine.LockTimeout = heaptxn.Duration{Duration: 100 * time.Millisecond}
	cfg.Tables = []heaptxn.TableConfig{{
		Name: "people",
		Columns: []heaptxn.ColumnConfig{
			{Name: "age", Type: "int"},
			{Name: "name", Type: "char", Len: 8},
		},
		Indexes: []heaptxn.IndexConfig{{Name: "age_name", Columns: []string{"age", "name"}}},
	}}
	return cfg
}

// SetupTestDB writes the catalog manifest for cfg into dir.
func SetupTestDB(t *testing.T, dir string, cfg *heaptxn.Config) {
	t.Helper()
	tst.RequireNoError(t, db.Init(dir, cfg))
}

// OpenTestDB initializes dir for cfg and opens it. The database is closed at test
// cleanup unless the test already closed it.
func OpenTestDB(t *testing.T, dir string, cfg *heaptxn.Config, opts db.Options) *db.DB {
	t.Helper()
	SetupTestDB(t, dir, cfg)
	d, err := db.OpenWithOptions(dir, opts, nil)
	tst.RequireNoError(t, err)
	t.Cleanup(func() {
		if !d.IsClosed() {
			_ = d.Close()
		}
	})
	return d
}

// PersonRow encodes a people row.
func PersonRow(t *testing.T, d *db.DB, age, name string) storage.RawRecord {
	t.Helper()
	tbl, err := d.Table("people")
	tst.RequireNoError(t, err)
	rec, err := tbl.EncodeRow(map[string]string{"age": age, "name": name})
	tst.RequireNoError(t, err)
	return rec
}
