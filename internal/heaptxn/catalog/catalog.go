package catalog

import (
	"errors"
	"sort"
	"sync"

	"github.com/julianstephens/heaptxn/internal/heaptxn/index"
	"github.com/julianstephens/heaptxn/internal/heaptxn/storage"
	"github.com/julianstephens/heaptxn/internal/logger"
)

// Catalog resolves table names to their layout, record store and live indexes.
type Catalog struct {
	mu     sync.RWMutex
	tables map[string]*tableEntry
	degree int
	logger logger.Logger
}

type tableEntry struct {
	table   *Table
	store   storage.RecordStore
	indexes []index.SecondaryIndex
}

// New returns an empty catalog whose indexes are btrees of the given degree.
// A degree below 2 selects index.DefaultDegree.
func New(degree int, lg logger.Logger) *Catalog {
	if degree < 2 {
		degree = index.DefaultDegree
	}
	if lg == nil {
		lg = logger.NoOpLogger{}
	}
	return &Catalog{
		tables: make(map[string]*tableEntry),
		degree: degree,
		logger: lg,
	}
}

// Register attaches store to t and builds every index of t from the records
// already in store.
func (c *Catalog) Register(t *Table, store storage.RecordStore) error {
	if t == nil || store == nil {
		return wrapCatalogErr("register", ErrInvalidSchema, "", "", errors.New("nil table or store"))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tables[t.Name]; ok {
		return wrapCatalogErr("register", ErrTableExists, t.Name, "", nil)
	}

	descs := t.Descriptors()
	indexes := make([]index.SecondaryIndex, len(descs))
	for i, d := range descs {
		indexes[i] = index.NewBTreeIndex(d, c.degree)
	}

	rows := 0
	err := store.Scan(func(rid storage.RecordId, rec storage.RawRecord) error {
		rows++
		for _, ix := range indexes {
			if err := ix.InsertEntry(index.PackKey(ix.Descriptor(), rec), rid, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return wrapCatalogErr("register", ErrIndexRebuild, t.Name, "", err)
	}

	c.tables[t.Name] = &tableEntry{table: t, store: store, indexes: indexes}
	c.logger.Info("table registered", "table", t.Name, "rows", rows, "indexes", len(indexes))
	return nil
}

func (c *Catalog) entry(op, name string) (*tableEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.tables[name]
	if !ok {
		return nil, wrapCatalogErr(op, ErrTableNotFound, name, "", nil)
	}
	return e, nil
}

// Table returns the layout of the named table.
func (c *Catalog) Table(name string) (*Table, error) {
	e, err := c.entry("table", name)
	if err != nil {
		return nil, err
	}
	return e.table, nil
}

// Store returns the record store of the named table.
func (c *Catalog) Store(name string) (storage.RecordStore, error) {
	e, err := c.entry("store", name)
	if err != nil {
		return nil, err
	}
	return e.store, nil
}

// Index resolves one of the table's descriptors to its live index.
func (c *Catalog) Index(table string, desc index.Descriptor) (index.SecondaryIndex, error) {
	e, err := c.entry("index", table)
	if err != nil {
		return nil, err
	}
	for _, ix := range e.indexes {
		if ix.Descriptor().Name == desc.Name {
			return ix, nil
		}
	}
	return nil, wrapCatalogErr("index", ErrIndexNotFound, table, "", errors.New(desc.Name))
}

// IndexByName resolves an index by name.
func (c *Catalog) IndexByName(table, name string) (index.SecondaryIndex, error) {
	return c.Index(table, index.Descriptor{Name: name})
}

// Tables returns the registered table names, sorted.
func (c *Catalog) Tables() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.tables))
	for name := range c.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes every registered store and forgets all tables.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for name, e := range c.tables {
		if err := e.store.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(c.tables, name)
	}
	return errors.Join(errs...)
}
