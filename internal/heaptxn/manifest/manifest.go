package manifest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/julianstephens/go-utils/helpers"
	"github.com/julianstephens/go-utils/jsonutil"

	"github.com/julianstephens/heaptxn/internal/heaptxn"
	"github.com/julianstephens/heaptxn/internal/heaptxn/catalog"
)

const ManifestFileName = "catalog.json"

// Manifest is the persisted catalog of a data directory: engine settings that must
// not change between opens, plus every table layout.
type Manifest struct {
	Version         int              `json:"version"`
	FsyncOnCommit   bool             `json:"fsync_on_commit"`
	Store           string           `json:"store"`
	CacheEntries    int64            `json:"cache_entries"`
	SegmentMaxBytes int64            `json:"segment_max_bytes"`
	LockTimeout     string           `json:"lock_timeout"`
	Tables          []*catalog.Table `json:"tables"`
}

// FromConfig builds the manifest a fresh data directory gets from cfg.
func FromConfig(cfg *heaptxn.Config) (*Manifest, error) {
	tables, err := cfg.CatalogTables()
	if err != nil {
		return nil, &ManifestError{Kind: ManifestErrorKindCorrupted, Err: err}
	}
	return &Manifest{
		Version:         heaptxn.ManifestVersion,
		FsyncOnCommit:   cfg.Engine.FsyncOnCommit,
		Store:           cfg.Engine.Store,
		CacheEntries:    cfg.Engine.CacheEntries,
		SegmentMaxBytes: cfg.Engine.SegmentMaxBytes,
		LockTimeout:     cfg.Engine.LockTimeout.String(),
		Tables:          tables,
	}, nil
}

// Path returns the manifest path inside dir.
func Path(dir string) string {
	return filepath.Join(dir, ManifestFileName)
}

// Create writes m into dir. It refuses to overwrite an existing manifest.
func Create(dir string, m *Manifest) error {
	manifestPath := Path(dir)
	if exists := helpers.Exists(manifestPath); exists {
		return &ManifestError{
			Kind: ManifestErrorKindAlreadyExists,
			Path: manifestPath,
			Err:  fmt.Errorf("manifest already exists at %s", manifestPath),
		}
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return &ManifestError{Kind: ManifestErrorKindWrite, Path: manifestPath, Err: err}
	}

	data, err := jsonutil.Marshal(m)
	if err != nil {
		return &ManifestError{Kind: ManifestErrorKindEncode, Path: manifestPath, Err: err}
	}
	return writeFile(manifestPath, data)
}

// Open reads the manifest of dir and re-derives every table layout from it.
func Open(dir string) (*Manifest, error) {
	manifestPath := Path(dir)
	if exists := helpers.Exists(manifestPath); !exists {
		return nil, &ManifestError{Kind: ManifestErrorKindNotFound, Path: manifestPath, Err: fs.ErrNotExist}
	}

	m := &Manifest{}
	if err := jsonutil.ReadFileStrict(manifestPath, m); err != nil {
		return nil, &ManifestError{Kind: ManifestErrorKindDecode, Path: manifestPath, Err: err}
	}

	if m.Version > heaptxn.ManifestVersion {
		return nil, &ManifestError{
			Kind: ManifestErrorKindUnsupportedVersion,
			Path: manifestPath,
			Err:  fmt.Errorf("manifest version %d is not supported", m.Version),
		}
	}

	if err := m.relayout(); err != nil {
		return nil, &ManifestError{Kind: ManifestErrorKindCorrupted, Path: manifestPath, Err: err}
	}
	return m, nil
}

// Save overwrites the manifest of dir with m.
func (m *Manifest) Save(dir string) error {
	manifestPath := Path(dir)
	if exists := helpers.Exists(manifestPath); !exists {
		return &ManifestError{Kind: ManifestErrorKindNotFound, Path: manifestPath, Err: fs.ErrNotExist}
	}

	data, err := jsonutil.Marshal(m)
	if err != nil {
		return &ManifestError{Kind: ManifestErrorKindEncode, Path: manifestPath, Err: err}
	}
	return writeFile(manifestPath, data)
}

// Table finds a table layout by name.
func (m *Manifest) Table(name string) (*catalog.Table, bool) {
	for _, t := range m.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// relayout rebuilds tables from their column types so stored offsets are never trusted.
func (m *Manifest) relayout() error {
	seen := make(map[string]bool, len(m.Tables))
	for i, t := range m.Tables {
		if t == nil {
			return fmt.Errorf("table %d is null", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate table %q", t.Name)
		}
		seen[t.Name] = true

		fresh, err := catalog.NewTable(t.Name, t.Columns, t.Indexes)
		if err != nil {
			return err
		}
		if t.RecordSize != 0 && fresh.RecordSize != t.RecordSize {
			return fmt.Errorf("table %q record size %d does not match layout %d", t.Name, t.RecordSize, fresh.RecordSize)
		}
		m.Tables[i] = fresh
	}
	return nil
}

func writeFile(filePath string, data []byte) error {
	if err := helpers.AtomicFileWrite(filePath, data); err != nil {
		return &ManifestError{Kind: ManifestErrorKindWrite, Path: filePath, Err: err}
	}
	f, err := os.Open(filepath.Dir(filePath)) //nolint:gosec
	if err != nil {
		return &ManifestError{Kind: ManifestErrorKindWrite, Path: filePath, Err: err}
	}
	defer func() { _ = f.Close() }()

	if err := f.Sync(); err != nil {
		return &ManifestError{Kind: ManifestErrorKindWrite, Path: filePath, Err: err}
	}
	return nil
}
