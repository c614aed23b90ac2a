package heaptxn

import (
	"errors"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/julianstephens/heaptxn/internal/heaptxn/catalog"
)

var ErrInvalidConfig = errors.New("heaptxn: invalid config")

// Config is the TOML configuration of an engine instance.
type Config struct {
	Engine EngineConfig  `toml:"engine"`
	Log    LogConfig     `toml:"log"`
	Tables []TableConfig `toml:"table"`
}

type EngineConfig struct {
	DataDir         string   `toml:"data_dir"`
	Store           string   `toml:"store"`
	CacheEntries    int64    `toml:"cache_entries"`
	FsyncOnCommit   bool     `toml:"fsync_on_commit"`
	LockTimeout     Duration `toml:"lock_timeout"`
	SegmentMaxBytes int64    `toml:"segment_max_bytes"`
}

type LogConfig struct {
	Level      string `toml:"level"`
	Dir        string `toml:"dir"`
	MaxSize    int    `toml:"max_size"`
	MaxBackups int    `toml:"max_backups"`
}

type TableConfig struct {
	Name    string         `toml:"name"`
	Columns []ColumnConfig `toml:"column"`
	Indexes []IndexConfig  `toml:"index"`
}

type ColumnConfig struct {
	Name string `toml:"name"`
	Type string `toml:"type"`
	Len  int    `toml:"len"`
}

type IndexConfig struct {
	Name    string   `toml:"name"`
	Columns []string `toml:"columns"`
}

// Duration decodes TOML strings such as "250ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// DefaultConfig returns a config with every default applied and no tables.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			DataDir:         DefaultDataDir,
			Store:           DefaultStore,
			CacheEntries:    DefaultCacheEntries,
			FsyncOnCommit:   true,
			LockTimeout:     Duration{DefaultLockTimeout},
			SegmentMaxBytes: DefaultSegmentMaxBytes,
		},
		Log: LogConfig{
			Level:      DefaultLogLevel,
			MaxSize:    DefaultLogMaxSize,
			MaxBackups: DefaultLogMaxBackups,
		},
	}
}

// LoadConfig decodes path on top of DefaultConfig. Unknown keys are rejected.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%w: %s: unknown key %s", ErrInvalidConfig, path, undecoded[0].String())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks engine settings and every table definition.
func (c *Config) Validate() error {
	switch c.Engine.Store {
	case StoreMemory, StoreBolt:
	default:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Engine.Store)
	}
	if c.Engine.CacheEntries < 0 {
		return fmt.Errorf("%w: cache_entries must be >= 0", ErrInvalidConfig)
	}
	if c.Engine.LockTimeout.Duration <= 0 {
		return fmt.Errorf("%w: lock_timeout must be > 0", ErrInvalidConfig)
	}
	if c.Engine.SegmentMaxBytes <= 0 {
		return fmt.Errorf("%w: segment_max_bytes must be > 0", ErrInvalidConfig)
	}
	if _, err := c.CatalogTables(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// CatalogTables lays out every configured table.
func (c *Config) CatalogTables() ([]*catalog.Table, error) {
	seen := make(map[string]bool, len(c.Tables))
	tables := make([]*catalog.Table, 0, len(c.Tables))
	for _, tc := range c.Tables {
		if seen[tc.Name] {
			return nil, fmt.Errorf("duplicate table %q", tc.Name)
		}
		seen[tc.Name] = true

		cols := make([]catalog.Column, len(tc.Columns))
		for i, cc := range tc.Columns {
			cols[i] = catalog.Column{Name: cc.Name, Type: catalog.ColumnType(cc.Type), Len: cc.Len}
		}
		idx := make([]catalog.IndexDef, len(tc.Indexes))
		for i, ic := range tc.Indexes {
			idx[i] = catalog.IndexDef{Name: ic.Name, Columns: ic.Columns}
		}
		t, err := catalog.NewTable(tc.Name, cols, idx)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}
