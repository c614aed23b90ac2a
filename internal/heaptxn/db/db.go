package db

import (
	"errors"
	"path/filepath"
	"sync"

	"go.uber.org/atomic"

	"github.com/julianstephens/heaptxn/internal/heaptxn"
	"github.com/julianstephens/heaptxn/internal/heaptxn/catalog"
	"github.com/julianstephens/heaptxn/internal/heaptxn/exec"
	"github.com/julianstephens/heaptxn/internal/heaptxn/heap"
	"github.com/julianstephens/heaptxn/internal/heaptxn/index"
	"github.com/julianstephens/heaptxn/internal/heaptxn/lock"
	"github.com/julianstephens/heaptxn/internal/heaptxn/manifest"
	"github.com/julianstephens/heaptxn/internal/heaptxn/recovery"
	"github.com/julianstephens/heaptxn/internal/heaptxn/storage"
	"github.com/julianstephens/heaptxn/internal/heaptxn/txn"
	wl "github.com/julianstephens/heaptxn/internal/heaptxn/wal"
	"github.com/julianstephens/heaptxn/internal/logger"
)

const (
	WALDirName   = "wal"
	HeapFileName = "heap.db"
)

// DB is one open data directory: the catalog with its stores and indexes, the
// write-ahead log, the lock manager and the transaction manager.
type DB struct {
	dir      string
	opts     Options
	manifest *manifest.Manifest
	bolt     *heap.BoltDB
	caches   []*heap.CachedStore
	catalog  *catalog.Catalog
	wal      *wl.Log
	logm     *wl.LogManager
	locks    *lock.Manager
	exec     *exec.Executor
	txns     *txn.Manager
	recovery *recovery.Result
	logger   logger.Logger

	mu     sync.Mutex
	closed bool
	fatal  atomic.Error
}

// Init writes the catalog manifest for cfg into dir. The directory must not already
// hold one.
func Init(dir string, cfg *heaptxn.Config) error {
	if dir == "" {
		return wrapDBErr("init", ErrInvalidDir, dir, nil)
	}
	if cfg == nil {
		cfg = heaptxn.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return wrapDBErr("init", ErrManifestInvalid, dir, err)
	}
	m, err := manifest.FromConfig(cfg)
	if err != nil {
		return wrapDBErr("init", ErrManifestInvalid, dir, err)
	}
	if err := manifest.Create(dir, m); err != nil {
		return wrapDBErr("init", ErrInitFailed, dir, err)
	}
	return nil
}

// Options tunes how a data directory is opened.
type Options struct {
	// WrapStore, if set, is applied to every table's record store before the
	// catalog sees it.
	WrapStore func(table string, s storage.RecordStore) storage.RecordStore
}

// Open opens the data directory at dir with no logging.
func Open(dir string) (*DB, error) {
	return OpenWithOptions(dir, Options{}, logger.NoOpLogger{})
}

// OpenWithOptions opens the data directory at dir. The caller is responsible for
// managing the logger lifecycle (including closing). If logger is nil, a NoOpLogger is
// used.
func OpenWithOptions(dir string, opts Options, lg logger.Logger) (*DB, error) {
	if dir == "" {
		return nil, wrapDBErr("open", ErrInvalidDir, dir, nil)
	}
	if lg == nil {
		lg = logger.NoOpLogger{}
	}

	lg.Info("opening database", "path", dir)

	db := &DB{
		dir:    dir,
		opts:   opts,
		logger: lg,
	}
	if err := db.initialize(); err != nil {
		lg.Error("failed to initialize database", err, "path", dir)
		db.release()
		return nil, err
	}

	lg.Info("database opened successfully", "path", dir, "tables", len(db.manifest.Tables))
	return db, nil
}

func (db *DB) initialize() error {
	m, err := manifest.Open(db.dir)
	if err != nil {
		if errors.Is(err, manifest.ErrManifestNotFound) {
			return wrapDBErr("open", ErrManifestMissing, db.dir, err)
		}
		return wrapDBErr("open", ErrManifestInvalid, db.dir, err)
	}
	db.manifest = m

	lockTimeout, err := parseTimeout(m.LockTimeout)
	if err != nil {
		return wrapDBErr("open", ErrManifestInvalid, db.dir, err)
	}

	log, err := wl.OpenLog(
		filepath.Join(db.dir, WALDirName),
		wl.LogOpts{SegmentMaxBytes: m.SegmentMaxBytes},
		logger.Named(db.logger, "wal"),
	)
	if err != nil {
		return wrapDBErr("open", ErrWALOpenFailed, db.dir, err)
	}
	db.wal = log

	res, err := recovery.Analyze(db.wal, logger.Named(db.logger, "recovery"))
	if err != nil {
		return wrapDBErr("open", ErrRecoveryFailed, db.dir, err)
	}
	db.recovery = res

	allocator, err := txn.NewCounterAllocator(res.NextTxnID)
	if err != nil {
		return wrapDBErr("open", ErrInitFailed, db.dir, err)
	}

	db.catalog = catalog.New(index.DefaultDegree, logger.Named(db.logger, "catalog"))
	if err := db.openStores(); err != nil {
		return err
	}

	db.locks = lock.NewManager(lockTimeout, logger.Named(db.logger, "lock"))
	db.exec = exec.NewExecutor(db.catalog, db.logger)
	db.logm = wl.NewLogManager(db.wal, wl.ManagerOpts{FsyncOnFlush: m.FsyncOnCommit}, logger.Named(db.logger, "wal"))
	db.txns = txn.NewManager(
		allocator,
		db.locks,
		db.exec,
		txn.ManagerOpts{OnFatal: db.markUnusable},
		logger.Named(db.logger, "txn"),
	)
	return nil
}

func (db *DB) openStores() error {
	if db.manifest.Store == heaptxn.StoreBolt {
		bolt, err := heap.OpenBoltDB(filepath.Join(db.dir, HeapFileName))
		if err != nil {
			return wrapDBErr("open", ErrStoreOpenFailed, db.dir, err)
		}
		db.bolt = bolt
	}

	for _, t := range db.manifest.Tables {
		var store storage.RecordStore
		if db.bolt != nil {
			bs, err := db.bolt.Store(t.Name, t.RecordSize)
			if err != nil {
				return wrapDBErr("open", ErrStoreOpenFailed, db.dir, err)
			}
			store = bs
		} else {
			store = heap.NewMemStore(t.Name, t.RecordSize)
		}

		if db.opts.WrapStore != nil {
			store = db.opts.WrapStore(t.Name, store)
		}
		if db.manifest.CacheEntries > 0 {
			cs, err := heap.NewCachedStore(store, db.manifest.CacheEntries)
			if err != nil {
				return wrapDBErr("open", ErrStoreOpenFailed, db.dir, err)
			}
			db.caches = append(db.caches, cs)
			store = cs
		}

		if err := db.catalog.Register(t, store); err != nil {
			return wrapDBErr("open", ErrStoreOpenFailed, db.dir, err)
		}
	}
	return nil
}

// release closes whatever initialize managed to open.
func (db *DB) release() {
	if db.catalog != nil {
		_ = db.catalog.Close()
	}
	if db.bolt != nil {
		_ = db.bolt.Close()
	}
	if db.wal != nil {
		_ = db.wal.Close()
	}
}

// Close aborts every transaction still active, then closes the log and the stores.
// A transaction whose COMMIT is already logged is committed instead.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return wrapDBErr("close", ErrClosed, db.dir, nil)
	}
	db.logger.Info("closing database", "path", db.dir)

	var errs []error
	if db.fatal.Load() == nil {
		for _, t := range db.txns.Active() {
			if t.State() != txn.StateActive {
				continue
			}
			if t.CommitLogged() {
				db.logger.Warn("finishing in-doubt commit at close", "txn", t.ID())
				if err := db.txns.Commit(t, db.logm); err != nil {
					errs = append(errs, err)
				}
				continue
			}
			db.logger.Warn("aborting transaction left open at close", "txn", t.ID())
			if err := db.txns.Abort(t, db.logm); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if err := db.logm.Close(); err != nil {
		db.logger.Error("failed to close WAL log", err, "path", db.dir)
		errs = append(errs, err)
	}
	if err := db.catalog.Close(); err != nil {
		errs = append(errs, err)
	}
	if db.bolt != nil {
		if err := db.bolt.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	db.closed = true
	if len(errs) > 0 {
		return wrapDBErr("close", ErrCloseFailed, db.dir, errors.Join(errs...))
	}
	return nil
}

// Path returns the data directory.
func (db *DB) Path() string {
	return db.dir
}

// IsClosed returns true if the database is closed.
func (db *DB) IsClosed() bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.closed
}

// Recovery returns the result of the log analysis run at open.
func (db *DB) Recovery() recovery.Result {
	return *db.recovery
}

// Fatal returns the error that made the engine unusable, or nil.
func (db *DB) Fatal() error {
	return db.fatal.Load()
}

func (db *DB) markUnusable(err error) {
	if db.fatal.Load() != nil {
		return
	}
	db.fatal.Store(err)
	db.logger.Error("engine marked unusable", err, "path", db.dir)
}

func (db *DB) guard(op string) error {
	db.mu.Lock()
	closed := db.closed
	db.mu.Unlock()
	if closed {
		return wrapDBErr(op, ErrClosed, db.dir, nil)
	}
	if err := db.fatal.Load(); err != nil {
		return wrapDBErr(op, ErrEngineUnusable, db.dir, err)
	}
	return nil
}
