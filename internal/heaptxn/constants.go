package heaptxn

import "time"

const (
	ManifestVersion = 1

	DefaultSegmentMaxBytes int64 = 64 * 1024 * 1024
	DefaultLockTimeout           = 5 * time.Second
	DefaultCacheEntries          = 0
	DefaultStore                 = StoreMemory
	DefaultDataDir               = "."
)

// Store backends
const (
	StoreMemory = "memory"
	StoreBolt   = "bolt"
)

// Log file defaults
const (
	DefaultAppDir        = ".heaptxn"
	DefaultLogDir        = "logs"
	DefaultLogFileName   = "heaptxn.log"
	DefaultLogMaxSize    = 100
	DefaultLogMaxBackups = 3
	DefaultLogLevel      = "info"
)
