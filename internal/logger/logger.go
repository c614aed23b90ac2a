package logger

import (
	"fmt"
	"strings"
)

// Logger is the logging surface every heaptxn component takes. Fields are key/value
// pairs; the engine uses "txn", "table", "rid", "kind" and "index" as keys.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	// Error logs err alongside msg.
	Error(msg string, err error, fields ...interface{})
}

// Closeable is implemented by loggers that hold files open.
type Closeable interface {
	Close() error
}

// Level is a minimum severity for ConsoleLogger.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[string]Level{
	"debug": LevelDebug,
	"info":  LevelInfo,
	"warn":  LevelWarn,
	"error": LevelError,
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	default:
		return "ERROR"
	}
}

// ParseLevel maps "debug", "info", "warn" or "error" to a Level. The empty string is info.
func ParseLevel(s string) (Level, error) {
	if s == "" {
		return LevelInfo, nil
	}
	lvl, ok := levelNames[strings.ToLower(s)]
	if !ok {
		return LevelInfo, wrapLoggerErr("parse level", ErrInvalidLevel, fmt.Errorf("unknown level %q", s), "")
	}
	return lvl, nil
}

// NoOpLogger discards everything. Components given a nil Logger use it.
type NoOpLogger struct{}

func (NoOpLogger) Debug(string, ...interface{})        {}
func (NoOpLogger) Info(string, ...interface{})         {}
func (NoOpLogger) Warn(string, ...interface{})         {}
func (NoOpLogger) Error(string, error, ...interface{}) {}

var _ Logger = NoOpLogger{}

// namedLogger prefixes every entry with a component field.
type namedLogger struct {
	base      Logger
	component string
}

// Named returns a logger that tags every entry with component=<component>.
// A nil base yields a NoOpLogger.
func Named(base Logger, component string) Logger {
	if base == nil {
		return NoOpLogger{}
	}
	if _, ok := base.(NoOpLogger); ok {
		return base
	}
	return &namedLogger{base: base, component: component}
}

func (n *namedLogger) with(fields []interface{}) []interface{} {
	return append([]interface{}{"component", n.component}, fields...)
}

func (n *namedLogger) Debug(msg string, fields ...interface{}) {
	n.base.Debug(msg, n.with(fields)...)
}

func (n *namedLogger) Info(msg string, fields ...interface{}) {
	n.base.Info(msg, n.with(fields)...)
}

func (n *namedLogger) Warn(msg string, fields ...interface{}) {
	n.base.Warn(msg, n.with(fields)...)
}

func (n *namedLogger) Error(msg string, err error, fields ...interface{}) {
	n.base.Error(msg, err, n.with(fields)...)
}
