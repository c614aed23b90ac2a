package logger

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/julianstephens/go-utils/helpers"
	goulog "github.com/julianstephens/go-utils/logger"
)

const consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// ConsoleLogger prints one line per entry: "[ts] LEVEL: msg k=v ...". Errors go to
// the error stream, everything else to the output stream.
type ConsoleLogger struct {
	minLevel Level
	out      io.Writer
	err      io.Writer
}

// NewConsoleLogger returns a ConsoleLogger on stdout/stderr. An unknown level falls
// back to info; use ParseLevel to reject it instead.
func NewConsoleLogger(level string) Logger {
	lvl, _ := ParseLevel(level)
	return newConsoleLogger(lvl, os.Stdout, os.Stderr)
}

func newConsoleLogger(lvl Level, out, errOut io.Writer) *ConsoleLogger {
	return &ConsoleLogger{minLevel: lvl, out: out, err: errOut}
}

func (cl *ConsoleLogger) Debug(msg string, fields ...interface{}) {
	cl.write(LevelDebug, msg, fields)
}

func (cl *ConsoleLogger) Info(msg string, fields ...interface{}) {
	cl.write(LevelInfo, msg, fields)
}

func (cl *ConsoleLogger) Warn(msg string, fields ...interface{}) {
	cl.write(LevelWarn, msg, fields)
}

// Error is written at every level.
func (cl *ConsoleLogger) Error(msg string, err error, fields ...interface{}) {
	cl.write(LevelError, msg, withErr(err, fields))
}

func (cl *ConsoleLogger) write(lvl Level, msg string, fields []interface{}) {
	if lvl < cl.minLevel {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s: %s", time.Now().Format(consoleTimeFormat), lvl, msg)
	forEachField(fields, func(k string, v interface{}) {
		fmt.Fprintf(&b, " %s=%v", k, v)
	})
	b.WriteByte('\n')

	w := cl.out
	if lvl == LevelError {
		w = cl.err
	}
	_, _ = io.WriteString(w, b.String())
}

// FileLogger writes JSON entries to a size-rotated file through go-utils/logger.
type FileLogger struct {
	underlying *goulog.Logger
	filePath   string
}

// NewFileLogger creates logDir if needed and logs to logDir/logFileName, rotating at
// maxFileSizeMB and keeping maxBackups compressed backups for up to 28 days.
func NewFileLogger(logDir string, logFileName string, maxFileSizeMB int, maxBackups int) (Logger, error) {
	if err := helpers.Ensure(logDir, true); err != nil {
		return nil, wrapLoggerErr("create file logger", ErrLogCreate, err, logDir)
	}

	logPath := filepath.Join(logDir, logFileName)
	underlying := goulog.New()
	if err := underlying.SetFileOutputWithConfig(goulog.FileRotationConfig{
		Filename:   logPath,
		MaxSize:    maxFileSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     28,
		Compress:   true,
	}); err != nil {
		return nil, wrapLoggerErr("create file logger", ErrLogCreate, err, logPath)
	}

	return &FileLogger{underlying: underlying, filePath: logPath}, nil
}

// Path returns the active log file.
func (fl *FileLogger) Path() string {
	return fl.filePath
}

func (fl *FileLogger) Debug(msg string, fields ...interface{}) {
	fl.write(LevelDebug, msg, fields)
}

func (fl *FileLogger) Info(msg string, fields ...interface{}) {
	fl.write(LevelInfo, msg, fields)
}

func (fl *FileLogger) Warn(msg string, fields ...interface{}) {
	fl.write(LevelWarn, msg, fields)
}

func (fl *FileLogger) Error(msg string, err error, fields ...interface{}) {
	fl.write(LevelError, msg, withErr(err, fields))
}

func (fl *FileLogger) write(lvl Level, msg string, fields []interface{}) {
	if len(fields) == 0 {
		switch lvl {
		case LevelDebug:
			fl.underlying.Debug(msg)
		case LevelInfo:
			fl.underlying.Info(msg)
		case LevelWarn:
			fl.underlying.Warn(msg)
		default:
			fl.underlying.Error(msg)
		}
		return
	}

	m := make(map[string]interface{}, len(fields)/2)
	forEachField(fields, func(k string, v interface{}) { m[k] = v })
	e := fl.underlying.WithFields(m)
	switch lvl {
	case LevelDebug:
		e.Debug(msg)
	case LevelInfo:
		e.Info(msg)
	case LevelWarn:
		e.Warn(msg)
	default:
		e.Error(msg)
	}
}

// Close exists so FileLogger satisfies Closeable; go-utils/logger flushes on write.
func (fl *FileLogger) Close() error {
	return nil
}

// MultiLogger fans every entry out to each of its loggers in order.
type MultiLogger struct {
	loggers []Logger
}

func NewMultiLogger(loggers ...Logger) Logger {
	return &MultiLogger{loggers: loggers}
}

func (ml *MultiLogger) Debug(msg string, fields ...interface{}) {
	for _, lg := range ml.loggers {
		lg.Debug(msg, fields...)
	}
}

func (ml *MultiLogger) Info(msg string, fields ...interface{}) {
	for _, lg := range ml.loggers {
		lg.Info(msg, fields...)
	}
}

func (ml *MultiLogger) Warn(msg string, fields ...interface{}) {
	for _, lg := range ml.loggers {
		lg.Warn(msg, fields...)
	}
}

func (ml *MultiLogger) Error(msg string, err error, fields ...interface{}) {
	for _, lg := range ml.loggers {
		lg.Error(msg, err, fields...)
	}
}

// Close closes every Closeable member, continuing past failures.
func (ml *MultiLogger) Close() error {
	var errs []error
	for _, lg := range ml.loggers {
		if c, ok := lg.(Closeable); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return wrapLoggerErr("close multi logger", ErrLogClose, errors.Join(errs...), "")
}

func withErr(err error, fields []interface{}) []interface{} {
	return append([]interface{}{"error", err}, fields...)
}

// forEachField walks key/value pairs. A trailing key without a value is dropped.
func forEachField(fields []interface{}, fn func(k string, v interface{})) {
	for i := 0; i+1 < len(fields); i += 2 {
		fn(fmt.Sprint(fields[i]), fields[i+1])
	}
}
