package logger

import "errors"

var (
	ErrLogCreate    = errors.New("logger: create error")
	ErrLogOpen      = errors.New("logger: open error")
	ErrLogClose     = errors.New("logger: close error")
	ErrInvalidLevel = errors.New("logger: invalid level")
)

// LoggerError reports a failure setting up or tearing down a logger sink.
type LoggerError struct {
	Op    string
	Err   error
	Cause error
	Path  string
}

func (e *LoggerError) Error() string {
	msg := "logger " + e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	msg += ": " + e.Err.Error()
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *LoggerError) Unwrap() error {
	return e.Err
}

// CauseErr returns the underlying failure, if any.
func (e *LoggerError) CauseErr() error {
	return e.Cause
}

func wrapLoggerErr(op string, err, cause error, path string) error {
	return &LoggerError{Op: op, Err: err, Cause: cause, Path: path}
}
