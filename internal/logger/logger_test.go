package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	tst "github.com/julianstephens/go-utils/tests"
)

func TestConsoleLogger_LevelFiltering(t *testing.T) {
	cases := []struct {
		min     Level
		visible []string
	}{
		{LevelDebug, []string{"DEBUG", "INFO", "WARN", "ERROR"}},
		{LevelInfo, []string{"INFO", "WARN", "ERROR"}},
		{LevelWarn, []string{"WARN", "ERROR"}},
		{LevelError, []string{"ERROR"}},
	}
	for _, tc := range cases {
		t.Run(tc.min.String(), func(t *testing.T) {
			buf := &bytes.Buffer{}
			cl := newConsoleLogger(tc.min, buf, buf)

			cl.Debug("d")
			cl.Info("i")
			cl.Warn("w")
			cl.Error("e", errors.New("boom"))

			lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
			tst.AssertEqual(t, len(lines), len(tc.visible), "visible entries")
			for i, want := range tc.visible {
				tst.AssertTrue(t, strings.Contains(lines[i], "] "+want+": "), "expected "+want+" in "+lines[i])
			}
		})
	}
}

func TestConsoleLogger_LineFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	cl := newConsoleLogger(LevelInfo, buf, buf)

	cl.Info("inserted", "txn", 12, "table", "people", "rid", "3:7", "dangling")

	line := buf.String()
	re := regexp.MustCompile(`^\[\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}(Z|[+-]\d{2}:\d{2})\] INFO: inserted txn=12 table=people rid=3:7\n$`)
	tst.AssertTrue(t, re.MatchString(line), "unexpected line: "+line)
}

func TestConsoleLogger_ErrorsToErrStream(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cl := newConsoleLogger(LevelInfo, out, errOut)

	cl.Info("opened")
	cl.Error("rollback failed", errors.New("disk gone"), "txn", 4)

	tst.AssertTrue(t, strings.Contains(out.String(), "opened"), "expected info on output stream")
	tst.AssertFalse(t, strings.Contains(out.String(), "rollback failed"), "error leaked to output stream")
	tst.AssertTrue(t, strings.Contains(errOut.String(), "error=disk gone txn=4"), "expected error field first")
}

func TestNewConsoleLogger_UnknownLevelIsInfo(t *testing.T) {
	for _, in := range []string{"", "verbose"} {
		cl, ok := NewConsoleLogger(in).(*ConsoleLogger)
		tst.AssertTrue(t, ok, "expected *ConsoleLogger")
		tst.AssertEqual(t, cl.minLevel, LevelInfo, "level for "+in)
	}
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want Level
	}{
		{"", LevelInfo},
		{"debug", LevelDebug},
		{"WARN", LevelWarn},
		{"Error", LevelError},
	}
	for _, tc := range cases {
		got, err := ParseLevel(tc.in)
		tst.RequireNoError(t, err)
		tst.AssertEqual(t, got, tc.want, "level for "+tc.in)
	}

	_, err := ParseLevel("verbose")
	tst.AssertTrue(t, errors.Is(err, ErrInvalidLevel), "expected ErrInvalidLevel")
	var le *LoggerError
	tst.AssertTrue(t, errors.As(err, &le), "expected *LoggerError")
	tst.AssertTrue(t, strings.Contains(le.CauseErr().Error(), "verbose"), "cause should name the level")
}

func TestNamed(t *testing.T) {
	buf := &bytes.Buffer{}
	lg := Named(newConsoleLogger(LevelDebug, buf, buf), "txn")

	lg.Debug("begin", "txn", 4)
	lg.Error("rollback failed", errors.New("boom"))

	out := buf.String()
	tst.AssertTrue(t, strings.Contains(out, "begin component=txn txn=4"), "expected component before fields")
	tst.AssertTrue(t, strings.Contains(out, "rollback failed error=boom component=txn"), "expected component on error entry")

	_, ok := Named(nil, "lock").(NoOpLogger)
	tst.AssertTrue(t, ok, "nil base should yield NoOpLogger")
	_, ok = Named(NoOpLogger{}, "lock").(NoOpLogger)
	tst.AssertTrue(t, ok, "NoOpLogger base should be returned as is")
}

func TestFileLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs", "nested")

	lg, err := NewFileLogger(dir, "heaptxn.log", 1, 2)
	tst.RequireNoError(t, err)
	fl, ok := lg.(*FileLogger)
	tst.AssertTrue(t, ok, "expected *FileLogger")
	tst.AssertEqual(t, fl.Path(), filepath.Join(dir, "heaptxn.log"), "log path")

	fl.Info("committed", "txn", 9)
	fl.Error("abort failed", errors.New("io"), "txn", 10)

	content, err := os.ReadFile(fl.Path()) // nolint:gosec
	tst.RequireNoError(t, err)
	tst.AssertTrue(t, strings.Contains(string(content), "committed"), "expected info entry in file")
	tst.AssertTrue(t, strings.Contains(string(content), "abort failed"), "expected error entry in file")
	tst.RequireNoError(t, fl.Close())
}

type failingCloser struct {
	NoOpLogger
	closed *int
}

func (f failingCloser) Close() error {
	*f.closed++
	return errors.New("close failed")
}

func TestMultiLogger(t *testing.T) {
	a := &bytes.Buffer{}
	b := &bytes.Buffer{}
	ml := NewMultiLogger(newConsoleLogger(LevelDebug, a, a), newConsoleLogger(LevelWarn, b, b))

	ml.Debug("d")
	ml.Info("i")
	ml.Warn("w")
	ml.Error("e", errors.New("x"))

	tst.AssertEqual(t, strings.Count(a.String(), "\n"), 4, "debug logger entries")
	tst.AssertEqual(t, strings.Count(b.String(), "\n"), 2, "warn logger entries")

	c, ok := ml.(Closeable)
	tst.AssertTrue(t, ok, "expected MultiLogger to be Closeable")
	tst.RequireNoError(t, c.Close())

	closed := 0
	ml = NewMultiLogger(failingCloser{closed: &closed}, NoOpLogger{}, failingCloser{closed: &closed})
	err := ml.(Closeable).Close()
	tst.AssertTrue(t, errors.Is(err, ErrLogClose), "expected ErrLogClose")
	tst.AssertEqual(t, closed, 2, "every closer should run")
}
