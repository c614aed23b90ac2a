package main

import (
	"errors"
	"os"
	"path"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/heaptxn/internal/cli"
	"github.com/julianstephens/heaptxn/internal/heaptxn"
	"github.com/julianstephens/heaptxn/internal/heaptxn/db"
	"github.com/julianstephens/heaptxn/internal/logger"
)

var (
	version = "heaptxn v0.1.0"
)

type LogOpts struct {
	Level  string `help:"Logging level (debug, info, warn, error)"       default:"info" envvar:"HEAPTXN_LOG_LEVEL"`
	Debug  bool   `help:"Enable debug logging (overrides --level)"                      envvar:"HEAPTXN_DEBUG"`
	Stream bool   `help:"Log to stdout/stderr only, without a log file"                 envvar:"HEAPTXN_LOG_STREAM"`
	Dir    string `help:"Directory for the rotating log file"                           envvar:"HEAPTXN_LOG_DIR"`
}

type CLI struct {
	Init  cli.InitCmd  `cmd:"" help:"Initialize a data directory from a TOML config"`
	Exec  cli.ExecCmd  `cmd:"" help:"Run a statement script inside transactions"`
	Scan  cli.ScanCmd  `cmd:"" help:"Print every row of a table"`
	Log   cli.LogCmd   `cmd:"" help:"Print the write-ahead log"`
	Stats cli.StatsCmd `cmd:"" help:"Display database statistics"`

	LogOpts LogOpts          `embed:"" prefix:"log-" help:"Logging options"`
	Version kong.VersionFlag `                       help:"Show version information" short:"V"`
}

func createLogger(opts LogOpts) (logger.Logger, error) {
	var level string
	if opts.Debug {
		level = "debug"
	} else {
		level = opts.Level
	}
	if _, err := logger.ParseLevel(level); err != nil {
		return nil, err
	}

	consoleLogger := logger.NewConsoleLogger(level)

	if opts.Stream {
		return consoleLogger, nil
	}

	logDir := opts.Dir
	if logDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		logDir = path.Join(homeDir, heaptxn.DefaultAppDir, heaptxn.DefaultLogDir)
	}
	fileLogger, err := logger.NewFileLogger(
		logDir,
		heaptxn.DefaultLogFileName,
		heaptxn.DefaultLogMaxSize,
		heaptxn.DefaultLogMaxBackups,
	)
	if err != nil {
		return nil, err
	}

	multiLogger := logger.NewMultiLogger(fileLogger, consoleLogger)
	return multiLogger, nil
}

func main() {
	cliApp := &CLI{}
	ctx := kong.Parse(cliApp,
		kong.Name("heaptxn"),
		kong.Description("A transactional heap-file storage engine"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)

	lg, err := createLogger(cliApp.LogOpts)
	if err != nil {
		ctx.FatalIfErrorf(err)
	}

	// Ensure logger is properly closed
	defer func() {
		if c, ok := lg.(logger.Closeable); ok {
			_ = c.Close()
		}
	}()

	err = ctx.Run(&cli.Globals{Logger: lg})
	if err != nil {
		if errors.Is(err, db.ErrEngineUnusable) {
			os.Exit(3)
		}
		ctx.FatalIfErrorf(err)
	}
}
