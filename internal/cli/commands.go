package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/julianstephens/go-utils/cliutil"
	"github.com/julianstephens/go-utils/generic"

	"github.com/julianstephens/heaptxn/internal/heaptxn"
	"github.com/julianstephens/heaptxn/internal/heaptxn/db"
	"github.com/julianstephens/heaptxn/internal/logger"
)

// Globals is bound into every command's Run.
type Globals struct {
	Logger logger.Logger
	Out    io.Writer
}

func (g *Globals) out() io.Writer {
	if g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

// InitCmd initializes a new data directory from a TOML config.
type InitCmd struct {
	Config string `help:"TOML config describing the engine and its tables" required:"" short:"c" type:"existingfile"`
	Dir    string `help:"Data directory (defaults to engine.data_dir)"        arg:""      optional:""`
}

func (c *InitCmd) Run(g *Globals) error {
	cfg, err := heaptxn.LoadConfig(c.Config)
	if err != nil {
		cliutil.PrintError(fmt.Sprintf("Invalid config: %v", err))
		return err
	}
	dir := generic.If(c.Dir != "", c.Dir, cfg.Engine.DataDir)
	if err := db.Init(dir, cfg); err != nil {
		cliutil.PrintError(fmt.Sprintf("Failed to initialize %s: %v", dir, err))
		return err
	}
	g.Logger.Info("database initialized", "path", dir, "tables", len(cfg.Tables))
	_, err = fmt.Fprintf(g.out(), "initialized %s with %d table(s)\n", dir, len(cfg.Tables))
	return err
}

// ExecCmd runs a statement script against a data directory.
type ExecCmd struct {
	Dir    string `help:"Data directory"               default:"." short:"d"`
	Script string `help:"Script file, or - for stdin" arg:""`
}

func (c *ExecCmd) Run(g *Globals) error {
	in := io.Reader(os.Stdin)
	if c.Script != "-" {
		f, err := os.Open(c.Script)
		if err != nil {
			cliutil.PrintError(fmt.Sprintf("Cannot open script: %v", err))
			return err
		}
		defer f.Close() //nolint:errcheck
		in = f
	}

	return withDB(c.Dir, g, func(d *db.DB) error {
		return NewRunner(d, g.out(), g.Logger).Run(in)
	})
}

// ScanCmd prints every row of a table.
type ScanCmd struct {
	Dir   string `help:"Data directory" default:"." short:"d"`
	Table string `help:"Table to scan"  arg:""`
}

func (c *ScanCmd) Run(g *Globals) error {
	return withDB(c.Dir, g, func(d *db.DB) error {
		return ScanTable(d, c.Table, g.out())
	})
}

// LogCmd prints the write-ahead log.
type LogCmd struct {
	Dir string `help:"Data directory" default:"." short:"d"`
}

func (c *LogCmd) Run(g *Globals) error {
	if err := DumpLog(c.Dir, g.out(), g.Logger); err != nil {
		cliutil.PrintError(fmt.Sprintf("Cannot read log: %v", err))
		return err
	}
	return nil
}

// StatsCmd displays database statistics.
type StatsCmd struct {
	Dir string `help:"Data directory" default:"." short:"d"`
}

func (c *StatsCmd) Run(g *Globals) error {
	return withDB(c.Dir, g, func(d *db.DB) error {
		return PrintStats(d, g.out())
	})
}

func withDB(dir string, g *Globals, fn func(d *db.DB) error) (err error) {
	d, err := db.OpenWithOptions(dir, db.Options{}, g.Logger)
	if err != nil {
		cliutil.PrintError(fmt.Sprintf("Cannot open %s: %v", dir, err))
		return err
	}
	defer func() {
		if cerr := d.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := fn(d); err != nil {
		cliutil.PrintError(err.Error())
		return err
	}
	return nil
}
