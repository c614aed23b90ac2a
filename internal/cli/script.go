package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-shellwords"

	"github.com/julianstephens/heaptxn/internal/heaptxn/catalog"
	"github.com/julianstephens/heaptxn/internal/heaptxn/db"
	"github.com/julianstephens/heaptxn/internal/heaptxn/index"
	"github.com/julianstephens/heaptxn/internal/heaptxn/storage"
	"github.com/julianstephens/heaptxn/internal/heaptxn/txn"
	"github.com/julianstephens/heaptxn/internal/logger"
)

var (
	ErrScriptSyntax = errors.New("script: syntax error")
	ErrNoTxn        = errors.New("script: no open transaction")
	ErrTxnOpen      = errors.New("script: transaction already open")
)

// ScriptError reports the script line a statement failed on.
type ScriptError struct {
	Line int
	Text string
	Err  error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("line %d: %q: %v", e.Line, e.Text, e.Err)
}

func (e *ScriptError) Unwrap() error { return e.Err }

// Runner executes a script of statements against an open database, one statement per
// line:
//
//	begin | commit | abort
//	insert <table> <col>=<value>...
//	delete <table> <rid>
//	update <table> <rid> <col>=<value>...
//	get    <table> <rid>
//	lookup <table> <index> <col>=<value>...
//
// Blank lines and lines starting with # are skipped. At most one transaction is open at
// a time; one still open when the script ends is aborted.
type Runner struct {
	db  *db.DB
	out io.Writer
	tx  *txn.Transaction
	lg  logger.Logger
}

func NewRunner(d *db.DB, out io.Writer, lg logger.Logger) *Runner {
	return &Runner{db: d, out: out, lg: logger.Named(lg, "script")}
}

// Run executes every statement read from in and stops at the first failure.
func (r *Runner) Run(in io.Reader) error {
	sc := bufio.NewScanner(in)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		args, err := shellwords.Parse(text)
		if err != nil {
			return &ScriptError{Line: line, Text: text, Err: fmt.Errorf("%w: %v", ErrScriptSyntax, err)}
		}
		if err := r.exec(args); err != nil {
			r.lg.Error("statement failed", err, "line", line)
			return &ScriptError{Line: line, Text: text, Err: err}
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}

	if r.tx != nil {
		r.lg.Warn("aborting transaction left open by script", "txn", r.tx.ID())
		return r.abort()
	}
	return nil
}

func (r *Runner) exec(args []string) error {
	switch strings.ToLower(args[0]) {
	case "begin":
		if err := arity(args, 1, 1); err != nil {
			return err
		}
		return r.begin()
	case "commit":
		if err := arity(args, 1, 1); err != nil {
			return err
		}
		return r.commit()
	case "abort":
		if err := arity(args, 1, 1); err != nil {
			return err
		}
		return r.abort()
	case "insert":
		if err := arity(args, 2, -1); err != nil {
			return err
		}
		return r.insert(args[1], args[2:])
	case "delete":
		if err := arity(args, 3, 3); err != nil {
			return err
		}
		return r.delete(args[1], args[2])
	case "update":
		if err := arity(args, 3, -1); err != nil {
			return err
		}
		return r.update(args[1], args[2], args[3:])
	case "get":
		if err := arity(args, 3, 3); err != nil {
			return err
		}
		return r.get(args[1], args[2])
	case "lookup":
		if err := arity(args, 3, -1); err != nil {
			return err
		}
		return r.lookup(args[1], args[2], args[3:])
	default:
		return fmt.Errorf("%w: unknown statement %q", ErrScriptSyntax, args[0])
	}
}

func (r *Runner) begin() error {
	if r.tx != nil {
		return ErrTxnOpen
	}
	t, err := r.db.Begin()
	if err != nil {
		return err
	}
	r.tx = t
	_, err = fmt.Fprintf(r.out, "BEGIN txn=%d\n", t.ID())
	return err
}

func (r *Runner) commit() error {
	if r.tx == nil {
		return ErrNoTxn
	}
	t := r.tx
	if err := r.db.Commit(t); err != nil {
		return err
	}
	r.tx = nil
	_, err := fmt.Fprintf(r.out, "COMMIT txn=%d\n", t.ID())
	return err
}

func (r *Runner) abort() error {
	if r.tx == nil {
		return ErrNoTxn
	}
	t := r.tx
	r.tx = nil
	if err := r.db.Abort(t); err != nil {
		return err
	}
	_, err := fmt.Fprintf(r.out, "ABORT txn=%d\n", t.ID())
	return err
}

func (r *Runner) insert(table string, assigns []string) error {
	t, tbl, err := r.open(table)
	if err != nil {
		return err
	}
	rec, err := encodeAssigns(tbl, assigns)
	if err != nil {
		return err
	}
	rid, err := r.db.Insert(t, table, rec)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(r.out, "INSERT %s rid=%s\n", table, rid)
	return err
}

func (r *Runner) delete(table, ridText string) error {
	t, _, err := r.open(table)
	if err != nil {
		return err
	}
	rid, err := storage.ParseRecordId(ridText)
	if err != nil {
		return err
	}
	if err := r.db.Delete(t, table, rid); err != nil {
		return err
	}
	_, err = fmt.Fprintf(r.out, "DELETE %s rid=%s\n", table, rid)
	return err
}

// update starts from the stored image, so columns not named keep their values.
func (r *Runner) update(table, ridText string, assigns []string) error {
	t, tbl, err := r.open(table)
	if err != nil {
		return err
	}
	rid, err := storage.ParseRecordId(ridText)
	if err != nil {
		return err
	}
	cur, err := r.db.Get(t, table, rid)
	if err != nil {
		return err
	}
	values, err := rowValues(tbl, cur)
	if err != nil {
		return err
	}
	if err := parseAssigns(assigns, values); err != nil {
		return err
	}
	rec, err := tbl.EncodeRow(values)
	if err != nil {
		return err
	}
	if err := r.db.Update(t, table, rid, rec); err != nil {
		return err
	}
	_, err = fmt.Fprintf(r.out, "UPDATE %s rid=%s\n", table, rid)
	return err
}

func (r *Runner) get(table, ridText string) error {
	t, tbl, err := r.open(table)
	if err != nil {
		return err
	}
	rid, err := storage.ParseRecordId(ridText)
	if err != nil {
		return err
	}
	rec, err := r.db.Get(t, table, rid)
	if err != nil {
		return err
	}
	return r.printRow(tbl, rid, rec)
}

// lookup packs the named index's key from the given column values. Columns the index
// does not cover are ignored.
func (r *Runner) lookup(table, indexName string, assigns []string) error {
	t, tbl, err := r.open(table)
	if err != nil {
		return err
	}
	desc, ok := tbl.Descriptor(indexName)
	if !ok {
		return &catalog.CatalogError{Err: catalog.ErrIndexNotFound, Op: "lookup", Table: table, Column: indexName}
	}
	rec, err := encodeAssigns(tbl, assigns)
	if err != nil {
		return err
	}
	rid, found, err := r.db.Lookup(t, table, indexName, index.PackKey(desc, rec))
	if err != nil {
		return err
	}
	return r.printRow(tbl, rid, found)
}

func (r *Runner) open(table string) (*txn.Transaction, *catalog.Table, error) {
	if r.tx == nil {
		return nil, nil, ErrNoTxn
	}
	tbl, err := r.db.Table(table)
	if err != nil {
		return nil, nil, err
	}
	return r.tx, tbl, nil
}

func (r *Runner) printRow(tbl *catalog.Table, rid storage.RecordId, rec storage.RawRecord) error {
	vals, err := tbl.DecodeRow(rec)
	if err != nil {
		return err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "ROW %s rid=%s", tbl.Name, rid)
	for i, name := range tbl.ColumnNames() {
		fmt.Fprintf(&sb, " %s=%q", name, vals[i])
	}
	sb.WriteByte('\n')
	_, err = io.WriteString(r.out, sb.String())
	return err
}

func arity(args []string, lo, hi int) error {
	if len(args) < lo || (hi >= 0 && len(args) > hi) {
		return fmt.Errorf("%w: wrong number of arguments to %s", ErrScriptSyntax, args[0])
	}
	return nil
}

func encodeAssigns(tbl *catalog.Table, assigns []string) (storage.RawRecord, error) {
	values := make(map[string]string, len(assigns))
	if err := parseAssigns(assigns, values); err != nil {
		return nil, err
	}
	return tbl.EncodeRow(values)
}

func parseAssigns(assigns []string, into map[string]string) error {
	for _, a := range assigns {
		col, val, ok := strings.Cut(a, "=")
		if !ok || col == "" {
			return fmt.Errorf("%w: expected column=value, got %q", ErrScriptSyntax, a)
		}
		into[col] = val
	}
	return nil
}

func rowValues(tbl *catalog.Table, rec storage.RawRecord) (map[string]string, error) {
	vals, err := tbl.DecodeRow(rec)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(vals))
	for i, name := range tbl.ColumnNames() {
		out[name] = vals[i]
	}
	return out, nil
}
