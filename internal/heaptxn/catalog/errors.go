package catalog

import (
	"errors"
	"fmt"
)

var (
	ErrTableNotFound  = errors.New("catalog: table not found")
	ErrTableExists    = errors.New("catalog: table already registered")
	ErrIndexNotFound  = errors.New("catalog: index not found")
	ErrColumnNotFound = errors.New("catalog: column not found")
	ErrInvalidSchema  = errors.New("catalog: invalid schema")
	ErrInvalidValue   = errors.New("catalog: invalid column value")
	ErrIndexRebuild   = errors.New("catalog: index rebuild failed")
)

// CatalogError wraps schema and registry failures.
type CatalogError struct {
	Err    error
	Op     string
	Table  string
	Column string

	Cause error
}

func (e *CatalogError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Err.Error())
	if e.Table != "" {
		msg += " table=" + e.Table
	}
	if e.Column != "" {
		msg += " column=" + e.Column
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

func (e *CatalogError) Unwrap() error   { return e.Err }
func (e *CatalogError) CauseErr() error { return e.Cause }

func wrapCatalogErr(op string, sentinel error, table, column string, cause error) error {
	return &CatalogError{Err: sentinel, Op: op, Table: table, Column: column, Cause: cause}
}
