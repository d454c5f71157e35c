package storage

import (
	"errors"
	"fmt"
)

// Error is returned for every failure of the underlying engine: I/O,
// corruption, constraint violations, or rows that cannot be decoded.
// Absence of a row is never an Error.
type Error struct {
	Op    string
	Table string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsStorageError reports whether err carries a storage Error.
func IsStorageError(err error) bool {
	var se *Error
	return errors.As(err, &se)
}

func wrap(op, table string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Table: table, Err: err}
}
