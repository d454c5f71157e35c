package cli

import (
	"errors"
	"fmt"

	"travelbook/internal/core"
	"travelbook/internal/storage"
)

const (
	ExitCodeGeneric  = 1
	ExitCodeUsage    = 2
	ExitCodeNotFound = 3
	ExitCodeStorage  = 4
	ExitCodeConfig   = 5
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e == nil || e.Err == nil {
		return "command failed"
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *ExitError) ExitCode() int {
	if e == nil || e.Code == 0 {
		return ExitCodeGeneric
	}
	return e.Code
}

func asExitError(code int, err error) error {
	if err == nil {
		return nil
	}
	var withExit interface{ ExitCode() int }
	if errors.As(err, &withExit) {
		return err
	}
	return &ExitError{Code: code, Err: err}
}

var validationErrors = []error{
	core.ErrEmptyName,
	core.ErrEmptyDestination,
	core.ErrEmptyCurrency,
	core.ErrEmptyDescription,
	core.ErrInvalidDate,
	core.ErrInvalidDateRange,
	core.ErrBudgetCurrency,
	core.ErrNegativeAmount,
	core.ErrInvalidAmount,
}

func mapCommandError(err error) error {
	if err == nil {
		return nil
	}
	var withExit interface{ ExitCode() int }
	if errors.As(err, &withExit) {
		return err
	}

	// Storage first: a corrupt row wraps ErrInvalidDate too.
	if storage.IsStorageError(err) {
		return asExitError(ExitCodeStorage, err)
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return asExitError(ExitCodeUsage, err)
		}
	}
	return asExitError(ExitCodeGeneric, err)
}

func usageErrorf(format string, args ...any) error {
	return &ExitError{
		Code: ExitCodeUsage,
		Err:  fmt.Errorf(format, args...),
	}
}

func notFoundf(format string, args ...any) error {
	return &ExitError{
		Code: ExitCodeNotFound,
		Err:  fmt.Errorf(format, args...),
	}
}
