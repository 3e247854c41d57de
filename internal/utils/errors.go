package utils

import (
	"errors"
	"fmt"
)

// ErrorKind partitions failures by how the API edge should report them.
type ErrorKind string

const (
	KindInternal        ErrorKind = "internal"
	KindValidation      ErrorKind = "validation"
	KindUpstream        ErrorKind = "upstream"
	KindInvalidArgument ErrorKind = "invalid_argument"
)

// AppError wraps an operation, failure kind, human-facing message, and underlying error.
type AppError struct {
	Op   string
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(op string, kind ErrorKind, msg string, err error) error {
	return &AppError{Op: op, Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind of the outermost AppError in err's chain, or
// KindInternal when there is none.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Kind != "" {
		return appErr.Kind
	}
	return KindInternal
}
