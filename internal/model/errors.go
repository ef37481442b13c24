package model

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code int

const (
	CodeValidation Code = iota + 1
	CodeConflict
	CodeNotFound
	CodeImport
)

func (c Code) String() string {
	switch c {
	case CodeValidation:
		return "validation"
	case CodeConflict:
		return "conflict"
	case CodeNotFound:
		return "not found"
	case CodeImport:
		return "import"
	}
	return "unknown"
}

// Sentinels for errors.Is.
var (
	ErrValidation = &Error{Code: CodeValidation}
	ErrConflict   = &Error{Code: CodeConflict}
	ErrNotFound   = &Error{Code: CodeNotFound}
	ErrImport     = &Error{Code: CodeImport}
)

// Error is a rejected mutation or lookup. Msg is meant for the end user.
type Error struct {
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg == "" && e.Err == nil:
		return e.Code.String() + " error"
	case e.Err == nil:
		return e.Msg
	case e.Msg == "":
		return e.Err.Error()
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Code, so errors.Is(err, ErrConflict)
// works through wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Validationf builds a CodeValidation error.
func Validationf(format string, args ...any) error {
	return &Error{Code: CodeValidation, Msg: fmt.Sprintf(format, args...)}
}

// Conflictf builds a CodeConflict error.
func Conflictf(format string, args ...any) error {
	return &Error{Code: CodeConflict, Msg: fmt.Sprintf(format, args...)}
}

// NotFoundf builds a CodeNotFound error.
func NotFoundf(format string, args ...any) error {
	return &Error{Code: CodeNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Importf wraps err as a CodeImport error. The wrapped error keeps its own
// code reachable through errors.Is.
func Importf(err error, format string, args ...any) error {
	return &Error{Code: CodeImport, Msg: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf returns the code of the outermost *Error in err's chain, or 0.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}
