package harness

import (
	"fmt"

	"github.com/pkg/errors"
)

// InvalidParamError reports a command line value that failed parsing,
// coercion or validation. Option holds the short key of the offending option
// and is empty when the failure is not tied to a single option.
type InvalidParamError struct {
	Option string
	Msg    string
	Err    error
}

func (e *InvalidParamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *InvalidParamError) Unwrap() error { return e.Err }

// RuntimeError wraps a failure raised while a demo executes.
type RuntimeError struct {
	Msg string
	Err error
}

func (e *RuntimeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// ProgrammingError signals misuse of the harness itself, e.g. registering the
// same option twice. It is reported as a runtime failure at the process
// boundary.
type ProgrammingError struct {
	Msg string
}

func (e *ProgrammingError) Error() string { return e.Msg }

// InvalidParam builds an InvalidParamError for option carrying a stack trace.
func InvalidParam(option, format string, args ...any) error {
	return errors.WithStack(&InvalidParamError{Option: option, Msg: fmt.Sprintf(format, args...)})
}

// InvalidParamCause is InvalidParam with an underlying cause.
func InvalidParamCause(option string, cause error, format string, args ...any) error {
	return errors.WithStack(&InvalidParamError{Option: option, Msg: fmt.Sprintf(format, args...), Err: cause})
}

// RuntimeFailure wraps cause as a RuntimeError. A nil cause is allowed.
func RuntimeFailure(cause error, format string, args ...any) error {
	return errors.WithStack(&RuntimeError{Msg: fmt.Sprintf(format, args...), Err: cause})
}

func programmingError(format string, args ...any) error {
	return errors.WithStack(&ProgrammingError{Msg: fmt.Sprintf(format, args...)})
}

// IsInvalidParam reports whether err is, or wraps, an InvalidParamError.
func IsInvalidParam(err error) bool {
	var target *InvalidParamError
	return errors.As(err, &target)
}

// IsProgrammingError reports whether err is, or wraps, a ProgrammingError.
func IsProgrammingError(err error) bool {
	var target *ProgrammingError
	return errors.As(err, &target)
}
