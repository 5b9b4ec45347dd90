package errors

import (
	"errors"
	"fmt"
	"maps"
)

// Code categorizes an engine error
type Code string

const (
	// CodeUnknown indicates an error that did not originate in the engine
	CodeUnknown Code = "unknown"

	// CodeUser indicates malformed input from the caller (unknown action, bad request).
	// Recoverable; no state was mutated.
	CodeUser Code = "user_error"

	// CodeValidation indicates a request that failed a game rule, such as an ineligible quest.
	// Recoverable; no state was mutated.
	CodeValidation Code = "validation"

	// CodeInvariant indicates a broken engine invariant. This is a bug and must not be retried.
	CodeInvariant Code = "invariant"

	// CodeNotFound indicates a requested session or catalog entry does not exist
	CodeNotFound Code = "not_found"

	// CodeBusy indicates another turn for the same character is in progress
	CodeBusy Code = "busy"

	// CodeInternal indicates an infrastructure failure (storage, queue)
	CodeInternal Code = "internal"
)

// Error is an engine error with a code and optional metadata
type Error struct {
	Code    Code
	Message string
	Cause   error
	Meta    map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithMeta adds metadata to the error
func (e *Error) WithMeta(key string, value any) *Error {
	if e.Meta == nil {
		e.Meta = make(map[string]any)
	}
	e.Meta[key] = value
	return e
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps err, preserving the code if err is already an *Error
func Wrap(err error, message string) *Error {
	if err == nil {
		return nil
	}

	var engErr *Error
	if errors.As(err, &engErr) {
		return &Error{
			Code:    engErr.Code,
			Message: message,
			Cause:   err,
			Meta:    maps.Clone(engErr.Meta),
		}
	}

	return &Error{
		Code:    CodeUnknown,
		Message: message,
		Cause:   err,
	}
}

// WrapWithCode wraps err and forces the given code
func WrapWithCode(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, message)
	wrapped.Code = code
	return wrapped
}

func User(message string) *Error { return New(CodeUser, message) }

func Userf(format string, args ...any) *Error { return Newf(CodeUser, format, args...) }

func Validationf(format string, args ...any) *Error { return Newf(CodeValidation, format, args...) }

func Invariantf(format string, args ...any) *Error { return Newf(CodeInvariant, format, args...) }

func NotFoundf(format string, args ...any) *Error { return Newf(CodeNotFound, format, args...) }

func Busyf(format string, args ...any) *Error { return Newf(CodeBusy, format, args...) }

// Is reports whether err carries the given code
func Is(err error, code Code) bool {
	var engErr *Error
	if errors.As(err, &engErr) {
		return engErr.Code == code
	}
	return false
}

func IsInvariant(err error) bool { return Is(err, CodeInvariant) }

func IsNotFound(err error) bool { return Is(err, CodeNotFound) }

func IsBusy(err error) bool { return Is(err, CodeBusy) }

// GetCode returns the code of err, or CodeUnknown
func GetCode(err error) Code {
	var engErr *Error
	if errors.As(err, &engErr) {
		return engErr.Code
	}
	return CodeUnknown
}
