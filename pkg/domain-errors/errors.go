// Package derrors provides coded domain errors shared across all services.
// Codes classify failures at trust boundaries so transports can map them to
// precise user-facing responses without string matching.
package derrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	// CodeInvalidInput marks malformed caller input. Not retryable; the
	// caller must fix the request.
	CodeInvalidInput Code = "invalid_input"

	// CodeValidation marks input that parsed but violates a domain rule.
	CodeValidation Code = "validation"

	// CodeNotFound marks a missing record or reference entry.
	CodeNotFound Code = "not_found"

	// CodeStaleVersion marks a pinned snapshot version that has been
	// evicted. Retryable against the current version.
	CodeStaleVersion Code = "stale_version"

	// CodePersistence marks a failed durable write. The operation that
	// required the write has not taken effect.
	CodePersistence Code = "persistence"

	// CodeConfig marks inconsistent weight/threshold configuration.
	// Fatal at startup.
	CodeConfig Code = "config"

	// CodeInternal marks unexpected failures with no caller remedy.
	CodeInternal Code = "internal"
)

// Error is a coded domain error. Field names the offending input field when
// the failure is attributable to one.
type Error struct {
	Code    Code
	Message string
	Field   string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error with a static message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewField creates a coded error attributed to a specific input field.
func NewField(code Code, field, message string) error {
	return &Error{Code: code, Message: message, Field: field}
}

// Wrap annotates err with a code and message, preserving the cause chain.
// Wrapping nil returns nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether any error in err's chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		de = nil
	}
	return false
}

// CodeOf returns the code of the outermost coded error in the chain, or
// CodeInternal when the chain carries no code.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// FieldOf returns the offending field of the outermost coded error, or "".
func FieldOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Field
	}
	return ""
}

// Is delegates to errors.Is; exported so callers importing this package
// aliased do not also need the stdlib errors import.
func Is(err, target error) bool { return errors.Is(err, target) }
