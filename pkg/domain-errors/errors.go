// Package domainerrors provides coded errors for the service.
//
// Services return these so transport layers can translate failures into
// stable, user-actionable responses without leaking internals. Stores and
// providers return plain errors; the service wraps them with a code at the
// boundary where the failure becomes a domain fact.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code is a stable machine-readable error identifier.
type Code string

const (
	// Generic codes.
	CodeBadRequest   Code = "bad_request"
	CodeInvalidInput Code = "invalid_input"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeTimeout      Code = "timeout"
	CodeInternal     Code = "internal_error"

	// Attendance lifecycle codes.
	CodeAlreadyCheckedIn Code = "already_checked_in"
	CodeNotCheckedIn     Code = "not_checked_in"

	// Location gating codes.
	CodePermissionDenied    Code = "location_permission_denied"
	CodeLocationUnavailable Code = "location_unavailable"
	CodeLocationAccuracy    Code = "location_accuracy_insufficient"
	CodeOutOfRange          Code = "out_of_geofence_range"
)

// Error carries a code, a human-readable message, and an optional cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error with no underlying cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error. The cause stays
// reachable through errors.Is/As but is never shown to callers by the
// transport layer.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return New(code, message)
	}
	return &Error{Code: code, Message: message, cause: err}
}

// CodeOf extracts the code from an error chain. Uncoded errors map to
// CodeInternal so nothing falls through as a raw failure.
func CodeOf(err error) Code {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeInternal
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code == code
	}
	return false
}

// MessageOf returns the message of the outermost coded error, or empty for
// uncoded errors.
func MessageOf(err error) string {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Message
	}
	return ""
}
