// Package domainerrors defines the error vocabulary shared by all services.
//
// Every operation returns an *Error carrying a Code (coarse category, mapped
// to an HTTP status by the transport layer) and an optional Reason (the
// protocol-specific failure kind, stable enough for callers and tests to
// branch on). Store boundaries return sentinel errors instead; services
// translate those into domain errors at the edge.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code is a coarse error category. The transport layer owns the mapping from
// codes to status codes; services never import net/http.
type Code string

const (
	CodeBadRequest   Code = "bad_request"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeInternal     Code = "internal"
	CodeUnavailable  Code = "unavailable"
)

// Error is the concrete error type returned by services.
type Error struct {
	Code    Code
	Reason  string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// WithReason sets the failure kind and returns the error for chaining.
func (e *Error) WithReason(reason string) *Error {
	e.Reason = reason
	return e
}

// New builds a domain error with a code and a human-readable message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf is New with formatting.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewWithReason builds a domain error carrying a stable failure kind.
func NewWithReason(code Code, reason, message string) *Error {
	return &Error{Code: code, Reason: reason, Message: message}
}

// Wrap attaches a code and message to an underlying error, preserving the
// chain for errors.Is/As.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// WithReason annotates an existing domain error with a failure kind. Non
// domain errors are wrapped as internal first.
func WithReason(err error, reason string) *Error {
	var de *Error
	if !errors.As(err, &de) {
		de = Wrap(err, CodeInternal, "internal error")
	}
	out := *de
	out.Reason = reason
	return &out
}

// HasCode reports whether err (or anything it wraps) is a domain error with
// the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is an alias of HasCode kept for call-site readability:
// dErrors.Is(err, dErrors.CodeBadRequest).
func Is(err error, code Code) bool { return HasCode(err, code) }

// HasReason reports whether err carries the given failure kind.
func HasReason(err error, reason string) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Reason == reason
	}
	return false
}

// ReasonOf extracts the failure kind from err, or "" when absent.
func ReasonOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Reason
	}
	return ""
}
