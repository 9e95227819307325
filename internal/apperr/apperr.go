// Package apperr defines the arcade's error taxonomy. Session handlers map
// these codes to user-facing replies; everything else is logged.
package apperr

import "errors"

// Code classifies an error for handling at the session boundary.
type Code string

const (
	// CodeValidation marks malformed user input. No state was changed.
	CodeValidation Code = "validation"
	// CodePermission marks a non-admin invoking an admin operation.
	CodePermission Code = "permission"
	// CodeNotFound marks a reference to a row that does not exist.
	CodeNotFound Code = "not_found"
	// CodeTransport marks an outbound delivery failure.
	CodeTransport Code = "transport"
	// CodeStorage marks a persistence failure.
	CodeStorage Code = "storage"
	// CodeUnknown is returned by CodeOf for errors outside the taxonomy.
	CodeUnknown Code = "unknown"
)

// Error is the domain error type.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Message safe to show the user
	Cause   error  // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Validation is shorthand for New(CodeValidation, message).
func Validation(message string) *Error {
	return New(CodeValidation, message)
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// MessageOf returns the user-facing message of the first *Error in err's
// chain, or fallback.
func MessageOf(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}

// Sentinel values usable with errors.Is.
var (
	ErrValidation = New(CodeValidation, "invalid input")
	ErrPermission = New(CodePermission, "permission denied")
	ErrNotFound   = New(CodeNotFound, "not found")
	ErrTransport  = New(CodeTransport, "delivery failed")
	ErrStorage    = New(CodeStorage, "storage failure")
)
