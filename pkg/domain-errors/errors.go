// Package domainerrors provides coded errors for expected domain outcomes.
//
// Authorization and state-precondition failures are control flow, not faults:
// services return them as coded errors so transport layers can map them to
// stable HTTP statuses and clients can branch on the code. Infrastructure
// faults (store down, network) are wrapped with CodeUnavailable or
// CodeInternal and keep their cause chain intact.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies a class of domain error.
type Code string

const (
	// CodeInvalidInput marks malformed or incomplete request payloads.
	CodeInvalidInput Code = "invalid_input"
	// CodeUnauthorized marks requests with no (or unusable) credentials.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden marks actors that are authenticated but not allowed to
	// perform the operation (wrong role, not the record owner).
	CodeForbidden Code = "forbidden"
	// CodeNotFound marks lookups of records that do not exist.
	CodeNotFound Code = "not_found"
	// CodeInvalidState marks state-precondition failures: the record exists
	// but is not in the source state the requested transition needs. Covers
	// double-apply attempts ("already processed").
	CodeInvalidState Code = "invalid_state"
	// CodeAuthExpired marks external authorization that must be re-granted
	// before the operation can be retried (e.g. mail credentials).
	CodeAuthExpired Code = "auth_expired"
	// CodeUnavailable marks transient infrastructure failures.
	CodeUnavailable Code = "unavailable"
	// CodeInternal marks unexpected failures.
	CodeInternal Code = "internal"
)

// Error is a coded domain error with an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns a coded error without a cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// CodeOf extracts the code from an error chain; unknown errors map to
// CodeInternal so callers always get a usable classification.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
