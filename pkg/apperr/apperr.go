// Package apperr defines the error values shared across service and
// transport layers. Every error carries an HTTP-shaped status code so
// callers can distinguish a real authorization denial from an
// infrastructure failure by inspecting the status rather than the message.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a status-carrying error. Code is a short machine-readable
// discriminator for cases that share a status (e.g. plain 401 versus
// 401 with no company context).
type Error struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Unauthorized means no credential source produced an identity.
func Unauthorized(message string) *Error {
	return &Error{Status: http.StatusUnauthorized, Code: "unauthorized", Message: message}
}

// NoCompanyContext means an identity resolved but is not attached to a
// tenant. Same status as Unauthorized, different remediation.
func NoCompanyContext(message string) *Error {
	return &Error{Status: http.StatusUnauthorized, Code: "no_company_context", Message: message}
}

// BadRequest means the request itself is malformed or carries invalid
// values.
func BadRequest(message string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: "bad_request", Message: message}
}

// Forbidden means an identity resolved but failed a role, capability,
// membership or impersonation check.
func Forbidden(message string) *Error {
	return &Error{Status: http.StatusForbidden, Code: "forbidden", Message: message}
}

// Conflict means the request contradicts existing state, e.g. inviting
// an email that already holds an active membership.
func Conflict(message string) *Error {
	return &Error{Status: http.StatusConflict, Code: "conflict", Message: message}
}

// NotFound reports an empty lookup result, distinguishable from an
// infrastructure failure.
func NotFound(resource, id string) *Error {
	return &Error{
		Status:  http.StatusNotFound,
		Code:    "not_found",
		Message: fmt.Sprintf("%s %q not found", resource, id),
	}
}

// Internal wraps an infrastructure failure.
func Internal(message string, err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: "internal", Message: message, Err: err}
}

// Wrap attaches a message to an infrastructure error, preserving any
// status already carried by err.
func Wrap(err error, message string) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return &Error{Status: ae.Status, Code: ae.Code, Message: message, Err: err}
	}
	return &Error{Status: http.StatusInternalServerError, Code: "internal", Message: message, Err: err}
}

// StatusOf extracts the status code from err, defaulting to 500 for
// errors that carry none. A nil err yields 0.
func StatusOf(err error) int {
	if err == nil {
		return 0
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Status
	}
	return http.StatusInternalServerError
}

// CodeOf extracts the machine-readable code, or "internal" for plain errors.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return "internal"
}

// IsNotFound reports whether err is an empty-result error rather than an
// infrastructure failure.
func IsNotFound(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Status == http.StatusNotFound
}
