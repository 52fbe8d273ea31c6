// Package errors provides coded domain errors shared across services.
//
// Services wrap infrastructure failures and invariant violations with a
// stable Code so transport layers can translate them without inspecting
// error strings. Callers check codes with HasCode / Is, never string
// comparison.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error for programmatic handling.
type Code string

const (
	// CodeInvalidInput marks malformed identifiers or arguments rejected at
	// a trust boundary before any business rule runs.
	CodeInvalidInput Code = "invalid_input"

	// CodeValidation marks a business-rule validation failure, such as an
	// empty rationale or a missing regulatory citation.
	CodeValidation Code = "validation"

	// CodeBadRequest marks an unparseable or structurally invalid request.
	CodeBadRequest Code = "bad_request"

	// CodeNotFound marks a lookup for an entity that does not exist.
	CodeNotFound Code = "not_found"

	// CodeConflict marks a concurrency conflict: double assignment, stale
	// version, or a write that lost a race. Callers refresh and retry.
	CodeConflict Code = "conflict"

	// CodeUnauthorized marks a request with no authenticated caller.
	CodeUnauthorized Code = "unauthorized"

	// CodeForbidden marks a role mismatch on a privileged operation.
	CodeForbidden Code = "forbidden"

	// CodeInvariantViolation marks a state transition the domain model does
	// not permit, such as completing an unassigned task.
	CodeInvariantViolation Code = "invariant_violation"

	// CodeInternal marks unexpected infrastructure failures.
	CodeInternal Code = "internal"
)

// Error is a coded domain error. It may wrap an underlying cause.
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

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. A nil err
// returns nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err or any error in its chain carries code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is an alias for HasCode kept for call-site readability.
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf returns the code of err, or CodeInternal when err carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a domain error to an HTTP status code.
func ToHTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeInvalidInput, CodeValidation, CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeInvariantViolation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
