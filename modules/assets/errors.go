package assets

import (
	"errors"
	"fmt"
)

// Code classifies every failure the assets service can surface. The set is
// closed; callers branch on the code, never on the message text.
type Code string

const (
	// CodeUnauthenticated means the credential is missing or invalid.
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	// CodeForbidden means the caller is authenticated but lacks permission
	// for this asset or action.
	CodeForbidden Code = "FORBIDDEN"
	// CodeBadRequest covers malformed input, disallowed MIME types, invalid
	// storage paths, expired tickets, and download requests for assets that
	// are not ready.
	CodeBadRequest Code = "BAD_REQUEST"
	// CodeVersionConflict means the optimistic-concurrency predicate failed.
	// The caller must refetch the asset and may retry with the fresh version.
	CodeVersionConflict Code = "VERSION_CONFLICT"
	// CodeNotFound means the referenced ticket, asset, or principal does not
	// exist or is not visible to the caller.
	CodeNotFound Code = "NOT_FOUND"
	// CodeIntegrityError means a server-computed digest, size, or signature
	// check disagrees with the client's claim. The asset is forced to the
	// corrupt state as a side effect; the ticket is not retryable.
	CodeIntegrityError Code = "INTEGRITY_ERROR"
)

// Error is a coded failure. It wraps an optional cause so call sites can
// still unwrap storage-layer errors while transports map on Code alone.
type Error struct {
	Code    Code
	Message string
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// NewError creates a coded error.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError creates a coded error around an underlying cause.
func WrapError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// CodeOf extracts the code from err, or "" when err carries no code.
func CodeOf(err error) Code {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}
