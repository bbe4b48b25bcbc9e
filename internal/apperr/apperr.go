// Package apperr defines the error taxonomy shared by the tenant store,
// the auth gate and the HTTP layer. Every error carries a kind and a stable
// reason code so the transport can map it to a status without string matching.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies errors by how the caller should react.
type Kind string

const (
	KindValidation Kind = "validation"
	KindAuth       Kind = "auth"
	KindConflict   Kind = "conflict"
	KindStorage    Kind = "storage"
)

// Stable reason codes.
const (
	CodeMissingCredentials = "missing-credentials"
	CodeTimestampExpired   = "timestamp-expired"
	CodeInvalidSignature   = "invalid-signature"
	CodeMalformedSignature = "malformed-signature"
	CodeCorruptStoredKey   = "corrupt-stored-key"

	CodeKeyAlreadySet    = "key-already-registered"
	CodeInvalidPublicKey = "invalid-public-key"
	CodeMissingField     = "missing-field"
	CodeInvalidBody      = "invalid-body"
	CodeInvalidParameter = "invalid-parameter"

	CodeStorageFailure = "storage-failure"
)

// Error is the structured error type returned across package boundaries.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Kind, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target has the same kind and code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind && e.Code == t.Code
	}
	return false
}

// New creates an Error without a cause.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap creates an Error around an existing cause.
func Wrap(kind Kind, code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Cause: cause}
}

// Storage wraps a local I/O failure. Storage errors are never retried.
func Storage(message string, cause error) *Error {
	return Wrap(KindStorage, CodeStorageFailure, message, cause)
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// CodeOf returns the reason code of err, or "" when err is not an *Error.
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// Status maps an error to the HTTP status the transport should answer with.
func Status(err error) int {
	var ae *Error
	if !errors.As(err, &ae) {
		return http.StatusInternalServerError
	}
	switch ae.Kind {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindAuth:
		// A key we cannot parse is our fault, not the client's.
		if ae.Code == CodeCorruptStoredKey {
			return http.StatusInternalServerError
		}
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
