// Package apperr defines the error taxonomy shared by the auth core and the
// HTTP layer. Every failure that crosses the service boundary is an *Error
// with a Kind; handlers translate the Kind into a status code and the
// Fields into the "errors" member of the response envelope.
package apperr

import (
	"errors"
	"net/http"
	"time"
)

// Kind classifies a failure.
type Kind int

const (
	KindUnexpected Kind = iota
	KindValidation
	KindAuthFailed
	KindTokenInvalid
	KindTokenExpired
	KindTokenRevoked
	KindRateLimited
	KindNotFound
	KindUnauthorized
	KindForbidden
)

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindAuthFailed, KindTokenInvalid, KindTokenExpired, KindTokenRevoked, KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthFailed:
		return "auth_failed"
	case KindTokenInvalid:
		return "token_invalid"
	case KindTokenExpired:
		return "token_expired"
	case KindTokenRevoked:
		return "token_revoked"
	case KindRateLimited:
		return "rate_limited"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	default:
		return "unexpected"
	}
}

// Fields maps a request field name to its messages.
type Fields map[string][]string

// Error is a classified failure. Message is safe to show to clients;
// Err carries the underlying cause for logs. RetryAfter is only set on
// rate-limit failures.
type Error struct {
	Kind       Kind
	Message    string
	Fields     Fields
	Err        error
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind, so sentinels
// such as ErrTokenRevoked match any revoked-token failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// New builds an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Validation builds a 422 error carrying field messages.
func Validation(fields Fields) *Error {
	return &Error{Kind: KindValidation, Message: "Validation failed", Fields: fields}
}

// AuthFailed builds a credential failure pointing at a single field.
func AuthFailed(field, msg string) *Error {
	return &Error{Kind: KindAuthFailed, Message: "Authentication failed", Fields: Fields{field: {msg}}}
}

// Unexpected wraps an unclassified fault.
func Unexpected(err error) *Error {
	return &Error{Kind: KindUnexpected, Message: "Server error", Err: err}
}

// Sentinels for errors.Is checks.
var (
	ErrTokenInvalid = New(KindTokenInvalid, "Token is invalid")
	ErrTokenExpired = New(KindTokenExpired, "Token has expired")
	ErrTokenRevoked = New(KindTokenRevoked, "Token has been revoked")
	ErrRateLimited  = New(KindRateLimited, "Too many login attempts. Please try again later.")
	ErrNotFound     = New(KindNotFound, "Resource not found")
	ErrUnauthorized = New(KindUnauthorized, "Unauthorized")
	ErrForbidden    = New(KindForbidden, "Forbidden")
)

// KindOf returns the kind of err, or KindUnexpected when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// From returns err as an *Error, wrapping unclassified errors as Unexpected.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Unexpected(err)
}
