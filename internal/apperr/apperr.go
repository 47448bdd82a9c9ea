// Package apperr defines the error taxonomy surfaced by the HTTP API.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an error and determines its HTTP status.
type Kind string

const (
	KindInvalidInput           Kind = "invalid_input"
	KindMissingFields          Kind = "missing_fields"
	KindInvalidSignature       Kind = "invalid_signature"
	KindInvalidSignatureFormat Kind = "invalid_signature_format"
	KindInvalidChallenge       Kind = "invalid_challenge"
	KindUnauthorized           Kind = "unauthorized"
	KindInvalidToken           Kind = "invalid_token"
	KindInvalidOrExpiredToken  Kind = "invalid_or_expired_token"
	KindSessionMismatch        Kind = "session_mismatch"
	KindForbidden              Kind = "forbidden"
	KindConflict               Kind = "conflict"
	KindNotFound               Kind = "not_found"
	KindTooManyRequests        Kind = "too_many_requests"
	KindInternal               Kind = "internal"
)

// Status maps the kind onto an HTTP status code.
func (k Kind) Status() int {
	switch k {
	case KindInvalidInput, KindMissingFields, KindConflict, KindInvalidOrExpiredToken, KindSessionMismatch:
		return http.StatusBadRequest
	case KindInvalidSignature, KindInvalidSignatureFormat, KindInvalidChallenge, KindUnauthorized, KindInvalidToken:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified, client-presentable error. Message is safe to return
// to callers; Err holds the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// WithDetails attaches structured details (e.g. field errors) to the response.
func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

// New builds an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an error of the given kind around a cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

func InvalidInput(message string) *Error  { return New(KindInvalidInput, message) }
func MissingFields(message string) *Error { return New(KindMissingFields, message) }
func Unauthorized(message string) *Error  { return New(KindUnauthorized, message) }
func InvalidToken(message string) *Error  { return New(KindInvalidToken, message) }
func Forbidden(message string) *Error     { return New(KindForbidden, message) }
func Conflict(message string) *Error      { return New(KindConflict, message) }
func NotFound(message string) *Error      { return New(KindNotFound, message) }

// Internal wraps an unexpected failure; the message stays generic.
func Internal(message string, err error) *Error {
	return Wrap(KindInternal, message, err)
}
