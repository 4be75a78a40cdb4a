package issuance

import (
	"fmt"
	"net/http"
)

// ErrorKind is the machine-readable category of a failed operation. The
// values are wire-stable: they appear verbatim in API error bodies.
type ErrorKind string

const (
	// ErrInvalidInput means the caller supplied a bad request (unknown
	// color, missing field, duplicate username).
	ErrInvalidInput ErrorKind = "invalid_input"
	// ErrUserNotRegistered means the provider does not recognize the
	// caller's external identity.
	ErrUserNotRegistered ErrorKind = "user_not_registered"
	// ErrProviderUnavailable means the provider is down, errored, timed
	// out, or violated its response contract.
	ErrProviderUnavailable ErrorKind = "provider_unavailable"
	// ErrInvalidCardData means the provider returned data that fails
	// semantic validation, e.g. an unparseable or past expiration date.
	ErrInvalidCardData ErrorKind = "invalid_card_data"
	// ErrCardNotFound covers both a missing card id and a card owned by
	// another user; the two must be indistinguishable to the caller.
	ErrCardNotFound ErrorKind = "card_not_found"
	// ErrPersistence means the local commit failed after the provider call
	// succeeded. The provider-side card may exist with no local record.
	ErrPersistence ErrorKind = "persistence_failure"
)

// Error is a categorized failure raised by the issuance service. The API
// boundary maps Kind to an HTTP status; everything below the boundary
// passes it through unmodified.
type Error struct {
	Kind    ErrorKind
	Message string
	cause   error
}

func newError(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// HTTPStatus returns the wire status for the error kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case ErrInvalidInput, ErrUserNotRegistered, ErrInvalidCardData:
		return http.StatusBadRequest
	case ErrProviderUnavailable:
		return http.StatusBadGateway
	case ErrCardNotFound:
		return http.StatusNotFound
	case ErrPersistence:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
