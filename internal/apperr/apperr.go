// Package apperr defines the error kinds shared by the order engine and the
// HTTP layer that maps them to responses.
package apperr

import (
	"errors"
	"net/http"
)

type Kind string

const (
	KindUnknown       Kind = "UNKNOWN"
	KindValidation    Kind = "VALIDATION"
	KindNotConfigured Kind = "NOT_CONFIGURED"
	KindNotFound      Kind = "NOT_FOUND"
	KindUpstream      Kind = "UPSTREAM"
	KindPersistence   Kind = "PERSISTENCE"
)

// Error carries a kind, a message and an optional cause.
// Message is safe to show a client only for Validation and NotFound.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches another *Error by kind, so errors.Is(err, apperr.ErrNotFound) works.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// Sentinels for errors.Is checks.
var (
	ErrValidation    = &Error{Kind: KindValidation}
	ErrNotConfigured = &Error{Kind: KindNotConfigured}
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrUpstream      = &Error{Kind: KindUpstream}
	ErrPersistence   = &Error{Kind: KindPersistence}
)

func Validation(msg string) error { return &Error{Kind: KindValidation, Message: msg} }

func NotConfigured(msg string) error { return &Error{Kind: KindNotConfigured, Message: msg} }

func NotFound(msg string) error { return &Error{Kind: KindNotFound, Message: msg} }

func Upstream(msg string, cause error) error {
	return &Error{Kind: KindUpstream, Message: msg, Cause: cause}
}

func Persistence(msg string, cause error) error {
	return &Error{Kind: KindPersistence, Message: msg, Cause: cause}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// HTTPStatus maps an error to the status code the API answers with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindNotConfigured:
		return http.StatusServiceUnavailable
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns text that may be sent to an end customer.
// Upstream and persistence causes never leak.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "internal error"
	}
	switch e.Kind {
	case KindValidation, KindNotFound, KindNotConfigured:
		return e.Message
	case KindUpstream:
		if e.Message != "" {
			return e.Message
		}
		return "upstream service unavailable"
	default:
		return "internal error"
	}
}
