// Package apperr holds the error kinds shared by services and the HTTP layer.
package apperr

import (
	"errors"
	"net/http"
)

var (
	ErrUnauthenticated = errors.New("could not validate credentials")
	ErrConflict        = errors.New("already exists")
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotFound        = errors.New("not found")
	ErrStorageWrite    = errors.New("object storage write failed")
	ErrMetadataWrite   = errors.New("metadata write failed")
	ErrCache           = errors.New("cache write failed")
	ErrInternal        = errors.New("internal server error")
)

// Error pairs a kind with a client-safe detail. Err is the internal cause and
// is only ever logged.
type Error struct {
	Kind   error
	Detail string
	Err    error
}

func New(kind error, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: cause}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Detail + ": " + e.Err.Error()
	}
	return e.Detail
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Status maps err onto an HTTP status code.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrConflict), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Detail returns the message that may be shown to a client.
func Detail(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Detail != "" {
		return e.Detail
	}
	for _, kind := range []error{ErrUnauthenticated, ErrConflict, ErrInvalidInput, ErrNotFound} {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return ErrInternal.Error()
}
