// Package apperr holds the error kinds shared by the library managers and
// their HTTP mapping.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateKey  = errors.New("duplicate key")
	ErrInvalidState  = errors.New("invalid state")
	ErrLimitExceeded = errors.New("limit exceeded")
	ErrValidation    = errors.New("validation failed")
	ErrUnauthorized  = errors.New("unauthorized")
)

// NotFound reports a missing entity by id.
func NotFound(entity string, id int64) error {
	return fmt.Errorf("%w: %s %d", ErrNotFound, entity, id)
}

// NotFoundBy reports a missing entity looked up by another unique field.
func NotFoundBy(entity, field, value string) error {
	return fmt.Errorf("%w: %s with %s %q", ErrNotFound, entity, field, value)
}

// Unauthorized reports failed authentication.
func Unauthorized(reason string) error {
	return fmt.Errorf("%w: %s", ErrUnauthorized, reason)
}

// Duplicate reports a unique constraint violation on field.
func Duplicate(entity, field, value string) error {
	return fmt.Errorf("%w: %s with %s %q already exists", ErrDuplicateKey, entity, field, value)
}

// InvalidState reports an operation not permitted in the current state.
func InvalidState(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, reason)
}

// LimitExceeded reports a quota that has been reached.
func LimitExceeded(reason string) error {
	return fmt.Errorf("%w: %s", ErrLimitExceeded, reason)
}

// Invalid reports a malformed field value.
func Invalid(field, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrValidation, field, reason)
}

// HTTPStatus maps an error to the status code the HTTP surface responds with.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateKey):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrLimitExceeded), errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
