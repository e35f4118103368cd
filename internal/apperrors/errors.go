package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError rejects a request before any mutation happens: illegal
// reason or status for the dealer type, missing required field, bad input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError rejects a request because of the key's current state:
// already checked out, not checked out, or a transition blocked by an
// open session. Checked atomically with the mutation it guards.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// AuthorizationError rejects a request the acting user is not allowed to
// make. Nothing is written to the event log for a denied attempt.
type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string { return e.Message }

// NotFoundError means the referenced entity does not exist or is deleted.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

func Validation(msg string) error { return &ValidationError{Message: msg} }

func Validationf(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func Conflict(msg string) error { return &ConflictError{Message: msg} }

func Conflictf(format string, args ...interface{}) error {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

func Authorization(msg string) error { return &AuthorizationError{Message: msg} }

func NotFound(msg string) error { return &NotFoundError{Message: msg} }

func NotFoundf(format string, args ...interface{}) error {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func IsConflict(err error) bool {
	var e *ConflictError
	return errors.As(err, &e)
}

func IsAuthorization(err error) bool {
	var e *AuthorizationError
	return errors.As(err, &e)
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// HTTPStatus maps a service error to the status code handlers should write.
// Unrecognized errors are treated as internal.
func HTTPStatus(err error) int {
	switch {
	case IsValidation(err):
		return http.StatusBadRequest
	case IsAuthorization(err):
		return http.StatusForbidden
	case IsNotFound(err):
		return http.StatusNotFound
	case IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
