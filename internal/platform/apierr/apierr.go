package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrConflict        = errors.New("conflict")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
)

// Error pairs an HTTP status and a stable machine-readable code with the
// underlying cause.
type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func NotFound(code, msg string) *Error {
	return New(http.StatusNotFound, code, fmt.Errorf("%s: %w", msg, ErrNotFound))
}

func BadRequest(code, msg string) *Error {
	return New(http.StatusBadRequest, code, fmt.Errorf("%s: %w", msg, ErrInvalidArgument))
}

func Conflict(code, msg string) *Error {
	return New(http.StatusConflict, code, fmt.Errorf("%s: %w", msg, ErrConflict))
}

func Forbidden(code, msg string) *Error {
	return New(http.StatusForbidden, code, fmt.Errorf("%s: %w", msg, ErrForbidden))
}

func Unauthorized(code, msg string) *Error {
	return New(http.StatusUnauthorized, code, fmt.Errorf("%s: %w", msg, ErrUnauthorized))
}

// Describe resolves the status and code for err. An *Error anywhere in the
// chain wins; bare sentinels map to their natural status.
func Describe(err error) (int, string) {
	if err == nil {
		return http.StatusOK, ""
	}
	var ae *Error
	if errors.As(err, &ae) && ae.Status != 0 {
		return ae.Status, ae.Code
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "forbidden"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
