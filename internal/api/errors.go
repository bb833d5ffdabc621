package api

import (
	"fmt"
	"net/http"
)

// Error kinds exposed to clients. Every error response carries one of
// these plus a human-readable message; storage errors never leak verbatim.
const (
	KindValidation    = "validation"
	KindAuth          = "auth"
	KindAuthorization = "authorization"
	KindNotFound      = "not_found"
	KindForbidden     = "forbidden"
	KindConflict      = "conflict"
	KindInternal      = "internal"
)

type ApiError struct {
	StatusCode int    `json:"status_code"`
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	Data       any    `json:"data,omitempty"`
	Err        error  `json:"-"`
}

func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

func NewValidationError(msg string) *ApiError {
	return &ApiError{
		StatusCode: http.StatusBadRequest,
		Kind:       KindValidation,
		Message:    msg,
	}
}

func NewBadRequestError() *ApiError {
	return NewValidationError("bad request")
}

// NewAuthError is returned for every credential failure. Unknown email and
// wrong password produce this identical response so accounts cannot be
// enumerated.
func NewAuthError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusUnauthorized,
		Kind:       KindAuth,
		Message:    "invalid credentials",
	}
}

func NewUnauthorizedError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusUnauthorized,
		Kind:       KindAuth,
		Message:    "unauthorized",
	}
}

func NewAuthorizationError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusForbidden,
		Kind:       KindAuthorization,
		Message:    "insufficient privileges",
	}
}

func NewNotFoundError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusNotFound,
		Kind:       KindNotFound,
		Message:    "not found",
	}
}

func NewForbiddenError(msg string) *ApiError {
	return &ApiError{
		StatusCode: http.StatusForbidden,
		Kind:       KindForbidden,
		Message:    msg,
	}
}

func NewConflictError(msg string) *ApiError {
	return &ApiError{
		StatusCode: http.StatusConflict,
		Kind:       KindConflict,
		Message:    msg,
	}
}

func NewInternalServerError(err error) *ApiError {
	return &ApiError{
		StatusCode: http.StatusInternalServerError,
		Kind:       KindInternal,
		Message:    "internal server error",
		Err:        err,
	}
}
