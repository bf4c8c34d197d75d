package api

import (
	"errors"
	"net/http"
)

// AppError is an HTTP-mappable error. Details carries an optional
// machine-readable payload (quota errors include limit/used/reset).
type AppError struct {
	Code    int    `json:"-"`
	Message string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	return e.Message
}

var (
	ErrBadRequest          = &AppError{Code: http.StatusBadRequest, Message: "bad request"}
	ErrUnauthorized        = &AppError{Code: http.StatusUnauthorized, Message: "unauthorized"}
	ErrForbidden           = &AppError{Code: http.StatusForbidden, Message: "forbidden"}
	ErrNotFound            = &AppError{Code: http.StatusNotFound, Message: "not found"}
	ErrConflict            = &AppError{Code: http.StatusConflict, Message: "conflict"}
	ErrInternalServer      = &AppError{Code: http.StatusInternalServerError, Message: "internal server error"}
	ErrInvalidCredentials  = &AppError{Code: http.StatusUnauthorized, Message: "invalid email or password"}
	ErrEmailAlreadyExists  = &AppError{Code: http.StatusConflict, Message: "email already registered"}
	ErrInvalidToken        = &AppError{Code: http.StatusUnauthorized, Message: "invalid or expired token"}
	ErrOwnershipViolation  = &AppError{Code: http.StatusForbidden, Message: "access denied: ownership mismatch"}
	ErrGenerationFailed    = &AppError{Code: http.StatusInternalServerError, Message: "generation failed"}
	ErrInteractionNotFound = &AppError{Code: http.StatusNotFound, Message: "interaction not found"}
	ErrProjectNotFound     = &AppError{Code: http.StatusNotFound, Message: "project not found"}
)

func NewBadRequestError(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: msg}
}

func NewNotFoundError(msg string) *AppError {
	return &AppError{Code: http.StatusNotFound, Message: msg}
}

func NewConflictError(msg string) *AppError {
	return &AppError{Code: http.StatusConflict, Message: msg}
}

func NewValidationError(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: msg}
}

// NewQuotaError maps a quota rejection to 429 together with the
// machine-readable budget details clients use to render reset times.
func NewQuotaError(msg string, details any) *AppError {
	return &AppError{Code: http.StatusTooManyRequests, Message: msg, Details: details}
}

func HandleError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		JSONErrorDetails(w, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	JSONErrorMessage(w, http.StatusInternalServerError, "internal server error")
}
