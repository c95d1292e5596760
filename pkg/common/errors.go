package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AppError is an error with an associated HTTP status code.
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the wrapped cause
func (e *AppError) Unwrap() error {
	return e.Err
}

// AppErrorResponse writes an AppError as an error envelope
func AppErrorResponse(c *gin.Context, err *AppError) {
	ErrorResponse(c, err.Code, err.Message)
}

func newAppError(code int, message string, errs []error) *AppError {
	appErr := &AppError{Code: code, Message: message}
	if len(errs) > 0 {
		appErr.Err = errs[0]
	}
	return appErr
}

// NewBadRequestError creates a 400 error
func NewBadRequestError(message string, errs ...error) *AppError {
	return newAppError(http.StatusBadRequest, message, errs)
}

// NewUnauthorizedError creates a 401 error
func NewUnauthorizedError(message string, errs ...error) *AppError {
	return newAppError(http.StatusUnauthorized, message, errs)
}

// NewForbiddenError creates a 403 error
func NewForbiddenError(message string, errs ...error) *AppError {
	return newAppError(http.StatusForbidden, message, errs)
}

// NewNotFoundError creates a 404 error
func NewNotFoundError(message string, errs ...error) *AppError {
	return newAppError(http.StatusNotFound, message, errs)
}

// NewConflictError creates a 409 error
func NewConflictError(message string, errs ...error) *AppError {
	return newAppError(http.StatusConflict, message, errs)
}

// NewInternalError creates a 500 error wrapping a cause
func NewInternalError(message string, errs ...error) *AppError {
	return newAppError(http.StatusInternalServerError, message, errs)
}

// NewInternalServerError creates a 500 error
func NewInternalServerError(message string, errs ...error) *AppError {
	return newAppError(http.StatusInternalServerError, message, errs)
}

// NewBadGatewayError creates a 502 error for upstream failures
func NewBadGatewayError(message string, errs ...error) *AppError {
	return newAppError(http.StatusBadGateway, message, errs)
}

// NewServiceUnavailableError creates a 503 error
func NewServiceUnavailableError(message string, errs ...error) *AppError {
	return newAppError(http.StatusServiceUnavailable, message, errs)
}
