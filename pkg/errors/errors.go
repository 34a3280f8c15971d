package errors

import (
	"errors"
	"fmt"
	"net/http"

	"camrelay/internal/core/domain"
)

// ErrorCode is the machine readable code returned to API clients.
type ErrorCode string

const (
	ErrCodeInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeConflict           ErrorCode = "CONFLICT"
	ErrCodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden          ErrorCode = "FORBIDDEN"
	ErrCodeInvalidPairingCode ErrorCode = "INVALID_PAIRING_CODE"
	ErrCodeBatchTooLarge      ErrorCode = "BATCH_TOO_LARGE"
	ErrCodeRateLimit          ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// AppError carries a code and HTTP status alongside the underlying cause.
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
	Context    map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds a detail that is rendered into the error response.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func NewAppError(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus}
}

func WrapError(err error, code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus, Cause: err}
}

func NewInvalidInputError(message string) *AppError {
	return NewAppError(ErrCodeInvalidInput, message, http.StatusBadRequest)
}

func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrCodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func NewUnauthorizedError(message string) *AppError {
	return NewAppError(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

func NewForbiddenError(message string) *AppError {
	return NewAppError(ErrCodeForbidden, message, http.StatusForbidden)
}

func NewRateLimitError() *AppError {
	return NewAppError(ErrCodeRateLimit, "rate limit exceeded", http.StatusTooManyRequests)
}

func NewInternalError(message string) *AppError {
	return NewAppError(ErrCodeInternal, message, http.StatusInternalServerError)
}

// GetAppError finds the first AppError in err's chain.
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// FromDomain maps a service error onto the API error it should surface as.
// Errors that are already AppErrors pass through unchanged.
func FromDomain(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr := GetAppError(err); appErr != nil {
		return appErr
	}

	switch {
	case errors.Is(err, domain.ErrCameraNotFound):
		return WrapError(err, ErrCodeNotFound, "camera not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrSessionNotFound):
		return WrapError(err, ErrCodeNotFound, "session not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrLinkNotFound):
		return WrapError(err, ErrCodeNotFound, "monitor link not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrSessionExists):
		return WrapError(err, ErrCodeConflict, "session already exists", http.StatusConflict)
	case errors.Is(err, domain.ErrInvalidPairingCode):
		return WrapError(err, ErrCodeInvalidPairingCode, "pairing code does not match", http.StatusForbidden)
	case errors.Is(err, domain.ErrPermissionDenied):
		return WrapError(err, ErrCodeForbidden, "permission denied", http.StatusForbidden)
	case errors.Is(err, domain.ErrBatchTooLarge):
		return WrapError(err, ErrCodeBatchTooLarge, "too many mutations in one batch", http.StatusRequestEntityTooLarge)
	case errors.Is(err, domain.ErrInvalidNegotiation),
		errors.Is(err, domain.ErrInvalidSessionStatus),
		errors.Is(err, domain.ErrInvalidCandidate),
		errors.Is(err, domain.ErrInvalidBatteryLevel):
		return WrapError(err, ErrCodeInvalidInput, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrStoreUnavailable):
		return WrapError(err, ErrCodeServiceUnavailable, "store unavailable", http.StatusServiceUnavailable)
	}
	return WrapError(err, ErrCodeInternal, "internal error", http.StatusInternalServerError)
}
