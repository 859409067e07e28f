package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type Error struct {
	Code       string
	Message    string
	StatusCode int
	Internal   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Internal
}

const (
	CodeValidation    = "validation_error"
	CodeNotFound      = "not_found"
	CodeQuotaExceeded = "quota_exceeded"
	CodeRateLimited   = "rate_limited"
	CodeToolNotFound  = "tool_not_found"
	CodeToolFailed    = "tool_failed"
	CodeJobNotReady   = "job_not_ready"
	CodeNotRunning    = "stream_not_running"
)

var (
	ErrNotFound = &Error{
		Code:       CodeNotFound,
		Message:    "The requested resource was not found",
		StatusCode: http.StatusNotFound,
	}

	ErrUnauthorized = &Error{
		Code:       "unauthorized",
		Message:    "Authentication required",
		StatusCode: http.StatusUnauthorized,
	}

	ErrForbidden = &Error{
		Code:       "forbidden",
		Message:    "You don't have permission to access this resource",
		StatusCode: http.StatusForbidden,
	}

	ErrBadRequest = &Error{
		Code:       "bad_request",
		Message:    "Invalid request",
		StatusCode: http.StatusBadRequest,
	}

	ErrInvalidToken = &Error{
		Code:       "invalid_token",
		Message:    "Invalid or expired token",
		StatusCode: http.StatusUnauthorized,
	}

	ErrQuotaExceeded = &Error{
		Code:       CodeQuotaExceeded,
		Message:    "Export quota exhausted for the current billing period",
		StatusCode: http.StatusForbidden,
	}

	ErrRateLimited = &Error{
		Code:       CodeRateLimited,
		Message:    "Too many requests. Please try again later",
		StatusCode: http.StatusTooManyRequests,
	}

	ErrJobNotReady = &Error{
		Code:       CodeJobNotReady,
		Message:    "The job has not completed yet",
		StatusCode: http.StatusBadRequest,
	}

	ErrStreamNotRunning = &Error{
		Code:       CodeNotRunning,
		Message:    "The stream is not running",
		StatusCode: http.StatusBadRequest,
	}

	ErrToolFailed = &Error{
		Code:       CodeToolFailed,
		Message:    "Media processing failed. Please try again later",
		StatusCode: http.StatusInternalServerError,
	}

	ErrInternal = &Error{
		Code:       "internal_error",
		Message:    "An unexpected error occurred. Please try again later",
		StatusCode: http.StatusInternalServerError,
	}

	ErrServiceUnavailable = &Error{
		Code:       "service_unavailable",
		Message:    "Service temporarily unavailable. Please try again later",
		StatusCode: http.StatusServiceUnavailable,
	}
)

func New(code, message string, statusCode int) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Validation reports malformed or out-of-range input. The message is shown to
// the caller and should name the offending field.
func Validation(format string, args ...any) *Error {
	return New(CodeValidation, fmt.Sprintf(format, args...), http.StatusBadRequest)
}

func NotFound(what string) *Error {
	return New(CodeNotFound, what+" not found", http.StatusNotFound)
}

func RateLimited(message string) *Error {
	return New(CodeRateLimited, message, http.StatusTooManyRequests)
}

func ToolNotFound(tool string, err error) *Error {
	return WrapWithMessage(err, CodeToolNotFound,
		fmt.Sprintf("%s is not installed on the server; install it and make sure it is on PATH", tool),
		http.StatusInternalServerError)
}

func Wrap(err error, appErr *Error) *Error {
	return &Error{
		Code:       appErr.Code,
		Message:    appErr.Message,
		StatusCode: appErr.StatusCode,
		Internal:   err,
	}
}

func WrapWithMessage(err error, code, message string, statusCode int) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Internal:   err,
	}
}

func Is(err error, target *Error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == target.Code
	}
	return false
}

func StatusCode(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

func SafeMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return ErrInternal.Message
}

func Code(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal.Code
}
