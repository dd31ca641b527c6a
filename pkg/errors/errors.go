package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an AppError independently of its code so transports can map it to a status.
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindValidation   Kind = "validation"
	KindUnauthorized Kind = "unauthorized"
	KindFailure      Kind = "failure"
	KindCancelled    Kind = "cancelled"
	KindUnexpected   Kind = "unexpected"
)

// StatusClientClosedRequest is the non-standard status used for cancelled requests.
const StatusClientClosedRequest = 499

// StatusCode returns the default HTTP status for the kind.
func (k Kind) StatusCode() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindFailure:
		return http.StatusUnprocessableEntity
	case KindCancelled:
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// AppError provides a structured error that can be rendered to API consumers.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Kind       Kind   `json:"-"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}

	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}

	return e.Message
}

// Unwrap exposes the internal error for errors.Is / errors.As compatibility.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// Is matches AppErrors by code so copies produced by WithInternal still compare equal.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if !errors.As(target, &other) || e == nil || other == nil {
		return false
	}
	return e.Code == other.Code
}

// WithInternal returns a copy of the AppError with an attached internal error.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Internal = err
	return &cpy
}

// Common errors exposed to the rest of the application.
var (
	ErrUnauthorized = &AppError{
		Code:       "Auth.Unauthorized",
		Message:    "Authentication required",
		Kind:       KindUnauthorized,
		StatusCode: http.StatusUnauthorized,
	}

	ErrForbidden = &AppError{
		Code:       "Auth.Forbidden",
		Message:    "Permission denied",
		Kind:       KindUnauthorized,
		StatusCode: http.StatusForbidden,
	}

	ErrNotFound = &AppError{
		Code:       "General.NotFound",
		Message:    "Resource not found",
		Kind:       KindNotFound,
		StatusCode: http.StatusNotFound,
	}

	ErrBadRequest = &AppError{
		Code:       "General.Validation",
		Message:    "Invalid request",
		Kind:       KindValidation,
		StatusCode: http.StatusBadRequest,
	}

	ErrInternalServer = &AppError{
		Code:       "General.Unexpected",
		Message:    "The operation failed",
		Kind:       KindUnexpected,
		StatusCode: http.StatusInternalServerError,
	}

	ErrCancelled = &AppError{
		Code:       "General.Cancelled",
		Message:    "The operation was cancelled",
		Kind:       KindCancelled,
		StatusCode: StatusClientClosedRequest,
	}
)

// New builds a new application error with the provided metadata.
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Kind:       kindForStatus(statusCode),
		StatusCode: statusCode,
	}
}

// NewKind builds an application error whose status is derived from its kind.
func NewKind(kind Kind, code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Kind:       kind,
		StatusCode: kind.StatusCode(),
	}
}

// NotFound, Conflict and Failure are shorthands for the most common domain errors.
func NotFound(code, message string) *AppError { return NewKind(KindNotFound, code, message) }

func Conflict(code, message string) *AppError { return NewKind(KindConflict, code, message) }

func Failure(code, message string) *AppError { return NewKind(KindFailure, code, message) }

// Unauthorized builds a failure that transports render as 401.
func Unauthorized(code, message string) *AppError {
	return NewKind(KindUnauthorized, code, message)
}

// Wrap turns any error into an AppError while keeping the original error for logging.
func Wrap(err error, message string) *AppError {
	return &AppError{
		Code:       ErrInternalServer.Code,
		Message:    message,
		Kind:       KindUnexpected,
		StatusCode: http.StatusInternalServerError,
		Internal:   err,
	}
}

// FromError converts a generic error into an AppError, defaulting to ErrInternalServer.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	if IsCancellation(err) {
		return ErrCancelled.WithInternal(err)
	}

	return ErrInternalServer.WithInternal(err)
}

// IsCancellation reports whether err stems from a cancelled or expired context.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// IsKind reports whether err carries an AppError of the supplied kind.
func IsKind(err error, kind Kind) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Kind == kind
}

// NewBadRequest wraps validation errors with a helpful message.
func NewBadRequest(message string) *AppError {
	return &AppError{
		Code:       ErrBadRequest.Code,
		Message:    message,
		Kind:       KindValidation,
		StatusCode: ErrBadRequest.StatusCode,
	}
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusConflict:
		return KindConflict
	case status == http.StatusBadRequest:
		return KindValidation
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindUnauthorized
	case status == StatusClientClosedRequest:
		return KindCancelled
	case status >= 500:
		return KindUnexpected
	default:
		return KindFailure
	}
}
