// Package apperror defines the error kinds shared by retrieval, caching and chat.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindNotFound            Kind = "NOT_FOUND"
	KindValidation          Kind = "VALIDATION_ERROR"
	KindProviderUnavailable Kind = "PROVIDER_UNAVAILABLE"
	KindCache               Kind = "CACHE_ERROR"
	KindUnauthorized        Kind = "UNAUTHORIZED"
	KindForbidden           Kind = "FORBIDDEN"
	KindInternal            Kind = "INTERNAL"
)

// AppError carries a Kind so transport layers can map it without string matching.
type AppError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

func Wrap(err error, kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message, Err: err}
}

func NotFound(format string, args ...interface{}) *AppError {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

func Validation(format string, args ...interface{}) *AppError {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

func ProviderUnavailable(err error, message string) *AppError {
	return Wrap(err, KindProviderUnavailable, message)
}

// CacheFailure marks a durable cache problem. Callers log it and carry on.
func CacheFailure(err error, message string) *AppError {
	return Wrap(err, KindCache, message)
}

// KindOf returns the kind of the first AppError in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind == kind
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindProviderUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
