// Package apperr defines the error categories surfaced by the API and their HTTP mapping.
package apperr

import (
	"errors"
	"net/http"
)

// Code identifies a stable error category that is safe to expose to callers.
type Code string

const (
	CodeValidation  Code = "validation"
	CodeNotFound    Code = "not_found"
	CodeUpstream    Code = "upstream"
	CodePersistence Code = "persistence"
	CodeCache       Code = "cache"
	CodeInternal    Code = "internal"
)

// Error carries a category, a caller-safe message and the underlying cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation reports a missing or malformed request field.
func Validation(message string) error {
	return &Error{Code: CodeValidation, Message: message}
}

// NotFound reports an unknown resource.
func NotFound(message string) error {
	return &Error{Code: CodeNotFound, Message: message}
}

// Upstream wraps a failure of an external generative service.
func Upstream(message string, err error) error {
	return &Error{Code: CodeUpstream, Message: message, Err: err}
}

// Persistence wraps a failure of the database or blob storage.
func Persistence(message string, err error) error {
	return &Error{Code: CodePersistence, Message: message, Err: err}
}

// CacheFailure wraps a cache backend error. Callers recover these as misses.
func CacheFailure(message string, err error) error {
	return &Error{Code: CodeCache, Message: message, Err: err}
}

// CodeOf returns the category of err, or CodeInternal for uncategorised errors.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// Is reports whether err belongs to the given category.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// Message returns the caller-safe message of err, or fallback when err is uncategorised.
func Message(err error, fallback string) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return fallback
}

// HTTPStatus maps an error category onto a response status.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
