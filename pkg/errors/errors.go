// Package errors carries the error contract of the reminder API. Handlers render *Error values
// as the "error" member of the response envelope, and the heartbeat worker branches on Code to
// decide whether a job is dropped, retried on the next beat or redelivered.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is an API error with a stable code and the HTTP status it maps to.
type Error struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
	Status  int      `json:"status"`
	Err     error    `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithFields returns a copy naming the request fields that were rejected.
func (e *Error) WithFields(fields ...string) *Error {
	clone := *e
	clone.Fields = append([]string(nil), fields...)
	return &clone
}

// New creates an Error.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches a code, status and message to an underlying error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Account and request errors.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	// ErrFormat marks a malformed date, time, offset, period or filter string.
	ErrFormat   = New("FORMAT_ERROR", http.StatusBadRequest, "malformed value")
	ErrInternal = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
)

// Pipeline errors.
var (
	// ErrChannelTransport means a notification could not reach the email or SMS provider.
	// The event keeps its schedule and is picked up again by the next heartbeat.
	ErrChannelTransport = New("CHANNEL_TRANSPORT", http.StatusBadGateway, "notification channel unavailable")
	ErrCacheMiss        = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// FromError normalises any error into an *Error; unknown errors become ErrInternal.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Is reports whether err carries the same code as target.
func Is(err error, target *Error) bool {
	var e *Error
	if target == nil || !errors.As(err, &e) {
		return false
	}
	return e.Code == target.Code
}

// Clone copies err, replacing the message when one is given.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
