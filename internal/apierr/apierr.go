// Package apierr carries the structured error shape every user-visible
// failure is reduced to: an HTTP status and a short message, serialized as
// {"status": ..., "message": ...}.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

type Error struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// New builds an error with an explicit status.
func New(status int, format string, args ...any) *Error {
	return &Error{Status: status, Message: fmt.Sprintf(format, args...)}
}

// Internal builds a 500 error.
func Internal(format string, args ...any) *Error {
	return New(http.StatusInternalServerError, format, args...)
}

// From maps any error to an *Error, defaulting to status 500 so no internal
// detail beyond the message leaks out.
func From(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internal("%s", err.Error())
}
