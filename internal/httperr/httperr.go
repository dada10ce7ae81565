// Package httperr defines errors that carry an HTTP status code.
package httperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is an error that should be reported to the client with Status.
type Error struct {
	Status  int
	Message string
	Cause   error
	// Header is added to the error response, e.g. WWW-Authenticate.
	Header http.Header

	// origin is the error this one was copied from by WithHeader.
	origin *Error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the error e was derived from, so a header
// added to a package-level sentinel still matches it with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	for o := e.origin; o != nil; o = o.origin {
		if o == t {
			return true
		}
	}
	return false
}

// WithHeader returns a copy of e with the response header set. The receiver
// is left untouched, so it is safe to call on shared sentinel errors.
func (e *Error) WithHeader(key, value string) *Error {
	clone := *e
	clone.Header = e.Header.Clone()
	if clone.Header == nil {
		clone.Header = http.Header{}
	}
	clone.Header.Set(key, value)
	clone.origin = e
	return &clone
}

// New returns an Error with the given status and message.
func New(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

// Wrap returns an Error with the given status caused by err.
func Wrap(status int, err error) *Error {
	return &Error{Status: status, Message: http.StatusText(status), Cause: err}
}

func BadRequest(err error) *Error {
	return Wrap(http.StatusBadRequest, err)
}

func Unauthorized(err error) *Error {
	return Wrap(http.StatusUnauthorized, err)
}

func Forbidden(err error) *Error {
	return Wrap(http.StatusForbidden, err)
}

func NotFound() *Error {
	return New(http.StatusNotFound, http.StatusText(http.StatusNotFound))
}

func MethodNotAllowed() *Error {
	return New(http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
}

func InternalServerError(err error) *Error {
	return Wrap(http.StatusInternalServerError, err)
}

// StatusOf returns the status carried by err. Errors without one are
// reported as 500.
func StatusOf(err error) int {
	var httpErr *Error
	if errors.As(err, &httpErr) && httpErr.Status != 0 {
		return httpErr.Status
	}
	return http.StatusInternalServerError
}

// Title returns the message that should be shown to the client for err.
func Title(err error) string {
	var httpErr *Error
	if errors.As(err, &httpErr) && httpErr.Message != "" {
		return httpErr.Message
	}
	return http.StatusText(StatusOf(err))
}

// HeaderOf returns the response headers carried by err, if any.
func HeaderOf(err error) http.Header {
	var httpErr *Error
	if errors.As(err, &httpErr) {
		return httpErr.Header
	}
	return nil
}
