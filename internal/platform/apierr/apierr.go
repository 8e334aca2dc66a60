package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeUnauthorized   = "unauthorized"
	CodeInvalidRequest = "invalid_request"
	CodeNotFound       = "not_found"
	CodeNotConfigured  = "not_configured"
	CodeUpstream       = "upstream_error"
	CodeInternal       = "internal_error"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func Unauthorized(msg string) *Error {
	return New(http.StatusUnauthorized, CodeUnauthorized, errors.New(msg))
}

func InvalidRequest(msg string) *Error {
	return New(http.StatusBadRequest, CodeInvalidRequest, errors.New(msg))
}

func NotFound(msg string) *Error {
	return New(http.StatusNotFound, CodeNotFound, errors.New(msg))
}

func NotConfigured(msg string) *Error {
	return New(http.StatusServiceUnavailable, CodeNotConfigured, errors.New(msg))
}

// UpstreamOpen reports a failure to reach the agent service before any
// response bytes were produced.
func UpstreamOpen(err error) *Error {
	return New(http.StatusBadGateway, CodeUpstream, err)
}

func Internal(err error) *Error {
	return New(http.StatusInternalServerError, CodeInternal, err)
}

// As extracts an *Error from err, or wraps err as an internal error.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal(err)
}

// StatusOf returns the HTTP status for err (500 when err is not an *Error).
func StatusOf(err error) int {
	if ae := As(err); ae != nil && ae.Status != 0 {
		return ae.Status
	}
	return http.StatusInternalServerError
}
