package orchestrate

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrNotConfigured is returned when neither credential source nor the base
// URL is set.
var ErrNotConfigured = errors.New("orchestrate: upstream not configured")

// HTTPError is a non-2xx response from the agent service or a token endpoint.
type HTTPError struct {
	Endpoint   string
	StatusCode int
	Body       string
	// RetryAfter is the server's Retry-After hint, zero when absent.
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("orchestrate %s: http %d: %s", e.Endpoint, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("orchestrate http %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// StreamError is a read failure after the run stream started.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string { return "orchestrate stream: " + e.Err.Error() }

func (e *StreamError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.StatusCode == http.StatusNotFound
}
