package httpclient

import (
	"fmt"
	"time"

	"github.com/go-faster/errors"
)

// ErrorType defines the category of client error
type ErrorType string

const (
	// NetworkError is a transport failure other than the attempt deadline.
	NetworkError ErrorType = "network"
	// TimeoutError means the attempt deadline fired on the last allowed attempt.
	TimeoutError ErrorType = "timeout"
	// HTTPError is a non-2xx status that was not retried or ran out of retries.
	HTTPError ErrorType = "http"
	// MalformedError is a non-empty response body that is not valid JSON.
	MalformedError ErrorType = "malformed"
	// ValidationError is a request that could not be built.
	ValidationError ErrorType = "validation"
)

// Error is returned by Client for every failed logical call.
type Error struct {
	Type       ErrorType
	Method     string
	URL        string
	StatusCode int
	Attempts   int
	Timeout    time.Duration
	Body       []byte
	Err        error
}

func (e *Error) Error() string {
	target := fmt.Sprintf("%s %s", e.Method, e.URL)

	var msg string
	switch e.Type {
	case TimeoutError:
		msg = fmt.Sprintf("request timed out after %v", e.Timeout)
	case NetworkError:
		msg = "network error or fetch failed"
	case HTTPError:
		msg = fmt.Sprintf("failed request (status: %d)", e.StatusCode)
	case MalformedError:
		msg = fmt.Sprintf("invalid JSON response (status: %d)", e.StatusCode)
	default:
		msg = fmt.Sprintf("%s error", e.Type)
	}

	if e.Attempts > 0 {
		msg = fmt.Sprintf("%s, attempts: %d", msg, e.Attempts)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", target, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", target, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsErrorType reports whether err is a client Error of the given type.
func IsErrorType(err error, t ErrorType) bool {
	var clientErr *Error
	if errors.As(err, &clientErr) {
		return clientErr.Type == t
	}
	return false
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var clientErr *Error
	if errors.As(err, &clientErr) {
		return clientErr.StatusCode
	}
	return 0
}
