package httpclient

import (
	"fmt"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "timeout",
			err:  &Error{Type: TimeoutError, Method: "GET", URL: "http://x/a", Timeout: 2 * time.Second, Attempts: 4},
			want: "GET http://x/a: request timed out after 2s, attempts: 4",
		},
		{
			name: "network with cause",
			err:  &Error{Type: NetworkError, Method: "GET", URL: "http://x/a", Err: errors.New("refused")},
			want: "GET http://x/a: network error or fetch failed: refused",
		},
		{
			name: "http status",
			err:  &Error{Type: HTTPError, Method: "POST", URL: "http://x/b", StatusCode: 503, Attempts: 1},
			want: "POST http://x/b: failed request (status: 503), attempts: 1",
		},
		{
			name: "malformed",
			err:  &Error{Type: MalformedError, Method: "GET", URL: "http://x/c", StatusCode: 200},
			want: "GET http://x/c: invalid JSON response (status: 200)",
		},
		{
			name: "validation",
			err:  &Error{Type: ValidationError, Method: "HEAD", URL: "http://x/d"},
			want: "HEAD http://x/d: validation error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestIsErrorType_Wrapped(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("fetch tariffs: %w", &Error{Type: NetworkError, StatusCode: 0, Err: cause})

	assert.True(t, IsErrorType(err, NetworkError))
	assert.False(t, IsErrorType(err, TimeoutError))
	assert.False(t, IsErrorType(cause, NetworkError))
	assert.ErrorIs(t, err, cause)
}

func TestStatusCode(t *testing.T) {
	wrapped := errors.Wrap(&Error{Type: HTTPError, StatusCode: 502}, "sync")

	assert.Equal(t, 502, StatusCode(wrapped))
	assert.Equal(t, 0, StatusCode(errors.New("plain")))
}
