package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRetryDelay = 10 * time.Millisecond

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(baseURL string, opts ...Option) *Client {
	return New(Config{
		Name:       "test",
		BaseURL:    baseURL,
		Retries:    DefaultRetries,
		RetryDelay: testRetryDelay,
	}, testLogger(), opts...)
}

// countingServer answers every request with handler and counts hits.
func countingServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestDo_RetriesTransientStatusesThenFails(t *testing.T) {
	for _, status := range []int{502, 503, 504, 429, 420} {
		t.Run(strconv.Itoa(status), func(t *testing.T) {
			srv, hits := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(status)
				_, _ = w.Write([]byte(`{"error":"busy"}`))
			})
			client := newTestClient(srv.URL)

			start := time.Now()
			outcome, err := client.Get(context.Background(), "/tariffs", nil)
			elapsed := time.Since(start)

			require.Error(t, err)
			assert.Nil(t, outcome)
			assert.True(t, IsErrorType(err, HTTPError))
			assert.Equal(t, status, StatusCode(err))
			assert.Equal(t, int32(DefaultRetries+1), hits.Load())
			assert.GreaterOrEqual(t, elapsed, DefaultRetries*testRetryDelay)

			var clientErr *Error
			require.True(t, errors.As(err, &clientErr))
			assert.Equal(t, DefaultRetries+1, clientErr.Attempts)
			assert.Contains(t, err.Error(), "failed request")
		})
	}
}

func TestDo_RecoversAfterTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv, hits := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	client := newTestClient(srv.URL)

	outcome, err := client.Get(context.Background(), "/", nil)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, outcome.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(outcome.Payload))
	assert.Equal(t, int32(2), hits.Load())
}

func TestDo_ZeroRetriesFailsImmediately(t *testing.T) {
	srv, hits := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	client := newTestClient(srv.URL)

	_, err := client.Get(context.Background(), "/", nil, WithRetries(0))

	require.Error(t, err)
	assert.True(t, IsErrorType(err, HTTPError))
	assert.Equal(t, int32(1), hits.Load())
}

func TestDo_BadRequestReturnsEmptyOutcome(t *testing.T) {
	srv, hits := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"title":"invalid date"}`))
	})
	client := newTestClient(srv.URL)

	outcome, err := client.Get(context.Background(), "/", nil)

	require.NoError(t, err)
	assert.True(t, outcome.Empty())
	assert.Nil(t, outcome.Payload)
	assert.Equal(t, http.StatusBadRequest, outcome.StatusCode)
	assert.JSONEq(t, `{"title":"invalid date"}`, string(outcome.Raw))
	assert.Equal(t, int32(1), hits.Load())
}

func TestDo_NoContentSkipsBody(t *testing.T) {
	srv, hits := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	client := newTestClient(srv.URL)

	outcome, err := client.Delete(context.Background(), "/items/1")

	require.NoError(t, err)
	assert.True(t, outcome.Empty())
	assert.Nil(t, outcome.Raw)
	assert.Equal(t, http.StatusNoContent, outcome.StatusCode)
	assert.Equal(t, int32(1), hits.Load())
}

func TestDo_EmptySuccessBody(t *testing.T) {
	srv, _ := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("  \n"))
	})
	client := newTestClient(srv.URL)

	outcome, err := client.Get(context.Background(), "/", nil)

	require.NoError(t, err)
	assert.True(t, outcome.Empty())

	var v map[string]any
	require.NoError(t, outcome.Decode(&v))
	assert.Nil(t, v)
}

func TestDo_MalformedJSONIsNotRetried(t *testing.T) {
	srv, hits := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>oops</html>"))
	})
	client := newTestClient(srv.URL)

	outcome, err := client.Get(context.Background(), "/", nil)

	require.Error(t, err)
	assert.Nil(t, outcome)
	assert.True(t, IsErrorType(err, MalformedError))
	assert.Contains(t, err.Error(), "invalid JSON response")
	assert.Equal(t, int32(1), hits.Load())
}

func TestDo_MalformedBodyOnErrorStatusIsNotRetried(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "html on 503", status: http.StatusServiceUnavailable, body: "<html>bad gateway</html>"},
		{name: "text on 400", status: http.StatusBadRequest, body: "not json"},
		{name: "text on 502", status: http.StatusBadGateway, body: "upstream down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, hits := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			client := newTestClient(srv.URL)

			outcome, err := client.Get(context.Background(), "/", nil)

			require.Error(t, err)
			assert.Nil(t, outcome)
			assert.True(t, IsErrorType(err, MalformedError))
			assert.Equal(t, tt.status, StatusCode(err))
			assert.Equal(t, int32(1), hits.Load())
		})
	}
}

func TestDo_NonRetryableStatusFails(t *testing.T) {
	srv, hits := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"title":"unauthorized"}`))
	})
	client := newTestClient(srv.URL)

	_, err := client.Get(context.Background(), "/", nil)

	require.Error(t, err)
	assert.True(t, IsErrorType(err, HTTPError))
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
	assert.Equal(t, int32(1), hits.Load())
}

func TestDo_NetworkErrorRetriedThenFails(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close()

	client := newTestClient(baseURL)

	_, err := client.Get(context.Background(), "/", nil, WithRetries(2))

	require.Error(t, err)
	assert.True(t, IsErrorType(err, NetworkError))
	assert.Contains(t, err.Error(), "network error")

	var clientErr *Error
	require.True(t, errors.As(err, &clientErr))
	assert.Equal(t, 3, clientErr.Attempts)
}

func TestDo_TimeoutRetriedThenFails(t *testing.T) {
	srv, hits := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	client := New(Config{
		Name:       "test",
		BaseURL:    srv.URL,
		Timeout:    30 * time.Millisecond,
		Retries:    1,
		RetryDelay: testRetryDelay,
	}, testLogger())

	_, err := client.Get(context.Background(), "/", nil)

	require.Error(t, err)
	assert.True(t, IsErrorType(err, TimeoutError))
	assert.Contains(t, err.Error(), "request timed out after 30ms")
	assert.Equal(t, int32(2), hits.Load())
}

func TestDo_CallerCancellationStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, hits := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		cancel()
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	client := newTestClient(srv.URL)

	start := time.Now()
	_, err := client.Get(ctx, "/", nil, WithRetryDelay(5*time.Second))

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, int32(1), hits.Load())
}

func TestDo_PerCallHeaderOverridesDefault(t *testing.T) {
	var gotAuth, gotAgent, gotExtra string
	srv, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAgent = r.Header.Get("User-Agent")
		gotExtra = r.Header.Get("X-Default")
		w.WriteHeader(http.StatusNoContent)
	})
	client := New(Config{
		BaseURL:   srv.URL,
		UserAgent: "wb-tariffs/test",
		Headers: map[string]string{
			"Authorization": "default-key",
			"X-Default":     "kept",
		},
	}, testLogger())

	_, err := client.Do(context.Background(), Request{
		Path:    "/",
		Method:  http.MethodGet,
		Headers: map[string]string{"authorization": "per-call-key"},
	})

	require.NoError(t, err)
	assert.Equal(t, "per-call-key", gotAuth)
	assert.Equal(t, "wb-tariffs/test", gotAgent)
	assert.Equal(t, "kept", gotExtra)
}

func TestDo_EncodesQueryAndBody(t *testing.T) {
	var gotQuery url.Values
	var gotBody map[string]any
	var gotContentType string
	srv, _ := countingServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		gotContentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[1,2,3]`))
	})
	client := newTestClient(srv.URL)

	outcome, err := client.Do(context.Background(), Request{
		Path:   "/api/v1/tariffs/box",
		Method: "post",
		Query:  url.Values{"date": {"2025-08-20"}},
		Body:   map[string]string{"warehouse": "Коледино"},
	})

	require.NoError(t, err)
	assert.Equal(t, "2025-08-20", gotQuery.Get("date"))
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "Коледино", gotBody["warehouse"])

	var numbers []int
	require.NoError(t, outcome.Decode(&numbers))
	assert.Equal(t, []int{1, 2, 3}, numbers)
}

func TestDo_RejectsUnsupportedMethod(t *testing.T) {
	client := newTestClient("http://127.0.0.1:1")

	_, err := client.Do(context.Background(), Request{Path: "/", Method: http.MethodHead})

	require.Error(t, err)
	assert.True(t, IsErrorType(err, ValidationError))
}

func TestDo_RejectsUnencodableBody(t *testing.T) {
	client := newTestClient("http://127.0.0.1:1")

	_, err := client.Post(context.Background(), "/", map[string]any{"ch": make(chan int)})

	require.Error(t, err)
	assert.True(t, IsErrorType(err, ValidationError))
}

func TestExchangeLog_WritesRedactedEntry(t *testing.T) {
	srv, _ := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{"response":{"data":{}}}`))
	})

	var sink bytes.Buffer
	client := New(Config{
		BaseURL:     srv.URL,
		Headers:     map[string]string{"Authorization": "secret-token"},
		LogPayloads: true,
	}, testLogger(), WithExchangeLog(&sink))

	_, err := client.Get(context.Background(), "/api/v1/tariffs/box", url.Values{"date": {"2025-08-20"}})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(sink.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))

	assert.Equal(t, srv.URL+"/api/v1/tariffs/box?date=2025-08-20", entry["url"])
	assert.Equal(t, map[string]any{"Authorization": "***"}, entry["headers"])
	assert.Equal(t, map[string]any{"date": "2025-08-20"}, entry["params"])
	assert.Equal(t, map[string]any{}, entry["body"])
	assert.Equal(t, map[string]any{"response": map[string]any{"data": map[string]any{}}}, entry["response"])
	assert.NotContains(t, sink.String(), "secret-token")
}

func TestExchangeLog_NonJSONResponseSummary(t *testing.T) {
	srv, _ := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("forbidden"))
	})

	var sink bytes.Buffer
	client := New(Config{BaseURL: srv.URL, LogPayloads: true}, testLogger(), WithExchangeLog(&sink))

	_, err := client.Get(context.Background(), "/", nil)
	require.Error(t, err)

	var entry struct {
		Response map[string]any `json:"response"`
	}
	require.NoError(t, json.Unmarshal(sink.Bytes(), &entry))
	assert.Equal(t, float64(http.StatusForbidden), entry.Response["status"])
	assert.Equal(t, "Forbidden", entry.Response["statusText"])
	assert.Equal(t, "Non-JSON response", entry.Response["body"])
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestExchangeLog_WriteFailureDoesNotPropagate(t *testing.T) {
	srv, _ := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	client := New(Config{BaseURL: srv.URL, LogPayloads: true}, testLogger(), WithExchangeLog(failingWriter{}))

	outcome, err := client.Get(context.Background(), "/", nil)

	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(outcome.Payload))
}

func TestExchangeLog_DisabledWritesNothing(t *testing.T) {
	srv, _ := countingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	var sink bytes.Buffer
	client := New(Config{BaseURL: srv.URL}, testLogger(), WithExchangeLog(&sink))

	_, err := client.Get(context.Background(), "/", nil)

	require.NoError(t, err)
	assert.Zero(t, sink.Len())
}
