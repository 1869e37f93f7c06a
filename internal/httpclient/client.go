package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"golang.org/x/time/rate"

	"wb-tariffs/internal/metrics"
)

const (
	// DefaultTimeout is the per-attempt deadline.
	DefaultTimeout = 120 * time.Second

	// DefaultRetries is the number of retries after the first attempt.
	DefaultRetries = 3

	// DefaultRetryDelay is the fixed pause between attempts.
	DefaultRetryDelay = time.Second
)

var retryableStatuses = map[int]struct{}{
	http.StatusBadGateway:         {},
	http.StatusServiceUnavailable: {},
	http.StatusGatewayTimeout:     {},
	http.StatusTooManyRequests:    {},
	420:                           {}, // "Enhance Your Calm", used by some rate limiters
}

var allowedMethods = map[string]struct{}{
	http.MethodGet:    {},
	http.MethodPost:   {},
	http.MethodPut:    {},
	http.MethodPatch:  {},
	http.MethodDelete: {},
}

// Config is fixed for the lifetime of a Client.
type Config struct {
	// Name labels logs and metrics.
	Name      string
	BaseURL   string
	Headers   map[string]string
	UserAgent string

	Timeout    time.Duration
	Retries    int
	RetryDelay time.Duration

	// RateLimit is requests per second; zero disables limiting.
	RateLimit float64
	RateBurst int

	// LogPayloads enables the exchange log when a sink is attached.
	LogPayloads bool
}

// Request describes one logical call.
type Request struct {
	Path    string
	Method  string
	Body    any
	Query   url.Values
	Headers map[string]string
}

// Outcome is the normalized result of a successful call. Payload is nil for
// 204 responses, empty bodies and 400 responses.
type Outcome struct {
	StatusCode int
	Header     http.Header
	Payload    []byte
	Raw        []byte
}

// Empty reports whether the outcome carries no JSON payload.
func (o *Outcome) Empty() bool {
	return o == nil || len(o.Payload) == 0
}

// Decode unmarshals the payload into v. It is a no-op for empty outcomes.
func (o *Outcome) Decode(v any) error {
	if o.Empty() {
		return nil
	}
	if err := json.Unmarshal(o.Payload, v); err != nil {
		return errors.Wrap(err, "decode payload")
	}
	return nil
}

// Option customizes a Client at construction time.
type Option func(*Client)

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithExchangeLog attaches the append-only sink used when LogPayloads is set.
func WithExchangeLog(w io.Writer) Option {
	return func(c *Client) {
		c.exchangeLog = w
	}
}

// CallOption customizes a single Do call.
type CallOption func(*callSettings)

type callSettings struct {
	retries    int
	retryDelay time.Duration
}

// WithRetries bounds the number of retries after the first attempt.
func WithRetries(n int) CallOption {
	return func(s *callSettings) {
		s.retries = n
	}
}

// WithRetryDelay sets the fixed pause between attempts.
func WithRetryDelay(d time.Duration) CallOption {
	return func(s *callSettings) {
		s.retryDelay = d
	}
}

// Client performs HTTP+JSON calls with a per-attempt timeout and bounded,
// fixed-delay retries of transient failures.
type Client struct {
	cfg        Config
	headers    http.Header
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger

	logMu       sync.Mutex
	exchangeLog io.Writer
	now         func() time.Time
}

// New creates a Client. Zero values in cfg fall back to the package defaults.
func New(cfg Config, logger *slog.Logger, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	if cfg.Name == "" {
		cfg.Name = "http"
	}

	headers := make(http.Header, len(cfg.Headers))
	for key, value := range cfg.Headers {
		headers.Set(key, value)
	}

	c := &Client{
		cfg:        cfg,
		headers:    headers,
		httpClient: &http.Client{},
		logger:     logger.With(slog.String("client", cfg.Name)),
		now:        time.Now,
	}

	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Get performs a GET request
func (c *Client) Get(ctx context.Context, path string, query url.Values, opts ...CallOption) (*Outcome, error) {
	return c.Do(ctx, Request{Path: path, Method: http.MethodGet, Query: query}, opts...)
}

// Post performs a POST request
func (c *Client) Post(ctx context.Context, path string, body any, opts ...CallOption) (*Outcome, error) {
	return c.Do(ctx, Request{Path: path, Method: http.MethodPost, Body: body}, opts...)
}

// Put performs a PUT request
func (c *Client) Put(ctx context.Context, path string, body any, opts ...CallOption) (*Outcome, error) {
	return c.Do(ctx, Request{Path: path, Method: http.MethodPut, Body: body}, opts...)
}

// Patch performs a PATCH request
func (c *Client) Patch(ctx context.Context, path string, body any, opts ...CallOption) (*Outcome, error) {
	return c.Do(ctx, Request{Path: path, Method: http.MethodPatch, Body: body}, opts...)
}

// Delete performs a DELETE request
func (c *Client) Delete(ctx context.Context, path string, opts ...CallOption) (*Outcome, error) {
	return c.Do(ctx, Request{Path: path, Method: http.MethodDelete}, opts...)
}

// Do performs one logical call. At most retries+1 attempts are made.
func (c *Client) Do(ctx context.Context, req Request, opts ...CallOption) (*Outcome, error) {
	call := callSettings{
		retries:    c.cfg.Retries,
		retryDelay: c.cfg.RetryDelay,
	}
	for _, opt := range opts {
		opt(&call)
	}
	if call.retries < 0 {
		call.retries = 0
	}

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	fullURL := c.buildURL(req.Path, req.Query)

	if _, ok := allowedMethods[method]; !ok {
		return nil, &Error{Type: ValidationError, Method: method, URL: fullURL, Err: errors.New("unsupported method")}
	}

	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, &Error{Type: ValidationError, Method: method, URL: fullURL, Err: err}
	}
	headers := c.buildHeaders(req.Headers, body != nil)

	attempts := 0
	for retriesLeft := call.retries; ; retriesLeft-- {
		attempts++

		res := c.attempt(ctx, method, fullURL, headers, body, req.Query)
		metrics.ObserveHTTPAttempt(c.cfg.Name, res.label)

		if !res.retry {
			if res.err != nil {
				setAttempts(res.err, attempts)
				return nil, res.err
			}
			return res.outcome, nil
		}

		if retriesLeft <= 0 {
			setAttempts(res.err, attempts)
			return nil, res.err
		}

		c.logger.Warn("Retrying request",
			slog.String("method", method),
			slog.String("url", fullURL),
			slog.Int("attempts_left", retriesLeft),
			slog.String("reason", res.label),
			slog.Any("error", res.err))
		metrics.IncHTTPRetry(c.cfg.Name, res.label)

		if err := sleep(ctx, call.retryDelay); err != nil {
			return nil, errors.Wrapf(err, "%s %s aborted while waiting to retry", method, fullURL)
		}
	}
}

type attemptResult struct {
	outcome *Outcome
	err     error
	retry   bool
	label   string
}

func (c *Client) attempt(ctx context.Context, method, fullURL string, headers http.Header, body []byte, query url.Values) attemptResult {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return attemptResult{err: errors.Wrapf(err, "%s %s rate limiter", method, fullURL), label: "aborted"}
		}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, method, fullURL, reader)
	if err != nil {
		return attemptResult{
			err:   &Error{Type: ValidationError, Method: method, URL: fullURL, Err: err},
			label: "invalid",
		}
	}
	httpReq.Header = headers.Clone()

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return c.transportFailure(ctx, attemptCtx, method, fullURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		c.logExchange(method, fullURL, headers, body, query, resp, nil)
		return attemptResult{
			outcome: &Outcome{StatusCode: resp.StatusCode, Header: resp.Header},
			label:   "success",
		}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.transportFailure(ctx, attemptCtx, method, fullURL, err)
	}
	c.logExchange(method, fullURL, headers, body, query, resp, raw)

	// A non-empty body must be JSON whatever the status; a parse failure
	// ends the call without retrying.
	hasBody := len(bytes.TrimSpace(raw)) > 0
	if hasBody {
		if err := jx.DecodeBytes(raw).Validate(); err != nil {
			return attemptResult{
				err:   &Error{Type: MalformedError, Method: method, URL: fullURL, StatusCode: resp.StatusCode, Body: raw, Err: err},
				label: "malformed",
			}
		}
	}

	switch {
	case isRetryableStatus(resp.StatusCode):
		return attemptResult{
			err:   &Error{Type: HTTPError, Method: method, URL: fullURL, StatusCode: resp.StatusCode, Body: raw},
			retry: true,
			label: "retryable_status",
		}
	case resp.StatusCode == http.StatusBadRequest:
		// Upstream reports domain errors in the body; callers inspect Raw.
		return attemptResult{
			outcome: &Outcome{StatusCode: resp.StatusCode, Header: resp.Header, Raw: raw},
			label:   "bad_request",
		}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return attemptResult{
			err:   &Error{Type: HTTPError, Method: method, URL: fullURL, StatusCode: resp.StatusCode, Body: raw},
			label: "failed",
		}
	}

	outcome := &Outcome{StatusCode: resp.StatusCode, Header: resp.Header, Raw: raw}
	if hasBody {
		outcome.Payload = raw
	}
	return attemptResult{outcome: outcome, label: "success"}
}

func (c *Client) transportFailure(ctx, attemptCtx context.Context, method, fullURL string, err error) attemptResult {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return attemptResult{
			err:   errors.Wrapf(ctxErr, "%s %s aborted", method, fullURL),
			label: "aborted",
		}
	}

	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) || isTimeout(err) {
		return attemptResult{
			err:   &Error{Type: TimeoutError, Method: method, URL: fullURL, Timeout: c.cfg.Timeout, Err: err},
			retry: true,
			label: "timeout",
		}
	}

	return attemptResult{
		err:   &Error{Type: NetworkError, Method: method, URL: fullURL, Err: err},
		retry: true,
		label: "network",
	}
}

func (c *Client) buildURL(path string, query url.Values) string {
	fullURL := c.cfg.BaseURL + path
	if len(query) == 0 {
		return fullURL
	}
	sep := "?"
	if strings.Contains(fullURL, "?") {
		sep = "&"
	}
	return fullURL + sep + query.Encode()
}

// buildHeaders applies instance defaults first, then per-call headers, so
// per-call values win regardless of name casing.
func (c *Client) buildHeaders(perCall map[string]string, hasBody bool) http.Header {
	headers := c.headers.Clone()
	for key, value := range perCall {
		headers.Set(key, value)
	}
	if c.cfg.UserAgent != "" {
		headers.Set("User-Agent", c.cfg.UserAgent)
	}
	if hasBody && headers.Get("Content-Type") == "" {
		headers.Set("Content-Type", "application/json")
	}
	return headers
}

func encodeBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "encode body")
	}
	return data, nil
}

func isRetryableStatus(code int) bool {
	_, ok := retryableStatuses[code]
	return ok
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func setAttempts(err error, attempts int) {
	var clientErr *Error
	if errors.As(err, &clientErr) {
		clientErr.Attempts = attempts
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
