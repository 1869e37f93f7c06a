package wildberries

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-faster/jx"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"wb-tariffs/internal/httpclient"
)

const (
	// DefaultBaseURL is the common API host.
	DefaultBaseURL = "https://common-api.wildberries.ru"

	boxTariffsPath = "/api/v1/tariffs/box"
)

type Config struct {
	BaseURL     string
	APIKey      string
	UserAgent   string
	Timeout     time.Duration
	Retries     int
	RetryDelay  time.Duration
	RateLimit   float64
	RateBurst   int
	LogPayloads bool
}

// Client is the marketplace API client. It fixes the base URL and the
// Authorization header on top of the resilient HTTP client.
type Client struct {
	http     *httpclient.Client
	validate *validator.Validate
}

func NewClient(cfg Config, logger *slog.Logger, opts ...httpclient.Option) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := httpclient.New(httpclient.Config{
		Name:        "wildberries",
		BaseURL:     baseURL,
		Headers:     map[string]string{"Authorization": cfg.APIKey},
		UserAgent:   cfg.UserAgent,
		Timeout:     cfg.Timeout,
		Retries:     cfg.Retries,
		RetryDelay:  cfg.RetryDelay,
		RateLimit:   cfg.RateLimit,
		RateBurst:   cfg.RateBurst,
		LogPayloads: cfg.LogPayloads,
	}, logger, opts...)

	return &Client{
		http:     httpClient,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// GetBoxTariffs fetches box tariffs for the calendar date of date.
func (c *Client) GetBoxTariffs(ctx context.Context, date time.Time) (*BoxTariffsResponse, error) {
	query := url.Values{"date": {date.Format("2006-01-02")}}

	outcome, err := c.http.Get(ctx, boxTariffsPath, query)
	if err != nil {
		return nil, errors.Wrap(err, "get box tariffs")
	}

	// A 400 carries the error body in Raw and no payload.
	if outcome.Empty() {
		if len(outcome.Raw) == 0 || !jx.Valid(outcome.Raw) {
			return &BoxTariffsResponse{}, nil
		}
		apiErr, err := decodeAPIError(outcome.Raw, outcome.StatusCode)
		if err != nil {
			return nil, err
		}
		return &BoxTariffsResponse{Error: apiErr}, nil
	}

	ok, err := hasField(outcome.Payload, "response")
	if err != nil {
		return nil, errors.Wrap(err, "inspect box tariffs payload")
	}
	if !ok {
		apiErr, err := decodeAPIError(outcome.Payload, outcome.StatusCode)
		if err != nil {
			return nil, err
		}
		return &BoxTariffsResponse{Error: apiErr}, nil
	}

	var envelope boxTariffsEnvelope
	if err := outcome.Decode(&envelope); err != nil {
		return nil, errors.Wrap(err, "decode box tariffs")
	}
	// A response without data carries nothing to sync.
	data := envelope.Response.Data
	if data == nil {
		return &BoxTariffsResponse{}, nil
	}
	if err := c.validate.Struct(data); err != nil {
		return nil, errors.Wrap(err, "validate box tariffs")
	}

	return &BoxTariffsResponse{Tariffs: data}, nil
}

// hasField reports whether the top-level JSON object has key. Non-object
// payloads have no fields.
func hasField(payload []byte, key string) (bool, error) {
	d := jx.DecodeBytes(payload)
	if d.Next() != jx.Object {
		return false, nil
	}

	found := false
	err := d.ObjBytes(func(d *jx.Decoder, k []byte) error {
		if string(k) == key {
			found = true
		}
		return d.Skip()
	})
	return found, err
}

func decodeAPIError(raw []byte, status int) (*APIError, error) {
	apiErr := &APIError{StatusCode: status}
	if err := json.Unmarshal(raw, apiErr); err != nil {
		// Non-object bodies still signal a domain error.
		var unmarshalErr *json.UnmarshalTypeError
		if !errors.As(err, &unmarshalErr) {
			return nil, errors.Wrap(err, "decode error body")
		}
		apiErr.Title = string(raw)
	}
	return apiErr, nil
}
