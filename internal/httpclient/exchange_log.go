package httpclient

import (
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

const redacted = "***"

var sensitiveHeaders = map[string]struct{}{
	"Authorization": {},
	"Cookie":        {},
}

// OpenExchangeLog opens (creating if needed) an append-only exchange log file.
func OpenExchangeLog(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create exchange log dir")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "open exchange log")
	}
	return f, nil
}

// logExchange appends one JSON line per received response. Write failures
// are reported through the logger only.
func (c *Client) logExchange(method, fullURL string, headers http.Header, body []byte, query url.Values, resp *http.Response, raw []byte) {
	if !c.cfg.LogPayloads || c.exchangeLog == nil {
		return
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("time", func(e *jx.Encoder) {
			e.Str(c.now().UTC().Format(time.RFC3339Nano))
		})
		e.Field("url", func(e *jx.Encoder) { e.Str(fullURL) })
		e.Field("method", func(e *jx.Encoder) { e.Str(method) })
		e.Field("headers", func(e *jx.Encoder) { encodeHeaders(e, headers) })
		e.Field("body", func(e *jx.Encoder) {
			if len(body) > 0 && jx.Valid(body) {
				e.Raw(body)
				return
			}
			e.ObjStart()
			e.ObjEnd()
		})
		e.Field("params", func(e *jx.Encoder) { encodeParams(e, query) })
		e.Field("response", func(e *jx.Encoder) { encodeResponseSummary(e, resp, raw) })
	})

	line := append(e.Bytes(), '\n')

	c.logMu.Lock()
	_, err := c.exchangeLog.Write(line)
	c.logMu.Unlock()

	if err != nil {
		c.logger.Warn("Failed to write exchange log", slog.Any("error", err))
	}
}

func encodeHeaders(e *jx.Encoder, headers http.Header) {
	keys := make([]string, 0, len(headers))
	for key := range headers {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	e.Obj(func(e *jx.Encoder) {
		for _, key := range keys {
			value := headers.Get(key)
			if _, ok := sensitiveHeaders[key]; ok {
				value = redacted
			}
			e.Field(key, func(e *jx.Encoder) { e.Str(value) })
		}
	})
}

func encodeParams(e *jx.Encoder, query url.Values) {
	keys := make([]string, 0, len(query))
	for key := range query {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	e.Obj(func(e *jx.Encoder) {
		for _, key := range keys {
			values := query[key]
			e.Field(key, func(e *jx.Encoder) {
				if len(values) == 1 {
					e.Str(values[0])
					return
				}
				e.Arr(func(e *jx.Encoder) {
					for _, v := range values {
						e.Str(v)
					}
				})
			})
		}
	})
}

func encodeResponseSummary(e *jx.Encoder, resp *http.Response, raw []byte) {
	isJSON := strings.Contains(resp.Header.Get("Content-Type"), "application/json")
	if isJSON && len(raw) > 0 {
		err := jx.DecodeBytes(raw).Validate()
		if err == nil {
			e.Raw(raw)
			return
		}
		e.Obj(func(e *jx.Encoder) {
			encodeStatus(e, resp.StatusCode)
			e.Field("error", func(e *jx.Encoder) { e.Str(err.Error()) })
			e.Field("body", func(e *jx.Encoder) { e.Str("Failed to parse response") })
		})
		return
	}

	placeholder := "Non-JSON response"
	if len(raw) == 0 {
		placeholder = "No body"
	}
	e.Obj(func(e *jx.Encoder) {
		encodeStatus(e, resp.StatusCode)
		e.Field("body", func(e *jx.Encoder) { e.Str(placeholder) })
	})
}

func encodeStatus(e *jx.Encoder, code int) {
	e.Field("status", func(e *jx.Encoder) { e.Int(code) })
	e.Field("statusText", func(e *jx.Encoder) { e.Str(http.StatusText(code)) })
}
