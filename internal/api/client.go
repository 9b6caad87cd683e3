package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"smart-fleet/internal/general/contracts"
	"smart-fleet/internal/general/logger"
	"smart-fleet/internal/general/metrics"

	"github.com/google/uuid"
)

// DefaultTimeout bounds each call unless overridden with WithTimeout.
const DefaultTimeout = 30 * time.Second

// maxErrorPayload caps how much of a >= 400 body is kept for the error.
const maxErrorPayload = 64 << 10

// TokenSource supplies the bearer token attached to each call.
type TokenSource interface {
	Token() string
}

// StaticToken is a fixed TokenSource.
type StaticToken string

func (t StaticToken) Token() string { return string(t) }

// Client is the typed accessor for the fleet backend REST API.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	tokens  TokenSource
	timeout time.Duration
	log     *logger.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-call timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithLogger(l *logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithTokenSource attaches a bearer token provider.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// New builds a client for the backend at baseURL (e.g. http://localhost:8080).
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: want absolute http(s) URL", baseURL)
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{},
		timeout: DefaultTimeout,
		log:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SetTokenSource swaps the token provider after construction.
func (c *Client) SetTokenSource(ts TokenSource) { c.tokens = ts }

// BaseURL returns the backend root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL.String() }

var tokenJunk = strings.NewReplacer(`'`, "", `"`, "", "[", "", "]", "")

// SanitizeToken removes every quote and bracket character from a stored token.
// A token persisted as `["abc123"]` is sent as `abc123`.
func SanitizeToken(raw string) string {
	return strings.TrimSpace(tokenJunk.Replace(raw))
}

// do performs one call. query may be nil; body is JSON-encoded when non-nil;
// out is decoded from the response when non-nil and the body is not empty.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(b)
	}

	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}

	reqID := logger.RequestID(ctx)
	if reqID == "" {
		reqID = uuid.NewString()
		ctx = c.log.WithRequestID(ctx, reqID)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(contracts.HeaderRequestID, reqID)
	if c.tokens != nil {
		if tok := SanitizeToken(c.tokens.Token()); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.ObserveAPILatency(method, start)
	if err != nil {
		metrics.APIRequests.WithLabelValues(method, metrics.StatusClass(0)).Inc()
		apiErr := &Error{Kind: KindTransport, Method: method, Path: path, Err: err}
		c.log.Error(ctx, "api_transport_failed", "no response from backend", err, map[string]any{
			"method": method, "path": path,
		})
		return apiErr
	}
	defer resp.Body.Close()
	metrics.APIRequests.WithLabelValues(method, metrics.StatusClass(resp.StatusCode)).Inc()

	respBody := &bodyReader{r: resp.Body}

	if resp.StatusCode >= 400 {
		raw, err := io.ReadAll(io.LimitReader(respBody, maxErrorPayload))
		if err != nil {
			return c.readFailed(ctx, method, path, resp.StatusCode, err)
		}
		apiErr := &Error{
			Kind:    classify(resp.StatusCode),
			Method:  method,
			Path:    path,
			Status:  resp.StatusCode,
			Payload: string(raw),
			Message: backendMessage(raw),
		}
		msg := "backend rejected request"
		switch apiErr.Kind {
		case KindUnauthorized:
			msg = "token might be expired or invalid"
		case KindServer:
			msg = "backend failed"
		}
		c.log.Error(ctx, "api_request_failed", msg, apiErr, map[string]any{
			"method": method, "path": path, "status": resp.StatusCode, "payload": apiErr.Payload,
		})
		return apiErr
	}

	c.log.Debug(ctx, "api_request", method+" "+path, map[string]any{
		"status": resp.StatusCode, "duration_ms": time.Since(start).Milliseconds(),
	})

	switch out := out.(type) {
	case nil:
		_, _ = io.Copy(io.Discard, respBody)
		return nil
	case *string:
		raw, err := io.ReadAll(respBody)
		if err != nil {
			return c.readFailed(ctx, method, path, resp.StatusCode, err)
		}
		*out = string(raw)
		return nil
	}
	if err := json.NewDecoder(respBody).Decode(out); err != nil {
		if respBody.err != nil {
			return c.readFailed(ctx, method, path, resp.StatusCode, respBody.err)
		}
		if errors.Is(err, io.EOF) {
			// empty body
			return nil
		}
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// readFailed reports a response whose body could not be read.
func (c *Client) readFailed(ctx context.Context, method, path string, status int, err error) error {
	apiErr := &Error{Kind: KindTransport, Method: method, Path: path, Status: status, Err: err}
	c.log.Error(ctx, "api_transport_failed", "response body cut off", err, map[string]any{
		"method": method, "path": path, "status": status,
	})
	return apiErr
}

// bodyReader remembers the first read error so a broken connection is not
// mistaken for a malformed payload.
type bodyReader struct {
	r   io.Reader
	err error
}

func (b *bodyReader) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if err != nil && err != io.EOF && b.err == nil {
		b.err = err
	}
	return n, err
}

// backendMessage extracts "message" or "error" from a JSON error body,
// falling back to the trimmed text of a short plain body.
func backendMessage(raw []byte) string {
	var body contracts.ErrorResponse
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		return body.Error
	}
	text := strings.TrimSpace(string(raw))
	if len(text) > 200 || strings.HasPrefix(text, "<") {
		return ""
	}
	return text
}
