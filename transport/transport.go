// Package transport implements the HTTP layer of the GraphLake client:
// request execution against the REST contract, response envelope handling,
// the error taxonomy, and Server-Sent-Events stream consumption. Everything
// above this package works with typed values and typed errors; nothing above
// it inspects raw status codes or response bodies.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultAuthHeader is the header used for API-key authentication when the
// config does not name one.
const DefaultAuthHeader = "X-API-Key"

// Config holds the connection settings shared by every client bound to one
// GraphLake deployment.
type Config struct {
	// BaseURL is the service root, e.g. "https://api.graphlake.io".
	BaseURL string

	// APIKey authenticates via the AuthHeader header. Mutually exclusive
	// with Token.
	APIKey string

	// Token authenticates via "Authorization: Bearer <token>". Mutually
	// exclusive with APIKey.
	Token string

	// AuthHeader overrides the API-key header name. Defaults to
	// DefaultAuthHeader.
	AuthHeader string

	// Headers are extra headers attached to every request.
	Headers map[string]string

	// Timeout bounds each non-streaming HTTP request. Defaults to 30s.
	// Streaming requests are bounded by their context instead.
	Timeout time.Duration

	// UserAgent overrides the default User-Agent.
	UserAgent string
}

// Validate checks that the config can produce a working client.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("transport: base URL is required")
	}
	if c.APIKey != "" && c.Token != "" {
		return fmt.Errorf("transport: APIKey and Token are mutually exclusive")
	}
	return nil
}

// Response is the envelope returned for every REST call: the raw status,
// headers, and body are always available, even when the call also produced a
// typed error or a decoded value.
type Response struct {
	StatusCode int
	Header     http.Header
	Content    []byte
}

// Client executes REST calls against one GraphLake deployment.
// It is safe for concurrent use; independent in-flight requests share the
// underlying connection pool without cross-call interference.
type Client struct {
	cfg    Config
	http   *http.Client
	stream *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout for non-streaming calls.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithHTTPClient replaces the underlying *http.Client entirely. The streaming
// client keeps the same transport but no overall timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
		c.stream = &http.Client{Transport: hc.Transport}
	}
}

// New creates a Client for the given config.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.AuthHeader == "" {
		cfg.AuthHeader = DefaultAuthHeader
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		stream: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalized service root.
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

// CloseIdleConnections releases pooled connections on both the request and
// streaming clients.
func (c *Client) CloseIdleConnections() {
	c.http.CloseIdleConnections()
	c.stream.CloseIdleConnections()
}

// Do executes one REST call. body, when non-nil, is JSON-encoded. On a 2xx
// response the body is decoded into out (when out is non-nil); a 2xx body
// that does not decode is a *ProtocolError. Non-2xx responses return the
// classified typed error alongside the envelope, so callers that normalize
// failures into result values still see the raw status and content.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) (*Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("transport: marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("transport: create request: %w", err)
	}
	c.setHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &RequestError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{Op: method + " " + path, Err: err}
	}

	env := &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Content:    content,
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return env, classify(resp.StatusCode, content)
	}

	if out != nil && len(content) > 0 {
		if err := json.Unmarshal(content, out); err != nil {
			return env, &ProtocolError{
				Message: fmt.Sprintf("%s %s: undecodable %d response: %v", method, path, resp.StatusCode, err),
			}
		}
	}
	return env, nil
}

// Transfer uploads a byte payload to a pre-signed location with a plain PUT.
// The location is outside the API base URL and carries its own authorization,
// so no auth headers are attached. Any non-2xx response is a hard failure of
// this transfer; there are no partial-file semantics.
func (c *Client) Transfer(ctx context.Context, rawURL, contentType string, body io.Reader, size int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, rawURL, body)
	if err != nil {
		return fmt.Errorf("transport: create transfer request: %w", err)
	}
	if size >= 0 {
		req.ContentLength = size
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.stream.Do(req)
	if err != nil {
		return &RequestError{Op: "PUT " + rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		content, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return classify(resp.StatusCode, content)
	}
	return nil
}

// Stream opens a Server-Sent-Events channel at path. The returned channel is
// closed when the server ends the stream, an unrecoverable read error occurs,
// or ctx is cancelled; cancelling ctx also releases the underlying
// connection. Establishment failures are classified like any other call.
func (c *Client) Stream(ctx context.Context, path string) (<-chan Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: create stream request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, &RequestError{Op: "GET " + path, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		content, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, classify(resp.StatusCode, content)
	}
	return ReadEvents(ctx, resp.Body), nil
}

// setHeaders attaches auth, correlation, and caller-configured headers.
func (c *Client) setHeaders(req *http.Request) {
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}
	switch {
	case c.cfg.APIKey != "":
		req.Header.Set(c.cfg.AuthHeader, c.cfg.APIKey)
	case c.cfg.Token != "":
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	} else {
		req.Header.Set("User-Agent", "graphlake-go")
	}
	req.Header.Set("X-Request-Id", uuid.NewString())
}
