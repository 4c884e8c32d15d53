// Package client is the Go client for the calendar service.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultServer  = "http://localhost:9090"
	DefaultTimeout = 30 * time.Second

	maxResponseBytes = 16 << 20
)

// Client talks to the calendar service on behalf of a bearer token holder.
type Client struct {
	server     string
	httpClient *http.Client
	validate   bool
}

// Option configures the client.
type Option func(*Client)

// New creates a new calendar service client.
func New(opts ...Option) *Client {
	c := &Client{
		server: DefaultServer,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithServer sets a custom server URL.
func WithServer(server string) Option {
	return func(c *Client) {
		if server != "" {
			c.server = strings.TrimRight(server, "/")
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithSchemaValidation checks event responses against the published JSON
// schema before decoding them.
func WithSchemaValidation() Option {
	return func(c *Client) {
		c.validate = true
	}
}

// ServerURL returns the configured server URL.
func (c *Client) ServerURL() string {
	return c.server
}

// get issues an authenticated GET and returns the status and body. A
// transport failure is reported as *ConnectionError.
func (c *Client) get(ctx context.Context, path, token string) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.server+path, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, &ConnectionError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp, nil, &ConnectionError{Err: fmt.Errorf("read body: %w", err)}
	}
	return resp, body, nil
}
