package client

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// Health checks the server health.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	resp, body, err := c.get(ctx, "/health", "")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var health HealthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		return nil, &DecodeError{Err: err}
	}
	return &health, nil
}

// Ready checks if the server is ready.
func (c *Client) Ready(ctx context.Context) error {
	resp, body, err := c.get(ctx, "/ready", "")
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return &TransportError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return nil
}

// TokenInfo is the service's view of a presented token.
type TokenInfo struct {
	Active   bool      `json:"active"`
	Subject  string    `json:"sub,omitempty"`
	Username string    `json:"preferred_username,omitempty"`
	Email    string    `json:"email,omitempty"`
	Roles    []string  `json:"roles,omitempty"`
	Expiry   time.Time `json:"exp"`
}

// TokenInfo asks the service to verify token and describe it.
func (c *Client) TokenInfo(ctx context.Context, token string) (*TokenInfo, error) {
	resp, body, err := c.get(ctx, "/calendar/token-info", token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var info TokenInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, &DecodeError{Err: err}
	}
	return &info, nil
}
