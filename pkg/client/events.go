package client

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/keycal/keycal/internal/domain"
)

// Event is a calendar entry returned by the service.
type Event = domain.Event

// FetchEvents retrieves the event list visible to token. An empty body is an
// empty list. Every failure is a *FetchError.
func (c *Client) FetchEvents(ctx context.Context, token string) ([]Event, error) {
	slog.Debug("fetching calendar events", "server", c.server)

	resp, body, err := c.get(ctx, "/calendar", token)
	if err != nil {
		slog.Error("unexpected error while fetching calendar events", "error", err)
		return nil, newFetchError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := &TransportError{StatusCode: resp.StatusCode, Body: string(body)}
		slog.Error("calendar service returned an error", "status", resp.StatusCode)
		return nil, newFetchError(err)
	}

	events, err := c.decodeEvents(body)
	if err != nil {
		slog.Error("unexpected error while fetching calendar events", "error", err)
		return nil, newFetchError(err)
	}

	slog.Debug("fetched calendar events", "count", len(events))
	return events, nil
}

func (c *Client) decodeEvents(body []byte) ([]Event, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []Event{}, nil
	}

	if c.validate {
		if err := validateEvents(trimmed); err != nil {
			return nil, &DecodeError{Err: err}
		}
	}

	var events []Event
	if err := json.Unmarshal(trimmed, &events); err != nil {
		return nil, &DecodeError{Err: err}
	}
	return events, nil
}

// FetchICS retrieves the iCalendar rendering of a fresh batch.
func (c *Client) FetchICS(ctx context.Context, token string) ([]byte, error) {
	resp, body, err := c.get(ctx, "/calendar.ics", token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
