package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubServer(t *testing.T, status int, contentType, body string) (*httptest.Server, *http.Request) {
	t.Helper()
	var last http.Request
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		last = *r
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts, &last
}

func TestFetchEvents_Success(t *testing.T) {
	ts, last := stubServer(t, http.StatusOK, "application/json",
		`[{"id":1,"title":"Team meeting","time":"2025-12-15T10:00:00.000"}]`)

	events, err := New(WithServer(ts.URL)).FetchEvents(context.Background(), "tok-123")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int64(1), events[0].ID)
	assert.Equal(t, "Team meeting", events[0].Title)
	assert.Equal(t, "2025-12-15T10:00:00.000", events[0].Time.String())

	assert.Equal(t, "/calendar", last.URL.Path)
	assert.Equal(t, "Bearer tok-123", last.Header.Get("Authorization"))
}

func TestFetchEvents_EmptyBodies(t *testing.T) {
	for _, body := range []string{"", "   \n", "[]", "null"} {
		ts, _ := stubServer(t, http.StatusOK, "application/json", body)

		events, err := New(WithServer(ts.URL)).FetchEvents(context.Background(), "t")
		require.NoError(t, err, "body %q", body)
		assert.NotNil(t, events)
		assert.Empty(t, events)
	}
}

func TestFetchEvents_HTTPErrors(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{http.StatusUnauthorized, "Failed to fetch calendar events due to HTTP error: 401 Unauthorized"},
		{http.StatusForbidden, "Failed to fetch calendar events due to HTTP error: 403 Forbidden"},
		{http.StatusNotFound, "Failed to fetch calendar events due to HTTP error: 404 Not Found"},
		{http.StatusInternalServerError, "Failed to fetch calendar events due to HTTP error: 500 Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			ts, _ := stubServer(t, tt.status, "text/plain", "nope")

			events, err := New(WithServer(ts.URL)).FetchEvents(context.Background(), "t")
			assert.Nil(t, events)

			var fe *FetchError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.want, fe.Error())

			var te *TransportError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.status, te.StatusCode)
			assert.Equal(t, "nope", te.Body)
		})
	}
}

func TestFetchEvents_DecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "invalid-json"},
		{"object instead of list", `{"id":1}`},
		{"bad time", `[{"id":1,"title":"x","time":"yesterday"}]`},
		{"zoned time", `[{"id":1,"title":"x","time":"2025-12-15T10:00:00.000Z"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, _ := stubServer(t, http.StatusOK, "application/json", tt.body)

			_, err := New(WithServer(ts.URL)).FetchEvents(context.Background(), "t")
			var fe *FetchError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, "Unexpected error occurred while fetching calendar events", fe.Error())

			var de *DecodeError
			assert.ErrorAs(t, err, &de)
		})
	}
}

func TestFetchEvents_SchemaValidation(t *testing.T) {
	body := `[{"id":1,"title":"Team meeting","time":"2025-12-15T10:00:00.000","extra":true}]`
	ts, _ := stubServer(t, http.StatusOK, "application/json", body)

	_, err := New(WithServer(ts.URL)).FetchEvents(context.Background(), "t")
	require.NoError(t, err, "lenient decoding ignores unknown fields")

	_, err = New(WithServer(ts.URL), WithSchemaValidation()).FetchEvents(context.Background(), "t")
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Contains(t, de.Error(), "schema violation")

	ok, _ := stubServer(t, http.StatusOK, "application/json",
		`[{"id":1,"title":"Team meeting","time":"2025-12-15T10:00:00.000"}]`)
	events, err := New(WithServer(ok.URL), WithSchemaValidation()).FetchEvents(context.Background(), "t")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestFetchEvents_ConnectionRefused(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := New(WithServer(url)).FetchEvents(context.Background(), "t")
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "Unexpected error occurred while fetching calendar events", fe.Error())

	var ce *ConnectionError
	assert.ErrorAs(t, err, &ce)
}

func TestFetchEvents_Timeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	_, err := New(WithServer(ts.URL), WithTimeout(50*time.Millisecond)).FetchEvents(context.Background(), "t")
	var ce *ConnectionError
	assert.ErrorAs(t, err, &ce)
}

func TestFetchEvents_ContextCanceled(t *testing.T) {
	ts, _ := stubServer(t, http.StatusOK, "application/json", "[]")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(WithServer(ts.URL)).FetchEvents(ctx, "t")
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestHealthAndReady(t *testing.T) {
	ts, _ := stubServer(t, http.StatusOK, "application/json", `{"status":"ok"}`)
	c := New(WithServer(ts.URL + "/"))

	h, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", h.Status)
	assert.NoError(t, c.Ready(context.Background()))

	down, _ := stubServer(t, http.StatusServiceUnavailable, "application/json", `{"status":"not_ready"}`)
	err = New(WithServer(down.URL)).Ready(context.Background())
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusServiceUnavailable, te.StatusCode)
}

func TestTokenInfo(t *testing.T) {
	ts, last := stubServer(t, http.StatusOK, "application/json",
		`{"active":true,"sub":"user-1","preferred_username":"alice","roles":["my-role"],"exp":"2030-01-01T00:00:00Z","iat":"2029-12-31T23:00:00Z"}`)

	info, err := New(WithServer(ts.URL)).TokenInfo(context.Background(), "tok")
	require.NoError(t, err)
	assert.True(t, info.Active)
	assert.Equal(t, "alice", info.Username)
	assert.Equal(t, []string{"my-role"}, info.Roles)
	assert.Equal(t, "/calendar/token-info", last.URL.Path)
}

func TestFetchICS(t *testing.T) {
	ts, _ := stubServer(t, http.StatusOK, "text/calendar", "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n")
	body, err := New(WithServer(ts.URL)).FetchICS(context.Background(), "t")
	require.NoError(t, err)
	assert.Contains(t, string(body), "BEGIN:VCALENDAR")

	denied, _ := stubServer(t, http.StatusForbidden, "", "")
	_, err = New(WithServer(denied.URL)).FetchICS(context.Background(), "t")
	var te *TransportError
	assert.ErrorAs(t, err, &te)
}

func TestNew_Defaults(t *testing.T) {
	c := New()
	assert.Equal(t, DefaultServer, c.ServerURL())
	assert.Equal(t, DefaultTimeout, c.httpClient.Timeout)
	assert.NotEmpty(t, EventsSchema())
}
