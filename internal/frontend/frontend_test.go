package frontend

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/keycal/keycal/internal/auth"
	"github.com/keycal/keycal/internal/auth/authtest"
	"github.com/keycal/keycal/internal/config"
	"github.com/keycal/keycal/internal/session"
	"github.com/keycal/keycal/pkg/client"
)

type stubFetcher struct {
	events []client.Event
	err    error
}

func (s *stubFetcher) FetchEvents(context.Context, string) ([]client.Event, error) {
	return s.events, s.err
}

func newTestApp(t *testing.T) (*App, *session.MemoryStore) {
	t.Helper()
	cfg := &config.Frontend{
		Port:                 "8080",
		ClientRegistrationID: "keycloak",
		ClientID:             "frontend-app",
		RequiredRole:         "my-role",
		SessionTTL:           time.Hour,
	}
	store := session.NewMemoryStore()
	app, err := New(cfg, nil, &stubFetcher{}, store)
	require.NoError(t, err)
	return app, store
}

func loggedIn(t *testing.T, store session.Store, roles ...string) *http.Cookie {
	t.Helper()
	sess := session.New(time.Hour)
	sess.User = &session.User{Subject: "user-1", Username: "alice", Roles: roles}
	sess.Token = &oauth2.Token{AccessToken: "at", Expiry: time.Now().Add(time.Hour)}
	require.NoError(t, store.Save(context.Background(), sess))
	return &http.Cookie{Name: CookieName, Value: sess.ID}
}

func TestApp_Fail(t *testing.T) {
	app, _ := newTestApp(t)

	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "fetch error",
			err:  &client.FetchError{Message: "Failed to fetch calendar events due to HTTP error: 503 Service Unavailable"},
			want: "Calendar service error: Failed to fetch calendar events due to HTTP error: 503 Service Unavailable",
		},
		{
			name: "wrapped fetch error",
			err:  errors.Join(errors.New("render"), &client.FetchError{Message: "Unexpected error occurred while fetching calendar events"}),
			want: "Calendar service error: Unexpected error occurred while fetching calendar events",
		},
		{
			name: "anything else",
			err:  errors.New("disk on fire"),
			want: "An unexpected error occurred. Please try again later.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			app.fail(rec, httptest.NewRequest(http.MethodGet, "/calendar", nil), tt.err)

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
			assert.Equal(t, tt.want, rec.Body.String())
		})
	}
}

func TestApp_RequireLogin(t *testing.T) {
	app, store := newTestApp(t)
	var seen *session.Session
	h := app.RequireLogin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = sessionFrom(r.Context())
	}))

	t.Run("anonymous", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/calendar?view=week", nil))

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/oauth2/authorization/keycloak?return_to=%2Fcalendar%3Fview%3Dweek", rec.Header().Get("Location"))
	})

	t.Run("pending login only", func(t *testing.T) {
		sess := session.New(time.Hour)
		sess.State = "state"
		require.NoError(t, store.Save(context.Background(), sess))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: sess.ID})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusFound, rec.Code)
	})

	t.Run("signed in", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(loggedIn(t, store, "my-role"))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, seen)
		assert.Equal(t, "alice", seen.User.Username)
	})
}

func TestApp_RequireRole(t *testing.T) {
	app, store := newTestApp(t)
	called := false
	h := app.RequireLogin(app.RequireRole("my-role")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(loggedIn(t, store, "offline_access", "My-Role"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, called, "role match is case-sensitive")
	assert.Contains(t, rec.Body.String(), "Access denied")
	assert.Contains(t, rec.Body.String(), "offline_access")

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(loggedIn(t, store, "my-role"))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}

func TestApp_IndexRendersUser(t *testing.T) {
	app, store := newTestApp(t)
	h := app.RequireLogin(http.HandlerFunc(app.Index))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(loggedIn(t, store, "my-role", "<script>"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "alice")
	assert.Contains(t, body, "my-role")
	assert.Contains(t, body, "&lt;script&gt;")
	assert.NotContains(t, body, "<script>")
}

func TestApp_Login(t *testing.T) {
	app, _ := newTestApp(t)
	rec := httptest.NewRecorder()
	app.Login(rec, httptest.NewRequest(http.MethodGet, "/login", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `href="/oauth2/authorization/keycloak"`)
}

func TestApp_Static(t *testing.T) {
	app, _ := newTestApp(t)
	h := app.Static()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/css/style.css", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/css")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/css/missing.css", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSafeReturnTo(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/calendar", "/calendar"},
		{"/calendar?view=week", "/calendar?view=week"},
		{"", ""},
		{"calendar", ""},
		{"//evil.example.com", ""},
		{"/\\evil.example.com", ""},
		{"https://evil.example.com/", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, safeReturnTo(tt.in), tt.in)
	}
}

func TestApp_SessionCookie(t *testing.T) {
	app, _ := newTestApp(t)
	app.cfg.CookieSecure = true
	sess := session.New(time.Hour)

	rec := httptest.NewRecorder()
	app.setCookie(rec, sess)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, CookieName, c.Name)
	assert.Equal(t, sess.ID, c.Value)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, "/", c.Path)

	rec = httptest.NewRecorder()
	app.clearCookie(rec)
	cookies = rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

type failingDeleteStore struct {
	*session.MemoryStore
	err error
}

func (s *failingDeleteStore) Delete(context.Context, string) error {
	return s.err
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestApp_CalendarRestartsLoginWhenGrantExpired(t *testing.T) {
	tests := []struct {
		name      string
		deleteErr error
		wantWarn  bool
	}{
		{"session deleted", nil, false},
		{"delete fails", errors.New("database is locked"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iss := authtest.NewIssuer(t)
			cfg := &config.Frontend{
				Port:                 "8080",
				IssuerURI:            iss.URL,
				ClientRegistrationID: "keycloak",
				ClientID:             authtest.ClientID,
				ClientSecret:         authtest.ClientSecret,
				RequiredRole:         "my-role",
				SessionTTL:           time.Hour,
			}
			store := &failingDeleteStore{MemoryStore: session.NewMemoryStore(), err: tt.deleteErr}
			app, err := New(cfg, auth.NewVerifier(iss.URL), &stubFetcher{}, store)
			require.NoError(t, err)

			sess := session.New(time.Hour)
			sess.User = &session.User{Subject: "user-1", Username: "alice", Roles: []string{"my-role"}}
			sess.Token = &oauth2.Token{AccessToken: "at", RefreshToken: "revoked", Expiry: time.Now().Add(-time.Minute)}
			require.NoError(t, store.Save(context.Background(), sess))

			logs := captureLogs(t)
			req := httptest.NewRequest(http.MethodGet, "/calendar", nil)
			req.AddCookie(&http.Cookie{Name: CookieName, Value: sess.ID})
			rec := httptest.NewRecorder()
			app.RequireLogin(http.HandlerFunc(app.Calendar)).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, "/oauth2/authorization/keycloak?return_to=%2Fcalendar", rec.Header().Get("Location"))
			cleared := rec.Result().Cookies()
			require.NotEmpty(t, cleared)
			assert.Equal(t, CookieName, cleared[0].Name)
			assert.Negative(t, cleared[0].MaxAge)

			if tt.wantWarn {
				assert.Contains(t, logs.String(), "failed to delete session")
				assert.Contains(t, logs.String(), "database is locked")
			} else {
				assert.NotContains(t, logs.String(), "failed to delete session")
			}
		})
	}
}
