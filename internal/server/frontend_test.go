package server

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keycal/keycal/internal/audit"
	"github.com/keycal/keycal/internal/auth"
	"github.com/keycal/keycal/internal/auth/authtest"
	"github.com/keycal/keycal/internal/config"
	"github.com/keycal/keycal/internal/frontend"
	"github.com/keycal/keycal/internal/generator"
	"github.com/keycal/keycal/internal/handler"
	"github.com/keycal/keycal/internal/session"
	"github.com/keycal/keycal/pkg/client"
)

type recordingSink struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (s *recordingSink) InsertAuditEntry(_ context.Context, e audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *recordingSink) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Action
	}
	return out
}

type frontendEnv struct {
	iss      *authtest.Issuer
	ts       *httptest.Server
	browser  *http.Client
	sessions *session.MemoryStore
	sink     *recordingSink
	srv      *Server
}

func newFrontendEnv(t *testing.T, calendarURL string) *frontendEnv {
	t.Helper()
	iss := authtest.NewIssuer(t)
	if calendarURL == "" {
		cal, _ := newCalendarServer(t, iss.URL)
		calendarURL = cal.URL
	}

	ts := httptest.NewUnstartedServer(nil)
	cfg := &config.Frontend{
		Port:                 "0",
		BaseURL:              "http://" + ts.Listener.Addr().String(),
		IssuerURI:            iss.URL,
		ClientRegistrationID: "keycloak",
		ClientID:             authtest.ClientID,
		ClientSecret:         authtest.ClientSecret,
		RequiredRole:         "my-role",
		CalendarServiceURL:   calendarURL,
		SessionStore:         config.SessionMemory,
		SessionTTL:           time.Hour,
	}

	verifier := auth.NewVerifier(iss.URL)
	sessions := session.NewMemoryStore()
	sink := &recordingSink{}
	auditLog := audit.New(sink, 16)

	app, err := frontend.New(cfg, verifier, client.New(client.WithServer(calendarURL)), sessions, frontend.WithAudit(auditLog))
	require.NoError(t, err)

	srv := NewFrontend(cfg, app, map[string]handler.ReadinessCheck{"issuer": verifier.Ready}, sessions, auditLog)
	ts.Config.Handler = srv.Handler()
	ts.Start()
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &frontendEnv{
		iss:      iss,
		ts:       ts,
		browser:  &http.Client{Jar: jar},
		sessions: sessions,
		sink:     sink,
		srv:      srv,
	}
}

func (e *frontendEnv) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := e.browser.Get(e.ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestFrontend_LoginAndCalendar(t *testing.T) {
	env := newFrontendEnv(t, "")

	resp, body := env.get(t, "/calendar")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "/calendar", resp.Request.URL.Path, "returns to the page that triggered login")
	assert.Contains(t, body, "Upcoming events")
	assert.Contains(t, body, "alice")
	assert.Contains(t, body, "my-role")

	found := 0
	for _, title := range generator.TaskNames {
		if strings.Contains(body, title) {
			found++
		}
	}
	assert.Greater(t, found, 0, "rendered page lists event titles")

	resp, body = env.get(t, "/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Show my calendar")
	assert.NotContains(t, body, "Upcoming events")
	assert.Equal(t, 1, env.sessions.Len(), "pending session replaced on login")

	require.NoError(t, env.srv.Shutdown(context.Background()))
	assert.Equal(t, []string{audit.ActionLogin, audit.ActionCalendarView}, env.sink.actions())
}

func TestFrontend_UnauthenticatedRedirectsToProvider(t *testing.T) {
	env := newFrontendEnv(t, "")
	env.browser.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	for _, path := range []string{"/", "/home", "/calendar", "/access-denied"} {
		t.Run(path, func(t *testing.T) {
			resp, _ := env.get(t, path)
			require.Equal(t, http.StatusFound, resp.StatusCode)
			loc, err := url.Parse(resp.Header.Get("Location"))
			require.NoError(t, err)
			assert.Equal(t, "/oauth2/authorization/keycloak", loc.Path)
			assert.Equal(t, path, loc.Query().Get("return_to"))
		})
	}

	resp, _ := env.get(t, "/oauth2/authorization/keycloak")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	q := loc.Query()
	assert.True(t, strings.HasPrefix(loc.String(), env.iss.URL+"/auth"))
	assert.Equal(t, authtest.ClientID, q.Get("client_id"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.NotEmpty(t, q.Get("state"))
	assert.NotEmpty(t, q.Get("nonce"))
	assert.Contains(t, q.Get("scope"), "openid")
	assert.Equal(t, env.ts.URL+"/login/oauth2/code/keycloak", q.Get("redirect_uri"))
}

func TestFrontend_PublicPages(t *testing.T) {
	env := newFrontendEnv(t, "")

	resp, body := env.get(t, "/login")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "/oauth2/authorization/keycloak")

	resp, body = env.get(t, "/css/style.css")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/css")
	assert.Contains(t, body, ".events")

	resp, body = env.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)

	resp, _ = env.get(t, "/ready")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestFrontend_MissingRoleIsDenied(t *testing.T) {
	env := newFrontendEnv(t, "")
	env.iss.Roles = []string{"offline_access"}

	resp, body := env.get(t, "/calendar")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, body, "Access denied")
	assert.Contains(t, body, "offline_access")

	resp, body = env.get(t, "/access-denied")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Access denied")

	require.NoError(t, env.srv.Shutdown(context.Background()))
	assert.Contains(t, env.sink.actions(), audit.ActionAccessDenied)
	assert.NotContains(t, env.sink.actions(), audit.ActionCalendarView)
}

func TestFrontend_RefreshesExpiringToken(t *testing.T) {
	env := newFrontendEnv(t, "")
	// Within the oauth2 expiry delta, so every use triggers a refresh.
	env.iss.ExpiresIn = 5 * time.Second

	resp, _ := env.get(t, "/calendar")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	refreshes := env.iss.Refreshes()
	assert.GreaterOrEqual(t, refreshes, 1)

	resp, _ = env.get(t, "/calendar")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Greater(t, env.iss.Refreshes(), refreshes)
}

func TestFrontend_Logout(t *testing.T) {
	env := newFrontendEnv(t, "")

	resp, _ := env.get(t, "/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, env.sessions.Len())

	env.browser.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	resp, err := env.browser.Post(env.ts.URL+"/logout", "application/x-www-form-urlencoded", nil)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusFound, resp.StatusCode)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(loc.String(), env.iss.URL+"/logout"))
	assert.Equal(t, env.ts.URL+"/", loc.Query().Get("post_logout_redirect_uri"))
	assert.NotEmpty(t, loc.Query().Get("id_token_hint"))
	assert.Equal(t, 0, env.sessions.Len())

	resp, _ = env.get(t, "/")
	assert.Equal(t, http.StatusFound, resp.StatusCode, "signed out")

	resp, err = env.browser.Get(env.ts.URL + "/logout")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestFrontend_CallbackRejectsForgedState(t *testing.T) {
	env := newFrontendEnv(t, "")
	env.browser.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	// No pending login at all.
	resp, body := env.get(t, "/login/oauth2/code/keycloak?code=x&state=y")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "expired")

	resp, _ = env.get(t, "/oauth2/authorization/keycloak")
	require.Equal(t, http.StatusFound, resp.StatusCode)

	resp, body = env.get(t, "/login/oauth2/code/keycloak?code=x&state=forged")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "state mismatch")

	resp, body = env.get(t, "/login/oauth2/code/keycloak?error=access_denied")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body, "access_denied")
}

func TestFrontend_CalendarServiceErrors(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(failing.Close)

	env := newFrontendEnv(t, failing.URL)

	resp, body := env.get(t, "/calendar")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Calendar service error: Failed to fetch calendar events due to HTTP error: 500 Internal Server Error", body)

	// The home page does not touch the calendar service.
	resp, _ = env.get(t, "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestFrontend_CalendarServiceUnreachable(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	env := newFrontendEnv(t, deadURL)

	resp, body := env.get(t, "/calendar")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Calendar service error: Unexpected error occurred while fetching calendar events", body)
}
