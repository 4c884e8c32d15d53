// Package frontend is the browser-facing web app: OIDC login against the
// identity provider and a rendered view of the calendar service's events.
package frontend

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/keycal/keycal/internal/audit"
	"github.com/keycal/keycal/internal/auth"
	"github.com/keycal/keycal/internal/config"
	"github.com/keycal/keycal/internal/session"
	"github.com/keycal/keycal/pkg/client"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed all:static
var staticFS embed.FS

// CookieName is the session cookie.
const CookieName = "KEYCAL_SESSION"

// Identity is the OIDC provider as seen by the app.
type Identity interface {
	Provider(ctx context.Context) (*oidc.Provider, error)
	Verify(ctx context.Context, raw string) (*auth.Principal, error)
}

// CalendarFetcher retrieves events on behalf of an access token.
type CalendarFetcher interface {
	FetchEvents(ctx context.Context, token string) ([]client.Event, error)
}

// App holds the frontend's dependencies. Construct it with New.
type App struct {
	cfg        *config.Frontend
	identity   Identity
	calendar   CalendarFetcher
	sessions   session.Store
	audit      *audit.Logger
	httpClient *http.Client
	pages      *template.Template
	now        func() time.Time
}

// Option configures an App.
type Option func(*App)

// WithHTTPClient sets the client used for token endpoint calls.
func WithHTTPClient(c *http.Client) Option {
	return func(a *App) {
		a.httpClient = c
	}
}

// WithAudit records logins, logouts, denials and calendar views.
func WithAudit(l *audit.Logger) Option {
	return func(a *App) {
		a.audit = l
	}
}

// New creates the app.
func New(cfg *config.Frontend, identity Identity, calendar CalendarFetcher, sessions session.Store, opts ...Option) (*App, error) {
	pages, err := template.New("pages").Funcs(template.FuncMap{
		"eventTime": func(t time.Time) string { return t.Format("Mon 02 Jan 2006, 15:04") },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	a := &App{
		cfg:        cfg,
		identity:   identity,
		calendar:   calendar,
		sessions:   sessions,
		httpClient: http.DefaultClient,
		pages:      pages,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Static serves the embedded stylesheet tree.
func (a *App) Static() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}

func (a *App) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
}

func (a *App) oauth2Config(ctx context.Context) (*oauth2.Config, *oidc.Provider, error) {
	provider, err := a.identity.Provider(ctx)
	if err != nil {
		return nil, nil, err
	}
	return &oauth2.Config{
		ClientID:     a.cfg.ClientID,
		ClientSecret: a.cfg.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  a.cfg.RedirectURL(),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}, provider, nil
}

func (a *App) authorizePath() string {
	return "/oauth2/authorization/" + a.cfg.ClientRegistrationID
}

func (a *App) logAudit(r *http.Request, actor, action, target string, detail map[string]any) {
	if a.audit == nil {
		return
	}
	a.audit.Log(audit.WithIP(r.Context(), audit.IPFromRequest(r)), actor, action, target, detail)
}
