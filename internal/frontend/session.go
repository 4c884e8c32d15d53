package frontend

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/keycal/keycal/internal/audit"
	"github.com/keycal/keycal/internal/session"
)

type contextKey string

const sessionContextKey contextKey = "session"

func (a *App) loadSession(r *http.Request) (*session.Session, error) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return nil, session.ErrNotFound
	}
	return a.sessions.Get(r.Context(), c.Value)
}

func (a *App) setCookie(w http.ResponseWriter, sess *session.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   a.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *App) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// RequireLogin sends anonymous visitors to the authorization endpoint and
// stores the authenticated session in the request context.
func (a *App) RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := a.loadSession(r)
		if err != nil && !errors.Is(err, session.ErrNotFound) {
			a.fail(w, r, err)
			return
		}
		if sess == nil || !sess.Authenticated() {
			a.redirectToLogin(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionContextKey, sess)))
	})
}

// RequireRole renders the access-denied page for users lacking role. It
// must run after RequireLogin.
func (a *App) RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := sessionFrom(r.Context())
			if sess == nil {
				a.redirectToLogin(w, r)
				return
			}
			if !sess.User.HasRole(role) {
				a.logAudit(r, sess.User.Subject, audit.ActionAccessDenied, r.URL.Path, map[string]any{"required_role": role})
				a.render(w, http.StatusForbidden, "access-denied.html", pageData{User: sess.User, Roles: sess.User.Roles})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (a *App) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	target := a.authorizePath()
	if r.Method == http.MethodGet {
		target += "?return_to=" + url.QueryEscape(r.URL.RequestURI())
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func sessionFrom(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionContextKey).(*session.Session)
	return s
}
