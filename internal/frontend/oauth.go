package frontend

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/keycal/keycal/internal/audit"
	"github.com/keycal/keycal/internal/auth"
	"github.com/keycal/keycal/internal/session"
)

// errLoginRequired means the stored grant can no longer be refreshed.
var errLoginRequired = errors.New("login required")

// Authorize starts the authorization code flow with state, nonce and PKCE.
func (a *App) Authorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cfg, _, err := a.oauth2Config(ctx)
	if err != nil {
		a.fail(w, r, fmt.Errorf("start login: %w", err))
		return
	}

	sess, err := a.loadSession(r)
	if err != nil {
		sess = session.New(a.cfg.SessionTTL)
	}
	sess.State = oauth2.GenerateVerifier()
	sess.Nonce = oauth2.GenerateVerifier()
	sess.Verifier = oauth2.GenerateVerifier()
	sess.ReturnTo = safeReturnTo(r.URL.Query().Get("return_to"))

	if err := a.sessions.Save(ctx, sess); err != nil {
		a.fail(w, r, fmt.Errorf("save session: %w", err))
		return
	}
	a.setCookie(w, sess)

	target := cfg.AuthCodeURL(sess.State,
		oidc.Nonce(sess.Nonce),
		oauth2.S256ChallengeOption(sess.Verifier),
	)
	http.Redirect(w, r, target, http.StatusFound)
}

// Callback completes the flow: it exchanges the code, verifies the ID token
// and its nonce, merges realm roles from the access token and replaces the
// pending session with an authenticated one.
func (a *App) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	pending, err := a.loadSession(r)
	if err != nil || pending.State == "" {
		a.renderLogin(w, http.StatusBadRequest, "Your login attempt expired. Please sign in again.")
		return
	}
	if e := q.Get("error"); e != "" {
		slog.Warn("authorization failed", "error", e, "description", q.Get("error_description"))
		a.renderLogin(w, http.StatusUnauthorized, "Login failed: "+e)
		return
	}
	if q.Get("state") == "" || q.Get("state") != pending.State {
		a.renderLogin(w, http.StatusBadRequest, "Login failed: state mismatch.")
		return
	}

	cfg, provider, err := a.oauth2Config(ctx)
	if err != nil {
		a.fail(w, r, fmt.Errorf("complete login: %w", err))
		return
	}

	tok, err := cfg.Exchange(a.clientContext(ctx), q.Get("code"), oauth2.VerifierOption(pending.Verifier))
	if err != nil {
		slog.Warn("code exchange failed", "error", err)
		a.renderLogin(w, http.StatusUnauthorized, "Login failed: the authorization code was rejected.")
		return
	}

	user, rawID, err := a.userFromToken(r, provider, tok, pending.Nonce)
	if err != nil {
		slog.Warn("token validation failed", "error", err)
		a.renderLogin(w, http.StatusUnauthorized, "Login failed: the identity token was rejected.")
		return
	}

	sess := session.New(a.cfg.SessionTTL)
	sess.User = user
	sess.Token = tok
	sess.IDToken = rawID
	if err := a.sessions.Save(ctx, sess); err != nil {
		a.fail(w, r, fmt.Errorf("save session: %w", err))
		return
	}
	if err := a.sessions.Delete(ctx, pending.ID); err != nil {
		slog.Warn("failed to delete pending session", "error", err)
	}
	a.setCookie(w, sess)

	slog.Info("user logged in", "sub", user.Subject, "username", user.Username, "roles", user.Roles)
	a.logAudit(r, user.Subject, audit.ActionLogin, "", map[string]any{"username": user.Username})

	target := pending.ReturnTo
	if target == "" {
		target = "/"
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (a *App) userFromToken(r *http.Request, provider *oidc.Provider, tok *oauth2.Token, nonce string) (*session.User, string, error) {
	ctx := r.Context()

	rawID, ok := tok.Extra("id_token").(string)
	if !ok || rawID == "" {
		return nil, "", errors.New("token response has no id_token")
	}
	idTok, err := provider.Verifier(&oidc.Config{ClientID: a.cfg.ClientID}).Verify(ctx, rawID)
	if err != nil {
		return nil, "", fmt.Errorf("verify id token: %w", err)
	}
	if idTok.Nonce != nonce {
		return nil, "", errors.New("id token nonce mismatch")
	}

	var claims map[string]any
	if err := idTok.Claims(&claims); err != nil {
		return nil, "", fmt.Errorf("decode id token claims: %w", err)
	}

	// Realm roles live in the access token; the ID token rarely carries them.
	principal, err := a.identity.Verify(ctx, tok.AccessToken)
	if err != nil {
		return nil, "", fmt.Errorf("verify access token: %w", err)
	}

	roles := auth.RealmRoles(claims)
	for _, role := range principal.Roles {
		if !slices.Contains(roles, role) {
			roles = append(roles, role)
		}
	}

	str := func(name string) string {
		s, _ := claims[name].(string)
		return s
	}
	return &session.User{
		Subject:  idTok.Subject,
		Username: str("preferred_username"),
		Email:    str("email"),
		Name:     str("name"),
		Roles:    roles,
	}, rawID, nil
}

// accessToken returns a usable access token for sess, refreshing it through
// the token endpoint when it is about to expire.
func (a *App) accessToken(r *http.Request, sess *session.Session) (string, error) {
	ctx := r.Context()

	cfg, _, err := a.oauth2Config(ctx)
	if err != nil {
		return "", err
	}

	tok, err := cfg.TokenSource(a.clientContext(ctx), sess.Token).Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return "", fmt.Errorf("%w: %v", errLoginRequired, err)
		}
		return "", fmt.Errorf("refresh access token: %w", err)
	}

	// The token source hands back the stored token while it is still valid.
	if tok != sess.Token {
		slog.Debug("access token refreshed", "sub", sess.User.Subject)
		sess.Token = tok
		if err := a.sessions.Save(ctx, sess); err != nil {
			return "", fmt.Errorf("save refreshed token: %w", err)
		}
	}
	return tok.AccessToken, nil
}

// Logout destroys the session and, when the provider supports it, ends the
// provider session too.
func (a *App) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	home := a.cfg.ExternalURL() + "/"

	sess, err := a.loadSession(r)
	a.clearCookie(w)
	if err != nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	if err := a.sessions.Delete(ctx, sess.ID); err != nil {
		slog.Warn("failed to delete session", "error", err)
	}
	if sess.User != nil {
		a.logAudit(r, sess.User.Subject, audit.ActionLogout, "", nil)
	}

	endSession := a.endSessionEndpoint(r)
	if endSession == "" || sess.IDToken == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	params := url.Values{}
	params.Set("id_token_hint", sess.IDToken)
	params.Set("post_logout_redirect_uri", home)
	params.Set("client_id", a.cfg.ClientID)

	sep := "?"
	if strings.Contains(endSession, "?") {
		sep = "&"
	}
	http.Redirect(w, r, endSession+sep+params.Encode(), http.StatusFound)
}

func (a *App) endSessionEndpoint(r *http.Request) string {
	provider, err := a.identity.Provider(r.Context())
	if err != nil {
		return ""
	}
	var meta struct {
		EndSession string `json:"end_session_endpoint"`
	}
	if err := provider.Claims(&meta); err != nil {
		return ""
	}
	return meta.EndSession
}

// safeReturnTo accepts only local absolute paths.
func safeReturnTo(p string) string {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return ""
	}
	return p
}
