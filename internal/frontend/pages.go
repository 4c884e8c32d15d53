package frontend

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"

	"github.com/keycal/keycal/internal/audit"
	"github.com/keycal/keycal/internal/session"
	"github.com/keycal/keycal/pkg/client"
)

const genericFailure = "An unexpected error occurred. Please try again later."

type pageData struct {
	User         *session.User
	Roles        []string
	Events       []client.Event
	ShowCalendar bool
	Message      string
	LoginURL     string
}

// Index renders the home page with the user's identity and roles.
func (a *App) Index(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	slog.Debug("rendering home page", "username", sess.User.Username)
	a.render(w, http.StatusOK, "index.html", pageData{User: sess.User, Roles: sess.User.Roles})
}

// Calendar fetches a fresh batch from the calendar service with the user's
// delegated access token and renders it.
func (a *App) Calendar(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())

	token, err := a.accessToken(r, sess)
	if errors.Is(err, errLoginRequired) {
		slog.Info("session grant expired, restarting login", "sub", sess.User.Subject, "error", err)
		if err := a.sessions.Delete(r.Context(), sess.ID); err != nil {
			slog.Warn("failed to delete session", "sub", sess.User.Subject, "error", err)
		}
		a.clearCookie(w)
		a.redirectToLogin(w, r)
		return
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}

	events, err := a.calendar.FetchEvents(r.Context(), token)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	slog.Info("fetched calendar events", "count", len(events), "username", sess.User.Username)
	a.logAudit(r, sess.User.Subject, audit.ActionCalendarView, r.URL.Path, map[string]any{"count": len(events)})
	a.render(w, http.StatusOK, "index.html", pageData{
		User:         sess.User,
		Roles:        sess.User.Roles,
		Events:       events,
		ShowCalendar: true,
	})
}

// AccessDenied renders the access-denied page.
func (a *App) AccessDenied(w http.ResponseWriter, r *http.Request) {
	slog.Warn("access denied page requested")
	data := pageData{}
	if sess := sessionFrom(r.Context()); sess != nil {
		data.User, data.Roles = sess.User, sess.User.Roles
	}
	a.render(w, http.StatusOK, "access-denied.html", data)
}

// Login renders the sign-in page.
func (a *App) Login(w http.ResponseWriter, r *http.Request) {
	a.renderLogin(w, http.StatusOK, "")
}

func (a *App) renderLogin(w http.ResponseWriter, status int, message string) {
	a.render(w, status, "login.html", pageData{Message: message, LoginURL: a.authorizePath()})
}

// fail maps an error to a plain-text 500. Calendar fetch failures carry
// their own user-facing message; everything else is generic.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	msg := genericFailure
	var fe *client.FetchError
	if errors.As(err, &fe) {
		slog.Error("calendar fetch failed", "error", fe.Message, "cause", fe.Err, "path", r.URL.Path)
		msg = "Calendar service error: " + fe.Error()
	} else {
		slog.Error("unexpected error", "error", err, "path", r.URL.Path)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	w.Write([]byte(msg))
}

func (a *App) render(w http.ResponseWriter, status int, name string, data pageData) {
	var buf bytes.Buffer
	if err := a.pages.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("render failed", "template", name, "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(genericFailure))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}
