package server

import (
	"io"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/keycal/keycal/internal/config"
	"github.com/keycal/keycal/internal/frontend"
	"github.com/keycal/keycal/internal/handler"
	"github.com/keycal/keycal/internal/middleware"
)

// NewFrontend creates the browser-facing app server. Closers (session store,
// audit logger) are released on Shutdown after in-flight requests finish.
func NewFrontend(cfg *config.Frontend, app *frontend.App, checks map[string]handler.ReadinessCheck, closers ...io.Closer) *Server {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger)
	r.Use(chimw.Recoverer)

	healthHandler := handler.NewHealthHandler(checks)
	reg := cfg.ClientRegistrationID

	// Public
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Get("/login", app.Login)
	r.Get("/oauth2/authorization/"+reg, app.Authorize)
	r.Get("/login/oauth2/code/"+reg, app.Callback)
	r.Handle("/css/*", app.Static())
	r.Post("/logout", app.Logout)

	// Signed in
	r.Group(func(r chi.Router) {
		r.Use(app.RequireLogin)

		r.Get("/access-denied", app.AccessDenied)

		r.Group(func(r chi.Router) {
			r.Use(app.RequireRole(cfg.RequiredRole))

			r.Get("/", app.Index)
			r.Get("/home", app.Index)
			r.Get("/calendar", app.Calendar)
		})
	})

	return newServer("frontend-app", cfg.Port, r, closers...)
}
