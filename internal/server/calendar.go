package server

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/keycal/keycal/internal/auth"
	"github.com/keycal/keycal/internal/config"
	"github.com/keycal/keycal/internal/handler"
	"github.com/keycal/keycal/internal/middleware"
)

// NewCalendar creates the calendar service. Events are served to callers
// presenting a token verified by v that carries cfg.RequiredRole.
func NewCalendar(cfg *config.Calendar, v *auth.Verifier, events handler.EventSource) *Server {
	rlCfg := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rlCfg.RatePerSecond = cfg.RateLimitRPS
		rlCfg.AnonRatePerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rlCfg.Burst = cfg.RateLimitBurst
		rlCfg.AnonBurst = cfg.RateLimitBurst
	}
	rateLimiter := middleware.NewRateLimiter(rlCfg)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	healthHandler := handler.NewHealthHandler(map[string]handler.ReadinessCheck{
		"issuer": v.Ready,
	})
	calendarHandler := handler.NewCalendarHandler(events)
	tokenInfoHandler := handler.NewTokenInfoHandler(v)

	// Public
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(rateLimiter))

		r.Get("/health", healthHandler.Health)
		r.Get("/ready", healthHandler.Ready)
		r.Get("/calendar/token-info", tokenInfoHandler.Get)
	})

	// Role-protected. The first limit is keyed by client IP and also
	// covers rejected tokens; the second is keyed by subject.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(rateLimiter))
		r.Use(middleware.Authenticate(v))
		r.Use(middleware.RequireRole(cfg.RequiredRole))
		r.Use(middleware.RateLimit(rateLimiter))

		r.Get("/calendar", calendarHandler.List)
		r.Get("/calendar.ics", calendarHandler.ICS)
	})

	return newServer("calendar-service", cfg.Port, r, rateLimiter)
}
