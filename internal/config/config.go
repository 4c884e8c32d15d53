package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// SessionStore selects the frontend session backend.
type SessionStore string

const (
	SessionMemory   SessionStore = "memory"
	SessionSQLite   SessionStore = "sqlite"
	SessionPostgres SessionStore = "postgres"
)

// Logging is shared by both services.
type Logging struct {
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	// LogFile, when set, receives a rotated copy of the log stream.
	LogFile       string `env:"LOG_FILE"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"100"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"3"`
}

// Calendar configures the calendar service.
type Calendar struct {
	Logging

	// Server
	Port            string        `env:"PORT" envDefault:"9090"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Authorization
	IssuerURI    string `env:"ISSUER_URI,required"`
	JWTAudience  string `env:"JWT_AUDIENCE"`
	RequiredRole string `env:"REQUIRED_ROLE" envDefault:"my-role"`

	// CORS
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:8080"`

	// Rate limiting, per client IP and per subject
	RateLimitRPS   int `env:"RATE_LIMIT_RPS" envDefault:"50"`
	RateLimitBurst int `env:"RATE_LIMIT_BURST" envDefault:"100"`

	// RandomSeed of 0 draws from crypto/rand.
	RandomSeed uint64 `env:"RANDOM_SEED" envDefault:"0"`
}

// Frontend configures the frontend web app.
type Frontend struct {
	Logging

	// Server
	Port            string        `env:"PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	BaseURL         string        `env:"BASE_URL"`

	// OIDC client registration
	IssuerURI            string `env:"ISSUER_URI,required"`
	ClientRegistrationID string `env:"CLIENT_REGISTRATION_ID" envDefault:"keycloak"`
	ClientID             string `env:"CLIENT_ID,required"`
	ClientSecret         string `env:"CLIENT_SECRET"`
	RequiredRole         string `env:"REQUIRED_ROLE" envDefault:"my-role"`

	// Calendar service
	CalendarServiceURL string        `env:"CALENDAR_SERVICE_URL" envDefault:"http://localhost:9090"`
	CalendarTimeout    time.Duration `env:"CALENDAR_TIMEOUT" envDefault:"30s"`
	CalendarStrict     bool          `env:"CALENDAR_STRICT" envDefault:"false"`

	// Sessions
	SessionStore SessionStore  `env:"SESSION_STORE" envDefault:"memory"`
	SessionDSN   string        `env:"SESSION_DSN"`
	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"8h"`
	CookieSecure bool          `env:"COOKIE_SECURE" envDefault:"false"`
}

// ExternalURL returns BaseURL, or the localhost address for Port.
func (f *Frontend) ExternalURL() string {
	if f.BaseURL != "" {
		return strings.TrimRight(f.BaseURL, "/")
	}
	return "http://localhost:" + f.Port
}

// RedirectURL is the OAuth2 callback registered with the provider.
func (f *Frontend) RedirectURL() string {
	return f.ExternalURL() + "/login/oauth2/code/" + f.ClientRegistrationID
}

// LoadCalendar reads the calendar service configuration from the process
// environment.
func LoadCalendar() (*Calendar, error) {
	return LoadCalendarFrom(environ())
}

// LoadCalendarFrom reads the calendar service configuration from vars.
func LoadCalendarFrom(vars map[string]string) (*Calendar, error) {
	cfg := &Calendar{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: vars}); err != nil {
		return nil, err
	}
	if err := validateURL("ISSUER_URI", cfg.IssuerURI); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFrontend reads the frontend configuration from the process environment.
func LoadFrontend() (*Frontend, error) {
	return LoadFrontendFrom(environ())
}

// LoadFrontendFrom reads the frontend configuration from vars.
func LoadFrontendFrom(vars map[string]string) (*Frontend, error) {
	cfg := &Frontend{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: vars}); err != nil {
		return nil, err
	}
	if err := validateURL("ISSUER_URI", cfg.IssuerURI); err != nil {
		return nil, err
	}
	if err := validateURL("CALENDAR_SERVICE_URL", cfg.CalendarServiceURL); err != nil {
		return nil, err
	}

	switch cfg.SessionStore {
	case SessionMemory:
	case SessionSQLite, SessionPostgres:
		if cfg.SessionDSN == "" {
			return nil, fmt.Errorf("SESSION_DSN is required for session store %q", cfg.SessionStore)
		}
	default:
		return nil, fmt.Errorf("unknown SESSION_STORE %q", cfg.SessionStore)
	}
	return cfg, nil
}

func validateURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
	}
	return nil
}

func environ() map[string]string {
	m := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			m[k] = v
		}
	}
	return m
}
