// Package session stores frontend login sessions.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/keycal/keycal/internal/config"
)

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

// User is the authenticated end user.
type User struct {
	Subject  string   `json:"sub"`
	Username string   `json:"preferred_username,omitempty"`
	Email    string   `json:"email,omitempty"`
	Name     string   `json:"name,omitempty"`
	Roles    []string `json:"roles"`
}

// HasRole reports whether role was granted. Matching is exact.
func (u *User) HasRole(role string) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Session is the server-side state behind the session cookie. Before login
// completes only the authorization request fields are set.
type Session struct {
	ID string `json:"id"`

	// Pending authorization request
	State    string `json:"state,omitempty"`
	Nonce    string `json:"nonce,omitempty"`
	Verifier string `json:"verifier,omitempty"`
	ReturnTo string `json:"return_to,omitempty"`

	// Authorized client
	User    *User         `json:"user,omitempty"`
	Token   *oauth2.Token `json:"token,omitempty"`
	IDToken string        `json:"id_token,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// New returns an empty session with a fresh random ID.
func New(ttl time.Duration) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Authenticated reports whether login has completed.
func (s *Session) Authenticated() bool {
	return s != nil && s.User != nil && s.Token != nil
}

// Expired reports whether the session is past its expiry.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Store persists sessions.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// Open creates the store selected by kind.
func Open(ctx context.Context, kind config.SessionStore, dsn string) (Store, error) {
	switch kind {
	case config.SessionMemory, "":
		return NewMemoryStore(), nil
	case config.SessionSQLite:
		return OpenSQLite(ctx, dsn)
	case config.SessionPostgres:
		return OpenPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown session store %q", kind)
	}
}
