// Package auth verifies Keycloak-issued JWTs and extracts realm roles.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
)

var (
	// ErrProviderUnavailable means issuer discovery has not succeeded yet.
	ErrProviderUnavailable = errors.New("identity provider unavailable")
	// ErrInvalidToken covers every verification failure of a presented token.
	ErrInvalidToken = errors.New("invalid token")
)

// Verifier checks bearer tokens against an OIDC issuer. Discovery happens on
// first use and is retried until it succeeds.
type Verifier struct {
	issuer   string
	audience string
	client   *http.Client

	mu       sync.Mutex
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithAudience requires tokens to list aud in their audience claim.
func WithAudience(aud string) VerifierOption {
	return func(v *Verifier) {
		v.audience = aud
	}
}

// WithHTTPClient sets the client used for discovery and key fetches.
func WithHTTPClient(c *http.Client) VerifierOption {
	return func(v *Verifier) {
		v.client = c
	}
}

// NewVerifier creates a Verifier for issuer.
func NewVerifier(issuer string, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		issuer: issuer,
		client: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Issuer returns the configured issuer URI.
func (v *Verifier) Issuer() string {
	return v.issuer
}

// Provider returns the discovered provider, running discovery if needed.
func (v *Verifier) Provider(ctx context.Context) (*oidc.Provider, error) {
	p, _, err := v.load(ctx)
	return p, err
}

func (v *Verifier) load(ctx context.Context) (*oidc.Provider, *oidc.IDTokenVerifier, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.provider != nil {
		return v.provider, v.verifier, nil
	}

	p, err := oidc.NewProvider(oidc.ClientContext(ctx, v.client), v.issuer)
	if err != nil {
		slog.Warn("issuer discovery failed", "issuer", v.issuer, "error", err)
		return nil, nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	v.provider = p
	v.verifier = p.Verifier(&oidc.Config{
		ClientID:          v.audience,
		SkipClientIDCheck: v.audience == "",
	})
	slog.Info("issuer discovered", "issuer", v.issuer)
	return v.provider, v.verifier, nil
}

// Ready reports whether discovery has succeeded, attempting it if not.
func (v *Verifier) Ready(ctx context.Context) error {
	_, _, err := v.load(ctx)
	return err
}

// Verify validates raw and returns the principal it carries. Signature,
// issuer and expiry are always checked; audience only when configured.
func (v *Verifier) Verify(ctx context.Context, raw string) (*Principal, error) {
	_, verifier, err := v.load(ctx)
	if err != nil {
		return nil, err
	}

	tok, err := verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var claims map[string]any
	if err := tok.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: decode claims: %v", ErrInvalidToken, err)
	}

	return &Principal{
		Subject:  tok.Subject,
		Username: stringClaim(claims, "preferred_username"),
		Email:    stringClaim(claims, "email"),
		Roles:    RealmRoles(claims),
		Expiry:   tok.Expiry,
		IssuedAt: tok.IssuedAt,
	}, nil
}
