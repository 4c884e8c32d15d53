package handler

import (
	"context"
	"net/http"

	"github.com/keycal/keycal/internal/auth"
	"github.com/keycal/keycal/internal/middleware"
)

// TokenVerifier validates a raw bearer token.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*auth.Principal, error)
}

// TokenInfoHandler reports the identity carried by a presented token. It is
// public: an absent or invalid token yields {"active": false}.
type TokenInfoHandler struct {
	verifier TokenVerifier
}

// NewTokenInfoHandler creates a new TokenInfoHandler.
func NewTokenInfoHandler(v TokenVerifier) *TokenInfoHandler {
	return &TokenInfoHandler{verifier: v}
}

type tokenInfo struct {
	Active bool `json:"active"`
	*auth.Principal
}

func (h *TokenInfoHandler) Get(w http.ResponseWriter, r *http.Request) {
	raw := middleware.BearerToken(r)
	if raw == "" {
		writeJSON(w, http.StatusOK, tokenInfo{Active: false})
		return
	}

	p, err := h.verifier.Verify(r.Context(), raw)
	if err != nil {
		writeJSON(w, http.StatusOK, tokenInfo{Active: false})
		return
	}
	writeJSON(w, http.StatusOK, tokenInfo{Active: true, Principal: p})
}
