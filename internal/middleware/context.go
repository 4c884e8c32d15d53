package middleware

import (
	"context"

	"github.com/keycal/keycal/internal/auth"
)

type contextKey string

const holderContextKey contextKey = "principalHolder"

func withHolder(ctx context.Context, h *principalHolder) context.Context {
	return context.WithValue(ctx, holderContextKey, h)
}

// notePrincipal records p for the request logger, if one is active.
func notePrincipal(ctx context.Context, p *auth.Principal) {
	if h, ok := ctx.Value(holderContextKey).(*principalHolder); ok {
		h.p = p
	}
}
