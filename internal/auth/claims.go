package auth

import (
	"slices"
	"time"
)

// Principal is the verified identity behind a bearer token.
type Principal struct {
	Subject  string    `json:"sub"`
	Username string    `json:"preferred_username,omitempty"`
	Email    string    `json:"email,omitempty"`
	Roles    []string  `json:"roles"`
	Expiry   time.Time `json:"exp"`
	IssuedAt time.Time `json:"iat"`
}

// HasRole reports whether role is among the principal's realm roles.
// Matching is exact and case-sensitive.
func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	return slices.Contains(p.Roles, role)
}

// RealmRoles reads realm_access.roles from a decoded claim set. Any shape
// other than an object holding a list of strings yields no roles; non-string
// members are skipped.
func RealmRoles(claims map[string]any) []string {
	access, ok := claims["realm_access"].(map[string]any)
	if !ok {
		return []string{}
	}
	raw, ok := access["roles"].([]any)
	if !ok {
		return []string{}
	}
	roles := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok && !slices.Contains(roles, s) {
			roles = append(roles, s)
		}
	}
	return roles
}

func stringClaim(claims map[string]any, name string) string {
	s, _ := claims[name].(string)
	return s
}
