// Package authtest runs an in-process OpenID provider that mimics the parts of
// Keycloak the services talk to.
package authtest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"
)

const (
	ClientID     = "frontend-app"
	ClientSecret = "secret"
	keyID        = "test"
)

type grant struct {
	nonce       string
	challenge   string
	redirectURI string
}

// Issuer is a mock realm. Subject, Username and Roles describe the user that
// logs in through the authorization endpoint.
type Issuer struct {
	*httptest.Server

	Subject  string
	Username string
	Roles    []string
	// ExpiresIn is the access token lifetime handed out by the token endpoint.
	ExpiresIn time.Duration

	key    *rsa.PrivateKey
	signer jose.Signer

	mu        sync.Mutex
	codes     map[string]grant
	refresh   map[string]bool
	refreshes int
	logouts   int
}

// NewIssuer starts a mock issuer that is closed with the test.
func NewIssuer(t testing.TB) *Issuer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: jose.JSONWebKey{Key: key, KeyID: keyID}},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		t.Fatalf("create signer: %v", err)
	}

	iss := &Issuer{
		Subject:   "user-1",
		Username:  "alice",
		Roles:     []string{"my-role"},
		ExpiresIn: 5 * time.Minute,
		key:       key,
		signer:    signer,
		codes:     make(map[string]grant),
		refresh:   make(map[string]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", iss.discovery)
	mux.HandleFunc("GET /certs", iss.certs)
	mux.HandleFunc("GET /auth", iss.authorize)
	mux.HandleFunc("POST /token", iss.token)
	mux.HandleFunc("GET /logout", iss.logout)

	iss.Server = httptest.NewServer(mux)
	t.Cleanup(iss.Close)
	return iss
}

// Sign serializes claims as a JWT signed by the realm key. iss, iat and exp
// are filled in when absent.
func (i *Issuer) Sign(t testing.TB, claims map[string]any) string {
	t.Helper()
	raw, err := i.sign(claims)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

// AccessToken returns a valid access token for subject carrying roles.
func (i *Issuer) AccessToken(t testing.TB, subject string, roles ...string) string {
	t.Helper()
	return i.Sign(t, i.accessClaims(subject, roles, time.Hour))
}

// Refreshes returns how many refresh_token grants were served.
func (i *Issuer) Refreshes() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.refreshes
}

// Logouts returns how many times the end-session endpoint was hit.
func (i *Issuer) Logouts() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.logouts
}

// ForeignToken signs claims with a key the issuer does not publish.
func ForeignToken(t testing.TB, claims map[string]any) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: jose.JSONWebKey{Key: key, KeyID: keyID}},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		t.Fatalf("create signer: %v", err)
	}
	raw, err := jwt.Signed(signer).Claims(claims).Serialize()
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

func (i *Issuer) sign(claims map[string]any) (string, error) {
	now := time.Now()
	c := map[string]any{
		"iss": i.URL,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
	for k, v := range claims {
		c[k] = v
	}
	return jwt.Signed(i.signer).Claims(c).Serialize()
}

func (i *Issuer) accessClaims(subject string, roles []string, ttl time.Duration) map[string]any {
	rs := make([]any, len(roles))
	for n, r := range roles {
		rs[n] = r
	}
	return map[string]any{
		"sub":                subject,
		"aud":                "account",
		"azp":                ClientID,
		"typ":                "Bearer",
		"exp":                time.Now().Add(ttl).Unix(),
		"preferred_username": i.Username,
		"realm_access":       map[string]any{"roles": rs},
	}
}

func (i *Issuer) discovery(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                                i.URL,
		"authorization_endpoint":                i.URL + "/auth",
		"token_endpoint":                        i.URL + "/token",
		"jwks_uri":                              i.URL + "/certs",
		"end_session_endpoint":                  i.URL + "/logout",
		"id_token_signing_alg_values_supported": []string{"RS256"},
	})
}

func (i *Issuer) certs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
		Key:       &i.key.PublicKey,
		KeyID:     keyID,
		Algorithm: string(jose.RS256),
		Use:       "sig",
	}}})
}

func (i *Issuer) authorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("client_id") != ClientID || q.Get("response_type") != "code" {
		http.Error(w, "invalid_request", http.StatusBadRequest)
		return
	}
	if q.Get("code_challenge_method") != "S256" || q.Get("code_challenge") == "" {
		http.Error(w, "pkce required", http.StatusBadRequest)
		return
	}

	code := uuid.NewString()
	i.mu.Lock()
	i.codes[code] = grant{
		nonce:       q.Get("nonce"),
		challenge:   q.Get("code_challenge"),
		redirectURI: q.Get("redirect_uri"),
	}
	i.mu.Unlock()

	target, err := url.Parse(q.Get("redirect_uri"))
	if err != nil {
		http.Error(w, "invalid redirect_uri", http.StatusBadRequest)
		return
	}
	params := target.Query()
	params.Set("code", code)
	params.Set("state", q.Get("state"))
	target.RawQuery = params.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}

func (i *Issuer) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		tokenError(w, "invalid_request")
		return
	}
	id, secret, ok := r.BasicAuth()
	if !ok {
		id, secret = r.PostForm.Get("client_id"), r.PostForm.Get("client_secret")
	}
	if id != ClientID || secret != ClientSecret {
		tokenError(w, "invalid_client")
		return
	}

	var nonce string
	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		i.mu.Lock()
		g, found := i.codes[r.PostForm.Get("code")]
		delete(i.codes, r.PostForm.Get("code"))
		i.mu.Unlock()
		if !found || g.redirectURI != r.PostForm.Get("redirect_uri") {
			tokenError(w, "invalid_grant")
			return
		}
		sum := sha256.Sum256([]byte(r.PostForm.Get("code_verifier")))
		if base64.RawURLEncoding.EncodeToString(sum[:]) != g.challenge {
			tokenError(w, "invalid_grant")
			return
		}
		nonce = g.nonce
	case "refresh_token":
		i.mu.Lock()
		valid := i.refresh[r.PostForm.Get("refresh_token")]
		delete(i.refresh, r.PostForm.Get("refresh_token"))
		if valid {
			i.refreshes++
		}
		i.mu.Unlock()
		if !valid {
			tokenError(w, "invalid_grant")
			return
		}
	default:
		tokenError(w, "unsupported_grant_type")
		return
	}

	access, err := i.sign(i.accessClaims(i.Subject, i.Roles, i.ExpiresIn))
	if err != nil {
		tokenError(w, "server_error")
		return
	}
	idClaims := map[string]any{
		"sub":                i.Subject,
		"aud":                ClientID,
		"preferred_username": i.Username,
		"email":              i.Username + "@example.com",
		"name":               i.Username,
	}
	if nonce != "" {
		idClaims["nonce"] = nonce
	}
	idToken, err := i.sign(idClaims)
	if err != nil {
		tokenError(w, "server_error")
		return
	}

	refresh := uuid.NewString()
	i.mu.Lock()
	i.refresh[refresh] = true
	i.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  access,
		"token_type":    "Bearer",
		"expires_in":    int(i.ExpiresIn / time.Second),
		"refresh_token": refresh,
		"id_token":      idToken,
	})
}

func (i *Issuer) logout(w http.ResponseWriter, r *http.Request) {
	i.mu.Lock()
	i.logouts++
	i.mu.Unlock()

	if target := r.URL.Query().Get("post_logout_redirect_uri"); target != "" {
		http.Redirect(w, r, target, http.StatusFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func tokenError(w http.ResponseWriter, code string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
