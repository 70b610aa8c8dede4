// Package oidctest runs a fake OpenID provider for tests. It serves a discovery
// document, a JWKS and a token endpoint that answers with ID tokens signed by an
// in-memory RSA key.
package oidctest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
)

const (
	KeyID    = "oidctest-key"
	ClientID = "oidctest-client-id"
)

type Provider struct {
	Server *httptest.Server

	mu            sync.Mutex
	key           *rsa.PrivateKey
	keyID         string
	jwksHits      int
	idToken       string
	tokenStatus   int
	lastTokenForm map[string][]string
	tokenRequests int
	discoveryHits int
}

// Start runs a provider that is closed with the test.
func Start(t *testing.T) *Provider {
	t.Helper()

	p := &Provider{
		key:         generateKey(t),
		keyID:       KeyID,
		tokenStatus: http.StatusOK,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", p.discovery)
	mux.HandleFunc("GET /oauth2/v3/certs", p.jwks)
	mux.HandleFunc("POST /token", p.token)
	p.Server = httptest.NewServer(mux)
	t.Cleanup(p.Server.Close)

	return p
}

func (p *Provider) DiscoveryURL() string {
	return p.Server.URL + "/.well-known/openid-configuration"
}

func (p *Provider) Issuer() string {
	return p.Server.URL
}

// DefaultClaims returns a valid claim set for the given nonce.
func (p *Provider) DefaultClaims(nonce string) jwt.MapClaims {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":            p.Issuer(),
		"aud":            ClientID,
		"sub":            "1234567890",
		"email":          "test@example.com",
		"email_verified": true,
		"given_name":     "Test",
		"family_name":    "User",
		"picture":        "https://example.com/picture.png",
		"iat":            now.Unix(),
		"exp":            now.Add(time.Hour).Unix(),
	}
	if nonce != "" {
		claims["nonce"] = nonce
	}

	return claims
}

// Sign signs claims with the current provider key.
func (p *Provider) Sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	p.mu.Lock()
	key, keyID := p.key, p.keyID
	p.mu.Unlock()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = keyID

	raw, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("signing id token: %s", err)
	}

	return raw
}

// RotateKey replaces the signing key and its key id. The JWKS serves only the new key.
func (p *Provider) RotateKey(t *testing.T, keyID string) {
	t.Helper()

	key := generateKey(t)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.key, p.keyID = key, keyID
}

func (p *Provider) JWKSHits() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.jwksHits
}

func generateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating rsa key: %s", err)
	}

	return key
}

// SetIDToken sets the id_token returned by the token endpoint.
func (p *Provider) SetIDToken(idToken string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idToken = idToken
}

// SetTokenStatus makes the token endpoint answer with status.
func (p *Provider) SetTokenStatus(status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenStatus = status
}

func (p *Provider) LastTokenForm() map[string][]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastTokenForm
}

func (p *Provider) TokenRequests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokenRequests
}

func (p *Provider) DiscoveryHits() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.discoveryHits
}

func (p *Provider) discovery(w http.ResponseWriter, _ *http.Request) {
	p.mu.Lock()
	p.discoveryHits++
	p.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"issuer":                                p.Issuer(),
		"authorization_endpoint":                p.Server.URL + "/o/oauth2/v2/auth",
		"token_endpoint":                        p.Server.URL + "/token",
		"userinfo_endpoint":                     p.Server.URL + "/v1/userinfo",
		"jwks_uri":                              p.Server.URL + "/oauth2/v3/certs",
		"response_types_supported":              []string{"code", "id_token"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
		"scopes_supported":                      []string{"openid", "email", "profile"},
		"code_challenge_methods_supported":      []string{"plain", "S256"},
	})
}

func (p *Provider) jwks(w http.ResponseWriter, _ *http.Request) {
	p.mu.Lock()
	p.jwksHits++
	key, keyID := p.key, p.keyID
	p.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{{
			Key:       &key.PublicKey,
			KeyID:     keyID,
			Algorithm: string(jose.RS256),
			Use:       "sig",
		}},
	})
}

func (p *Provider) token(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()

	p.mu.Lock()
	p.tokenRequests++
	p.lastTokenForm = r.PostForm
	status, idToken := p.tokenStatus, p.idToken
	p.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error": "invalid_grant", "error_description": "Bad Request"}`))
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token":  "provider-access-token",
		"expires_in":    3599,
		"id_token":      idToken,
		"scope":         "openid email profile",
		"token_type":    "Bearer",
		"refresh_token": "provider-refresh-token",
	})
}
