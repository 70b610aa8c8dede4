package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/patrickmn/go-cache"

	"github.com/openshop/identity/internal/serviceerr"
)

const defaultLeeway = time.Minute

// Claims is the verified identity payload of an ID token.
type Claims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
	Nonce         string `json:"nonce"`
}

// Validator verifies ID tokens against the provider JWKS and the client audience.
type Validator struct {
	discovery  *Discovery
	httpClient *http.Client
	clientID   string
	keys       *cache.Cache
	leeway     time.Duration
	now        func() time.Time
}

type ValidatorOption func(*Validator)

// WithClock replaces the time source used for expiry checks.
func WithClock(now func() time.Time) ValidatorOption {
	return func(v *Validator) { v.now = now }
}

func WithLeeway(leeway time.Duration) ValidatorOption {
	return func(v *Validator) { v.leeway = leeway }
}

func NewValidator(discovery *Discovery, httpClient *http.Client, clientID string, keysTTL time.Duration, opts ...ValidatorOption) *Validator {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	v := &Validator{
		discovery:  discovery,
		httpClient: httpClient,
		clientID:   clientID,
		keys:       cache.New(keysTTL, 2*keysTTL),
		leeway:     defaultLeeway,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}

	return v
}

// Validate checks signature, issuer, audience and expiry of rawIDToken and returns its claims.
func (v *Validator) Validate(ctx context.Context, rawIDToken string) (Claims, error) {
	conf, err := v.discovery.Configuration(ctx)
	if err != nil {
		return Claims{}, fmt.Errorf("getting openid configuration: %w", err)
	}

	algs := make([]jose.SignatureAlgorithm, 0, len(conf.IDTokenSigningAlgValuesSupported))
	for _, alg := range conf.IDTokenSigningAlgValuesSupported {
		algs = append(algs, jose.SignatureAlgorithm(alg))
	}
	if len(algs) == 0 {
		algs = append(algs, jose.RS256)
	}

	token, err := jwt.ParseSigned(rawIDToken, algs)
	if err != nil {
		return Claims{}, fmt.Errorf("parsing id token: %w", err)
	}

	standardClaims, claims, err := v.verify(ctx, token, conf.JwksURI)
	if errors.Is(err, jose.ErrJWKSKidNotFound) {
		// The provider rotated its keys after they were cached.
		v.keys.Delete(conf.JwksURI)
		v.discovery.Invalidate()

		conf, err = v.discovery.Configuration(ctx)
		if err != nil {
			return Claims{}, fmt.Errorf("getting openid configuration: %w", err)
		}

		standardClaims, claims, err = v.verify(ctx, token, conf.JwksURI)
	}
	if err != nil {
		return Claims{}, err
	}

	if !issuerMatches(conf.Issuer, standardClaims.Issuer) {
		return Claims{}, fmt.Errorf("unexpected issuer %q", standardClaims.Issuer)
	}

	if standardClaims.Expiry == nil {
		return Claims{}, errors.New("id token has no expiry")
	}

	if err := standardClaims.ValidateWithLeeway(jwt.Expected{
		AnyAudience: jwt.Audience{v.clientID},
		Time:        v.now(),
	}, v.leeway); err != nil {
		return Claims{}, fmt.Errorf("validating id token claims: %w", err)
	}

	claims.Subject = standardClaims.Subject

	return claims, nil
}

func (v *Validator) verify(ctx context.Context, token *jwt.JSONWebToken, jwksURI string) (jwt.Claims, Claims, error) {
	keySet, err := v.keySet(ctx, jwksURI)
	if err != nil {
		return jwt.Claims{}, Claims{}, errors.Join(serviceerr.ErrFetchError, fmt.Errorf("getting jwks for the provider: %w", err))
	}

	var standardClaims jwt.Claims
	var claims Claims
	if err := token.Claims(keySet, &standardClaims, &claims); err != nil {
		return jwt.Claims{}, Claims{}, fmt.Errorf("verifying id token: %w", err)
	}

	return standardClaims, claims, nil
}

// issuerMatches accepts the discovery issuer with or without its scheme,
// as Google issues both https://accounts.google.com and accounts.google.com.
func issuerMatches(expected, actual string) bool {
	if expected == "" || actual == "" {
		return false
	}

	accepted := []string{expected, strings.TrimPrefix(expected, "https://")}

	return slices.Contains(accepted, actual)
}

func (v *Validator) keySet(ctx context.Context, jwksURI string) (*jose.JSONWebKeySet, error) {
	if jwksURI == "" {
		return nil, errors.New("no jwks_uri in the discovery document")
	}

	if cached, ok := v.keys.Get(jwksURI); ok {
		//nolint:forcetypeassert
		return cached.(*jose.JSONWebKeySet), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURI, nil)
	if err != nil {
		return nil, fmt.Errorf("creating a new HTTP request: %w", err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing an http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jwks request failed with status: %d", resp.StatusCode)
	}

	var keySet jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&keySet); err != nil {
		return nil, fmt.Errorf("decoding keyset response: %w", err)
	}

	v.keys.Set(jwksURI, &keySet, cache.DefaultExpiration)

	return &keySet, nil
}
