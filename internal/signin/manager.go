// Package signin drives the OpenID Connect authorization code flow: it starts
// sign-in attempts and completes them when the provider redirects back.
package signin

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"

	otlpaudit "github.com/openkcm/common-sdk/pkg/otlp/audit"
	slogctx "github.com/veqryn/slog-context"

	"github.com/openshop/identity/internal/authstate"
	"github.com/openshop/identity/internal/oidc"
	"github.com/openshop/identity/internal/pkce"
	"github.com/openshop/identity/internal/serviceerr"
	"github.com/openshop/identity/internal/token"
	"github.com/openshop/identity/internal/user"
)

const auditSource = "identity"

var DefaultScopes = []string{"openid", "email", "profile"}

type Discovery interface {
	GetString(ctx context.Context, key string) (string, error)
}

type TokenExchanger interface {
	Exchange(ctx context.Context, code, codeVerifier string) (oidc.TokenResponse, error)
}

type IDTokenValidator interface {
	Validate(ctx context.Context, rawIDToken string) (oidc.Claims, error)
}

type TokenIssuer interface {
	Issue(u user.User) (token.Pair, error)
	IssueAccess(u user.User) (string, error)
	Parse(raw, tokenType string) (jwt.Claims, token.Claims, error)
}

// Settings are the static parameters of the authorization request.
type Settings struct {
	ClientID    string
	RedirectURI string
	Scopes      []string
	PKCE        bool
	// StateTTL bounds how long an attempt may stay open. Zero disables the check.
	StateTTL time.Duration
}

type Manager struct {
	discovery Discovery
	exchanger TokenExchanger
	validator IDTokenValidator
	states    authstate.Repository
	users     user.Directory
	tokens    TokenIssuer
	audit     *otlpaudit.AuditLogger
	pkce      pkce.Source

	settings Settings
	now      func() time.Time
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithAuditLogger reports every finished callback as a login success or failure event.
func WithAuditLogger(audit *otlpaudit.AuditLogger) Option {
	return func(m *Manager) { m.audit = audit }
}

func NewManager(
	settings Settings,
	discovery Discovery,
	exchanger TokenExchanger,
	validator IDTokenValidator,
	states authstate.Repository,
	users user.Directory,
	tokens TokenIssuer,
	opts ...Option,
) *Manager {
	if len(settings.Scopes) == 0 {
		settings.Scopes = DefaultScopes
	}

	m := &Manager{
		discovery: discovery,
		exchanger: exchanger,
		validator: validator,
		states:    states,
		users:     users,
		tokens:    tokens,
		settings:  settings,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// BeginSignIn stores a new attempt and returns the provider URL the browser is sent to.
func (m *Manager) BeginSignIn(ctx context.Context) (string, error) {
	authEndpoint, err := m.discovery.GetString(ctx, oidc.KeyAuthorizationEndpoint)
	if err != nil {
		return "", fmt.Errorf("getting authorization endpoint: %w", err)
	}

	state := authstate.State{
		ID:        uuid.NewString(),
		State:     m.pkce.State(),
		Nonce:     m.pkce.Nonce(),
		CreatedAt: m.now(),
	}

	var challenge pkce.PKCE
	if m.settings.PKCE {
		challenge = m.pkce.PKCE()
		state.CodeVerifier = challenge.Verifier
	}

	u, err := m.authURI(authEndpoint, state, challenge)
	if err != nil {
		return "", fmt.Errorf("generating auth uri: %w", err)
	}

	if err := m.states.Create(ctx, state); err != nil {
		return "", errors.Join(serviceerr.ErrStorageError, fmt.Errorf("storing auth state: %w", err))
	}

	slogctx.Debug(ctx, "Started sign-in", "auth_state_id", state.ID)

	return u, nil
}

func (m *Manager) authURI(endpoint string, state authstate.State, challenge pkce.PKCE) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parsing authorization endpoint url: %w", err)
	}

	q := u.Query()
	q.Set("response_type", "code")
	q.Set("client_id", m.settings.ClientID)
	q.Set("scope", strings.Join(m.settings.Scopes, " "))
	q.Set("redirect_uri", m.settings.RedirectURI)
	q.Set("state", state.State)
	q.Set("nonce", state.Nonce)
	if challenge.Verifier != "" {
		q.Set("code_challenge", challenge.Challenge)
		q.Set("code_challenge_method", challenge.Method)
	}

	u.RawQuery = q.Encode()

	return u.String(), nil
}

// Callback completes the attempt identified by stateValue. The attempt is
// consumed only when the ID token carries the expected nonce.
func (m *Manager) Callback(ctx context.Context, stateValue, code string) (token.Pair, error) {
	correlationID := uuid.NewString()
	ctx = slogctx.With(ctx, "correlation_id", correlationID)

	if stateValue == "" {
		m.sendUserLoginFailureAudit(ctx, correlationID, "", "missing state")
		return token.Pair{}, serviceerr.ErrInvalidState
	}

	state, err := m.states.Get(ctx, stateValue)
	if err != nil {
		if errors.Is(err, serviceerr.ErrNotFound) {
			m.sendUserLoginFailureAudit(ctx, correlationID, "", "unknown state")
			return token.Pair{}, serviceerr.ErrInvalidState
		}

		m.sendUserLoginFailureAudit(ctx, correlationID, "", "failed to load state")
		return token.Pair{}, errors.Join(serviceerr.ErrStorageError, fmt.Errorf("loading auth state: %w", err))
	}

	ctx = slogctx.With(ctx, "auth_state_id", state.ID)

	if m.settings.StateTTL > 0 && m.now().Sub(state.CreatedAt) > m.settings.StateTTL {
		m.sendUserLoginFailureAudit(ctx, correlationID, state.ID, "state expired")
		return token.Pair{}, serviceerr.ErrInvalidState
	}

	if code == "" {
		m.sendUserLoginFailureAudit(ctx, correlationID, state.ID, "missing code")
		return token.Pair{}, &serviceerr.Error{Err: serviceerr.CodeInvalidRequest, Description: "Missing code."}
	}

	tokens, err := m.exchanger.Exchange(ctx, code, state.CodeVerifier)
	if err != nil {
		m.sendUserLoginFailureAudit(ctx, correlationID, state.ID, "failed to exchange code for tokens")
		return token.Pair{}, providerError(serviceerr.ErrTokenExchangeFailed, fmt.Errorf("exchanging code for tokens: %w", err))
	}

	slogctx.Info(ctx, "Exchanged the auth code for tokens")

	claims, err := m.validator.Validate(ctx, tokens.IDToken)
	if err != nil {
		m.sendUserLoginFailureAudit(ctx, correlationID, state.ID, "invalid id token")
		return token.Pair{}, providerError(serviceerr.ErrInvalidIDToken, fmt.Errorf("validating id token: %w", err))
	}

	ctx = slogctx.With(ctx, "subject", claims.Subject)

	if claims.Nonce == "" {
		m.sendUserLoginFailureAudit(ctx, correlationID, state.ID, "missing nonce")
		return token.Pair{}, serviceerr.ErrMissingNonce
	}

	if claims.Nonce != state.Nonce {
		slogctx.Warn(ctx, "ID token nonce does not match the auth state")
		m.sendUserLoginFailureAudit(ctx, correlationID, state.ID, "nonce mismatch")
		return token.Pair{}, serviceerr.ErrNonceMismatch
	}

	if err := m.states.Delete(ctx, state.State); err != nil {
		if errors.Is(err, serviceerr.ErrNotFound) {
			slogctx.Warn(ctx, "Auth state was consumed by a concurrent callback")
			m.sendUserLoginFailureAudit(ctx, correlationID, state.ID, "state already consumed")
			return token.Pair{}, serviceerr.ErrInvalidState
		}

		m.sendUserLoginFailureAudit(ctx, correlationID, state.ID, "failed to delete state")
		return token.Pair{}, errors.Join(serviceerr.ErrStorageError, fmt.Errorf("deleting auth state: %w", err))
	}

	u, err := m.resolveUser(ctx, claims)
	if err != nil {
		m.sendUserLoginFailureAudit(ctx, correlationID, state.ID, "failed to resolve user")
		return token.Pair{}, errors.Join(serviceerr.ErrStorageError, err)
	}

	pair, err := m.tokens.Issue(u)
	if err != nil {
		m.sendUserLoginFailureAudit(ctx, correlationID, u.ID, "failed to issue tokens")
		return token.Pair{}, errors.Join(serviceerr.ErrUnknown, fmt.Errorf("issuing tokens: %w", err))
	}

	m.sendUserLoginSuccessAudit(ctx, correlationID, u.ID)
	slogctx.Info(ctx, "User signed in", "user_id", u.ID)

	return pair, nil
}

// resolveUser finds the user bound to the ID token subject or creates it
// together with its customer profile.
func (m *Manager) resolveUser(ctx context.Context, claims oidc.Claims) (user.User, error) {
	u, err := m.users.FindBySubject(ctx, claims.Subject)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, serviceerr.ErrNotFound) {
		return user.User{}, fmt.Errorf("finding user: %w", err)
	}

	u, err = m.users.CreateUser(ctx, user.User{
		Subject:    claims.Subject,
		Email:      claims.Email,
		GivenName:  claims.GivenName,
		FamilyName: claims.FamilyName,
		PictureURL: claims.Picture,
	})
	switch {
	case err == nil:
		slogctx.Info(ctx, "Created user", "user_id", u.ID)
		return u, nil
	case errors.Is(err, serviceerr.ErrConflict):
		// Another sign-in of the same subject created it first.
		u, err = m.users.FindBySubject(ctx, claims.Subject)
		if err != nil {
			return user.User{}, fmt.Errorf("finding user after conflict: %w", err)
		}
		return u, nil
	default:
		return user.User{}, fmt.Errorf("creating user: %w", err)
	}
}

// providerError keeps provider outages reported by the oidc package and
// classifies everything else as fallback.
func providerError(fallback *serviceerr.Error, err error) error {
	if errors.Is(err, serviceerr.ErrFetchError) || errors.Is(err, serviceerr.ErrKeyNotFound) {
		return err
	}

	return errors.Join(fallback, err)
}
