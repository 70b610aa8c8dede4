// Package token mints the local access and refresh credentials handed out
// after a successful sign-in.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"

	"github.com/openshop/identity/internal/user"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"

	minSecretLength = 32
)

var (
	ErrSecretTooShort = errors.New("signing secret must be at least 32 bytes")
	ErrWrongType      = errors.New("unexpected token type")
)

// Pair is the credential pair returned by the callback endpoint.
type Pair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Claims are the private claims carried by both tokens.
type Claims struct {
	TokenType string `json:"token_type"`
	UserID    string `json:"user_id"`
	Email     string `json:"email,omitempty"`
}

// Issuer signs token pairs with a shared HMAC secret.
type Issuer struct {
	signer     jose.Signer
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

type Option func(*Issuer)

func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

func NewIssuer(secret []byte, issuer string, accessTTL, refreshTTL time.Duration, opts ...Option) (*Issuer, error) {
	if len(secret) < minSecretLength {
		return nil, ErrSecretTooShort
	}

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: secret},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating signer: %w", err)
	}

	i := &Issuer{
		signer:     signer,
		secret:     secret,
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(i)
		}
	}

	return i, nil
}

// Issue mints an access and a refresh token for u.
func (i *Issuer) Issue(u user.User) (Pair, error) {
	now := i.now()

	access, err := i.sign(u, TypeAccess, now, i.accessTTL)
	if err != nil {
		return Pair{}, fmt.Errorf("signing access token: %w", err)
	}

	refresh, err := i.sign(u, TypeRefresh, now, i.refreshTTL)
	if err != nil {
		return Pair{}, fmt.Errorf("signing refresh token: %w", err)
	}

	return Pair{Access: access, Refresh: refresh}, nil
}

// IssueAccess mints only an access token for u, as the refresh endpoint answers.
func (i *Issuer) IssueAccess(u user.User) (string, error) {
	access, err := i.sign(u, TypeAccess, i.now(), i.accessTTL)
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}

	return access, nil
}

// Parse verifies raw and checks that it is a token of tokenType.
func (i *Issuer) Parse(raw, tokenType string) (jwt.Claims, Claims, error) {
	tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return jwt.Claims{}, Claims{}, fmt.Errorf("parsing token: %w", err)
	}

	var std jwt.Claims
	var claims Claims
	if err := tok.Claims(i.secret, &std, &claims); err != nil {
		return jwt.Claims{}, Claims{}, fmt.Errorf("verifying token: %w", err)
	}

	if err := std.ValidateWithLeeway(jwt.Expected{Issuer: i.issuer, Time: i.now()}, 0); err != nil {
		return jwt.Claims{}, Claims{}, fmt.Errorf("validating token: %w", err)
	}

	if claims.TokenType != tokenType {
		return jwt.Claims{}, Claims{}, fmt.Errorf("%w: %q", ErrWrongType, claims.TokenType)
	}

	return std, claims, nil
}

func (i *Issuer) sign(u user.User, tokenType string, now time.Time, ttl time.Duration) (string, error) {
	std := jwt.Claims{
		ID:       uuid.NewString(),
		Issuer:   i.issuer,
		Subject:  u.ID,
		IssuedAt: jwt.NewNumericDate(now),
		Expiry:   jwt.NewNumericDate(now.Add(ttl)),
	}
	claims := Claims{
		TokenType: tokenType,
		UserID:    u.ID,
		Email:     u.Email,
	}

	return jwt.Signed(i.signer).Claims(std).Claims(claims).Serialize()
}
