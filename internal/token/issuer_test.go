package token_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshop/identity/internal/token"
	"github.com/openshop/identity/internal/user"
)

var secret = []byte("0123456789abcdef0123456789abcdef")

func TestNewIssuer(t *testing.T) {
	tests := []struct {
		name      string
		secret    []byte
		assertErr assert.ErrorAssertionFunc
	}{
		{
			name:      "Valid secret",
			secret:    secret,
			assertErr: assert.NoError,
		},
		{
			name:   "Short secret",
			secret: []byte("short"),
			assertErr: func(t assert.TestingT, err error, _ ...any) bool {
				return assert.ErrorIs(t, err, token.ErrSecretTooShort)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := token.NewIssuer(tt.secret, "identity", time.Minute, time.Hour)
			tt.assertErr(t, err)
		})
	}
}

func TestIssuer_Issue(t *testing.T) {
	u := user.User{ID: "user-id", Email: "test@example.com"}

	issuer, err := token.NewIssuer(secret, "identity", 5*time.Minute, 24*time.Hour)
	require.NoError(t, err)

	pair, err := issuer.Issue(u)
	require.NoError(t, err)
	require.NotEmpty(t, pair.Access)
	require.NotEmpty(t, pair.Refresh)
	assert.NotEqual(t, pair.Access, pair.Refresh)

	std, claims, err := issuer.Parse(pair.Access, token.TypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "user-id", std.Subject)
	assert.Equal(t, "identity", std.Issuer)
	assert.NotEmpty(t, std.ID)
	assert.Equal(t, "user-id", claims.UserID)
	assert.Equal(t, "test@example.com", claims.Email)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), std.Expiry.Time(), 5*time.Second)

	std, _, err = issuer.Parse(pair.Refresh, token.TypeRefresh)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), std.Expiry.Time(), 5*time.Second)

	_, _, err = issuer.Parse(pair.Refresh, token.TypeAccess)
	assert.ErrorIs(t, err, token.ErrWrongType, "a refresh token must not pass as an access token")
}

func TestIssuer_Parse(t *testing.T) {
	u := user.User{ID: "user-id"}

	issuer, err := token.NewIssuer(secret, "identity", time.Minute, time.Hour)
	require.NoError(t, err)
	pair, err := issuer.Issue(u)
	require.NoError(t, err)

	t.Run("Expired", func(t *testing.T) {
		later, err := token.NewIssuer(secret, "identity", time.Minute, time.Hour,
			token.WithClock(func() time.Time { return time.Now().Add(2 * time.Minute) }))
		require.NoError(t, err)

		_, _, err = later.Parse(pair.Access, token.TypeAccess)
		assert.Error(t, err)
	})

	t.Run("Other secret", func(t *testing.T) {
		other, err := token.NewIssuer([]byte("fedcba9876543210fedcba9876543210"), "identity", time.Minute, time.Hour)
		require.NoError(t, err)

		_, _, err = other.Parse(pair.Access, token.TypeAccess)
		assert.Error(t, err)
	})

	t.Run("Other issuer", func(t *testing.T) {
		other, err := token.NewIssuer(secret, "someone-else", time.Minute, time.Hour)
		require.NoError(t, err)

		_, _, err = other.Parse(pair.Access, token.TypeAccess)
		assert.Error(t, err)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, _, err := issuer.Parse("not-a-token", token.TypeAccess)
		assert.Error(t, err)
	})
}

func TestIssuer_IssueAccess(t *testing.T) {
	issuer, err := token.NewIssuer(secret, "identity", 5*time.Minute, 24*time.Hour)
	require.NoError(t, err)

	access, err := issuer.IssueAccess(user.User{ID: "user-id", Email: "test@example.com"})
	require.NoError(t, err)

	std, claims, err := issuer.Parse(access, token.TypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "user-id", claims.UserID)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), std.Expiry.Time(), 5*time.Second)

	_, _, err = issuer.Parse(access, token.TypeRefresh)
	assert.ErrorIs(t, err, token.ErrWrongType)
}
