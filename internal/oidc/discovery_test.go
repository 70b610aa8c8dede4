package oidc_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshop/identity/internal/oidc"
	"github.com/openshop/identity/internal/oidc/oidctest"
	"github.com/openshop/identity/internal/serviceerr"
)

func TestDiscovery_Get(t *testing.T) {
	provider := oidctest.Start(t)

	tests := []struct {
		name      string
		key       string
		want      any
		assertErr assert.ErrorAssertionFunc
	}{
		{
			name:      "Authorization endpoint",
			key:       oidc.KeyAuthorizationEndpoint,
			want:      provider.Server.URL + "/o/oauth2/v2/auth",
			assertErr: assert.NoError,
		},
		{
			name:      "Token endpoint",
			key:       oidc.KeyTokenEndpoint,
			want:      provider.Server.URL + "/token",
			assertErr: assert.NoError,
		},
		{
			name: "Missing key",
			key:  "device_authorization_endpoint",
			assertErr: func(t assert.TestingT, err error, _ ...any) bool {
				return assert.ErrorIs(t, err, serviceerr.ErrKeyNotFound)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := oidc.NewDiscovery(provider.DiscoveryURL(), nil, time.Hour)

			got, err := d.Get(t.Context(), tt.key)
			if !tt.assertErr(t, err) || err != nil {
				return
			}

			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDiscovery_FetchError(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "Non 2xx response",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
		},
		{
			name: "Invalid JSON",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("<html>"))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			d := oidc.NewDiscovery(server.URL, server.Client(), time.Hour)

			_, err := d.Get(t.Context(), oidc.KeyTokenEndpoint)
			assert.ErrorIs(t, err, serviceerr.ErrFetchError)
		})
	}

	t.Run("Unreachable provider", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		server.Close()

		d := oidc.NewDiscovery(server.URL, nil, time.Hour)

		_, err := d.Configuration(t.Context())
		assert.ErrorIs(t, err, serviceerr.ErrFetchError)
	})
}

func TestDiscovery_CacheAndInvalidate(t *testing.T) {
	provider := oidctest.Start(t)
	d := oidc.NewDiscovery(provider.DiscoveryURL(), nil, time.Hour)

	conf, err := d.Configuration(t.Context())
	require.NoError(t, err)
	assert.Equal(t, provider.Issuer(), conf.Issuer)
	assert.Equal(t, []string{"RS256"}, conf.IDTokenSigningAlgValuesSupported)

	_, err = d.GetString(t.Context(), oidc.KeyJwksURI)
	require.NoError(t, err)
	assert.Equal(t, 1, provider.DiscoveryHits(), "document should be served from the cache")

	d.Invalidate()

	_, err = d.GetString(t.Context(), oidc.KeyJwksURI)
	require.NoError(t, err)
	assert.Equal(t, 2, provider.DiscoveryHits(), "document should be fetched again after invalidation")
}
