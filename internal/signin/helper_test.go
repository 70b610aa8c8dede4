package signin_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/stretchr/testify/require"

	otlpaudit "github.com/openkcm/common-sdk/pkg/otlp/audit"

	"github.com/openshop/identity/internal/authstate"
	"github.com/openshop/identity/internal/oidc"
	"github.com/openshop/identity/internal/oidc/oidctest"
	"github.com/openshop/identity/internal/signin"
	"github.com/openshop/identity/internal/token"
	"github.com/openshop/identity/internal/user"
)

const redirectURI = "https://shop.example.com/v1/google-identity/signin-callback/"

var signingSecret = []byte("0123456789abcdef0123456789abcdef")

func startAuditServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"success": true}`))
		} else {
			w.WriteHeader(http.StatusOK)
		}
	}))
	t.Cleanup(server.Close)

	return server
}

type managerOpts struct {
	pkce     bool
	stateTTL time.Duration
	opts     []signin.Option
}

func newManager(t *testing.T, provider *oidctest.Provider, states authstate.Repository, users user.Directory, mo managerOpts) (*signin.Manager, *token.Issuer) {
	t.Helper()

	discovery := oidc.NewDiscovery(provider.DiscoveryURL(), nil, time.Hour)
	exchanger := oidc.NewTokenClient(discovery, nil, oidc.ClientCredentials{
		ClientID:     oidctest.ClientID,
		ClientSecret: "client-secret",
		RedirectURI:  redirectURI,
	})
	validator := oidc.NewValidator(discovery, nil, oidctest.ClientID, time.Hour)

	issuer, err := token.NewIssuer(signingSecret, "identity", 5*time.Minute, 24*time.Hour)
	require.NoError(t, err)

	auditLogger, err := otlpaudit.NewLogger(&commoncfg.Audit{Endpoint: startAuditServer(t).URL})
	require.NoError(t, err)

	opts := append([]signin.Option{signin.WithAuditLogger(auditLogger)}, mo.opts...)

	m := signin.NewManager(signin.Settings{
		ClientID:    oidctest.ClientID,
		RedirectURI: redirectURI,
		PKCE:        mo.pkce,
		StateTTL:    mo.stateTTL,
	}, discovery, exchanger, validator, states, users, issuer, opts...)

	return m, issuer
}
