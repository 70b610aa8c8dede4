package business

import (
	"testing"
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshop/identity/internal/config"
	"github.com/openshop/identity/internal/token"

	authstatesql "github.com/openshop/identity/internal/authstate/sql"
)

var missingFile = commoncfg.SourceRef{Source: "file", File: commoncfg.CredentialFile{Path: "/nonexistent/file"}}

func embedded(v string) commoncfg.SourceRef {
	return commoncfg.SourceRef{Source: "embedded", Value: v}
}

func validConfig() *config.Config {
	return &config.Config{
		Database: config.Database{
			Host:     embedded("localhost"),
			Port:     "5432",
			Name:     "testdb",
			User:     embedded("user"),
			Password: embedded("pass"),
		},
		Identity: config.Identity{
			ClientID:     embedded("client-id"),
			ClientSecret: embedded("client-secret"),
			RedirectURI:  "https://shop.example.com/v1/google-identity/signin-callback/",
			StateStore:   config.StateStorePostgres,
			StateTTL:     15 * time.Minute,
		},
		Tokens: config.Tokens{
			Issuer:        "identity",
			SigningSecret: embedded("0123456789abcdef0123456789abcdef"),
		},
	}
}

func TestInitSignIn_Errors(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(cfg *config.Config)
		assertErr assert.ErrorAssertionFunc
	}{
		{
			name:   "Missing redirect URI",
			modify: func(cfg *config.Config) { cfg.Identity.RedirectURI = "" },
			assertErr: func(t assert.TestingT, err error, _ ...any) bool {
				return assert.ErrorIs(t, err, config.ErrMissingRedirectURI)
			},
		},
		{
			name:   "Unknown state store",
			modify: func(cfg *config.Config) { cfg.Identity.StateStore = "memcached" },
			assertErr: func(t assert.TestingT, err error, _ ...any) bool {
				return assert.ErrorIs(t, err, config.ErrUnknownStateStore)
			},
		},
		{
			name:   "Zero state TTL",
			modify: func(cfg *config.Config) { cfg.Identity.StateTTL = 0 },
			assertErr: func(t assert.TestingT, err error, _ ...any) bool {
				return assert.ErrorIs(t, err, config.ErrInvalidStateTTL)
			},
		},
		{
			name:   "Client id ref",
			modify: func(cfg *config.Config) { cfg.Identity.ClientID = missingFile },
			assertErr: func(t assert.TestingT, err error, _ ...any) bool {
				return assert.ErrorContains(t, err, "loading client id")
			},
		},
		{
			name:   "Client secret ref",
			modify: func(cfg *config.Config) { cfg.Identity.ClientSecret = missingFile },
			assertErr: func(t assert.TestingT, err error, _ ...any) bool {
				return assert.ErrorContains(t, err, "loading client secret")
			},
		},
		{
			name:   "Signing secret ref",
			modify: func(cfg *config.Config) { cfg.Tokens.SigningSecret = missingFile },
			assertErr: func(t assert.TestingT, err error, _ ...any) bool {
				return assert.ErrorContains(t, err, "loading token signing secret")
			},
		},
		{
			name:   "Short signing secret",
			modify: func(cfg *config.Config) { cfg.Tokens.SigningSecret = embedded("short") },
			assertErr: func(t assert.TestingT, err error, _ ...any) bool {
				return assert.ErrorIs(t, err, token.ErrSecretTooShort)
			},
		},
		{
			name:   "Database host ref",
			modify: func(cfg *config.Config) { cfg.Database.Host = missingFile },
			assertErr: func(t assert.TestingT, err error, _ ...any) bool {
				return assert.ErrorContains(t, err, "making dsn from config")
			},
		},
		{
			name: "Valkey host ref",
			modify: func(cfg *config.Config) {
				cfg.Identity.StateStore = config.StateStoreValkey
				cfg.ValKey.Host = missingFile
			},
			assertErr: func(t assert.TestingT, err error, _ ...any) bool {
				return assert.ErrorContains(t, err, "loading valkey host")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)

			manager, closeFn, err := initSignIn(t.Context(), cfg)
			tt.assertErr(t, err)
			assert.Nil(t, manager)
			assert.Nil(t, closeFn)
		})
	}
}

func TestStateRepoFromConfig_Postgres(t *testing.T) {
	repo, closeFn, err := stateRepoFromConfig(validConfig(), nil)
	require.NoError(t, err)
	require.NotNil(t, closeFn)
	defer closeFn()

	assert.IsType(t, &authstatesql.Repository{}, repo)
}

func TestValkeyClientFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		valkey  config.ValKey
		wantErr string
	}{
		{
			name:    "Invalid host ref",
			valkey:  config.ValKey{Host: missingFile, User: embedded("user"), Password: embedded("pass")},
			wantErr: "loading valkey host",
		},
		{
			name:    "Invalid user ref",
			valkey:  config.ValKey{Host: embedded("localhost:6379"), User: missingFile, Password: embedded("pass")},
			wantErr: "loading valkey username",
		},
		{
			name:    "Invalid password ref",
			valkey:  config.ValKey{Host: embedded("localhost:6379"), User: embedded("user"), Password: missingFile},
			wantErr: "loading valkey password",
		},
		{
			name: "Invalid mTLS secret ref",
			valkey: config.ValKey{
				Host:     embedded("localhost:6379"),
				User:     embedded("user"),
				Password: embedded("pass"),
				SecretRef: commoncfg.SecretRef{
					Type: commoncfg.MTLSSecretType,
					MTLS: commoncfg.MTLS{
						Cert:    missingFile,
						CertKey: missingFile,
					},
				},
			},
			wantErr: "loading valkey mTLS config from secret ref",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := valkeyClientFromConfig(&config.Config{ValKey: tt.valkey})
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestMain_InvalidConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Identity.RedirectURI = ""

	err := Main(t.Context(), cfg)
	assert.ErrorContains(t, err, "initialising the sign-in manager")
}
