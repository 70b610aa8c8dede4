package cmdutils

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/openkcm/common-sdk/pkg/health"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openshop/identity/internal/config"
	"github.com/openshop/identity/internal/oidc/oidctest"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600))

	return dir
}

func TestConfigPaths(t *testing.T) {
	assert.Equal(t, []string{"/etc/identity", "$HOME/.identity", "."}, configPaths)
}

func TestLoadConfig(t *testing.T) {
	t.Run("Fills the service defaults", func(t *testing.T) {
		dir := writeConfig(t, `
application:
  name: identity
identity:
  redirectURI: https://shop.example.com/v1/google-identity/signin-callback/
  stateStore: valkey
housekeeper:
  triggerInterval: 1m
`)

		cfg, err := loadConfig("{}", dir)
		require.NoError(t, err)

		assert.Equal(t, "identity", cfg.Application.Name)
		assert.Equal(t, config.StateStoreValkey, cfg.Identity.StateStore)
		assert.Equal(t, 15*time.Minute, cfg.Identity.StateTTL)
		assert.Equal(t, "https://accounts.google.com/.well-known/openid-configuration", cfg.Identity.DiscoveryURL)
		assert.Equal(t, time.Hour, cfg.Identity.KeysCacheTTL)
		assert.Equal(t, 10*time.Second, cfg.Identity.HTTPTimeout)
		assert.Equal(t, "identity", cfg.Tokens.Issuer)
		assert.Equal(t, 5*time.Minute, cfg.Tokens.AccessTTL)
		assert.Equal(t, 24*time.Hour, cfg.Tokens.RefreshTTL)
		assert.Equal(t, time.Minute, cfg.Housekeeper.TriggerInterval)
		assert.Equal(t, "identity", cfg.ValKey.Prefix)
		assert.Equal(t, "embedded", cfg.Migrate.Source)
		assert.Equal(t, ":8080", cfg.HTTP.Address)
		assert.NoError(t, cfg.Identity.Validate())
	})

	t.Run("Example config is valid", func(t *testing.T) {
		cfg, err := loadConfig("{}", filepath.Join("..", ".."))
		require.NoError(t, err)
		assert.NoError(t, cfg.Identity.Validate())
	})

	t.Run("Unknown key", func(t *testing.T) {
		dir := writeConfig(t, `
identity:
  stateTimeToLive: 1m
`)

		_, err := loadConfig("{}", dir)
		assert.ErrorContains(t, err, "loading configuration")
	})

	t.Run("No config file", func(t *testing.T) {
		_, err := loadConfig("{}", t.TempDir())
		assert.ErrorContains(t, err, "loading configuration")
	})
}

func TestCobraCommand(t *testing.T) {
	dir := writeConfig(t, `
identity:
  redirectURI: https://shop.example.com/v1/google-identity/signin-callback/
`)
	original := configPaths
	configPaths = []string{dir}
	t.Cleanup(func() { configPaths = original })

	noop := func(context.Context, *config.Config) error { return nil }

	tests := []struct {
		name      string
		run       Runner
		assertErr assert.ErrorAssertionFunc
	}{
		{
			name: "Passes the loaded config to the entry point",
			run: func(ctx context.Context, fn MainFunc, cfg *config.Config) error {
				if cfg.Identity.RedirectURI == "" {
					return errors.New("config not loaded")
				}
				return fn(ctx, cfg)
			},
			assertErr: assert.NoError,
		},
		{
			name: "Names the failing subcommand",
			run: func(context.Context, MainFunc, *config.Config) error {
				return errors.New("db down")
			},
			assertErr: func(t assert.TestingT, err error, _ ...any) bool {
				return assert.EqualError(t, err, "running housekeeper: db down")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := CobraCommand("housekeeper", "short", "long", "{}", tt.run, noop)
			cmd.SetArgs([]string{})
			cmd.SilenceUsage = true

			tt.assertErr(t, cmd.ExecuteContext(t.Context()))
		})
	}
}

func TestReadinessOptions(t *testing.T) {
	_, err := readinessOptions(&config.Config{}, true)
	assert.ErrorContains(t, err, "making connection string from config")
}

func TestProviderCheck(t *testing.T) {
	provider := oidctest.Start(t)
	identity := config.Identity{DiscoveryURL: provider.DiscoveryURL(), DiscoveryCacheTTL: time.Hour}

	check := providerCheck(identity)
	assert.Equal(t, providerCheckName, check.Name)
	require.NoError(t, check.Check(t.Context()))

	down := oidctest.Start(t)
	down.Server.Close()

	err := providerCheck(config.Identity{DiscoveryURL: down.DiscoveryURL(), DiscoveryCacheTTL: time.Hour}).Check(t.Context())
	assert.ErrorContains(t, err, "fetching the discovery document")
}

func TestStatusListener(t *testing.T) {
	var buf bytes.Buffer
	ctx := slogctx.NewCtx(t.Context(), slog.New(slog.NewJSONHandler(&buf, nil)))

	statusListener(ctx, health.State{
		Status: health.StatusDown,
		CheckState: map[string]health.CheckState{
			providerCheckName: {Status: health.StatusDown, Result: errors.New("connection refused")},
			"pgx":             {Status: health.StatusUp},
		},
	})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))

	assert.Equal(t, "readiness status changed", line["msg"])
	assert.Equal(t, string(health.StatusDown), line["status"])
	assert.Equal(t, map[string]any{"status": string(health.StatusDown), "error": "connection refused"}, line[providerCheckName])
	assert.Equal(t, string(health.StatusUp), line["pgx"].(map[string]any)["status"])
}
