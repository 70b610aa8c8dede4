package business

import (
	"context"
	"fmt"
	"net/http"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/valkey-io/valkey-go"

	otlpaudit "github.com/openkcm/common-sdk/pkg/otlp/audit"
	slogctx "github.com/veqryn/slog-context"

	"github.com/openshop/identity/internal/authstate"
	"github.com/openshop/identity/internal/business/server"
	"github.com/openshop/identity/internal/config"
	"github.com/openshop/identity/internal/oidc"
	"github.com/openshop/identity/internal/signin"
	"github.com/openshop/identity/internal/token"

	authstatesql "github.com/openshop/identity/internal/authstate/sql"
	authstatevalkey "github.com/openshop/identity/internal/authstate/valkey"
	usersql "github.com/openshop/identity/internal/user/sql"
)

// Main starts the public sign-in API server.
func Main(ctx context.Context, cfg *config.Config) error {
	manager, closeFn, err := initSignIn(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialising the sign-in manager: %w", err)
	}
	defer closeFn()

	slogctx.Info(ctx, "Starting the sign-in API", "stateStore", cfg.Identity.StateStore, "pkce", cfg.Identity.PKCE)

	return server.StartHTTPServer(ctx, cfg, manager)
}

func initSignIn(ctx context.Context, cfg *config.Config) (_ *signin.Manager, closeFn func(), _ error) {
	if err := cfg.Identity.Validate(); err != nil {
		return nil, nil, fmt.Errorf("validating identity config: %w", err)
	}

	clientID, err := commoncfg.LoadValueFromSourceRef(cfg.Identity.ClientID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading client id: %w", err)
	}

	clientSecret, err := commoncfg.LoadValueFromSourceRef(cfg.Identity.ClientSecret)
	if err != nil {
		return nil, nil, fmt.Errorf("loading client secret: %w", err)
	}

	signingSecret, err := commoncfg.LoadValueFromSourceRef(cfg.Tokens.SigningSecret)
	if err != nil {
		return nil, nil, fmt.Errorf("loading token signing secret: %w", err)
	}

	issuer, err := token.NewIssuer(signingSecret, cfg.Tokens.Issuer, cfg.Tokens.AccessTTL, cfg.Tokens.RefreshTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("creating token issuer: %w", err)
	}

	db, err := dbPoolFromConfig(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	states, closeStates, err := stateRepoFromConfig(cfg, db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	auditLogger, err := otlpaudit.NewLogger(&cfg.Audit)
	if err != nil {
		closeStates()
		db.Close()
		return nil, nil, fmt.Errorf("creating audit logger: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.Identity.HTTPTimeout}
	discovery := oidc.NewDiscovery(cfg.Identity.DiscoveryURL, httpClient, cfg.Identity.DiscoveryCacheTTL)
	exchanger := oidc.NewTokenClient(discovery, httpClient, oidc.ClientCredentials{
		ClientID:     string(clientID),
		ClientSecret: string(clientSecret),
		RedirectURI:  cfg.Identity.RedirectURI,
	})
	validator := oidc.NewValidator(discovery, httpClient, string(clientID), cfg.Identity.KeysCacheTTL)

	manager := signin.NewManager(
		signin.Settings{
			ClientID:    string(clientID),
			RedirectURI: cfg.Identity.RedirectURI,
			Scopes:      cfg.Identity.Scopes,
			PKCE:        cfg.Identity.PKCE,
			StateTTL:    cfg.Identity.StateTTL,
		},
		discovery,
		exchanger,
		validator,
		states,
		usersql.NewRepository(db),
		issuer,
		signin.WithAuditLogger(auditLogger),
	)

	return manager, func() {
		closeStates()
		db.Close()
	}, nil
}

func dbPoolFromConfig(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	connStr, err := config.MakeConnStr(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("making dsn from config: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing pgxpool config: %w", err)
	}
	poolCfg.ConnConfig.Tracer = otelpgx.NewTracer()

	db, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("initialising pgxpool connection: %w", err)
	}

	return db, nil
}

// stateRepoFromConfig picks the AuthState backend. The Postgres store shares
// the user directory pool, the Valkey store owns its client.
func stateRepoFromConfig(cfg *config.Config, db *pgxpool.Pool) (authstate.Repository, func(), error) {
	switch cfg.Identity.StateStore {
	case config.StateStoreValkey:
		client, err := valkeyClientFromConfig(cfg)
		if err != nil {
			return nil, nil, err
		}

		return authstatevalkey.NewRepository(client, cfg.ValKey.Prefix, cfg.Identity.StateTTL), client.Close, nil
	default:
		return authstatesql.NewRepository(db), func() {}, nil
	}
}

func valkeyClientFromConfig(cfg *config.Config) (valkey.Client, error) {
	valkeyHost, err := commoncfg.LoadValueFromSourceRef(cfg.ValKey.Host)
	if err != nil {
		return nil, fmt.Errorf("loading valkey host: %w", err)
	}

	valkeyUsername, err := commoncfg.LoadValueFromSourceRef(cfg.ValKey.User)
	if err != nil {
		return nil, fmt.Errorf("loading valkey username: %w", err)
	}

	valkeyPassword, err := commoncfg.LoadValueFromSourceRef(cfg.ValKey.Password)
	if err != nil {
		return nil, fmt.Errorf("loading valkey password: %w", err)
	}

	valkeyOpts := valkey.ClientOption{
		InitAddress: []string{string(valkeyHost)},
		Username:    string(valkeyUsername),
		Password:    string(valkeyPassword),
	}

	if cfg.ValKey.SecretRef.Type == commoncfg.MTLSSecretType {
		tlsConfig, err := commoncfg.LoadMTLSConfig(&cfg.ValKey.SecretRef.MTLS)
		if err != nil {
			return nil, fmt.Errorf("loading valkey mTLS config from secret ref: %w", err)
		}

		valkeyOpts.TLSConfig = tlsConfig
	}

	client, err := valkey.NewClient(valkeyOpts)
	if err != nil {
		return nil, fmt.Errorf("creating a new valkey client: %w", err)
	}

	return client, nil
}
