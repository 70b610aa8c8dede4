// Package cmdutils wires the identity subcommands: configuration loading,
// logging, telemetry and the status server around a business entry point.
package cmdutils

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"syscall"
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/openkcm/common-sdk/pkg/health"
	"github.com/openkcm/common-sdk/pkg/logger"
	"github.com/openkcm/common-sdk/pkg/otlp"
	"github.com/openkcm/common-sdk/pkg/status"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openshop/identity/internal/config"
	"github.com/openshop/identity/internal/oidc"
)

const (
	healthStatusTimeout = 5 * time.Second

	providerCheckName = "openid-provider"
)

// configPaths are searched in order for config.yaml.
var configPaths = []string{"/etc/identity", "$HOME/.identity", "."}

// MainFunc is the business entry point of a subcommand.
type MainFunc func(ctx context.Context, cfg *config.Config) error

// Runner prepares the process for fn and runs it.
type Runner func(ctx context.Context, fn MainFunc, cfg *config.Config) error

// runMode selects what is started around the business entry point.
type runMode struct {
	telemetry     bool
	statusServer  bool
	providerCheck bool
}

// CobraCommand builds a subcommand that loads the configuration and hands it to run.
func CobraCommand(use, short, long, buildInfo string, run Runner, fn MainFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Long:  long,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(buildInfo, configPaths...)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if err := run(cmd.Context(), fn, cfg); err != nil {
				return fmt.Errorf("running %s: %w", use, err)
			}

			return nil
		},
	}
}

// RunAsService runs the public API with telemetry and a status server whose
// readiness also covers the OpenID provider.
func RunAsService(ctx context.Context, fn MainFunc, cfg *config.Config) error {
	return run(ctx, runMode{telemetry: true, statusServer: true, providerCheck: true}, fn, cfg)
}

// RunAsWorker runs a background loop with telemetry and a status server.
func RunAsWorker(ctx context.Context, fn MainFunc, cfg *config.Config) error {
	return run(ctx, runMode{telemetry: true, statusServer: true}, fn, cfg)
}

// RunAsJob runs fn with logging only.
func RunAsJob(ctx context.Context, fn MainFunc, cfg *config.Config) error {
	return run(ctx, runMode{}, fn, cfg)
}

func run(ctx context.Context, mode runMode, fn MainFunc, cfg *config.Config) error {
	err := logger.InitAsDefault(cfg.Logger, cfg.Application)
	if err != nil {
		return oops.In("main").
			Wrapf(err, "Failed to initialise the logger")
	}
	slogctx.Debug(ctx, "Starting the application", slog.Any("config", cfg))

	if mode.telemetry {
		err = otlp.Init(ctx, &cfg.Application, &cfg.Telemetry, &cfg.Logger)
		if err != nil {
			return oops.In("main").Wrapf(err, "Failed to load the telemetry")
		}
	}

	if mode.statusServer {
		go func() {
			err := startStatusServer(ctx, cfg, mode.providerCheck)
			if err != nil {
				slogctx.Error(ctx, "Failure on the status server", "error", err)
				_ = syscall.Kill(syscall.Getpid(), syscall.SIGTERM)
			}
		}()
	}

	err = fn(ctx, cfg)
	if err != nil {
		return oops.In("main").Wrapf(err, "Failed to start the main business application")
	}

	return nil
}

func loadConfig(buildInfo string, paths ...string) (*config.Config, error) {
	cfg := &config.Config{}

	err := commoncfg.LoadConfig(cfg, map[string]any{}, paths...)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	err = commoncfg.UpdateConfigVersion(&cfg.BaseConfig, buildInfo)
	if err != nil {
		return nil, fmt.Errorf("updating the version configuration: %w", err)
	}

	return cfg, nil
}

func startStatusServer(ctx context.Context, cfg *config.Config, withProviderCheck bool) error {
	readiness, err := readinessOptions(cfg, withProviderCheck)
	if err != nil {
		return err
	}

	liveness := status.WithLiveness(
		health.NewHandler(
			health.NewChecker(health.WithDisabledAutostart()),
		),
	)

	err = status.Start(ctx, &cfg.BaseConfig,
		liveness,
		status.WithReadiness(health.NewHandler(health.NewChecker(readiness...))),
	)
	if err != nil {
		return fmt.Errorf("starting status server: %w", err)
	}

	return nil
}

// readinessOptions checks the database, and the OpenID provider when the
// process serves sign-ins.
func readinessOptions(cfg *config.Config, withProviderCheck bool) ([]health.Option, error) {
	connStr, err := config.MakeConnStr(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("making connection string from config: %w", err)
	}

	opts := []health.Option{
		health.WithDisabledAutostart(),
		health.WithTimeout(healthStatusTimeout),
		health.WithDatabaseChecker("pgx", connStr),
		health.WithStatusListener(statusListener),
	}
	if withProviderCheck {
		opts = append(opts, health.WithCheck(providerCheck(cfg.Identity)))
	}

	return opts, nil
}

// providerCheck reports the provider as ready while its discovery document
// can be fetched. A cached document counts.
func providerCheck(identity config.Identity) health.Check {
	discovery := oidc.NewDiscovery(identity.DiscoveryURL, &http.Client{Timeout: healthStatusTimeout}, identity.DiscoveryCacheTTL)

	return health.Check{
		Name: providerCheckName,
		Check: func(ctx context.Context) error {
			if _, err := discovery.Configuration(ctx); err != nil {
				return fmt.Errorf("fetching the discovery document: %w", err)
			}
			return nil
		},
	}
}

func statusListener(ctx context.Context, state health.State) {
	attrs := make([]any, 0, 2+2*len(state.CheckState))
	attrs = append(attrs, "status", state.Status)
	for name, check := range state.CheckState {
		attrs = append(attrs, slog.Group(name, "status", check.Status, "error", check.Result))
	}

	slogctx.Info(ctx, "readiness status changed", attrs...)
}
