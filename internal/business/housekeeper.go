package business

import (
	"context"
	"fmt"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openshop/identity/internal/config"
	"github.com/openshop/identity/internal/signin"
)

// StateSweeper removes abandoned sign-in attempts.
type StateSweeper interface {
	SweepStaleStates(ctx context.Context, olderThan time.Duration) (int64, error)
}

// HousekeeperMain starts the house keeping jobs. It opens only the AuthState
// store; provider and signing secrets are not loaded.
func HousekeeperMain(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Identity.ValidateStateStore(); err != nil {
		return fmt.Errorf("validating identity config: %w", err)
	}

	db, err := dbPoolFromConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialising the auth state store: %w", err)
	}
	defer db.Close()

	states, closeStates, err := stateRepoFromConfig(cfg, db)
	if err != nil {
		return fmt.Errorf("initialising the auth state store: %w", err)
	}
	defer closeStates()

	return runHousekeeper(ctx, signin.NewSweeper(states), cfg.Housekeeper.TriggerInterval, cfg.Identity.StateTTL)
}

func runHousekeeper(ctx context.Context, sweeper StateSweeper, interval, stateTTL time.Duration) error {
	c := time.Tick(interval)
	for {
		removed, err := sweeper.SweepStaleStates(ctx, stateTTL)
		if err != nil {
			slogctx.Error(ctx, "Error during auth state housekeeping", "error", err)
		} else if removed > 0 {
			slogctx.Info(ctx, "Removed stale auth states", "count", removed)
		}

		select {
		case <-c:
			continue
		case <-ctx.Done():
			return nil
		}
	}
}
