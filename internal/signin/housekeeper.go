package signin

import (
	"context"
	"errors"
	"fmt"
	"time"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openshop/identity/internal/authstate"
	"github.com/openshop/identity/internal/serviceerr"
)

// Sweeper removes abandoned sign-in attempts. It needs only the AuthState
// store, so the housekeeper runs without provider credentials.
type Sweeper struct {
	states authstate.Repository
	now    func() time.Time
}

type SweeperOption func(*Sweeper)

func WithSweeperClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) { s.now = now }
}

func NewSweeper(states authstate.Repository, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{states: states, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// SweepStaleStates deletes attempts that were started more than olderThan ago
// and never completed.
func (s *Sweeper) SweepStaleStates(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("%w: sweep age must be positive", serviceerr.ErrInvalidRequest)
	}

	n, err := s.states.DeleteCreatedBefore(ctx, s.now().Add(-olderThan))
	if err != nil {
		return n, errors.Join(serviceerr.ErrStorageError, fmt.Errorf("deleting stale auth states: %w", err))
	}

	slogctx.Debug(ctx, "Swept auth states", "count", n, "olderThan", olderThan)

	return n, nil
}
