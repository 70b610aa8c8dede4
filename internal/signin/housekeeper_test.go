package signin_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshop/identity/internal/authstate"
	authstatemock "github.com/openshop/identity/internal/authstate/mock"
	"github.com/openshop/identity/internal/serviceerr"
	"github.com/openshop/identity/internal/signin"
)

func TestSweeper_SweepStaleStates(t *testing.T) {
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)

	stale := authstate.State{ID: "stale", State: "stale-state", Nonce: "n1", CreatedAt: now.Add(-time.Hour)}
	fresh := authstate.State{ID: "fresh", State: "fresh-state", Nonce: "n2", CreatedAt: now.Add(-time.Minute)}

	tests := []struct {
		name      string
		states    *authstatemock.Repository
		olderThan time.Duration
		wantCount int64
		wantLeft  int
		assertErr assert.ErrorAssertionFunc
	}{
		{
			name:      "Deletes only stale states",
			states:    authstatemock.NewInMemRepository(authstatemock.WithState(stale), authstatemock.WithState(fresh)),
			olderThan: 15 * time.Minute,
			wantCount: 1,
			wantLeft:  1,
			assertErr: assert.NoError,
		},
		{
			name:      "Nothing to delete",
			states:    authstatemock.NewInMemRepository(authstatemock.WithState(fresh)),
			olderThan: 15 * time.Minute,
			wantLeft:  1,
			assertErr: assert.NoError,
		},
		{
			name:      "Non positive age",
			states:    authstatemock.NewInMemRepository(authstatemock.WithState(stale)),
			olderThan: 0,
			wantLeft:  1,
			assertErr: errIs(serviceerr.ErrInvalidRequest),
		},
		{
			name:      "Storage error",
			states:    authstatemock.NewInMemRepository(authstatemock.WithSweepError(errors.New("db down"))),
			olderThan: time.Minute,
			assertErr: errIs(serviceerr.ErrStorageError),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sweeper := signin.NewSweeper(tt.states, signin.WithSweeperClock(func() time.Time { return now }))

			n, err := sweeper.SweepStaleStates(t.Context(), tt.olderThan)
			if !tt.assertErr(t, err) {
				return
			}

			require.Equal(t, tt.wantCount, n)
			assert.Equal(t, tt.wantLeft, tt.states.Len())
		})
	}
}
