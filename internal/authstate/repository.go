package authstate

import (
	"context"
	"time"
)

// Repository persists states. Implementations return serviceerr.ErrNotFound
// from Get and Delete when no state matches.
type Repository interface {
	Create(ctx context.Context, state State) error
	Get(ctx context.Context, state string) (State, error)
	// Delete removes the state atomically; only one concurrent caller succeeds.
	Delete(ctx context.Context, state string) error
	// DeleteCreatedBefore removes abandoned states and returns how many were removed.
	DeleteCreatedBefore(ctx context.Context, t time.Time) (int64, error)
}
