package authstatevalkey

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/openshop/identity/internal/authstate"
	"github.com/openshop/identity/internal/serviceerr"
)

type ObjectType string

const objectTypeState ObjectType = "authState"

var (
	ErrGetState    = errors.New("getting auth state from store")
	ErrStoreState  = errors.New("setting auth state into storage")
	ErrDeleteState = errors.New("deleting auth state from store")
)

// Repository keeps auth states as JSON values that expire after ttl.
type Repository struct {
	store *store
	ttl   time.Duration
}

var _ = authstate.Repository(&Repository{})

func NewRepository(valkeyClient valkey.Client, prefix string, ttl time.Duration) *Repository {
	return &Repository{
		store: newStore(valkeyClient, prefix),
		ttl:   ttl,
	}
}

func (r *Repository) Create(ctx context.Context, state authstate.State) error {
	if err := r.store.SetNX(ctx, objectTypeState, state.State, state, r.ttl); err != nil {
		if errors.Is(err, serviceerr.ErrConflict) {
			return serviceerr.ErrConflict
		}

		return errors.Join(ErrStoreState, err)
	}

	return nil
}

func (r *Repository) Get(ctx context.Context, stateValue string) (authstate.State, error) {
	var state authstate.State
	if err := r.store.Get(ctx, objectTypeState, stateValue, &state); err != nil {
		if errors.Is(err, serviceerr.ErrNotFound) {
			return authstate.State{}, serviceerr.ErrNotFound
		}

		return authstate.State{}, errors.Join(ErrGetState, err)
	}

	return state, nil
}

func (r *Repository) Delete(ctx context.Context, stateValue string) error {
	n, err := r.store.Destroy(ctx, objectTypeState, stateValue)
	if err != nil {
		return errors.Join(ErrDeleteState, err)
	}

	if n == 0 {
		return serviceerr.ErrNotFound
	}

	return nil
}

// DeleteCreatedBefore removes states older than t that have not expired yet,
// which only happens when the sweep cutoff is shorter than the key TTL.
func (r *Repository) DeleteCreatedBefore(ctx context.Context, t time.Time) (int64, error) {
	var deleted int64
	err := scanObjects(ctx, r.store, objectTypeState, func(key string, state authstate.State) error {
		if !state.CreatedAt.Before(t) {
			return nil
		}

		n, err := r.store.destroyKey(ctx, key)
		if err != nil {
			return err
		}
		deleted += n

		return nil
	})
	if err != nil {
		return deleted, fmt.Errorf("sweeping auth states: %w", err)
	}

	return deleted, nil
}
