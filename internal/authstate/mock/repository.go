package authstatemock

import (
	"context"
	"sync"
	"time"

	"github.com/openshop/identity/internal/authstate"
	"github.com/openshop/identity/internal/serviceerr"
)

type RepositoryOption func(*Repository)

type Repository struct {
	mu     sync.Mutex
	states map[string]authstate.State

	createErr, getErr, deleteErr, sweepErr error
}

func WithState(state authstate.State) RepositoryOption {
	return func(r *Repository) { r.states[state.State] = state }
}
func WithCreateError(err error) RepositoryOption {
	return func(r *Repository) { r.createErr = err }
}
func WithGetError(err error) RepositoryOption {
	return func(r *Repository) { r.getErr = err }
}
func WithDeleteError(err error) RepositoryOption {
	return func(r *Repository) { r.deleteErr = err }
}
func WithSweepError(err error) RepositoryOption {
	return func(r *Repository) { r.sweepErr = err }
}

var _ = authstate.Repository(&Repository{})

func NewInMemRepository(opts ...RepositoryOption) *Repository {
	r := &Repository{
		states: make(map[string]authstate.State),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Repository) Create(_ context.Context, state authstate.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.states[state.State]; ok {
		return serviceerr.ErrConflict
	}
	r.states[state.State] = state
	return nil
}

func (r *Repository) Get(_ context.Context, stateValue string) (authstate.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.getErr != nil {
		return authstate.State{}, r.getErr
	}
	if state, ok := r.states[stateValue]; ok {
		return state, nil
	}
	return authstate.State{}, serviceerr.ErrNotFound
}

func (r *Repository) Delete(_ context.Context, stateValue string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deleteErr != nil {
		return r.deleteErr
	}
	if _, ok := r.states[stateValue]; !ok {
		return serviceerr.ErrNotFound
	}
	delete(r.states, stateValue)
	return nil
}

func (r *Repository) DeleteCreatedBefore(_ context.Context, t time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sweepErr != nil {
		return 0, r.sweepErr
	}
	var n int64
	for k, s := range r.states {
		if s.CreatedAt.Before(t) {
			delete(r.states, k)
			n++
		}
	}
	return n, nil
}

// Len reports the number of stored states.
func (r *Repository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}
