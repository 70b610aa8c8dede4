package authstatesql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openshop/identity/internal/authstate"
	"github.com/openshop/identity/internal/serviceerr"
)

type Repository struct {
	db *pgxpool.Pool
}

var _ = authstate.Repository(&Repository{})

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) Create(ctx context.Context, state authstate.State) error {
	if _, err := r.db.Exec(ctx, `INSERT INTO auth_state (id, state, nonce, code_verifier, created_at)
VALUES ($1, $2, $3, $4, $5);`,
		state.ID, state.State, state.Nonce, state.CodeVerifier, state.CreatedAt,
	); err != nil {
		if err, ok := handlePgError(err); ok {
			return err
		}

		return fmt.Errorf("inserting into auth_state: %w", err)
	}

	return nil
}

func (r *Repository) Get(ctx context.Context, stateValue string) (state authstate.State, _ error) {
	if err := r.db.QueryRow(ctx, `SELECT id, state, nonce, code_verifier, created_at
FROM auth_state
WHERE state = $1;`,
		stateValue,
	).
		Scan(&state.ID, &state.State, &state.Nonce, &state.CodeVerifier, &state.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authstate.State{}, serviceerr.ErrNotFound
		}

		return authstate.State{}, fmt.Errorf("selecting from auth_state: %w", err)
	}

	return state, nil
}

func (r *Repository) Delete(ctx context.Context, stateValue string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM auth_state WHERE state = $1;`, stateValue)
	if err != nil {
		return fmt.Errorf("deleting from auth_state: %w", err)
	}

	// A concurrent callback consumed the state first.
	if tag.RowsAffected() == 0 {
		return serviceerr.ErrNotFound
	}

	return nil
}

func (r *Repository) DeleteCreatedBefore(ctx context.Context, t time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM auth_state WHERE created_at < $1;`, t)
	if err != nil {
		return 0, fmt.Errorf("deleting stale rows from auth_state: %w", err)
	}

	return tag.RowsAffected(), nil
}
