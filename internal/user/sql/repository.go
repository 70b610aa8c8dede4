package usersql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openshop/identity/internal/serviceerr"
	"github.com/openshop/identity/internal/user"
)

type Repository struct {
	db *pgxpool.Pool
}

var _ = user.Directory(&Repository{})

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{
		db: db,
	}
}

const selectUser = `SELECT id, subject, email, given_name, family_name, picture_url, created_at
FROM users
`

func (r *Repository) FindBySubject(ctx context.Context, subject string) (user.User, error) {
	return r.findUser(ctx, selectUser+`WHERE subject = $1;`, subject)
}

func (r *Repository) FindByID(ctx context.Context, id string) (user.User, error) {
	if err := uuid.Validate(id); err != nil {
		return user.User{}, serviceerr.ErrNotFound
	}

	return r.findUser(ctx, selectUser+`WHERE id = $1;`, id)
}

func (r *Repository) findUser(ctx context.Context, query string, arg string) (u user.User, _ error) {
	if err := r.db.QueryRow(ctx, query, arg).
		Scan(&u.ID, &u.Subject, &u.Email, &u.GivenName, &u.FamilyName, &u.PictureURL, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, serviceerr.ErrNotFound
		}

		return user.User{}, fmt.Errorf("selecting from users: %w", err)
	}

	return u, nil
}

// CreateUser inserts the user and its customer profile in one transaction.
// Empty ID and CreatedAt are filled in.
func (r *Repository) CreateUser(ctx context.Context, u user.User) (_ user.User, err error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return user.User{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err := tx.Exec(ctx, `INSERT INTO users (id, subject, email, given_name, family_name, picture_url, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7);`,
		u.ID, u.Subject, u.Email, u.GivenName, u.FamilyName, u.PictureURL, u.CreatedAt,
	); err != nil {
		if err, ok := handlePgError(err); ok {
			return user.User{}, err
		}

		return user.User{}, fmt.Errorf("inserting into users: %w", err)
	}

	if _, err := tx.Exec(ctx, `INSERT INTO customers (id, user_id, created_at) VALUES ($1, $2, $3);`,
		uuid.NewString(), u.ID, u.CreatedAt,
	); err != nil {
		return user.User{}, fmt.Errorf("inserting into customers: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return user.User{}, fmt.Errorf("committing transaction: %w", err)
	}

	return u, nil
}

func handlePgError(err error) (error, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return serviceerr.ErrConflict, true
	}

	return err, false
}
