package postgrestest

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pressly/goose/v3"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"

	slogctx "github.com/veqryn/slog-context"

	migrations "github.com/openshop/identity/sql"
)

const (
	DBHost     = "localhost"
	DBUser     = "postgres"
	DBPassword = "secret"
	DBName     = "identity"
	DBSSLMode  = "disable"
)

// Fixtures inserted by prepareDB.
const (
	StateID      = "6f1c1f7e-8c4b-4f54-9d0b-2f1f1f0e6a01"
	StateValue   = "state-one"
	StateNonce   = "nonce-one"
	UserID       = "9a7c2b0e-1f3d-4c55-8e6a-7b1d2c3e4f50"
	UserSubject  = "subject-one"
	UserEmail    = "one@example.com"
	CustomerID   = "0b5e8f2a-3c4d-4e6f-9a1b-2c3d4e5f6a70"
	StaleStateID = "7e2d3c4b-5a6f-4b7c-8d9e-0f1a2b3c4d5e"
)

// DBTime is the creation time of the fresh fixtures.
//
//nolint:gosmopolitan
var DBTime = time.Now().Truncate(time.Microsecond).Local()

// StaleTime is the creation time of the stale state fixture.
var StaleTime = DBTime.Add(-24 * time.Hour)

// Start initialises a database instance and returns a connection pool, database port, and termination function.
//
// Database credentials are available as exported variables.
// The database contains pre-defined test data. See INSERT statements in the prepareDB.
func Start(ctx context.Context) (*pgxpool.Pool, nat.Port, func(ctx context.Context)) {
	pgContainer, err := postgres.Run(
		ctx,
		"postgres:17-alpine",
		postgres.WithDatabase(DBName),
		postgres.WithUsername(DBUser),
		postgres.WithPassword(DBPassword),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		slogctx.Error(ctx, "Failed to start PostgreSQL", slog.String("error", err.Error()))
		panic(err)
	}

	port, err := pgContainer.MappedPort(ctx, nat.Port("5432"))
	if err != nil {
		slogctx.Error(ctx, "Failed to get mapped port for the PosgtgreSQL container", slog.String("error", err.Error()))
		panic(err)
	}

	dbPool := makeDBConn(ctx, port)
	prepareDB(ctx, dbPool, port)

	terminate := func(ctx context.Context) {
		dbPool.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			slogctx.Error(ctx, "Failed to terminate PosgtgreSQL container", slog.String("error", err.Error()))
			panic(err)
		}
	}

	return dbPool, port, terminate
}

// ConnStr returns the keyword/value connection string for the container port.
func ConnStr(port nat.Port) string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s", DBHost, DBUser, DBPassword, DBName, port.Port(), DBSSLMode)
}

func makeDBConn(ctx context.Context, port nat.Port) *pgxpool.Pool {
	pool, err := pgxpool.New(ctx, ConnStr(port))
	if err != nil {
		panic(err)
	}

	return pool
}

func migrateDB(ctx context.Context, port nat.Port) {
	db, err := sql.Open("pgx", ConnStr(port))
	if err != nil {
		panic(err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("pgx"); err != nil {
		panic(err)
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		panic(err)
	}
}

func prepareDB(ctx context.Context, dbPool *pgxpool.Pool, port nat.Port) {
	migrateDB(ctx, port)

	b := new(pgx.Batch)
	b.Queue(`INSERT INTO auth_state (id, state, nonce, code_verifier, created_at) VALUES ($1, $2, $3, '', $4);`, StateID, StateValue, StateNonce, DBTime)
	b.Queue(`INSERT INTO auth_state (id, state, nonce, code_verifier, created_at) VALUES ($1, 'state-stale', 'nonce-stale', '', $2);`, StaleStateID, StaleTime)
	b.Queue(`INSERT INTO users (id, subject, email, given_name, family_name, picture_url, created_at) VALUES ($1, $2, $3, 'One', 'User', '', $4);`, UserID, UserSubject, UserEmail, DBTime)
	b.Queue(`INSERT INTO customers (id, user_id, created_at) VALUES ($1, $2, $3);`, CustomerID, UserID, DBTime)

	res := dbPool.SendBatch(ctx, b)
	if err := res.Close(); err != nil {
		panic(err)
	}
}
