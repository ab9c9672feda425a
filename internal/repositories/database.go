package repositories

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Database is the querying surface repositories need from a pgx pool. It is
// satisfied by *pgxpool.Pool in production and by pgxmock in tests.
type Database interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Pairing and queue sentinel errors. Handlers map these to distinct
// user-visible failures; everything else surfaces as a generic persistence
// error.
var (
	ErrTokenInvalid     = errors.New("activation code is invalid")
	ErrTokenAlreadyUsed = errors.New("activation code was already used")
	ErrTokenExpired     = errors.New("activation code has expired")
	ErrPrinterNotFound  = errors.New("printer not found for tenant")
)

// uniqueViolation reports whether err is a Postgres unique constraint
// violation (SQLSTATE 23505).
func uniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
