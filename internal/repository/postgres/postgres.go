package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgExecutor is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock pools.
type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS users (
	id                   UUID PRIMARY KEY,
	first_name           TEXT NOT NULL,
	last_name            TEXT NOT NULL,
	dob                  TEXT NOT NULL,
	gender               TEXT NOT NULL,
	contact_no           TEXT NOT NULL,
	email                TEXT NOT NULL UNIQUE,
	password_hash        TEXT NOT NULL,
	security_question    TEXT NOT NULL,
	security_answer_hash TEXT NOT NULL,
	login_attempts       INTEGER NOT NULL DEFAULT 0,
	lock_until           TIMESTAMPTZ,
	refresh_token_hash   TEXT,
	reset_otp_hash       TEXT,
	reset_otp_expiry     TIMESTAMPTZ,
	created_at           TIMESTAMPTZ NOT NULL,
	updated_at           TIMESTAMPTZ NOT NULL
)`

// EnsureSchema creates the users table when it is missing.
func EnsureSchema(ctx context.Context, exec pgExecutor) error {
	if _, err := exec.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure users schema: %w", err)
	}
	return nil
}
