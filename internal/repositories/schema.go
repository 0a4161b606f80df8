package repositories

import (
	"context"
	"database/sql"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            SERIAL PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	full_name     TEXT,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL DEFAULT 'burner',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS password_resets (
	id         SERIAL PRIMARY KEY,
	user_id    INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	code_hash  TEXT NOT NULL,
	sent_at    TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL,
	attempts   INTEGER NOT NULL DEFAULT 0,
	used_at    TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS password_resets_user_sent_idx ON password_resets (user_id, sent_at DESC);
`

// Migrate creates the tables used by the password reset flow if missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
