// Package migrations creates the postgres schema used by the key/value store.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

// Execer is satisfied by *sql.DB, *sql.Tx and *sqlx.DB.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

var statements = []struct {
	name string
	sql  string
}{
	{
		name: "kv_entries",
		sql: `CREATE TABLE IF NOT EXISTS kv_entries (
			namespace  TEXT        NOT NULL,
			key        TEXT        NOT NULL,
			value      BYTEA       NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (namespace, key)
		)`,
	},
	{
		name: "kv_entries_updated_at_idx",
		sql:  `CREATE INDEX IF NOT EXISTS kv_entries_updated_at_idx ON kv_entries (namespace, updated_at DESC)`,
	},
}

// Apply runs every statement in order. Statements are idempotent so Apply is
// safe to call on each start.
func Apply(ctx context.Context, db Execer) error {
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt.sql); err != nil {
			return fmt.Errorf("migration %s: %w", stmt.name, err)
		}
	}
	return nil
}
