package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/R3E-Network/keyledger/internal/app/storage"
)

// Store implements storage.Store for one namespace of the kv_entries table.
type Store struct {
	db        *sqlx.DB
	namespace string
}

var _ storage.Store = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB, namespace string) *Store {
	return &Store{db: db, namespace: namespace}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.GetContext(ctx, &value, `
		SELECT value FROM kv_entries
		WHERE namespace = $1 AND key = $2
	`, s.namespace, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_entries (namespace, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (namespace, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`, s.namespace, key, value)
	return err
}

func (s *Store) Keys(ctx context.Context) ([]string, error) {
	keys := []string{}
	err := s.db.SelectContext(ctx, &keys, `
		SELECT key FROM kv_entries
		WHERE namespace = $1
		ORDER BY key
	`, s.namespace)
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM kv_entries WHERE namespace = $1 AND key = $2
	`, s.namespace, key)
	return err
}
