// Package storage defines the key/value contract every keyledger backend
// implements and a few JSON helpers shared by the services.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Namespaces used by the services. Each backend instance serves one namespace.
const (
	NamespaceKeys    = "key_db"
	NamespaceUsers   = "user_db"
	NamespaceJournal = "journal_db"
)

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("storage: not found")

// Store persists opaque values by key within a single namespace.
// Implementations must return copies from Get so callers may mutate the
// result freely.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Keys(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, key string) error
}

// GetJSON loads key and decodes it into v. The boolean reports whether the key
// existed; a missing key is not an error.
func GetJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	raw, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}
