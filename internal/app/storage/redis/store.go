// Package redis stores keyledger namespaces in redis under "<prefix>:<namespace>:<key>".
package redis

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/go-redis/redis/v8"

	"github.com/R3E-Network/keyledger/internal/app/storage"
)

const scanCount = 100

// Store implements storage.Store on top of any go-redis client.
type Store struct {
	client redis.Cmdable
	prefix string
}

var _ storage.Store = (*Store)(nil)

// New binds a Store to namespace. prefix may be empty.
func New(client redis.Cmdable, prefix, namespace string) *Store {
	p := namespace + ":"
	if prefix != "" {
		p = prefix + ":" + p
	}
	return &Store{client: client, prefix: p}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, s.prefix+key, value, 0).Err()
}

// Keys walks the namespace with SCAN so large keyspaces do not block redis.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	var (
		cursor uint64
		keys   []string
	)
	for {
		batch, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", scanCount).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range batch {
			keys = append(keys, strings.TrimPrefix(k, s.prefix))
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	sort.Strings(keys)
	return dedupe(keys), nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

// SCAN may return a key more than once; keys must be sorted.
func dedupe(keys []string) []string {
	out := keys[:0]
	for i, k := range keys {
		if i > 0 && keys[i-1] == k {
			continue
		}
		out = append(out, k)
	}
	return out
}
