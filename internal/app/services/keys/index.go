package keys

import (
	"context"

	"github.com/R3E-Network/keyledger/internal/app/storage"
)

// IdentityIndex resolves an identity to the key it is bound to.
type IdentityIndex interface {
	Lookup(ctx context.Context, identity string) (key string, ok bool, err error)
}

// ScanIndex walks every stored binding. It is linear in the number of keys,
// which is acceptable for chat-sized deployments.
type ScanIndex struct {
	bindings storage.Store
}

func NewScanIndex(bindings storage.Store) *ScanIndex {
	return &ScanIndex{bindings: bindings}
}

func (s *ScanIndex) Lookup(ctx context.Context, identity string) (string, bool, error) {
	keys, err := s.bindings.Keys(ctx)
	if err != nil {
		return "", false, err
	}
	for _, key := range keys {
		var holders []string
		found, err := storage.GetJSON(ctx, s.bindings, key, &holders)
		if err != nil {
			return "", false, err
		}
		if found && contains(holders, identity) {
			return key, true, nil
		}
	}
	return "", false, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func without(list []string, v string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	return out
}
