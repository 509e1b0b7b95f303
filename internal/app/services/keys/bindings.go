package keys

import (
	"context"

	"github.com/R3E-Network/keyledger/internal/app/storage"
	svcerrors "github.com/R3E-Network/keyledger/internal/errors"
)

// Bindings reads key_db without the registry lock. The registry only changes
// a key's holders while holding that key's lock (or while the key has no
// account yet), so a caller holding the key lock sees a stable answer.
type Bindings struct {
	store storage.Store
}

func NewBindings(store storage.Store) *Bindings {
	return &Bindings{store: store}
}

// Bound reports whether key has at least one holder.
func (b *Bindings) Bound(ctx context.Context, key string) (bool, error) {
	if !ValidKey(key) {
		return false, nil
	}
	var holders []string
	if _, err := storage.GetJSON(ctx, b.store, key, &holders); err != nil {
		return false, svcerrors.AsStorage("read binding", err)
	}
	return len(holders) > 0, nil
}
