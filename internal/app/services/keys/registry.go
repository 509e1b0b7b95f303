// Package keys binds chat identities to shared 10-digit account keys.
//
// An identity holds at most one key at a time. Generating a new key migrates
// the identity's account to it and retires the old key; joining another key
// leaves the previous one.
package keys

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"regexp"
	"sync"

	"github.com/R3E-Network/keyledger/internal/app/domain/account"
	"github.com/R3E-Network/keyledger/internal/app/keylock"
	"github.com/R3E-Network/keyledger/internal/app/storage"
	svcerrors "github.com/R3E-Network/keyledger/internal/errors"
	"github.com/R3E-Network/keyledger/pkg/logger"
)

const keyDigits = 10

var (
	keyPattern = regexp.MustCompile(`^\d{10}$`)
	keySpace   = new(big.Int).Exp(big.NewInt(10), big.NewInt(keyDigits), nil)
)

// ValidKey reports whether key has the 10-digit shape.
func ValidKey(key string) bool {
	return keyPattern.MatchString(key)
}

// JoinOutcome is the result of JoinKey.
type JoinOutcome int

const (
	JoinInvalid JoinOutcome = iota
	JoinAlreadyBound
	JoinJoined
)

func (o JoinOutcome) String() string {
	switch o {
	case JoinAlreadyBound:
		return "already-bound"
	case JoinJoined:
		return "joined"
	default:
		return "invalid"
	}
}

// BindResult describes a completed BindNewKey.
type BindResult struct {
	Key string
	// Previous is the retired key, empty when the identity held none.
	Previous string
	// Unbound lists other identities that shared Previous and must log in again.
	Unbound []string
}

// Registry owns the key_db namespace and migrates accounts in user_db.
type Registry struct {
	mu       sync.RWMutex
	bindings storage.Store
	accounts storage.Store
	locks    *keylock.Locker
	index    IdentityIndex
	random   io.Reader
	migrated func(ctx context.Context, from, to string) error
	log      *logger.Logger
}

// Option customises a Registry.
type Option func(*Registry)

// WithIndex replaces the default ScanIndex.
func WithIndex(idx IdentityIndex) Option { return func(r *Registry) { r.index = idx } }

// OnMigrate registers a hook run after BindNewKey retires a key, while both
// keys are still locked. Hook errors are logged only.
func OnMigrate(fn func(ctx context.Context, from, to string) error) Option {
	return func(r *Registry) { r.migrated = fn }
}

// WithRandom replaces crypto/rand as the key source.
func WithRandom(src io.Reader) Option { return func(r *Registry) { r.random = src } }

// New creates a registry over the binding and account namespaces. locks must
// be the same Locker the account service uses.
func New(bindings, accounts storage.Store, locks *keylock.Locker, log *logger.Logger, opts ...Option) *Registry {
	if log == nil {
		log = logger.NewDefault("keys")
	}
	r := &Registry{
		bindings: bindings,
		accounts: accounts,
		locks:    locks,
		index:    NewScanIndex(bindings),
		random:   rand.Reader,
		log:      log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Bindings returns a lock-free reader over this registry's key_db, for
// checks made while a key lock is held.
func (r *Registry) Bindings() *Bindings { return NewBindings(r.bindings) }

// LookupKey returns the key identity is bound to.
func (r *Registry) LookupKey(ctx context.Context, identity string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key, ok, err := r.index.Lookup(ctx, identity)
	if err != nil {
		return "", false, svcerrors.AsStorage("lookup key", err)
	}
	return key, ok, nil
}

// Identities lists the identities bound to key.
func (r *Registry) Identities(ctx context.Context, key string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.holders(ctx, key)
}

// Registered reports whether key has at least one bound identity.
func (r *Registry) Registered(ctx context.Context, key string) (bool, error) {
	if !ValidKey(key) {
		return false, nil
	}
	holders, err := r.Identities(ctx, key)
	if err != nil {
		return false, err
	}
	return len(holders) > 0, nil
}

// BindNewKey generates a fresh key for identity. Any account on the identity's
// previous key is moved to the new key and the previous key is retired.
func (r *Registry) BindNewKey(ctx context.Context, identity string) (BindResult, error) {
	if identity == "" {
		return BindResult{}, svcerrors.InvalidInput("identity", "must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	previous, hadKey, err := r.index.Lookup(ctx, identity)
	if err != nil {
		return BindResult{}, svcerrors.AsStorage("lookup key", err)
	}

	newKey, err := r.generate(ctx)
	if err != nil {
		return BindResult{}, err
	}
	result := BindResult{Key: newKey}

	if !hadKey {
		if err := storage.SetJSON(ctx, r.bindings, newKey, []string{identity}); err != nil {
			return BindResult{}, svcerrors.AsStorage("write binding", err)
		}
		r.log.WithField("identity", identity).WithField("key", newKey).Info("key generated")
		return result, nil
	}

	unlock, err := r.locks.LockMany(ctx, previous, newKey)
	if err != nil {
		return BindResult{}, err
	}
	defer unlock()

	holders, err := r.holders(ctx, previous)
	if err != nil {
		return BindResult{}, err
	}

	moved := false
	raw, err := r.accounts.Get(ctx, previous)
	switch {
	case err == nil:
		if err := r.accounts.Set(ctx, newKey, raw); err != nil {
			return BindResult{}, svcerrors.AsStorage("copy account", err)
		}
		moved = true
	case errors.Is(err, storage.ErrNotFound):
	default:
		return BindResult{}, svcerrors.AsStorage("read account", err)
	}

	if err := storage.SetJSON(ctx, r.bindings, newKey, []string{identity}); err != nil {
		if moved {
			r.undo("delete copied account", r.accounts.Delete(ctx, newKey))
		}
		return BindResult{}, svcerrors.AsStorage("write binding", err)
	}

	if err := r.bindings.Delete(ctx, previous); err != nil {
		r.undo("delete new binding", r.bindings.Delete(ctx, newKey))
		if moved {
			r.undo("delete copied account", r.accounts.Delete(ctx, newKey))
		}
		return BindResult{}, svcerrors.AsStorage("retire binding", err)
	}
	if err := r.accounts.Delete(ctx, previous); err != nil {
		// The binding is gone so the old account is unreachable; leave it for cleanup.
		r.log.WithError(err).WithField("key", previous).Warn("stale account left behind after migration")
	}

	if r.migrated != nil {
		if err := r.migrated(ctx, previous, newKey); err != nil {
			r.log.WithError(err).WithField("key", newKey).Warn("migration hook failed")
		}
	}

	result.Previous = previous
	result.Unbound = without(holders, identity)
	r.log.WithField("identity", identity).
		WithField("key", newKey).
		WithField("previous", previous).
		WithField("unbound", len(result.Unbound)).
		Info("key migrated")
	return result, nil
}

// JoinKey binds identity to an existing key. If identity held another key it
// leaves it; when it was the last holder that key is retired, which is only
// allowed while its account is empty.
func (r *Registry) JoinKey(ctx context.Context, identity, key string) (JoinOutcome, error) {
	if !ValidKey(key) {
		return JoinInvalid, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	holders, err := r.holders(ctx, key)
	if err != nil {
		return JoinInvalid, err
	}
	if len(holders) == 0 {
		return JoinInvalid, nil
	}
	if contains(holders, identity) {
		return JoinAlreadyBound, nil
	}

	current, hasCurrent, err := r.index.Lookup(ctx, identity)
	if err != nil {
		return JoinInvalid, svcerrors.AsStorage("lookup key", err)
	}

	var (
		currentHolders []string
		retire         bool
	)
	if hasCurrent {
		unlock, err := r.locks.Lock(ctx, current)
		if err != nil {
			return JoinInvalid, err
		}
		defer unlock()

		currentHolders, err = r.holders(ctx, current)
		if err != nil {
			return JoinInvalid, err
		}
		if len(currentHolders) == 1 {
			var acct account.Account
			if _, err := storage.GetJSON(ctx, r.accounts, current, &acct); err != nil {
				return JoinInvalid, svcerrors.AsStorage("read account", err)
			}
			if !acct.IsEmpty() {
				return JoinInvalid, svcerrors.KeyInUse(current)
			}
			retire = true
		}
	}

	joined := append(append([]string(nil), holders...), identity)
	if err := storage.SetJSON(ctx, r.bindings, key, joined); err != nil {
		return JoinInvalid, svcerrors.AsStorage("write binding", err)
	}

	if hasCurrent {
		var leaveErr error
		if retire {
			leaveErr = r.bindings.Delete(ctx, current)
		} else {
			leaveErr = storage.SetJSON(ctx, r.bindings, current, without(currentHolders, identity))
		}
		if leaveErr != nil {
			r.undo("restore binding", storage.SetJSON(ctx, r.bindings, key, holders))
			return JoinInvalid, svcerrors.AsStorage("leave key", leaveErr)
		}
		if retire {
			if err := r.accounts.Delete(ctx, current); err != nil {
				r.log.WithError(err).WithField("key", current).Warn("stale empty account left behind")
			}
		}
	}

	r.log.WithField("identity", identity).WithField("key", key).Info("identity joined key")
	return JoinJoined, nil
}

func (r *Registry) holders(ctx context.Context, key string) ([]string, error) {
	var holders []string
	if _, err := storage.GetJSON(ctx, r.bindings, key, &holders); err != nil {
		return nil, svcerrors.AsStorage("read binding", err)
	}
	return holders, nil
}

// generate draws candidates until one is absent from the stored key set.
func (r *Registry) generate(ctx context.Context) (string, error) {
	existing, err := r.bindings.Keys(ctx)
	if err != nil {
		return "", svcerrors.AsStorage("list keys", err)
	}
	taken := make(map[string]struct{}, len(existing))
	for _, k := range existing {
		taken[k] = struct{}{}
	}

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, err := rand.Int(r.random, keySpace)
		if err != nil {
			return "", svcerrors.Internal("generate key", err)
		}
		candidate := fmt.Sprintf("%0*d", keyDigits, n.Int64())
		if _, dup := taken[candidate]; !dup {
			return candidate, nil
		}
	}
}

func (r *Registry) undo(step string, err error) {
	if err != nil {
		r.log.WithError(err).WithField("step", step).Error("rollback failed")
	}
}
