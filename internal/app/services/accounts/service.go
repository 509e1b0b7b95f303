// Package accounts loads and persists per-key ledger accounts. Every
// read-modify-write happens inside the key's exclusive section.
package accounts

import (
	"context"
	"time"

	"github.com/R3E-Network/keyledger/internal/app/domain/account"
	"github.com/R3E-Network/keyledger/internal/app/keylock"
	"github.com/R3E-Network/keyledger/internal/app/storage"
	svcerrors "github.com/R3E-Network/keyledger/internal/errors"
	"github.com/R3E-Network/keyledger/pkg/logger"
)

// BindingChecker reports whether a key is still bound to an identity. It is
// called with the key lock held and must not take the registry lock.
type BindingChecker interface {
	Bound(ctx context.Context, key string) (bool, error)
}

// Service is the account store.
type Service struct {
	store    storage.Store
	locks    *keylock.Locker
	bindings BindingChecker
	now      func() time.Time
	log      *logger.Logger
}

// New creates an account service. locks is shared with the key registry.
func New(store storage.Store, locks *keylock.Locker, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("accounts")
	}
	if locks == nil {
		locks = keylock.New()
	}
	return &Service{store: store, locks: locks, now: time.Now, log: log}
}

// WithClock overrides the clock used for CreatedAt/UpdatedAt.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithBindings makes every locked section reject keys that are no longer
// bound, so writes never land on a retired key.
func (s *Service) WithBindings(b BindingChecker) *Service {
	s.bindings = b
	return s
}

// Load returns a snapshot of key's account. Missing accounts are zero-valued.
func (s *Service) Load(ctx context.Context, key string) (account.Account, error) {
	return s.load(ctx, key)
}

// Update runs fn on key's account under the key lock and saves the result
// when fn returns nil. The saved account is returned.
func (s *Service) Update(ctx context.Context, key string, fn func(*account.Account) error) (account.Account, error) {
	var out account.Account
	err := s.WithLocked(ctx, []string{key}, func(tx *Tx) error {
		acct, err := tx.Load(key)
		if err != nil {
			return err
		}
		if err := fn(&acct); err != nil {
			return err
		}
		if err := tx.Save(key, acct); err != nil {
			return err
		}
		out = acct
		return nil
	})
	return out, err
}

// WithLocked holds the locks for keys (sorted) while fn runs. Nothing is
// saved implicitly; fn calls Tx.Save. A key retired before the locks were
// acquired fails with InvalidKey and fn does not run.
func (s *Service) WithLocked(ctx context.Context, keys []string, fn func(tx *Tx) error) error {
	unlock, err := s.locks.LockMany(ctx, keys...)
	if err != nil {
		return err
	}
	defer unlock()

	if s.bindings != nil {
		for _, key := range keys {
			bound, err := s.bindings.Bound(ctx, key)
			if err != nil {
				return err
			}
			if !bound {
				s.log.WithField("key", key).Warn("write to retired key rejected")
				return svcerrors.InvalidKey(key)
			}
		}
	}
	return fn(&Tx{ctx: ctx, svc: s})
}

// Tx gives lock-holding callers direct access to the store.
type Tx struct {
	ctx context.Context
	svc *Service
}

func (tx *Tx) Load(key string) (account.Account, error) {
	return tx.svc.load(tx.ctx, key)
}

func (tx *Tx) Save(key string, acct account.Account) error {
	return tx.svc.save(tx.ctx, key, acct)
}

func (s *Service) load(ctx context.Context, key string) (account.Account, error) {
	var acct account.Account
	if _, err := storage.GetJSON(ctx, s.store, key, &acct); err != nil {
		return account.Account{}, svcerrors.AsStorage("load account", err)
	}
	return acct, nil
}

func (s *Service) save(ctx context.Context, key string, acct account.Account) error {
	now := s.now().UTC()
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = now
	}
	acct.UpdatedAt = now
	if err := storage.SetJSON(ctx, s.store, key, acct); err != nil {
		s.log.WithError(err).WithField("key", key).Error("save account failed")
		return svcerrors.AsStorage("save account", err)
	}
	return nil
}
