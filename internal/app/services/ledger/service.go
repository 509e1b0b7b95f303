// Package ledger implements balance movements on key accounts: credits,
// debits, transfers between keys, daily sign-in rewards and the journal.
package ledger

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"github.com/R3E-Network/keyledger/internal/app/domain/account"
	"github.com/R3E-Network/keyledger/internal/app/metrics"
	"github.com/R3E-Network/keyledger/internal/app/services/accounts"
	svcerrors "github.com/R3E-Network/keyledger/internal/errors"
	"github.com/R3E-Network/keyledger/pkg/logger"
)

// KeyChecker reports whether a key is bound to at least one identity.
type KeyChecker interface {
	Registered(ctx context.Context, key string) (bool, error)
}

// Picker chooses an index in [0, n).
type Picker interface {
	IntN(n int) int
}

type globalPicker struct{}

func (globalPicker) IntN(n int) int { return rand.IntN(n) }

// Config tunes the ledger.
type Config struct {
	SignInBase decimal.Decimal
	Location   *time.Location
}

// Service performs ledger operations.
type Service struct {
	accounts *accounts.Service
	keys     KeyChecker
	journal  *Journal
	cfg      Config
	now      func() time.Time
	pick     Picker
	log      *logger.Logger
}

// New creates a ledger service. journal may be nil to disable history.
func New(accts *accounts.Service, keys KeyChecker, journal *Journal, cfg Config, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("ledger")
	}
	if cfg.SignInBase.IsZero() {
		cfg.SignInBase = decimal.NewFromInt(10)
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{
		accounts: accts,
		keys:     keys,
		journal:  journal,
		cfg:      cfg,
		now:      time.Now,
		pick:     globalPicker{},
		log:      log,
	}
}

// WithClock overrides the clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithPicker overrides the message picker.
func (s *Service) WithPicker(p Picker) *Service {
	s.pick = p
	return s
}

// Balance returns key's current balance.
func (s *Service) Balance(ctx context.Context, key string) (decimal.Decimal, error) {
	acct, err := s.accounts.Load(ctx, key)
	if err != nil {
		return decimal.Zero, err
	}
	return acct.Balance, nil
}

// Credit increases key's balance by amount and returns the new balance.
func (s *Service) Credit(ctx context.Context, key string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, s.observe("credit", svcerrors.InvalidInput("amount", "must be greater than zero"))
	}
	return s.apply(ctx, "credit", key, account.EntryCredit, amount)
}

// Debit decreases key's balance by amount. The balance never goes negative.
func (s *Service) Debit(ctx context.Context, key string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, s.observe("debit", svcerrors.InvalidInput("amount", "must be greater than zero"))
	}
	return s.apply(ctx, "debit", key, account.EntryDebit, amount.Neg())
}

func (s *Service) apply(ctx context.Context, op, key string, kind account.EntryKind, delta decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.accounts.WithLocked(ctx, []string{key}, func(tx *accounts.Tx) error {
		acct, err := tx.Load(key)
		if err != nil {
			return err
		}
		next := acct.Balance.Add(delta)
		if next.IsNegative() {
			return svcerrors.InsufficientFunds(acct.Balance, delta.Neg())
		}
		acct.Balance = next
		if err := tx.Save(key, acct); err != nil {
			return err
		}
		balance = next
		s.journal.Record(ctx, key, kind, delta, next, "")
		return nil
	})
	return balance, s.observe(op, err)
}

// TransferResult reports both balances after a transfer.
type TransferResult struct {
	FromBalance decimal.Decimal
	ToBalance   decimal.Decimal
}

// Transfer moves amount from one key to another. Both keys are locked in
// sorted order. If the credit cannot be written the debit is restored.
func (s *Service) Transfer(ctx context.Context, from, to string, amount decimal.Decimal) (TransferResult, error) {
	if !amount.IsPositive() {
		return TransferResult{}, s.observe("transfer", svcerrors.InvalidInput("amount", "must be greater than zero"))
	}
	// Early rejection only. The registry takes key locks itself, so the
	// authoritative check is the binding check inside WithLocked.
	ok, err := s.keys.Registered(ctx, to)
	if err != nil {
		return TransferResult{}, s.observe("transfer", err)
	}
	if !ok {
		return TransferResult{}, s.observe("transfer", svcerrors.InvalidKey(to))
	}

	var res TransferResult
	err = s.accounts.WithLocked(ctx, []string{from, to}, func(tx *accounts.Tx) error {
		src, err := tx.Load(from)
		if err != nil {
			return err
		}
		if src.Balance.LessThan(amount) {
			return svcerrors.InsufficientFunds(src.Balance, amount)
		}
		if from == to {
			res = TransferResult{FromBalance: src.Balance, ToBalance: src.Balance}
			return nil
		}

		dst, err := tx.Load(to)
		if err != nil {
			return err
		}

		original := src.Clone()
		src.Balance = src.Balance.Sub(amount)
		if err := tx.Save(from, src); err != nil {
			return err
		}

		dst.Balance = dst.Balance.Add(amount)
		if err := tx.Save(to, dst); err != nil {
			if rerr := tx.Save(from, original); rerr != nil {
				s.log.WithError(rerr).
					WithField("key", from).
					WithField("amount", amount.String()).
					Error("transfer compensation failed; debit not restored")
			}
			return err
		}

		res = TransferResult{FromBalance: src.Balance, ToBalance: dst.Balance}
		s.journal.Record(ctx, from, account.EntryTransferOut, amount.Neg(), src.Balance, to)
		s.journal.Record(ctx, to, account.EntryTransferIn, amount, dst.Balance, from)
		return nil
	})
	if err == nil {
		s.log.WithField("from", from).WithField("to", to).WithField("amount", amount.StringFixed(2)).Info("transfer completed")
	}
	return res, s.observe("transfer", err)
}

// History returns up to n journal entries for key, newest first.
func (s *Service) History(ctx context.Context, key string, n int) ([]account.JournalEntry, error) {
	if s.journal == nil {
		return nil, nil
	}
	return s.journal.Recent(ctx, key, n)
}

func (s *Service) observe(op string, err error) error {
	if err == nil {
		metrics.RecordLedgerOperation(op, "ok")
		return nil
	}
	metrics.RecordLedgerOperation(op, string(svcerrors.CodeOf(err)))
	return err
}
