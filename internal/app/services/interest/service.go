// Package interest runs the deposit flow: parking balance as interest-bearing
// deposits, statements, and interactive withdrawal.
package interest

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/R3E-Network/keyledger/internal/app/domain/account"
	"github.com/R3E-Network/keyledger/internal/app/metrics"
	"github.com/R3E-Network/keyledger/internal/app/services/accounts"
	"github.com/R3E-Network/keyledger/internal/app/services/ledger"
	"github.com/R3E-Network/keyledger/internal/app/services/prompt"
	svcerrors "github.com/R3E-Network/keyledger/internal/errors"
	"github.com/R3E-Network/keyledger/pkg/logger"
)

// Asker collects an interactive confirmation.
type Asker interface {
	Ask(ctx context.Context, session prompt.Session, req prompt.Request) (prompt.Result, error)
}

// Service manages deposits for key accounts.
type Service struct {
	accounts *accounts.Service
	prompts  Asker
	journal  *ledger.Journal
	rate     decimal.Decimal
	now      func() time.Time
	log      *logger.Logger
}

func New(accts *accounts.Service, prompts Asker, journal *ledger.Journal, rate decimal.Decimal, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("interest")
	}
	if rate.IsZero() {
		rate = DefaultRate
	}
	return &Service{accounts: accts, prompts: prompts, journal: journal, rate: rate, now: time.Now, log: log}
}

// WithClock overrides the clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Rate returns the configured rate.
func (s *Service) Rate() decimal.Decimal { return s.rate }

// DepositResult reports the state after a deposit.
type DepositResult struct {
	Balance   decimal.Decimal
	Principal decimal.Decimal
}

// Deposit moves amount from the balance into a new deposit entry.
func (s *Service) Deposit(ctx context.Context, key string, amount decimal.Decimal) (DepositResult, error) {
	if !amount.IsPositive() {
		return DepositResult{}, observe("deposit", svcerrors.InvalidInput("amount", "must be greater than zero"))
	}

	var res DepositResult
	_, err := s.accounts.Update(ctx, key, func(a *account.Account) error {
		if a.Balance.LessThan(amount) {
			return svcerrors.InsufficientFunds(a.Balance, amount)
		}
		a.Balance = a.Balance.Sub(amount)
		a.Deposits = append(a.Deposits, account.Deposit{Amount: amount, Timestamp: s.now().UTC()})
		res = DepositResult{Balance: a.Balance, Principal: Principal(a.Deposits)}
		return nil
	})
	if err != nil {
		return DepositResult{}, observe("deposit", err)
	}
	s.journal.Record(ctx, key, account.EntryDeposit, amount.Neg(), res.Balance, "")
	return res, observe("deposit", nil)
}

// StatementLine is one deposit with its accrued interest.
type StatementLine struct {
	Amount    decimal.Decimal
	Timestamp time.Time
	Days      int64
	Interest  decimal.Decimal
}

// Statement lists deposits as of a moment.
type Statement struct {
	AsOf      time.Time
	Lines     []StatementLine
	Principal decimal.Decimal
	Interest  decimal.Decimal
}

// Total is principal plus interest.
func (st Statement) Total() decimal.Decimal { return st.Principal.Add(st.Interest) }

func (s *Service) statement(deposits []account.Deposit, asOf time.Time) Statement {
	st := Statement{AsOf: asOf, Principal: Principal(deposits), Interest: Calculate(deposits, asOf, s.rate)}
	for _, d := range deposits {
		days := ElapsedDays(d.Timestamp, asOf)
		if days < 0 {
			days = 0
		}
		st.Lines = append(st.Lines, StatementLine{
			Amount:    d.Amount,
			Timestamp: d.Timestamp,
			Days:      days,
			Interest:  Accrued(d, asOf, s.rate).Round(2),
		})
	}
	return st
}

// View returns the current deposit statement.
func (s *Service) View(ctx context.Context, key string) (Statement, error) {
	acct, err := s.accounts.Load(ctx, key)
	if err != nil {
		return Statement{}, err
	}
	return s.statement(acct.Deposits, s.now().UTC()), nil
}

// WithdrawStatus is the outcome of an interactive withdrawal.
type WithdrawStatus int

const (
	WithdrawSettled WithdrawStatus = iota
	WithdrawDeclined
	WithdrawTimedOut
)

func (w WithdrawStatus) String() string {
	switch w {
	case WithdrawSettled:
		return "settled"
	case WithdrawDeclined:
		return "declined"
	default:
		return "timed_out"
	}
}

// WithdrawResult describes a finished withdrawal flow.
type WithdrawResult struct {
	Status    WithdrawStatus
	Principal decimal.Decimal
	Interest  decimal.Decimal
	Balance   decimal.Decimal
}

// Withdraw previews principal plus interest, asks for confirmation and on
// "yes" settles every deposit, recomputing interest at settlement time. No
// lock is held while waiting for the answer.
func (s *Service) Withdraw(ctx context.Context, session prompt.Session, key string) (WithdrawResult, error) {
	acct, err := s.accounts.Load(ctx, key)
	if err != nil {
		return WithdrawResult{}, err
	}
	if len(acct.Deposits) == 0 {
		return WithdrawResult{}, svcerrors.NoDeposits()
	}
	preview := s.statement(acct.Deposits, s.now().UTC())

	question := fmt.Sprintf("Withdraw %s principal + %s interest = %s points? Reply yes or no.",
		preview.Principal.StringFixed(2), preview.Interest.StringFixed(2), preview.Total().StringFixed(2))
	answer, err := s.prompts.Ask(ctx, session, prompt.Request{
		Key:      key,
		Question: question,
		Retry:    "Please reply yes or no.",
		Parse:    prompt.ParseYesNo,
	})
	if err != nil {
		return WithdrawResult{}, err
	}

	switch {
	case answer.Kind == prompt.TimedOut || answer.Kind == prompt.Cancelled:
		return WithdrawResult{Status: WithdrawTimedOut, Principal: preview.Principal, Interest: preview.Interest, Balance: acct.Balance}, nil
	case answer.Answer != prompt.Yes:
		return WithdrawResult{Status: WithdrawDeclined, Principal: preview.Principal, Interest: preview.Interest, Balance: acct.Balance}, nil
	}

	var res WithdrawResult
	_, err = s.accounts.Update(ctx, key, func(a *account.Account) error {
		if len(a.Deposits) == 0 {
			return svcerrors.NoDeposits()
		}
		st := s.statement(a.Deposits, s.now().UTC())
		a.Balance = a.Balance.Add(st.Total())
		a.Deposits = nil
		res = WithdrawResult{Status: WithdrawSettled, Principal: st.Principal, Interest: st.Interest, Balance: a.Balance}
		return nil
	})
	if err != nil {
		return WithdrawResult{}, observe("withdraw", err)
	}

	s.journal.Record(ctx, key, account.EntryWithdraw, res.Principal.Add(res.Interest), res.Balance, "interest "+res.Interest.StringFixed(2))
	s.log.WithField("key", key).WithField("interest", res.Interest.StringFixed(2)).Info("deposits withdrawn")
	return res, observe("withdraw", nil)
}

func observe(op string, err error) error {
	if err == nil {
		metrics.RecordLedgerOperation(op, "ok")
		return nil
	}
	metrics.RecordLedgerOperation(op, string(svcerrors.CodeOf(err)))
	return err
}
