package wagering

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/R3E-Network/keyledger/internal/app/domain/account"
	"github.com/R3E-Network/keyledger/internal/app/metrics"
	"github.com/R3E-Network/keyledger/internal/app/services/accounts"
	"github.com/R3E-Network/keyledger/internal/app/services/ledger"
	"github.com/R3E-Network/keyledger/internal/app/services/prompt"
	svcerrors "github.com/R3E-Network/keyledger/internal/errors"
	"github.com/R3E-Network/keyledger/pkg/logger"
)

// DefaultTiePenalty is charged when a tie is declined.
var DefaultTiePenalty = decimal.NewFromInt(10)

// Asker collects the dealer choice on a tie.
type Asker interface {
	Ask(ctx context.Context, session prompt.Session, req prompt.Request) (prompt.Result, error)
}

// KeyChecker confirms a key still exists before a delayed settlement.
type KeyChecker interface {
	Registered(ctx context.Context, key string) (bool, error)
}

type globalDealer struct{}

func (globalDealer) IntN(n int) int { return rand.IntN(n) }

// Config tunes the engine.
type Config struct {
	TiePenalty decimal.Decimal
	// Location decides the calendar day for the daily draw.
	Location *time.Location
}

// Engine plays rounds and settles them against the account.
type Engine struct {
	accounts *accounts.Service
	prompts  Asker
	keys     KeyChecker
	journal  *ledger.Journal
	penalty  decimal.Decimal
	loc      *time.Location
	dealer   Dealer
	now      func() time.Time
	log      *logger.Logger
}

func New(accts *accounts.Service, prompts Asker, keys KeyChecker, journal *ledger.Journal, cfg Config, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.NewDefault("wagering")
	}
	if cfg.TiePenalty.IsNegative() || cfg.TiePenalty.IsZero() {
		cfg.TiePenalty = DefaultTiePenalty
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Engine{
		accounts: accts,
		prompts:  prompts,
		keys:     keys,
		journal:  journal,
		penalty:  cfg.TiePenalty,
		loc:      cfg.Location,
		dealer:   globalDealer{},
		now:      time.Now,
		log:      log,
	}
}

// WithDealer overrides the random source.
func (e *Engine) WithDealer(d Dealer) *Engine {
	e.dealer = d
	return e
}

// WithClock overrides the clock.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// TiePenalty returns the cost of declining a tie.
func (e *Engine) TiePenalty() decimal.Decimal { return e.penalty }

// Play deals one round of g and settles it. On a tie the player is asked
// whether to act as dealer; a timeout cancels the round with no balance
// change. Nothing is debited before settlement.
func (e *Engine) Play(ctx context.Context, session prompt.Session, key string, g Game, stake decimal.Decimal) (Round, error) {
	if !stake.IsPositive() {
		return Round{}, svcerrors.InvalidInput("stake", "must be greater than zero")
	}
	if _, err := e.accounts.Load(ctx, key); err != nil {
		return Round{}, err
	}

	round := Round{
		ID:        uuid.NewString(),
		Game:      g.Name(),
		Key:       key,
		Stake:     stake,
		Status:    RoundIdle,
		StartedAt: e.now().UTC(),
	}

	round.PlayerHand, round.DealerHand = g.Deal(e.dealer)
	round.PlayerScore = g.Score(round.PlayerHand)
	round.DealerScore = g.Score(round.DealerHand)
	round.Status = RoundHandsDealt

	var delta decimal.Decimal
	switch g.Compare(round.PlayerScore, round.DealerScore) {
	case PlayerWins:
		round.Outcome, delta = OutcomeWin, stake
	case DealerWins:
		round.Outcome, delta = OutcomeLoss, stake.Neg()
	default:
		round.Status = RoundAwaitingDealerChoice
		choice, err := e.askDealerChoice(ctx, session, round)
		if err != nil {
			return round, err
		}
		switch {
		case choice.Kind != prompt.Answered:
			return e.cancel(ctx, round)
		case choice.Answer == prompt.Yes:
			round.Outcome, delta = OutcomeTieDealer, stake
		default:
			round.Outcome, delta = OutcomeTieDeclined, e.penalty.Neg()
		}
		// The key may have been re-generated while we waited.
		if e.keys != nil {
			ok, err := e.keys.Registered(ctx, key)
			if err != nil {
				return round, err
			}
			if !ok {
				return e.cancel(ctx, round)
			}
		}
	}

	settled, err := e.settle(ctx, round, delta)
	if err != nil && round.Status == RoundAwaitingDealerChoice && errors.Is(err, svcerrors.ErrInvalidKey) {
		return e.cancel(ctx, round)
	}
	return settled, err
}

func (e *Engine) askDealerChoice(ctx context.Context, session prompt.Session, round Round) (prompt.Result, error) {
	question := fmt.Sprintf("Your hand: %s\nDealer hand: %s\nIt's a tie! Act as dealer? Reply yes to take %s points, or no to pay %s.",
		round.PlayerHand, round.DealerHand, round.Stake.StringFixed(2), e.penalty.StringFixed(2))
	return e.prompts.Ask(ctx, session, prompt.Request{
		Key:      round.Key,
		Question: question,
		Retry:    "Please reply yes or no.",
		Parse:    prompt.ParseYesNo,
	})
}

func (e *Engine) cancel(ctx context.Context, round Round) (Round, error) {
	round.Status = RoundCancelled
	round.Outcome = OutcomeCancelled
	round.Delta = decimal.Zero
	if acct, err := e.accounts.Load(ctx, round.Key); err == nil {
		round.Balance = acct.Balance
	}
	metrics.RecordGameRound(round.Game, string(round.Outcome))
	e.log.WithField("key", round.Key).WithField("game", round.Game).Info("round cancelled")
	return round, nil
}

// settle applies delta under the key lock. Losses are clamped to the balance.
func (e *Engine) settle(ctx context.Context, round Round, delta decimal.Decimal) (Round, error) {
	_, err := e.accounts.Update(ctx, round.Key, func(a *account.Account) error {
		if delta.IsNegative() && delta.Neg().GreaterThan(a.Balance) {
			delta = a.Balance.Neg()
			round.Clamped = true
		}
		a.Balance = a.Balance.Add(delta)
		round.Balance = a.Balance
		return nil
	})
	if err != nil {
		return round, err
	}

	round.Delta = delta
	round.Status = RoundSettled
	round.SettledAt = e.now().UTC()

	if !delta.IsZero() {
		e.journal.Record(ctx, round.Key, account.EntryGame, delta, round.Balance, round.Game+" "+string(round.Outcome))
	}
	metrics.RecordGameRound(round.Game, string(round.Outcome))
	e.log.WithField("key", round.Key).
		WithField("game", round.Game).
		WithField("outcome", string(round.Outcome)).
		WithField("delta", delta.StringFixed(2)).
		Info("round settled")
	return round, nil
}

// DrawCard grants one random card reward per calendar day. The stake is
// validated but never risked.
func (e *Engine) DrawCard(ctx context.Context, key string, stake decimal.Decimal) (DrawResult, error) {
	if !stake.IsPositive() {
		return DrawResult{}, svcerrors.InvalidInput("stake", "must be greater than zero")
	}
	today := account.DateOf(e.now().In(e.loc))

	var res DrawResult
	_, err := e.accounts.Update(ctx, key, func(a *account.Account) error {
		if a.LastDraw == today {
			return svcerrors.AlreadyDrawn()
		}
		card := Cards[e.dealer.IntN(len(Cards))]
		a.Balance = a.Balance.Add(decimal.NewFromInt(card.Reward))
		a.LastDraw = today
		res = DrawResult{Card: card, Balance: a.Balance}
		return nil
	})
	if err != nil {
		metrics.RecordGameRound(GameDrawCard, string(svcerrors.CodeOf(err)))
		return DrawResult{}, err
	}

	e.journal.Record(ctx, key, account.EntryDraw, decimal.NewFromInt(res.Card.Reward), res.Balance, res.Card.Name)
	metrics.RecordGameRound(GameDrawCard, "reward")
	return res, nil
}
