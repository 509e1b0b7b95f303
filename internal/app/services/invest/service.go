// Package invest converts balance into positions of externally priced symbols
// and back, tracking a weighted-average cost basis.
//
// Balance points are worth ExchangeRate quote units each. Quotes are always
// fetched before the key lock is taken so a slow feed never blocks the account.
package invest

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/R3E-Network/keyledger/internal/app/domain/account"
	"github.com/R3E-Network/keyledger/internal/app/metrics"
	"github.com/R3E-Network/keyledger/internal/app/services/accounts"
	"github.com/R3E-Network/keyledger/internal/app/services/ledger"
	"github.com/R3E-Network/keyledger/internal/app/services/pricefeed"
	svcerrors "github.com/R3E-Network/keyledger/internal/errors"
	"github.com/R3E-Network/keyledger/pkg/logger"
)

// DefaultExchangeRate is the number of quote units one point buys.
var DefaultExchangeRate = decimal.NewFromInt(10)

// DefaultSymbols are offered by Purchasable.
var DefaultSymbols = []string{"btc", "eth", "bnb", "ton", "doge"}

var hundred = decimal.NewFromInt(100)

// Config tunes the investment engine.
type Config struct {
	ExchangeRate decimal.Decimal
	Symbols      []string
}

// Service runs buys, sells and portfolio views.
type Service struct {
	accounts *accounts.Service
	feed     pricefeed.Feed
	journal  *ledger.Journal
	rate     decimal.Decimal
	symbols  []string
	now      func() time.Time
	log      *logger.Logger
}

func New(accts *accounts.Service, feed pricefeed.Feed, journal *ledger.Journal, cfg Config, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("invest")
	}
	if !cfg.ExchangeRate.IsPositive() {
		cfg.ExchangeRate = DefaultExchangeRate
	}
	if len(cfg.Symbols) == 0 {
		cfg.Symbols = DefaultSymbols
	}
	symbols := make([]string, 0, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		if n, err := pricefeed.NormalizeSymbol(s); err == nil {
			symbols = append(symbols, n)
		}
	}
	return &Service{
		accounts: accts,
		feed:     feed,
		journal:  journal,
		rate:     cfg.ExchangeRate,
		symbols:  symbols,
		now:      time.Now,
		log:      log,
	}
}

// WithClock overrides the clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ExchangeRate returns quote units per point.
func (s *Service) ExchangeRate() decimal.Decimal { return s.rate }

// Quote returns the current price of symbol.
func (s *Service) Quote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	sym, err := pricefeed.NormalizeSymbol(symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return s.quote(ctx, sym)
}

func (s *Service) quote(ctx context.Context, sym string) (decimal.Decimal, error) {
	price, err := s.feed.Quote(ctx, sym)
	if err != nil {
		if svcerrors.CodeOf(err) != svcerrors.CodeQuoteUnavailable {
			err = svcerrors.QuoteUnavailable(sym, err)
		}
		return decimal.Zero, err
	}
	if !price.IsPositive() {
		return decimal.Zero, svcerrors.QuoteUnavailable(sym, nil)
	}
	return price, nil
}

// =============================================================================
// Buy / Sell
// =============================================================================

// BuyResult reports a completed purchase.
type BuyResult struct {
	Symbol      string
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	Cost        decimal.Decimal
	PointsSpent decimal.Decimal
	Balance     decimal.Decimal
	Position    account.Position
}

// Buy purchases quantity of symbol at the current quote.
func (s *Service) Buy(ctx context.Context, key, symbol string, quantity decimal.Decimal) (BuyResult, error) {
	sym, err := pricefeed.NormalizeSymbol(symbol)
	if err != nil {
		return BuyResult{}, observe("buy", err)
	}
	if !quantity.IsPositive() {
		return BuyResult{}, observe("buy", svcerrors.InvalidInput("quantity", "must be greater than zero"))
	}
	price, err := s.quote(ctx, sym)
	if err != nil {
		return BuyResult{}, observe("buy", err)
	}

	cost := quantity.Mul(price)
	var res BuyResult
	_, err = s.accounts.Update(ctx, key, func(a *account.Account) error {
		available := a.Balance.Mul(s.rate)
		if available.LessThan(cost) {
			return svcerrors.InsufficientFunds(available, cost)
		}
		points := cost.Div(s.rate)
		if points.GreaterThan(a.Balance) {
			points = a.Balance
		}
		a.Balance = a.Balance.Sub(points)

		if a.Investments == nil {
			a.Investments = make(map[string]account.Position)
		}
		now := s.now().UTC()
		pos, held := a.Investments[sym]
		if !held {
			pos = account.Position{OpenedAt: now}
		}
		pos = addLot(pos, quantity, price)
		pos.PointsSpent = pos.PointsSpent.Add(points)
		pos.PriceHistory = append(pos.PriceHistory, account.PricePoint{Price: price, Quantity: quantity, At: now})
		a.Investments[sym] = pos

		res = BuyResult{
			Symbol:      sym,
			Quantity:    quantity,
			Price:       price,
			Cost:        cost,
			PointsSpent: points,
			Balance:     a.Balance,
			Position:    pos,
		}
		return nil
	})
	if err != nil {
		return BuyResult{}, observe("buy", err)
	}

	s.journal.Record(ctx, key, account.EntryBuy, res.PointsSpent.Neg(), res.Balance, quantity.String()+" "+sym)
	s.log.WithField("key", key).WithField("symbol", sym).WithField("quantity", quantity.String()).Info("position bought")
	return res, observe("buy", nil)
}

// addLot folds a purchase into the weighted-average cost basis.
func addLot(pos account.Position, qty, price decimal.Decimal) account.Position {
	newQty := pos.Quantity.Add(qty)
	basis := pos.Quantity.Mul(pos.AvgPrice).Add(qty.Mul(price))
	pos.AvgPrice = basis.Div(newQty)
	pos.Quantity = newQty
	pos.TotalInvested = pos.TotalInvested.Add(qty.Mul(price))
	return pos
}

// SellResult reports a completed sale.
type SellResult struct {
	Symbol         string
	Quantity       decimal.Decimal
	Price          decimal.Decimal
	Proceeds       decimal.Decimal
	Cost           decimal.Decimal
	RealizedPL     decimal.Decimal
	PointsCredited decimal.Decimal
	Balance        decimal.Decimal
	// Remaining is the quantity left; zero means the position was closed.
	Remaining decimal.Decimal
}

// Sell sells quantity of symbol at the current quote.
func (s *Service) Sell(ctx context.Context, key, symbol string, quantity decimal.Decimal) (SellResult, error) {
	sym, err := pricefeed.NormalizeSymbol(symbol)
	if err != nil {
		return SellResult{}, observe("sell", err)
	}
	if !quantity.IsPositive() {
		return SellResult{}, observe("sell", svcerrors.InvalidInput("quantity", "must be greater than zero"))
	}

	snapshot, err := s.accounts.Load(ctx, key)
	if err != nil {
		return SellResult{}, observe("sell", err)
	}
	if err := checkHolding(snapshot, sym, quantity); err != nil {
		return SellResult{}, observe("sell", err)
	}
	price, err := s.quote(ctx, sym)
	if err != nil {
		return SellResult{}, observe("sell", err)
	}

	var res SellResult
	_, err = s.accounts.Update(ctx, key, func(a *account.Account) error {
		// Re-checked: another holder of the key may have sold meanwhile.
		if err := checkHolding(*a, sym, quantity); err != nil {
			return err
		}
		pos := a.Investments[sym]
		proceeds := quantity.Mul(price)
		cost := quantity.Mul(pos.AvgPrice)
		points := proceeds.Div(s.rate)
		a.Balance = a.Balance.Add(points)

		remaining := pos.Quantity.Sub(quantity)
		if remaining.IsZero() {
			delete(a.Investments, sym)
		} else {
			pos.Quantity = remaining
			pos.TotalInvested = remaining.Mul(pos.AvgPrice)
			a.Investments[sym] = pos
		}

		res = SellResult{
			Symbol:         sym,
			Quantity:       quantity,
			Price:          price,
			Proceeds:       proceeds,
			Cost:           cost,
			RealizedPL:     proceeds.Sub(cost),
			PointsCredited: points,
			Balance:        a.Balance,
			Remaining:      remaining,
		}
		return nil
	})
	if err != nil {
		return SellResult{}, observe("sell", err)
	}

	s.journal.Record(ctx, key, account.EntrySell, res.PointsCredited, res.Balance, quantity.String()+" "+sym)
	s.log.WithField("key", key).WithField("symbol", sym).WithField("pl", res.RealizedPL.StringFixed(6)).Info("position sold")
	return res, observe("sell", nil)
}

func checkHolding(a account.Account, sym string, quantity decimal.Decimal) error {
	pos, ok := a.Investments[sym]
	if !ok {
		return svcerrors.NoPosition(sym)
	}
	if quantity.GreaterThan(pos.Quantity) {
		return svcerrors.InsufficientQuantity(sym, pos.Quantity, quantity)
	}
	return nil
}

// =============================================================================
// Views
// =============================================================================

// Holding is one portfolio row. When Priced is false the current price could
// not be fetched and the valuation fields are zero.
type Holding struct {
	Symbol        string
	Quantity      decimal.Decimal
	AvgPrice      decimal.Decimal
	TotalInvested decimal.Decimal
	PointsSpent   decimal.Decimal
	OpenedAt      time.Time
	Priced        bool
	Price         decimal.Decimal
	Value         decimal.Decimal
	PL            decimal.Decimal
	PLPercent     decimal.Decimal
}

// Portfolio values every position at the current quote.
func (s *Service) Portfolio(ctx context.Context, key string) ([]Holding, error) {
	acct, err := s.accounts.Load(ctx, key)
	if err != nil {
		return nil, err
	}

	out := make([]Holding, 0, len(acct.Investments))
	for _, sym := range acct.Symbols() {
		pos := acct.Investments[sym]
		h := Holding{
			Symbol:        sym,
			Quantity:      pos.Quantity,
			AvgPrice:      pos.AvgPrice,
			TotalInvested: pos.TotalInvested,
			PointsSpent:   pos.PointsSpent,
			OpenedAt:      pos.OpenedAt,
		}
		if price, err := s.quote(ctx, sym); err == nil {
			h.Priced = true
			h.Price = price
			h.Value = pos.Quantity.Mul(price)
			h.PL = h.Value.Sub(pos.TotalInvested)
			if pos.TotalInvested.IsPositive() {
				h.PLPercent = h.PL.Div(pos.TotalInvested).Mul(hundred)
			}
		}
		out = append(out, h)
	}
	return out, nil
}

// Offer is one purchasable row.
type Offer struct {
	Symbol      string
	Priced      bool
	Price       decimal.Decimal
	MaxQuantity decimal.Decimal
}

// Purchasable lists how many whole units of each configured symbol the
// balance could buy. available is the balance in quote units.
func (s *Service) Purchasable(ctx context.Context, key string) (offers []Offer, available decimal.Decimal, err error) {
	acct, err := s.accounts.Load(ctx, key)
	if err != nil {
		return nil, decimal.Zero, err
	}
	available = acct.Balance.Mul(s.rate)

	for _, sym := range s.symbols {
		o := Offer{Symbol: sym}
		if price, err := s.quote(ctx, sym); err == nil {
			o.Priced = true
			o.Price = price
			o.MaxQuantity = available.Div(price).Floor()
		}
		offers = append(offers, o)
	}
	return offers, available, nil
}

func observe(op string, err error) error {
	if err == nil {
		metrics.RecordLedgerOperation(op, "ok")
		return nil
	}
	metrics.RecordLedgerOperation(op, string(svcerrors.CodeOf(err)))
	return err
}
