// Package pricefeed quotes market prices for investment symbols. The HTTP
// feed talks to a Huobi-compatible merged-ticker endpoint; CachedFeed and
// Refresher keep recently used quotes warm.
package pricefeed

import (
	"context"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	svcerrors "github.com/R3E-Network/keyledger/internal/errors"
)

// Feed quotes a symbol in the quote currency (USDT).
type Feed interface {
	Quote(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// FeedFunc adapts a function to the Feed interface.
type FeedFunc func(ctx context.Context, symbol string) (decimal.Decimal, error)

func (f FeedFunc) Quote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if f == nil {
		return decimal.Zero, svcerrors.QuoteUnavailable(symbol, nil)
	}
	return f(ctx, symbol)
}

var symbolPattern = regexp.MustCompile(`^[a-zA-Z0-9]{2,10}$`)

// NormalizeSymbol validates a symbol and returns it upper-cased.
func NormalizeSymbol(symbol string) (string, error) {
	symbol = strings.TrimSpace(symbol)
	if !symbolPattern.MatchString(symbol) {
		return "", svcerrors.InvalidInput("symbol", "must be 2-10 letters or digits")
	}
	return strings.ToUpper(symbol), nil
}

// Pair returns the upstream trading pair for symbol.
func Pair(symbol string) string {
	return strings.ToLower(symbol) + "usdt"
}
