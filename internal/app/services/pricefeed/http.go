package pricefeed

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/R3E-Network/keyledger/internal/app/metrics"
	svcerrors "github.com/R3E-Network/keyledger/internal/errors"
	"github.com/R3E-Network/keyledger/internal/httputil"
	"github.com/R3E-Network/keyledger/pkg/logger"
)

const mergedTickerPath = "/market/detail/merged"

// HTTPFeed reads the best bid from a merged ticker endpoint.
type HTTPFeed struct {
	client *httputil.Client
	log    *logger.Logger
}

// NewHTTPFeed creates a feed over client.
func NewHTTPFeed(client *httputil.Client, log *logger.Logger) *HTTPFeed {
	if log == nil {
		log = logger.NewDefault("pricefeed-http")
	}
	return &HTTPFeed{client: client, log: log}
}

// Quote fetches the current bid. Every failure, including a payload without a
// positive bid, is reported as QUOTE_UNAVAILABLE.
func (f *HTTPFeed) Quote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	start := time.Now()
	price, err := f.fetch(ctx, symbol)
	metrics.RecordQuote(time.Since(start), err == nil)
	if err != nil {
		f.log.WithError(err).WithField("symbol", symbol).Warn("quote fetch failed")
		return decimal.Zero, svcerrors.QuoteUnavailable(symbol, err)
	}
	return price, nil
}

func (f *HTTPFeed) fetch(ctx context.Context, symbol string) (decimal.Decimal, error) {
	body, err := f.client.Get(ctx, mergedTickerPath, url.Values{"symbol": {Pair(symbol)}})
	if err != nil {
		return decimal.Zero, err
	}
	return ParseMergedTicker(body)
}

// ParseMergedTicker extracts tick.bid[0] from a merged ticker payload.
func ParseMergedTicker(body []byte) (decimal.Decimal, error) {
	if !gjson.ValidBytes(body) {
		return decimal.Zero, fmt.Errorf("malformed payload")
	}
	res := gjson.ParseBytes(body)
	if status := res.Get("status").String(); status != "ok" {
		return decimal.Zero, fmt.Errorf("upstream status %q: %s", status, res.Get("err-msg").String())
	}
	bid := res.Get("tick.bid.0")
	if !bid.Exists() || bid.Type != gjson.Number {
		return decimal.Zero, fmt.Errorf("missing bid")
	}
	price, err := decimal.NewFromString(bid.Raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse bid %q: %w", bid.Raw, err)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("non-positive bid %s", price)
	}
	return price, nil
}
