package account

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Account is the ledger state owned by one key.
type Account struct {
	Balance      decimal.Decimal     `json:"balance"`
	LastSignIn   Date                `json:"lastSignIn,omitempty"`
	SignInStreak int                 `json:"signInStreak"`
	TotalSignIns int                 `json:"totalSignIns"`
	LastDraw     Date                `json:"lastDraw,omitempty"`
	Deposits     []Deposit           `json:"deposits,omitempty"`
	Investments  map[string]Position `json:"investments,omitempty"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

// Deposit is principal parked in the interest engine.
type Deposit struct {
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

// Position is a holding of one symbol. AvgPrice is the weighted-average cost
// basis in quote currency.
type Position struct {
	Quantity      decimal.Decimal `json:"quantity"`
	AvgPrice      decimal.Decimal `json:"avgPrice"`
	TotalInvested decimal.Decimal `json:"totalInvested"`
	PointsSpent   decimal.Decimal `json:"pointsSpent"`
	OpenedAt      time.Time       `json:"openedAt"`
	PriceHistory  []PricePoint    `json:"priceHistory,omitempty"`
}

// PricePoint records one purchase.
type PricePoint struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	At       time.Time       `json:"at"`
}

// IsEmpty reports whether the account holds no value at all.
func (a Account) IsEmpty() bool {
	return a.Balance.IsZero() && len(a.Deposits) == 0 && len(a.Investments) == 0
}

// Symbols returns held symbols in sorted order.
func (a Account) Symbols() []string {
	out := make([]string, 0, len(a.Investments))
	for s := range a.Investments {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Clone returns a deep copy.
func (a Account) Clone() Account {
	out := a
	if a.Deposits != nil {
		out.Deposits = append([]Deposit(nil), a.Deposits...)
	}
	if a.Investments != nil {
		out.Investments = make(map[string]Position, len(a.Investments))
		for sym, pos := range a.Investments {
			if pos.PriceHistory != nil {
				pos.PriceHistory = append([]PricePoint(nil), pos.PriceHistory...)
			}
			out.Investments[sym] = pos
		}
	}
	return out
}
