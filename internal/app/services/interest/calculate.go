package interest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/R3E-Network/keyledger/internal/app/domain/account"
)

// DefaultRate is applied as principal × rate × days/365.
var DefaultRate = decimal.RequireFromString("0.05")

var daysPerYear = decimal.NewFromInt(365)

// ElapsedDays counts whole days after the deposit day. The deposit day itself
// never accrues.
func ElapsedDays(deposited, asOf time.Time) int64 {
	return int64(asOf.Sub(deposited)/(24*time.Hour)) - 1
}

// Accrued is the unrounded interest earned by one deposit at asOf.
func Accrued(d account.Deposit, asOf time.Time, rate decimal.Decimal) decimal.Decimal {
	elapsed := ElapsedDays(d.Timestamp, asOf)
	if elapsed <= 0 {
		return decimal.Zero
	}
	return d.Amount.Mul(rate).Mul(decimal.NewFromInt(elapsed)).Div(daysPerYear)
}

// Calculate totals interest across deposits, rounded half-up to 2 places.
func Calculate(deposits []account.Deposit, asOf time.Time, rate decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, d := range deposits {
		total = total.Add(Accrued(d, asOf, rate))
	}
	return total.Round(2)
}

// Principal sums deposit amounts.
func Principal(deposits []account.Deposit) decimal.Decimal {
	total := decimal.Zero
	for _, d := range deposits {
		total = total.Add(d.Amount)
	}
	return total
}
