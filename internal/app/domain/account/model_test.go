package account

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccount_IsEmpty(t *testing.T) {
	assert.True(t, Account{}.IsEmpty())
	assert.False(t, Account{Balance: decimal.NewFromInt(1)}.IsEmpty())
	assert.False(t, Account{Deposits: []Deposit{{Amount: decimal.NewFromInt(1)}}}.IsEmpty())
	assert.False(t, Account{Investments: map[string]Position{"BTC": {}}}.IsEmpty())
}

func TestAccount_CloneIsDeep(t *testing.T) {
	a := Account{
		Deposits: []Deposit{{Amount: decimal.NewFromInt(5)}},
		Investments: map[string]Position{
			"BTC": {Quantity: decimal.NewFromInt(1), PriceHistory: []PricePoint{{Price: decimal.NewFromInt(10)}}},
		},
	}
	c := a.Clone()
	c.Deposits[0].Amount = decimal.NewFromInt(99)
	pos := c.Investments["BTC"]
	pos.PriceHistory[0].Price = decimal.NewFromInt(99)
	c.Investments["ETH"] = Position{}

	assert.Equal(t, "5", a.Deposits[0].Amount.String())
	assert.Equal(t, "10", a.Investments["BTC"].PriceHistory[0].Price.String())
	assert.Len(t, a.Investments, 1)
}

func TestAccount_JSONRoundTripKeepsDecimals(t *testing.T) {
	a := Account{Balance: decimal.RequireFromString("12.34"), LastSignIn: "2024-01-02"}
	raw, err := json.Marshal(a)
	require.NoError(t, err)

	var back Account
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, a.Balance.Equal(back.Balance))
	assert.Equal(t, Date("2024-01-02"), back.LastSignIn)
}

func TestDate_DayBefore(t *testing.T) {
	d := DateOf(time.Date(2024, 2, 28, 23, 0, 0, 0, time.UTC))
	assert.Equal(t, Date("2024-02-28"), d)
	assert.True(t, d.DayBefore("2024-02-29"))
	assert.False(t, d.DayBefore("2024-03-01"))
	assert.True(t, Date("2023-12-31").DayBefore("2024-01-01"))
	assert.False(t, Date("").DayBefore("2024-01-01"))
	assert.Equal(t, "never", Date("").String())
}
