// Package wagering runs the card games: a once-a-day draw and three
// head-to-head hand comparisons settled against the account balance.
package wagering

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RoundStatus is the lifecycle state of a round.
type RoundStatus string

const (
	RoundIdle                 RoundStatus = "idle"
	RoundHandsDealt           RoundStatus = "hands_dealt"
	RoundAwaitingDealerChoice RoundStatus = "awaiting_dealer_choice"
	RoundSettled              RoundStatus = "settled"
	RoundCancelled            RoundStatus = "cancelled"
)

// Outcome is how a settled round ended.
type Outcome string

const (
	OutcomeWin         Outcome = "win"
	OutcomeLoss        Outcome = "loss"
	OutcomeTieDealer   Outcome = "tie_dealer"
	OutcomeTieDeclined Outcome = "tie_declined"
	OutcomeCancelled   Outcome = "cancelled"
)

// Hand is a list of card values.
type Hand []int

func (h Hand) String() string {
	parts := make([]string, len(h))
	for i, c := range h {
		parts[i] = strconv.Itoa(c)
	}
	return strings.Join(parts, ", ")
}

// Round is one play of a head-to-head game.
type Round struct {
	ID          string          `json:"id"`
	Game        string          `json:"game"`
	Key         string          `json:"key"`
	Stake       decimal.Decimal `json:"stake"`
	Status      RoundStatus     `json:"status"`
	PlayerHand  Hand            `json:"playerHand"`
	DealerHand  Hand            `json:"dealerHand"`
	PlayerScore int             `json:"playerScore"`
	DealerScore int             `json:"dealerScore"`
	Outcome     Outcome         `json:"outcome,omitempty"`
	// Delta is the signed balance change actually applied.
	Delta decimal.Decimal `json:"delta"`
	// Clamped is set when a loss exceeded the balance and was cut to it.
	Clamped   bool            `json:"clamped"`
	Balance   decimal.Decimal `json:"balance"`
	StartedAt time.Time       `json:"startedAt"`
	SettledAt time.Time       `json:"settledAt,omitempty"`
}

// Card is a draw-card reward tier.
type Card struct {
	Name   string `json:"name"`
	Reward int64  `json:"reward"`
}

// Cards lists the draw-card tiers, drawn uniformly.
var Cards = []Card{
	{Name: "Common", Reward: 10},
	{Name: "Rare", Reward: 50},
	{Name: "Epic", Reward: 100},
	{Name: "Legendary", Reward: 200},
}

// DrawResult reports a daily card draw.
type DrawResult struct {
	Card    Card            `json:"card"`
	Balance decimal.Decimal `json:"balance"`
}
