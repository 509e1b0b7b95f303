package commands

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/R3E-Network/keyledger/internal/app/domain/account"
	"github.com/R3E-Network/keyledger/internal/app/services/interest"
	"github.com/R3E-Network/keyledger/internal/app/services/invest"
	"github.com/R3E-Network/keyledger/internal/app/services/ledger"
	"github.com/R3E-Network/keyledger/internal/app/services/wagering"
	svcerrors "github.com/R3E-Network/keyledger/internal/errors"
)

const timeLayout = "2006-01-02 15:04"

var hundred = decimal.NewFromInt(100)

func points(d decimal.Decimal) string { return d.StringFixed(2) }

func percent(rate decimal.Decimal) string { return rate.Mul(hundred).StringFixed(2) }

func signed(d decimal.Decimal) string {
	if d.IsNegative() {
		return d.StringFixed(2)
	}
	return "+" + d.StringFixed(2)
}

// Message renders err as a chat reply.
func Message(err error, name Name) string {
	if errors.Is(err, ErrUnknownCommand) {
		return "Unknown command. Send help for the list of commands."
	}
	svcErr := svcerrors.GetServiceError(err)
	if svcErr == nil {
		return "Something went wrong, please try again later."
	}

	switch svcErr.Code {
	case svcerrors.CodeNotAuthenticated:
		if old, ok := svcErr.Details["retired"]; ok {
			return fmt.Sprintf("Key %v was replaced and is no longer valid. Log in with the new key.", old)
		}
		return "Please log in first with login <key>, or create a key with generate-key."
	case svcerrors.CodeInvalidKey:
		return "That key does not exist."
	case svcerrors.CodeInsufficientFunds:
		if avail, ok := svcErr.Details["available"]; ok {
			return fmt.Sprintf("Not enough points: available %v, required %v.", avail, svcErr.Details["required"])
		}
		return "Not enough points."
	case svcerrors.CodeInsufficientQuantity:
		return fmt.Sprintf("You do not hold that much %v.", svcErr.Details["symbol"])
	case svcerrors.CodeNoPosition:
		return fmt.Sprintf("You have no %v position.", svcErr.Details["symbol"])
	case svcerrors.CodeQuoteUnavailable:
		return fmt.Sprintf("Could not get a price for %v right now, please try again later.", svcErr.Details["symbol"])
	case svcerrors.CodeAlreadySignedIn:
		return "You already signed in today. Come back tomorrow!"
	case svcerrors.CodeAlreadyDrawn:
		return "You already drew a card today. Come back tomorrow!"
	case svcerrors.CodeNoDeposits:
		return "You have no deposits."
	case svcerrors.CodeKeyInUse:
		return "Your current key still holds points, deposits or investments and you are its last member. Empty it or share it before joining another key."
	case svcerrors.CodePromptPending:
		return "Another question is still waiting for an answer on this account."
	case svcerrors.CodePromptTimeout, svcerrors.CodePromptCancelled:
		return "No answer in time, operation cancelled."
	case svcerrors.CodeRateLimited:
		return "Slow down a little, please."
	case svcerrors.CodeInvalidInput:
		if svcErr.Details["field"] == "usage" {
			return "Usage: " + Usage(name)
		}
		return "Invalid input: " + svcErr.Message
	default:
		return "Something went wrong, please try again later."
	}
}

func formatSignIn(res ledger.SignInResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Signed in! +%s points", points(res.Points))
	if res.Multiplier > 1 {
		fmt.Fprintf(&b, " (x%d streak bonus)", res.Multiplier)
	}
	fmt.Fprintf(&b, "\nStreak: %d day(s)\nBalance: %s\n%s", res.Streak, points(res.Balance), res.Message)
	return b.String()
}

func formatSummary(s ledger.Summary) string {
	return fmt.Sprintf("Balance: %s\nLast sign-in: %s\nStreak: %d day(s)\nTotal sign-ins: %d\n%s",
		points(s.Balance), s.LastSignIn, s.Streak, s.TotalSignIns, s.Motto)
}

func formatHistory(entries []account.JournalEntry, loc *time.Location) string {
	if len(entries) == 0 {
		return "No history yet."
	}
	var b strings.Builder
	b.WriteString("Recent activity:")
	for _, e := range entries {
		fmt.Fprintf(&b, "\n%s  %-12s %10s  -> %s", e.CreatedAt.In(loc).Format(timeLayout), e.Kind, signed(e.Amount), points(e.BalanceAfter))
		if e.Reference != "" {
			fmt.Fprintf(&b, "  (%s)", e.Reference)
		}
	}
	return b.String()
}

func formatStatement(st interest.Statement, loc *time.Location) string {
	if len(st.Lines) == 0 {
		return "You have no deposits."
	}
	var b strings.Builder
	b.WriteString("Deposits:")
	for i, l := range st.Lines {
		days := l.Days
		if days < 0 {
			days = 0
		}
		fmt.Fprintf(&b, "\n%d. %s points on %s, %d day(s), interest %s",
			i+1, points(l.Amount), l.Timestamp.In(loc).Format(timeLayout), days, points(l.Interest))
	}
	fmt.Fprintf(&b, "\nPrincipal: %s\nInterest: %s\nTotal: %s", points(st.Principal), points(st.Interest), points(st.Total()))
	return b.String()
}

func formatRound(r wagering.Round, penalty decimal.Decimal) string {
	if r.Status == wagering.RoundCancelled {
		return "Game timed out, round cancelled."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Your hand: %s (%d)\nDealer hand: %s (%d)\n", r.PlayerHand, r.PlayerScore, r.DealerHand, r.DealerScore)
	switch r.Outcome {
	case wagering.OutcomeWin:
		fmt.Fprintf(&b, "You win %s points!", points(r.Delta))
	case wagering.OutcomeLoss:
		fmt.Fprintf(&b, "You lose %s points.", points(r.Delta.Neg()))
	case wagering.OutcomeTieDealer:
		fmt.Fprintf(&b, "Tie! As dealer you take %s points.", points(r.Delta))
	case wagering.OutcomeTieDeclined:
		fmt.Fprintf(&b, "Tie! You declined to deal and pay %s points.", points(penalty))
	}
	if r.Clamped {
		b.WriteString(" Loss limited to your balance.")
	}
	fmt.Fprintf(&b, "\nBalance: %s", points(r.Balance))
	return b.String()
}

func formatBuy(r invest.BuyResult) string {
	return fmt.Sprintf("Bought %s %s at %s USDT.\nCost: %s USDT (%s points)\nPosition: %s %s, average %s USDT\nBalance: %s",
		r.Quantity, r.Symbol, r.Price, r.Cost.StringFixed(2), points(r.PointsSpent),
		r.Position.Quantity, r.Symbol, r.Position.AvgPrice.StringFixed(6), points(r.Balance))
}

func formatSell(r invest.SellResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sold %s %s at %s USDT.\nProceeds: %s USDT (+%s points)\nCost: %s USDT\nProfit/loss: %s USDT",
		r.Quantity, r.Symbol, r.Price, r.Proceeds.StringFixed(2), points(r.PointsCredited),
		r.Cost.StringFixed(2), signed(r.RealizedPL))
	if r.Remaining.IsZero() {
		b.WriteString("\nPosition closed.")
	} else {
		fmt.Fprintf(&b, "\nRemaining: %s %s", r.Remaining, r.Symbol)
	}
	fmt.Fprintf(&b, "\nBalance: %s", points(r.Balance))
	return b.String()
}

func formatPortfolio(rows []invest.Holding) string {
	if len(rows) == 0 {
		return "You have no investments."
	}
	var b strings.Builder
	b.WriteString("Your investments:")
	for _, h := range rows {
		fmt.Fprintf(&b, "\n%s: %s @ avg %s USDT, %s points spent", h.Symbol, h.Quantity, h.AvgPrice.StringFixed(6), points(h.PointsSpent))
		if !h.Priced {
			b.WriteString("\n  current price unavailable")
			continue
		}
		fmt.Fprintf(&b, "\n  price %s, value %s, P/L %s (%s%%)",
			h.Price, h.Value.StringFixed(2), signed(h.PL), h.PLPercent.StringFixed(2))
	}
	return b.String()
}

func formatOffers(offers []invest.Offer, available decimal.Decimal) string {
	if !available.IsPositive() {
		return "You have no points to invest."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Available: %s USDT", available.StringFixed(2))
	for _, o := range offers {
		if !o.Priced {
			fmt.Fprintf(&b, "\n%s: price unavailable", o.Symbol)
			continue
		}
		fmt.Fprintf(&b, "\n%s: %s USDT, up to %s", o.Symbol, o.Price, o.MaxQuantity)
	}
	return b.String()
}
