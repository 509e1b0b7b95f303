package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/R3E-Network/keyledger/internal/app/services/interest"
	"github.com/R3E-Network/keyledger/internal/app/services/keys"
	"github.com/R3E-Network/keyledger/internal/app/services/wagering"
	svcerrors "github.com/R3E-Network/keyledger/internal/errors"
)

// historySize is how many journal entries the history command shows.
const historySize = 10

func (d *Dispatcher) login(ctx context.Context, c call) (string, error) {
	key := c.args[0]
	outcome, err := d.svc.Keys.JoinKey(ctx, c.session.Identity(), key)
	if err != nil {
		return "", err
	}
	switch outcome {
	case keys.JoinJoined:
		return fmt.Sprintf("Logged in. You now share the account of key %s.", key), nil
	case keys.JoinAlreadyBound:
		return "You are already logged in with this key.", nil
	default:
		return "", svcerrors.InvalidKey(key)
	}
}

func (d *Dispatcher) generateKey(ctx context.Context, c call) (string, error) {
	res, err := d.svc.Keys.BindNewKey(ctx, c.session.Identity())
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Your new key: %s\nAnyone who logs in with it shares your account, so keep it safe.", res.Key)
	if res.Previous != "" {
		fmt.Fprintf(&b, "\nYour old key %s was retired and its account moved to the new key.", res.Previous)
	}
	if n := len(res.Unbound); n > 0 {
		fmt.Fprintf(&b, "\n%d other member(s) of the old key must log in with the new key.", n)
	}
	return b.String(), nil
}

func (d *Dispatcher) viewKey(_ context.Context, c call) (string, error) {
	return "Your key: " + c.key, nil
}

func (d *Dispatcher) help(context.Context, call) (string, error) {
	var b strings.Builder
	b.WriteString("Commands:")
	for _, name := range order {
		b.WriteString("\n  ")
		b.WriteString(Usage(name))
	}
	return b.String(), nil
}

func (d *Dispatcher) signIn(ctx context.Context, c call) (string, error) {
	res, err := d.svc.Ledger.SignIn(ctx, c.key)
	if err != nil {
		return "", err
	}
	return formatSignIn(res), nil
}

func (d *Dispatcher) myPoints(ctx context.Context, c call) (string, error) {
	sum, err := d.svc.Ledger.Summary(ctx, c.key)
	if err != nil {
		return "", err
	}
	return formatSummary(sum), nil
}

func (d *Dispatcher) history(ctx context.Context, c call) (string, error) {
	entries, err := d.svc.Ledger.History(ctx, c.key, historySize)
	if err != nil {
		return "", err
	}
	return formatHistory(entries, d.location()), nil
}

func (d *Dispatcher) transfer(ctx context.Context, c call) (string, error) {
	to := c.args[0]
	if !keys.ValidKey(to) {
		return "", svcerrors.InvalidKey(to)
	}
	amount, err := parsePositive("amount", c.args[1])
	if err != nil {
		return "", err
	}
	res, err := d.svc.Ledger.Transfer(ctx, c.key, to, amount)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Transferred %s points to %s.\nYour balance: %s",
		points(amount), to, points(res.FromBalance)), nil
}

func (d *Dispatcher) deposit(ctx context.Context, c call) (string, error) {
	amount, err := parsePositive("amount", c.args[0])
	if err != nil {
		return "", err
	}
	res, err := d.svc.Interest.Deposit(ctx, c.key, amount)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Deposited %s points at %s%% a year.\nDeposits: %s\nBalance: %s",
		points(amount), percent(d.svc.Interest.Rate()), points(res.Principal), points(res.Balance)), nil
}

func (d *Dispatcher) viewDeposits(ctx context.Context, c call) (string, error) {
	st, err := d.svc.Interest.View(ctx, c.key)
	if err != nil {
		return "", err
	}
	return formatStatement(st, d.location()), nil
}

func (d *Dispatcher) withdrawDeposits(ctx context.Context, c call) (string, error) {
	res, err := d.svc.Interest.Withdraw(ctx, c.session, c.key)
	if err != nil {
		return "", err
	}
	switch res.Status {
	case interest.WithdrawSettled:
		return fmt.Sprintf("Withdrew %s principal and %s interest.\nBalance: %s",
			points(res.Principal), points(res.Interest), points(res.Balance)), nil
	case interest.WithdrawDeclined:
		return "Withdrawal cancelled. Your deposits keep earning interest.", nil
	default:
		return "No answer in time, withdrawal cancelled.", nil
	}
}

func (d *Dispatcher) drawCard(ctx context.Context, c call) (string, error) {
	stake, err := parsePositive("stake", c.args[0])
	if err != nil {
		return "", err
	}
	res, err := d.svc.Wagering.DrawCard(ctx, c.key, stake)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("You drew a %s card!\nCard value: %d points\nBalance: %s",
		res.Card.Name, res.Card.Reward, points(res.Balance)), nil
}

func (d *Dispatcher) play(g wagering.Game) func(context.Context, call) (string, error) {
	return func(ctx context.Context, c call) (string, error) {
		stake, err := parsePositive("stake", c.args[0])
		if err != nil {
			return "", err
		}
		round, err := d.svc.Wagering.Play(ctx, c.session, c.key, g, stake)
		if err != nil {
			return "", err
		}
		return formatRound(round, d.svc.Wagering.TiePenalty()), nil
	}
}

func (d *Dispatcher) buy(ctx context.Context, c call) (string, error) {
	qty, err := parsePositive("quantity", c.args[1])
	if err != nil {
		return "", err
	}
	res, err := d.svc.Invest.Buy(ctx, c.key, c.args[0], qty)
	if err != nil {
		return "", err
	}
	return formatBuy(res), nil
}

func (d *Dispatcher) sell(ctx context.Context, c call) (string, error) {
	qty, err := parsePositive("quantity", c.args[1])
	if err != nil {
		return "", err
	}
	res, err := d.svc.Invest.Sell(ctx, c.key, c.args[0], qty)
	if err != nil {
		return "", err
	}
	return formatSell(res), nil
}

func (d *Dispatcher) viewInvestments(ctx context.Context, c call) (string, error) {
	rows, err := d.svc.Invest.Portfolio(ctx, c.key)
	if err != nil {
		return "", err
	}
	return formatPortfolio(rows), nil
}

func (d *Dispatcher) viewPurchasable(ctx context.Context, c call) (string, error) {
	offers, available, err := d.svc.Invest.Purchasable(ctx, c.key)
	if err != nil {
		return "", err
	}
	return formatOffers(offers, available), nil
}
