// Package commands turns chat text into engine calls and engine results into
// chat replies. It holds no ledger logic of its own.
package commands

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	svcerrors "github.com/R3E-Network/keyledger/internal/errors"
)

// Name is a canonical command verb.
type Name string

const (
	Login            Name = "login"
	GenerateKey      Name = "generate-key"
	ViewKey          Name = "view-key"
	SignIn           Name = "sign-in"
	MyPoints         Name = "my-points"
	History          Name = "history"
	Deposit          Name = "deposit"
	ViewDeposits     Name = "view-deposits"
	WithdrawDeposits Name = "withdraw-deposits"
	Transfer         Name = "transfer"
	DrawCard         Name = "draw-card"
	ThreeFlowers     Name = "three-flowers"
	GamblingFlowers  Name = "gambling-flowers"
	TwentyOne        Name = "twenty-one"
	Invest           Name = "invest"
	ViewInvestments  Name = "view-investments"
	ViewPurchasable  Name = "view-purchasable"
	Sell             Name = "sell"
	Help             Name = "help"
)

// aliases maps the original verbs onto canonical names.
var aliases = map[string]Name{
	"key":   Login,
	"生成key": GenerateKey,
	"查看key": ViewKey,
	"签到":    SignIn,
	"我的积分":  MyPoints,
	"抽卡":    DrawCard,
	"三公":    ThreeFlowers,
	"炸金花":   GamblingFlowers,
	"21点":   TwentyOne,
	"投资":    Invest,
	"我的投资":  ViewInvestments,
	"可购买币种": ViewPurchasable,
	"卖出":    Sell,
}

type syntax struct {
	args  int
	usage string
}

var syntaxes = map[Name]syntax{
	Login:            {1, "login <key>"},
	GenerateKey:      {0, "generate-key"},
	ViewKey:          {0, "view-key"},
	SignIn:           {0, "sign-in"},
	MyPoints:         {0, "my-points"},
	History:          {0, "history"},
	Deposit:          {1, "deposit <amount>"},
	ViewDeposits:     {0, "view-deposits"},
	WithdrawDeposits: {0, "withdraw-deposits"},
	Transfer:         {2, "transfer <key> <amount>"},
	DrawCard:         {1, "draw-card <stake>"},
	ThreeFlowers:     {1, "three-flowers <stake>"},
	GamblingFlowers:  {1, "gambling-flowers <stake>"},
	TwentyOne:        {1, "twenty-one <stake>"},
	Invest:           {2, "invest <symbol> <quantity>"},
	ViewInvestments:  {0, "view-investments"},
	ViewPurchasable:  {0, "view-purchasable"},
	Sell:             {2, "sell <symbol> <quantity>"},
	Help:             {0, "help"},
}

// order is the help listing order.
var order = []Name{
	Login, GenerateKey, ViewKey, SignIn, MyPoints, History,
	Deposit, ViewDeposits, WithdrawDeposits, Transfer,
	DrawCard, ThreeFlowers, GamblingFlowers, TwentyOne,
	Invest, ViewInvestments, ViewPurchasable, Sell, Help,
}

// Command is a parsed chat command.
type Command struct {
	Name Name
	Args []string
}

// ErrUnknownCommand is returned by Parse for text that names no command.
var ErrUnknownCommand = errors.New("unknown command")

// Parse splits text into a command and its arguments. Verbs are matched
// case-insensitively; extra arguments are rejected with the usage line.
func Parse(text string) (Command, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Command{}, ErrUnknownCommand
	}

	verb := strings.ToLower(fields[0])
	name, ok := aliases[verb]
	if !ok {
		name = Name(verb)
	}
	sp, ok := syntaxes[name]
	if !ok {
		return Command{}, ErrUnknownCommand
	}

	args := fields[1:]
	if len(args) != sp.args {
		return Command{Name: name}, svcerrors.InvalidInput("usage", sp.usage)
	}
	return Command{Name: name, Args: args}, nil
}

// Usage returns the usage line for name.
func Usage(name Name) string { return syntaxes[name].usage }

func parsePositive(field, raw string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(raw)
	if err != nil || !v.IsPositive() {
		return decimal.Zero, svcerrors.InvalidInput(field, "must be a number greater than zero")
	}
	return v, nil
}
