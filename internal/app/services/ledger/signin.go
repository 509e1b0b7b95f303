package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/R3E-Network/keyledger/internal/app/domain/account"
	svcerrors "github.com/R3E-Network/keyledger/internal/errors"
)

// streakMultipliers pays a bonus on exactly these consecutive days.
var streakMultipliers = map[int]int64{
	7:  2,
	15: 3,
	30: 5,
}

var signInMessages = []string{
	"Great job! Your check-in today is as bright as sunshine!",
	"Wow! Your diligence could move the planet!",
	"Checked in! You're one step closer to your dream!",
	"Brilliant! Your persistence is impressive!",
	"All done! You're today's shiniest star!",
	"Nice one, friend! Keep the momentum going!",
	"Checked in! Your effort is quietly changing the world!",
	"Wonderful! Your check-in makes today special!",
}

var mottos = []string{
	"Hard work is the secret of success.",
	"Every bit of progress is a step toward success.",
	"Persistence wins!",
	"Behind every success lies countless unseen efforts.",
	"Believe in yourself, you're the best!",
}

// SignInResult describes a completed daily sign-in.
type SignInResult struct {
	Points     decimal.Decimal
	Multiplier int64
	Streak     int
	Balance    decimal.Decimal
	Message    string
}

// SignIn grants the daily reward. A second sign-in on the same calendar day
// fails with ALREADY_SIGNED_IN.
func (s *Service) SignIn(ctx context.Context, key string) (SignInResult, error) {
	today := account.DateOf(s.now().In(s.cfg.Location))

	var res SignInResult
	acct, err := s.accounts.Update(ctx, key, func(a *account.Account) error {
		if a.LastSignIn == today {
			return svcerrors.AlreadySignedIn()
		}

		streak := 1
		if a.LastSignIn.DayBefore(today) {
			streak = a.SignInStreak + 1
		}
		multiplier := int64(1)
		if m, ok := streakMultipliers[streak]; ok {
			multiplier = m
		}
		points := s.cfg.SignInBase.Mul(decimal.NewFromInt(multiplier))

		a.Balance = a.Balance.Add(points)
		a.LastSignIn = today
		a.SignInStreak = streak
		a.TotalSignIns++

		res = SignInResult{Points: points, Multiplier: multiplier, Streak: streak}
		return nil
	})
	if err != nil {
		return SignInResult{}, s.observe("sign_in", err)
	}

	res.Balance = acct.Balance
	res.Message = signInMessages[s.pick.IntN(len(signInMessages))]
	s.journal.Record(ctx, key, account.EntrySignIn, res.Points, acct.Balance, string(today))
	return res, s.observe("sign_in", nil)
}

// Summary is the my-points view of an account.
type Summary struct {
	Balance      decimal.Decimal
	LastSignIn   account.Date
	Streak       int
	TotalSignIns int
	Motto        string
}

// Summary returns the account overview with a random motto.
func (s *Service) Summary(ctx context.Context, key string) (Summary, error) {
	acct, err := s.accounts.Load(ctx, key)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		Balance:      acct.Balance,
		LastSignIn:   acct.LastSignIn,
		Streak:       acct.SignInStreak,
		TotalSignIns: acct.TotalSignIns,
		Motto:        mottos[s.pick.IntN(len(mottos))],
	}, nil
}
