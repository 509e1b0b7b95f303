package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/keyledger/internal/app/domain/account"
	"github.com/R3E-Network/keyledger/internal/app/keylock"
	"github.com/R3E-Network/keyledger/internal/app/services/accounts"
	"github.com/R3E-Network/keyledger/internal/app/storage"
	"github.com/R3E-Network/keyledger/internal/app/storage/memory"
	svcerrors "github.com/R3E-Network/keyledger/internal/errors"
	"github.com/R3E-Network/keyledger/pkg/logger"
)

const (
	alice = "1111111111"
	bob   = "2222222222"
)

type staticKeys map[string]bool

func (k staticKeys) Registered(_ context.Context, key string) (bool, error) { return k[key], nil }

type fixedPicker int

func (p fixedPicker) IntN(int) int { return int(p) }

// flakyStore fails writes for one key.
type flakyStore struct {
	storage.Store
	mu      sync.Mutex
	failKey string
}

func (f *flakyStore) Set(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	fail := key == f.failKey
	f.mu.Unlock()
	if fail {
		return errors.New("write refused")
	}
	return f.Store.Set(ctx, key, value)
}

type fixture struct {
	svc      *Service
	accounts *accounts.Service
	store    *flakyStore
	clock    *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := &flakyStore{Store: memory.New()}
	accts := accounts.New(store, keylock.New(), logger.Discard())
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	f := &fixture{accounts: accts, store: store, clock: &now}
	f.svc = New(accts, staticKeys{alice: true, bob: true}, NewJournal(memory.New(), 5, logger.Discard()),
		Config{Location: time.UTC}, logger.Discard()).
		WithClock(func() time.Time { return *f.clock }).
		WithPicker(fixedPicker(0))
	return f
}

func (f *fixture) seed(t *testing.T, key string, balance int64) {
	t.Helper()
	_, err := f.svc.Credit(context.Background(), key, decimal.NewFromInt(balance))
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, key string) string {
	t.Helper()
	b, err := f.svc.Balance(context.Background(), key)
	require.NoError(t, err)
	return b.StringFixed(2)
}

func TestCreditDebitRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, alice, 100)

	_, err := f.svc.Credit(ctx, alice, decimal.RequireFromString("12.5"))
	require.NoError(t, err)
	bal, err := f.svc.Debit(ctx, alice, decimal.RequireFromString("12.5"))
	require.NoError(t, err)
	assert.Equal(t, "100.00", bal.StringFixed(2))
}

func TestDebit_InsufficientFundsChangesNothing(t *testing.T) {
	f := newFixture(t)
	f.seed(t, alice, 10)

	_, err := f.svc.Debit(context.Background(), alice, decimal.NewFromInt(11))
	require.ErrorIs(t, err, svcerrors.ErrInsufficientFunds)
	assert.Equal(t, "10.00", f.balance(t, alice))
}

func TestCreditDebit_RejectNonPositive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, amt := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-3)} {
		_, err := f.svc.Credit(ctx, alice, amt)
		assert.ErrorIs(t, err, svcerrors.ErrInvalidInput)
		_, err = f.svc.Debit(ctx, alice, amt)
		assert.ErrorIs(t, err, svcerrors.ErrInvalidInput)
	}
}

func TestTransfer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, alice, 100)

	res, err := f.svc.Transfer(ctx, alice, bob, decimal.NewFromInt(30))
	require.NoError(t, err)
	assert.Equal(t, "70.00", res.FromBalance.StringFixed(2))
	assert.Equal(t, "30.00", res.ToBalance.StringFixed(2))

	_, err = f.svc.Transfer(ctx, alice, "9999999999", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, svcerrors.ErrInvalidKey)

	_, err = f.svc.Transfer(ctx, alice, bob, decimal.NewFromInt(71))
	assert.ErrorIs(t, err, svcerrors.ErrInsufficientFunds)
	assert.Equal(t, "70.00", f.balance(t, alice))
	assert.Equal(t, "30.00", f.balance(t, bob))
}

func TestTransfer_RoundTripRestoresBalances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, alice, 40)
	f.seed(t, bob, 7)

	for _, n := range []string{"0.01", "13.37", "40"} {
		amt := decimal.RequireFromString(n)
		_, err := f.svc.Transfer(ctx, alice, bob, amt)
		require.NoError(t, err)
		_, err = f.svc.Transfer(ctx, bob, alice, amt)
		require.NoError(t, err)
		assert.Equal(t, "40.00", f.balance(t, alice), n)
		assert.Equal(t, "7.00", f.balance(t, bob), n)
	}
}

func TestTransfer_SelfValidatesButChangesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, alice, 20)

	res, err := f.svc.Transfer(ctx, alice, alice, decimal.NewFromInt(5))
	require.NoError(t, err)
	assert.Equal(t, "20.00", res.FromBalance.StringFixed(2))

	_, err = f.svc.Transfer(ctx, alice, alice, decimal.NewFromInt(50))
	assert.ErrorIs(t, err, svcerrors.ErrInsufficientFunds)
	assert.Equal(t, "20.00", f.balance(t, alice))
}

func TestTransfer_CompensatesFailedCredit(t *testing.T) {
	f := newFixture(t)
	f.seed(t, alice, 100)
	f.store.failKey = bob

	_, err := f.svc.Transfer(context.Background(), alice, bob, decimal.NewFromInt(40))
	require.Error(t, err)
	assert.Equal(t, svcerrors.CodeStorageFailure, svcerrors.CodeOf(err))

	f.store.failKey = ""
	assert.Equal(t, "100.00", f.balance(t, alice))
	assert.Equal(t, "0.00", f.balance(t, bob))
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, alice, 100)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Debit(ctx, alice, decimal.NewFromInt(10)); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, svcerrors.ErrInsufficientFunds)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, ok)
	assert.Equal(t, "0.00", f.balance(t, alice))
}

func TestConcurrentCrossTransfersConserveValue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, alice, 50)
	f.seed(t, bob, 50)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = f.svc.Transfer(ctx, alice, bob, decimal.NewFromInt(7))
		}()
		go func() {
			defer wg.Done()
			_, _ = f.svc.Transfer(ctx, bob, alice, decimal.NewFromInt(5))
		}()
	}
	wg.Wait()

	a, err := f.svc.Balance(ctx, alice)
	require.NoError(t, err)
	b, err := f.svc.Balance(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, "100", a.Add(b).String())
	assert.False(t, a.IsNegative())
	assert.False(t, b.IsNegative())
}

func TestSignIn_StreaksAndMultipliers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.SignIn(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Streak)
	assert.Equal(t, "10", res.Points.String())
	assert.Equal(t, signInMessages[0], res.Message)

	_, err = f.svc.SignIn(ctx, alice)
	require.ErrorIs(t, err, svcerrors.ErrAlreadySignedIn)

	for day := 2; day <= 7; day++ {
		*f.clock = f.clock.AddDate(0, 0, 1)
		res, err = f.svc.SignIn(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, day, res.Streak)
	}
	assert.Equal(t, int64(2), res.Multiplier)
	assert.Equal(t, "20", res.Points.String())
	// six plain days plus one doubled day
	assert.Equal(t, "80.00", f.balance(t, alice))

	*f.clock = f.clock.AddDate(0, 0, 3)
	res, err = f.svc.SignIn(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Streak, "a missed day resets the streak")

	sum, err := f.svc.Summary(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 8, sum.TotalSignIns)
	assert.Equal(t, account.DateOf(*f.clock), sum.LastSignIn)
	assert.Equal(t, mottos[0], sum.Motto)
}

func TestStreakMultiplierTable(t *testing.T) {
	assert.Equal(t, int64(2), streakMultipliers[7])
	assert.Equal(t, int64(3), streakMultipliers[15])
	assert.Equal(t, int64(5), streakMultipliers[30])
	_, ok := streakMultipliers[8]
	assert.False(t, ok)
}

func TestHistory_NewestFirstAndCapped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 1; i <= 7; i++ {
		_, err := f.svc.Credit(ctx, alice, decimal.NewFromInt(int64(i)))
		require.NoError(t, err)
	}

	entries, err := f.svc.History(ctx, alice, 0)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	assert.Equal(t, "7", entries[0].Amount.String())
	assert.Equal(t, "28", entries[0].BalanceAfter.String())
	assert.Equal(t, account.EntryCredit, entries[0].Kind)

	top, err := f.svc.History(ctx, alice, 2)
	require.NoError(t, err)
	assert.Len(t, top, 2)
}

func TestJournal_Move(t *testing.T) {
	ctx := context.Background()
	j := NewJournal(memory.New(), 0, logger.Discard())
	j.Record(ctx, alice, account.EntryCredit, decimal.NewFromInt(1), decimal.NewFromInt(1), "")

	require.NoError(t, j.Move(ctx, alice, bob))
	require.NoError(t, j.Move(ctx, "0000000000", bob))

	moved, err := j.Recent(ctx, bob, 0)
	require.NoError(t, err)
	assert.Len(t, moved, 1)
	old, err := j.Recent(ctx, alice, 0)
	require.NoError(t, err)
	assert.Empty(t, old)
}
