package commands

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/keyledger/internal/app/keylock"
	"github.com/R3E-Network/keyledger/internal/app/services/accounts"
	"github.com/R3E-Network/keyledger/internal/app/services/interest"
	"github.com/R3E-Network/keyledger/internal/app/services/invest"
	"github.com/R3E-Network/keyledger/internal/app/services/keys"
	"github.com/R3E-Network/keyledger/internal/app/services/ledger"
	"github.com/R3E-Network/keyledger/internal/app/services/pricefeed"
	"github.com/R3E-Network/keyledger/internal/app/services/prompt"
	"github.com/R3E-Network/keyledger/internal/app/services/wagering"
	"github.com/R3E-Network/keyledger/internal/app/storage/memory"
	svcerrors "github.com/R3E-Network/keyledger/internal/errors"
	"github.com/R3E-Network/keyledger/pkg/logger"
)

// chatSession records replies on a channel.
type chatSession struct {
	id      string
	replies chan string
}

func newSession(id string) *chatSession {
	return &chatSession{id: id, replies: make(chan string, 16)}
}

func (s *chatSession) Identity() string { return s.id }

func (s *chatSession) Reply(_ context.Context, text string) error {
	s.replies <- text
	return nil
}

func (s *chatSession) next(t *testing.T) string {
	t.Helper()
	select {
	case r := <-s.replies:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("no reply")
		return ""
	}
}

type harness struct {
	d        *Dispatcher
	registry *keys.Registry
	accounts *accounts.Service
}

func newHarness(t *testing.T, limiter Limiter) *harness {
	t.Helper()
	log := logger.Discard()
	locks := keylock.New()
	users := memory.New()
	journal := ledger.NewJournal(memory.New(), 50, log)

	registry := keys.New(memory.New(), users, locks, log, keys.OnMigrate(journal.Move))
	accts := accounts.New(users, locks, log).WithBindings(registry.Bindings())
	prompts := prompt.NewController(time.Second, log)
	feed := pricefeed.FeedFunc(func(_ context.Context, sym string) (decimal.Decimal, error) {
		if sym == "BTC" {
			return decimal.NewFromInt(20), nil
		}
		return decimal.Zero, svcerrors.QuoteUnavailable(sym, nil)
	})

	svc := Services{
		Keys:     registry,
		Ledger:   ledger.New(accts, registry, journal, ledger.Config{Location: time.UTC}, log),
		Interest: interest.New(accts, prompts, journal, interest.DefaultRate, log),
		Invest:   invest.New(accts, feed, journal, invest.Config{Symbols: []string{"btc", "eth"}}, log),
		Wagering: wagering.New(accts, prompts, registry, journal, wagering.Config{Location: time.UTC}, log),
		Prompts:  prompts,
	}
	return &harness{d: NewDispatcher(svc, limiter, log).WithLocation(time.UTC), registry: registry, accounts: accts}
}

func (h *harness) exec(t *testing.T, s *chatSession, text string) string {
	t.Helper()
	require.NoError(t, h.d.Execute(context.Background(), s, text))
	return s.next(t)
}

func (h *harness) keyOf(t *testing.T, identity string) string {
	t.Helper()
	key, ok, err := h.registry.LookupKey(context.Background(), identity)
	require.NoError(t, err)
	require.True(t, ok)
	return key
}

func TestDispatcher_RequiresLogin(t *testing.T) {
	h := newHarness(t, nil)
	s := newSession("alice")

	assert.Contains(t, h.exec(t, s, "sign-in"), "Please log in first")
	assert.Contains(t, h.exec(t, s, "login 0000000000"), "does not exist")
	assert.Contains(t, h.exec(t, s, "dance"), "Unknown command")
}

func TestDispatcher_SharedKeyFlow(t *testing.T) {
	h := newHarness(t, nil)
	alice, bob := newSession("alice"), newSession("bob")

	reply := h.exec(t, alice, "generate-key")
	key := h.keyOf(t, "alice")
	assert.Contains(t, reply, key)
	assert.Equal(t, "Your key: "+key, h.exec(t, alice, "查看key"))

	assert.Contains(t, h.exec(t, alice, "签到"), "+10.00 points")
	assert.Contains(t, h.exec(t, alice, "sign-in"), "already signed in")

	assert.Contains(t, h.exec(t, bob, "login "+key), "Logged in")
	assert.Contains(t, h.exec(t, bob, "login "+key), "already logged in")
	assert.Contains(t, h.exec(t, bob, "my-points"), "Balance: 10.00")

	assert.Contains(t, h.exec(t, bob, "history"), "sign_in")
}

func TestDispatcher_TransferAndUsage(t *testing.T) {
	h := newHarness(t, nil)
	alice, bob := newSession("alice"), newSession("bob")
	h.exec(t, alice, "generate-key")
	h.exec(t, bob, "generate-key")
	h.exec(t, alice, "sign-in")
	bobKey := h.keyOf(t, "bob")

	assert.Equal(t, "Usage: transfer <key> <amount>", h.exec(t, alice, "transfer "+bobKey))
	assert.Contains(t, h.exec(t, alice, "transfer "+bobKey+" 50"), "Not enough points")
	assert.Contains(t, h.exec(t, alice, "transfer "+bobKey+" 4"), "Your balance: 6.00")
	assert.Contains(t, h.exec(t, bob, "my-points"), "Balance: 4.00")
	assert.Contains(t, h.exec(t, alice, "transfer 123 4"), "does not exist")
}

func TestDispatcher_SubmitRoutesAnswersToPrompt(t *testing.T) {
	h := newHarness(t, nil)
	alice := newSession("alice")
	h.exec(t, alice, "generate-key")
	h.exec(t, alice, "sign-in")

	assert.Contains(t, h.exec(t, alice, "deposit 5"), "Balance: 5.00")

	ctx := context.Background()
	h.d.Submit(ctx, alice, "withdraw-deposits")
	assert.Contains(t, alice.next(t), "Reply yes or no")

	h.d.Submit(ctx, alice, "maybe")
	assert.Equal(t, "Please reply yes or no.", alice.next(t))

	h.d.Submit(ctx, alice, "是")
	assert.Contains(t, alice.next(t), "Balance: 10.00")
	h.d.Wait()
}

func TestDispatcher_Investments(t *testing.T) {
	h := newHarness(t, nil)
	alice := newSession("alice")
	h.exec(t, alice, "generate-key")
	h.exec(t, alice, "sign-in")

	assert.Contains(t, h.exec(t, alice, "投资 btc 2"), "Balance: 6.00")
	assert.Contains(t, h.exec(t, alice, "invest eth 1"), "Could not get a price for ETH")

	portfolio := h.exec(t, alice, "我的投资")
	assert.Contains(t, portfolio, "BTC: 2")

	offers := h.exec(t, alice, "view-purchasable")
	assert.Contains(t, offers, "Available: 60.00 USDT")
	assert.Contains(t, offers, "BTC: 20 USDT, up to 3")
	assert.Contains(t, offers, "ETH: price unavailable")

	assert.Contains(t, h.exec(t, alice, "sell btc 3"), "do not hold that much")
	assert.Contains(t, h.exec(t, alice, "sell btc 2"), "Position closed.")
	assert.Contains(t, h.exec(t, alice, "sell btc 1"), "no BTC position")
}

type denyAll struct{}

func (denyAll) Allow(string) error { return svcerrors.RateLimited(1, "1s") }

func TestDispatcher_RateLimited(t *testing.T) {
	h := newHarness(t, denyAll{})
	assert.Equal(t, "Slow down a little, please.", h.exec(t, newSession("alice"), "help"))
}

func TestDispatcher_Help(t *testing.T) {
	h := newHarness(t, nil)
	reply := h.exec(t, newSession("alice"), "help")
	for _, name := range order {
		assert.True(t, strings.Contains(reply, Usage(name)), name)
	}
}

func TestRetiredKeyTellsMemberToLogInAgain(t *testing.T) {
	const old = "1234567890"
	assert.True(t, retired(svcerrors.InvalidKey(old), old))
	assert.False(t, retired(svcerrors.InvalidKey("0987654321"), old), "transfer target, not the caller's key")
	assert.False(t, retired(svcerrors.ErrInsufficientFunds, old))
	assert.False(t, retired(nil, old))

	err := svcerrors.NotAuthenticated("carol").WithDetails("retired", old)
	assert.Contains(t, Message(err, SignIn), "Key 1234567890 was replaced")
	assert.Contains(t, Message(svcerrors.NotAuthenticated("carol"), SignIn), "Please log in first")
}
