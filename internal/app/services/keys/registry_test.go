package keys

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/keyledger/internal/app/domain/account"
	"github.com/R3E-Network/keyledger/internal/app/keylock"
	"github.com/R3E-Network/keyledger/internal/app/storage"
	"github.com/R3E-Network/keyledger/internal/app/storage/memory"
	svcerrors "github.com/R3E-Network/keyledger/internal/errors"
	"github.com/R3E-Network/keyledger/pkg/logger"
)

type fixture struct {
	reg      *Registry
	bindings *memory.Store
	accounts *memory.Store
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()
	bindings, accounts := memory.New(), memory.New()
	return fixture{
		reg:      New(bindings, accounts, keylock.New(), logger.Discard(), opts...),
		bindings: bindings,
		accounts: accounts,
	}
}

func (f fixture) putAccount(t *testing.T, key string, acct account.Account) {
	t.Helper()
	require.NoError(t, storage.SetJSON(context.Background(), f.accounts, key, acct))
}

func TestBindNewKey_FreshIdentity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.reg.BindNewKey(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ValidKey(res.Key))
	assert.Empty(t, res.Previous)

	key, ok, err := f.reg.LookupKey(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, res.Key, key)
}

func TestBindNewKey_SkipsCollisions(t *testing.T) {
	ctx := context.Background()
	src := bytes.NewReader([]byte{0, 0, 0, 0, 1, 0, 0, 0, 0, 2})
	f := newFixture(t, WithRandom(src))
	require.NoError(t, storage.SetJSON(ctx, f.bindings, "0000000001", []string{"bob"}))

	res, err := f.reg.BindNewKey(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "0000000002", res.Key)
}

func TestBindNewKey_MigratesAccountAndRetiresOldKey(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.reg.BindNewKey(ctx, "alice")
	require.NoError(t, err)
	outcome, err := f.reg.JoinKey(ctx, "bob", first.Key)
	require.NoError(t, err)
	require.Equal(t, JoinJoined, outcome)
	f.putAccount(t, first.Key, account.Account{Balance: decimal.NewFromInt(42)})

	second, err := f.reg.BindNewKey(ctx, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, first.Key, second.Key)
	assert.Equal(t, first.Key, second.Previous)
	assert.Equal(t, []string{"bob"}, second.Unbound)

	var moved account.Account
	found, err := storage.GetJSON(ctx, f.accounts, second.Key, &moved)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "42", moved.Balance.String())

	_, err = f.accounts.Get(ctx, first.Key)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = f.bindings.Get(ctx, first.Key)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, ok, err := f.reg.LookupKey(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, ok, "bob must log in again")
}

func TestJoinKey_Outcomes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.reg.BindNewKey(ctx, "alice")
	require.NoError(t, err)

	tests := []struct {
		name     string
		identity string
		key      string
		want     JoinOutcome
	}{
		{name: "malformed", identity: "bob", key: "12ab", want: JoinInvalid},
		{name: "unknown", identity: "bob", key: "9999999999", want: JoinInvalid},
		{name: "holder", identity: "alice", key: res.Key, want: JoinAlreadyBound},
		{name: "join", identity: "bob", key: res.Key, want: JoinJoined},
		{name: "again", identity: "bob", key: res.Key, want: JoinAlreadyBound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.reg.JoinKey(ctx, tt.identity, tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	ids, err := f.reg.Identities(ctx, res.Key)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, ids)
}

func TestJoinKey_LeavesSharedKey(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a, err := f.reg.BindNewKey(ctx, "alice")
	require.NoError(t, err)
	b, err := f.reg.BindNewKey(ctx, "bob")
	require.NoError(t, err)
	_, err = f.reg.JoinKey(ctx, "carol", a.Key)
	require.NoError(t, err)

	out, err := f.reg.JoinKey(ctx, "carol", b.Key)
	require.NoError(t, err)
	assert.Equal(t, JoinJoined, out)

	ids, err := f.reg.Identities(ctx, a.Key)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, ids)
}

func TestJoinKey_SoleHolderWithValueIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a, err := f.reg.BindNewKey(ctx, "alice")
	require.NoError(t, err)
	b, err := f.reg.BindNewKey(ctx, "bob")
	require.NoError(t, err)
	f.putAccount(t, a.Key, account.Account{Balance: decimal.NewFromInt(5)})

	out, err := f.reg.JoinKey(ctx, "alice", b.Key)
	require.ErrorIs(t, err, svcerrors.ErrKeyInUse)
	assert.Equal(t, JoinInvalid, out)

	key, ok, err := f.reg.LookupKey(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, a.Key, key)
	ids, err := f.reg.Identities(ctx, b.Key)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, ids)
}

func TestJoinKey_SoleHolderWithEmptyAccountRetiresKey(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a, err := f.reg.BindNewKey(ctx, "alice")
	require.NoError(t, err)
	b, err := f.reg.BindNewKey(ctx, "bob")
	require.NoError(t, err)
	f.putAccount(t, a.Key, account.Account{})

	out, err := f.reg.JoinKey(ctx, "alice", b.Key)
	require.NoError(t, err)
	assert.Equal(t, JoinJoined, out)

	registered, err := f.reg.Registered(ctx, a.Key)
	require.NoError(t, err)
	assert.False(t, registered)
	_, err = f.accounts.Get(ctx, a.Key)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestJoinKey_ConcurrentJoinsAllLand(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.reg.BindNewKey(ctx, "owner")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := f.reg.JoinKey(ctx, fmt.Sprintf("user-%d", i), res.Key)
			assert.NoError(t, err)
			assert.Equal(t, JoinJoined, out)
		}(i)
	}
	wg.Wait()

	ids, err := f.reg.Identities(ctx, res.Key)
	require.NoError(t, err)
	assert.Len(t, ids, 21)
}

func TestValidKey(t *testing.T) {
	assert.True(t, ValidKey("0123456789"))
	assert.False(t, ValidKey("123456789"))
	assert.False(t, ValidKey("12345678901"))
	assert.False(t, ValidKey("12345abcde"))
}

func TestBindings_FollowMigration(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	bindings := f.reg.Bindings()

	first, err := f.reg.BindNewKey(ctx, "alice")
	require.NoError(t, err)
	bound, err := bindings.Bound(ctx, first.Key)
	require.NoError(t, err)
	assert.True(t, bound)

	second, err := f.reg.BindNewKey(ctx, "alice")
	require.NoError(t, err)
	bound, err = bindings.Bound(ctx, first.Key)
	require.NoError(t, err)
	assert.False(t, bound, "retired key")
	bound, err = bindings.Bound(ctx, second.Key)
	require.NoError(t, err)
	assert.True(t, bound)

	bound, err = bindings.Bound(ctx, "not-a-key")
	require.NoError(t, err)
	assert.False(t, bound)
}
