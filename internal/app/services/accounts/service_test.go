package accounts

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
	"github.com/R3E-Network/keyledger/internal/app/storage/memory"
	svcerrors "github.com/R3E-Network/keyledger/internal/errors"
	"github.com/R3E-Network/keyledger/pkg/logger"
)

func TestService_LoadMissingIsZero(t *testing.T) {
	svc := New(memory.New(), nil, logger.Discard())

	acct, err := svc.Load(context.Background(), "0000000001")
	require.NoError(t, err)
	assert.True(t, acct.IsEmpty())
}

func TestService_UpdateStampsAndSaves(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc := New(memory.New(), nil, logger.Discard()).WithClock(func() time.Time { return fixed })
	ctx := context.Background()

	saved, err := svc.Update(ctx, "k", func(a *account.Account) error {
		a.Balance = decimal.NewFromInt(7)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, fixed, saved.CreatedAt)
	assert.Equal(t, fixed, saved.UpdatedAt)

	loaded, err := svc.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "7", loaded.Balance.String())
}

func TestService_UpdateErrorSavesNothing(t *testing.T) {
	svc := New(memory.New(), nil, logger.Discard())
	ctx := context.Background()

	_, err := svc.Update(ctx, "k", func(a *account.Account) error {
		a.Balance = decimal.NewFromInt(100)
		return svcerrors.InvalidInput("amount", "nope")
	})
	require.ErrorIs(t, err, svcerrors.ErrInvalidInput)

	loaded, err := svc.Load(ctx, "k")
	require.NoError(t, err)
	assert.True(t, loaded.Balance.IsZero())
}

func TestService_ConcurrentUpdatesSerialize(t *testing.T) {
	svc := New(memory.New(), nil, logger.Discard())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Update(ctx, "k", func(a *account.Account) error {
				a.Balance = a.Balance.Add(decimal.NewFromInt(1))
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	loaded, err := svc.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "100", loaded.Balance.String())
}

type failingStore struct {
	*memory.Store
}

func (failingStore) Set(context.Context, string, []byte) error {
	return errors.New("disk full")
}

func TestService_StorageErrorsAreWrapped(t *testing.T) {
	svc := New(failingStore{memory.New()}, nil, logger.Discard())

	_, err := svc.Update(context.Background(), "k", func(*account.Account) error { return nil })
	require.Error(t, err)
	assert.Equal(t, svcerrors.CodeStorageFailure, svcerrors.CodeOf(err))
}

type boundSet map[string]bool

func (b boundSet) Bound(_ context.Context, key string) (bool, error) { return b[key], nil }

func TestService_WithBindingsRejectsRetiredKeys(t *testing.T) {
	store := memory.New()
	svc := New(store, nil, logger.Discard()).WithBindings(boundSet{"live": true})
	ctx := context.Background()

	_, err := svc.Update(ctx, "live", func(a *account.Account) error {
		a.Balance = decimal.NewFromInt(5)
		return nil
	})
	require.NoError(t, err)

	ran := false
	_, err = svc.Update(ctx, "gone", func(a *account.Account) error {
		ran = true
		a.Balance = decimal.NewFromInt(5)
		return nil
	})
	require.ErrorIs(t, err, svcerrors.ErrInvalidKey)
	assert.False(t, ran)

	err = svc.WithLocked(ctx, []string{"live", "gone"}, func(*Tx) error {
		ran = true
		return nil
	})
	require.ErrorIs(t, err, svcerrors.ErrInvalidKey)
	assert.Equal(t, "gone", svcerrors.GetServiceError(err).Details["key"])
	assert.False(t, ran)

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"live"}, keys)
}
