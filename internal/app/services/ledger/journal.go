package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/R3E-Network/keyledger/internal/app/domain/account"
	"github.com/R3E-Network/keyledger/internal/app/storage"
	svcerrors "github.com/R3E-Network/keyledger/internal/errors"
	"github.com/R3E-Network/keyledger/pkg/logger"
)

// DefaultJournalLimit caps the entries kept per key.
const DefaultJournalLimit = 50

// Journal keeps a capped, append-only history of balance movements per key.
// Writes are best effort: a failure is logged and never undoes the account
// change it describes.
type Journal struct {
	mu    sync.Mutex
	store storage.Store
	limit int
	now   func() time.Time
	log   *logger.Logger
}

func NewJournal(store storage.Store, limit int, log *logger.Logger) *Journal {
	if limit <= 0 {
		limit = DefaultJournalLimit
	}
	if log == nil {
		log = logger.NewDefault("journal")
	}
	return &Journal{store: store, limit: limit, now: time.Now, log: log}
}

// Record appends an entry for key.
func (j *Journal) Record(ctx context.Context, key string, kind account.EntryKind, amount, balanceAfter decimal.Decimal, reference string) {
	if j == nil {
		return
	}
	entry := account.JournalEntry{
		ID:           uuid.NewString(),
		Key:          key,
		Kind:         kind,
		Amount:       amount,
		BalanceAfter: balanceAfter,
		Reference:    reference,
		CreatedAt:    j.now().UTC(),
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	var entries []account.JournalEntry
	if _, err := storage.GetJSON(ctx, j.store, key, &entries); err != nil {
		j.log.WithError(err).WithField("key", key).Warn("journal read failed; entry dropped")
		return
	}
	entries = append(entries, entry)
	if len(entries) > j.limit {
		entries = entries[len(entries)-j.limit:]
	}
	if err := storage.SetJSON(ctx, j.store, key, entries); err != nil {
		j.log.WithError(err).WithField("key", key).WithField("kind", kind).Warn("journal write failed")
	}
}

// Recent returns up to n entries, newest first. n <= 0 returns all kept entries.
func (j *Journal) Recent(ctx context.Context, key string, n int) ([]account.JournalEntry, error) {
	var entries []account.JournalEntry
	if _, err := storage.GetJSON(ctx, j.store, key, &entries); err != nil {
		return nil, svcerrors.AsStorage("read journal", err)
	}
	out := make([]account.JournalEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
		if n > 0 && len(out) == n {
			break
		}
	}
	return out, nil
}

// Move re-homes a key's journal, used when a key is migrated.
func (j *Journal) Move(ctx context.Context, from, to string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	raw, err := j.store.Get(ctx, from)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return svcerrors.AsStorage("read journal", err)
	}
	if err := j.store.Set(ctx, to, raw); err != nil {
		return svcerrors.AsStorage("write journal", err)
	}
	if err := j.store.Delete(ctx, from); err != nil {
		return svcerrors.AsStorage("delete journal", err)
	}
	return nil
}
