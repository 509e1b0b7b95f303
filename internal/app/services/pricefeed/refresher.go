package pricefeed

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/R3E-Network/keyledger/internal/app/system"
	"github.com/R3E-Network/keyledger/pkg/logger"
)

var _ system.Service = (*Refresher)(nil)

// Refresher re-quotes a fixed symbol list on a cron schedule so interactive
// commands usually hit a warm cache.
type Refresher struct {
	cache    *CachedFeed
	symbols  []string
	schedule string
	timeout  time.Duration
	log      *logger.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewRefresher creates a lifecycle-managed refresher. schedule uses standard
// cron syntax or descriptors such as "@every 1m".
func NewRefresher(cache *CachedFeed, symbols []string, schedule string, log *logger.Logger) *Refresher {
	if log == nil {
		log = logger.NewDefault("pricefeed-refresher")
	}
	normalized := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		n, err := NormalizeSymbol(sym)
		if err != nil {
			log.WithField("symbol", sym).Warn("skipping invalid refresh symbol")
			continue
		}
		normalized = append(normalized, n)
	}
	return &Refresher{
		cache:    cache,
		symbols:  normalized,
		schedule: schedule,
		timeout:  10 * time.Second,
		log:      log,
	}
}

func (r *Refresher) Name() string { return "pricefeed-refresher" }

func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(r.schedule, func() { r.tick(context.Background()) }); err != nil {
		return err
	}
	c.Start()
	r.cron = c
	r.running = true

	r.log.WithField("schedule", r.schedule).WithField("symbols", len(r.symbols)).Info("price refresher started")
	return nil
}

func (r *Refresher) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	c := r.cron
	r.running = false
	r.cron = nil
	r.mu.Unlock()

	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	r.log.Info("price refresher stopped")
	return nil
}

func (r *Refresher) tick(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	for _, sym := range r.symbols {
		if _, err := r.cache.Refresh(ctx, sym); err != nil {
			r.log.WithError(err).WithField("symbol", sym).Debug("price refresh failed")
		}
	}
}
