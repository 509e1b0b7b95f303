package app

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/R3E-Network/keyledger/internal/app/commands"
	"github.com/R3E-Network/keyledger/internal/app/keylock"
	"github.com/R3E-Network/keyledger/internal/app/services/accounts"
	"github.com/R3E-Network/keyledger/internal/app/services/interest"
	"github.com/R3E-Network/keyledger/internal/app/services/invest"
	"github.com/R3E-Network/keyledger/internal/app/services/keys"
	"github.com/R3E-Network/keyledger/internal/app/services/ledger"
	"github.com/R3E-Network/keyledger/internal/app/services/pricefeed"
	"github.com/R3E-Network/keyledger/internal/app/services/prompt"
	"github.com/R3E-Network/keyledger/internal/app/services/wagering"
	"github.com/R3E-Network/keyledger/internal/app/storage"
	"github.com/R3E-Network/keyledger/internal/app/storage/memory"
	"github.com/R3E-Network/keyledger/internal/app/system"
	"github.com/R3E-Network/keyledger/internal/config"
	"github.com/R3E-Network/keyledger/internal/httputil"
	"github.com/R3E-Network/keyledger/internal/middleware"
	"github.com/R3E-Network/keyledger/pkg/logger"
)

// Stores encapsulates persistence dependencies, one per namespace. Nil stores
// default to the in-memory implementation.
type Stores struct {
	Keys    storage.Store
	Users   storage.Store
	Journal storage.Store
}

// Option customises New.
type Option func(*options)

type options struct {
	feed pricefeed.Feed
}

// WithFeed replaces the HTTP price feed. The feed is still cached.
func WithFeed(feed pricefeed.Feed) Option {
	return func(o *options) { o.feed = feed }
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Keys     *keys.Registry
	Accounts *accounts.Service
	Journal  *ledger.Journal
	Ledger   *ledger.Service
	Interest *interest.Service
	Invest   *invest.Service
	Wagering *wagering.Engine
	Prompts  *prompt.Controller
	Quotes   *pricefeed.CachedFeed
	Limiter  *middleware.RateLimiter
	Commands *commands.Dispatcher
}

// New builds a fully initialised application. A nil cfg uses the defaults.
func New(cfg *config.Config, stores Stores, log *logger.Logger, opts ...Option) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = logger.NewDefault("app")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if stores.Keys == nil {
		stores.Keys = memory.New()
	}
	if stores.Users == nil {
		stores.Users = memory.New()
	}
	if stores.Journal == nil {
		stores.Journal = memory.New()
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("resolve timezone: %w", err)
	}

	locks := keylock.New()
	journal := ledger.NewJournal(stores.Journal, cfg.Ledger.JournalLimit, log.Named("journal"))
	registry := keys.New(stores.Keys, stores.Users, locks, log.Named("keys"), keys.OnMigrate(journal.Move))
	accts := accounts.New(stores.Users, locks, log.Named("accounts")).WithBindings(registry.Bindings())
	prompts := prompt.NewController(cfg.Prompt.Timeout, log.Named("prompt"))

	feed := o.feed
	if feed == nil {
		client := httputil.NewClient(httputil.ClientConfig{
			BaseURL: cfg.Invest.QuoteURL,
			Timeout: cfg.Invest.QuoteTimeout,
			RPS:     cfg.Invest.QuoteRPS,
			Burst:   cfg.Invest.QuoteBurst,
		})
		feed = pricefeed.NewHTTPFeed(client, log.Named("pricefeed"))
	}
	quotes := pricefeed.NewCachedFeed(feed, cfg.Invest.CacheTTL)

	ledgerSvc := ledger.New(accts, registry, journal, ledger.Config{
		SignInBase: decimal.NewFromFloat(cfg.Ledger.SignInBase),
		Location:   loc,
	}, log.Named("ledger"))
	interestSvc := interest.New(accts, prompts, journal, decimal.NewFromFloat(cfg.Interest.DailyRate), log.Named("interest"))
	investSvc := invest.New(accts, quotes, journal, invest.Config{
		ExchangeRate: decimal.NewFromFloat(cfg.Invest.ExchangeRate),
		Symbols:      cfg.Invest.Symbols,
	}, log.Named("invest"))
	engine := wagering.New(accts, prompts, registry, journal, wagering.Config{
		TiePenalty: decimal.NewFromFloat(cfg.Games.TiePenalty),
		Location:   loc,
	}, log.Named("wagering"))

	limiter := middleware.NewRateLimiter(cfg.RateLimit.CommandsPerSecond, cfg.RateLimit.Burst, log.Named("ratelimit"))
	dispatcher := commands.NewDispatcher(commands.Services{
		Keys:     registry,
		Ledger:   ledgerSvc,
		Interest: interestSvc,
		Invest:   investSvc,
		Wagering: engine,
		Prompts:  prompts,
	}, limiter, log.Named("commands")).WithLocation(loc)

	manager := system.NewManager()
	services := []system.Service{limiter}
	if cfg.Invest.WarmSchedule != "" && len(cfg.Invest.Symbols) > 0 {
		services = append(services, pricefeed.NewRefresher(quotes, cfg.Invest.Symbols, cfg.Invest.WarmSchedule, log.Named("pricefeed")))
	}
	for _, svc := range services {
		if err := manager.Register(svc); err != nil {
			return nil, fmt.Errorf("register %s: %w", svc.Name(), err)
		}
	}

	return &Application{
		manager:  manager,
		log:      log,
		Keys:     registry,
		Accounts: accts,
		Journal:  journal,
		Ledger:   ledgerSvc,
		Interest: interestSvc,
		Invest:   investSvc,
		Wagering: engine,
		Prompts:  prompts,
		Quotes:   quotes,
		Limiter:  limiter,
		Commands: dispatcher,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services, then waits for in-flight commands.
func (a *Application) Stop(ctx context.Context) error {
	err := a.manager.Stop(ctx)
	a.Commands.Wait()
	return err
}
