package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultHTTPAddr        = ":8080"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultBackend         = BackendMemory
	DefaultRedisPrefix     = "keyledger"
	DefaultMaxOpenConns    = 10
	DefaultSignInBase      = 10
	DefaultJournalLimit    = 50
	DefaultDailyRate       = 0.05
	DefaultExchangeRate    = 10
	DefaultQuoteURL        = "https://api.huobi.pro"
	DefaultQuoteTimeout    = 10 * time.Second
	DefaultQuoteRPS        = 5
	DefaultQuoteBurst      = 5
	DefaultCacheTTL        = 15 * time.Second
	DefaultWarmSchedule    = "@every 1m"
	DefaultTiePenalty      = 10
	DefaultPromptTimeout   = 30 * time.Second
	DefaultCommandsPerSec  = 5
	DefaultCommandsBurst   = 10
	DefaultTimezone        = "UTC"
)

// DefaultSymbols are offered by view-purchasable when none are configured.
var DefaultSymbols = []string{"btc", "eth", "bnb", "ton", "doge"}

func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultHTTPAddr
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = DefaultReadTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Storage defaults
	if c.Storage.Backend == "" {
		c.Storage.Backend = DefaultBackend
	}
	if c.Storage.Redis.Prefix == "" {
		c.Storage.Redis.Prefix = DefaultRedisPrefix
	}
	if c.Storage.Postgres.MaxOpenConns == 0 {
		c.Storage.Postgres.MaxOpenConns = DefaultMaxOpenConns
	}

	// Ledger defaults
	if c.Ledger.SignInBase == 0 {
		c.Ledger.SignInBase = DefaultSignInBase
	}
	if c.Ledger.Timezone == "" {
		c.Ledger.Timezone = DefaultTimezone
	}
	if c.Ledger.JournalLimit == 0 {
		c.Ledger.JournalLimit = DefaultJournalLimit
	}
	if c.Interest.DailyRate == 0 {
		c.Interest.DailyRate = DefaultDailyRate
	}

	// Investment defaults
	if c.Invest.ExchangeRate == 0 {
		c.Invest.ExchangeRate = DefaultExchangeRate
	}
	if len(c.Invest.Symbols) == 0 {
		c.Invest.Symbols = append([]string(nil), DefaultSymbols...)
	}
	if c.Invest.QuoteURL == "" {
		c.Invest.QuoteURL = DefaultQuoteURL
	}
	if c.Invest.QuoteTimeout == 0 {
		c.Invest.QuoteTimeout = DefaultQuoteTimeout
	}
	if c.Invest.QuoteRPS == 0 {
		c.Invest.QuoteRPS = DefaultQuoteRPS
	}
	if c.Invest.QuoteBurst == 0 {
		c.Invest.QuoteBurst = DefaultQuoteBurst
	}
	if c.Invest.CacheTTL == 0 {
		c.Invest.CacheTTL = DefaultCacheTTL
	}
	if c.Invest.WarmSchedule == "" {
		c.Invest.WarmSchedule = DefaultWarmSchedule
	}

	// Game and prompt defaults
	if c.Games.TiePenalty == 0 {
		c.Games.TiePenalty = DefaultTiePenalty
	}
	if c.Prompt.Timeout == 0 {
		c.Prompt.Timeout = DefaultPromptTimeout
	}
	if c.RateLimit.CommandsPerSecond == 0 {
		c.RateLimit.CommandsPerSecond = DefaultCommandsPerSec
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = DefaultCommandsBurst
	}
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}
