// Package config loads keyledger configuration from YAML, .env files and
// KEYLEDGER_* environment variables, in that order of precedence (lowest first).
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/R3E-Network/keyledger/pkg/logger"
)

// Config is the root configuration document.
type Config struct {
	Server    ServerConfig         `yaml:"server"`
	Logging   logger.LoggingConfig `yaml:"logging"`
	Storage   StorageConfig        `yaml:"storage"`
	Ledger    LedgerConfig         `yaml:"ledger"`
	Interest  InterestConfig       `yaml:"interest"`
	Invest    InvestConfig         `yaml:"invest"`
	Games     GamesConfig          `yaml:"games"`
	Prompt    PromptConfig         `yaml:"prompt"`
	RateLimit RateLimitConfig      `yaml:"rate_limit"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"KEYLEDGER_HTTP_ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"KEYLEDGER_HTTP_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"KEYLEDGER_HTTP_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"KEYLEDGER_HTTP_SHUTDOWN_TIMEOUT"`
	// AllowedOrigins gates CORS and websocket upgrades. Empty allows same-origin only.
	AllowedOrigins []string `yaml:"allowed_origins" env:"KEYLEDGER_HTTP_ALLOWED_ORIGINS"`
}

type StorageConfig struct {
	// Backend is one of memory, redis or postgres.
	Backend  string         `yaml:"backend" env:"KEYLEDGER_STORAGE_BACKEND"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"KEYLEDGER_REDIS_ADDR"`
	Password string `yaml:"password" env:"KEYLEDGER_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"KEYLEDGER_REDIS_DB"`
	Prefix   string `yaml:"prefix" env:"KEYLEDGER_REDIS_PREFIX"`
}

type PostgresConfig struct {
	DSN          string `yaml:"dsn" env:"KEYLEDGER_POSTGRES_DSN"`
	MaxOpenConns int    `yaml:"max_open_conns" env:"KEYLEDGER_POSTGRES_MAX_OPEN_CONNS"`
	Migrate      bool   `yaml:"migrate" env:"KEYLEDGER_POSTGRES_MIGRATE"`
}

type LedgerConfig struct {
	SignInBase   float64 `yaml:"sign_in_base" env:"KEYLEDGER_SIGN_IN_BASE"`
	JournalLimit int     `yaml:"journal_limit" env:"KEYLEDGER_JOURNAL_LIMIT"`
	// Timezone decides where calendar days start for sign-in and draw-card.
	Timezone string `yaml:"timezone" env:"KEYLEDGER_TIMEZONE"`
}

type InterestConfig struct {
	DailyRate float64 `yaml:"daily_rate" env:"KEYLEDGER_INTEREST_DAILY_RATE"`
}

type InvestConfig struct {
	ExchangeRate float64       `yaml:"exchange_rate" env:"KEYLEDGER_EXCHANGE_RATE"`
	Symbols      []string      `yaml:"symbols" env:"KEYLEDGER_INVEST_SYMBOLS"`
	QuoteURL     string        `yaml:"quote_url" env:"KEYLEDGER_QUOTE_URL"`
	QuoteTimeout time.Duration `yaml:"quote_timeout" env:"KEYLEDGER_QUOTE_TIMEOUT"`
	QuoteRPS     float64       `yaml:"quote_rps" env:"KEYLEDGER_QUOTE_RPS"`
	QuoteBurst   int           `yaml:"quote_burst" env:"KEYLEDGER_QUOTE_BURST"`
	CacheTTL     time.Duration `yaml:"cache_ttl" env:"KEYLEDGER_QUOTE_CACHE_TTL"`
	// WarmSchedule is a cron spec for refreshing cached quotes of Symbols.
	// An empty schedule disables warming.
	WarmSchedule string `yaml:"warm_schedule" env:"KEYLEDGER_QUOTE_WARM_SCHEDULE"`
}

type GamesConfig struct {
	TiePenalty float64 `yaml:"tie_penalty" env:"KEYLEDGER_TIE_PENALTY"`
}

type PromptConfig struct {
	Timeout time.Duration `yaml:"timeout" env:"KEYLEDGER_PROMPT_TIMEOUT"`
}

type RateLimitConfig struct {
	CommandsPerSecond int `yaml:"commands_per_second" env:"KEYLEDGER_COMMANDS_PER_SECOND"`
	Burst             int `yaml:"burst" env:"KEYLEDGER_COMMANDS_BURST"`
}

// Load reads path (when non-empty), applies environment overrides and
// defaults, then validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads variables from a .env file. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env (%s): %w", path, err)
	}
	return nil
}

// Location resolves Ledger.Timezone. Empty means UTC; "Local" is the host zone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Ledger.Timezone {
	case "", "UTC":
		return time.UTC, nil
	case "Local":
		return time.Local, nil
	default:
		return time.LoadLocation(c.Ledger.Timezone)
	}
}
