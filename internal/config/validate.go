package config

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Storage.Redis.Addr == "" {
			return fmt.Errorf("storage.redis.addr is required")
		}
	case BackendPostgres:
		if c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn is required")
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of memory, redis, postgres", c.Storage.Backend)
	}

	if c.Ledger.SignInBase < 0 {
		return fmt.Errorf("ledger.sign_in_base must not be negative")
	}
	if c.Interest.DailyRate < 0 {
		return fmt.Errorf("interest.daily_rate must not be negative")
	}
	if c.Invest.ExchangeRate <= 0 {
		return fmt.Errorf("invest.exchange_rate must be positive")
	}
	if c.Games.TiePenalty < 0 {
		return fmt.Errorf("games.tie_penalty must not be negative")
	}
	if c.Prompt.Timeout < time.Second {
		return fmt.Errorf("prompt.timeout (%s) must be at least 1s", c.Prompt.Timeout)
	}
	if c.Invest.WarmSchedule != "" {
		if _, err := cron.ParseStandard(c.Invest.WarmSchedule); err != nil {
			return fmt.Errorf("invest.warm_schedule: %w", err)
		}
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("ledger.timezone: %w", err)
	}
	return nil
}
