package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultHTTPAddr, cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, 0.05, cfg.Interest.DailyRate)
	assert.Equal(t, float64(10), cfg.Invest.ExchangeRate)
	assert.Equal(t, float64(10), cfg.Games.TiePenalty)
	assert.Equal(t, 30*time.Second, cfg.Prompt.Timeout)
	assert.Equal(t, []string{"btc", "eth", "bnb", "ton", "doge"}, cfg.Invest.Symbols)
	assert.Equal(t, 50, cfg.Ledger.JournalLimit)

	assert.Equal(t, "UTC", cfg.Ledger.Timezone)
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLocation_EmptyIsUTC(t *testing.T) {
	loc, err := (&Config{}).Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	loc, err = (&Config{Ledger: LedgerConfig{Timezone: "Local"}}).Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}

func TestLoad_YAMLAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keyledger.yaml")
	doc := `
server:
  addr: ":9090"
storage:
  backend: redis
  redis:
    addr: "localhost:6379"
interest:
  daily_rate: 0.1
prompt:
  timeout: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	t.Setenv("KEYLEDGER_TIE_PENALTY", "25")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "redis", cfg.Storage.Backend)
	assert.Equal(t, "localhost:6379", cfg.Storage.Redis.Addr)
	assert.Equal(t, 0.1, cfg.Interest.DailyRate)
	assert.Equal(t, 5*time.Second, cfg.Prompt.Timeout)
	assert.Equal(t, float64(25), cfg.Games.TiePenalty)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, LoadDotEnv(filepath.Join(dir, "absent.env")))

	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("KEYLEDGER_TEST_DOTENV=loaded\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("KEYLEDGER_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "loaded", os.Getenv("KEYLEDGER_TEST_DOTENV"))
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := &Config{}
		c.applyDefaults()
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "unknown backend", mutate: func(c *Config) { c.Storage.Backend = "mongo" }, wantErr: true},
		{name: "redis without addr", mutate: func(c *Config) { c.Storage.Backend = "redis" }, wantErr: true},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Storage.Backend = "postgres" }, wantErr: true},
		{name: "postgres with dsn", mutate: func(c *Config) {
			c.Storage.Backend = "postgres"
			c.Storage.Postgres.DSN = "postgres://localhost/keyledger"
		}},
		{name: "negative rate", mutate: func(c *Config) { c.Interest.DailyRate = -1 }, wantErr: true},
		{name: "negative exchange rate", mutate: func(c *Config) { c.Invest.ExchangeRate = -1 }, wantErr: true},
		{name: "negative penalty", mutate: func(c *Config) { c.Games.TiePenalty = -5 }, wantErr: true},
		{name: "short prompt timeout", mutate: func(c *Config) { c.Prompt.Timeout = time.Millisecond }, wantErr: true},
		{name: "bad cron", mutate: func(c *Config) { c.Invest.WarmSchedule = "every now and then" }, wantErr: true},
		{name: "bad timezone", mutate: func(c *Config) { c.Ledger.Timezone = "Mars/Olympus" }, wantErr: true},
		{name: "utc timezone", mutate: func(c *Config) { c.Ledger.Timezone = "UTC" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
