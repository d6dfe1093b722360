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
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost:8084", cfg.Address())
	assert.Equal(t, "sqlite3", cfg.Store.Driver)
	assert.Equal(t, "gemini", cfg.Insights.Provider)
	assert.Equal(t, 1000, cfg.Insights.MaxTransactions)
	assert.Empty(t, cfg.Insights.APIKey)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("CSV_FILE", "sales.csv")
	t.Setenv("INSIGHTS_PROVIDER", "openai")
	t.Setenv("INSIGHTS_TIMEOUT", "5s")
	t.Setenv("SECURITY_ALLOWED_ORIGINS", "http://a.test, http://b.test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "sales.csv", cfg.Store.CSVFile)
	assert.Equal(t, "openai", cfg.Insights.Provider)
	assert.Equal(t, 5*time.Second, cfg.Insights.Timeout)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Security.AllowedOrigins)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 7000
  write_timeout: 90s
store:
  driver: mysql
  dsn: mysql://user:pass@db:3306/shop
insights:
  model: gemini-2.5-pro
  retries: 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("INSIGHTS_RETRIES", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, 90*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, "mysql", cfg.Store.Driver)
	assert.Equal(t, "gemini-2.5-pro", cfg.Insights.Model)
	assert.Equal(t, 0, cfg.Insights.Retries)
	// untouched sections keep their defaults
	assert.Equal(t, "info", cfg.Logger.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := Load()
	assert.ErrorContains(t, err, "read config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }, "server port"},
		{"driver", func(c *Config) { c.Store.Driver = "postgres" }, "invalid store driver"},
		{"memory without csv", func(c *Config) { c.Store.Driver = "memory" }, "CSV file"},
		{"empty dsn", func(c *Config) { c.Store.DSN = "" }, "DSN"},
		{"log level", func(c *Config) { c.Logger.Level = "trace" }, "log level"},
		{"provider", func(c *Config) { c.Insights.Provider = "local" }, "insights provider"},
		{"timeout", func(c *Config) { c.Insights.Timeout = 0 }, "insights timeout"},
		{"retries", func(c *Config) { c.Insights.Retries = -1 }, "retries"},
		{"max transactions", func(c *Config) { c.Insights.MaxTransactions = 0 }, "max transactions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
