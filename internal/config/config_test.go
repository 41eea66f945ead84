package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LEDGER_DATA_DIR", dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, filepath.Join(dir, "ledger.db"), cfg.DatabasePath())
	assert.False(t, cfg.Backup.Enabled())
	assert.Equal(t, "0 30 3 * * *", cfg.Schedule.ReconcileHoldings)
}

func TestLoad_FileThenEnvironment(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "ledger.toml")
	require.NoError(t, os.WriteFile(file, []byte(`
data_dir = "`+filepath.ToSlash(dir)+`"
log_level = "debug"

[database]
driver = "sqlite3"

[yahoo]
rate_limit = 5.0

[backup]
bucket = "ledger"
endpoint = "https://example.r2.cloudflarestorage.com"
access_key = "key"
secret_key = "secret"
`), 0644))

	t.Setenv("LEDGER_CONFIG_FILE", file)
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel, "environment overrides the file")
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, 5.0, cfg.Yahoo.RateLimit)
	assert.True(t, cfg.Backup.Enabled())
	assert.Equal(t, "ledger-backups", cfg.Backup.Prefix, "unset keys keep defaults")
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("LEDGER_DATA_DIR", t.TempDir())
	t.Setenv("LEDGER_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"unknown driver", func(c *Config) { c.Database.Driver = "postgres" }, true},
		{"zero rate limit", func(c *Config) { c.Yahoo.RateLimit = 0 }, true},
		{"bad schedule", func(c *Config) { c.Schedule.PriceBackfill = "every day" }, true},
		{"disabled schedule", func(c *Config) { c.Schedule.LedgerBackup = "" }, false},
		{"half credentials", func(c *Config) {
			c.Backup.Bucket = "b"
			c.Backup.AccessKey = "k"
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
