// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aristath/sentinel-ledger/internal/database"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config holds application configuration
type Config struct {
	DataDir  string         `toml:"data_dir"` // Base directory for the ledger database and backup staging (always absolute)
	LogLevel string         `toml:"log_level"`
	DevMode  bool           `toml:"dev_mode"` // Human-readable console logs
	Database DatabaseConfig `toml:"database"`
	Yahoo    YahooConfig    `toml:"yahoo"`
	Rates    RatesConfig    `toml:"rates"`
	Pricing  PricingConfig  `toml:"pricing"`
	Schedule ScheduleConfig `toml:"schedule"`
	Backup   BackupConfig   `toml:"backup"`
}

// DatabaseConfig selects the SQLite driver and file
type DatabaseConfig struct {
	Driver string `toml:"driver"` // "sqlite" (modernc, default) or "sqlite3" (cgo)
	File   string `toml:"file"`   // Relative to DataDir unless absolute
}

// YahooConfig configures the historical price client
type YahooConfig struct {
	BaseURL        string  `toml:"base_url"`
	RateLimit      float64 `toml:"rate_limit"` // requests per second
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// RatesConfig configures the daily exchange-rate sync
type RatesConfig struct {
	BaseURL string `toml:"base_url"`
}

// PricingConfig configures historical price priming
type PricingConfig struct {
	LockTTLSeconds      int `toml:"lock_ttl_seconds"`
	PrimeTimeoutSeconds int `toml:"prime_timeout_seconds"`
	StaleAfterHours     int `toml:"stale_after_hours"` // Backfill securities not synced within this window
}

// ScheduleConfig holds cron expressions (with seconds) for background jobs.
// An empty expression disables the job.
type ScheduleConfig struct {
	ReconcileHoldings string `toml:"reconcile_holdings"`
	PriceBackfill     string `toml:"price_backfill"`
	RateSync          string `toml:"rate_sync"`
	LockCleanup       string `toml:"lock_cleanup"`
	LedgerBackup      string `toml:"ledger_backup"`
	Maintenance       string `toml:"maintenance"`
}

// BackupConfig configures off-site ledger backups to S3-compatible storage
type BackupConfig struct {
	Bucket        string `toml:"bucket"`
	Prefix        string `toml:"prefix"`
	Region        string `toml:"region"`
	Endpoint      string `toml:"endpoint"` // Custom endpoint for S3-compatible stores (R2, MinIO)
	AccessKey     string `toml:"access_key"`
	SecretKey     string `toml:"secret_key"`
	RetentionDays int    `toml:"retention_days"`
}

// Enabled reports whether backups have somewhere to go.
func (b BackupConfig) Enabled() bool {
	return b.Bucket != ""
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		DataDir:  "./data",
		LogLevel: "info",
		Database: DatabaseConfig{
			Driver: database.DriverModernc,
			File:   "ledger.db",
		},
		Yahoo: YahooConfig{
			BaseURL:        "https://query2.finance.yahoo.com",
			RateLimit:      2,
			TimeoutSeconds: 15,
		},
		Rates: RatesConfig{
			BaseURL: "https://api.exchangerate-api.com/v4/latest",
		},
		Pricing: PricingConfig{
			LockTTLSeconds:      600,
			PrimeTimeoutSeconds: 120,
			StaleAfterHours:     24,
		},
		Schedule: ScheduleConfig{
			ReconcileHoldings: "0 30 3 * * *",
			PriceBackfill:     "0 0 22 * * 1-5",
			RateSync:          "0 15 0 * * *",
			LockCleanup:       "0 */15 * * * *",
			LedgerBackup:      "0 0 4 * * *",
			Maintenance:       "0 0 2 * * *",
		},
		Backup: BackupConfig{
			Prefix:        "ledger-backups",
			Region:        "auto",
			RetentionDays: 30,
		},
	}
}

// Load reads configuration from an optional TOML file and environment variables.
// Environment variables override the file; the file overrides defaults.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := Default()

	if path := getEnv("LEDGER_CONFIG_FILE", ""); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	absDataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	cfg.DataDir = absDataDir

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.DataDir = getEnv("LEDGER_DATA_DIR", c.DataDir)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.DevMode = getEnvAsBool("DEV_MODE", c.DevMode)

	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.File = getEnv("DB_FILE", c.Database.File)

	c.Yahoo.BaseURL = getEnv("YAHOO_BASE_URL", c.Yahoo.BaseURL)
	c.Yahoo.RateLimit = getEnvAsFloat("YAHOO_RATE_LIMIT", c.Yahoo.RateLimit)
	c.Yahoo.TimeoutSeconds = getEnvAsInt("YAHOO_TIMEOUT_SECONDS", c.Yahoo.TimeoutSeconds)

	c.Rates.BaseURL = getEnv("EXCHANGE_RATE_BASE_URL", c.Rates.BaseURL)

	c.Pricing.LockTTLSeconds = getEnvAsInt("PRICE_LOCK_TTL_SECONDS", c.Pricing.LockTTLSeconds)
	c.Pricing.PrimeTimeoutSeconds = getEnvAsInt("PRICE_PRIME_TIMEOUT_SECONDS", c.Pricing.PrimeTimeoutSeconds)
	c.Pricing.StaleAfterHours = getEnvAsInt("PRICE_STALE_AFTER_HOURS", c.Pricing.StaleAfterHours)

	c.Schedule.ReconcileHoldings = getEnv("SCHEDULE_RECONCILE_HOLDINGS", c.Schedule.ReconcileHoldings)
	c.Schedule.PriceBackfill = getEnv("SCHEDULE_PRICE_BACKFILL", c.Schedule.PriceBackfill)
	c.Schedule.RateSync = getEnv("SCHEDULE_RATE_SYNC", c.Schedule.RateSync)
	c.Schedule.LockCleanup = getEnv("SCHEDULE_LOCK_CLEANUP", c.Schedule.LockCleanup)
	c.Schedule.LedgerBackup = getEnv("SCHEDULE_LEDGER_BACKUP", c.Schedule.LedgerBackup)
	c.Schedule.Maintenance = getEnv("SCHEDULE_MAINTENANCE", c.Schedule.Maintenance)

	c.Backup.Bucket = getEnv("BACKUP_S3_BUCKET", c.Backup.Bucket)
	c.Backup.Prefix = getEnv("BACKUP_S3_PREFIX", c.Backup.Prefix)
	c.Backup.Region = getEnv("BACKUP_S3_REGION", c.Backup.Region)
	c.Backup.Endpoint = getEnv("BACKUP_S3_ENDPOINT", c.Backup.Endpoint)
	c.Backup.AccessKey = getEnv("BACKUP_S3_ACCESS_KEY", c.Backup.AccessKey)
	c.Backup.SecretKey = getEnv("BACKUP_S3_SECRET_KEY", c.Backup.SecretKey)
	c.Backup.RetentionDays = getEnvAsInt("BACKUP_RETENTION_DAYS", c.Backup.RetentionDays)
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case database.DriverModernc, database.DriverCGO:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.File == "" {
		return fmt.Errorf("database file is required")
	}
	if c.Yahoo.RateLimit <= 0 {
		return fmt.Errorf("yahoo rate limit must be positive, got %v", c.Yahoo.RateLimit)
	}
	if c.Pricing.LockTTLSeconds <= 0 || c.Pricing.PrimeTimeoutSeconds <= 0 {
		return fmt.Errorf("pricing lock ttl and prime timeout must be positive")
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedules := map[string]string{
		"reconcile_holdings": c.Schedule.ReconcileHoldings,
		"price_backfill":     c.Schedule.PriceBackfill,
		"rate_sync":          c.Schedule.RateSync,
		"lock_cleanup":       c.Schedule.LockCleanup,
		"ledger_backup":      c.Schedule.LedgerBackup,
		"maintenance":        c.Schedule.Maintenance,
	}
	for name, spec := range schedules {
		if spec == "" {
			continue
		}
		if _, err := parser.Parse(spec); err != nil {
			return fmt.Errorf("invalid %s schedule %q: %w", name, spec, err)
		}
	}

	if c.Backup.Enabled() && (c.Backup.AccessKey == "") != (c.Backup.SecretKey == "") {
		return fmt.Errorf("backup access key and secret key must be set together")
	}

	return nil
}

// DatabasePath returns the absolute ledger database path
func (c *Config) DatabasePath() string {
	if filepath.IsAbs(c.Database.File) {
		return c.Database.File
	}
	return filepath.Join(c.DataDir, c.Database.File)
}

// YahooTimeout returns the Yahoo HTTP timeout
func (c *Config) YahooTimeout() time.Duration {
	return time.Duration(c.Yahoo.TimeoutSeconds) * time.Second
}

// LockTTL returns the security sync lock lease
func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.Pricing.LockTTLSeconds) * time.Second
}

// PrimeTimeout returns the per-security backfill timeout
func (c *Config) PrimeTimeout() time.Duration {
	return time.Duration(c.Pricing.PrimeTimeoutSeconds) * time.Second
}

// StaleAfter returns how old last_synced may be before a backfill is due
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.Pricing.StaleAfterHours) * time.Hour
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
