// Package main is the entry point for the sentinel ledger service.
// It keeps holdings, cash balances and transfers consistent with the
// recorded investment transactions and runs the background jobs that
// backfill prices, sync exchange rates and protect the ledger database.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/aristath/sentinel-ledger/internal/config"
	"github.com/aristath/sentinel-ledger/internal/di"
	"github.com/aristath/sentinel-ledger/pkg/logger"
)

func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("data_dir", cfg.DataDir).
		Str("driver", cfg.Database.Driver).
		Bool("backups", cfg.Backup.Enabled()).
		Msg("Starting sentinel ledger")

	container, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	container.Scheduler.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	// Stop waits for running jobs before the database goes away
	container.Scheduler.Stop()

	if err := container.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing ledger database")
	}

	log.Info().Msg("Stopped")
}
