package di

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/aristath/sentinel-ledger/internal/clients/exchangerate"
	"github.com/aristath/sentinel-ledger/internal/clients/yahoo"
	"github.com/aristath/sentinel-ledger/internal/config"
	"github.com/aristath/sentinel-ledger/internal/database"
	"github.com/aristath/sentinel-ledger/internal/modules/balances"
	"github.com/aristath/sentinel-ledger/internal/modules/cash_accounts"
	"github.com/aristath/sentinel-ledger/internal/modules/currency"
	"github.com/aristath/sentinel-ledger/internal/modules/holdings"
	"github.com/aristath/sentinel-ledger/internal/modules/portfolio"
	"github.com/aristath/sentinel-ledger/internal/modules/pricing"
	"github.com/aristath/sentinel-ledger/internal/modules/settings"
	"github.com/aristath/sentinel-ledger/internal/modules/transactions"
	"github.com/aristath/sentinel-ledger/internal/modules/transfers"
	"github.com/aristath/sentinel-ledger/internal/modules/universe"
	"github.com/aristath/sentinel-ledger/internal/reliability"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates the repositories and external clients
func InitializeRepositories(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil || container.LedgerDB == nil {
		return fmt.Errorf("container has no ledger database")
	}
	db := container.LedgerDB.Conn()

	container.SettingsRepo = settings.NewRepository(db, log)
	container.SecurityRepo = universe.NewSecurityRepository(db, log)
	container.HistoryDB = universe.NewHistoryDB(db, log)
	container.CashAccountsRepo = cash_accounts.NewRepository(db, log)

	container.YahooClient = yahoo.NewClient(log,
		yahoo.WithBaseURL(cfg.Yahoo.BaseURL),
		yahoo.WithRateLimit(cfg.Yahoo.RateLimit),
		yahoo.WithTimeout(cfg.YahooTimeout()),
	)
	container.ExchangeRateClient = exchangerate.NewClient(cfg.Rates.BaseURL, log)

	return nil
}

// InitializeServices creates the ledger services and background components
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil || container.LedgerDB == nil {
		return fmt.Errorf("container has no ledger database")
	}
	db := container.LedgerDB.Conn()

	container.ConversionService = currency.NewConversionService(db, log)
	container.RateSync = currency.NewRateSync(db, container.ExchangeRateClient, log)

	container.SyncLock = pricing.NewSQLiteLock(db, log)
	container.Primer = pricing.NewPrimer(db, container.YahooClient, container.SyncLock, log)
	container.Primer.SetTimeouts(cfg.LockTTL(), cfg.PrimeTimeout())

	container.PortfolioService = portfolio.NewService(db, log)
	container.Recalculator = holdings.NewRecalculator(log)
	container.HoldingsService = holdings.NewService(db, container.Primer, log)
	container.TransactionService = transactions.NewService(db, container.ConversionService, container.Recalculator, log)
	container.BalanceService = balances.NewService(db, container.ConversionService, log)
	container.TransferService = transfers.NewService(db, container.BalanceService,
		func(q database.Querier) transfers.AccountLedger { return cash_accounts.NewRepository(q, log) },
		log,
	)

	container.MaintenanceJob = reliability.NewLedgerMaintenanceJob(container.LedgerDB, log)

	if cfg.Backup.Enabled() {
		store, err := reliability.NewS3Store(context.Background(), reliability.S3StoreConfig{
			Bucket:    cfg.Backup.Bucket,
			Prefix:    cfg.Backup.Prefix,
			Region:    cfg.Backup.Region,
			Endpoint:  cfg.Backup.Endpoint,
			AccessKey: cfg.Backup.AccessKey,
			SecretKey: cfg.Backup.SecretKey,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to initialize backup store: %w", err)
		}
		container.BackupService = reliability.NewBackupService(
			container.LedgerDB,
			store,
			filepath.Join(cfg.DataDir, "backup-staging"),
			cfg.Backup.RetentionDays,
			log,
		)
	} else {
		log.Info().Msg("Backup bucket not configured, ledger backups disabled")
	}

	return nil
}
