// Package di provides dependency injection type definitions.
package di

import (
	"github.com/aristath/sentinel-ledger/internal/clients/exchangerate"
	"github.com/aristath/sentinel-ledger/internal/clients/yahoo"
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
	"github.com/aristath/sentinel-ledger/internal/scheduler"
)

// Container holds all dependencies for the application.
//
// Services own their transactions and take the ledger *sql.DB; repositories
// are bound to the same connection for reads outside a transaction.
type Container struct {
	// Database
	LedgerDB *database.DB // Portfolios, holdings, transactions, balances, transfers, rates, prices

	// Clients - External API integrations
	YahooClient        *yahoo.Client
	ExchangeRateClient *exchangerate.Client

	// Repositories - Data access layer
	SettingsRepo     *settings.Repository
	SecurityRepo     *universe.SecurityRepository
	HistoryDB        *universe.HistoryDB
	CashAccountsRepo *cash_accounts.Repository

	// Services - Business logic layer
	ConversionService  *currency.ConversionService
	RateSync           *currency.RateSync
	PortfolioService   *portfolio.Service
	Recalculator       *holdings.Recalculator
	HoldingsService    *holdings.Service
	TransactionService *transactions.Service
	BalanceService     *balances.Service
	TransferService    *transfers.Service

	// Background pricing
	SyncLock *pricing.SQLiteLock
	Primer   *pricing.Primer

	// Reliability - nil BackupService when backups are not configured
	BackupService  *reliability.BackupService
	MaintenanceJob *reliability.LedgerMaintenanceJob

	Scheduler *scheduler.Scheduler
}

// Close waits for in-flight priming and closes the database.
func (c *Container) Close() error {
	if c.Primer != nil {
		c.Primer.Wait()
	}
	if c.LedgerDB != nil {
		return c.LedgerDB.Close()
	}
	return nil
}
