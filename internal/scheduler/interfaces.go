package scheduler

import (
	"context"
	"database/sql"

	"github.com/aristath/sentinel-ledger/internal/modules/currency"
	"github.com/aristath/sentinel-ledger/internal/modules/holdings"
	"github.com/aristath/sentinel-ledger/internal/modules/pricing"
)

// ReconcilerInterface defines the contract for holdings reconciliation
// Used by scheduler to enable testing with mocks
type ReconcilerInterface interface {
	RecalculateAll(ctx context.Context, db *sql.DB) (*holdings.ReconcileReport, error)
}

// PrimerInterface defines the contract for synchronous price priming
type PrimerInterface interface {
	Prime(ctx context.Context, securityID string) (*pricing.PrimeResult, error)
}

// RateSyncInterface defines the contract for exchange rate syncing
type RateSyncInterface interface {
	Sync(ctx context.Context) (*currency.RateSyncResult, error)
}

// LockCleanerInterface defines the contract for expired lock cleanup
type LockCleanerInterface interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// BackupServiceInterface defines the contract for ledger backups
type BackupServiceInterface interface {
	CreateBackup(ctx context.Context) (string, error)
	RotateOldBackups(ctx context.Context) (int, error)
}
