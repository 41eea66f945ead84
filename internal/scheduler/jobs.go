package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/sentinel-ledger/internal/domain"
	"github.com/aristath/sentinel-ledger/internal/modules/universe"
	"github.com/rs/zerolog"
)

// ReconcileHoldingsJob replays every holding and repairs drifted rows
type ReconcileHoldingsJob struct {
	db         *sql.DB
	reconciler ReconcilerInterface
	log        zerolog.Logger
}

// NewReconcileHoldingsJob creates a new ReconcileHoldingsJob
func NewReconcileHoldingsJob(db *sql.DB, reconciler ReconcilerInterface, log zerolog.Logger) *ReconcileHoldingsJob {
	return &ReconcileHoldingsJob{
		db:         db,
		reconciler: reconciler,
		log:        log.With().Str("job", "reconcile_holdings").Logger(),
	}
}

// Name returns the job name
func (j *ReconcileHoldingsJob) Name() string {
	return "reconcile_holdings"
}

// Run executes the reconciliation
func (j *ReconcileHoldingsJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	report, err := j.reconciler.RecalculateAll(ctx, j.db)
	if err != nil {
		return err
	}

	for _, drift := range report.Drifted {
		j.log.Warn().
			Str("portfolio_id", drift.Key.PortfolioID).
			Str("security_id", drift.Key.SecurityID).
			Str("stored_quantity", drift.Stored.Quantity.String()).
			Str("replayed_quantity", drift.Replay.Quantity.String()).
			Str("stored_cost_basis", drift.Stored.CostBasis.String()).
			Str("replayed_cost_basis", drift.Replay.CostBasis.String()).
			Msg("Repaired drifted holding")
	}

	if len(report.Failed) > 0 {
		return fmt.Errorf("%d of %d holdings failed to reconcile", len(report.Failed), report.Checked)
	}
	return nil
}

// PriceBackfillJob primes held securities whose prices were not synced recently
type PriceBackfillJob struct {
	db         *sql.DB
	primer     PrimerInterface
	staleAfter time.Duration
	now        domain.Clock
	log        zerolog.Logger
}

// NewPriceBackfillJob creates a new PriceBackfillJob
func NewPriceBackfillJob(db *sql.DB, primer PrimerInterface, staleAfter time.Duration, log zerolog.Logger) *PriceBackfillJob {
	return &PriceBackfillJob{
		db:         db,
		primer:     primer,
		staleAfter: staleAfter,
		now:        time.Now,
		log:        log.With().Str("job", "price_backfill").Logger(),
	}
}

// SetClock overrides the time source.
func (j *PriceBackfillJob) SetClock(now domain.Clock) {
	j.now = now
}

// Name returns the job name
func (j *PriceBackfillJob) Name() string {
	return "price_backfill"
}

// Run primes each stale held security in turn. A held lock means another
// backfill is running and is not counted as a failure.
func (j *PriceBackfillJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()

	securities, err := universe.NewSecurityRepository(j.db, j.log).ListHeld(ctx)
	if err != nil {
		return err
	}

	cutoff := j.now().Add(-j.staleAfter)
	primed, skipped, failed := 0, 0, 0
	for _, sec := range securities {
		if sec.LastSynced != nil && sec.LastSynced.After(cutoff) {
			continue
		}

		if _, err := j.primer.Prime(ctx, sec.ID); err != nil {
			if errors.Is(err, domain.ErrLocked) {
				skipped++
				continue
			}
			failed++
			j.log.Warn().Err(err).Str("security_id", sec.ID).Str("symbol", sec.Symbol).Msg("Backfill failed")
			continue
		}
		primed++
	}

	j.log.Info().
		Int("held", len(securities)).
		Int("primed", primed).
		Int("skipped", skipped).
		Int("failed", failed).
		Msg("Price backfill completed")

	if failed > 0 {
		return fmt.Errorf("%d securities failed to backfill", failed)
	}
	return nil
}

// RateSyncJob stores the latest exchange rates
type RateSyncJob struct {
	sync RateSyncInterface
}

// NewRateSyncJob creates a new RateSyncJob
func NewRateSyncJob(sync RateSyncInterface) *RateSyncJob {
	return &RateSyncJob{sync: sync}
}

// Name returns the job name
func (j *RateSyncJob) Name() string {
	return "rate_sync"
}

// Run executes the rate sync
func (j *RateSyncJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	_, err := j.sync.Sync(ctx)
	return err
}

// LockCleanupJob removes expired security sync locks
type LockCleanupJob struct {
	cleaner LockCleanerInterface
	log     zerolog.Logger
}

// NewLockCleanupJob creates a new LockCleanupJob
func NewLockCleanupJob(cleaner LockCleanerInterface, log zerolog.Logger) *LockCleanupJob {
	return &LockCleanupJob{
		cleaner: cleaner,
		log:     log.With().Str("job", "lock_cleanup").Logger(),
	}
}

// Name returns the job name
func (j *LockCleanupJob) Name() string {
	return "lock_cleanup"
}

// Run executes the cleanup
func (j *LockCleanupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	removed, err := j.cleaner.DeleteExpired(ctx)
	if err != nil {
		return err
	}
	if removed > 0 {
		j.log.Info().Int64("removed", removed).Msg("Removed expired sync locks")
	}
	return nil
}

// LedgerBackupJob uploads a ledger snapshot and rotates old backups
type LedgerBackupJob struct {
	backup BackupServiceInterface
	log    zerolog.Logger
}

// NewLedgerBackupJob creates a new LedgerBackupJob
func NewLedgerBackupJob(backup BackupServiceInterface, log zerolog.Logger) *LedgerBackupJob {
	return &LedgerBackupJob{
		backup: backup,
		log:    log.With().Str("job", "ledger_backup").Logger(),
	}
}

// Name returns the job name
func (j *LedgerBackupJob) Name() string {
	return "ledger_backup"
}

// Run creates the backup, then rotates. Rotation failures are logged only.
func (j *LedgerBackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if _, err := j.backup.CreateBackup(ctx); err != nil {
		return err
	}
	if _, err := j.backup.RotateOldBackups(ctx); err != nil {
		j.log.Warn().Err(err).Msg("Backup rotation failed")
	}
	return nil
}
