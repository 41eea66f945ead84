package di

import (
	"fmt"

	"github.com/aristath/sentinel-ledger/internal/config"
	"github.com/aristath/sentinel-ledger/internal/scheduler"
	"github.com/rs/zerolog"
)

// RegisterJobs creates the scheduler and registers every background job on its configured schedule
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	sched := scheduler.New(log)
	db := container.LedgerDB.Conn()

	jobs := []struct {
		schedule string
		job      scheduler.Job
	}{
		{cfg.Schedule.ReconcileHoldings, scheduler.NewReconcileHoldingsJob(db, container.Recalculator, log)},
		{cfg.Schedule.PriceBackfill, scheduler.NewPriceBackfillJob(db, container.Primer, cfg.StaleAfter(), log)},
		{cfg.Schedule.RateSync, scheduler.NewRateSyncJob(container.RateSync)},
		{cfg.Schedule.LockCleanup, scheduler.NewLockCleanupJob(container.SyncLock, log)},
		{cfg.Schedule.Maintenance, container.MaintenanceJob},
	}
	if container.BackupService != nil {
		jobs = append(jobs, struct {
			schedule string
			job      scheduler.Job
		}{cfg.Schedule.LedgerBackup, scheduler.NewLedgerBackupJob(container.BackupService, log)})
	}

	for _, j := range jobs {
		if err := sched.AddJob(j.schedule, j.job); err != nil {
			return err
		}
	}

	container.Scheduler = sched
	return nil
}
