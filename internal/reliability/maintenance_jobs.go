package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/sentinel-ledger/internal/database"
	"github.com/aristath/sentinel-ledger/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// AuditReport lists holdings that break ledger invariants
type AuditReport struct {
	Checked          int
	NegativeQuantity []domain.HoldingKey
	OrphanCostBasis  []domain.HoldingKey // zero quantity with non-zero cost basis
}

// Healthy reports whether no violations were found.
func (r *AuditReport) Healthy() bool {
	return len(r.NegativeQuantity) == 0 && len(r.OrphanCostBasis) == 0
}

// LedgerMaintenanceJob performs daily ledger database maintenance
type LedgerMaintenanceJob struct {
	db  *database.DB
	log zerolog.Logger
}

// NewLedgerMaintenanceJob creates a new maintenance job
func NewLedgerMaintenanceJob(db *database.DB, log zerolog.Logger) *LedgerMaintenanceJob {
	return &LedgerMaintenanceJob{
		db:  db,
		log: log.With().Str("job", "ledger_maintenance").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *LedgerMaintenanceJob) Name() string {
	return "ledger_maintenance"
}

// Run executes the maintenance job
func (j *LedgerMaintenanceJob) Run() error {
	j.log.Info().Msg("Starting ledger maintenance")
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// Integrity failures halt maintenance
	if err := j.db.HealthCheck(ctx); err != nil {
		j.log.Error().Err(err).Msg("CRITICAL: Ledger integrity check failed")
		return err
	}

	if err := j.db.WALCheckpoint("TRUNCATE"); err != nil {
		j.log.Warn().Err(err).Msg("WAL checkpoint failed")
	}

	report, err := j.Audit(ctx)
	if err != nil {
		return err
	}
	if !report.Healthy() {
		j.log.Error().
			Int("negative_quantity", len(report.NegativeQuantity)).
			Int("orphan_cost_basis", len(report.OrphanCostBasis)).
			Msg("Ledger invariant violations found")
	}

	j.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Int("holdings_checked", report.Checked).
		Msg("Ledger maintenance completed")

	return nil
}

// Audit scans stored holdings for invariant violations.
func (j *LedgerMaintenanceJob) Audit(ctx context.Context) (*AuditReport, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT portfolio_id, security_id, quantity, cost_basis FROM holdings`)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	report := &AuditReport{}
	for rows.Next() {
		var key domain.HoldingKey
		var quantity, costBasis decimal.Decimal
		if err := rows.Scan(&key.PortfolioID, &key.SecurityID, &quantity, &costBasis); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		report.Checked++

		switch {
		case quantity.IsNegative():
			report.NegativeQuantity = append(report.NegativeQuantity, key)
		case quantity.IsZero() && !costBasis.IsZero():
			report.OrphanCostBasis = append(report.OrphanCostBasis, key)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}

	return report, nil
}
