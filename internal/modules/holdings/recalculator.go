package holdings

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/sentinel-ledger/internal/database"
	"github.com/aristath/sentinel-ledger/internal/domain"
	"github.com/aristath/sentinel-ledger/internal/utils"
	"github.com/rs/zerolog"
)

// Recalculator rewrites holding rows from their full transaction history.
type Recalculator struct {
	now domain.Clock
	log zerolog.Logger
}

// NewRecalculator creates a new recalculation engine
func NewRecalculator(log zerolog.Logger) *Recalculator {
	return &Recalculator{
		now: time.Now,
		log: log.With().Str("component", "recalculator").Logger(),
	}
}

// Recalculate replays every transaction of key and overwrites the holding row.
// Run it inside the same transaction as the mutation that triggered it.
// A replay ending below zero quantity fails with a validation error so the
// caller's unit of work rolls back.
func (r *Recalculator) Recalculate(ctx context.Context, q database.Querier, key domain.HoldingKey) (*domain.Holding, error) {
	repo := NewRepository(q, r.log)

	h, err := repo.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, domain.NotFoundf("holding %s/%s", key.PortfolioID, key.SecurityID)
	}

	history, err := repo.ListHistory(ctx, key)
	if err != nil {
		return nil, err
	}

	pos := Replay(history)
	if pos.Quantity.IsNegative() {
		return nil, domain.Validationf("insufficient quantity: history of %s/%s ends at %s",
			key.PortfolioID, key.SecurityID, pos.Quantity.String())
	}

	updatedAt := r.now().UTC()
	if err := repo.UpdatePosition(ctx, key, pos, updatedAt); err != nil {
		return nil, err
	}

	h.Quantity = pos.Quantity
	h.CostBasis = pos.CostBasis
	h.RefCostBasis = pos.RefCostBasis
	h.UpdatedAt = time.Unix(updatedAt.Unix(), 0).UTC()

	r.log.Debug().
		Str("portfolio_id", key.PortfolioID).
		Str("security_id", key.SecurityID).
		Int("transactions", len(history)).
		Str("quantity", pos.Quantity.String()).
		Str("cost_basis", pos.CostBasis.String()).
		Msg("Recalculated holding")

	return h, nil
}

// Drift describes a holding whose stored values disagreed with its replay.
type Drift struct {
	Key    domain.HoldingKey
	Stored Position
	Replay Position
}

// ReconcileReport summarizes a RecalculateAll run.
type ReconcileReport struct {
	Checked int
	Drifted []Drift
	Failed  []domain.HoldingKey
}

// RecalculateAll replays every holding, each in its own transaction, and
// repairs rows whose stored values drifted from their history.
// Holdings whose history is invalid are reported as failed and left untouched.
func (r *Recalculator) RecalculateAll(ctx context.Context, db *sql.DB) (*ReconcileReport, error) {
	timer := utils.NewTimer("recalculate_all", r.log)
	defer timer.Stop()

	all, err := NewRepository(db, r.log).ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings: %w", err)
	}

	report := &ReconcileReport{}
	for _, h := range all {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++

		key := h.Key()
		err := database.WithTransaction(ctx, db, func(tx *sql.Tx) error {
			repo := NewRepository(tx, r.log)
			stored, err := repo.Get(ctx, key)
			if err != nil || stored == nil {
				return err
			}
			history, err := repo.ListHistory(ctx, key)
			if err != nil {
				return err
			}
			replayed := Replay(history)
			if replayed.Quantity.IsNegative() {
				return domain.Validationf("history ends at negative quantity %s", replayed.Quantity.String())
			}
			if replayed.Equal(PositionOf(*stored)) {
				return nil
			}
			if err := repo.UpdatePosition(ctx, key, replayed, r.now().UTC()); err != nil {
				return err
			}
			report.Drifted = append(report.Drifted, Drift{Key: key, Stored: PositionOf(*stored), Replay: replayed})
			return nil
		})
		if err != nil {
			report.Failed = append(report.Failed, key)
			r.log.Error().
				Err(err).
				Str("portfolio_id", key.PortfolioID).
				Str("security_id", key.SecurityID).
				Msg("Failed to reconcile holding")
		}
	}

	r.log.Info().
		Int("checked", report.Checked).
		Int("drifted", len(report.Drifted)).
		Int("failed", len(report.Failed)).
		Msg("Reconciled holdings")

	return report, nil
}
