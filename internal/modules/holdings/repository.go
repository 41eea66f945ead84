// Package holdings provides the Holdings Ledger and the cost-basis recalculation engine.
// This file implements the Repository, which handles holding rows in ledger.db.
// A holding is keyed by (portfolio_id, security_id) and is only ever mutated by recalculation.
package holdings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/sentinel-ledger/internal/database"
	"github.com/aristath/sentinel-ledger/internal/domain"
	"github.com/aristath/sentinel-ledger/internal/utils"
	"github.com/rs/zerolog"
)

const holdingColumns = `portfolio_id, security_id, quantity, cost_basis, ref_cost_basis, currency, created_at, updated_at`

// Repository handles holding persistence in ledger.db.
type Repository struct {
	db  database.Querier // ledger.db - holdings table
	log zerolog.Logger   // Structured logger
}

// NewRepository creates a new holding repository.
//
// Parameters:
//   - db: Database connection (or open transaction) to ledger.db
//   - log: Structured logger
//
// Returns:
//   - *Repository: Initialized repository instance
func NewRepository(db database.Querier, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "holding").Logger(),
	}
}

// WithTx returns a repository bound to an open transaction.
func (r *Repository) WithTx(tx *sql.Tx) *Repository {
	return &Repository{db: tx, log: r.log}
}

// Get returns the holding for key, or nil if it doesn't exist (not an error).
func (r *Repository) Get(ctx context.Context, key domain.HoldingKey) (*domain.Holding, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+holdingColumns+` FROM holdings WHERE portfolio_id = ? AND security_id = ?`,
		key.PortfolioID, key.SecurityID,
	)
	h, err := scanHolding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get holding %s/%s: %w", key.PortfolioID, key.SecurityID, err)
	}
	return h, nil
}

// Insert creates a holding row. The caller checks for an existing row first.
func (r *Repository) Insert(ctx context.Context, h domain.Holding) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO holdings (`+holdingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, h.PortfolioID, h.SecurityID,
		utils.FormatDecimal(h.Quantity), utils.FormatDecimal(h.CostBasis), utils.FormatDecimal(h.RefCostBasis),
		h.Currency, h.CreatedAt.Unix(), h.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert holding %s/%s: %w", h.PortfolioID, h.SecurityID, err)
	}

	r.log.Debug().
		Str("portfolio_id", h.PortfolioID).
		Str("security_id", h.SecurityID).
		Msg("Inserted holding")

	return nil
}

// UpdatePosition overwrites quantity and cost basis with a recalculated position.
func (r *Repository) UpdatePosition(ctx context.Context, key domain.HoldingKey, pos Position, updatedAt time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE holdings
		SET quantity = ?, cost_basis = ?, ref_cost_basis = ?, updated_at = ?
		WHERE portfolio_id = ? AND security_id = ?
	`, utils.FormatDecimal(pos.Quantity), utils.FormatDecimal(pos.CostBasis), utils.FormatDecimal(pos.RefCostBasis),
		updatedAt.Unix(), key.PortfolioID, key.SecurityID)
	if err != nil {
		return fmt.Errorf("failed to update holding %s/%s: %w", key.PortfolioID, key.SecurityID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.NotFoundf("holding %s/%s", key.PortfolioID, key.SecurityID)
	}

	return nil
}

// Delete removes a holding. Its transactions are removed by the foreign-key cascade.
// This operation is idempotent - it does not error if the holding doesn't exist.
func (r *Repository) Delete(ctx context.Context, key domain.HoldingKey) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM holdings WHERE portfolio_id = ? AND security_id = ?`,
		key.PortfolioID, key.SecurityID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete holding %s/%s: %w", key.PortfolioID, key.SecurityID, err)
	}
	return nil
}

// ListByPortfolio returns the holdings of one portfolio ordered by security id.
func (r *Repository) ListByPortfolio(ctx context.Context, portfolioID string) ([]domain.Holding, error) {
	return r.list(ctx,
		`SELECT `+holdingColumns+` FROM holdings WHERE portfolio_id = ? ORDER BY security_id`,
		portfolioID,
	)
}

// ListAll returns every holding. Used by the reconciliation job.
func (r *Repository) ListAll(ctx context.Context) ([]domain.Holding, error) {
	return r.list(ctx, `SELECT `+holdingColumns+` FROM holdings ORDER BY portfolio_id, security_id`)
}

func (r *Repository) list(ctx context.Context, query string, args ...interface{}) ([]domain.Holding, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	var holdings []domain.Holding
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}

	return holdings, nil
}

// ListHistory returns the replay projection of every transaction for key,
// ordered by (date, seq).
func (r *Repository) ListHistory(ctx context.Context, key domain.HoldingKey) ([]domain.InvestmentTransaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT seq, id, category, date, quantity, amount, fees, ref_amount, ref_fees
		FROM investment_transactions
		WHERE portfolio_id = ? AND security_id = ?
		ORDER BY date ASC, seq ASC
	`, key.PortfolioID, key.SecurityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction history: %w", err)
	}
	defer rows.Close()

	var history []domain.InvestmentTransaction
	for rows.Next() {
		var (
			tx       domain.InvestmentTransaction
			category string
			date     int64
		)
		err := rows.Scan(&tx.Seq, &tx.ID, &category, &date,
			&tx.Quantity, &tx.Amount, &tx.Fees, &tx.RefAmount, &tx.RefFees)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction history: %w", err)
		}
		tx.PortfolioID = key.PortfolioID
		tx.SecurityID = key.SecurityID
		tx.Category = domain.TransactionCategory(category)
		tx.Date = utils.UnixToDate(date)
		history = append(history, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction history: %w", err)
	}

	return history, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanHolding(row rowScanner) (*domain.Holding, error) {
	var (
		h                    domain.Holding
		createdAt, updatedAt int64
	)
	err := row.Scan(&h.PortfolioID, &h.SecurityID, &h.Quantity, &h.CostBasis, &h.RefCostBasis,
		&h.Currency, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	h.CreatedAt = time.Unix(createdAt, 0).UTC()
	h.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &h, nil
}
