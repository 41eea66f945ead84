// Package balances provides the Portfolio Balance Engine.
// This file implements the Repository, which handles per-currency cash balances in ledger.db.
// Cash is tracked per (portfolio, currency) separately from holdings, so a
// portfolio can carry several currencies at once.
package balances

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

const balanceColumns = `portfolio_id, currency, available_cash, total_cash, ref_available_cash, ref_total_cash, updated_at`

// Repository handles cash balance persistence in ledger.db.
type Repository struct {
	db  database.Querier // ledger.db - portfolio_balances table
	log zerolog.Logger   // Structured logger
}

// NewRepository creates a new balance repository.
// The repository manages cash balances stored in the portfolio_balances table.
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
		log: log.With().Str("repo", "portfolio_balance").Logger(),
	}
}

// WithTx returns a repository bound to an open transaction.
func (r *Repository) WithTx(tx *sql.Tx) *Repository {
	return &Repository{db: tx, log: r.log}
}

// Get returns the balance for the given portfolio and currency.
// Returns nil if no row exists yet (not an error - the balance is lazily created).
//
// Parameters:
//   - portfolioID: Portfolio id
//   - currency: Currency code (e.g., "EUR", "USD")
//
// Returns:
//   - *domain.PortfolioBalance: Stored balance, nil if not found
//   - error: Error if query fails
func (r *Repository) Get(ctx context.Context, portfolioID, currency string) (*domain.PortfolioBalance, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+balanceColumns+` FROM portfolio_balances WHERE portfolio_id = ? AND currency = ?`,
		portfolioID, currency,
	)
	b, err := scanBalance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get balance %s/%s: %w", portfolioID, currency, err)
	}
	return b, nil
}

// ListByPortfolio returns every currency balance of a portfolio ordered by currency.
func (r *Repository) ListByPortfolio(ctx context.Context, portfolioID string) ([]domain.PortfolioBalance, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+balanceColumns+` FROM portfolio_balances WHERE portfolio_id = ? ORDER BY currency`,
		portfolioID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query balances: %w", err)
	}
	defer rows.Close()

	var list []domain.PortfolioBalance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		list = append(list, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating balances: %w", err)
	}

	return list, nil
}

// Upsert inserts or updates a balance row.
// Uses ON CONFLICT to handle both insert and update in a single statement.
//
// Parameters:
//   - b: Balance with all four figures computed
//
// Returns:
//   - error: Error if database operation fails
func (r *Repository) Upsert(ctx context.Context, b domain.PortfolioBalance) error {
	query := `
		INSERT INTO portfolio_balances (` + balanceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(portfolio_id, currency) DO UPDATE SET
			available_cash = excluded.available_cash,
			total_cash = excluded.total_cash,
			ref_available_cash = excluded.ref_available_cash,
			ref_total_cash = excluded.ref_total_cash,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, query, b.PortfolioID, b.Currency,
		utils.FormatDecimal(b.AvailableCash), utils.FormatDecimal(b.TotalCash),
		utils.FormatDecimal(b.RefAvailableCash), utils.FormatDecimal(b.RefTotalCash),
		b.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert balance %s/%s: %w", b.PortfolioID, b.Currency, err)
	}

	r.log.Debug().
		Str("portfolio_id", b.PortfolioID).
		Str("currency", b.Currency).
		Str("available", b.AvailableCash.String()).
		Str("total", b.TotalCash.String()).
		Msg("Upserted balance")

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBalance(row rowScanner) (*domain.PortfolioBalance, error) {
	var (
		b         domain.PortfolioBalance
		updatedAt int64
	)
	err := row.Scan(&b.PortfolioID, &b.Currency, &b.AvailableCash, &b.TotalCash,
		&b.RefAvailableCash, &b.RefTotalCash, &updatedAt)
	if err != nil {
		return nil, err
	}
	b.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &b, nil
}
