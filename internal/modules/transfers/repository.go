// Package transfers provides the Portfolio Transfer Engine: cash movements
// between two portfolios, or between a portfolio and an external cash account.
package transfers

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

const transferColumns = `id, user_id, from_portfolio_id, to_portfolio_id, currency, amount, date, linked_transaction_id, description, created_at`

// Repository handles transfer persistence in ledger.db.
type Repository struct {
	db  database.Querier
	log zerolog.Logger
}

// NewRepository creates a new transfer repository
func NewRepository(db database.Querier, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "portfolio_transfer").Logger(),
	}
}

// WithTx returns a repository bound to an open transaction.
func (r *Repository) WithTx(tx *sql.Tx) *Repository {
	return &Repository{db: tx, log: r.log}
}

// Insert stores a transfer.
func (r *Repository) Insert(ctx context.Context, t domain.PortfolioTransfer) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO portfolio_transfers (`+transferColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.UserID, t.FromPortfolioID, t.ToPortfolioID, t.Currency, utils.FormatDecimal(t.Amount),
		utils.DateToUnix(t.Date), t.LinkedTransactionID, t.Description, t.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert transfer %s: %w", t.ID, err)
	}
	return nil
}

// Get returns a transfer, or nil if it doesn't exist.
func (r *Repository) Get(ctx context.Context, id string) (*domain.PortfolioTransfer, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transferColumns+` FROM portfolio_transfers WHERE id = ?`, id)
	t, err := scanTransfer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transfer %s: %w", id, err)
	}
	return t, nil
}

// Delete removes a transfer row.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM portfolio_transfers WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete transfer %s: %w", id, err)
	}
	return nil
}

// ListByUser returns the user's transfers, newest first. A non-empty
// portfolioID restricts the result to transfers touching that portfolio.
func (r *Repository) ListByUser(ctx context.Context, userID, portfolioID string) ([]domain.PortfolioTransfer, error) {
	query := `SELECT ` + transferColumns + ` FROM portfolio_transfers WHERE user_id = ?`
	args := []interface{}{userID}
	if portfolioID != "" {
		query += ` AND (from_portfolio_id = ? OR to_portfolio_id = ?)`
		args = append(args, portfolioID, portfolioID)
	}
	query += ` ORDER BY date DESC, created_at DESC, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers: %w", err)
	}
	defer rows.Close()

	var list []domain.PortfolioTransfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		list = append(list, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transfers: %w", err)
	}

	return list, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransfer(row rowScanner) (*domain.PortfolioTransfer, error) {
	var (
		t                domain.PortfolioTransfer
		from, to, linked sql.NullString
		date, createdAt  int64
	)
	err := row.Scan(&t.ID, &t.UserID, &from, &to, &t.Currency, &t.Amount, &date, &linked, &t.Description, &createdAt)
	if err != nil {
		return nil, err
	}
	t.FromPortfolioID = nullableString(from)
	t.ToPortfolioID = nullableString(to)
	t.LinkedTransactionID = nullableString(linked)
	t.Date = utils.UnixToDate(date)
	t.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &t, nil
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
