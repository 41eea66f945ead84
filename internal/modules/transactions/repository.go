// Package transactions provides the investment transaction write path.
// Every mutation re-runs the holding's cost-basis recalculation in the same unit of work.
package transactions

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

const transactionColumns = `seq, id, user_id, portfolio_id, security_id, category, date,
	quantity, price, fees, amount, ref_amount, ref_price, ref_fees,
	currency, description, created_at, updated_at`

// Repository handles investment transaction persistence in ledger.db.
type Repository struct {
	db  database.Querier
	log zerolog.Logger
}

// NewRepository creates a new investment transaction repository
func NewRepository(db database.Querier, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "investment_transaction").Logger(),
	}
}

// WithTx returns a repository bound to an open transaction.
func (r *Repository) WithTx(tx *sql.Tx) *Repository {
	return &Repository{db: tx, log: r.log}
}

// Insert stores a new transaction and returns its creation sequence number.
func (r *Repository) Insert(ctx context.Context, t domain.InvestmentTransaction) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO investment_transactions
			(id, user_id, portfolio_id, security_id, category, date,
			 quantity, price, fees, amount, ref_amount, ref_price, ref_fees,
			 currency, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.UserID, t.PortfolioID, t.SecurityID, string(t.Category), utils.DateToUnix(t.Date),
		utils.FormatDecimal(t.Quantity), utils.FormatDecimal(t.Price), utils.FormatDecimal(t.Fees),
		utils.FormatDecimal(t.Amount), utils.FormatDecimal(t.RefAmount), utils.FormatDecimal(t.RefPrice),
		utils.FormatDecimal(t.RefFees), t.Currency, t.Description, t.CreatedAt.Unix(), t.UpdatedAt.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to insert transaction %s: %w", t.ID, err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read transaction sequence: %w", err)
	}

	r.log.Debug().
		Str("transaction_id", t.ID).
		Int64("seq", seq).
		Str("category", string(t.Category)).
		Msg("Inserted transaction")

	return seq, nil
}

// GetByID returns a transaction, or nil if it doesn't exist.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.InvestmentTransaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM investment_transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", id, err)
	}
	return t, nil
}

// Update overwrites the mutable figures of a transaction. Seq and the holding key never change.
func (r *Repository) Update(ctx context.Context, t domain.InvestmentTransaction) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE investment_transactions SET
			category = ?, date = ?, quantity = ?, price = ?, fees = ?,
			amount = ?, ref_amount = ?, ref_price = ?, ref_fees = ?,
			description = ?, updated_at = ?
		WHERE id = ?
	`, string(t.Category), utils.DateToUnix(t.Date),
		utils.FormatDecimal(t.Quantity), utils.FormatDecimal(t.Price), utils.FormatDecimal(t.Fees),
		utils.FormatDecimal(t.Amount), utils.FormatDecimal(t.RefAmount), utils.FormatDecimal(t.RefPrice),
		utils.FormatDecimal(t.RefFees), t.Description, t.UpdatedAt.Unix(), t.ID)
	if err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", t.ID, err)
	}
	return nil
}

// Delete removes a transaction.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM investment_transactions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete transaction %s: %w", id, err)
	}
	return nil
}

// ListByHolding returns a holding's transactions in replay order.
func (r *Repository) ListByHolding(ctx context.Context, key domain.HoldingKey) ([]domain.InvestmentTransaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+transactionColumns+` FROM investment_transactions
		WHERE portfolio_id = ? AND security_id = ?
		ORDER BY date ASC, seq ASC
	`, key.PortfolioID, key.SecurityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var list []domain.InvestmentTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		list = append(list, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return list, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (*domain.InvestmentTransaction, error) {
	var (
		t                          domain.InvestmentTransaction
		category                   string
		date, createdAt, updatedAt int64
	)
	err := row.Scan(&t.Seq, &t.ID, &t.UserID, &t.PortfolioID, &t.SecurityID, &category, &date,
		&t.Quantity, &t.Price, &t.Fees, &t.Amount, &t.RefAmount, &t.RefPrice, &t.RefFees,
		&t.Currency, &t.Description, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	t.Category = domain.TransactionCategory(category)
	t.Date = utils.UnixToDate(date)
	t.CreatedAt = time.Unix(createdAt, 0).UTC()
	t.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &t, nil
}
