// Package portfolio provides portfolio storage and lifecycle operations.
// Portfolios are soft-disabled rather than deleted while holdings or balances reference them.
package portfolio

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/sentinel-ledger/internal/database"
	"github.com/aristath/sentinel-ledger/internal/domain"
	"github.com/rs/zerolog"
)

const portfolioColumns = `id, user_id, name, type, enabled, description, created_at, updated_at`

// Repository handles portfolio database operations.
type Repository struct {
	db  database.Querier // ledger.db - portfolios table
	log zerolog.Logger   // Structured logger
}

// NewRepository creates a new portfolio repository.
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
		log: log.With().Str("repo", "portfolio").Logger(),
	}
}

// WithTx returns a repository bound to an open transaction.
func (r *Repository) WithTx(tx *sql.Tx) *Repository {
	return &Repository{db: tx, log: r.log}
}

// Create inserts a new portfolio.
func (r *Repository) Create(ctx context.Context, p domain.Portfolio) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO portfolios (`+portfolioColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.UserID, p.Name, string(p.Type), boolToInt(p.Enabled), p.Description,
		p.CreatedAt.Unix(), p.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to create portfolio %s: %w", p.ID, err)
	}
	return nil
}

// GetByID returns a portfolio by id regardless of owner, or nil if it does not exist.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Portfolio, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+portfolioColumns+` FROM portfolios WHERE id = ?`, id)
	p, err := scanPortfolio(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio %s: %w", id, err)
	}
	return p, nil
}

// GetOwned returns the portfolio if it exists and belongs to userID.
// Returns a NotFound error otherwise; a foreign portfolio is indistinguishable from a missing one.
func (r *Repository) GetOwned(ctx context.Context, userID, id string) (*domain.Portfolio, error) {
	p, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil || p.UserID != userID {
		return nil, domain.NotFoundf("portfolio %s", id)
	}
	return p, nil
}

// ListByUser returns the user's portfolios ordered by creation time.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]domain.Portfolio, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+portfolioColumns+` FROM portfolios
		WHERE user_id = ?
		ORDER BY created_at ASC, id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios: %w", err)
	}
	defer rows.Close()

	var portfolios []domain.Portfolio
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		portfolios = append(portfolios, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating portfolios: %w", err)
	}

	return portfolios, nil
}

// Update persists the mutable fields (name, enabled, description).
func (r *Repository) Update(ctx context.Context, p domain.Portfolio) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE portfolios SET name = ?, enabled = ?, description = ?, updated_at = ?
		WHERE id = ?
	`, p.Name, boolToInt(p.Enabled), p.Description, p.UpdatedAt.Unix(), p.ID)
	if err != nil {
		return fmt.Errorf("failed to update portfolio %s: %w", p.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPortfolio(row rowScanner) (*domain.Portfolio, error) {
	var (
		p                    domain.Portfolio
		portfolioType        string
		enabled              int
		createdAt, updatedAt int64
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.Name, &portfolioType, &enabled, &p.Description, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.Type = domain.PortfolioType(portfolioType)
	p.Enabled = enabled != 0
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	p.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
