// Package settings provides the user settings the ledger reads.
// This file implements the Repository, which handles per-user settings stored in the users table.
// The only setting the ledger consumes is the base (reporting) currency.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/aristath/sentinel-ledger/internal/database"
	"github.com/aristath/sentinel-ledger/internal/domain"
	"github.com/rs/zerolog"
)

// Repository handles user settings database operations.
// The base currency is written by the (external) settings surface and read
// by the Currency Conversion Service for every conversion.
type Repository struct {
	db  database.Querier // ledger.db - users table
	log zerolog.Logger   // Structured logger
}

// NewRepository creates a new settings repository.
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
		log: log.With().Str("repo", "settings").Logger(),
	}
}

// WithTx returns a repository bound to an open transaction.
func (r *Repository) WithTx(tx *sql.Tx) *Repository {
	return &Repository{db: tx, log: r.log}
}

// GetBaseCurrency returns the user's configured reporting currency.
// Returns a NotFound error if the user has no settings row.
//
// Parameters:
//   - ctx: Request context
//   - userID: Authenticated user id
//
// Returns:
//   - string: ISO 4217 currency code
//   - error: NotFound if the user is unknown, or a query error
func (r *Repository) GetBaseCurrency(ctx context.Context, userID string) (string, error) {
	var currency string
	err := r.db.QueryRowContext(ctx,
		"SELECT base_currency FROM users WHERE id = ?", userID,
	).Scan(&currency)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.NotFoundf("user %s", userID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get base currency for user %s: %w", userID, err)
	}
	return currency, nil
}

// SetBaseCurrency creates or updates the user's reporting currency.
// Unknown ISO 4217 codes are rejected with a validation error.
//
// Parameters:
//   - ctx: Request context
//   - userID: Authenticated user id
//   - currency: ISO 4217 currency code
//
// Returns:
//   - error: Validation error for unknown codes, or a database error
func (r *Repository) SetBaseCurrency(ctx context.Context, userID, currency string) error {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if money.GetCurrency(currency) == nil {
		return domain.Validationf("unknown currency %q", currency)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, base_currency, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			base_currency = excluded.base_currency,
			updated_at = excluded.updated_at
	`, userID, currency, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to set base currency for user %s: %w", userID, err)
	}

	r.log.Info().
		Str("user_id", userID).
		Str("base_currency", currency).
		Msg("Updated base currency")

	return nil
}
