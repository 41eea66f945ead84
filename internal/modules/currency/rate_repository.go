// Package currency provides exchange-rate storage and base-currency conversion.
package currency

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
	"github.com/shopspring/decimal"
)

// RateRepository reads and writes historical exchange rates.
// Rows are populated by the daily rate sync; the conversion path only reads.
type RateRepository struct {
	db  database.Querier
	log zerolog.Logger
}

// NewRateRepository creates a new exchange rate repository
func NewRateRepository(db database.Querier, log zerolog.Logger) *RateRepository {
	return &RateRepository{
		db:  db,
		log: log.With().Str("repo", "exchange_rates").Logger(),
	}
}

// WithTx returns a repository bound to an open transaction.
func (r *RateRepository) WithTx(tx *sql.Tx) *RateRepository {
	return &RateRepository{db: tx, log: r.log}
}

// Upsert stores a rate, replacing any existing rate for the same pair and date.
func (r *RateRepository) Upsert(ctx context.Context, rate domain.ExchangeRate) error {
	if !rate.Rate.IsPositive() {
		return domain.Validationf("exchange rate %s/%s must be positive", rate.BaseCurrency, rate.QuoteCurrency)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO exchange_rates (base_currency, quote_currency, date, rate)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(base_currency, quote_currency, date) DO UPDATE SET
			rate = excluded.rate
	`, rate.BaseCurrency, rate.QuoteCurrency, utils.DateToUnix(rate.Date), rate.Rate.String())
	if err != nil {
		return fmt.Errorf("failed to upsert exchange rate %s/%s: %w", rate.BaseCurrency, rate.QuoteCurrency, err)
	}

	r.log.Debug().
		Str("base", rate.BaseCurrency).
		Str("quote", rate.QuoteCurrency).
		Time("date", utils.NormalizeDate(rate.Date)).
		Str("rate", rate.Rate.String()).
		Msg("Upserted exchange rate")

	return nil
}

// LatestOnOrBefore returns the most recent rate for base/quote dated on or before asOf.
// Returns nil if no such rate exists (not an error).
func (r *RateRepository) LatestOnOrBefore(ctx context.Context, base, quote string, asOf time.Time) (*domain.ExchangeRate, error) {
	var (
		date    int64
		rateStr string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT date, rate FROM exchange_rates
		WHERE base_currency = ? AND quote_currency = ? AND date <= ?
		ORDER BY date DESC
		LIMIT 1
	`, base, quote, utils.DateToUnix(asOf)).Scan(&date, &rateStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get exchange rate %s/%s: %w", base, quote, err)
	}

	rate, err := decimal.NewFromString(rateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse exchange rate %s/%s: %w", base, quote, err)
	}

	return &domain.ExchangeRate{
		BaseCurrency:  base,
		QuoteCurrency: quote,
		Date:          utils.UnixToDate(date),
		Rate:          rate,
	}, nil
}
