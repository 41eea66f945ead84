package universe

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/sentinel-ledger/internal/database"
	"github.com/aristath/sentinel-ledger/internal/domain"
	"github.com/aristath/sentinel-ledger/internal/utils"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// HistoryDB provides access to historical price data
type HistoryDB struct {
	db  database.Querier
	log zerolog.Logger
}

// NewHistoryDB creates a new history database accessor
func NewHistoryDB(db database.Querier, log zerolog.Logger) *HistoryDB {
	return &HistoryDB{
		db:  db,
		log: log.With().Str("component", "history_db").Logger(),
	}
}

// WithTx returns an accessor bound to an open transaction.
func (h *HistoryDB) WithTx(tx *sql.Tx) *HistoryDB {
	return &HistoryDB{db: tx, log: h.log}
}

// UpsertDailyPrices stores daily closes for a security, replacing existing closes on the same dates.
// Callers batch a whole backfill into one call; run it inside a transaction for atomicity.
func (h *HistoryDB) UpsertDailyPrices(ctx context.Context, securityID string, prices []domain.PricePoint) (int, error) {
	written := 0
	for _, p := range prices {
		_, err := h.db.ExecContext(ctx, `
			INSERT INTO daily_prices (security_id, date, close)
			VALUES (?, ?, ?)
			ON CONFLICT(security_id, date) DO UPDATE SET
				close = excluded.close
		`, securityID, utils.DateToUnix(p.Date), p.Close.String())
		if err != nil {
			return written, fmt.Errorf("failed to upsert daily price for %s: %w", securityID, err)
		}
		written++
	}

	h.log.Debug().
		Str("security_id", securityID).
		Int("count", written).
		Msg("Stored daily prices")

	return written, nil
}

// LatestPriceDate returns the date of the newest stored close, or nil when none exist.
func (h *HistoryDB) LatestPriceDate(ctx context.Context, securityID string) (*time.Time, error) {
	var latest sql.NullInt64
	err := h.db.QueryRowContext(ctx,
		`SELECT MAX(date) FROM daily_prices WHERE security_id = ?`, securityID,
	).Scan(&latest)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest price date for %s: %w", securityID, err)
	}
	if !latest.Valid {
		return nil, nil
	}
	t := utils.UnixToDate(latest.Int64)
	return &t, nil
}

// HasPrices reports whether any close is stored for the security.
func (h *HistoryDB) HasPrices(ctx context.Context, securityID string) (bool, error) {
	latest, err := h.LatestPriceDate(ctx, securityID)
	if err != nil {
		return false, err
	}
	return latest != nil, nil
}

// GetDailyPrices returns stored closes in [from, to], oldest first.
func (h *HistoryDB) GetDailyPrices(ctx context.Context, securityID string, from, to time.Time) ([]domain.PricePoint, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT date, close
		FROM daily_prices
		WHERE security_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, securityID, utils.DateToUnix(from), utils.DateToUnix(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	var prices []domain.PricePoint
	for rows.Next() {
		var (
			dateUnix int64
			closeStr string
		)
		if err := rows.Scan(&dateUnix, &closeStr); err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}
		closePrice, err := decimal.NewFromString(closeStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse daily close: %w", err)
		}
		prices = append(prices, domain.PricePoint{Date: utils.UnixToDate(dateUnix), Close: closePrice})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}

	return prices, nil
}
