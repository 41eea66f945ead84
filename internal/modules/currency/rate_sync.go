package currency

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aristath/sentinel-ledger/internal/database"
	"github.com/aristath/sentinel-ledger/internal/domain"
	"github.com/rs/zerolog"
)

// RateSync stores the latest published rates for every base currency in use.
// Only quote currencies the ledger actually holds are stored.
type RateSync struct {
	db       *sql.DB
	provider domain.RateProvider
	log      zerolog.Logger
}

// RateSyncResult summarizes one sync run
type RateSyncResult struct {
	Bases  int
	Stored int
	Failed int
}

// NewRateSync creates a rate sync over the ledger database
func NewRateSync(db *sql.DB, provider domain.RateProvider, log zerolog.Logger) *RateSync {
	return &RateSync{
		db:       db,
		provider: provider,
		log:      log.With().Str("service", "rate_sync").Logger(),
	}
}

// Sync fetches rates per base currency and upserts the ones in use.
// A failing base does not stop the others; the joined error is returned.
func (s *RateSync) Sync(ctx context.Context) (*RateSyncResult, error) {
	bases, err := s.distinct(ctx, `SELECT DISTINCT base_currency FROM users`)
	if err != nil {
		return nil, err
	}
	used, err := s.distinct(ctx, `
		SELECT currency FROM holdings
		UNION SELECT currency FROM portfolio_balances
		UNION SELECT base_currency FROM users
	`)
	if err != nil {
		return nil, err
	}
	inUse := make(map[string]bool, len(used))
	for _, c := range used {
		inUse[c] = true
	}

	result := &RateSyncResult{Bases: len(bases)}
	var errs []error
	for _, base := range bases {
		stored, err := s.syncBase(ctx, base, inUse)
		if err != nil {
			result.Failed++
			errs = append(errs, fmt.Errorf("base %s: %w", base, err))
			s.log.Warn().Err(err).Str("base", base).Msg("Rate sync failed")
			continue
		}
		result.Stored += stored
	}

	s.log.Info().
		Int("bases", result.Bases).
		Int("stored", result.Stored).
		Int("failed", result.Failed).
		Msg("Exchange rate sync complete")

	return result, errors.Join(errs...)
}

func (s *RateSync) syncBase(ctx context.Context, base string, inUse map[string]bool) (int, error) {
	// Fetch before opening the transaction
	rates, err := s.provider.GetLatestRates(ctx, base)
	if err != nil {
		return 0, err
	}

	stored := 0
	err = database.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		repo := NewRateRepository(tx, s.log)
		for _, rate := range rates {
			if !inUse[rate.QuoteCurrency] {
				continue
			}
			if err := repo.Upsert(ctx, rate); err != nil {
				return err
			}
			stored++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return stored, nil
}

func (s *RateSync) distinct(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list currencies: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan currency: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
