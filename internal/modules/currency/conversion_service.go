package currency

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/aristath/sentinel-ledger/internal/database"
	"github.com/aristath/sentinel-ledger/internal/domain"
	"github.com/aristath/sentinel-ledger/internal/modules/settings"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// inverseScale is the precision used when a rate is applied through its inverse pair.
const inverseScale int32 = 20

// IsKnownCurrency reports whether code is an ISO 4217 currency.
func IsKnownCurrency(code string) bool {
	return money.GetCurrency(strings.ToUpper(code)) != nil
}

// ConversionService converts amounts into a user's base currency using stored
// historical rates. It never mutates the ledger and never performs network I/O,
// so it is safe to call inside an open database transaction.
type ConversionService struct {
	settings *settings.Repository
	rates    *RateRepository
	log      zerolog.Logger
}

// NewConversionService creates a new conversion service reading from db
func NewConversionService(db database.Querier, log zerolog.Logger) *ConversionService {
	return &ConversionService{
		settings: settings.NewRepository(db, log),
		rates:    NewRateRepository(db, log),
		log:      log.With().Str("service", "currency_conversion").Logger(),
	}
}

// WithTx returns a service whose reads run inside tx.
func (s *ConversionService) WithTx(tx *sql.Tx) *ConversionService {
	return &ConversionService{
		settings: s.settings.WithTx(tx),
		rates:    s.rates.WithTx(tx),
		log:      s.log,
	}
}

// BaseCurrency returns the user's reporting currency.
func (s *ConversionService) BaseCurrency(ctx context.Context, userID string) (string, error) {
	return s.settings.GetBaseCurrency(ctx, userID)
}

// quote is a resolved rate for a pair; inverse means the stored row was for
// the opposite direction and amounts must be divided by rate.
type quote struct {
	rate    decimal.Decimal
	inverse bool
}

func (q quote) apply(amount decimal.Decimal) decimal.Decimal {
	if q.inverse {
		return amount.DivRound(q.rate, inverseScale).Round(domain.DecimalScale)
	}
	return amount.Mul(q.rate).Round(domain.DecimalScale)
}

// lookup finds the nearest prior rate for from→to, falling back to the inverse pair.
func (s *ConversionService) lookup(ctx context.Context, from, to string, asOf time.Time) (quote, error) {
	direct, err := s.rates.LatestOnOrBefore(ctx, from, to, asOf)
	if err != nil {
		return quote{}, err
	}
	if direct != nil {
		return quote{rate: direct.Rate}, nil
	}

	inverse, err := s.rates.LatestOnOrBefore(ctx, to, from, asOf)
	if err != nil {
		return quote{}, err
	}
	if inverse != nil {
		return quote{rate: inverse.Rate, inverse: true}, nil
	}

	return quote{}, domain.RateNotFoundf("%s/%s on or before %s", from, to, asOf.UTC().Format("2006-01-02"))
}

// Rate returns the multiplier converting one unit of from into to as of asOf.
func (s *ConversionService) Rate(ctx context.Context, from, to string, asOf time.Time) (decimal.Decimal, error) {
	from, to = strings.ToUpper(strings.TrimSpace(from)), strings.ToUpper(strings.TrimSpace(to))
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	q, err := s.lookup(ctx, from, to, asOf)
	if err != nil {
		return decimal.Zero, err
	}
	if q.inverse {
		return decimal.NewFromInt(1).DivRound(q.rate, inverseScale), nil
	}
	return q.rate, nil
}

// Convert expresses amount (in fromCurrency) in the user's base currency as of asOf.
// Fails with NotFound for unknown users and RateNotFound when no rate covers asOf.
func (s *ConversionService) Convert(ctx context.Context, amount decimal.Decimal, fromCurrency string, asOf time.Time, userID string) (decimal.Decimal, error) {
	converted, err := s.ConvertMany(ctx, fromCurrency, asOf, userID, amount)
	if err != nil {
		return decimal.Zero, err
	}
	return converted[0], nil
}

// ConvertMany converts several amounts sharing a currency and date with a single rate lookup.
// Results are returned in argument order.
func (s *ConversionService) ConvertMany(ctx context.Context, fromCurrency string, asOf time.Time, userID string, amounts ...decimal.Decimal) ([]decimal.Decimal, error) {
	fromCurrency = strings.ToUpper(strings.TrimSpace(fromCurrency))
	base, err := s.settings.GetBaseCurrency(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]decimal.Decimal, len(amounts))
	if fromCurrency == base {
		for i, a := range amounts {
			out[i] = a.Round(domain.DecimalScale)
		}
		return out, nil
	}

	q, err := s.lookup(ctx, fromCurrency, base, asOf)
	if err != nil {
		s.log.Debug().
			Err(err).
			Str("from", fromCurrency).
			Str("to", base).
			Msg("No exchange rate available")
		return nil, err
	}

	for i, a := range amounts {
		out[i] = q.apply(a)
	}
	return out, nil
}
