package balances

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/aristath/sentinel-ledger/internal/database"
	"github.com/aristath/sentinel-ledger/internal/domain"
	"github.com/aristath/sentinel-ledger/internal/modules/currency"
	"github.com/aristath/sentinel-ledger/internal/modules/portfolio"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Update describes a balance mutation. Each field takes either a delta or an
// absolute value, never both; at least one field must be given.
type Update struct {
	AvailableDelta *decimal.Decimal
	TotalDelta     *decimal.Decimal
	SetAvailable   *decimal.Decimal
	SetTotal       *decimal.Decimal
}

// Delta returns an Update adding amount to both available and total cash.
func Delta(amount decimal.Decimal) Update {
	return Update{AvailableDelta: &amount, TotalDelta: &amount}
}

func (u Update) validate() error {
	if u.AvailableDelta != nil && u.SetAvailable != nil {
		return domain.Validationf("available cash takes a delta or a value, not both")
	}
	if u.TotalDelta != nil && u.SetTotal != nil {
		return domain.Validationf("total cash takes a delta or a value, not both")
	}
	if u.AvailableDelta == nil && u.SetAvailable == nil && u.TotalDelta == nil && u.SetTotal == nil {
		return domain.Validationf("balance update has no fields")
	}
	return nil
}

func apply(current decimal.Decimal, delta, set *decimal.Decimal) decimal.Decimal {
	switch {
	case set != nil:
		return *set
	case delta != nil:
		return current.Add(*delta)
	default:
		return current
	}
}

// Service implements the Portfolio Balance Engine.
//
// Reference figures are converted as of now rather than as of the movement
// date, so ref totals track today's rate instead of summing historical conversions.
type Service struct {
	db         *sql.DB
	repo       *Repository
	portfolios *portfolio.Repository
	conversion *currency.ConversionService
	now        domain.Clock
	log        zerolog.Logger
}

// NewService creates a new balance service
func NewService(db *sql.DB, conversion *currency.ConversionService, log zerolog.Logger) *Service {
	return &Service{
		db:         db,
		repo:       NewRepository(db, log),
		portfolios: portfolio.NewRepository(db, log),
		conversion: conversion,
		now:        time.Now,
		log:        log.With().Str("service", "balances").Logger(),
	}
}

// SetClock overrides the time source used for "now" conversions
func (s *Service) SetClock(now domain.Clock) {
	s.now = now
}

// UpdateBalance applies upd to the (portfolio, currency) balance in its own transaction.
func (s *Service) UpdateBalance(ctx context.Context, userID, portfolioID, currencyCode string, upd Update) (*domain.PortfolioBalance, error) {
	var b *domain.PortfolioBalance
	err := database.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		b, err = s.ApplyTx(ctx, tx, userID, portfolioID, currencyCode, upd)
		return err
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ApplyTx applies upd inside an open transaction.
// The row is created with zeros on first use. Fails with NotFound when the
// portfolio is missing or foreign or the currency is unknown.
func (s *Service) ApplyTx(ctx context.Context, tx *sql.Tx, userID, portfolioID, currencyCode string, upd Update) (*domain.PortfolioBalance, error) {
	if err := upd.validate(); err != nil {
		return nil, err
	}
	currencyCode = strings.ToUpper(strings.TrimSpace(currencyCode))
	if !currency.IsKnownCurrency(currencyCode) {
		return nil, domain.NotFoundf("currency %q", currencyCode)
	}

	if _, err := s.portfolios.WithTx(tx).GetOwned(ctx, userID, portfolioID); err != nil {
		return nil, err
	}

	repo := s.repo.WithTx(tx)
	current, err := repo.Get(ctx, portfolioID, currencyCode)
	if err != nil {
		return nil, err
	}
	if current == nil {
		current = &domain.PortfolioBalance{
			PortfolioID:   portfolioID,
			Currency:      currencyCode,
			AvailableCash: decimal.Zero,
			TotalCash:     decimal.Zero,
		}
	}

	now := s.now().UTC()
	next := domain.PortfolioBalance{
		PortfolioID:   portfolioID,
		Currency:      currencyCode,
		AvailableCash: apply(current.AvailableCash, upd.AvailableDelta, upd.SetAvailable).Round(domain.DecimalScale),
		TotalCash:     apply(current.TotalCash, upd.TotalDelta, upd.SetTotal).Round(domain.DecimalScale),
		UpdatedAt:     now.Truncate(time.Second),
	}

	ref, err := s.conversion.WithTx(tx).ConvertMany(ctx, currencyCode, now, userID, next.AvailableCash, next.TotalCash)
	if err != nil {
		return nil, err
	}
	next.RefAvailableCash, next.RefTotalCash = ref[0], ref[1]

	if err := repo.Upsert(ctx, next); err != nil {
		return nil, err
	}

	s.log.Debug().
		Str("portfolio_id", portfolioID).
		Str("currency", currencyCode).
		Str("available", next.AvailableCash.String()).
		Str("total", next.TotalCash.String()).
		Msg("Updated balance")

	return &next, nil
}

// GetBalance returns the balance of one currency; a never-touched currency reads as zero.
func (s *Service) GetBalance(ctx context.Context, userID, portfolioID, currencyCode string) (*domain.PortfolioBalance, error) {
	if _, err := s.portfolios.GetOwned(ctx, userID, portfolioID); err != nil {
		return nil, err
	}
	currencyCode = strings.ToUpper(currencyCode)
	b, err := s.repo.Get(ctx, portfolioID, currencyCode)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return &domain.PortfolioBalance{
			PortfolioID:      portfolioID,
			Currency:         currencyCode,
			AvailableCash:    decimal.Zero,
			TotalCash:        decimal.Zero,
			RefAvailableCash: decimal.Zero,
			RefTotalCash:     decimal.Zero,
		}, nil
	}
	return b, nil
}

// ListBalances returns every stored currency balance of a portfolio.
func (s *Service) ListBalances(ctx context.Context, userID, portfolioID string) ([]domain.PortfolioBalance, error) {
	if _, err := s.portfolios.GetOwned(ctx, userID, portfolioID); err != nil {
		return nil, err
	}
	return s.repo.ListByPortfolio(ctx, portfolioID)
}
