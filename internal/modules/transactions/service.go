package transactions

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/aristath/sentinel-ledger/internal/database"
	"github.com/aristath/sentinel-ledger/internal/domain"
	"github.com/aristath/sentinel-ledger/internal/modules/currency"
	"github.com/aristath/sentinel-ledger/internal/modules/holdings"
	"github.com/aristath/sentinel-ledger/internal/modules/portfolio"
	"github.com/aristath/sentinel-ledger/internal/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Input carries the caller-supplied figures of a transaction.
// PortfolioID and SecurityID are required on create and must be empty or
// unchanged on update.
type Input struct {
	PortfolioID string
	SecurityID  string
	Category    domain.TransactionCategory
	Date        time.Time
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	Fees        decimal.Decimal
	Description string
}

// Result is a written transaction together with the recalculated holding.
type Result struct {
	Transaction domain.InvestmentTransaction
	Holding     domain.Holding
}

// Service implements the Transaction Recording API.
//
// Control flow for each write, inside one database transaction:
// validate against the holding → persist → convert to the base currency at the
// transaction date → replay the holding's full history.
type Service struct {
	db         *sql.DB
	repo       *Repository
	portfolios *portfolio.Repository
	holdings   *holdings.Repository
	conversion *currency.ConversionService
	recalc     *holdings.Recalculator
	now        domain.Clock
	log        zerolog.Logger
}

// NewService creates a new transaction recording service
func NewService(db *sql.DB, conversion *currency.ConversionService, recalc *holdings.Recalculator, log zerolog.Logger) *Service {
	return &Service{
		db:         db,
		repo:       NewRepository(db, log),
		portfolios: portfolio.NewRepository(db, log),
		holdings:   holdings.NewRepository(db, log),
		conversion: conversion,
		recalc:     recalc,
		now:        time.Now,
		log:        log.With().Str("service", "transactions").Logger(),
	}
}

// SetClock overrides the time source
func (s *Service) SetClock(now domain.Clock) {
	s.now = now
}

func validateInput(in Input) error {
	if !in.Category.Valid() {
		return domain.Validationf("unknown category %q", in.Category)
	}
	if in.Date.IsZero() {
		return domain.Validationf("date is required")
	}
	if in.Category.AffectsPosition() {
		if !in.Quantity.IsPositive() {
			return domain.Validationf("%s quantity must be positive", in.Category)
		}
	} else if in.Quantity.IsNegative() {
		return domain.Validationf("%s quantity must not be negative", in.Category)
	}
	if in.Price.IsNegative() {
		return domain.Validationf("price must not be negative")
	}
	if in.Fees.IsNegative() {
		return domain.Validationf("fees must not be negative")
	}
	return nil
}

// loadHolding checks ownership and returns the holding for key.
func (s *Service) loadHolding(ctx context.Context, tx *sql.Tx, userID string, key domain.HoldingKey) (*domain.Holding, error) {
	if _, err := s.portfolios.WithTx(tx).GetOwned(ctx, userID, key.PortfolioID); err != nil {
		return nil, err
	}
	h, err := s.holdings.WithTx(tx).Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, domain.NotFoundf("holding %s/%s", key.PortfolioID, key.SecurityID)
	}
	return h, nil
}

// price fills amount and the reference figures of t at its date.
func (s *Service) price(ctx context.Context, tx *sql.Tx, t *domain.InvestmentTransaction) error {
	t.Amount = t.Quantity.Mul(t.Price).Round(domain.DecimalScale)
	ref, err := s.conversion.WithTx(tx).ConvertMany(ctx, t.Currency, t.Date, t.UserID, t.Amount, t.Price, t.Fees)
	if err != nil {
		return err
	}
	t.RefAmount, t.RefPrice, t.RefFees = ref[0], ref[1], ref[2]
	return nil
}

// CreateTransaction records a transaction against an existing holding and recalculates it.
// A sell larger than the holding's current quantity fails with a validation error
// before anything is written.
func (s *Service) CreateTransaction(ctx context.Context, userID string, in Input) (*Result, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	key := domain.HoldingKey{PortfolioID: in.PortfolioID, SecurityID: in.SecurityID}

	var res *Result
	err := database.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		h, err := s.loadHolding(ctx, tx, userID, key)
		if err != nil {
			return err
		}
		if in.Category == domain.CategorySell && in.Quantity.GreaterThan(h.Quantity) {
			return domain.Validationf("cannot sell %s of %s: holding has %s",
				in.Quantity.String(), key.SecurityID, h.Quantity.String())
		}

		now := s.now().UTC().Truncate(time.Second)
		t := domain.InvestmentTransaction{
			ID:          uuid.NewString(),
			UserID:      userID,
			PortfolioID: key.PortfolioID,
			SecurityID:  key.SecurityID,
			Category:    in.Category,
			Date:        utils.NormalizeDate(in.Date),
			Quantity:    in.Quantity,
			Price:       in.Price,
			Fees:        in.Fees,
			Currency:    h.Currency,
			Description: strings.TrimSpace(in.Description),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.price(ctx, tx, &t); err != nil {
			return err
		}

		seq, err := s.repo.WithTx(tx).Insert(ctx, t)
		if err != nil {
			return err
		}
		t.Seq = seq

		updated, err := s.recalc.Recalculate(ctx, tx, key)
		if err != nil {
			return err
		}

		res = &Result{Transaction: t, Holding: *updated}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("transaction_id", res.Transaction.ID).
		Str("category", string(res.Transaction.Category)).
		Str("portfolio_id", key.PortfolioID).
		Str("security_id", key.SecurityID).
		Str("quantity", res.Holding.Quantity.String()).
		Msg("Recorded transaction")

	return res, nil
}

// getOwned returns the transaction if it exists and belongs to userID.
func (s *Service) getOwned(ctx context.Context, repo *Repository, userID, id string) (*domain.InvestmentTransaction, error) {
	t, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil || t.UserID != userID {
		return nil, domain.NotFoundf("transaction %s", id)
	}
	return t, nil
}

// UpdateTransaction replaces the figures of a transaction and recalculates its holding.
// The new history must not take the holding below zero quantity.
func (s *Service) UpdateTransaction(ctx context.Context, userID, id string, in Input) (*Result, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	var res *Result
	err := database.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		repo := s.repo.WithTx(tx)
		t, err := s.getOwned(ctx, repo, userID, id)
		if err != nil {
			return err
		}
		if (in.PortfolioID != "" && in.PortfolioID != t.PortfolioID) ||
			(in.SecurityID != "" && in.SecurityID != t.SecurityID) {
			return domain.Validationf("a transaction cannot move to another holding")
		}

		key := t.HoldingKey()
		if _, err := s.loadHolding(ctx, tx, userID, key); err != nil {
			return err
		}

		t.Category = in.Category
		t.Date = utils.NormalizeDate(in.Date)
		t.Quantity = in.Quantity
		t.Price = in.Price
		t.Fees = in.Fees
		t.Description = strings.TrimSpace(in.Description)
		t.UpdatedAt = s.now().UTC().Truncate(time.Second)
		if err := s.price(ctx, tx, t); err != nil {
			return err
		}

		if err := repo.Update(ctx, *t); err != nil {
			return err
		}

		updated, err := s.recalc.Recalculate(ctx, tx, key)
		if err != nil {
			return err
		}

		res = &Result{Transaction: *t, Holding: *updated}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("transaction_id", id).
		Str("quantity", res.Holding.Quantity.String()).
		Msg("Updated transaction")

	return res, nil
}

// DeleteTransaction removes a transaction and recalculates its holding.
// Deleting a buy that later sells depend on fails with a validation error.
func (s *Service) DeleteTransaction(ctx context.Context, userID, id string) (*domain.Holding, error) {
	var holding *domain.Holding
	err := database.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		repo := s.repo.WithTx(tx)
		t, err := s.getOwned(ctx, repo, userID, id)
		if err != nil {
			return err
		}
		key := t.HoldingKey()
		if _, err := s.loadHolding(ctx, tx, userID, key); err != nil {
			return err
		}

		if err := repo.Delete(ctx, id); err != nil {
			return err
		}

		holding, err = s.recalc.Recalculate(ctx, tx, key)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("transaction_id", id).
		Str("quantity", holding.Quantity.String()).
		Msg("Deleted transaction")

	return holding, nil
}

// GetTransaction returns a transaction owned by userID.
func (s *Service) GetTransaction(ctx context.Context, userID, id string) (*domain.InvestmentTransaction, error) {
	return s.getOwned(ctx, s.repo, userID, id)
}

// ListTransactions returns a holding's transactions in replay order.
func (s *Service) ListTransactions(ctx context.Context, userID, portfolioID, securityID string) ([]domain.InvestmentTransaction, error) {
	if _, err := s.portfolios.GetOwned(ctx, userID, portfolioID); err != nil {
		return nil, err
	}
	return s.repo.ListByHolding(ctx, domain.HoldingKey{PortfolioID: portfolioID, SecurityID: securityID})
}
