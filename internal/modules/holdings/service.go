package holdings

import (
	"context"
	"database/sql"
	"time"

	"github.com/aristath/sentinel-ledger/internal/database"
	"github.com/aristath/sentinel-ledger/internal/domain"
	"github.com/aristath/sentinel-ledger/internal/modules/portfolio"
	"github.com/aristath/sentinel-ledger/internal/modules/universe"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Service implements the Holdings Ledger operations.
//
// Responsibilities:
//   - Open zero-quantity holdings and trigger historical price priming
//   - Refuse to discard open positions
//   - Read holdings with ownership checks
//
// Dependencies:
//   - portfolio.Repository: ownership and portfolio state
//   - universe.SecurityRepository: security existence and currency
//   - domain.PricePrimer: best-effort price backfill after creation
type Service struct {
	db         *sql.DB
	repo       *Repository
	portfolios *portfolio.Repository
	securities *universe.SecurityRepository
	primer     domain.PricePrimer
	now        domain.Clock
	log        zerolog.Logger
}

// NewService creates a new holdings service. primer may be nil.
func NewService(db *sql.DB, primer domain.PricePrimer, log zerolog.Logger) *Service {
	return &Service{
		db:         db,
		repo:       NewRepository(db, log),
		portfolios: portfolio.NewRepository(db, log),
		securities: universe.NewSecurityRepository(db, log),
		primer:     primer,
		now:        time.Now,
		log:        log.With().Str("service", "holdings").Logger(),
	}
}

// SetClock overrides the time source
func (s *Service) SetClock(now domain.Clock) {
	s.now = now
}

// CreateHolding adds a security to a portfolio with zero quantity and cost basis.
//
// Fails with NotFound when the portfolio is missing or not owned by userID or
// the security is unknown, NotAllowed when the portfolio is disabled or
// cash-only, and Conflict when the holding already exists. Historical price
// priming is scheduled after commit and never affects the result.
func (s *Service) CreateHolding(ctx context.Context, userID, portfolioID, securityID string) (*domain.Holding, error) {
	var created *domain.Holding

	err := database.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		p, err := s.portfolios.WithTx(tx).GetOwned(ctx, userID, portfolioID)
		if err != nil {
			return err
		}
		if !p.Enabled {
			return domain.NotAllowedf("portfolio %s is disabled", portfolioID)
		}
		if p.Type == domain.PortfolioTypeCash {
			return domain.NotAllowedf("portfolio %s holds cash only", portfolioID)
		}

		sec, err := s.securities.WithTx(tx).GetByID(ctx, securityID)
		if err != nil {
			return err
		}
		if sec == nil {
			return domain.NotFoundf("security %s", securityID)
		}

		repo := s.repo.WithTx(tx)
		key := domain.HoldingKey{PortfolioID: portfolioID, SecurityID: securityID}
		existing, err := repo.Get(ctx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.Conflictf("holding %s/%s already exists", portfolioID, securityID)
		}

		now := s.now().UTC().Truncate(time.Second)
		h := domain.Holding{
			PortfolioID:  portfolioID,
			SecurityID:   securityID,
			Quantity:     decimal.Zero,
			CostBasis:    decimal.Zero,
			RefCostBasis: decimal.Zero,
			Currency:     sec.Currency,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := repo.Insert(ctx, h); err != nil {
			return err
		}
		created = &h
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("portfolio_id", portfolioID).
		Str("security_id", securityID).
		Msg("Created holding")

	if s.primer != nil {
		s.primer.PrimeAsync(securityID)
	}

	return created, nil
}

// DeleteHolding removes a zero-quantity holding together with its transactions.
// A missing holding is a no-op; an open position fails with NotAllowed.
func (s *Service) DeleteHolding(ctx context.Context, userID, portfolioID, securityID string) error {
	deleted := false

	err := database.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := s.portfolios.WithTx(tx).GetOwned(ctx, userID, portfolioID); err != nil {
			return err
		}

		repo := s.repo.WithTx(tx)
		key := domain.HoldingKey{PortfolioID: portfolioID, SecurityID: securityID}
		h, err := repo.Get(ctx, key)
		if err != nil {
			return err
		}
		if h == nil {
			return nil
		}
		if !h.Quantity.IsZero() {
			return domain.NotAllowedf("holding %s/%s has open quantity %s", portfolioID, securityID, h.Quantity.String())
		}

		if err := repo.Delete(ctx, key); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return err
	}

	if deleted {
		s.log.Info().
			Str("portfolio_id", portfolioID).
			Str("security_id", securityID).
			Msg("Deleted holding")
	}

	return nil
}

// GetHolding returns a holding of a portfolio owned by userID.
func (s *Service) GetHolding(ctx context.Context, userID, portfolioID, securityID string) (*domain.Holding, error) {
	if _, err := s.portfolios.GetOwned(ctx, userID, portfolioID); err != nil {
		return nil, err
	}
	h, err := s.repo.Get(ctx, domain.HoldingKey{PortfolioID: portfolioID, SecurityID: securityID})
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, domain.NotFoundf("holding %s/%s", portfolioID, securityID)
	}
	return h, nil
}

// ListHoldings returns the holdings of a portfolio owned by userID.
func (s *Service) ListHoldings(ctx context.Context, userID, portfolioID string) ([]domain.Holding, error) {
	if _, err := s.portfolios.GetOwned(ctx, userID, portfolioID); err != nil {
		return nil, err
	}
	return s.repo.ListByPortfolio(ctx, portfolioID)
}
