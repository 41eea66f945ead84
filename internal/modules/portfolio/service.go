package portfolio

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/aristath/sentinel-ledger/internal/database"
	"github.com/aristath/sentinel-ledger/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service orchestrates portfolio lifecycle operations.
//
// Responsibilities:
//   - Create portfolios for a user
//   - Enforce ownership on reads
//   - Soft-disable and rename portfolios
type Service struct {
	db   *sql.DB
	repo *Repository
	now  domain.Clock
	log  zerolog.Logger
}

// NewService creates a new portfolio service
func NewService(db *sql.DB, log zerolog.Logger) *Service {
	return &Service{
		db:   db,
		repo: NewRepository(db, log),
		now:  time.Now,
		log:  log.With().Str("service", "portfolio").Logger(),
	}
}

// SetClock overrides the time source
func (s *Service) SetClock(now domain.Clock) {
	s.now = now
}

// CreatePortfolio creates an enabled portfolio owned by userID.
func (s *Service) CreatePortfolio(ctx context.Context, userID, name string, portfolioType domain.PortfolioType, description string) (*domain.Portfolio, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.Validationf("portfolio name is required")
	}
	if !portfolioType.Valid() {
		return nil, domain.Validationf("unknown portfolio type %q", portfolioType)
	}

	now := s.now().UTC().Truncate(time.Second)
	p := domain.Portfolio{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        name,
		Type:        portfolioType,
		Enabled:     true,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("portfolio_id", p.ID).
		Str("user_id", userID).
		Str("type", string(portfolioType)).
		Msg("Created portfolio")

	return &p, nil
}

// GetPortfolio returns the portfolio, or NotFound when missing or owned by another user.
func (s *Service) GetPortfolio(ctx context.Context, userID, id string) (*domain.Portfolio, error) {
	return s.repo.GetOwned(ctx, userID, id)
}

// ListPortfolios returns all portfolios of userID, disabled ones included.
func (s *Service) ListPortfolios(ctx context.Context, userID string) ([]domain.Portfolio, error) {
	return s.repo.ListByUser(ctx, userID)
}

// SetEnabled soft-enables or soft-disables a portfolio.
func (s *Service) SetEnabled(ctx context.Context, userID, id string, enabled bool) (*domain.Portfolio, error) {
	return s.mutate(ctx, userID, id, func(p *domain.Portfolio) error {
		p.Enabled = enabled
		return nil
	})
}

// Rename changes the display name and description.
func (s *Service) Rename(ctx context.Context, userID, id, name, description string) (*domain.Portfolio, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.Validationf("portfolio name is required")
	}
	return s.mutate(ctx, userID, id, func(p *domain.Portfolio) error {
		p.Name = name
		p.Description = description
		return nil
	})
}

func (s *Service) mutate(ctx context.Context, userID, id string, fn func(*domain.Portfolio) error) (*domain.Portfolio, error) {
	var updated *domain.Portfolio
	err := database.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		repo := s.repo.WithTx(tx)
		p, err := repo.GetOwned(ctx, userID, id)
		if err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
		p.UpdatedAt = s.now().UTC().Truncate(time.Second)
		if err := repo.Update(ctx, *p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("portfolio_id", id).
		Bool("enabled", updated.Enabled).
		Msg("Updated portfolio")

	return updated, nil
}
