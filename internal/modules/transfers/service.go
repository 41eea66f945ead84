package transfers

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/aristath/sentinel-ledger/internal/database"
	"github.com/aristath/sentinel-ledger/internal/domain"
	"github.com/aristath/sentinel-ledger/internal/modules/balances"
	"github.com/aristath/sentinel-ledger/internal/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// AccountLedger is the external cash-account ledger a transfer leg may link to.
type AccountLedger interface {
	Get(ctx context.Context, userID, id string) (*domain.AccountTransaction, error)
	MarkTransfer(ctx context.Context, id, transferID string) error
	MarkStandalone(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// AccountLedgerFactory binds an AccountLedger to a database handle or open transaction.
type AccountLedgerFactory func(q database.Querier) AccountLedger

// Request describes a new transfer. At least one of From and To is set.
type Request struct {
	FromPortfolioID     *string
	ToPortfolioID       *string
	Currency            string
	Amount              decimal.Decimal
	Date                time.Time
	LinkedTransactionID *string
	Description         string
}

func (r Request) validate() error {
	if r.FromPortfolioID == nil && r.ToPortfolioID == nil {
		return domain.Validationf("a transfer needs a source or a destination portfolio")
	}
	if r.FromPortfolioID != nil && r.ToPortfolioID != nil && *r.FromPortfolioID == *r.ToPortfolioID {
		return domain.Validationf("source and destination portfolio must differ")
	}
	if !r.Amount.IsPositive() {
		return domain.Validationf("transfer amount must be positive")
	}
	if strings.TrimSpace(r.Currency) == "" {
		return domain.Validationf("transfer currency is required")
	}
	return nil
}

// Service implements the Portfolio Transfer Engine.
// Both legs, the linked account record and the transfer row change in one
// database transaction.
type Service struct {
	db       *sql.DB
	repo     *Repository
	balances *balances.Service
	accounts AccountLedgerFactory
	now      domain.Clock
	log      zerolog.Logger
}

// NewService creates a new transfer service. accounts may be nil when no
// external cash-account ledger is available; linked transfers then fail.
func NewService(db *sql.DB, balanceService *balances.Service, accounts AccountLedgerFactory, log zerolog.Logger) *Service {
	return &Service{
		db:       db,
		repo:     NewRepository(db, log),
		balances: balanceService,
		accounts: accounts,
		now:      time.Now,
		log:      log.With().Str("service", "transfers").Logger(),
	}
}

// SetClock overrides the time source
func (s *Service) SetClock(now domain.Clock) {
	s.now = now
}

// CreateTransfer moves Amount out of the source's available and total cash and
// into the destination's, linking the optional account transaction.
func (s *Service) CreateTransfer(ctx context.Context, userID string, req Request) (*domain.PortfolioTransfer, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if req.LinkedTransactionID != nil && s.accounts == nil {
		return nil, domain.NotFoundf("account transaction %s", *req.LinkedTransactionID)
	}

	now := s.now().UTC().Truncate(time.Second)
	date := req.Date
	if date.IsZero() {
		date = now
	}

	t := domain.PortfolioTransfer{
		ID:                  uuid.NewString(),
		UserID:              userID,
		FromPortfolioID:     req.FromPortfolioID,
		ToPortfolioID:       req.ToPortfolioID,
		Currency:            strings.ToUpper(strings.TrimSpace(req.Currency)),
		Amount:              req.Amount,
		Date:                utils.NormalizeDate(date),
		LinkedTransactionID: req.LinkedTransactionID,
		Description:         strings.TrimSpace(req.Description),
		CreatedAt:           now,
	}

	err := database.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.moveLegs(ctx, tx, userID, t, t.Amount); err != nil {
			return err
		}

		if err := s.repo.WithTx(tx).Insert(ctx, t); err != nil {
			return err
		}

		if t.LinkedTransactionID != nil {
			accounts := s.accounts(tx)
			linked, err := accounts.Get(ctx, userID, *t.LinkedTransactionID)
			if err != nil {
				return err
			}
			if linked.IsTransfer || linked.TransferID != nil {
				return domain.Conflictf("account transaction %s already belongs to a transfer", linked.ID)
			}
			if err := accounts.MarkTransfer(ctx, *t.LinkedTransactionID, t.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("transfer_id", t.ID).
		Str("currency", t.Currency).
		Str("amount", t.Amount.String()).
		Msg("Created transfer")

	return &t, nil
}

// moveLegs subtracts amount from the source leg and adds it to the destination leg.
// Passing a negated amount reverses a transfer.
func (s *Service) moveLegs(ctx context.Context, tx *sql.Tx, userID string, t domain.PortfolioTransfer, amount decimal.Decimal) error {
	if t.FromPortfolioID != nil {
		if _, err := s.balances.ApplyTx(ctx, tx, userID, *t.FromPortfolioID, t.Currency, balances.Delta(amount.Neg())); err != nil {
			return err
		}
	}
	if t.ToPortfolioID != nil {
		if _, err := s.balances.ApplyTx(ctx, tx, userID, *t.ToPortfolioID, t.Currency, balances.Delta(amount)); err != nil {
			return err
		}
	}
	return nil
}

// DeleteTransfer reverses both legs and removes the transfer. The linked account
// transaction is deleted when deleteLinked is set, otherwise kept as an
// out-of-wallet standalone record. A missing or foreign transfer is a no-op.
func (s *Service) DeleteTransfer(ctx context.Context, userID, transferID string, deleteLinked bool) error {
	reversed := false

	err := database.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		repo := s.repo.WithTx(tx)
		t, err := repo.Get(ctx, transferID)
		if err != nil {
			return err
		}
		if t == nil || t.UserID != userID {
			return nil
		}

		if err := s.moveLegs(ctx, tx, userID, *t, t.Amount.Neg()); err != nil {
			return err
		}

		if t.LinkedTransactionID != nil && s.accounts != nil {
			accounts := s.accounts(tx)
			if deleteLinked {
				err = accounts.Delete(ctx, *t.LinkedTransactionID)
			} else {
				err = accounts.MarkStandalone(ctx, *t.LinkedTransactionID)
			}
			if err != nil {
				return err
			}
		}

		if err := repo.Delete(ctx, t.ID); err != nil {
			return err
		}
		reversed = true
		return nil
	})
	if err != nil {
		return err
	}

	if reversed {
		s.log.Info().
			Str("transfer_id", transferID).
			Bool("delete_linked", deleteLinked).
			Msg("Reversed transfer")
	}

	return nil
}

// GetTransfer returns a transfer owned by userID.
func (s *Service) GetTransfer(ctx context.Context, userID, transferID string) (*domain.PortfolioTransfer, error) {
	t, err := s.repo.Get(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if t == nil || t.UserID != userID {
		return nil, domain.NotFoundf("transfer %s", transferID)
	}
	return t, nil
}

// ListTransfers returns the user's transfers, optionally restricted to one portfolio.
func (s *Service) ListTransfers(ctx context.Context, userID, portfolioID string) ([]domain.PortfolioTransfer, error) {
	return s.repo.ListByUser(ctx, userID, portfolioID)
}
