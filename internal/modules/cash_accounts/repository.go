// Package cash_accounts provides a minimal ledger of cash-account transactions
// living outside the investment subsystem. Transfers link to these records
// when one leg of a cash movement is a bank or wallet account.
package cash_accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/sentinel-ledger/internal/database"
	"github.com/aristath/sentinel-ledger/internal/domain"
	"github.com/aristath/sentinel-ledger/internal/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const accountTxColumns = `id, user_id, account_id, amount, currency, date, description, is_transfer, out_of_wallet, transfer_id, created_at`

// Repository handles account transaction persistence in ledger.db.
type Repository struct {
	db  database.Querier
	log zerolog.Logger
}

// NewRepository creates a new account transaction repository
func NewRepository(db database.Querier, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "account_transaction").Logger(),
	}
}

// WithTx returns a repository bound to an open transaction.
func (r *Repository) WithTx(tx *sql.Tx) *Repository {
	return &Repository{db: tx, log: r.log}
}

// Create records a standalone account transaction and returns it with its id assigned.
func (r *Repository) Create(ctx context.Context, t domain.AccountTransaction) (*domain.AccountTransaction, error) {
	if t.UserID == "" || t.AccountID == "" {
		return nil, domain.Validationf("user and account are required")
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.Currency = strings.ToUpper(t.Currency)
	t.Date = utils.NormalizeDate(t.Date)
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO account_transactions (`+accountTxColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.UserID, t.AccountID, utils.FormatDecimal(t.Amount), t.Currency, utils.DateToUnix(t.Date),
		t.Description, boolToInt(t.IsTransfer), boolToInt(t.OutOfWallet), t.TransferID, t.CreatedAt.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to create account transaction: %w", err)
	}

	return &t, nil
}

// Get returns an account transaction owned by userID, or NotFound.
func (r *Repository) Get(ctx context.Context, userID, id string) (*domain.AccountTransaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountTxColumns+` FROM account_transactions WHERE id = ?`, id)

	var (
		t                       domain.AccountTransaction
		date, createdAt         int64
		isTransfer, outOfWallet int
		transferID              sql.NullString
	)
	err := row.Scan(&t.ID, &t.UserID, &t.AccountID, &t.Amount, &t.Currency, &date, &t.Description,
		&isTransfer, &outOfWallet, &transferID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundf("account transaction %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account transaction %s: %w", id, err)
	}
	if t.UserID != userID {
		return nil, domain.NotFoundf("account transaction %s", id)
	}

	t.Date = utils.UnixToDate(date)
	t.IsTransfer = isTransfer != 0
	t.OutOfWallet = outOfWallet != 0
	if transferID.Valid {
		t.TransferID = &transferID.String
	}
	t.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &t, nil
}

// MarkTransfer tags the record as one leg of transferID.
// Fails with Conflict when the record already belongs to a transfer.
func (r *Repository) MarkTransfer(ctx context.Context, id, transferID string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE account_transactions
		SET is_transfer = 1, out_of_wallet = 0, transfer_id = ?
		WHERE id = ? AND transfer_id IS NULL
	`, transferID, id)
	if err != nil {
		return fmt.Errorf("failed to mark account transaction %s as transfer: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark account transaction %s as transfer: %w", id, err)
	}
	if n == 0 {
		return domain.Conflictf("account transaction %s is missing or already linked", id)
	}
	return nil
}

// MarkStandalone detaches the record from its transfer and keeps it as an
// out-of-wallet movement.
func (r *Repository) MarkStandalone(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE account_transactions
		SET is_transfer = 0, out_of_wallet = 1, transfer_id = NULL
		WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("failed to mark account transaction %s as standalone: %w", id, err)
	}

	r.log.Debug().Str("account_transaction_id", id).Msg("Detached account transaction from transfer")
	return nil
}

// Delete removes the record.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM account_transactions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete account transaction %s: %w", id, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
