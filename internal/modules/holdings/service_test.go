package holdings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aristath/sentinel-ledger/internal/database"
	"github.com/aristath/sentinel-ledger/internal/domain"
	testingpkg "github.com/aristath/sentinel-ledger/internal/testing"
	"github.com/aristath/sentinel-ledger/internal/utils"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupService(t *testing.T) (*database.DB, *Service, *testingpkg.RecordingPrimer, func()) {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t, "ledger")
	testingpkg.SeedLedger(t, db)

	primer := &testingpkg.RecordingPrimer{}
	svc := NewService(db.Conn(), primer, zerolog.Nop())
	return db, svc, primer, cleanup
}

// insertTx writes a transaction row directly, bypassing the recording service.
func insertTx(t *testing.T, db *database.DB, id string, category domain.TransactionCategory, date time.Time, qty, price, fees string) {
	t.Helper()
	amount := utils.MustDecimal(qty).Mul(utils.MustDecimal(price)).String()
	now := time.Now().Unix()
	_, err := db.Conn().Exec(`
		INSERT INTO investment_transactions
			(id, user_id, portfolio_id, security_id, category, date, quantity, price, fees,
			 amount, ref_amount, ref_price, ref_fees, currency, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'USD', '', ?, ?)
	`, id, testingpkg.TestUserID, testingpkg.TestPortfolioID, testingpkg.TestSecurityID, string(category), date.Unix(),
		qty, price, fees, amount, amount, price, fees, now, now)
	require.NoError(t, err)
}

func TestService_CreateHolding(t *testing.T) {
	_, svc, primer, cleanup := setupService(t)
	defer cleanup()
	ctx := context.Background()

	h, err := svc.CreateHolding(ctx, testingpkg.TestUserID, testingpkg.TestPortfolioID, testingpkg.TestSecurityID)
	require.NoError(t, err)
	assert.True(t, h.Quantity.IsZero())
	assert.True(t, h.CostBasis.IsZero())
	assert.True(t, h.RefCostBasis.IsZero())
	assert.Equal(t, "USD", h.Currency)
	assert.Equal(t, []string{testingpkg.TestSecurityID}, primer.Primed())

	_, err = svc.CreateHolding(ctx, testingpkg.TestUserID, testingpkg.TestPortfolioID, testingpkg.TestSecurityID)
	assert.True(t, errors.Is(err, domain.ErrConflict))
	assert.Len(t, primer.Primed(), 1, "a failed create must not prime")
}

func TestService_CreateHoldingErrors(t *testing.T) {
	db, svc, _, cleanup := setupService(t)
	defer cleanup()
	ctx := context.Background()

	testingpkg.SeedPortfolio(t, db, "cash-only", testingpkg.TestUserID, "cash")
	testingpkg.SeedPortfolio(t, db, "disabled", testingpkg.TestUserID, "investment")
	_, err := db.Conn().Exec(`UPDATE portfolios SET enabled = 0 WHERE id = 'disabled'`)
	require.NoError(t, err)

	tests := []struct {
		name        string
		userID      string
		portfolioID string
		securityID  string
		expected    error
	}{
		{"missing portfolio", testingpkg.TestUserID, "nope", testingpkg.TestSecurityID, domain.ErrNotFound},
		{"foreign portfolio", testingpkg.TestUserID, testingpkg.OtherPortfolioID, testingpkg.TestSecurityID, domain.ErrNotFound},
		{"missing security", testingpkg.TestUserID, testingpkg.TestPortfolioID, "sec-none", domain.ErrNotFound},
		{"cash portfolio", testingpkg.TestUserID, "cash-only", testingpkg.TestSecurityID, domain.ErrNotAllowed},
		{"disabled portfolio", testingpkg.TestUserID, "disabled", testingpkg.TestSecurityID, domain.ErrNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateHolding(ctx, tt.userID, tt.portfolioID, tt.securityID)
			assert.True(t, errors.Is(err, tt.expected), "got %v", err)
		})
	}
}

func TestService_DeleteHolding(t *testing.T) {
	db, svc, _, cleanup := setupService(t)
	defer cleanup()
	ctx := context.Background()

	// Missing holding is a no-op
	require.NoError(t, svc.DeleteHolding(ctx, testingpkg.TestUserID, testingpkg.TestPortfolioID, testingpkg.TestSecurityID))

	_, err := svc.CreateHolding(ctx, testingpkg.TestUserID, testingpkg.TestPortfolioID, testingpkg.TestSecurityID)
	require.NoError(t, err)

	key := domain.HoldingKey{PortfolioID: testingpkg.TestPortfolioID, SecurityID: testingpkg.TestSecurityID}
	insertTx(t, db, "t1", domain.CategoryBuy, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), "10", "100", "1")
	_, err = NewRecalculator(zerolog.Nop()).Recalculate(ctx, db.Conn(), key)
	require.NoError(t, err)

	// Open position cannot be discarded
	err = svc.DeleteHolding(ctx, testingpkg.TestUserID, testingpkg.TestPortfolioID, testingpkg.TestSecurityID)
	assert.True(t, errors.Is(err, domain.ErrNotAllowed))

	// Liquidate, then delete succeeds and cascades to transactions
	insertTx(t, db, "t2", domain.CategorySell, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), "10", "110", "0")
	_, err = NewRecalculator(zerolog.Nop()).Recalculate(ctx, db.Conn(), key)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteHolding(ctx, testingpkg.TestUserID, testingpkg.TestPortfolioID, testingpkg.TestSecurityID))

	_, err = svc.GetHolding(ctx, testingpkg.TestUserID, testingpkg.TestPortfolioID, testingpkg.TestSecurityID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	var remaining int
	require.NoError(t, db.Conn().QueryRow(`SELECT COUNT(*) FROM investment_transactions`).Scan(&remaining))
	assert.Equal(t, 0, remaining)
}

func TestService_DeleteHoldingForeignPortfolio(t *testing.T) {
	_, svc, _, cleanup := setupService(t)
	defer cleanup()

	err := svc.DeleteHolding(context.Background(), testingpkg.TestUserID, testingpkg.OtherPortfolioID, testingpkg.TestSecurityID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestService_ListHoldings(t *testing.T) {
	db, svc, _, cleanup := setupService(t)
	defer cleanup()
	ctx := context.Background()

	testingpkg.SeedSecurity(t, db, "sec-msft", "MSFT", "USD")
	_, err := svc.CreateHolding(ctx, testingpkg.TestUserID, testingpkg.TestPortfolioID, testingpkg.TestSecurityID)
	require.NoError(t, err)
	_, err = svc.CreateHolding(ctx, testingpkg.TestUserID, testingpkg.TestPortfolioID, "sec-msft")
	require.NoError(t, err)

	list, err := svc.ListHoldings(ctx, testingpkg.TestUserID, testingpkg.TestPortfolioID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, testingpkg.TestSecurityID, list[0].SecurityID)

	_, err = svc.ListHoldings(ctx, testingpkg.OtherUserID, testingpkg.TestPortfolioID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
