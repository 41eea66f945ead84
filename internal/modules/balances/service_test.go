package balances

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aristath/sentinel-ledger/internal/domain"
	"github.com/aristath/sentinel-ledger/internal/modules/currency"
	testingpkg "github.com/aristath/sentinel-ledger/internal/testing"
	"github.com/aristath/sentinel-ledger/internal/utils"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) *decimal.Decimal {
	d := utils.MustDecimal(s)
	return &d
}

func setupService(t *testing.T) (*Service, func()) {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t, "ledger")
	testingpkg.SeedLedger(t, db)
	testingpkg.SeedRate(t, db, "EUR", "USD", "2024-01-01", "1.1")
	testingpkg.SeedRate(t, db, "EUR", "USD", "2024-06-01", "1.2")

	log := zerolog.Nop()
	svc := NewService(db.Conn(), currency.NewConversionService(db.Conn(), log), log)
	svc.SetClock(func() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) })
	return svc, cleanup
}

func TestService_UpdateBalanceDeltas(t *testing.T) {
	svc, cleanup := setupService(t)
	defer cleanup()
	ctx := context.Background()

	b, err := svc.UpdateBalance(ctx, testingpkg.TestUserID, testingpkg.TestPortfolioID, "usd", Delta(utils.MustDecimal("100.10")))
	require.NoError(t, err)
	assert.Equal(t, "USD", b.Currency)
	assert.Equal(t, "100.1", b.AvailableCash.String())
	assert.Equal(t, "100.1", b.TotalCash.String())
	assert.Equal(t, "100.1", b.RefAvailableCash.String())

	b, err = svc.UpdateBalance(ctx, testingpkg.TestUserID, testingpkg.TestPortfolioID, "USD", Update{AvailableDelta: dec("-30.05")})
	require.NoError(t, err)
	assert.Equal(t, "70.05", b.AvailableCash.String())
	assert.Equal(t, "100.1", b.TotalCash.String(), "total untouched when only available changes")
}

func TestService_UpdateBalanceSets(t *testing.T) {
	svc, cleanup := setupService(t)
	defer cleanup()
	ctx := context.Background()

	_, err := svc.UpdateBalance(ctx, testingpkg.TestUserID, testingpkg.TestPortfolioID, "USD", Delta(utils.MustDecimal("50")))
	require.NoError(t, err)

	b, err := svc.UpdateBalance(ctx, testingpkg.TestUserID, testingpkg.TestPortfolioID, "USD", Update{
		SetAvailable: dec("10"),
		TotalDelta:   dec("5"),
	})
	require.NoError(t, err)
	assert.Equal(t, "10", b.AvailableCash.String())
	assert.Equal(t, "55", b.TotalCash.String())
}

func TestService_RefUsesRateAsOfNow(t *testing.T) {
	svc, cleanup := setupService(t)
	defer cleanup()
	ctx := context.Background()

	b, err := svc.UpdateBalance(ctx, testingpkg.TestUserID, testingpkg.TestPortfolioID, "EUR", Delta(utils.MustDecimal("100")))
	require.NoError(t, err)
	assert.Equal(t, "110", b.RefAvailableCash.String())

	svc.SetClock(func() time.Time { return time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC) })
	b, err = svc.UpdateBalance(ctx, testingpkg.TestUserID, testingpkg.TestPortfolioID, "EUR", Delta(utils.MustDecimal("0")))
	require.NoError(t, err)
	assert.Equal(t, "120", b.RefAvailableCash.String(), "ref figures follow the latest rate")
	assert.Equal(t, "120", b.RefTotalCash.String())
}

func TestService_UpdateBalanceErrors(t *testing.T) {
	svc, cleanup := setupService(t)
	defer cleanup()
	ctx := context.Background()

	tests := []struct {
		name        string
		userID      string
		portfolioID string
		currency    string
		upd         Update
		expected    error
	}{
		{"delta and set on available", testingpkg.TestUserID, testingpkg.TestPortfolioID, "USD", Update{AvailableDelta: dec("1"), SetAvailable: dec("2")}, domain.ErrValidation},
		{"delta and set on total", testingpkg.TestUserID, testingpkg.TestPortfolioID, "USD", Update{TotalDelta: dec("1"), SetTotal: dec("2")}, domain.ErrValidation},
		{"empty update", testingpkg.TestUserID, testingpkg.TestPortfolioID, "USD", Update{}, domain.ErrValidation},
		{"unknown currency", testingpkg.TestUserID, testingpkg.TestPortfolioID, "QQQ", Delta(decimal.NewFromInt(1)), domain.ErrNotFound},
		{"missing portfolio", testingpkg.TestUserID, "nope", "USD", Delta(decimal.NewFromInt(1)), domain.ErrNotFound},
		{"foreign portfolio", testingpkg.TestUserID, testingpkg.OtherPortfolioID, "USD", Delta(decimal.NewFromInt(1)), domain.ErrNotFound},
		{"no rate for currency", testingpkg.TestUserID, testingpkg.TestPortfolioID, "JPY", Delta(decimal.NewFromInt(1)), domain.ErrRateNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateBalance(ctx, tt.userID, tt.portfolioID, tt.currency, tt.upd)
			assert.True(t, errors.Is(err, tt.expected), "got %v", err)
		})
	}

	list, err := svc.ListBalances(ctx, testingpkg.TestUserID, testingpkg.TestPortfolioID)
	require.NoError(t, err)
	assert.Empty(t, list, "failed updates leave no rows behind")
}

func TestService_GetBalanceDefaultsToZero(t *testing.T) {
	svc, cleanup := setupService(t)
	defer cleanup()

	b, err := svc.GetBalance(context.Background(), testingpkg.TestUserID, testingpkg.TestPortfolioID, "gbp")
	require.NoError(t, err)
	assert.Equal(t, "GBP", b.Currency)
	assert.True(t, b.AvailableCash.IsZero())
	assert.True(t, b.TotalCash.IsZero())
}

func TestService_BalanceMayGoNegative(t *testing.T) {
	svc, cleanup := setupService(t)
	defer cleanup()

	b, err := svc.UpdateBalance(context.Background(), testingpkg.TestUserID, testingpkg.TestPortfolioID, "USD", Delta(utils.MustDecimal("-25")))
	require.NoError(t, err)
	assert.Equal(t, "-25", b.AvailableCash.String())
}
