package transfers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aristath/sentinel-ledger/internal/database"
	"github.com/aristath/sentinel-ledger/internal/domain"
	"github.com/aristath/sentinel-ledger/internal/modules/balances"
	"github.com/aristath/sentinel-ledger/internal/modules/cash_accounts"
	"github.com/aristath/sentinel-ledger/internal/modules/currency"
	testingpkg "github.com/aristath/sentinel-ledger/internal/testing"
	"github.com/aristath/sentinel-ledger/internal/utils"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const portfolioB = "portfolio-a2"

type fixture struct {
	db       *database.DB
	svc      *Service
	balances *balances.Service
	accounts *cash_accounts.Repository
}

func setup(t *testing.T) (*fixture, func()) {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t, "ledger")
	testingpkg.SeedLedger(t, db)
	testingpkg.SeedPortfolio(t, db, portfolioB, testingpkg.TestUserID, "cash")

	log := zerolog.Nop()
	balanceSvc := balances.NewService(db.Conn(), currency.NewConversionService(db.Conn(), log), log)
	factory := func(q database.Querier) AccountLedger { return cash_accounts.NewRepository(q, log) }

	return &fixture{
		db:       db,
		svc:      NewService(db.Conn(), balanceSvc, factory, log),
		balances: balanceSvc,
		accounts: cash_accounts.NewRepository(db.Conn(), log),
	}, cleanup
}

func ptr(s string) *string { return &s }

func (f *fixture) balance(t *testing.T, portfolioID string) *domain.PortfolioBalance {
	t.Helper()
	b, err := f.balances.GetBalance(context.Background(), testingpkg.TestUserID, portfolioID, "USD")
	require.NoError(t, err)
	return b
}

func TestService_TransferAndReverse(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	_, err := f.balances.UpdateBalance(ctx, testingpkg.TestUserID, testingpkg.TestPortfolioID, "USD", balances.Delta(utils.MustDecimal("1200.25")))
	require.NoError(t, err)
	_, err = f.balances.UpdateBalance(ctx, testingpkg.TestUserID, portfolioB, "USD", balances.Delta(utils.MustDecimal("10")))
	require.NoError(t, err)

	beforeA := f.balance(t, testingpkg.TestPortfolioID)
	beforeB := f.balance(t, portfolioB)

	tr, err := f.svc.CreateTransfer(ctx, testingpkg.TestUserID, Request{
		FromPortfolioID: ptr(testingpkg.TestPortfolioID),
		ToPortfolioID:   ptr(portfolioB),
		Currency:        "USD",
		Amount:          utils.MustDecimal("500"),
		Date:            utils.MustParseDate("2024-05-01"),
	})
	require.NoError(t, err)

	afterA := f.balance(t, testingpkg.TestPortfolioID)
	afterB := f.balance(t, portfolioB)
	assert.True(t, beforeA.AvailableCash.Sub(decimal.NewFromInt(500)).Equal(afterA.AvailableCash))
	assert.True(t, beforeA.TotalCash.Sub(decimal.NewFromInt(500)).Equal(afterA.TotalCash))
	assert.True(t, beforeB.AvailableCash.Add(decimal.NewFromInt(500)).Equal(afterB.AvailableCash))
	assert.True(t, beforeB.TotalCash.Add(decimal.NewFromInt(500)).Equal(afterB.TotalCash))

	require.NoError(t, f.svc.DeleteTransfer(ctx, testingpkg.TestUserID, tr.ID, false))

	restoredA := f.balance(t, testingpkg.TestPortfolioID)
	restoredB := f.balance(t, portfolioB)
	assert.True(t, beforeA.AvailableCash.Equal(restoredA.AvailableCash))
	assert.True(t, beforeA.TotalCash.Equal(restoredA.TotalCash))
	assert.True(t, beforeB.AvailableCash.Equal(restoredB.AvailableCash))
	assert.True(t, beforeB.TotalCash.Equal(restoredB.TotalCash))

	_, err = f.svc.GetTransfer(ctx, testingpkg.TestUserID, tr.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	// Reversing again is a no-op
	require.NoError(t, f.svc.DeleteTransfer(ctx, testingpkg.TestUserID, tr.ID, false))
	assert.True(t, beforeA.AvailableCash.Equal(f.balance(t, testingpkg.TestPortfolioID).AvailableCash))
}

func TestService_LinkedAccountTransaction(t *testing.T) {
	tests := []struct {
		name         string
		deleteLinked bool
	}{
		{"retag as standalone", false},
		{"delete linked record", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, cleanup := setup(t)
			defer cleanup()
			ctx := context.Background()

			acct, err := f.accounts.Create(ctx, domain.AccountTransaction{
				UserID:    testingpkg.TestUserID,
				AccountID: "checking",
				Amount:    utils.MustDecimal("-250"),
				Currency:  "USD",
				Date:      utils.MustParseDate("2024-05-01"),
			})
			require.NoError(t, err)

			tr, err := f.svc.CreateTransfer(ctx, testingpkg.TestUserID, Request{
				ToPortfolioID:       ptr(testingpkg.TestPortfolioID),
				Currency:            "USD",
				Amount:              utils.MustDecimal("250"),
				Date:                utils.MustParseDate("2024-05-01"),
				LinkedTransactionID: ptr(acct.ID),
			})
			require.NoError(t, err)
			assert.Equal(t, "250", f.balance(t, testingpkg.TestPortfolioID).AvailableCash.String())

			linked, err := f.accounts.Get(ctx, testingpkg.TestUserID, acct.ID)
			require.NoError(t, err)
			assert.True(t, linked.IsTransfer)
			require.NotNil(t, linked.TransferID)
			assert.Equal(t, tr.ID, *linked.TransferID)

			require.NoError(t, f.svc.DeleteTransfer(ctx, testingpkg.TestUserID, tr.ID, tt.deleteLinked))
			assert.True(t, f.balance(t, testingpkg.TestPortfolioID).AvailableCash.IsZero())

			linked, err = f.accounts.Get(ctx, testingpkg.TestUserID, acct.ID)
			if tt.deleteLinked {
				assert.True(t, errors.Is(err, domain.ErrNotFound))
				return
			}
			require.NoError(t, err)
			assert.False(t, linked.IsTransfer)
			assert.True(t, linked.OutOfWallet)
			assert.Nil(t, linked.TransferID)
		})
	}
}

func TestService_CreateTransferErrors(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	valid := func() Request {
		return Request{
			FromPortfolioID: ptr(testingpkg.TestPortfolioID),
			ToPortfolioID:   ptr(portfolioB),
			Currency:        "USD",
			Amount:          utils.MustDecimal("10"),
			Date:            utils.MustParseDate("2024-05-01"),
		}
	}

	noLegs := valid()
	noLegs.FromPortfolioID, noLegs.ToPortfolioID = nil, nil
	sameLeg := valid()
	sameLeg.ToPortfolioID = ptr(testingpkg.TestPortfolioID)
	zero := valid()
	zero.Amount = decimal.Zero
	foreign := valid()
	foreign.ToPortfolioID = ptr(testingpkg.OtherPortfolioID)
	badCurrency := valid()
	badCurrency.Currency = "ABCD"
	missingLink := valid()
	missingLink.LinkedTransactionID = ptr("nope")

	tests := []struct {
		name     string
		req      Request
		expected error
	}{
		{"no legs", noLegs, domain.ErrValidation},
		{"same portfolio", sameLeg, domain.ErrValidation},
		{"zero amount", zero, domain.ErrValidation},
		{"foreign destination", foreign, domain.ErrNotFound},
		{"unknown currency", badCurrency, domain.ErrNotFound},
		{"missing linked transaction", missingLink, domain.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateTransfer(ctx, testingpkg.TestUserID, tt.req)
			assert.True(t, errors.Is(err, tt.expected), "got %v", err)
		})
	}

	// Failed transfers leave both sides untouched
	assert.True(t, f.balance(t, testingpkg.TestPortfolioID).AvailableCash.IsZero())
	assert.True(t, f.balance(t, portfolioB).AvailableCash.IsZero())

	list, err := f.svc.ListTransfers(ctx, testingpkg.TestUserID, "")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestService_DeleteForeignTransferIsNoop(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	tr, err := f.svc.CreateTransfer(ctx, testingpkg.TestUserID, Request{
		ToPortfolioID: ptr(testingpkg.TestPortfolioID),
		Currency:      "USD",
		Amount:        utils.MustDecimal("75"),
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteTransfer(ctx, testingpkg.OtherUserID, tr.ID, true))
	assert.Equal(t, "75", f.balance(t, testingpkg.TestPortfolioID).AvailableCash.String())

	list, err := f.svc.ListTransfers(ctx, testingpkg.TestUserID, testingpkg.TestPortfolioID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	list, err = f.svc.ListTransfers(ctx, testingpkg.TestUserID, portfolioB)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestService_LinkedRecordCannotFundTwoTransfers(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	acct, err := f.accounts.Create(ctx, domain.AccountTransaction{
		UserID:    testingpkg.TestUserID,
		AccountID: "checking",
		Amount:    utils.MustDecimal("-250"),
		Currency:  "USD",
		Date:      utils.MustParseDate("2024-05-01"),
	})
	require.NoError(t, err)

	req := Request{
		ToPortfolioID:       ptr(testingpkg.TestPortfolioID),
		Currency:            "USD",
		Amount:              utils.MustDecimal("250"),
		Date:                utils.MustParseDate("2024-05-01"),
		LinkedTransactionID: ptr(acct.ID),
	}
	first, err := f.svc.CreateTransfer(ctx, testingpkg.TestUserID, req)
	require.NoError(t, err)

	_, err = f.svc.CreateTransfer(ctx, testingpkg.TestUserID, req)
	assert.True(t, errors.Is(err, domain.ErrConflict), "got %v", err)

	// The rejected transfer moved no cash and kept the original link
	assert.Equal(t, "250", f.balance(t, testingpkg.TestPortfolioID).AvailableCash.String())
	list, err := f.svc.ListTransfers(ctx, testingpkg.TestUserID, "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, first.ID, list[0].ID)

	linked, err := f.accounts.Get(ctx, testingpkg.TestUserID, acct.ID)
	require.NoError(t, err)
	require.NotNil(t, linked.TransferID)
	assert.Equal(t, first.ID, *linked.TransferID)

	require.NoError(t, f.svc.DeleteTransfer(ctx, testingpkg.TestUserID, first.ID, true))
	assert.True(t, f.balance(t, testingpkg.TestPortfolioID).AvailableCash.IsZero())
	_, err = f.accounts.Get(ctx, testingpkg.TestUserID, acct.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestService_ConcurrentTransfersKeepTotals(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	_, err := f.balances.UpdateBalance(ctx, testingpkg.TestUserID, testingpkg.TestPortfolioID, "USD", balances.Delta(utils.MustDecimal("1000")))
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.CreateTransfer(ctx, testingpkg.TestUserID, Request{
				FromPortfolioID: ptr(testingpkg.TestPortfolioID),
				ToPortfolioID:   ptr(portfolioB),
				Currency:        "USD",
				Amount:          utils.MustDecimal("10"),
				Date:            utils.MustParseDate("2024-05-01"),
			})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	// Every leg landed exactly once
	from := f.balance(t, testingpkg.TestPortfolioID)
	to := f.balance(t, portfolioB)
	assert.Equal(t, "920", from.AvailableCash.String())
	assert.Equal(t, "920", from.TotalCash.String())
	assert.Equal(t, "80", to.AvailableCash.String())
	assert.Equal(t, "80", to.TotalCash.String())

	list, err := f.svc.ListTransfers(ctx, testingpkg.TestUserID, "")
	require.NoError(t, err)
	assert.Len(t, list, workers)
}

func TestService_TransferDateIsCalendarDay(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	tr, err := f.svc.CreateTransfer(ctx, testingpkg.TestUserID, Request{
		ToPortfolioID: ptr(testingpkg.TestPortfolioID),
		Currency:      "USD",
		Amount:        utils.MustDecimal("5"),
		Date:          time.Date(2024, 5, 1, 17, 45, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.True(t, utils.MustParseDate("2024-05-01").Equal(tr.Date), "got %s", tr.Date)

	stored, err := f.svc.GetTransfer(ctx, testingpkg.TestUserID, tr.ID)
	require.NoError(t, err)
	assert.True(t, stored.Date.Equal(tr.Date))
}
