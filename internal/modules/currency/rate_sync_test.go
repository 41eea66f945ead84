package currency

import (
	"context"
	"errors"
	"testing"

	"github.com/aristath/sentinel-ledger/internal/domain"
	testingpkg "github.com/aristath/sentinel-ledger/internal/testing"
	"github.com/aristath/sentinel-ledger/internal/utils"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func rate(base, quote, date, value string) domain.ExchangeRate {
	return domain.ExchangeRate{
		BaseCurrency:  base,
		QuoteCurrency: quote,
		Date:          utils.MustParseDate(date),
		Rate:          utils.MustDecimal(value),
	}
}

func TestRateSync_StoresOnlyCurrenciesInUse(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "ledger")
	defer cleanup()
	testingpkg.SeedLedger(t, db)
	ctx := context.Background()

	provider := &testingpkg.MockRateProvider{}
	provider.On("GetLatestRates", mock.Anything, "USD").Return([]domain.ExchangeRate{
		rate("USD", "EUR", "2024-06-14", "0.9339"),
		rate("USD", "JPY", "2024-06-14", "157.36"),
	}, nil)
	provider.On("GetLatestRates", mock.Anything, "EUR").Return([]domain.ExchangeRate{
		rate("EUR", "USD", "2024-06-14", "1.0708"),
	}, nil)

	result, err := NewRateSync(db.Conn(), provider, zerolog.Nop()).Sync(ctx)
	require.NoError(t, err)
	provider.AssertExpectations(t)

	assert.Equal(t, 2, result.Bases)
	assert.Equal(t, 2, result.Stored, "JPY is not held by anyone")

	conv := NewConversionService(db.Conn(), zerolog.Nop())
	got, err := conv.Rate(ctx, "USD", "EUR", utils.MustParseDate("2024-06-20"))
	require.NoError(t, err)
	assert.Equal(t, "0.9339", got.String())

	_, err = conv.Rate(ctx, "USD", "JPY", utils.MustParseDate("2024-06-20"))
	assert.True(t, errors.Is(err, domain.ErrRateNotFound))
}

func TestRateSync_PartialFailure(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "ledger")
	defer cleanup()
	testingpkg.SeedLedger(t, db)

	provider := &testingpkg.MockRateProvider{}
	provider.On("GetLatestRates", mock.Anything, "USD").Return([]domain.ExchangeRate{
		rate("USD", "EUR", "2024-06-14", "0.9339"),
	}, nil)
	provider.On("GetLatestRates", mock.Anything, "EUR").Return(nil, errors.New("unavailable"))

	result, err := NewRateSync(db.Conn(), provider, zerolog.Nop()).Sync(context.Background())
	assert.Error(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.Stored)
	assert.Equal(t, 1, result.Failed)
}
