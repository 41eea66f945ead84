package currency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aristath/sentinel-ledger/internal/domain"
	testingpkg "github.com/aristath/sentinel-ledger/internal/testing"
	"github.com/aristath/sentinel-ledger/internal/utils"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupConversion(t *testing.T) (*ConversionService, func()) {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t, "ledger")

	testingpkg.SeedUser(t, db, "eur-user", "EUR")
	testingpkg.SeedUser(t, db, "usd-user", "USD")
	testingpkg.SeedRate(t, db, "USD", "EUR", "2024-01-02", "0.9")
	testingpkg.SeedRate(t, db, "USD", "EUR", "2024-01-10", "0.95")
	testingpkg.SeedRate(t, db, "EUR", "GBP", "2024-01-02", "0.8")

	return NewConversionService(db.Conn(), zerolog.Nop()), cleanup
}

func TestConversionService_Convert(t *testing.T) {
	svc, cleanup := setupConversion(t)
	defer cleanup()
	ctx := context.Background()

	tests := []struct {
		name     string
		userID   string
		amount   string
		from     string
		asOf     string
		expected string
	}{
		{"same currency is unchanged", "eur-user", "123.45", "EUR", "2024-01-05", "123.45"},
		{"lower-case base currency", "usd-user", "42.5", "usd", "2024-01-05", "42.5"},
		{"lower-case foreign currency", "eur-user", "100", " usd ", "2024-01-02", "90"},
		{"exact date", "eur-user", "100", "USD", "2024-01-02", "90"},
		{"nearest prior date", "eur-user", "100", "USD", "2024-01-09", "90"},
		{"later rate applies from its date", "eur-user", "100", "USD", "2024-01-10", "95"},
		{"inverse pair", "usd-user", "90", "EUR", "2024-01-03", "100"},
		{"inverse rounds to scale", "eur-user", "1", "GBP", "2024-01-03", "1.25"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Convert(ctx, utils.MustDecimal(tt.amount), tt.from, utils.MustParseDate(tt.asOf), tt.userID)
			require.NoError(t, err)
			assert.True(t, utils.MustDecimal(tt.expected).Equal(got), "got %s", got)
		})
	}
}

func TestConversionService_RateNotFound(t *testing.T) {
	svc, cleanup := setupConversion(t)
	defer cleanup()

	_, err := svc.Convert(context.Background(), decimal.NewFromInt(1), "USD", utils.MustParseDate("2023-12-31"), "eur-user")
	assert.True(t, errors.Is(err, domain.ErrRateNotFound))

	_, err = svc.Convert(context.Background(), decimal.NewFromInt(1), "JPY", utils.MustParseDate("2024-02-01"), "eur-user")
	assert.True(t, errors.Is(err, domain.ErrRateNotFound))
}

func TestConversionService_UnknownUser(t *testing.T) {
	svc, cleanup := setupConversion(t)
	defer cleanup()

	_, err := svc.Convert(context.Background(), decimal.NewFromInt(1), "USD", time.Now(), "ghost")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestConversionService_ConvertMany(t *testing.T) {
	svc, cleanup := setupConversion(t)
	defer cleanup()

	out, err := svc.ConvertMany(context.Background(), "USD", utils.MustParseDate("2024-01-02"), "eur-user",
		utils.MustDecimal("1000"), utils.MustDecimal("100"), utils.MustDecimal("1"))
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "900", out[0].String())
	assert.Equal(t, "90", out[1].String())
	assert.Equal(t, "0.9", out[2].String())
}

func TestConversionService_Rate(t *testing.T) {
	svc, cleanup := setupConversion(t)
	defer cleanup()
	ctx := context.Background()

	rate, err := svc.Rate(ctx, "EUR", "EUR", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "1", rate.String())

	rate, err = svc.Rate(ctx, "GBP", "EUR", utils.MustParseDate("2024-01-02"))
	require.NoError(t, err)
	assert.Equal(t, "1.25", rate.String())

	rate, err = svc.Rate(ctx, "eur", "EUR", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "1", rate.String())
}

func TestRateRepository_UpsertReplaces(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "ledger")
	defer cleanup()

	repo := NewRateRepository(db.Conn(), zerolog.Nop())
	ctx := context.Background()
	date := utils.MustParseDate("2024-05-01")

	require.NoError(t, repo.Upsert(ctx, domain.ExchangeRate{BaseCurrency: "USD", QuoteCurrency: "EUR", Date: date, Rate: utils.MustDecimal("0.9")}))
	require.NoError(t, repo.Upsert(ctx, domain.ExchangeRate{BaseCurrency: "USD", QuoteCurrency: "EUR", Date: date, Rate: utils.MustDecimal("0.91")}))

	got, err := repo.LatestOnOrBefore(ctx, "USD", "EUR", date)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "0.91", got.Rate.String())

	missing, err := repo.LatestOnOrBefore(ctx, "USD", "JPY", date)
	require.NoError(t, err)
	assert.Nil(t, missing)

	err = repo.Upsert(ctx, domain.ExchangeRate{BaseCurrency: "USD", QuoteCurrency: "EUR", Date: date, Rate: decimal.Zero})
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestIsKnownCurrency(t *testing.T) {
	assert.True(t, IsKnownCurrency("USD"))
	assert.True(t, IsKnownCurrency("eur"))
	assert.False(t, IsKnownCurrency("XXQ"))
}
