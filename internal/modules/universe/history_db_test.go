package universe

import (
	"context"
	"testing"

	"github.com/aristath/sentinel-ledger/internal/domain"
	testingpkg "github.com/aristath/sentinel-ledger/internal/testing"
	"github.com/aristath/sentinel-ledger/internal/utils"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func point(date, closePrice string) domain.PricePoint {
	return domain.PricePoint{Date: utils.MustParseDate(date), Close: utils.MustDecimal(closePrice)}
}

func TestHistoryDB_UpsertAndRead(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "ledger")
	defer cleanup()

	testingpkg.SeedSecurity(t, db, "sec-1", "AAPL", "USD")
	h := NewHistoryDB(db.Conn(), zerolog.Nop())
	ctx := context.Background()

	has, err := h.HasPrices(ctx, "sec-1")
	require.NoError(t, err)
	assert.False(t, has)

	n, err := h.UpsertDailyPrices(ctx, "sec-1", []domain.PricePoint{
		point("2024-01-02", "185.64"),
		point("2024-01-03", "184.25"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Same date again replaces the close
	_, err = h.UpsertDailyPrices(ctx, "sec-1", []domain.PricePoint{point("2024-01-03", "184.30")})
	require.NoError(t, err)

	latest, err := h.LatestPriceDate(ctx, "sec-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "2024-01-03", latest.Format("2006-01-02"))

	prices, err := h.GetDailyPrices(ctx, "sec-1", utils.MustParseDate("2024-01-01"), utils.MustParseDate("2024-12-31"))
	require.NoError(t, err)
	require.Len(t, prices, 2)
	assert.Equal(t, "185.64", prices[0].Close.String())
	assert.Equal(t, "184.3", prices[1].Close.String())
}
