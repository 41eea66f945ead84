package settings

import (
	"context"
	"errors"
	"testing"

	"github.com/aristath/sentinel-ledger/internal/domain"
	testingpkg "github.com/aristath/sentinel-ledger/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_BaseCurrency(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "ledger")
	defer cleanup()

	repo := NewRepository(db.Conn(), zerolog.Nop())
	ctx := context.Background()

	_, err := repo.GetBaseCurrency(ctx, "nobody")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	require.NoError(t, repo.SetBaseCurrency(ctx, "u1", "eur"))
	currency, err := repo.GetBaseCurrency(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "EUR", currency)

	require.NoError(t, repo.SetBaseCurrency(ctx, "u1", "USD"))
	currency, err = repo.GetBaseCurrency(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "USD", currency)
}

func TestRepository_SetBaseCurrencyRejectsUnknownCode(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "ledger")
	defer cleanup()

	repo := NewRepository(db.Conn(), zerolog.Nop())

	err := repo.SetBaseCurrency(context.Background(), "u1", "ZZZ")
	assert.True(t, errors.Is(err, domain.ErrValidation))
}
