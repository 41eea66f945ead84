package cash_accounts

import (
	"context"
	"errors"
	"testing"

	"github.com/aristath/sentinel-ledger/internal/domain"
	testingpkg "github.com/aristath/sentinel-ledger/internal/testing"
	"github.com/aristath/sentinel-ledger/internal/utils"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_Lifecycle(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "ledger")
	defer cleanup()

	repo := NewRepository(db.Conn(), zerolog.Nop())
	ctx := context.Background()

	created, err := repo.Create(ctx, domain.AccountTransaction{
		UserID:    "u1",
		AccountID: "checking",
		Amount:    utils.MustDecimal("-500"),
		Currency:  "usd",
		Date:      utils.MustParseDate("2024-02-01"),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	require.NoError(t, repo.MarkTransfer(ctx, created.ID, "tr-1"))
	got, err := repo.Get(ctx, "u1", created.ID)
	require.NoError(t, err)
	assert.True(t, got.IsTransfer)
	require.NotNil(t, got.TransferID)
	assert.Equal(t, "tr-1", *got.TransferID)
	assert.Equal(t, "USD", got.Currency)

	// A linked record cannot be claimed by a second transfer
	err = repo.MarkTransfer(ctx, created.ID, "tr-2")
	assert.True(t, errors.Is(err, domain.ErrConflict), "got %v", err)
	err = repo.MarkTransfer(ctx, "missing", "tr-2")
	assert.True(t, errors.Is(err, domain.ErrConflict), "got %v", err)

	require.NoError(t, repo.MarkStandalone(ctx, created.ID))
	got, err = repo.Get(ctx, "u1", created.ID)
	require.NoError(t, err)
	assert.False(t, got.IsTransfer)
	assert.True(t, got.OutOfWallet)
	assert.Nil(t, got.TransferID)

	_, err = repo.Get(ctx, "u2", created.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	require.NoError(t, repo.Delete(ctx, created.ID))
	_, err = repo.Get(ctx, "u1", created.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
