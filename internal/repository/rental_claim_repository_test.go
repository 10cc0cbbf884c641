package repository

import (
	"context"
	"testing"

	"github.com/afriproperty/payment-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRentalClaimRepository_MarkProcessing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRentalClaimRepository(db.DB)
	ctx := context.Background()

	seed := &RentalClaimEntity{
		InvestorID: 10,
		PropertyID: 20,
		Amount:     1500,
		Status:     string(model.ClaimStatusPending),
	}
	require.NoError(t, db.rawDB.Create(seed).Error)

	t.Run("pending claim moves to processing", func(t *testing.T) {
		applied, err := repo.MarkProcessing(ctx, seed.ID, "mpesa", "AG_20240115_0042")
		require.NoError(t, err)
		assert.True(t, applied)

		got, err := repo.GetByID(ctx, seed.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ClaimStatusProcessing, got.Status)
		assert.Equal(t, "mpesa", got.PaymentMethod)
		assert.Equal(t, "AG_20240115_0042", got.PaymentReference)
	})

	t.Run("processing claim cannot be claimed again", func(t *testing.T) {
		applied, err := repo.MarkProcessing(ctx, seed.ID, "mpesa", "AG_other")
		require.NoError(t, err)
		assert.False(t, applied)
	})

	t.Run("missing claim", func(t *testing.T) {
		_, err := repo.GetByID(ctx, 404)
		assert.ErrorIs(t, err, ErrClaimNotFound)
	})
}
