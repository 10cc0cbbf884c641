package repository

import (
	"context"
	"errors"

	"github.com/afriproperty/payment-gateway/internal/model"
	"github.com/afriproperty/payment-gateway/pkg/pg"
	"gorm.io/gorm"
)

var ErrClaimNotFound = errors.New("rental claim not found")

type RentalClaimRepository struct {
	*pg.DB
}

func NewRentalClaimRepository(db *pg.DB) *RentalClaimRepository {
	return &RentalClaimRepository{
		db,
	}
}

func (r *RentalClaimRepository) GetByID(ctx context.Context, id int64) (*model.RentalClaim, error) {
	var entity RentalClaimEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClaimNotFound
		}
		return nil, err
	}
	return toRentalClaimModel(&entity), nil
}

// MarkProcessing transitions pending -> processing once the provider has
// acknowledged the disbursement. The status guard keeps a claim from being
// paid out twice by concurrent withdrawal requests.
func (r *RentalClaimRepository) MarkProcessing(ctx context.Context, id int64, paymentMethod, paymentReference string) (bool, error) {
	result := r.Write(ctx).WithContext(ctx).
		Model(&RentalClaimEntity{}).
		Where("id = ? AND status = ?", id, string(model.ClaimStatusPending)).
		Updates(map[string]interface{}{
			"status":            string(model.ClaimStatusProcessing),
			"payment_method":    paymentMethod,
			"payment_reference": paymentReference,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
