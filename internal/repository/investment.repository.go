package repository

import (
	"context"
	"errors"
	"time"

	"github.com/afriproperty/payment-gateway/internal/model"
	"github.com/afriproperty/payment-gateway/pkg/pg"
	"gorm.io/gorm"
)

var ErrInvestmentNotFound = errors.New("investment not found")

type InvestmentRepository struct {
	*pg.DB
}

func NewInvestmentRepository(db *pg.DB) *InvestmentRepository {
	return &InvestmentRepository{
		db,
	}
}

func (r *InvestmentRepository) GetByID(ctx context.Context, id int64) (*model.Investment, error) {
	var entity InvestmentEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvestmentNotFound
		}
		return nil, err
	}
	return toInvestmentModel(&entity), nil
}

// MarkPaid flips payment_status to completed. The guard on the current
// status means the transition happens at most once and never reverts, even
// when two reconciliations race on the same investment.
func (r *InvestmentRepository) MarkPaid(ctx context.Context, id int64, paymentReference string, paidAt time.Time) (bool, error) {
	result := r.Write(ctx).WithContext(ctx).
		Model(&InvestmentEntity{}).
		Where("id = ? AND payment_status = ?", id, string(model.InvestmentPaymentPending)).
		Updates(map[string]interface{}{
			"payment_status":    string(model.InvestmentPaymentCompleted),
			"payment_reference": paymentReference,
			"paid_at":           paidAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
