package repository

import (
	"time"

	"github.com/afriproperty/payment-gateway/internal/model"
)

type RentalClaimEntity struct {
	ID               int64     `db:"id"                gorm:"primaryKey;autoIncrement;column:id"`
	InvestorID       int64     `db:"investor_id"       gorm:"column:investor_id;not null;index"`
	PropertyID       int64     `db:"property_id"       gorm:"column:property_id;not null;index"`
	Amount           float64   `db:"amount"            gorm:"column:amount;not null"`
	Status           string    `db:"status"            gorm:"column:status;not null;default:pending"`
	PaymentMethod    string    `db:"payment_method"    gorm:"column:payment_method"`
	PaymentReference string    `db:"payment_reference" gorm:"column:payment_reference"`
	CreatedAt        time.Time `db:"created_at"        gorm:"column:created_at;autoCreateTime"`
}

func (RentalClaimEntity) TableName() string {
	return "rental_claims"
}

func toRentalClaimModel(e *RentalClaimEntity) *model.RentalClaim {
	if e == nil {
		return nil
	}
	return &model.RentalClaim{
		ID:               e.ID,
		InvestorID:       e.InvestorID,
		PropertyID:       e.PropertyID,
		Amount:           e.Amount,
		Status:           model.ClaimStatus(e.Status),
		PaymentMethod:    e.PaymentMethod,
		PaymentReference: e.PaymentReference,
		CreatedAt:        e.CreatedAt,
	}
}
