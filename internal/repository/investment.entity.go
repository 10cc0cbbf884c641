package repository

import (
	"time"

	"github.com/afriproperty/payment-gateway/internal/model"
)

type InvestmentEntity struct {
	ID               int64      `db:"id"                gorm:"primaryKey;autoIncrement;column:id"`
	InvestorID       int64      `db:"investor_id"       gorm:"column:investor_id;not null;index"`
	PropertyID       int64      `db:"property_id"       gorm:"column:property_id;not null;index"`
	Amount           float64    `db:"amount"            gorm:"column:amount;not null"`
	PaymentStatus    string     `db:"payment_status"    gorm:"column:payment_status;not null;default:pending"`
	PaymentReference string     `db:"payment_reference" gorm:"column:payment_reference"`
	PaidAt           *time.Time `db:"paid_at"           gorm:"column:paid_at"`
	CreatedAt        time.Time  `db:"created_at"        gorm:"column:created_at;autoCreateTime"`
}

func (InvestmentEntity) TableName() string {
	return "investments"
}

func toInvestmentModel(e *InvestmentEntity) *model.Investment {
	if e == nil {
		return nil
	}
	return &model.Investment{
		ID:               e.ID,
		InvestorID:       e.InvestorID,
		PropertyID:       e.PropertyID,
		Amount:           e.Amount,
		PaymentStatus:    model.InvestmentPaymentStatus(e.PaymentStatus),
		PaymentReference: e.PaymentReference,
		PaidAt:           e.PaidAt,
		CreatedAt:        e.CreatedAt,
	}
}
