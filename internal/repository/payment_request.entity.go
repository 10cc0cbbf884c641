package repository

import (
	"time"

	"github.com/afriproperty/payment-gateway/internal/model"
)

type PaymentRequestEntity struct {
	ID                int64      `db:"id"                  gorm:"primaryKey;autoIncrement;column:id"`
	InvestmentID      *int64     `db:"investment_id"       gorm:"column:investment_id;index"`
	ClaimID           *int64     `db:"claim_id"            gorm:"column:claim_id;index"`
	MerchantRequestID string     `db:"merchant_request_id" gorm:"column:merchant_request_id"`
	CheckoutRequestID string     `db:"checkout_request_id" gorm:"column:checkout_request_id;index"`
	PhoneNumber       string     `db:"phone_number"        gorm:"column:phone_number;not null"`
	Amount            float64    `db:"amount"              gorm:"column:amount;not null"`
	Direction         string     `db:"direction"           gorm:"column:direction;not null"`
	Status            string     `db:"status"              gorm:"column:status;not null;index"`
	ResultCode        *int       `db:"result_code"         gorm:"column:result_code"`
	ResultDesc        string     `db:"result_desc"         gorm:"column:result_desc"`
	ReceiptNumber     string     `db:"receipt_number"      gorm:"column:receipt_number"`
	TransactionDate   *time.Time `db:"transaction_date"    gorm:"column:transaction_date"`
	CreatedAt         time.Time  `db:"created_at"          gorm:"column:created_at;autoCreateTime"`
}

func (PaymentRequestEntity) TableName() string {
	return "payment_requests"
}

func toPaymentRequestEntity(m *model.PaymentRequest) *PaymentRequestEntity {
	if m == nil {
		return nil
	}
	return &PaymentRequestEntity{
		ID:                m.ID,
		InvestmentID:      m.InvestmentID,
		ClaimID:           m.ClaimID,
		MerchantRequestID: m.MerchantRequestID,
		CheckoutRequestID: m.CheckoutRequestID,
		PhoneNumber:       m.PhoneNumber,
		Amount:            m.Amount,
		Direction:         string(m.Direction),
		Status:            string(m.Status),
		ResultCode:        m.ResultCode,
		ResultDesc:        m.ResultDesc,
		ReceiptNumber:     m.ReceiptNumber,
		TransactionDate:   m.TransactionDate,
		CreatedAt:         m.CreatedAt,
	}
}

func toPaymentRequestModel(e *PaymentRequestEntity) *model.PaymentRequest {
	if e == nil {
		return nil
	}
	return &model.PaymentRequest{
		ID:                e.ID,
		InvestmentID:      e.InvestmentID,
		ClaimID:           e.ClaimID,
		MerchantRequestID: e.MerchantRequestID,
		CheckoutRequestID: e.CheckoutRequestID,
		PhoneNumber:       e.PhoneNumber,
		Amount:            e.Amount,
		Direction:         model.PaymentDirection(e.Direction),
		Status:            model.PaymentStatus(e.Status),
		ResultCode:        e.ResultCode,
		ResultDesc:        e.ResultDesc,
		ReceiptNumber:     e.ReceiptNumber,
		TransactionDate:   e.TransactionDate,
		CreatedAt:         e.CreatedAt,
	}
}
