package model

import (
	"errors"
	"time"
)

// PaymentStatus is the lifecycle state of a payment request.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed
}

// PaymentDirection distinguishes customer collections from payouts.
type PaymentDirection string

const (
	DirectionCollection   PaymentDirection = "collection"   // STK push, customer -> platform
	DirectionDisbursement PaymentDirection = "disbursement" // B2C, platform -> customer
)

// PaymentRequest is one row of the transaction ledger. Rows are never
// deleted; a terminal status update is the only mutation after the
// provider correlation ids are assigned.
type PaymentRequest struct {
	ID                int64            `json:"id"`
	InvestmentID      *int64           `json:"investment_id,omitempty"`
	ClaimID           *int64           `json:"claim_id,omitempty"`
	MerchantRequestID string           `json:"merchant_request_id"`
	CheckoutRequestID string           `json:"checkout_request_id"`
	PhoneNumber       string           `json:"phone_number"`
	Amount            float64          `json:"amount"`
	Direction         PaymentDirection `json:"direction"`
	Status            PaymentStatus    `json:"status"`
	ResultCode        *int             `json:"result_code,omitempty"`
	ResultDesc        string           `json:"result_desc,omitempty"`
	ReceiptNumber     string           `json:"receipt_number,omitempty"`
	TransactionDate   *time.Time       `json:"transaction_date,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
}

// CollectionRequest is the input for initiating an STK push.
type CollectionRequest struct {
	InvestmentID int64
	RequesterID  int64
	PhoneNumber  string
	Amount       float64
}

func (p CollectionRequest) Validate() error {
	if p.InvestmentID == 0 {
		return errors.New("investment_id is required")
	}
	if p.PhoneNumber == "" {
		return errors.New("phone_number is required")
	}
	if p.Amount <= 0 {
		return errors.New("amount must be positive")
	}
	return nil
}

// WithdrawalRequest is the input for initiating a B2C payout.
type WithdrawalRequest struct {
	ClaimID     int64
	RequesterID int64
	PhoneNumber string
	Amount      float64
}

func (p WithdrawalRequest) Validate() error {
	if p.ClaimID == 0 {
		return errors.New("claim_id is required")
	}
	if p.PhoneNumber == "" {
		return errors.New("phone_number is required")
	}
	if p.Amount <= 0 {
		return errors.New("amount must be positive")
	}
	return nil
}
