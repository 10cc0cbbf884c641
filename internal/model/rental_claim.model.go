package model

import "time"

type ClaimStatus string

const (
	ClaimStatusPending    ClaimStatus = "pending"
	ClaimStatusProcessing ClaimStatus = "processing"
	ClaimStatusCompleted  ClaimStatus = "completed"
	ClaimStatusRejected   ClaimStatus = "rejected"
)

// RentalClaim is a pending payout of accrued rental income. A claim may
// only move pending -> processing once a disbursement request has been
// acknowledged by the provider.
type RentalClaim struct {
	ID               int64       `json:"id"`
	InvestorID       int64       `json:"investor_id"`
	PropertyID       int64       `json:"property_id"`
	Amount           float64     `json:"amount"`
	Status           ClaimStatus `json:"status"`
	PaymentMethod    string      `json:"payment_method,omitempty"`
	PaymentReference string      `json:"payment_reference,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
}
