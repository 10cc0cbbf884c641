package model

import "time"

// InvestmentPaymentStatus tracks whether an investment has been funded.
// The transition pending -> completed happens at most once and never reverts.
type InvestmentPaymentStatus string

const (
	InvestmentPaymentPending   InvestmentPaymentStatus = "pending"
	InvestmentPaymentCompleted InvestmentPaymentStatus = "completed"
)

// Investment is a user's claim on a property's token allocation. It is
// owned by the property-investment subsystem; this service only flips
// payment_status through reconciliation.
type Investment struct {
	ID               int64                   `json:"id"`
	InvestorID       int64                   `json:"investor_id"`
	PropertyID       int64                   `json:"property_id"`
	Amount           float64                 `json:"amount"`
	PaymentStatus    InvestmentPaymentStatus `json:"payment_status"`
	PaymentReference string                  `json:"payment_reference,omitempty"`
	PaidAt           *time.Time              `json:"paid_at,omitempty"`
	CreatedAt        time.Time               `json:"created_at"`
}
