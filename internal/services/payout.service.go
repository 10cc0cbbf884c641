package services

import (
	"context"
	"errors"
	"fmt"

	gateway "github.com/afriproperty/payment-gateway/internal/gateways"
	"github.com/afriproperty/payment-gateway/internal/model"
	"github.com/afriproperty/payment-gateway/internal/repository"
	"github.com/afriproperty/payment-gateway/pkg/logger"
)

// ErrPayoutInitiation wraps provider-side failures during disbursement.
// The claim is left pending, so the caller can safely retry.
var ErrPayoutInitiation = errors.New("failed to initiate disbursement")

const payoutRemarks = "AfriProperty Rental Payment"

type RentalClaimRepository interface {
	GetByID(ctx context.Context, id int64) (*model.RentalClaim, error)
	MarkProcessing(ctx context.Context, id int64, paymentMethod, paymentReference string) (bool, error)
}

type DisbursementLedger interface {
	Create(ctx context.Context, pr *model.PaymentRequest) (*model.PaymentRequest, error)
	AssignCorrelation(ctx context.Context, id int64, merchantRequestID, checkoutRequestID string) error
	FailByID(ctx context.Context, id int64, resultDesc string) (bool, error)
	MarkProcessing(ctx context.Context, id int64) (bool, error)
}

// PayoutService validates withdrawal requests and issues B2C
// disbursements for rental income claims.
type PayoutService struct {
	claims RentalClaimRepository
	ledger DisbursementLedger
	mpesa  MpesaGateway
}

func NewPayoutService(claims RentalClaimRepository, ledger DisbursementLedger, mpesa MpesaGateway) *PayoutService {
	return &PayoutService{
		claims: claims,
		ledger: ledger,
		mpesa:  mpesa,
	}
}

// InitiateWithdrawal issues a disbursement for a pending claim. Ownership
// and claim state are checked before the provider is contacted; on any
// provider failure the claim stays pending and no partial state survives
// except the failed ledger row kept for audit.
func (s *PayoutService) InitiateWithdrawal(ctx context.Context, p model.WithdrawalRequest) (*model.RentalClaim, string, error) {
	if err := p.Validate(); err != nil {
		return nil, "", err
	}

	claim, err := s.claims.GetByID(ctx, p.ClaimID)
	if err != nil {
		if errors.Is(err, repository.ErrClaimNotFound) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("load claim: %w", err)
	}
	if claim.InvestorID != p.RequesterID {
		return nil, "", ErrUnauthorized
	}
	if claim.Status != model.ClaimStatusPending {
		return nil, "", ErrInvalidState
	}

	phone, err := NormalizeMSISDN(p.PhoneNumber)
	if err != nil {
		return nil, "", err
	}

	pr := &model.PaymentRequest{
		ClaimID:     &p.ClaimID,
		PhoneNumber: phone,
		Amount:      p.Amount,
		Direction:   model.DirectionDisbursement,
		Status:      model.PaymentStatusPending,
	}
	created, err := s.ledger.Create(ctx, pr)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateRequest) {
			return nil, "", ErrDuplicateRequest
		}
		return nil, "", fmt.Errorf("record initiation: %w", err)
	}

	resp, err := s.mpesa.B2CPayment(ctx, &gateway.B2CRequest{
		Amount:      WholeAmount(p.Amount),
		PhoneNumber: phone,
		Remarks:     payoutRemarks,
		Occasion:    fmt.Sprintf("Rental-%d", p.ClaimID),
	})
	if err != nil {
		if !errors.Is(err, gateway.ErrUpstreamTimeout) {
			if _, failErr := s.ledger.FailByID(ctx, created.ID, err.Error()); failErr != nil {
				logger.Error("failed to mark rejected disbursement", "payment_request_id", created.ID, "error", failErr)
			}
		}
		return nil, "", fmt.Errorf("%w: %v", ErrPayoutInitiation, err)
	}

	if err := s.ledger.AssignCorrelation(ctx, created.ID, resp.OriginatorConversationID, resp.ConversationID); err != nil {
		logger.Error("failed to persist disbursement correlation",
			"payment_request_id", created.ID, "conversation_id", resp.ConversationID, "error", err)
	}
	if _, err := s.ledger.MarkProcessing(ctx, created.ID); err != nil {
		logger.Error("failed to mark disbursement processing",
			"payment_request_id", created.ID, "error", err)
	}

	applied, err := s.claims.MarkProcessing(ctx, p.ClaimID, "mpesa", resp.ConversationID)
	if err != nil {
		return nil, "", fmt.Errorf("mark claim processing: %w", err)
	}
	if !applied {
		// A concurrent withdrawal won; the provider acknowledgment for this
		// one is still on record in the ledger.
		logger.Warn("claim already processing", "claim_id", p.ClaimID)
	}

	claim.Status = model.ClaimStatusProcessing
	claim.PaymentMethod = "mpesa"
	claim.PaymentReference = resp.ConversationID

	logger.Info("withdrawal initiated",
		"claim_id", p.ClaimID,
		"conversation_id", resp.ConversationID,
		"amount", p.Amount)

	return claim, resp.ConversationID, nil
}
