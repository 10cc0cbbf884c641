package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	gateway "github.com/afriproperty/payment-gateway/internal/gateways"
	"github.com/afriproperty/payment-gateway/internal/model"
	"github.com/afriproperty/payment-gateway/internal/repository"
	"github.com/afriproperty/payment-gateway/pkg/logger"
)

var (
	ErrNotFound         = errors.New("resource not found")
	ErrUnauthorized     = errors.New("requester does not own this resource")
	ErrInvalidState     = errors.New("resource is not in a state that allows this operation")
	ErrDuplicateRequest = errors.New("a payment request is already in flight")
)

const transactionDesc = "AfriProperty Investment"

type PaymentRequestRepository interface {
	Create(ctx context.Context, pr *model.PaymentRequest) (*model.PaymentRequest, error)
	GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*model.PaymentRequest, error)
	AssignCorrelation(ctx context.Context, id int64, merchantRequestID, checkoutRequestID string) error
	FailByID(ctx context.Context, id int64, resultDesc string) (bool, error)
}

type InvestmentRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Investment, error)
}

type ClaimReader interface {
	GetByID(ctx context.Context, id int64) (*model.RentalClaim, error)
}

type MpesaGateway interface {
	STKPush(ctx context.Context, p *gateway.STKPushRequest) (*gateway.STKPushResponse, error)
	B2CPayment(ctx context.Context, p *gateway.B2CRequest) (*gateway.B2CResponse, error)
}

// PaymentService initiates STK push collections and serves authorized
// status queries against the ledger.
type PaymentService struct {
	ledger      PaymentRequestRepository
	investments InvestmentRepository
	claims      ClaimReader
	mpesa       MpesaGateway
}

func NewPaymentService(ledger PaymentRequestRepository, investments InvestmentRepository, claims ClaimReader, mpesa MpesaGateway) *PaymentService {
	return &PaymentService{
		ledger:      ledger,
		investments: investments,
		claims:      claims,
		mpesa:       mpesa,
	}
}

// InitiateCollection records a pending ledger row and asks the provider to
// prompt the investor's phone. The row is durable before the provider is
// contacted: a timeout leaves it pending so a late callback can still
// resolve it, while an outright rejection marks it failed.
func (s *PaymentService) InitiateCollection(ctx context.Context, p model.CollectionRequest) (*model.PaymentRequest, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	investment, err := s.investments.GetByID(ctx, p.InvestmentID)
	if err != nil {
		if errors.Is(err, repository.ErrInvestmentNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load investment: %w", err)
	}
	if investment.InvestorID != p.RequesterID {
		return nil, ErrUnauthorized
	}
	if investment.PaymentStatus == model.InvestmentPaymentCompleted {
		return nil, ErrInvalidState
	}

	phone, err := NormalizeMSISDN(p.PhoneNumber)
	if err != nil {
		return nil, err
	}

	pr := &model.PaymentRequest{
		InvestmentID: &p.InvestmentID,
		PhoneNumber:  phone,
		Amount:       p.Amount,
		Direction:    model.DirectionCollection,
		Status:       model.PaymentStatusPending,
	}

	created, err := s.ledger.Create(ctx, pr)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateRequest) {
			return nil, ErrDuplicateRequest
		}
		return nil, fmt.Errorf("record initiation: %w", err)
	}

	resp, err := s.mpesa.STKPush(ctx, &gateway.STKPushRequest{
		Amount:           WholeAmount(p.Amount),
		PhoneNumber:      phone,
		AccountReference: strconv.FormatInt(p.InvestmentID, 10),
		Description:      transactionDesc,
	})
	if err != nil {
		if errors.Is(err, gateway.ErrUpstreamTimeout) {
			// Outcome unknown: keep the row pending, a callback may still
			// arrive for it.
			logger.Warn("STK push timed out, ledger row left pending",
				"payment_request_id", created.ID, "investment_id", p.InvestmentID)
			return nil, err
		}
		if _, failErr := s.ledger.FailByID(ctx, created.ID, err.Error()); failErr != nil {
			logger.Error("failed to mark rejected request", "payment_request_id", created.ID, "error", failErr)
		}
		return nil, fmt.Errorf("stk push: %w", err)
	}

	if err := s.ledger.AssignCorrelation(ctx, created.ID, resp.MerchantRequestID, resp.CheckoutRequestID); err != nil {
		// Provider accepted; the callback will still not match without the
		// correlation id, so this is worth shouting about.
		logger.Error("failed to persist correlation ids",
			"payment_request_id", created.ID,
			"checkout_request_id", resp.CheckoutRequestID,
			"error", err)
		return nil, fmt.Errorf("assign correlation: %w", err)
	}

	created.MerchantRequestID = resp.MerchantRequestID
	created.CheckoutRequestID = resp.CheckoutRequestID

	logger.Info("collection initiated",
		"payment_request_id", created.ID,
		"investment_id", p.InvestmentID,
		"checkout_request_id", resp.CheckoutRequestID,
		"amount", p.Amount)

	return created, nil
}

// Status returns the ledger row for a correlation id, enforcing that the
// requester owns the linked investment or claim.
func (s *PaymentService) Status(ctx context.Context, checkoutRequestID string, requesterID int64) (*model.PaymentRequest, error) {
	pr, err := s.ledger.GetByCheckoutRequestID(ctx, checkoutRequestID)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentRequestNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	switch {
	case pr.InvestmentID != nil:
		investment, err := s.investments.GetByID(ctx, *pr.InvestmentID)
		if err != nil {
			return nil, fmt.Errorf("load investment: %w", err)
		}
		if investment.InvestorID != requesterID {
			return nil, ErrUnauthorized
		}
	case pr.ClaimID != nil:
		claim, err := s.claims.GetByID(ctx, *pr.ClaimID)
		if err != nil {
			return nil, fmt.Errorf("load claim: %w", err)
		}
		if claim.InvestorID != requesterID {
			return nil, ErrUnauthorized
		}
	default:
		return nil, ErrUnauthorized
	}

	return pr, nil
}
