package services

import (
	"context"
	"time"

	gateway "github.com/afriproperty/payment-gateway/internal/gateways"
	"github.com/afriproperty/payment-gateway/internal/model"
	"github.com/stretchr/testify/mock"
)

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Create(ctx context.Context, pr *model.PaymentRequest) (*model.PaymentRequest, error) {
	args := m.Called(ctx, pr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentRequest), args.Error(1)
}

func (m *MockLedger) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*model.PaymentRequest, error) {
	args := m.Called(ctx, checkoutRequestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentRequest), args.Error(1)
}

func (m *MockLedger) AssignCorrelation(ctx context.Context, id int64, merchantRequestID, checkoutRequestID string) error {
	args := m.Called(ctx, id, merchantRequestID, checkoutRequestID)
	return args.Error(0)
}

func (m *MockLedger) FailByID(ctx context.Context, id int64, resultDesc string) (bool, error) {
	args := m.Called(ctx, id, resultDesc)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedger) MarkProcessing(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedger) CompleteByCheckoutRequestID(ctx context.Context, checkoutRequestID string, resultCode int, resultDesc, receiptNumber string, transactionDate time.Time) (bool, error) {
	args := m.Called(ctx, checkoutRequestID, resultCode, resultDesc, receiptNumber, transactionDate)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedger) FailByCheckoutRequestID(ctx context.Context, checkoutRequestID string, resultCode int, resultDesc string) (bool, error) {
	args := m.Called(ctx, checkoutRequestID, resultCode, resultDesc)
	return args.Bool(0), args.Error(1)
}

type MockInvestmentRepository struct {
	mock.Mock
}

func (m *MockInvestmentRepository) GetByID(ctx context.Context, id int64) (*model.Investment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Investment), args.Error(1)
}

func (m *MockInvestmentRepository) MarkPaid(ctx context.Context, id int64, paymentReference string, paidAt time.Time) (bool, error) {
	args := m.Called(ctx, id, paymentReference, paidAt)
	return args.Bool(0), args.Error(1)
}

type MockClaimRepository struct {
	mock.Mock
}

func (m *MockClaimRepository) GetByID(ctx context.Context, id int64) (*model.RentalClaim, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RentalClaim), args.Error(1)
}

func (m *MockClaimRepository) MarkProcessing(ctx context.Context, id int64, paymentMethod, paymentReference string) (bool, error) {
	args := m.Called(ctx, id, paymentMethod, paymentReference)
	return args.Bool(0), args.Error(1)
}

type MockNotificationRepository struct {
	mock.Mock
}

func (m *MockNotificationRepository) Create(ctx context.Context, n *model.Notification) (*model.Notification, error) {
	args := m.Called(ctx, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Notification), args.Error(1)
}

type MockQueue struct {
	mock.Mock
}

func (m *MockQueue) PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error) {
	args := m.Called(ctx, data, metadata)
	return args.String(0), args.Error(1)
}

type MockMpesaGateway struct {
	mock.Mock
}

func (m *MockMpesaGateway) STKPush(ctx context.Context, p *gateway.STKPushRequest) (*gateway.STKPushResponse, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.STKPushResponse), args.Error(1)
}

func (m *MockMpesaGateway) B2CPayment(ctx context.Context, p *gateway.B2CRequest) (*gateway.B2CResponse, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.B2CResponse), args.Error(1)
}
