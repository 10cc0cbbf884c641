package services

import (
	"context"
	"errors"
	"testing"

	gateway "github.com/afriproperty/payment-gateway/internal/gateways"
	"github.com/afriproperty/payment-gateway/internal/model"
	"github.com/afriproperty/payment-gateway/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestPayoutService_InitiateWithdrawal(t *testing.T) {
	ctx := context.Background()

	claim := &model.RentalClaim{
		ID:         7,
		InvestorID: 3,
		PropertyID: 5,
		Amount:     2500,
		Status:     model.ClaimStatusPending,
	}

	req := model.WithdrawalRequest{
		ClaimID:     7,
		RequesterID: 3,
		PhoneNumber: "0712345678",
		Amount:      2500,
	}

	t.Run("successful withdrawal", func(t *testing.T) {
		claims := new(MockClaimRepository)
		ledger := new(MockLedger)
		mpesa := new(MockMpesaGateway)
		service := NewPayoutService(claims, ledger, mpesa)

		pending := *claim
		claims.On("GetByID", ctx, int64(7)).Return(&pending, nil)
		ledger.On("Create", ctx, mock.AnythingOfType("*model.PaymentRequest")).
			Return(&model.PaymentRequest{ID: 42, Direction: model.DirectionDisbursement}, nil)
		mpesa.On("B2CPayment", ctx, mock.MatchedBy(func(p *gateway.B2CRequest) bool {
			return p.Amount == 2500 && p.PhoneNumber == "254712345678"
		})).Return(&gateway.B2CResponse{
			ConversationID:           "AG_1",
			OriginatorConversationID: "OC_1",
		}, nil)
		ledger.On("AssignCorrelation", ctx, int64(42), "OC_1", "AG_1").Return(nil)
		ledger.On("MarkProcessing", ctx, int64(42)).Return(true, nil)
		claims.On("MarkProcessing", ctx, int64(7), "mpesa", "AG_1").Return(true, nil)

		got, conversationID, err := service.InitiateWithdrawal(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "AG_1", conversationID)
		assert.Equal(t, model.ClaimStatusProcessing, got.Status)
		assert.Equal(t, "mpesa", got.PaymentMethod)

		claims.AssertExpectations(t)
		ledger.AssertExpectations(t)
		mpesa.AssertExpectations(t)
	})

	t.Run("claim not found", func(t *testing.T) {
		claims := new(MockClaimRepository)
		service := NewPayoutService(claims, new(MockLedger), new(MockMpesaGateway))

		claims.On("GetByID", ctx, int64(7)).Return(nil, repository.ErrClaimNotFound)

		_, _, err := service.InitiateWithdrawal(ctx, req)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("not the owner", func(t *testing.T) {
		claims := new(MockClaimRepository)
		service := NewPayoutService(claims, new(MockLedger), new(MockMpesaGateway))

		claims.On("GetByID", ctx, int64(7)).Return(claim, nil)

		other := req
		other.RequesterID = 99
		_, _, err := service.InitiateWithdrawal(ctx, other)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("claim already processing", func(t *testing.T) {
		claims := new(MockClaimRepository)
		mpesa := new(MockMpesaGateway)
		service := NewPayoutService(claims, new(MockLedger), mpesa)

		busy := *claim
		busy.Status = model.ClaimStatusProcessing
		claims.On("GetByID", ctx, int64(7)).Return(&busy, nil)

		_, _, err := service.InitiateWithdrawal(ctx, req)
		assert.ErrorIs(t, err, ErrInvalidState)
		mpesa.AssertNotCalled(t, "B2CPayment", mock.Anything, mock.Anything)
	})

	t.Run("provider failure leaves claim pending", func(t *testing.T) {
		claims := new(MockClaimRepository)
		ledger := new(MockLedger)
		mpesa := new(MockMpesaGateway)
		service := NewPayoutService(claims, ledger, mpesa)

		claims.On("GetByID", ctx, int64(7)).Return(claim, nil)
		ledger.On("Create", ctx, mock.AnythingOfType("*model.PaymentRequest")).
			Return(&model.PaymentRequest{ID: 42}, nil)
		mpesa.On("B2CPayment", ctx, mock.Anything).Return(nil, errors.New("unexpected status code: 500"))
		ledger.On("FailByID", ctx, int64(42), mock.AnythingOfType("string")).Return(true, nil)

		_, _, err := service.InitiateWithdrawal(ctx, req)
		assert.ErrorIs(t, err, ErrPayoutInitiation)
		claims.AssertNotCalled(t, "MarkProcessing", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("provider timeout keeps ledger row pending", func(t *testing.T) {
		claims := new(MockClaimRepository)
		ledger := new(MockLedger)
		mpesa := new(MockMpesaGateway)
		service := NewPayoutService(claims, ledger, mpesa)

		claims.On("GetByID", ctx, int64(7)).Return(claim, nil)
		ledger.On("Create", ctx, mock.AnythingOfType("*model.PaymentRequest")).
			Return(&model.PaymentRequest{ID: 42}, nil)
		mpesa.On("B2CPayment", ctx, mock.Anything).Return(nil, gateway.ErrUpstreamTimeout)

		_, _, err := service.InitiateWithdrawal(ctx, req)
		assert.ErrorIs(t, err, ErrPayoutInitiation)
		ledger.AssertNotCalled(t, "FailByID", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("in-flight duplicate", func(t *testing.T) {
		claims := new(MockClaimRepository)
		ledger := new(MockLedger)
		mpesa := new(MockMpesaGateway)
		service := NewPayoutService(claims, ledger, mpesa)

		claims.On("GetByID", ctx, int64(7)).Return(claim, nil)
		ledger.On("Create", ctx, mock.AnythingOfType("*model.PaymentRequest")).
			Return(nil, repository.ErrDuplicateRequest)

		_, _, err := service.InitiateWithdrawal(ctx, req)
		assert.ErrorIs(t, err, ErrDuplicateRequest)
		mpesa.AssertNotCalled(t, "B2CPayment", mock.Anything, mock.Anything)
	})
}

func TestAuthService_Authenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("valid key", func(t *testing.T) {
		investors := new(MockInvestorRepository)
		service := NewAuthService(investors)

		investors.On("GetByAPIKey", ctx, "key-1").
			Return(&model.Investor{ID: 3, FullName: "Amina Odhiambo"}, nil)

		investor, err := service.Authenticate(ctx, "key-1")
		require.NoError(t, err)
		assert.Equal(t, int64(3), investor.ID)
	})

	t.Run("unknown key", func(t *testing.T) {
		investors := new(MockInvestorRepository)
		service := NewAuthService(investors)

		investors.On("GetByAPIKey", ctx, "bad").Return(nil, repository.ErrInvestorNotFound)

		_, err := service.Authenticate(ctx, "bad")
		assert.ErrorIs(t, err, ErrInvalidAPIKey)
	})

	t.Run("empty key", func(t *testing.T) {
		service := NewAuthService(new(MockInvestorRepository))

		_, err := service.Authenticate(ctx, "")
		assert.ErrorIs(t, err, ErrInvalidAPIKey)
	})
}

type MockInvestorRepository struct {
	mock.Mock
}

func (m *MockInvestorRepository) GetByAPIKey(ctx context.Context, apiKey string) (*model.Investor, error) {
	args := m.Called(ctx, apiKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Investor), args.Error(1)
}
