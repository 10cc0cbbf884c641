package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/afriproperty/payment-gateway/internal/model"
	"github.com/afriproperty/payment-gateway/internal/services"
	xhttp "github.com/afriproperty/payment-gateway/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) InitiateCollection(ctx context.Context, p model.CollectionRequest) (*model.PaymentRequest, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentRequest), args.Error(1)
}

func (m *MockPaymentService) Status(ctx context.Context, checkoutRequestID string, requesterID int64) (*model.PaymentRequest, error) {
	args := m.Called(ctx, checkoutRequestID, requesterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentRequest), args.Error(1)
}

type MockReconcileService struct {
	mock.Mock
}

func (m *MockReconcileService) ApplyCallback(ctx context.Context, cb model.STKCallback) (services.ApplyResult, error) {
	args := m.Called(ctx, cb)
	return args.Get(0).(services.ApplyResult), args.Error(1)
}

type MockPayoutService struct {
	mock.Mock
}

func (m *MockPayoutService) InitiateWithdrawal(ctx context.Context, p model.WithdrawalRequest) (*model.RentalClaim, string, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).(*model.RentalClaim), args.String(1), args.Error(2)
}

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Authenticate(ctx context.Context, apiKey string) (*model.Investor, error) {
	args := m.Called(ctx, apiKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Investor), args.Error(1)
}

func newHandler() (*PaymentHandler, *MockPaymentService, *MockReconcileService, *MockPayoutService, *MockAuthService) {
	payments := new(MockPaymentService)
	reconcile := new(MockReconcileService)
	payouts := new(MockPayoutService)
	auth := new(MockAuthService)
	return NewPaymentHandler(payments, reconcile, payouts, auth), payments, reconcile, payouts, auth
}

func setupTestContext(method, path string, body []byte) *xhttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if body != nil {
		ctx.Request.SetBody(body)
	}
	return ctx
}

func authedContext(method, path string, body []byte) *xhttp.RequestCtx {
	ctx := setupTestContext(method, path, body)
	ctx.Request.Header.Set("X-API-Key", "key-1")
	return ctx
}

func TestPaymentHandler_InitiateSTKPush(t *testing.T) {
	investor := &model.Investor{ID: 1, FullName: "Amina Odhiambo"}

	t.Run("accepted", func(t *testing.T) {
		handler, payments, _, _, auth := newHandler()

		auth.On("Authenticate", mock.Anything, "key-1").Return(investor, nil)
		payments.On("InitiateCollection", mock.Anything, mock.MatchedBy(func(p model.CollectionRequest) bool {
			return p.InvestmentID == 10 && p.RequesterID == 1 && p.Amount == 149.20
		})).Return(&model.PaymentRequest{ID: 99, CheckoutRequestID: "ws_CO_1", Status: model.PaymentStatusPending}, nil)

		body, _ := json.Marshal(stkPushRequest{InvestmentID: 10, PhoneNumber: "0712345678", Amount: 149.20})
		ctx := authedContext("POST", "/payments/stk-push", body)
		handler.InitiateSTKPush(ctx)

		assert.Equal(t, 202, ctx.Response.StatusCode())

		var got model.PaymentRequest
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &got))
		assert.Equal(t, "ws_CO_1", got.CheckoutRequestID)
	})

	t.Run("missing api key", func(t *testing.T) {
		handler, payments, _, _, auth := newHandler()

		auth.On("Authenticate", mock.Anything, "").Return(nil, services.ErrInvalidAPIKey)

		ctx := setupTestContext("POST", "/payments/stk-push", []byte(`{}`))
		handler.InitiateSTKPush(ctx)

		assert.Equal(t, 401, ctx.Response.StatusCode())
		payments.AssertNotCalled(t, "InitiateCollection", mock.Anything, mock.Anything)
	})

	t.Run("duplicate in-flight request", func(t *testing.T) {
		handler, payments, _, _, auth := newHandler()

		auth.On("Authenticate", mock.Anything, "key-1").Return(investor, nil)
		payments.On("InitiateCollection", mock.Anything, mock.Anything).
			Return(nil, services.ErrDuplicateRequest)

		body, _ := json.Marshal(stkPushRequest{InvestmentID: 10, PhoneNumber: "0712345678", Amount: 100})
		ctx := authedContext("POST", "/payments/stk-push", body)
		handler.InitiateSTKPush(ctx)

		assert.Equal(t, 409, ctx.Response.StatusCode())
	})

	t.Run("investment owned by someone else", func(t *testing.T) {
		handler, payments, _, _, auth := newHandler()

		auth.On("Authenticate", mock.Anything, "key-1").Return(investor, nil)
		payments.On("InitiateCollection", mock.Anything, mock.Anything).
			Return(nil, services.ErrUnauthorized)

		body, _ := json.Marshal(stkPushRequest{InvestmentID: 11, PhoneNumber: "0712345678", Amount: 100})
		ctx := authedContext("POST", "/payments/stk-push", body)
		handler.InitiateSTKPush(ctx)

		assert.Equal(t, 403, ctx.Response.StatusCode())
	})

	t.Run("invalid body", func(t *testing.T) {
		handler, _, _, _, auth := newHandler()

		auth.On("Authenticate", mock.Anything, "key-1").Return(investor, nil)

		ctx := authedContext("POST", "/payments/stk-push", []byte("{not json"))
		handler.InitiateSTKPush(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})
}

func TestPaymentHandler_Callback(t *testing.T) {
	callbackBody := []byte(`{
		"Body": {
			"stkCallback": {
				"MerchantRequestID": "MR-1",
				"CheckoutRequestID": "ws_CO_1",
				"ResultCode": 0,
				"ResultDesc": "The service request is processed successfully.",
				"CallbackMetadata": {
					"Item": [
						{"Name": "Amount", "Value": 150.00},
						{"Name": "MpesaReceiptNumber", "Value": "ABC123"},
						{"Name": "PhoneNumber", "Value": 254712345678}
					]
				}
			}
		}
	}`)

	t.Run("applied callback acknowledged", func(t *testing.T) {
		handler, _, reconcile, _, _ := newHandler()

		reconcile.On("ApplyCallback", mock.Anything, mock.MatchedBy(func(cb model.STKCallback) bool {
			return cb.CheckoutRequestID == "ws_CO_1" && cb.Succeeded() && cb.ReceiptNumber() == "ABC123"
		})).Return(services.ApplyResult{Outcome: services.OutcomeApplied, Status: model.PaymentStatusCompleted}, nil)

		ctx := setupTestContext("POST", "/payments/callback", callbackBody)
		handler.Callback(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var ack model.CallbackAck
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &ack))
		assert.Equal(t, 0, ack.ResultCode)
	})

	t.Run("duplicate still acknowledged with success", func(t *testing.T) {
		handler, _, reconcile, _, _ := newHandler()

		reconcile.On("ApplyCallback", mock.Anything, mock.Anything).
			Return(services.ApplyResult{Outcome: services.OutcomeDuplicate, Status: model.PaymentStatusCompleted}, nil)

		ctx := setupTestContext("POST", "/payments/callback", callbackBody)
		handler.Callback(ctx)

		var ack model.CallbackAck
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &ack))
		assert.Equal(t, 0, ack.ResultCode)
	})

	t.Run("unknown correlation id still acknowledged", func(t *testing.T) {
		handler, _, reconcile, _, _ := newHandler()

		reconcile.On("ApplyCallback", mock.Anything, mock.Anything).
			Return(services.ApplyResult{Outcome: services.OutcomeUnknown}, nil)

		ctx := setupTestContext("POST", "/payments/callback", callbackBody)
		handler.Callback(ctx)

		var ack model.CallbackAck
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &ack))
		assert.Equal(t, 0, ack.ResultCode)
	})

	t.Run("storage failure returns failure ack for redelivery", func(t *testing.T) {
		handler, _, reconcile, _, _ := newHandler()

		reconcile.On("ApplyCallback", mock.Anything, mock.Anything).
			Return(services.ApplyResult{}, assert.AnError)

		ctx := setupTestContext("POST", "/payments/callback", callbackBody)
		handler.Callback(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var ack model.CallbackAck
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &ack))
		assert.Equal(t, 1, ack.ResultCode)
	})

	t.Run("unparseable body gets failure ack", func(t *testing.T) {
		handler, _, reconcile, _, _ := newHandler()

		ctx := setupTestContext("POST", "/payments/callback", []byte("<xml/>"))
		handler.Callback(ctx)

		var ack model.CallbackAck
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &ack))
		assert.Equal(t, 1, ack.ResultCode)
		reconcile.AssertNotCalled(t, "ApplyCallback", mock.Anything, mock.Anything)
	})
}

func TestPaymentHandler_Status(t *testing.T) {
	investor := &model.Investor{ID: 1}

	t.Run("found", func(t *testing.T) {
		handler, payments, _, _, auth := newHandler()

		auth.On("Authenticate", mock.Anything, "key-1").Return(investor, nil)
		payments.On("Status", mock.Anything, "ws_CO_1", int64(1)).
			Return(&model.PaymentRequest{ID: 99, Status: model.PaymentStatusCompleted, ReceiptNumber: "ABC123"}, nil)

		ctx := authedContext("GET", "/payments/status/ws_CO_1", nil)
		ctx.SetUserValue("checkout_request_id", "ws_CO_1")
		handler.Status(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var got model.PaymentRequest
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &got))
		assert.Equal(t, "ABC123", got.ReceiptNumber)
	})

	t.Run("unknown id", func(t *testing.T) {
		handler, payments, _, _, auth := newHandler()

		auth.On("Authenticate", mock.Anything, "key-1").Return(investor, nil)
		payments.On("Status", mock.Anything, "nope", int64(1)).Return(nil, services.ErrNotFound)

		ctx := authedContext("GET", "/payments/status/nope", nil)
		ctx.SetUserValue("checkout_request_id", "nope")
		handler.Status(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
	})

	t.Run("missing path param", func(t *testing.T) {
		handler, _, _, _, auth := newHandler()

		auth.On("Authenticate", mock.Anything, "key-1").Return(investor, nil)

		ctx := authedContext("GET", "/payments/status/", nil)
		handler.Status(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})
}

func TestPaymentHandler_Withdraw(t *testing.T) {
	investor := &model.Investor{ID: 3}

	t.Run("accepted", func(t *testing.T) {
		handler, _, _, payouts, auth := newHandler()

		auth.On("Authenticate", mock.Anything, "key-1").Return(investor, nil)
		payouts.On("InitiateWithdrawal", mock.Anything, mock.MatchedBy(func(p model.WithdrawalRequest) bool {
			return p.ClaimID == 7 && p.RequesterID == 3
		})).Return(&model.RentalClaim{ID: 7, Status: model.ClaimStatusProcessing}, "AG_1", nil)

		body, _ := json.Marshal(withdrawRequest{ClaimID: 7, PhoneNumber: "0712345678", Amount: 2500})
		ctx := authedContext("POST", "/payments/withdraw", body)
		handler.Withdraw(ctx)

		assert.Equal(t, 202, ctx.Response.StatusCode())

		var got withdrawResponse
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &got))
		assert.Equal(t, "AG_1", got.ConversationID)
		assert.Equal(t, model.ClaimStatusProcessing, got.Claim.Status)
	})

	t.Run("claim not pending", func(t *testing.T) {
		handler, _, _, payouts, auth := newHandler()

		auth.On("Authenticate", mock.Anything, "key-1").Return(investor, nil)
		payouts.On("InitiateWithdrawal", mock.Anything, mock.Anything).
			Return(nil, "", services.ErrInvalidState)

		body, _ := json.Marshal(withdrawRequest{ClaimID: 7, PhoneNumber: "0712345678", Amount: 2500})
		ctx := authedContext("POST", "/payments/withdraw", body)
		handler.Withdraw(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})

	t.Run("provider failure maps to bad gateway", func(t *testing.T) {
		handler, _, _, payouts, auth := newHandler()

		auth.On("Authenticate", mock.Anything, "key-1").Return(investor, nil)
		payouts.On("InitiateWithdrawal", mock.Anything, mock.Anything).
			Return(nil, "", services.ErrPayoutInitiation)

		body, _ := json.Marshal(withdrawRequest{ClaimID: 7, PhoneNumber: "0712345678", Amount: 2500})
		ctx := authedContext("POST", "/payments/withdraw", body)
		handler.Withdraw(ctx)

		assert.Equal(t, 502, ctx.Response.StatusCode())
	})
}
