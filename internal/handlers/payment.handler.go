package handlers

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/fasthttp/router"

	gateway "github.com/afriproperty/payment-gateway/internal/gateways"
	"github.com/afriproperty/payment-gateway/internal/model"
	"github.com/afriproperty/payment-gateway/internal/services"
	xhttp "github.com/afriproperty/payment-gateway/pkg/http"
	"github.com/afriproperty/payment-gateway/pkg/logger"
	"github.com/afriproperty/payment-gateway/pkg/prom"
)

type PaymentService interface {
	InitiateCollection(ctx context.Context, p model.CollectionRequest) (*model.PaymentRequest, error)
	Status(ctx context.Context, checkoutRequestID string, requesterID int64) (*model.PaymentRequest, error)
}

type ReconcileService interface {
	ApplyCallback(ctx context.Context, cb model.STKCallback) (services.ApplyResult, error)
}

type PayoutService interface {
	InitiateWithdrawal(ctx context.Context, p model.WithdrawalRequest) (*model.RentalClaim, string, error)
}

type AuthService interface {
	Authenticate(ctx context.Context, apiKey string) (*model.Investor, error)
}

type PaymentHandler struct {
	payments  PaymentService
	reconcile ReconcileService
	payouts   PayoutService
	auth      AuthService
}

func RegisterPaymentRoutes(e *router.Group, h *PaymentHandler) {
	e.POST("/payments/stk-push", h.InitiateSTKPush)
	e.POST("/payments/callback", h.Callback)
	e.GET("/payments/status/{checkout_request_id}", h.Status)
	e.POST("/payments/withdraw", h.Withdraw)
}

func NewPaymentHandler(payments PaymentService, reconcile ReconcileService, payouts PayoutService, auth AuthService) *PaymentHandler {
	return &PaymentHandler{
		payments:  payments,
		reconcile: reconcile,
		payouts:   payouts,
		auth:      auth,
	}
}

type stkPushRequest struct {
	InvestmentID int64   `json:"investment_id"`
	PhoneNumber  string  `json:"phone_number"`
	Amount       float64 `json:"amount"`
}

type withdrawRequest struct {
	ClaimID     int64   `json:"claim_id"`
	PhoneNumber string  `json:"phone_number"`
	Amount      float64 `json:"amount"`
}

type withdrawResponse struct {
	Claim          *model.RentalClaim `json:"claim"`
	ConversationID string             `json:"conversation_id"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *PaymentHandler) InitiateSTKPush(ctx *xhttp.RequestCtx) {
	investor, ok := h.authenticate(ctx)
	if !ok {
		return
	}

	var req stkPushRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	pr, err := h.payments.InitiateCollection(ctx, model.CollectionRequest{
		InvestmentID: req.InvestmentID,
		RequesterID:  investor.ID,
		PhoneNumber:  req.PhoneNumber,
		Amount:       req.Amount,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 202, pr)
}

// Callback receives the provider's asynchronous STK result. The provider
// retries on any non-zero ack, so every recognizable body is acknowledged
// with success even when the correlation id is unknown or already settled.
func (h *PaymentHandler) Callback(ctx *xhttp.RequestCtx) {
	var envelope model.CallbackEnvelope
	if err := readJSON(ctx, &envelope); err != nil {
		logger.Warn("unparseable provider callback", "error", err)
		writeJSON(ctx, 200, model.AckFailed)
		return
	}

	result, err := h.reconcile.ApplyCallback(ctx, envelope.Body.StkCallback)
	if err != nil {
		// Transient storage failure: a failure ack makes the provider
		// retry, and reconciliation is idempotent.
		logger.Error("failed to apply provider callback",
			"checkout_request_id", envelope.Body.StkCallback.CheckoutRequestID, "error", err)
		writeJSON(ctx, 200, model.AckFailed)
		return
	}

	prom.IncCallbackOutcome(result.Outcome.String())
	logger.Debug("provider callback acknowledged",
		"checkout_request_id", envelope.Body.StkCallback.CheckoutRequestID,
		"outcome", result.Outcome.String())

	writeJSON(ctx, 200, model.AckAccepted)
}

func (h *PaymentHandler) Status(ctx *xhttp.RequestCtx) {
	investor, ok := h.authenticate(ctx)
	if !ok {
		return
	}

	checkoutRequestID, _ := ctx.UserValue("checkout_request_id").(string)
	if checkoutRequestID == "" {
		writeError(ctx, 400, "checkout_request_id is required")
		return
	}

	pr, err := h.payments.Status(ctx, checkoutRequestID, investor.ID)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, pr)
}

func (h *PaymentHandler) Withdraw(ctx *xhttp.RequestCtx) {
	investor, ok := h.authenticate(ctx)
	if !ok {
		return
	}

	var req withdrawRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	claim, conversationID, err := h.payouts.InitiateWithdrawal(ctx, model.WithdrawalRequest{
		ClaimID:     req.ClaimID,
		RequesterID: investor.ID,
		PhoneNumber: req.PhoneNumber,
		Amount:      req.Amount,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 202, withdrawResponse{Claim: claim, ConversationID: conversationID})
}

/* -------------------------------- Helpers ------------------------------------ */

func (h *PaymentHandler) authenticate(ctx *xhttp.RequestCtx) (*model.Investor, bool) {
	apiKey := string(ctx.Request.Header.Peek("X-API-Key"))
	investor, err := h.auth.Authenticate(ctx, apiKey)
	if err != nil {
		if errors.Is(err, services.ErrInvalidAPIKey) {
			writeError(ctx, 401, "invalid or missing api key")
		} else {
			writeError(ctx, 500, "authentication unavailable")
		}
		return nil, false
	}
	return investor, true
}

func writeServiceError(ctx *xhttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		writeError(ctx, 404, err.Error())
	case errors.Is(err, services.ErrUnauthorized):
		writeError(ctx, 403, err.Error())
	case errors.Is(err, services.ErrDuplicateRequest):
		writeError(ctx, 409, err.Error())
	case errors.Is(err, services.ErrInvalidState):
		writeError(ctx, 400, err.Error())
	case errors.Is(err, gateway.ErrUpstreamTimeout), errors.Is(err, gateway.ErrUpstreamAuth), errors.Is(err, services.ErrPayoutInitiation):
		writeError(ctx, 502, err.Error())
	default:
		writeError(ctx, 400, err.Error())
	}
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	return json.Unmarshal(ctx.PostBody(), dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}
