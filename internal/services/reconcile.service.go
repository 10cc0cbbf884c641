package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/afriproperty/payment-gateway/internal/model"
	"github.com/afriproperty/payment-gateway/internal/repository"
	"github.com/afriproperty/payment-gateway/pkg/logger"
)

// Outcome classifies what a callback did to the ledger.
type Outcome int

const (
	// OutcomeApplied means this callback performed the terminal transition.
	OutcomeApplied Outcome = iota
	// OutcomeDuplicate means the row was already terminal; nothing changed.
	OutcomeDuplicate
	// OutcomeUnknown means no ledger row matches the correlation id.
	OutcomeUnknown
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// ApplyResult distinguishes "duplicate ignored" from "genuinely applied"
// for callers and tests; the provider always receives the same
// acknowledgment either way.
type ApplyResult struct {
	Outcome       Outcome
	Status        model.PaymentStatus
	ReceiptNumber string
}

type ReconcileLedger interface {
	GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*model.PaymentRequest, error)
	CompleteByCheckoutRequestID(ctx context.Context, checkoutRequestID string, resultCode int, resultDesc, receiptNumber string, transactionDate time.Time) (bool, error)
	FailByCheckoutRequestID(ctx context.Context, checkoutRequestID string, resultCode int, resultDesc string) (bool, error)
}

type InvestmentWriter interface {
	GetByID(ctx context.Context, id int64) (*model.Investment, error)
	MarkPaid(ctx context.Context, id int64, paymentReference string, paidAt time.Time) (bool, error)
}

type NotificationWriter interface {
	Create(ctx context.Context, n *model.Notification) (*model.Notification, error)
}

type NotificationQueue interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

// ReconcileService ingests provider callbacks into the ledger and drives
// the downstream effects of a successful payment. The conditional update
// in the ledger is the only serialization point: of any number of
// concurrent duplicate callbacks, exactly one applies.
type ReconcileService struct {
	ledger        ReconcileLedger
	investments   InvestmentWriter
	notifications NotificationWriter
	queue         NotificationQueue
	now           func() time.Time
}

func NewReconcileService(ledger ReconcileLedger, investments InvestmentWriter, notifications NotificationWriter, queue NotificationQueue) *ReconcileService {
	return &ReconcileService{
		ledger:        ledger,
		investments:   investments,
		notifications: notifications,
		queue:         queue,
		now:           time.Now,
	}
}

// ApplyCallback applies one STK callback at most once. Downstream effects
// (investment update, notification) run only for the invocation that won
// the terminal transition, and their failures are logged, never rolled
// back: the ledger commit is the source of truth.
func (s *ReconcileService) ApplyCallback(ctx context.Context, cb model.STKCallback) (ApplyResult, error) {
	if cb.CheckoutRequestID == "" {
		// Rows created before provider acceptance hold an empty correlation
		// id; an empty id on the wire must never address one of them.
		logger.Warn("callback without correlation id, acknowledging",
			"result_code", cb.ResultCode)
		return ApplyResult{Outcome: OutcomeUnknown}, nil
	}

	pr, err := s.ledger.GetByCheckoutRequestID(ctx, cb.CheckoutRequestID)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentRequestNotFound) {
			logger.Warn("callback for unknown correlation id, acknowledging",
				"checkout_request_id", cb.CheckoutRequestID, "result_code", cb.ResultCode)
			return ApplyResult{Outcome: OutcomeUnknown}, nil
		}
		return ApplyResult{}, fmt.Errorf("lookup payment request: %w", err)
	}

	if pr.Status.IsTerminal() {
		logger.Info("duplicate callback ignored",
			"checkout_request_id", cb.CheckoutRequestID, "status", pr.Status)
		return ApplyResult{Outcome: OutcomeDuplicate, Status: pr.Status, ReceiptNumber: pr.ReceiptNumber}, nil
	}

	if !cb.Succeeded() {
		applied, err := s.ledger.FailByCheckoutRequestID(ctx, cb.CheckoutRequestID, cb.ResultCode, cb.ResultDesc)
		if err != nil {
			return ApplyResult{}, fmt.Errorf("apply failure transition: %w", err)
		}
		if !applied {
			// Lost the race to a concurrent delivery.
			return s.terminalResult(ctx, cb.CheckoutRequestID)
		}

		logger.Info("payment failed",
			"checkout_request_id", cb.CheckoutRequestID,
			"result_code", cb.ResultCode,
			"result_desc", cb.ResultDesc)

		return ApplyResult{Outcome: OutcomeApplied, Status: model.PaymentStatusFailed}, nil
	}

	receipt := cb.ReceiptNumber()
	now := s.now()

	applied, err := s.ledger.CompleteByCheckoutRequestID(ctx, cb.CheckoutRequestID, cb.ResultCode, cb.ResultDesc, receipt, now)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("apply success transition: %w", err)
	}
	if !applied {
		return s.terminalResult(ctx, cb.CheckoutRequestID)
	}

	logger.Info("payment completed",
		"checkout_request_id", cb.CheckoutRequestID,
		"receipt", receipt,
		"amount", pr.Amount)

	if pr.InvestmentID != nil {
		s.settleInvestment(ctx, *pr.InvestmentID, receipt, pr.Amount, now)
	}

	return ApplyResult{Outcome: OutcomeApplied, Status: model.PaymentStatusCompleted, ReceiptNumber: receipt}, nil
}

// terminalResult reloads the row after a lost conditional update so the
// reported state is whatever the winning delivery committed, which may
// differ from this callback's verdict.
func (s *ReconcileService) terminalResult(ctx context.Context, checkoutRequestID string) (ApplyResult, error) {
	pr, err := s.ledger.GetByCheckoutRequestID(ctx, checkoutRequestID)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("reload payment request: %w", err)
	}
	return ApplyResult{Outcome: OutcomeDuplicate, Status: pr.Status, ReceiptNumber: pr.ReceiptNumber}, nil
}

// settleInvestment performs the best-effort downstream effects of a
// completed collection.
func (s *ReconcileService) settleInvestment(ctx context.Context, investmentID int64, receipt string, amount float64, paidAt time.Time) {
	if _, err := s.investments.MarkPaid(ctx, investmentID, receipt, paidAt); err != nil {
		logger.Error("failed to mark investment paid",
			"investment_id", investmentID, "receipt", receipt, "error", err)
		return
	}

	investment, err := s.investments.GetByID(ctx, investmentID)
	if err != nil {
		logger.Error("failed to load investment for notification",
			"investment_id", investmentID, "error", err)
		return
	}

	notification, err := s.notifications.Create(ctx, &model.Notification{
		UserID:   investment.InvestorID,
		Title:    "Payment Successful",
		Message:  fmt.Sprintf("Your payment of KES %.2f was successful. Receipt: %s", amount, receipt),
		Category: "investment",
	})
	if err != nil {
		logger.Error("failed to record notification",
			"investment_id", investmentID, "error", err)
		return
	}

	if s.queue == nil {
		return
	}
	job := model.NotificationJob{
		NotificationID: notification.ID,
		UserID:         notification.UserID,
		Title:          notification.Title,
		Message:        notification.Message,
		Category:       notification.Category,
		EnqueuedAt:     s.now(),
	}
	if _, err := s.queue.PublishJSON(ctx, job, nil); err != nil {
		logger.Error("failed to enqueue notification delivery",
			"notification_id", notification.ID, "error", err)
	}
}
