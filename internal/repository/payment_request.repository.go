package repository

import (
	"context"
	"errors"
	"time"

	"github.com/afriproperty/payment-gateway/internal/model"
	"github.com/afriproperty/payment-gateway/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrPaymentRequestNotFound is returned when no ledger row matches.
	ErrPaymentRequestNotFound = errors.New("payment request not found")
	// ErrDuplicateRequest is returned when a non-terminal request already
	// exists for the same investment or claim.
	ErrDuplicateRequest = errors.New("a payment request is already in flight")
)

type PaymentRequestRepository struct {
	*pg.DB
}

func NewPaymentRequestRepository(db *pg.DB) *PaymentRequestRepository {
	return &PaymentRequestRepository{
		db,
	}
}

// Create inserts a new pending ledger row. Only one non-terminal request is
// allowed per investment or claim, so the existence check and the insert run
// inside one transaction with the candidate rows locked.
func (r *PaymentRequestRepository) Create(ctx context.Context, pr *model.PaymentRequest) (*model.PaymentRequest, error) {
	entity := toPaymentRequestEntity(pr)

	err := r.WithinTransaction(ctx, func(ctx context.Context) error {
		q := r.Write(ctx).WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Model(&PaymentRequestEntity{}).
			Where("status IN ?", []string{string(model.PaymentStatusPending), string(model.PaymentStatusProcessing)})

		if entity.InvestmentID != nil {
			q = q.Where("investment_id = ?", *entity.InvestmentID)
		} else if entity.ClaimID != nil {
			q = q.Where("claim_id = ?", *entity.ClaimID)
		}

		var inFlight int64
		if err := q.Count(&inFlight).Error; err != nil {
			return err
		}
		if inFlight > 0 {
			return ErrDuplicateRequest
		}

		return r.Write(ctx).WithContext(ctx).Create(entity).Error
	})
	if err != nil {
		return nil, err
	}

	return toPaymentRequestModel(entity), nil
}

func (r *PaymentRequestRepository) GetByID(ctx context.Context, id int64) (*model.PaymentRequest, error) {
	var entity PaymentRequestEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentRequestNotFound
		}
		return nil, err
	}
	return toPaymentRequestModel(&entity), nil
}

// GetByCheckoutRequestID treats an empty id as unassigned, never as a
// match: rows await their correlation id as an empty string until the
// provider accepts the request.
func (r *PaymentRequestRepository) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*model.PaymentRequest, error) {
	if checkoutRequestID == "" {
		return nil, ErrPaymentRequestNotFound
	}
	var entity PaymentRequestEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("checkout_request_id = ?", checkoutRequestID).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentRequestNotFound
		}
		return nil, err
	}
	return toPaymentRequestModel(&entity), nil
}

// AssignCorrelation stores the provider-assigned correlation ids after the
// provider accepted the request.
func (r *PaymentRequestRepository) AssignCorrelation(ctx context.Context, id int64, merchantRequestID, checkoutRequestID string) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&PaymentRequestEntity{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"merchant_request_id": merchantRequestID,
			"checkout_request_id": checkoutRequestID,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPaymentRequestNotFound
	}
	return nil
}

// CompleteByCheckoutRequestID applies the success transition. The status
// guard in the WHERE clause makes the terminal-state check-and-update a
// single atomic operation: of any number of concurrent duplicate callbacks,
// exactly one observes RowsAffected == 1.
func (r *PaymentRequestRepository) CompleteByCheckoutRequestID(ctx context.Context, checkoutRequestID string, resultCode int, resultDesc, receiptNumber string, transactionDate time.Time) (bool, error) {
	if checkoutRequestID == "" {
		return false, nil
	}
	result := r.Write(ctx).WithContext(ctx).
		Model(&PaymentRequestEntity{}).
		Where("checkout_request_id = ? AND status IN ?", checkoutRequestID,
			[]string{string(model.PaymentStatusPending), string(model.PaymentStatusProcessing)}).
		Updates(map[string]interface{}{
			"status":           string(model.PaymentStatusCompleted),
			"result_code":      resultCode,
			"result_desc":      resultDesc,
			"receipt_number":   receiptNumber,
			"transaction_date": transactionDate,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FailByCheckoutRequestID applies the failure transition with the same
// atomic status guard.
func (r *PaymentRequestRepository) FailByCheckoutRequestID(ctx context.Context, checkoutRequestID string, resultCode int, resultDesc string) (bool, error) {
	if checkoutRequestID == "" {
		return false, nil
	}
	result := r.Write(ctx).WithContext(ctx).
		Model(&PaymentRequestEntity{}).
		Where("checkout_request_id = ? AND status IN ?", checkoutRequestID,
			[]string{string(model.PaymentStatusPending), string(model.PaymentStatusProcessing)}).
		Updates(map[string]interface{}{
			"status":      string(model.PaymentStatusFailed),
			"result_code": resultCode,
			"result_desc": resultDesc,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FailByID marks a row failed before correlation ids exist, used when the
// provider rejects the request synchronously. Timeouts deliberately do NOT
// take this path: a timed-out request stays pending so a late callback can
// still resolve it.
func (r *PaymentRequestRepository) FailByID(ctx context.Context, id int64, resultDesc string) (bool, error) {
	result := r.Write(ctx).WithContext(ctx).
		Model(&PaymentRequestEntity{}).
		Where("id = ? AND status = ?", id, string(model.PaymentStatusPending)).
		Updates(map[string]interface{}{
			"status":      string(model.PaymentStatusFailed),
			"result_desc": resultDesc,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkProcessing moves a disbursement row to processing once the provider
// acknowledged it.
func (r *PaymentRequestRepository) MarkProcessing(ctx context.Context, id int64) (bool, error) {
	result := r.Write(ctx).WithContext(ctx).
		Model(&PaymentRequestEntity{}).
		Where("id = ? AND status = ?", id, string(model.PaymentStatusPending)).
		Update("status", string(model.PaymentStatusProcessing))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
