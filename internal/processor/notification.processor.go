package processor

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/afriproperty/payment-gateway/internal/model"
	"github.com/afriproperty/payment-gateway/internal/queue"
	"github.com/afriproperty/payment-gateway/pkg/logger"
	"github.com/afriproperty/payment-gateway/pkg/prom"
)

type PushSink interface {
	Notify(ctx context.Context, userID int64, title, message, category string) error
}

// NotificationProcessor delivers queued payment notifications to the push
// endpoint. Delivery is at-least-once from the queue's point of view; the
// idempotency lock keeps redeliveries from reaching the user twice.
type NotificationProcessor struct {
	sink        PushSink
	idempotency *IdempotencyService
}

func NewNotificationProcessor(sink PushSink, idempotency *IdempotencyService) *NotificationProcessor {
	return &NotificationProcessor{
		sink:        sink,
		idempotency: idempotency,
	}
}

func (p *NotificationProcessor) GetType() string {
	return "notification"
}

// Process delivers a single notification job with idempotency guarantees.
func (p *NotificationProcessor) Process(ctx context.Context, queueMessage *queue.Message) error {
	var job model.NotificationJob
	if err := json.Unmarshal(queueMessage.Data, &job); err != nil {
		logger.Error("Failed to unmarshal notification job", "error", err)
		return err // move to DLQ
	}

	notificationID := strconv.FormatInt(job.NotificationID, 10)

	procCtx, err := p.idempotency.AcquireProcessingLock(ctx, notificationID)
	if err != nil {
		if errors.Is(err, ErrAlreadyProcessed) {
			// Already delivered - ACK to remove from queue
			logger.Info("Notification already delivered, skipping", "notification_id", notificationID)
			return nil
		}
		if errors.Is(err, ErrMaxRetriesExceeded) {
			// The notification row is still in the database, the user will
			// see it on next sync. ACK to move to DLQ.
			logger.Error("Max delivery retries exceeded", "notification_id", notificationID)
			return nil
		}
		if errors.Is(err, ErrLockAcquireFailed) {
			// Another consumer is delivering - NACK to retry later
			logger.Info("Lock held by another consumer, will retry", "notification_id", notificationID)
			return errors.New("lock held by another consumer")
		}
		logger.Error("Failed to acquire lock", "notification_id", notificationID, "error", err)
		return err
	}

	defer func() {
		if procCtx.lockAcquired {
			p.idempotency.ReleaseLock(ctx, procCtx)
		}
	}()

	logger.Info("Delivering notification",
		"notification_id", notificationID,
		"user_id", job.UserID,
		"category", job.Category,
		"retry_count", procCtx.RetryCount)

	if err := p.sink.Notify(ctx, job.UserID, job.Title, job.Message, job.Category); err != nil {
		logger.Error("Failed to deliver notification", "notification_id", notificationID, "error", err)
		if markErr := p.idempotency.MarkFailure(ctx, procCtx, err); markErr != nil {
			logger.Error("Failed to mark failure", "notification_id", notificationID, "error", markErr)
		}
		return err // NACK to retry from queue
	}

	if !job.EnqueuedAt.IsZero() {
		prom.AddNotificationDeliveryDuration(time.Since(job.EnqueuedAt).Seconds(), job.Category)
	}

	if markErr := p.idempotency.MarkSuccess(ctx, procCtx); markErr != nil {
		logger.Error("Failed to mark success", "notification_id", notificationID, "error", markErr)
		// Continue - the notification was delivered
	}

	logger.Info("Notification delivered",
		"notification_id", notificationID,
		"user_id", job.UserID,
		"retry_count", procCtx.RetryCount)

	return nil
}
