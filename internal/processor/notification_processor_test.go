package processor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/afriproperty/payment-gateway/internal/model"
	"github.com/afriproperty/payment-gateway/internal/queue"
)

type fakeSink struct {
	calls int
	err   error
}

func (s *fakeSink) Notify(ctx context.Context, userID int64, title, message, category string) error {
	s.calls++
	return s.err
}

func queuedJob(t *testing.T, notificationID int64) *queue.Message {
	t.Helper()
	data, err := json.Marshal(model.NotificationJob{
		NotificationID: notificationID,
		UserID:         1,
		Title:          "Payment Successful",
		Message:        "Your payment of KES 150.00 was successful. Receipt: ABC123",
		Category:       "investment",
		EnqueuedAt:     time.Now(),
	})
	if err != nil {
		t.Fatalf("marshal job: %v", err)
	}
	return &queue.Message{ID: "1-0", Data: data}
}

func TestNotificationProcessor_Process(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers and marks processed", func(t *testing.T) {
		sink := &fakeSink{}
		idem := NewIdempotencyService(newMockRedisAdapter(), DefaultIdempotencyConfig())
		p := NewNotificationProcessor(sink, idem)

		if err := p.Process(ctx, queuedJob(t, 5)); err != nil {
			t.Fatalf("expected success, got: %v", err)
		}
		if sink.calls != 1 {
			t.Errorf("expected 1 delivery, got %d", sink.calls)
		}

		processed, err := idem.IsProcessed(ctx, "5")
		if err != nil {
			t.Fatalf("IsProcessed failed: %v", err)
		}
		if !processed {
			t.Error("notification should be marked processed")
		}
	})

	t.Run("redelivery is skipped", func(t *testing.T) {
		sink := &fakeSink{}
		idem := NewIdempotencyService(newMockRedisAdapter(), DefaultIdempotencyConfig())
		p := NewNotificationProcessor(sink, idem)

		if err := p.Process(ctx, queuedJob(t, 6)); err != nil {
			t.Fatalf("first delivery failed: %v", err)
		}
		if err := p.Process(ctx, queuedJob(t, 6)); err != nil {
			t.Fatalf("redelivery should ACK, got: %v", err)
		}
		if sink.calls != 1 {
			t.Errorf("expected 1 delivery across redeliveries, got %d", sink.calls)
		}
	})

	t.Run("sink failure requeues", func(t *testing.T) {
		sink := &fakeSink{err: errors.New("push endpoint returned status 503")}
		idem := NewIdempotencyService(newMockRedisAdapter(), DefaultIdempotencyConfig())
		p := NewNotificationProcessor(sink, idem)

		if err := p.Process(ctx, queuedJob(t, 7)); err == nil {
			t.Fatal("expected error to NACK the message")
		}

		// Lock released, a retry may proceed
		sink.err = nil
		if err := p.Process(ctx, queuedJob(t, 7)); err != nil {
			t.Fatalf("retry should succeed, got: %v", err)
		}
		if sink.calls != 2 {
			t.Errorf("expected 2 attempts, got %d", sink.calls)
		}
	})

	t.Run("malformed payload goes to DLQ", func(t *testing.T) {
		sink := &fakeSink{}
		idem := NewIdempotencyService(newMockRedisAdapter(), DefaultIdempotencyConfig())
		p := NewNotificationProcessor(sink, idem)

		if err := p.Process(ctx, &queue.Message{ID: "1-1", Data: []byte("{bad")}); err == nil {
			t.Fatal("expected error for malformed payload")
		}
		if sink.calls != 0 {
			t.Errorf("sink should not be called, got %d", sink.calls)
		}
	})
}
