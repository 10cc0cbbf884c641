package model

import "time"

// Notification is the durable record of a user-facing message. The row is
// written by the reconciler; actual delivery happens asynchronously and is
// fire-and-forget.
type Notification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationJob is the queue payload consumed by the delivery processor.
type NotificationJob struct {
	NotificationID int64     `json:"notification_id"`
	UserID         int64     `json:"user_id"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	Category       string    `json:"category"`
	EnqueuedAt     time.Time `json:"enqueued_at"`
}
