package repository

import (
	"context"
	"time"

	"github.com/afriproperty/payment-gateway/internal/model"
	"github.com/afriproperty/payment-gateway/pkg/pg"
)

type NotificationEntity struct {
	ID        int64     `db:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	UserID    int64     `db:"user_id"    gorm:"column:user_id;not null;index"`
	Title     string    `db:"title"      gorm:"column:title;not null"`
	Message   string    `db:"message"    gorm:"column:message;not null"`
	Category  string    `db:"category"   gorm:"column:category;not null"`
	CreatedAt time.Time `db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (NotificationEntity) TableName() string {
	return "notifications"
}

type NotificationRepository struct {
	*pg.DB
}

func NewNotificationRepository(db *pg.DB) *NotificationRepository {
	return &NotificationRepository{
		db,
	}
}

func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) (*model.Notification, error) {
	entity := &NotificationEntity{
		UserID:   n.UserID,
		Title:    n.Title,
		Message:  n.Message,
		Category: n.Category,
	}

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return &model.Notification{
		ID:        entity.ID,
		UserID:    entity.UserID,
		Title:     entity.Title,
		Message:   entity.Message,
		Category:  entity.Category,
		CreatedAt: entity.CreatedAt,
	}, nil
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*model.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var entities []*NotificationEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}

	notifications := make([]*model.Notification, len(entities))
	for i, e := range entities {
		notifications[i] = &model.Notification{
			ID:        e.ID,
			UserID:    e.UserID,
			Title:     e.Title,
			Message:   e.Message,
			Category:  e.Category,
			CreatedAt: e.CreatedAt,
		}
	}
	return notifications, nil
}
