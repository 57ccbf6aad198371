package repository

import (
	"context"
	"time"

	"skillbarter/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NotificationRepository persists the durable notification records users can
// retrieve regardless of connectivity.
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListForUser(ctx context.Context, userID uint, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID uint) error
}

// notificationRepository implements NotificationRepository
type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// Create inserts the notification. When SourceEventID is set the write is
// idempotent on that key: a redelivery of the same outbox event loads the
// row written last time instead of inserting a duplicate.
func (r *notificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	tx := r.db.WithContext(ctx)
	if notification.SourceEventID != nil {
		tx = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_event_id"}},
			DoNothing: true,
		})
	}
	if err := tx.Create(notification).Error; err != nil {
		return models.NewInternalError(err)
	}
	if notification.ID == 0 && notification.SourceEventID != nil {
		if err := r.db.WithContext(ctx).
			Where("source_event_id = ?", *notification.SourceEventID).
			First(notification).Error; err != nil {
			return models.NewInternalError(err)
		}
	}
	return nil
}

func (r *notificationRepository) ListForUser(ctx context.Context, userID uint, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var notifications []models.Notification
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&notifications).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return notifications, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, userID, notificationID uint) error {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND user_id = ? AND read_at IS NULL", notificationID, userID).
		Update("read_at", &now)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.Notification{}).
			Where("id = ? AND user_id = ?", notificationID, userID).
			Count(&count).Error; err != nil {
			return models.NewInternalError(err)
		}
		if count == 0 {
			return models.NewNotFoundError("Notification", notificationID)
		}
		// Already read; marking again is a no-op.
	}
	return nil
}
