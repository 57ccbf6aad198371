package repository

import (
	"context"
	"time"

	"skillbarter/internal/models"

	"gorm.io/gorm"
)

// OutboxRepository stores the events a domain transaction wants delivered.
// Appends happen inside the domain transaction (via AppendEvent on the
// transaction handle); reads and acknowledgements happen from the dispatcher.
type OutboxRepository interface {
	ListPending(ctx context.Context, limit int) ([]models.OutboxEvent, error)
	MarkDispatched(ctx context.Context, eventID string) error
}

// outboxRepository implements OutboxRepository
type outboxRepository struct {
	db *gorm.DB
}

// NewOutboxRepository creates a new outbox repository
func NewOutboxRepository(db *gorm.DB) OutboxRepository {
	return &outboxRepository{db: db}
}

func (r *outboxRepository) ListPending(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var events []models.OutboxEvent
	if err := r.db.WithContext(ctx).
		Where("dispatched_at IS NULL").
		Order("created_at ASC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return events, nil
}

func (r *outboxRepository) MarkDispatched(ctx context.Context, eventID string) error {
	now := time.Now()
	if err := r.db.WithContext(ctx).
		Model(&models.OutboxEvent{}).
		Where("id = ? AND dispatched_at IS NULL", eventID).
		Update("dispatched_at", &now).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// AppendEvent records an outbox event on the given handle. Callers pass the
// transaction carrying the domain state change so the event commits or rolls
// back with it.
func AppendEvent(tx *gorm.DB, event *models.OutboxEvent) error {
	if err := tx.Create(event).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
