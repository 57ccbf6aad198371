package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"skillbarter/internal/models"
	"skillbarter/internal/observability"
	"skillbarter/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// LivePublisher pushes a payload onto a user's real-time channel.
type LivePublisher interface {
	PublishUser(ctx context.Context, userID uint, payload string) error
}

// Broadcaster fans a message out to a user's live websocket connections.
type Broadcaster interface {
	Broadcast(userID uint, message string)
}

// DevicePusher delivers a message to the user's registered device endpoints.
type DevicePusher interface {
	Send(ctx context.Context, userID uint, message, linkURL string) error
}

// Dispatcher drains the outbox. For each pending event the durable
// notification row is the one delivery that must succeed: if it fails the
// event stays pending and a later run retries it. The live channels are
// best-effort; their failures are logged, never retried, and never block
// marking the event dispatched.
type Dispatcher struct {
	outboxRepo repository.OutboxRepository
	notifRepo  repository.NotificationRepository
	publisher  LivePublisher
	hub        Broadcaster
	pusher     DevicePusher
	logger     *slog.Logger
}

func NewDispatcher(outboxRepo repository.OutboxRepository, notifRepo repository.NotificationRepository, publisher LivePublisher, hub Broadcaster, pusher DevicePusher, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		outboxRepo: outboxRepo,
		notifRepo:  notifRepo,
		publisher:  publisher,
		hub:        hub,
		pusher:     pusher,
		logger:     logger,
	}
}

// notificationPayload is the JSON shape sent over the live channels.
type notificationPayload struct {
	Type           string `json:"type"`
	Message        string `json:"message"`
	LinkURL        string `json:"link_url,omitempty"`
	NotificationID uint   `json:"notification_id"`
}

// DispatchPending processes up to limit pending outbox events in commit
// order. Returns the number of events successfully dispatched.
func (d *Dispatcher) DispatchPending(ctx context.Context, limit int) (int, error) {
	span, ctx := observability.NewSpan(ctx, "outbox.dispatch_pending")
	defer span.End()

	events, err := d.outboxRepo.ListPending(ctx, limit)
	if err != nil {
		span.SetError(err)
		return 0, err
	}
	span.AddAttributes(attribute.Int("outbox.pending", len(events)))

	dispatched := 0
	for _, event := range events {
		if err := d.dispatch(ctx, event); err != nil {
			observability.OutboxDispatched.WithLabelValues("failed").Inc()
			d.logger.Error("outbox dispatch failed, event stays pending",
				"event_id", event.ID, "type", event.Type, "error", err)
			continue
		}
		observability.OutboxDispatched.WithLabelValues("delivered").Inc()
		dispatched++
	}
	span.AddAttributes(attribute.Int("outbox.dispatched", dispatched))
	return dispatched, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, event models.OutboxEvent) error {
	notification := &models.Notification{
		UserID:        event.UserID,
		Type:          event.Type,
		Message:       event.Message,
		LinkURL:       event.LinkURL,
		SourceEventID: &event.ID,
	}
	// Keyed on the event, so a retry after a failed dispatched-mark reuses
	// the notification row instead of writing a duplicate.
	if err := d.notifRepo.Create(ctx, notification); err != nil {
		return err
	}

	payload, err := json.Marshal(notificationPayload{
		Type:           event.Type,
		Message:        event.Message,
		LinkURL:        event.LinkURL,
		NotificationID: notification.ID,
	})
	if err != nil {
		return err
	}

	if d.publisher != nil {
		if err := d.publisher.PublishUser(ctx, event.UserID, string(payload)); err != nil {
			d.logger.Warn("live publish failed", "event_id", event.ID, "error", err)
		}
	}
	if d.hub != nil {
		d.hub.Broadcast(event.UserID, string(payload))
	}
	if d.pusher != nil {
		if err := d.pusher.Send(ctx, event.UserID, event.Message, event.LinkURL); err != nil {
			d.logger.Warn("device push failed", "event_id", event.ID, "error", err)
		}
	}

	return d.outboxRepo.MarkDispatched(ctx, event.ID)
}

// Run drains the outbox on a fixed interval until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration, batchSize int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.DispatchPending(ctx, batchSize); err != nil {
				d.logger.Error("outbox drain failed", "error", err)
			}
		}
	}
}
