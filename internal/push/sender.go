package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"skillbarter/internal/models"

	"gorm.io/gorm"
)

// maxRetries bounds how often a buffered delivery is re-attempted before it
// is dropped.
const maxRetries = 5

// Gateway delivers one payload to one device endpoint.
type Gateway interface {
	Deliver(ctx context.Context, endpoint string, payload []byte) error
}

// HTTPGateway posts payloads to the endpoint URL the device registered.
type HTTPGateway struct {
	client *http.Client
}

func NewHTTPGateway() *HTTPGateway {
	return &HTTPGateway{client: &http.Client{Timeout: 10 * time.Second}}
}

func (g *HTTPGateway) Deliver(ctx context.Context, endpoint string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("push endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// Sender fans a notification out to every device the user registered.
// Failed deliveries land in the persistent buffer and are retried later, so
// a gateway outage delays pushes instead of losing them.
type Sender struct {
	db      *gorm.DB
	gateway Gateway
	buffer  *Buffer
	logger  *slog.Logger
}

func NewSender(db *gorm.DB, gateway Gateway, buffer *Buffer, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{db: db, gateway: gateway, buffer: buffer, logger: logger}
}

// Send pushes the message to each of the user's devices. A user with no
// registered devices is a silent no-op.
func (s *Sender) Send(ctx context.Context, userID uint, message, linkURL string) error {
	var devices []models.UserDevice
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&devices).Error; err != nil {
		return err
	}

	for _, device := range devices {
		d := Delivery{UserID: userID, Endpoint: device.Endpoint, Message: message, LinkURL: linkURL}
		if err := s.attempt(ctx, d); err != nil {
			s.logger.Warn("push delivery failed, buffering",
				"user_id", userID, "endpoint", device.Endpoint, "error", err)
			if bufErr := s.buffer.Enqueue(d); bufErr != nil {
				s.logger.Error("push buffer enqueue failed", "error", bufErr)
			}
		}
	}
	return nil
}

// RetryPending re-attempts buffered deliveries, oldest first. Deliveries
// that exhausted their retries are dropped.
func (s *Sender) RetryPending(ctx context.Context, limit int) error {
	batch, err := s.buffer.GetBatch(limit)
	if err != nil {
		return err
	}

	for _, d := range batch {
		if d.Retries >= maxRetries {
			s.logger.Warn("dropping push delivery after max retries",
				"user_id", d.UserID, "endpoint", d.Endpoint)
			_ = s.buffer.Remove(d)
			continue
		}
		if err := s.attempt(ctx, d); err != nil {
			_ = s.buffer.Remove(d)
			if bufErr := s.buffer.Requeue(d); bufErr != nil {
				s.logger.Error("push buffer requeue failed", "error", bufErr)
			}
			continue
		}
		_ = s.buffer.Remove(d)
	}
	return nil
}

func (s *Sender) attempt(ctx context.Context, d Delivery) error {
	payload, err := json.Marshal(map[string]string{
		"message":  d.Message,
		"link_url": d.LinkURL,
	})
	if err != nil {
		return err
	}
	return s.gateway.Deliver(ctx, d.Endpoint, payload)
}
