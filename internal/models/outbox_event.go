package models

import (
	"time"

	"github.com/google/uuid"
)

// Event type constants prevent typos in event names.
const (
	EventProposalReceived  = "proposal_received"
	EventProposalAccepted  = "proposal_accepted"
	EventProposalRejected  = "proposal_rejected"
	EventProposalCompleted = "proposal_completed"
	EventBadgeEarned       = "badge_earned"
	EventTeamMemberJoined  = "team_member_joined"
	EventTeamMemberLeft    = "team_member_left"
	EventTeamMemberRemoved = "team_member_removed"
	EventTeamClosureOpened = "team_closure_opened"
	EventTeamClosureCancel = "team_closure_cancelled"
	EventTeamCompleted     = "team_completed"
	EventTeamDeleted       = "team_deleted"
)

// OutboxEvent is a notification recorded as data inside the same transaction
// as the domain state change that caused it. A separate dispatch step
// delivers pending events, so a crash between commit and delivery loses
// nothing and a re-run cannot double-fire the domain transition.
type OutboxEvent struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	UserID       uint       `gorm:"not null;index" json:"user_id"`
	Type         string     `gorm:"size:60;not null" json:"type"`
	Message      string     `gorm:"type:text;not null" json:"message"`
	LinkURL      string     `gorm:"size:255" json:"link_url,omitempty"`
	Payload      string     `gorm:"type:text" json:"payload,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	DispatchedAt *time.Time `gorm:"index" json:"dispatched_at,omitempty"`
}

// NewOutboxEvent builds an undispatched event with a fresh identifier.
func NewOutboxEvent(userID uint, eventType, message, linkURL string) *OutboxEvent {
	return &OutboxEvent{
		ID:      uuid.NewString(),
		UserID:  userID,
		Type:    eventType,
		Message: message,
		LinkURL: linkURL,
	}
}

// TableName specifies the table name for GORM.
func (OutboxEvent) TableName() string {
	return "outbox_events"
}
