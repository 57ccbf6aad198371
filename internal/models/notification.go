package models

import "time"

// Notification is the durable channel of the dispatcher: a record the user
// can retrieve later regardless of connectivity. Writing this row is the
// only delivery step that is required to succeed.
type Notification struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	UserID  uint   `gorm:"not null;index" json:"user_id"`
	Type    string `gorm:"size:60;not null" json:"type"`
	Message string `gorm:"type:text;not null" json:"message"`
	LinkURL string `gorm:"size:255" json:"link_url,omitempty"`
	// SourceEventID ties the row to the outbox event that produced it, so a
	// redelivered event reuses this row instead of writing a second one.
	SourceEventID *string    `gorm:"size:36;uniqueIndex" json:"-"`
	ReadAt        *time.Time `json:"read_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (Notification) TableName() string {
	return "notifications"
}
