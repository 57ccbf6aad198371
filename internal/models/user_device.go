package models

import "time"

// UserDevice is a push endpoint a user registered from one of their devices.
// A user may have any number of devices; deliveries fan out to all of them.
type UserDevice struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Endpoint  string    `gorm:"size:512;not null;uniqueIndex" json:"endpoint"`
	Label     string    `gorm:"size:80" json:"label,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (UserDevice) TableName() string {
	return "user_devices"
}
