// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a member of the skill exchange.
//
// CreditBalance is only ever mutated by the ledger service; SwapsCompleted is
// only ever incremented inside the exactly-once proposal completion
// transition.
type User struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Username       string         `gorm:"unique;not null" json:"username"`
	Email          string         `gorm:"unique;not null" json:"email"`
	Password       string         `gorm:"not null" json:"-"`
	Bio            string         `json:"bio"`
	Avatar         string         `json:"avatar"`
	CreditBalance  int            `gorm:"not null;default:0" json:"credit_balance"`
	SwapsCompleted int            `gorm:"not null;default:0" json:"swaps_completed"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`

	Skills []Skill     `gorm:"foreignKey:UserID" json:"skills,omitempty"`
	Badges []UserBadge `gorm:"foreignKey:UserID" json:"badges,omitempty"`
}

// TableName specifies the table name for GORM.
func (User) TableName() string {
	return "users"
}

// AccountAgeHours reports how long ago the account was created, in whole
// hours, relative to now.
func (u *User) AccountAgeHours(now time.Time) int {
	return int(now.Sub(u.CreatedAt).Hours())
}
