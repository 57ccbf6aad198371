package models

import "time"

// SkillKind distinguishes skills a user offers from skills they are seeking.
type SkillKind string

const (
	// SkillKindOffer is a skill the owner can teach or perform.
	SkillKindOffer SkillKind = "offer"
	// SkillKindRequest is a skill the owner wants to learn.
	SkillKindRequest SkillKind = "request"
)

// SkillStatus tracks whether a skill is available for new exchanges.
type SkillStatus string

const (
	// SkillStatusActive indicates the skill is open to proposals.
	SkillStatusActive SkillStatus = "active"
	// SkillStatusInProgress indicates the skill is part of an accepted exchange.
	SkillStatusInProgress SkillStatus = "in_progress"
	// SkillStatusCompleted indicates the skill's exchange finished.
	SkillStatusCompleted SkillStatus = "completed"
)

// Skill is a listing owned by exactly one user. The exchange core only ever
// writes the Status field; everything else belongs to the listing surface.
type Skill struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	UserID       uint        `gorm:"not null;index" json:"user_id"`
	User         *User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Title        string      `gorm:"size:120;not null" json:"title"`
	Description  string      `gorm:"type:text" json:"description"`
	Kind         SkillKind   `gorm:"type:varchar(20);not null;default:'offer'" json:"kind"`
	ExchangeCost int         `gorm:"not null;default:0" json:"exchange_cost"`
	Status       SkillStatus `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Skill) TableName() string {
	return "skills"
}
