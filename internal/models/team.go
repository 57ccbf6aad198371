package models

import "time"

// TeamStatus represents the lifecycle state of a group engagement.
// open -> pending_completion -> completed; pending_completion may revert to
// open when the instructor cancels closure. Completed is terminal.
type TeamStatus string

const (
	// TeamStatusOpen indicates the team accepts joins and leaves.
	TeamStatusOpen TeamStatus = "open"
	// TeamStatusPendingCompletion indicates the instructor asked members to confirm.
	TeamStatusPendingCompletion TeamStatus = "pending_completion"
	// TeamStatusCompleted indicates a member majority confirmed. Terminal.
	TeamStatusCompleted TeamStatus = "completed"
)

// Team is a group engagement around one skill, led by exactly one
// instructor. The instructor is never a member; seats are paid on join.
type Team struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	InstructorID   uint       `gorm:"not null;index" json:"instructor_id"`
	SkillID        uint       `gorm:"not null" json:"skill_id"`
	Title          string     `gorm:"size:120;not null" json:"title"`
	Description    string     `gorm:"type:text" json:"description"`
	MaxMembers     int        `gorm:"not null" json:"max_members"`
	Status         TeamStatus `gorm:"type:varchar(20);not null;default:'open';index" json:"status"`
	ConversationID *uint      `json:"conversation_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	// Relationships
	Instructor    User                         `gorm:"foreignKey:InstructorID" json:"instructor,omitempty"`
	Skill         *Skill                       `gorm:"foreignKey:SkillID" json:"skill,omitempty"`
	Members       []TeamMembership             `gorm:"foreignKey:TeamID" json:"members,omitempty"`
	Confirmations []TeamCompletionConfirmation `gorm:"foreignKey:TeamID" json:"confirmations,omitempty"`
}

// TableName specifies the table name for GORM.
func (Team) TableName() string {
	return "teams"
}

// MajorityThreshold returns the number of member confirmations required to
// complete a team of the given size: ceil(memberCount / 2).
func MajorityThreshold(memberCount int) int {
	return (memberCount + 1) / 2
}

// TeamMembership maps users to teams and records what the seat cost when it
// was bought. Refunds always pay back PaidCost, never the skill's current
// price, so a later price change cannot break refund conservation.
type TeamMembership struct {
	TeamID    uint      `gorm:"primaryKey;autoIncrement:false" json:"team_id"`
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	PaidCost  int       `gorm:"not null" json:"paid_cost"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (TeamMembership) TableName() string {
	return "team_memberships"
}

// TeamCompletionConfirmation records one member's vote that the engagement
// is finished. Only meaningful while the team is pending_completion; rows
// are cleared whenever the team reverts to open.
type TeamCompletionConfirmation struct {
	TeamID    uint      `gorm:"primaryKey;autoIncrement:false" json:"team_id"`
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (TeamCompletionConfirmation) TableName() string {
	return "team_completion_confirmations"
}
