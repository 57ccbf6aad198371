package models

import "time"

// ExchangeType selects how a proposal is settled.
type ExchangeType string

const (
	// ExchangeTypeSkill settles by skill-for-skill barter.
	ExchangeTypeSkill ExchangeType = "skill"
	// ExchangeTypeCredits settles by a credit payment at completion.
	ExchangeTypeCredits ExchangeType = "credits"
)

// ProposalStatus represents the lifecycle state of an exchange proposal.
// Transitions only move forward: pending -> accepted|rejected,
// accepted -> completed. Rejected and completed are terminal.
type ProposalStatus string

const (
	// ProposalStatusPending indicates the receiver has not responded yet.
	ProposalStatusPending ProposalStatus = "pending"
	// ProposalStatusAccepted indicates the receiver accepted; the exchange is underway.
	ProposalStatusAccepted ProposalStatus = "accepted"
	// ProposalStatusRejected indicates the receiver declined. Terminal.
	ProposalStatusRejected ProposalStatus = "rejected"
	// ProposalStatusCompleted indicates both parties confirmed. Terminal.
	ProposalStatusCompleted ProposalStatus = "completed"
)

// Proposal is a two-party offer to exchange a skill for either another skill
// or a credit payment. Exactly one of OfferedSkillID / CreditCost is set,
// according to ExchangeType.
type Proposal struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	ProposerID       uint           `gorm:"not null;index" json:"proposer_id"`
	ReceiverID       uint           `gorm:"not null;index" json:"receiver_id"`
	RequestedSkillID uint           `gorm:"not null" json:"requested_skill_id"`
	OfferedSkillID   *uint          `json:"offered_skill_id,omitempty"`
	CreditCost       *int           `json:"credit_cost,omitempty"`
	ExchangeType     ExchangeType   `gorm:"type:varchar(20);not null" json:"exchange_type"`
	Status           ProposalStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	MeetingNote      string         `gorm:"type:text" json:"meeting_note"`
	ConversationID   *uint          `json:"conversation_id,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`

	// Relationships
	Proposer       User                   `gorm:"foreignKey:ProposerID" json:"proposer,omitempty"`
	Receiver       User                   `gorm:"foreignKey:ReceiverID" json:"receiver,omitempty"`
	RequestedSkill *Skill                 `gorm:"foreignKey:RequestedSkillID" json:"requested_skill,omitempty"`
	OfferedSkill   *Skill                 `gorm:"foreignKey:OfferedSkillID" json:"offered_skill,omitempty"`
	Confirmations  []ProposalConfirmation `gorm:"foreignKey:ProposalID" json:"confirmations,omitempty"`
}

// TableName specifies the table name for GORM.
func (Proposal) TableName() string {
	return "proposals"
}

// Involves reports whether the user is one of the two parties.
func (p *Proposal) Involves(userID uint) bool {
	return p.ProposerID == userID || p.ReceiverID == userID
}

// Counterpart returns the other party of the proposal.
func (p *Proposal) Counterpart(userID uint) uint {
	if p.ProposerID == userID {
		return p.ReceiverID
	}
	return p.ProposerID
}

// ProposalConfirmation records that one party signaled "this exchange is
// done". The composite primary key makes the write naturally idempotent:
// re-confirming inserts nothing.
type ProposalConfirmation struct {
	ProposalID uint      `gorm:"primaryKey;autoIncrement:false" json:"proposal_id"`
	UserID     uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (ProposalConfirmation) TableName() string {
	return "proposal_confirmations"
}

// ProposalArchive is a per-viewer soft-delete marker for completed proposals.
// The counterpart keeps seeing the proposal until they archive it too.
type ProposalArchive struct {
	ProposalID uint      `gorm:"primaryKey;autoIncrement:false" json:"proposal_id"`
	UserID     uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (ProposalArchive) TableName() string {
	return "proposal_archives"
}
