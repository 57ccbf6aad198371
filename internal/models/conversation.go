package models

import "time"

// Conversation is the chat thread attached to an exchange. The exchange core
// only creates conversations and enrolls participants; message delivery
// belongs to the messaging subsystem.
type Conversation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TeamID    *uint     `gorm:"index" json:"team_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Participants []ConversationParticipant `gorm:"foreignKey:ConversationID" json:"participants,omitempty"`
}

// TableName specifies the table name for GORM.
func (Conversation) TableName() string {
	return "conversations"
}

// ConversationParticipant maps users into a conversation.
type ConversationParticipant struct {
	ConversationID uint      `gorm:"primaryKey;autoIncrement:false" json:"conversation_id"`
	UserID         uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (ConversationParticipant) TableName() string {
	return "conversation_participants"
}
