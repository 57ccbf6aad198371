package repository

import (
	"context"

	"skillbarter/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConversationRepository is the surface this core has over the messaging
// subsystem: it opens conversations and enrolls participants, nothing more.
type ConversationRepository interface {
	GetOrCreateBetween(ctx context.Context, userA, userB uint) (*models.Conversation, error)
	CreateForTeam(ctx context.Context, teamID uint, participantIDs []uint) (*models.Conversation, error)
}

// conversationRepository implements ConversationRepository
type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) GetOrCreateBetween(ctx context.Context, userA, userB uint) (*models.Conversation, error) {
	var conv models.Conversation

	// A direct conversation is one with no team and exactly these two
	// participants.
	err := r.db.WithContext(ctx).
		Joins("JOIN conversation_participants pa ON pa.conversation_id = conversations.id AND pa.user_id = ?", userA).
		Joins("JOIN conversation_participants pb ON pb.conversation_id = conversations.id AND pb.user_id = ?", userB).
		Where("conversations.team_id IS NULL").
		First(&conv).Error
	if err == nil {
		return &conv, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, models.NewInternalError(err)
	}

	txErr := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conv = models.Conversation{}
		if err := tx.Create(&conv).Error; err != nil {
			return err
		}
		for _, uid := range []uint{userA, userB} {
			participant := models.ConversationParticipant{ConversationID: conv.ID, UserID: uid}
			if err := tx.Create(&participant).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		return nil, models.NewInternalError(txErr)
	}
	return &conv, nil
}

// AddConversationParticipant enrolls a user on an open transaction.
// Re-enrolling is a no-op.
func AddConversationParticipant(tx *gorm.DB, conversationID, userID uint) error {
	participant := models.ConversationParticipant{ConversationID: conversationID, UserID: userID}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&participant).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// RemoveConversationParticipant drops a user from a conversation on an open
// transaction.
func RemoveConversationParticipant(tx *gorm.DB, conversationID, userID uint) error {
	if err := tx.
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Delete(&models.ConversationParticipant{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *conversationRepository) CreateForTeam(ctx context.Context, teamID uint, participantIDs []uint) (*models.Conversation, error) {
	conv := models.Conversation{TeamID: &teamID}
	txErr := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&conv).Error; err != nil {
			return err
		}
		for _, uid := range participantIDs {
			participant := models.ConversationParticipant{ConversationID: conv.ID, UserID: uid}
			if err := tx.Create(&participant).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		return nil, models.NewInternalError(txErr)
	}
	return &conv, nil
}
