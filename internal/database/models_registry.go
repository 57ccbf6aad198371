package database

import "skillbarter/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Skill{},
		&models.Proposal{},
		&models.ProposalConfirmation{},
		&models.ProposalArchive{},
		&models.Team{},
		&models.TeamMembership{},
		&models.TeamCompletionConfirmation{},
		&models.UserBadge{},
		&models.LedgerEntry{},
		&models.Conversation{},
		&models.ConversationParticipant{},
		&models.Notification{},
		&models.OutboxEvent{},
		&models.UserDevice{},
	}
}
