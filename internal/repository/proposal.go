package repository

import (
	"context"
	"errors"

	"skillbarter/internal/models"

	"gorm.io/gorm"
)

// ProposalRepository defines persistence operations for proposals.
// State transitions that must be atomic (respond, confirm) run through the
// proposal service's transactions; this interface covers plain reads and the
// simple writes.
type ProposalRepository interface {
	Create(ctx context.Context, proposal *models.Proposal) error
	GetByID(ctx context.Context, id uint) (*models.Proposal, error)
	ListIncoming(ctx context.Context, userID uint) ([]models.Proposal, error)
	ListOutgoing(ctx context.Context, userID uint) ([]models.Proposal, error)
	ListForUser(ctx context.Context, userID uint) ([]models.Proposal, error)
	DeletePending(ctx context.Context, id uint) (bool, error)
}

// proposalRepository implements ProposalRepository
type proposalRepository struct {
	db *gorm.DB
}

// NewProposalRepository creates a new proposal repository
func NewProposalRepository(db *gorm.DB) ProposalRepository {
	return &proposalRepository{db: db}
}

func (r *proposalRepository) Create(ctx context.Context, proposal *models.Proposal) error {
	if err := r.db.WithContext(ctx).Create(proposal).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *proposalRepository) GetByID(ctx context.Context, id uint) (*models.Proposal, error) {
	var proposal models.Proposal
	if err := r.db.WithContext(ctx).
		Preload("Proposer").
		Preload("Receiver").
		Preload("RequestedSkill").
		Preload("OfferedSkill").
		Preload("Confirmations").
		First(&proposal, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Proposal", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &proposal, nil
}

// notArchivedFor filters out completed proposals the viewer has archived.
func notArchivedFor(userID uint) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(
			"proposals.id NOT IN (?)",
			db.Session(&gorm.Session{NewDB: true}).
				Model(&models.ProposalArchive{}).
				Select("proposal_id").
				Where("user_id = ?", userID),
		)
	}
}

func (r *proposalRepository) ListIncoming(ctx context.Context, userID uint) ([]models.Proposal, error) {
	var proposals []models.Proposal
	if err := r.db.WithContext(ctx).
		Scopes(notArchivedFor(userID)).
		Where("receiver_id = ?", userID).
		Preload("Proposer").
		Preload("RequestedSkill").
		Preload("OfferedSkill").
		Order("created_at DESC").
		Find(&proposals).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return proposals, nil
}

func (r *proposalRepository) ListOutgoing(ctx context.Context, userID uint) ([]models.Proposal, error) {
	var proposals []models.Proposal
	if err := r.db.WithContext(ctx).
		Scopes(notArchivedFor(userID)).
		Where("proposer_id = ?", userID).
		Preload("Receiver").
		Preload("RequestedSkill").
		Preload("OfferedSkill").
		Order("created_at DESC").
		Find(&proposals).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return proposals, nil
}

func (r *proposalRepository) ListForUser(ctx context.Context, userID uint) ([]models.Proposal, error) {
	var proposals []models.Proposal
	if err := r.db.WithContext(ctx).
		Scopes(notArchivedFor(userID)).
		Where("proposer_id = ? OR receiver_id = ?", userID, userID).
		Preload("Proposer").
		Preload("Receiver").
		Preload("RequestedSkill").
		Preload("OfferedSkill").
		Order("created_at DESC").
		Find(&proposals).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return proposals, nil
}

// DeletePending removes the proposal only while it is still pending, so a
// concurrent acceptance cannot be deleted out from under the receiver. The
// returned bool reports whether a row was actually removed.
func (r *proposalRepository) DeletePending(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, models.ProposalStatusPending).
		Delete(&models.Proposal{})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}
