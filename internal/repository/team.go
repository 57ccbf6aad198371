package repository

import (
	"context"
	"errors"

	"skillbarter/internal/models"

	"gorm.io/gorm"
)

// TeamRepository defines persistence operations for teams.
// Membership and closure writes that must be atomic run through the team
// service's transactions.
type TeamRepository interface {
	Create(ctx context.Context, team *models.Team) error
	GetByID(ctx context.Context, id uint) (*models.Team, error)
	List(ctx context.Context, limit, offset int) ([]models.Team, error)
	ListForUser(ctx context.Context, userID uint) ([]models.Team, error)
	GetMembership(ctx context.Context, teamID, userID uint) (*models.TeamMembership, error)
}

// teamRepository implements TeamRepository
type teamRepository struct {
	db *gorm.DB
}

// NewTeamRepository creates a new team repository
func NewTeamRepository(db *gorm.DB) TeamRepository {
	return &teamRepository{db: db}
}

func (r *teamRepository) Create(ctx context.Context, team *models.Team) error {
	if err := r.db.WithContext(ctx).Create(team).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *teamRepository) GetByID(ctx context.Context, id uint) (*models.Team, error) {
	var team models.Team
	if err := r.db.WithContext(ctx).
		Preload("Instructor").
		Preload("Skill").
		Preload("Members").
		Preload("Members.User").
		Preload("Confirmations").
		First(&team, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Team", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &team, nil
}

func (r *teamRepository) List(ctx context.Context, limit, offset int) ([]models.Team, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var teams []models.Team
	if err := r.db.WithContext(ctx).
		Preload("Instructor").
		Preload("Skill").
		Preload("Members").
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&teams).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return teams, nil
}

func (r *teamRepository) ListForUser(ctx context.Context, userID uint) ([]models.Team, error) {
	var teams []models.Team
	if err := r.db.WithContext(ctx).
		Joins("LEFT JOIN team_memberships tm ON tm.team_id = teams.id AND tm.user_id = ?", userID).
		Where("teams.instructor_id = ? OR tm.user_id IS NOT NULL", userID).
		Preload("Instructor").
		Preload("Skill").
		Preload("Members").
		Order("teams.created_at DESC").
		Find(&teams).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return teams, nil
}

func (r *teamRepository) GetMembership(ctx context.Context, teamID, userID uint) (*models.TeamMembership, error) {
	var membership models.TeamMembership
	if err := r.db.WithContext(ctx).
		Where("team_id = ? AND user_id = ?", teamID, userID).
		First(&membership).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // Not a member
		}
		return nil, models.NewInternalError(err)
	}
	return &membership, nil
}
