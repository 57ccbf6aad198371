package repository

import (
	"context"
	"errors"

	"skillbarter/internal/models"

	"gorm.io/gorm"
)

// SkillRepository defines the read/flip surface the exchange core has over
// the skill registry. Listing ownership and pricing live elsewhere; this
// subsystem only reads them and flips Status.
type SkillRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Skill, error)
	ListByUser(ctx context.Context, userID uint) ([]models.Skill, error)
	Create(ctx context.Context, skill *models.Skill) error
	UpdateStatus(ctx context.Context, skillID uint, status models.SkillStatus) error
}

// skillRepository implements SkillRepository
type skillRepository struct {
	db *gorm.DB
}

// NewSkillRepository creates a new skill repository
func NewSkillRepository(db *gorm.DB) SkillRepository {
	return &skillRepository{db: db}
}

func (r *skillRepository) GetByID(ctx context.Context, id uint) (*models.Skill, error) {
	var skill models.Skill
	if err := r.db.WithContext(ctx).Preload("User").First(&skill, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Skill", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &skill, nil
}

func (r *skillRepository) ListByUser(ctx context.Context, userID uint) ([]models.Skill, error) {
	var skills []models.Skill
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&skills).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return skills, nil
}

func (r *skillRepository) Create(ctx context.Context, skill *models.Skill) error {
	if err := r.db.WithContext(ctx).Create(skill).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *skillRepository) UpdateStatus(ctx context.Context, skillID uint, status models.SkillStatus) error {
	if err := r.db.WithContext(ctx).
		Model(&models.Skill{}).
		Where("id = ?", skillID).
		Update("status", status).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
