package service

import (
	"context"
	"fmt"
	"time"

	"skillbarter/internal/models"
	"skillbarter/internal/repository"

	"gorm.io/gorm"
)

// UserService covers profile reads and badge maintenance outside the
// settlement paths.
type UserService struct {
	db       *gorm.DB
	userRepo repository.UserRepository
}

func NewUserService(db *gorm.DB, userRepo repository.UserRepository) *UserService {
	return &UserService{db: db, userRepo: userRepo}
}

// RecomputeBadges re-derives the user's badge set from their current stats
// and persists any new grants, emitting a badge_earned event per grant.
// Called after stat-changing actions that are not part of a settlement
// transaction, like signup and skill creation.
func (s *UserService) RecomputeBadges(ctx context.Context, userID uint) ([]models.BadgeID, error) {
	var earned []models.BadgeID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		earned, err = recomputeBadgesTx(tx, userID, time.Now())
		if err != nil {
			return err
		}
		for _, badgeID := range earned {
			event := models.NewOutboxEvent(userID, models.EventBadgeEarned,
				fmt.Sprintf("You earned the %q badge", models.BadgeName(badgeID)), "/profile/badges")
			if err := repository.AppendEvent(tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return earned, nil
}

// VisibleBadgesFor returns the badges to display on the user's profile,
// with the time-bound new-member badge filtered by account age.
func (s *UserService) VisibleBadgesFor(ctx context.Context, user *models.User) ([]models.BadgeID, error) {
	grants, err := s.userRepo.ListBadges(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return VisibleBadges(grants, user.AccountAgeHours(time.Now())), nil
}
