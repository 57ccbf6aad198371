// Package service implements the business logic of the exchange core.
package service

import (
	"time"

	"skillbarter/internal/models"
	"skillbarter/internal/repository"

	"gorm.io/gorm"
)

// StatsSnapshot is an explicit, immutable view of the user statistics badge
// computation runs over. Snapshotting rather than reading live rows keeps
// ComputeBadges pure and safe to re-run any number of times.
type StatsSnapshot struct {
	SkillsOffered   int
	SwapsCompleted  int
	AccountAgeHours int
}

// newMemberMaxAgeHours bounds the "new member" badge at grant time.
const newMemberMaxAgeHours = 48

// newMemberVisibleHours bounds how long the badge stays visible on reads.
const newMemberVisibleHours = 24

type badgeThreshold struct {
	count int
	badge models.BadgeID
}

// Thresholds are cumulative: every badge up to the current count is granted.
var swapThresholds = []badgeThreshold{
	{1, models.BadgeSwapStarter},
	{5, models.BadgeSilverSwapper},
	{10, models.BadgeGoldSwapper},
	{25, models.BadgeExpertSwapper},
}

var sharerThresholds = []badgeThreshold{
	{1, models.BadgeSkillSharer},
	{5, models.BadgeExpertSharer},
}

// ComputeBadges derives the full badge set a user has earned from a stats
// snapshot. Pure and deterministic: the same snapshot always yields the same
// set, and increasing a stat never removes a previously earned badge.
func ComputeBadges(snap StatsSnapshot) []models.BadgeID {
	var badges []models.BadgeID
	for _, t := range swapThresholds {
		if snap.SwapsCompleted >= t.count {
			badges = append(badges, t.badge)
		}
	}
	for _, t := range sharerThresholds {
		if snap.SkillsOffered >= t.count {
			badges = append(badges, t.badge)
		}
	}
	if snap.AccountAgeHours < newMemberMaxAgeHours {
		badges = append(badges, models.BadgeNewMember)
	}
	return badges
}

// NewlyEarned returns the badges in computed that are not in old.
func NewlyEarned(old, computed []models.BadgeID) []models.BadgeID {
	held := make(map[models.BadgeID]struct{}, len(old))
	for _, b := range old {
		held[b] = struct{}{}
	}
	var earned []models.BadgeID
	for _, b := range computed {
		if _, ok := held[b]; !ok {
			earned = append(earned, b)
		}
	}
	return earned
}

// VisibleBadges filters stored grants for display. The time-bound new-member
// badge is hidden (not deleted) once the account is old enough; permanent
// badges always show.
func VisibleBadges(grants []models.UserBadge, accountAgeHours int) []models.BadgeID {
	visible := make([]models.BadgeID, 0, len(grants))
	for _, g := range grants {
		if g.BadgeID == models.BadgeNewMember && accountAgeHours >= newMemberVisibleHours {
			continue
		}
		visible = append(visible, g.BadgeID)
	}
	return visible
}

// recomputeBadgesTx snapshots the user's stats on the given transaction,
// computes the badge set, persists any new grants, and returns the badges
// that were actually newly earned. Safe to call repeatedly: grants are
// idempotent inserts.
func recomputeBadgesTx(tx *gorm.DB, userID uint, now time.Time) ([]models.BadgeID, error) {
	var user models.User
	if err := tx.First(&user, userID).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	var skillsOffered int64
	if err := tx.Model(&models.Skill{}).
		Where("user_id = ? AND kind = ?", userID, models.SkillKindOffer).
		Count(&skillsOffered).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	snap := StatsSnapshot{
		SkillsOffered:   int(skillsOffered),
		SwapsCompleted:  user.SwapsCompleted,
		AccountAgeHours: user.AccountAgeHours(now),
	}

	return repository.GrantBadges(tx, userID, ComputeBadges(snap))
}
