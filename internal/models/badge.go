package models

import "time"

// BadgeID identifies an achievement badge.
type BadgeID string

const (
	// BadgeSwapStarter is earned on the first completed swap.
	BadgeSwapStarter BadgeID = "swap_starter"
	// BadgeSilverSwapper is earned at 5 completed swaps.
	BadgeSilverSwapper BadgeID = "silver_swapper"
	// BadgeGoldSwapper is earned at 10 completed swaps.
	BadgeGoldSwapper BadgeID = "gold_swapper"
	// BadgeExpertSwapper is earned at 25 completed swaps.
	BadgeExpertSwapper BadgeID = "expert_swapper"
	// BadgeSkillSharer is earned on the first offered skill.
	BadgeSkillSharer BadgeID = "skill_sharer"
	// BadgeExpertSharer is earned at 5 offered skills.
	BadgeExpertSharer BadgeID = "expert_sharer"
	// BadgeNewMember marks accounts younger than 48 hours. It is the only
	// time-bound badge: stored like any other grant but filtered out of
	// reads once the account is at least a day old.
	BadgeNewMember BadgeID = "new_member"
)

var badgeNames = map[BadgeID]string{
	BadgeSwapStarter:   "Swap Starter",
	BadgeSilverSwapper: "Silver Swapper",
	BadgeGoldSwapper:   "Gold Swapper",
	BadgeExpertSwapper: "Expert Swapper",
	BadgeSkillSharer:   "Skill Sharer",
	BadgeExpertSharer:  "Expert Sharer",
	BadgeNewMember:     "New Member",
}

// BadgeName returns the display name for a badge.
func BadgeName(id BadgeID) string {
	if name, ok := badgeNames[id]; ok {
		return name
	}
	return string(id)
}

// UserBadge is a persisted badge grant. Grants are append-only; permanent
// badges are never revoked.
type UserBadge struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	BadgeID   BadgeID   `gorm:"primaryKey;type:varchar(40)" json:"badge_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (UserBadge) TableName() string {
	return "user_badges"
}
