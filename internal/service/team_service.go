package service

import (
	"context"
	"fmt"

	"skillbarter/internal/models"
	"skillbarter/internal/observability"
	"skillbarter/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TeamService owns group engagements: open -> pending_completion ->
// completed, with closure cancellable back to open. Seats are paid on join
// and refunded in full (at the recorded paid cost) whenever a membership
// ends before completion, so credits are conserved across every path.
type TeamService struct {
	db       *gorm.DB
	teamRepo repository.TeamRepository
	convRepo repository.ConversationRepository
}

func NewTeamService(db *gorm.DB, teamRepo repository.TeamRepository, convRepo repository.ConversationRepository) *TeamService {
	return &TeamService{db: db, teamRepo: teamRepo, convRepo: convRepo}
}

// CreateTeamInput carries the instructor's team definition.
type CreateTeamInput struct {
	SkillID     uint   `json:"skill_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	MaxMembers  int    `json:"max_members"`
}

// Create opens a team around one of the instructor's offered skills and
// starts its group conversation with the instructor enrolled.
func (s *TeamService) Create(ctx context.Context, instructorID uint, input CreateTeamInput) (*models.Team, error) {
	if input.Title == "" {
		return nil, models.NewValidationError("title is required")
	}
	if input.MaxMembers < 1 {
		return nil, models.NewValidationError("max_members must be at least 1")
	}

	var skill models.Skill
	if err := s.db.WithContext(ctx).First(&skill, input.SkillID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, models.NewNotFoundError("Skill", input.SkillID)
		}
		return nil, models.NewInternalError(err)
	}
	if skill.UserID != instructorID {
		return nil, models.NewForbiddenError("you can only teach your own skill")
	}
	if skill.Kind != models.SkillKindOffer {
		return nil, models.NewValidationError("teams can only be built around an offered skill")
	}

	team := &models.Team{
		InstructorID: instructorID,
		SkillID:      skill.ID,
		Title:        input.Title,
		Description:  input.Description,
		MaxMembers:   input.MaxMembers,
		Status:       models.TeamStatusOpen,
	}
	if err := s.teamRepo.Create(ctx, team); err != nil {
		return nil, err
	}

	conv, err := s.convRepo.CreateForTeam(ctx, team.ID, []uint{instructorID})
	if err != nil {
		return nil, err
	}
	team.ConversationID = &conv.ID
	if err := s.db.WithContext(ctx).Model(team).
		Update("conversation_id", conv.ID).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	observability.TeamTransitions.WithLabelValues(string(models.TeamStatusOpen)).Inc()
	return s.teamRepo.GetByID(ctx, team.ID)
}

// Get returns a team with its members.
func (s *TeamService) Get(ctx context.Context, teamID uint) (*models.Team, error) {
	return s.teamRepo.GetByID(ctx, teamID)
}

// List returns teams for browsing.
func (s *TeamService) List(ctx context.Context, limit, offset int) ([]models.Team, error) {
	return s.teamRepo.List(ctx, limit, offset)
}

// ListForUser returns teams the user belongs to or teaches.
func (s *TeamService) ListForUser(ctx context.Context, userID uint) ([]models.Team, error) {
	return s.teamRepo.ListForUser(ctx, userID)
}

// Join buys a seat on an open team. The capacity check, the debit, and the
// membership row all commit together: a full team or an uncoverable seat
// price leaves both the roster and the balance untouched.
func (s *TeamService) Join(ctx context.Context, userID, teamID uint) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team.InstructorID == userID {
		return nil, models.NewValidationError("the instructor cannot join their own team")
	}
	if team.Status != models.TeamStatusOpen {
		return nil, models.NewInvalidTransitionError(
			fmt.Sprintf("team is %s, only open teams can be joined", team.Status))
	}

	existing, err := s.teamRepo.GetMembership(ctx, teamID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewValidationError("you are already a member of this team")
	}

	seatCost := 0
	if team.Skill != nil {
		seatCost = team.Skill.ExchangeCost
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock the team row before counting, so concurrent joins serialize
		// here and cannot both pass the capacity check below.
		if err := lockTeamOpen(tx, teamID); err != nil {
			return err
		}

		var memberCount int64
		if err := tx.Model(&models.TeamMembership{}).
			Where("team_id = ?", teamID).
			Count(&memberCount).Error; err != nil {
			return models.NewInternalError(err)
		}
		if int(memberCount) >= team.MaxMembers {
			return models.NewFullError("team is full")
		}

		if seatCost > 0 {
			if err := applyDebit(tx, userID, seatCost, models.LedgerReasonTeamSeat, teamRef(teamID)); err != nil {
				return err
			}
		}

		membership := models.TeamMembership{TeamID: teamID, UserID: userID, PaidCost: seatCost}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&membership).Error; err != nil {
			return models.NewInternalError(err)
		}

		if team.ConversationID != nil {
			if err := repository.AddConversationParticipant(tx, *team.ConversationID, userID); err != nil {
				return err
			}
		}

		event := models.NewOutboxEvent(team.InstructorID, models.EventTeamMemberJoined,
			"A new member joined your team", teamLink(teamID))
		return repository.AppendEvent(tx, event)
	})
	if err != nil {
		return nil, err
	}

	if seatCost > 0 {
		observability.CreditsMoved.
			WithLabelValues(string(models.LedgerReasonTeamSeat)).
			Add(float64(seatCost))
	}
	return s.teamRepo.GetByID(ctx, teamID)
}

// Leave gives up the caller's seat and refunds what the seat cost. Leaving
// also discards any completion vote the member had cast, so a later
// majority is counted against the people actually still on the team.
func (s *TeamService) Leave(ctx context.Context, userID, teamID uint) error {
	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		return err
	}
	if team.Status == models.TeamStatusCompleted {
		return models.NewInvalidTransitionError("completed teams cannot be left")
	}
	return s.endMembership(ctx, team, userID, models.EventTeamMemberLeft,
		"A member left your team", team.InstructorID)
}

// RemoveMember lets the instructor expel a member, with the same refund
// semantics as a voluntary leave.
func (s *TeamService) RemoveMember(ctx context.Context, instructorID, teamID, memberID uint) error {
	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		return err
	}
	if team.InstructorID != instructorID {
		return models.NewForbiddenError("only the instructor can remove members")
	}
	if team.Status == models.TeamStatusCompleted {
		return models.NewInvalidTransitionError("completed teams cannot be changed")
	}
	return s.endMembership(ctx, team, memberID, models.EventTeamMemberRemoved,
		"You were removed from a team", memberID)
}

// endMembership deletes one membership and refunds its recorded cost. The
// refund is gated on the membership row actually being deleted here, so a
// doubled leave request can never pay twice.
func (s *TeamService) endMembership(ctx context.Context, team *models.Team, memberID uint, eventType, message string, notifyUserID uint) error {
	membership, err := s.teamRepo.GetMembership(ctx, team.ID, memberID)
	if err != nil {
		return err
	}
	if membership == nil {
		return models.NewNotFoundError("Membership", memberID)
	}

	refund := 0
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The caller's status check ran on a snapshot; re-validate under the
		// row lock so a concurrently completed team never pays a refund.
		if err := lockTeamNotCompleted(tx, team.ID); err != nil {
			return err
		}

		res := tx.Where("team_id = ? AND user_id = ?", team.ID, memberID).
			Delete(&models.TeamMembership{})
		if res.Error != nil {
			return models.NewInternalError(res.Error)
		}
		if res.RowsAffected == 0 {
			// Concurrently ended; nothing left to refund.
			return nil
		}

		if err := tx.Where("team_id = ? AND user_id = ?", team.ID, memberID).
			Delete(&models.TeamCompletionConfirmation{}).Error; err != nil {
			return models.NewInternalError(err)
		}

		if membership.PaidCost > 0 {
			if err := applyCredit(tx, memberID, membership.PaidCost, models.LedgerReasonTeamRefund, teamRef(team.ID)); err != nil {
				return err
			}
			refund = membership.PaidCost
		}

		if team.ConversationID != nil {
			if err := repository.RemoveConversationParticipant(tx, *team.ConversationID, memberID); err != nil {
				return err
			}
		}

		event := models.NewOutboxEvent(notifyUserID, eventType, message, teamLink(team.ID))
		return repository.AppendEvent(tx, event)
	})
	if err != nil {
		return err
	}

	if refund > 0 {
		observability.CreditsMoved.
			WithLabelValues(string(models.LedgerReasonTeamRefund)).
			Add(float64(refund))
	}
	return nil
}

// InitiateClosure moves an open team into pending_completion and asks the
// members to confirm. Any votes left over from an earlier, cancelled closure
// round are discarded first.
func (s *TeamService) InitiateClosure(ctx context.Context, instructorID, teamID uint) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team.InstructorID != instructorID {
		return nil, models.NewForbiddenError("only the instructor can initiate closure")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Team{}).
			Where("id = ? AND status = ?", teamID, models.TeamStatusOpen).
			Update("status", models.TeamStatusPendingCompletion)
		if res.Error != nil {
			return models.NewInternalError(res.Error)
		}
		if res.RowsAffected == 0 {
			return models.NewInvalidTransitionError(
				fmt.Sprintf("team is %s, closure can only start from open", team.Status))
		}

		if err := tx.Where("team_id = ?", teamID).
			Delete(&models.TeamCompletionConfirmation{}).Error; err != nil {
			return models.NewInternalError(err)
		}

		for _, m := range team.Members {
			event := models.NewOutboxEvent(m.UserID, models.EventTeamClosureOpened,
				"Your instructor asked to close the team, please confirm completion", teamLink(teamID))
			if err := repository.AppendEvent(tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.TeamTransitions.WithLabelValues(string(models.TeamStatusPendingCompletion)).Inc()
	return s.teamRepo.GetByID(ctx, teamID)
}

// CancelClosure reverts pending_completion back to open and discards the
// votes cast so far.
func (s *TeamService) CancelClosure(ctx context.Context, instructorID, teamID uint) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team.InstructorID != instructorID {
		return nil, models.NewForbiddenError("only the instructor can cancel closure")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Team{}).
			Where("id = ? AND status = ?", teamID, models.TeamStatusPendingCompletion).
			Update("status", models.TeamStatusOpen)
		if res.Error != nil {
			return models.NewInternalError(res.Error)
		}
		if res.RowsAffected == 0 {
			return models.NewInvalidTransitionError("closure is not in progress")
		}

		if err := tx.Where("team_id = ?", teamID).
			Delete(&models.TeamCompletionConfirmation{}).Error; err != nil {
			return models.NewInternalError(err)
		}

		for _, m := range team.Members {
			event := models.NewOutboxEvent(m.UserID, models.EventTeamClosureCancel,
				"Team closure was cancelled, the team is open again", teamLink(teamID))
			if err := repository.AppendEvent(tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.TeamTransitions.WithLabelValues(string(models.TeamStatusOpen)).Inc()
	return s.teamRepo.GetByID(ctx, teamID)
}

// ConfirmCompletion records one member's vote. When a majority of the
// current members has voted, the team completes; the status change is a
// compare-and-set so racing final votes complete the team at most once.
// Completion itself moves no credits: seats stay paid, and the refund
// paths no longer apply.
func (s *TeamService) ConfirmCompletion(ctx context.Context, userID, teamID uint) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		return nil, err
	}

	membership, err := s.teamRepo.GetMembership(ctx, teamID, userID)
	if err != nil {
		return nil, err
	}
	if membership == nil {
		return nil, models.NewForbiddenError("only team members can confirm completion")
	}

	switch team.Status {
	case models.TeamStatusCompleted:
		// Voting on a completed team is a no-op.
		return team, nil
	case models.TeamStatusPendingCompletion:
		// proceed
	default:
		return nil, models.NewInvalidTransitionError("the instructor has not initiated closure")
	}

	completed := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		vote := models.TeamCompletionConfirmation{TeamID: teamID, UserID: userID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&vote).Error; err != nil {
			return models.NewInternalError(err)
		}

		var votes int64
		if err := tx.Model(&models.TeamCompletionConfirmation{}).
			Where("team_id = ?", teamID).
			Count(&votes).Error; err != nil {
			return models.NewInternalError(err)
		}
		var memberCount int64
		if err := tx.Model(&models.TeamMembership{}).
			Where("team_id = ?", teamID).
			Count(&memberCount).Error; err != nil {
			return models.NewInternalError(err)
		}
		if int(votes) < models.MajorityThreshold(int(memberCount)) {
			return nil
		}

		res := tx.Model(&models.Team{}).
			Where("id = ? AND status = ?", teamID, models.TeamStatusPendingCompletion).
			Update("status", models.TeamStatusCompleted)
		if res.Error != nil {
			return models.NewInternalError(res.Error)
		}
		if res.RowsAffected == 0 {
			// A concurrent vote already completed it.
			return nil
		}
		completed = true

		recipients := []uint{team.InstructorID}
		var members []models.TeamMembership
		if err := tx.Where("team_id = ?", teamID).Find(&members).Error; err != nil {
			return models.NewInternalError(err)
		}
		for _, m := range members {
			recipients = append(recipients, m.UserID)
		}
		for _, uid := range recipients {
			event := models.NewOutboxEvent(uid, models.EventTeamCompleted,
				"The team was completed", teamLink(teamID))
			if err := repository.AppendEvent(tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if completed {
		observability.TeamTransitions.WithLabelValues(string(models.TeamStatusCompleted)).Inc()
	}
	return s.teamRepo.GetByID(ctx, teamID)
}

// Delete dissolves a team that never completed, refunding every member's
// recorded seat cost in the same transaction that removes the roster.
func (s *TeamService) Delete(ctx context.Context, instructorID, teamID uint) error {
	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		return err
	}
	if team.InstructorID != instructorID {
		return models.NewForbiddenError("only the instructor can delete the team")
	}
	if team.Status == models.TeamStatusCompleted {
		return models.NewInvalidTransitionError("completed teams cannot be deleted")
	}

	refunded := 0
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Re-validate under the row lock: a closure vote that completes the
		// team concurrently blocks here, and once it commits the whole
		// delete aborts instead of refunding seats on a completed team.
		if err := lockTeamNotCompleted(tx, teamID); err != nil {
			return err
		}

		var members []models.TeamMembership
		if err := tx.Where("team_id = ?", teamID).Find(&members).Error; err != nil {
			return models.NewInternalError(err)
		}
		for _, m := range members {
			res := tx.Where("team_id = ? AND user_id = ?", teamID, m.UserID).
				Delete(&models.TeamMembership{})
			if res.Error != nil {
				return models.NewInternalError(res.Error)
			}
			if res.RowsAffected == 0 {
				continue
			}
			if m.PaidCost > 0 {
				if err := applyCredit(tx, m.UserID, m.PaidCost, models.LedgerReasonTeamRefund, teamRef(teamID)); err != nil {
					return err
				}
				refunded += m.PaidCost
			}
			event := models.NewOutboxEvent(m.UserID, models.EventTeamDeleted,
				"A team you belonged to was deleted and your seat was refunded", "")
			if err := repository.AppendEvent(tx, event); err != nil {
				return err
			}
		}

		if err := tx.Where("team_id = ?", teamID).
			Delete(&models.TeamCompletionConfirmation{}).Error; err != nil {
			return models.NewInternalError(err)
		}
		if err := tx.Delete(&models.Team{}, teamID).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if refunded > 0 {
		observability.CreditsMoved.
			WithLabelValues(string(models.LedgerReasonTeamRefund)).
			Add(float64(refunded))
	}
	return nil
}

// lockTeamOpen re-checks inside tx that the team is still open while taking
// a write lock on its row. The self-assignment leaves the row's data alone;
// a racing status transition holds the same row lock, so once it commits the
// re-evaluated predicate matches zero rows and the caller aborts.
func lockTeamOpen(tx *gorm.DB, teamID uint) error {
	res := tx.Model(&models.Team{}).
		Where("id = ? AND status = ?", teamID, models.TeamStatusOpen).
		Update("status", gorm.Expr("status"))
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewInvalidTransitionError("the team is no longer open")
	}
	return nil
}

// lockTeamNotCompleted is the same guard for paths that end memberships:
// they run while the team is open or closing, never after completion.
func lockTeamNotCompleted(tx *gorm.DB, teamID uint) error {
	res := tx.Model(&models.Team{}).
		Where("id = ? AND status <> ?", teamID, models.TeamStatusCompleted).
		Update("status", gorm.Expr("status"))
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewInvalidTransitionError("the team has already completed")
	}
	return nil
}

func teamLink(id uint) string {
	return fmt.Sprintf("/teams/%d", id)
}

func teamRef(id uint) string {
	return fmt.Sprintf("team:%d", id)
}
