package service

import (
	"context"
	"fmt"
	"time"

	"skillbarter/internal/models"
	"skillbarter/internal/observability"
	"skillbarter/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProposalService owns the exchange proposal lifecycle:
// pending -> accepted|rejected, accepted -> completed.
// Completion requires both parties to confirm, and the settlement side
// effects fire exactly once no matter how often or how concurrently the
// final confirmation arrives.
type ProposalService struct {
	db           *gorm.DB
	proposalRepo repository.ProposalRepository
	skillRepo    repository.SkillRepository
	convRepo     repository.ConversationRepository
}

func NewProposalService(db *gorm.DB, proposalRepo repository.ProposalRepository, skillRepo repository.SkillRepository, convRepo repository.ConversationRepository) *ProposalService {
	return &ProposalService{
		db:           db,
		proposalRepo: proposalRepo,
		skillRepo:    skillRepo,
		convRepo:     convRepo,
	}
}

// SubmitProposalInput carries the proposer's choices. The receiver is the
// owner of the requested skill; the credit cost is snapshotted from the
// skill at submission time so later price edits do not change the deal.
type SubmitProposalInput struct {
	RequestedSkillID uint                `json:"requested_skill_id"`
	ExchangeType     models.ExchangeType `json:"exchange_type"`
	OfferedSkillID   *uint               `json:"offered_skill_id,omitempty"`
}

// Submit creates a pending proposal against the requested skill's owner.
func (s *ProposalService) Submit(ctx context.Context, proposerID uint, input SubmitProposalInput) (*models.Proposal, error) {
	requested, err := s.skillRepo.GetByID(ctx, input.RequestedSkillID)
	if err != nil {
		return nil, err
	}
	if requested.UserID == proposerID {
		return nil, models.NewValidationError("cannot propose an exchange for your own skill")
	}
	if requested.Kind != models.SkillKindOffer {
		return nil, models.NewValidationError("requested skill is not an offering")
	}
	if requested.Status != models.SkillStatusActive {
		return nil, models.NewValidationError("requested skill is not available")
	}

	proposal := &models.Proposal{
		ProposerID:       proposerID,
		ReceiverID:       requested.UserID,
		RequestedSkillID: requested.ID,
		ExchangeType:     input.ExchangeType,
		Status:           models.ProposalStatusPending,
	}

	switch input.ExchangeType {
	case models.ExchangeTypeSkill:
		if input.OfferedSkillID == nil {
			return nil, models.NewValidationError("a skill exchange requires an offered skill")
		}
		offered, err := s.skillRepo.GetByID(ctx, *input.OfferedSkillID)
		if err != nil {
			return nil, err
		}
		if offered.UserID != proposerID {
			return nil, models.NewForbiddenError("offered skill does not belong to you")
		}
		if offered.Kind != models.SkillKindOffer {
			return nil, models.NewValidationError("offered skill is not an offering")
		}
		if offered.Status != models.SkillStatusActive {
			return nil, models.NewValidationError("offered skill is not available")
		}
		proposal.OfferedSkillID = &offered.ID
	case models.ExchangeTypeCredits:
		if requested.ExchangeCost <= 0 {
			return nil, models.NewValidationError("requested skill has no credit cost")
		}
		// Advisory check only: credits are not escrowed, the actual
		// settlement happens at completion.
		var balance int
		if err := s.db.WithContext(ctx).Model(&models.User{}).
			Select("credit_balance").
			Where("id = ?", proposerID).
			Scan(&balance).Error; err != nil {
			return nil, models.NewInternalError(err)
		}
		if balance < requested.ExchangeCost {
			return nil, models.NewInsufficientFundsError(
				fmt.Sprintf("balance cannot cover %d credits", requested.ExchangeCost))
		}
		cost := requested.ExchangeCost
		proposal.CreditCost = &cost
	default:
		return nil, models.NewValidationError("exchange_type must be 'skill' or 'credits'")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(proposal).Error; err != nil {
			return models.NewInternalError(err)
		}
		event := models.NewOutboxEvent(proposal.ReceiverID, models.EventProposalReceived,
			"You received a new exchange proposal", proposalLink(proposal.ID))
		return repository.AppendEvent(tx, event)
	})
	if err != nil {
		return nil, err
	}

	observability.ProposalTransitions.WithLabelValues(string(models.ProposalStatusPending)).Inc()
	return s.proposalRepo.GetByID(ctx, proposal.ID)
}

// Get returns a proposal, visible only to its two parties.
func (s *ProposalService) Get(ctx context.Context, userID, proposalID uint) (*models.Proposal, error) {
	proposal, err := s.proposalRepo.GetByID(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if !proposal.Involves(userID) {
		return nil, models.NewForbiddenError("you are not a party to this proposal")
	}
	return proposal, nil
}

// ListIncoming returns proposals addressed to the user.
func (s *ProposalService) ListIncoming(ctx context.Context, userID uint) ([]models.Proposal, error) {
	return s.proposalRepo.ListIncoming(ctx, userID)
}

// ListOutgoing returns proposals submitted by the user.
func (s *ProposalService) ListOutgoing(ctx context.Context, userID uint) ([]models.Proposal, error) {
	return s.proposalRepo.ListOutgoing(ctx, userID)
}

// Respond lets the receiver accept or reject a pending proposal. Accepting
// moves both skills in progress, opens (or reuses) a direct conversation
// between the parties, and records the optional meeting note.
func (s *ProposalService) Respond(ctx context.Context, userID, proposalID uint, accept bool, meetingNote string) (*models.Proposal, error) {
	proposal, err := s.proposalRepo.GetByID(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if userID != proposal.ReceiverID {
		return nil, models.NewForbiddenError("only the receiver can respond to a proposal")
	}
	if proposal.Status != models.ProposalStatusPending {
		return nil, models.NewInvalidTransitionError(
			fmt.Sprintf("proposal is %s, only pending proposals can be responded to", proposal.Status))
	}

	target := models.ProposalStatusRejected
	eventType := models.EventProposalRejected
	message := "Your exchange proposal was declined"
	if accept {
		target = models.ProposalStatusAccepted
		eventType = models.EventProposalAccepted
		message = "Your exchange proposal was accepted"
	}

	var conversationID *uint
	if accept {
		conv, err := s.convRepo.GetOrCreateBetween(ctx, proposal.ProposerID, proposal.ReceiverID)
		if err != nil {
			return nil, err
		}
		conversationID = &conv.ID
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"status": target}
		if accept {
			updates["meeting_note"] = meetingNote
			updates["conversation_id"] = conversationID
		}
		res := tx.Model(&models.Proposal{}).
			Where("id = ? AND status = ?", proposalID, models.ProposalStatusPending).
			Updates(updates)
		if res.Error != nil {
			return models.NewInternalError(res.Error)
		}
		if res.RowsAffected == 0 {
			return models.NewInvalidTransitionError("proposal was already responded to")
		}

		if accept {
			if err := markSkillsInProgress(tx, proposal); err != nil {
				return err
			}
		}

		event := models.NewOutboxEvent(proposal.ProposerID, eventType, message, proposalLink(proposalID))
		return repository.AppendEvent(tx, event)
	})
	if err != nil {
		return nil, err
	}

	observability.ProposalTransitions.WithLabelValues(string(target)).Inc()
	return s.proposalRepo.GetByID(ctx, proposalID)
}

// ConfirmCompletion records one party's confirmation that the exchange is
// done. When both parties have confirmed, the settlement runs: credits
// transfer (credit-type deals), skills complete, swap counters advance, and
// badges recompute. The status update is a compare-and-set on accepted, so
// two racing final confirmations settle at most once.
func (s *ProposalService) ConfirmCompletion(ctx context.Context, userID, proposalID uint) (*models.Proposal, error) {
	proposal, err := s.proposalRepo.GetByID(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if !proposal.Involves(userID) {
		return nil, models.NewForbiddenError("you are not a party to this proposal")
	}

	switch proposal.Status {
	case models.ProposalStatusCompleted:
		// Confirming an already-settled proposal is a no-op.
		return proposal, nil
	case models.ProposalStatusAccepted:
		// proceed
	default:
		return nil, models.NewInvalidTransitionError(
			fmt.Sprintf("proposal is %s, only accepted proposals can be confirmed", proposal.Status))
	}

	settled := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		confirmation := models.ProposalConfirmation{ProposalID: proposalID, UserID: userID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&confirmation).Error; err != nil {
			return models.NewInternalError(err)
		}

		var confirmed int64
		if err := tx.Model(&models.ProposalConfirmation{}).
			Where("proposal_id = ?", proposalID).
			Count(&confirmed).Error; err != nil {
			return models.NewInternalError(err)
		}
		if confirmed < 2 {
			return nil
		}

		res := tx.Model(&models.Proposal{}).
			Where("id = ? AND status = ?", proposalID, models.ProposalStatusAccepted).
			Update("status", models.ProposalStatusCompleted)
		if res.Error != nil {
			return models.NewInternalError(res.Error)
		}
		if res.RowsAffected == 0 {
			// A concurrent confirmation already settled it.
			return nil
		}
		settled = true

		return settleProposal(tx, proposal)
	})
	if err != nil {
		return nil, err
	}

	if settled {
		observability.ProposalTransitions.WithLabelValues(string(models.ProposalStatusCompleted)).Inc()
		if proposal.ExchangeType == models.ExchangeTypeCredits && proposal.CreditCost != nil {
			observability.CreditsMoved.
				WithLabelValues(string(models.LedgerReasonSwapSettlement)).
				Add(float64(*proposal.CreditCost))
		}
	}
	return s.proposalRepo.GetByID(ctx, proposalID)
}

// Withdraw hard-deletes a pending proposal. Either party may withdraw:
// the proposer to take the offer back, the receiver to clear it without a
// formal rejection.
func (s *ProposalService) Withdraw(ctx context.Context, userID, proposalID uint) error {
	proposal, err := s.proposalRepo.GetByID(ctx, proposalID)
	if err != nil {
		return err
	}
	if !proposal.Involves(userID) {
		return models.NewForbiddenError("you are not a party to this proposal")
	}
	if proposal.Status != models.ProposalStatusPending {
		return models.NewInvalidTransitionError("only pending proposals can be withdrawn")
	}
	// The status re-check lives in the DELETE itself: if the receiver
	// accepts between our read and now, zero rows match and nothing is lost.
	deleted, err := s.proposalRepo.DeletePending(ctx, proposalID)
	if err != nil {
		return err
	}
	if !deleted {
		return models.NewInvalidTransitionError("only pending proposals can be withdrawn")
	}
	return nil
}

// Archive hides a completed proposal from the caller's lists. The
// counterpart keeps seeing it until they archive it too; archiving twice
// is a no-op.
func (s *ProposalService) Archive(ctx context.Context, userID, proposalID uint) error {
	proposal, err := s.proposalRepo.GetByID(ctx, proposalID)
	if err != nil {
		return err
	}
	if !proposal.Involves(userID) {
		return models.NewForbiddenError("you are not a party to this proposal")
	}
	if proposal.Status != models.ProposalStatusCompleted {
		return models.NewInvalidTransitionError("only completed proposals can be archived")
	}

	archive := models.ProposalArchive{ProposalID: proposalID, UserID: userID}
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&archive).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// settleProposal applies the one-time completion side effects on a
// transaction where the status compare-and-set has already succeeded.
func settleProposal(tx *gorm.DB, proposal *models.Proposal) error {
	ref := proposalRef(proposal.ID)

	if proposal.ExchangeType == models.ExchangeTypeCredits {
		if proposal.CreditCost == nil {
			return models.NewInternalError(fmt.Errorf("credit proposal %d has no cost", proposal.ID))
		}
		if err := applyTransfer(tx, proposal.ProposerID, proposal.ReceiverID, *proposal.CreditCost, models.LedgerReasonSwapSettlement, ref); err != nil {
			return err
		}
	}

	if err := markSkillsCompleted(tx, proposal); err != nil {
		return err
	}

	now := time.Now()
	for _, partyID := range []uint{proposal.ProposerID, proposal.ReceiverID} {
		if err := tx.Model(&models.User{}).
			Where("id = ?", partyID).
			UpdateColumn("swaps_completed", gorm.Expr("swaps_completed + 1")).Error; err != nil {
			return models.NewInternalError(err)
		}

		earned, err := recomputeBadgesTx(tx, partyID, now)
		if err != nil {
			return err
		}
		for _, badgeID := range earned {
			event := models.NewOutboxEvent(partyID, models.EventBadgeEarned,
				fmt.Sprintf("You earned the %q badge", models.BadgeName(badgeID)), "/profile/badges")
			if err := repository.AppendEvent(tx, event); err != nil {
				return err
			}
		}

		event := models.NewOutboxEvent(partyID, models.EventProposalCompleted,
			"Your exchange was completed", proposalLink(proposal.ID))
		if err := repository.AppendEvent(tx, event); err != nil {
			return err
		}
	}
	return nil
}

func markSkillsInProgress(tx *gorm.DB, proposal *models.Proposal) error {
	return updateProposalSkills(tx, proposal, models.SkillStatusInProgress)
}

func markSkillsCompleted(tx *gorm.DB, proposal *models.Proposal) error {
	return updateProposalSkills(tx, proposal, models.SkillStatusCompleted)
}

func updateProposalSkills(tx *gorm.DB, proposal *models.Proposal, status models.SkillStatus) error {
	ids := []uint{proposal.RequestedSkillID}
	if proposal.OfferedSkillID != nil {
		ids = append(ids, *proposal.OfferedSkillID)
	}
	if err := tx.Model(&models.Skill{}).
		Where("id IN ?", ids).
		Update("status", status).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func proposalLink(id uint) string {
	return fmt.Sprintf("/proposals/%d", id)
}

func proposalRef(id uint) string {
	return fmt.Sprintf("proposal:%d", id)
}
