package server

import (
	"skillbarter/internal/models"
	"skillbarter/internal/service"

	"github.com/gofiber/fiber/v2"
)

// SubmitProposal handles POST /api/proposals
func (s *Server) SubmitProposal(c *fiber.Ctx) error {
	userID := currentUserID(c)

	var input service.SubmitProposalInput
	if err := c.BodyParser(&input); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	proposal, err := s.proposalService.Submit(c.Context(), userID, input)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(proposal)
}

// GetProposal handles GET /api/proposals/:id
func (s *Server) GetProposal(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	proposal, err := s.proposalService.Get(c.Context(), currentUserID(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(proposal)
}

// GetIncomingProposals handles GET /api/proposals/incoming
func (s *Server) GetIncomingProposals(c *fiber.Ctx) error {
	proposals, err := s.proposalService.ListIncoming(c.Context(), currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"proposals": proposals})
}

// GetOutgoingProposals handles GET /api/proposals/outgoing
func (s *Server) GetOutgoingProposals(c *fiber.Ctx) error {
	proposals, err := s.proposalService.ListOutgoing(c.Context(), currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"proposals": proposals})
}

// RespondToProposal handles POST /api/proposals/:id/respond
func (s *Server) RespondToProposal(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Accept      *bool  `json:"accept"`
		MeetingNote string `json:"meeting_note"`
	}
	if err := c.BodyParser(&req); err != nil || req.Accept == nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("An accept decision is required"))
	}

	proposal, err := s.proposalService.Respond(c.Context(), currentUserID(c), id, *req.Accept, req.MeetingNote)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(proposal)
}

// ConfirmProposalCompletion handles POST /api/proposals/:id/confirm
func (s *Server) ConfirmProposalCompletion(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	proposal, err := s.proposalService.ConfirmCompletion(c.Context(), currentUserID(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(proposal)
}

// WithdrawProposal handles DELETE /api/proposals/:id
func (s *Server) WithdrawProposal(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.proposalService.Withdraw(c.Context(), currentUserID(c), id); err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ArchiveProposal handles POST /api/proposals/:id/archive
func (s *Server) ArchiveProposal(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.proposalService.Archive(c.Context(), currentUserID(c), id); err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
