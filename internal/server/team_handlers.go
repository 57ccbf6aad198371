package server

import (
	"skillbarter/internal/models"
	"skillbarter/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateTeam handles POST /api/teams
func (s *Server) CreateTeam(c *fiber.Ctx) error {
	var input service.CreateTeamInput
	if err := c.BodyParser(&input); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	team, err := s.teamService.Create(c.Context(), currentUserID(c), input)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(team)
}

// GetTeams handles GET /api/teams
func (s *Server) GetTeams(c *fiber.Ctx) error {
	p := parsePagination(c, 20)

	teams, err := s.teamService.List(c.Context(), p.Limit, p.Offset)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"teams": teams})
}

// GetMyTeams handles GET /api/teams/me
func (s *Server) GetMyTeams(c *fiber.Ctx) error {
	teams, err := s.teamService.ListForUser(c.Context(), currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"teams": teams})
}

// GetTeam handles GET /api/teams/:id
func (s *Server) GetTeam(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	team, err := s.teamService.Get(c.Context(), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(team)
}

// JoinTeam handles POST /api/teams/:id/join
func (s *Server) JoinTeam(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	team, err := s.teamService.Join(c.Context(), currentUserID(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(team)
}

// LeaveTeam handles POST /api/teams/:id/leave
func (s *Server) LeaveTeam(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.teamService.Leave(c.Context(), currentUserID(c), id); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// RemoveTeamMember handles DELETE /api/teams/:id/members/:userId
func (s *Server) RemoveTeamMember(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	memberID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	if err := s.teamService.RemoveMember(c.Context(), currentUserID(c), id, memberID); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// InitiateTeamClosure handles POST /api/teams/:id/close
func (s *Server) InitiateTeamClosure(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	team, err := s.teamService.InitiateClosure(c.Context(), currentUserID(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(team)
}

// CancelTeamClosure handles POST /api/teams/:id/close/cancel
func (s *Server) CancelTeamClosure(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	team, err := s.teamService.CancelClosure(c.Context(), currentUserID(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(team)
}

// ConfirmTeamCompletion handles POST /api/teams/:id/confirm
func (s *Server) ConfirmTeamCompletion(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	team, err := s.teamService.ConfirmCompletion(c.Context(), currentUserID(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(team)
}

// DeleteTeam handles DELETE /api/teams/:id
func (s *Server) DeleteTeam(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.teamService.Delete(c.Context(), currentUserID(c), id); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
