package server

import (
	"strings"

	"skillbarter/internal/models"

	"github.com/gofiber/fiber/v2"
)

// CreateSkill handles POST /api/skills
func (s *Server) CreateSkill(c *fiber.Ctx) error {
	userID := currentUserID(c)

	var req struct {
		Title        string           `json:"title"`
		Description  string           `json:"description"`
		Kind         models.SkillKind `json:"kind"`
		ExchangeCost int              `json:"exchange_cost"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Title is required"))
	}
	if req.Kind == "" {
		req.Kind = models.SkillKindOffer
	}
	if req.Kind != models.SkillKindOffer && req.Kind != models.SkillKindRequest {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Kind must be 'offer' or 'request'"))
	}
	if req.ExchangeCost < 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Exchange cost must not be negative"))
	}

	skill := &models.Skill{
		UserID:       userID,
		Title:        req.Title,
		Description:  req.Description,
		Kind:         req.Kind,
		ExchangeCost: req.ExchangeCost,
		Status:       models.SkillStatusActive,
	}
	if err := s.skillRepo.Create(c.Context(), skill); err != nil {
		return models.RespondWithAppError(c, err)
	}

	// Offering a skill can earn the sharer badges.
	if req.Kind == models.SkillKindOffer {
		if _, err := s.userService.RecomputeBadges(c.Context(), userID); err != nil {
			return models.RespondWithAppError(c, err)
		}
	}

	return c.Status(fiber.StatusCreated).JSON(skill)
}

// GetSkill handles GET /api/skills/:id
func (s *Server) GetSkill(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	skill, err := s.skillRepo.GetByID(c.Context(), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(skill)
}

// GetMySkills handles GET /api/skills/me
func (s *Server) GetMySkills(c *fiber.Ctx) error {
	skills, err := s.skillRepo.ListByUser(c.Context(), currentUserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"skills": skills})
}

// GetUserSkills handles GET /api/users/:id/skills
func (s *Server) GetUserSkills(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	skills, err := s.skillRepo.ListByUser(c.Context(), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"skills": skills})
}
