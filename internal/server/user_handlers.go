package server

import (
	"skillbarter/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/users/me
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	userID := currentUserID(c)

	user, err := s.userRepo.GetByID(c.Context(), userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	badges, err := s.userService.VisibleBadgesFor(c.Context(), user)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(fiber.Map{
		"user":   user,
		"badges": badges,
	})
}

// UpdateMyProfile handles PUT /api/users/me
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	userID := currentUserID(c)

	var req struct {
		Bio    *string `json:"bio"`
		Avatar *string `json:"avatar"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userRepo.GetByID(c.Context(), userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	if req.Bio != nil {
		user.Bio = *req.Bio
	}
	if req.Avatar != nil {
		user.Avatar = *req.Avatar
	}

	if err := s.userRepo.Update(c.Context(), user); err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(user)
}

// GetUserProfile handles GET /api/users/:id
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.userRepo.GetByID(c.Context(), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	badges, err := s.userService.VisibleBadgesFor(c.Context(), user)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	// Public profile: credit balance is the owner's business only.
	return c.JSON(fiber.Map{
		"id":              user.ID,
		"username":        user.Username,
		"bio":             user.Bio,
		"avatar":          user.Avatar,
		"swaps_completed": user.SwapsCompleted,
		"badges":          badges,
		"created_at":      user.CreatedAt,
	})
}

// GetMyLedger handles GET /api/users/me/ledger
func (s *Server) GetMyLedger(c *fiber.Ctx) error {
	userID := currentUserID(c)
	p := parsePagination(c, 50)

	entries, err := s.ledgerService.History(c.Context(), userID, p.Limit)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(fiber.Map{"entries": entries})
}

// RegisterDevice handles POST /api/devices
func (s *Server) RegisterDevice(c *fiber.Ctx) error {
	userID := currentUserID(c)

	var req struct {
		Endpoint string `json:"endpoint"`
		Label    string `json:"label"`
	}
	if err := c.BodyParser(&req); err != nil || req.Endpoint == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("A device endpoint is required"))
	}

	device := models.UserDevice{
		UserID:   userID,
		Endpoint: req.Endpoint,
		Label:    req.Label,
	}
	if err := s.db.WithContext(c.Context()).Create(&device).Error; err != nil {
		return models.RespondWithAppError(c, models.NewInternalError(err))
	}

	return c.Status(fiber.StatusCreated).JSON(device)
}

// RemoveDevice handles DELETE /api/devices/:id
func (s *Server) RemoveDevice(c *fiber.Ctx) error {
	userID := currentUserID(c)
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	res := s.db.WithContext(c.Context()).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.UserDevice{})
	if res.Error != nil {
		return models.RespondWithAppError(c, models.NewInternalError(res.Error))
	}
	if res.RowsAffected == 0 {
		return models.RespondWithAppError(c, models.NewNotFoundError("Device", id))
	}

	return c.SendStatus(fiber.StatusNoContent)
}
