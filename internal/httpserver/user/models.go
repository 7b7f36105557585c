package user

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ncecere/chatstore/backend/internal/httpserver/httputil"
)

func (h *userHandler) listModels(c *fiber.Ctx) error {
	tier, models, err := h.container.TierAccess.ModelsForUser(c.UserContext(), currentUserID(c))
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{
		"tier":   string(tier),
		"models": models,
	})
}
