package admin

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/ncecere/chatstore/backend/internal/app"
	"github.com/ncecere/chatstore/backend/internal/auth"
	"github.com/ncecere/chatstore/backend/internal/httpserver/httputil"
)

type issueTokenRequest struct {
	OperatorKey string `json:"operator_key"`
}

// issueToken exchanges the configured operator key for a short-lived bearer
// token. The key itself is never accepted on the protected routes.
func (h *adminHandler) issueToken(c *fiber.Ctx) error {
	cfg := h.container.Config
	if h.container.Tokens == nil || strings.TrimSpace(cfg.Admin.KeyHash) == "" {
		return httputil.WriteError(c, fiber.StatusNotImplemented, "admin access not configured")
	}

	var req issueTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}

	ok, err := auth.VerifyPassword(req.OperatorKey, cfg.Admin.KeyHash)
	if err != nil || !ok {
		return httputil.WriteError(c, fiber.StatusUnauthorized, "invalid operator key")
	}

	token, err := h.container.Tokens.Issue("operator")
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{
		"access_token": token.Token,
		"expires_at":   token.ExpiresAt,
	})
}

func requireOperator(container *app.Container) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if container.Tokens == nil {
			return httputil.WriteError(c, fiber.StatusNotImplemented, "admin access not configured")
		}
		header := c.Get(fiber.HeaderAuthorization)
		raw, found := strings.CutPrefix(header, "Bearer ")
		if !found || raw == "" {
			return httputil.WriteError(c, fiber.StatusUnauthorized, "missing bearer token")
		}
		subject, err := container.Tokens.Verify(raw)
		if err != nil {
			return httputil.WriteError(c, fiber.StatusUnauthorized, "invalid bearer token")
		}
		c.Locals("operator", subject)
		return c.Next()
	}
}
