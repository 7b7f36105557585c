package user

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ncecere/chatstore/backend/internal/httpserver/httputil"
)

const userIDHeader = "X-User-ID"

const localsUserID = "userID"

// requireUserID validates the identity header set by the auth gateway in
// front of this service and stashes the parsed id for handlers.
func requireUserID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Get(userIDHeader)
		if raw == "" {
			return httputil.WriteError(c, fiber.StatusUnauthorized, "missing user identity")
		}
		id, err := uuid.Parse(raw)
		if err != nil || id == uuid.Nil {
			return httputil.WriteError(c, fiber.StatusUnauthorized, "invalid user identity")
		}
		c.Locals(localsUserID, id)
		return c.Next()
	}
}

func currentUserID(c *fiber.Ctx) uuid.UUID {
	if id, ok := c.Locals(localsUserID).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}
