package user

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ncecere/chatstore/backend/internal/httpserver/httputil"
	chatsvc "github.com/ncecere/chatstore/backend/internal/services/chat"
)

type createSessionRequest struct {
	Title string `json:"title"`
}

func (h *userHandler) createSession(c *fiber.Ctx) error {
	var req createSessionRequest
	if err := c.BodyParser(&req); err != nil && !errors.Is(err, fiber.ErrUnprocessableEntity) {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}

	session, err := h.container.Chat.CreateSession(c.UserContext(), currentUserID(c), req.Title)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.Status(fiber.StatusCreated).JSON(toSessionResponse(session))
}

func (h *userHandler) listSessions(c *fiber.Ctx) error {
	sessions, err := h.container.Chat.Sessions(c.UserContext(), currentUserID(c))
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}
	resp := make([]sessionResponse, 0, len(sessions))
	for _, session := range sessions {
		resp = append(resp, toSessionResponse(session))
	}
	return c.JSON(fiber.Map{"sessions": resp})
}

func (h *userHandler) getSession(c *fiber.Ctx) error {
	sessionID, err := uuid.Parse(c.Params("sessionID"))
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid session id")
	}

	session, err := h.container.Chat.Session(c.UserContext(), sessionID)
	if err != nil {
		return writeChatError(c, err)
	}
	if session.UserID != currentUserID(c) {
		return httputil.WriteError(c, fiber.StatusNotFound, "session not found")
	}
	return c.JSON(toSessionResponse(session))
}

func (h *userHandler) deleteSession(c *fiber.Ctx) error {
	sessionID, err := uuid.Parse(c.Params("sessionID"))
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid session id")
	}

	if err := h.container.Chat.DeleteSession(c.UserContext(), sessionID, currentUserID(c)); err != nil {
		return writeChatError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func writeChatError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, chatsvc.ErrSessionNotFound), errors.Is(err, chatsvc.ErrMessageNotFound):
		return httputil.WriteError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, chatsvc.ErrSessionOwnership):
		return httputil.WriteError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, chatsvc.ErrInvalidRole), errors.Is(err, chatsvc.ErrEmptyContent):
		return httputil.WriteError(c, fiber.StatusBadRequest, err.Error())
	default:
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}
}
