package admin

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ncecere/chatstore/backend/internal/db"
	"github.com/ncecere/chatstore/backend/internal/httpserver/httputil"
	chatsvc "github.com/ncecere/chatstore/backend/internal/services/chat"
)

type sessionRollupResponse struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	Title              string     `json:"title"`
	MessageCount       int64      `json:"message_count"`
	TotalTokens        int64      `json:"total_tokens"`
	LastModel          string     `json:"last_model,omitempty"`
	LastMessagePreview string     `json:"last_message_preview,omitempty"`
	LastMessageAt      *time.Time `json:"last_message_at,omitempty"`
	LastActivityAt     time.Time  `json:"last_activity_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// repairSessionRollup force-recomputes one session's rollup. The recompute is
// a full rescan of the session's messages, so it is safe to run at any time.
func (h *adminHandler) repairSessionRollup(c *fiber.Ctx) error {
	sessionID, err := uuid.Parse(c.Params("sessionID"))
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid session id")
	}

	session, err := h.container.Chat.RepairRollup(c.UserContext(), sessionID)
	if err != nil {
		if errors.Is(err, chatsvc.ErrSessionNotFound) {
			return httputil.WriteError(c, fiber.StatusNotFound, err.Error())
		}
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(toSessionRollupResponse(session))
}

func toSessionRollupResponse(s db.ChatSession) sessionRollupResponse {
	return sessionRollupResponse{
		ID:                 s.ID.String(),
		UserID:             s.UserID.String(),
		Title:              s.Title,
		MessageCount:       s.MessageCount,
		TotalTokens:        s.TotalTokens,
		LastModel:          s.LastModel,
		LastMessagePreview: s.LastMessagePreview,
		LastMessageAt:      s.LastMessageAt,
		LastActivityAt:     s.LastActivityAt,
		UpdatedAt:          s.UpdatedAt,
	}
}
