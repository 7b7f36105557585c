package user

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/ncecere/chatstore/backend/internal/catalog"
	"github.com/ncecere/chatstore/backend/internal/db"
	"github.com/ncecere/chatstore/backend/internal/httpserver/httputil"
)

type profileResponse struct {
	ID               string    `json:"id"`
	Email            string    `json:"email,omitempty"`
	DisplayName      string    `json:"display_name,omitempty"`
	SubscriptionTier string    `json:"subscription_tier"`
	TotalMessages    int64     `json:"total_messages"`
	TotalTokens      int64     `json:"total_tokens"`
	TotalSessions    int64     `json:"total_sessions"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toProfileResponse(u db.User) profileResponse {
	return profileResponse{
		ID:               u.ID.String(),
		Email:            u.Email,
		DisplayName:      u.DisplayName,
		SubscriptionTier: u.SubscriptionTier,
		TotalMessages:    u.TotalMessages,
		TotalTokens:      u.TotalTokens,
		TotalSessions:    u.TotalSessions,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}

// getProfile serves the caller's profile with its lifetime usage totals.
func (h *userHandler) getProfile(c *fiber.Ctx) error {
	user, err := h.container.Queries.GetUser(c.UserContext(), currentUserID(c))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return httputil.WriteError(c, fiber.StatusNotFound, "profile not found")
		}
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(toProfileResponse(user))
}

type createProfileRequest struct {
	Email            string `json:"email"`
	DisplayName      string `json:"display_name"`
	SubscriptionTier string `json:"subscription_tier"`
}

// createProfile provisions the row backing the caller's identity. Sessions
// and usage rows reference it, so a profile must exist before any chat
// activity is stored.
func (h *userHandler) createProfile(c *fiber.Ctx) error {
	var req createProfileRequest
	if err := c.BodyParser(&req); err != nil && !errors.Is(err, fiber.ErrUnprocessableEntity) {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}

	userID := currentUserID(c)
	if _, err := h.container.Queries.GetUser(c.UserContext(), userID); err == nil {
		return httputil.WriteError(c, fiber.StatusConflict, "profile already exists")
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}

	tier := string(catalog.ParseTier(req.SubscriptionTier))
	user, err := h.container.Queries.CreateUser(c.UserContext(), db.CreateUserParams{
		ID:               userID,
		Email:            strings.TrimSpace(req.Email),
		DisplayName:      strings.TrimSpace(req.DisplayName),
		SubscriptionTier: tier,
	})
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.Status(fiber.StatusCreated).JSON(toProfileResponse(user))
}
