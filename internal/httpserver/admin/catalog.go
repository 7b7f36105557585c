package admin

import (
	"errors"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ncecere/chatstore/backend/internal/db"
	"github.com/ncecere/chatstore/backend/internal/httpserver/httputil"
	admincatalogsvc "github.com/ncecere/chatstore/backend/internal/services/admincatalog"
)

type catalogEntryResponse struct {
	ModelID             string     `json:"model_id"`
	CanonicalSlug       string     `json:"canonical_slug,omitempty"`
	Name                string     `json:"name"`
	Description         string     `json:"description,omitempty"`
	ContextLength       int64      `json:"context_length,omitempty"`
	Modality            string     `json:"modality,omitempty"`
	Tokenizer           string     `json:"tokenizer,omitempty"`
	PromptPrice         float64    `json:"prompt_price"`
	CompletionPrice     float64    `json:"completion_price"`
	WebSearchPrice      float64    `json:"web_search_price,omitempty"`
	MaxCompletionTokens int64      `json:"max_completion_tokens,omitempty"`
	IsModerated         bool       `json:"is_moderated"`
	SupportedParameters []string   `json:"supported_parameters,omitempty"`
	Status              string     `json:"status"`
	FreeTier            bool       `json:"free_tier"`
	ProTier             bool       `json:"pro_tier"`
	EnterpriseTier      bool       `json:"enterprise_tier"`
	DailyLimit          int64      `json:"daily_limit,omitempty"`
	MonthlyLimit        int64      `json:"monthly_limit,omitempty"`
	LastSyncedAt        *time.Time `json:"last_synced_at,omitempty"`
	LastSeenAt          *time.Time `json:"last_seen_at,omitempty"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func toCatalogEntryResponse(e db.ModelCatalogEntry) catalogEntryResponse {
	return catalogEntryResponse{
		ModelID:             e.ModelID,
		CanonicalSlug:       e.CanonicalSlug,
		Name:                e.Name,
		Description:         e.Description,
		ContextLength:       e.ContextLength,
		Modality:            e.Modality,
		Tokenizer:           e.Tokenizer,
		PromptPrice:         e.PromptPrice,
		CompletionPrice:     e.CompletionPrice,
		WebSearchPrice:      e.WebSearchPrice,
		MaxCompletionTokens: e.MaxCompletionTokens,
		IsModerated:         e.IsModerated,
		SupportedParameters: e.SupportedParameters,
		Status:              e.Status,
		FreeTier:            e.FreeTier,
		ProTier:             e.ProTier,
		EnterpriseTier:      e.EnterpriseTier,
		DailyLimit:          e.DailyLimit,
		MonthlyLimit:        e.MonthlyLimit,
		LastSyncedAt:        e.LastSyncedAt,
		LastSeenAt:          e.LastSeenAt,
		UpdatedAt:           e.UpdatedAt,
	}
}

func (h *adminHandler) listCatalog(c *fiber.Ctx) error {
	entries, err := h.container.AdminCatalog.List(c.UserContext())
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}
	resp := make([]catalogEntryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, toCatalogEntryResponse(entry))
	}
	return c.JSON(fiber.Map{"models": resp})
}

// catalogModelParam returns the model id captured by the greedy wildcard in
// the catalog entry routes, unescaping any percent-encoded characters.
func catalogModelParam(c *fiber.Ctx) string {
	raw := c.Params("+")
	if id, err := url.PathUnescape(raw); err == nil {
		return id
	}
	return raw
}

func (h *adminHandler) getCatalogEntry(c *fiber.Ctx) error {
	entry, err := h.container.AdminCatalog.Entry(c.UserContext(), catalogModelParam(c))
	if err != nil {
		return writeAdminCatalogError(c, err)
	}
	return c.JSON(toCatalogEntryResponse(entry))
}

type setStatusRequest struct {
	Status string `json:"status"`
}

func (h *adminHandler) setStatus(c *fiber.Ctx) error {
	var req setStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}

	entry, err := h.container.AdminCatalog.SetStatus(c.UserContext(), catalogModelParam(c), req.Status)
	if err != nil {
		return writeAdminCatalogError(c, err)
	}
	return c.JSON(toCatalogEntryResponse(entry))
}

type setAccessRequest struct {
	FreeTier       bool  `json:"free_tier"`
	ProTier        bool  `json:"pro_tier"`
	EnterpriseTier bool  `json:"enterprise_tier"`
	DailyLimit     int64 `json:"daily_limit"`
	MonthlyLimit   int64 `json:"monthly_limit"`
}

func (h *adminHandler) setAccess(c *fiber.Ctx) error {
	var req setAccessRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}

	entry, err := h.container.AdminCatalog.SetAccess(c.UserContext(), admincatalogsvc.AccessUpdate{
		ModelID:        catalogModelParam(c),
		FreeTier:       req.FreeTier,
		ProTier:        req.ProTier,
		EnterpriseTier: req.EnterpriseTier,
		DailyLimit:     req.DailyLimit,
		MonthlyLimit:   req.MonthlyLimit,
	})
	if err != nil {
		return writeAdminCatalogError(c, err)
	}
	return c.JSON(toCatalogEntryResponse(entry))
}

func writeAdminCatalogError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, admincatalogsvc.ErrUnknownModel):
		return httputil.WriteError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, admincatalogsvc.ErrInvalidStatus):
		return httputil.WriteError(c, fiber.StatusBadRequest, err.Error())
	default:
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}
}
