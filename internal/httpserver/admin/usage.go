package admin

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	decimal "github.com/shopspring/decimal"

	"github.com/ncecere/chatstore/backend/internal/db"
	"github.com/ncecere/chatstore/backend/internal/httpserver/httputil"
	"github.com/ncecere/chatstore/backend/internal/timeutil"
)

type adminDailyUsageResponse struct {
	UsageDate        string           `json:"usage_date"`
	MessagesSent     int64            `json:"messages_sent"`
	MessagesReceived int64            `json:"messages_received"`
	InputTokens      int64            `json:"input_tokens"`
	OutputTokens     int64            `json:"output_tokens"`
	TotalTokens      int64            `json:"total_tokens"`
	ModelsUsed       map[string]int64 `json:"models_used"`
	SessionsCreated  int64            `json:"sessions_created"`
	TotalCost        string           `json:"total_cost"`
}

func (h *adminHandler) userUsage(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("userID"))
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid user id")
	}

	window, err := timeutil.NewWindow(c.Query("period", "30d"), time.Now(), h.container.ReportingLoc())
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "period must look like 30d or 24h")
	}

	records, err := h.container.Usage.UsageRange(c.UserContext(), userID, window)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}

	resp := make([]adminDailyUsageResponse, 0, len(records))
	for _, record := range records {
		resp = append(resp, toAdminDailyUsage(record))
	}
	return c.JSON(fiber.Map{
		"user_id": userID.String(),
		"period":  window.Period(),
		"days":    resp,
	})
}

func toAdminDailyUsage(d db.DailyUsage) adminDailyUsageResponse {
	models := d.ModelsUsed
	if models == nil {
		models = map[string]int64{}
	}
	cost := decimal.NewFromInt(d.CostUsdMicros).Div(decimal.NewFromInt(1_000_000)).StringFixed(6)
	return adminDailyUsageResponse{
		UsageDate:        d.UsageDate.Format("2006-01-02"),
		MessagesSent:     d.MessagesSent,
		MessagesReceived: d.MessagesReceived,
		InputTokens:      d.InputTokens,
		OutputTokens:     d.OutputTokens,
		TotalTokens:      d.TotalTokens,
		ModelsUsed:       models,
		SessionsCreated:  d.SessionsCreated,
		TotalCost:        cost,
	}
}
