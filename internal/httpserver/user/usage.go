package user

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ncecere/chatstore/backend/internal/httpserver/httputil"
	"github.com/ncecere/chatstore/backend/internal/timeutil"
)

func (h *userHandler) dailyUsage(c *fiber.Ctx) error {
	loc := h.container.ReportingLoc()
	day := time.Now().In(loc)
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, loc)
		if err != nil {
			return httputil.WriteError(c, fiber.StatusBadRequest, "date must be YYYY-MM-DD")
		}
		day = parsed
	}

	record, err := h.container.Usage.DailyUsageFor(c.UserContext(), currentUserID(c), day)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(toDailyUsageResponse(record))
}

func (h *userHandler) usageRange(c *fiber.Ctx) error {
	loc := h.container.ReportingLoc()
	period := c.Query("period", "7d")

	window, err := timeutil.NewWindow(period, time.Now(), loc)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "period must look like 7d or 24h")
	}

	records, err := h.container.Usage.UsageRange(c.UserContext(), currentUserID(c), window)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}

	resp := make([]dailyUsageResponse, 0, len(records))
	for _, record := range records {
		resp = append(resp, toDailyUsageResponse(record))
	}
	return c.JSON(fiber.Map{
		"period":   window.Period(),
		"start":    window.StartString(),
		"end":      window.EndString(),
		"timezone": window.Timezone(),
		"days":     resp,
	})
}
