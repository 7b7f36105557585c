package admin

import (
	"errors"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ncecere/chatstore/backend/internal/db"
	"github.com/ncecere/chatstore/backend/internal/httpserver/httputil"
	catalogsyncsvc "github.com/ncecere/chatstore/backend/internal/services/catalogsync"
	"github.com/ncecere/chatstore/backend/internal/storage/blob"
)

// triggerSync runs a catalog sync immediately. A JSON body containing a
// payload reconciles that payload; an empty body pulls from the configured
// source URL.
func (h *adminHandler) triggerSync(c *fiber.Ctx) error {
	var (
		result catalogsyncsvc.Result
		err    error
	)
	if len(c.Body()) > 0 {
		result, err = h.container.CatalogSync.SyncPayload(c.UserContext(), c.Body())
	} else {
		result, err = h.container.CatalogSync.SyncFromSource(c.UserContext())
	}
	if err != nil {
		if errors.Is(err, catalogsyncsvc.ErrSyncInProgress) {
			return httputil.WriteError(c, fiber.StatusConflict, err.Error())
		}
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}

	if h.container.Observability != nil {
		status := db.SyncRunStatusCompleted
		if !result.Success {
			status = db.SyncRunStatusFailed
		}
		h.container.Observability.RecordSyncRun(status, time.Duration(result.DurationMs)*time.Millisecond)
	}

	status := fiber.StatusOK
	if !result.Success {
		status = fiber.StatusBadGateway
	}
	return c.Status(status).JSON(result)
}

type syncRunResponse struct {
	ID                string     `json:"id"`
	StartedAt         time.Time  `json:"started_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	Status            string     `json:"status"`
	ModelsProcessed   int64      `json:"models_processed"`
	ModelsAdded       int64      `json:"models_added"`
	ModelsUpdated     int64      `json:"models_updated"`
	ModelsInactive    int64      `json:"models_inactive"`
	ModelsReactivated int64      `json:"models_reactivated"`
	ErrorMessage      string     `json:"error_message,omitempty"`
	ErrorCode         string     `json:"error_code,omitempty"`
	DurationMs        int64      `json:"duration_ms"`
	PayloadKey        string     `json:"payload_key,omitempty"`
}

func toSyncRunResponse(r db.SyncRun) syncRunResponse {
	return syncRunResponse{
		ID:                r.ID.String(),
		StartedAt:         r.StartedAt,
		CompletedAt:       r.CompletedAt,
		Status:            r.Status,
		ModelsProcessed:   r.ModelsProcessed,
		ModelsAdded:       r.ModelsAdded,
		ModelsUpdated:     r.ModelsUpdated,
		ModelsInactive:    r.ModelsInactive,
		ModelsReactivated: r.ModelsReactivated,
		ErrorMessage:      r.ErrorMessage,
		ErrorCode:         r.ErrorCode,
		DurationMs:        r.DurationMs,
		PayloadKey:        r.PayloadKey,
	}
}

func (h *adminHandler) listSyncRuns(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	runs, err := h.container.CatalogSync.History(c.UserContext(), int32(limit))
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}
	resp := make([]syncRunResponse, 0, len(runs))
	for _, run := range runs {
		resp = append(resp, toSyncRunResponse(run))
	}
	return c.JSON(fiber.Map{"runs": resp})
}

func (h *adminHandler) getSyncRun(c *fiber.Ctx) error {
	runID, err := uuid.Parse(c.Params("runID"))
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid run id")
	}
	run, err := h.container.CatalogSync.Run(c.UserContext(), runID)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusNotFound, "sync run not found")
	}
	return c.JSON(toSyncRunResponse(run))
}

// getSyncRunPayload serves the raw upstream payload archived for a sync run.
func (h *adminHandler) getSyncRunPayload(c *fiber.Ctx) error {
	run, status, msg := h.archivedRun(c)
	if status != 0 {
		return httputil.WriteError(c, status, msg)
	}

	reader, info, err := h.container.Archive.Get(c.UserContext(), run.PayloadKey)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return httputil.WriteError(c, fiber.StatusNotFound, "archived payload not found")
		}
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}
	defer reader.Close()

	body, err := io.ReadAll(reader)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}
	contentType := info.ContentType
	if contentType == "" {
		contentType = fiber.MIMEApplicationJSON
	}
	c.Set(fiber.HeaderContentType, contentType)
	return c.Send(body)
}

// purgeSyncRunPayload removes a run's archived payload from storage.
func (h *adminHandler) purgeSyncRunPayload(c *fiber.Ctx) error {
	run, status, msg := h.archivedRun(c)
	if status != 0 {
		return httputil.WriteError(c, status, msg)
	}

	if err := h.container.Archive.Delete(c.UserContext(), run.PayloadKey); err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *adminHandler) archivedRun(c *fiber.Ctx) (db.SyncRun, int, string) {
	if h.container.Archive == nil {
		return db.SyncRun{}, fiber.StatusNotFound, "payload archive not configured"
	}
	runID, err := uuid.Parse(c.Params("runID"))
	if err != nil {
		return db.SyncRun{}, fiber.StatusBadRequest, "invalid run id"
	}
	run, err := h.container.CatalogSync.Run(c.UserContext(), runID)
	if err != nil {
		return db.SyncRun{}, fiber.StatusNotFound, "sync run not found"
	}
	if run.PayloadKey == "" {
		return db.SyncRun{}, fiber.StatusNotFound, "sync run has no archived payload"
	}
	return run, 0, ""
}
