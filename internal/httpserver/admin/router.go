// Package admin holds the operator surface: catalog lifecycle and access
// management, sync triggering and the sync run audit trail. Access requires
// exchanging the operator key for a short-lived bearer token.
package admin

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ncecere/chatstore/backend/internal/app"
)

type adminHandler struct {
	container *app.Container
}

// Register wires up the operator endpoints.
func Register(fiberApp *fiber.App, container *app.Container) {
	if fiberApp == nil || container == nil {
		return
	}

	handler := &adminHandler{container: container}

	fiberApp.Post("/admin/auth/token", handler.issueToken)

	group := fiberApp.Group("/admin", requireOperator(container))
	group.Get("/catalog", handler.listCatalog)
	// Model ids carry slashes (vendor/model), so the catalog entry routes
	// capture them with a greedy wildcard instead of a single segment.
	group.Put("/catalog/+/status", handler.setStatus)
	group.Put("/catalog/+/access", handler.setAccess)
	group.Get("/catalog/+", handler.getCatalogEntry)
	group.Post("/sync", handler.triggerSync)
	group.Get("/sync/runs", handler.listSyncRuns)
	group.Get("/sync/runs/:runID", handler.getSyncRun)
	group.Get("/sync/runs/:runID/payload", handler.getSyncRunPayload)
	group.Delete("/sync/runs/:runID/payload", handler.purgeSyncRunPayload)
	group.Put("/sessions/:sessionID/rollup", handler.repairSessionRollup)
	group.Get("/users/:userID/usage", handler.userUsage)
}
