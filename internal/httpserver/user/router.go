// Package user holds the chat-client-facing endpoints. Authentication is
// handled upstream; requests arrive with the caller's identity already
// resolved into the X-User-ID header.
package user

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ncecere/chatstore/backend/internal/app"
)

type userHandler struct {
	container *app.Container
}

// Register wires up the chat storage endpoints.
func Register(fiberApp *fiber.App, container *app.Container) {
	if fiberApp == nil || container == nil {
		return
	}

	handler := &userHandler{container: container}

	group := fiberApp.Group("/v1", requireUserID())
	group.Post("/profile", handler.createProfile)
	group.Get("/profile", handler.getProfile)
	group.Post("/sessions", handler.createSession)
	group.Get("/sessions", handler.listSessions)
	group.Get("/sessions/:sessionID", handler.getSession)
	group.Delete("/sessions/:sessionID", handler.deleteSession)
	group.Get("/sessions/:sessionID/messages", handler.listMessages)
	group.Post("/sessions/:sessionID/messages", handler.writeMessage)
	group.Patch("/messages/:messageID", handler.finishMessage)
	group.Delete("/messages/:messageID", handler.deleteMessage)
	group.Get("/messages/:messageID/cost", handler.messageCost)
	group.Get("/models", handler.listModels)
	group.Get("/usage/daily", handler.dailyUsage)
	group.Get("/usage", handler.usageRange)
}
