package user

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ncecere/chatstore/backend/internal/httpserver/httputil"
	chatsvc "github.com/ncecere/chatstore/backend/internal/services/chat"
)

type writeMessageRequest struct {
	Role         string `json:"role"`
	Content      string `json:"content"`
	Model        string `json:"model"`
	InputTokens  int64  `json:"input_tokens"`
	OutputTokens int64  `json:"output_tokens"`
	ElapsedMs    int64  `json:"elapsed_ms"`
	ErrorMessage string `json:"error_message"`
	ExtraUnits   int64  `json:"extra_units"`
	Streaming    bool   `json:"streaming"`
}

type writeMessageResponse struct {
	Message messageResponse `json:"message"`
	Session sessionResponse `json:"session"`
	Cost    *costResponse   `json:"cost,omitempty"`
}

func (h *userHandler) writeMessage(c *fiber.Ctx) error {
	sessionID, err := uuid.Parse(c.Params("sessionID"))
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid session id")
	}

	var req writeMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.container.Chat.WriteMessage(c.UserContext(), chatsvc.WriteMessageInput{
		SessionID:    sessionID,
		UserID:       currentUserID(c),
		Role:         req.Role,
		Content:      req.Content,
		Model:        req.Model,
		InputTokens:  req.InputTokens,
		OutputTokens: req.OutputTokens,
		ElapsedMs:    req.ElapsedMs,
		ErrorMessage: req.ErrorMessage,
		ExtraUnits:   req.ExtraUnits,
		Streaming:    req.Streaming,
	})
	if err != nil {
		return writeChatError(c, err)
	}

	h.recordMessageMetrics(result)
	return c.Status(fiber.StatusCreated).JSON(toWriteMessageResponse(result))
}

type finishMessageRequest struct {
	Content      string `json:"content"`
	OutputTokens int64  `json:"output_tokens"`
	ElapsedMs    int64  `json:"elapsed_ms"`
	ErrorMessage string `json:"error_message"`
	ExtraUnits   int64  `json:"extra_units"`
}

func (h *userHandler) finishMessage(c *fiber.Ctx) error {
	messageID, err := uuid.Parse(c.Params("messageID"))
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid message id")
	}

	var req finishMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.container.Chat.FinishMessage(c.UserContext(), chatsvc.FinishMessageInput{
		MessageID:    messageID,
		Content:      req.Content,
		OutputTokens: req.OutputTokens,
		ElapsedMs:    req.ElapsedMs,
		ErrorMessage: req.ErrorMessage,
		ExtraUnits:   req.ExtraUnits,
	})
	if err != nil {
		return writeChatError(c, err)
	}

	h.recordMessageMetrics(result)
	return c.JSON(toWriteMessageResponse(result))
}

func (h *userHandler) deleteMessage(c *fiber.Ctx) error {
	messageID, err := uuid.Parse(c.Params("messageID"))
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid message id")
	}

	session, err := h.container.Chat.DeleteMessage(c.UserContext(), messageID)
	if err != nil {
		return writeChatError(c, err)
	}
	return c.JSON(fiber.Map{"session": toSessionResponse(session)})
}

func (h *userHandler) listMessages(c *fiber.Ctx) error {
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

	messages, err := h.container.Chat.Messages(c.UserContext(), sessionID)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, err.Error())
	}
	resp := make([]messageResponse, 0, len(messages))
	for _, message := range messages {
		resp = append(resp, toMessageResponse(message))
	}
	return c.JSON(fiber.Map{"messages": resp})
}

func (h *userHandler) messageCost(c *fiber.Ctx) error {
	messageID, err := uuid.Parse(c.Params("messageID"))
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid message id")
	}

	cost, err := h.container.Costing.CostFor(c.UserContext(), h.container.Queries, messageID)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusNotFound, "cost record not found")
	}
	return c.JSON(toCostResponse(cost))
}

func toWriteMessageResponse(result chatsvc.WriteMessageResult) writeMessageResponse {
	resp := writeMessageResponse{
		Message: toMessageResponse(result.Message),
		Session: toSessionResponse(result.Session),
	}
	if result.Cost != nil {
		cost := toCostResponse(*result.Cost)
		resp.Cost = &cost
	}
	return resp
}

func (h *userHandler) recordMessageMetrics(result chatsvc.WriteMessageResult) {
	obs := h.container.Observability
	if obs == nil {
		return
	}
	obs.RecordMessage(result.Message.Role, result.Message.Model,
		result.Message.InputTokens, result.Message.OutputTokens)
	if result.Cost != nil {
		obs.RecordMessageCost(result.Cost.Model, result.Cost.TotalCostMicros)
	}
}
