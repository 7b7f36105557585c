package user

import (
	"time"

	decimal "github.com/shopspring/decimal"

	"github.com/ncecere/chatstore/backend/internal/db"
)

var microsPerUSD = decimal.NewFromInt(1_000_000)

// usd formats integer USD micros as a fixed six-decimal dollar string.
func usd(micros int64) string {
	return decimal.NewFromInt(micros).Div(microsPerUSD).StringFixed(6)
}

type sessionResponse struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	Title              string     `json:"title"`
	MessageCount       int64      `json:"message_count"`
	TotalTokens        int64      `json:"total_tokens"`
	LastModel          string     `json:"last_model,omitempty"`
	LastMessagePreview string     `json:"last_message_preview,omitempty"`
	LastMessageAt      *time.Time `json:"last_message_at,omitempty"`
	LastActivityAt     time.Time  `json:"last_activity_at"`
	CreatedAt          time.Time  `json:"created_at"`
}

func toSessionResponse(s db.ChatSession) sessionResponse {
	return sessionResponse{
		ID:                 s.ID.String(),
		UserID:             s.UserID.String(),
		Title:              s.Title,
		MessageCount:       s.MessageCount,
		TotalTokens:        s.TotalTokens,
		LastModel:          s.LastModel,
		LastMessagePreview: s.LastMessagePreview,
		LastMessageAt:      s.LastMessageAt,
		LastActivityAt:     s.LastActivityAt,
		CreatedAt:          s.CreatedAt,
	}
}

type messageResponse struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	Role         string    `json:"role"`
	Content      string    `json:"content"`
	Model        string    `json:"model,omitempty"`
	InputTokens  int64     `json:"input_tokens"`
	OutputTokens int64     `json:"output_tokens"`
	ElapsedMs    int64     `json:"elapsed_ms,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func toMessageResponse(m db.ChatMessage) messageResponse {
	return messageResponse{
		ID:           m.ID.String(),
		SessionID:    m.SessionID.String(),
		Role:         m.Role,
		Content:      m.Content,
		Model:        m.Model,
		InputTokens:  m.InputTokens,
		OutputTokens: m.OutputTokens,
		ElapsedMs:    m.ElapsedMs,
		ErrorMessage: m.ErrorMessage,
		CreatedAt:    m.CreatedAt,
	}
}

type costResponse struct {
	MessageID      string `json:"message_id"`
	Model          string `json:"model"`
	InputTokens    int64  `json:"input_tokens"`
	OutputTokens   int64  `json:"output_tokens"`
	ExtraUnits     int64  `json:"extra_units,omitempty"`
	PromptCost     string `json:"prompt_cost"`
	CompletionCost string `json:"completion_cost"`
	ExtraCost      string `json:"extra_cost"`
	TotalCost      string `json:"total_cost"`
}

func toCostResponse(c db.MessageCost) costResponse {
	return costResponse{
		MessageID:      c.MessageID.String(),
		Model:          c.Model,
		InputTokens:    c.InputTokens,
		OutputTokens:   c.OutputTokens,
		ExtraUnits:     c.ExtraUnits,
		PromptCost:     usd(c.PromptCostMicros),
		CompletionCost: usd(c.CompletionCostMicros),
		ExtraCost:      usd(c.ExtraCostMicros),
		TotalCost:      usd(c.TotalCostMicros),
	}
}

type dailyUsageResponse struct {
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

func toDailyUsageResponse(d db.DailyUsage) dailyUsageResponse {
	models := d.ModelsUsed
	if models == nil {
		models = map[string]int64{}
	}
	return dailyUsageResponse{
		UsageDate:        d.UsageDate.Format("2006-01-02"),
		MessagesSent:     d.MessagesSent,
		MessagesReceived: d.MessagesReceived,
		InputTokens:      d.InputTokens,
		OutputTokens:     d.OutputTokens,
		TotalTokens:      d.TotalTokens,
		ModelsUsed:       models,
		SessionsCreated:  d.SessionsCreated,
		TotalCost:        usd(d.CostUsdMicros),
	}
}
