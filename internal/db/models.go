package db

import (
	"time"

	"github.com/google/uuid"
)

// User is a chat user profile with denormalized lifetime usage totals.
type User struct {
	ID               uuid.UUID
	Email            string
	DisplayName      string
	SubscriptionTier string
	TotalMessages    int64
	TotalTokens      int64
	TotalSessions    int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ChatSession carries rollup counters that always mirror an aggregate over
// the session's messages. Only the rollup recompute mutates the counters.
type ChatSession struct {
	ID                 uuid.UUID
	UserID             uuid.UUID
	Title              string
	MessageCount       int64
	TotalTokens        int64
	LastModel          string
	LastMessagePreview string
	LastMessageAt      *time.Time
	LastActivityAt     time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ChatMessage is one message in a session. Immutable once written except for
// streaming completion updates.
type ChatMessage struct {
	ID           uuid.UUID
	SessionID    uuid.UUID
	Role         string
	Content      string
	Model        string
	InputTokens  int64
	OutputTokens int64
	ElapsedMs    int64
	ErrorMessage string
	CreatedAt    time.Time
}

// DailyUsage is the per-user, per-calendar-date usage rollup. All counters
// are additive; the row is created lazily on first activity of the day.
type DailyUsage struct {
	UserID           uuid.UUID
	UsageDate        time.Time
	MessagesSent     int64
	MessagesReceived int64
	InputTokens      int64
	OutputTokens     int64
	TotalTokens      int64
	ModelsUsed       map[string]int64
	SessionsCreated  int64
	CostUsdMicros    int64
	UpdatedAt        time.Time
}

// MessageCost is the write-once cost snapshot for one assistant message.
// Costs are stored as integer USD micros, i.e. exactly six decimal places.
type MessageCost struct {
	MessageID            uuid.UUID
	Model                string
	InputTokens          int64
	OutputTokens         int64
	ExtraUnits           int64
	PromptPrice          float64
	CompletionPrice      float64
	ExtraUnitPrice       float64
	PromptCostMicros     int64
	CompletionCostMicros int64
	ExtraCostMicros      int64
	TotalCostMicros      int64
	CreatedAt            time.Time
}

// ModelCatalogEntry is one model's metadata, pricing, lifecycle status and
// tier visibility flags in the local catalog.
type ModelCatalogEntry struct {
	ModelID              string
	CanonicalSlug        string
	Name                 string
	Description          string
	ContextLength        int64
	Modality             string
	InputModalities      []string
	OutputModalities     []string
	Tokenizer            string
	PromptPrice          float64
	CompletionPrice      float64
	RequestPrice         float64
	ImagePrice           float64
	WebSearchPrice       float64
	InternalReasoningPrice float64
	CacheReadPrice       float64
	CacheWritePrice      float64
	MaxCompletionTokens  int64
	IsModerated          bool
	SupportedParameters  []string
	Status               string
	FreeTier             bool
	ProTier              bool
	EnterpriseTier       bool
	DailyLimit           int64
	MonthlyLimit         int64
	LastSyncedAt         *time.Time
	LastSeenAt           *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// SyncRun is one append-only audit row per catalog synchronizer invocation.
type SyncRun struct {
	ID              uuid.UUID
	StartedAt       time.Time
	CompletedAt     *time.Time
	Status          string
	ModelsProcessed int64
	ModelsAdded     int64
	ModelsUpdated   int64
	ModelsInactive  int64
	ModelsReactivated int64
	ErrorMessage    string
	ErrorCode       string
	DurationMs      int64
	PayloadKey      string
}

const (
	SyncRunStatusRunning   = "running"
	SyncRunStatusCompleted = "completed"
	SyncRunStatusFailed    = "failed"
)
