// Package chat owns session and message persistence. Every mutation that can
// change a session's aggregate state runs the full rollup recompute inside
// the same transaction, so the counters on chat_sessions are never stale
// relative to committed messages.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ncecere/chatstore/backend/internal/db"
	"github.com/ncecere/chatstore/backend/internal/services/costing"
	"github.com/ncecere/chatstore/backend/internal/services/usage"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// defaultPreviewLength bounds last_message_preview on the session rollup.
const defaultPreviewLength = 120

var (
	ErrNotConfigured    = errors.New("chat service not configured")
	ErrSessionNotFound  = errors.New("session not found")
	ErrMessageNotFound  = errors.New("message not found")
	ErrSessionOwnership = errors.New("session does not belong to user")
	ErrInvalidRole      = errors.New("invalid message role")
	ErrEmptyContent     = errors.New("message content required")
)

type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type chatQueries interface {
	CreateSession(ctx context.Context, arg db.CreateSessionParams) (db.ChatSession, error)
	GetSession(ctx context.Context, id uuid.UUID) (db.ChatSession, error)
	ListSessionsByUser(ctx context.Context, userID uuid.UUID) ([]db.ChatSession, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error
	RecomputeSessionRollup(ctx context.Context, arg db.RecomputeSessionRollupParams) (db.ChatSession, error)
	InsertMessage(ctx context.Context, arg db.InsertMessageParams) (db.ChatMessage, error)
	UpdateMessage(ctx context.Context, arg db.UpdateMessageParams) (db.ChatMessage, error)
	GetMessage(ctx context.Context, id uuid.UUID) (db.ChatMessage, error)
	DeleteMessage(ctx context.Context, id uuid.UUID) error
	ListSessionMessages(ctx context.Context, sessionID uuid.UUID) ([]db.ChatMessage, error)

	InsertMessageCost(ctx context.Context, arg db.InsertMessageCostParams) (db.MessageCost, error)
	GetMessageCost(ctx context.Context, messageID uuid.UUID) (db.MessageCost, error)

	UpsertDailyUsage(ctx context.Context, arg db.UpsertDailyUsageParams) error
	GetDailyUsage(ctx context.Context, arg db.GetDailyUsageParams) (db.DailyUsage, error)
	ListDailyUsageRange(ctx context.Context, arg db.ListDailyUsageRangeParams) ([]db.DailyUsage, error)
	DeleteDailyUsageBefore(ctx context.Context, cutoff time.Time) (int64, error)
	IncrementLifetimeUsage(ctx context.Context, arg db.IncrementLifetimeUsageParams) error
}

// Service coordinates the message write cascade: message insert, session
// rollup recompute, cost snapshot and daily usage accrual commit atomically.
type Service struct {
	pool          txBeginner
	queries       *db.Queries
	costs         *costing.Service
	usage         *usage.Service
	logger        *slog.Logger
	previewLength int32
	now           func() time.Time
}

func NewService(pool txBeginner, queries *db.Queries, costs *costing.Service, usageSvc *usage.Service, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		pool:          pool,
		queries:       queries,
		costs:         costs,
		usage:         usageSvc,
		logger:        logger,
		previewLength: defaultPreviewLength,
		now:           time.Now,
	}
}

// CreateSession opens a new session for the user and counts it toward the
// day's sessions_created.
func (s *Service) CreateSession(ctx context.Context, userID uuid.UUID, title string) (db.ChatSession, error) {
	if s == nil || s.pool == nil || s.queries == nil {
		return db.ChatSession{}, ErrNotConfigured
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return db.ChatSession{}, fmt.Errorf("begin session create: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	q := s.queries.WithTx(tx)
	session, err := q.CreateSession(ctx, db.CreateSessionParams{
		ID:     uuid.New(),
		UserID: userID,
		Title:  strings.TrimSpace(title),
	})
	if err != nil {
		return db.ChatSession{}, fmt.Errorf("create session: %w", err)
	}

	err = s.usage.RecordActivity(ctx, q, usage.Activity{
		UserID:          userID,
		OccurredAt:      session.CreatedAt,
		SessionsCreated: 1,
	})
	if err != nil {
		return db.ChatSession{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return db.ChatSession{}, fmt.Errorf("commit session create: %w", err)
	}
	return session, nil
}

// WriteMessageInput describes a message to append. Streaming marks an
// assistant message whose content and output tokens arrive later through
// FinishMessage; cost and usage accrual wait until then.
type WriteMessageInput struct {
	SessionID    uuid.UUID
	UserID       uuid.UUID
	Role         string
	Content      string
	Model        string
	InputTokens  int64
	OutputTokens int64
	ElapsedMs    int64
	ErrorMessage string
	ExtraUnits   int64
	Streaming    bool
}

// WriteMessageResult is what one committed message write produced.
type WriteMessageResult struct {
	Message db.ChatMessage
	Session db.ChatSession
	Cost    *db.MessageCost
}

// WriteMessage appends a message and commits the whole cascade atomically:
// the message row, the session rollup recompute, the cost snapshot for
// assistant messages and the sender's daily usage row all land together or
// not at all.
func (s *Service) WriteMessage(ctx context.Context, in WriteMessageInput) (WriteMessageResult, error) {
	if s == nil || s.pool == nil || s.queries == nil {
		return WriteMessageResult{}, ErrNotConfigured
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return WriteMessageResult{}, fmt.Errorf("begin message write: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	result, err := s.writeMessageTx(ctx, s.queries.WithTx(tx), in)
	if err != nil {
		return WriteMessageResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return WriteMessageResult{}, fmt.Errorf("commit message write: %w", err)
	}
	return result, nil
}

func (s *Service) writeMessageTx(ctx context.Context, q chatQueries, in WriteMessageInput) (WriteMessageResult, error) {
	role := strings.ToLower(strings.TrimSpace(in.Role))
	switch role {
	case RoleUser, RoleAssistant, RoleSystem:
	default:
		return WriteMessageResult{}, ErrInvalidRole
	}
	streaming := in.Streaming && role == RoleAssistant
	if strings.TrimSpace(in.Content) == "" && in.ErrorMessage == "" && !streaming {
		return WriteMessageResult{}, ErrEmptyContent
	}

	session, err := q.GetSession(ctx, in.SessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return WriteMessageResult{}, ErrSessionNotFound
		}
		return WriteMessageResult{}, fmt.Errorf("load session: %w", err)
	}
	if in.UserID != uuid.Nil && session.UserID != in.UserID {
		return WriteMessageResult{}, ErrSessionOwnership
	}

	message, err := q.InsertMessage(ctx, db.InsertMessageParams{
		ID:           uuid.New(),
		SessionID:    in.SessionID,
		Role:         role,
		Content:      in.Content,
		Model:        in.Model,
		InputTokens:  in.InputTokens,
		OutputTokens: in.OutputTokens,
		ElapsedMs:    in.ElapsedMs,
		ErrorMessage: in.ErrorMessage,
	})
	if err != nil {
		return WriteMessageResult{}, fmt.Errorf("insert message: %w", err)
	}

	updated, err := q.RecomputeSessionRollup(ctx, db.RecomputeSessionRollupParams{
		SessionID:     in.SessionID,
		PreviewLength: s.previewLength,
	})
	if err != nil {
		return WriteMessageResult{}, fmt.Errorf("recompute session rollup: %w", err)
	}

	result := WriteMessageResult{Message: message, Session: updated}

	// A streamed assistant message settles its cost and usage in
	// FinishMessage, once the final token counts are known.
	if streaming {
		return result, nil
	}

	var costMicros int64
	if role == RoleAssistant {
		cost, err := s.costs.RecordCost(ctx, q, costing.CostInput{
			MessageID:    message.ID,
			Model:        in.Model,
			InputTokens:  in.InputTokens,
			OutputTokens: in.OutputTokens,
			ExtraUnits:   in.ExtraUnits,
		})
		if err != nil {
			return WriteMessageResult{}, fmt.Errorf("record message cost: %w", err)
		}
		result.Cost = &cost
		costMicros = cost.TotalCostMicros
	}

	act := usage.Activity{
		UserID:        session.UserID,
		OccurredAt:    message.CreatedAt,
		InputTokens:   in.InputTokens,
		OutputTokens:  in.OutputTokens,
		Model:         in.Model,
		CostUsdMicros: costMicros,
	}
	if role == RoleAssistant {
		act.MessagesReceived = 1
	} else {
		act.MessagesSent = 1
	}
	if err := s.usage.RecordActivity(ctx, q, act); err != nil {
		return WriteMessageResult{}, err
	}

	return result, nil
}

// FinishMessageInput carries the final state of a streamed assistant message.
type FinishMessageInput struct {
	MessageID    uuid.UUID
	Content      string
	OutputTokens int64
	ElapsedMs    int64
	ErrorMessage string
	ExtraUnits   int64
}

// FinishMessage applies the completion update to a streamed assistant
// message, recomputes the rollup and records the cost snapshot. Costing
// happens here rather than at insert time because output tokens are only
// known once the stream ends.
func (s *Service) FinishMessage(ctx context.Context, in FinishMessageInput) (WriteMessageResult, error) {
	if s == nil || s.pool == nil || s.queries == nil {
		return WriteMessageResult{}, ErrNotConfigured
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return WriteMessageResult{}, fmt.Errorf("begin message finish: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	result, err := s.finishMessageTx(ctx, s.queries.WithTx(tx), in)
	if err != nil {
		return WriteMessageResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return WriteMessageResult{}, fmt.Errorf("commit message finish: %w", err)
	}
	return result, nil
}

func (s *Service) finishMessageTx(ctx context.Context, q chatQueries, in FinishMessageInput) (WriteMessageResult, error) {
	message, err := q.UpdateMessage(ctx, db.UpdateMessageParams{
		ID:           in.MessageID,
		Content:      in.Content,
		OutputTokens: in.OutputTokens,
		ElapsedMs:    in.ElapsedMs,
		ErrorMessage: in.ErrorMessage,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return WriteMessageResult{}, ErrMessageNotFound
		}
		return WriteMessageResult{}, fmt.Errorf("update message: %w", err)
	}

	session, err := q.RecomputeSessionRollup(ctx, db.RecomputeSessionRollupParams{
		SessionID:     message.SessionID,
		PreviewLength: s.previewLength,
	})
	if err != nil {
		return WriteMessageResult{}, fmt.Errorf("recompute session rollup: %w", err)
	}

	result := WriteMessageResult{Message: message, Session: session}
	if message.Role != RoleAssistant {
		return result, nil
	}

	// An existing cost row means this message was already settled at insert
	// time; repeating the snapshot and the usage accrual would double-bill.
	existing, err := q.GetMessageCost(ctx, message.ID)
	switch {
	case err == nil:
		result.Cost = &existing
		return result, nil
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return WriteMessageResult{}, fmt.Errorf("check message cost: %w", err)
	}

	cost, err := s.costs.RecordCost(ctx, q, costing.CostInput{
		MessageID:    message.ID,
		Model:        message.Model,
		InputTokens:  message.InputTokens,
		OutputTokens: message.OutputTokens,
		ExtraUnits:   in.ExtraUnits,
	})
	if err != nil {
		return WriteMessageResult{}, fmt.Errorf("record message cost: %w", err)
	}
	result.Cost = &cost

	err = s.usage.RecordActivity(ctx, q, usage.Activity{
		UserID:           session.UserID,
		OccurredAt:       message.CreatedAt,
		MessagesReceived: 1,
		InputTokens:      message.InputTokens,
		OutputTokens:     message.OutputTokens,
		Model:            message.Model,
		CostUsdMicros:    cost.TotalCostMicros,
	})
	if err != nil {
		return WriteMessageResult{}, err
	}

	return result, nil
}

// DeleteMessage removes a message and brings the session rollup back in line
// within the same transaction.
func (s *Service) DeleteMessage(ctx context.Context, messageID uuid.UUID) (db.ChatSession, error) {
	if s == nil || s.pool == nil || s.queries == nil {
		return db.ChatSession{}, ErrNotConfigured
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return db.ChatSession{}, fmt.Errorf("begin message delete: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	q := s.queries.WithTx(tx)
	message, err := q.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return db.ChatSession{}, ErrMessageNotFound
		}
		return db.ChatSession{}, fmt.Errorf("load message: %w", err)
	}
	if err := q.DeleteMessage(ctx, messageID); err != nil {
		return db.ChatSession{}, fmt.Errorf("delete message: %w", err)
	}
	session, err := q.RecomputeSessionRollup(ctx, db.RecomputeSessionRollupParams{
		SessionID:     message.SessionID,
		PreviewLength: s.previewLength,
	})
	if err != nil {
		return db.ChatSession{}, fmt.Errorf("recompute session rollup: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return db.ChatSession{}, fmt.Errorf("commit message delete: %w", err)
	}
	return session, nil
}

// DeleteSession removes the session and its messages. Daily usage rows are
// deliberately left untouched; usage already happened.
func (s *Service) DeleteSession(ctx context.Context, sessionID, userID uuid.UUID) error {
	if s == nil || s.queries == nil {
		return ErrNotConfigured
	}
	session, err := s.queries.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("load session: %w", err)
	}
	if userID != uuid.Nil && session.UserID != userID {
		return ErrSessionOwnership
	}
	if err := s.queries.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Session returns the session with its current rollup state.
func (s *Service) Session(ctx context.Context, sessionID uuid.UUID) (db.ChatSession, error) {
	if s == nil || s.queries == nil {
		return db.ChatSession{}, ErrNotConfigured
	}
	session, err := s.queries.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return db.ChatSession{}, ErrSessionNotFound
		}
		return db.ChatSession{}, fmt.Errorf("load session: %w", err)
	}
	return session, nil
}

// Sessions lists the user's sessions ordered by recent activity.
func (s *Service) Sessions(ctx context.Context, userID uuid.UUID) ([]db.ChatSession, error) {
	if s == nil || s.queries == nil {
		return nil, ErrNotConfigured
	}
	sessions, err := s.queries.ListSessionsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// Messages lists a session's messages in chronological order.
func (s *Service) Messages(ctx context.Context, sessionID uuid.UUID) ([]db.ChatMessage, error) {
	if s == nil || s.queries == nil {
		return nil, ErrNotConfigured
	}
	messages, err := s.queries.ListSessionMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

// RepairRollup force-recomputes one session's rollup outside of any message
// mutation. Safe to run at any time because the recompute is a full rescan.
func (s *Service) RepairRollup(ctx context.Context, sessionID uuid.UUID) (db.ChatSession, error) {
	if s == nil || s.queries == nil {
		return db.ChatSession{}, ErrNotConfigured
	}
	session, err := s.queries.RecomputeSessionRollup(ctx, db.RecomputeSessionRollupParams{
		SessionID:     sessionID,
		PreviewLength: s.previewLength,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return db.ChatSession{}, ErrSessionNotFound
		}
		return db.ChatSession{}, fmt.Errorf("recompute session rollup: %w", err)
	}
	return session, nil
}
