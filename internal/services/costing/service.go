// Package costing computes and records immutable cost snapshots for
// assistant messages. Prices come from the model catalog with configured
// defaults as fallback, and a pricing failure degrades to a zero-cost record
// instead of blocking the message write.
package costing

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ncecere/chatstore/backend/internal/db"
)

var ErrNotConfigured = errors.New("costing service not configured")

type costQueries interface {
	InsertMessageCost(ctx context.Context, arg db.InsertMessageCostParams) (db.MessageCost, error)
	GetMessageCost(ctx context.Context, messageID uuid.UUID) (db.MessageCost, error)
}

// Service prices assistant messages and persists the resulting snapshots.
type Service struct {
	pricing *PricingReader
	logger  *slog.Logger
}

func NewService(pricing *PricingReader, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{pricing: pricing, logger: logger}
}

// CostInput describes one assistant message to be priced.
type CostInput struct {
	MessageID    uuid.UUID
	Model        string
	InputTokens  int64
	OutputTokens int64
	ExtraUnits   int64
}

// RecordCost resolves pricing, computes the breakdown, and inserts the cost
// row through the supplied queries so it participates in the caller's
// transaction. When pricing cannot be resolved the message is recorded at
// zero cost and the write still succeeds.
func (s *Service) RecordCost(ctx context.Context, q costQueries, in CostInput) (db.MessageCost, error) {
	if s == nil || s.pricing == nil || q == nil {
		return db.MessageCost{}, ErrNotConfigured
	}

	snapshot, err := s.pricing.PriceFor(ctx, in.Model)
	if err != nil {
		s.logger.Warn("pricing lookup failed, recording zero cost",
			slog.String("model", in.Model),
			slog.String("message_id", in.MessageID.String()),
			slog.String("error", err.Error()))
		snapshot = PriceSnapshot{Model: in.Model}
	}

	breakdown := Compute(in.InputTokens, in.OutputTokens, in.ExtraUnits, snapshot)

	return q.InsertMessageCost(ctx, db.InsertMessageCostParams{
		MessageID:            in.MessageID,
		Model:                in.Model,
		InputTokens:          maxInt64(in.InputTokens, 0),
		OutputTokens:         maxInt64(in.OutputTokens, 0),
		ExtraUnits:           breakdown.BilledExtraUnits,
		PromptPrice:          snapshot.PromptPrice.InexactFloat64(),
		CompletionPrice:      snapshot.CompletionPrice.InexactFloat64(),
		ExtraUnitPrice:       snapshot.ExtraUnitPrice.InexactFloat64(),
		PromptCostMicros:     breakdown.PromptCostMicros,
		CompletionCostMicros: breakdown.CompletionCostMicros,
		ExtraCostMicros:      breakdown.ExtraCostMicros,
		TotalCostMicros:      breakdown.TotalCostMicros,
	})
}

// CostFor returns the stored cost snapshot for a message.
func (s *Service) CostFor(ctx context.Context, q costQueries, messageID uuid.UUID) (db.MessageCost, error) {
	if s == nil || q == nil {
		return db.MessageCost{}, ErrNotConfigured
	}
	return q.GetMessageCost(ctx, messageID)
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
