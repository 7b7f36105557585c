package db

import (
	"context"

	"github.com/google/uuid"
)

type InsertMessageCostParams struct {
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
}

// InsertMessageCost writes the immutable cost snapshot for one assistant
// message. The row is never updated; historical prices stay authoritative.
func (q *Queries) InsertMessageCost(ctx context.Context, arg InsertMessageCostParams) (MessageCost, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO message_costs (
			message_id, model, input_tokens, output_tokens, extra_units,
			prompt_price, completion_price, extra_unit_price,
			prompt_cost_micros, completion_cost_micros, extra_cost_micros, total_cost_micros
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING message_id, model, input_tokens, output_tokens, extra_units,
			prompt_price, completion_price, extra_unit_price,
			prompt_cost_micros, completion_cost_micros, extra_cost_micros, total_cost_micros, created_at`,
		arg.MessageID, arg.Model, arg.InputTokens, arg.OutputTokens, arg.ExtraUnits,
		arg.PromptPrice, arg.CompletionPrice, arg.ExtraUnitPrice,
		arg.PromptCostMicros, arg.CompletionCostMicros, arg.ExtraCostMicros, arg.TotalCostMicros)
	return scanMessageCost(row)
}

func (q *Queries) GetMessageCost(ctx context.Context, messageID uuid.UUID) (MessageCost, error) {
	row := q.db.QueryRow(ctx, `
		SELECT message_id, model, input_tokens, output_tokens, extra_units,
			prompt_price, completion_price, extra_unit_price,
			prompt_cost_micros, completion_cost_micros, extra_cost_micros, total_cost_micros, created_at
		FROM message_costs WHERE message_id = $1`, messageID)
	return scanMessageCost(row)
}

func scanMessageCost(row rowScanner) (MessageCost, error) {
	var c MessageCost
	err := row.Scan(&c.MessageID, &c.Model, &c.InputTokens, &c.OutputTokens, &c.ExtraUnits,
		&c.PromptPrice, &c.CompletionPrice, &c.ExtraUnitPrice,
		&c.PromptCostMicros, &c.CompletionCostMicros, &c.ExtraCostMicros, &c.TotalCostMicros, &c.CreatedAt)
	if err != nil {
		return MessageCost{}, err
	}
	return c, nil
}
