package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type UpsertDailyUsageParams struct {
	UserID           uuid.UUID
	UsageDate        time.Time
	MessagesSent     int64
	MessagesReceived int64
	InputTokens      int64
	OutputTokens     int64
	ModelUsed        string
	SessionsCreated  int64
	CostUsdMicros    int64
}

// UpsertDailyUsage merges activity counters into the user's row for the day
// with a single atomic insert-or-increment statement. The per-model histogram
// is bumped by one for ModelUsed when set; a read-modify-write at the
// application layer would lose updates under concurrent writers.
func (q *Queries) UpsertDailyUsage(ctx context.Context, arg UpsertDailyUsageParams) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO daily_usage (
			user_id, usage_date, messages_sent, messages_received,
			input_tokens, output_tokens, total_tokens, models_used,
			sessions_created, cost_usd_micros, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $5 + $6,
			CASE WHEN $7::text = '' THEN '{}'::jsonb ELSE jsonb_build_object($7::text, 1) END,
			$8, $9, now()
		)
		ON CONFLICT (user_id, usage_date) DO UPDATE SET
			messages_sent     = daily_usage.messages_sent + EXCLUDED.messages_sent,
			messages_received = daily_usage.messages_received + EXCLUDED.messages_received,
			input_tokens      = daily_usage.input_tokens + EXCLUDED.input_tokens,
			output_tokens     = daily_usage.output_tokens + EXCLUDED.output_tokens,
			total_tokens      = daily_usage.total_tokens + EXCLUDED.total_tokens,
			models_used       = CASE WHEN $7::text = '' THEN daily_usage.models_used
				ELSE jsonb_set(daily_usage.models_used, ARRAY[$7::text],
					to_jsonb(COALESCE((daily_usage.models_used->>$7::text)::bigint, 0) + 1)) END,
			sessions_created  = daily_usage.sessions_created + EXCLUDED.sessions_created,
			cost_usd_micros   = daily_usage.cost_usd_micros + EXCLUDED.cost_usd_micros,
			updated_at        = now()`,
		arg.UserID, arg.UsageDate, arg.MessagesSent, arg.MessagesReceived,
		arg.InputTokens, arg.OutputTokens, arg.ModelUsed,
		arg.SessionsCreated, arg.CostUsdMicros)
	return err
}

type GetDailyUsageParams struct {
	UserID    uuid.UUID
	UsageDate time.Time
}

func (q *Queries) GetDailyUsage(ctx context.Context, arg GetDailyUsageParams) (DailyUsage, error) {
	row := q.db.QueryRow(ctx, `
		SELECT user_id, usage_date, messages_sent, messages_received, input_tokens,
			output_tokens, total_tokens, models_used, sessions_created, cost_usd_micros, updated_at
		FROM daily_usage
		WHERE user_id = $1 AND usage_date = $2`,
		arg.UserID, arg.UsageDate)
	return scanDailyUsage(row)
}

type ListDailyUsageRangeParams struct {
	UserID uuid.UUID
	Start  time.Time
	End    time.Time
}

// ListDailyUsageRange returns the user's rows for [Start, End) ordered by date.
func (q *Queries) ListDailyUsageRange(ctx context.Context, arg ListDailyUsageRangeParams) ([]DailyUsage, error) {
	rows, err := q.db.Query(ctx, `
		SELECT user_id, usage_date, messages_sent, messages_received, input_tokens,
			output_tokens, total_tokens, models_used, sessions_created, cost_usd_micros, updated_at
		FROM daily_usage
		WHERE user_id = $1 AND usage_date >= $2 AND usage_date < $3
		ORDER BY usage_date ASC`,
		arg.UserID, arg.Start, arg.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]DailyUsage, 0)
	for rows.Next() {
		rec, err := scanDailyUsage(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteDailyUsageBefore removes rows older than the retention cutoff and
// returns how many were deleted.
func (q *Queries) DeleteDailyUsageBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM daily_usage WHERE usage_date < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type IncrementLifetimeUsageParams struct {
	UserID   uuid.UUID
	Messages int64
	Tokens   int64
	Sessions int64
}

// IncrementLifetimeUsage bumps the denormalized totals on the user profile.
// Kept for fast profile reads; not transactionally reconciled against the
// per-day rows.
func (q *Queries) IncrementLifetimeUsage(ctx context.Context, arg IncrementLifetimeUsageParams) error {
	_, err := q.db.Exec(ctx, `
		UPDATE users SET
			total_messages = total_messages + $2,
			total_tokens   = total_tokens + $3,
			total_sessions = total_sessions + $4,
			updated_at     = now()
		WHERE id = $1`,
		arg.UserID, arg.Messages, arg.Tokens, arg.Sessions)
	return err
}

func scanDailyUsage(row rowScanner) (DailyUsage, error) {
	var d DailyUsage
	var models map[string]int64
	err := row.Scan(&d.UserID, &d.UsageDate, &d.MessagesSent, &d.MessagesReceived,
		&d.InputTokens, &d.OutputTokens, &d.TotalTokens, &models,
		&d.SessionsCreated, &d.CostUsdMicros, &d.UpdatedAt)
	if err != nil {
		return DailyUsage{}, err
	}
	if models == nil {
		models = make(map[string]int64)
	}
	d.ModelsUsed = models
	return d, nil
}
