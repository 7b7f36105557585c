// Package usage maintains the per-user daily activity rollups and the
// denormalized lifetime totals on user profiles.
package usage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ncecere/chatstore/backend/internal/db"
	"github.com/ncecere/chatstore/backend/internal/timeutil"
)

var (
	ErrNotConfigured = errors.New("usage service not configured")
	ErrInvalidRange  = errors.New("invalid usage range")
)

type usageQueries interface {
	UpsertDailyUsage(ctx context.Context, arg db.UpsertDailyUsageParams) error
	GetDailyUsage(ctx context.Context, arg db.GetDailyUsageParams) (db.DailyUsage, error)
	ListDailyUsageRange(ctx context.Context, arg db.ListDailyUsageRangeParams) ([]db.DailyUsage, error)
	DeleteDailyUsageBefore(ctx context.Context, cutoff time.Time) (int64, error)
	IncrementLifetimeUsage(ctx context.Context, arg db.IncrementLifetimeUsageParams) error
}

// Service accumulates activity into daily_usage rows and serves usage reads.
// All writes funnel through a single atomic upsert so concurrent messages for
// the same user and day never lose increments.
type Service struct {
	queries  usageQueries
	logger   *slog.Logger
	location *time.Location
	now      func() time.Time
}

func NewService(queries usageQueries, loc *time.Location, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		queries:  queries,
		logger:   logger,
		location: timeutil.EnsureLocation(loc),
		now:      time.Now,
	}
}

// Activity is one message's contribution to the sender's daily rollup.
type Activity struct {
	UserID           uuid.UUID
	OccurredAt       time.Time
	MessagesSent     int64
	MessagesReceived int64
	InputTokens      int64
	OutputTokens     int64
	Model            string
	SessionsCreated  int64
	CostUsdMicros    int64
}

// RecordActivity merges one unit of activity into the user's row for the
// calendar date of OccurredAt in the reporting timezone. Queries may belong
// to an open transaction so the rollup commits with the message itself.
func (s *Service) RecordActivity(ctx context.Context, q usageQueries, act Activity) error {
	if s == nil || q == nil {
		return ErrNotConfigured
	}
	occurred := act.OccurredAt
	if occurred.IsZero() {
		occurred = s.now()
	}
	err := q.UpsertDailyUsage(ctx, db.UpsertDailyUsageParams{
		UserID:           act.UserID,
		UsageDate:        timeutil.TruncateToDay(occurred, s.location),
		MessagesSent:     act.MessagesSent,
		MessagesReceived: act.MessagesReceived,
		InputTokens:      act.InputTokens,
		OutputTokens:     act.OutputTokens,
		ModelUsed:        act.Model,
		SessionsCreated:  act.SessionsCreated,
		CostUsdMicros:    act.CostUsdMicros,
	})
	if err != nil {
		return fmt.Errorf("upsert daily usage: %w", err)
	}

	if act.MessagesSent > 0 || act.MessagesReceived > 0 || act.InputTokens > 0 || act.OutputTokens > 0 || act.SessionsCreated > 0 {
		err = q.IncrementLifetimeUsage(ctx, db.IncrementLifetimeUsageParams{
			UserID:   act.UserID,
			Messages: act.MessagesSent + act.MessagesReceived,
			Tokens:   act.InputTokens + act.OutputTokens,
			Sessions: act.SessionsCreated,
		})
		if err != nil {
			return fmt.Errorf("increment lifetime usage: %w", err)
		}
	}
	return nil
}

// DailyUsageFor returns the user's rollup for one calendar date. A day with
// no recorded activity returns a zeroed record rather than an error.
func (s *Service) DailyUsageFor(ctx context.Context, userID uuid.UUID, date time.Time) (db.DailyUsage, error) {
	if s == nil || s.queries == nil {
		return db.DailyUsage{}, ErrNotConfigured
	}
	day := timeutil.TruncateToDay(date, s.location)
	rec, err := s.queries.GetDailyUsage(ctx, db.GetDailyUsageParams{UserID: userID, UsageDate: day})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return db.DailyUsage{
				UserID:     userID,
				UsageDate:  day,
				ModelsUsed: map[string]int64{},
			}, nil
		}
		return db.DailyUsage{}, fmt.Errorf("get daily usage: %w", err)
	}
	return rec, nil
}

// UsageRange returns the user's rollups inside the window, ordered by date.
func (s *Service) UsageRange(ctx context.Context, userID uuid.UUID, window timeutil.Window) ([]db.DailyUsage, error) {
	if s == nil || s.queries == nil {
		return nil, ErrNotConfigured
	}
	start, end := window.Bounds()
	if !end.After(start) {
		return nil, ErrInvalidRange
	}
	records, err := s.queries.ListDailyUsageRange(ctx, db.ListDailyUsageRangeParams{
		UserID: userID,
		Start:  timeutil.TruncateToDay(start, s.location),
		End:    end,
	})
	if err != nil {
		return nil, fmt.Errorf("list daily usage: %w", err)
	}
	return records, nil
}

// PruneBefore deletes rollups older than the retention horizon and returns
// how many rows were removed.
func (s *Service) PruneBefore(ctx context.Context, retention time.Duration) (int64, error) {
	if s == nil || s.queries == nil {
		return 0, ErrNotConfigured
	}
	if retention <= 0 {
		return 0, nil
	}
	cutoff := timeutil.TruncateToDay(s.now().Add(-retention), s.location)
	deleted, err := s.queries.DeleteDailyUsageBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune daily usage: %w", err)
	}
	if deleted > 0 {
		s.logger.Info("pruned daily usage rows",
			slog.Int64("deleted", deleted),
			slog.Time("cutoff", cutoff))
	}
	return deleted, nil
}
