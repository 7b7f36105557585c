// Package admincatalog carries the operator-only catalog mutations: lifecycle
// promotion and the tier visibility flags that sync never touches.
package admincatalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/ncecere/chatstore/backend/internal/catalog"
	"github.com/ncecere/chatstore/backend/internal/db"
)

var (
	ErrNotConfigured = errors.New("admin catalog service not configured")
	ErrUnknownModel  = errors.New("unknown model")
	ErrInvalidStatus = errors.New("invalid catalog status")
)

type adminQueries interface {
	GetCatalogEntry(ctx context.Context, modelID string) (db.ModelCatalogEntry, error)
	ListCatalogEntries(ctx context.Context) ([]db.ModelCatalogEntry, error)
	SetCatalogEntryStatus(ctx context.Context, arg db.SetCatalogEntryStatusParams) (db.ModelCatalogEntry, error)
	SetCatalogEntryAccess(ctx context.Context, arg db.SetCatalogEntryAccessParams) (db.ModelCatalogEntry, error)
}

// Invalidator drops cached tier-resolved model lists after a catalog change.
type Invalidator interface {
	InvalidateModelLists(ctx context.Context) error
}

type Service struct {
	queries     adminQueries
	invalidator Invalidator
	logger      *slog.Logger
}

func NewService(queries adminQueries, invalidator Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{queries: queries, invalidator: invalidator, logger: logger}
}

// List returns every catalog entry regardless of status, ordered by model id.
func (s *Service) List(ctx context.Context) ([]db.ModelCatalogEntry, error) {
	if s == nil || s.queries == nil {
		return nil, ErrNotConfigured
	}
	return s.queries.ListCatalogEntries(ctx)
}

// Entry returns a single catalog entry.
func (s *Service) Entry(ctx context.Context, modelID string) (db.ModelCatalogEntry, error) {
	if s == nil || s.queries == nil {
		return db.ModelCatalogEntry{}, ErrNotConfigured
	}
	entry, err := s.queries.GetCatalogEntry(ctx, modelID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return db.ModelCatalogEntry{}, ErrUnknownModel
		}
		return db.ModelCatalogEntry{}, fmt.Errorf("load catalog entry: %w", err)
	}
	return entry, nil
}

// SetStatus applies an operator lifecycle change. Any of the four states may
// be set directly; this is the only path that can leave disabled.
func (s *Service) SetStatus(ctx context.Context, modelID, status string) (db.ModelCatalogEntry, error) {
	if s == nil || s.queries == nil {
		return db.ModelCatalogEntry{}, ErrNotConfigured
	}
	next := catalog.Status(status)
	if !next.Valid() {
		return db.ModelCatalogEntry{}, ErrInvalidStatus
	}

	entry, err := s.queries.SetCatalogEntryStatus(ctx, db.SetCatalogEntryStatusParams{
		ModelID: modelID,
		Status:  string(next),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return db.ModelCatalogEntry{}, ErrUnknownModel
		}
		return db.ModelCatalogEntry{}, fmt.Errorf("set catalog status: %w", err)
	}

	s.logger.Info("catalog status changed",
		slog.String("model_id", modelID),
		slog.String("status", string(next)))
	s.invalidate(ctx)
	return entry, nil
}

// AccessUpdate is the operator-controlled visibility state for one model.
type AccessUpdate struct {
	ModelID        string
	FreeTier       bool
	ProTier        bool
	EnterpriseTier bool
	DailyLimit     int64
	MonthlyLimit   int64
}

// SetAccess replaces the tier flags and usage limits on an entry.
func (s *Service) SetAccess(ctx context.Context, update AccessUpdate) (db.ModelCatalogEntry, error) {
	if s == nil || s.queries == nil {
		return db.ModelCatalogEntry{}, ErrNotConfigured
	}
	entry, err := s.queries.SetCatalogEntryAccess(ctx, db.SetCatalogEntryAccessParams{
		ModelID:        update.ModelID,
		FreeTier:       update.FreeTier,
		ProTier:        update.ProTier,
		EnterpriseTier: update.EnterpriseTier,
		DailyLimit:     update.DailyLimit,
		MonthlyLimit:   update.MonthlyLimit,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return db.ModelCatalogEntry{}, ErrUnknownModel
		}
		return db.ModelCatalogEntry{}, fmt.Errorf("set catalog access: %w", err)
	}

	s.logger.Info("catalog access changed",
		slog.String("model_id", update.ModelID),
		slog.Bool("free", update.FreeTier),
		slog.Bool("pro", update.ProTier),
		slog.Bool("enterprise", update.EnterpriseTier))
	s.invalidate(ctx)
	return entry, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.InvalidateModelLists(ctx); err != nil {
		s.logger.Warn("failed to invalidate model list cache",
			slog.String("error", err.Error()))
	}
}
