// Package tieraccess resolves which catalog models a user's subscription
// tier may select. Resolution is a pure read over the catalog; results are
// cached per tier in Redis until the catalog changes.
package tieraccess

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ncecere/chatstore/backend/internal/cache"
	"github.com/ncecere/chatstore/backend/internal/catalog"
	"github.com/ncecere/chatstore/backend/internal/db"
)

var ErrNotConfigured = errors.New("tier access service not configured")

type tierQueries interface {
	GetUserTier(ctx context.Context, id uuid.UUID) (string, error)
	ListActiveEntriesForTierRank(ctx context.Context, rank int32) ([]db.ModelCatalogEntry, error)
}

// ModelOption is one selectable model as presented to the chat client.
type ModelOption struct {
	ModelID       string       `json:"model_id"`
	Name          string       `json:"name"`
	Description   string       `json:"description,omitempty"`
	ContextLength int64        `json:"context_length,omitempty"`
	Pricing       OptionPrices `json:"pricing"`
	DailyLimit    int64        `json:"daily_limit,omitempty"`
	MonthlyLimit  int64        `json:"monthly_limit,omitempty"`
}

type OptionPrices struct {
	Prompt     float64 `json:"prompt"`
	Completion float64 `json:"completion"`
}

// Service answers "which models can this user pick" with tier inheritance:
// each tier sees everything visible to the tiers below it.
type Service struct {
	queries tierQueries
	cache   *cache.ModelListCache
	logger  *slog.Logger
}

func NewService(queries tierQueries, listCache *cache.ModelListCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{queries: queries, cache: listCache, logger: logger}
}

// ModelsForUser resolves the user's tier and returns their selectable models.
// An unknown user resolves to the free tier rather than failing.
func (s *Service) ModelsForUser(ctx context.Context, userID uuid.UUID) (catalog.Tier, []ModelOption, error) {
	if s == nil || s.queries == nil {
		return catalog.TierFree, nil, ErrNotConfigured
	}

	tier := catalog.TierFree
	if userID != uuid.Nil {
		raw, err := s.queries.GetUserTier(ctx, userID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return catalog.TierFree, nil, fmt.Errorf("resolve user tier: %w", err)
		}
		if err == nil {
			tier = catalog.ParseTier(raw)
		}
	}

	options, err := s.ModelsForTier(ctx, tier)
	if err != nil {
		return tier, nil, err
	}
	return tier, options, nil
}

// ModelsForTier returns the models visible at the tier, lowest visible tier
// first and then by name.
func (s *Service) ModelsForTier(ctx context.Context, tier catalog.Tier) ([]ModelOption, error) {
	if s == nil || s.queries == nil {
		return nil, ErrNotConfigured
	}

	if cached, ok := s.cache.Get(ctx, string(tier)); ok {
		var options []ModelOption
		if err := json.Unmarshal(cached, &options); err == nil {
			return options, nil
		}
		// Poisoned cache entries just fall through to the database.
	}

	entries, err := s.queries.ListActiveEntriesForTierRank(ctx, int32(tier.Rank()))
	if err != nil {
		return nil, fmt.Errorf("list models for tier %s: %w", tier, err)
	}

	options := make([]ModelOption, 0, len(entries))
	for _, entry := range entries {
		options = append(options, ModelOption{
			ModelID:       entry.ModelID,
			Name:          entry.Name,
			Description:   entry.Description,
			ContextLength: entry.ContextLength,
			Pricing: OptionPrices{
				Prompt:     entry.PromptPrice,
				Completion: entry.CompletionPrice,
			},
			DailyLimit:   entry.DailyLimit,
			MonthlyLimit: entry.MonthlyLimit,
		})
	}

	if payload, err := json.Marshal(options); err == nil {
		s.cache.Set(ctx, string(tier), payload)
	}
	return options, nil
}

// InvalidateModelLists drops every cached tier list. Wired as the catalog
// synchronizer's post-run hook and called after operator catalog edits.
func (s *Service) InvalidateModelLists(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.cache.Invalidate(ctx,
		string(catalog.TierFree), string(catalog.TierPro), string(catalog.TierEnterprise))
}
