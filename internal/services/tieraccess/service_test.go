package tieraccess

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/ncecere/chatstore/backend/internal/cache"
	"github.com/ncecere/chatstore/backend/internal/catalog"
	"github.com/ncecere/chatstore/backend/internal/db"
)

type stubTierQueries struct {
	getUserTierFn func(ctx context.Context, id uuid.UUID) (string, error)
	listFn        func(ctx context.Context, rank int32) ([]db.ModelCatalogEntry, error)
	listCalls     int
}

func (s *stubTierQueries) GetUserTier(ctx context.Context, id uuid.UUID) (string, error) {
	if s.getUserTierFn != nil {
		return s.getUserTierFn(ctx, id)
	}
	return "", pgx.ErrNoRows
}

func (s *stubTierQueries) ListActiveEntriesForTierRank(ctx context.Context, rank int32) ([]db.ModelCatalogEntry, error) {
	s.listCalls++
	if s.listFn != nil {
		return s.listFn(ctx, rank)
	}
	return nil, nil
}

func newTestCache(t *testing.T) *cache.ModelListCache {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewModelListCache(client, time.Minute)
}

func freeEntries() []db.ModelCatalogEntry {
	return []db.ModelCatalogEntry{
		{
			ModelID:         "acme/basic",
			Name:            "Basic",
			ContextLength:   8192,
			PromptPrice:     0.000001,
			CompletionPrice: 0.000002,
			FreeTier:        true,
			DailyLimit:      20,
		},
	}
}

func TestModelsForUserUnknownUserGetsFreeTier(t *testing.T) {
	t.Parallel()

	queries := &stubTierQueries{
		listFn: func(ctx context.Context, rank int32) ([]db.ModelCatalogEntry, error) {
			require.Equal(t, int32(0), rank)
			return freeEntries(), nil
		},
	}
	svc := NewService(queries, newTestCache(t), nil)

	tier, options, err := svc.ModelsForUser(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Equal(t, catalog.TierFree, tier)
	require.Len(t, options, 1)
	require.Equal(t, "acme/basic", options[0].ModelID)
	require.Equal(t, int64(20), options[0].DailyLimit)
	require.Equal(t, 0.000001, options[0].Pricing.Prompt)
}

func TestModelsForUserNilUUIDSkipsLookup(t *testing.T) {
	t.Parallel()

	queries := &stubTierQueries{
		getUserTierFn: func(ctx context.Context, id uuid.UUID) (string, error) {
			t.Fatal("tier lookup not expected for the nil uuid")
			return "", nil
		},
	}
	svc := NewService(queries, newTestCache(t), nil)

	tier, _, err := svc.ModelsForUser(context.Background(), uuid.Nil)
	require.NoError(t, err)
	require.Equal(t, catalog.TierFree, tier)
}

func TestModelsForUserResolvesStoredTier(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	queries := &stubTierQueries{
		getUserTierFn: func(ctx context.Context, id uuid.UUID) (string, error) {
			require.Equal(t, userID, id)
			return "enterprise", nil
		},
		listFn: func(ctx context.Context, rank int32) ([]db.ModelCatalogEntry, error) {
			require.Equal(t, int32(2), rank)
			return freeEntries(), nil
		},
	}
	svc := NewService(queries, newTestCache(t), nil)

	tier, _, err := svc.ModelsForUser(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, catalog.TierEnterprise, tier)
}

func TestModelsForUserStorageErrorPropagates(t *testing.T) {
	t.Parallel()

	boom := errors.New("db down")
	queries := &stubTierQueries{
		getUserTierFn: func(ctx context.Context, id uuid.UUID) (string, error) {
			return "", boom
		},
	}
	svc := NewService(queries, newTestCache(t), nil)

	_, _, err := svc.ModelsForUser(context.Background(), uuid.New())
	require.ErrorIs(t, err, boom)
}

func TestModelsForTierServedFromCacheOnSecondRead(t *testing.T) {
	t.Parallel()

	queries := &stubTierQueries{
		listFn: func(ctx context.Context, rank int32) ([]db.ModelCatalogEntry, error) {
			return freeEntries(), nil
		},
	}
	svc := NewService(queries, newTestCache(t), nil)

	first, err := svc.ModelsForTier(context.Background(), catalog.TierFree)
	require.NoError(t, err)
	second, err := svc.ModelsForTier(context.Background(), catalog.TierFree)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, 1, queries.listCalls)
}

func TestInvalidateModelListsForcesReload(t *testing.T) {
	t.Parallel()

	queries := &stubTierQueries{
		listFn: func(ctx context.Context, rank int32) ([]db.ModelCatalogEntry, error) {
			return freeEntries(), nil
		},
	}
	svc := NewService(queries, newTestCache(t), nil)

	_, err := svc.ModelsForTier(context.Background(), catalog.TierFree)
	require.NoError(t, err)
	require.NoError(t, svc.InvalidateModelLists(context.Background()))

	_, err = svc.ModelsForTier(context.Background(), catalog.TierFree)
	require.NoError(t, err)
	require.Equal(t, 2, queries.listCalls)
}

func TestModelsForTierWorksWithoutCache(t *testing.T) {
	t.Parallel()

	queries := &stubTierQueries{
		listFn: func(ctx context.Context, rank int32) ([]db.ModelCatalogEntry, error) {
			return freeEntries(), nil
		},
	}
	svc := NewService(queries, nil, nil)

	options, err := svc.ModelsForTier(context.Background(), catalog.TierPro)
	require.NoError(t, err)
	require.Len(t, options, 1)
	require.NoError(t, svc.InvalidateModelLists(context.Background()))
}
