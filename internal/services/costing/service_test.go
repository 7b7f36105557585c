package costing

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	decimal "github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ncecere/chatstore/backend/internal/config"
	"github.com/ncecere/chatstore/backend/internal/db"
)

type stubCatalogQueries struct {
	getCatalogEntryFn func(ctx context.Context, modelID string) (db.ModelCatalogEntry, error)
}

func (s *stubCatalogQueries) GetCatalogEntry(ctx context.Context, modelID string) (db.ModelCatalogEntry, error) {
	if s.getCatalogEntryFn != nil {
		return s.getCatalogEntryFn(ctx, modelID)
	}
	return db.ModelCatalogEntry{}, pgx.ErrNoRows
}

type stubCostQueries struct {
	insertMessageCostFn func(ctx context.Context, arg db.InsertMessageCostParams) (db.MessageCost, error)
	getMessageCostFn    func(ctx context.Context, messageID uuid.UUID) (db.MessageCost, error)
}

func (s *stubCostQueries) InsertMessageCost(ctx context.Context, arg db.InsertMessageCostParams) (db.MessageCost, error) {
	if s.insertMessageCostFn != nil {
		return s.insertMessageCostFn(ctx, arg)
	}
	return db.MessageCost{
		MessageID:            arg.MessageID,
		Model:                arg.Model,
		InputTokens:          arg.InputTokens,
		OutputTokens:         arg.OutputTokens,
		ExtraUnits:           arg.ExtraUnits,
		PromptPrice:          arg.PromptPrice,
		CompletionPrice:      arg.CompletionPrice,
		ExtraUnitPrice:       arg.ExtraUnitPrice,
		PromptCostMicros:     arg.PromptCostMicros,
		CompletionCostMicros: arg.CompletionCostMicros,
		ExtraCostMicros:      arg.ExtraCostMicros,
		TotalCostMicros:      arg.TotalCostMicros,
	}, nil
}

func (s *stubCostQueries) GetMessageCost(ctx context.Context, messageID uuid.UUID) (db.MessageCost, error) {
	if s.getMessageCostFn != nil {
		return s.getMessageCostFn(ctx, messageID)
	}
	return db.MessageCost{}, pgx.ErrNoRows
}

func decimalFromFloat(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func TestPriceForUsesCatalogEntry(t *testing.T) {
	t.Parallel()

	catalog := &stubCatalogQueries{
		getCatalogEntryFn: func(ctx context.Context, modelID string) (db.ModelCatalogEntry, error) {
			require.Equal(t, "acme/gpt-12", modelID)
			return db.ModelCatalogEntry{
				ModelID:         modelID,
				PromptPrice:     0.000002,
				CompletionPrice: 0.000004,
				WebSearchPrice:  0.01,
			}, nil
		},
	}
	reader := NewPricingReader(catalog, config.PricingConfig{})

	snap, err := reader.PriceFor(context.Background(), "acme/gpt-12")
	require.NoError(t, err)
	require.Equal(t, "acme/gpt-12", snap.Model)
	require.True(t, snap.PromptPrice.Equal(decimalFromFloat(0.000002)))
	require.True(t, snap.CompletionPrice.Equal(decimalFromFloat(0.000004)))
	require.True(t, snap.ExtraUnitPrice.Equal(decimalFromFloat(0.01)))
}

func TestPriceForUnknownModelFallsBackToDefaults(t *testing.T) {
	t.Parallel()

	reader := NewPricingReader(&stubCatalogQueries{}, config.PricingConfig{
		DefaultPromptPrice:     0.000001,
		DefaultCompletionPrice: 0.000002,
	})

	snap, err := reader.PriceFor(context.Background(), "nobody/knows")
	require.NoError(t, err)
	require.True(t, snap.PromptPrice.Equal(decimalFromFloat(0.000001)))
	require.True(t, snap.CompletionPrice.Equal(decimalFromFloat(0.000002)))
}

func TestPriceForEmptyModelSkipsLookup(t *testing.T) {
	t.Parallel()

	catalog := &stubCatalogQueries{
		getCatalogEntryFn: func(ctx context.Context, modelID string) (db.ModelCatalogEntry, error) {
			t.Fatal("catalog should not be queried for an empty model id")
			return db.ModelCatalogEntry{}, nil
		},
	}
	reader := NewPricingReader(catalog, config.PricingConfig{DefaultPromptPrice: 0.5})

	snap, err := reader.PriceFor(context.Background(), "")
	require.NoError(t, err)
	require.True(t, snap.PromptPrice.Equal(decimalFromFloat(0.5)))
}

func TestPriceForStorageErrorPropagates(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	reader := NewPricingReader(&stubCatalogQueries{
		getCatalogEntryFn: func(ctx context.Context, modelID string) (db.ModelCatalogEntry, error) {
			return db.ModelCatalogEntry{}, boom
		},
	}, config.PricingConfig{})

	_, err := reader.PriceFor(context.Background(), "acme/gpt-12")
	require.ErrorIs(t, err, boom)
}

func TestRecordCostPersistsBreakdown(t *testing.T) {
	t.Parallel()

	reader := NewPricingReader(&stubCatalogQueries{
		getCatalogEntryFn: func(ctx context.Context, modelID string) (db.ModelCatalogEntry, error) {
			return db.ModelCatalogEntry{
				ModelID:         modelID,
				PromptPrice:     0.000002,
				CompletionPrice: 0.000004,
			}, nil
		},
	}, config.PricingConfig{})
	svc := NewService(reader, nil)

	var captured db.InsertMessageCostParams
	queries := &stubCostQueries{
		insertMessageCostFn: func(ctx context.Context, arg db.InsertMessageCostParams) (db.MessageCost, error) {
			captured = arg
			return db.MessageCost{MessageID: arg.MessageID, TotalCostMicros: arg.TotalCostMicros}, nil
		},
	}

	messageID := uuid.New()
	cost, err := svc.RecordCost(context.Background(), queries, CostInput{
		MessageID:    messageID,
		Model:        "acme/gpt-12",
		InputTokens:  1000,
		OutputTokens: 500,
	})
	require.NoError(t, err)
	require.Equal(t, messageID, cost.MessageID)
	require.Equal(t, int64(4_000), cost.TotalCostMicros)

	require.Equal(t, int64(2_000), captured.PromptCostMicros)
	require.Equal(t, int64(2_000), captured.CompletionCostMicros)
	require.Equal(t, 0.000002, captured.PromptPrice)
	require.Equal(t, int64(1000), captured.InputTokens)
	require.Equal(t, int64(500), captured.OutputTokens)
}

func TestRecordCostDegradesToZeroOnPricingFailure(t *testing.T) {
	t.Parallel()

	reader := NewPricingReader(&stubCatalogQueries{
		getCatalogEntryFn: func(ctx context.Context, modelID string) (db.ModelCatalogEntry, error) {
			return db.ModelCatalogEntry{}, errors.New("catalog unavailable")
		},
	}, config.PricingConfig{DefaultPromptPrice: 0.01})
	svc := NewService(reader, nil)

	var captured db.InsertMessageCostParams
	queries := &stubCostQueries{
		insertMessageCostFn: func(ctx context.Context, arg db.InsertMessageCostParams) (db.MessageCost, error) {
			captured = arg
			return db.MessageCost{MessageID: arg.MessageID}, nil
		},
	}

	_, err := svc.RecordCost(context.Background(), queries, CostInput{
		MessageID:    uuid.New(),
		Model:        "acme/gpt-12",
		InputTokens:  100,
		OutputTokens: 100,
	})
	require.NoError(t, err)
	require.Equal(t, int64(0), captured.TotalCostMicros)
	require.Equal(t, float64(0), captured.PromptPrice)
	require.Equal(t, int64(100), captured.InputTokens)
}

func TestRecordCostRequiresConfiguration(t *testing.T) {
	t.Parallel()

	var svc *Service
	_, err := svc.RecordCost(context.Background(), &stubCostQueries{}, CostInput{})
	require.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewService(nil, nil).RecordCost(context.Background(), &stubCostQueries{}, CostInput{})
	require.ErrorIs(t, err, ErrNotConfigured)
}
