package costing

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	decimal "github.com/shopspring/decimal"

	"github.com/ncecere/chatstore/backend/internal/config"
	"github.com/ncecere/chatstore/backend/internal/db"
)

// PriceSnapshot holds the per-unit USD prices in effect when a cost is
// computed. Snapshots are frozen into the cost record and never re-priced.
type PriceSnapshot struct {
	Model           string
	PromptPrice     decimal.Decimal
	CompletionPrice decimal.Decimal
	ExtraUnitPrice  decimal.Decimal
}

type pricingQueries interface {
	GetCatalogEntry(ctx context.Context, modelID string) (db.ModelCatalogEntry, error)
}

// PricingReader resolves the current pricing for a model from the catalog,
// falling back to configured default unit prices for unknown models.
type PricingReader struct {
	queries  pricingQueries
	defaults config.PricingConfig
}

func NewPricingReader(queries pricingQueries, defaults config.PricingConfig) *PricingReader {
	return &PricingReader{queries: queries, defaults: defaults}
}

// PriceFor looks up the pricing snapshot for the model. A model missing from
// the catalog resolves to the configured defaults; only a storage error is
// reported, and callers are expected to degrade to zero cost rather than fail
// the message write.
func (r *PricingReader) PriceFor(ctx context.Context, modelID string) (PriceSnapshot, error) {
	if r == nil || r.queries == nil {
		return PriceSnapshot{}, errors.New("pricing reader not initialized")
	}

	snapshot := PriceSnapshot{
		Model:           modelID,
		PromptPrice:     decimal.NewFromFloat(r.defaults.DefaultPromptPrice),
		CompletionPrice: decimal.NewFromFloat(r.defaults.DefaultCompletionPrice),
		ExtraUnitPrice:  decimal.NewFromFloat(r.defaults.DefaultExtraUnitPrice),
	}
	if modelID == "" {
		return snapshot, nil
	}

	entry, err := r.queries.GetCatalogEntry(ctx, modelID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return snapshot, nil
		}
		return PriceSnapshot{Model: modelID}, err
	}

	snapshot.PromptPrice = decimal.NewFromFloat(entry.PromptPrice)
	snapshot.CompletionPrice = decimal.NewFromFloat(entry.CompletionPrice)
	snapshot.ExtraUnitPrice = decimal.NewFromFloat(entry.WebSearchPrice)
	return snapshot, nil
}
