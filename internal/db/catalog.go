package db

import (
	"context"
	"time"
)

const catalogColumns = `model_id, canonical_slug, name, description, context_length,
	modality, input_modalities, output_modalities, tokenizer,
	prompt_price, completion_price, request_price, image_price, web_search_price,
	internal_reasoning_price, cache_read_price, cache_write_price,
	max_completion_tokens, is_moderated, supported_parameters,
	status, free_tier, pro_tier, enterprise_tier, daily_limit, monthly_limit,
	last_synced_at, last_seen_at, created_at, updated_at`

func (q *Queries) GetCatalogEntry(ctx context.Context, modelID string) (ModelCatalogEntry, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+catalogColumns+` FROM model_catalog WHERE model_id = $1`, modelID)
	return scanCatalogEntry(row)
}

type InsertCatalogEntryParams struct {
	ModelID                string
	CanonicalSlug          string
	Name                   string
	Description            string
	ContextLength          int64
	Modality               string
	InputModalities        []string
	OutputModalities       []string
	Tokenizer              string
	PromptPrice            float64
	CompletionPrice        float64
	RequestPrice           float64
	ImagePrice             float64
	WebSearchPrice         float64
	InternalReasoningPrice float64
	CacheReadPrice         float64
	CacheWritePrice        float64
	MaxCompletionTokens    int64
	IsModerated            bool
	SupportedParameters    []string
	Status                 string
}

// InsertCatalogEntry creates a first-seen catalog row. Tier flags default to
// false so new models stay invisible until an operator grants access.
func (q *Queries) InsertCatalogEntry(ctx context.Context, arg InsertCatalogEntryParams) (ModelCatalogEntry, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO model_catalog (
			model_id, canonical_slug, name, description, context_length,
			modality, input_modalities, output_modalities, tokenizer,
			prompt_price, completion_price, request_price, image_price, web_search_price,
			internal_reasoning_price, cache_read_price, cache_write_price,
			max_completion_tokens, is_moderated, supported_parameters,
			status, last_synced_at, last_seen_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, now(), now()
		)
		RETURNING `+catalogColumns,
		arg.ModelID, arg.CanonicalSlug, arg.Name, arg.Description, arg.ContextLength,
		arg.Modality, arg.InputModalities, arg.OutputModalities, arg.Tokenizer,
		arg.PromptPrice, arg.CompletionPrice, arg.RequestPrice, arg.ImagePrice, arg.WebSearchPrice,
		arg.InternalReasoningPrice, arg.CacheReadPrice, arg.CacheWritePrice,
		arg.MaxCompletionTokens, arg.IsModerated, arg.SupportedParameters,
		arg.Status)
	return scanCatalogEntry(row)
}

type UpdateCatalogEntryFromSyncParams struct {
	InsertCatalogEntryParams
}

// UpdateCatalogEntryFromSync refreshes metadata, pricing and the status
// transition computed by the synchronizer. Tier flags, limits and operator
// state are deliberately untouched.
func (q *Queries) UpdateCatalogEntryFromSync(ctx context.Context, arg UpdateCatalogEntryFromSyncParams) (ModelCatalogEntry, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE model_catalog SET
			canonical_slug           = $2,
			name                     = $3,
			description              = $4,
			context_length           = $5,
			modality                 = $6,
			input_modalities         = $7,
			output_modalities        = $8,
			tokenizer                = $9,
			prompt_price             = $10,
			completion_price         = $11,
			request_price            = $12,
			image_price              = $13,
			web_search_price         = $14,
			internal_reasoning_price = $15,
			cache_read_price         = $16,
			cache_write_price        = $17,
			max_completion_tokens    = $18,
			is_moderated             = $19,
			supported_parameters     = $20,
			status                   = $21,
			last_synced_at           = now(),
			last_seen_at             = now(),
			updated_at               = now()
		WHERE model_id = $1
		RETURNING `+catalogColumns,
		arg.ModelID, arg.CanonicalSlug, arg.Name, arg.Description, arg.ContextLength,
		arg.Modality, arg.InputModalities, arg.OutputModalities, arg.Tokenizer,
		arg.PromptPrice, arg.CompletionPrice, arg.RequestPrice, arg.ImagePrice, arg.WebSearchPrice,
		arg.InternalReasoningPrice, arg.CacheReadPrice, arg.CacheWritePrice,
		arg.MaxCompletionTokens, arg.IsModerated, arg.SupportedParameters,
		arg.Status)
	return scanCatalogEntry(row)
}

// MarkAbsentEntriesInactive flips every entry whose id is missing from the
// batch to inactive. Already-inactive and disabled entries are left alone, so
// the returned count is exactly the number of fresh deactivations.
func (q *Queries) MarkAbsentEntriesInactive(ctx context.Context, seenIDs []string) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE model_catalog SET
			status     = 'inactive',
			updated_at = now()
		WHERE NOT (model_id = ANY($1))
		  AND status NOT IN ('inactive', 'disabled')`,
		seenIDs)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (q *Queries) ListCatalogEntries(ctx context.Context) ([]ModelCatalogEntry, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+catalogColumns+` FROM model_catalog ORDER BY model_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCatalogEntries(rows)
}

// ListActiveEntriesForTierRank returns active entries visible at or below the
// given tier rank (0=free, 1=pro, 2=enterprise), lowest visible tier first,
// then by name.
func (q *Queries) ListActiveEntriesForTierRank(ctx context.Context, rank int32) ([]ModelCatalogEntry, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+catalogColumns+` FROM model_catalog
		WHERE status = 'active'
		  AND ((free_tier AND $1 >= 0) OR (pro_tier AND $1 >= 1) OR (enterprise_tier AND $1 >= 2))
		ORDER BY CASE WHEN free_tier THEN 0 WHEN pro_tier THEN 1 ELSE 2 END ASC, name ASC`,
		rank)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCatalogEntries(rows)
}

type SetCatalogEntryStatusParams struct {
	ModelID string
	Status  string
}

func (q *Queries) SetCatalogEntryStatus(ctx context.Context, arg SetCatalogEntryStatusParams) (ModelCatalogEntry, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE model_catalog SET status = $2, updated_at = now()
		WHERE model_id = $1
		RETURNING `+catalogColumns,
		arg.ModelID, arg.Status)
	return scanCatalogEntry(row)
}

type SetCatalogEntryAccessParams struct {
	ModelID        string
	FreeTier       bool
	ProTier        bool
	EnterpriseTier bool
	DailyLimit     int64
	MonthlyLimit   int64
}

func (q *Queries) SetCatalogEntryAccess(ctx context.Context, arg SetCatalogEntryAccessParams) (ModelCatalogEntry, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE model_catalog SET
			free_tier       = $2,
			pro_tier        = $3,
			enterprise_tier = $4,
			daily_limit     = $5,
			monthly_limit   = $6,
			updated_at      = now()
		WHERE model_id = $1
		RETURNING `+catalogColumns,
		arg.ModelID, arg.FreeTier, arg.ProTier, arg.EnterpriseTier, arg.DailyLimit, arg.MonthlyLimit)
	return scanCatalogEntry(row)
}

// TryAdvisoryLock attempts a session-scoped advisory lock. The caller must
// hold a dedicated connection for the lock's lifetime.
func (q *Queries) TryAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	var ok bool
	err := q.db.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&ok)
	return ok, err
}

func (q *Queries) AdvisoryUnlock(ctx context.Context, key int64) error {
	_, err := q.db.Exec(ctx, `SELECT pg_advisory_unlock($1)`, key)
	return err
}

func collectCatalogEntries(rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}) ([]ModelCatalogEntry, error) {
	entries := make([]ModelCatalogEntry, 0)
	for rows.Next() {
		e, err := scanCatalogEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanCatalogEntry(row rowScanner) (ModelCatalogEntry, error) {
	var e ModelCatalogEntry
	var lastSynced, lastSeen *time.Time
	err := row.Scan(&e.ModelID, &e.CanonicalSlug, &e.Name, &e.Description, &e.ContextLength,
		&e.Modality, &e.InputModalities, &e.OutputModalities, &e.Tokenizer,
		&e.PromptPrice, &e.CompletionPrice, &e.RequestPrice, &e.ImagePrice, &e.WebSearchPrice,
		&e.InternalReasoningPrice, &e.CacheReadPrice, &e.CacheWritePrice,
		&e.MaxCompletionTokens, &e.IsModerated, &e.SupportedParameters,
		&e.Status, &e.FreeTier, &e.ProTier, &e.EnterpriseTier, &e.DailyLimit, &e.MonthlyLimit,
		&lastSynced, &lastSeen, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return ModelCatalogEntry{}, err
	}
	e.LastSyncedAt = lastSynced
	e.LastSeenAt = lastSeen
	return e, nil
}
