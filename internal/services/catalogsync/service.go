// Package catalogsync reconciles externally published model descriptors into
// the local model catalog. Every invocation leaves an audit row in sync_runs,
// whether it completed or failed partway.
package catalogsync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ncecere/chatstore/backend/internal/catalog"
	"github.com/ncecere/chatstore/backend/internal/db"
	"github.com/ncecere/chatstore/backend/internal/storage/blob"
)

var (
	ErrNotConfigured  = errors.New("catalog sync service not configured")
	ErrSyncInProgress = errors.New("another sync run holds the lock")
)

// Error codes recorded on failed sync runs.
const (
	errCodeFetch    = "fetch_failed"
	errCodeDecode   = "decode_failed"
	errCodeApply    = "apply_failed"
	errCodeFinalize = "finalize_failed"
)

type syncQueries interface {
	InsertSyncRun(ctx context.Context, arg db.InsertSyncRunParams) (db.SyncRun, error)
	CompleteSyncRun(ctx context.Context, arg db.CompleteSyncRunParams) (db.SyncRun, error)
	FailSyncRun(ctx context.Context, arg db.FailSyncRunParams) (db.SyncRun, error)
	GetSyncRun(ctx context.Context, id uuid.UUID) (db.SyncRun, error)
	ListSyncRuns(ctx context.Context, limit int32) ([]db.SyncRun, error)

	GetCatalogEntry(ctx context.Context, modelID string) (db.ModelCatalogEntry, error)
	InsertCatalogEntry(ctx context.Context, arg db.InsertCatalogEntryParams) (db.ModelCatalogEntry, error)
	UpdateCatalogEntryFromSync(ctx context.Context, arg db.UpdateCatalogEntryFromSyncParams) (db.ModelCatalogEntry, error)
	MarkAbsentEntriesInactive(ctx context.Context, seenIDs []string) (int64, error)
}

// Locker serializes sync runs across processes. Release must be called once
// the run finishes; acquired=false means another run holds the lock.
type Locker interface {
	AcquireSyncLock(ctx context.Context) (release func(), acquired bool, err error)
}

// Invalidator drops cached tier-resolved model lists after the catalog changes.
type Invalidator interface {
	InvalidateModelLists(ctx context.Context) error
}

// Result mirrors the structured sync output consumed by operators.
type Result struct {
	Success        bool      `json:"success"`
	SyncRunID      uuid.UUID `json:"sync_run_id"`
	TotalProcessed int64     `json:"total_processed"`
	Added          int64     `json:"added"`
	Updated        int64     `json:"updated"`
	MarkedInactive int64     `json:"marked_inactive"`
	Reactivated    int64     `json:"reactivated"`
	DurationMs     int64     `json:"duration_ms"`
	Error          string    `json:"error,omitempty"`
}

// Service runs catalog reconciliation. Processing is single-threaded by
// design; partial progress on failure is kept and recorded on the failed run.
type Service struct {
	queries     syncQueries
	locker      Locker
	fetcher     Fetcher
	archive     blob.Store
	invalidator Invalidator
	logger      *slog.Logger
	now         func() time.Time
}

type Options struct {
	Queries     syncQueries
	Locker      Locker
	Fetcher     Fetcher
	Archive     blob.Store
	Invalidator Invalidator
	Logger      *slog.Logger
}

func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		queries:     opts.Queries,
		locker:      opts.Locker,
		fetcher:     opts.Fetcher,
		archive:     opts.Archive,
		invalidator: opts.Invalidator,
		logger:      logger,
		now:         time.Now,
	}
}

// SyncFromSource fetches the configured upstream catalog and reconciles it.
func (s *Service) SyncFromSource(ctx context.Context) (Result, error) {
	if s == nil || s.queries == nil {
		return Result{}, ErrNotConfigured
	}
	if s.fetcher == nil {
		return Result{}, errors.New("no catalog source configured")
	}

	release, acquired, err := s.acquireLock(ctx)
	if err != nil {
		return Result{}, err
	}
	if !acquired {
		return Result{}, ErrSyncInProgress
	}
	defer release()

	started := s.now()
	raw, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return s.recordAbortedRun(ctx, started, errCodeFetch, err)
	}
	return s.syncLocked(ctx, started, raw)
}

// SyncPayload reconciles an already-fetched raw payload, e.g. from a file
// handed to the CLI or an admin upload.
func (s *Service) SyncPayload(ctx context.Context, raw []byte) (Result, error) {
	if s == nil || s.queries == nil {
		return Result{}, ErrNotConfigured
	}

	release, acquired, err := s.acquireLock(ctx)
	if err != nil {
		return Result{}, err
	}
	if !acquired {
		return Result{}, ErrSyncInProgress
	}
	defer release()

	return s.syncLocked(ctx, s.now(), raw)
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.locker == nil {
		return func() {}, true, nil
	}
	return s.locker.AcquireSyncLock(ctx)
}

// syncLocked reconciles a raw payload. The caller holds the sync lock and
// supplies the wall-clock start so aborted runs report their real duration.
func (s *Service) syncLocked(ctx context.Context, started time.Time, raw []byte) (Result, error) {
	descriptors, err := ParsePayload(raw)
	if err != nil {
		return s.recordAbortedRun(ctx, started, errCodeDecode, err)
	}

	run, err := s.queries.InsertSyncRun(ctx, db.InsertSyncRunParams{
		ID:              uuid.New(),
		ModelsProcessed: int64(len(descriptors)),
	})
	if err != nil {
		return Result{}, fmt.Errorf("open sync run: %w", err)
	}

	result := Result{SyncRunID: run.ID, TotalProcessed: int64(len(descriptors))}
	seenIDs := make([]string, 0, len(descriptors))

	for _, desc := range descriptors {
		if desc.ID == "" {
			continue
		}
		seenIDs = append(seenIDs, desc.ID)

		added, updated, reactivated, err := s.applyDescriptor(ctx, desc)
		if err != nil {
			return s.failRun(ctx, run.ID, started, result, errCodeApply,
				fmt.Errorf("apply descriptor %s: %w", desc.ID, err))
		}
		result.Added += added
		result.Updated += updated
		result.Reactivated += reactivated
	}

	deactivated, err := s.queries.MarkAbsentEntriesInactive(ctx, seenIDs)
	if err != nil {
		return s.failRun(ctx, run.ID, started, result, errCodeApply,
			fmt.Errorf("mark absent entries inactive: %w", err))
	}
	result.MarkedInactive = deactivated
	result.DurationMs = s.now().Sub(started).Milliseconds()

	payloadKey := s.archivePayload(ctx, run.ID, raw)

	_, err = s.queries.CompleteSyncRun(ctx, db.CompleteSyncRunParams{
		ID:                run.ID,
		ModelsAdded:       result.Added,
		ModelsUpdated:     result.Updated,
		ModelsInactive:    result.MarkedInactive,
		ModelsReactivated: result.Reactivated,
		DurationMs:        result.DurationMs,
		PayloadKey:        payloadKey,
	})
	if err != nil {
		return s.failRun(ctx, run.ID, started, result, errCodeFinalize,
			fmt.Errorf("complete sync run: %w", err))
	}

	result.Success = true
	s.logger.Info("catalog sync completed",
		slog.String("sync_run_id", run.ID.String()),
		slog.Int64("processed", result.TotalProcessed),
		slog.Int64("added", result.Added),
		slog.Int64("updated", result.Updated),
		slog.Int64("marked_inactive", result.MarkedInactive),
		slog.Int64("reactivated", result.Reactivated),
		slog.Int64("duration_ms", result.DurationMs))

	s.invalidate(ctx)
	return result, nil
}

// applyDescriptor reconciles one descriptor and reports what changed. An
// update that touches nothing but last_seen_at does not count as updated,
// which keeps a repeated identical batch at added=updated=reactivated=0.
func (s *Service) applyDescriptor(ctx context.Context, desc ModelDescriptor) (added, updated, reactivated int64, err error) {
	params := descriptorParams(desc)

	prior, err := s.queries.GetCatalogEntry(ctx, desc.ID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, 0, err
		}
		params.Status = string(catalog.StatusNew)
		if _, err := s.queries.InsertCatalogEntry(ctx, params); err != nil {
			return 0, 0, 0, err
		}
		return 1, 0, 0, nil
	}

	next, wasReactivated := catalog.TransitionOnSeen(catalog.ParseStatus(prior.Status))
	params.Status = string(next)

	changed := wasReactivated || entryDiffers(prior, params)
	if _, err := s.queries.UpdateCatalogEntryFromSync(ctx, db.UpdateCatalogEntryFromSyncParams{
		InsertCatalogEntryParams: params,
	}); err != nil {
		return 0, 0, 0, err
	}
	if changed {
		updated = 1
	}
	if wasReactivated {
		reactivated = 1
	}
	return 0, updated, reactivated, nil
}

func (s *Service) failRun(ctx context.Context, runID uuid.UUID, started time.Time, partial Result, code string, cause error) (Result, error) {
	partial.Success = false
	partial.Error = cause.Error()
	partial.DurationMs = s.now().Sub(started).Milliseconds()

	_, failErr := s.queries.FailSyncRun(ctx, db.FailSyncRunParams{
		ID:                runID,
		ModelsAdded:       partial.Added,
		ModelsUpdated:     partial.Updated,
		ModelsInactive:    partial.MarkedInactive,
		ModelsReactivated: partial.Reactivated,
		ErrorMessage:      cause.Error(),
		ErrorCode:         code,
		DurationMs:        partial.DurationMs,
	})
	if failErr != nil {
		s.logger.Error("failed to record failed sync run",
			slog.String("sync_run_id", runID.String()),
			slog.String("error", failErr.Error()))
	}

	s.logger.Error("catalog sync failed",
		slog.String("sync_run_id", runID.String()),
		slog.String("error_code", code),
		slog.String("error", cause.Error()))
	return partial, nil
}

// recordAbortedRun opens and immediately fails a run so fetch and decode
// errors still show up in the audit trail.
func (s *Service) recordAbortedRun(ctx context.Context, started time.Time, code string, cause error) (Result, error) {
	run, err := s.queries.InsertSyncRun(ctx, db.InsertSyncRunParams{ID: uuid.New()})
	if err != nil {
		return Result{Success: false, Error: cause.Error()}, fmt.Errorf("open sync run: %w", err)
	}
	return s.failRun(ctx, run.ID, started, Result{SyncRunID: run.ID}, code, cause)
}

func (s *Service) archivePayload(ctx context.Context, runID uuid.UUID, raw []byte) string {
	if s.archive == nil {
		return ""
	}
	key := fmt.Sprintf("sync-runs/%s.json", runID)
	_, err := s.archive.Put(ctx, key, bytes.NewReader(raw), blob.PutOptions{
		ContentType: "application/json",
	})
	if err != nil {
		// Archival is best effort; a failed upload never fails the sync.
		s.logger.Warn("failed to archive sync payload",
			slog.String("sync_run_id", runID.String()),
			slog.String("error", err.Error()))
		return ""
	}
	return key
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

// Run returns one sync run by id.
func (s *Service) Run(ctx context.Context, id uuid.UUID) (db.SyncRun, error) {
	if s == nil || s.queries == nil {
		return db.SyncRun{}, ErrNotConfigured
	}
	return s.queries.GetSyncRun(ctx, id)
}

// History returns the most recent sync runs, newest first.
func (s *Service) History(ctx context.Context, limit int32) ([]db.SyncRun, error) {
	if s == nil || s.queries == nil {
		return nil, ErrNotConfigured
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.queries.ListSyncRuns(ctx, limit)
}

func descriptorParams(desc ModelDescriptor) db.InsertCatalogEntryParams {
	name := desc.Name
	if name == "" {
		name = desc.ID
	}
	return db.InsertCatalogEntryParams{
		ModelID:                desc.ID,
		CanonicalSlug:          desc.CanonicalSlug,
		Name:                   name,
		Description:            desc.Description,
		ContextLength:          desc.ContextLength,
		Modality:               desc.Architecture.Modality,
		InputModalities:        desc.Architecture.InputModalities,
		OutputModalities:       desc.Architecture.OutputModalities,
		Tokenizer:              desc.Architecture.Tokenizer,
		PromptPrice:            desc.Pricing.Prompt.Float64(),
		CompletionPrice:        desc.Pricing.Completion.Float64(),
		RequestPrice:           desc.Pricing.Request.Float64(),
		ImagePrice:             desc.Pricing.Image.Float64(),
		WebSearchPrice:         desc.Pricing.WebSearch.Float64(),
		InternalReasoningPrice: desc.Pricing.InternalReasoning.Float64(),
		CacheReadPrice:         desc.Pricing.InputCacheRead.Float64(),
		CacheWritePrice:        desc.Pricing.InputCacheWrite.Float64(),
		MaxCompletionTokens:    desc.TopProvider.MaxCompletionTokens,
		IsModerated:            desc.TopProvider.IsModerated,
		SupportedParameters:    desc.SupportedParams,
	}
}

func entryDiffers(prior db.ModelCatalogEntry, next db.InsertCatalogEntryParams) bool {
	switch {
	case prior.CanonicalSlug != next.CanonicalSlug,
		prior.Name != next.Name,
		prior.Description != next.Description,
		prior.ContextLength != next.ContextLength,
		prior.Modality != next.Modality,
		prior.Tokenizer != next.Tokenizer,
		prior.PromptPrice != next.PromptPrice,
		prior.CompletionPrice != next.CompletionPrice,
		prior.RequestPrice != next.RequestPrice,
		prior.ImagePrice != next.ImagePrice,
		prior.WebSearchPrice != next.WebSearchPrice,
		prior.InternalReasoningPrice != next.InternalReasoningPrice,
		prior.CacheReadPrice != next.CacheReadPrice,
		prior.CacheWritePrice != next.CacheWritePrice,
		prior.MaxCompletionTokens != next.MaxCompletionTokens,
		prior.IsModerated != next.IsModerated,
		prior.Status != next.Status:
		return true
	}
	return !stringSlicesEqual(prior.InputModalities, next.InputModalities) ||
		!stringSlicesEqual(prior.OutputModalities, next.OutputModalities) ||
		!stringSlicesEqual(prior.SupportedParameters, next.SupportedParameters)
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
