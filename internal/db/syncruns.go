package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const syncRunColumns = `id, started_at, completed_at, status, models_processed,
	models_added, models_updated, models_inactive, models_reactivated,
	error_message, error_code, duration_ms, payload_key`

type InsertSyncRunParams struct {
	ID              uuid.UUID
	ModelsProcessed int64
}

// InsertSyncRun opens the audit row for a synchronizer invocation.
func (q *Queries) InsertSyncRun(ctx context.Context, arg InsertSyncRunParams) (SyncRun, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO sync_runs (id, status, models_processed)
		VALUES ($1, 'running', $2)
		RETURNING `+syncRunColumns,
		arg.ID, arg.ModelsProcessed)
	return scanSyncRun(row)
}

type CompleteSyncRunParams struct {
	ID                uuid.UUID
	ModelsAdded       int64
	ModelsUpdated     int64
	ModelsInactive    int64
	ModelsReactivated int64
	DurationMs        int64
	PayloadKey        string
}

func (q *Queries) CompleteSyncRun(ctx context.Context, arg CompleteSyncRunParams) (SyncRun, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE sync_runs SET
			status             = 'completed',
			completed_at       = now(),
			models_added       = $2,
			models_updated     = $3,
			models_inactive    = $4,
			models_reactivated = $5,
			duration_ms        = $6,
			payload_key        = $7
		WHERE id = $1
		RETURNING `+syncRunColumns,
		arg.ID, arg.ModelsAdded, arg.ModelsUpdated, arg.ModelsInactive,
		arg.ModelsReactivated, arg.DurationMs, arg.PayloadKey)
	return scanSyncRun(row)
}

type FailSyncRunParams struct {
	ID                uuid.UUID
	ModelsAdded       int64
	ModelsUpdated     int64
	ModelsInactive    int64
	ModelsReactivated int64
	ErrorMessage      string
	ErrorCode         string
	DurationMs        int64
}

// FailSyncRun records a partial run: counters reflect work completed before
// the failure because sync is not one all-or-nothing transaction.
func (q *Queries) FailSyncRun(ctx context.Context, arg FailSyncRunParams) (SyncRun, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE sync_runs SET
			status             = 'failed',
			completed_at       = now(),
			models_added       = $2,
			models_updated     = $3,
			models_inactive    = $4,
			models_reactivated = $5,
			error_message      = $6,
			error_code         = $7,
			duration_ms        = $8
		WHERE id = $1
		RETURNING `+syncRunColumns,
		arg.ID, arg.ModelsAdded, arg.ModelsUpdated, arg.ModelsInactive,
		arg.ModelsReactivated, arg.ErrorMessage, arg.ErrorCode, arg.DurationMs)
	return scanSyncRun(row)
}

func (q *Queries) GetSyncRun(ctx context.Context, id uuid.UUID) (SyncRun, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+syncRunColumns+` FROM sync_runs WHERE id = $1`, id)
	return scanSyncRun(row)
}

func (q *Queries) ListSyncRuns(ctx context.Context, limit int32) ([]SyncRun, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+syncRunColumns+` FROM sync_runs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]SyncRun, 0)
	for rows.Next() {
		r, err := scanSyncRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func scanSyncRun(row rowScanner) (SyncRun, error) {
	var r SyncRun
	var completedAt *time.Time
	err := row.Scan(&r.ID, &r.StartedAt, &completedAt, &r.Status, &r.ModelsProcessed,
		&r.ModelsAdded, &r.ModelsUpdated, &r.ModelsInactive, &r.ModelsReactivated,
		&r.ErrorMessage, &r.ErrorCode, &r.DurationMs, &r.PayloadKey)
	if err != nil {
		return SyncRun{}, err
	}
	r.CompletedAt = completedAt
	return r, nil
}
