package catalogsync

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// syncLockKey is the advisory lock identity for catalog sync runs. All
// processes sharing the database coordinate on this one key.
const syncLockKey int64 = 7_412_280_041

// PgLocker serializes sync runs with a session-scoped Postgres advisory
// lock held on a dedicated pooled connection.
type PgLocker struct {
	pool *pgxpool.Pool
}

func NewPgLocker(pool *pgxpool.Pool) *PgLocker {
	return &PgLocker{pool: pool}
}

func (l *PgLocker) AcquireSyncLock(ctx context.Context) (func(), bool, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock connection: %w", err)
	}

	var acquired bool
	err = conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, syncLockKey).Scan(&acquired)
	if err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	release := func() {
		// Unlock on the same session that took the lock, then hand the
		// connection back. context.Background avoids losing the unlock when
		// the caller's context is already cancelled.
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, syncLockKey)
		conn.Release()
	}
	return release, true, nil
}
