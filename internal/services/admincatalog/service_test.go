package admincatalog

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/ncecere/chatstore/backend/internal/db"
)

type stubAdminQueries struct {
	getCatalogEntryFn    func(ctx context.Context, modelID string) (db.ModelCatalogEntry, error)
	listCatalogEntriesFn func(ctx context.Context) ([]db.ModelCatalogEntry, error)
	setStatusFn          func(ctx context.Context, arg db.SetCatalogEntryStatusParams) (db.ModelCatalogEntry, error)
	setAccessFn          func(ctx context.Context, arg db.SetCatalogEntryAccessParams) (db.ModelCatalogEntry, error)
}

func (s *stubAdminQueries) GetCatalogEntry(ctx context.Context, modelID string) (db.ModelCatalogEntry, error) {
	if s.getCatalogEntryFn != nil {
		return s.getCatalogEntryFn(ctx, modelID)
	}
	return db.ModelCatalogEntry{}, pgx.ErrNoRows
}

func (s *stubAdminQueries) ListCatalogEntries(ctx context.Context) ([]db.ModelCatalogEntry, error) {
	if s.listCatalogEntriesFn != nil {
		return s.listCatalogEntriesFn(ctx)
	}
	return nil, nil
}

func (s *stubAdminQueries) SetCatalogEntryStatus(ctx context.Context, arg db.SetCatalogEntryStatusParams) (db.ModelCatalogEntry, error) {
	if s.setStatusFn != nil {
		return s.setStatusFn(ctx, arg)
	}
	return db.ModelCatalogEntry{}, pgx.ErrNoRows
}

func (s *stubAdminQueries) SetCatalogEntryAccess(ctx context.Context, arg db.SetCatalogEntryAccessParams) (db.ModelCatalogEntry, error) {
	if s.setAccessFn != nil {
		return s.setAccessFn(ctx, arg)
	}
	return db.ModelCatalogEntry{}, pgx.ErrNoRows
}

type countingInvalidator struct {
	calls int
}

func (c *countingInvalidator) InvalidateModelLists(ctx context.Context) error {
	c.calls++
	return nil
}

func TestSetStatusRejectsUnknownState(t *testing.T) {
	t.Parallel()

	inv := &countingInvalidator{}
	svc := NewService(&stubAdminQueries{}, inv, nil)

	_, err := svc.SetStatus(context.Background(), "acme/gpt-12", "archived")
	require.ErrorIs(t, err, ErrInvalidStatus)
	require.Zero(t, inv.calls)
}

func TestSetStatusUnknownModel(t *testing.T) {
	t.Parallel()

	svc := NewService(&stubAdminQueries{}, nil, nil)
	_, err := svc.SetStatus(context.Background(), "nobody/home", "active")
	require.ErrorIs(t, err, ErrUnknownModel)
}

func TestSetStatusInvalidatesCache(t *testing.T) {
	t.Parallel()

	inv := &countingInvalidator{}
	queries := &stubAdminQueries{
		setStatusFn: func(ctx context.Context, arg db.SetCatalogEntryStatusParams) (db.ModelCatalogEntry, error) {
			require.Equal(t, "acme/gpt-12", arg.ModelID)
			require.Equal(t, "disabled", arg.Status)
			return db.ModelCatalogEntry{ModelID: arg.ModelID, Status: arg.Status}, nil
		},
	}
	svc := NewService(queries, inv, nil)

	entry, err := svc.SetStatus(context.Background(), "acme/gpt-12", "disabled")
	require.NoError(t, err)
	require.Equal(t, "disabled", entry.Status)
	require.Equal(t, 1, inv.calls)
}

func TestSetAccessInvalidatesCache(t *testing.T) {
	t.Parallel()

	inv := &countingInvalidator{}
	var captured db.SetCatalogEntryAccessParams
	queries := &stubAdminQueries{
		setAccessFn: func(ctx context.Context, arg db.SetCatalogEntryAccessParams) (db.ModelCatalogEntry, error) {
			captured = arg
			return db.ModelCatalogEntry{ModelID: arg.ModelID, ProTier: arg.ProTier}, nil
		},
	}
	svc := NewService(queries, inv, nil)

	_, err := svc.SetAccess(context.Background(), AccessUpdate{
		ModelID:      "acme/gpt-12",
		ProTier:      true,
		DailyLimit:   50,
		MonthlyLimit: 1000,
	})
	require.NoError(t, err)
	require.True(t, captured.ProTier)
	require.False(t, captured.FreeTier)
	require.Equal(t, int64(50), captured.DailyLimit)
	require.Equal(t, 1, inv.calls)
}

func TestEntryUnknownModel(t *testing.T) {
	t.Parallel()

	svc := NewService(&stubAdminQueries{}, nil, nil)
	_, err := svc.Entry(context.Background(), "nobody/home")
	require.ErrorIs(t, err, ErrUnknownModel)
}
