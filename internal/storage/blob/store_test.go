package blob

import (
	"context"
	"encoding/base64"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ncecere/chatstore/backend/internal/config"
)

func newLocalTestStore(t *testing.T, encryptionKey string) Store {
	t.Helper()

	store, err := New(context.Background(), config.ArchiveConfig{
		Storage:       "local",
		EncryptionKey: encryptionKey,
		Local:         config.ArchiveLocal{Directory: t.TempDir()},
	})
	require.NoError(t, err)
	return store
}

func TestLocalStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := newLocalTestStore(t, "")
	payload := `{"data":[{"id":"acme/gpt-12"}]}`

	info, err := store.Put(context.Background(), "sync-runs/run-1.json",
		strings.NewReader(payload), PutOptions{ContentType: "application/json"})
	require.NoError(t, err)
	require.Equal(t, int64(len(payload)), info.Size)

	reader, got, err := store.Get(context.Background(), "sync-runs/run-1.json")
	require.NoError(t, err)
	defer reader.Close()
	require.Equal(t, "application/json", got.ContentType)

	body, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Equal(t, payload, string(body))
}

func TestLocalStoreEncryptedRoundTrip(t *testing.T) {
	t.Parallel()

	key := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	store := newLocalTestStore(t, key)
	payload := `{"data":[]}`

	_, err := store.Put(context.Background(), "sync-runs/run-2.json",
		strings.NewReader(payload), PutOptions{ContentType: "application/json"})
	require.NoError(t, err)

	reader, info, err := store.Get(context.Background(), "sync-runs/run-2.json")
	require.NoError(t, err)
	defer reader.Close()
	require.True(t, info.Encrypted)

	body, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Equal(t, payload, string(body))
}

func TestLocalStoreDeleteAndMissingKey(t *testing.T) {
	t.Parallel()

	store := newLocalTestStore(t, "")

	_, _, err := store.Get(context.Background(), "sync-runs/absent.json")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = store.Put(context.Background(), "sync-runs/run-3.json",
		strings.NewReader("{}"), PutOptions{ContentType: "application/json"})
	require.NoError(t, err)

	require.NoError(t, store.Delete(context.Background(), "sync-runs/run-3.json"))

	_, _, err = store.Get(context.Background(), "sync-runs/run-3.json")
	require.ErrorIs(t, err, ErrNotFound)

	// Deleting an already-gone key is a no-op.
	require.NoError(t, store.Delete(context.Background(), "sync-runs/run-3.json"))
}
