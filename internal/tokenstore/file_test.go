package tokenstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tokens.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)
	return store, path
}

func TestFileStoreRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)

	creds := Credentials{AccessToken: "acc-1", RefreshToken: "ref-1", UserID: "u-1"}
	require.NoError(t, store.Save(creds))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, creds, loaded)
}

func TestFileStoreMissingFile(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreClear(t *testing.T) {
	store, path := newTestStore(t)
	require.NoError(t, store.Save(Credentials{AccessToken: "a", RefreshToken: "r"}))
	require.NoError(t, store.Clear())

	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNotFound)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	// Clearing an already-empty store is not an error.
	assert.NoError(t, store.Clear())
}

func TestFileStoreStableKeys(t *testing.T) {
	store, path := newTestStore(t)
	require.NoError(t, store.Save(Credentials{AccessToken: "a", RefreshToken: "r", UserID: "u"}))

	// The on-disk layout is part of the contract: three stable keys.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var kv map[string]string
	require.NoError(t, json.Unmarshal(data, &kv))
	assert.Equal(t, "a", kv[KeyAccessToken])
	assert.Equal(t, "r", kv[KeyRefreshToken])
	assert.Equal(t, "u", kv[KeyUserID])
}

func TestFileStoreSaveReplacesWholePair(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Save(Credentials{AccessToken: "old-a", RefreshToken: "old-r", UserID: "u"}))
	require.NoError(t, store.Save(Credentials{AccessToken: "new-a", RefreshToken: "new-r", UserID: "u"}))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "new-a", loaded.AccessToken)
	assert.Equal(t, "new-r", loaded.RefreshToken)
}

func TestFileStoreCorruptFileTreatedAsAbsent(t *testing.T) {
	store, path := newTestStore(t)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(Credentials{AccessToken: "a", RefreshToken: "r"}))
	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "a", loaded.AccessToken)

	require.NoError(t, store.Clear())
	_, err = store.Load()
	assert.ErrorIs(t, err, ErrNotFound)
}
