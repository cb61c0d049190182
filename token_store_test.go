package authclient_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	authclient "github.com/goliatone/go-auth-client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, now func() time.Time) *authclient.SessionTokenStore {
	t.Helper()

	store, err := authclient.NewSessionTokenStoreAt(t.TempDir())
	require.NoError(t, err)
	if now != nil {
		store.WithClock(now)
	}
	return store
}

func TestSessionTokenStoreRoundtrip(t *testing.T) {
	issuedAt := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	store := newTestStore(t, fixedClock(issuedAt))

	require.NoError(t, store.SetToken("tok-abc", 900))

	record := store.GetToken()
	require.NotNil(t, record)
	assert.Equal(t, "tok-abc", record.Token)
	assert.Equal(t, int64(900), record.ExpiresIn)
	assert.Equal(t, issuedAt.UnixMilli()+900*1000, record.ExpiresAt)
}

func TestSessionTokenStoreRejectsEmptyToken(t *testing.T) {
	store := newTestStore(t, nil)
	assert.Error(t, store.SetToken("", 900))
}

func TestSessionTokenStoreGetTokenMissing(t *testing.T) {
	store := newTestStore(t, nil)
	assert.Nil(t, store.GetToken())
}

func TestSessionTokenStoreDiscardsCorruptRecord(t *testing.T) {
	dir := t.TempDir()
	store, err := authclient.NewSessionTokenStoreAt(dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "access_token.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	assert.Nil(t, store.GetToken())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestSessionTokenStoreRemoveTokenIdempotent(t *testing.T) {
	store := newTestStore(t, nil)

	require.NoError(t, store.SetToken("tok-abc", 900))
	store.RemoveToken()
	assert.Nil(t, store.GetToken())

	store.RemoveToken()
	assert.Nil(t, store.GetToken())
}

func TestSessionTokenStoreClearWipesScratchDir(t *testing.T) {
	dir := t.TempDir()
	store, err := authclient.NewSessionTokenStoreAt(dir)
	require.NoError(t, err)

	require.NoError(t, store.SetToken("tok-abc", 900))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scratch.tmp"), []byte("x"), 0o600))

	store.Clear()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSessionTokenStorePublishesTokenUpdate(t *testing.T) {
	bus := newLocalBus()
	store := newTestStore(t, nil)
	store.WithBroadcaster(bus)

	require.NoError(t, store.SetToken("tok-abc", 900))

	assert.Equal(t, []string{authclient.TopicTokenUpdate}, bus.PublishedTopics())
}

func TestSessionTokenStoreCloseRemovesOwnedDir(t *testing.T) {
	store, err := authclient.NewSessionTokenStore()
	require.NoError(t, err)

	dir := store.Dir()
	require.NoError(t, store.SetToken("tok-abc", 900))
	require.NoError(t, store.Close())

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}
