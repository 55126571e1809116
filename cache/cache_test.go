package cache

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teraext/internal"
)

func newTestStore(t *testing.T, ttlHours float64) *Store {
	t.Helper()
	store, err := New(t.TempDir(), ttlHours, internal.NopLogger())
	require.NoError(t, err)
	return store
}

func TestPutGetRoundTrip(t *testing.T) {
	store := newTestStore(t, 12)

	payload := []byte(`{"errno":0,"list":[{"fs_id":1}],"raw":"é\n  spacing preserved"}`)
	require.True(t, store.Put("https://terabox.com/s/1AbC123", payload))

	got, ok := store.Get("https://terabox.com/s/1AbC123")
	require.True(t, ok)
	assert.Equal(t, payload, got)
}

func TestGetNormalizesMirrorDomains(t *testing.T) {
	store := newTestStore(t, 12)

	require.True(t, store.Put("https://1024terabox.com/s/1AbC123", []byte("payload")))

	got, ok := store.Get("https://www.terabox.app/s/1AbC123")
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), got)

	_, ok = store.Get("https://terabox.com/s/1Different")
	assert.False(t, ok)
}

func TestExpiredEntryIsAbsentButKeptOnDisk(t *testing.T) {
	store := newTestStore(t, 12)

	base := time.Now()
	store.now = func() time.Time { return base }
	require.True(t, store.Put("https://terabox.com/s/1AbC123", []byte("payload")))

	store.now = func() time.Time { return base.Add(13 * time.Hour) }
	_, ok := store.Get("https://terabox.com/s/1AbC123")
	assert.False(t, ok)

	// Lazy expiry leaves the file for an explicit sweep.
	files, err := os.ReadDir(store.dir)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestExpiryUsesTTLRecordedAtWriteTime(t *testing.T) {
	store := newTestStore(t, 1)

	base := time.Now()
	store.now = func() time.Time { return base }
	require.True(t, store.Put("https://terabox.com/s/1AbC123", []byte("payload")))

	// Widening the configured TTL afterwards does not revive the entry.
	store.ttl = 100 * time.Hour
	store.now = func() time.Time { return base.Add(2 * time.Hour) }
	_, ok := store.Get("https://terabox.com/s/1AbC123")
	assert.False(t, ok)
}

func TestSweepExpired(t *testing.T) {
	store := newTestStore(t, 1)

	base := time.Now()
	store.now = func() time.Time { return base }
	require.True(t, store.Put("https://terabox.com/s/1Old1", []byte("a")))
	require.True(t, store.Put("https://terabox.com/s/1Old2", []byte("b")))

	store.now = func() time.Time { return base.Add(2 * time.Hour) }
	require.True(t, store.Put("https://terabox.com/s/1Fresh", []byte("c")))

	assert.Equal(t, 2, store.SweepExpired())
	assert.Equal(t, 0, store.SweepExpired())

	_, ok := store.Get("https://terabox.com/s/1Fresh")
	assert.True(t, ok)
}

func TestSweepRemovesUnparseableEntries(t *testing.T) {
	store := newTestStore(t, 12)
	require.True(t, store.Put("https://terabox.com/s/1AbC123", []byte("payload")))

	files, err := os.ReadDir(store.dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.NoError(t, os.WriteFile(
		store.dir+"/"+files[0].Name(), []byte("not json"), 0o644))

	assert.Equal(t, 1, store.SweepExpired())
}

func TestClear(t *testing.T) {
	store := newTestStore(t, 12)
	require.True(t, store.Put("https://terabox.com/s/1A", []byte("a")))
	require.True(t, store.Put("https://terabox.com/s/1B", []byte("b")))

	assert.Equal(t, 2, store.Clear())
	assert.Equal(t, 0, store.Clear())

	_, ok := store.Get("https://terabox.com/s/1A")
	assert.False(t, ok)
}

func TestOverwriteReplacesPayload(t *testing.T) {
	store := newTestStore(t, 12)
	require.True(t, store.Put("https://terabox.com/s/1AbC123", []byte("first")))
	require.True(t, store.Put("https://terabox.com/s/1AbC123", []byte("second")))

	got, ok := store.Get("https://terabox.com/s/1AbC123")
	require.True(t, ok)
	assert.Equal(t, []byte("second"), got)

	files, err := os.ReadDir(store.dir)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}
