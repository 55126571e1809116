package extractor

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teraext/internal"
	"teraext/utils"
)

// memoryCache is an in-process ResponseCache for tests, keyed the same way
// as the on-disk store.
type memoryCache struct {
	entries map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (m *memoryCache) Get(shareURL string) ([]byte, bool) {
	payload, ok := m.entries[utils.NormalizeShareKey(shareURL)]
	return payload, ok
}

func (m *memoryCache) Put(shareURL string, payload []byte) bool {
	m.entries[utils.NormalizeShareKey(shareURL)] = payload
	return true
}

func (m *memoryCache) SweepExpired() int { return 0 }

func (m *memoryCache) Clear() int {
	n := len(m.entries)
	m.entries = make(map[string][]byte)
	return n
}

func newCommercialResolverFor(serverURL string, cache internal.ResponseCache) *CommercialResolver {
	cfg := testConfig(serverURL)
	cfg.CommercialAPIKey = "test-key"
	transport := utils.NewTransportFromConfig(cfg, internal.NopLogger(), false)
	return NewCommercialResolver(cfg, internal.NopLogger(), transport, cache)
}

func commercialListing() map[string]interface{} {
	return map[string]interface{}{
		"status": "success",
		"list": []map[string]interface{}{
			{
				"fs_id":           111,
				"server_filename": "song.flac",
				"path":            "/song.flac",
				"isdir":           0,
				"size":            8192,
				"dlink":           "https://d.terabox.com/slow/111",
				"direct_link":     "https://d.terabox.com/direct/111",
				"fast_link":       "https://d.terabox.com/fast/111",
			},
			{
				"fs_id":           222,
				"server_filename": "cover.jpg",
				"path":            "/cover.jpg",
				"isdir":           0,
				"size":            1024,
				"direct_link":     "https://d.terabox.com/direct/222",
			},
		},
		"uk":        999,
		"shareid":   "555",
		"sign":      "CSIG",
		"timestamp": 1700000000,
	}
}

func TestCommercialResolveRequiresAPIKey(t *testing.T) {
	cfg := testConfig("https://terabox.com")
	transport := utils.NewTransportFromConfig(cfg, internal.NopLogger(), false)
	r := NewCommercialResolver(cfg, internal.NopLogger(), transport, nil)

	_, err := r.Resolve("https://terabox.com/s/1AbC123")
	ee, ok := internal.AsExtractError(err)
	require.True(t, ok)
	assert.Equal(t, internal.ErrAuthRequired, ee.Type)
}

func TestCommercialResolveSendsAPIKey(t *testing.T) {
	var keySeen string
	mux := http.NewServeMux()
	mux.HandleFunc("/url", func(w http.ResponseWriter, r *http.Request) {
		keySeen = r.Header.Get("x-api-key")
		assert.NotEmpty(t, r.URL.Query().Get("url"))
		writeBody(w, commercialListing())
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	r := newCommercialResolverFor(server.URL, nil)
	result, err := r.Resolve(server.URL + "/s/1AbC123")
	require.NoError(t, err)

	assert.Equal(t, "test-key", keySeen)
	require.Len(t, result.FileTree, 2)
	assert.Equal(t, "song.flac", result.FileTree[0].Name)
	assert.Equal(t, internal.CategoryAudio, result.FileTree[0].Category)

	require.NotNil(t, result.Auth)
	assert.Equal(t, "999", result.Auth.UK)
	assert.Equal(t, "555", result.Auth.ShareID)
	assert.Equal(t, "CSIG", result.Auth.Sign)
}

func TestCommercialResolveReplaysCachedPayload(t *testing.T) {
	var hits int64
	mux := http.NewServeMux()
	mux.HandleFunc("/url", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		writeBody(w, commercialListing())
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	r := newCommercialResolverFor(server.URL, newMemoryCache())
	shareURL := server.URL + "/s/1AbC123"

	_, err := r.Resolve(shareURL)
	require.NoError(t, err)
	_, err = r.Resolve(shareURL)
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt64(&hits))

	// Link generation also replays the cached payload without a new call.
	links, err := r.GenerateLinks("111", &internal.AuthBundle{ShortCode: "AbC123"})
	require.NoError(t, err)
	assert.Equal(t, "https://d.terabox.com/fast/111", links.Links[internal.RankFast])
	assert.EqualValues(t, 1, atomic.LoadInt64(&hits))
}

func TestCommercialResolveRejectedKey(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/url", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	r := newCommercialResolverFor(server.URL, nil)
	_, err := r.Resolve(server.URL + "/s/1AbC123")
	ee, ok := internal.AsExtractError(err)
	require.True(t, ok)
	assert.Equal(t, internal.ErrAuthRequired, ee.Type)
}

func TestCommercialFailureIsNotCached(t *testing.T) {
	var hits int64
	mux := http.NewServeMux()
	mux.HandleFunc("/url", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&hits, 1) == 1 {
			writeBody(w, map[string]interface{}{"status": "error", "error": "share removed"})
			return
		}
		writeBody(w, commercialListing())
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	r := newCommercialResolverFor(server.URL, newMemoryCache())
	shareURL := server.URL + "/s/1AbC123"

	_, err := r.Resolve(shareURL)
	ee, ok := internal.AsExtractError(err)
	require.True(t, ok)
	assert.Contains(t, ee.Message, "share removed")

	// The failed payload must not be replayed; the retry hits upstream.
	_, err = r.Resolve(shareURL)
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt64(&hits))
}

func TestCommercialGenerateLinksTiers(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/url", func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, commercialListing())
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	r := newCommercialResolverFor(server.URL, newMemoryCache())
	_, err := r.Resolve(server.URL + "/s/1AbC123")
	require.NoError(t, err)

	auth := &internal.AuthBundle{ShortCode: "AbC123"}

	links, err := r.GenerateLinks("111", auth)
	require.NoError(t, err)
	assert.Equal(t, "https://d.terabox.com/slow/111", links.Links[internal.RankSlow])
	assert.Equal(t, "https://d.terabox.com/direct/111", links.Links[internal.RankMedium])
	assert.Equal(t, "https://d.terabox.com/fast/111", links.Links[internal.RankFast])

	// Second file only carries a provider direct link.
	links, err = r.GenerateLinks("222", auth)
	require.NoError(t, err)
	assert.Empty(t, links.Links[internal.RankSlow])
	assert.Equal(t, "https://d.terabox.com/direct/222", links.Links[internal.RankMedium])

	_, err = r.GenerateLinks("333", auth)
	ee, ok := internal.AsExtractError(err)
	require.True(t, ok)
	assert.Equal(t, internal.ErrDownload, ee.Type)
}
