package extractor

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teraext/internal"
	"teraext/utils"
)

const sharePageHTML = `<!DOCTYPE html><html><head><script>
window.jsToken = decodeURIComponent("fn%28%22DEADBEEF42%22%29");
window.__data = {"uk": 555, "shareid": 666, "sign": "PAGESIGN", "timestamp": "1700000001"};
</script></head><body></body></html>`

func newScrapeTestServer(t *testing.T, childErrno int) (*httptest.Server, *string) {
	t.Helper()
	var jsTokenSeen string
	mux := http.NewServeMux()
	mux.HandleFunc("/s/", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "browserid", Value: "bid-123"})
		fmt.Fprint(w, sharePageHTML)
	})
	mux.HandleFunc("/share/list", func(w http.ResponseWriter, r *http.Request) {
		jsTokenSeen = r.URL.Query().Get("jsToken")
		if r.URL.Query().Get("root") == "1" {
			writeBody(w, map[string]interface{}{
				"errno": 0,
				"list": []map[string]interface{}{
					{"fs_id": "11", "server_filename": "folder", "path": "/folder", "isdir": 1},
					{"fs_id": "22", "server_filename": "notes.txt", "path": "/notes.txt", "isdir": 0, "size": 42},
				},
			})
			return
		}
		writeBody(w, map[string]interface{}{"errno": childErrno, "errmsg": "listing unavailable"})
	})
	server := httptest.NewServer(mux)
	return server, &jsTokenSeen
}

func newScrapeResolverFor(serverURL string) *ScrapeResolver {
	cfg := testConfig(serverURL)
	transport := utils.NewTransportFromConfig(cfg, internal.NopLogger(), false)
	return NewScrapeResolver(cfg, internal.NopLogger(), transport)
}

func TestScrapeResolveScrapesTokenAndLists(t *testing.T) {
	server, jsTokenSeen := newScrapeTestServer(t, 0)
	defer server.Close()

	resolver := newScrapeResolverFor(server.URL)
	result, err := resolver.Resolve(server.URL + "/s/1AbC123")
	require.NoError(t, err)

	assert.Equal(t, "DEADBEEF42", *jsTokenSeen)
	require.NotNil(t, result.Auth)
	assert.Equal(t, "DEADBEEF42", result.Auth.JSToken)
	assert.Equal(t, "bid-123", result.Auth.BrowserID)
	assert.Equal(t, "555", result.Auth.UK)
	assert.Equal(t, "666", result.Auth.ShareID)
	assert.Equal(t, "PAGESIGN", result.Auth.Sign)
	assert.Equal(t, "1700000001", result.Auth.Timestamp)
}

func TestScrapeFailedChildListingDegradesToWarning(t *testing.T) {
	server, _ := newScrapeTestServer(t, 999)
	defer server.Close()

	resolver := newScrapeResolverFor(server.URL)
	result, err := resolver.Resolve(server.URL + "/s/1AbC123")
	require.NoError(t, err)

	// The parent listing succeeds even though the subtree could not be read.
	require.Len(t, result.FileTree, 2)
	folder := result.FileTree[0]
	assert.True(t, folder.IsDir)
	require.NotNil(t, folder.Children)
	assert.Empty(t, folder.Children)

	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "/folder", result.Warnings[0].Path)
	assert.NotEmpty(t, result.Warnings[0].Message)

	file := result.FileTree[1]
	assert.Equal(t, internal.CategoryDocument, file.Category)
	assert.Equal(t, int64(42), file.Size)
}

func TestScrapeMissingTokenFails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/s/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>nothing useful</body></html>")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	resolver := newScrapeResolverFor(server.URL)
	_, err := resolver.Resolve(server.URL + "/s/1AbC123")
	require.Error(t, err)

	extractErr, ok := internal.AsExtractError(err)
	require.True(t, ok)
	assert.Equal(t, internal.ErrExtraction, extractErr.Type)
}

func TestScrapeGenerateLinksDerivesMirrors(t *testing.T) {
	// The canonical link points back at the test server so the HEAD probe
	// resolves against it; the handler closes over the URL assigned below.
	var serverURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/share/download", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "[123]", r.URL.Query().Get("fid_list"))
		assert.Equal(t, "SIG", r.URL.Query().Get("sign"))
		writeBody(w, map[string]interface{}{
			"errno": 0,
			"dlink": serverURL + "/cdn/file?by=themis&fin=a.txt",
		})
	})
	mux.HandleFunc("/cdn/file", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	serverURL = server.URL

	resolver := newScrapeResolverFor(server.URL)

	auth := &internal.AuthBundle{
		ShortCode: "AbC123",
		UK:        "555",
		ShareID:   "666",
		Sign:      "SIG",
		Timestamp: "1700000001",
		JSToken:   "DEADBEEF42",
	}
	links, err := resolver.GenerateLinks("123", auth)
	require.NoError(t, err)
	require.Equal(t, internal.StatusSuccess, links.Status)

	assert.Contains(t, links.Links[internal.RankSlow], "by=themis")
	assert.Contains(t, links.Links[internal.RankMedium], "by=dapunta")
}

func TestScrapeGenerateLinksRequiresSignature(t *testing.T) {
	resolver := newScrapeResolverFor("http://127.0.0.1:0")

	_, err := resolver.GenerateLinks("123", &internal.AuthBundle{ShortCode: "AbC123"})
	require.Error(t, err)

	extractErr, ok := internal.AsExtractError(err)
	require.True(t, ok)
	assert.Equal(t, internal.ErrDownload, extractErr.Type)
}

func TestSwapRoutingMarker(t *testing.T) {
	assert.Equal(t,
		"https://d1.host.example/file?by=dapunta&x=1",
		swapRoutingMarker("https://d1.host.example/file?by=themis&x=1"))
	assert.Equal(t, "", swapRoutingMarker("https://d1.host.example/file?x=1"))
}

func TestSwapEdgeSubdomain(t *testing.T) {
	assert.Equal(t,
		"https://d3-edge-7.host.example/file",
		swapEdgeSubdomain("https://d-edge-7.host.example/file"))
	// Already on the fast tier, or not an edge host at all.
	assert.Equal(t, "", swapEdgeSubdomain("https://d3-edge-7.host.example/file"))
	assert.Equal(t, "", swapEdgeSubdomain("https://cdn.host.example/file"))
	assert.Equal(t, "", swapEdgeSubdomain("https://localhost/file"))
}
