package extractor

import (
	"crypto/md5"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teraext/internal"
	"teraext/utils"
)

func newOfficialResolverFor(serverURL string) *OfficialResolver {
	cfg := testConfig(serverURL)
	cfg.ClientID = "client-id"
	cfg.ClientSecret = "client-secret"
	cfg.PrivateSecret = "private-secret"
	transport := utils.NewTransportFromConfig(cfg, internal.NopLogger(), false)
	return NewOfficialResolver(cfg, internal.NopLogger(), transport)
}

func TestSignatureMaterial(t *testing.T) {
	r := newOfficialResolverFor("https://terabox.com")

	want := fmt.Sprintf("%x", md5.Sum([]byte("client-id_1700000000_client-secret_private-secret")))
	assert.Equal(t, want, r.Signature("1700000000"))
}

func TestOAuthFlowsRequireCredentials(t *testing.T) {
	cfg := testConfig("https://terabox.com")
	transport := utils.NewTransportFromConfig(cfg, internal.NopLogger(), false)
	r := NewOfficialResolver(cfg, internal.NopLogger(), transport)

	_, err := r.ExchangeCode("abc")
	ee, ok := internal.AsExtractError(err)
	require.True(t, ok)
	assert.Equal(t, internal.ErrAuthRequired, ee.Type)

	_, err = r.RefreshToken("rt")
	require.Error(t, err)

	_, err = r.RequestDeviceCode()
	require.Error(t, err)
}

func TestExchangeCodeSignsRequest(t *testing.T) {
	mux := http.NewServeMux()
	var signSeen, tsSeen string
	mux.HandleFunc("/oauth/gettoken", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		signSeen = q.Get("sign")
		tsSeen = q.Get("timestamp")
		assert.Equal(t, "client-id", q.Get("client_id"))
		assert.Equal(t, "the-code", q.Get("code"))
		assert.Equal(t, "authorization_code", q.Get("grant_type"))
		writeBody(w, map[string]interface{}{
			"errno":         0,
			"access_token":  "AT",
			"refresh_token": "RT",
			"expires_in":    2592000,
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	r := newOfficialResolverFor(server.URL)
	r.now = func() time.Time { return time.Unix(1700000000, 0) }

	pair, err := r.ExchangeCode("the-code")
	require.NoError(t, err)
	assert.Equal(t, "AT", pair.AccessToken)
	assert.Equal(t, "RT", pair.RefreshToken)
	assert.Equal(t, 2592000, pair.ExpiresIn)

	assert.Equal(t, "1700000000", tsSeen)
	assert.Equal(t, r.Signature(tsSeen), signSeen)
}

func TestRefreshTokenMapsOAuthErrno(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/refreshtoken", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "refresh_token", r.URL.Query().Get("grant_type"))
		writeBody(w, map[string]interface{}{"errno": 111, "errmsg": "token expired"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	r := newOfficialResolverFor(server.URL)
	_, err := r.RefreshToken("stale")
	ee, ok := internal.AsExtractError(err)
	require.True(t, ok)
	assert.Equal(t, internal.ErrAuthRequired, ee.Type)
}

func TestRequestDeviceCodeDefaultsInterval(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/devicecode", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "basic,netdisk", r.URL.Query().Get("scope"))
		writeBody(w, map[string]interface{}{
			"errno":            0,
			"device_code":      "DC",
			"user_code":        "UC-1234",
			"verification_url": "https://terabox.com/device",
			"expires_in":       300,
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	r := newOfficialResolverFor(server.URL)
	dc, err := r.RequestDeviceCode()
	require.NoError(t, err)
	assert.Equal(t, "DC", dc.DeviceCode)
	assert.Equal(t, "UC-1234", dc.UserCode)
	assert.Equal(t, 5, dc.Interval)
}

func TestPollDeviceTokenPendingThenApproved(t *testing.T) {
	var calls int64
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/gettoken", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "DC", r.URL.Query().Get("device_code"))
		assert.Equal(t, "device_token", r.URL.Query().Get("grant_type"))
		if atomic.AddInt64(&calls, 1) < 3 {
			writeBody(w, map[string]interface{}{"errno": -9, "errmsg": "authorization pending"})
			return
		}
		writeBody(w, map[string]interface{}{
			"errno":         0,
			"access_token":  "AT",
			"refresh_token": "RT",
			"expires_in":    2592000,
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	r := newOfficialResolverFor(server.URL)
	// Interval 0 keeps the test from sleeping between polls.
	pair, err := r.PollDeviceToken(&DeviceCode{DeviceCode: "DC", Interval: 0, ExpiresIn: 60})
	require.NoError(t, err)
	assert.Equal(t, "AT", pair.AccessToken)
	assert.EqualValues(t, 3, atomic.LoadInt64(&calls))
}

func TestPollDeviceTokenStopsOnHardError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/gettoken", func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, map[string]interface{}{"errno": -6, "errmsg": "rate limited"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	r := newOfficialResolverFor(server.URL)
	_, err := r.PollDeviceToken(&DeviceCode{DeviceCode: "DC", Interval: 0, ExpiresIn: 60})
	ee, ok := internal.AsExtractError(err)
	require.True(t, ok)
	assert.Equal(t, internal.ErrRateLimit, ee.Type)
}

func TestPollDeviceTokenExpires(t *testing.T) {
	r := newOfficialResolverFor("https://terabox.com")

	// ExpiresIn 0 puts the deadline in the past; no request is made.
	_, err := r.PollDeviceToken(&DeviceCode{DeviceCode: "DC", Interval: 0, ExpiresIn: 0})
	ee, ok := internal.AsExtractError(err)
	require.True(t, ok)
	assert.Equal(t, internal.ErrAuthRequired, ee.Type)
	assert.Contains(t, ee.Message, "expired")
}

func TestOfficialResolveRequiresAccessToken(t *testing.T) {
	r := newOfficialResolverFor("https://terabox.com")

	_, err := r.Resolve("https://terabox.com/s/1AbC123")
	ee, ok := internal.AsExtractError(err)
	require.True(t, ok)
	assert.Equal(t, internal.ErrAuthRequired, ee.Type)
}

func TestOfficialResolveAndGenerateLinks(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/openapi/shorturlinfo", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "TOKEN", r.URL.Query().Get("access_token"))
		assert.Equal(t, "1AbC123", r.URL.Query().Get("shorturl"))
		writeBody(w, map[string]interface{}{
			"errno": 0,
			"list": []map[string]interface{}{
				{
					"fs_id":           9001,
					"server_filename": "clip.mp4",
					"path":            "/clip.mp4",
					"isdir":           0,
					"size":            4096,
				},
			},
			"uk":        111,
			"share_id":  222,
			"sign":      "OSIG",
			"timestamp": 1700000000,
		})
	})
	mux.HandleFunc("/openapi/share/download", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "TOKEN", q.Get("access_token"))
		assert.Equal(t, "1AbC123", q.Get("shorturl"))
		assert.Equal(t, "[9001]", q.Get("fidlist"))
		writeBody(w, map[string]interface{}{
			"errno": 0,
			"dlist": []map[string]interface{}{{"dlink": "https://d.terabox.com/file/abc"}},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	r := newOfficialResolverFor(server.URL)
	r.cfg.AccessToken = "TOKEN"

	result, err := r.Resolve(server.URL + "/s/1AbC123")
	require.NoError(t, err)
	require.Len(t, result.FileTree, 1)
	assert.Equal(t, "clip.mp4", result.FileTree[0].Name)
	require.NotNil(t, result.Auth)
	assert.Equal(t, "TOKEN", result.Auth.AccessToken)
	assert.Equal(t, "OSIG", result.Auth.Sign)

	links, err := r.GenerateLinks("9001", result.Auth)
	require.NoError(t, err)
	assert.Equal(t, "https://d.terabox.com/file/abc", links.Links[internal.RankMedium])
}

func TestOfficialGenerateLinksRequiresToken(t *testing.T) {
	r := newOfficialResolverFor("https://terabox.com")

	_, err := r.GenerateLinks("1", nil)
	require.Error(t, err)

	_, err = r.GenerateLinks("1", &internal.AuthBundle{ShortCode: "AbC123"})
	ee, ok := internal.AsExtractError(err)
	require.True(t, ok)
	assert.Equal(t, internal.ErrAuthRequired, ee.Type)
}
