package extractor

import (
	"crypto/md5"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"teraext/internal"
	"teraext/utils"
)

// OfficialResolver talks to the official OAuth open API. All signed calls
// carry an MD5 signature computed over the client credentials and a
// timestamp.
type OfficialResolver struct {
	cfg       *internal.Config
	logger    *internal.SecureLogger
	transport *utils.Transport
	validator *utils.URLValidator

	// now is replaced in tests to pin signature timestamps.
	now func() time.Time
}

// NewOfficialResolver creates the official-API resolver.
func NewOfficialResolver(cfg *internal.Config, logger *internal.SecureLogger, transport *utils.Transport) *OfficialResolver {
	return &OfficialResolver{
		cfg:       cfg,
		logger:    logger,
		transport: transport,
		validator: utils.NewURLValidator(cfg.DomainTokens),
		now:       time.Now,
	}
}

// TokenPair is the outcome of a token exchange or refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// DeviceCode is the handle for the device-authorization flow.
type DeviceCode struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURL string `json:"verification_url"`
	Interval        int    `json:"interval"`
	ExpiresIn       int    `json:"expires_in"`
}

// Signature computes the request signature for a given timestamp:
// md5(client_id + "_" + timestamp + "_" + client_secret + "_" + private_secret).
func (r *OfficialResolver) Signature(timestamp string) string {
	material := fmt.Sprintf("%s_%s_%s_%s",
		r.cfg.ClientID, timestamp, r.cfg.ClientSecret, r.cfg.PrivateSecret)
	return fmt.Sprintf("%x", md5.Sum([]byte(material)))
}

func (r *OfficialResolver) signedParams() url.Values {
	timestamp := strconv.FormatInt(r.now().Unix(), 10)
	params := url.Values{}
	params.Set("client_id", r.cfg.ClientID)
	params.Set("timestamp", timestamp)
	params.Set("sign", r.Signature(timestamp))
	return params
}

func (r *OfficialResolver) checkCredentials() error {
	if r.cfg.ClientID == "" || r.cfg.ClientSecret == "" || r.cfg.PrivateSecret == "" {
		return internal.NewAuthRequiredError("official backend requires client id, client secret and private secret")
	}
	return nil
}

// ExchangeCode trades an authorization code for a token pair.
func (r *OfficialResolver) ExchangeCode(code string) (*TokenPair, error) {
	if err := r.checkCredentials(); err != nil {
		return nil, err
	}
	params := r.signedParams()
	params.Set("code", code)
	params.Set("grant_type", "authorization_code")

	var pair TokenPair
	if err := r.callOAuth("/oauth/gettoken", params, &pair); err != nil {
		return nil, err
	}
	return &pair, nil
}

// RefreshToken exchanges a refresh token for a fresh token pair.
func (r *OfficialResolver) RefreshToken(refreshToken string) (*TokenPair, error) {
	if err := r.checkCredentials(); err != nil {
		return nil, err
	}
	params := r.signedParams()
	params.Set("refresh_token", refreshToken)
	params.Set("grant_type", "refresh_token")

	var pair TokenPair
	if err := r.callOAuth("/oauth/refreshtoken", params, &pair); err != nil {
		return nil, err
	}
	return &pair, nil
}

// RequestDeviceCode starts the device-authorization flow.
func (r *OfficialResolver) RequestDeviceCode() (*DeviceCode, error) {
	if err := r.checkCredentials(); err != nil {
		return nil, err
	}
	params := r.signedParams()
	params.Set("scope", "basic,netdisk")

	var dc DeviceCode
	if err := r.callOAuth("/oauth/devicecode", params, &dc); err != nil {
		return nil, err
	}
	if dc.Interval <= 0 {
		dc.Interval = 5
	}
	return &dc, nil
}

// PollDeviceToken polls the token endpoint at the server-advised interval
// until the user approves the device code or it expires. The call runs to
// completion; there is no mid-flight cancellation.
func (r *OfficialResolver) PollDeviceToken(dc *DeviceCode) (*TokenPair, error) {
	if err := r.checkCredentials(); err != nil {
		return nil, err
	}
	deadline := r.now().Add(time.Duration(dc.ExpiresIn) * time.Second)
	interval := time.Duration(dc.Interval) * time.Second

	for r.now().Before(deadline) {
		params := r.signedParams()
		params.Set("device_code", dc.DeviceCode)
		params.Set("grant_type", "device_token")

		var pair TokenPair
		err := r.callOAuth("/oauth/gettoken", params, &pair)
		if err == nil && pair.AccessToken != "" {
			return &pair, nil
		}
		if ee, ok := internal.AsExtractError(err); ok && ee.Type != internal.ErrAuthRequired {
			return nil, err
		}
		time.Sleep(interval)
	}
	return nil, internal.NewAuthRequiredError("device code expired before the user approved it")
}

// callOAuth performs one signed OAuth endpoint call and decodes into out.
func (r *OfficialResolver) callOAuth(endpoint string, params url.Values, out interface{}) error {
	resp, err := r.transport.Do(&utils.Request{
		Method: http.MethodGet,
		URL:    r.cfg.OpenAPIBaseURL + endpoint,
		Params: params,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return internal.NewNetworkTimeoutError("reading oauth response")
	}

	var envelope struct {
		Errno  int    `json:"errno"`
		Errmsg string `json:"errmsg"`
	}
	if err := decodeJSON(body, &envelope); err != nil {
		return err
	}
	if apiErr := mapErrno(envelope.Errno, envelope.Errmsg); apiErr != nil {
		return apiErr
	}
	return decodeJSON(body, out)
}

// Resolve implements internal.ShareResolver using an access token obtained
// through one of the OAuth flows above.
func (r *OfficialResolver) Resolve(shareURL string) (*internal.ExtractionResult, error) {
	if r.cfg.AccessToken == "" {
		return nil, internal.NewAuthRequiredError("official backend requires an access token; run the oauth flow first")
	}
	ref, err := r.validator.Parse(shareURL)
	if err != nil {
		return nil, err
	}

	files, listResp, err := r.listShare(ref, "")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, internal.NewExtractionFailedError(0, "share contains no files")
	}

	var warnings []internal.TraversalWarning
	lister := func(dir string) ([]shareFile, error) {
		children, _, err := r.listShare(ref, dir)
		return children, err
	}
	tree := buildTree(files, lister, &warnings, 0)

	return &internal.ExtractionResult{
		Status:   internal.StatusSuccess,
		FileTree: tree,
		Auth: &internal.AuthBundle{
			ShortCode:   ref.ShortCode,
			UK:          listResp.UK.String(),
			ShareID:     listResp.shareID(),
			Sign:        listResp.Sign,
			Timestamp:   listResp.Timestamp.String(),
			AccessToken: r.cfg.AccessToken,
		},
		Warnings: warnings,
	}, nil
}

func (r *OfficialResolver) listShare(ref *utils.ShareRef, dir string) ([]shareFile, *shareListResponse, error) {
	params := url.Values{}
	params.Set("access_token", r.cfg.AccessToken)
	params.Set("shorturl", ref.ShortURL())
	if dir == "" {
		params.Set("root", "1")
	} else {
		params.Set("dir", dir)
		params.Set("root", "0")
	}

	resp, err := r.transport.Do(&utils.Request{
		Method: http.MethodGet,
		URL:    r.cfg.OpenAPIBaseURL + "/openapi/shorturlinfo",
		Params: params,
	})
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, internal.NewNetworkTimeoutError("reading share listing")
	}

	var listResp shareListResponse
	if err := decodeJSON(body, &listResp); err != nil {
		return nil, nil, err
	}
	if apiErr := mapErrno(listResp.Errno, listResp.Errmsg); apiErr != nil {
		return nil, nil, apiErr
	}
	return listResp.List, &listResp, nil
}

// GenerateLinks implements internal.LinkGenerator through the openapi
// download endpoint.
func (r *OfficialResolver) GenerateLinks(fsID string, auth *internal.AuthBundle) (*internal.DownloadLinkSet, error) {
	if auth == nil || auth.AccessToken == "" {
		return nil, internal.NewAuthRequiredError("missing access token in auth context")
	}

	params := url.Values{}
	params.Set("access_token", auth.AccessToken)
	params.Set("shorturl", "1"+auth.ShortCode)
	params.Set("fidlist", fmt.Sprintf("[%s]", fsID))

	resp, err := r.transport.Do(&utils.Request{
		Method: http.MethodGet,
		URL:    r.cfg.OpenAPIBaseURL + "/openapi/share/download",
		Params: params,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, internal.NewNetworkTimeoutError("reading download response")
	}

	var dlResp struct {
		Errno  int    `json:"errno"`
		Errmsg string `json:"errmsg"`
		Dlist  []struct {
			Dlink string `json:"dlink"`
		} `json:"dlist"`
	}
	if err := decodeJSON(body, &dlResp); err != nil {
		return nil, err
	}
	if apiErr := mapErrno(dlResp.Errno, dlResp.Errmsg); apiErr != nil {
		return nil, apiErr
	}
	if len(dlResp.Dlist) == 0 || dlResp.Dlist[0].Dlink == "" {
		return nil, internal.NewDownloadLinkError("no download link in response")
	}
	return &internal.DownloadLinkSet{
		Status: internal.StatusSuccess,
		Links: map[internal.LinkRank]string{
			internal.RankMedium: dlResp.Dlist[0].Dlink,
		},
	}, nil
}
