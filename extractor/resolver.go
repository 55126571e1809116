package extractor

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"teraext/internal"
	"teraext/utils"
)

// Patterns scraped from the share page. The jsToken is embedded inside a
// percent-encoded JS call, fn%28%22<token>%22%29; uk/shareid/sign/timestamp
// live in the inlined window state.
var (
	jsTokenPatterns = []*regexp.Regexp{
		regexp.MustCompile(`fn%28%22([0-9A-Fa-f]+)%22%29`),
		regexp.MustCompile(`jsToken['"]?\s*[:=]\s*['"]([0-9A-Fa-f]+)['"]`),
	}
	signPattern      = regexp.MustCompile(`"sign"\s*:\s*"([^"]+)"`)
	timestampPattern = regexp.MustCompile(`"timestamp"\s*:\s*"?(\d+)`)
	ukPattern        = regexp.MustCompile(`"uk"\s*:\s*"?(\d+)`)
	shareidPattern   = regexp.MustCompile(`"shareid"\s*:\s*"?(\d+)`)
)

// ScrapeResolver implements the unauthenticated scraping strategy: follow
// redirects to the canonical share page, scrape the anti-forgery token and
// browser-identity cookie, then call the listing API with both.
type ScrapeResolver struct {
	cfg       *internal.Config
	logger    *internal.SecureLogger
	transport *utils.Transport
	validator *utils.URLValidator
}

// NewScrapeResolver creates the scraping resolver.
func NewScrapeResolver(cfg *internal.Config, logger *internal.SecureLogger, transport *utils.Transport) *ScrapeResolver {
	return &ScrapeResolver{
		cfg:       cfg,
		logger:    logger,
		transport: transport,
		validator: utils.NewURLValidator(cfg.DomainTokens),
	}
}

// Resolve implements internal.ShareResolver.
func (r *ScrapeResolver) Resolve(shareURL string) (*internal.ExtractionResult, error) {
	ref, err := r.validator.Parse(shareURL)
	if err != nil {
		return nil, err
	}

	page, err := r.fetchSharePage(ref)
	if err != nil {
		return nil, err
	}
	if page.jsToken == "" {
		return nil, internal.NewExtractionFailedError(0, "anti-forgery token not found on share page")
	}

	files, listResp, err := r.listShare(page, "")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, internal.NewExtractionFailedError(0, "share contains no files")
	}

	var warnings []internal.TraversalWarning
	lister := func(dir string) ([]shareFile, error) {
		children, _, err := r.listShare(page, dir)
		return children, err
	}
	tree := buildTree(files, lister, &warnings, 0)

	auth := &internal.AuthBundle{
		ShortCode: page.ref.ShortCode,
		UK:        firstNonEmpty(page.uk, listResp.UK.String()),
		ShareID:   firstNonEmpty(page.shareID, listResp.shareID()),
		Sign:      firstNonEmpty(page.sign, listResp.Sign),
		Timestamp: firstNonEmpty(page.timestamp, listResp.Timestamp.String()),
		JSToken:   page.jsToken,
		BrowserID: page.browserID,
	}
	return &internal.ExtractionResult{
		Status:   internal.StatusSuccess,
		FileTree: tree,
		Auth:     auth,
		Warnings: warnings,
	}, nil
}

// sharePage holds everything scraped from the authorization page.
type sharePage struct {
	ref       *utils.ShareRef
	jsToken   string
	browserID string
	uk        string
	shareID   string
	sign      string
	timestamp string
}

// fetchSharePage follows the share URL's redirect chain to the canonical
// page and scrapes the embedded tokens. The canonical short-code lives in
// the final URL's surl parameter and takes precedence over the one parsed
// from the input.
func (r *ScrapeResolver) fetchSharePage(ref *utils.ShareRef) (*sharePage, error) {
	resp, err := r.transport.Get(ref.OriginalURL, map[string]string{
		"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, internal.NewNetworkTimeoutError("reading share page")
	}
	content := string(body)

	page := &sharePage{ref: ref}
	if resp.Request != nil {
		if surl := resp.Request.URL.Query().Get("surl"); surl != "" {
			canonical := *ref
			canonical.ShortCode = strings.TrimPrefix(surl, "1")
			page.ref = &canonical
		}
	}
	for _, cookie := range resp.Cookies() {
		if strings.EqualFold(cookie.Name, "browserid") {
			page.browserID = cookie.Value
		}
	}

	for _, pattern := range jsTokenPatterns {
		if matches := pattern.FindStringSubmatch(content); len(matches) > 1 {
			page.jsToken = matches[1]
			break
		}
	}
	if matches := ukPattern.FindStringSubmatch(content); len(matches) > 1 {
		page.uk = matches[1]
	}
	if matches := shareidPattern.FindStringSubmatch(content); len(matches) > 1 {
		page.shareID = matches[1]
	}
	if matches := signPattern.FindStringSubmatch(content); len(matches) > 1 {
		page.sign = matches[1]
	}
	if matches := timestampPattern.FindStringSubmatch(content); len(matches) > 1 {
		page.timestamp = matches[1]
	}
	return page, nil
}

// listShare calls the share listing API. An empty dir lists the share root;
// otherwise the directory path is listed with the same short-code.
func (r *ScrapeResolver) listShare(page *sharePage, dir string) ([]shareFile, *shareListResponse, error) {
	params := url.Values{}
	params.Set("app_id", productAppID)
	params.Set("web", "1")
	params.Set("channel", productChannel)
	params.Set("clienttype", "0")
	params.Set("jsToken", page.jsToken)
	params.Set("shorturl", page.ref.ShortURL())
	if dir == "" {
		params.Set("root", "1")
	} else {
		params.Set("dir", dir)
		params.Set("root", "0")
	}

	req := &utils.Request{
		Method: http.MethodGet,
		URL:    r.cfg.APIBaseURL + "/share/list",
		Params: params,
		Headers: map[string]string{
			"Referer": r.cfg.APIBaseURL + "/",
			"Origin":  r.cfg.APIBaseURL,
		},
	}
	if page.browserID != "" {
		req.Cookies = []*http.Cookie{{Name: "browserid", Value: page.browserID}}
	}

	resp, err := r.transport.Do(req)
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

// GenerateLinks implements internal.LinkGenerator for the scraping strategy:
// one signed download request for the canonical URL, then a best-effort HEAD
// to the CDN edge to derive faster mirror URLs.
func (r *ScrapeResolver) GenerateLinks(fsID string, auth *internal.AuthBundle) (*internal.DownloadLinkSet, error) {
	if auth == nil || auth.Sign == "" || auth.Timestamp == "" {
		return nil, internal.NewDownloadLinkError("missing sign/timestamp in auth context")
	}

	params := url.Values{}
	params.Set("app_id", productAppID)
	params.Set("web", "1")
	params.Set("channel", productChannel)
	params.Set("clienttype", "0")
	params.Set("jsToken", auth.JSToken)
	params.Set("shareid", auth.ShareID)
	params.Set("uk", auth.UK)
	params.Set("sign", auth.Sign)
	params.Set("timestamp", auth.Timestamp)
	params.Set("fid_list", fmt.Sprintf("[%s]", fsID))

	resp, err := r.transport.Do(&utils.Request{
		Method: http.MethodGet,
		URL:    r.cfg.APIBaseURL + "/share/download",
		Params: params,
		Headers: map[string]string{
			"Referer": r.cfg.APIBaseURL + "/",
		},
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
		Dlink  string `json:"dlink"`
	}
	if err := decodeJSON(body, &dlResp); err != nil {
		return nil, err
	}
	if apiErr := mapErrno(dlResp.Errno, dlResp.Errmsg); apiErr != nil {
		return nil, apiErr
	}
	if dlResp.Dlink == "" {
		return nil, internal.NewDownloadLinkError("no download link in response")
	}

	links := map[internal.LinkRank]string{
		internal.RankSlow: dlResp.Dlink,
	}
	// Mirror derivation is reverse-engineered from live CDN naming and can
	// break silently; any failure keeps just the canonical URL.
	if edge, err := r.resolveCDNEdge(dlResp.Dlink); err == nil {
		if medium := swapRoutingMarker(edge); medium != "" {
			links[internal.RankMedium] = medium
		}
		if fast := swapEdgeSubdomain(edge); fast != "" {
			links[internal.RankFast] = fast
		}
	} else {
		r.logger.Debug("mirror derivation skipped: %v", err)
	}
	return &internal.DownloadLinkSet{Status: internal.StatusSuccess, Links: links}, nil
}

// resolveCDNEdge follows the canonical link's redirects with a HEAD request
// and returns the final CDN edge URL.
func (r *ScrapeResolver) resolveCDNEdge(dlink string) (string, error) {
	resp, err := r.transport.Head(dlink, nil)
	if err != nil {
		return "", err
	}
	resp.Body.Close()
	if resp.Request == nil {
		return "", fmt.Errorf("no final URL after redirects")
	}
	return resp.Request.URL.String(), nil
}

// swapEdgeSubdomain rewrites the edge host's leading "d" label to "d3",
// which routes onto the faster distribution tier.
func swapEdgeSubdomain(edge string) string {
	parsed, err := url.Parse(edge)
	if err != nil {
		return ""
	}
	labels := strings.SplitN(parsed.Host, ".", 2)
	if len(labels) != 2 || !strings.HasPrefix(labels[0], "d") || strings.HasPrefix(labels[0], "d3") {
		return ""
	}
	parsed.Host = "d3" + strings.TrimPrefix(labels[0], "d") + "." + labels[1]
	return parsed.String()
}

// swapRoutingMarker replaces the internal routing marker with the variant
// that skips the throttled path.
func swapRoutingMarker(edge string) string {
	if !strings.Contains(edge, "by=themis") {
		return ""
	}
	return strings.Replace(edge, "by=themis", "by=dapunta", 1)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
