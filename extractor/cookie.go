package extractor

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"teraext/internal"
	"teraext/utils"
)

// CookieResolver implements the cookie-authenticated strategy. It skips the
// authorization-page scrape and calls the listing API with a caller-supplied
// session cookie, trading reliability against the caller keeping the cookie
// fresh.
type CookieResolver struct {
	cfg       *internal.Config
	logger    *internal.SecureLogger
	transport *utils.Transport
	validator *utils.URLValidator
}

// NewCookieResolver creates the cookie-authenticated resolver.
func NewCookieResolver(cfg *internal.Config, logger *internal.SecureLogger, transport *utils.Transport) *CookieResolver {
	return &CookieResolver{
		cfg:       cfg,
		logger:    logger,
		transport: transport,
		validator: utils.NewURLValidator(cfg.DomainTokens),
	}
}

// Resolve implements internal.ShareResolver.
func (r *CookieResolver) Resolve(shareURL string) (*internal.ExtractionResult, error) {
	if r.cfg.Cookie == "" {
		return nil, internal.NewAuthRequiredError("cookie backend selected but no session cookie configured")
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
			ShortCode: ref.ShortCode,
			UK:        listResp.UK.String(),
			ShareID:   listResp.shareID(),
			Sign:      listResp.Sign,
			Timestamp: listResp.Timestamp.String(),
			Cookie:    r.cfg.Cookie,
		},
		Warnings: warnings,
	}, nil
}

func (r *CookieResolver) listShare(ref *utils.ShareRef, dir string) ([]shareFile, *shareListResponse, error) {
	params := url.Values{}
	params.Set("app_id", productAppID)
	params.Set("web", "1")
	params.Set("channel", productChannel)
	params.Set("clienttype", "0")
	params.Set("shorturl", ref.ShortURL())
	if dir == "" {
		params.Set("root", "1")
	} else {
		params.Set("dir", dir)
		params.Set("root", "0")
	}

	resp, err := r.transport.Do(&utils.Request{
		Method: http.MethodGet,
		URL:    r.cfg.APIBaseURL + "/share/list",
		Params: params,
		Headers: map[string]string{
			"Referer": r.cfg.APIBaseURL + "/",
			"Origin":  r.cfg.APIBaseURL,
			"Cookie":  r.cfg.Cookie,
		},
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

// GenerateLinks implements internal.LinkGenerator. Cookie-backed listings
// already carry direct links, so this strategy returns a single placeholder
// URL built from the stored metadata rather than issuing a signed request.
func (r *CookieResolver) GenerateLinks(fsID string, auth *internal.AuthBundle) (*internal.DownloadLinkSet, error) {
	if auth == nil || auth.ShortCode == "" {
		return nil, internal.NewDownloadLinkError("missing share context for cookie link generation")
	}
	placeholder := fmt.Sprintf("%s/web/share/link?surl=%s&fid=%s",
		r.cfg.APIBaseURL, auth.ShortCode, url.QueryEscape(fsID))
	return &internal.DownloadLinkSet{
		Status: internal.StatusSuccess,
		Links: map[internal.LinkRank]string{
			internal.RankMedium: placeholder,
		},
	}, nil
}

// LoadCookieFile reads a Netscape-format cookie file and flattens it into a
// raw Cookie header value.
// Format per line: domain\tflag\tpath\tsecure\texpiration\tname\tvalue
func LoadCookieFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open cookie file: %w", err)
	}
	defer file.Close()

	var pairs []string
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 7 {
			return "", fmt.Errorf("invalid cookie format at line %d: expected 7 fields, got %d", lineNum, len(fields))
		}
		pairs = append(pairs, fields[5]+"="+fields[6])
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("error reading cookie file: %w", err)
	}
	if len(pairs) == 0 {
		return "", fmt.Errorf("cookie file contains no cookies")
	}
	return strings.Join(pairs, "; "), nil
}
