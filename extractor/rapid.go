package extractor

import (
	"io"
	"net/http"
	"net/url"

	"teraext/internal"
	"teraext/utils"
)

// CommercialResolver talks to a paid resale API. Every miss costs money or a
// rate-limit token, so successful raw payloads are cached by normalized
// short-code and replayed on later calls.
type CommercialResolver struct {
	cfg       *internal.Config
	logger    *internal.SecureLogger
	transport *utils.Transport
	cache     internal.ResponseCache
	validator *utils.URLValidator
}

// NewCommercialResolver creates the commercial-API resolver. The cache may
// be nil, in which case every call goes over the wire.
func NewCommercialResolver(cfg *internal.Config, logger *internal.SecureLogger, transport *utils.Transport, cache internal.ResponseCache) *CommercialResolver {
	return &CommercialResolver{
		cfg:       cfg,
		logger:    logger,
		transport: transport,
		cache:     cache,
		validator: utils.NewURLValidator(cfg.DomainTokens),
	}
}

// commercialResponse is the resale API's envelope. File entries carry their
// direct links inline, already tiered by the provider.
type commercialResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
	List   []struct {
		shareFile
		DirectLink string `json:"direct_link"`
		FastLink   string `json:"fast_link"`
	} `json:"list"`
	UK        flexString `json:"uk"`
	ShareID   flexString `json:"shareid"`
	Sign      string     `json:"sign"`
	Timestamp flexString `json:"timestamp"`
}

// Resolve implements internal.ShareResolver.
func (r *CommercialResolver) Resolve(shareURL string) (*internal.ExtractionResult, error) {
	if r.cfg.CommercialAPIKey == "" {
		return nil, internal.NewAuthRequiredError("commercial backend selected but no API key configured")
	}
	ref, err := r.validator.Parse(shareURL)
	if err != nil {
		return nil, err
	}

	payload, err := r.fetchPayload(ref)
	if err != nil {
		return nil, err
	}
	return r.resultFromPayload(ref, payload)
}

// fetchPayload returns the raw API payload for a share, consulting the
// cache first and storing fresh successful responses.
func (r *CommercialResolver) fetchPayload(ref *utils.ShareRef) ([]byte, error) {
	if r.cache != nil {
		if payload, ok := r.cache.Get(ref.OriginalURL); ok {
			r.logger.Debug("commercial cache hit for %s", ref.ShortCode)
			return payload, nil
		}
	}

	params := url.Values{}
	params.Set("url", ref.OriginalURL)

	resp, err := r.transport.Do(&utils.Request{
		Method: http.MethodGet,
		URL:    r.cfg.CommercialBaseURL + "/url",
		Params: params,
		Headers: map[string]string{
			"x-api-key": r.cfg.CommercialAPIKey,
		},
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, internal.NewNetworkTimeoutError("reading commercial API response")
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, internal.NewAuthRequiredError("commercial API rejected the configured key")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, internal.NewExtractError(resp.StatusCode, "commercial API error", internal.ErrInvalidResponse)
	}

	// Validate before caching so a garbage body is never replayed.
	var probe commercialResponse
	if err := decodeJSON(body, &probe); err != nil {
		return nil, err
	}
	if probe.Status != "" && probe.Status != "success" {
		return nil, internal.NewExtractionFailedError(0, firstNonEmpty(probe.Error, "commercial API reported failure"))
	}

	if r.cache != nil {
		r.cache.Put(ref.OriginalURL, body)
	}
	return body, nil
}

func (r *CommercialResolver) resultFromPayload(ref *utils.ShareRef, payload []byte) (*internal.ExtractionResult, error) {
	var apiResp commercialResponse
	if err := decodeJSON(payload, &apiResp); err != nil {
		return nil, err
	}
	if len(apiResp.List) == 0 {
		return nil, internal.NewExtractionFailedError(0, "share contains no files")
	}

	entries := make([]shareFile, 0, len(apiResp.List))
	for _, f := range apiResp.List {
		entries = append(entries, f.shareFile)
	}
	// The resale API flattens folders server-side; there is nothing to
	// traverse, so directories keep empty children.
	var warnings []internal.TraversalWarning
	tree := buildTree(entries, nil, &warnings, 0)

	return &internal.ExtractionResult{
		Status:   internal.StatusSuccess,
		FileTree: tree,
		Auth: &internal.AuthBundle{
			ShortCode: ref.ShortCode,
			UK:        apiResp.UK.String(),
			ShareID:   apiResp.ShareID.String(),
			Sign:      apiResp.Sign,
			Timestamp: apiResp.Timestamp.String(),
		},
		Warnings: warnings,
	}, nil
}

// GenerateLinks implements internal.LinkGenerator by replaying the cached
// payload and picking out the requested file's provider-tiered links.
func (r *CommercialResolver) GenerateLinks(fsID string, auth *internal.AuthBundle) (*internal.DownloadLinkSet, error) {
	if auth == nil || auth.ShortCode == "" {
		return nil, internal.NewDownloadLinkError("missing share context for commercial link generation")
	}

	shareURL := "https://terabox.com/s/1" + auth.ShortCode
	payload, ok := []byte(nil), false
	if r.cache != nil {
		payload, ok = r.cache.Get(shareURL)
	}
	if !ok {
		ref, err := r.validator.Parse(shareURL)
		if err != nil {
			return nil, err
		}
		payload, err = r.fetchPayload(ref)
		if err != nil {
			return nil, err
		}
	}

	var apiResp commercialResponse
	if err := decodeJSON(payload, &apiResp); err != nil {
		return nil, err
	}
	for _, f := range apiResp.List {
		if f.FsID.String() != fsID {
			continue
		}
		links := make(map[internal.LinkRank]string)
		if f.Dlink != "" {
			links[internal.RankSlow] = f.Dlink
		}
		if f.DirectLink != "" {
			links[internal.RankMedium] = f.DirectLink
		}
		if f.FastLink != "" {
			links[internal.RankFast] = f.FastLink
		}
		if len(links) == 0 {
			return nil, internal.NewDownloadLinkError("commercial API returned no links for file")
		}
		return &internal.DownloadLinkSet{Status: internal.StatusSuccess, Links: links}, nil
	}
	return nil, internal.NewDownloadLinkError("file not present in commercial listing")
}
