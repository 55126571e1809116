package extractor

import (
	"teraext/internal"
	"teraext/utils"
)

// Static product parameters the upstream web client sends on every call.
const (
	productAppID   = "250528"
	productChannel = "dubox"
)

// Extractor is the uniform entry point over the backend strategies. Its
// public methods always return result objects; failures are reported through
// the result's status and message, never as raised errors. One Extractor
// serves one logical extraction at a time; concurrent callers should use
// separate instances.
type Extractor struct {
	cfg       *internal.Config
	logger    *internal.SecureLogger
	validator *utils.URLValidator

	scrape     *ScrapeResolver
	cookie     *CookieResolver
	relay      *RelayResolver
	official   *OfficialResolver
	commercial *CommercialResolver
}

// New wires all five backends over two transports: a standard one and a
// browser-fingerprint one reserved for the signing relay. The cache fronts
// only the commercial backend and may be nil.
func New(cfg *internal.Config, logger *internal.SecureLogger, cache internal.ResponseCache) *Extractor {
	if logger == nil {
		logger = internal.NopLogger()
	}
	standard := utils.NewTransportFromConfig(cfg, logger, false)
	browser := utils.NewTransportFromConfig(cfg, logger, true)

	return &Extractor{
		cfg:        cfg,
		logger:     logger,
		validator:  utils.NewURLValidator(cfg.DomainTokens),
		scrape:     NewScrapeResolver(cfg, logger, standard),
		cookie:     NewCookieResolver(cfg, logger, standard),
		relay:      NewRelayResolver(cfg, logger, standard, browser),
		official:   NewOfficialResolver(cfg, logger, standard),
		commercial: NewCommercialResolver(cfg, logger, standard, cache),
	}
}

// Official exposes the OAuth client for the token-management commands.
func (e *Extractor) Official() *OfficialResolver {
	return e.official
}

// Extract resolves a share URL through the selected backend and normalizes
// the response into the common file-tree shape.
func (e *Extractor) Extract(shareURL string, backend internal.Backend) *internal.ExtractionResult {
	if err := e.validator.Validate(shareURL); err != nil {
		return failedExtraction(err)
	}

	resolver, err := e.resolverFor(backend)
	if err != nil {
		return failedExtraction(err)
	}

	e.logger.Info("extracting %s via %s backend", utils.NormalizeShareKey(shareURL), backend)
	result, err := resolver.Resolve(shareURL)
	if err != nil {
		e.logger.Warn("extraction via %s failed: %v", backend, err)
		return failedExtraction(err)
	}
	if result.Status == "" {
		result.Status = internal.StatusSuccess
	}
	for _, warning := range result.Warnings {
		e.logger.Warn("subtree %s degraded: %s", warning.Path, warning.Message)
	}
	return result
}

// GenerateLinks resolves one file to its direct download URLs via the
// backend that produced the auth bundle.
func (e *Extractor) GenerateLinks(fsID string, auth *internal.AuthBundle, backend internal.Backend) *internal.DownloadLinkSet {
	generator, err := e.generatorFor(backend)
	if err != nil {
		return failedLinks(err)
	}

	links, err := generator.GenerateLinks(fsID, auth)
	if err != nil {
		e.logger.Warn("link generation via %s failed: %v", backend, err)
		return failedLinks(err)
	}
	return links
}

func (e *Extractor) resolverFor(backend internal.Backend) (internal.ShareResolver, error) {
	switch backend {
	case internal.BackendScrape:
		return e.scrape, nil
	case internal.BackendCookie:
		return e.cookie, nil
	case internal.BackendRelay:
		return e.relay, nil
	case internal.BackendOfficial:
		return e.official, nil
	case internal.BackendCommercial:
		return e.commercial, nil
	default:
		return nil, internal.NewValidationError("backend", "unknown backend")
	}
}

func (e *Extractor) generatorFor(backend internal.Backend) (internal.LinkGenerator, error) {
	switch backend {
	case internal.BackendScrape:
		return e.scrape, nil
	case internal.BackendCookie:
		return e.cookie, nil
	case internal.BackendRelay:
		return e.relay, nil
	case internal.BackendOfficial:
		return e.official, nil
	case internal.BackendCommercial:
		return e.commercial, nil
	default:
		return nil, internal.NewValidationError("backend", "unknown backend")
	}
}

// failedExtraction converts an internal error into the caller-facing failed
// result, preserving the failure class in the message.
func failedExtraction(err error) *internal.ExtractionResult {
	if ee, ok := internal.AsExtractError(err); ok {
		return internal.FailedExtraction("%s", ee.ShortMessage())
	}
	return internal.FailedExtraction("%v", err)
}

func failedLinks(err error) *internal.DownloadLinkSet {
	if ee, ok := internal.AsExtractError(err); ok {
		return internal.FailedLinks("%s", ee.ShortMessage())
	}
	return internal.FailedLinks("%v", err)
}
