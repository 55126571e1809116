package internal

import "fmt"

// Backend identifies one of the alternative extraction strategies.
type Backend int

const (
	// BackendScrape resolves shares by scraping the public share page for
	// the anti-forgery token before calling the listing API.
	BackendScrape Backend = iota
	// BackendCookie uses a caller-supplied session cookie and skips the
	// authorization-page scrape entirely.
	BackendCookie
	// BackendRelay obtains the request signature from a community-run
	// signing relay instead of scraping it locally.
	BackendRelay
	// BackendOfficial talks to the official OAuth open API.
	BackendOfficial
	// BackendCommercial talks to a paid resale API; responses are cached.
	BackendCommercial
)

// String returns the flag/JSON name of the backend.
func (b Backend) String() string {
	switch b {
	case BackendScrape:
		return "scrape"
	case BackendCookie:
		return "cookie"
	case BackendRelay:
		return "relay"
	case BackendOfficial:
		return "official"
	case BackendCommercial:
		return "commercial"
	default:
		return "unknown"
	}
}

// ParseBackend converts a backend name into a Backend value.
func ParseBackend(name string) (Backend, error) {
	switch name {
	case "scrape", "":
		return BackendScrape, nil
	case "cookie":
		return BackendCookie, nil
	case "relay":
		return BackendRelay, nil
	case "official":
		return BackendOfficial, nil
	case "commercial":
		return BackendCommercial, nil
	default:
		return 0, fmt.Errorf("unknown backend %q (expected scrape, cookie, relay, official or commercial)", name)
	}
}

// Status reports the overall outcome of an extraction or link-generation call.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// FileCategory classifies a non-directory entry by its file extension.
type FileCategory string

const (
	CategoryVideo    FileCategory = "video"
	CategoryImage    FileCategory = "image"
	CategoryDocument FileCategory = "document"
	CategoryArchive  FileCategory = "archive"
	CategoryAudio    FileCategory = "audio"
	CategoryOther    FileCategory = "other"
)

// FileNode is one entry in a resolved share listing. Directories own their
// children exclusively; a directory whose child listing failed carries an
// empty Children slice and a TraversalWarning on the enclosing result.
type FileNode struct {
	IsDir        bool         `json:"is_dir"`
	Path         string       `json:"path"`
	FsID         string       `json:"fs_id"`
	Name         string       `json:"name"`
	Category     FileCategory `json:"type"`
	Size         int64        `json:"size"`
	ThumbnailURL string       `json:"thumbnail_url,omitempty"`
	Children     []*FileNode  `json:"children,omitempty"`
}

// AuthBundle carries the per-backend state a caller must hand back to
// generate download links after an extraction. Which fields are populated
// depends on the backend that produced it.
type AuthBundle struct {
	ShortCode   string `json:"short_code"`
	UK          string `json:"uk,omitempty"`
	ShareID     string `json:"shareid,omitempty"`
	Sign        string `json:"sign,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
	JSToken     string `json:"js_token,omitempty"`
	BrowserID   string `json:"browser_id,omitempty"`
	Cookie      string `json:"-"`
	AccessToken string `json:"-"`
}

// TraversalWarning records a subtree that degraded to an empty child list
// during recursive directory resolution.
type TraversalWarning struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ExtractionResult is the uniform output of every backend. Callers always
// receive one of these from the facade; failures are reported through Status
// and ErrorMessage, never as raised errors.
type ExtractionResult struct {
	Status       Status             `json:"status"`
	FileTree     []*FileNode        `json:"list"`
	Auth         *AuthBundle        `json:"auth,omitempty"`
	ErrorMessage string             `json:"error_message,omitempty"`
	Warnings     []TraversalWarning `json:"warnings,omitempty"`
}

// FailedExtraction builds a failed result carrying a short diagnostic message.
func FailedExtraction(format string, args ...interface{}) *ExtractionResult {
	return &ExtractionResult{
		Status:       StatusFailed,
		ErrorMessage: fmt.Sprintf(format, args...),
	}
}

// LinkRank denotes the relative speed/reliability tier of a download link.
type LinkRank string

const (
	RankSlow   LinkRank = "slow"
	RankMedium LinkRank = "medium"
	RankFast   LinkRank = "fast"
)

// DownloadLinkSet holds the direct download URLs produced for a single file.
// Not every backend populates every rank.
type DownloadLinkSet struct {
	Status       Status              `json:"status"`
	Links        map[LinkRank]string `json:"links"`
	ErrorMessage string              `json:"error_message,omitempty"`
}

// FailedLinks builds a failed link set with a diagnostic message.
func FailedLinks(format string, args ...interface{}) *DownloadLinkSet {
	return &DownloadLinkSet{
		Status:       StatusFailed,
		ErrorMessage: fmt.Sprintf(format, args...),
	}
}
