package internal

import "context"

// ShareResolver turns a share URL into a structured file tree.
type ShareResolver interface {
	Resolve(shareURL string) (*ExtractionResult, error)
}

// LinkGenerator resolves one file to its direct download URLs using the auth
// bundle produced by a previous Resolve call.
type LinkGenerator interface {
	GenerateLinks(fsID string, auth *AuthBundle) (*DownloadLinkSet, error)
}

// ResponseCache fronts the paid backends with a TTL-based payload store keyed
// by the normalized share code.
type ResponseCache interface {
	Get(shareURL string) ([]byte, bool)
	Put(shareURL string, payload []byte) bool
	SweepExpired() int
	Clear() int
}

// RateLimiter controls bandwidth usage for the download command.
type RateLimiter interface {
	Wait(ctx context.Context, n int) error
	SetRate(bytesPerSecond int64)
}
