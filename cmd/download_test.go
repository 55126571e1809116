package cmd

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teraext/extractor"
	"teraext/internal"
)

func TestBestLinkPrefersFastAndUnwraps(t *testing.T) {
	const fastTarget = "https://d.example.net/file/fast?x=~~~&y=???"
	wrapped := extractor.WrapLink(fastTarget, rand.New(rand.NewSource(3)))
	links := &internal.DownloadLinkSet{
		Status: internal.StatusSuccess,
		Links: map[internal.LinkRank]string{
			internal.RankFast:   wrapped,
			internal.RankMedium: "https://d.example.net/file/medium",
		},
	}

	assert.Equal(t, fastTarget, bestLink(links, internal.BackendRelay))

	// Only relay fast links are wrapped; other backends take them verbatim.
	assert.Equal(t, wrapped, bestLink(links, internal.BackendScrape))
}

func TestBestLinkSkipsUndecodableFastLink(t *testing.T) {
	links := &internal.DownloadLinkSet{
		Status: internal.StatusSuccess,
		Links: map[internal.LinkRank]string{
			internal.RankFast:   "https://front.example.net/?url=!!!not-base64!!!",
			internal.RankMedium: "https://d.example.net/file/medium",
		},
	}

	assert.Equal(t, "https://d.example.net/file/medium", bestLink(links, internal.BackendRelay))
}

func TestBestLinkFallsThroughRanks(t *testing.T) {
	links := &internal.DownloadLinkSet{
		Status: internal.StatusSuccess,
		Links:  map[internal.LinkRank]string{internal.RankSlow: "https://d.example.net/file/slow"},
	}
	assert.Equal(t, "https://d.example.net/file/slow", bestLink(links, internal.BackendRelay))

	require.Empty(t, bestLink(&internal.DownloadLinkSet{Status: internal.StatusSuccess}, internal.BackendRelay))
}
