// Package downloader saves resolved direct links to disk.
package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"teraext/internal"
	"teraext/utils"
)

// Engine streams a direct link to a local file. Downloads go through the
// retrying transport, so transient upstream failures are absorbed before
// the body ever starts.
type Engine struct {
	transport *utils.Transport
	limiter   internal.RateLimiter
	logger    *internal.SecureLogger
	quiet     bool
}

// Options tune a download engine.
type Options struct {
	// RateLimit caps throughput in bytes per second; zero means unlimited.
	RateLimit int64
	Quiet     bool
}

// NewEngine wires an engine over an existing transport.
func NewEngine(transport *utils.Transport, logger *internal.SecureLogger, opts Options) *Engine {
	if logger == nil {
		logger = internal.NopLogger()
	}
	var limiter internal.RateLimiter
	if opts.RateLimit > 0 {
		limiter = utils.NewTokenBucketLimiter(opts.RateLimit)
	}
	return &Engine{
		transport: transport,
		limiter:   limiter,
		logger:    logger,
		quiet:     opts.Quiet,
	}
}

// Download fetches directURL into outputPath. The file is written to a
// .part sibling and renamed into place only on success, so an interrupted
// run never leaves a truncated final file.
func (e *Engine) Download(ctx context.Context, directURL, outputPath string) (*utils.DownloadSummary, error) {
	if directURL == "" {
		return nil, fmt.Errorf("download URL cannot be empty")
	}
	if outputPath == "" {
		return nil, fmt.Errorf("output path cannot be empty")
	}

	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	resp, err := e.transport.Get(directURL, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return nil, internal.NewDownloadLinkError(
			fmt.Sprintf("unexpected HTTP status %d fetching file", resp.StatusCode)).WithURL(directURL)
	}

	partPath := outputPath + ".part"
	partFile, err := os.OpenFile(partPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create part file: %w", err)
	}

	tracker := utils.NewProgressTracker(resp.ContentLength, e.quiet)
	written, copyErr := e.copy(ctx, partFile, resp.Body, tracker)
	closeErr := partFile.Close()

	if copyErr != nil {
		os.Remove(partPath)
		return nil, copyErr
	}
	if closeErr != nil {
		os.Remove(partPath)
		return nil, fmt.Errorf("failed to finalize part file: %w", closeErr)
	}
	if resp.ContentLength > 0 && written != resp.ContentLength {
		os.Remove(partPath)
		return nil, fmt.Errorf("incomplete download: got %d of %d bytes", written, resp.ContentLength)
	}

	if err := os.Rename(partPath, outputPath); err != nil {
		os.Remove(partPath)
		return nil, fmt.Errorf("failed to move file into place: %w", err)
	}

	summary := tracker.Finish(outputPath)
	e.logger.Info("downloaded %s (%d bytes)", outputPath, written)
	return summary, nil
}

// copy streams body to dst honoring the rate limiter and cancellation.
func (e *Engine) copy(ctx context.Context, dst io.Writer, src io.Reader, tracker *utils.ProgressTracker) (int64, error) {
	buf := make([]byte, 32*1024)
	var total int64

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			if e.limiter != nil {
				if err := e.limiter.Wait(ctx, n); err != nil {
					return total, err
				}
			}
			written, writeErr := dst.Write(buf[:n])
			total += int64(written)
			tracker.Add(written)
			if writeErr != nil {
				return total, writeErr
			}
			if written != n {
				return total, io.ErrShortWrite
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return total, nil
			}
			return total, fmt.Errorf("failed to read response body: %w", readErr)
		}
	}
}
