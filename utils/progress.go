package utils

import (
	"fmt"
	"time"

	"github.com/cheggaaa/pb/v3"
)

// ProgressTracker wraps a terminal progress bar for the download command.
// In quiet mode it only accumulates counters.
type ProgressTracker struct {
	bar       *pb.ProgressBar
	quiet     bool
	startTime time.Time
	total     int64
	current   int64
}

// DownloadSummary contains final download statistics.
type DownloadSummary struct {
	TotalBytes   int64
	TotalTime    time.Duration
	AverageSpeed float64 // bytes per second
	Filename     string
}

// NewProgressTracker creates a progress tracker for total bytes. A total of
// zero renders an indeterminate counter.
func NewProgressTracker(total int64, quiet bool) *ProgressTracker {
	tracker := &ProgressTracker{
		quiet:     quiet,
		startTime: time.Now(),
		total:     total,
	}
	if !quiet {
		tmpl := `{{counters . }} {{bar . "[" "=" ">" " " "]"}} {{percent . }} {{speed . }} {{rtime . "ETA %s"}}`
		tracker.bar = pb.ProgressBarTemplate(tmpl).Start64(total)
		tracker.bar.Set(pb.Bytes, true)
	}
	return tracker
}

// Add advances the progress by n bytes.
func (t *ProgressTracker) Add(n int) {
	t.current += int64(n)
	if t.bar != nil {
		t.bar.Add(n)
	}
}

// Finish closes the bar and returns the final statistics.
func (t *ProgressTracker) Finish(filename string) *DownloadSummary {
	if t.bar != nil {
		t.bar.Finish()
	}
	elapsed := time.Since(t.startTime)
	avg := 0.0
	if elapsed > 0 {
		avg = float64(t.current) / elapsed.Seconds()
	}
	return &DownloadSummary{
		TotalBytes:   t.current,
		TotalTime:    elapsed,
		AverageSpeed: avg,
		Filename:     filename,
	}
}

// String renders the summary for terminal output.
func (s *DownloadSummary) String() string {
	return fmt.Sprintf("%s: %d bytes in %s (%.1f KB/s)",
		s.Filename, s.TotalBytes, s.TotalTime.Round(time.Millisecond), s.AverageSpeed/1024)
}
