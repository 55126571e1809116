// Package cache provides the file-backed TTL cache that fronts the paid
// extraction backends. Entries are keyed by the normalized share code so the
// same content reached via mirrored domains maps to one entry.
package cache

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"teraext/internal"
	"teraext/utils"
)

const entrySuffix = ".json"

// entry is the on-disk record. Expiry is judged against the TTL recorded at
// write time, so tightening the configured TTL never un-expires old entries.
type entry struct {
	Key        string    `json:"key"`
	StoredAt   time.Time `json:"stored_at"`
	TTLSeconds float64   `json:"ttl_seconds"`
	Payload    []byte    `json:"payload"`
}

func (e *entry) expired(now time.Time) bool {
	ttl := time.Duration(e.TTLSeconds * float64(time.Second))
	return now.Sub(e.StoredAt) > ttl
}

// Store implements internal.ResponseCache over a directory of JSON files.
// Reads are safe concurrently; writers to the same key are last-writer-wins.
type Store struct {
	dir    string
	ttl    time.Duration
	logger *internal.SecureLogger
	mu     sync.Mutex

	// now is replaced in tests to step time without sleeping.
	now func() time.Time
}

// New creates (or reopens) a cache store under dir with a TTL given in
// hours. Fractional values are allowed, down to sub-second for testing.
func New(dir string, ttlHours float64, logger *internal.SecureLogger) (*Store, error) {
	if logger == nil {
		logger = internal.NopLogger()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &Store{
		dir:    dir,
		ttl:    time.Duration(ttlHours * float64(time.Hour)),
		logger: logger,
		now:    time.Now,
	}, nil
}

// path maps a share URL to its entry file. Keys are hashed so arbitrary
// short-codes stay filesystem-safe.
func (s *Store) path(shareURL string) (string, string) {
	key := utils.NormalizeShareKey(shareURL)
	filename := fmt.Sprintf("%x%s", md5.Sum([]byte(key)), entrySuffix)
	return key, filepath.Join(s.dir, filename)
}

// Get returns the cached payload for a share URL, or absent. An entry older
// than its TTL is treated as absent; the file itself is only removed by an
// explicit sweep.
func (s *Store) Get(shareURL string) ([]byte, bool) {
	_, file := s.path(shareURL)
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, false
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		s.logger.Warn("discarding unreadable cache entry %s: %v", filepath.Base(file), err)
		return nil, false
	}
	if e.expired(s.now()) {
		return nil, false
	}
	return e.Payload, true
}

// Put stores a payload for a share URL, overwriting any previous entry.
// Returns false when the entry could not be written; a failed Put never
// fails the extraction it was caching.
func (s *Store) Put(shareURL string, payload []byte) bool {
	key, file := s.path(shareURL)

	data, err := json.Marshal(&entry{
		Key:        key,
		StoredAt:   s.now(),
		TTLSeconds: s.ttl.Seconds(),
		Payload:    payload,
	})
	if err != nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tmp := file + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		s.logger.Warn("cache write failed for %s: %v", key, err)
		return false
	}
	if err := os.Rename(tmp, file); err != nil {
		os.Remove(tmp)
		s.logger.Warn("cache rename failed for %s: %v", key, err)
		return false
	}
	return true
}

// SweepExpired deletes every expired entry and returns how many were
// removed. Calling it again without intervening writes removes nothing.
func (s *Store) SweepExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	now := s.now()
	for _, file := range s.entryFiles() {
		data, err := os.ReadFile(file)
		if err != nil {
			continue
		}
		var e entry
		if err := json.Unmarshal(data, &e); err != nil || e.expired(now) {
			if os.Remove(file) == nil {
				removed++
			}
		}
	}
	return removed
}

// Clear deletes every entry regardless of age and returns the count.
func (s *Store) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, file := range s.entryFiles() {
		if os.Remove(file) == nil {
			removed++
		}
	}
	return removed
}

func (s *Store) entryFiles() []string {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil
	}
	var files []string
	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), entrySuffix) {
			continue
		}
		files = append(files, filepath.Join(s.dir, de.Name()))
	}
	return files
}
