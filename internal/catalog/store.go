package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const cacheFile = "kiwisdr_com.js"

// Store fetches and caches the receiver catalog. With a URL configured it
// uses a tiered fallback: fresh disk cache, network fetch, stale disk cache,
// and finally the local catalog file. Without a URL it reads the local file.
type Store struct {
	url      string
	path     string
	dataRoot string
	maxAge   time.Duration
	client   *http.Client
}

// NewStore returns a store that reads path, or fetches url into a cache under
// dataRoot when url is set.
func NewStore(url, path, dataRoot string, refreshHours int) *Store {
	return &Store{
		url:      url,
		path:     path,
		dataRoot: dataRoot,
		maxAge:   time.Duration(refreshHours) * time.Hour,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// CachePath is where fetched catalog data is kept.
func (s *Store) CachePath() string {
	return filepath.Join(s.dataRoot, cacheFile)
}

// Fetch returns the current catalog as parsed receivers.
func (s *Store) Fetch(ctx context.Context) ([]Receiver, error) {
	if s.url == "" {
		recs, err := LoadFile(s.path)
		if err != nil {
			return nil, err
		}
		return Receivers(recs), nil
	}

	recs, err := s.loadOrFetch(ctx)
	if err != nil {
		return nil, err
	}
	return Receivers(recs), nil
}

// loadOrFetch walks the fallback chain. A tier only serves the run when its
// data parses; a fetched body is cached only after it parses, so an error
// page never replaces a good cache.
func (s *Store) loadOrFetch(ctx context.Context) ([]Record, error) {
	cachePath := s.CachePath()

	info, err := os.Stat(cachePath)
	if err == nil && time.Since(info.ModTime()) < s.maxAge {
		if recs, readErr := readRecords(cachePath); readErr == nil {
			return recs, nil
		}
	}

	body, fetchErr := s.fetchFromNetwork(ctx)
	if fetchErr == nil {
		recs, parseErr := Parse(body)
		if parseErr == nil {
			// Cache write failure is non-fatal; the data is already in memory.
			_ = writeAtomic(cachePath, body)
			return recs, nil
		}
		fetchErr = fmt.Errorf("%s: %w", s.url, parseErr)
	}

	if recs, readErr := readRecords(cachePath); readErr == nil {
		return recs, nil
	}

	if s.path != "" {
		if recs, readErr := LoadFile(s.path); readErr == nil {
			return recs, nil
		}
	}

	return nil, fmt.Errorf("all catalog sources exhausted: %w", fetchErr)
}

// readRecords parses a cache file, treating an empty file as unusable.
func readRecords(path string) ([]Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, ErrNoArray
	}
	return Parse(b)
}

func (s *Store) fetchFromNetwork(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog fetch returned HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// CacheInfo describes the on-disk catalog cache.
type CacheInfo struct {
	Path      string `json:"path"`
	Exists    bool   `json:"exists"`
	Fresh     bool   `json:"fresh"`
	ModTime   string `json:"mod_time,omitempty"`
	AgeS      int    `json:"age_s"`
	Size      int64  `json:"size"`
	SourceURL string `json:"source_url"`
	LocalPath string `json:"local_path"`
	MaxAgeH   int    `json:"max_age_hours"`
}

// CacheInfo reports cache freshness without touching the network.
func (s *Store) CacheInfo() CacheInfo {
	ci := CacheInfo{
		Path:      s.CachePath(),
		SourceURL: s.url,
		LocalPath: s.path,
		MaxAgeH:   int(s.maxAge.Hours()),
	}
	info, err := os.Stat(ci.Path)
	if err != nil {
		return ci
	}
	age := time.Since(info.ModTime())
	ci.Exists = true
	ci.Fresh = age < s.maxAge
	ci.ModTime = info.ModTime().UTC().Format(time.RFC3339)
	ci.AgeS = int(age.Seconds())
	ci.Size = info.Size()
	return ci
}

// writeAtomic writes data to path via a temp file and rename so readers
// never see a half-written file.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "catalog-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
