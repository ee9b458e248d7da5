// Package store owns the combined market table: it discovers raw bhavcopy
// files, normalizes each exactly once, concatenates them into one canonical
// in-memory table, and persists a snapshot cache keyed by source freshness.
//
// The combined table is immutable after construction. Its canonical order is
// (symbol asc, date asc), an invariant that per-symbol window slicing
// relies on.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/seenimoa/bhavlens/internal/metrics"
	"github.com/seenimoa/bhavlens/internal/schema"
	"github.com/seenimoa/bhavlens/pkg/models"
)

// ErrNoData is returned when no usable rows exist for a request.
var ErrNoData = errors.New("no market data available")

// ErrUnknownMetric is returned for an unsupported ranking metric.
var ErrUnknownMetric = errors.New("unknown ranking metric")

// snapshotName is the combined-table cache file under the cache directory.
const snapshotName = "market_snapshot.gob"

// fileEntry memoizes one normalized source file, keyed by its mtime so a
// touched file is re-read on refresh.
type fileEntry struct {
	modTime time.Time
	records []models.MarketRecord
}

// Store loads and serves the combined market table.
type Store struct {
	root      string
	rawSubdir string
	cacheDir  string

	mu        sync.Mutex
	loaded    bool
	records   []models.MarketRecord
	fileCache map[string]fileEntry

	minDate      time.Time
	maxDate      time.Time
	totalSymbols int
}

// New creates a Store rooted at the given data directory. A missing root is
// the one fatal, construction-time error in the whole data layer.
func New(root, rawSubdir, cacheDir string) (*Store, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("data root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data root %s is not a directory", root)
	}
	return &Store{
		root:      root,
		rawSubdir: rawSubdir,
		cacheDir:  cacheDir,
		fileCache: make(map[string]fileEntry),
	}, nil
}

// Files enumerates candidate source files: the raw subfolder when present
// (else the root), .csv only, skipping anything under a news folder, in a
// deterministic sorted order.
func (s *Store) Files() ([]string, error) {
	base := s.root
	if s.rawSubdir != "" {
		raw := filepath.Join(s.root, s.rawSubdir)
		if info, err := os.Stat(raw); err == nil && info.IsDir() {
			base = raw
		}
	}

	var files []string
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.Contains(strings.ToLower(d.Name()), "news") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".csv") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", base, err)
	}
	sort.Strings(files)
	return files, nil
}

// Records returns the combined table, building it on first access. The
// returned slice is shared and must not be mutated.
func (s *Store) Records() ([]models.MarketRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(); err != nil {
		return nil, err
	}
	return s.records, nil
}

// Refresh drops the in-memory table and re-establishes it, reusing the
// snapshot when still fresh. Used by the serve-mode scheduler.
func (s *Store) Refresh() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
	return s.ensureLoadedLocked()
}

// MinDate returns the earliest trading date in the combined table.
func (s *Store) MinDate() time.Time { s.mu.Lock(); defer s.mu.Unlock(); return s.minDate }

// MaxDate returns the latest trading date in the combined table.
func (s *Store) MaxDate() time.Time { s.mu.Lock(); defer s.mu.Unlock(); return s.maxDate }

// TotalSymbols returns the distinct symbol count.
func (s *Store) TotalSymbols() int { s.mu.Lock(); defer s.mu.Unlock(); return s.totalSymbols }

// StockData returns one symbol's rows (case-insensitive match) within an
// optional inclusive date range, sorted by date.
func (s *Store) StockData(symbol string, from, to time.Time) ([]models.MarketRecord, error) {
	all, err := s.Records()
	if err != nil {
		return nil, err
	}

	want := strings.ToUpper(strings.TrimSpace(symbol))
	var out []models.MarketRecord
	for _, r := range all {
		if r.Symbol != want {
			continue
		}
		if !from.IsZero() && r.Date.Before(from) {
			continue
		}
		if !to.IsZero() && r.Date.After(to) {
			continue
		}
		out = append(out, r)
	}
	// Already date-sorted within a symbol by the canonical order.
	return out, nil
}

// RankStocks computes PeriodStats per symbol within the window and returns
// the top n sorted strictly descending by the requested metric ("return" or
// "volume"). Symbols with insufficient data are dropped.
func (s *Store) RankStocks(from, to time.Time, topN int, metric string) ([]models.PeriodStats, error) {
	if metric != "return" && metric != "volume" {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, metric)
	}

	all, err := s.Records()
	if err != nil {
		return nil, err
	}

	var stats []models.PeriodStats
	var group []models.MarketRecord
	flush := func() {
		if st := metrics.PeriodStats(group); st != nil {
			stats = append(stats, *st)
		}
		group = group[:0]
	}

	// The canonical (symbol, date) order makes grouping a single pass.
	for _, r := range all {
		if !from.IsZero() && r.Date.Before(from) {
			continue
		}
		if !to.IsZero() && r.Date.After(to) {
			continue
		}
		if len(group) > 0 && group[len(group)-1].Symbol != r.Symbol {
			flush()
		}
		group = append(group, r)
	}
	flush()

	sort.SliceStable(stats, func(i, j int) bool {
		if metric == "volume" {
			return stats[i].TotalVolume > stats[j].TotalVolume
		}
		return stats[i].ReturnPct > stats[j].ReturnPct
	})

	if topN > 0 && len(stats) > topN {
		stats = stats[:topN]
	}
	return stats, nil
}

// ensureLoadedLocked establishes the combined table: from the snapshot when
// it is newer than every raw source, otherwise from the raw files. Caller
// holds s.mu.
func (s *Store) ensureLoadedLocked() error {
	if s.loaded {
		return nil
	}

	files, err := s.Files()
	if err != nil {
		return err
	}

	snapPath := filepath.Join(s.cacheDir, snapshotName)
	if records, ok := loadSnapshot(snapPath, newestModTime(files)); ok {
		s.establish(records)
		log.Printf("[INFO] loaded %d rows from snapshot cache", len(records))
		return nil
	}

	var combined []models.MarketRecord
	usable := 0
	for _, path := range files {
		records, err := s.readFileMemoized(path)
		if err != nil {
			log.Printf("[WARN] skipping %s: %v", path, err)
			continue
		}
		if len(records) == 0 || schema.AllNull(records) {
			log.Printf("[WARN] skipping %s: no usable rows", path)
			continue
		}
		usable++
		combined = append(combined, records...)
	}

	// Rows without a valid date or close carry no signal for any query.
	kept := combined[:0]
	for _, r := range combined {
		if r.HasDate() && r.HasClose() {
			kept = append(kept, r)
		}
	}

	kept = resolveCollisions(kept)
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Symbol != kept[j].Symbol {
			return kept[i].Symbol < kept[j].Symbol
		}
		return kept[i].Date.Before(kept[j].Date)
	})

	s.establish(kept)

	if usable == 0 || len(kept) == 0 {
		// Nothing loaded; do not write a cache for an empty table.
		return nil
	}
	if err := writeSnapshot(snapPath, kept); err != nil {
		log.Printf("[WARN] snapshot cache write failed: %v", err)
	}
	return nil
}

// establish installs the combined table and fixes the metadata, computed
// once per (re)load rather than per query.
func (s *Store) establish(records []models.MarketRecord) {
	s.records = records
	s.loaded = true
	s.minDate, s.maxDate = time.Time{}, time.Time{}
	symbols := make(map[string]struct{})
	for _, r := range records {
		if s.minDate.IsZero() || r.Date.Before(s.minDate) {
			s.minDate = r.Date
		}
		if r.Date.After(s.maxDate) {
			s.maxDate = r.Date
		}
		symbols[r.Symbol] = struct{}{}
	}
	s.totalSymbols = len(symbols)
}

// readFileMemoized normalizes a source file at most once per mtime.
func (s *Store) readFileMemoized(path string) ([]models.MarketRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if entry, ok := s.fileCache[path]; ok && entry.modTime.Equal(info.ModTime()) {
		return entry.records, nil
	}

	records, err := schema.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s.fileCache[path] = fileEntry{modTime: info.ModTime(), records: records}
	return records, nil
}

// collisionKey identifies a (symbol, date) pair across source files.
type collisionKey struct {
	symbol string
	date   time.Time
}

// resolveCollisions applies the explicit duplicate policy: when the same
// (symbol, date) appears in multiple source files, keep the row with the
// most populated fields; on a tie the first occurrence wins.
func resolveCollisions(rows []models.MarketRecord) []models.MarketRecord {
	seen := make(map[collisionKey]int, len(rows))
	out := make([]models.MarketRecord, 0, len(rows))
	for _, r := range rows {
		k := collisionKey{symbol: r.Symbol, date: r.Date}
		if i, ok := seen[k]; ok {
			if r.FieldCount() > out[i].FieldCount() {
				out[i] = r
			}
			continue
		}
		seen[k] = len(out)
		out = append(out, r)
	}
	return out
}

// newestModTime returns the latest modification time among the given files.
func newestModTime(files []string) time.Time {
	var newest time.Time
	for _, f := range files {
		if info, err := os.Stat(f); err == nil && info.ModTime().After(newest) {
			newest = info.ModTime()
		}
	}
	return newest
}
