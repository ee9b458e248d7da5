// Package classify maps symbols to sectors, index memberships, and market-cap
// tiers from CSV sources of truth. All lookup tables are instance-scoped and
// built lazily on first use; there is no package-level state.
package classify

import (
	"encoding/csv"
	"encoding/gob"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	sectorCacheName  = "sector_map.gob"
	indicesCacheName = "indices_map.gob"
)

// Market-cap tiers in priority order. A symbol in both a large-cap and a
// mid-cap index counts as LARGE.
const (
	TierLarge = "LARGE"
	TierMid   = "MID"
	TierSmall = "SMALL"
)

var tierIndexes = []struct {
	tier    string
	indexes []string
}{
	{TierLarge, []string{"NIFTY50", "NIFTYNEXT50", "NIFTY100"}},
	{TierMid, []string{"NIFTYMIDCAP50", "NIFTYMIDCAP100", "NIFTYMIDCAP150"}},
	{TierSmall, []string{"NIFTYSMALLCAP50", "NIFTYSMALLCAP100", "NIFTYSMALLCAP250"}},
}

// Classifier serves sector, index-membership, and market-cap lookups. Each
// table loads at most once per instance; a failed load is remembered and
// surfaces as empty results rather than repeated disk churn.
type Classifier struct {
	sectorCSV  string
	indicesDir string
	cacheDir   string

	sectorOnce sync.Once
	sectors    map[string]string // SYMBOL -> canonical sector name

	indicesOnce sync.Once
	indices     map[string][]string // normalized index name -> symbols

	capOnce sync.Once
	capTier map[string]string // SYMBOL -> tier
}

// New creates a Classifier. Missing source files are tolerated; the affected
// lookups just come back empty.
func New(sectorCSV, indicesDir, cacheDir string) *Classifier {
	return &Classifier{sectorCSV: sectorCSV, indicesDir: indicesDir, cacheDir: cacheDir}
}

// SectorOf returns the sector for a symbol, or "" when unmapped.
func (c *Classifier) SectorOf(symbol string) string {
	c.loadSectors()
	return c.sectors[strings.ToUpper(strings.TrimSpace(symbol))]
}

// SectorStocks resolves a sector name case-insensitively and returns the
// canonical casing plus its member symbols, sorted. ok=false means the sector
// is unknown.
func (c *Classifier) SectorStocks(sector string) (canonical string, symbols []string, ok bool) {
	c.loadSectors()
	want := strings.ToLower(strings.TrimSpace(sector))
	for sym, sec := range c.sectors {
		if strings.ToLower(sec) == want {
			canonical = sec
			symbols = append(symbols, sym)
		}
	}
	if canonical == "" {
		return "", nil, false
	}
	sort.Strings(symbols)
	return canonical, symbols, true
}

// ValidSectors returns the distinct sector names, sorted.
func (c *Classifier) ValidSectors() []string {
	c.loadSectors()
	seen := make(map[string]struct{})
	for _, sec := range c.sectors {
		seen[sec] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for sec := range seen {
		out = append(out, sec)
	}
	sort.Strings(out)
	return out
}

// IndexConstituents returns the member symbols of a named index. The name is
// normalized (spaces, hyphens, and underscores stripped, uppercased) and a few
// NIFTY-prefixed spellings are tried before giving up with an empty list.
func (c *Classifier) IndexConstituents(name string) []string {
	c.loadIndices()
	for _, candidate := range indexNameVariants(name) {
		if symbols, ok := c.indices[candidate]; ok {
			return symbols
		}
	}
	return nil
}

// IndexNames returns the known index names (normalized form), sorted.
func (c *Classifier) IndexNames() []string {
	c.loadIndices()
	out := make([]string, 0, len(c.indices))
	for name := range c.indices {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// MarketCapTier classifies a symbol as LARGE, MID, or SMALL from index
// membership, large-cap indexes taking priority. "" when the symbol appears in
// none of the tier indexes.
func (c *Classifier) MarketCapTier(symbol string) string {
	c.capOnce.Do(func() {
		c.capTier = make(map[string]string)
		for _, t := range tierIndexes {
			for _, idx := range t.indexes {
				for _, sym := range c.IndexConstituents(idx) {
					if _, ok := c.capTier[sym]; !ok {
						c.capTier[sym] = t.tier
					}
				}
			}
		}
	})
	return c.capTier[strings.ToUpper(strings.TrimSpace(symbol))]
}

// indexNameVariants produces the lookup candidates for a user-supplied index
// name: the normalized form itself, then NIFTY-prefixed and -stripped forms.
func indexNameVariants(name string) []string {
	norm := normalizeIndexName(name)
	if norm == "" {
		return nil
	}
	variants := []string{norm}
	if !strings.HasPrefix(norm, "NIFTY") {
		variants = append(variants, "NIFTY"+norm)
	} else if trimmed := strings.TrimPrefix(norm, "NIFTY"); trimmed != "" {
		variants = append(variants, trimmed)
	}
	return variants
}

func normalizeIndexName(name string) string {
	r := strings.NewReplacer(" ", "", "-", "", "_", "")
	return strings.ToUpper(r.Replace(strings.TrimSpace(name)))
}

func (c *Classifier) loadSectors() {
	c.sectorOnce.Do(func() {
		c.sectors = make(map[string]string)
		if c.sectorCSV == "" {
			return
		}
		info, err := os.Stat(c.sectorCSV)
		if err != nil {
			log.Printf("[WARN] sector map unavailable: %v", err)
			return
		}

		cachePath := filepath.Join(c.cacheDir, sectorCacheName)
		if m, ok := loadGobCache[map[string]string](cachePath, info.ModTime()); ok {
			c.sectors = m
			return
		}

		m, err := readSectorCSV(c.sectorCSV)
		if err != nil {
			log.Printf("[WARN] sector map load failed: %v", err)
			return
		}
		c.sectors = m
		if len(m) > 0 && c.cacheDir != "" {
			if err := writeGobCache(cachePath, m); err != nil {
				log.Printf("[WARN] sector cache write failed: %v", err)
			}
		}
	})
}

func (c *Classifier) loadIndices() {
	c.indicesOnce.Do(func() {
		c.indices = make(map[string][]string)
		if c.indicesDir == "" {
			return
		}
		snapDir, newest, err := latestIndexSnapshot(c.indicesDir)
		if err != nil {
			log.Printf("[WARN] index constituents unavailable: %v", err)
			return
		}

		cachePath := filepath.Join(c.cacheDir, indicesCacheName)
		if m, ok := loadGobCache[map[string][]string](cachePath, newest); ok {
			c.indices = m
			return
		}

		m, err := readIndicesDir(snapDir)
		if err != nil {
			log.Printf("[WARN] index constituents load failed: %v", err)
			return
		}
		c.indices = m
		if len(m) > 0 && c.cacheDir != "" {
			if err := writeGobCache(cachePath, m); err != nil {
				log.Printf("[WARN] indices cache write failed: %v", err)
			}
		}
	})
}

// readSectorCSV parses the symbol-to-sector table. The symbol and sector
// columns are located by header name, case-insensitively.
func readSectorCSV(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	symCol := findColumn(header, "SYMBOL", "TCKRSYMB")
	secCol := findColumn(header, "SECTOR", "INDUSTRY", "BASIC INDUSTRY", "MACRO")
	if symCol < 0 || secCol < 0 {
		return nil, fmt.Errorf("%s: no symbol/sector columns in header %v", path, header)
	}

	out := make(map[string]string)
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if symCol >= len(row) || secCol >= len(row) {
			continue
		}
		sym := strings.ToUpper(strings.TrimSpace(row[symCol]))
		sec := strings.TrimSpace(row[secCol])
		if sym == "" || sec == "" {
			continue
		}
		out[sym] = sec
	}
	return out, nil
}

// latestIndexSnapshot picks the most recent dated subfolder of the indices
// directory. Subfolder names are date-stamped, so lexicographic max is the
// newest. The returned time is the newest CSV mtime inside it.
func latestIndexSnapshot(dir string) (string, time.Time, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", time.Time{}, err
	}
	var latest string
	for _, e := range entries {
		if e.IsDir() && e.Name() > latest {
			latest = e.Name()
		}
	}
	if latest == "" {
		// No dated subfolders: treat the directory itself as the snapshot.
		return dir, newestCSVModTime(dir), nil
	}
	snap := filepath.Join(dir, latest)
	return snap, newestCSVModTime(snap), nil
}

func newestCSVModTime(dir string) time.Time {
	var newest time.Time
	entries, err := os.ReadDir(dir)
	if err != nil {
		return newest
	}
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		if info, err := e.Info(); err == nil && info.ModTime().After(newest) {
			newest = info.ModTime()
		}
	}
	return newest
}

// readIndicesDir loads every per-index CSV in a snapshot folder. The index
// name comes from the file name (ind_nifty50list.csv -> NIFTY50), the members
// from the SYMBOL column.
func readIndicesDir(dir string) (map[string][]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]string)
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		name := indexNameFromFile(e.Name())
		if name == "" {
			continue
		}
		symbols, err := readConstituentsCSV(filepath.Join(dir, e.Name()))
		if err != nil {
			log.Printf("[WARN] skipping index file %s: %v", e.Name(), err)
			continue
		}
		if len(symbols) > 0 {
			out[name] = symbols
		}
	}
	return out, nil
}

// indexNameFromFile derives a normalized index name from conventional NSE
// list-file names: "ind_nifty50list.csv" and plain "NIFTY 50.csv" both map to
// NIFTY50.
func indexNameFromFile(filename string) string {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	base = strings.TrimPrefix(strings.ToLower(base), "ind_")
	base = strings.TrimSuffix(base, "list")
	return normalizeIndexName(base)
}

func readConstituentsCSV(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	symCol := findColumn(header, "SYMBOL", "TCKRSYMB")
	if symCol < 0 {
		return nil, fmt.Errorf("%s: no symbol column in header %v", path, header)
	}

	var out []string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if symCol >= len(row) {
			continue
		}
		if sym := strings.ToUpper(strings.TrimSpace(row[symCol])); sym != "" {
			out = append(out, sym)
		}
	}
	sort.Strings(out)
	return out, nil
}

func findColumn(header []string, candidates ...string) int {
	for _, want := range candidates {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), want) {
				return i
			}
		}
	}
	return -1
}

// loadGobCache reads a cached lookup table when the cache file is newer than
// the newest source; ok=false means rebuild.
func loadGobCache[T any](path string, newestSource time.Time) (T, bool) {
	var zero T
	info, err := os.Stat(path)
	if err != nil || !info.ModTime().After(newestSource) {
		return zero, false
	}
	f, err := os.Open(path)
	if err != nil {
		return zero, false
	}
	defer f.Close()

	var v T
	if err := gob.NewDecoder(f).Decode(&v); err != nil {
		return zero, false
	}
	return v, true
}

func writeGobCache(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".classify-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(v); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
