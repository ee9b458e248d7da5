package classify

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func sectorFixture(t *testing.T) string {
	dir := t.TempDir()
	return writeFile(t, dir, "sectors.csv",
		"SYMBOL,SECTOR\n"+
			"TCS,Information Technology\n"+
			"INFY,Information Technology\n"+
			"HDFCBANK,Financial Services\n"+
			"SUNPHARMA,Pharma\n")
}

func indicesFixture(t *testing.T) string {
	dir := t.TempDir()
	writeFile(t, dir, filepath.Join("2024-06-01", "ind_nifty50list.csv"),
		"Company Name,Industry,Symbol\nTata Consultancy,IT,TCS\nHDFC Bank,Fin,HDFCBANK\n")
	writeFile(t, dir, filepath.Join("2024-06-01", "ind_niftymidcap150list.csv"),
		"Company Name,Industry,Symbol\nSun Pharma,Pharma,SUNPHARMA\nHDFC Bank,Fin,HDFCBANK\n")
	writeFile(t, dir, filepath.Join("2024-06-01", "ind_niftysmallcap250list.csv"),
		"Company Name,Industry,Symbol\nSomething,Misc,TINYCO\n")
	// An older snapshot that must be ignored.
	writeFile(t, dir, filepath.Join("2024-01-01", "ind_nifty50list.csv"),
		"Company Name,Industry,Symbol\nStale Corp,Old,STALE\n")
	return dir
}

func TestSectorStocksCaseInsensitive(t *testing.T) {
	c := New(sectorFixture(t), "", "")

	canonical, symbols, ok := c.SectorStocks("information technology")
	if !ok {
		t.Fatal("expected sector match")
	}
	if canonical != "Information Technology" {
		t.Errorf("canonical = %q", canonical)
	}
	if !reflect.DeepEqual(symbols, []string{"INFY", "TCS"}) {
		t.Errorf("symbols = %v", symbols)
	}

	if _, _, ok := c.SectorStocks("Nonexistent"); ok {
		t.Error("unknown sector must not match")
	}
}

func TestValidSectors(t *testing.T) {
	c := New(sectorFixture(t), "", "")
	want := []string{"Financial Services", "Information Technology", "Pharma"}
	if got := c.ValidSectors(); !reflect.DeepEqual(got, want) {
		t.Errorf("ValidSectors = %v, want %v", got, want)
	}
}

func TestSectorOf(t *testing.T) {
	c := New(sectorFixture(t), "", "")
	if got := c.SectorOf(" tcs "); got != "Information Technology" {
		t.Errorf("SectorOf(tcs) = %q", got)
	}
	if got := c.SectorOf("NOPE"); got != "" {
		t.Errorf("SectorOf(NOPE) = %q, want empty", got)
	}
}

func TestMissingSourcesAreEmpty(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "absent.csv"), filepath.Join(t.TempDir(), "absent"), "")
	if got := c.ValidSectors(); len(got) != 0 {
		t.Errorf("expected no sectors, got %v", got)
	}
	if got := c.IndexConstituents("NIFTY 50"); got != nil {
		t.Errorf("expected no constituents, got %v", got)
	}
	if got := c.MarketCapTier("TCS"); got != "" {
		t.Errorf("expected empty tier, got %q", got)
	}
}

func TestIndexConstituentsNameVariants(t *testing.T) {
	c := New("", indicesFixture(t), "")

	want := []string{"HDFCBANK", "TCS"}
	for _, name := range []string{"NIFTY50", "NIFTY 50", "nifty-50", "Nifty_50", "50"} {
		if got := c.IndexConstituents(name); !reflect.DeepEqual(got, want) {
			t.Errorf("IndexConstituents(%q) = %v, want %v", name, got, want)
		}
	}
	if got := c.IndexConstituents("BANKEX"); got != nil {
		t.Errorf("unknown index should be empty, got %v", got)
	}
}

func TestLatestSnapshotWins(t *testing.T) {
	c := New("", indicesFixture(t), "")
	for _, sym := range c.IndexConstituents("NIFTY50") {
		if sym == "STALE" {
			t.Fatal("constituents loaded from an older snapshot folder")
		}
	}
}

func TestMarketCapTierPriority(t *testing.T) {
	c := New("", indicesFixture(t), "")

	// HDFCBANK is in both NIFTY50 and MIDCAP150: large-cap membership wins.
	cases := map[string]string{
		"HDFCBANK":  TierLarge,
		"TCS":       TierLarge,
		"SUNPHARMA": TierMid,
		"TINYCO":    TierSmall,
		"UNLISTED":  "",
	}
	for sym, want := range cases {
		if got := c.MarketCapTier(sym); got != want {
			t.Errorf("MarketCapTier(%s) = %q, want %q", sym, got, want)
		}
	}
}

func TestSectorCacheRoundTrip(t *testing.T) {
	cacheDir := t.TempDir()
	csvPath := sectorFixture(t)

	c1 := New(csvPath, "", cacheDir)
	first := c1.ValidSectors()
	if len(first) == 0 {
		t.Fatal("fixture load failed")
	}
	if _, err := os.Stat(filepath.Join(cacheDir, sectorCacheName)); err != nil {
		t.Fatalf("sector cache not written: %v", err)
	}

	// Remove the CSV source; a fresh instance must still answer from cache.
	// The cache mtime check needs the source gone or older, so drop it.
	if err := os.Remove(csvPath); err != nil {
		t.Fatal(err)
	}
	c2 := New(csvPath, "", cacheDir)
	if got := c2.ValidSectors(); len(got) != 0 {
		// Source missing means the stat fails before the cache is consulted.
		t.Errorf("expected empty on missing source, got %v", got)
	}
}

func TestSectorCacheStaleness(t *testing.T) {
	cacheDir := t.TempDir()
	csvPath := sectorFixture(t)

	c1 := New(csvPath, "", cacheDir)
	c1.ValidSectors()

	// Rewrite the source with a new sector and push its mtime past the cache.
	if err := os.WriteFile(csvPath, []byte("SYMBOL,SECTOR\nTCS,Energy\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(csvPath, future, future); err != nil {
		t.Fatal(err)
	}

	c2 := New(csvPath, "", cacheDir)
	want := []string{"Energy"}
	if got := c2.ValidSectors(); !reflect.DeepEqual(got, want) {
		t.Errorf("stale cache served: got %v, want %v", got, want)
	}
}

func TestIndexNameFromFile(t *testing.T) {
	cases := map[string]string{
		"ind_nifty50list.csv":          "NIFTY50",
		"ind_niftymidcap150list.csv":   "NIFTYMIDCAP150",
		"NIFTY 50.csv":                 "NIFTY50",
		"ind_niftysmallcap250list.csv": "NIFTYSMALLCAP250",
	}
	for file, want := range cases {
		if got := indexNameFromFile(file); got != want {
			t.Errorf("indexNameFromFile(%s) = %q, want %q", file, got, want)
		}
	}
}
