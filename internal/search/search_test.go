package search

import (
	"testing"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := NewIndex([]Entry{
		{Symbol: "TCS", Sector: "Information Technology"},
		{Symbol: "INFY", Sector: "Information Technology"},
		{Symbol: "RELIANCE", Sector: "Energy"},
		{Symbol: "RELAXO", Sector: "Consumer"},
		{Symbol: "HDFCBANK", Sector: "Financial Services"},
	})
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestSearchExactSymbol(t *testing.T) {
	idx := newTestIndex(t)
	hits, err := idx.Search("TCS", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) == 0 || hits[0] != "TCS" {
		t.Errorf("hits = %v, want TCS first", hits)
	}
}

func TestSearchPrefix(t *testing.T) {
	idx := newTestIndex(t)
	hits, err := idx.Search("RELI", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) == 0 || hits[0] != "RELIANCE" {
		t.Errorf("hits = %v, want RELIANCE first", hits)
	}
}

func TestSearchLimit(t *testing.T) {
	idx := newTestIndex(t)
	hits, err := idx.Search("REL", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) > 1 {
		t.Errorf("limit ignored: %v", hits)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	idx := newTestIndex(t)
	hits, err := idx.Search("   ", 5)
	if err != nil {
		t.Fatal(err)
	}
	if hits != nil {
		t.Errorf("empty query should return nothing, got %v", hits)
	}
}

func TestResolveFromQuestion(t *testing.T) {
	idx := newTestIndex(t)
	if got := idx.Resolve("analyze TCS for me"); got != "TCS" {
		t.Errorf("Resolve = %q, want TCS", got)
	}
	if got := idx.Resolve("how is hdfcbank doing"); got != "HDFCBANK" {
		t.Errorf("Resolve = %q, want HDFCBANK", got)
	}
}

func TestResolveNoSymbol(t *testing.T) {
	idx := newTestIndex(t)
	if got := idx.Resolve("what moved the market today"); got != "" {
		t.Errorf("Resolve = %q, want empty", got)
	}
}
