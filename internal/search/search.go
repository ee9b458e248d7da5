// Package search maintains an in-memory full-text index over the known
// symbols for fuzzy resolution: "infosys" or a partial "RELI" resolves to a
// concrete NSE symbol for the router and the CLI.
package search

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
)

// Entry is one indexed symbol with its lookup metadata.
type Entry struct {
	Symbol string `json:"symbol"`
	Sector string `json:"sector"`
}

// Index wraps a memory-only bleve index over symbol entries.
type Index struct {
	index bleve.Index
}

// NewIndex builds the in-memory index from the given entries.
func NewIndex(entries []Entry) (*Index, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create symbol index: %w", err)
	}

	batch := idx.NewBatch()
	for _, e := range entries {
		if err := batch.Index(e.Symbol, e); err != nil {
			return nil, fmt.Errorf("index %s: %w", e.Symbol, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		return nil, fmt.Errorf("commit symbol batch: %w", err)
	}
	return &Index{index: idx}, nil
}

// Search returns up to limit symbols ranked by match quality: exact symbol
// first, then prefix, then substring and sector matches.
func (x *Index) Search(query string, limit int) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	exact := bleve.NewTermQuery(strings.ToLower(query))
	exact.SetField("symbol")
	exact.SetBoost(10.0)

	prefix := bleve.NewPrefixQuery(strings.ToLower(query))
	prefix.SetField("symbol")
	prefix.SetBoost(5.0)

	wildcardSymbol := bleve.NewWildcardQuery("*" + strings.ToLower(query) + "*")
	wildcardSymbol.SetField("symbol")
	wildcardSymbol.SetBoost(2.0)

	sectorMatch := bleve.NewMatchQuery(query)
	sectorMatch.SetField("sector")
	sectorMatch.SetBoost(1.0)

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(exact, prefix, wildcardSymbol, sectorMatch))
	req.Size = limit

	res, err := x.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("symbol search: %w", err)
	}

	out := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		out = append(out, hit.ID)
	}
	return out, nil
}

// Resolve returns the single best symbol match for a free-text question, or
// "" when nothing matches. Each word of the question is tried as a query; the
// longest words go first since symbols and company names tend to be the
// distinctive tokens.
func (x *Index) Resolve(question string) string {
	// A direct hit on the whole query wins.
	if hits, err := x.Search(question, 1); err == nil && len(hits) > 0 {
		if strings.EqualFold(hits[0], strings.TrimSpace(question)) {
			return hits[0]
		}
	}

	for _, word := range strings.Fields(question) {
		word = strings.Trim(word, ".,!?;:\"'")
		if len(word) < 3 {
			continue
		}
		hits, err := x.Search(word, 1)
		if err != nil || len(hits) == 0 {
			continue
		}
		// Only trust exact and prefix-grade hits for single words.
		if strings.HasPrefix(hits[0], strings.ToUpper(word)) {
			return hits[0]
		}
	}
	return ""
}

// Close releases the index.
func (x *Index) Close() error {
	return x.index.Close()
}
