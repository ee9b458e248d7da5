// Package router maps a natural-language market question to a tool invocation
// using keyword rules. It is deliberately dumb: no inference, just priority-
// ordered keyword matching with symbol, sector, count, and date extraction.
package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrNoRoute is returned when no rule matches the question.
var ErrNoRoute = errors.New("could not route question")

// Invocation is a resolved tool call: the tool name plus JSON arguments ready
// for the registry.
type Invocation struct {
	Tool string          `json:"tool"`
	Args json.RawMessage `json:"args"`
}

// SymbolResolver resolves a free-text question to a known stock symbol, or ""
// when none is recognized.
type SymbolResolver func(question string) string

// Router holds the lookup context the keyword rules need.
type Router struct {
	sectors       []string
	resolveSymbol SymbolResolver
}

// New creates a router. sectors is the list of valid sector names; resolve may
// be nil when no symbol resolution is available.
func New(sectors []string, resolve SymbolResolver) *Router {
	if resolve == nil {
		resolve = func(string) string { return "" }
	}
	return &Router{sectors: sectors, resolveSymbol: resolve}
}

var (
	topNPattern = regexp.MustCompile(`(?i)\btop\s+(\d+)\b|\b(\d+)\s+(?:gainers|losers|stocks|performers)\b`)
	datePattern = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
)

// Route resolves a question to a tool invocation. Rules are evaluated in
// priority order; the first match wins.
func (r *Router) Route(question string) (Invocation, error) {
	q := strings.ToLower(strings.TrimSpace(question))
	if q == "" {
		return Invocation{}, fmt.Errorf("%w: empty question", ErrNoRoute)
	}

	topN := extractTopN(q)
	start, end := extractDates(q)
	symbol := r.resolveSymbol(question)
	sector := r.matchSector(q)

	has := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(q, w) {
				return true
			}
		}
		return false
	}

	switch {
	case sector != "" && has("gainer", "top", "best", "perform"):
		return invoke("get_sector_top_performers", map[string]any{
			"sector": sector, "top_n": topN, "start_date": start, "end_date": end,
		})
	case has("breakout"):
		return invoke("detect_breakouts", map[string]any{
			"start_date": start, "end_date": end,
		})
	case has("delivery"):
		return invoke("get_delivery_momentum", map[string]any{
			"start_date": start, "end_date": end,
		})
	case has("loser", "worst", "fell", "declin"):
		return invoke("get_top_losers", map[string]any{
			"top_n": topN, "start_date": start, "end_date": end,
		})
	case has("gainer", "best perform", "top perform", "rallied"):
		return invoke("get_top_gainers", map[string]any{
			"top_n": topN, "start_date": start, "end_date": end,
		})
	case has("most traded", "highest volume", "by volume", "most active"):
		return invoke("rank_stocks", map[string]any{
			"metric": "volume", "top_n": topN, "start_date": start, "end_date": end,
		})
	case has("constituent", "members of", "stocks in nifty", "which stocks are in"):
		return invoke("get_index_constituents", map[string]any{
			"index": extractIndexName(q),
		})
	case symbol != "" && has("market cap", "large cap", "mid cap", "small cap", "largecap", "midcap", "smallcap"):
		return invoke("get_market_cap_category", map[string]any{"symbol": symbol})
	case symbol != "" && has("history", "ohlc", "price history", "daily prices"):
		return invoke("get_stock_history", map[string]any{
			"symbol": symbol, "start_date": start, "end_date": end,
		})
	case symbol != "" && has("summar", "return of", "how much did"):
		return invoke("summarize_symbol", map[string]any{
			"symbol": symbol, "start_date": start, "end_date": end,
		})
	case symbol != "" && has("analy", "verdict", "how is", "deep dive", "should i"):
		return invoke("analyze_stock", map[string]any{
			"symbol": symbol, "start_date": start, "end_date": end,
		})
	case has("list symbols", "what symbols", "which stocks", "available stocks"):
		return invoke("list_symbols", map[string]any{})
	case has("date range", "data info", "how much data", "dataset"):
		return invoke("get_data_info", map[string]any{})
	case symbol != "":
		// A recognized symbol with no other cue gets the deep dive.
		return invoke("analyze_stock", map[string]any{
			"symbol": symbol, "start_date": start, "end_date": end,
		})
	}
	return Invocation{}, fmt.Errorf("%w: %q", ErrNoRoute, question)
}

func invoke(tool string, args map[string]any) (Invocation, error) {
	for k, v := range args {
		switch val := v.(type) {
		case string:
			if val == "" {
				delete(args, k)
			}
		case int:
			if val <= 0 {
				delete(args, k)
			}
		}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return Invocation{}, fmt.Errorf("encode args for %s: %w", tool, err)
	}
	return Invocation{Tool: tool, Args: raw}, nil
}

// extractTopN pulls a requested count like "top 5" or "3 gainers"; 0 when
// absent.
func extractTopN(q string) int {
	m := topNPattern.FindStringSubmatch(q)
	if m == nil {
		return 0
	}
	for _, g := range m[1:] {
		if g != "" {
			n, err := strconv.Atoi(g)
			if err == nil && n > 0 && n <= 100 {
				return n
			}
		}
	}
	return 0
}

// extractDates pulls up to two ISO dates. One date prefixed by until/till/
// before becomes the end date; otherwise a single date is the start.
func extractDates(q string) (start, end string) {
	dates := datePattern.FindAllString(q, 2)
	switch len(dates) {
	case 0:
		return "", ""
	case 1:
		for _, kw := range []string{"until", "till", "before", "up to"} {
			if idx := strings.Index(q, kw); idx >= 0 && idx < strings.Index(q, dates[0]) {
				return "", dates[0]
			}
		}
		return dates[0], ""
	default:
		return dates[0], dates[1]
	}
}

// extractIndexName pulls the index phrase around a "nifty" mention; the
// classifier's own normalization absorbs spacing and case.
var indexPattern = regexp.MustCompile(`(?i)\bnifty[\s_-]*[a-z0-9]*\s*\d*\b`)

func extractIndexName(q string) string {
	if m := indexPattern.FindString(q); m != "" {
		return strings.TrimSpace(m)
	}
	return q
}

func (r *Router) matchSector(q string) string {
	for _, s := range r.sectors {
		if strings.Contains(q, strings.ToLower(s)) {
			return s
		}
	}
	return ""
}
