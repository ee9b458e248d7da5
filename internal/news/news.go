// Package news fetches Indian market headlines from RSS feeds. It lives
// outside the query core: nothing here is consulted by the data or metrics
// layers, and every fetch is network I/O with a caller-supplied context.
package news

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/bhavlens/pkg/models"
)

// Source is one RSS feed configuration.
type Source struct {
	Name   string
	RSSURL string
}

// DefaultSources lists the configured Indian financial news RSS feeds.
var DefaultSources = []Source{
	{Name: "Moneycontrol", RSSURL: "https://www.moneycontrol.com/rss/marketreports.xml"},
	{Name: "Economic Times Markets", RSSURL: "https://economictimes.indiatimes.com/markets/rssfeeds/1977021501.cms"},
	{Name: "LiveMint Markets", RSSURL: "https://www.livemint.com/rss/markets"},
	{Name: "Business Standard Markets", RSSURL: "https://www.business-standard.com/rss/markets-106.rss"},
}

// Scout fetches and filters market headlines.
type Scout struct {
	sources []Source
	parser  *gofeed.Parser

	mu       sync.Mutex
	cached   []models.NewsArticle
	cachedAt time.Time
	ttl      time.Duration
}

// NewScout creates a scout over the given sources; nil means the defaults.
func NewScout(sources []Source) *Scout {
	if sources == nil {
		sources = DefaultSources
	}
	return &Scout{
		sources: sources,
		parser:  gofeed.NewParser(),
		ttl:     10 * time.Minute,
	}
}

// MarketNews returns recent headlines from all sources, newest first. Sources
// are fetched concurrently; a failed source is logged and skipped.
func (s *Scout) MarketNews(ctx context.Context, limit int) ([]models.NewsArticle, error) {
	s.mu.Lock()
	if s.cached != nil && time.Since(s.cachedAt) < s.ttl {
		cached := s.cached
		s.mu.Unlock()
		return capArticles(cached, limit), nil
	}
	s.mu.Unlock()

	results := make([][]models.NewsArticle, len(s.sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range s.sources {
		g.Go(func() error {
			articles, err := s.fetchRSS(gctx, src)
			if err != nil {
				log.Printf("[WARN] news source %s: %v", src.Name, err)
				return nil
			}
			results[i] = articles
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []models.NewsArticle
	for _, articles := range results {
		all = append(all, articles...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].PublishedAt.After(all[j].PublishedAt)
	})

	s.mu.Lock()
	s.cached, s.cachedAt = all, time.Now()
	s.mu.Unlock()
	return capArticles(all, limit), nil
}

// StockNews filters market headlines down to those mentioning a symbol.
func (s *Scout) StockNews(ctx context.Context, symbol string, limit int) ([]models.NewsArticle, error) {
	all, err := s.MarketNews(ctx, 0)
	if err != nil {
		return nil, err
	}
	return capArticles(FilterBySymbol(all, symbol), limit), nil
}

// fetchRSS parses one feed into articles.
func (s *Scout) fetchRSS(ctx context.Context, src Source) ([]models.NewsArticle, error) {
	feed, err := s.parser.ParseURLWithContext(src.RSSURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse RSS %s: %w", src.Name, err)
	}

	articles := make([]models.NewsArticle, 0, len(feed.Items))
	for _, item := range feed.Items {
		a := models.NewsArticle{
			Title:   item.Title,
			URL:     item.Link,
			Source:  src.Name,
			Summary: CleanHTML(item.Description),
		}
		if item.PublishedParsed != nil {
			a.PublishedAt = *item.PublishedParsed
		}
		articles = append(articles, a)
	}
	return articles, nil
}

// CleanHTML strips HTML tags from a string using goquery.
func CleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}

// FilterBySymbol keeps articles whose title or summary mentions the symbol or
// one of its common name variants.
func FilterBySymbol(articles []models.NewsArticle, symbol string) []models.NewsArticle {
	keywords := symbolKeywords(symbol)
	var out []models.NewsArticle
	for _, a := range articles {
		content := strings.ToLower(a.Title + " " + a.Summary)
		for _, kw := range keywords {
			if strings.Contains(content, kw) {
				out = append(out, a)
				break
			}
		}
	}
	return out
}

// symbolKeywords maps an NSE symbol to the phrases headlines actually use.
func symbolKeywords(symbol string) []string {
	t := strings.ToLower(strings.TrimSpace(symbol))
	keywords := []string{t}
	nameMap := map[string][]string{
		"reliance":   {"reliance industries", "ril"},
		"tcs":        {"tata consultancy"},
		"hdfcbank":   {"hdfc bank"},
		"infy":       {"infosys"},
		"icicibank":  {"icici bank"},
		"hindunilvr": {"hindustan unilever", "hul"},
		"sbin":       {"sbi", "state bank"},
		"bhartiartl": {"bharti airtel", "airtel"},
		"kotakbank":  {"kotak mahindra", "kotak bank"},
		"lt":         {"larsen", "l&t"},
		"bajfinance": {"bajaj finance"},
		"axisbank":   {"axis bank"},
		"maruti":     {"maruti suzuki"},
		"tatamotors": {"tata motors"},
		"tatasteel":  {"tata steel"},
	}
	if extra, ok := nameMap[t]; ok {
		keywords = append(keywords, extra...)
	}
	return keywords
}

func capArticles(articles []models.NewsArticle, limit int) []models.NewsArticle {
	if limit > 0 && len(articles) > limit {
		return articles[:limit]
	}
	return articles
}
