// Package models defines the core data structures shared across BhavLens:
// normalized bhavcopy rows, per-symbol period statistics, and the result
// types returned by the query tool surface.
package models

import (
	"math"
	"time"
)

// MarketRecord is one normalized bhavcopy row: one symbol on one trading day.
// Numeric fields use NaN to represent values that were absent or unparseable
// in the source file; Date is the zero time when no date could be recovered.
type MarketRecord struct {
	Symbol      string    `json:"symbol"`
	Date        time.Time `json:"date"`
	Open        float64   `json:"open"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	Close       float64   `json:"close"`
	Volume      float64   `json:"volume"`
	TradedValue float64   `json:"traded_value"`
	DeliveryPct float64   `json:"delivery_pct"`
}

// HasDate reports whether the record carries a usable trading date.
func (r MarketRecord) HasDate() bool {
	return !r.Date.IsZero()
}

// HasClose reports whether the record carries a usable closing price.
func (r MarketRecord) HasClose() bool {
	return !math.IsNaN(r.Close)
}

// FieldCount returns the number of populated fields, used to pick the more
// complete row when two source files carry the same (symbol, date).
func (r MarketRecord) FieldCount() int {
	n := 0
	if r.Symbol != "" {
		n++
	}
	if r.HasDate() {
		n++
	}
	for _, v := range []float64{r.Open, r.High, r.Low, r.Close, r.Volume, r.TradedValue, r.DeliveryPct} {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

// NewsArticle is a single market news item from an RSS scout.
type NewsArticle struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	Summary     string    `json:"summary"`
	PublishedAt time.Time `json:"published_at"`
}
