package store

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/seenimoa/bhavlens/pkg/models"
)

// snapshot is the columnar on-disk layout of the combined table. One slice
// per canonical column keeps the encoded file compact and the round-trip
// exact (NaN survives gob).
type snapshot struct {
	Symbols     []string
	Dates       []int64 // unix seconds, UTC day granularity
	Open        []float64
	High        []float64
	Low         []float64
	Close       []float64
	Volume      []float64
	TradedValue []float64
	DeliveryPct []float64
}

// loadSnapshot returns the cached table when the snapshot file exists and is
// newer than the newest raw source; ok=false means rebuild from CSV.
func loadSnapshot(path string, newestSource time.Time) ([]models.MarketRecord, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if !info.ModTime().After(newestSource) {
		return nil, false
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	defer f.Close()

	var snap snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, false
	}

	records := make([]models.MarketRecord, len(snap.Symbols))
	for i := range snap.Symbols {
		records[i] = models.MarketRecord{
			Symbol:      snap.Symbols[i],
			Date:        time.Unix(snap.Dates[i], 0).UTC(),
			Open:        snap.Open[i],
			High:        snap.High[i],
			Low:         snap.Low[i],
			Close:       snap.Close[i],
			Volume:      snap.Volume[i],
			TradedValue: snap.TradedValue[i],
			DeliveryPct: snap.DeliveryPct[i],
		}
	}
	return records, true
}

// writeSnapshot persists the combined table. Failures are the caller's to
// log; the in-memory table stays usable either way.
func writeSnapshot(path string, records []models.MarketRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	snap := snapshot{
		Symbols:     make([]string, len(records)),
		Dates:       make([]int64, len(records)),
		Open:        make([]float64, len(records)),
		High:        make([]float64, len(records)),
		Low:         make([]float64, len(records)),
		Close:       make([]float64, len(records)),
		Volume:      make([]float64, len(records)),
		TradedValue: make([]float64, len(records)),
		DeliveryPct: make([]float64, len(records)),
	}
	for i, r := range records {
		snap.Symbols[i] = r.Symbol
		snap.Dates[i] = r.Date.Unix()
		snap.Open[i] = r.Open
		snap.High[i] = r.High
		snap.Low[i] = r.Low
		snap.Close[i] = r.Close
		snap.Volume[i] = r.Volume
		snap.TradedValue[i] = r.TradedValue
		snap.DeliveryPct[i] = r.DeliveryPct
	}

	// Write to a temp file and rename so a crashed write never leaves a
	// truncated snapshot behind.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(&snap); err != nil {
		tmp.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
