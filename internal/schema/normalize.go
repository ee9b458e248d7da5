// Package schema normalizes heterogeneous raw bhavcopy files into the
// canonical MarketRecord column set. NSE has shipped several CSV layouts over
// the years (legacy short-column BhavCopy, full sec_bhavdata, UDiFF) with
// different column names, casings and date formats; everything downstream
// works only with the canonical schema produced here.
package schema

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/seenimoa/bhavlens/pkg/models"
	"github.com/seenimoa/bhavlens/pkg/utils"
)

// Canonical column names. TURNOVER_LACS is not part of the output schema but
// feeds the traded-value derivation when TOTTRDVAL is missing.
const (
	colSymbol       = "SYMBOL"
	colOpen         = "OPEN"
	colHigh         = "HIGH"
	colLow          = "LOW"
	colClose        = "CLOSE"
	colVolume       = "TOTTRDQTY"
	colTradedValue  = "TOTTRDVAL"
	colDeliveryPct  = "DELIV_PER"
	colTurnoverLacs = "TURNOVER_LACS"
)

// columnAliases maps alternate raw column names to canonical ones. An alias
// is applied only when the canonical column is not already present in the
// source (first match wins, never overwrite).
var columnAliases = map[string]string{
	"OPEN_PRICE":    colOpen,
	"OPNPRIC":       colOpen,
	"HIGH_PRICE":    colHigh,
	"HGHPRIC":       colHigh,
	"LOW_PRICE":     colLow,
	"LWPRIC":        colLow,
	"CLOSE_PRICE":   colClose,
	"CLSPRIC":       colClose,
	"LAST_PRICE":    colClose,
	"TTL_TRD_QNTY":  colVolume,
	"TTLTRDGQTY":    colVolume,
	"VOLUME":        colVolume,
	"TTL_TRD_VAL":   colTradedValue,
	"TTLTRFVAL":     colTradedValue,
	"TURNOVER":      colTurnoverLacs,
	"TCKRSYMB":      colSymbol,
	"TICKER":        colSymbol,
	"SECURITY":      colSymbol,
	"SYMB":          colSymbol,
	"DELIV_PERC":    colDeliveryPct,
	"DELIVPER":      colDeliveryPct,
	"DELIVERY_PCT":  colDeliveryPct,
	"TURNOVER_LACS": colTurnoverLacs,
}

// dateCandidates is the ordered list of known date column names. When none
// matches, the first column whose name contains "DATE" is used.
var dateCandidates = []string{"DATE", "DATE1", "TIMESTAMP", "TRADE_DATE", "TRADDT", "BIZDT"}

// symbolCandidates is the ordered list of known symbol column names.
var symbolCandidates = []string{colSymbol, "TCKRSYMB", "TICKER", "SECURITY", "SYMB"}

// ReadFile loads one raw CSV file and normalizes it. A file that cannot be
// opened or parsed at all yields an error; callers treat that as a skip, not
// a fatal condition.
func ReadFile(path string) ([]models.MarketRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(rows) < 2 {
		return nil, nil
	}
	return Normalize(rows[0], rows[1:]), nil
}

// Normalize converts one raw table (header + string cells) into canonical
// MarketRecords. Individual bad cells never fail the row: unparseable
// numerics become NaN, unparseable dates become the zero time.
func Normalize(header []string, rows [][]string) []models.MarketRecord {
	cols := resolveColumns(header)

	records := make([]models.MarketRecord, 0, len(rows))
	for _, row := range rows {
		rec := models.MarketRecord{
			Symbol:      strings.ToUpper(strings.TrimSpace(cell(row, cols.symbol))),
			Date:        utils.ParseDate(cell(row, cols.date)),
			Open:        parseNumeric(cell(row, cols.open)),
			High:        parseNumeric(cell(row, cols.high)),
			Low:         parseNumeric(cell(row, cols.low)),
			Close:       parseNumeric(cell(row, cols.close)),
			Volume:      parseNumeric(cell(row, cols.volume)),
			TradedValue: parseNumeric(cell(row, cols.tradedValue)),
			DeliveryPct: parseNumeric(cell(row, cols.deliveryPct)),
		}

		// Derive traded value when the source carries none: turnover in
		// lakhs takes precedence, close×volume is the fallback.
		if math.IsNaN(rec.TradedValue) {
			if lacs := parseNumeric(cell(row, cols.turnoverLacs)); !math.IsNaN(lacs) {
				rec.TradedValue = utils.FromLakhs(lacs)
			} else if !math.IsNaN(rec.Close) && !math.IsNaN(rec.Volume) {
				rec.TradedValue = rec.Close * rec.Volume
			}
		}

		records = append(records, rec)
	}
	return records
}

// AllNull reports whether a normalized frame carries no information at all.
// Such frames are excluded from concatenation so they cannot pollute the
// aggregate date range.
func AllNull(records []models.MarketRecord) bool {
	for _, r := range records {
		if r.FieldCount() > 0 {
			return false
		}
	}
	return true
}

// columnIndexes holds the resolved source-column index for each canonical
// column; -1 means the column is absent and fills with null.
type columnIndexes struct {
	symbol, date                  int
	open, high, low, close        int
	volume, tradedValue           int
	deliveryPct, turnoverLacs     int
}

func resolveColumns(header []string) columnIndexes {
	names := make([]string, len(header))
	for i, h := range header {
		names[i] = strings.ToUpper(strings.TrimSpace(h))
	}

	// First pass: exact canonical matches.
	byName := make(map[string]int, len(names))
	for i, n := range names {
		if _, seen := byName[n]; !seen {
			byName[n] = i
		}
	}

	// Second pass: aliases, only where the canonical name is absent.
	for i, n := range names {
		canon, ok := columnAliases[n]
		if !ok {
			continue
		}
		if _, exists := byName[canon]; !exists {
			byName[canon] = i
		}
	}

	idx := func(name string) int {
		if i, ok := byName[name]; ok {
			return i
		}
		return -1
	}

	cols := columnIndexes{
		symbol:       -1,
		date:         -1,
		open:         idx(colOpen),
		high:         idx(colHigh),
		low:          idx(colLow),
		close:        idx(colClose),
		volume:       idx(colVolume),
		tradedValue:  idx(colTradedValue),
		deliveryPct:  idx(colDeliveryPct),
		turnoverLacs: idx(colTurnoverLacs),
	}

	for _, cand := range symbolCandidates {
		if i, ok := byName[cand]; ok {
			cols.symbol = i
			break
		}
	}

	for _, cand := range dateCandidates {
		if i, ok := byName[cand]; ok {
			cols.date = i
			break
		}
	}
	if cols.date < 0 {
		for i, n := range names {
			if strings.Contains(n, "DATE") {
				cols.date = i
				break
			}
		}
	}

	return cols
}

// cell returns row[i], or "" when the column is absent or the row is short.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// parseNumeric coerces a raw cell to float64, stripping thousands separators
// and whitespace. Unparseable values become NaN, never an error.
func parseNumeric(s string) float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" || s == "-" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
