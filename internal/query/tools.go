// Package query is the externally-callable operation surface. Every operation
// returns a serializable result struct; expected data-absence outcomes (no
// rows in the window, unknown symbol or sector, too few rows for statistics)
// populate the result's Error field so callers can keep going. Go errors are
// reserved for infrastructure failures inside the data layer.
package query

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/seenimoa/bhavlens/internal/classify"
	"github.com/seenimoa/bhavlens/internal/metrics"
	"github.com/seenimoa/bhavlens/internal/store"
	"github.com/seenimoa/bhavlens/pkg/models"
	"github.com/seenimoa/bhavlens/pkg/utils"
)

// Default window lengths in days, applied when both dates are omitted.
const (
	windowRanking  = 7
	windowDelivery = 14
	windowAnalysis = 30
)

const (
	defaultBreakoutThreshold = 5.0
	defaultMinDelivery       = 60.0
	breakoutScanDepth        = 50
	breakoutCap              = 10
	deliveryCap              = 15
	maxBreakoutVolatility    = 15.0
)

// Trend labels from the SMA alignment check.
const (
	TrendUp       = "UPTREND"
	TrendDown     = "DOWNTREND"
	TrendSideways = "SIDEWAYS"
)

// Tools bundles the data store and classifier behind the operation set.
type Tools struct {
	store      *store.Store
	classifier *classify.Classifier
}

// New creates the query tool surface.
func New(s *store.Store, c *classify.Classifier) *Tools {
	return &Tools{store: s, classifier: c}
}

// Meta reports the loaded dataset's date range and counts.
func (t *Tools) Meta() models.MetaResult {
	records, err := t.store.Records()
	if err != nil {
		return models.MetaResult{Error: loadError(err)}
	}
	if len(records) == 0 {
		return models.MetaResult{Error: "no market data loaded"}
	}
	return models.MetaResult{
		MinDate:      utils.FormatDate(t.store.MinDate()),
		MaxDate:      utils.FormatDate(t.store.MaxDate()),
		TotalSymbols: t.store.TotalSymbols(),
		TotalRows:    len(records),
	}
}

// ListSymbols returns the distinct symbols, optionally filtered by a
// case-insensitive substring search.
func (t *Tools) ListSymbols(search string) models.SymbolsResult {
	records, err := t.store.Records()
	if err != nil {
		return models.SymbolsResult{Error: loadError(err)}
	}

	want := strings.ToUpper(strings.TrimSpace(search))
	seen := make(map[string]struct{})
	var symbols []string
	for _, r := range records {
		if _, ok := seen[r.Symbol]; ok {
			continue
		}
		seen[r.Symbol] = struct{}{}
		if want == "" || strings.Contains(r.Symbol, want) {
			symbols = append(symbols, r.Symbol)
		}
	}
	sort.Strings(symbols)
	return models.SymbolsResult{Symbols: symbols, Count: len(symbols), Query: search}
}

// History returns one symbol's OHLC rows within the window (default last 30
// days of data).
func (t *Tools) History(symbol, start, end string) models.HistoryResult {
	out := models.HistoryResult{Symbol: strings.ToUpper(strings.TrimSpace(symbol))}

	w, err := t.window(start, end, windowAnalysis)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.StartDate, out.EndDate = utils.FormatDate(w.from), utils.FormatDate(w.to)

	rows, err := t.store.StockData(symbol, w.from, w.to)
	if err != nil {
		out.Error = loadError(err)
		return out
	}
	if len(rows) == 0 {
		out.Error = fmt.Sprintf("no data for %s between %s and %s", out.Symbol, out.StartDate, out.EndDate)
		return out
	}

	out.Rows = make([]models.OHLCRow, len(rows))
	for i, r := range rows {
		out.Rows[i] = models.OHLCRow{
			Date:        utils.FormatDate(r.Date),
			Open:        nanToZero(r.Open),
			High:        nanToZero(r.High),
			Low:         nanToZero(r.Low),
			Close:       nanToZero(r.Close),
			Volume:      int64(nanToZero(r.Volume)),
			DeliveryPct: nanToZero(r.DeliveryPct),
		}
	}
	out.Count = len(out.Rows)
	return out
}

// SummarizeSymbol reports first/last close and the absolute and percent
// return over the window (default last 30 days of data).
func (t *Tools) SummarizeSymbol(symbol, start, end string) models.SummaryResult {
	out := models.SummaryResult{Symbol: strings.ToUpper(strings.TrimSpace(symbol))}

	w, err := t.window(start, end, windowAnalysis)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.StartDate, out.EndDate = utils.FormatDate(w.from), utils.FormatDate(w.to)
	out.DatesDefaulted = w.defaulted

	rows, err := t.store.StockData(symbol, w.from, w.to)
	if err != nil {
		out.Error = loadError(err)
		return out
	}
	var closes []float64
	for _, r := range rows {
		if r.HasClose() && r.Close > 0 {
			closes = append(closes, r.Close)
		}
	}
	if len(closes) == 0 {
		out.Error = fmt.Sprintf("no data for %s between %s and %s", out.Symbol, out.StartDate, out.EndDate)
		return out
	}

	first, last := closes[0], closes[len(closes)-1]
	out.FirstClose = round2(first)
	out.LastClose = round2(last)
	out.AbsoluteReturn = round2(last - first)
	out.PercentReturn = round2((last - first) / first * 100)
	return out
}

// TopGainers ranks stocks by period return, best first (default last 7 days).
func (t *Tools) TopGainers(start, end string, topN int) models.RankingResult {
	return t.rank("return", start, end, topN, false)
}

// TopLosers ranks stocks by period return, worst first (default last 7 days).
func (t *Tools) TopLosers(start, end string, topN int) models.RankingResult {
	return t.rank("return", start, end, topN, true)
}

// RankBy ranks stocks by an arbitrary supported metric ("return" or
// "volume"), best first (default last 7 days).
func (t *Tools) RankBy(metric, start, end string, topN int) models.RankingResult {
	return t.rank(strings.ToLower(strings.TrimSpace(metric)), start, end, topN, false)
}

func (t *Tools) rank(metric, start, end string, topN int, worstFirst bool) models.RankingResult {
	out := models.RankingResult{Metric: metric}
	if topN <= 0 {
		topN = 10
	}

	w, err := t.window(start, end, windowRanking)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.StartDate, out.EndDate = utils.FormatDate(w.from), utils.FormatDate(w.to)
	out.DatesDefaulted = w.defaulted

	// Fetch all ranked stats so losers can be read off the tail.
	stats, err := t.store.RankStocks(w.from, w.to, 0, metric)
	if err != nil {
		if errors.Is(err, store.ErrUnknownMetric) {
			out.Error = fmt.Sprintf("unknown metric %q, valid metrics: return, volume", metric)
		} else {
			out.Error = loadError(err)
		}
		return out
	}
	if len(stats) == 0 {
		out.Error = fmt.Sprintf("no data between %s and %s", out.StartDate, out.EndDate)
		return out
	}

	if worstFirst {
		for i, j := 0, len(stats)-1; i < j; i, j = i+1, j-1 {
			stats[i], stats[j] = stats[j], stats[i]
		}
	}
	if len(stats) > topN {
		stats = stats[:topN]
	}
	out.Stocks = stats
	return out
}

// SectorPerformers ranks the stocks of one sector by return (default last 30
// days). An unknown sector comes back with the valid sector names enumerated.
func (t *Tools) SectorPerformers(sector, start, end string, topN int) models.SectorResult {
	out := models.SectorResult{Sector: sector}
	if topN <= 0 {
		topN = 10
	}

	canonical, symbols, ok := t.classifier.SectorStocks(sector)
	if !ok {
		out.Error = fmt.Sprintf("unknown sector %q", sector)
		out.ValidSectors = t.classifier.ValidSectors()
		return out
	}
	out.Sector = canonical

	w, err := t.window(start, end, windowAnalysis)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.StartDate, out.EndDate = utils.FormatDate(w.from), utils.FormatDate(w.to)
	out.DatesDefaulted = w.defaulted

	var performers []models.PeriodStats
	for _, sym := range symbols {
		rows, err := t.store.StockData(sym, w.from, w.to)
		if err != nil {
			out.Error = loadError(err)
			return out
		}
		if st := metrics.PeriodStats(rows); st != nil {
			performers = append(performers, *st)
		}
	}
	if len(performers) == 0 {
		out.Error = fmt.Sprintf("no data for sector %s between %s and %s", canonical, out.StartDate, out.EndDate)
		return out
	}

	sort.SliceStable(performers, func(i, j int) bool {
		return performers[i].ReturnPct > performers[j].ReturnPct
	})
	if len(performers) > topN {
		performers = performers[:topN]
	}
	out.Performers = performers
	return out
}

// AnalyzeStock is the single-symbol deep dive: the full statistics bundle
// grouped into technical, risk, and momentum readings, plus a rule-based
// verdict and trend label (default last 30 days).
func (t *Tools) AnalyzeStock(symbol, start, end string) models.AnalysisResult {
	out := models.AnalysisResult{Symbol: strings.ToUpper(strings.TrimSpace(symbol))}

	w, err := t.window(start, end, windowAnalysis)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.StartDate, out.EndDate = utils.FormatDate(w.from), utils.FormatDate(w.to)
	out.DatesDefaulted = w.defaulted

	rows, err := t.store.StockData(symbol, w.from, w.to)
	if err != nil {
		out.Error = loadError(err)
		return out
	}
	st := metrics.PeriodStats(rows)
	if st == nil {
		out.Error = fmt.Sprintf("insufficient data for %s between %s and %s", out.Symbol, out.StartDate, out.EndDate)
		return out
	}

	out.Stats = st
	out.Technical = &models.TechnicalGroup{
		SMA20:               st.SMA20,
		SMA50:               st.SMA50,
		DistanceFromHighPct: st.DistanceFromHighPct,
		DistanceFromLowPct:  st.DistanceFromLowPct,
	}
	out.Risk = &models.RiskGroup{Volatility: st.Volatility, MaxDrawdown: st.MaxDrawdown}
	out.Momentum = &models.MomentumGroup{
		MomentumPct:      st.MomentumPct,
		ConsecutiveUps:   st.ConsecutiveUps,
		ConsecutiveDowns: st.ConsecutiveDowns,
		VolumeTrendPct:   st.VolumeTrendPct,
	}
	out.Sector = t.classifier.SectorOf(out.Symbol)
	out.MarketCap = t.classifier.MarketCapTier(out.Symbol)
	out.Verdict = verdict(st)
	out.Trend = trend(st)
	return out
}

// verdict applies the fixed-priority decision table; the first matching rule
// wins.
func verdict(st *models.PeriodStats) string {
	switch {
	case st.ReturnPct > 5 && st.AvgDeliveryPct > 60:
		return "Strong Accumulation"
	case st.ReturnPct > 3 && st.AvgDeliveryPct > 50:
		return "Positive Momentum"
	case st.ReturnPct < -5 && st.AvgDeliveryPct > 60:
		return "Distribution Pattern"
	case st.ReturnPct < -3:
		return "Weakness"
	case st.Volatility > 10:
		return "High Volatility"
	default:
		return "Neutral"
	}
}

// trend classifies the SMA alignment independently of the verdict.
func trend(st *models.PeriodStats) string {
	switch {
	case st.EndPrice > st.SMA20 && st.SMA20 > st.SMA50:
		return TrendUp
	case st.EndPrice < st.SMA20 && st.SMA20 < st.SMA50:
		return TrendDown
	default:
		return TrendSideways
	}
}

// DetectBreakouts screens the top 50 stocks by return for those with a period
// return at or above the threshold and volatility under 15, capped at 10, and
// grades each by delivery quality (default last 7 days, threshold 5%).
func (t *Tools) DetectBreakouts(start, end string, threshold float64) models.BreakoutsResult {
	if threshold <= 0 {
		threshold = defaultBreakoutThreshold
	}
	out := models.BreakoutsResult{Threshold: threshold}

	w, err := t.window(start, end, windowRanking)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.StartDate, out.EndDate = utils.FormatDate(w.from), utils.FormatDate(w.to)
	out.DatesDefaulted = w.defaulted

	stats, err := t.store.RankStocks(w.from, w.to, breakoutScanDepth, "return")
	if err != nil {
		out.Error = loadError(err)
		return out
	}

	for _, st := range stats {
		if st.ReturnPct < threshold || st.Volatility >= maxBreakoutVolatility {
			continue
		}
		out.Breakouts = append(out.Breakouts, models.Breakout{
			Symbol:         st.Symbol,
			ReturnPct:      st.ReturnPct,
			Volatility:     st.Volatility,
			EndPrice:       st.EndPrice,
			AvgDeliveryPct: st.AvgDeliveryPct,
			Quality:        breakoutQuality(st.AvgDeliveryPct),
		})
		if len(out.Breakouts) == breakoutCap {
			break
		}
	}
	if len(out.Breakouts) == 0 {
		out.Error = fmt.Sprintf("no breakouts above %.1f%% between %s and %s", threshold, out.StartDate, out.EndDate)
	}
	return out
}

func breakoutQuality(avgDelivery float64) string {
	switch {
	case avgDelivery > 60:
		return "HIGH CONVICTION"
	case avgDelivery > 40:
		return "MODERATE"
	default:
		return "SPECULATIVE"
	}
}

// DeliveryMomentum screens for stocks whose average delivery percentage meets
// the floor, ranked by delivery, capped at 15, each tagged with a signal from
// its price action (default last 14 days, floor 60%).
func (t *Tools) DeliveryMomentum(start, end string, minDelivery float64) models.DeliveryResult {
	if minDelivery <= 0 {
		minDelivery = defaultMinDelivery
	}
	out := models.DeliveryResult{MinDelivery: minDelivery}

	w, err := t.window(start, end, windowDelivery)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.StartDate, out.EndDate = utils.FormatDate(w.from), utils.FormatDate(w.to)
	out.DatesDefaulted = w.defaulted

	stats, err := t.store.RankStocks(w.from, w.to, 0, "return")
	if err != nil {
		out.Error = loadError(err)
		return out
	}

	var picks []models.DeliveryPick
	for _, st := range stats {
		if st.AvgDeliveryPct < minDelivery {
			continue
		}
		picks = append(picks, models.DeliveryPick{
			Symbol:         st.Symbol,
			AvgDeliveryPct: st.AvgDeliveryPct,
			ReturnPct:      st.ReturnPct,
			EndPrice:       st.EndPrice,
			Signal:         deliverySignal(st.ReturnPct),
		})
	}
	sort.SliceStable(picks, func(i, j int) bool {
		return picks[i].AvgDeliveryPct > picks[j].AvgDeliveryPct
	})
	if len(picks) > deliveryCap {
		picks = picks[:deliveryCap]
	}
	if len(picks) == 0 {
		out.Error = fmt.Sprintf("no stocks with avg delivery >= %.1f%% between %s and %s", minDelivery, out.StartDate, out.EndDate)
		return out
	}
	out.Stocks = picks
	return out
}

func deliverySignal(returnPct float64) string {
	switch {
	case returnPct > 3:
		return "ACCUMULATION"
	case returnPct < -3:
		return "DISTRIBUTION"
	default:
		return "CONSOLIDATION"
	}
}

// IndexConstituents lists the members of a named index.
func (t *Tools) IndexConstituents(name string) models.ConstituentsResult {
	out := models.ConstituentsResult{Index: name}
	symbols := t.classifier.IndexConstituents(name)
	if len(symbols) == 0 {
		out.Error = fmt.Sprintf("unknown index %q", name)
		return out
	}
	out.Symbols = symbols
	out.Count = len(symbols)
	return out
}

// MarketCap reports a symbol's market-cap tier from index membership.
func (t *Tools) MarketCap(symbol string) models.MarketCapResult {
	out := models.MarketCapResult{Symbol: strings.ToUpper(strings.TrimSpace(symbol))}
	tier := t.classifier.MarketCapTier(symbol)
	if tier == "" {
		out.Error = fmt.Sprintf("no market-cap classification for %s", out.Symbol)
		return out
	}
	out.Category = tier
	return out
}

// dateWindow is a resolved query window.
type dateWindow struct {
	from, to  time.Time
	defaulted bool
}

// window resolves the optional start/end arguments. With both omitted the
// window defaults to the last defaultDays days ending at the dataset's max
// date. A missing end alone defaults to the max date; a missing start alone
// defaults to end minus defaultDays.
func (t *Tools) window(start, end string, defaultDays int) (dateWindow, error) {
	// Loading must happen first so MaxDate is established.
	if _, err := t.store.Records(); err != nil {
		return dateWindow{}, fmt.Errorf("%s", loadError(err))
	}
	maxDate := t.store.MaxDate()
	if maxDate.IsZero() {
		return dateWindow{}, fmt.Errorf("no market data loaded")
	}

	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	var w dateWindow
	w.defaulted = start == "" && end == ""

	if end == "" {
		w.to = maxDate
	} else {
		w.to = utils.ParseDate(end)
		if w.to.IsZero() {
			return dateWindow{}, fmt.Errorf("unparseable end date %q", end)
		}
	}
	if start == "" {
		w.from = w.to.AddDate(0, 0, -defaultDays)
	} else {
		w.from = utils.ParseDate(start)
		if w.from.IsZero() {
			return dateWindow{}, fmt.Errorf("unparseable start date %q", start)
		}
	}
	if w.from.After(w.to) {
		return dateWindow{}, fmt.Errorf("start date %s is after end date %s",
			utils.FormatDate(w.from), utils.FormatDate(w.to))
	}
	return w, nil
}

func loadError(err error) string {
	return fmt.Sprintf("data load failed: %v", err)
}

func nanToZero(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
