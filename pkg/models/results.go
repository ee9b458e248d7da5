package models

// Query tool results. Every operation returns one of these structs; expected
// data-absence conditions (no rows in window, unknown symbol or sector) set
// the Error field instead of raising, so callers can serialize the result
// as-is and decide their own fallback.

// MetaResult describes the loaded dataset.
type MetaResult struct {
	MinDate      string `json:"min_date,omitempty"`
	MaxDate      string `json:"max_date,omitempty"`
	TotalSymbols int    `json:"total_symbols,omitempty"`
	TotalRows    int    `json:"total_rows,omitempty"`
	Error        string `json:"error,omitempty"`
}

// SymbolsResult lists symbols, optionally filtered by a search query.
type SymbolsResult struct {
	Symbols []string `json:"symbols"`
	Count   int      `json:"count"`
	Query   string   `json:"query,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// OHLCRow is one day of price history in a HistoryResult.
type OHLCRow struct {
	Date        string  `json:"date"`
	Open        float64 `json:"open"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Close       float64 `json:"close"`
	Volume      int64   `json:"volume"`
	DeliveryPct float64 `json:"delivery_pct,omitempty"`
}

// HistoryResult holds OHLC history for one symbol.
type HistoryResult struct {
	Symbol    string    `json:"symbol"`
	StartDate string    `json:"start_date,omitempty"`
	EndDate   string    `json:"end_date,omitempty"`
	Rows      []OHLCRow `json:"rows,omitempty"`
	Count     int       `json:"count"`
	Error     string    `json:"error,omitempty"`
}

// SummaryResult is the compact single-symbol summary.
type SummaryResult struct {
	Symbol         string  `json:"symbol"`
	StartDate      string  `json:"start_date,omitempty"`
	EndDate        string  `json:"end_date,omitempty"`
	FirstClose     float64 `json:"first_close"`
	LastClose      float64 `json:"last_close"`
	AbsoluteReturn float64 `json:"absolute_return"`
	PercentReturn  float64 `json:"percent_return"`
	DatesDefaulted bool    `json:"dates_defaulted"`
	Error          string  `json:"error,omitempty"`
}

// RankingResult holds a ranked list of per-symbol stats (gainers, losers,
// or an arbitrary metric ranking).
type RankingResult struct {
	Metric         string        `json:"metric"`
	StartDate      string        `json:"start_date,omitempty"`
	EndDate        string        `json:"end_date,omitempty"`
	DatesDefaulted bool          `json:"dates_defaulted"`
	Stocks         []PeriodStats `json:"stocks,omitempty"`
	Error          string        `json:"error,omitempty"`
}

// SectorResult holds the top performers within one sector. On an unknown
// sector, Error is set and ValidSectors enumerates the known names.
type SectorResult struct {
	Sector         string        `json:"sector"`
	StartDate      string        `json:"start_date,omitempty"`
	EndDate        string        `json:"end_date,omitempty"`
	DatesDefaulted bool          `json:"dates_defaulted"`
	Performers     []PeriodStats `json:"performers,omitempty"`
	ValidSectors   []string      `json:"valid_sectors,omitempty"`
	Error          string        `json:"error,omitempty"`
}

// TechnicalGroup groups the moving-average and range-position readings of a
// stock analysis.
type TechnicalGroup struct {
	SMA20               float64 `json:"sma_20"`
	SMA50               float64 `json:"sma_50"`
	DistanceFromHighPct float64 `json:"distance_from_high_pct"`
	DistanceFromLowPct  float64 `json:"distance_from_low_pct"`
}

// RiskGroup groups the risk readings of a stock analysis.
type RiskGroup struct {
	Volatility  float64 `json:"volatility"`
	MaxDrawdown float64 `json:"max_drawdown"`
}

// MomentumGroup groups the momentum readings of a stock analysis.
type MomentumGroup struct {
	MomentumPct      float64 `json:"momentum_pct"`
	ConsecutiveUps   int     `json:"consecutive_ups"`
	ConsecutiveDowns int     `json:"consecutive_downs"`
	VolumeTrendPct   float64 `json:"volume_trend_pct"`
}

// AnalysisResult is the single-symbol deep dive.
type AnalysisResult struct {
	Symbol         string          `json:"symbol"`
	StartDate      string          `json:"start_date,omitempty"`
	EndDate        string          `json:"end_date,omitempty"`
	DatesDefaulted bool            `json:"dates_defaulted"`
	Stats          *PeriodStats    `json:"stats,omitempty"`
	Technical      *TechnicalGroup `json:"technical,omitempty"`
	Risk           *RiskGroup      `json:"risk,omitempty"`
	Momentum       *MomentumGroup  `json:"momentum,omitempty"`
	Sector         string          `json:"sector,omitempty"`
	MarketCap      string          `json:"market_cap,omitempty"`
	Verdict        string          `json:"verdict,omitempty"`
	Trend          string          `json:"trend,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// Breakout is one breakout candidate with its delivery-quality tier.
type Breakout struct {
	Symbol         string  `json:"symbol"`
	ReturnPct      float64 `json:"return_pct"`
	Volatility     float64 `json:"volatility"`
	EndPrice       float64 `json:"end_price"`
	AvgDeliveryPct float64 `json:"avg_delivery_pct"`
	Quality        string  `json:"quality"`
}

// BreakoutsResult holds breakout detections over a window.
type BreakoutsResult struct {
	StartDate      string     `json:"start_date,omitempty"`
	EndDate        string     `json:"end_date,omitempty"`
	DatesDefaulted bool       `json:"dates_defaulted"`
	Threshold      float64    `json:"threshold"`
	Breakouts      []Breakout `json:"breakouts,omitempty"`
	Error          string     `json:"error,omitempty"`
}

// DeliveryPick is one high-delivery stock with its signal tag.
type DeliveryPick struct {
	Symbol         string  `json:"symbol"`
	AvgDeliveryPct float64 `json:"avg_delivery_pct"`
	ReturnPct      float64 `json:"return_pct"`
	EndPrice       float64 `json:"end_price"`
	Signal         string  `json:"signal"`
}

// DeliveryResult holds the delivery-momentum screen.
type DeliveryResult struct {
	StartDate      string         `json:"start_date,omitempty"`
	EndDate        string         `json:"end_date,omitempty"`
	DatesDefaulted bool           `json:"dates_defaulted"`
	MinDelivery    float64        `json:"min_delivery"`
	Stocks         []DeliveryPick `json:"stocks,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// ConstituentsResult lists the members of a named index.
type ConstituentsResult struct {
	Index   string   `json:"index"`
	Symbols []string `json:"symbols,omitempty"`
	Count   int      `json:"count"`
	Error   string   `json:"error,omitempty"`
}

// MarketCapResult reports a symbol's market-cap tier.
type MarketCapResult struct {
	Symbol   string `json:"symbol"`
	Category string `json:"category,omitempty"`
	Error    string `json:"error,omitempty"`
}
