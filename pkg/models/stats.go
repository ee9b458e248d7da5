package models

// PeriodStats is the fixed bundle of per-symbol statistics computed over a
// date window. All percentage and price fields are rounded to 2 decimals;
// volume aggregates are integers.
type PeriodStats struct {
	Symbol          string  `json:"symbol"`
	ReturnPct       float64 `json:"return_pct"`
	Volatility      float64 `json:"volatility"`
	StartPrice      float64 `json:"start_price"`
	EndPrice        float64 `json:"end_price"`
	PeriodHigh      float64 `json:"period_high"`
	PeriodLow       float64 `json:"period_low"`
	AvgVolume       int64   `json:"avg_volume"`
	TotalVolume     int64   `json:"total_volume"`
	AvgDeliveryPct  float64 `json:"avg_delivery_pct"`
	DaysCount       int     `json:"days_count"`
	StartDate       string  `json:"start_date"`
	EndDate         string  `json:"end_date"`
	MaxDrawdown     float64 `json:"max_drawdown"`
	SMA20           float64 `json:"sma_20"`
	SMA50           float64 `json:"sma_50"`
	ConsecutiveUps  int     `json:"consecutive_ups"`
	ConsecutiveDowns int    `json:"consecutive_downs"`
	DistanceFromHighPct float64 `json:"distance_from_high_pct"`
	DistanceFromLowPct  float64 `json:"distance_from_low_pct"`
	VolumeTrendPct  float64 `json:"volume_trend_pct"`
	MomentumPct     float64 `json:"momentum_pct"`
}
