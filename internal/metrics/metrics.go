// Package metrics computes the per-symbol statistics bundle over a date
// window. PeriodStats is a pure function over a single-symbol slice; it never
// touches other symbols and has no side effects.
package metrics

import (
	"math"
	"sort"

	"github.com/seenimoa/bhavlens/pkg/models"
)

const (
	smaShortWindow = 20
	smaLongWindow  = 50
	streakLookback = 10
	volumeRecent   = 5
)

// PeriodStats computes the statistics bundle for one symbol's rows within a
// query window. Rows may arrive in any order; non-positive and missing closes
// are dropped first. Fewer than 2 usable rows is an expected "no signal"
// outcome and returns nil rather than an error.
func PeriodStats(rows []models.MarketRecord) *models.PeriodStats {
	clean := make([]models.MarketRecord, 0, len(rows))
	for _, r := range rows {
		if r.HasDate() && r.HasClose() && r.Close > 0 {
			clean = append(clean, r)
		}
	}
	if len(clean) < 2 {
		return nil
	}
	sort.SliceStable(clean, func(i, j int) bool { return clean[i].Date.Before(clean[j].Date) })

	closes := make([]float64, len(clean))
	for i, r := range clean {
		closes[i] = r.Close
	}
	first, last := closes[0], closes[len(closes)-1]

	dailyReturns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		dailyReturns = append(dailyReturns, (closes[i]-closes[i-1])/closes[i-1])
	}

	high, low := closes[0], closes[0]
	for _, c := range closes[1:] {
		high = math.Max(high, c)
		low = math.Min(low, c)
	}

	avgVol, totalVol := volumeAggregates(clean)
	ups, downs := streaks(closes)

	st := &models.PeriodStats{
		Symbol:              clean[0].Symbol,
		ReturnPct:           round2((last - first) / first * 100),
		Volatility:          round2(sampleStdDev(dailyReturns) * 100),
		StartPrice:          round2(first),
		EndPrice:            round2(last),
		PeriodHigh:          round2(high),
		PeriodLow:           round2(low),
		AvgVolume:           avgVol,
		TotalVolume:         totalVol,
		AvgDeliveryPct:      round2(avgDelivery(clean)),
		DaysCount:           len(clean),
		StartDate:           clean[0].Date.Format("2006-01-02"),
		EndDate:             clean[len(clean)-1].Date.Format("2006-01-02"),
		MaxDrawdown:         round2(maxDrawdown(dailyReturns)),
		SMA20:               round2(trailingMean(closes, smaShortWindow)),
		SMA50:               round2(trailingMean(closes, smaLongWindow)),
		ConsecutiveUps:      ups,
		ConsecutiveDowns:    downs,
		DistanceFromHighPct: round2((last - high) / high * 100),
		DistanceFromLowPct:  round2((last - low) / low * 100),
		VolumeTrendPct:      round2(volumeTrend(clean)),
		MomentumPct:         round2(momentum(closes)),
	}
	return st
}

// sampleStdDev is the n-1 standard deviation; 0 with fewer than 2 values.
func sampleStdDev(data []float64) float64 {
	n := len(data)
	if n < 2 {
		return 0
	}
	mean := 0.0
	for _, v := range data {
		mean += v
	}
	mean /= float64(n)

	sumSq := 0.0
	for _, v := range data {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// maxDrawdown tracks the cumulative return product against its running
// maximum and reports the deepest trough as a percentage (≤ 0).
func maxDrawdown(dailyReturns []float64) float64 {
	cum, peak, worst := 1.0, 1.0, 0.0
	for _, r := range dailyReturns {
		cum *= 1 + r
		if cum > peak {
			peak = cum
		}
		dd := (cum - peak) / peak
		if dd < worst {
			worst = dd
		}
	}
	return worst * 100
}

// trailingMean averages the last `window` closes. When fewer rows exist the
// last close is reported instead of a partial-window average; this mirrors
// the established behavior downstream consumers depend on.
func trailingMean(closes []float64, window int) float64 {
	if len(closes) < window {
		return closes[len(closes)-1]
	}
	sum := 0.0
	for _, c := range closes[len(closes)-window:] {
		sum += c
	}
	return sum / float64(window)
}

// streaks scans the last 10 sessions' day-over-day deltas with a signed
// running counter (reset on zero-change days) and returns the maximum
// magnitude reached in each direction. These are window maxima, not the
// streak standing at the end.
func streaks(closes []float64) (maxUp, maxDown int) {
	tail := closes
	if len(tail) > streakLookback {
		tail = tail[len(tail)-streakLookback:]
	}

	streak := 0
	for i := 1; i < len(tail); i++ {
		switch {
		case tail[i] > tail[i-1]:
			if streak > 0 {
				streak++
			} else {
				streak = 1
			}
		case tail[i] < tail[i-1]:
			if streak < 0 {
				streak--
			} else {
				streak = -1
			}
		default:
			streak = 0
		}
		if streak > maxUp {
			maxUp = streak
		}
		if -streak > maxDown {
			maxDown = -streak
		}
	}
	return maxUp, maxDown
}

// volumeTrend compares the mean volume of the last 5 sessions against the
// mean of everything before them. 0 when fewer than 10 rows or the older
// mean is 0.
func volumeTrend(rows []models.MarketRecord) float64 {
	if len(rows) < 2*volumeRecent {
		return 0
	}
	recent := meanVolume(rows[len(rows)-volumeRecent:])
	older := meanVolume(rows[:len(rows)-volumeRecent])
	if older == 0 {
		return 0
	}
	return (recent - older) / older * 100
}

// momentum is the percent change from the midpoint close to the last close;
// 0 with fewer than 4 rows.
func momentum(closes []float64) float64 {
	if len(closes) < 4 {
		return 0
	}
	mid := closes[len(closes)/2]
	if mid == 0 {
		return 0
	}
	return (closes[len(closes)-1] - mid) / mid * 100
}

func volumeAggregates(rows []models.MarketRecord) (avg, total int64) {
	sum, n := 0.0, 0
	for _, r := range rows {
		if !math.IsNaN(r.Volume) {
			sum += r.Volume
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return int64(sum / float64(n)), int64(sum)
}

func meanVolume(rows []models.MarketRecord) float64 {
	sum, n := 0.0, 0
	for _, r := range rows {
		if !math.IsNaN(r.Volume) {
			sum += r.Volume
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// avgDelivery averages the delivery percentage over rows that carry one;
// 0 when the column was absent throughout.
func avgDelivery(rows []models.MarketRecord) float64 {
	sum, n := 0.0, 0
	for _, r := range rows {
		if !math.IsNaN(r.DeliveryPct) {
			sum += r.DeliveryPct
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
