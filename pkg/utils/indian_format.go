// Package utils provides shared helpers: Indian-notation number formatting,
// lenient bhavcopy date parsing, and IST time handling.
package utils

import (
	"fmt"
	"math"
	"strings"
)

// FormatINR formats an amount in Indian Rupee notation (₹12,34,567.89):
// last 3 digits, then groups of 2.
func FormatINR(amount float64) string {
	negative := amount < 0
	amount = math.Abs(amount)

	intPart := int64(amount)
	out := groupIndian(intPart) + fmt.Sprintf("%.2f", amount-float64(intPart))[1:]

	if negative {
		return "-₹" + out
	}
	return "₹" + out
}

// FormatINRCompact formats an amount in compact Indian notation,
// e.g. 1927345 → "₹19.27 L", 192734500000 → "₹19,273.45 Cr".
func FormatINRCompact(amount float64) string {
	prefix := "₹"
	if amount < 0 {
		prefix = "-₹"
		amount = -amount
	}

	switch {
	case amount >= 1e12:
		return fmt.Sprintf("%s%s L Cr", prefix, trimZeros(amount/1e12))
	case amount >= 1e7:
		return fmt.Sprintf("%s%s Cr", prefix, trimZeros(amount/1e7))
	case amount >= 1e5:
		return fmt.Sprintf("%s%s L", prefix, trimZeros(amount/1e5))
	case amount >= 1e3:
		return fmt.Sprintf("%s%s K", prefix, trimZeros(amount/1e3))
	default:
		return fmt.Sprintf("%s%.2f", prefix, amount)
	}
}

// FromLakhs converts a value expressed in lakhs to the raw rupee amount.
// Bhavcopy turnover columns are reported in lakhs.
func FromLakhs(lakhs float64) float64 {
	return lakhs * 1e5
}

// FormatPct formats a percentage with an explicit sign, e.g. "+2.45%".
func FormatPct(pct float64) string {
	if pct >= 0 {
		return fmt.Sprintf("+%.2f%%", pct)
	}
	return fmt.Sprintf("%.2f%%", pct)
}

// FormatVolume formats a share count in Indian notation (lakhs/crores).
func FormatVolume(volume int64) string {
	v := float64(volume)
	switch {
	case v >= 1e7:
		return fmt.Sprintf("%.2f Cr", v/1e7)
	case v >= 1e5:
		return fmt.Sprintf("%.2f L", v/1e5)
	case v >= 1e3:
		return fmt.Sprintf("%.2f K", v/1e3)
	default:
		return fmt.Sprintf("%d", volume)
	}
}

// groupIndian renders an integer with Indian digit grouping.
func groupIndian(n int64) string {
	s := fmt.Sprintf("%d", n)
	if n < 1000 {
		return s
	}

	out := s[len(s)-3:]
	rest := s[:len(s)-3]
	for len(rest) > 2 {
		out = rest[len(rest)-2:] + "," + out
		rest = rest[:len(rest)-2]
	}
	return rest + "," + out
}

// trimZeros formats with 2 decimals and strips trailing zeros.
func trimZeros(n float64) string {
	s := fmt.Sprintf("%.2f", n)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
