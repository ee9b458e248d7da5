package utils

import (
	"strings"
	"time"
)

// IST is the Indian Standard Time location (UTC+5:30).
var IST *time.Location

func init() {
	var err error
	IST, err = time.LoadLocation("Asia/Kolkata")
	if err != nil {
		IST = time.FixedZone("IST", 5*3600+30*60)
	}
}

// NowIST returns the current time in IST.
func NowIST() time.Time {
	return time.Now().In(IST)
}

// dateLayouts are the date formats seen across bhavcopy variants, tried in
// order. The legacy short-column files use 02-Jan-2006; the full bhavdata
// files use 02-01-2006 or ISO dates.
var dateLayouts = []string{
	"02-Jan-2006",
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"2006/01/02",
	"2-Jan-2006",
	"02-Jan-06",
	"20060102",
}

// ParseDate leniently parses a bhavcopy date cell, truncated to day
// granularity. Returns the zero time when the cell cannot be parsed.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOnly(t)
		}
	}
	return time.Time{}
}

// DateOnly strips the time-of-day component, keeping UTC day granularity.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatDate renders a day-granularity date as YYYY-MM-DD, or "" for the
// zero time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
