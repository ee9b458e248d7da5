package utils

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC)

	tests := []string{
		"28-Jun-2024",
		"2024-06-28",
		"28-06-2024",
		"28/06/2024",
		" 28-Jun-2024 ",
		"20240628",
	}
	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			got := ParseDate(in)
			if !got.Equal(want) {
				t.Errorf("ParseDate(%q) = %v, want %v", in, got, want)
			}
		})
	}
}

func TestParseDateInvalid(t *testing.T) {
	for _, in := range []string{"", "garbage", "32-13-2024", "-"} {
		if got := ParseDate(in); !got.IsZero() {
			t.Errorf("ParseDate(%q) = %v, want zero time", in, got)
		}
	}
}

func TestFormatDate(t *testing.T) {
	if got := FormatDate(time.Time{}); got != "" {
		t.Errorf("FormatDate(zero) = %q, want empty", got)
	}
	d := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)
	if got := FormatDate(d); got != "2022-01-03" {
		t.Errorf("FormatDate = %q, want 2022-01-03", got)
	}
}
