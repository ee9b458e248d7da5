package schema

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizeLegacyColumns(t *testing.T) {
	header := []string{"SYMBOL", "SERIES", "OPEN", "HIGH", "LOW", "CLOSE", "TOTTRDQTY", "TOTTRDVAL", "TIMESTAMP"}
	rows := [][]string{
		{"TCS", "EQ", "3500", "3550.5", "3480", "3520", "1,20,000", "422400000", "03-Jan-2022"},
	}

	recs := Normalize(header, rows)
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	r := recs[0]
	if r.Symbol != "TCS" {
		t.Errorf("symbol = %q, want TCS", r.Symbol)
	}
	if got := r.Date.Format("2006-01-02"); got != "2022-01-03" {
		t.Errorf("date = %s, want 2022-01-03", got)
	}
	if r.Volume != 120000 {
		t.Errorf("volume = %f, want 120000 (comma-separated cell)", r.Volume)
	}
	if r.High != 3550.5 {
		t.Errorf("high = %f, want 3550.5", r.High)
	}
}

func TestNormalizeAlternateNames(t *testing.T) {
	header := []string{"TckrSymb", "TradDt", "OPEN_PRICE", "HIGH_PRICE", "LOW_PRICE", "CLOSE_PRICE", "TTL_TRD_QNTY"}
	rows := [][]string{
		{"infy", "2024-06-28", "1500", "1520", "1490", "1510", "500000"},
	}

	recs := Normalize(header, rows)
	r := recs[0]
	if r.Symbol != "INFY" {
		t.Errorf("symbol = %q, want INFY (uppercased alias column)", r.Symbol)
	}
	if r.Volume != 500000 {
		t.Errorf("TTL_TRD_QNTY should map to the volume column, got %f", r.Volume)
	}
	if r.Open != 1500 || r.Close != 1510 {
		t.Errorf("price aliases not applied: open=%f close=%f", r.Open, r.Close)
	}
}

func TestNormalizeAliasNeverOverwrites(t *testing.T) {
	// Both the canonical column and an alias are present; the canonical one
	// must win regardless of position.
	header := []string{"SYMBOL", "DATE", "VOLUME", "TOTTRDQTY", "CLOSE"}
	rows := [][]string{
		{"SBIN", "2024-06-28", "111", "222", "800"},
	}

	recs := Normalize(header, rows)
	if recs[0].Volume != 222 {
		t.Errorf("volume = %f, want 222 from canonical TOTTRDQTY", recs[0].Volume)
	}
}

func TestNormalizeDateFallbackColumn(t *testing.T) {
	header := []string{"SYMBOL", "SETTLEMENT_DATE", "CLOSE"}
	rows := [][]string{{"RELIANCE", "28-Jun-2024", "2900"}}

	recs := Normalize(header, rows)
	if !recs[0].HasDate() {
		t.Error("expected date resolved from fallback column containing DATE")
	}
}

func TestNormalizeBadCells(t *testing.T) {
	header := []string{"SYMBOL", "DATE", "OPEN", "CLOSE", "TOTTRDQTY"}
	rows := [][]string{
		{"TCS", "not-a-date", "abc", "-", ""},
	}

	recs := Normalize(header, rows)
	r := recs[0]
	if r.HasDate() {
		t.Error("unparseable date should be zero time")
	}
	if !math.IsNaN(r.Open) || !math.IsNaN(r.Close) || !math.IsNaN(r.Volume) {
		t.Error("unparseable numerics should be NaN")
	}
}

func TestTradedValueDerivation(t *testing.T) {
	// Turnover in lakhs takes precedence.
	header := []string{"SYMBOL", "DATE", "CLOSE", "TOTTRDQTY", "TURNOVER_LACS"}
	rows := [][]string{{"TCS", "2024-06-28", "100", "1000", "2.5"}}
	recs := Normalize(header, rows)
	if recs[0].TradedValue != 250000 {
		t.Errorf("traded value = %f, want 250000 from turnover lakhs", recs[0].TradedValue)
	}

	// Without turnover, close×volume.
	header = []string{"SYMBOL", "DATE", "CLOSE", "TOTTRDQTY"}
	rows = [][]string{{"TCS", "2024-06-28", "100", "1000"}}
	recs = Normalize(header, rows)
	if recs[0].TradedValue != 100000 {
		t.Errorf("traded value = %f, want close*volume = 100000", recs[0].TradedValue)
	}

	// Null operand → null result.
	rows = [][]string{{"TCS", "2024-06-28", "100", ""}}
	recs = Normalize(header, rows)
	if !math.IsNaN(recs[0].TradedValue) {
		t.Errorf("traded value = %f, want NaN when volume is null", recs[0].TradedValue)
	}
}

func TestNormalizeMissingSymbolColumn(t *testing.T) {
	header := []string{"DATE", "CLOSE"}
	rows := [][]string{{"2024-06-28", "100"}}

	recs := Normalize(header, rows)
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0].Symbol != "" {
		t.Errorf("symbol = %q, want empty when no symbol column exists", recs[0].Symbol)
	}
}

func TestAllNull(t *testing.T) {
	header := []string{"SYMBOL", "DATE", "CLOSE"}
	rows := [][]string{
		{"", "bad", ""},
		{"", "", "x"},
	}
	recs := Normalize(header, rows)
	if !AllNull(recs) {
		t.Error("frame with no recoverable values should be all-null")
	}

	rows = [][]string{{"TCS", "bad", ""}}
	if AllNull(Normalize(header, rows)) {
		t.Error("frame with a symbol is not all-null")
	}
}

func TestReadFileMalformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.csv")
	// Unclosed quote makes the whole file unparseable.
	if err := os.WriteFile(path, []byte("SYMBOL,DATE,CLOSE\n\"TCS,2024-06-28,100\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadFile(path); err == nil {
		t.Error("expected error for malformed CSV")
	}
}

func TestReadFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cm_bhav.csv")
	content := "SYMBOL,SERIES,OPEN,HIGH,LOW,CLOSE,TOTTRDQTY,TOTTRDVAL,TIMESTAMP\n" +
		"TCS,EQ,100,105,99,102,1000,102000,03-Jan-2022\n" +
		"INFY,EQ,1500,1520,1490,1510,2000,3020000,03-Jan-2022\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	recs, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[1].Symbol != "INFY" || recs[1].Close != 1510 {
		t.Errorf("unexpected second record: %+v", recs[1])
	}
}
