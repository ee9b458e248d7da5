package query

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/seenimoa/bhavlens/internal/classify"
	"github.com/seenimoa/bhavlens/internal/store"
	"github.com/seenimoa/bhavlens/pkg/models"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// newTools builds the full tool surface over temp fixtures: a two-month TCS
// series, one INFY row, and a small sector map.
func newTools(t *testing.T) *Tools {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, filepath.Join("raw", "data.csv"),
		"SYMBOL,OPEN,HIGH,LOW,CLOSE,TOTTRDQTY,TOTTRDVAL,DELIV_PER,TIMESTAMP\n"+
			"TCS,100,101,99,100,1000,100000,65,03-Jan-2022\n"+
			"TCS,102,106,101,105,1500,157500,70,17-Jan-2022\n"+
			"TCS,108,111,107,110,1200,132000,68,31-Jan-2022\n"+
			"INFY,1500,1510,1480,1490,2000,2980000,55,31-Jan-2022\n"+
			"WIPRO,400,410,390,392,3000,1176000,45,03-Jan-2022\n"+
			"WIPRO,390,395,370,372,3500,1302000,40,31-Jan-2022\n")

	s, err := store.New(root, "raw", filepath.Join(root, "cache"))
	if err != nil {
		t.Fatal(err)
	}

	secDir := t.TempDir()
	writeFile(t, secDir, "sectors.csv",
		"SYMBOL,SECTOR\nTCS,Information Technology\nINFY,Information Technology\nWIPRO,Information Technology\n")
	c := classify.New(filepath.Join(secDir, "sectors.csv"), "", "")

	return New(s, c)
}

func TestMeta(t *testing.T) {
	res := newTools(t).Meta()
	if res.Error != "" {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	if res.MinDate != "2022-01-03" || res.MaxDate != "2022-01-31" {
		t.Errorf("range = %s..%s", res.MinDate, res.MaxDate)
	}
	if res.TotalSymbols != 3 || res.TotalRows != 6 {
		t.Errorf("counts = %d symbols / %d rows", res.TotalSymbols, res.TotalRows)
	}
}

func TestListSymbols(t *testing.T) {
	tools := newTools(t)

	res := tools.ListSymbols("")
	if !reflect.DeepEqual(res.Symbols, []string{"INFY", "TCS", "WIPRO"}) {
		t.Errorf("symbols = %v", res.Symbols)
	}

	res = tools.ListSymbols("tc")
	if !reflect.DeepEqual(res.Symbols, []string{"TCS"}) || res.Count != 1 {
		t.Errorf("search = %v (count %d)", res.Symbols, res.Count)
	}
}

func TestSummarizeSymbolExplicitWindow(t *testing.T) {
	res := newTools(t).SummarizeSymbol("tcs", "2022-01-03", "2022-01-31")
	if res.Error != "" {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	if res.FirstClose != 100 || res.LastClose != 110 {
		t.Errorf("closes = %.2f/%.2f", res.FirstClose, res.LastClose)
	}
	if res.PercentReturn != 10.00 {
		t.Errorf("percent_return = %.2f, want 10.00", res.PercentReturn)
	}
	if res.AbsoluteReturn != 10.00 {
		t.Errorf("absolute_return = %.2f, want 10.00", res.AbsoluteReturn)
	}
	if res.DatesDefaulted {
		t.Error("dates_defaulted must be false with explicit dates")
	}
}

func TestSummarizeSymbolUnknown(t *testing.T) {
	res := newTools(t).SummarizeSymbol("NOPE", "", "")
	if res.Error == "" {
		t.Fatal("expected error for unknown symbol")
	}
	if !strings.Contains(res.Error, "NOPE") {
		t.Errorf("error should name the symbol: %s", res.Error)
	}
}

func TestDefaultWindowEndsAtMaxDate(t *testing.T) {
	// Both dates omitted: the 7-day ranking window ends at the dataset's max
	// date (2022-01-31) and starts 7 days earlier.
	res := newTools(t).TopGainers("", "", 5)
	if !res.DatesDefaulted {
		t.Fatal("dates_defaulted must be true when both dates are omitted")
	}
	if res.EndDate != "2022-01-31" || res.StartDate != "2022-01-24" {
		t.Errorf("window = %s..%s, want 2022-01-24..2022-01-31", res.StartDate, res.EndDate)
	}
}

func TestWindowSingleDateNotDefaulted(t *testing.T) {
	res := newTools(t).TopGainers("2022-01-03", "", 5)
	if res.DatesDefaulted {
		t.Error("a provided start date must clear dates_defaulted")
	}
	if res.EndDate != "2022-01-31" {
		t.Errorf("missing end must fall back to max date, got %s", res.EndDate)
	}
}

func TestWindowErrors(t *testing.T) {
	tools := newTools(t)

	res := tools.TopGainers("not-a-date", "", 5)
	if res.Error == "" || !strings.Contains(res.Error, "not-a-date") {
		t.Errorf("expected unparseable-date error, got %q", res.Error)
	}

	res = tools.TopGainers("2022-02-01", "2022-01-01", 5)
	if res.Error == "" || !strings.Contains(res.Error, "after") {
		t.Errorf("expected inverted-range error, got %q", res.Error)
	}
}

func TestTopGainersAndLosers(t *testing.T) {
	tools := newTools(t)

	gainers := tools.TopGainers("2022-01-01", "2022-01-31", 5)
	if gainers.Error != "" {
		t.Fatalf("unexpected error: %s", gainers.Error)
	}
	// TCS +10%, WIPRO -5.1%; INFY has a single row and is dropped.
	if len(gainers.Stocks) != 2 || gainers.Stocks[0].Symbol != "TCS" {
		t.Errorf("gainers = %+v", gainers.Stocks)
	}

	losers := tools.TopLosers("2022-01-01", "2022-01-31", 1)
	if len(losers.Stocks) != 1 || losers.Stocks[0].Symbol != "WIPRO" {
		t.Errorf("losers = %+v", losers.Stocks)
	}
}

func TestRankByUnknownMetric(t *testing.T) {
	res := newTools(t).RankBy("sharpe", "2022-01-01", "2022-01-31", 5)
	if res.Error == "" || !strings.Contains(res.Error, "valid metrics") {
		t.Errorf("expected unknown-metric error listing valid metrics, got %q", res.Error)
	}
}

func TestRankByVolume(t *testing.T) {
	res := newTools(t).RankBy("volume", "2022-01-01", "2022-01-31", 5)
	if res.Error != "" {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	if res.Stocks[0].Symbol != "WIPRO" {
		t.Errorf("highest-volume symbol = %s, want WIPRO", res.Stocks[0].Symbol)
	}
}

func TestSectorPerformersUnknownSector(t *testing.T) {
	res := newTools(t).SectorPerformers("Nonexistent", "", "", 5)
	if res.Error == "" {
		t.Fatal("expected error for unknown sector")
	}
	if !reflect.DeepEqual(res.ValidSectors, []string{"Information Technology"}) {
		t.Errorf("valid_sectors = %v", res.ValidSectors)
	}
	if len(res.Performers) != 0 {
		t.Errorf("performers must be empty on error, got %v", res.Performers)
	}
}

func TestSectorPerformers(t *testing.T) {
	res := newTools(t).SectorPerformers("information technology", "2022-01-01", "2022-01-31", 5)
	if res.Error != "" {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	if res.Sector != "Information Technology" {
		t.Errorf("sector canonical casing lost: %q", res.Sector)
	}
	if len(res.Performers) != 2 || res.Performers[0].Symbol != "TCS" {
		t.Errorf("performers = %+v", res.Performers)
	}
}

func TestAnalyzeStock(t *testing.T) {
	res := newTools(t).AnalyzeStock("TCS", "2022-01-01", "2022-01-31")
	if res.Error != "" {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	if res.Stats == nil || res.Technical == nil || res.Risk == nil || res.Momentum == nil {
		t.Fatal("missing analysis groups")
	}
	if res.Stats.ReturnPct != 10.00 {
		t.Errorf("return_pct = %.2f", res.Stats.ReturnPct)
	}
	if res.Sector != "Information Technology" {
		t.Errorf("sector = %q", res.Sector)
	}
	// +10% with avg delivery ~67.67 hits the first verdict rule.
	if res.Verdict != "Strong Accumulation" {
		t.Errorf("verdict = %q", res.Verdict)
	}
	if res.Trend == "" {
		t.Error("trend must always be set")
	}
}

func TestAnalyzeStockInsufficientData(t *testing.T) {
	// INFY has a single row in the dataset.
	res := newTools(t).AnalyzeStock("INFY", "2022-01-01", "2022-01-31")
	if res.Error == "" || !strings.Contains(res.Error, "insufficient") {
		t.Errorf("expected insufficient-data error, got %q", res.Error)
	}
	if res.Stats != nil {
		t.Error("stats must be nil on error")
	}
}

func TestVerdictTable(t *testing.T) {
	cases := []struct {
		ret, deliv, vol float64
		want            string
	}{
		{6, 65, 5, "Strong Accumulation"},
		{4, 55, 5, "Positive Momentum"},
		{-6, 65, 5, "Distribution Pattern"},
		{-4, 30, 5, "Weakness"},
		{-6, 30, 5, "Weakness"},
		{1, 30, 12, "High Volatility"},
		{1, 30, 5, "Neutral"},
		{6, 55, 5, "Positive Momentum"}, // misses the delivery bar for rule 1
	}
	for _, c := range cases {
		st := &models.PeriodStats{ReturnPct: c.ret, AvgDeliveryPct: c.deliv, Volatility: c.vol}
		if got := verdict(st); got != c.want {
			t.Errorf("verdict(ret=%.0f deliv=%.0f vol=%.0f) = %q, want %q",
				c.ret, c.deliv, c.vol, got, c.want)
		}
	}
}

func TestTrendClassification(t *testing.T) {
	cases := []struct {
		price, sma20, sma50 float64
		want                string
	}{
		{110, 105, 100, TrendUp},
		{90, 95, 100, TrendDown},
		{100, 105, 95, TrendSideways},
		{100, 100, 100, TrendSideways},
	}
	for _, c := range cases {
		st := &models.PeriodStats{EndPrice: c.price, SMA20: c.sma20, SMA50: c.sma50}
		if got := trend(st); got != c.want {
			t.Errorf("trend(%.0f/%.0f/%.0f) = %q, want %q", c.price, c.sma20, c.sma50, got, c.want)
		}
	}
}

func TestDetectBreakouts(t *testing.T) {
	res := newTools(t).DetectBreakouts("2022-01-01", "2022-01-31", 5)
	if res.Error != "" {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	// Only TCS clears +5% with low volatility; its delivery grades it
	// high-conviction.
	if len(res.Breakouts) != 1 || res.Breakouts[0].Symbol != "TCS" {
		t.Fatalf("breakouts = %+v", res.Breakouts)
	}
	if res.Breakouts[0].Quality != "HIGH CONVICTION" {
		t.Errorf("quality = %q", res.Breakouts[0].Quality)
	}
}

func TestDetectBreakoutsNone(t *testing.T) {
	res := newTools(t).DetectBreakouts("2022-01-01", "2022-01-31", 50)
	if res.Error == "" {
		t.Error("expected no-breakouts error at an unreachable threshold")
	}
}

func TestDeliveryMomentum(t *testing.T) {
	res := newTools(t).DeliveryMomentum("2022-01-01", "2022-01-31", 60)
	if res.Error != "" {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	if len(res.Stocks) != 1 || res.Stocks[0].Symbol != "TCS" {
		t.Fatalf("stocks = %+v", res.Stocks)
	}
	if res.Stocks[0].Signal != "ACCUMULATION" {
		t.Errorf("signal = %q, want ACCUMULATION for +10%%", res.Stocks[0].Signal)
	}
}

func TestDeliverySignals(t *testing.T) {
	if got := deliverySignal(5); got != "ACCUMULATION" {
		t.Errorf("signal(+5) = %q", got)
	}
	if got := deliverySignal(-5); got != "DISTRIBUTION" {
		t.Errorf("signal(-5) = %q", got)
	}
	if got := deliverySignal(1); got != "CONSOLIDATION" {
		t.Errorf("signal(+1) = %q", got)
	}
}

func TestHistory(t *testing.T) {
	res := newTools(t).History("TCS", "2022-01-01", "2022-01-31")
	if res.Error != "" {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	if res.Count != 3 || len(res.Rows) != 3 {
		t.Fatalf("count = %d", res.Count)
	}
	if res.Rows[0].Date != "2022-01-03" || res.Rows[0].Close != 100 {
		t.Errorf("first row = %+v", res.Rows[0])
	}
	if res.Rows[2].Volume != 1200 {
		t.Errorf("volume = %d", res.Rows[2].Volume)
	}
}

func TestIndexConstituentsUnknown(t *testing.T) {
	res := newTools(t).IndexConstituents("BANKEX")
	if res.Error == "" {
		t.Error("expected error for unknown index")
	}
}

func TestMarketCapUnknown(t *testing.T) {
	res := newTools(t).MarketCap("TCS")
	if res.Error == "" {
		t.Error("expected error with no index sources configured")
	}
}
