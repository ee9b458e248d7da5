package tools

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/seenimoa/bhavlens/internal/classify"
	"github.com/seenimoa/bhavlens/internal/query"
	"github.com/seenimoa/bhavlens/internal/store"
)

func TestRegistryExecute(t *testing.T) {
	r := NewRegistry()
	r.RegisterFunc("echo", "echoes its input",
		ObjectSchema("echo arguments", map[string]*JSONSchema{
			"msg": StringProp("message"),
		}, "msg"),
		func(ctx context.Context, args json.RawMessage) (string, error) {
			var a struct {
				Msg string `json:"msg"`
			}
			if err := json.Unmarshal(args, &a); err != nil {
				return "", err
			}
			return a.Msg, nil
		})

	out, err := r.Execute(context.Background(), "echo", json.RawMessage(`{"msg":"hi"}`))
	if err != nil {
		t.Fatal(err)
	}
	if out != "hi" {
		t.Errorf("out = %q", out)
	}

	if _, err := r.Execute(context.Background(), "nope", nil); !errors.Is(err, ErrToolNotFound) {
		t.Errorf("expected ErrToolNotFound, got %v", err)
	}
}

func TestRegistryNamesSorted(t *testing.T) {
	r := NewRegistry()
	r.RegisterFunc("zeta", "", nil, nil)
	r.RegisterFunc("alpha", "", nil, nil)
	if got := r.Names(); !reflect.DeepEqual(got, []string{"alpha", "zeta"}) {
		t.Errorf("names = %v", got)
	}
	if r.Count() != 2 {
		t.Errorf("count = %d", r.Count())
	}
}

func newCatalog(t *testing.T) *Registry {
	t.Helper()
	root := t.TempDir()
	raw := filepath.Join(root, "raw")
	if err := os.MkdirAll(raw, 0o755); err != nil {
		t.Fatal(err)
	}
	csv := "SYMBOL,CLOSE,TOTTRDQTY,DELIV_PER,TIMESTAMP\n" +
		"TCS,100,1000,65,03-Jan-2022\n" +
		"TCS,110,1200,70,31-Jan-2022\n"
	if err := os.WriteFile(filepath.Join(raw, "data.csv"), []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := store.New(root, "raw", filepath.Join(root, "cache"))
	if err != nil {
		t.Fatal(err)
	}
	return NewCatalog(query.New(s, classify.New("", "", "")))
}

func TestCatalogCoversQuerySurface(t *testing.T) {
	r := newCatalog(t)
	want := []string{
		"analyze_stock",
		"detect_breakouts",
		"get_data_info",
		"get_delivery_momentum",
		"get_index_constituents",
		"get_market_cap_category",
		"get_sector_top_performers",
		"get_stock_history",
		"get_top_gainers",
		"get_top_losers",
		"list_symbols",
		"rank_stocks",
		"summarize_symbol",
	}
	if got := r.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("catalog = %v, want %v", got, want)
	}
}

func TestCatalogExecuteSummary(t *testing.T) {
	r := newCatalog(t)
	out, err := r.Execute(context.Background(), "summarize_symbol",
		json.RawMessage(`{"symbol":"TCS","start_date":"2022-01-03","end_date":"2022-01-31"}`))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"percent_return":10`) {
		t.Errorf("result missing expected return: %s", out)
	}
}

func TestCatalogExecuteNoArgs(t *testing.T) {
	r := newCatalog(t)
	out, err := r.Execute(context.Background(), "get_data_info", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"total_symbols":1`) {
		t.Errorf("unexpected meta result: %s", out)
	}
}

func TestCatalogErrorFieldNotGoError(t *testing.T) {
	// Expected data absence flows through as a JSON error field, not a Go
	// error from Execute.
	r := newCatalog(t)
	out, err := r.Execute(context.Background(), "summarize_symbol",
		json.RawMessage(`{"symbol":"NOPE"}`))
	if err != nil {
		t.Fatalf("expected nil Go error, got %v", err)
	}
	if !strings.Contains(out, `"error"`) {
		t.Errorf("result should carry an error field: %s", out)
	}
}
