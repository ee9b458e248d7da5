package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/seenimoa/bhavlens/internal/query"
)

// windowArgs are the optional date-range arguments shared by most tools.
type windowArgs struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type symbolArgs struct {
	Symbol string `json:"symbol"`
	windowArgs
}

type rankArgs struct {
	Metric string `json:"metric"`
	TopN   int    `json:"top_n"`
	windowArgs
}

type sectorArgs struct {
	Sector string `json:"sector"`
	TopN   int    `json:"top_n"`
	windowArgs
}

type breakoutArgs struct {
	Threshold float64 `json:"threshold"`
	windowArgs
}

type deliveryArgs struct {
	MinDelivery float64 `json:"min_delivery"`
	windowArgs
}

// NewCatalog builds a registry with every query operation registered under a
// stable tool name.
func NewCatalog(q *query.Tools) *Registry {
	r := NewRegistry()

	startProp := StringProp("start date, YYYY-MM-DD, optional")
	endProp := StringProp("end date, YYYY-MM-DD, optional")

	r.RegisterFunc("get_data_info",
		"Date range, symbol count, and row count of the loaded market data",
		ObjectSchema("no arguments", nil),
		func(ctx context.Context, args json.RawMessage) (string, error) {
			return marshal(q.Meta())
		})

	r.RegisterFunc("list_symbols",
		"List known stock symbols, optionally filtered by a substring",
		ObjectSchema("symbol listing arguments", map[string]*JSONSchema{
			"search": StringProp("case-insensitive substring filter, optional"),
		}),
		func(ctx context.Context, args json.RawMessage) (string, error) {
			var a struct {
				Search string `json:"search"`
			}
			if err := unmarshal(args, &a); err != nil {
				return "", err
			}
			return marshal(q.ListSymbols(a.Search))
		})

	r.RegisterFunc("get_stock_history",
		"OHLC price history for one symbol over a date range",
		ObjectSchema("history arguments", map[string]*JSONSchema{
			"symbol":     StringProp("NSE stock symbol"),
			"start_date": startProp,
			"end_date":   endProp,
		}, "symbol"),
		func(ctx context.Context, args json.RawMessage) (string, error) {
			var a symbolArgs
			if err := unmarshal(args, &a); err != nil {
				return "", err
			}
			return marshal(q.History(a.Symbol, a.StartDate, a.EndDate))
		})

	r.RegisterFunc("summarize_symbol",
		"First/last close and absolute/percent return for one symbol",
		ObjectSchema("summary arguments", map[string]*JSONSchema{
			"symbol":     StringProp("NSE stock symbol"),
			"start_date": startProp,
			"end_date":   endProp,
		}, "symbol"),
		func(ctx context.Context, args json.RawMessage) (string, error) {
			var a symbolArgs
			if err := unmarshal(args, &a); err != nil {
				return "", err
			}
			return marshal(q.SummarizeSymbol(a.Symbol, a.StartDate, a.EndDate))
		})

	r.RegisterFunc("get_top_gainers",
		"Best-performing stocks by period return",
		rankSchema(startProp, endProp),
		func(ctx context.Context, args json.RawMessage) (string, error) {
			var a rankArgs
			if err := unmarshal(args, &a); err != nil {
				return "", err
			}
			return marshal(q.TopGainers(a.StartDate, a.EndDate, a.TopN))
		})

	r.RegisterFunc("get_top_losers",
		"Worst-performing stocks by period return",
		rankSchema(startProp, endProp),
		func(ctx context.Context, args json.RawMessage) (string, error) {
			var a rankArgs
			if err := unmarshal(args, &a); err != nil {
				return "", err
			}
			return marshal(q.TopLosers(a.StartDate, a.EndDate, a.TopN))
		})

	r.RegisterFunc("rank_stocks",
		"Rank stocks by a metric (return or volume)",
		ObjectSchema("ranking arguments", map[string]*JSONSchema{
			"metric":     StringProp("ranking metric: return or volume"),
			"top_n":      IntProp("number of stocks to return, default 10"),
			"start_date": startProp,
			"end_date":   endProp,
		}, "metric"),
		func(ctx context.Context, args json.RawMessage) (string, error) {
			var a rankArgs
			if err := unmarshal(args, &a); err != nil {
				return "", err
			}
			return marshal(q.RankBy(a.Metric, a.StartDate, a.EndDate, a.TopN))
		})

	r.RegisterFunc("get_sector_top_performers",
		"Best-performing stocks within one sector",
		ObjectSchema("sector arguments", map[string]*JSONSchema{
			"sector":     StringProp("sector name, case-insensitive"),
			"top_n":      IntProp("number of stocks to return, default 10"),
			"start_date": startProp,
			"end_date":   endProp,
		}, "sector"),
		func(ctx context.Context, args json.RawMessage) (string, error) {
			var a sectorArgs
			if err := unmarshal(args, &a); err != nil {
				return "", err
			}
			return marshal(q.SectorPerformers(a.Sector, a.StartDate, a.EndDate, a.TopN))
		})

	r.RegisterFunc("analyze_stock",
		"Full statistics, verdict, and trend for one symbol",
		ObjectSchema("analysis arguments", map[string]*JSONSchema{
			"symbol":     StringProp("NSE stock symbol"),
			"start_date": startProp,
			"end_date":   endProp,
		}, "symbol"),
		func(ctx context.Context, args json.RawMessage) (string, error) {
			var a symbolArgs
			if err := unmarshal(args, &a); err != nil {
				return "", err
			}
			return marshal(q.AnalyzeStock(a.Symbol, a.StartDate, a.EndDate))
		})

	r.RegisterFunc("detect_breakouts",
		"Stocks breaking out above a return threshold with low volatility",
		ObjectSchema("breakout arguments", map[string]*JSONSchema{
			"threshold":  NumberProp("minimum period return percent, default 5"),
			"start_date": startProp,
			"end_date":   endProp,
		}),
		func(ctx context.Context, args json.RawMessage) (string, error) {
			var a breakoutArgs
			if err := unmarshal(args, &a); err != nil {
				return "", err
			}
			return marshal(q.DetectBreakouts(a.StartDate, a.EndDate, a.Threshold))
		})

	r.RegisterFunc("get_delivery_momentum",
		"Stocks with high delivery percentage, ranked by delivery",
		ObjectSchema("delivery arguments", map[string]*JSONSchema{
			"min_delivery": NumberProp("minimum average delivery percent, default 60"),
			"start_date":   startProp,
			"end_date":     endProp,
		}),
		func(ctx context.Context, args json.RawMessage) (string, error) {
			var a deliveryArgs
			if err := unmarshal(args, &a); err != nil {
				return "", err
			}
			return marshal(q.DeliveryMomentum(a.StartDate, a.EndDate, a.MinDelivery))
		})

	r.RegisterFunc("get_index_constituents",
		"Member symbols of a named index such as NIFTY 50",
		ObjectSchema("index arguments", map[string]*JSONSchema{
			"index": StringProp("index name"),
		}, "index"),
		func(ctx context.Context, args json.RawMessage) (string, error) {
			var a struct {
				Index string `json:"index"`
			}
			if err := unmarshal(args, &a); err != nil {
				return "", err
			}
			return marshal(q.IndexConstituents(a.Index))
		})

	r.RegisterFunc("get_market_cap_category",
		"Market-cap tier (LARGE, MID, SMALL) of one symbol",
		ObjectSchema("market-cap arguments", map[string]*JSONSchema{
			"symbol": StringProp("NSE stock symbol"),
		}, "symbol"),
		func(ctx context.Context, args json.RawMessage) (string, error) {
			var a struct {
				Symbol string `json:"symbol"`
			}
			if err := unmarshal(args, &a); err != nil {
				return "", err
			}
			return marshal(q.MarketCap(a.Symbol))
		})

	return r
}

func rankSchema(startProp, endProp *JSONSchema) *JSONSchema {
	return ObjectSchema("ranking arguments", map[string]*JSONSchema{
		"top_n":      IntProp("number of stocks to return, default 10"),
		"start_date": startProp,
		"end_date":   endProp,
	})
}

func unmarshal(args json.RawMessage, v any) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("decode tool arguments: %w", err)
	}
	return nil
}

func marshal(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode tool result: %w", err)
	}
	return string(b), nil
}
