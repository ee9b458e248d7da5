// BhavLens is an NSE bhavcopy analytics and query agent.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seenimoa/bhavlens/internal/api"
	"github.com/seenimoa/bhavlens/internal/classify"
	"github.com/seenimoa/bhavlens/internal/config"
	"github.com/seenimoa/bhavlens/internal/news"
	"github.com/seenimoa/bhavlens/internal/query"
	"github.com/seenimoa/bhavlens/internal/router"
	"github.com/seenimoa/bhavlens/internal/search"
	"github.com/seenimoa/bhavlens/internal/session"
	"github.com/seenimoa/bhavlens/internal/store"
	"github.com/seenimoa/bhavlens/internal/tools"
	"github.com/seenimoa/bhavlens/pkg/models"
	"github.com/seenimoa/bhavlens/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "bhavlens",
	Short: "BhavLens: NSE bhavcopy analytics and query agent",
	Long: `BhavLens loads daily NSE bhavcopy files into one queryable table and
answers questions about returns, volumes, delivery, sectors, and index
membership from the command line, a natural-language ask command, or an
HTTP API.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("start", "", "start date (YYYY-MM-DD)")
	rootCmd.PersistentFlags().String("end", "", "end date (YYYY-MM-DD)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(symbolsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(gainersCmd)
	rootCmd.AddCommand(losersCmd)
	rootCmd.AddCommand(rankCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(sectorsCmd)
	rootCmd.AddCommand(sectorCmd)
	rootCmd.AddCommand(breakoutsCmd)
	rootCmd.AddCommand(deliveryCmd)
	rootCmd.AddCommand(constituentsCmd)
	rootCmd.AddCommand(marketcapCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(newsCmd)
	rootCmd.AddCommand(serveCmd)
}

// app bundles the wired-up components behind the commands.
type app struct {
	store      *store.Store
	classifier *classify.Classifier
	query      *query.Tools
	registry   *tools.Registry
}

func buildApp() (*app, error) {
	st, err := store.New(cfg.Data.Root, cfg.Data.RawSubdir, cfg.Cache.Dir)
	if err != nil {
		return nil, err
	}
	cl := classify.New(cfg.Data.SectorCSV, cfg.Data.IndicesDir, cfg.Cache.Dir)
	q := query.New(st, cl)
	return &app{store: st, classifier: cl, query: q, registry: tools.NewCatalog(q)}, nil
}

// buildResolver constructs the fuzzy symbol resolver over the loaded symbols.
func (a *app) buildResolver() router.SymbolResolver {
	listing := a.query.ListSymbols("")
	if listing.Error != "" {
		return nil
	}
	entries := make([]search.Entry, len(listing.Symbols))
	for i, sym := range listing.Symbols {
		entries[i] = search.Entry{Symbol: sym, Sector: a.classifier.SectorOf(sym)}
	}
	idx, err := search.NewIndex(entries)
	if err != nil {
		log.Printf("[WARN] symbol index unavailable: %v", err)
		return nil
	}
	return idx.Resolve
}

func dates(cmd *cobra.Command) (string, string) {
	start, _ := cmd.Flags().GetString("start")
	end, _ := cmd.Flags().GetString("end")
	return start, end
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("BhavLens %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show loaded data range and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		meta := a.query.Meta()

		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  BhavLens Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:     %s (%s)\n", version, commit)
		fmt.Printf("  Time (IST):  %s\n", utils.NowIST().Format("2006-01-02 15:04:05"))
		fmt.Printf("  Data root:   %s\n", cfg.Data.Root)
		fmt.Printf("  Cache dir:   %s\n", cfg.Cache.Dir)
		if meta.Error != "" {
			fmt.Printf("  Data:        %s\n", meta.Error)
		} else {
			fmt.Printf("  Data range:  %s .. %s\n", meta.MinDate, meta.MaxDate)
			fmt.Printf("  Symbols:     %d\n", meta.TotalSymbols)
			fmt.Printf("  Rows:        %d\n", meta.TotalRows)
		}
		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}

// --- Symbols Command ---

var symbolsCmd = &cobra.Command{
	Use:   "symbols [search]",
	Short: "List known symbols, optionally filtered",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		searchTerm := ""
		if len(args) > 0 {
			searchTerm = args[0]
		}
		res := a.query.ListSymbols(searchTerm)
		if res.Error != "" {
			return fmt.Errorf("%s", res.Error)
		}
		for _, sym := range res.Symbols {
			fmt.Println(sym)
		}
		fmt.Printf("\n%d symbols\n", res.Count)
		return nil
	},
}

// --- History Command ---

var historyCmd = &cobra.Command{
	Use:   "history [symbol]",
	Short: "Show OHLC history for a symbol",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		start, end := dates(cmd)
		res := a.query.History(args[0], start, end)
		if res.Error != "" {
			return fmt.Errorf("%s", res.Error)
		}
		fmt.Printf("%s  %s .. %s\n\n", res.Symbol, res.StartDate, res.EndDate)
		fmt.Printf("%-12s %10s %10s %10s %10s %12s %8s\n",
			"DATE", "OPEN", "HIGH", "LOW", "CLOSE", "VOLUME", "DELIV%")
		for _, row := range res.Rows {
			fmt.Printf("%-12s %10.2f %10.2f %10.2f %10.2f %12s %8.1f\n",
				row.Date, row.Open, row.High, row.Low, row.Close,
				utils.FormatVolume(row.Volume), row.DeliveryPct)
		}
		return nil
	},
}

// --- Summary Command ---

var summaryCmd = &cobra.Command{
	Use:   "summary [symbol]",
	Short: "Summarize a symbol's return over a window",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		start, end := dates(cmd)
		res := a.query.SummarizeSymbol(args[0], start, end)
		if res.Error != "" {
			return fmt.Errorf("%s", res.Error)
		}
		fmt.Printf("%s  %s .. %s\n", res.Symbol, res.StartDate, res.EndDate)
		fmt.Printf("  First close:  %s\n", utils.FormatINR(res.FirstClose))
		fmt.Printf("  Last close:   %s\n", utils.FormatINR(res.LastClose))
		fmt.Printf("  Return:       %s (%s)\n",
			utils.FormatINR(res.AbsoluteReturn), utils.FormatPct(res.PercentReturn))
		if res.DatesDefaulted {
			fmt.Println("  (window defaulted to the last 30 days of data)")
		}
		return nil
	},
}

// --- Gainers / Losers / Rank Commands ---

var gainersCmd = &cobra.Command{
	Use:   "gainers",
	Short: "Top gainers by period return",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		start, end := dates(cmd)
		n, _ := cmd.Flags().GetInt("top")
		return printRanking("📈 Top Gainers", a.query.TopGainers(start, end, n))
	},
}

var losersCmd = &cobra.Command{
	Use:   "losers",
	Short: "Top losers by period return",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		start, end := dates(cmd)
		n, _ := cmd.Flags().GetInt("top")
		return printRanking("📉 Top Losers", a.query.TopLosers(start, end, n))
	},
}

var rankCmd = &cobra.Command{
	Use:   "rank [metric]",
	Short: "Rank stocks by a metric (return or volume)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		start, end := dates(cmd)
		n, _ := cmd.Flags().GetInt("top")
		return printRanking("🏆 Ranked by "+args[0], a.query.RankBy(args[0], start, end, n))
	},
}

func init() {
	for _, c := range []*cobra.Command{gainersCmd, losersCmd, rankCmd, sectorCmd} {
		c.Flags().Int("top", 10, "number of stocks to show")
	}
}

func printRanking(title string, res models.RankingResult) error {
	if res.Error != "" {
		return fmt.Errorf("%s", res.Error)
	}
	fmt.Printf("%s  %s .. %s\n\n", title, res.StartDate, res.EndDate)
	printStatsTable(res.Stocks)
	return nil
}

func printStatsTable(stocks []models.PeriodStats) {
	fmt.Printf("%-4s %-12s %10s %12s %12s %8s\n", "#", "SYMBOL", "RETURN", "PRICE", "AVG VOL", "DELIV%")
	for i, st := range stocks {
		fmt.Printf("%-4d %-12s %9.2f%% %12s %12s %7.1f%%\n",
			i+1, st.Symbol, st.ReturnPct, utils.FormatINR(st.EndPrice),
			utils.FormatVolume(st.AvgVolume), st.AvgDeliveryPct)
	}
}

// --- Analyze Command ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze [symbol]",
	Short: "Deep dive on one symbol: stats, verdict, trend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		start, end := dates(cmd)
		res := a.query.AnalyzeStock(args[0], start, end)
		if res.Error != "" {
			return fmt.Errorf("%s", res.Error)
		}
		st := res.Stats
		fmt.Printf("🔍 %s  %s .. %s (%d sessions)\n", res.Symbol, res.StartDate, res.EndDate, st.DaysCount)
		if res.Sector != "" {
			fmt.Printf("   Sector: %s", res.Sector)
			if res.MarketCap != "" {
				fmt.Printf("  [%s CAP]", res.MarketCap)
			}
			fmt.Println()
		}
		fmt.Println()
		fmt.Printf("  Price:      %s → %s (%s)\n",
			utils.FormatINR(st.StartPrice), utils.FormatINR(st.EndPrice), utils.FormatPct(st.ReturnPct))
		fmt.Printf("  Range:      %s .. %s\n", utils.FormatINR(st.PeriodLow), utils.FormatINR(st.PeriodHigh))
		fmt.Printf("  Volume:     avg %s, total %s\n",
			utils.FormatVolume(st.AvgVolume), utils.FormatVolume(st.TotalVolume))
		fmt.Printf("  Delivery:   %.1f%% avg\n", st.AvgDeliveryPct)
		fmt.Println()
		fmt.Printf("  Technical:  SMA20 %s, SMA50 %s, %s from high, %s from low\n",
			utils.FormatINR(res.Technical.SMA20), utils.FormatINR(res.Technical.SMA50),
			utils.FormatPct(res.Technical.DistanceFromHighPct), utils.FormatPct(res.Technical.DistanceFromLowPct))
		fmt.Printf("  Risk:       volatility %.2f%%, max drawdown %s\n",
			res.Risk.Volatility, utils.FormatPct(res.Risk.MaxDrawdown))
		fmt.Printf("  Momentum:   %s, streaks +%d/-%d, volume trend %s\n",
			utils.FormatPct(res.Momentum.MomentumPct), res.Momentum.ConsecutiveUps,
			res.Momentum.ConsecutiveDowns, utils.FormatPct(res.Momentum.VolumeTrendPct))
		fmt.Println()
		fmt.Printf("  Verdict:    %s\n", res.Verdict)
		fmt.Printf("  Trend:      %s\n", res.Trend)
		return nil
	},
}

// --- Sector Commands ---

var sectorsCmd = &cobra.Command{
	Use:   "sectors",
	Short: "List known sectors",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		for _, s := range a.classifier.ValidSectors() {
			fmt.Println(s)
		}
		return nil
	},
}

var sectorCmd = &cobra.Command{
	Use:   "sector [name]",
	Short: "Top performers within one sector",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		start, end := dates(cmd)
		n, _ := cmd.Flags().GetInt("top")
		res := a.query.SectorPerformers(args[0], start, end, n)
		if res.Error != "" {
			if len(res.ValidSectors) > 0 {
				return fmt.Errorf("%s\nvalid sectors: %s", res.Error, strings.Join(res.ValidSectors, ", "))
			}
			return fmt.Errorf("%s", res.Error)
		}
		fmt.Printf("🏭 %s  %s .. %s\n\n", res.Sector, res.StartDate, res.EndDate)
		printStatsTable(res.Performers)
		return nil
	},
}

// --- Breakouts Command ---

var breakoutsCmd = &cobra.Command{
	Use:   "breakouts",
	Short: "Detect breakout candidates",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		start, end := dates(cmd)
		threshold, _ := cmd.Flags().GetFloat64("threshold")
		res := a.query.DetectBreakouts(start, end, threshold)
		if res.Error != "" {
			return fmt.Errorf("%s", res.Error)
		}
		fmt.Printf("🚀 Breakouts ≥ %.1f%%  %s .. %s\n\n", res.Threshold, res.StartDate, res.EndDate)
		fmt.Printf("%-12s %10s %10s %12s %8s  %s\n", "SYMBOL", "RETURN", "VOLAT", "PRICE", "DELIV%", "QUALITY")
		for _, b := range res.Breakouts {
			fmt.Printf("%-12s %9.2f%% %9.2f%% %12s %7.1f%%  %s\n",
				b.Symbol, b.ReturnPct, b.Volatility, utils.FormatINR(b.EndPrice), b.AvgDeliveryPct, b.Quality)
		}
		return nil
	},
}

// --- Delivery Command ---

var deliveryCmd = &cobra.Command{
	Use:   "delivery",
	Short: "High-delivery stocks ranked by delivery percentage",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		start, end := dates(cmd)
		min, _ := cmd.Flags().GetFloat64("min")
		res := a.query.DeliveryMomentum(start, end, min)
		if res.Error != "" {
			return fmt.Errorf("%s", res.Error)
		}
		fmt.Printf("📦 Delivery ≥ %.1f%%  %s .. %s\n\n", res.MinDelivery, res.StartDate, res.EndDate)
		fmt.Printf("%-12s %8s %10s %12s  %s\n", "SYMBOL", "DELIV%", "RETURN", "PRICE", "SIGNAL")
		for _, p := range res.Stocks {
			fmt.Printf("%-12s %7.1f%% %9.2f%% %12s  %s\n",
				p.Symbol, p.AvgDeliveryPct, p.ReturnPct, utils.FormatINR(p.EndPrice), p.Signal)
		}
		return nil
	},
}

func init() {
	breakoutsCmd.Flags().Float64("threshold", 5, "minimum period return percent")
	deliveryCmd.Flags().Float64("min", 60, "minimum average delivery percent")
}

// --- Constituents / Market Cap Commands ---

var constituentsCmd = &cobra.Command{
	Use:   "constituents [index]",
	Short: "List the members of a named index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		res := a.query.IndexConstituents(args[0])
		if res.Error != "" {
			return fmt.Errorf("%s", res.Error)
		}
		for _, sym := range res.Symbols {
			fmt.Println(sym)
		}
		fmt.Printf("\n%d constituents\n", res.Count)
		return nil
	},
}

var marketcapCmd = &cobra.Command{
	Use:   "marketcap [symbol]",
	Short: "Market-cap tier of a symbol",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		res := a.query.MarketCap(args[0])
		if res.Error != "" {
			return fmt.Errorf("%s", res.Error)
		}
		fmt.Printf("%s: %s CAP\n", res.Symbol, res.Category)
		return nil
	},
}

// --- Ask Command ---

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a market question in plain words",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		question := strings.Join(args, " ")

		rt := router.New(a.classifier.ValidSectors(), a.buildResolver())
		inv, err := rt.Route(question)
		if err != nil {
			return err
		}

		out, err := a.registry.Execute(cmd.Context(), inv.Tool, inv.Args)
		if err != nil {
			return err
		}

		sessionID, _ := cmd.Flags().GetString("session")
		if sessionID != "" {
			if logDB, err := session.Open(cfg.Session.DBPath); err == nil {
				defer logDB.Close()
				if err := logDB.Record(sessionID, question, inv.Tool, string(inv.Args), out); err != nil {
					log.Printf("[WARN] session record failed: %v", err)
				}
			}
		}

		fmt.Printf("→ %s\n", inv.Tool)
		var pretty map[string]any
		if err := json.Unmarshal([]byte(out), &pretty); err == nil {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(pretty)
		}
		fmt.Println(out)
		return nil
	},
}

func init() {
	askCmd.Flags().String("session", "", "session id for conversation logging")
}

// --- News Command ---

var newsCmd = &cobra.Command{
	Use:   "news [symbol]",
	Short: "Latest market headlines, optionally filtered by symbol",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.News.Enabled {
			return fmt.Errorf("news is disabled in config")
		}
		var sources []news.Source
		for i, feed := range cfg.News.Feeds {
			sources = append(sources, news.Source{Name: fmt.Sprintf("feed-%d", i+1), RSSURL: feed})
		}
		scout := news.NewScout(sources)

		ctx := context.Background()
		limit, _ := cmd.Flags().GetInt("limit")

		var (
			items []models.NewsArticle
			err   error
		)
		if len(args) > 0 {
			items, err = scout.StockNews(ctx, args[0], limit)
		} else {
			items, err = scout.MarketNews(ctx, limit)
		}
		if err != nil {
			return err
		}
		printNews(items)
		return nil
	},
}

func printNews(items []models.NewsArticle) {
	for _, a := range items {
		fmt.Printf("📰 %s\n", a.Title)
		fmt.Printf("   %s | %s\n", a.Source, a.PublishedAt.In(utils.IST).Format("02-Jan-2006 15:04"))
		if a.Summary != "" {
			fmt.Printf("   %s\n", a.Summary)
		}
		fmt.Printf("   %s\n\n", a.URL)
	}
}

func init() {
	newsCmd.Flags().Int("limit", 15, "maximum number of headlines")
}

// --- Serve Command ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}

		var sessions *session.Log
		if cfg.Session.DBPath != "" {
			sessions, err = session.Open(cfg.Session.DBPath)
			if err != nil {
				log.Printf("[WARN] session log unavailable: %v", err)
			} else {
				defer sessions.Close()
			}
		}

		rt := router.New(a.classifier.ValidSectors(), a.buildResolver())
		srv := api.NewServer(cfg, a.registry, rt, a.store, sessions)

		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		fmt.Printf("🌐 BhavLens API on %s\n", addr)
		return srv.ListenAndServe(addr)
	},
}
