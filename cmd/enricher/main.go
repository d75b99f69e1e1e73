package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Matt-Retrogamer/retro-princing-scraper/cache"
	"github.com/Matt-Retrogamer/retro-princing-scraper/catalog"
	"github.com/Matt-Retrogamer/retro-princing-scraper/config"
	"github.com/Matt-Retrogamer/retro-princing-scraper/csvio"
	"github.com/Matt-Retrogamer/retro-princing-scraper/ebay"
	"github.com/Matt-Retrogamer/retro-princing-scraper/fetch"
	"github.com/Matt-Retrogamer/retro-princing-scraper/fx"
	"github.com/Matt-Retrogamer/retro-princing-scraper/metrics"
	"github.com/Matt-Retrogamer/retro-princing-scraper/models"
	"github.com/Matt-Retrogamer/retro-princing-scraper/pricing"
	"github.com/Matt-Retrogamer/retro-princing-scraper/ratelimit"
)

func main() {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	defaultCfg := config.DefaultConfig()
	appIDDefault := ""
	if value, ok := config.EnvString("EBAY_APP_ID"); ok {
		appIDDefault = value
	}
	cachePathDefault := defaultCfg.CachePath
	if value, ok := config.EnvString("ENRICHER_CACHE"); ok {
		cachePathDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("ENRICHER_METRICS_ADDR"); ok {
		metricsDefault = value
	}
	weightEbayDefault := defaultCfg.WeightEbay
	if value, ok, err := config.EnvFloat("ENRICHER_WEIGHT_EBAY"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid ENRICHER_WEIGHT_EBAY: %v\n", err)
		os.Exit(1)
	} else if ok {
		weightEbayDefault = value
	}
	weightCatalogDefault := defaultCfg.WeightCatalog
	if value, ok, err := config.EnvFloat("ENRICHER_WEIGHT_RGP"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid ENRICHER_WEIGHT_RGP: %v\n", err)
		os.Exit(1)
	} else if ok {
		weightCatalogDefault = value
	}

	inputFile := flag.String("input", "", "Input CSV file (required unless using cache flags)")
	outputFile := flag.String("output", "", "Output CSV file (defaults to <input>_enriched.csv)")
	csvLanguage := flag.String("csv-language", defaultCfg.CSVLanguage, "CSV header language: auto, en, or fr")
	limit := flag.Int("limit", 0, "Process only the first N items (0 = all)")
	onlySource := flag.String("only-source", defaultCfg.OnlySource, "Price source: ebay, rgp, or both")
	weightEbay := flag.Float64("weight-ebay", weightEbayDefault, "Weight of the eBay price in the final estimate")
	weightCatalog := flag.Float64("weight-rgp", weightCatalogDefault, "Weight of the RetroGamePrices price in the final estimate")
	ebayAppID := flag.String("ebay-app-id", appIDDefault, "eBay Finding API application ID")
	strictRegion := flag.Bool("strict-region", defaultCfg.StrictRegion, "Reject listings that do not match the item region")
	allowLots := flag.Bool("allow-lots", false, "Accept lot/bundle listings")
	allowBoxOnly := flag.Bool("allow-box-only", false, "Accept box/manual-only listings")
	includeShipping := flag.Bool("include-shipping", false, "Include shipping cost in listing prices")
	maxResults := flag.Int("max-results", defaultCfg.MaxResults, "Target number of sold listings per item")
	language := flag.String("language", "", "Preferred game language (en, fr, de, it, es)")
	strictLanguage := flag.Bool("strict-language", false, "Exclude listings in other languages")
	ebayDelayMs := flag.Int("ebay-delay", int(defaultCfg.EbayDelay.Milliseconds()), "Delay between eBay requests (milliseconds)")
	catalogDelayMs := flag.Int("rgp-delay", int(defaultCfg.CatalogDelay.Milliseconds()), "Delay between catalog requests (milliseconds)")
	timeoutSec := flag.Int("timeout", int(defaultCfg.Timeout.Seconds()), "HTTP request timeout (seconds)")
	maxRetries := flag.Int("retries", defaultCfg.MaxRetries, "Retry attempts per request")
	userAgent := flag.String("user-agent", defaultCfg.UserAgent, "User-Agent header for catalog requests")
	includeNonGame := flag.Bool("include-non-game", false, "Also price accessory-only rows")
	cachePath := flag.String("cache", cachePathDefault, "SQLite cache path")
	cacheStats := flag.Bool("cache-stats", false, "Print cache statistics and exit")
	clearCache := flag.String("clear-cache", "", "Clear a cache namespace (ebay, rgp, fx, or all) and exit")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := config.DefaultConfig()
	cfg.InputFile = *inputFile
	cfg.OutputFile = *outputFile
	cfg.CSVLanguage = *csvLanguage
	cfg.Limit = *limit
	cfg.OnlySource = *onlySource
	cfg.WeightEbay = *weightEbay
	cfg.WeightCatalog = *weightCatalog
	cfg.EbayAppID = *ebayAppID
	cfg.StrictRegion = *strictRegion
	cfg.AllowLots = *allowLots
	cfg.AllowBoxOnly = *allowBoxOnly
	cfg.IncludeShipping = *includeShipping
	cfg.MaxResults = *maxResults
	cfg.PreferredLanguage = models.ParseLanguage(*language)
	cfg.StrictLanguage = *strictLanguage
	cfg.EbayDelay = time.Duration(*ebayDelayMs) * time.Millisecond
	cfg.CatalogDelay = time.Duration(*catalogDelayMs) * time.Millisecond
	cfg.Timeout = time.Duration(*timeoutSec) * time.Second
	cfg.MaxRetries = *maxRetries
	cfg.UserAgent = *userAgent
	cfg.IncludeNonGame = *includeNonGame
	cfg.CachePath = *cachePath
	cfg.MetricsAddr = *metricsAddr
	cfg.Verbose = *verbose

	store, err := cache.Open(cfg.CachePath)
	if err != nil {
		slog.Error("opening cache", slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close()

	if *cacheStats {
		printCacheStats(store)
		return
	}
	if *clearCache != "" {
		runClearCache(store, *clearCache)
		return
	}

	if cfg.InputFile == "" {
		fmt.Fprintln(os.Stderr, "missing -input file")
		flag.Usage()
		os.Exit(1)
	}
	if cfg.OutputFile == "" {
		cfg.OutputFile = deriveOutputPath(cfg.InputFile)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	file, err := csvio.Read(cfg.InputFile, models.RegionPAL, csvio.Language(cfg.CSVLanguage))
	if err != nil {
		slog.Error("reading input", slog.Any("error", err))
		os.Exit(1)
	}
	items := file.Items
	if cfg.Limit > 0 && cfg.Limit < len(items) {
		items = items[:cfg.Limit]
	}

	slog.Info("starting enrichment",
		slog.String("input", cfg.InputFile),
		slog.Int("items", len(items)),
		slog.String("source", cfg.OnlySource),
		slog.String("csv_language", string(file.Language)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, finishing current item")
	}()

	m := metrics.New()
	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	conv := fx.NewConverter(store)
	retryPolicy := fetch.Policy{
		MaxAttempts: cfg.MaxRetries,
		Backoff:     cfg.RetryBackoff,
		BackoffMax:  cfg.RetryBackoffMax,
		Retryable:   fetch.Transient,
	}

	var auction pricing.AuctionSource
	if cfg.UsesEbay() {
		ebayPolicy := retryPolicy
		ebayPolicy.Retryable = nil // retry any failure against the API
		auction = ebay.NewClient(cfg.EbayAppID, store, conv,
			ratelimit.New(cfg.EbayDelay), m, cfg.Timeout, ebayPolicy)
	}
	var catalogSource pricing.CatalogSource
	if cfg.UsesCatalog() {
		catalogSource = catalog.NewClient(store,
			ratelimit.New(cfg.CatalogDelay), m, cfg.UserAgent, cfg.Timeout, retryPolicy)
	}

	engine := pricing.NewEngine(cfg, auction, catalogSource, conv, m)

	startTime := time.Now()
	results, err := engine.EnrichBatch(ctx, items, func(done, total int, result *models.EnrichmentResult) {
		status := "ok"
		if !result.Success {
			status = "failed"
		}
		price := "N/A"
		if result.FinalEstimate != nil {
			price = result.FinalEstimate.StringFixed(2) + " EUR"
		}
		fmt.Printf("  [%d/%d] %-6s %-40.40s %s\n", done, total, status, result.Item.Title, price)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("enrichment failed", slog.Any("error", err))
		os.Exit(1)
	}

	pricing.ApplyEnrichment(file.Items, results)
	if err := file.Write(cfg.OutputFile); err != nil {
		slog.Error("writing output", slog.Any("error", err))
		os.Exit(1)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(results, time.Since(startTime), cfg.OutputFile)
}

func deriveOutputPath(input string) string {
	base := input
	if ext := ".csv"; len(base) > len(ext) && base[len(base)-len(ext):] == ext {
		base = base[:len(base)-len(ext)]
	}
	return base + "_enriched.csv"
}

func printSummary(results []*models.EnrichmentResult, duration time.Duration, outputFile string) {
	enriched, skipped, failed := 0, 0, 0
	for _, r := range results {
		switch {
		case r.Success:
			enriched++
		case r.EbayResult == nil && r.CatalogResult == nil:
			skipped++
		default:
			failed++
		}
	}

	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Enrichment complete")
	fmt.Printf("  Items:         %d\n", len(results))
	fmt.Printf("  Enriched:      %d\n", enriched)
	fmt.Printf("  Skipped:       %d\n", skipped)
	fmt.Printf("  Failed:        %d\n", failed)
	fmt.Printf("  Duration:      %v\n", duration)
	fmt.Printf("  Output file:   %s\n", outputFile)
	fmt.Println(separator)
}

func printCacheStats(store *cache.Cache) {
	stats, expired, err := store.Stats()
	if err != nil {
		slog.Error("reading cache stats", slog.Any("error", err))
		os.Exit(1)
	}

	namespaces := make([]string, 0, len(stats))
	for ns := range stats {
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)

	fmt.Println("Cache statistics:")
	for _, ns := range namespaces {
		s := stats[ns]
		fmt.Printf("  %-8s entries=%d hits=%d\n", ns, s.Entries, s.Hits)
	}
	fmt.Printf("  expired entries pending cleanup: %d\n", expired)
}

func runClearCache(store *cache.Cache, target string) {
	var (
		removed int64
		err     error
	)
	switch target {
	case "all":
		removed, err = store.ClearAll()
	case cache.NamespaceEbay, cache.NamespaceCatalog, cache.NamespaceFX:
		removed, err = store.ClearNamespace(target)
	default:
		fmt.Fprintf(os.Stderr, "unknown cache namespace %q (want ebay, rgp, fx, or all)\n", target)
		os.Exit(1)
	}
	if err != nil {
		slog.Error("clearing cache", slog.Any("error", err))
		os.Exit(1)
	}
	fmt.Printf("removed %d cache entries\n", removed)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stderr) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
