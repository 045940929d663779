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
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vinskraper/config"
	"vinskraper/models"
	"vinskraper/pipeline"
	"vinskraper/scraper"
	"vinskraper/store"
)

const usage = `Usage: vinskraper [flags] [command]

Commands:
  scrape   Fetch every category and reconcile the catalog (default)
  derive   Recompute derived price metrics for all stored products
  export   Dump the catalog to a JSON Lines backup file
`

func main() {
	defaultCfg := config.DefaultConfig()

	mongoDefault := defaultCfg.MongoURI
	if value, ok := config.EnvString("MONGO_URI"); ok {
		mongoDefault = value
	}
	databaseDefault := defaultCfg.MongoDatabase
	if value, ok := config.EnvString("MONGO_DATABASE"); ok {
		databaseDefault = value
	}
	workersDefault := defaultCfg.Workers
	if value, ok, err := config.EnvInt("VINSKRAPER_WORKERS"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid VINSKRAPER_WORKERS: %v\n", err)
		os.Exit(1)
	} else if ok {
		workersDefault = value
	}
	pagesDefault := defaultCfg.MaxPages
	if value, ok, err := config.EnvInt("VINSKRAPER_PAGES"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid VINSKRAPER_PAGES: %v\n", err)
		os.Exit(1)
	} else if ok {
		pagesDefault = value
	}
	exportDefault := defaultCfg.ExportFile
	if value, ok := config.EnvString("VINSKRAPER_EXPORT"); ok {
		exportDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("VINSKRAPER_METRICS_ADDR"); ok {
		metricsDefault = value
	}

	mongoURI := flag.String("mongo-uri", mongoDefault, "MongoDB connection URI")
	database := flag.String("database", databaseDefault, "MongoDB database name")
	workers := flag.Int("workers", workersDefault, "Number of concurrent category workers")
	maxPages := flag.Int("pages", pagesDefault, "Maximum search pages per category")
	fetchRetries := flag.Int("fetch-retries", defaultCfg.FetchRetries, "Fetch attempts per page before skipping it")
	retryBudget := flag.Int("retry-budget", defaultCfg.WriteRetryBudget, "Shared category requeue budget per run")
	timeoutMs := flag.Int("timeout", int(defaultCfg.PageTimeout/time.Millisecond), "Per-request timeout (milliseconds)")
	proxyListURL := flag.String("proxy-list-url", defaultCfg.ProxyListURL, "Proxy list service URL")
	categoriesFlag := flag.String("categories", "", "Comma-separated category subset (default: all)")
	exportFile := flag.String("export-file", exportDefault, "JSON Lines backup file path")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage+"\nFlags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := defaultCfg
	cfg.MongoURI = *mongoURI
	cfg.MongoDatabase = *database
	cfg.Workers = *workers
	cfg.MaxPages = *maxPages
	cfg.FetchRetries = *fetchRetries
	cfg.WriteRetryBudget = *retryBudget
	cfg.PageTimeout = time.Duration(*timeoutMs) * time.Millisecond
	cfg.ProxyListURL = *proxyListURL
	cfg.ExportFile = *exportFile
	cfg.MetricsAddr = *metricsAddr
	cfg.Verbose = *verbose
	if addrs, ok := config.EnvList("PROXY_ADDRS"); ok {
		cfg.ProxyAddrs = addrs
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	command := "scrape"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for in-flight work to finish")
	}()

	st, err := store.Open(ctx, cfg)
	if err != nil {
		slog.Error("connecting to store", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.Close(closeCtx); err != nil {
			slog.Error("close store", slog.Any("error", err))
		}
	}()

	switch command {
	case "scrape":
		err = runScrape(ctx, cfg, st, *categoriesFlag)
	case "derive":
		err = runDerive(ctx, st)
	case "export":
		err = runExport(ctx, st, cfg.ExportFile)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n%s", command, usage)
		os.Exit(2)
	}
	if err != nil {
		slog.Error("command failed", slog.String("command", command), slog.Any("error", err))
		os.Exit(1)
	}
}

func runScrape(ctx context.Context, cfg *config.Config, st store.Store, categoriesFlag string) error {
	categories, err := selectCategories(categoriesFlag)
	if err != nil {
		return err
	}

	metrics := scraper.NewMetrics()
	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	pool := scraper.NewProxyPool(cfg)
	pool.WithMetrics(metrics)
	orchestrator := pipeline.NewOrchestrator(cfg, st, metrics, func() scraper.PageFetcher {
		return scraper.NewFetcher(cfg, pool, metrics)
	})

	slog.Info("starting scrape",
		slog.Int("categories", len(categories)),
		slog.Int("workers", cfg.Workers),
		slog.Int("max_pages", cfg.MaxPages),
	)

	startTime := time.Now()
	result, err := orchestrator.Run(ctx, categories)
	if err != nil {
		return err
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(result, time.Since(startTime))
	return nil
}

func runDerive(ctx context.Context, st store.Store) error {
	summary, err := store.NewDeriver(st).DeriveAll(ctx)
	if err != nil {
		return err
	}
	slog.Info("derived metrics recomputed",
		slog.Int64("matched", summary.Matched),
		slog.Int64("inserted", summary.Inserted),
	)
	return nil
}

func runExport(ctx context.Context, st store.Store, filename string) error {
	count, err := store.Export(ctx, st, filename)
	if err != nil {
		return err
	}
	slog.Info("catalog exported",
		slog.Int("documents", count),
		slog.String("file", filename),
	)
	return nil
}

// selectCategories resolves the -categories flag against the known
// category set, defaulting to all of them.
func selectCategories(raw string) ([]models.Category, error) {
	all := models.AllCategories()
	if strings.TrimSpace(raw) == "" {
		return all, nil
	}

	known := make(map[string]models.Category, len(all))
	for _, category := range all {
		known[category.String()] = category
	}

	var selected []models.Category
	for _, part := range strings.Split(raw, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		category, ok := known[name]
		if !ok {
			return nil, fmt.Errorf("unknown category: %s", name)
		}
		selected = append(selected, category)
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("no categories selected")
	}
	return selected, nil
}

func printSummary(result *models.RunResult, duration time.Duration) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Scrape complete")
	fmt.Printf("  Categories:    %d\n", result.Categories)
	fmt.Printf("  Products:      %d\n", result.Products)
	fmt.Printf("  Inserted:      %d\n", result.Writes.Inserted)
	fmt.Printf("  Updated:       %d\n", result.Writes.Matched)
	fmt.Printf("  Skipped pages: %d\n", result.SkippedPages)
	fmt.Printf("  Archived:      %d\n", result.Archived)
	if len(result.FailedCategories) > 0 {
		names := make([]string, 0, len(result.FailedCategories))
		for _, category := range result.FailedCategories {
			names = append(names, category.String())
		}
		fmt.Printf("  Failed:        %s\n", strings.Join(names, ", "))
	}
	fmt.Printf("  Duration:      %v\n", duration)
	fmt.Println(separator)
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
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
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
