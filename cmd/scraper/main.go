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
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ayakut16/yokatlas-scraper/browser"
	"github.com/ayakut16/yokatlas-scraper/config"
	"github.com/ayakut16/yokatlas-scraper/models"
	"github.com/ayakut16/yokatlas-scraper/scraper"
)

func main() {
	defaultCfg := config.DefaultConfig()

	scoreTypeDefault := defaultCfg.ScoreType
	if value, ok := config.EnvString("SCRAPER_SCORE_TYPE"); ok {
		scoreTypeDefault = value
	}
	outputDefault := ""
	if value, ok := config.EnvString("SCRAPER_OUTPUT"); ok {
		outputDefault = value
	}
	metricsDefault := ""
	if value, ok := config.EnvString("SCRAPER_METRICS_ADDR"); ok {
		metricsDefault = value
	}
	headlessDefault := false
	if value, ok, err := config.EnvBool("SCRAPER_HEADLESS"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid SCRAPER_HEADLESS: %v\n", err)
		os.Exit(1)
	} else if ok {
		headlessDefault = value
	}

	scoreType := flag.String("score-type", scoreTypeDefault, "Score type to scrape (say, ea, soz, dil)")
	allTypes := flag.Bool("all-types", false, "Scrape all score types sequentially")
	output := flag.String("output", outputDefault, "Output JSON file (default universities_data_<score-type>.json)")
	headless := flag.Bool("headless", headlessDefault, "Run the browser in headless mode")
	pageSize := flag.Int("page-size", defaultCfg.PageSize, "Rows per result page")
	navTimeoutSec := flag.Int("nav-timeout", int(defaultCfg.NavTimeout/time.Second), "Per-step navigation timeout (seconds)")
	maxRetries := flag.Int("max-retries", defaultCfg.MaxRetries, "Retry attempts per page before aborting the run")
	retryDelaySec := flag.Int("retry-delay", int(defaultCfg.RetryDelay/time.Second), "Delay between page retries (seconds)")
	pageDelaySec := flag.Int("page-delay", int(defaultCfg.PageDelay/time.Second), "Delay between pages (seconds)")
	runDelaySec := flag.Int("run-delay", int(defaultCfg.RunDelay/time.Second), "Delay between score-type runs (seconds)")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := defaultCfg
	cfg.ScoreType = *scoreType
	cfg.AllTypes = *allTypes
	cfg.OutputFile = *output
	cfg.Headless = *headless
	cfg.PageSize = *pageSize
	cfg.NavTimeout = time.Duration(*navTimeoutSec) * time.Second
	cfg.MaxRetries = *maxRetries
	cfg.RetryDelay = time.Duration(*retryDelaySec) * time.Second
	cfg.PageDelay = time.Duration(*pageDelaySec) * time.Second
	cfg.RunDelay = time.Duration(*runDelaySec) * time.Second
	cfg.MetricsAddr = *metricsAddr
	cfg.Verbose = *verbose

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, finishing the current page")
	}()

	s := scraper.NewScraper(cfg, func(ctx context.Context) (scraper.Session, error) {
		return browser.New(ctx, browser.Options{
			Headless:  cfg.Headless,
			UserAgent: cfg.UserAgent,
			Timeout:   cfg.NavTimeout,
		})
	})

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	var results []*models.ScrapeResult
	var runErr error
	if cfg.AllTypes {
		results, runErr = s.RunAll(ctx)
	} else {
		var result *models.ScrapeResult
		result, runErr = s.Run(ctx, cfg.ScoreType)
		results = append(results, result)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	for _, result := range results {
		printSummary(cfg, result)
	}

	if runErr != nil {
		slog.Error("scraping failed", slog.Any("error", runErr))
		os.Exit(1)
	}
}

func printSummary(cfg *config.Config, result *models.ScrapeResult) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Printf("Scrape summary for %s\n", config.ScoreTypeName(result.ScoreType))
	fmt.Printf("  Pages:         %d\n", result.Pages)
	fmt.Printf("  New records:   %d\n", result.NewRecords)
	fmt.Printf("  Duplicates:    %d\n", result.Duplicates)
	fmt.Printf("  Malformed:     %d\n", result.MalformedRows)
	fmt.Printf("  Retries:       %d\n", result.RetryCount)
	fmt.Printf("  Total records: %d\n", result.TotalRecords)
	fmt.Printf("  Duration:      %v\n", result.EndTime.Sub(result.StartTime).Round(time.Second))
	fmt.Printf("  Output file:   %s\n", cfg.OutputPath(result.ScoreType))
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
