package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/masahif/sitescope/internal/config"
	"github.com/masahif/sitescope/internal/crawler"
	"github.com/masahif/sitescope/internal/logging"
	"github.com/masahif/sitescope/internal/storage"
)

var crawlBindings = []flagBinding{
	{"limit", "limit"},
	{"concurrency", "concurrency"},
	{"request_delay", "delay"},
	{"request_timeout", "timeout"},
	{"user_agent", "user-agent"},
	{"respect_robots", "respect-robots"},
	{"output", "output"},
	{"database_path", "database"},
	{"metrics_addr", "metrics-addr"},
	{"retry.max_attempts", "retries"},
	{"log.level", "log-level"},
	{"log.format", "log-format"},
}

func addCrawlFlags(flags *pflag.FlagSet) {
	defaults := config.DefaultConfig()

	flags.Bool("show-config", false, "Display current configuration in YAML format and exit")

	flags.IntP("limit", "l", defaults.Limit, "Stop after N pages")
	flags.IntP("concurrency", "c", defaults.Concurrency, "Number of concurrent workers")
	flags.DurationP("delay", "r", defaults.RequestDelay, "Minimum delay between requests to one host (0 disables)")
	flags.DurationP("timeout", "t", defaults.RequestTimeout, "HTTP request timeout")
	flags.StringP("user-agent", "u", defaults.UserAgent, "HTTP User-Agent header")
	flags.Bool("respect-robots", defaults.RespectRobots, "Skip URLs disallowed by robots.txt")
	flags.Int("retries", defaults.Retry.MaxAttempts, "Total fetch attempts per URL")

	flags.StringP("output", "o", defaults.OutputPath, "Path of the JSON results document")
	flags.StringP("database", "d", "", "Also store the run in this SQLite database")
	flags.String("metrics-addr", "", "Expose Prometheus metrics on this address while crawling")

	flags.String("log-level", defaults.Log.Level, "Log level: debug, info, warn, error")
	flags.String("log-format", defaults.Log.Format, "Log format: json or text")
}

func (a *app) newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <seed-url>",
		Short: "Crawl a website from a seed URL",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCrawlCommand(cmd, args)
		},
	}
	addCrawlFlags(cmd.Flags())
	return cmd
}

func (a *app) runCrawlCommand(cmd *cobra.Command, args []string) error {
	if err := a.bindFlags(cmd.Flags(), crawlBindings); err != nil {
		return err
	}

	s, err := a.loadSettings()
	if err != nil {
		return err
	}
	cfg := &s.CrawlConfig
	if len(args) > 0 {
		cfg.SeedURL = args[0]
	}

	if showConfig, _ := cmd.Flags().GetBool("show-config"); showConfig {
		return showCurrentConfig(cmd.OutOrStdout(), cfg, cfg.Validate())
	}

	if cfg.SeedURL == "" {
		return errors.New("no seed URL provided\nUsage: sitescope crawl <seed-url>")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return runCrawl(cmd.Context(), cfg, cmd.OutOrStdout())
}

// runCrawl crawls cfg.SeedURL and persists the result. A cancelled context
// stops the crawl early; whatever was recorded is still saved.
func runCrawl(ctx context.Context, cfg *config.CrawlConfig, out io.Writer) error {
	closer, err := logging.SetDefault(logging.FromSettings(cfg.Log))
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer func() { _ = closer.Close() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := crawler.NewMetrics(reg)

	if cfg.MetricsAddr != "" {
		stopMetrics := serveMetrics(cfg.MetricsAddr, reg)
		defer stopMetrics()
	}

	fmt.Fprintf(out, "Starting crawler with configuration:\n")
	fmt.Fprintf(out, "  Seed URL: %s\n", cfg.SeedURL)
	fmt.Fprintf(out, "  Limit: %d\n", cfg.Limit)
	fmt.Fprintf(out, "  Concurrency: %d\n", cfg.Concurrency)
	fmt.Fprintf(out, "  Request Delay: %v\n", cfg.RequestDelay)
	fmt.Fprintf(out, "  Respect Robots: %t\n", cfg.RespectRobots)
	fmt.Fprintf(out, "  Output: %s\n", cfg.OutputPath)
	if cfg.DatabasePath != "" {
		fmt.Fprintf(out, "  Database: %s\n", cfg.DatabasePath)
	}

	c, err := crawler.NewCrawler(cfg, crawler.WithMetrics(metrics))
	if err != nil {
		return fmt.Errorf("failed to initialize crawler: %w", err)
	}
	defer c.Close()

	result, err := c.Crawl(ctx, cfg.SeedURL, cfg.Limit)
	if err != nil {
		return fmt.Errorf("crawl failed: %w", err)
	}

	if err := storage.SaveJSON(cfg.OutputPath, result); err != nil {
		return fmt.Errorf("failed to save results: %w", err)
	}
	slog.Info("Results saved", "path", cfg.OutputPath, "urls", len(result.Pages))

	if cfg.DatabasePath != "" {
		if err := saveToDatabase(context.WithoutCancel(ctx), cfg.DatabasePath, result); err != nil {
			return err
		}
	}

	full, failed, orphans := result.Counts()
	fmt.Fprintf(out, "\nCrawl %s finished in %s\n", result.RunID, result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(out, "  Pages: %d (full %d, errors %d)\n", len(result.Pages), full, failed)
	fmt.Fprintf(out, "  Orphans: %d\n", orphans)
	fmt.Fprintf(out, "  Links: %d\n", len(result.Edges))
	if ctx.Err() != nil {
		fmt.Fprintf(out, "  Interrupted: partial results saved\n")
	}
	return nil
}

func saveToDatabase(ctx context.Context, path string, result *crawler.Result) error {
	store, err := storage.NewSQLiteStorage(path)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.SaveResult(ctx, result); err != nil {
		return fmt.Errorf("failed to store run: %w", err)
	}
	slog.Info("Run stored", "path", path, "run_id", result.RunID)
	return nil
}

// serveMetrics exposes reg on addr until the returned function is called
func serveMetrics(addr string, reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		slog.Info("Serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics listener failed", "addr", addr, "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
