package cmd

import (
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/masahif/sitescope/internal/config"
	"github.com/masahif/sitescope/internal/logging"
	"github.com/masahif/sitescope/internal/server"
	"github.com/masahif/sitescope/internal/summarize"
)

var serveBindings = []flagBinding{
	{"serve.addr", "addr"},
	{"serve.input", "input"},
	{"serve.database_path", "database"},
	{"llm.model", "model"},
	{"log.level", "log-level"},
	{"log.format", "log-format"},
}

func (a *app) newServeCmd() *cobra.Command {
	defaults := config.DefaultServeConfig()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve crawl results and page analysis over HTTP",
		Long: `serve loads the records of a crawl (the JSON document, or the newest run of
a SQLite database) and exposes them to an analysis front end:

  GET  /api/urls      list crawled URLs
  POST /api/analyze   {"url": ...} review one page with Claude
  GET  /health
  GET  /metrics`,
		Args: cobra.NoArgs,
		RunE: a.runServeCommand,
	}

	flags := cmd.Flags()
	flags.Bool("show-config", false, "Display current configuration in YAML format and exit")
	flags.String("addr", defaults.Addr, "Listen address")
	flags.StringP("input", "i", defaults.InputPath, "JSON results document to serve")
	flags.StringP("database", "d", "", "Serve the newest run of this SQLite database instead")
	flags.String("model", defaults.LLM.Model, "Anthropic model used for analysis")
	flags.String("log-level", defaults.Log.Level, "Log level: debug, info, warn, error")
	flags.String("log-format", defaults.Log.Format, "Log format: json or text")

	return cmd
}

func (a *app) runServeCommand(cmd *cobra.Command, _ []string) error {
	if err := a.bindFlags(cmd.Flags(), serveBindings); err != nil {
		return err
	}

	s, err := a.loadSettings()
	if err != nil {
		return err
	}
	cfg := &s.Serve
	cfg.LLM = s.LLM
	cfg.Log = s.Log

	if showConfig, _ := cmd.Flags().GetBool("show-config"); showConfig {
		return showCurrentConfig(cmd.OutOrStdout(), cfg, cfg.Validate())
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	closer, err := logging.SetDefault(logging.FromSettings(cfg.Log))
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer func() { _ = closer.Close() }()

	if logging.ParseLevel(cfg.Log.Level) > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	summarize.LoadEnv()
	summarizer, err := summarize.NewAnthropicSummarizer(cfg.LLM)
	if err != nil {
		return fmt.Errorf("failed to initialize summarizer: %w (set %s or llm.api_key)", err, cfg.LLM.APIKeyEnv)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	records := server.LoadRecords(cmd.Context(), cfg.InputPath, cfg.DatabasePath)
	srv := server.New(records, summarizer, server.WithRegistry(reg))
	return srv.Run(cmd.Context(), cfg.Addr)
}
