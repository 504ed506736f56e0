// Package cmd provides the command-line interface for sitescope.
// It handles command parsing, configuration loading, and running the crawl
// and serve commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/masahif/sitescope/internal/config"
)

const (
	envPrefix         = "SITESCOPE"
	defaultConfigName = "sitescope"
)

var (
	version   string
	buildTime string
)

// rootCmd is the command tree used by Execute
var rootCmd = newRootCmd()

// Execute runs the CLI. SIGINT and SIGTERM cancel the command's context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// SetVersionInfo sets version information for the CLI
func SetVersionInfo(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
}

// app carries the state shared by one command tree
type app struct {
	v       *viper.Viper
	cfgFile string
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "sitescope [seed-url]",
		Short: "Crawl a website and audit every page",
		Long: `sitescope crawls one website breadth-first from a seed URL and records,
for every page it visits, SEO, content, accessibility, security and link
graph data. The results can be served to an analysis front end.

Called with a seed URL, the root command behaves like "sitescope crawl".`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			showConfig, _ := cmd.Flags().GetBool("show-config")
			if len(args) == 0 && !showConfig {
				return cmd.Help()
			}
			return a.runCrawlCommand(cmd, args)
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ./sitescope.yml)")
	addCrawlFlags(root.Flags())

	root.AddCommand(a.newCrawlCmd(), a.newServeCmd())
	return root
}

// initConfig reads in config file and ENV variables if set.
func (a *app) initConfig() error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.AddConfigPath(".")
		a.v.SetConfigType("yaml")
		a.v.SetConfigName(defaultConfigName)
	}

	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	a.v.AutomaticEnv()
	setDefaults(a.v)

	if err := a.v.ReadInConfig(); err != nil {
		// An explicitly requested file must exist
		if a.cfgFile != "" {
			return fmt.Errorf("failed to read config file %s: %w", a.cfgFile, err)
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		return nil
	}
	fmt.Fprintf(os.Stderr, "Using config file: %s\n", a.v.ConfigFileUsed())
	return nil
}

// setDefaults registers every key so environment variables apply to it
func setDefaults(v *viper.Viper) {
	crawl := config.DefaultConfig()
	v.SetDefault("seed_url", crawl.SeedURL)
	v.SetDefault("limit", crawl.Limit)
	v.SetDefault("concurrency", crawl.Concurrency)
	v.SetDefault("request_delay", crawl.RequestDelay)
	v.SetDefault("request_timeout", crawl.RequestTimeout)
	v.SetDefault("preflight_timeout", crawl.PreflightTimeout)
	v.SetDefault("user_agent", generateUserAgent())
	v.SetDefault("respect_robots", crawl.RespectRobots)
	v.SetDefault("max_body_bytes", crawl.MaxBodyBytes)
	v.SetDefault("retry.max_attempts", crawl.Retry.MaxAttempts)
	v.SetDefault("retry.base_delay", crawl.Retry.BaseDelay)
	v.SetDefault("retry.max_delay", crawl.Retry.MaxDelay)
	v.SetDefault("output", crawl.OutputPath)
	v.SetDefault("database_path", crawl.DatabasePath)
	v.SetDefault("metrics_addr", crawl.MetricsAddr)

	v.SetDefault("log.level", crawl.Log.Level)
	v.SetDefault("log.format", crawl.Log.Format)
	v.SetDefault("log.file", crawl.Log.File)
	v.SetDefault("log.max_size_mb", crawl.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", crawl.Log.MaxBackups)
	v.SetDefault("log.console", crawl.Log.Console)

	serve := config.DefaultServeConfig()
	v.SetDefault("serve.addr", serve.Addr)
	v.SetDefault("serve.input", serve.InputPath)
	v.SetDefault("serve.database_path", serve.DatabasePath)

	v.SetDefault("llm.api_key", serve.LLM.APIKey)
	v.SetDefault("llm.api_key_env", serve.LLM.APIKeyEnv)
	v.SetDefault("llm.api_url", serve.LLM.APIURL)
	v.SetDefault("llm.model", serve.LLM.Model)
	v.SetDefault("llm.max_tokens", serve.LLM.MaxTokens)
	v.SetDefault("llm.temperature", serve.LLM.Temperature)
	v.SetDefault("llm.timeout", serve.LLM.Timeout)
}

// settings mirrors the whole configuration file
type settings struct {
	config.CrawlConfig `mapstructure:",squash"`

	Serve config.ServeConfig `mapstructure:"serve"`
	LLM   config.LLMConfig   `mapstructure:"llm"`
}

func (a *app) loadSettings() (*settings, error) {
	s := &settings{}
	if err := a.v.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return s, nil
}

type flagBinding struct {
	viperKey string
	flagName string
}

// bindFlags binds the running command's flags. Binding happens per run
// because the root and crawl commands define the same flags.
func (a *app) bindFlags(flags *pflag.FlagSet, bindings []flagBinding) error {
	for _, b := range bindings {
		flag := flags.Lookup(b.flagName)
		if flag == nil {
			continue
		}
		if err := a.v.BindPFlag(b.viperKey, flag); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", b.flagName, err)
		}
	}
	return nil
}

func generateUserAgent() string {
	if version != "" && version != "dev" {
		return fmt.Sprintf("sitescope/%s", version)
	}
	return config.DefaultUserAgent
}
