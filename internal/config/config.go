// Package config provides configuration management for the crawler and the
// analysis server. It defines configuration structures and default values.
package config

import (
	"os"
	"time"
)

// DefaultUserAgent identifies the crawler when no version is known.
const DefaultUserAgent = "sitescope/1.0"

// RetryConfig controls the bounded retry of transient fetch failures
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"` // Total attempts including the first
	BaseDelay   time.Duration `mapstructure:"base_delay" yaml:"base_delay"`     // Delay before the first retry, doubled per attempt
	MaxDelay    time.Duration `mapstructure:"max_delay" yaml:"max_delay"`       // Backoff cap
}

// LogConfig holds logging options
type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`             // debug, info, warn, error
	Format     string `mapstructure:"format" yaml:"format"`           // json or text
	File       string `mapstructure:"file" yaml:"file"`               // Optional log file path
	MaxSizeMB  int64  `mapstructure:"max_size_mb" yaml:"max_size_mb"` // Rotate after this many megabytes
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"` // Rotated files to keep
	Console    bool   `mapstructure:"console" yaml:"console"`         // Also write to stdout
}

// CrawlConfig holds crawler configuration
type CrawlConfig struct {
	// Basic crawling parameters
	SeedURL          string        `mapstructure:"seed_url" yaml:"seed_url"`                   // Starting URL for crawling
	Limit            int           `mapstructure:"limit" yaml:"limit"`                         // Page budget
	Concurrency      int           `mapstructure:"concurrency" yaml:"concurrency"`             // Number of concurrent workers
	RequestDelay     time.Duration `mapstructure:"request_delay" yaml:"request_delay"`         // Minimum delay between requests to one host
	RequestTimeout   time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`     // Per-request timeout
	PreflightTimeout time.Duration `mapstructure:"preflight_timeout" yaml:"preflight_timeout"` // robots.txt and sitemap probe timeout
	UserAgent        string        `mapstructure:"user_agent" yaml:"user_agent"`               // HTTP User-Agent header
	RespectRobots    bool          `mapstructure:"respect_robots" yaml:"respect_robots"`       // Skip URLs disallowed by robots.txt
	MaxBodyBytes     int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`       // Response body cap
	Retry            RetryConfig   `mapstructure:"retry" yaml:"retry"`

	// Output
	OutputPath   string `mapstructure:"output" yaml:"output"`               // JSON result document
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"` // Optional SQLite database
	MetricsAddr  string `mapstructure:"metrics_addr" yaml:"metrics_addr"`   // Optional Prometheus listener

	Log LogConfig `mapstructure:"log" yaml:"log"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *CrawlConfig {
	return &CrawlConfig{
		Limit:            100,
		Concurrency:      1,
		RequestDelay:     100 * time.Millisecond,
		RequestTimeout:   10 * time.Second,
		PreflightTimeout: 8 * time.Second,
		UserAgent:        DefaultUserAgent,
		RespectRobots:    false,
		MaxBodyBytes:     10 << 20,
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   500 * time.Millisecond,
			MaxDelay:    8 * time.Second,
		},
		OutputPath: "./links.json",
		Log:        DefaultLogConfig(),
	}
}

// DefaultLogConfig returns the logging defaults shared by all commands
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      "info",
		Format:     "json",
		MaxSizeMB:  100,
		MaxBackups: 5,
		Console:    true,
	}
}

// Validate checks if the configuration is valid
func (c *CrawlConfig) Validate() error {
	if c.Limit <= 0 {
		return ErrInvalidLimit
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.PreflightTimeout <= 0 {
		c.PreflightTimeout = c.RequestTimeout
	}

	if c.RequestDelay < 0 {
		c.RequestDelay = 0
	}

	if c.Retry.MaxAttempts <= 0 {
		return ErrInvalidRetry
	}

	// Backoff needs a positive base; the cap never undercuts it
	if c.Retry.BaseDelay <= 0 {
		c.Retry.BaseDelay = 100 * time.Millisecond
	}
	if c.Retry.MaxDelay < c.Retry.BaseDelay {
		c.Retry.MaxDelay = c.Retry.BaseDelay
	}

	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 10 << 20
	}

	if c.OutputPath == "" {
		return ErrEmptyOutputPath
	}

	return nil
}

// LLMConfig configures the summarization collaborator
type LLMConfig struct {
	APIKey      string        `mapstructure:"api_key" yaml:"-"`
	APIKeyEnv   string        `mapstructure:"api_key_env" yaml:"api_key_env"`
	APIURL      string        `mapstructure:"api_url" yaml:"api_url"`
	Model       string        `mapstructure:"model" yaml:"model"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ServeConfig holds configuration for the analysis server
type ServeConfig struct {
	Addr         string    `mapstructure:"addr" yaml:"addr"`
	InputPath    string    `mapstructure:"input" yaml:"input"`
	DatabasePath string    `mapstructure:"database_path" yaml:"database_path"`
	LLM          LLMConfig `mapstructure:"-" yaml:"llm"` // top-level llm.* keys
	Log          LogConfig `mapstructure:"-" yaml:"log"` // top-level log.* keys
}

// DefaultServeConfig returns a server configuration with default values
func DefaultServeConfig() *ServeConfig {
	return &ServeConfig{
		Addr:      ":5000",
		InputPath: "./links.json",
		LLM: LLMConfig{
			APIKeyEnv:   "ANTHROPIC_API_KEY",
			APIURL:      "https://api.anthropic.com",
			Model:       "claude-3-7-sonnet-20250219",
			MaxTokens:   1500,
			Temperature: 0.5,
			Timeout:     60 * time.Second,
		},
		Log: DefaultLogConfig(),
	}
}

// Validate checks if the server configuration is valid
func (c *ServeConfig) Validate() error {
	if c.Addr == "" {
		return ErrEmptyAddr
	}
	if c.InputPath == "" && c.DatabasePath == "" {
		return ErrEmptyInput
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 1500
	}
	if c.LLM.Timeout <= 0 {
		c.LLM.Timeout = 60 * time.Second
	}
	return nil
}

// ResolveAPIKey returns the configured API key, falling back to the
// environment variable named by APIKeyEnv.
func (c *LLMConfig) ResolveAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	if c.APIKeyEnv != "" {
		return os.Getenv(c.APIKeyEnv)
	}
	return ""
}
