// Package server exposes crawled page records over HTTP and asks a
// Summarizer to review individual pages on demand.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/masahif/sitescope/internal/storage"
)

// Summarizer reviews a single page record
type Summarizer interface {
	Summarize(ctx context.Context, record json.RawMessage) (string, error)
}

// Server serves the records of one crawl run
type Server struct {
	records    *storage.RecordSet
	summarizer Summarizer
	metrics    *Metrics
	gatherer   prometheus.Gatherer
	engine     *gin.Engine
}

// Option customizes a Server
type Option func(*Server)

// WithRegistry registers API metrics with reg and serves reg on /metrics
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.metrics = NewMetrics(reg)
		s.gatherer = reg
	}
}

// New builds the HTTP handler for records. A nil record set serves nothing.
func New(records *storage.RecordSet, summarizer Summarizer, opts ...Option) *Server {
	if records == nil {
		records = storage.NewRecordSet()
	}
	s := &Server{
		records:    records,
		summarizer: summarizer,
		gatherer:   prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	s.engine = s.setupRouter()
	return s
}

func (s *Server) setupRouter() *gin.Engine {
	router := gin.New()

	router.Use(loggingMiddleware())
	router.Use(s.metrics.middleware())
	router.Use(recoveryMiddleware())
	router.Use(corsMiddleware())

	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	api.GET("/urls", s.handleURLs)
	api.POST("/analyze", s.handleAnalyze)

	return router
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "addr", addr, "records", s.records.Len())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	slog.Info("Server stopped")
	return nil
}

// LoadRecords reads the records to serve: from the newest SQLite run when
// databasePath is set, otherwise from the JSON document at inputPath. A load
// failure is logged and yields an empty set so the server still starts.
func LoadRecords(ctx context.Context, inputPath, databasePath string) *storage.RecordSet {
	if databasePath != "" {
		db, err := storage.NewSQLiteStorage(databasePath)
		if err != nil {
			slog.Error("Failed to open database", "path", databasePath, "error", err)
			return storage.NewRecordSet()
		}
		defer func() { _ = db.Close() }()

		records, err := db.LoadLatest(ctx)
		if err != nil {
			slog.Error("Failed to load crawl run", "path", databasePath, "error", err)
			return storage.NewRecordSet()
		}
		slog.Info("Loaded crawl run", "path", databasePath, "urls", records.Len())
		return records
	}

	records, err := storage.LoadJSON(inputPath)
	if err != nil {
		slog.Error("Failed to load crawl results", "path", inputPath, "error", err)
		return storage.NewRecordSet()
	}
	slog.Info("Loaded crawl results", "path", inputPath, "urls", records.Len())
	return records
}
