// Package storage persists crawl results. A run is written as a JSON
// document keyed by URL and, optionally, into a SQLite database that keeps
// every run alongside its link graph.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/masahif/sitescope/internal/crawler"
	// SQLite database driver (CGO-free)
	_ "modernc.org/sqlite"
)

// ErrNoRuns is returned when the database holds no crawl run yet
var ErrNoRuns = errors.New("no crawl runs stored")

// RunInfo describes one stored crawl run
type RunInfo struct {
	ID         string
	SeedURL    string
	StartedAt  time.Time
	FinishedAt time.Time
	PageCount  int
	ErrorCount int
}

// SQLiteStorage stores crawl runs in SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool - single connection prevents lock conflicts
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	storage := &SQLiteStorage{db: db}

	if err := storage.InitSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// InitSchema creates the database schema
func (s *SQLiteStorage) InitSchema() error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA busy_timeout = 30000",
	}

	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}

	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// SaveResult writes a whole run (its pages and link graph) in one
// transaction. Saving the same run id twice fails.
func (s *SQLiteStorage) SaveResult(ctx context.Context, result *crawler.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, failed, _ := result.Counts()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO crawl_runs (id, seed_url, started_at, finished_at, page_count, error_count)
		VALUES (?, ?, ?, ?, ?, ?)
	`, result.RunID, result.Seed, result.StartedAt, result.FinishedAt, len(result.Pages), failed); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", result.RunID, err)
	}

	pageStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO pages (
			run_id, url, visit_order, kind, status_code, error_type, depth,
			in_degree, out_degree, is_orphan, title, content_hash, response_time, record_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = pageStmt.Close() }()

	for i, url := range pageOrder(result) {
		rec := result.Pages[url]
		row, err := newPageRow(rec)
		if err != nil {
			return fmt.Errorf("failed to encode record %s: %w", url, err)
		}
		base := rec.Common()
		if _, err := pageStmt.ExecContext(ctx,
			result.RunID,
			url,
			i,
			row.kind,
			row.statusCode,
			row.errorType,
			base.Depth,
			base.InDegree,
			base.OutDegree,
			base.IsOrphan,
			row.title,
			row.contentHash,
			base.ResponseTime,
			string(row.recordJSON),
		); err != nil {
			return fmt.Errorf("failed to insert page %s: %w", url, err)
		}
	}

	linkStmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO links (run_id, source_url, target_url) VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = linkStmt.Close() }()

	for _, edge := range result.Edges {
		if _, err := linkStmt.ExecContext(ctx, result.RunID, edge.Source, edge.Target); err != nil {
			return fmt.Errorf("failed to insert link %s -> %s: %w", edge.Source, edge.Target, err)
		}
	}

	return tx.Commit()
}

// LatestRun returns the most recently finished run
func (s *SQLiteStorage) LatestRun(ctx context.Context) (*RunInfo, error) {
	var run RunInfo
	err := s.db.QueryRowContext(ctx, `
		SELECT id, seed_url, started_at, finished_at, page_count, error_count
		FROM crawl_runs
		ORDER BY finished_at DESC, saved_at DESC
		LIMIT 1
	`).Scan(&run.ID, &run.SeedURL, &run.StartedAt, &run.FinishedAt, &run.PageCount, &run.ErrorCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return &run, nil
}

// LoadRun returns the records of one run in visit order
func (s *SQLiteStorage) LoadRun(ctx context.Context, runID string) (*RecordSet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT url, record_json FROM pages WHERE run_id = ? ORDER BY visit_order
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := NewRecordSet()
	for rows.Next() {
		var url, record string
		if err := rows.Scan(&url, &record); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		records.Add(url, json.RawMessage(record))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read pages: %w", err)
	}
	return records, nil
}

// LoadLatest returns the records of the newest run
func (s *SQLiteStorage) LoadLatest(ctx context.Context) (*RecordSet, error) {
	run, err := s.LatestRun(ctx)
	if err != nil {
		return nil, err
	}
	return s.LoadRun(ctx, run.ID)
}

// OrphanURLs lists the orphan pages of a run, sorted
func (s *SQLiteStorage) OrphanURLs(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT url FROM pages WHERE run_id = ? AND is_orphan = 1 ORDER BY url
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query orphans: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var urls []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("failed to scan orphan: %w", err)
		}
		urls = append(urls, url)
	}
	return urls, rows.Err()
}

type pageRow struct {
	kind        string
	statusCode  sql.NullInt64
	errorType   sql.NullString
	title       sql.NullString
	contentHash sql.NullString
	recordJSON  []byte
}

func newPageRow(rec crawler.PageRecord) (*pageRow, error) {
	data, err := marshalRecord(rec)
	if err != nil {
		return nil, err
	}
	row := &pageRow{recordJSON: data}

	if code := rec.Common().StatusCode; code != 0 {
		row.statusCode = sql.NullInt64{Int64: int64(code), Valid: true}
	}

	switch r := rec.(type) {
	case *crawler.FullRecord:
		row.kind = "full"
		row.title = sql.NullString{String: r.Title, Valid: true}
		row.contentHash = sql.NullString{String: r.ContentHash, Valid: r.ContentHash != ""}
	case *crawler.ErrorRecord:
		row.kind = "error"
		row.errorType = sql.NullString{String: r.ErrorType, Valid: true}
	default:
		return nil, fmt.Errorf("unknown record type %T", rec)
	}
	return row, nil
}

// pageOrder lists visited URLs in visit order, then any record the order
// does not mention.
func pageOrder(result *crawler.Result) []string {
	seen := make(map[string]bool, len(result.Pages))
	urls := make([]string, 0, len(result.Pages))
	for _, url := range result.Order {
		if _, ok := result.Pages[url]; ok && !seen[url] {
			seen[url] = true
			urls = append(urls, url)
		}
	}
	for _, url := range sortedURLs(result.Pages) {
		if !seen[url] {
			urls = append(urls, url)
		}
	}
	return urls
}
