package storage

const schemaSQL = `
-- One row per crawl; the newest row is what the server loads
CREATE TABLE IF NOT EXISTS crawl_runs (
    id TEXT PRIMARY KEY NOT NULL,
    seed_url TEXT NOT NULL,
    started_at DATETIME NOT NULL,
    finished_at DATETIME NOT NULL,
    page_count INTEGER NOT NULL DEFAULT 0,
    error_count INTEGER NOT NULL DEFAULT 0,
    saved_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_runs_finished ON crawl_runs(finished_at);

-- Pages holds the post-pass record of every visited URL.
-- record_json is the full serialized record; the other columns are for querying.
CREATE TABLE IF NOT EXISTS pages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES crawl_runs(id) ON DELETE CASCADE,
    url TEXT NOT NULL,
    visit_order INTEGER NOT NULL,
    kind TEXT NOT NULL CHECK (kind IN ('full', 'error')),
    status_code INTEGER,
    error_type TEXT,
    depth INTEGER NOT NULL,
    in_degree INTEGER NOT NULL DEFAULT 0,
    out_degree INTEGER NOT NULL DEFAULT 0,
    is_orphan INTEGER NOT NULL DEFAULT 0,
    title TEXT,
    content_hash TEXT,
    response_time REAL,
    record_json TEXT NOT NULL,
    UNIQUE(run_id, url)
);

CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);
CREATE INDEX IF NOT EXISTS idx_pages_content_hash ON pages(content_hash) WHERE content_hash IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_pages_orphans ON pages(run_id) WHERE is_orphan = 1;

-- View for full records only (for analysis/reporting)
CREATE VIEW IF NOT EXISTS full_pages AS
SELECT
    run_id, url, status_code, depth, in_degree, out_degree,
    is_orphan, title, content_hash, response_time
FROM pages
WHERE kind = 'full';

-- Links table stores the internal link graph of a run
CREATE TABLE IF NOT EXISTS links (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES crawl_runs(id) ON DELETE CASCADE,
    source_url TEXT NOT NULL,
    target_url TEXT NOT NULL,
    UNIQUE(run_id, source_url, target_url)
);

CREATE INDEX IF NOT EXISTS idx_links_source ON links(source_url);
CREATE INDEX IF NOT EXISTS idx_links_target ON links(target_url);
`
