package mediacache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one manifest row describing a cached asset.
type Entry struct {
	Key       string
	Kind      string
	FileName  string
	SizeBytes int64
	RunID     string
	CreatedAt time.Time
}

// KindStats aggregates manifest rows for one media kind.
type KindStats struct {
	Count      int
	TotalBytes int64
}

// Stats summarizes the manifest per kind.
type Stats struct {
	Audio KindStats
	Image KindStats
}

// Manifest is the advisory sqlite index of cached assets.
type Manifest struct {
	db   *sql.DB
	path string
}

const manifestSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
    kind       TEXT NOT NULL,
    key        TEXT NOT NULL,
    file_name  TEXT NOT NULL,
    size_bytes INTEGER NOT NULL DEFAULT 0,
    run_id     TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    PRIMARY KEY (kind, key)
);
CREATE INDEX IF NOT EXISTS idx_cache_entries_created_at ON cache_entries (created_at);
`

// OpenManifest initializes or connects to the manifest database under the
// cache directory.
func OpenManifest(cacheDir string) (*Manifest, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	dbPath := filepath.Join(cacheDir, "manifest.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(manifestSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply manifest schema: %w", err)
	}
	return &Manifest{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (m *Manifest) Close() error {
	if m == nil || m.db == nil {
		return nil
	}
	return m.db.Close()
}

// Record inserts or refreshes the row for a cached asset.
func (m *Manifest) Record(ctx context.Context, entry Entry) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO cache_entries (kind, key, file_name, size_bytes, run_id, created_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT (kind, key) DO UPDATE SET
             file_name = excluded.file_name,
             size_bytes = excluded.size_bytes,
             run_id = excluded.run_id,
             created_at = excluded.created_at`,
		entry.Kind, entry.Key, entry.FileName, entry.SizeBytes, entry.RunID,
		entry.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record manifest entry: %w", err)
	}
	return nil
}

// List returns all manifest rows, newest first.
func (m *Manifest) List(ctx context.Context) ([]Entry, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT kind, key, file_name, size_bytes, run_id, created_at
         FROM cache_entries ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list manifest entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ListOlderThan returns rows created strictly before the cutoff.
func (m *Manifest) ListOlderThan(ctx context.Context, cutoff time.Time) ([]Entry, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT kind, key, file_name, size_bytes, run_id, created_at
         FROM cache_entries WHERE created_at < ? ORDER BY created_at ASC`,
		cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("list old manifest entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Delete removes one row.
func (m *Manifest) Delete(ctx context.Context, kind Kind, key string) error {
	if _, err := m.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE kind = ? AND key = ?`, string(kind), key); err != nil {
		return fmt.Errorf("delete manifest entry: %w", err)
	}
	return nil
}

// Stats aggregates counts and sizes per kind.
func (m *Manifest) Stats(ctx context.Context) (Stats, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT kind, COUNT(*), COALESCE(SUM(size_bytes), 0)
         FROM cache_entries GROUP BY kind`)
	if err != nil {
		return Stats{}, fmt.Errorf("aggregate manifest stats: %w", err)
	}
	defer rows.Close()

	var stats Stats
	for rows.Next() {
		var kind string
		var ks KindStats
		if err := rows.Scan(&kind, &ks.Count, &ks.TotalBytes); err != nil {
			return Stats{}, fmt.Errorf("scan manifest stats: %w", err)
		}
		switch Kind(kind) {
		case KindAudio:
			stats.Audio = ks
		case KindImage:
			stats.Image = ks
		}
	}
	return stats, rows.Err()
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var entry Entry
		var createdAt string
		if err := rows.Scan(&entry.Kind, &entry.Key, &entry.FileName, &entry.SizeBytes, &entry.RunID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan manifest entry: %w", err)
		}
		if parsed, parseErr := time.Parse(time.RFC3339Nano, createdAt); parseErr == nil {
			entry.CreatedAt = parsed
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
