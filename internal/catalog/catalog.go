// Package catalog tracks per-file indexing state in SQLite.
//
// The catalog is the daemon's memory of what has been indexed. Every crawled
// file has a row keyed by its relative path; CheckNeedsIndexing compares the
// file's modification time against that row to decide whether work is
// needed, and FindRemovedFiles diffs the stored paths against the current
// crawl to detect deletions.
package catalog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/fyrsmithlabs/corpusd/internal/catalog/migrations"
)

var (
	// ErrNotFound indicates the requested file has no catalog row.
	ErrNotFound = errors.New("catalog: record not found")

	// ErrUnavailable indicates the catalog storage failed. Callers treat
	// this as "skip the file this pass" rather than aborting the crawl.
	ErrUnavailable = errors.New("catalog: storage unavailable")
)

// Status is the indexing lifecycle state of a file.
type Status string

const (
	// StatusUploaded means the file was seen by the crawler but not yet
	// indexed.
	StatusUploaded Status = "uploaded"
	// StatusIndexing means a consumer is currently processing the file.
	StatusIndexing Status = "indexing"
	// StatusIndexed means the file's chunks are in the vector store.
	StatusIndexed Status = "indexed"
	// StatusFailed means the last indexing attempt failed.
	StatusFailed Status = "failed"
)

// Decision is the outcome of CheckNeedsIndexing.
type Decision int

const (
	// DecisionUnchanged means the stored state is current; skip the file.
	DecisionUnchanged Decision = iota
	// DecisionNewFile means the file has never been indexed.
	DecisionNewFile
	// DecisionReindex means the file changed since it was last indexed.
	DecisionReindex
)

// String returns a human-readable decision name.
func (d Decision) String() string {
	switch d {
	case DecisionNewFile:
		return "new_file"
	case DecisionReindex:
		return "reindex"
	default:
		return "unchanged"
	}
}

// Record is one file's catalog row.
type Record struct {
	Path               string
	LastUpdatedSeconds int64
	// IndexingSeconds is the wall time of the last indexing attempt.
	// Nil until the first outcome is recorded.
	IndexingSeconds *float64
	Status          Status
	TenantID        string
}

// Stats summarizes the catalog contents.
type Stats struct {
	Total    int64
	ByStatus map[Status]int64
}

// Catalog is a SQLite-backed index state store.
type Catalog struct {
	db   *sql.DB
	path string
}

// New opens (or creates) the catalog database at dbPath. The parent
// directory is created with 0700 permissions. dbPath must already be
// expanded; config.ExpandPath handles "~".
func New(dbPath string) (*Catalog, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating catalog directory: %w", err)
	}

	// WAL mode so the crawler and consumer can read while writes happen
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening catalog database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	c := &Catalog{
		db:   db,
		path: dbPath,
	}

	if err := c.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return c, nil
}

// Close closes the database connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Path returns the database file path.
func (c *Catalog) Path() string {
	return c.path
}

// migrate runs all pending migrations.
func (c *Catalog) migrate(fsys embed.FS) error {
	_, err := c.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := c.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "0001_init.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}

		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := c.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %s: %w", name, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", name, err)
		}
	}

	return nil
}

// CheckNeedsIndexing compares a crawled file against its catalog row and
// returns the indexing decision.
//
// A new path is inserted with StatusUploaded and reported as
// DecisionNewFile. A stored path whose last_updated_seconds is older than
// lastUpdated is bumped back to StatusUploaded and reported as
// DecisionReindex. Anything else is DecisionUnchanged.
//
// Both writes are single guarded statements, so two concurrent checks for
// one path cannot both come back claiming the work: only one caller wins
// the insert, and the timestamp guard means the stored value never moves
// backwards.
//
// On storage failure the decision is DecisionUnchanged alongside an error
// wrapping ErrUnavailable: a broken catalog must never flood the queue with
// duplicate work.
func (c *Catalog) CheckNeedsIndexing(ctx context.Context, path string, lastUpdated int64, tenantID string) (Decision, error) {
	res, err := c.db.ExecContext(ctx, `
		INSERT INTO files (path, last_updated_seconds, status, tenant_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO NOTHING
	`, path, lastUpdated, string(StatusUploaded), tenantID)
	if err != nil {
		return DecisionUnchanged, fmt.Errorf("%w: inserting %s: %v", ErrUnavailable, path, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return DecisionUnchanged, fmt.Errorf("%w: inserting %s: %v", ErrUnavailable, path, err)
	} else if n > 0 {
		return DecisionNewFile, nil
	}

	res, err = c.db.ExecContext(ctx, `
		UPDATE files
		SET last_updated_seconds = ?, status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE path = ? AND last_updated_seconds < ?
	`, lastUpdated, string(StatusUploaded), path, lastUpdated)
	if err != nil {
		return DecisionUnchanged, fmt.Errorf("%w: updating %s: %v", ErrUnavailable, path, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return DecisionUnchanged, fmt.Errorf("%w: updating %s: %v", ErrUnavailable, path, err)
	} else if n > 0 {
		return DecisionReindex, nil
	}

	return DecisionUnchanged, nil
}

// RecordOutcome stores the result of an indexing attempt. A missing row is
// not an error: the file may have been purged while its event was queued.
func (c *Catalog) RecordOutcome(ctx context.Context, path string, status Status, indexingSeconds float64) error {
	_, err := c.db.ExecContext(ctx, `
		UPDATE files
		SET status = ?, indexing_seconds = ?, updated_at = CURRENT_TIMESTAMP
		WHERE path = ?
	`, string(status), indexingSeconds, path)
	if err != nil {
		return fmt.Errorf("recording outcome for %s: %w", path, err)
	}
	return nil
}

// SetStatus updates only the lifecycle status of a file. Missing rows are
// ignored, matching RecordOutcome.
func (c *Catalog) SetStatus(ctx context.Context, path string, status Status) error {
	_, err := c.db.ExecContext(ctx, `
		UPDATE files SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE path = ?
	`, string(status), path)
	if err != nil {
		return fmt.Errorf("setting status for %s: %w", path, err)
	}
	return nil
}

// FindRemovedFiles returns the stored paths that are absent from existing
// and deletes their rows in the same transaction. The crawler passes the
// full set of paths seen in the current pass.
func (c *Catalog) FindRemovedFiles(ctx context.Context, existing map[string]struct{}) ([]string, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.QueryContext(ctx, "SELECT path FROM files")
	if err != nil {
		return nil, fmt.Errorf("querying stored paths: %w", err)
	}

	var removed []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning path: %w", err)
		}
		if _, ok := existing[path]; !ok {
			removed = append(removed, path)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating paths: %w", err)
	}
	rows.Close()

	for _, path := range removed {
		if _, err := tx.ExecContext(ctx, "DELETE FROM files WHERE path = ?", path); err != nil {
			return nil, fmt.Errorf("deleting %s: %w", path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing removal: %w", err)
	}

	return removed, nil
}

// Get retrieves a single file's record.
func (c *Catalog) Get(ctx context.Context, path string) (*Record, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT path, last_updated_seconds, indexing_seconds, status, tenant_id
		FROM files WHERE path = ?
	`, path)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning record: %w", err)
	}
	return rec, nil
}

// ListAll returns every tracked file ordered by path.
func (c *Catalog) ListAll(ctx context.Context) ([]Record, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT path, last_updated_seconds, indexing_seconds, status, tenant_id
		FROM files ORDER BY path
	`)
	if err != nil {
		return nil, fmt.Errorf("querying files: %w", err)
	}
	defer rows.Close()

	var records []Record //nolint:prealloc // size unknown from query
	for rows.Next() {
		rec, err := scanRecordRows(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating files: %w", err)
	}

	return records, nil
}

// GetStatuses returns the status for each requested path. Paths without a
// catalog row are absent from the result.
func (c *Catalog) GetStatuses(ctx context.Context, paths []string) (map[string]Status, error) {
	statuses := make(map[string]Status, len(paths))
	if len(paths) == 0 {
		return statuses, nil
	}

	placeholders := strings.Repeat("?,", len(paths))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(paths))
	for i, p := range paths {
		args[i] = p
	}

	rows, err := c.db.QueryContext(ctx,
		"SELECT path, status FROM files WHERE path IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("querying statuses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var path, status string
		if err := rows.Scan(&path, &status); err != nil {
			return nil, fmt.Errorf("scanning status: %w", err)
		}
		statuses[path] = Status(status)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating statuses: %w", err)
	}

	return statuses, nil
}

// GetStats returns row counts grouped by status.
func (c *Catalog) GetStats(ctx context.Context) (Stats, error) {
	stats := Stats{ByStatus: make(map[Status]int64)}

	rows, err := c.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM files GROUP BY status")
	if err != nil {
		return stats, fmt.Errorf("querying stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return stats, fmt.Errorf("scanning stats: %w", err)
		}
		stats.ByStatus[Status(status)] = count
		stats.Total += count
	}

	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("iterating stats: %w", err)
	}

	return stats, nil
}

// Delete removes a file's row. Deleting an absent path is not an error.
func (c *Catalog) Delete(ctx context.Context, path string) error {
	_, err := c.db.ExecContext(ctx, "DELETE FROM files WHERE path = ?", path)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", path, err)
	}
	return nil
}

// BackfillTenant assigns tenantID to every row that has no tenant yet and
// returns how many rows changed. Rows that already carry a tenant are left
// alone, so the backfill is safe to re-run.
func (c *Catalog) BackfillTenant(ctx context.Context, tenantID string) (int64, error) {
	if tenantID == "" {
		return 0, errors.New("catalog: tenant id cannot be empty")
	}

	res, err := c.db.ExecContext(ctx,
		"UPDATE files SET tenant_id = ? WHERE tenant_id = ''", tenantID)
	if err != nil {
		return 0, fmt.Errorf("backfilling tenant: %w", err)
	}

	updated, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting backfilled rows: %w", err)
	}
	return updated, nil
}

// CountMissingTenant reports how many rows BackfillTenant would change.
func (c *Catalog) CountMissingTenant(ctx context.Context) (int64, error) {
	var count int64
	err := c.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM files WHERE tenant_id = ''").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting rows without tenant: %w", err)
	}
	return count, nil
}

// scanRecord scans a record from *sql.Row.
func scanRecord(row *sql.Row) (*Record, error) {
	var rec Record
	var status string
	var indexingSeconds sql.NullFloat64

	if err := row.Scan(&rec.Path, &rec.LastUpdatedSeconds, &indexingSeconds, &status, &rec.TenantID); err != nil {
		return nil, err
	}

	rec.Status = Status(status)
	if indexingSeconds.Valid {
		rec.IndexingSeconds = &indexingSeconds.Float64
	}

	return &rec, nil
}

// scanRecordRows scans a record from *sql.Rows.
func scanRecordRows(rows *sql.Rows) (*Record, error) {
	var rec Record
	var status string
	var indexingSeconds sql.NullFloat64

	if err := rows.Scan(&rec.Path, &rec.LastUpdatedSeconds, &indexingSeconds, &status, &rec.TenantID); err != nil {
		return nil, fmt.Errorf("scanning record: %w", err)
	}

	rec.Status = Status(status)
	if indexingSeconds.Valid {
		rec.IndexingSeconds = &indexingSeconds.Float64
	}

	return &rec, nil
}
