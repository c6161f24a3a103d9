package catalog

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/edgekit-ml/edgekit/internal/interfaces"
	"github.com/edgekit-ml/edgekit/pkg/models"
)

var _ interfaces.ModelCatalog = (*Catalog)(nil)

//go:embed migration.sql
var migrationSQL string

// Catalog is the SQLite-backed record of locally fetched models
type Catalog struct {
	conn *sql.DB
	path string
}

// Open creates or opens the catalog database
func Open(dbPath string) (*Catalog, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create catalog directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	// SQLite works best with a single connection
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	c := &Catalog{conn: conn, path: dbPath}
	if err := c.Migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return c, nil
}

// Migrate applies the embedded schema
func (c *Catalog) Migrate() error {
	if _, err := c.conn.Exec(migrationSQL); err != nil {
		return fmt.Errorf("failed to execute migration: %w", err)
	}
	return nil
}

// Close closes the database connection
func (c *Catalog) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Put inserts or updates a model record. Re-fetching a model overwrites its
// previous entry.
func (c *Catalog) Put(rec models.ModelRecord) error {
	_, err := c.conn.Exec(`
		INSERT INTO models (id, repo, task, revision, path, size_bytes, sha, downloaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			repo = excluded.repo,
			task = excluded.task,
			revision = excluded.revision,
			path = excluded.path,
			size_bytes = excluded.size_bytes,
			sha = excluded.sha,
			downloaded_at = excluded.downloaded_at
	`, rec.ID, rec.Repo, rec.Task, rec.Revision, rec.Path, rec.SizeBytes, rec.SHA, rec.DownloadedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to store model %s: %w", rec.ID, err)
	}
	return nil
}

// Get retrieves a model record by id
func (c *Catalog) Get(id string) (*models.ModelRecord, error) {
	row := c.conn.QueryRow(`
		SELECT id, repo, task, revision, path, size_bytes, sha, downloaded_at
		FROM models WHERE id = ?
	`, id)

	rec, err := scanModel(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("model %s not in catalog", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load model %s: %w", id, err)
	}
	return rec, nil
}

// List returns all cataloged models ordered by repo
func (c *Catalog) List() ([]models.ModelRecord, error) {
	rows, err := c.conn.Query(`
		SELECT id, repo, task, revision, path, size_bytes, sha, downloaded_at
		FROM models ORDER BY repo
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.ModelRecord
	for rows.Next() {
		rec, err := scanModel(rows)
		if err != nil {
			continue
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// Remove deletes a model record (the files on disk are left alone)
func (c *Catalog) Remove(id string) error {
	_, err := c.conn.Exec("DELETE FROM models WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to remove model %s: %w", id, err)
	}
	return nil
}

// GetSetting retrieves a setting value, empty when unset
func (c *Catalog) GetSetting(key string) (string, error) {
	var value string
	err := c.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, nil
}

// SetSetting updates or inserts a setting
func (c *Catalog) SetSetting(key, value string) error {
	_, err := c.conn.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = ?, updated_at = strftime('%s', 'now')
	`, key, value, value)
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// RecordSync stores the outcome of the last hub operation
func (c *Catalog) RecordSync(op, status, errMsg string) {
	c.conn.Exec(`
		UPDATE sync_status
		SET last_op = ?, status = ?, error = ?, updated_at = strftime('%s', 'now')
		WHERE id = 1
	`, op, status, errMsg)
}

// LastSync returns the last hub operation's outcome
func (c *Catalog) LastSync() (op, status, errMsg string, at time.Time, err error) {
	var ts int64
	err = c.conn.QueryRow(`
		SELECT last_op, status, error, updated_at FROM sync_status WHERE id = 1
	`).Scan(&op, &status, &errMsg, &ts)
	if err != nil {
		return "", "never", "", time.Time{}, nil
	}
	return op, status, errMsg, time.Unix(ts, 0), nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanModel(row scanner) (*models.ModelRecord, error) {
	var rec models.ModelRecord
	var ts int64
	if err := row.Scan(&rec.ID, &rec.Repo, &rec.Task, &rec.Revision, &rec.Path, &rec.SizeBytes, &rec.SHA, &ts); err != nil {
		return nil, err
	}
	rec.DownloadedAt = time.Unix(ts, 0)
	return &rec, nil
}
