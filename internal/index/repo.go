package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/vizbase/internal/apperr"
	"github.com/starford/vizbase/internal/models"
)

// BaselineRow represents a row in the baselines table.
type BaselineRow struct {
	Path      string
	Key       models.ArtifactKey
	Checksum  string
	Width     int
	Height    int
	UpdatedAt time.Time
}

// Metadata converts the row to its API representation.
func (r BaselineRow) Metadata() models.BaselineMetadata {
	return models.BaselineMetadata{
		Key:       r.Key,
		Path:      r.Path,
		Checksum:  r.Checksum,
		Width:     r.Width,
		Height:    r.Height,
		UpdatedAt: r.UpdatedAt,
	}
}

// UpsertBaseline inserts or replaces a baseline row.
func (db *DB) UpsertBaseline(b BaselineRow) error {
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = time.Now().UTC()
	}
	_, err := db.conn.Exec(`
		INSERT INTO baselines (path, grp, name, checksum, width, height, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			grp        = excluded.grp,
			name       = excluded.name,
			checksum   = excluded.checksum,
			width      = excluded.width,
			height     = excluded.height,
			updated_at = excluded.updated_at
	`, b.Path, b.Key.Group, b.Key.Name, b.Checksum, b.Width, b.Height, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert baseline: %w", err)
	}
	return nil
}

// DeleteBaseline removes a baseline row. Deleting a missing row is not an error.
func (db *DB) DeleteBaseline(path string) error {
	if _, err := db.conn.Exec(`DELETE FROM baselines WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete baseline: %w", err)
	}
	return nil
}

// GetBaseline returns the row for path or apperr.ErrNotFound.
func (db *DB) GetBaseline(path string) (*BaselineRow, error) {
	var r BaselineRow
	err := db.conn.QueryRow(`
		SELECT path, grp, name, checksum, width, height, updated_at
		FROM baselines WHERE path = ?`, path).
		Scan(&r.Path, &r.Key.Group, &r.Key.Name, &r.Checksum, &r.Width, &r.Height, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: baseline %s", apperr.ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get baseline: %w", err)
	}
	return &r, nil
}

// ListBaselines returns baselines ordered by group and name. An empty group
// lists every group.
func (db *DB) ListBaselines(group string) ([]BaselineRow, error) {
	q := `SELECT path, grp, name, checksum, width, height, updated_at FROM baselines`
	var args []any
	if group != "" {
		q += ` WHERE grp = ?`
		args = append(args, group)
	}
	q += ` ORDER BY grp, name`

	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("index: list baselines: %w", err)
	}
	defer rows.Close()

	var out []BaselineRow
	for rows.Next() {
		var r BaselineRow
		if err := rows.Scan(&r.Path, &r.Key.Group, &r.Key.Name, &r.Checksum, &r.Width, &r.Height, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AllChecksums returns path → checksum for every indexed baseline.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM baselines`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}
