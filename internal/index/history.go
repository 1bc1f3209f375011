package index

import (
	"fmt"
	"strings"
	"time"

	"github.com/starford/vizbase/internal/models"
)

// VerificationFilter narrows ListVerifications. Zero values match everything.
type VerificationFilter struct {
	Group string
	Name  string
	// FailedOnly keeps only runs that did not match.
	FailedOnly bool
	Limit      int
	Offset     int
}

// RecordVerification appends one verification run.
func (db *DB) RecordVerification(v models.Verification) error {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	r := v.Result
	_, err := db.conn.Exec(`
		INSERT INTO verifications (
			id, grp, name, matched, baseline_created, dimension_mismatch, ratio,
			diff_pixels, total_pixels, baseline_width, baseline_height,
			current_width, current_height, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.Key.Group, v.Key.Name, v.Matched, v.BaselineCreated, r.DimensionMismatch, r.DifferingPixelRatio,
		r.DiffPixels, r.TotalPixels, r.BaselineWidth, r.BaselineHeight,
		r.CurrentWidth, r.CurrentHeight, v.Error, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("index: record verification: %w", err)
	}
	return nil
}

// ListVerifications returns runs newest first.
func (db *DB) ListVerifications(f VerificationFilter) ([]models.Verification, error) {
	var where []string
	var args []any
	if f.Group != "" {
		where = append(where, "grp = ?")
		args = append(args, f.Group)
	}
	if f.Name != "" {
		where = append(where, "name = ?")
		args = append(args, f.Name)
	}
	if f.FailedOnly {
		where = append(where, "matched = 0")
	}

	q := `SELECT id, grp, name, matched, baseline_created, dimension_mismatch, ratio,
		diff_pixels, total_pixels, baseline_width, baseline_height,
		current_width, current_height, error, created_at
		FROM verifications`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC, rowid DESC"

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	q += " LIMIT ? OFFSET ?"
	args = append(args, limit, max(f.Offset, 0))

	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("index: list verifications: %w", err)
	}
	defer rows.Close()

	var out []models.Verification
	for rows.Next() {
		var v models.Verification
		r := &v.Result
		if err := rows.Scan(&v.ID, &v.Key.Group, &v.Key.Name, &v.Matched, &v.BaselineCreated,
			&r.DimensionMismatch, &r.DifferingPixelRatio, &r.DiffPixels, &r.TotalPixels,
			&r.BaselineWidth, &r.BaselineHeight, &r.CurrentWidth, &r.CurrentHeight,
			&v.Error, &v.CreatedAt); err != nil {
			return nil, err
		}
		r.Matched = v.Matched
		out = append(out, v)
	}
	return out, rows.Err()
}
