package index

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/mosaic/internal/apperr"
)

// ImageRow represents a row in the images table.
type ImageRow struct {
	Path        string
	Width       int
	Height      int
	Size        int64
	Fingerprint string
	ModTime     time.Time
	IndexedAt   time.Time
}

// Sort orders accepted by ListImages.
const (
	SortPath    = "path"
	SortModTime = "mod_time"
)

// ListQuery filters and pages ListImages. A zero Limit returns every match.
type ListQuery struct {
	Limit  int
	Offset int
	// Query matches a substring of the path.
	Query string
	Sort  string
}

// UpsertImage inserts or replaces an image row.
func (db *DB) UpsertImage(img ImageRow) error {
	if img.IndexedAt.IsZero() {
		img.IndexedAt = time.Now().UTC()
	}
	_, err := db.conn.Exec(`
		INSERT INTO images (path, width, height, size, fingerprint, mod_time, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			width       = excluded.width,
			height      = excluded.height,
			size        = excluded.size,
			fingerprint = excluded.fingerprint,
			mod_time    = excluded.mod_time,
			indexed_at  = excluded.indexed_at
	`, img.Path, img.Width, img.Height, img.Size, img.Fingerprint, img.ModTime.UTC(), img.IndexedAt)
	if err != nil {
		return fmt.Errorf("index: upsert image: %w", err)
	}
	return nil
}

// DeleteImage removes an image row. Deleting a missing row is not an error.
func (db *DB) DeleteImage(path string) error {
	if _, err := db.conn.Exec(`DELETE FROM images WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete image: %w", err)
	}
	return nil
}

// GetImage returns one image row or apperr.ErrNotFound.
func (db *DB) GetImage(path string) (*ImageRow, error) {
	var r ImageRow
	err := db.conn.QueryRow(`
		SELECT path, width, height, size, fingerprint, mod_time, indexed_at
		FROM images WHERE path = ?
	`, path).Scan(&r.Path, &r.Width, &r.Height, &r.Size, &r.Fingerprint, &r.ModTime, &r.IndexedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get image: %w", err)
	}
	return &r, nil
}

// ListImages returns matching rows in the requested order and the total
// number of matches ignoring paging.
func (db *DB) ListImages(q ListQuery) ([]ImageRow, int, error) {
	where := ""
	var args []any
	if q.Query != "" {
		where = `WHERE path LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(q.Query)+"%")
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM images `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count images: %w", err)
	}

	order := "path ASC"
	if q.Sort == SortModTime {
		order = "mod_time DESC, path ASC"
	}
	query := `SELECT path, width, height, size, fingerprint, mod_time, indexed_at FROM images ` +
		where + ` ORDER BY ` + order
	if q.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, q.Limit, max(q.Offset, 0))
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list images: %w", err)
	}
	defer rows.Close()

	var out []ImageRow
	for rows.Next() {
		var r ImageRow
		if err := rows.Scan(&r.Path, &r.Width, &r.Height, &r.Size, &r.Fingerprint, &r.ModTime, &r.IndexedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// Count returns the number of indexed images.
func (db *DB) Count() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT count(*) FROM images`).Scan(&n); err != nil {
		return 0, fmt.Errorf("index: count images: %w", err)
	}
	return n, nil
}

// AllFingerprints maps every indexed path to its stored fingerprint.
func (db *DB) AllFingerprints() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, fingerprint FROM images`)
	if err != nil {
		return nil, fmt.Errorf("index: all fingerprints: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, fp string
		if err := rows.Scan(&p, &fp); err != nil {
			return nil, err
		}
		out[p] = fp
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
