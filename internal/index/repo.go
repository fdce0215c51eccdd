package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/theoryandpractice/sitekit/internal/apperr"
	"github.com/theoryandpractice/sitekit/internal/models"
)

// SearchResult represents one search hit.
type SearchResult struct {
	Kind    string `json:"kind"`
	ID      string `json:"id"`
	Title   string `json:"title"`
	URL     string `json:"url,omitempty"`
	Snippet string `json:"snippet"`
}

// ReplaceSection swaps every record of kind for recs and stores the section
// checksum, all within one transaction. Records sharing an id keep the last.
func (db *DB) ReplaceSection(kind, checksum string, recs []models.Record) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if err := ftsDeleteKind(tx, kind); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM records WHERE kind = ?`, kind); err != nil {
		return fmt.Errorf("index: clear section: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO records (kind, id, title, body, category, tags, url, year)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("index: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range recs {
		tags := r.Tags
		if tags == nil {
			tags = []string{}
		}
		tagsJSON, _ := json.Marshal(tags)
		if _, err := stmt.Exec(kind, r.ID, r.Title, r.Body, r.Category, string(tagsJSON), r.URL, r.Year); err != nil {
			return fmt.Errorf("index: insert %s/%s: %w", kind, r.ID, err)
		}
		if err := ftsUpsert(tx, kind, r); err != nil {
			return err
		}
	}

	_, err = tx.Exec(`
		INSERT INTO sections (kind, checksum, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(kind) DO UPDATE SET
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, kind, checksum, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("index: upsert section: %w", err)
	}

	return tx.Commit()
}

// DeleteSection removes every record of kind and its checksum.
func (db *DB) DeleteSection(kind string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := ftsDeleteKind(tx, kind); err != nil {
		return err
	}
	_, _ = tx.Exec(`DELETE FROM records WHERE kind = ?`, kind)
	_, _ = tx.Exec(`DELETE FROM sections WHERE kind = ?`, kind)

	return tx.Commit()
}

// SectionChecksums returns the stored checksum of every indexed section.
func (db *DB) SectionChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT kind, checksum FROM sections`)
	if err != nil {
		return nil, fmt.Errorf("index: section checksums: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, cs string
		if err := rows.Scan(&k, &cs); err != nil {
			return nil, err
		}
		out[k] = cs
	}
	return out, rows.Err()
}

const recordColumns = `kind, id, title, body, category, tags, url, year`

func scanRecord(s interface{ Scan(...any) error }) (models.Record, error) {
	var (
		r    models.Record
		tags string
	)
	if err := s.Scan(&r.Kind, &r.ID, &r.Title, &r.Body, &r.Category, &tags, &r.URL, &r.Year); err != nil {
		return r, err
	}
	_ = json.Unmarshal([]byte(tags), &r.Tags)
	return r, nil
}

// Get returns a single record.
func (db *DB) Get(kind, id string) (*models.Record, error) {
	row := db.conn.QueryRow(`SELECT `+recordColumns+` FROM records WHERE kind = ? AND id = ?`, kind, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get: %w", err)
	}
	return &r, nil
}

// List returns a page of records ordered by kind, year (newest first) and
// title, together with the total count. An empty kind lists every section.
func (db *DB) List(kind string, limit, offset int) ([]models.Record, int, error) {
	if limit <= 0 {
		limit = 50
	}
	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM records WHERE ? = '' OR kind = ?`, kind, kind).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT `+recordColumns+`
		FROM records
		WHERE ? = '' OR kind = ?
		ORDER BY kind, year DESC, title
		LIMIT ? OFFSET ?
	`, kind, kind, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list: %w", err)
	}
	defer rows.Close()

	var out []models.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// Counts returns the number of records per kind.
func (db *DB) Counts() (map[string]int, error) {
	rows, err := db.conn.Query(`SELECT kind, count(*) FROM records GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("index: counts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			k string
			n int
		)
		if err := rows.Scan(&k, &n); err != nil {
			return nil, err
		}
		out[k] = n
	}
	return out, rows.Err()
}
