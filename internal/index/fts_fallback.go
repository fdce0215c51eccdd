//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"

	"github.com/theoryandpractice/sitekit/internal/models"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; full-text search uses LIKE fallback on the records table.
	return nil
}

func ftsUpsert(_ *sql.Tx, _ string, _ models.Record) error {
	// Body is already stored in the records table; nothing extra to do.
	return nil
}

func ftsDeleteKind(_ *sql.Tx, _ string) error { return nil }

// Search performs a LIKE-based search (fallback when FTS5 is not compiled in).
// An empty kind searches every section.
func (db *DB) Search(query, kind string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT kind, id, title, url, substr(body, 1, 200)
		FROM records
		WHERE (title LIKE ? OR body LIKE ? OR tags LIKE ? OR category LIKE ?)
		  AND (? = '' OR kind = ?)
		ORDER BY kind, year DESC
		LIMIT ?
	`, like, like, like, like, kind, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Kind, &r.ID, &r.Title, &r.URL, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
