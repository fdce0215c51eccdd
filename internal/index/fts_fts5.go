//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/theoryandpractice/sitekit/internal/models"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS records_fts USING fts5(
			kind UNINDEXED,
			id UNINDEXED,
			url UNINDEXED,
			title,
			body,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, kind string, r models.Record) error {
	_, _ = tx.Exec(`DELETE FROM records_fts WHERE kind = ? AND id = ?`, kind, r.ID)
	_, err := tx.Exec(`INSERT INTO records_fts (kind, id, url, title, body, tags) VALUES (?, ?, ?, ?, ?, ?)`,
		kind, r.ID, r.URL, r.Title, r.Body, strings.Join(append([]string{r.Category}, r.Tags...), " "))
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDeleteKind(tx *sql.Tx, kind string) error {
	if _, err := tx.Exec(`DELETE FROM records_fts WHERE kind = ?`, kind); err != nil {
		return fmt.Errorf("index: delete fts: %w", err)
	}
	return nil
}

// Search performs an FTS5 full-text search and returns matching results with
// snippets. An empty kind searches every section.
func (db *DB) Search(query, kind string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT kind,
		       id,
		       title,
		       url,
		       snippet(records_fts, 4, '<b>', '</b>', '...', 64)
		FROM records_fts
		WHERE records_fts MATCH ?
		  AND (? = '' OR kind = ?)
		ORDER BY rank
		LIMIT ?
	`, query, kind, kind, limit)
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
