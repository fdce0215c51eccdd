//go:build sqlite_fts5

package index

import (
	"strings"
	"testing"

	"github.com/theoryandpractice/sitekit/internal/models"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM records_fts`).Scan(&count); err != nil {
		t.Fatalf("records_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	recs := []models.Record{{
		Kind:  models.KindProject,
		ID:    "pyhf",
		Title: "pyhf",
		Body:  "Pure-python implementation of HistFactory with powerful autodiff backends.",
		URL:   "https://github.com/scikit-hep/pyhf",
	}}
	if err := db.ReplaceSection(models.KindProject, "p1", recs); err != nil {
		t.Fatalf("ReplaceSection: %v", err)
	}

	results, err := db.Search("powerful", "", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].URL != recs[0].URL {
		t.Errorf("url = %q", results[0].URL)
	}
	if !strings.Contains(results[0].Snippet, "<b>powerful</b>") {
		t.Errorf("snippet = %q", results[0].Snippet)
	}
}

func TestFTS5_ReplaceClearsOldRows(t *testing.T) {
	db := testDB(t)
	_ = db.ReplaceSection(models.KindProject, "p1", []models.Record{{Kind: models.KindProject, ID: "a", Body: "quark"}})
	_ = db.ReplaceSection(models.KindProject, "p2", []models.Record{{Kind: models.KindProject, ID: "b", Body: "gluon"}})

	results, _ := db.Search("quark", "", 10)
	if len(results) != 0 {
		t.Errorf("stale fts row: %+v", results)
	}
}
