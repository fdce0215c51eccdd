// Package testutil provides shared test helpers for setting up site projects
// and search indexes.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/theoryandpractice/sitekit/internal/index"
	"github.com/theoryandpractice/sitekit/internal/site"
	"github.com/theoryandpractice/sitekit/internal/storage"
)

// TestDB creates a temporary SQLite index that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "sitekit-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// SampleFiles is a small site project: one source per plugin and a page.
var SampleFiles = map[string]string{
	"content/collaborators.yml": `categories:
  - id: phd
    title: PhD Students
people:
  - name: Ada Lovelace
    category: phd
    start_year: 2019
    links:
      website: https://example.org/ada
    bio: Works on analytical engines.
`,
	"content/projects.yml": `projects:
  - name: pyhf
    description: Pure-python HistFactory.
    github: scikit-hep/pyhf
    featured: true
    start_year: 2018
`,
	"content/media.yml": `categories:
  - id: articles
    title: Articles
items:
  - title: Machine learning meets particle physics
    outlet: Quanta
    category: articles
    date: 2021-03-04
    url: https://example.com/ml-physics
`,
	"content/pages/about.md": `---
title: About
stylesheets: site.css
---
About page.
`,
}

// TestProject writes files into a temporary project root and returns the
// root, a storage provider over it and generator settings pointing at the
// standard sources. A nil files map writes SampleFiles.
func TestProject(t *testing.T, files map[string]string) (string, storage.Provider, site.Settings) {
	t.Helper()
	if files == nil {
		files = SampleFiles
	}
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	settings := site.Settings{
		Path:                    filepath.Join(root, "content"),
		OutputPath:              filepath.Join(root, "output"),
		CollaboratorsSrc:        "content/collaborators.yml",
		ProjectsSrc:             "content/projects.yml",
		MediaSrc:                "content/media.yml",
		SelectedPublicationsSrc: "content/publications.yml",
	}
	return root, store, settings
}
