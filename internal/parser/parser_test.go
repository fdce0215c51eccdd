package parser

import (
	"testing"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\nTitle: Hello\nStylesheets: a.css, b.css\ntags:\n  - go\n---\n# Heading\nBody text.\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Title != "Hello" {
		t.Errorf("title = %q, want %q", r.Title, "Hello")
	}
	if r.Metadata["stylesheets"] != "a.css, b.css" {
		t.Errorf("stylesheets = %v", r.Metadata["stylesheets"])
	}
	if tags, ok := r.Metadata["tags"].([]any); !ok || len(tags) != 1 {
		t.Errorf("tags = %v", r.Metadata["tags"])
	}
	if r.Body != "# Heading\nBody text.\n" {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_HeaderLines(t *testing.T) {
	input := []byte("Title: Projects\nJavaScripts: chart.js,\n    extra.js\nDate: 2024-01-02\n\n# Projects\nText.\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Title != "Projects" {
		t.Errorf("title = %q", r.Title)
	}
	if r.Metadata["javascripts"] != "chart.js, extra.js" {
		t.Errorf("javascripts = %q", r.Metadata["javascripts"])
	}
	if r.Metadata["date"] != "2024-01-02" {
		t.Errorf("date = %v", r.Metadata["date"])
	}
	if r.Body != "# Projects\nText.\n" {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_NoMetadata(t *testing.T) {
	input := []byte("# Just a heading\nSome text.\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Metadata != nil {
		t.Errorf("expected nil metadata, got %v", r.Metadata)
	}
	if r.Title != "Just a heading" {
		t.Errorf("title = %q, want %q", r.Title, "Just a heading")
	}
	if r.Body != string(input) {
		t.Errorf("body changed: %q", r.Body)
	}
}

func TestParse_InvalidYAMLFallback(t *testing.T) {
	input := []byte("---\n: invalid: yaml: {{{\n---\nBody\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Metadata != nil {
		t.Errorf("expected nil metadata on invalid YAML, got %v", r.Metadata)
	}
}

func TestParse_EmptyFrontmatter(t *testing.T) {
	r, _ := Parse([]byte("---\n---\nBody\n"))
	if r.Metadata == nil || len(r.Metadata) != 0 {
		t.Errorf("metadata = %v, want empty map", r.Metadata)
	}
	if r.Body != "Body\n" {
		t.Errorf("body = %q", r.Body)
	}
}

func TestDeriveTitle_MetadataOverH1(t *testing.T) {
	got := deriveTitle(map[string]any{"title": "Meta"}, "# Heading\n")
	if got != "Meta" {
		t.Errorf("title = %q, want Meta", got)
	}
	if got := deriveTitle(nil, "text only"); got != "" {
		t.Errorf("title = %q, want empty", got)
	}
}
