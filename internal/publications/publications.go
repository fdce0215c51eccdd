// Package publications builds the selected-publications page data from a
// YAML category file, a BibTeX database and the citation cache.
package publications

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/theoryandpractice/sitekit/internal/bibtex"
	"github.com/theoryandpractice/sitekit/internal/citations"
	"github.com/theoryandpractice/sitekit/internal/models"
	"github.com/theoryandpractice/sitekit/internal/site"
)

// ContextKey is the generator context key the plugin populates.
const ContextKey = "selected_publications"

// Cache file names, both resolved next to the YAML file.
const (
	CitationsFile       = "citations.json"
	ManualCitationsFile = "citations-manual.json"
)

// Category is a thematic group of publication keys.
type Category struct {
	ID           string   `yaml:"id"`
	Title        string   `yaml:"title"`
	Description  string   `yaml:"description"`
	Publications []string `yaml:"publications"`
}

// File is the on-disk layout of the selected-publications YAML.
type File struct {
	BibTeXFile string     `yaml:"bibtex_file"`
	Categories []Category `yaml:"categories"`
	Highlights []string   `yaml:"highlights"`
}

// Keys returns the sorted, de-duplicated keys referenced by any category.
func (f File) Keys() []string {
	var keys []string
	for _, c := range f.Categories {
		keys = append(keys, c.Publications...)
	}
	slices.Sort(keys)
	return slices.Compact(keys)
}

// Publication is one rendered publication.
type Publication struct {
	Key         string `json:"key"`
	Title       string `json:"title"`
	Text        string `json:"text"`
	BibTeX      string `json:"bibtex"`
	Year        string `json:"year"`
	DOI         string `json:"doi"`
	Eprint      string `json:"eprint"`
	URL         string `json:"url"`
	PDF         string `json:"pdf"`
	Highlight   bool   `json:"highlight"`
	Citations   int    `json:"citations"`
	CitationURL string `json:"citation_url"`
	Category    string `json:"category,omitempty"`
	CategoryID  string `json:"category_id,omitempty"`
}

// Group is a category with its rendered publications.
type Group struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Publications []Publication `json:"publications"`
}

// Data is the value stored under ContextKey.
type Data struct {
	Categories      []Group       `json:"categories"`
	Highlights      []string      `json:"highlights"`
	AllPublications []Publication `json:"all_publications"`
}

// Sources is everything the page is built from.
type Sources struct {
	File      File
	DB        *bibtex.Database
	Citations citations.Cache
}

// Open reads the YAML file at path and the BibTeX database it references.
// A relative bibtex_file is resolved against the YAML file's directory.
func Open(path string) (File, *bibtex.Database, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, nil, fmt.Errorf("publications: read %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, nil, fmt.Errorf("publications: parse %s: %w", path, err)
	}
	db, err := bibtex.ParseFile(BibTeXPath(path, f))
	if err != nil {
		return File{}, nil, fmt.Errorf("publications: %w", err)
	}
	return f, db, nil
}

// BibTeXPath resolves the BibTeX file named by f.
func BibTeXPath(yamlPath string, f File) string {
	if filepath.IsAbs(f.BibTeXFile) {
		return f.BibTeXFile
	}
	return filepath.Join(filepath.Dir(yamlPath), f.BibTeXFile)
}

// CachePaths returns the citation cache and manual override paths that
// belong to the YAML file at yamlPath.
func CachePaths(yamlPath string) (cache, manual string) {
	dir := filepath.Dir(yamlPath)
	return filepath.Join(dir, CitationsFile), filepath.Join(dir, ManualCitationsFile)
}

// Build renders every category. Keys missing from the BibTeX database are
// logged and skipped.
func Build(src Sources, logger *slog.Logger) Data {
	if logger == nil {
		logger = slog.Default()
	}
	highlights := make(map[string]bool, len(src.File.Highlights))
	for _, k := range src.File.Highlights {
		highlights[k] = true
	}

	groups := make([]Group, 0, len(src.File.Categories))
	for _, c := range src.File.Categories {
		pubs := []Publication{}
		for _, key := range c.Publications {
			entry, ok := src.DB.Lookup(key)
			if !ok {
				logger.Warn("publication key not found in BibTeX", slog.String("key", key))
				continue
			}
			p := render(key, entry)
			p.Highlight = highlights[key]
			if cite, ok := src.Citations[key]; ok {
				p.Citations = cite.CitedByCount
				p.CitationURL = cite.URL()
			}
			pubs = append(pubs, p)
		}
		groups = append(groups, Group{
			ID:           c.ID,
			Title:        c.Title,
			Description:  c.Description,
			Publications: pubs,
		})
	}

	all := []Publication{}
	seen := make(map[string]bool)
	for _, g := range groups {
		for _, p := range g.Publications {
			if seen[p.Key] {
				continue
			}
			seen[p.Key] = true
			p.Category = g.Title
			p.CategoryID = g.ID
			all = append(all, p)
		}
	}

	hl := make([]string, 0, len(highlights))
	for k := range highlights {
		hl = append(hl, k)
	}
	slices.Sort(hl)

	return Data{
		Categories:      groups,
		Highlights:      hl,
		AllPublications: all,
	}
}

func render(key string, e *bibtex.Entry) Publication {
	return Publication{
		Key:    key,
		Title:  strings.NewReplacer("{", "", "}", "").Replace(e.Get("title")),
		Text:   e.Format(),
		BibTeX: e.BibTeX(),
		Year:   e.Get("year"),
		DOI:    e.Get("doi"),
		Eprint: e.Get("eprint"),
		URL:    e.Get("url"),
		PDF:    e.Get("pdf"),
	}
}

// Records flattens the data into searchable records.
func Records(d Data) []models.Record {
	out := make([]models.Record, 0, len(d.AllPublications))
	for _, p := range d.AllPublications {
		year, _ := strconv.Atoi(p.Year)
		url := p.URL
		if url == "" && p.DOI != "" {
			url = "https://doi.org/" + p.DOI
		}
		out = append(out, models.Record{
			Kind:     models.KindPublication,
			ID:       p.Key,
			Title:    p.Title,
			Body:     p.Text,
			Category: p.CategoryID,
			URL:      url,
			Year:     year,
		})
	}
	return out
}

// Plugin populates the selected_publications context key.
type Plugin struct{}

// Name implements site.Plugin.
func (Plugin) Name() string { return "selected-publications" }

// GeneratorInit loads the YAML, BibTeX and citation data named in the
// settings. The citation cache is optional; manual overrides are applied
// on top of it.
func (p Plugin) GeneratorInit(_ context.Context, g *site.Generator) {
	if g.Settings.SelectedPublicationsSrc == "" {
		return
	}
	path := site.ResolvePath(g.Settings, g.Settings.SelectedPublicationsSrc)
	logger := g.Logger.With(slog.String("plugin", p.Name()))

	f, db, err := Open(path)
	if err != nil {
		logger.Error("failed to load publications", slog.String("error", err.Error()))
		return
	}

	cachePath, manualPath := CachePaths(path)
	cites, err := citations.Load(cachePath)
	if err != nil {
		logger.Warn("failed to load citations", slog.String("error", err.Error()))
		cites = citations.Cache{}
	}
	manual, err := citations.Load(manualPath)
	if err != nil {
		logger.Warn("failed to load manual citations", slog.String("error", err.Error()))
	}
	cites = cites.Overlay(manual)

	d := Build(Sources{File: f, DB: db, Citations: cites}, logger)
	g.Context[ContextKey] = d
	logger.Info("loaded selected publications",
		slog.Int("publications", len(d.AllPublications)),
		slog.Int("categories", len(d.Categories)),
		slog.Int("citation_records", len(cites)))
}
