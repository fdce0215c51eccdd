// Package siteservice owns the generated site context for the preview
// server: it runs the plugin pipeline, keeps the search index in sync and
// serves the current sections to the API and MCP layers.
package siteservice

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/theoryandpractice/sitekit/internal/apperr"
	"github.com/theoryandpractice/sitekit/internal/assets"
	"github.com/theoryandpractice/sitekit/internal/checksum"
	"github.com/theoryandpractice/sitekit/internal/collaborators"
	"github.com/theoryandpractice/sitekit/internal/index"
	"github.com/theoryandpractice/sitekit/internal/media"
	"github.com/theoryandpractice/sitekit/internal/models"
	"github.com/theoryandpractice/sitekit/internal/parser"
	"github.com/theoryandpractice/sitekit/internal/projects"
	"github.com/theoryandpractice/sitekit/internal/publications"
	"github.com/theoryandpractice/sitekit/internal/site"
	"github.com/theoryandpractice/sitekit/internal/storage"
)

// PagesFile is the data file holding page metadata after the page hooks ran.
const PagesFile = "pages.json"

// DefaultPipeline returns every plugin in registration order.
func DefaultPipeline() *site.Pipeline {
	return site.NewPipeline(
		collaborators.Plugin{},
		projects.Plugin{},
		media.Plugin{},
		publications.Plugin{},
		assets.Plugin{},
	)
}

// SectionInfo summarizes one context section.
type SectionInfo struct {
	Key     string `json:"key"`
	Records int    `json:"records"`
}

// Service coordinates generation, the current context and the index.
type Service struct {
	settings site.Settings
	pagesDir string
	store    storage.Provider
	db       index.RecordIndex
	pipeline *site.Pipeline
	logger   *slog.Logger

	mu          sync.RWMutex
	current     site.Context
	pages       []*site.Page
	sums        map[string]string
	generatedAt time.Time
}

// New creates a service. db may be nil, in which case search is unavailable.
// pagesDir is relative to the content directory.
func New(settings site.Settings, pagesDir string, store storage.Provider, db index.RecordIndex, logger *slog.Logger) *Service {
	return &Service{
		settings: settings,
		pagesDir: pagesDir,
		store:    store,
		db:       db,
		pipeline: DefaultPipeline(),
		logger:   logger,
		current:  site.Context{},
		sums:     map[string]string{},
	}
}

// Regenerate runs the full pipeline, swaps in the new context and syncs the
// index. It returns the context keys whose content changed, sorted.
func (s *Service) Regenerate(ctx context.Context) ([]string, error) {
	g := site.NewGenerator(s.settings, s.logger)
	pages, err := LoadPages(s.store, s.pagesPath())
	if err != nil {
		s.logger.Warn("load pages failed", slog.String("error", err.Error()))
	}
	g.Pages = pages

	s.pipeline.Run(ctx, g)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sums := make(map[string]string, len(g.Context))
	for key, v := range g.Context {
		cs, err := checksum.JSON(v)
		if err != nil {
			return nil, fmt.Errorf("siteservice: checksum %s: %w", key, err)
		}
		sums[key] = cs
	}

	s.mu.Lock()
	var changed []string
	for key, cs := range sums {
		if s.sums[key] != cs {
			changed = append(changed, key)
		}
	}
	for key := range s.sums {
		if _, ok := sums[key]; !ok {
			changed = append(changed, key)
		}
	}
	s.current = g.Context
	s.pages = g.Pages
	s.sums = sums
	s.generatedAt = time.Now()
	s.mu.Unlock()

	slices.Sort(changed)

	if s.db != nil {
		if _, err := index.Sync(s.db, Records(g.Context), s.logger); err != nil {
			return changed, fmt.Errorf("siteservice: sync index: %w", err)
		}
	}

	s.logger.Info("context regenerated",
		slog.Int("sections", len(sums)),
		slog.Any("changed", changed))
	return changed, nil
}

// pagesPath returns the pages directory relative to the store root.
func (s *Service) pagesPath() string {
	content := cmp.Or(s.settings.Path, "content")
	if filepath.IsAbs(content) {
		if rel, err := filepath.Rel(s.store.Root(), content); err == nil {
			content = rel
		}
	}
	return filepath.ToSlash(filepath.Join(content, s.pagesDir))
}

// WriteData writes every context section and the page metadata as JSON
// files into dir (relative to the store root).
func (s *Service) WriteData(dir string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.current.WriteJSON(s.store, dir); err != nil {
		return err
	}
	if len(s.pages) == 0 {
		return nil
	}
	data, err := json.MarshalIndent(s.pages, "", "  ")
	if err != nil {
		return fmt.Errorf("siteservice: encode pages: %w", err)
	}
	return s.store.Write(path.Join(dir, PagesFile), append(data, '\n'))
}

// Sections lists the current context keys with their record counts.
func (s *Service) Sections() []SectionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := Records(s.current)
	out := make([]SectionInfo, 0, len(s.current))
	for _, key := range s.current.Keys() {
		out = append(out, SectionInfo{Key: key, Records: len(recs[kindOf[key]])})
	}
	return out
}

// Context returns a shallow copy of the current context.
func (s *Service) Context() site.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(site.Context, len(s.current))
	for k, v := range s.current {
		out[k] = v
	}
	return out
}

// Section returns one context section.
func (s *Service) Section(key string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.current[key]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return v, nil
}

// Pages returns the pages of the last generation.
func (s *Service) Pages() []*site.Page {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pages
}

// GeneratedAt returns the time of the last successful regeneration.
func (s *Service) GeneratedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generatedAt
}

// Search delegates to the index. kind may be a record kind or a context key.
func (s *Service) Search(_ context.Context, query, kind string, limit int) ([]index.SearchResult, error) {
	if s.db == nil {
		return nil, fmt.Errorf("siteservice: search index not configured")
	}
	if k, ok := kindOf[kind]; ok {
		kind = k
	}
	return s.db.Search(query, kind, limit)
}

// kindOf maps context keys to record kinds.
var kindOf = map[string]string{
	collaborators.ContextKey: models.KindCollaborator,
	projects.ContextKey:      models.KindProject,
	media.ContextKey:         models.KindMedia,
	publications.ContextKey:  models.KindPublication,
}

// Records flattens a context into index records keyed by kind. Sections
// that failed to load are absent.
func Records(c site.Context) map[string][]models.Record {
	out := make(map[string][]models.Record)
	if d, ok := c[collaborators.ContextKey].(collaborators.Data); ok {
		out[models.KindCollaborator] = collaborators.Records(d)
	}
	if d, ok := c[projects.ContextKey].(projects.Data); ok {
		out[models.KindProject] = projects.Records(d)
	}
	if d, ok := c[media.ContextKey].(media.Data); ok {
		out[models.KindMedia] = media.Records(d)
	}
	if d, ok := c[publications.ContextKey].(publications.Data); ok {
		out[models.KindPublication] = publications.Records(d)
	}
	return out
}

// LoadPages parses every Markdown page under dir. A missing directory yields
// no pages.
func LoadPages(store storage.Provider, dir string) ([]*site.Page, error) {
	metas, err := store.List(dir, ".md")
	if err != nil {
		return nil, err
	}
	pages := make([]*site.Page, 0, len(metas))
	for _, m := range metas {
		data, err := store.Read(m.Path)
		if err != nil {
			return pages, err
		}
		res, err := parser.Parse(data)
		if err != nil {
			return pages, fmt.Errorf("siteservice: parse %s: %w", m.Path, err)
		}
		meta := res.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		if _, ok := meta["title"]; !ok && res.Title != "" {
			meta["title"] = res.Title
		}
		pages = append(pages, &site.Page{Path: m.Path, Metadata: meta})
	}
	return pages, nil
}
