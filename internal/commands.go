package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/theoryandpractice/sitekit/internal/alerts"
	"github.com/theoryandpractice/sitekit/internal/citations"
	"github.com/theoryandpractice/sitekit/internal/collabyears"
	"github.com/theoryandpractice/sitekit/internal/collaborators"
	"github.com/theoryandpractice/sitekit/internal/media"
	"github.com/theoryandpractice/sitekit/internal/mediasearch"
	"github.com/theoryandpractice/sitekit/internal/ogmeta"
	"github.com/theoryandpractice/sitekit/internal/photos"
	"github.com/theoryandpractice/sitekit/internal/publications"
	"github.com/theoryandpractice/sitekit/internal/scholar"
	"github.com/theoryandpractice/sitekit/internal/site"
	"github.com/theoryandpractice/sitekit/internal/storage"
)

const dryRunNote = "\n[DRY RUN] No changes written. Run with --write to apply changes."

// UpdateCitations refreshes the citation cache of the selected publications.
// The cache file is only rewritten when write is set.
func UpdateCitations(ctx context.Context, write bool, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	settings := cfg.Site.Settings()

	yamlPath := site.ResolvePath(settings, settings.SelectedPublicationsSrc)
	file, db, err := publications.Open(yamlPath)
	if err != nil {
		return err
	}
	cachePath, manualPath := publications.CachePaths(yamlPath)
	existing, err := citations.Load(cachePath)
	if err != nil {
		return err
	}
	manual, err := citations.Load(manualPath)
	if err != nil {
		return err
	}

	chain := scholar.NewChain(app.logger,
		scholar.NewOpenAlex(cfg.Scholar.OpenAlexURL, cfg.Scholar.UserAgent, cfg.Scholar.Timeout),
		scholar.NewSemanticScholar(cfg.Scholar.SemanticScholarURL, cfg.Scholar.UserAgent, cfg.Scholar.Timeout),
	)
	u := &citations.Updater{Provider: chain, Delay: cfg.Scholar.Delay, Out: app.out, Logger: app.logger}

	next, rep, err := u.Update(ctx, file.Keys(), db, manual, existing)
	if err != nil {
		return fmt.Errorf("update citations: %w", err)
	}

	out := app.out
	fmt.Fprintf(out, "\nFetched %d, manual %d, cached %d, no data %d, missing from BibTeX %d\n",
		rep.Fetched, rep.Manual, rep.Cached, rep.NoData, rep.Missing)
	diff := citations.Diff(existing, next)
	if len(diff) == 0 {
		fmt.Fprintln(out, "No changes.")
	} else {
		fmt.Fprintln(out, "\nProposed changes:")
		for _, line := range diff {
			fmt.Fprintf(out, "  %s\n", line)
		}
	}
	fmt.Fprintf(out, "Total citations: %s\n", citations.FormatCount(next.Total()))

	if !write {
		fmt.Fprintln(out, dryRunNote)
		return nil
	}
	data, err := next.Marshal()
	if err != nil {
		return err
	}
	if err := writeFile(cachePath, data); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nSaved %s\n", cachePath)
	return nil
}

// PhotoOptions are the flags of the photo fetcher.
type PhotoOptions struct {
	Write bool
	Force bool
}

// FetchPhotos downloads missing collaborator avatars.
func FetchPhotos(ctx context.Context, po PhotoOptions, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	var f collaborators.File
	if err := readYAML(site.ResolvePath(cfg.Site.Settings(), cfg.Site.CollaboratorsSrc), &f); err != nil {
		return err
	}
	store, err := storage.NewFS(".")
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	fetcher := photos.NewFetcher(store, app.out, app.logger)
	fetcher.OutputDir = cfg.Photos.OutputDir
	fetcher.ImageSize = cfg.Photos.ImageSize
	fetcher.GitHubURL = cfg.Photos.GitHubURL
	fetcher.BlueskyURL = cfg.Photos.BlueskyURL
	fetcher.Client.Timeout = cfg.Photos.Timeout
	fetcher.Write = po.Write
	fetcher.Force = po.Force

	fmt.Fprintf(app.out, "Found %d collaborators\n\n", len(f.People))
	stats := fetcher.Run(ctx, f.People)
	stats.WriteSummary(app.out)
	if !po.Write {
		fmt.Fprintln(app.out, dryRunNote)
	}
	return ctx.Err()
}

// UpdateCollaboratorYears fills in missing start and end years from
// co-authored works.
func UpdateCollaboratorYears(ctx context.Context, write bool, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	path := site.ResolvePath(cfg.Site.Settings(), cfg.Site.CollaboratorsSrc)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	doc, err := collabyears.Parse(data)
	if err != nil {
		return err
	}

	u := &collabyears.Updater{
		Source:  scholar.NewOpenAlex(cfg.Scholar.OpenAlexURL, cfg.Scholar.UserAgent, cfg.Scholar.Timeout),
		OwnerID: cfg.Scholar.OwnerOpenAlexID,
		Delay:   cfg.Scholar.AuthorDelay,
		Out:     app.out,
		Logger:  app.logger,
	}
	rep, err := u.Update(ctx, doc)
	if err != nil {
		return fmt.Errorf("update collaborator years: %w", err)
	}
	collabyears.WriteSummary(app.out, rep)

	switch {
	case !write:
		fmt.Fprintln(app.out, dryRunNote)
		return nil
	case rep.Updated == 0:
		fmt.Fprintln(app.out, "\nNo changes to save.")
		return nil
	}
	out, err := doc.Bytes()
	if err != nil {
		return err
	}
	if err := writeFile(path, out); err != nil {
		return err
	}
	fmt.Fprintf(app.out, "\nSaved changes to %s\n", path)
	return nil
}

// MediaSearchOptions are the flags of the news search.
type MediaSearchOptions struct {
	Days   int
	Output string
}

// SearchMedia looks for recent news mentions that are not yet in the media
// file and prints them as YAML suggestions.
func SearchMedia(ctx context.Context, mo MediaSearchOptions, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config.MediaSearch

	existing, err := existingMediaURLs(app.config)
	if err != nil {
		return err
	}

	var src mediasearch.Source = mediasearch.NewGoogleNews(cfg.NewsURL, cfg.Timeout)
	if cfg.SerpAPIKey != "" {
		src = mediasearch.NewSerpAPI("", cfg.SerpAPIKey, cfg.Timeout)
	}
	days := cfg.Days
	if mo.Days > 0 {
		days = mo.Days
	}
	s := &mediasearch.Searcher{
		Source:  src,
		Queries: cfg.SearchQueries(),
		Days:    days,
		Limit:   cfg.Limit,
		Out:     app.out,
		Logger:  app.logger,
	}
	fmt.Fprintf(app.out, "Searching for media mentions (last %d days) via %s...\n\n", days, src.Name())
	items := s.Run(ctx, existing)
	if len(items) == 0 {
		fmt.Fprintln(app.out, "No new media mentions found.")
		return ctx.Err()
	}

	header := []string{
		"Suggested media items from news search",
		"Generated: " + time.Now().Format("2006-01-02 15:04"),
		"Review and copy relevant items to " + app.config.Site.MediaSrc,
	}
	return emitSuggestions(app.out, mo.Output, header, items)
}

// AlertOptions are the flags of the Google Alerts importer.
type AlertOptions struct {
	Mbox          string
	Output        string
	FetchMetadata bool
	Limit         int
	Since         *time.Time
}

// ImportAlerts reads a Google Alerts mailbox export and prints the new
// articles as YAML suggestions.
func ImportAlerts(ctx context.Context, ao AlertOptions, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	f, err := os.Open(ao.Mbox)
	if err != nil {
		return fmt.Errorf("open mbox: %w", err)
	}
	defer f.Close()

	fmt.Fprintf(app.out, "Reading %s...\n", ao.Mbox)
	col, err := alerts.Collect(f, alerts.Options{Since: ao.Since, Limit: ao.Limit}, app.logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(app.out, "Processed %d alert emails, found %d unique articles\n", col.Emails, len(col.Articles))

	existing, err := existingMediaURLs(app.config)
	if err != nil {
		return err
	}
	articles := col.Articles[:0:0]
	for _, a := range col.Articles {
		if !mediasearch.IsDuplicate(a.URL, existing) {
			articles = append(articles, a)
		}
	}
	fmt.Fprintf(app.out, "%d articles are not yet in the media file\n\n", len(articles))
	if len(articles) == 0 {
		return nil
	}

	var fetcher alerts.MetadataFetcher
	if ao.FetchMetadata {
		fetcher = ogmeta.NewFetcher(10*time.Second, 512)
		fmt.Fprintln(app.out, "Fetching page metadata...")
	}
	items := alerts.Suggest(ctx, articles, fetcher, app.out, app.logger)

	header := []string{
		"Suggested media items from Google Alerts",
		"Source: " + filepath.Base(ao.Mbox),
		"Review and copy relevant items to " + app.config.Site.MediaSrc,
	}
	return emitSuggestions(app.out, ao.Output, header, items)
}

// existingMediaURLs returns the URLs already listed in the media file. A
// missing file yields none.
func existingMediaURLs(cfg *Config) ([]string, error) {
	path := site.ResolvePath(cfg.Site.Settings(), cfg.Site.MediaSrc)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return media.ExistingURLs(data)
}

// emitSuggestions prints the suggestions and, when output is set, also
// writes them to that file.
func emitSuggestions(out io.Writer, output string, header []string, items []media.Suggestion) error {
	fmt.Fprintln(out, "\n# --- Suggested YAML ---")
	if err := media.WriteSuggestions(out, header, items); err != nil {
		return err
	}
	if output == "" {
		return nil
	}
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create %s: %w", output, err)
	}
	if err := media.WriteSuggestions(f, header, items); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", output, err)
	}
	fmt.Fprintf(out, "\nSaved %d suggestions to %s\n", len(items), output)
	return nil
}

func readYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// writeFile atomically replaces path through a store rooted at its directory.
func writeFile(path string, data []byte) error {
	store, err := storage.NewFS(filepath.Dir(path))
	if err != nil {
		return err
	}
	return store.Write(filepath.Base(path), data)
}
