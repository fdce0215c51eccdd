// Package assets turns per-page stylesheet and script metadata into HTML
// tags and copies the referenced files into the output tree.
package assets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/theoryandpractice/sitekit/internal/site"
	"github.com/theoryandpractice/sitekit/internal/storage"
)

type kind struct {
	key    string
	dir    string
	ext    string
	format string
}

var kinds = []kind{
	{key: "stylesheets", dir: "css", ext: ".css", format: `<link rel="stylesheet" href="%s" type="text/css" />`},
	{key: "javascripts", dir: "js", ext: ".js", format: `<script src="%s"></script>`},
}

// Plugin implements the page and finalize hooks.
type Plugin struct{}

// Name implements site.Plugin.
func (Plugin) Name() string { return "javascript" }

// PageContext replaces comma-separated "stylesheets" and "javascripts"
// metadata with the corresponding HTML tags.
func (Plugin) PageContext(g *site.Generator, p *site.Page) {
	if p.Metadata == nil {
		return
	}
	for _, k := range kinds {
		raw, ok := p.Metadata[k.key]
		if !ok {
			continue
		}
		p.Metadata[k.key] = tags(g.Settings, k, listValue(raw))
	}
}

// listValue accepts the comma-separated string form as well as a YAML list.
func listValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		parts := make([]string, len(t))
		for i, x := range t {
			parts[i] = fmt.Sprint(x)
		}
		return strings.Join(parts, ",")
	case []string:
		return strings.Join(t, ",")
	}
	return fmt.Sprint(v)
}

// Stylesheets renders <link> tags for a comma-separated file list.
func Stylesheets(s site.Settings, list string) []string { return tags(s, kinds[0], list) }

// Javascripts renders <script> tags for a comma-separated file list.
func Javascripts(s site.Settings, list string) []string { return tags(s, kinds[1], list) }

// tags renders one tag per file in list. External http(s) URLs are used as
// they are; other names live under the kind's directory.
func tags(s site.Settings, k kind, list string) []string {
	list = strings.ReplaceAll(list, " ", "")
	out := []string{}
	for _, f := range strings.Split(list, ",") {
		if f == "" {
			continue
		}
		link := f
		if !strings.HasPrefix(f, "http://") && !strings.HasPrefix(f, "https://") {
			if s.RelativeURLs {
				link = k.dir + "/" + f
			} else {
				link = s.SiteURL + "/" + k.dir + "/" + f
			}
		}
		out = append(out, fmt.Sprintf(k.format, link))
	}
	return out
}

// Finalized copies <content>/js/**/*.js and <content>/css/**/*.css into
// <output>/js and <output>/css. Files are flattened by base name.
func (Plugin) Finalized(_ context.Context, g *site.Generator) error {
	content := g.Settings.Path
	if content == "" {
		content = "content"
	}
	if _, err := os.Stat(content); os.IsNotExist(err) {
		return nil
	}
	src, err := storage.NewFS(content)
	if err != nil {
		return fmt.Errorf("assets: %w", err)
	}

	var dest storage.Provider
	for _, k := range kinds {
		files, err := src.List(k.dir, k.ext)
		if err != nil {
			return fmt.Errorf("assets: list %s: %w", k.dir, err)
		}
		if len(files) == 0 {
			continue
		}
		if dest == nil {
			if dest, err = outputStore(g.Settings.OutputPath); err != nil {
				return err
			}
		}
		for _, f := range files {
			data, err := src.Read(f.Path)
			if err != nil {
				return fmt.Errorf("assets: %w", err)
			}
			if err := dest.Write(path.Join(k.dir, path.Base(f.Path)), data); err != nil {
				return fmt.Errorf("assets: copy %s: %w", f.Path, err)
			}
		}
		g.Logger.Debug("copied assets", slog.String("kind", k.dir), slog.Int("files", len(files)))
	}
	return nil
}

func outputStore(dir string) (storage.Provider, error) {
	if dir == "" {
		dir = "output"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("assets: create output: %w", err)
	}
	store, err := storage.NewFS(dir)
	if err != nil {
		return nil, fmt.Errorf("assets: %w", err)
	}
	return store, nil
}
