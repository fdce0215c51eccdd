// Package site models the page generator the data plugins attach to: the
// settings they read, the context they populate and the lifecycle hooks
// they are called from.
package site

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/theoryandpractice/sitekit/internal/storage"
)

// Settings holds the generator settings visible to plugins.
type Settings struct {
	Path                    string // content directory
	OutputPath              string
	SiteURL                 string
	RelativeURLs            bool
	CollaboratorsSrc        string
	ProjectsSrc             string
	MediaSrc                string
	SelectedPublicationsSrc string
}

// Context is the key/value structure templates render from.
type Context map[string]any

// Keys returns the context keys in sorted order.
func (c Context) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// WriteJSON writes one <key>.json file per context key into dir.
func (c Context) WriteJSON(store storage.Provider, dir string) error {
	for _, key := range c.Keys() {
		data, err := json.MarshalIndent(c[key], "", "  ")
		if err != nil {
			return fmt.Errorf("site: encode %s: %w", key, err)
		}
		if err := store.Write(path.Join(dir, key+".json"), append(data, '\n')); err != nil {
			return fmt.Errorf("site: write %s: %w", key, err)
		}
	}
	return nil
}

// Page is a content page and its metadata.
type Page struct {
	Path     string         `json:"path"`
	Metadata map[string]any `json:"metadata"`
}

// Generator carries the state shared by all hooks of one generation run.
type Generator struct {
	Settings Settings
	Context  Context
	Pages    []*Page
	Logger   *slog.Logger
}

// NewGenerator returns a generator with an empty context.
func NewGenerator(settings Settings, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		Settings: settings,
		Context:  Context{},
		Logger:   logger,
	}
}

// ResolvePath resolves a settings-provided path. Relative paths are taken
// from the project root, which is the parent of the content directory unless
// that directory is literally "content".
func ResolvePath(s Settings, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	contentPath := s.Path
	if contentPath == "" {
		contentPath = "content"
	}
	base := "."
	if contentPath != "content" {
		base = filepath.Dir(contentPath)
	}
	return filepath.Join(base, p)
}

// LoadYAML resolves src, reads it and decodes it into v. It returns the
// resolved path and false when the source is unset, missing or invalid; the
// problem is logged under the plugin's name.
func (g *Generator) LoadYAML(plugin, src string, v any) (string, bool) {
	if src == "" {
		return "", false
	}
	p := ResolvePath(g.Settings, src)
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		g.Logger.Warn("YAML file not found", slog.String("plugin", plugin), slog.String("path", p))
		return p, false
	}
	if err == nil {
		err = yaml.Unmarshal(data, v)
	}
	if err != nil {
		g.Logger.Error("failed to load YAML",
			slog.String("plugin", plugin),
			slog.String("path", p),
			slog.String("error", err.Error()))
		return p, false
	}
	return p, true
}
