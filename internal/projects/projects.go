// Package projects loads the projects YAML file and groups project cards by
// category.
package projects

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/theoryandpractice/sitekit/internal/models"
	"github.com/theoryandpractice/sitekit/internal/site"
)

// ContextKey is the generator context key the plugin populates.
const ContextKey = "projects"

const (
	defaultCardStyle = "image"
	defaultStatus    = "active"
	githubImageURL   = "https://opengraph.githubassets.com/1/"
)

// Settings are the page-wide display settings.
type Settings struct {
	DefaultCardStyle string `yaml:"default_card_style" json:"default_card_style"`
}

// Category is a declared project group.
type Category struct {
	ID          string `yaml:"id" json:"id"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
}

// Project is one project card.
type Project struct {
	Name          string         `yaml:"name" json:"name"`
	Slug          string         `yaml:"slug" json:"slug"`
	Category      string         `yaml:"category" json:"category"`
	Status        string         `yaml:"status" json:"status"`
	Featured      *bool          `yaml:"featured" json:"featured"`
	Description   string         `yaml:"description" json:"description,omitempty"`
	Image         string         `yaml:"image" json:"image,omitempty"`
	URL           string         `yaml:"url" json:"url,omitempty"`
	GitHub        string         `yaml:"github" json:"github,omitempty"`
	Tags          []string       `yaml:"tags" json:"tags"`
	StartYear     *int           `yaml:"start_year" json:"start_year"`
	EndYear       *int           `yaml:"end_year" json:"end_year"`
	Collaborators []string       `yaml:"collaborators" json:"collaborators"`
	CardStyle     string         `yaml:"card_style" json:"card_style"`
	Extra         map[string]any `yaml:",inline" json:"-"`
}

// MarshalJSON writes the keys in Extra next to the known fields.
func (p Project) MarshalJSON() ([]byte, error) {
	type plain Project
	return site.MarshalInline(plain(p), p.Extra)
}

// IsFeatured reports the featured flag, false when unset.
func (p Project) IsFeatured() bool { return p.Featured != nil && *p.Featured }

// File is the on-disk layout of the projects YAML.
type File struct {
	Settings   Settings   `yaml:"settings"`
	Categories []Category `yaml:"categories"`
	Projects   []Project  `yaml:"projects"`
}

// Group is a category together with its sorted projects.
type Group struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Projects    []Project `json:"projects"`
}

// Data is the value stored under ContextKey.
type Data struct {
	Settings    Settings  `json:"settings"`
	Categories  []Group   `json:"categories"`
	AllProjects []Project `json:"all_projects"`
}

// Slug derives a URL slug from a project name.
func Slug(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "-")
}

// Normalize fills the defaults of a single project.
func Normalize(p Project, cardStyle string) Project {
	if p.CardStyle == "" {
		p.CardStyle = cardStyle
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Collaborators == nil {
		p.Collaborators = []string{}
	}
	if p.Slug == "" {
		p.Slug = Slug(p.Name)
	}
	if p.Status == "" {
		p.Status = defaultStatus
	}
	if p.Featured == nil {
		f := false
		p.Featured = &f
	}
	if p.Image == "" && p.GitHub != "" {
		p.Image = githubImageURL + p.GitHub
	}
	return p
}

// Build applies defaults and groups projects by declared category.
func Build(f File) Data {
	settings := f.Settings
	if settings.DefaultCardStyle == "" {
		settings.DefaultCardStyle = defaultCardStyle
	}

	all := make([]Project, len(f.Projects))
	for i, p := range f.Projects {
		all[i] = Normalize(p, settings.DefaultCardStyle)
	}

	groups := make([]Group, 0, len(f.Categories))
	for _, c := range f.Categories {
		members := []Project{}
		for _, p := range all {
			if p.Category == c.ID {
				members = append(members, p)
			}
		}
		Sort(members)

		title := c.Title
		if title == "" {
			title = c.ID
		}
		groups = append(groups, Group{
			ID:          c.ID,
			Title:       title,
			Description: c.Description,
			Projects:    members,
		})
	}

	return Data{
		Settings:    settings,
		Categories:  groups,
		AllProjects: all,
	}
}

// Sort orders projects featured first, then by start year (most recent
// first), then by name. Equal keys keep their input order.
func Sort(ps []Project) {
	slices.SortStableFunc(ps, func(a, b Project) int {
		if a.IsFeatured() != b.IsFeatured() {
			if a.IsFeatured() {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(startYear(b), startYear(a)); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
}

func startYear(p Project) int {
	if p.StartYear == nil {
		return 0
	}
	return *p.StartYear
}

// Records flattens the data into searchable records.
func Records(d Data) []models.Record {
	out := make([]models.Record, 0, len(d.AllProjects))
	for _, p := range d.AllProjects {
		url := p.URL
		if url == "" && p.GitHub != "" {
			url = "https://github.com/" + p.GitHub
		}
		out = append(out, models.Record{
			Kind:     models.KindProject,
			ID:       p.Slug,
			Title:    p.Name,
			Body:     p.Description,
			Category: p.Category,
			Tags:     p.Tags,
			URL:      url,
			Year:     startYear(p),
		})
	}
	return out
}

// Plugin populates the projects context key.
type Plugin struct{}

// Name implements site.Plugin.
func (Plugin) Name() string { return "projects" }

// GeneratorInit loads the projects source named in the settings.
func (p Plugin) GeneratorInit(_ context.Context, g *site.Generator) {
	var f File
	if _, ok := g.LoadYAML(p.Name(), g.Settings.ProjectsSrc, &f); !ok {
		return
	}
	d := Build(f)
	g.Context[ContextKey] = d
	g.Logger.Info("loaded projects",
		slog.Int("projects", len(d.AllProjects)),
		slog.Int("categories", len(f.Categories)))
}
