// Package collaborators loads the collaborators YAML file and groups people
// by category for the team page.
package collaborators

import (
	"cmp"
	"context"
	"log/slog"
	"slices"

	"github.com/theoryandpractice/sitekit/internal/models"
	"github.com/theoryandpractice/sitekit/internal/site"
)

// ContextKey is the generator context key the plugin populates.
const ContextKey = "collaborators"

const (
	defaultImageShape = "circular"
	defaultImageSize  = "150px"
)

// Settings are the page-wide display settings.
type Settings struct {
	DefaultImageShape string `yaml:"default_image_shape" json:"default_image_shape"`
	ImageSize         string `yaml:"image_size" json:"image_size"`
}

// Category is a declared group of people.
type Category struct {
	ID          string `yaml:"id" json:"id"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
}

// Person is one collaborator entry. Keys the loader does not know about are
// carried in Extra.
type Person struct {
	Name            string            `yaml:"name" json:"name"`
	Category        string            `yaml:"category" json:"category"`
	Role            string            `yaml:"role,omitempty" json:"role,omitempty"`
	Affiliation     string            `yaml:"affiliation,omitempty" json:"affiliation,omitempty"`
	StartYear       *int              `yaml:"start_year,omitempty" json:"start_year"`
	EndYear         *int              `yaml:"end_year,omitempty" json:"end_year"`
	Photo           string            `yaml:"photo,omitempty" json:"photo,omitempty"`
	ImageShape      string            `yaml:"image_shape,omitempty" json:"image_shape"`
	GraduationYear  *int              `yaml:"graduation_year,omitempty" json:"graduation_year"`
	ThesisTitle     string            `yaml:"thesis_title,omitempty" json:"thesis_title,omitempty"`
	ThesisURL       string            `yaml:"thesis_url,omitempty" json:"thesis_url,omitempty"`
	CurrentPosition string            `yaml:"current_position,omitempty" json:"current_position,omitempty"`
	Current         *bool             `yaml:"current,omitempty" json:"current,omitempty"`
	Links           map[string]string `yaml:"links,omitempty" json:"links"`
	Publications    []string          `yaml:"publications,omitempty" json:"publications"`
	Projects        []string          `yaml:"projects,omitempty" json:"projects"`
	Bio             string            `yaml:"bio,omitempty" json:"bio,omitempty"`
	Extra           map[string]any    `yaml:",inline" json:"-"`
}

// MarshalJSON writes the keys in Extra next to the known fields.
func (p Person) MarshalJSON() ([]byte, error) {
	type plain Person
	return site.MarshalInline(plain(p), p.Extra)
}

// File is the on-disk layout of the collaborators YAML.
type File struct {
	Settings   Settings   `yaml:"settings"`
	Categories []Category `yaml:"categories"`
	People     []Person   `yaml:"people"`
}

// Group is a category together with its sorted members.
type Group struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	People      []Person `json:"people"`
}

// Data is the value stored under ContextKey.
type Data struct {
	Settings   Settings `json:"settings"`
	Categories []Group  `json:"categories"`
	AllPeople  []Person `json:"all_people"`
}

// Build applies defaults and groups people by declared category. People
// whose category is not declared only appear in AllPeople.
func Build(f File) Data {
	settings := f.Settings
	if settings.DefaultImageShape == "" {
		settings.DefaultImageShape = defaultImageShape
	}
	if settings.ImageSize == "" {
		settings.ImageSize = defaultImageSize
	}

	people := make([]Person, len(f.People))
	for i, p := range f.People {
		if p.ImageShape == "" {
			p.ImageShape = settings.DefaultImageShape
		}
		if p.Publications == nil {
			p.Publications = []string{}
		}
		if p.Projects == nil {
			p.Projects = []string{}
		}
		if p.Links == nil {
			p.Links = map[string]string{}
		}
		people[i] = p
	}

	groups := make([]Group, 0, len(f.Categories))
	for _, c := range f.Categories {
		members := []Person{}
		for _, p := range people {
			if p.Category == c.ID {
				members = append(members, p)
			}
		}
		SortPeople(members)

		title := c.Title
		if title == "" {
			title = c.ID
		}
		groups = append(groups, Group{
			ID:          c.ID,
			Title:       title,
			Description: c.Description,
			People:      members,
		})
	}

	return Data{
		Settings:   settings,
		Categories: groups,
		AllPeople:  people,
	}
}

// SortPeople orders people by start year, most recent first, then by name.
// A missing start year sorts as zero.
func SortPeople(people []Person) {
	slices.SortStableFunc(people, func(a, b Person) int {
		if c := cmp.Compare(year(b.StartYear), year(a.StartYear)); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
}

func year(y *int) int {
	if y == nil {
		return 0
	}
	return *y
}

// Records flattens the data into searchable records.
func Records(d Data) []models.Record {
	out := make([]models.Record, 0, len(d.AllPeople))
	for _, p := range d.AllPeople {
		body := p.Role
		if p.Affiliation != "" {
			body += " " + p.Affiliation
		}
		if p.Bio != "" {
			body += " " + p.Bio
		}
		out = append(out, models.Record{
			Kind:     models.KindCollaborator,
			ID:       p.Name,
			Title:    p.Name,
			Body:     body,
			Category: p.Category,
			Tags:     p.Projects,
			URL:      p.Links["website"],
			Year:     year(p.StartYear),
		})
	}
	return out
}

// Plugin populates the collaborators context key.
type Plugin struct{}

// Name implements site.Plugin.
func (Plugin) Name() string { return "collaborators" }

// GeneratorInit loads the collaborators source named in the settings.
func (p Plugin) GeneratorInit(_ context.Context, g *site.Generator) {
	var f File
	if _, ok := g.LoadYAML(p.Name(), g.Settings.CollaboratorsSrc, &f); !ok {
		return
	}
	d := Build(f)
	g.Context[ContextKey] = d
	g.Logger.Info("loaded collaborators",
		slog.Int("people", len(d.AllPeople)),
		slog.Int("categories", len(f.Categories)))
}
