// Package media loads the media-and-outreach YAML file.
package media

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/theoryandpractice/sitekit/internal/dates"
	"github.com/theoryandpractice/sitekit/internal/models"
	"github.com/theoryandpractice/sitekit/internal/site"
)

// ContextKey is the generator context key the plugin populates.
const ContextKey = "media"

const (
	defaultView = "cards"
	defaultIcon = "fa-file"
)

// Settings are the page-wide display settings.
type Settings struct {
	DefaultView string `yaml:"default_view" json:"default_view"`
}

// Category is a declared media category.
type Category struct {
	ID          string `yaml:"id" json:"id"`
	Title       string `yaml:"title,omitempty" json:"title,omitempty"`
	Icon        string `yaml:"icon,omitempty" json:"icon,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Embed describes embeddable media for an item.
type Embed struct {
	Type string `yaml:"type" json:"type"`
	ID   string `yaml:"id,omitempty" json:"id,omitempty"`
	Src  string `yaml:"src,omitempty" json:"src,omitempty"`
}

// Item is one media mention. DateObj, Year, CategoryTitle and CategoryIcon
// are derived at load time.
type Item struct {
	Title       string         `yaml:"title" json:"title"`
	Outlet      string         `yaml:"outlet" json:"outlet"`
	Category    string         `yaml:"category" json:"category"`
	Date        string         `yaml:"date" json:"date,omitempty"`
	URL         string         `yaml:"url" json:"url"`
	Description string         `yaml:"description" json:"description"`
	Featured    bool           `yaml:"featured" json:"featured"`
	Image       string         `yaml:"image" json:"image,omitempty"`
	Embed       *Embed         `yaml:"embed" json:"embed,omitempty"`
	Extra       map[string]any `yaml:",inline" json:"-"`

	DateObj       *time.Time `yaml:"-" json:"date_obj"`
	Year          *int       `yaml:"-" json:"year"`
	CategoryTitle string     `yaml:"-" json:"category_title"`
	CategoryIcon  string     `yaml:"-" json:"category_icon"`
}

// MarshalJSON writes the keys in Extra next to the known fields.
func (it Item) MarshalJSON() ([]byte, error) {
	type plain Item
	return site.MarshalInline(plain(it), it.Extra)
}

// File is the on-disk layout of the media YAML.
type File struct {
	Settings   Settings   `yaml:"settings"`
	Categories []Category `yaml:"categories"`
	Items      []Item     `yaml:"items"`
}

// Group is a non-empty category with its items.
type Group struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
	MediaItems  []Item `json:"media_items"`
}

// Data is the value stored under ContextKey.
type Data struct {
	Settings      Settings   `json:"settings"`
	Categories    []Group    `json:"categories"`
	AllCategories []Category `json:"all_categories"`
	AllItems      []Item     `json:"all_items"`
	Years         []int      `json:"years"`
	TotalCount    int        `json:"total_count"`
}

// Build derives dates and category labels, sorts the items and groups them.
func Build(f File) Data {
	settings := f.Settings
	if settings.DefaultView == "" {
		settings.DefaultView = defaultView
	}

	byID := make(map[string]Category, len(f.Categories))
	for _, c := range f.Categories {
		byID[c.ID] = c
	}

	items := make([]Item, len(f.Items))
	for i, it := range f.Items {
		it.DateObj = dates.Ptr(it.Date)
		it.Year = nil
		if it.DateObj != nil {
			y := it.DateObj.Year()
			it.Year = &y
		}
		if c, ok := byID[it.Category]; ok {
			it.CategoryTitle = cmp.Or(c.Title, it.Category)
			it.CategoryIcon = cmp.Or(c.Icon, defaultIcon)
		} else {
			it.CategoryTitle = it.Category
			it.CategoryIcon = defaultIcon
		}
		items[i] = it
	}
	Sort(items)

	all := f.Categories
	if all == nil {
		all = []Category{}
	}
	return Data{
		Settings:      settings,
		Categories:    group(f.Categories, items),
		AllCategories: all,
		AllItems:      items,
		Years:         years(items),
		TotalCount:    len(items),
	}
}

// Sort orders items featured first, then newest first. Undated items follow
// dated ones; ties keep their input order.
func Sort(items []Item) {
	slices.SortStableFunc(items, func(a, b Item) int {
		if a.Featured != b.Featured {
			if a.Featured {
				return -1
			}
			return 1
		}
		switch {
		case a.DateObj == nil && b.DateObj == nil:
			return 0
		case a.DateObj == nil:
			return 1
		case b.DateObj == nil:
			return -1
		}
		return b.DateObj.Compare(*a.DateObj)
	})
}

func years(items []Item) []int {
	var out []int
	for _, it := range items {
		if it.Year != nil && !slices.Contains(out, *it.Year) {
			out = append(out, *it.Year)
		}
	}
	slices.Sort(out)
	slices.Reverse(out)
	if out == nil {
		out = []int{}
	}
	return out
}

func group(categories []Category, items []Item) []Group {
	out := []Group{}
	for _, c := range categories {
		var members []Item
		for _, it := range items {
			if it.Category == c.ID {
				members = append(members, it)
			}
		}
		if len(members) == 0 {
			continue
		}
		out = append(out, Group{
			ID:          c.ID,
			Title:       cmp.Or(c.Title, c.ID),
			Icon:        cmp.Or(c.Icon, defaultIcon),
			Description: c.Description,
			MediaItems:  members,
		})
	}
	return out
}

// Records flattens the data into searchable records.
func Records(d Data) []models.Record {
	out := make([]models.Record, 0, len(d.AllItems))
	for _, it := range d.AllItems {
		var year int
		if it.Year != nil {
			year = *it.Year
		}
		out = append(out, models.Record{
			Kind:     models.KindMedia,
			ID:       cmp.Or(it.URL, it.Title),
			Title:    it.Title,
			Body:     it.Outlet + " " + it.Description,
			Category: it.Category,
			URL:      it.URL,
			Year:     year,
		})
	}
	return out
}

// Plugin populates the media context key.
type Plugin struct{}

// Name implements site.Plugin.
func (Plugin) Name() string { return "media" }

// GeneratorInit loads the media source named in the settings.
func (p Plugin) GeneratorInit(_ context.Context, g *site.Generator) {
	var f File
	if _, ok := g.LoadYAML(p.Name(), g.Settings.MediaSrc, &f); !ok {
		return
	}
	d := Build(f)
	g.Context[ContextKey] = d
	g.Logger.Info("loaded media items", slog.Int("items", d.TotalCount))
}
