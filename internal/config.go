package internal

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/theoryandpractice/sitekit/internal/mediasearch"
	"github.com/theoryandpractice/sitekit/internal/photos"
	"github.com/theoryandpractice/sitekit/internal/site"
)

// Config represents the application configuration.
type Config struct {
	App         ApplicationConfig `yaml:"app"`
	Site        SiteConfig        `yaml:"site"`
	Index       IndexConfig       `yaml:"index"`
	Scholar     ScholarConfig     `yaml:"scholar"`
	Photos      PhotosConfig      `yaml:"photos"`
	MediaSearch MediaSearchConfig `yaml:"media_search"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Site.Validate(); err != nil {
		return fmt.Errorf("site: %w", err)
	}
	if err := c.Index.Validate(); err != nil {
		return fmt.Errorf("index: %w", err)
	}
	if err := c.Scholar.Validate(); err != nil {
		return fmt.Errorf("scholar: %w", err)
	}
	if err := c.Photos.Validate(); err != nil {
		return fmt.Errorf("photos: %w", err)
	}
	if err := c.MediaSearch.Validate(); err != nil {
		return fmt.Errorf("media_search: %w", err)
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds the preview server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SiteConfig mirrors the generator settings plus where generated data goes.
type SiteConfig struct {
	Path                    string `yaml:"path"`
	OutputPath              string `yaml:"output_path"`
	DataDir                 string `yaml:"data_dir"`
	PagesDir                string `yaml:"pages_dir"`
	SiteURL                 string `yaml:"site_url"`
	RelativeURLs            bool   `yaml:"relative_urls"`
	CollaboratorsSrc        string `yaml:"collaborators_src"`
	ProjectsSrc             string `yaml:"projects_src"`
	MediaSrc                string `yaml:"media_src"`
	SelectedPublicationsSrc string `yaml:"selected_publications_src"`
}

// Validate validates the site configuration.
func (c *SiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.OutputPath, validation.Required),
		validation.Field(&c.DataDir, validation.Required),
		validation.Field(&c.SiteURL, is.URL),
	)
}

// Settings returns the generator settings.
func (c *SiteConfig) Settings() site.Settings {
	return site.Settings{
		Path:                    c.Path,
		OutputPath:              c.OutputPath,
		SiteURL:                 c.SiteURL,
		RelativeURLs:            c.RelativeURLs,
		CollaboratorsSrc:        c.CollaboratorsSrc,
		ProjectsSrc:             c.ProjectsSrc,
		MediaSrc:                c.MediaSrc,
		SelectedPublicationsSrc: c.SelectedPublicationsSrc,
	}
}

// IndexConfig holds the search index location.
type IndexConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the index configuration.
func (c *IndexConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// ScholarConfig configures the bibliographic API clients.
type ScholarConfig struct {
	UserAgent          string        `yaml:"user_agent"`
	OwnerOpenAlexID    string        `yaml:"owner_openalex_id"`
	Timeout            time.Duration `yaml:"timeout"`
	Delay              time.Duration `yaml:"delay"`
	AuthorDelay        time.Duration `yaml:"author_delay"`
	OpenAlexURL        string        `yaml:"openalex_url"`
	SemanticScholarURL string        `yaml:"semantic_scholar_url"`
}

// Validate validates the scholar configuration.
func (c *ScholarConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.UserAgent, validation.Required),
		validation.Field(&c.Timeout, validation.Required),
		validation.Field(&c.Delay, validation.Min(time.Duration(0))),
		validation.Field(&c.AuthorDelay, validation.Min(time.Duration(0))),
		validation.Field(&c.OpenAlexURL, is.URL),
		validation.Field(&c.SemanticScholarURL, is.URL),
	)
}

// PhotosConfig configures the avatar fetcher.
type PhotosConfig struct {
	OutputDir  string        `yaml:"output_dir"`
	ImageSize  int           `yaml:"image_size"`
	GitHubURL  string        `yaml:"github_url"`
	BlueskyURL string        `yaml:"bluesky_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Validate validates the photos configuration.
func (c *PhotosConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.OutputDir, validation.Required),
		validation.Field(&c.ImageSize, validation.Required, validation.Min(1)),
		validation.Field(&c.GitHubURL, is.URL),
		validation.Field(&c.BlueskyURL, is.URL),
		validation.Field(&c.Timeout, validation.Required),
	)
}

// MediaSearchConfig configures the news search.
type MediaSearchConfig struct {
	Name       string        `yaml:"name"`
	Queries    []string      `yaml:"queries"`
	Days       int           `yaml:"days"`
	Limit      int           `yaml:"limit"`
	SerpAPIKey string        `yaml:"serpapi_key"`
	NewsURL    string        `yaml:"news_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Validate validates the media search configuration.
func (c *MediaSearchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Name, validation.When(len(c.Queries) == 0, validation.Required)),
		validation.Field(&c.Days, validation.Required, validation.Min(1)),
		validation.Field(&c.Limit, validation.Required, validation.Min(1)),
		validation.Field(&c.NewsURL, is.URL),
		validation.Field(&c.Timeout, validation.Required),
	)
}

// SearchQueries returns the configured queries, or the default set for Name.
func (c *MediaSearchConfig) SearchQueries() []string {
	if len(c.Queries) > 0 {
		return c.Queries
	}
	return mediasearch.DefaultQueries(c.Name)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8000,
			},
		},
		Site: SiteConfig{
			Path:                    "content",
			OutputPath:              "output",
			DataDir:                 "output/data",
			PagesDir:                "pages",
			CollaboratorsSrc:        "content/collaborators.yml",
			ProjectsSrc:             "content/projects.yml",
			MediaSrc:                "content/media.yml",
			SelectedPublicationsSrc: "content/publications/selected.yml",
		},
		Index: IndexConfig{
			Path: "./sitekit.db",
		},
		Scholar: ScholarConfig{
			UserAgent:       "TheoryAndPractice/1.0 (https://theoryandpractice.org; mailto:kyle.cranmer@wisc.edu)",
			OwnerOpenAlexID: "A5108167175",
			Timeout:         15 * time.Second,
			Delay:           100 * time.Millisecond,
			AuthorDelay:     300 * time.Millisecond,
		},
		Photos: PhotosConfig{
			OutputDir:  photos.DefaultOutputDir,
			ImageSize:  photos.DefaultImageSize,
			GitHubURL:  photos.DefaultGitHubURL,
			BlueskyURL: photos.DefaultBlueskyURL,
			Timeout:    30 * time.Second,
		},
		MediaSearch: MediaSearchConfig{
			Name:       "Kyle Cranmer",
			Days:       mediasearch.DefaultDays,
			Limit:      mediasearch.DefaultLimit,
			NewsURL:    mediasearch.DefaultNewsURL,
			SerpAPIKey: os.Getenv("SERPAPI_KEY"),
			Timeout:    15 * time.Second,
		},
	}
}
