// Package photos downloads collaborator avatars from GitHub and Bluesky into
// the site's image directory.
package photos

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/theoryandpractice/sitekit/internal/collaborators"
	"github.com/theoryandpractice/sitekit/internal/storage"
)

// Defaults for the public endpoints.
const (
	DefaultGitHubURL  = "https://github.com"
	DefaultBlueskyURL = "https://public.api.bsky.app/xrpc"
	DefaultImageSize  = 200
	DefaultOutputDir  = "content/images/collaborators"
)

// Extensions a local photo may have, in lookup order.
var Extensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

var slugReplacer = strings.NewReplacer(" ", "-", ".", "-", ",", "-", "'", "-", `"`, "-", "(", "-", ")", "-")

// Slug turns a person's name into a file name stem.
func Slug(name string) string {
	s := slugReplacer.Replace(strings.ToLower(name))
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	return strings.Trim(s, "-")
}

// Stats counts the outcome per person.
type Stats struct {
	Downloaded int `json:"downloaded"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
	NoSource   int `json:"no_source"`
}

// Fetcher downloads avatars. Without Write it only reports what it would do.
type Fetcher struct {
	Store      storage.Provider
	OutputDir  string // relative to the store root
	GitHubURL  string
	BlueskyURL string
	ImageSize  int
	Write      bool
	Force      bool
	Client     *http.Client
	Out        io.Writer
	Logger     *slog.Logger
}

// NewFetcher returns a fetcher with the public endpoints and default sizes.
func NewFetcher(store storage.Provider, out io.Writer, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		Store:      store,
		OutputDir:  DefaultOutputDir,
		GitHubURL:  DefaultGitHubURL,
		BlueskyURL: DefaultBlueskyURL,
		ImageSize:  DefaultImageSize,
		Client:     &http.Client{Timeout: 30 * time.Second},
		Out:        out,
		Logger:     logger,
	}
}

// Run processes every person in order and returns the tally.
func (f *Fetcher) Run(ctx context.Context, people []collaborators.Person) Stats {
	var st Stats
	for _, p := range people {
		if ctx.Err() != nil {
			break
		}
		name := cmp.Or(p.Name, "Unknown")
		slug := Slug(name)
		fmt.Fprintf(f.Out, "Processing: %s\n", name)

		if strings.HasPrefix(p.Photo, "/images/") {
			fmt.Fprintf(f.Out, "  Already has local photo: %s\n", p.Photo)
			st.Skipped++
			continue
		}
		if existing := f.existing(slug); existing != "" && !f.Force {
			fmt.Fprintf(f.Out, "  Already exists: %s\n", path.Base(existing))
			st.Skipped++
			continue
		}

		src, kind, handle := f.source(ctx, p.Links)
		if src == "" {
			fmt.Fprintln(f.Out, "  No GitHub or Bluesky profile found")
			st.NoSource++
			continue
		}
		fmt.Fprintf(f.Out, "  Source: %s (%s)\n", kind, handle)

		if !f.Write {
			fmt.Fprintf(f.Out, "  Would download: %s\n    -> %s\n", src, path.Join(f.OutputDir, slug+".jpg"))
			st.Downloaded++
			continue
		}
		dest, err := f.download(ctx, src, slug)
		if err != nil {
			f.Logger.Warn("photo download failed",
				slog.String("name", name),
				slog.String("url", src),
				slog.String("error", err.Error()))
			fmt.Fprintf(f.Out, "  Error downloading %s: %v\n", src, err)
			st.Failed++
			continue
		}
		fmt.Fprintf(f.Out, "  Downloaded: %s\n", dest)
		st.Downloaded++
	}
	return st
}

// existing returns the path of a local photo for slug, if any.
func (f *Fetcher) existing(slug string) string {
	for _, ext := range Extensions {
		p := path.Join(f.OutputDir, slug+ext)
		if f.Store.Exists(p) {
			return p
		}
	}
	return ""
}

// source picks the avatar URL: GitHub first, then Bluesky.
func (f *Fetcher) source(ctx context.Context, links map[string]string) (src, kind, handle string) {
	if gh := links["github"]; gh != "" {
		return fmt.Sprintf("%s/%s.png?size=%d", strings.TrimRight(f.GitHubURL, "/"), gh, f.ImageSize), "GitHub", gh
	}
	if bs := links["bluesky"]; bs != "" {
		avatar, err := f.blueskyAvatar(ctx, bs)
		if err != nil {
			f.Logger.Warn("bluesky profile lookup failed", slog.String("handle", bs), slog.String("error", err.Error()))
			return "", "", ""
		}
		return avatar, "Bluesky", bs
	}
	return "", "", ""
}

func (f *Fetcher) blueskyAvatar(ctx context.Context, handle string) (string, error) {
	u := strings.TrimRight(f.BlueskyURL, "/") + "/app.bsky.actor.getProfile?actor=" + url.QueryEscape(handle)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bluesky: status %d", resp.StatusCode)
	}
	var profile struct {
		Avatar string `json:"avatar"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return "", fmt.Errorf("bluesky: decode: %w", err)
	}
	return profile.Avatar, nil
}

// download fetches src and stores it as <slug><ext>, returning the path.
func (f *Fetcher) download(ctx context.Context, src, slug string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	dest := path.Join(f.OutputDir, slug+Extension(resp.Header.Get("Content-Type"), src))
	if err := f.Store.Write(dest, data); err != nil {
		return "", err
	}
	return dest, nil
}

// Extension picks a file extension from the response content type, falling
// back to the URL path and then to .jpg.
func Extension(contentType, rawURL string) string {
	mt, _, _ := mime.ParseMediaType(contentType)
	switch {
	case strings.Contains(mt, "jpeg"), strings.Contains(mt, "jpg"):
		return ".jpg"
	case strings.Contains(mt, "png"):
		return ".png"
	case strings.Contains(mt, "gif"):
		return ".gif"
	case strings.Contains(mt, "webp"):
		return ".webp"
	}
	if u, err := url.Parse(rawURL); err == nil {
		if ext := path.Ext(u.Path); ext != "" {
			return ext
		}
	}
	return ".jpg"
}

// WriteSummary prints the tally in the report format of the fetch command.
func (s Stats) WriteSummary(w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintln(w, "Summary:")
	fmt.Fprintf(w, "  Downloaded: %d\n", s.Downloaded)
	fmt.Fprintf(w, "  Skipped (existing): %d\n", s.Skipped)
	fmt.Fprintf(w, "  Failed: %d\n", s.Failed)
	fmt.Fprintf(w, "  No source available: %d\n", s.NoSource)
}
