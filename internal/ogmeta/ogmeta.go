// Package ogmeta reads Open Graph metadata from article pages.
package ogmeta

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// DefaultUserAgent is sent unless the client is configured otherwise; some
// news sites refuse requests without a browser-like agent.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

// MaxDescription is the longest description kept, in runes.
const MaxDescription = 200

var dateLayouts = []string{"2006-01-02T15:04:05", "2006-01-02"}

// Metadata is what a page says about itself.
type Metadata struct {
	Title       string
	SiteName    string
	Description string
	Date        *time.Time
}

// Fetcher retrieves and memoizes page metadata.
type Fetcher struct {
	Client    *http.Client
	UserAgent string

	cache *lru.Cache[string, Metadata]
}

// NewFetcher returns a fetcher with a per-request timeout and an LRU of the
// given size.
func NewFetcher(timeout time.Duration, size int) *Fetcher {
	if size <= 0 {
		size = 128
	}
	cache, _ := lru.New[string, Metadata](size)
	return &Fetcher{
		Client:    &http.Client{Timeout: timeout},
		UserAgent: DefaultUserAgent,
		cache:     cache,
	}
}

// Fetch returns the metadata of url. Successful results are cached.
func (f *Fetcher) Fetch(ctx context.Context, url string) (Metadata, error) {
	if m, ok := f.cache.Get(url); ok {
		return m, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Metadata{}, fmt.Errorf("ogmeta: build request: %w", err)
	}
	req.Header.Set("User-Agent", f.UserAgent)

	resp, err := f.Client.Do(req)
	if err != nil {
		return Metadata{}, fmt.Errorf("ogmeta: fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Metadata{}, fmt.Errorf("ogmeta: fetch %s: status %d", url, resp.StatusCode)
	}

	body, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return Metadata{}, fmt.Errorf("ogmeta: charset: %w", err)
	}
	m, err := Parse(body)
	if err != nil {
		return Metadata{}, err
	}
	f.cache.Add(url, m)
	return m, nil
}

// Parse reads the meta tags of an HTML document.
func Parse(r io.Reader) (Metadata, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return Metadata{}, fmt.Errorf("ogmeta: parse: %w", err)
	}

	var m Metadata
	for n := range doc.Descendants() {
		if n.Type != html.ElementNode || n.Data != "meta" {
			continue
		}
		prop := attr(n, "property")
		if prop == "" {
			prop = attr(n, "name")
		}
		content := attr(n, "content")

		switch prop {
		case "og:title":
			if m.Title == "" {
				m.Title = content
			}
		case "og:site_name":
			if m.SiteName == "" {
				m.SiteName = content
			}
		case "og:description":
			if m.Description == "" {
				m.Description = truncate(content, MaxDescription)
			}
		}

		lower := strings.ToLower(prop)
		if m.Date == nil && content != "" && (strings.Contains(lower, "date") || strings.Contains(lower, "published")) {
			m.Date = parseDate(content)
		}
	}
	return m, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// parseDate reads the first 19 characters as a timestamp or a plain date.
func parseDate(s string) *time.Time {
	if len(s) > 19 {
		s = s[:19]
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
