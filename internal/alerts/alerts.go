// Package alerts extracts article links from a Google Alerts mailbox export
// and proposes them as media items.
package alerts

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/theoryandpractice/sitekit/internal/media"
	"github.com/theoryandpractice/sitekit/internal/ogmeta"
)

// minTitleLen is the shortest anchor text accepted as a title, exclusive.
const minTitleLen = 5

var socialDomains = []string{"twitter.com", "facebook.com", "linkedin.com", "instagram.com"}

// sourceNames maps well-known domains to outlet names.
var sourceNames = map[string]string{
	"nytimes.com":            "New York Times",
	"washingtonpost.com":     "Washington Post",
	"theguardian.com":        "The Guardian",
	"bbc.com":                "BBC",
	"bbc.co.uk":              "BBC",
	"cnn.com":                "CNN",
	"wired.com":              "WIRED",
	"nature.com":             "Nature",
	"science.org":            "Science",
	"scientificamerican.com": "Scientific American",
	"physicsworld.com":       "Physics World",
	"quantamagazine.org":     "Quanta Magazine",
	"newyorker.com":          "The New Yorker",
	"vox.com":                "Vox",
	"npr.org":                "NPR",
	"phys.org":               "Phys.org",
	"sciencedaily.com":       "Science Daily",
	"arstechnica.com":        "Ars Technica",
	"symmetrymagazine.org":   "Symmetry Magazine",
	"thedailycardinal.com":   "The Daily Cardinal",
}

var titleCaser = cases.Title(language.English)

// SourceName turns a domain into a readable outlet name.
func SourceName(domain string) string {
	if name, ok := sourceNames[strings.ToLower(domain)]; ok {
		return name
	}
	first, _, _ := strings.Cut(domain, ".")
	return titleCaser.String(strings.ReplaceAll(first, "-", " "))
}

// Article is a link found in an alert.
type Article struct {
	URL       string
	Title     string
	Source    string
	EmailDate *time.Time
}

// ExtractArticles finds Google redirect links in an alert's HTML and returns
// the articles they point to, in document order.
func ExtractArticles(r io.Reader) ([]Article, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("alerts: parse html: %w", err)
	}
	var out []Article
	for n := range doc.Descendants() {
		if n.Type != html.ElementNode || n.DataAtom != atom.A {
			continue
		}
		target := redirectTarget(attr(n, "href"))
		if target == "" || !validArticle(target) {
			continue
		}
		a := Article{URL: target}
		if u, err := url.Parse(target); err == nil {
			a.Source = strings.Replace(u.Host, "www.", "", 1)
		}
		if title := strings.TrimSpace(text(n)); len(title) > minTitleLen {
			a.Title = title
		}
		out = append(out, a)
	}
	return out, nil
}

// redirectTarget returns the url (or q) parameter of a google.com/url link.
func redirectTarget(href string) string {
	if !strings.Contains(href, "google.com/url") {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	q := u.Query()
	return cmp.Or(q.Get("url"), q.Get("q"))
}

func validArticle(target string) bool {
	if !strings.HasPrefix(target, "http") {
		return false
	}
	if strings.Contains(target, "google.com") || strings.Contains(target, "gstatic.com") {
		return false
	}
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Host)
	return !slices.ContainsFunc(socialDomains, func(d string) bool { return strings.Contains(host, d) })
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func text(n *html.Node) string {
	var sb strings.Builder
	for d := range n.Descendants() {
		if d.Type == html.TextNode {
			sb.WriteString(d.Data)
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

// Options filter the messages read from a mailbox.
type Options struct {
	Since *time.Time // skip messages dated before this
	Limit int        // read at most this many messages; 0 means all
}

// Collection is the result of reading a mailbox.
type Collection struct {
	Emails   int
	Articles []Article
}

// Collect reads every message of an mbox stream and returns the unique
// articles in first-seen order. Unparseable messages are logged and skipped.
func Collect(r io.Reader, opts Options, logger *slog.Logger) (Collection, error) {
	raws, err := SplitMbox(r)
	if err != nil {
		return Collection{}, err
	}
	var c Collection
	seen := make(map[string]struct{})
	for i, raw := range raws {
		if opts.Limit > 0 && i >= opts.Limit {
			break
		}
		msg, err := ParseMessage(raw)
		if err != nil {
			logger.Warn("skipping alert message", slog.Int("index", i), slog.String("error", err.Error()))
			continue
		}
		if opts.Since != nil && msg.Date != nil && msg.Date.Before(*opts.Since) {
			continue
		}
		c.Emails++
		for _, a := range msg.Articles {
			if _, ok := seen[a.URL]; ok {
				continue
			}
			seen[a.URL] = struct{}{}
			a.EmailDate = msg.Date
			c.Articles = append(c.Articles, a)
		}
	}
	return c, nil
}

// MetadataFetcher looks up page metadata; *ogmeta.Fetcher implements it.
type MetadataFetcher interface {
	Fetch(ctx context.Context, url string) (ogmeta.Metadata, error)
}

// Suggest turns articles into media suggestions sorted newest first. When
// fetcher is non-nil each page's Open Graph metadata overrides the title,
// outlet and date and supplies a description.
func Suggest(ctx context.Context, articles []Article, fetcher MetadataFetcher, out io.Writer, logger *slog.Logger) []media.Suggestion {
	res := make([]media.Suggestion, 0, len(articles))
	for i, a := range articles {
		s := media.Suggestion{
			Title:    cmp.Or(a.Title, "Unknown Title"),
			Outlet:   SourceName(a.Source),
			Category: "articles",
			URL:      a.URL,
		}
		if a.EmailDate != nil {
			s.Date = a.EmailDate.Format("2006-01-02")
		}
		if fetcher != nil && ctx.Err() == nil {
			fmt.Fprintf(out, "  [%d/%d] %s\n", i+1, len(articles), a.Title)
			m, err := fetcher.Fetch(ctx, a.URL)
			if err != nil {
				logger.Warn("metadata fetch failed", slog.String("url", a.URL), slog.String("error", err.Error()))
			} else {
				s.Title = cmp.Or(m.Title, s.Title)
				s.Outlet = cmp.Or(m.SiteName, s.Outlet)
				s.Description = m.Description
				if m.Date != nil {
					s.Date = m.Date.Format("2006-01-02")
				}
			}
		}
		res = append(res, s)
	}
	// Dates are ISO strings; undated items sort last.
	slices.SortStableFunc(res, func(a, b media.Suggestion) int { return strings.Compare(b.Date, a.Date) })
	return res
}
