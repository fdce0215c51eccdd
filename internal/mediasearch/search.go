// Package mediasearch looks for new media mentions on Google News and
// proposes them as media items.
package mediasearch

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
	"unicode/utf8"

	"github.com/theoryandpractice/sitekit/internal/media"
)

// Defaults for a search run.
const (
	DefaultDays  = 30
	DefaultLimit = 20
	snippetLen   = 200
)

// DefaultTopics are combined with the quoted name into the default queries.
var DefaultTopics = []string{"physics", "AI", "machine learning", "ATLAS", "LHC", "Wisconsin"}

// PriorityDomains are outlets flagged and ranked first.
var PriorityDomains = []string{
	"nytimes.com", "wired.com", "vox.com", "newyorker.com", "theguardian.com",
	"bbc.com", "npr.org", "scientificamerican.com", "quantamagazine.org",
	"nature.com", "science.org", "phys.org", "symmetrymagazine.org", "cerncourier.com",
}

// ExcludedDomains never produce suggestions.
var ExcludedDomains = []string{
	"linkedin.com", "twitter.com", "x.com", "facebook.com", "instagram.com",
	"youtube.com", "github.com", "arxiv.org", "inspirehep.net",
	"scholar.google.com", "researchgate.net", "academia.edu",
}

// Result is one search hit.
type Result struct {
	Title    string
	URL      string
	Source   string
	Snippet  string
	Query    string
	Date     *time.Time
	Priority bool
}

// DefaultQueries returns the `"<name>" <topic>` queries.
func DefaultQueries(name string) []string {
	out := make([]string, len(DefaultTopics))
	for i, t := range DefaultTopics {
		out[i] = fmt.Sprintf("%q %s", name, t)
	}
	return out
}

// NormalizeURL reduces a URL to lower-case host and path without a trailing
// slash.
func NormalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return strings.ToLower(raw)
	}
	return strings.ToLower(u.Host + strings.TrimRight(u.Path, "/"))
}

// IsDuplicate reports whether raw matches any existing URL, comparing
// normalized forms by substring in either direction.
func IsDuplicate(raw string, existing []string) bool {
	n := NormalizeURL(raw)
	for _, e := range existing {
		en := NormalizeURL(e)
		if strings.Contains(en, n) || strings.Contains(n, en) {
			return true
		}
	}
	return false
}

func domainIn(host string, domains []string) bool {
	return slices.ContainsFunc(domains, func(d string) bool { return strings.Contains(host, d) })
}

// Filter drops results without a URL, from excluded domains, already present
// in existing, or repeated within results. Surviving results from priority
// domains are flagged.
func Filter(results []Result, existing []string) []Result {
	seen := make(map[string]struct{})
	var out []Result
	for _, r := range results {
		if r.URL == "" {
			continue
		}
		host := ""
		if u, err := url.Parse(r.URL); err == nil {
			host = strings.ToLower(u.Host)
		}
		if domainIn(host, ExcludedDomains) {
			continue
		}
		if IsDuplicate(r.URL, existing) {
			continue
		}
		n := NormalizeURL(r.URL)
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		r.Priority = domainIn(host, PriorityDomains)
		out = append(out, r)
	}
	return out
}

// Rank sorts priority results first, then by date newest first; undated
// results sort last within their group.
func Rank(results []Result) {
	slices.SortStableFunc(results, func(a, b Result) int {
		if a.Priority != b.Priority {
			if a.Priority {
				return -1
			}
			return 1
		}
		switch {
		case a.Date == nil && b.Date == nil:
			return 0
		case a.Date == nil:
			return 1
		case b.Date == nil:
			return -1
		}
		return b.Date.Compare(*a.Date)
	})
}

// Categorize guesses the media category of a result.
func Categorize(r Result) string {
	u := strings.ToLower(r.URL)
	source := strings.ToLower(r.Source)
	title := strings.ToLower(r.Title)

	if strings.Contains(u, "youtube") || strings.Contains(u, "vimeo") {
		return "videos"
	}
	for _, w := range []string{"podcast", "episode", "listen"} {
		if strings.Contains(title, w) || strings.Contains(source, w) {
			return "podcasts"
		}
	}
	for _, w := range []string{"interview", "q&a", "talks to", "speaks with"} {
		if strings.Contains(title, w) {
			return "interviews"
		}
	}
	return "articles"
}

// Suggest turns a result into a media item suggestion.
func Suggest(r Result) media.Suggestion {
	s := media.Suggestion{
		Title:    strings.TrimSpace(r.Title),
		Outlet:   cmp.Or(r.Source, "Unknown"),
		Category: Categorize(r),
		URL:      r.URL,
	}
	if r.Date != nil {
		s.Date = r.Date.Format("2006-01-02")
	}
	if r.Snippet != "" {
		s.Description = r.Snippet
		if utf8.RuneCountInString(r.Snippet) > snippetLen {
			s.Description = string([]rune(r.Snippet)[:snippetLen]) + "..."
		}
	}
	return s
}

// Searcher runs every query against a source and ranks the new results.
type Searcher struct {
	Source  Source
	Queries []string
	Days    int
	Limit   int
	Out     io.Writer
	Logger  *slog.Logger
}

// Run searches, filters against the existing media URLs and returns at most
// Limit suggestions. A failing query is logged and skipped.
func (s *Searcher) Run(ctx context.Context, existing []string) []media.Suggestion {
	days := cmp.Or(s.Days, DefaultDays)
	limit := cmp.Or(s.Limit, DefaultLimit)

	var all []Result
	for _, q := range s.Queries {
		if ctx.Err() != nil {
			break
		}
		fmt.Fprintf(s.Out, "Searching: %s\n", q)
		res, err := s.Source.Search(ctx, q, days)
		if err != nil {
			s.Logger.Warn("media search failed",
				slog.String("source", s.Source.Name()),
				slog.String("query", q),
				slog.String("error", err.Error()))
		}
		fmt.Fprintf(s.Out, "  Found %d results\n", len(res))
		all = append(all, res...)
	}
	fmt.Fprintf(s.Out, "\nTotal raw results: %d\n", len(all))

	filtered := Filter(all, existing)
	Rank(filtered)
	fmt.Fprintf(s.Out, "After filtering: %d new potential items\n\n", len(filtered))

	if len(filtered) > limit {
		filtered = filtered[:limit]
	}
	out := make([]media.Suggestion, len(filtered))
	for i, r := range filtered {
		out[i] = Suggest(r)
		marker := ""
		if r.Priority {
			marker = " *PRIORITY*"
		}
		fmt.Fprintf(s.Out, "%d. [%s] %s%s\n   Source: %s\n   URL: %s\n",
			i+1, strings.ToUpper(out[i].Category), out[i].Title, marker, out[i].Outlet, out[i].URL)
		if out[i].Date != "" {
			fmt.Fprintf(s.Out, "   Date: %s\n", out[i].Date)
		}
	}
	return out
}
