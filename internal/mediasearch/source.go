package mediasearch

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Default endpoints.
const (
	DefaultNewsURL   = "https://news.google.com/rss/search"
	DefaultSerpAPI   = "https://serpapi.com/search"
	browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
)

// Source runs one search query.
type Source interface {
	Name() string
	Search(ctx context.Context, query string, days int) ([]Result, error)
}

// GoogleNews searches the Google News RSS feed.
type GoogleNews struct {
	BaseURL string
	Client  *http.Client
	Now     func() time.Time
}

// NewGoogleNews returns a feed client. An empty baseURL selects the public feed.
func NewGoogleNews(baseURL string, timeout time.Duration) *GoogleNews {
	if baseURL == "" {
		baseURL = DefaultNewsURL
	}
	return &GoogleNews{BaseURL: baseURL, Client: &http.Client{Timeout: timeout}, Now: time.Now}
}

// Name implements Source.
func (g *GoogleNews) Name() string { return "google-news" }

type rssFeed struct {
	Items []rssItem `xml:"channel>item"`
}

type rssItem struct {
	Title   string `xml:"title"`
	Link    string `xml:"link"`
	PubDate string `xml:"pubDate"`
	Source  string `xml:"source"`
}

// Search implements Source. Items published more than days ago are dropped;
// undated items are kept.
func (g *GoogleNews) Search(ctx context.Context, query string, days int) ([]Result, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("hl", "en-US")
	q.Set("gl", "US")
	q.Set("ceid", "US:en")

	body, err := get(ctx, g.Client, g.BaseURL+"?"+q.Encode(), browserUserAgent)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var feed rssFeed
	if err := xml.NewDecoder(body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("google news: decode: %w", err)
	}

	cutoff := g.Now().AddDate(0, 0, -days)
	out := make([]Result, 0, len(feed.Items))
	for _, it := range feed.Items {
		if it.Title == "" && it.Link == "" {
			continue
		}
		date := parsePubDate(it.PubDate)
		if date != nil && date.Before(cutoff) {
			continue
		}
		out = append(out, Result{
			Title:  it.Title,
			URL:    strings.TrimSpace(it.Link),
			Source: it.Source,
			Date:   date,
			Query:  query,
		})
	}
	return out, nil
}

var pubDateLayouts = []string{time.RFC1123, time.RFC1123Z}

func parsePubDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	if len(s) > 25 {
		s = s[:25]
	}
	if t, err := time.Parse("Mon, 02 Jan 2006 15:04:05", s); err == nil {
		return &t
	}
	return nil
}

// SerpAPI searches Google News through SerpAPI. Its news results carry only
// relative dates, so they are returned undated.
type SerpAPI struct {
	BaseURL string
	Key     string
	Client  *http.Client
}

// NewSerpAPI returns a SerpAPI client. An empty baseURL selects the public API.
func NewSerpAPI(baseURL, key string, timeout time.Duration) *SerpAPI {
	if baseURL == "" {
		baseURL = DefaultSerpAPI
	}
	return &SerpAPI{BaseURL: baseURL, Key: key, Client: &http.Client{Timeout: timeout}}
}

// Name implements Source.
func (s *SerpAPI) Name() string { return "serpapi" }

// Search implements Source.
func (s *SerpAPI) Search(ctx context.Context, query string, _ int) ([]Result, error) {
	q := url.Values{}
	q.Set("api_key", s.Key)
	q.Set("engine", "google")
	q.Set("q", query)
	q.Set("tbm", "nws")
	q.Set("num", "20")

	body, err := get(ctx, s.Client, s.BaseURL+"?"+q.Encode(), "")
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp struct {
		NewsResults []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Source  string `json:"source"`
			Snippet string `json:"snippet"`
		} `json:"news_results"`
	}
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("serpapi: decode: %w", err)
	}
	out := make([]Result, 0, len(resp.NewsResults))
	for _, it := range resp.NewsResults {
		out = append(out, Result{
			Title:   it.Title,
			URL:     it.Link,
			Source:  it.Source,
			Snippet: it.Snippet,
			Query:   query,
		})
	}
	return out, nil
}

func get(ctx context.Context, client *http.Client, rawURL, userAgent string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return resp.Body, nil
}
