package ogmeta

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const page = `<!doctype html>
<html><head>
<meta property="og:title" content="Physicists teach AI to find new particles">
<meta property="og:site_name" content="Quanta Magazine">
<meta name="description" content="ignored">
<meta property="og:description" content="A short summary.">
<meta name="citation_date" content="not a date">
<meta property="article:published_time" content="2021-03-04T10:20:30+00:00">
</head><body></body></html>`

func TestParse(t *testing.T) {
	m, err := Parse(strings.NewReader(page))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.Title != "Physicists teach AI to find new particles" {
		t.Errorf("title = %q", m.Title)
	}
	if m.SiteName != "Quanta Magazine" {
		t.Errorf("site name = %q", m.SiteName)
	}
	if m.Description != "A short summary." {
		t.Errorf("description = %q", m.Description)
	}
	want := time.Date(2021, 3, 4, 10, 20, 30, 0, time.UTC)
	if m.Date == nil || !m.Date.Equal(want) {
		t.Errorf("date = %v, want %v", m.Date, want)
	}
}

func TestParse_PlainDateAndLongDescription(t *testing.T) {
	long := strings.Repeat("é", 250)
	doc := `<meta name="date" content="2019-07-01"><meta property="og:description" content="` + long + `">`
	m, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}
	if m.Date == nil || m.Date.Format("2006-01-02") != "2019-07-01" {
		t.Errorf("date = %v", m.Date)
	}
	if got := len([]rune(m.Description)); got != MaxDescription {
		t.Errorf("description runes = %d, want %d", got, MaxDescription)
	}
}

func TestFetch_CachesAndDecodesCharset(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.Header.Get("User-Agent") != DefaultUserAgent {
			t.Errorf("user agent = %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		// "Caf\xe9" is Latin-1 for "Café".
		_, _ = w.Write([]byte("<meta property=\"og:site_name\" content=\"Caf\xe9\">"))
	}))
	defer srv.Close()

	f := NewFetcher(5*time.Second, 8)
	for range 2 {
		m, err := f.Fetch(context.Background(), srv.URL)
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if m.SiteName != "Café" {
			t.Errorf("site name = %q", m.SiteName)
		}
	}
	if hits != 1 {
		t.Errorf("hits = %d, want 1 (cached)", hits)
	}
}

func TestFetch_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	if _, err := NewFetcher(time.Second, 0).Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 403")
	}
}
