package scholar

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/theoryandpractice/sitekit/internal/apperr"
)

const testUA = "sitekit-test/1.0"

func TestOpenAlex_CitationCountByDOI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/works/doi:10.1/abc" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("User-Agent"); got != testUA {
			t.Errorf("User-Agent = %q", got)
		}
		_, _ = w.Write([]byte(`{"id":"https://openalex.org/W1","cited_by_count":42}`))
	}))
	defer srv.Close()

	c := NewOpenAlex(srv.URL, testUA, time.Second)
	got, err := c.CitationCount(context.Background(), Ref{DOI: "10.1/abc", ArXivID: "1911.01429"})
	if err != nil {
		t.Fatalf("CitationCount: %v", err)
	}
	if got.CitedByCount != 42 || got.ID != "https://openalex.org/W1" || got.Source != "openalex" {
		t.Errorf("got %+v", got)
	}
}

func TestOpenAlex_CitationCountByArXiv(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/works/arxiv:1911.01429" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"id":"W2","cited_by_count":7}`))
	}))
	defer srv.Close()

	c := NewOpenAlex(srv.URL, testUA, time.Second)
	got, err := c.CitationCount(context.Background(), Ref{ArXivID: "arXiv:1911.01429"})
	if err != nil || got.CitedByCount != 7 {
		t.Fatalf("got %+v, %v", got, err)
	}
}

func TestOpenAlex_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := NewOpenAlex(srv.URL, testUA, time.Second)
	_, err := c.CitationCount(context.Background(), Ref{DOI: "10.1/missing"})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := c.CitationCount(context.Background(), Ref{}); !errors.Is(err, apperr.ErrNoIdentifier) {
		t.Errorf("empty ref err = %v", err)
	}
}

func TestOpenAlex_SearchAuthorPrefersExactMatchAndCaches(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/authors" || r.URL.Query().Get("search") != "Jose Nunez" || r.URL.Query().Get("per_page") != "5" {
			t.Errorf("unexpected request %s", r.URL)
		}
		_, _ = w.Write([]byte(`{"results":[
			{"id":"https://openalex.org/A1","display_name":"J. Nunez-Smith"},
			{"id":"https://openalex.org/A2","display_name":"José Núñez"}
		]}`))
	}))
	defer srv.Close()

	c := NewOpenAlex(srv.URL, testUA, time.Second)
	for i := 0; i < 2; i++ {
		a, err := c.SearchAuthor(context.Background(), "Jose Nunez")
		if err != nil {
			t.Fatalf("SearchAuthor: %v", err)
		}
		if a.ShortID() != "A2" {
			t.Errorf("author = %+v, want A2", a)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (memoized)", calls.Load())
	}
}

func TestOpenAlex_SearchAuthorEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	_, err := NewOpenAlex(srv.URL, testUA, time.Second).SearchAuthor(context.Background(), "Nobody")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestOpenAlex_CoauthoredWorks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("filter") != "authorships.author.id:A1,authorships.author.id:A9" {
			t.Errorf("filter = %q", q.Get("filter"))
		}
		if q.Get("per_page") != "200" || q.Get("sort") != "publication_year:asc" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"results":[{"id":"W1","publication_year":2015},{"id":"W2","publication_year":2019}]}`))
	}))
	defer srv.Close()

	works, err := NewOpenAlex(srv.URL, testUA, time.Second).CoauthoredWorks(context.Background(), "A1", "A9")
	if err != nil {
		t.Fatal(err)
	}
	if len(works) != 2 || works[1].PublicationYear != 2019 {
		t.Errorf("works = %+v", works)
	}
}

func TestSemanticScholar_CitationCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/paper/ARXIV:2001.00001" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("fields") != "citationCount,externalIds" {
			t.Errorf("fields = %q", r.URL.Query().Get("fields"))
		}
		_, _ = w.Write([]byte(`{"paperId":"abc123","citationCount":9}`))
	}))
	defer srv.Close()

	c := NewSemanticScholar(srv.URL, testUA, time.Second)
	got, err := c.CitationCount(context.Background(), Ref{ArXivID: "2001.00001"})
	if err != nil {
		t.Fatal(err)
	}
	if got.CitedByCount != 9 || got.ID != "https://www.semanticscholar.org/paper/abc123" || got.Source != "semantic_scholar" {
		t.Errorf("got %+v", got)
	}
}

type stubProvider struct {
	name string
	res  Citation
	err  error
	hits int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) CitationCount(context.Context, Ref) (Citation, error) {
	s.hits++
	return s.res, s.err
}

func TestChain_FallsBack(t *testing.T) {
	first := &stubProvider{name: "a", err: errors.New("down")}
	second := &stubProvider{name: "b", res: Citation{CitedByCount: 3, Source: "b"}}
	third := &stubProvider{name: "c", res: Citation{CitedByCount: 99}}

	chain := NewChain(slog.New(slog.DiscardHandler), first, second, third)
	got, err := chain.CitationCount(context.Background(), Ref{DOI: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if got.CitedByCount != 3 || third.hits != 0 {
		t.Errorf("got %+v, third hits %d", got, third.hits)
	}
}

func TestChain_AllFail(t *testing.T) {
	chain := NewChain(nil, &stubProvider{name: "a", err: errors.New("one")}, &stubProvider{name: "b", err: apperr.ErrNotFound})
	_, err := chain.CitationCount(context.Background(), Ref{DOI: "x"})
	if err == nil || !strings.Contains(err.Error(), "one") || !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v", err)
	}
	if _, err := chain.CitationCount(context.Background(), Ref{}); !errors.Is(err, apperr.ErrNoIdentifier) {
		t.Errorf("empty ref err = %v", err)
	}
}

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"  José  Núñez ": "jose nunez",
		"Søren Ærø":      "soren aero",
		"Kyle Cranmer":   "kyle cranmer",
	}
	for in, want := range cases {
		if got := NormalizeName(in); got != want {
			t.Errorf("NormalizeName(%q) = %q, want %q", in, got, want)
		}
	}
}
