package citations

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/theoryandpractice/sitekit/internal/bibtex"
	"github.com/theoryandpractice/sitekit/internal/scholar"
)

func TestDecode_FlexibleYearAndComments(t *testing.T) {
	c, err := Decode([]byte(`{
		"_comment": "manual overrides",
		"A": {"cited_by_count": 10, "year": 2019, "note": "from INSPIRE"},
		"B": {"cited_by_count": 3, "year": "2020", "openalex_id": "https://openalex.org/W1"},
		"C": {"cited_by_count": 1, "year": null}
	}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := Cache{
		"A": {CitedByCount: 10, Year: "2019", Note: "from INSPIRE"},
		"B": {CitedByCount: 3, Year: "2020", OpenAlexID: "https://openalex.org/W1"},
		"C": {CitedByCount: 1},
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("cache (-want +got):\n%s", diff)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "citations.json"))
	if err != nil || len(c) != 0 {
		t.Errorf("Load missing = %v, %v", c, err)
	}
}

func TestMarshal_SortedIndented(t *testing.T) {
	data, err := Cache{"b": {CitedByCount: 2}, "a": {CitedByCount: 1, Year: "2001"}}.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	want := "{\n  \"a\": {\n    \"cited_by_count\": 1,\n    \"year\": \"2001\"\n  },\n  \"b\": {\n    \"cited_by_count\": 2\n  }\n}\n"
	if string(data) != want {
		t.Errorf("Marshal =\n%s\nwant\n%s", data, want)
	}
}

func TestEntryURLAndOverlay(t *testing.T) {
	if (Entry{OpenAlexID: "oa", SemanticScholarID: "ss"}).URL() != "oa" {
		t.Error("openalex id should win")
	}
	if (Entry{SemanticScholarID: "ss"}).URL() != "ss" {
		t.Error("semantic scholar fallback")
	}
	base := Cache{"a": {CitedByCount: 1}, "b": {CitedByCount: 2}}
	got := base.Overlay(Cache{"b": {CitedByCount: 20}})
	if got["a"].CitedByCount != 1 || got["b"].CitedByCount != 20 || base["b"].CitedByCount != 2 {
		t.Errorf("overlay = %+v base = %+v", got, base)
	}
	if got.Total() != 21 {
		t.Errorf("total = %d", got.Total())
	}
}

func TestFormatCount(t *testing.T) {
	cases := map[int]string{0: "0", 999: "999", 1000: "1,000", 1234567: "1,234,567", -4500: "-4,500"}
	for n, want := range cases {
		if got := FormatCount(n); got != want {
			t.Errorf("FormatCount(%d) = %q, want %q", n, got, want)
		}
	}
}

type fakeProvider struct {
	results map[string]scholar.Citation
	refs    []scholar.Ref
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) CitationCount(_ context.Context, ref scholar.Ref) (scholar.Citation, error) {
	f.refs = append(f.refs, ref)
	if r, ok := f.results[ref.DOI+ref.ArXivID]; ok {
		return r, nil
	}
	return scholar.Citation{}, errors.New("unavailable")
}

const bib = `
@article{Fetched, doi = {10.1/f}, year = 2020}
@article{SemSch, eprint = {arXiv:2101.1}, year = 2021}
@article{Cached, doi = {10.1/c}, year = 2018}
@article{NoData, year = 2017}
@article{Manual, doi = {10.1/m}, year = 2016}
`

func TestUpdater_Update(t *testing.T) {
	db, err := bibtex.Parse([]byte(bib))
	if err != nil {
		t.Fatal(err)
	}
	prov := &fakeProvider{results: map[string]scholar.Citation{
		"10.1/f":       {CitedByCount: 12, ID: "https://openalex.org/W9", Source: "openalex"},
		"arXiv:2101.1":  {CitedByCount: 4, ID: "https://www.semanticscholar.org/paper/p1", Source: "semantic_scholar"},
	}}
	var out bytes.Buffer
	u := &Updater{Provider: prov, Out: &out}

	keys := []string{"SemSch", "Fetched", "Manual", "Cached", "NoData", "Missing", "Fetched"}
	manual := Cache{"Manual": {CitedByCount: 500, Note: "INSPIRE"}}
	existing := Cache{"Cached": {CitedByCount: 77, Year: "2018", OpenAlexID: "W7"}}

	got, rep, err := u.Update(context.Background(), keys, db, manual, existing)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	want := Cache{
		"Cached":  {CitedByCount: 77, Year: "2018", OpenAlexID: "W7"},
		"Fetched": {CitedByCount: 12, Year: "2020", OpenAlexID: "https://openalex.org/W9"},
		"Manual":  {CitedByCount: 500, Note: "INSPIRE"},
		"NoData":  {CitedByCount: 0, Year: "2017"},
		"SemSch":  {CitedByCount: 4, Year: "2021", SemanticScholarID: "https://www.semanticscholar.org/paper/p1"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("cache (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(Report{Manual: 1, Fetched: 2, Cached: 1, NoData: 1, Missing: 1}, rep); diff != "" {
		t.Errorf("report (-want +got):\n%s", diff)
	}
	for _, ref := range prov.refs {
		if ref.DOI == "10.1/m" {
			t.Error("manual override should not be fetched")
		}
	}
	text := out.String()
	for _, line := range []string{
		"Found 6 publications",
		"[1/6] Cached... using cached: 77 citations",
		"[2/6] Fetched... 12 citations (OpenAlex)",
		"[3/6] Manual: using manual override (500 citations)",
		"[4/6] Missing: not in BibTeX",
		"[5/6] NoData... no data",
		"[6/6] SemSch... 4 citations (Semantic Scholar)",
	} {
		if !strings.Contains(text, line) {
			t.Errorf("report missing %q:\n%s", line, text)
		}
	}
}

func TestUpdater_CancelledContext(t *testing.T) {
	db, _ := bibtex.Parse([]byte(bib))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	u := &Updater{Provider: &fakeProvider{}}
	if _, _, err := u.Update(ctx, []string{"Fetched", "Cached"}, db, nil, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestDiff(t *testing.T) {
	prev := Cache{"same": {CitedByCount: 1}, "up": {CitedByCount: 2}, "gone": {CitedByCount: 3}}
	next := Cache{"same": {CitedByCount: 1}, "up": {CitedByCount: 5}, "new": {CitedByCount: 8}}
	want := []string{"- gone (was 3)", "+ new: 8", "~ up: 2 -> 5"}
	if diff := cmp.Diff(want, Diff(prev, next)); diff != "" {
		t.Errorf("diff (-want +got):\n%s", diff)
	}
}

func TestCacheFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "citations.json")
	c := Cache{"k": {CitedByCount: 3, Year: "2024"}}
	data, err := c.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(c, back); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}
