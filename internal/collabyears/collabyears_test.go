package collabyears

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/theoryandpractice/sitekit/internal/apperr"
	"github.com/theoryandpractice/sitekit/internal/scholar"
)

const owner = "A5108167175"

const fixture = `# Collaborators of the group
settings:
  image_size: 150px
people:
  # current students first
  - name: Ada Lovelace
    category: students
    affiliation: NYU # main appointment
    current: true
  - name: Alan Turing
    category: alumni
    role: Postdoc
    start_year: 2010
  - name: Grace Hopper
    category: collaborators
    current_position: Admiral
    start_year: 2001
    end_year: 2005
  - name: Nobody Known
    category: collaborators
  - name: Emmy Noether
    category: collaborators
    start_year: null
    current: true
`

type fakeSource struct {
	authors map[string]string // name -> id
	years   map[string][]int  // id -> publication years
	calls   []string
}

func (f *fakeSource) SearchAuthor(_ context.Context, name string) (scholar.Author, error) {
	f.calls = append(f.calls, name)
	id, ok := f.authors[name]
	if !ok {
		return scholar.Author{}, apperr.ErrNotFound
	}
	return scholar.Author{ID: "https://openalex.org/" + id, DisplayName: name}, nil
}

func (f *fakeSource) CoauthoredWorks(_ context.Context, authorID, otherID string) ([]scholar.Work, error) {
	if otherID != owner {
		return nil, nil
	}
	var works []scholar.Work
	for _, y := range f.years[authorID] {
		works = append(works, scholar.Work{PublicationYear: y})
	}
	return works, nil
}

func newSource() *fakeSource {
	return &fakeSource{
		authors: map[string]string{
			"Ada Lovelace": "A1",
			"Alan Turing":  "A2",
			"Emmy Noether": "A3",
		},
		years: map[string][]int{
			"A1": {2019, 2016, 0, 2021},
			"A2": {2012, 2024},
			"A3": {2018},
		},
	}
}

func keys(p Person) []string {
	var ks []string
	for i := 0; i < len(p.node.Content); i += 2 {
		ks = append(ks, p.node.Content[i].Value)
	}
	return ks
}

func value(p Person, key string) string {
	if v := lookup(p.node, key); v != nil {
		return v.Value
	}
	return ""
}

func TestYears(t *testing.T) {
	span, err := Years(context.Background(), newSource(), owner, "Ada Lovelace")
	if err != nil {
		t.Fatalf("Years: %v", err)
	}
	if diff := cmp.Diff(Span{First: 2016, Last: 2021, Papers: 3}, span); diff != "" {
		t.Errorf("span (-want +got):\n%s", diff)
	}

	src := newSource()
	src.years["A1"] = nil
	if _, err := Years(context.Background(), src, owner, "Ada Lovelace"); err == nil {
		t.Error("expected not found for an author without joint works")
	}
}

func TestUpdate(t *testing.T) {
	doc, err := Parse([]byte(fixture))
	if err != nil {
		t.Fatal(err)
	}
	src := newSource()
	var out bytes.Buffer
	u := &Updater{
		Source:  src,
		OwnerID: owner,
		Now:     func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) },
		Out:     &out,
		Logger:  slog.New(slog.DiscardHandler),
	}

	rep, err := u.Update(context.Background(), doc)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if diff := cmp.Diff(Report{Updated: 2, Skipped: 2, NotFound: 1}, rep); diff != "" {
		t.Errorf("report (-want +got):\n%s", diff)
	}
	// Grace Hopper has both years and is never looked up; the Alan Turing
	// entry is skipped because that collaboration is still ongoing.
	if diff := cmp.Diff([]string{"Ada Lovelace", "Alan Turing", "Nobody Known", "Emmy Noether"}, src.calls); diff != "" {
		t.Errorf("lookups (-want +got):\n%s", diff)
	}

	people := doc.People()

	ada := people[0]
	if diff := cmp.Diff([]string{"name", "category", "affiliation", "start_year", "end_year", "current"}, keys(ada)); diff != "" {
		t.Errorf("ada keys (-want +got):\n%s", diff)
	}
	if value(ada, "start_year") != "2016" || value(ada, "end_year") != "2021" || value(ada, "current") != "false" {
		t.Errorf("ada = start %s end %s current %s", value(ada, "start_year"), value(ada, "end_year"), value(ada, "current"))
	}

	// Last paper in 2024 is within a year of 2025: still ongoing, start kept.
	alan := people[1]
	if diff := cmp.Diff([]string{"name", "category", "role", "start_year"}, keys(alan)); diff != "" {
		t.Errorf("alan keys (-want +got):\n%s", diff)
	}
	if value(alan, "start_year") != "2010" {
		t.Errorf("alan start_year = %s, want existing 2010", value(alan, "start_year"))
	}

	if diff := cmp.Diff([]string{"name", "category"}, keys(people[3])); diff != "" {
		t.Errorf("unknown person changed (-want +got):\n%s", diff)
	}

	// The null start_year is filled in place; the end year lands after it.
	emmy := people[4]
	if diff := cmp.Diff([]string{"name", "category", "start_year", "end_year", "current"}, keys(emmy)); diff != "" {
		t.Errorf("emmy keys (-want +got):\n%s", diff)
	}
	if value(emmy, "start_year") != "2018" || value(emmy, "current") != "false" {
		t.Errorf("emmy = start %s current %s", value(emmy, "start_year"), value(emmy, "current"))
	}

	if !strings.Contains(out.String(), "Ada Lovelace... 3 papers, 2016-2021") {
		t.Errorf("report output:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "Alan Turing... 2 papers (already set)") {
		t.Errorf("report output:\n%s", out.String())
	}
}

func TestBytesKeepsComments(t *testing.T) {
	doc, err := Parse([]byte(fixture))
	if err != nil {
		t.Fatal(err)
	}
	doc.People()[0].SetStartYear(2016)

	b, err := doc.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"# Collaborators of the group", "# current students first", "# main appointment", "start_year: 2016"} {
		if !bytes.Contains(b, []byte(want)) {
			t.Errorf("output lacks %q:\n%s", want, b)
		}
	}

	again, err := Parse(b)
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	if got := len(again.People()); got != 5 {
		t.Errorf("people after round trip = %d, want 5", got)
	}
}

func TestParseRejectsNonMapping(t *testing.T) {
	if _, err := Parse([]byte("- a\n- b\n")); err == nil {
		t.Error("expected error for a top-level list")
	}
}

const spacedFixture = `# Collaborators of the group

settings:
  image_size: 150px

people:
  # current students first
  - name: Ada Lovelace
    category: students
    affiliation: NYU # main appointment
    current: true

  - name: Alan Turing
    role: |
      Postdoc,
      then faculty.

    links: []

  - name: Emmy Noether
    start_year: null   # unknown
    current: true

  - name: "Nobody Known"
    category: 'collaborators'
`

func TestBytes_UnchangedWithoutEdits(t *testing.T) {
	for _, src := range []string{fixture, spacedFixture, "people:\r\n\r\n  - name: Ada\r\n", "people: []"} {
		doc, err := Parse([]byte(src))
		if err != nil {
			t.Fatal(err)
		}
		b, err := doc.Bytes()
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(src, string(b)); diff != "" {
			t.Errorf("output differs from input (-want +got):\n%s", diff)
		}
	}
}

func TestBytes_EditsKeepLayout(t *testing.T) {
	doc, err := Parse([]byte(spacedFixture))
	if err != nil {
		t.Fatal(err)
	}
	people := doc.People()
	people[0].SetStartYear(2016)
	people[0].SetEndYear(2021)
	people[1].SetStartYear(2012)
	people[2].SetStartYear(2018)
	people[2].SetEndYear(2020)
	people[3].SetEndYear(2005)

	b, err := doc.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	want := `# Collaborators of the group

settings:
  image_size: 150px

people:
  # current students first
  - name: Ada Lovelace
    category: students
    affiliation: NYU # main appointment
    start_year: 2016
    end_year: 2021
    current: false

  - name: Alan Turing
    role: |
      Postdoc,
      then faculty.
    start_year: 2012

    links: []

  - name: Emmy Noether
    start_year: 2018   # unknown
    end_year: 2020
    current: false

  - name: "Nobody Known"
    category: 'collaborators'
    end_year: 2005
`
	if diff := cmp.Diff(want, string(b)); diff != "" {
		t.Errorf("output (-want +got):\n%s", diff)
	}

	again, err := Parse(b)
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	alan := again.People()[1]
	if value(alan, "role") != "Postdoc,\nthen faculty.\n" || value(alan, "start_year") != "2012" {
		t.Errorf("alan after edit: role %q start %q", value(alan, "role"), value(alan, "start_year"))
	}
}

func TestBytes_RejectsFlowEntries(t *testing.T) {
	doc, err := Parse([]byte("people:\n  - {name: Ada Lovelace, current: true}\n"))
	if err != nil {
		t.Fatal(err)
	}
	doc.People()[0].SetStartYear(2016)
	if _, err := doc.Bytes(); err == nil {
		t.Error("expected an error for a flow-style entry")
	}
}
