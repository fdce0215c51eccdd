package projects

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/theoryandpractice/sitekit/internal/site"
)

const fixture = `
settings:
  default_card_style: minimal
categories:
  - id: software
    title: Software
    description: Open source
  - id: research
projects:
  - name: Zeta Tool
    category: software
    start_year: 2019
  - name: Alpha Lib
    category: software
    start_year: 2019
    github: owner/alpha
  - name: Featured Thing
    category: software
    featured: true
    start_year: 2010
    slug: custom
    status: archived
    card_style: image
    image: /images/featured.png
    github: owner/featured
  - name: Orphan
    category: unknown
`

func decode(t *testing.T) File {
	t.Helper()
	var f File
	if err := yaml.Unmarshal([]byte(fixture), &f); err != nil {
		t.Fatal(err)
	}
	return f
}

func names(ps []Project) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	return out
}

func intp(v int) *int    { return &v }
func boolp(v bool) *bool { return &v }

func TestBuild_Defaults(t *testing.T) {
	d := Build(decode(t))

	zeta := d.AllProjects[0]
	if zeta.Slug != "zeta-tool" || zeta.Status != "active" || zeta.IsFeatured() || zeta.CardStyle != "minimal" {
		t.Errorf("zeta defaults = %+v", zeta)
	}
	if zeta.Featured == nil {
		t.Error("featured should be set to false explicitly")
	}
	if zeta.Tags == nil || zeta.Collaborators == nil {
		t.Error("tags/collaborators should default to empty lists")
	}
	if zeta.Image != "" {
		t.Errorf("image without github = %q", zeta.Image)
	}

	alpha := d.AllProjects[1]
	if alpha.Image != "https://opengraph.githubassets.com/1/owner/alpha" {
		t.Errorf("github image = %q", alpha.Image)
	}

	feat := d.AllProjects[2]
	if feat.Slug != "custom" || feat.Status != "archived" || feat.CardStyle != "image" || feat.Image != "/images/featured.png" {
		t.Errorf("explicit values overwritten: %+v", feat)
	}
}

func TestBuild_Groups(t *testing.T) {
	d := Build(decode(t))
	if len(d.Categories) != 2 {
		t.Fatalf("categories = %d", len(d.Categories))
	}
	if diff := cmp.Diff([]string{"Featured Thing", "Alpha Lib", "Zeta Tool"}, names(d.Categories[0].Projects)); diff != "" {
		t.Errorf("software order (-want +got):\n%s", diff)
	}
	if d.Categories[1].Title != "research" || len(d.Categories[1].Projects) != 0 {
		t.Errorf("research group = %+v", d.Categories[1])
	}
	if len(d.AllProjects) != 4 || d.AllProjects[3].Name != "Orphan" {
		t.Errorf("orphan must stay in all_projects: %v", names(d.AllProjects))
	}
}

func TestSort_StableAndTotal(t *testing.T) {
	base := []Project{
		{Name: "b", Featured: boolp(true), StartYear: intp(2020)},
		{Name: "a", Featured: boolp(true), StartYear: intp(2020)},
		{Name: "c", Featured: boolp(true), StartYear: intp(2022)},
		{Name: "d", StartYear: intp(2024)},
		{Name: "e"},
		{Name: "dup", Slug: "first"},
		{Name: "dup", Slug: "second"},
	}
	want := []string{"c", "a", "b", "d", "dup", "dup", "e"}

	ps := append([]Project(nil), base...)
	Sort(ps)
	if diff := cmp.Diff(want, names(ps)); diff != "" {
		t.Fatalf("order (-want +got):\n%s", diff)
	}
	if ps[4].Slug != "first" || ps[5].Slug != "second" {
		t.Errorf("equal keys reordered: %s, %s", ps[4].Slug, ps[5].Slug)
	}

	r := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		shuffled := append([]Project(nil), base[:5]...)
		r.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		Sort(shuffled)
		if diff := cmp.Diff([]string{"c", "a", "b", "d", "e"}, names(shuffled)); diff != "" {
			t.Fatalf("order depends on input permutation (-want +got):\n%s", diff)
		}
	}
}

func TestRecords(t *testing.T) {
	recs := Records(Build(decode(t)))
	if recs[1].ID != "alpha-lib" || recs[1].URL != "https://github.com/owner/alpha" {
		t.Errorf("record = %+v", recs[1])
	}
}

func TestPlugin_GeneratorInit(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "projects.yml")
	if err := os.WriteFile(src, []byte(fixture), 0o644); err != nil {
		t.Fatal(err)
	}
	g := site.NewGenerator(site.Settings{ProjectsSrc: src}, slog.New(slog.DiscardHandler))
	Plugin{}.GeneratorInit(context.Background(), g)
	d, ok := g.Context[ContextKey].(Data)
	if !ok {
		t.Fatalf("context[%q] = %T", ContextKey, g.Context[ContextKey])
	}
	if d.Settings.DefaultCardStyle != "minimal" {
		t.Errorf("settings = %+v", d.Settings)
	}
}

func TestProject_JSONKeepsUnknownKeysAtTopLevel(t *testing.T) {
	var p Project
	if err := yaml.Unmarshal([]byte("name: pyhf\ndocs: https://pyhf.readthedocs.io\n"), &p); err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got["docs"] != "https://pyhf.readthedocs.io" || got["name"] != "pyhf" {
		t.Errorf("project = %s", data)
	}
	if _, ok := got["extra"]; ok {
		t.Errorf("extra key present: %s", data)
	}
}
