package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/theoryandpractice/sitekit/internal/testutil"
)

// testConfig returns the default configuration with the test project's
// relative sources. Tests chdir into the project root.
func testConfig(t *testing.T) *Config {
	t.Helper()
	root, _, _ := testutil.TestProject(t, nil)
	t.Chdir(root)
	return NewDefaultConfig()
}

func quiet() Option { return WithLogger(slog.New(slog.DiscardHandler)) }

func TestGenerate_WritesDataFiles(t *testing.T) {
	cfg := testConfig(t)
	var out bytes.Buffer

	if err := Generate(context.Background(), WithConfig(cfg), WithOutput(&out), quiet()); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	for _, name := range []string{"collaborators.json", "projects.json", "media.json", "pages.json"} {
		if _, err := os.Stat(filepath.Join("output", "data", name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	data, err := os.ReadFile(filepath.Join("output", "data", "projects.json"))
	if err != nil {
		t.Fatal(err)
	}
	var projects struct {
		AllProjects []struct {
			Slug string `json:"slug"`
		} `json:"all_projects"`
	}
	if err := json.Unmarshal(data, &projects); err != nil {
		t.Fatal(err)
	}
	if len(projects.AllProjects) != 1 || projects.AllProjects[0].Slug != "pyhf" {
		t.Errorf("projects = %+v", projects)
	}
	if !strings.Contains(out.String(), "collaborators: 1 records") {
		t.Errorf("report:\n%s", out.String())
	}
}

func TestRun_RequiresConfig(t *testing.T) {
	if err := Run(context.Background(), quiet()); err == nil {
		t.Fatal("expected an error without config")
	}
}

func openAlexStub(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/authors":
			_, _ = w.Write([]byte(`{"results":[{"id":"https://openalex.org/A1","display_name":"Ada Lovelace"}]}`))
		case "/works":
			_, _ = w.Write([]byte(`{"results":[{"publication_year":2015},{"publication_year":2019}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestUpdateCollaboratorYears(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scholar.OpenAlexURL = openAlexStub(t).URL
	cfg.Scholar.AuthorDelay = 0
	path := filepath.Join("content", "collaborators.yml")

	var out bytes.Buffer
	if err := UpdateCollaboratorYears(context.Background(), false, WithConfig(cfg), WithOutput(&out), quiet()); err != nil {
		t.Fatalf("dry run: %v", err)
	}
	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "end_year") {
		t.Fatal("dry run modified the file")
	}
	if !strings.Contains(out.String(), "DRY RUN") {
		t.Errorf("dry run report:\n%s", out.String())
	}

	out.Reset()
	if err := UpdateCollaboratorYears(context.Background(), true, WithConfig(cfg), WithOutput(&out), quiet()); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, _ = os.ReadFile(path)
	// The existing start year stays; the finished collaboration gains an end year.
	if !strings.Contains(string(data), "start_year: 2019") || !strings.Contains(string(data), "end_year: 2019") {
		t.Errorf("collaborators file:\n%s", data)
	}
}
