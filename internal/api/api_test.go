package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/theoryandpractice/sitekit/internal/index"
	"github.com/theoryandpractice/sitekit/internal/siteservice"
	"github.com/theoryandpractice/sitekit/internal/sse"
	"github.com/theoryandpractice/sitekit/internal/testutil"
)

// testEnv sets up a sample project, index, regenerated service and router.
func testEnv(t *testing.T, sseHandler http.Handler) http.Handler {
	t.Helper()
	_, store, settings := testutil.TestProject(t, nil)
	db := testutil.TestDB(t)

	svc := siteservice.New(settings, "pages", store, db, slog.New(slog.DiscardHandler))
	if _, err := svc.Regenerate(context.Background()); err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	return NewRouter(svc, sseHandler)
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestGetContext(t *testing.T) {
	router := testEnv(t, nil)

	w := get(t, router, "/context")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q", got)
	}

	var resp struct {
		Context map[string]json.RawMessage `json:"context"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"collaborators", "projects", "media"} {
		if _, ok := resp.Context[key]; !ok {
			t.Errorf("context missing %q", key)
		}
	}
}

func TestGetSection(t *testing.T) {
	router := testEnv(t, nil)

	w := get(t, router, "/context/projects")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var data struct {
		AllProjects []struct {
			Name string `json:"name"`
			Slug string `json:"slug"`
		} `json:"all_projects"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &data); err != nil {
		t.Fatal(err)
	}
	if len(data.AllProjects) != 1 || data.AllProjects[0].Slug != "pyhf" {
		t.Errorf("projects = %+v", data.AllProjects)
	}
}

func TestGetSection_Unknown(t *testing.T) {
	router := testEnv(t, nil)

	w := get(t, router, "/context/nope")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if !strings.Contains(w.Body.String(), "unknown section") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestListSections(t *testing.T) {
	router := testEnv(t, nil)

	w := get(t, router, "/sections")
	var resp struct {
		Sections []siteservice.SectionInfo `json:"sections"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Sections) != 3 {
		t.Errorf("sections = %+v", resp.Sections)
	}
}

func TestListPages(t *testing.T) {
	router := testEnv(t, nil)

	w := get(t, router, "/pages")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `rel=\"stylesheet\"`) {
		t.Errorf("page hooks not applied: %s", w.Body.String())
	}
}

func TestSearch(t *testing.T) {
	router := testEnv(t, nil)

	w := get(t, router, "/search?q=Lovelace")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Results []index.SearchResult `json:"results"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != "Ada Lovelace" {
		t.Errorf("results = %+v", resp.Results)
	}
	if resp.Results[0].URL != "https://example.org/ada" {
		t.Errorf("url = %q", resp.Results[0].URL)
	}
}

func TestSearch_EmptyResultIsArray(t *testing.T) {
	router := testEnv(t, nil)

	w := get(t, router, "/search?q=zzz&kind=media")
	if !strings.Contains(w.Body.String(), `"results":[]`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestSearch_MissingQuery(t *testing.T) {
	router := testEnv(t, nil)

	w := get(t, router, "/search")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestEventsMounted(t *testing.T) {
	broker := sse.NewBroker(100 * time.Millisecond)
	defer broker.Close()
	router := testEnv(t, broker)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		router.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	broker.PublishSourceEvent("updated", "content/media.yml")
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if !strings.Contains(w.Body.String(), "event: source.updated") {
		t.Errorf("body = %q", w.Body.String())
	}
}
