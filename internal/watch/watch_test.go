package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) handle(batch []Event) {
	c.mu.Lock()
	c.events = append(c.events, batch...)
	c.mu.Unlock()
}

func (c *collector) has(op, path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.events {
		if e.Op == op && e.Path == path {
			return true
		}
	}
	return false
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func start(t *testing.T, root string) *collector {
	t.Helper()
	w := New(root, slog.New(slog.DiscardHandler))
	w.Debounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	c := &collector{}
	go w.Run(ctx, c.handle)
	time.Sleep(100 * time.Millisecond)
	return c
}

func TestWatcher_NewFileReported(t *testing.T) {
	root := t.TempDir()
	c := start(t, root)

	_ = os.WriteFile(filepath.Join(root, "collaborators.yml"), []byte("people: []\n"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return c.has(OpCreated, "collaborators.yml")
	}, "expected created:collaborators.yml")
}

func TestWatcher_IgnoresOtherExtensions(t *testing.T) {
	root := t.TempDir()
	c := start(t, root)

	_ = os.WriteFile(filepath.Join(root, "photo.png"), []byte("x"), 0o644)
	_ = os.WriteFile(filepath.Join(root, ".media.yml.swp"), []byte("x"), 0o644)
	_ = os.WriteFile(filepath.Join(root, "media.yml"), []byte("media: []\n"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return c.has(OpCreated, "media.yml")
	}, "expected created:media.yml")
	if c.has(OpCreated, "photo.png") {
		t.Error("png reported")
	}
}

func TestWatcher_NewDirWatched(t *testing.T) {
	root := t.TempDir()
	c := start(t, root)

	sub := filepath.Join(root, "publications")
	_ = os.MkdirAll(sub, 0o755)
	time.Sleep(150 * time.Millisecond)
	_ = os.WriteFile(filepath.Join(sub, "refs.bib"), []byte("@misc{a,}\n"), 0o644)

	want := filepath.Join("publications", "refs.bib")
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return c.has(OpCreated, want) || c.has(OpUpdated, want)
	}, "file in new subdir not reported")
}

func TestWatcher_DeleteReported(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "projects.yml")
	_ = os.WriteFile(path, []byte("projects: []\n"), 0o644)
	c := start(t, root)

	_ = os.Remove(path)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return c.has(OpDeleted, "projects.yml")
	}, "expected deleted:projects.yml")
}

func TestWatcher_BurstIsDebounced(t *testing.T) {
	root := t.TempDir()
	c := start(t, root)

	path := filepath.Join(root, "media.yml")
	for range 5 {
		_ = os.WriteFile(path, []byte("media: []\n"), 0o644)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return c.count() > 0
	}, "no batch delivered")
	time.Sleep(200 * time.Millisecond)
	if n := c.count(); n != 1 {
		t.Errorf("events = %d, want 1 coalesced event", n)
	}
}
