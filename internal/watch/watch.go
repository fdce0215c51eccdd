// Package watch reports changes to the site's data sources.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Operation kinds reported in an Event.
const (
	OpCreated = "created"
	OpUpdated = "updated"
	OpDeleted = "deleted"
)

// DefaultExtensions are the data source types the generator reads.
var DefaultExtensions = []string{".yml", ".yaml", ".bib", ".json", ".md"}

// Event is one observed change, with Path relative to the watched root.
type Event struct {
	Op   string
	Path string
}

// Handler receives a debounced batch of events. A path appears at most once
// per batch, carrying its most recent operation.
type Handler func(events []Event)

// Watcher watches a directory tree for source file changes.
type Watcher struct {
	Root       string
	Extensions []string
	Debounce   time.Duration
	Logger     *slog.Logger
}

// New returns a Watcher over root with the default extensions and a 200ms
// debounce.
func New(root string, logger *slog.Logger) *Watcher {
	return &Watcher{
		Root:       root,
		Extensions: DefaultExtensions,
		Debounce:   200 * time.Millisecond,
		Logger:     logger,
	}
}

// Run starts an fsnotify watcher on the root and delivers batches to h until
// ctx is cancelled. New directories created at runtime are added to the
// watch list and the files already inside them are reported as created.
func (w *Watcher) Run(ctx context.Context, h Handler) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := addDirsRecursive(fw, w.Root); err != nil {
		return err
	}

	w.Logger.Info("watcher: started", slog.String("root", w.Root))

	pending := make(map[string]string)
	var order []string
	record := func(op, rel string) {
		if _, ok := pending[rel]; !ok {
			order = append(order, rel)
		}
		// A create followed by writes is still a create.
		if pending[rel] == OpCreated && op == OpUpdated {
			return
		}
		pending[rel] = op
	}

	var flushTimer *time.Timer
	var flushCh <-chan time.Time
	scheduleFlush := func() {
		if flushTimer == nil {
			flushTimer = time.NewTimer(w.Debounce)
			flushCh = flushTimer.C
		} else {
			flushTimer.Reset(w.Debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if flushTimer != nil {
				flushTimer.Stop()
			}
			w.Logger.Info("watcher: stopped")
			return nil

		case <-flushCh:
			if len(order) == 0 {
				continue
			}
			batch := make([]Event, 0, len(order))
			for _, p := range order {
				batch = append(batch, Event{Op: pending[p], Path: p})
			}
			clear(pending)
			order = order[:0]
			h(batch)

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(fw, ev.Name); addErr != nil {
						w.Logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					} else {
						w.Logger.Debug("watcher: watching new dir", slog.String("path", ev.Name))
					}
					for _, rel := range w.sourcesIn(ev.Name) {
						record(OpCreated, rel)
					}
					scheduleFlush()
					continue
				}
			}

			if !w.wanted(ev.Name) {
				continue
			}
			rel, relErr := filepath.Rel(w.Root, ev.Name)
			if relErr != nil {
				continue
			}

			switch {
			case ev.Op&fsnotify.Create != 0:
				record(OpCreated, rel)
			case ev.Op&fsnotify.Write != 0:
				record(OpUpdated, rel)
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// Rename fires on the old path only; the new one arrives as Create.
				record(OpDeleted, rel)
			default:
				continue
			}
			w.Logger.Debug("watcher: change", slog.String("path", rel), slog.String("op", ev.Op.String()))
			scheduleFlush()

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.Logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func (w *Watcher) wanted(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	return slices.Contains(w.Extensions, strings.ToLower(filepath.Ext(path)))
}

// sourcesIn lists the wanted files below dir, relative to the root.
func (w *Watcher) sourcesIn(dir string) []string {
	var out []string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !w.wanted(path) {
			return nil
		}
		if rel, relErr := filepath.Rel(w.Root, path); relErr == nil {
			out = append(out, rel)
		}
		return nil
	})
	return out
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
