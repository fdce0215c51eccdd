package citations

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/theoryandpractice/sitekit/internal/bibtex"
	"github.com/theoryandpractice/sitekit/internal/scholar"
)

var sourceLabels = map[string]string{
	"openalex":         "OpenAlex",
	"semantic_scholar": "Semantic Scholar",
}

// Report counts the outcome of an update run.
type Report struct {
	Manual  int
	Fetched int
	Cached  int
	NoData  int
	Missing int
}

// Updater refreshes citation counts for a set of BibTeX keys.
type Updater struct {
	Provider scholar.Provider
	Delay    time.Duration
	Out      io.Writer
	Logger   *slog.Logger
}

// Update builds a new cache for keys. For each key, a manual override wins;
// a key absent from db is reported and skipped; otherwise the provider is
// asked, falling back to the existing cache entry and then to a zero count.
func (u *Updater) Update(ctx context.Context, keys []string, db *bibtex.Database, manual, existing Cache) (Cache, Report, error) {
	logger := u.Logger
	if logger == nil {
		logger = slog.Default()
	}
	out := u.Out
	if out == nil {
		out = io.Discard
	}

	keys = slices.Clone(keys)
	slices.Sort(keys)
	keys = slices.Compact(keys)

	fmt.Fprintf(out, "Found %d publications to fetch citations for...\n", len(keys))

	result := make(Cache, len(keys))
	var rep Report
	for i, key := range keys {
		prefix := fmt.Sprintf("  [%d/%d] %s", i+1, len(keys), key)

		if m, ok := manual[key]; ok {
			result[key] = m
			rep.Manual++
			fmt.Fprintf(out, "%s: using manual override (%d citations)\n", prefix, m.CitedByCount)
			continue
		}

		entry, ok := db.Lookup(key)
		if !ok {
			rep.Missing++
			fmt.Fprintf(out, "%s: not in BibTeX\n", prefix)
			continue
		}

		ref := scholar.Ref{
			DOI:     strings.TrimSpace(entry.Get("doi")),
			ArXivID: strings.TrimSpace(entry.Get("eprint")),
		}
		year := Year(entry.Get("year"))

		res, err := u.Provider.CitationCount(ctx, ref)
		switch {
		case err == nil:
			e := Entry{CitedByCount: res.CitedByCount, Year: year}
			switch res.Source {
			case "openalex":
				e.OpenAlexID = res.ID
			case "semantic_scholar":
				e.SemanticScholarID = res.ID
			}
			result[key] = e
			rep.Fetched++
			if label, ok := sourceLabels[res.Source]; ok {
				fmt.Fprintf(out, "%s... %d citations (%s)\n", prefix, res.CitedByCount, label)
			} else {
				fmt.Fprintf(out, "%s... %d citations\n", prefix, res.CitedByCount)
			}
		case hasKey(existing, key):
			logger.Debug("citation lookup failed, keeping cached value",
				slog.String("key", key),
				slog.String("error", err.Error()))
			result[key] = existing[key]
			rep.Cached++
			fmt.Fprintf(out, "%s... using cached: %d citations\n", prefix, existing[key].CitedByCount)
		default:
			result[key] = Entry{CitedByCount: 0, Year: year}
			rep.NoData++
			fmt.Fprintf(out, "%s... no data\n", prefix)
		}

		if err := sleep(ctx, u.Delay); err != nil {
			return result, rep, err
		}
	}
	return result, rep, nil
}

func hasKey(c Cache, key string) bool {
	_, ok := c[key]
	return ok
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Diff describes how next differs from prev, one line per changed key in
// key order.
func Diff(prev, next Cache) []string {
	keys := make([]string, 0, len(prev)+len(next))
	for k := range prev {
		keys = append(keys, k)
	}
	for k := range next {
		if !hasKey(prev, k) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	var lines []string
	for _, k := range keys {
		old, hadOld := prev[k]
		cur, hasNew := next[k]
		switch {
		case !hadOld:
			lines = append(lines, fmt.Sprintf("+ %s: %d", k, cur.CitedByCount))
		case !hasNew:
			lines = append(lines, fmt.Sprintf("- %s (was %d)", k, old.CitedByCount))
		case old != cur:
			lines = append(lines, fmt.Sprintf("~ %s: %d -> %d", k, old.CitedByCount, cur.CitedByCount))
		}
	}
	return lines
}
