// Package collabyears fills in collaborator start and end years from the
// publications they co-authored with the site owner.
package collabyears

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/theoryandpractice/sitekit/internal/apperr"
	"github.com/theoryandpractice/sitekit/internal/scholar"
)

// Span is the range of co-authored publication years.
type Span struct {
	First  int
	Last   int
	Papers int
}

// WorkSource finds authors and their joint works; *scholar.OpenAlex
// implements it.
type WorkSource interface {
	SearchAuthor(ctx context.Context, name string) (scholar.Author, error)
	CoauthoredWorks(ctx context.Context, authorID, otherID string) ([]scholar.Work, error)
}

// Years looks name up and returns the span of works shared with ownerID.
// It returns apperr.ErrNotFound when the author or any dated joint work is
// missing.
func Years(ctx context.Context, src WorkSource, ownerID, name string) (Span, error) {
	author, err := src.SearchAuthor(ctx, name)
	if err != nil {
		return Span{}, err
	}
	if author.ShortID() == "" {
		return Span{}, fmt.Errorf("collabyears: %q has no id: %w", name, apperr.ErrNotFound)
	}
	works, err := src.CoauthoredWorks(ctx, author.ShortID(), ownerID)
	if err != nil {
		return Span{}, err
	}

	var s Span
	for _, w := range works {
		if w.PublicationYear == 0 {
			continue
		}
		if s.Papers == 0 || w.PublicationYear < s.First {
			s.First = w.PublicationYear
		}
		if w.PublicationYear > s.Last {
			s.Last = w.PublicationYear
		}
		s.Papers++
	}
	if s.Papers == 0 {
		return Span{}, fmt.Errorf("collabyears: no joint works for %q: %w", name, apperr.ErrNotFound)
	}
	return s, nil
}

// Report counts the outcome per person.
type Report struct {
	Updated  int
	Skipped  int
	NotFound int
}

// Updater edits a collaborators document in place.
type Updater struct {
	Source  WorkSource
	OwnerID string
	Delay   time.Duration
	Now     func() time.Time
	Out     io.Writer
	Logger  *slog.Logger
}

// Update walks the people of doc and adds the missing years. People with
// both years set are skipped without a lookup.
func (u *Updater) Update(ctx context.Context, doc *Document) (Report, error) {
	logger := u.Logger
	if logger == nil {
		logger = slog.Default()
	}
	out := u.Out
	if out == nil {
		out = io.Discard
	}
	now := time.Now
	if u.Now != nil {
		now = u.Now
	}
	thisYear := now().Year()

	people := doc.People()
	fmt.Fprintf(out, "Found %d collaborators to process...\n", len(people))

	var rep Report
	for i, p := range people {
		hasStart, hasEnd := p.Has(keyStartYear), p.Has(keyEndYear)
		if hasStart && hasEnd {
			rep.Skipped++
			continue
		}
		name := p.Name()
		prefix := fmt.Sprintf("  [%d/%d] %s...", i+1, len(people), name)

		span, err := Years(ctx, u.Source, u.OwnerID, name)
		if err != nil {
			if ctx.Err() != nil {
				return rep, ctx.Err()
			}
			if !errors.Is(err, apperr.ErrNotFound) {
				logger.Warn("collaborator lookup failed",
					slog.String("name", name),
					slog.String("error", err.Error()))
			}
			rep.NotFound++
			fmt.Fprintf(out, "%s no co-authored papers found\n", prefix)
			if err := sleep(ctx, u.Delay); err != nil {
				return rep, err
			}
			continue
		}

		modified := false
		if !hasStart {
			p.SetStartYear(span.First)
			modified = true
		}
		// A collaboration with a paper last year is still ongoing.
		if !hasEnd && span.Last < thisYear-1 {
			p.SetEndYear(span.Last)
			modified = true
		}

		if modified {
			rep.Updated++
			fmt.Fprintf(out, "%s %d papers, %d-%d\n", prefix, span.Papers, span.First, span.Last)
		} else {
			rep.Skipped++
			fmt.Fprintf(out, "%s %d papers (already set)\n", prefix, span.Papers)
		}

		if err := sleep(ctx, u.Delay); err != nil {
			return rep, err
		}
	}
	return rep, nil
}

// WriteSummary prints the report totals.
func WriteSummary(w io.Writer, r Report) {
	fmt.Fprintf(w, "\nSummary:\n")
	fmt.Fprintf(w, "  Updated: %d\n", r.Updated)
	fmt.Fprintf(w, "  Skipped (already set): %d\n", r.Skipped)
	fmt.Fprintf(w, "  Not found: %d\n", r.NotFound)
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
