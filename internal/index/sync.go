package index

import (
	"log/slog"
	"slices"

	"github.com/theoryandpractice/sitekit/internal/checksum"
	"github.com/theoryandpractice/sitekit/internal/models"
)

// Sync brings the index up to date with sections (kind → records):
//   - sections whose checksum changed are replaced
//   - sections no longer present are deleted
//
// It returns the kinds that changed, sorted.
func Sync(db RecordIndex, sections map[string][]models.Record, logger *slog.Logger) ([]string, error) {
	stored, err := db.SectionChecksums()
	if err != nil {
		return nil, err
	}

	var changed []string
	for kind, recs := range sections {
		cs, err := checksum.JSON(recs)
		if err != nil {
			logger.Warn("sync: checksum failed", slog.String("kind", kind), slog.String("error", err.Error()))
			continue
		}
		if stored[kind] == cs {
			continue
		}
		if err := db.ReplaceSection(kind, cs, recs); err != nil {
			logger.Warn("sync: index failed", slog.String("kind", kind), slog.String("error", err.Error()))
			continue
		}
		logger.Debug("sync: indexed", slog.String("kind", kind), slog.Int("records", len(recs)))
		changed = append(changed, kind)
	}

	// Remove sections that are no longer generated.
	for kind := range stored {
		if _, ok := sections[kind]; ok {
			continue
		}
		if err := db.DeleteSection(kind); err != nil {
			logger.Warn("sync: delete failed", slog.String("kind", kind), slog.String("error", err.Error()))
			continue
		}
		logger.Debug("sync: removed stale", slog.String("kind", kind))
		changed = append(changed, kind)
	}

	slices.Sort(changed)
	return changed, nil
}
