package index

import "github.com/theoryandpractice/sitekit/internal/models"

// RecordIndex defines the read and write operations on the record index.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type RecordIndex interface {
	ReplaceSection(kind, checksum string, recs []models.Record) error
	DeleteSection(kind string) error
	SectionChecksums() (map[string]string, error)
	Get(kind, id string) (*models.Record, error)
	List(kind string, limit, offset int) ([]models.Record, int, error)
	Counts() (map[string]int, error)
	Search(query, kind string, limit int) ([]SearchResult, error)
	Close() error
}

// Verify *DB satisfies RecordIndex at compile time.
var _ RecordIndex = (*DB)(nil)
