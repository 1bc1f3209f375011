package index

import "github.com/starford/vizbase/internal/models"

// ArtifactIndex defines the interface for baseline and verification indexing.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type ArtifactIndex interface {
	UpsertBaseline(b BaselineRow) error
	DeleteBaseline(path string) error
	GetBaseline(path string) (*BaselineRow, error)
	ListBaselines(group string) ([]BaselineRow, error)
	AllChecksums() (map[string]string, error)
	RecordVerification(v models.Verification) error
	ListVerifications(f VerificationFilter) ([]models.Verification, error)
	Close() error
}

// Verify *DB satisfies ArtifactIndex at compile time.
var _ ArtifactIndex = (*DB)(nil)
