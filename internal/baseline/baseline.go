// Package baseline persists accepted reference images keyed by ArtifactKey.
package baseline

import (
	"errors"
	"fmt"
	"os"

	"github.com/starford/vizbase/internal/apperr"
	"github.com/starford/vizbase/internal/imagecodec"
	"github.com/starford/vizbase/internal/models"
	"github.com/starford/vizbase/internal/storage"
)

// Store resolves, tests and persists baselines.
type Store interface {
	// Exists reports whether a baseline is present for key.
	Exists(key models.ArtifactKey) (bool, error)
	// Load decodes the stored baseline. Missing baselines yield
	// apperr.ErrNotFound, corrupt ones apperr.ErrDecode.
	Load(key models.ArtifactKey) (*imagecodec.PixelGrid, error)
	// Save writes raw verbatim to the baseline location. raw is not validated.
	Save(key models.ArtifactKey, raw []byte) error
}

// FSStore is a Store on top of a storage.Provider rooted at the artifacts directory.
type FSStore struct {
	store storage.Provider
}

// Verify *FSStore satisfies Store at compile time.
var _ Store = (*FSStore)(nil)

// NewFSStore creates a baseline store.
func NewFSStore(store storage.Provider) *FSStore {
	return &FSStore{store: store}
}

// Path returns the absolute location of the baseline for key.
func (s *FSStore) Path(key models.ArtifactKey) string {
	abs, err := s.store.Abs(key.BaselinePath())
	if err != nil {
		return key.BaselinePath()
	}
	return abs
}

// Exists reports whether a baseline file is present for key.
func (s *FSStore) Exists(key models.ArtifactKey) (bool, error) {
	if err := key.Validate(); err != nil {
		return false, err
	}
	ok, err := s.store.Exists(key.BaselinePath())
	if err != nil {
		return false, fmt.Errorf("%w: baseline: exists %s: %w", apperr.ErrIO, key, err)
	}
	return ok, nil
}

// Raw returns the stored bytes without decoding them.
func (s *FSStore) Raw(key models.ArtifactKey) ([]byte, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	data, err := s.store.Read(key.BaselinePath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: baseline %s", apperr.ErrNotFound, key)
		}
		return nil, fmt.Errorf("%w: baseline: read %s: %w", apperr.ErrIO, key, err)
	}
	return data, nil
}

// Load decodes the baseline for key.
func (s *FSStore) Load(key models.ArtifactKey) (*imagecodec.PixelGrid, error) {
	data, err := s.Raw(key)
	if err != nil {
		return nil, err
	}
	g, err := imagecodec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("baseline %s: %w", key, err)
	}
	return g, nil
}

// Save writes raw to the baseline location, creating directories as needed.
func (s *FSStore) Save(key models.ArtifactKey, raw []byte) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if err := s.store.Write(key.BaselinePath(), raw); err != nil {
		return fmt.Errorf("%w: baseline: save %s: %w", apperr.ErrIO, key, err)
	}
	return nil
}
