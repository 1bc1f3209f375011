// Package diffwriter keeps the most recent failure evidence for each key on disk.
package diffwriter

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/vizbase/internal/apperr"
	"github.com/starford/vizbase/internal/imagecodec"
	"github.com/starford/vizbase/internal/models"
	"github.com/starford/vizbase/internal/storage"
)

// Writer persists and clears diff artifacts.
type Writer interface {
	// Persist encodes diff and overwrites the diff artifact for key.
	// Evidence left by an earlier failure of the other kind is removed.
	Persist(key models.ArtifactKey, diff *imagecodec.PixelGrid) error
	// PersistCurrent keeps the raw capture that could not be aligned with the
	// baseline, replacing any diff image from an earlier failure.
	PersistCurrent(key models.ArtifactKey, raw []byte) error
	// Clear removes any diff artifacts for key. Missing files are not an error.
	Clear(key models.ArtifactKey) error
}

// FSWriter is a Writer on top of a storage.Provider rooted at the artifacts directory.
type FSWriter struct {
	store  storage.Provider
	logger *slog.Logger
}

// Verify *FSWriter satisfies Writer at compile time.
var _ Writer = (*FSWriter)(nil)

// NewFSWriter creates a diff writer.
func NewFSWriter(store storage.Provider, logger *slog.Logger) *FSWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSWriter{store: store, logger: logger}
}

// Path returns the absolute location of the diff image for key.
func (w *FSWriter) Path(key models.ArtifactKey) string {
	abs, err := w.store.Abs(key.DiffPath())
	if err != nil {
		return key.DiffPath()
	}
	return abs
}

// Persist encodes diff as PNG and writes it to the key's diff path.
func (w *FSWriter) Persist(key models.ArtifactKey, diff *imagecodec.PixelGrid) error {
	if err := key.Validate(); err != nil {
		return err
	}
	data, err := imagecodec.EncodeBytes(diff)
	if err != nil {
		return fmt.Errorf("diffwriter: %s: %w", key, err)
	}
	if err := w.store.Write(key.DiffPath(), data); err != nil {
		return fmt.Errorf("%w: diffwriter: persist %s: %w", apperr.ErrIO, key, err)
	}
	w.removeStale(key.CurrentPath())
	w.logger.Debug("diff persisted", slog.String("key", key.String()), slog.String("path", key.DiffPath()))
	return nil
}

// PersistCurrent writes raw next to the diff path.
func (w *FSWriter) PersistCurrent(key models.ArtifactKey, raw []byte) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if err := w.store.Write(key.CurrentPath(), raw); err != nil {
		return fmt.Errorf("%w: diffwriter: persist current %s: %w", apperr.ErrIO, key, err)
	}
	w.removeStale(key.DiffPath())
	w.logger.Debug("current capture persisted", slog.String("key", key.String()), slog.String("path", key.CurrentPath()))
	return nil
}

func (w *FSWriter) removeStale(path string) {
	if err := w.store.Delete(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		w.logger.Warn("diffwriter: remove stale evidence failed", slog.String("path", path), slog.String("error", err.Error()))
	}
}

// Clear deletes the diff image and any kept capture for key.
func (w *FSWriter) Clear(key models.ArtifactKey) error {
	if err := key.Validate(); err != nil {
		return err
	}
	var errs []error
	for _, p := range []string{key.DiffPath(), key.CurrentPath()} {
		if err := w.store.Delete(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: diffwriter: clear %s: %w", apperr.ErrIO, key, errors.Join(errs...))
	}
	return nil
}

// Raw returns the stored diff image bytes.
func (w *FSWriter) Raw(key models.ArtifactKey) ([]byte, error) {
	return w.read(key, key.DiffPath())
}

// RawCurrent returns the capture kept after a dimension mismatch.
func (w *FSWriter) RawCurrent(key models.ArtifactKey) ([]byte, error) {
	return w.read(key, key.CurrentPath())
}

func (w *FSWriter) read(key models.ArtifactKey, path string) ([]byte, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	data, err := w.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", apperr.ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: diffwriter: read %s: %w", apperr.ErrIO, path, err)
	}
	return data, nil
}
