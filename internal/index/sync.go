package index

import (
	"log/slog"
	"time"

	"github.com/starford/vizbase/internal/checksum"
	"github.com/starford/vizbase/internal/imagecodec"
	"github.com/starford/vizbase/internal/models"
	"github.com/starford/vizbase/internal/storage"
)

// Sync walks the Baselines tree and brings the index up to date:
//   - new/changed baselines are measured and upserted
//   - baselines removed from disk are deleted from the index
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List(models.BaselinesDir, ".png")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		if _, ok := models.KeyFromBaselinePath(m.Path); !ok {
			continue
		}
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := indexFile(db, m.Path, data, m.UpdatedAt); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteBaseline(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// indexFile measures a baseline and upserts it. A file that is not a
// readable PNG is still indexed, with zero dimensions, so that it shows up
// in listings; the verifier reports it as a decode failure.
func indexFile(db *DB, path string, data []byte, modTime time.Time) error {
	key, ok := models.KeyFromBaselinePath(path)
	if !ok {
		return nil
	}
	w, h, _ := imagecodec.Dimensions(data)
	return db.UpsertBaseline(BaselineRow{
		Path:      path,
		Key:       key,
		Checksum:  checksum.Sum(data),
		Width:     w,
		Height:    h,
		UpdatedAt: modTime.UTC(),
	})
}
