package index

import (
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/vizbase/internal/imagecodec"
	"github.com/starford/vizbase/internal/storage"
)

var quietLogger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// artifactsEnv sets up an artifacts root, storage, and DB for sync and watcher tests.
func artifactsEnv(t *testing.T) (string, storage.Provider, *DB) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return store.Root(), store, testDB(t)
}

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	g := imagecodec.NewGrid(w, h)
	g.Fill(color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	data, err := imagecodec.EncodeBytes(g)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func writeBaseline(t *testing.T, root, group, name string, data []byte) string {
	t.Helper()
	dir := filepath.Join(root, "Baselines", group)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	p := filepath.Join(dir, name+".png")
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestSyncIndexesBaselines(t *testing.T) {
	root, store, db := artifactsEnv(t)
	writeBaseline(t, root, "ReportsSummary", "results-pie", pngOf(t, 5, 7))
	writeBaseline(t, root, "ReportsSummary", "bar", pngOf(t, 2, 2))

	// Diffs and misplaced files are not baselines.
	_ = os.MkdirAll(filepath.Join(root, "Diffs", "ReportsSummary"), 0o755)
	_ = os.WriteFile(filepath.Join(root, "Diffs", "ReportsSummary", "bar_diff.png"), pngOf(t, 2, 2), 0o644)
	_ = os.WriteFile(filepath.Join(root, "Baselines", "loose.png"), pngOf(t, 1, 1), 0o644)

	if err := Sync(db, store, quietLogger); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	rows, _ := db.ListBaselines("")
	if len(rows) != 2 {
		t.Fatalf("indexed %d baselines, want 2: %+v", len(rows), rows)
	}
	pie, err := db.GetBaseline("Baselines/ReportsSummary/results-pie.png")
	if err != nil {
		t.Fatalf("GetBaseline: %v", err)
	}
	if pie.Width != 5 || pie.Height != 7 {
		t.Errorf("dimensions = %dx%d, want 5x7", pie.Width, pie.Height)
	}
}

func TestSyncRemovesStaleAndUpdatesChanged(t *testing.T) {
	root, store, db := artifactsEnv(t)
	gone := writeBaseline(t, root, "g", "gone", pngOf(t, 1, 1))
	writeBaseline(t, root, "g", "kept", pngOf(t, 1, 1))
	_ = Sync(db, store, quietLogger)

	_ = os.Remove(gone)
	writeBaseline(t, root, "g", "kept", pngOf(t, 3, 3))
	_ = Sync(db, store, quietLogger)

	if _, err := db.GetBaseline("Baselines/g/gone.png"); err == nil {
		t.Error("removed baseline still indexed")
	}
	kept, err := db.GetBaseline("Baselines/g/kept.png")
	if err != nil {
		t.Fatalf("GetBaseline: %v", err)
	}
	if kept.Width != 3 {
		t.Errorf("changed baseline not re-measured: width %d", kept.Width)
	}
}

func TestSyncMissingBaselinesDir(t *testing.T) {
	_, store, db := artifactsEnv(t)
	if err := Sync(db, store, quietLogger); err != nil {
		t.Errorf("Sync on empty root: %v", err)
	}
}
