// Package testutil provides shared test helpers for artifact roots, databases and PNG fixtures.
package testutil

import (
	"image/color"
	"os"
	"testing"

	"github.com/starford/vizbase/internal/imagecodec"
	"github.com/starford/vizbase/internal/index"
	"github.com/starford/vizbase/internal/storage"
)

// Colours used across fixtures.
var (
	White = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	Red   = color.NRGBA{R: 255, A: 255}
	Blue  = color.NRGBA{B: 255, A: 255}
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "vizbase-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestArtifacts creates a temporary artifacts root with a storage provider.
func TestArtifacts(t *testing.T) (string, *storage.FS) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return root, store
}

// Solid returns a w x h grid filled with c.
func Solid(w, h int, c color.NRGBA) *imagecodec.PixelGrid {
	g := imagecodec.NewGrid(w, h)
	g.Fill(c)
	return g
}

// PNG encodes g, failing the test on error.
func PNG(t *testing.T, g *imagecodec.PixelGrid) []byte {
	t.Helper()
	data, err := imagecodec.EncodeBytes(g)
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return data
}

// SolidPNG is PNG(Solid(w, h, c)).
func SolidPNG(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	return PNG(t, Solid(w, h, c))
}

// WithPixels returns a copy of g with the given coordinates painted c.
func WithPixels(g *imagecodec.PixelGrid, c color.NRGBA, points ...[2]int) *imagecodec.PixelGrid {
	out := imagecodec.NewGrid(g.Width, g.Height)
	copy(out.Pix, g.Pix)
	for _, p := range points {
		out.Set(p[0], p[1], c)
	}
	return out
}
