package internal

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/vizbase/internal/models"
	"github.com/starford/vizbase/internal/testutil"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.Artifacts.Root = filepath.Join(dir, "Data", "Images")
	cfg.SQLite.Path = filepath.Join(dir, "vizbase.db")
	return cfg
}

func writePNG(t *testing.T, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "capture.png")
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestRunVerify_FileRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	opts := []Option{WithConfig(cfg), WithLogOutput(io.Discard)}
	key := models.ArtifactKey{Group: "ReportsSummary", Name: "results-pie"}
	ctx := context.Background()

	base := testutil.Solid(10, 10, testutil.White)
	v, err := RunVerify(ctx, VerifyRequest{Key: key, ImagePath: writePNG(t, testutil.PNG(t, base))}, opts...)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if !v.BaselineCreated {
		t.Error("first run should create the baseline")
	}
	if _, err := os.Stat(filepath.Join(cfg.Artifacts.Root, "Baselines", "ReportsSummary", "results-pie.png")); err != nil {
		t.Errorf("baseline file missing: %v", err)
	}

	// 2 of 100 pixels differ: exactly at the default threshold.
	two := testutil.WithPixels(base, testutil.Red, [2]int{0, 0}, [2]int{9, 9})
	if _, err := RunVerify(ctx, VerifyRequest{Key: key, ImagePath: writePNG(t, testutil.PNG(t, two))}, opts...); err != nil {
		t.Errorf("ratio at threshold should pass: %v", err)
	}

	strict := 0.019
	_, err = RunVerify(ctx, VerifyRequest{Key: key, ImagePath: writePNG(t, testutil.PNG(t, two)), Threshold: &strict}, opts...)
	if !errors.Is(err, ErrMismatch) {
		t.Fatalf("err = %v, want ErrMismatch", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Artifacts.Root, "Diffs", "ReportsSummary", "results-pie_diff.png")); err != nil {
		t.Errorf("diff file missing: %v", err)
	}
}

func TestRunVerify_RequiresConfig(t *testing.T) {
	key := models.ArtifactKey{Group: "g", Name: "n"}
	if _, err := RunVerify(context.Background(), VerifyRequest{Key: key, ImagePath: "x.png"}); err == nil {
		t.Fatal("missing config should fail")
	}
}
