package verify

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/starford/vizbase/internal/apperr"
	"github.com/starford/vizbase/internal/baseline"
	"github.com/starford/vizbase/internal/diffwriter"
	"github.com/starford/vizbase/internal/imagecodec"
	"github.com/starford/vizbase/internal/models"
	"github.com/starford/vizbase/internal/testutil"
)

// memBaselines is an in-memory baseline.Store.
type memBaselines struct {
	data    map[models.ArtifactKey][]byte
	saves   int
	saveErr error
}

func newMemBaselines() *memBaselines {
	return &memBaselines{data: map[models.ArtifactKey][]byte{}}
}

func (m *memBaselines) Exists(key models.ArtifactKey) (bool, error) {
	_, ok := m.data[key]
	return ok, nil
}

func (m *memBaselines) Load(key models.ArtifactKey) (*imagecodec.PixelGrid, error) {
	raw, ok := m.data[key]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return imagecodec.Decode(raw)
}

func (m *memBaselines) Save(key models.ArtifactKey, raw []byte) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.data[key] = raw
	return nil
}

// memDiffs is an in-memory diffwriter.Writer.
type memDiffs struct {
	diffs    map[models.ArtifactKey]*imagecodec.PixelGrid
	currents map[models.ArtifactKey][]byte
	clears   int
	clearErr error
	err      error
}

func newMemDiffs() *memDiffs {
	return &memDiffs{
		diffs:    map[models.ArtifactKey]*imagecodec.PixelGrid{},
		currents: map[models.ArtifactKey][]byte{},
	}
}

func (m *memDiffs) Persist(key models.ArtifactKey, diff *imagecodec.PixelGrid) error {
	if m.err != nil {
		return m.err
	}
	m.diffs[key] = diff
	return nil
}

func (m *memDiffs) PersistCurrent(key models.ArtifactKey, raw []byte) error {
	if m.err != nil {
		return m.err
	}
	m.currents[key] = raw
	return nil
}

func (m *memDiffs) Clear(key models.ArtifactKey) error {
	m.clears++
	delete(m.diffs, key)
	delete(m.currents, key)
	return m.clearErr
}

var (
	_ baseline.Store    = (*memBaselines)(nil)
	_ diffwriter.Writer = (*memDiffs)(nil)
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 4}))
}

func newVerifier(t *testing.T, b baseline.Store, d diffwriter.Writer) *Verifier {
	t.Helper()
	v, err := New(Config{Baselines: b, Diffs: d, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return v
}

// countingCapture returns data and counts invocations.
func countingCapture(data []byte, calls *int) CaptureFunc {
	return func(context.Context) ([]byte, error) {
		*calls++
		return data, nil
	}
}

var key = models.ArtifactKey{Group: "ReportsSummary", Name: "results-pie"}

func TestAbsentBaselineIsStoredAndPasses(t *testing.T) {
	b, d := newMemBaselines(), newMemDiffs()
	v := newVerifier(t, b, d)
	img := testutil.SolidPNG(t, 4, 4, testutil.White)

	calls := 0
	ok, err := v.Verify(context.Background(), key, countingCapture(img, &calls))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Error("first run should pass")
	}
	if calls != 1 || b.saves != 1 {
		t.Errorf("capture calls = %d, saves = %d; want 1 and 1", calls, b.saves)
	}

	out, err := v.Run(context.Background(), key, countingCapture(img, &calls))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !out.Matched || out.BaselineCreated {
		t.Errorf("second run: matched=%v created=%v", out.Matched, out.BaselineCreated)
	}
	if out.Result.TotalPixels != 16 {
		t.Errorf("second run should scan pixels, total = %d", out.Result.TotalPixels)
	}
	if b.saves != 1 {
		t.Errorf("baseline re-created: saves = %d", b.saves)
	}
}

func TestMismatchPersistsDiff(t *testing.T) {
	b, d := newMemBaselines(), newMemDiffs()
	b.data[key] = testutil.SolidPNG(t, 4, 4, testutil.White)
	v := newVerifier(t, b, d)

	cur := testutil.WithPixels(testutil.Solid(4, 4, testutil.White), testutil.Red, [2]int{1, 1})
	calls := 0
	out, err := v.Run(context.Background(), key, countingCapture(testutil.PNG(t, cur), &calls))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Matched {
		t.Fatal("expected mismatch")
	}
	if out.Result.DifferingPixelRatio != 0.0625 {
		t.Errorf("ratio = %v", out.Result.DifferingPixelRatio)
	}
	if d.diffs[key] == nil {
		t.Error("diff not persisted")
	}
	if d.clears != 0 {
		t.Error("diff cleared on failure")
	}
}

func TestRecoveryClearsDiff(t *testing.T) {
	b, d := newMemBaselines(), newMemDiffs()
	white := testutil.SolidPNG(t, 4, 4, testutil.White)
	b.data[key] = white
	v := newVerifier(t, b, d)

	bad := testutil.PNG(t, testutil.WithPixels(testutil.Solid(4, 4, testutil.White), testutil.Red, [2]int{0, 0}))
	calls := 0
	if ok, _ := v.Verify(context.Background(), key, countingCapture(bad, &calls)); ok {
		t.Fatal("expected failure")
	}
	if ok, _ := v.Verify(context.Background(), key, countingCapture(white, &calls)); !ok {
		t.Fatal("expected pass")
	}
	if _, still := d.diffs[key]; still {
		t.Error("diff survived a passing comparison")
	}
}

func TestThresholdOverride(t *testing.T) {
	b, d := newMemBaselines(), newMemDiffs()
	b.data[key] = testutil.SolidPNG(t, 4, 4, testutil.White)
	v := newVerifier(t, b, d)
	cur := testutil.PNG(t, testutil.WithPixels(testutil.Solid(4, 4, testutil.White), testutil.Red, [2]int{3, 3}))

	calls := 0
	ok, err := v.Verify(context.Background(), key, countingCapture(cur, &calls), WithThreshold(0.1))
	if err != nil || !ok {
		t.Errorf("with 10%% threshold: ok=%v err=%v", ok, err)
	}
	if _, err := v.Verify(context.Background(), key, countingCapture(cur, &calls), WithThreshold(2)); err == nil {
		t.Error("threshold above 1 should be rejected")
	}
}

func TestSmallerCaptureWithinToleranceFails(t *testing.T) {
	b, d := newMemBaselines(), newMemDiffs()
	b.data[key] = testutil.SolidPNG(t, 100, 100, testutil.White)
	v := newVerifier(t, b, d)

	calls := 0
	out, err := v.Run(context.Background(), key, countingCapture(testutil.SolidPNG(t, 99, 100, testutil.White), &calls))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Matched || out.Result.DimensionMismatch {
		t.Errorf("matched=%v mismatch=%v, want a scanned failure", out.Matched, out.Result.DimensionMismatch)
	}
	if d.diffs[key] == nil {
		t.Error("diff should be persisted for an uncovered baseline column")
	}
}

func TestDimensionMismatchKeepsCapture(t *testing.T) {
	b, d := newMemBaselines(), newMemDiffs()
	b.data[key] = testutil.SolidPNG(t, 10, 10, testutil.White)
	v := newVerifier(t, b, d)

	cur := testutil.SolidPNG(t, 20, 10, testutil.White)
	calls := 0
	out, err := v.Run(context.Background(), key, countingCapture(cur, &calls))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Matched || !out.Result.DimensionMismatch {
		t.Errorf("matched=%v mismatch=%v", out.Matched, out.Result.DimensionMismatch)
	}
	if string(d.currents[key]) != string(cur) {
		t.Error("current capture not kept")
	}
}

func TestCorruptCaptureDowngradedToFailure(t *testing.T) {
	b, d := newMemBaselines(), newMemDiffs()
	b.data[key] = testutil.SolidPNG(t, 2, 2, testutil.White)
	v := newVerifier(t, b, d)

	calls := 0
	out, err := v.Run(context.Background(), key, countingCapture([]byte("garbage"), &calls))
	if err != nil {
		t.Fatalf("decode failure should not be an error: %v", err)
	}
	if out.Matched {
		t.Error("corrupt capture should fail")
	}
	if !errors.Is(out.Diagnostic, apperr.ErrDecode) {
		t.Errorf("diagnostic = %v, want ErrDecode", out.Diagnostic)
	}
}

func TestCorruptBaselineDowngradedToFailure(t *testing.T) {
	b, d := newMemBaselines(), newMemDiffs()
	b.data[key] = []byte("not a png")
	v := newVerifier(t, b, d)

	calls := 0
	ok, err := v.Verify(context.Background(), key, countingCapture(testutil.SolidPNG(t, 2, 2, testutil.White), &calls))
	if err != nil || ok {
		t.Errorf("ok=%v err=%v; want false, nil", ok, err)
	}
}

func TestCaptureErrorPropagates(t *testing.T) {
	v := newVerifier(t, newMemBaselines(), newMemDiffs())
	boom := errors.New("surface never settled")
	_, err := v.Verify(context.Background(), key, func(context.Context) ([]byte, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped capture error", err)
	}
}

func TestSaveErrorPropagates(t *testing.T) {
	b := newMemBaselines()
	b.saveErr = apperr.ErrIO
	v := newVerifier(t, b, newMemDiffs())
	calls := 0
	_, err := v.Verify(context.Background(), key, countingCapture([]byte("x"), &calls))
	if !errors.Is(err, apperr.ErrIO) {
		t.Errorf("err = %v, want ErrIO", err)
	}
}

func TestPersistErrorPropagates(t *testing.T) {
	b, d := newMemBaselines(), newMemDiffs()
	b.data[key] = testutil.SolidPNG(t, 2, 2, testutil.White)
	d.err = apperr.ErrIO
	v := newVerifier(t, b, d)
	calls := 0
	_, err := v.Verify(context.Background(), key, countingCapture(testutil.SolidPNG(t, 2, 2, testutil.Red), &calls))
	if !errors.Is(err, apperr.ErrIO) {
		t.Errorf("err = %v, want ErrIO", err)
	}
}

func TestClearErrorDoesNotFailVerdict(t *testing.T) {
	b, d := newMemBaselines(), newMemDiffs()
	img := testutil.SolidPNG(t, 2, 2, testutil.White)
	b.data[key] = img
	d.clearErr = apperr.ErrIO
	v := newVerifier(t, b, d)
	calls := 0
	ok, err := v.Verify(context.Background(), key, countingCapture(img, &calls))
	if err != nil || !ok {
		t.Errorf("ok=%v err=%v; want true, nil", ok, err)
	}
}

func TestInvalidKey(t *testing.T) {
	v := newVerifier(t, newMemBaselines(), newMemDiffs())
	calls := 0
	_, err := v.Verify(context.Background(), models.ArtifactKey{Group: "../x", Name: "y"}, countingCapture(nil, &calls))
	if !errors.Is(err, apperr.ErrInvalidKey) {
		t.Errorf("err = %v", err)
	}
	if calls != 0 {
		t.Error("capture invoked for an invalid key")
	}
}

func TestFileSystemScenario(t *testing.T) {
	_, fs := testutil.TestArtifacts(t)
	store := baseline.NewFSStore(fs)
	diffs := diffwriter.NewFSWriter(fs, quietLogger())
	v := newVerifier(t, store, diffs)

	ok, err := v.Verify(context.Background(), key, countingCapture(testutil.SolidPNG(t, 4, 4, testutil.White), new(int)))
	if err != nil || !ok {
		t.Fatalf("first verify: ok=%v err=%v", ok, err)
	}
	if exists, _ := fs.Exists("Baselines/ReportsSummary/results-pie.png"); !exists {
		t.Fatal("baseline file not on disk")
	}

	bad := testutil.PNG(t, testutil.WithPixels(testutil.Solid(4, 4, testutil.White), testutil.Red, [2]int{2, 2}))
	if ok, _ := v.Verify(context.Background(), key, countingCapture(bad, new(int))); ok {
		t.Fatal("expected failure")
	}
	if exists, _ := fs.Exists("Diffs/ReportsSummary/results-pie_diff.png"); !exists {
		t.Fatal("diff file not on disk")
	}

	good := testutil.SolidPNG(t, 4, 4, testutil.White)
	if ok, _ := v.Verify(context.Background(), key, countingCapture(good, new(int))); !ok {
		t.Fatal("expected pass")
	}
	if exists, _ := fs.Exists("Diffs/ReportsSummary/results-pie_diff.png"); exists {
		t.Error("diff file should be removed after recovery")
	}
}
