package index

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/starford/vizbase/internal/apperr"
	"github.com/starford/vizbase/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "vizbase-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func row(group, name, cs string) BaselineRow {
	k := models.ArtifactKey{Group: group, Name: name}
	return BaselineRow{Path: k.BaselinePath(), Key: k, Checksum: cs, Width: 4, Height: 3, UpdatedAt: time.Now()}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM baselines`).Scan(&count); err != nil {
		t.Fatalf("baselines table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM verifications`).Scan(&count); err != nil {
		t.Fatalf("verifications table missing: %v", err)
	}
}

func TestUpsertAndGetBaseline(t *testing.T) {
	db := testDB(t)
	r := row("ReportsSummary", "results-pie", "abc123")
	if err := db.UpsertBaseline(r); err != nil {
		t.Fatalf("UpsertBaseline: %v", err)
	}
	got, err := db.GetBaseline(r.Path)
	if err != nil {
		t.Fatalf("GetBaseline: %v", err)
	}
	if got.Checksum != "abc123" || got.Key != r.Key || got.Width != 4 || got.Height != 3 {
		t.Errorf("got %+v", got)
	}

	r.Checksum = "def456"
	_ = db.UpsertBaseline(r)
	got, _ = db.GetBaseline(r.Path)
	if got.Checksum != "def456" {
		t.Errorf("checksum = %q after update", got.Checksum)
	}
}

func TestGetBaseline_NotFound(t *testing.T) {
	db := testDB(t)
	_, err := db.GetBaseline("Baselines/g/missing.png")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListBaselinesByGroup(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertBaseline(row("b", "two", "1"))
	_ = db.UpsertBaseline(row("a", "one", "2"))
	_ = db.UpsertBaseline(row("b", "one", "3"))

	all, err := db.ListBaselines("")
	if err != nil {
		t.Fatalf("ListBaselines: %v", err)
	}
	if len(all) != 3 || all[0].Key.Group != "a" || all[1].Key.Name != "one" {
		t.Errorf("unexpected order: %+v", all)
	}

	b, _ := db.ListBaselines("b")
	if len(b) != 2 {
		t.Errorf("group b has %d rows, want 2", len(b))
	}
}

func TestDeleteBaseline(t *testing.T) {
	db := testDB(t)
	r := row("g", "n", "x")
	_ = db.UpsertBaseline(r)
	if err := db.DeleteBaseline(r.Path); err != nil {
		t.Fatalf("DeleteBaseline: %v", err)
	}
	cs, _ := db.AllChecksums()
	if len(cs) != 0 {
		t.Errorf("checksums after delete = %v", cs)
	}
	if err := db.DeleteBaseline(r.Path); err != nil {
		t.Errorf("second delete should be a no-op, got %v", err)
	}
}

func TestVerificationHistory(t *testing.T) {
	db := testDB(t)
	key := models.ArtifactKey{Group: "g", Name: "chart"}
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	runs := []models.Verification{
		{ID: "1", Key: key, Matched: true, BaselineCreated: true, CreatedAt: base},
		{ID: "2", Key: key, Matched: false, Result: models.ComparisonResult{
			DifferingPixelRatio: 0.0625, DiffPixels: 1, TotalPixels: 16,
			BaselineWidth: 4, BaselineHeight: 4, CurrentWidth: 4, CurrentHeight: 4,
		}, CreatedAt: base.Add(time.Minute)},
		{ID: "3", Key: models.ArtifactKey{Group: "other", Name: "chart"}, Matched: true, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, v := range runs {
		if err := db.RecordVerification(v); err != nil {
			t.Fatalf("RecordVerification: %v", err)
		}
	}

	got, err := db.ListVerifications(VerificationFilter{Group: "g", Name: "chart"})
	if err != nil {
		t.Fatalf("ListVerifications: %v", err)
	}
	if len(got) != 2 || got[0].ID != "2" || got[1].ID != "1" {
		t.Fatalf("history = %+v, want newest first [2 1]", got)
	}
	if got[0].Result.DiffPixels != 1 || got[0].Result.DifferingPixelRatio != 0.0625 || got[0].Result.Matched {
		t.Errorf("result not round-tripped: %+v", got[0].Result)
	}
	if !got[1].BaselineCreated {
		t.Error("baseline_created lost")
	}

	failed, _ := db.ListVerifications(VerificationFilter{FailedOnly: true})
	if len(failed) != 1 || failed[0].ID != "2" {
		t.Errorf("failed-only = %+v", failed)
	}

	page, _ := db.ListVerifications(VerificationFilter{Limit: 1, Offset: 1})
	if len(page) != 1 || page[0].ID != "2" {
		t.Errorf("paged = %+v", page)
	}
}
