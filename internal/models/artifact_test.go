package models

import (
	"errors"
	"testing"

	"github.com/starford/vizbase/internal/apperr"
)

func TestKeyPaths(t *testing.T) {
	k, err := NewKey("ReportsSummary", "results-pie")
	if err != nil {
		t.Fatalf("NewKey: %v", err)
	}
	if got := k.BaselinePath(); got != "Baselines/ReportsSummary/results-pie.png" {
		t.Errorf("BaselinePath = %q", got)
	}
	if got := k.DiffPath(); got != "Diffs/ReportsSummary/results-pie_diff.png" {
		t.Errorf("DiffPath = %q", got)
	}
	if got := k.CurrentPath(); got != "Diffs/ReportsSummary/results-pie_current.png" {
		t.Errorf("CurrentPath = %q", got)
	}
	if k.String() != "ReportsSummary/results-pie" {
		t.Errorf("String = %q", k.String())
	}
}

func TestKeyAllowsDotsInsideNames(t *testing.T) {
	for _, k := range []ArtifactKey{
		{Group: "v1..2", Name: "x"},
		{Group: "g", Name: "chart..legend"},
		{Group: "g", Name: "...x"},
	} {
		if err := k.Validate(); err != nil {
			t.Errorf("Validate(%+v) = %v, want nil", k, err)
		}
	}
}

func TestKeyValidation(t *testing.T) {
	bad := []ArtifactKey{
		{Group: "", Name: "x"},
		{Group: "g", Name: "  "},
		{Group: "..", Name: "x"},
		{Group: "g", Name: "../etc"},
		{Group: "a/b", Name: "x"},
		{Group: "g", Name: `c:\x`},
		{Group: ".", Name: "x"},
	}
	for _, k := range bad {
		if err := k.Validate(); !errors.Is(err, apperr.ErrInvalidKey) {
			t.Errorf("Validate(%+v) = %v, want ErrInvalidKey", k, err)
		}
	}
}

func TestParseKey(t *testing.T) {
	k, err := ParseKey("Dashboard/bar-chart")
	if err != nil {
		t.Fatalf("ParseKey: %v", err)
	}
	if k.Group != "Dashboard" || k.Name != "bar-chart" {
		t.Errorf("key = %+v", k)
	}
	for _, s := range []string{"nogroup", "a/b/c", "/x"} {
		if _, err := ParseKey(s); err == nil {
			t.Errorf("ParseKey(%q) should fail", s)
		}
	}
}

func TestKeyFromBaselinePath(t *testing.T) {
	k, ok := KeyFromBaselinePath("Baselines/Reviews/sentiment.png")
	if !ok || k != (ArtifactKey{Group: "Reviews", Name: "sentiment"}) {
		t.Errorf("got %+v, %v", k, ok)
	}
	for _, p := range []string{"Diffs/Reviews/x_diff.png", "Baselines/x.png", "Baselines/a/b/c.png", "Baselines/a/b.jpg"} {
		if _, ok := KeyFromBaselinePath(p); ok {
			t.Errorf("KeyFromBaselinePath(%q) should not match", p)
		}
	}
}
