// Package models defines the domain types for vizbase.
package models

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/starford/vizbase/internal/apperr"
)

// Artifact directory names under the artifacts root.
const (
	BaselinesDir = "Baselines"
	DiffsDir     = "Diffs"
)

// ArtifactKey identifies a logical visual target, e.g. a single chart on a page.
type ArtifactKey struct {
	Group string `json:"group"`
	Name  string `json:"name"`
}

// NewKey builds a validated ArtifactKey.
func NewKey(group, name string) (ArtifactKey, error) {
	k := ArtifactKey{Group: group, Name: name}
	if err := k.Validate(); err != nil {
		return ArtifactKey{}, err
	}
	return k, nil
}

// ParseKey parses "group/name" into an ArtifactKey.
func ParseKey(s string) (ArtifactKey, error) {
	group, name, ok := strings.Cut(s, "/")
	if !ok {
		return ArtifactKey{}, fmt.Errorf("%w: %q is not group/name", apperr.ErrInvalidKey, s)
	}
	return NewKey(group, name)
}

// Validate rejects empty components and anything that could leave the
// artifact directory once joined into a path.
func (k ArtifactKey) Validate() error {
	for _, part := range []string{k.Group, k.Name} {
		if err := ValidateComponent(part); err != nil {
			return err
		}
	}
	return nil
}

// ValidateComponent checks one half of a key (a group or a name).
func ValidateComponent(s string) error {
	switch {
	case strings.TrimSpace(s) == "":
		return fmt.Errorf("%w: empty component", apperr.ErrInvalidKey)
	case s == "." || s == "..":
		return fmt.Errorf("%w: traversal in %q", apperr.ErrInvalidKey, s)
	case strings.ContainsAny(s, `/\:`) || strings.ContainsRune(s, 0):
		return fmt.Errorf("%w: separator in %q", apperr.ErrInvalidKey, s)
	}
	return nil
}

// String returns "group/name".
func (k ArtifactKey) String() string {
	return k.Group + "/" + k.Name
}

// BaselinePath is the slash-separated path of the baseline relative to the artifacts root.
func (k ArtifactKey) BaselinePath() string {
	return path.Join(BaselinesDir, k.Group, k.Name+".png")
}

// DiffPath is the slash-separated path of the diff image relative to the artifacts root.
func (k ArtifactKey) DiffPath() string {
	return path.Join(DiffsDir, k.Group, k.Name+"_diff.png")
}

// CurrentPath is where a capture whose dimensions diverged too far is kept for inspection.
func (k ArtifactKey) CurrentPath() string {
	return path.Join(DiffsDir, k.Group, k.Name+"_current.png")
}

// KeyFromBaselinePath is the inverse of BaselinePath. ok is false for paths
// that are not laid out as Baselines/{group}/{name}.png.
func KeyFromBaselinePath(p string) (ArtifactKey, bool) {
	parts := strings.Split(path.Clean(strings.ReplaceAll(p, `\`, "/")), "/")
	if len(parts) != 3 || parts[0] != BaselinesDir || !strings.HasSuffix(parts[2], ".png") {
		return ArtifactKey{}, false
	}
	k := ArtifactKey{Group: parts[1], Name: strings.TrimSuffix(parts[2], ".png")}
	if k.Validate() != nil {
		return ArtifactKey{}, false
	}
	return k, true
}

// ComparisonResult is the verdict of a single baseline/current comparison.
type ComparisonResult struct {
	Matched             bool    `json:"matched"`
	DifferingPixelRatio float64 `json:"differing_pixel_ratio"`
	DimensionMismatch   bool    `json:"dimension_mismatch"`
	DiffPixels          int     `json:"diff_pixels"`
	TotalPixels         int     `json:"total_pixels"`
	BaselineWidth       int     `json:"baseline_width"`
	BaselineHeight      int     `json:"baseline_height"`
	CurrentWidth        int     `json:"current_width"`
	CurrentHeight       int     `json:"current_height"`
}

// Verification is one recorded run of the orchestrator for a key.
type Verification struct {
	ID              string           `json:"id"`
	Key             ArtifactKey      `json:"key"`
	Matched         bool             `json:"matched"`
	BaselineCreated bool             `json:"baseline_created"`
	Result          ComparisonResult `json:"result"`
	Error           string           `json:"error,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// BaselineMetadata is a lightweight representation returned by list operations.
type BaselineMetadata struct {
	Key       ArtifactKey `json:"key"`
	Path      string      `json:"path"`
	Checksum  string      `json:"checksum"`
	Width     int         `json:"width,omitempty"`
	Height    int         `json:"height,omitempty"`
	UpdatedAt time.Time   `json:"updated_at"`
}
