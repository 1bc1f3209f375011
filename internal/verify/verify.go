// Package verify coordinates the baseline store, comparator and diff writer
// for a single named visual target.
//
// The flow has exactly two branches. When no baseline exists the capture is
// stored as the new baseline and the call passes. Otherwise the capture is
// compared with the baseline; a failure persists diff evidence and a pass
// clears it.
//
// Verify is not safe for concurrent calls on the same key; callers must
// serialise them. Distinct keys touch disjoint files and may run in parallel.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/vizbase/internal/baseline"
	"github.com/starford/vizbase/internal/checksum"
	"github.com/starford/vizbase/internal/compare"
	"github.com/starford/vizbase/internal/diffwriter"
	"github.com/starford/vizbase/internal/imagecodec"
	"github.com/starford/vizbase/internal/models"
)

// CaptureFunc returns the encoded image of the region under test. It is
// called at most once per verification and must only return once the
// rendering surface is stable.
type CaptureFunc func(ctx context.Context) ([]byte, error)

// Outcome is the full record of one verification.
type Outcome struct {
	Key             models.ArtifactKey
	Matched         bool
	BaselineCreated bool
	Result          models.ComparisonResult
	// Diagnostic is set when decoding or scanning failed and the failure
	// was downgraded to a mismatch.
	Diagnostic error
	// CaptureChecksum is the digest of the captured bytes.
	CaptureChecksum string
}

// Option tunes a single Verify call.
type Option func(*callOptions)

type callOptions struct {
	threshold float64
}

// WithThreshold overrides the verifier's default threshold for one call.
func WithThreshold(t float64) Option {
	return func(o *callOptions) {
		o.threshold = t
	}
}

// Verifier is the visual regression orchestrator.
type Verifier struct {
	baselines  baseline.Store
	diffs      diffwriter.Writer
	comparator *compare.Comparator
	threshold  float64
	logger     *slog.Logger
}

// Config holds the dependencies of a Verifier.
type Config struct {
	Baselines  baseline.Store
	Diffs      diffwriter.Writer
	Comparator *compare.Comparator
	// Threshold is the default differing-pixel ratio; nil means compare.DefaultThreshold.
	Threshold *float64
	Logger    *slog.Logger
}

// New creates a Verifier.
func New(cfg Config) (*Verifier, error) {
	if cfg.Baselines == nil || cfg.Diffs == nil {
		return nil, errors.New("verify: baseline store and diff writer are required")
	}
	if cfg.Comparator == nil {
		cfg.Comparator = compare.New()
	}
	threshold := compare.DefaultThreshold
	if cfg.Threshold != nil {
		threshold = *cfg.Threshold
	}
	if err := compare.ValidateThreshold(threshold); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Verifier{
		baselines:  cfg.Baselines,
		diffs:      cfg.Diffs,
		comparator: cfg.Comparator,
		threshold:  threshold,
		logger:     cfg.Logger,
	}, nil
}

// Verify reports whether the capture matches the baseline for key. Errors are
// returned only for invalid input, capture failures and artifact store
// write failures; decode and scan problems yield false.
func (v *Verifier) Verify(ctx context.Context, key models.ArtifactKey, capture CaptureFunc, opts ...Option) (bool, error) {
	out, err := v.Run(ctx, key, capture, opts...)
	if err != nil {
		return false, err
	}
	return out.Matched, nil
}

// Run is Verify returning the full Outcome.
func (v *Verifier) Run(ctx context.Context, key models.ArtifactKey, capture CaptureFunc, opts ...Option) (*Outcome, error) {
	co := callOptions{threshold: v.threshold}
	for _, opt := range opts {
		opt(&co)
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if err := compare.ValidateThreshold(co.threshold); err != nil {
		return nil, err
	}
	if capture == nil {
		return nil, errors.New("verify: capture function is required")
	}

	logger := v.logger.With(slog.String("group", key.Group), slog.String("name", key.Name))

	exists, err := v.baselines.Exists(key)
	if err != nil {
		return nil, err
	}
	if !exists {
		return v.createBaseline(ctx, key, capture, logger)
	}

	out := &Outcome{Key: key}

	base, err := v.baselines.Load(key)
	if err != nil {
		return v.downgrade(out, logger, "load baseline", err), nil
	}

	raw, err := capture(ctx)
	if err != nil {
		return nil, fmt.Errorf("verify: capture %s: %w", key, err)
	}
	out.CaptureChecksum = checksum.Sum(raw)

	current, err := imagecodec.Decode(raw)
	if err != nil {
		return v.downgrade(out, logger, "decode capture", err), nil
	}

	res, diff, err := v.comparator.Compare(base, current, co.threshold)
	if err != nil {
		return v.downgrade(out, logger, "compare", err), nil
	}
	out.Result = res
	out.Matched = res.Matched

	switch {
	case res.Matched:
		logger.Info("images match",
			slog.Float64("difference", res.DifferingPixelRatio),
			slog.Float64("threshold", co.threshold))
		if err := v.diffs.Clear(key); err != nil {
			logger.Warn("clear stale diff failed", slog.String("error", err.Error()))
		}

	case res.DimensionMismatch:
		logger.Warn("dimensions exceed tolerance",
			slog.Int("baseline_width", res.BaselineWidth),
			slog.Int("baseline_height", res.BaselineHeight),
			slog.Int("current_width", res.CurrentWidth),
			slog.Int("current_height", res.CurrentHeight),
			slog.Int("tolerance", v.comparator.DimensionTolerance()))
		if err := v.diffs.PersistCurrent(key, raw); err != nil {
			return nil, err
		}

	default:
		logger.Warn("images differ",
			slog.Float64("difference", res.DifferingPixelRatio),
			slog.Float64("threshold", co.threshold),
			slog.Int("diff_pixels", res.DiffPixels))
		if err := v.diffs.Persist(key, diff); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (v *Verifier) createBaseline(ctx context.Context, key models.ArtifactKey, capture CaptureFunc, logger *slog.Logger) (*Outcome, error) {
	raw, err := capture(ctx)
	if err != nil {
		return nil, fmt.Errorf("verify: capture %s: %w", key, err)
	}
	if err := v.baselines.Save(key, raw); err != nil {
		return nil, err
	}
	sum := checksum.Sum(raw)
	logger.Info("baseline created", slog.String("checksum", checksum.Short(sum)))
	return &Outcome{
		Key:             key,
		Matched:         true,
		BaselineCreated: true,
		CaptureChecksum: sum,
	}, nil
}

// downgrade turns a decode or scan failure into a mismatch.
func (v *Verifier) downgrade(out *Outcome, logger *slog.Logger, stage string, err error) *Outcome {
	attrs := []any{
		slog.String("stage", stage),
		slog.String("error", err.Error()),
	}
	if p, ok := v.baselines.(interface {
		Path(models.ArtifactKey) string
	}); ok {
		attrs = append(attrs, slog.String("baseline_path", p.Path(out.Key)))
	}
	logger.Error("image comparison failed", attrs...)
	out.Matched = false
	out.Diagnostic = err
	return out
}
