// Package artifactservice wraps the verifier with the history index, event
// publishing and per-key serialisation shared by the HTTP API, the MCP
// server and the CLI.
package artifactservice

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/starford/vizbase/internal/apperr"
	"github.com/starford/vizbase/internal/baseline"
	"github.com/starford/vizbase/internal/diffwriter"
	"github.com/starford/vizbase/internal/imagecodec"
	"github.com/starford/vizbase/internal/index"
	"github.com/starford/vizbase/internal/models"
	"github.com/starford/vizbase/internal/verify"
)

// Publisher receives domain events. *sse.Broker satisfies it.
type Publisher interface {
	PublishVerification(v models.Verification)
	PublishBaselineEvent(kind, path string)
}

// Evidence is the failure artifact kept for a key.
type Evidence struct {
	// Kind is "diff" for a rendered diff image and "current" for a capture
	// kept after a dimension mismatch.
	Kind string
	Data []byte
}

// Service coordinates the verifier, artifact stores and index.
type Service struct {
	verifier  *verify.Verifier
	baselines *baseline.FSStore
	diffs     *diffwriter.FSWriter
	db        index.ArtifactIndex
	events    Publisher
	logger    *slog.Logger
	locks     *keyLock
	now       func() time.Time
}

// Config holds the dependencies of a Service. Events may be nil.
type Config struct {
	Verifier  *verify.Verifier
	Baselines *baseline.FSStore
	Diffs     *diffwriter.FSWriter
	DB        index.ArtifactIndex
	Events    Publisher
	Logger    *slog.Logger
}

// New creates a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Verifier == nil || cfg.Baselines == nil || cfg.Diffs == nil || cfg.DB == nil {
		return nil, errors.New("artifactservice: verifier, stores and index are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		verifier:  cfg.Verifier,
		baselines: cfg.Baselines,
		diffs:     cfg.Diffs,
		db:        cfg.DB,
		events:    cfg.Events,
		logger:    cfg.Logger,
		locks:     newKeyLock(),
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Verify runs one verification for key and records it. Calls for the same
// key are serialised. A run that fails with an error is still recorded.
func (s *Service) Verify(ctx context.Context, key models.ArtifactKey, capture verify.CaptureFunc, opts ...verify.Option) (*models.Verification, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(key.String())
	defer unlock()

	v := models.Verification{
		ID:        uuid.NewString(),
		Key:       key,
		CreatedAt: s.now(),
	}

	out, runErr := s.verifier.Run(ctx, key, capture, opts...)
	if runErr != nil {
		v.Error = runErr.Error()
	} else {
		v.Matched = out.Matched
		v.BaselineCreated = out.BaselineCreated
		v.Result = out.Result
		if out.Diagnostic != nil {
			v.Error = out.Diagnostic.Error()
		}
	}

	if err := s.db.RecordVerification(v); err != nil {
		s.logger.Warn("record verification failed",
			slog.String("key", key.String()),
			slog.String("error", err.Error()))
	}
	if runErr == nil && out.BaselineCreated {
		s.indexNewBaseline(key, out.CaptureChecksum)
	}
	if s.events != nil {
		s.events.PublishVerification(v)
	}

	if runErr != nil {
		return &v, runErr
	}
	return &v, nil
}

// indexNewBaseline makes a freshly created baseline visible in listings
// without waiting for the watcher.
func (s *Service) indexNewBaseline(key models.ArtifactKey, sum string) {
	row := index.BaselineRow{Path: key.BaselinePath(), Key: key, Checksum: sum, UpdatedAt: s.now()}
	if raw, err := s.baselines.Raw(key); err == nil {
		row.Width, row.Height, _ = imagecodec.Dimensions(raw)
	}
	if err := s.db.UpsertBaseline(row); err != nil {
		s.logger.Warn("index baseline failed",
			slog.String("key", key.String()),
			slog.String("error", err.Error()))
		return
	}
	if s.events != nil {
		s.events.PublishBaselineEvent("created", row.Path)
	}
}

// ListBaselines returns indexed baselines, optionally for one group.
func (s *Service) ListBaselines(_ context.Context, group string) ([]models.BaselineMetadata, error) {
	if group != "" {
		if err := models.ValidateComponent(group); err != nil {
			return nil, err
		}
	}
	rows, err := s.db.ListBaselines(group)
	if err != nil {
		return nil, err
	}
	out := make([]models.BaselineMetadata, len(rows))
	for i, r := range rows {
		out[i] = r.Metadata()
	}
	return out, nil
}

// Baseline returns the encoded baseline image.
func (s *Service) Baseline(_ context.Context, key models.ArtifactKey) ([]byte, error) {
	return s.baselines.Raw(key)
}

// Diff returns the failure evidence for key: the diff image, or the kept
// capture when the last failure was a dimension mismatch.
func (s *Service) Diff(_ context.Context, key models.ArtifactKey) (*Evidence, error) {
	data, err := s.diffs.Raw(key)
	if err == nil {
		return &Evidence{Kind: "diff", Data: data}, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	data, err = s.diffs.RawCurrent(key)
	if err != nil {
		return nil, err
	}
	return &Evidence{Kind: "current", Data: data}, nil
}

// History returns recorded verifications, newest first.
func (s *Service) History(_ context.Context, f index.VerificationFilter) ([]models.Verification, error) {
	if f.Group != "" {
		if err := models.ValidateComponent(f.Group); err != nil {
			return nil, err
		}
	}
	items, err := s.db.ListVerifications(f)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Verification{}
	}
	return items, nil
}
