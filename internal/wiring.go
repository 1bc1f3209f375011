package internal

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/vizbase/internal/artifactservice"
	"github.com/starford/vizbase/internal/baseline"
	"github.com/starford/vizbase/internal/diffwriter"
	"github.com/starford/vizbase/internal/index"
	"github.com/starford/vizbase/internal/storage"
	"github.com/starford/vizbase/internal/verify"
)

// components are the long-lived pieces shared by every subcommand.
type components struct {
	cfg    *Config
	logger *slog.Logger
	store  *storage.FS
	db     *index.DB
	svc    *artifactservice.Service
}

func (c *components) Close() error {
	return c.db.Close()
}

// setup applies opts, installs the default logger and opens storage and the
// index. events may be nil.
func setup(opts []Option, events artifactservice.Publisher) (*components, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("artifacts_root", cfg.Artifacts.Root),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Float64("threshold", cfg.Compare.Threshold),
		slog.Int("dimension_tolerance", cfg.Compare.DimensionTolerance),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Artifacts.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create artifacts dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Artifacts.Root)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	comparator, err := cfg.Compare.Comparator()
	if err != nil {
		db.Close()
		return nil, err
	}
	baselines := baseline.NewFSStore(store)
	diffs := diffwriter.NewFSWriter(store, logger)
	threshold := cfg.Compare.Threshold
	verifier, err := verify.New(verify.Config{
		Baselines:  baselines,
		Diffs:      diffs,
		Comparator: comparator,
		Threshold:  &threshold,
		Logger:     logger,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init verifier: %w", err)
	}

	svc, err := artifactservice.New(artifactservice.Config{
		Verifier:  verifier,
		Baselines: baselines,
		Diffs:     diffs,
		DB:        db,
		Events:    events,
		Logger:    logger,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &components{cfg: cfg, logger: logger, store: store, db: db, svc: svc}, nil
}
