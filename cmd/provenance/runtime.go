package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/swh-go/provenance/internal/archive"
	"github.com/swh-go/provenance/internal/archive/memory"
	"github.com/swh-go/provenance/internal/config"
	"github.com/swh-go/provenance/internal/metrics"
	"github.com/swh-go/provenance/internal/storage"
	"github.com/swh-go/provenance/internal/storage/memstore"
	"github.com/swh-go/provenance/internal/storage/sqlstore"
)

// runtime bundles what every subcommand needs, built once from the loaded
// config. The CLI never talks to a production Merkle DAG directly (spec.md
// §1 keeps the archive out of core scope); it currently only exercises the
// in-memory archive fake, which is enough for the CSV-driven ingestion
// subcommands that carry their own (rev, date, root) triples.
type runtime struct {
	cfg   config.Config
	log   *slog.Logger
	store storage.Storage
	arc   archive.Archive
	rec   metrics.Recorder
	close func() error
}

func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	log := newLogger(cfg.Logging)

	flavor, err := cfg.Backend.Flavor()
	if err != nil {
		return nil, err
	}

	var store storage.Storage
	switch cfg.Backend.Driver {
	case "", "memory":
		store = memstore.New(flavor)
	case "mysql", "dolt":
		store, err = sqlstore.Open(ctx, cfg.Backend.Driver, cfg.Backend.DSN, flavor)
		if err != nil {
			return nil, fmt.Errorf("open storage backend: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown backend.driver %q", cfg.Backend.Driver)
	}

	rec, closeMetrics, err := newRecorder(ctx, cfg.Metrics)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &runtime{
		cfg:   cfg,
		log:   log,
		store: store,
		arc:   memory.New(),
		rec:   rec,
		close: func() error {
			closeMetrics()
			return store.Close()
		},
	}, nil
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// newRecorder wires the real OpenTelemetry SDK per SPEC_FULL.md's domain
// stack table, confined to this command: the core only ever sees the thin
// metrics.Recorder interface.
func newRecorder(ctx context.Context, cfg config.MetricsConfig) (metrics.Recorder, func(), error) {
	return newRecorderImpl(ctx, cfg)
}
