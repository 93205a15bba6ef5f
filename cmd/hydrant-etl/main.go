package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/coverline/hydrant-rating-etl/internal/alerts"
	"github.com/coverline/hydrant-rating-etl/internal/catalog"
	"github.com/coverline/hydrant-rating-etl/internal/config"
	"github.com/coverline/hydrant-rating-etl/internal/hydrant"
	"github.com/coverline/hydrant-rating-etl/internal/logging"
	"github.com/coverline/hydrant-rating-etl/internal/metrics"
	"github.com/coverline/hydrant-rating-etl/internal/pipeline"
	"github.com/coverline/hydrant-rating-etl/internal/run"
	"github.com/coverline/hydrant-rating-etl/internal/source"
	"github.com/coverline/hydrant-rating-etl/internal/storage"
)

func main() {
	cfg := config.MustLoad()
	logging.Setup(logging.Config{Format: cfg.Logging.Format, Level: cfg.Logging.Level})

	logger := logging.Component("main")
	logger.Info("hydrant rating etl", "version", pipeline.Version, "git_sha", pipeline.GitSHA)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown handler
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		sig := <-ch
		logger.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	m := metrics.Init("hydrant_etl")
	if cfg.Metrics.Enabled {
		go func() {
			logger.Info("metrics server listening", "address", cfg.Metrics.Address)
			if err := metrics.StartServer(cfg.Metrics.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	src := source.NewHTTPSource(source.Config{
		URL:     cfg.Source.URL,
		Timeout: cfg.Source.Timeout(),
	})

	store, err := storage.NewStore(ctx, storage.Config{
		Backend:   cfg.Storage.Backend,
		LocalDir:  cfg.Storage.LocalDir,
		BucketURL: cfg.Storage.BucketURL,
		Prefix:    cfg.Storage.Prefix,
	})
	if err != nil {
		logger.Error("create storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	cat, err := catalog.NewWriter(ctx, catalog.Config{
		PostgresDSN: cfg.Catalog.PostgresDSN,
		Namespace:   cfg.Catalog.Namespace,
	})
	if err != nil {
		logger.Error("connect catalog", "error", err)
		os.Exit(1)
	}
	defer cat.Close()

	var registry run.Registry = run.NoopRegistry{}
	if cfg.Registry.Enabled {
		fr, err := run.NewFileRegistry(cfg.Registry.Dir)
		if err != nil {
			logger.Error("create registry", "error", err)
			os.Exit(1)
		}
		registry = fr
	}

	if prior, err := registry.Last(ctx); err == nil {
		logger.Info("previous run",
			"run_id", prior.RunID,
			"state", string(prior.State),
			"finished_at", prior.FinishedAt)
	} else if !errors.Is(err, run.ErrNoPriorRun) {
		logger.Warn("read run registry", "error", err)
	}

	notifier := alerts.NewNotifier(alerts.Config{
		WebhookURL:   cfg.Alerts.WebhookURL,
		KafkaBrokers: cfg.Alerts.KafkaBrokers,
		KafkaTopic:   cfg.Alerts.KafkaTopic,
	}, logging.Component("alerts"))
	defer notifier.Close()

	p := pipeline.New(pipeline.Config{
		Bounds:          bounds(cfg.Validation.Bounds),
		StoragePrefix:   cfg.Storage.Prefix,
		Compression:     cfg.Storage.Compression,
		ArchiveSnapshot: cfg.Storage.ArchiveSnapshot,
		Producer: storage.ProducerInfo{
			Name:    "hydrant-rating-etl",
			Version: pipeline.Version,
			GitSHA:  pipeline.GitSHA,
		},
	}, pipeline.Deps{
		Source:   src,
		Store:    store,
		Catalog:  cat,
		Registry: registry,
		Notifier: notifier,
		Metrics:  m,
		Logger:   logging.Component("pipeline"),
	})

	report := p.Execute(ctx)
	if report.State == run.StateFailed {
		logger.Error("pipeline run failed",
			"run_id", report.RunID,
			"stage", string(report.FailedStage),
			"error", report.Err)
		os.Exit(1)
	}

	logger.Info("pipeline run finished",
		"run_id", report.RunID,
		"written", report.Summary.Written,
		"artifact", report.ArtifactURI)
}

// bounds maps the configured bounding box, falling back to the city default
// when none is set.
func bounds(b config.BoundsConfig) hydrant.BoundingBox {
	if b.IsZero() {
		return hydrant.CincinnatiBounds
	}
	return hydrant.BoundingBox{
		MinLat: b.MinLat,
		MaxLat: b.MaxLat,
		MinLon: b.MinLon,
		MaxLon: b.MaxLon,
	}
}
