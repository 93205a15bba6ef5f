// Package pipeline orchestrates one end-to-end ETL run: ingest the source
// snapshot, validate, transform, and commit the run-keyed artifact. The
// orchestrator is the only component that sees a run end to end; stages
// communicate only through the record slices passed between them.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/coverline/hydrant-rating-etl/internal/alerts"
	"github.com/coverline/hydrant-rating-etl/internal/catalog"
	"github.com/coverline/hydrant-rating-etl/internal/hydrant"
	"github.com/coverline/hydrant-rating-etl/internal/metrics"
	"github.com/coverline/hydrant-rating-etl/internal/run"
	"github.com/coverline/hydrant-rating-etl/internal/source"
	"github.com/coverline/hydrant-rating-etl/internal/storage"
	"github.com/coverline/hydrant-rating-etl/internal/tables"
)

// Version information (set via ldflags)
var (
	Version = "v0.1.0"
	GitSHA  = "unknown"
)

// Config holds the orchestrator's own settings. Collaborator configuration
// lives with the collaborators.
type Config struct {
	// Bounds is the geographic envelope for coordinate validation.
	Bounds hydrant.BoundingBox

	// StoragePrefix mirrors the store's key prefix so the orchestrator can
	// resolve artifact URIs.
	StoragePrefix string

	// Compression selects the parquet codec.
	Compression string

	// ArchiveSnapshot controls whether the verbatim API response is archived
	// alongside the artifact.
	ArchiveSnapshot bool

	// Producer identifies this binary in manifests and the catalog.
	Producer storage.ProducerInfo
}

// Deps are the injected collaborators. Source and Store are required;
// Catalog and Notifier may be nil, and zero values of the rest get sensible
// defaults from New.
type Deps struct {
	Source   source.SnapshotSource
	Store    storage.Store
	Catalog  catalog.Writer
	Registry run.Registry
	Notifier alerts.Notifier
	Metrics  *metrics.Metrics
	Clock    clockwork.Clock
	Logger   *slog.Logger
}

// Pipeline executes runs. A Pipeline holds no per-run state and is safe to
// reuse; every Execute call builds its run context and validator fresh.
type Pipeline struct {
	cfg  Config
	deps Deps
}

// New creates a pipeline, filling in defaults for optional collaborators.
func New(cfg Config, deps Deps) *Pipeline {
	if cfg.Bounds == (hydrant.BoundingBox{}) {
		cfg.Bounds = hydrant.CincinnatiBounds
	}
	if cfg.Compression == "" {
		cfg.Compression = "snappy"
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Registry == nil {
		deps.Registry = run.NoopRegistry{}
	}
	return &Pipeline{cfg: cfg, deps: deps}
}

// Execute runs the pipeline once and returns the run report. Failures are
// reported through Report.Err and the failed terminal state, never by
// panicking or half-committing an artifact.
func (p *Pipeline) Execute(ctx context.Context) run.Report {
	rc := run.NewContext(p.deps.Clock)
	logger := p.deps.Logger.With("run_id", rc.ID)
	state := run.StateCreated
	summary := run.Summary{RejectedByReason: make(map[hydrant.Reason]int64)}

	logger.Info("run started", "started_at", rc.StartedAt)
	if m := p.deps.Metrics; m != nil {
		m.RunsStarted.Inc()
	}
	if p.deps.Catalog != nil {
		if err := p.deps.Catalog.BeginRun(ctx, rc.ID, rc.StartedAt); err != nil {
			return p.fail(ctx, rc, state, summary, fmt.Errorf("catalog begin run: %w", err), logger)
		}
	}

	// Ingest.
	state = p.enter(state, run.StateIngesting, logger)
	stageStart := p.deps.Clock.Now()
	snap, err := p.deps.Source.FetchSnapshot(ctx)
	if err != nil {
		return p.fail(ctx, rc, state, summary, fmt.Errorf("fetch snapshot: %w", err), logger)
	}
	raw := stampRecords(snap.Records, rc.ID, rc.StartedAt)
	summary.Ingested = int64(len(raw))
	if m := p.deps.Metrics; m != nil {
		m.RecordsIngested.Add(float64(summary.Ingested))
	}
	p.observeStage(run.StateIngesting, stageStart)
	logger.Info("snapshot ingested", "records", summary.Ingested)

	// Validate.
	state = p.enter(state, run.StateValidating, logger)
	stageStart = p.deps.Clock.Now()
	validated := hydrant.NewValidator(p.cfg.Bounds).Validate(raw)
	accepted := make([]hydrant.ValidatedRecord, 0, len(validated))
	for _, v := range validated {
		if v.Accepted() {
			summary.Accepted++
			accepted = append(accepted, v)
			continue
		}
		summary.Rejected++
		for _, reason := range v.Reasons {
			summary.RejectedByReason[reason]++
			if m := p.deps.Metrics; m != nil {
				m.RecordsRejected.WithLabelValues(string(reason)).Inc()
			}
		}
		logger.Debug("record rejected",
			"hydrant_id", v.Raw.HydrantID,
			"object_id", v.Raw.ObjectID,
			"reasons", v.Reasons)
	}
	if m := p.deps.Metrics; m != nil {
		m.RecordsAccepted.Add(float64(summary.Accepted))
	}
	p.observeStage(run.StateValidating, stageStart)
	logger.Info("validation finished",
		"accepted", summary.Accepted,
		"rejected", summary.Rejected)

	// Transform.
	state = p.enter(state, run.StateTransforming, logger)
	stageStart = p.deps.Clock.Now()
	transformed, err := hydrant.Transform(accepted)
	if err != nil {
		return p.fail(ctx, rc, state, summary, fmt.Errorf("transform: %w", err), logger)
	}
	p.observeStage(run.StateTransforming, stageStart)

	// Store.
	state = p.enter(state, run.StateStoring, logger)
	stageStart = p.deps.Clock.Now()
	artifactURI, checksum, artifactBytes, err := p.commit(ctx, rc, snap, transformed, summary, logger)
	if err != nil {
		return p.fail(ctx, rc, state, summary, err, logger)
	}
	summary.Written = int64(len(transformed))
	p.observeStage(run.StateStoring, stageStart)

	// Complete.
	state = p.enter(state, run.StateCompleted, logger)
	finishedAt := p.deps.Clock.Now().UTC()
	if m := p.deps.Metrics; m != nil {
		m.RunsCompleted.Inc()
		m.RecordsWritten.Add(float64(summary.Written))
		m.RunDuration.Observe(finishedAt.Sub(rc.StartedAt).Seconds())
		m.ArtifactBytes.Observe(float64(artifactBytes))
		m.LastRunTimestamp.Set(float64(finishedAt.Unix()))
	}

	report := run.Report{
		RunID:       rc.ID,
		StartedAt:   rc.StartedAt,
		FinishedAt:  finishedAt,
		State:       state,
		Summary:     summary,
		ArtifactURI: artifactURI,
	}
	p.recordOutcome(ctx, report, checksum, logger)
	logger.Info("run completed",
		"ingested", summary.Ingested,
		"accepted", summary.Accepted,
		"rejected", summary.Rejected,
		"written", summary.Written,
		"artifact", artifactURI,
		"duration", finishedAt.Sub(rc.StartedAt))
	return report
}

// commit encodes the parquet payload and publishes the run artifact.
// Returns the artifact URI, its checksum, and the parquet byte size.
func (p *Pipeline) commit(ctx context.Context, rc run.Context, snap *source.Snapshot, records []hydrant.TransformedRecord, summary run.Summary, logger *slog.Logger) (string, string, int64, error) {
	ref := storage.ArtifactRef{RunID: rc.ID}

	exists, err := p.deps.Store.Exists(ctx, ref)
	if err != nil {
		return "", "", 0, fmt.Errorf("check artifact: %w", err)
	}
	if exists {
		return "", "", 0, fmt.Errorf("run %s: %w", rc.ID, storage.ErrRunExists)
	}

	data, err := tables.Encode(records, tables.EncodeConfig{Compression: p.cfg.Compression})
	if err != nil {
		return "", "", 0, fmt.Errorf("encode parquet: %w", err)
	}
	checksum := tables.ComputeChecksum(data)

	// The raw snapshot archive is an audit extra; failing it does not fail
	// the run.
	if p.cfg.ArchiveSnapshot && len(snap.Body) > 0 {
		compressed, err := storage.CompressSnapshot(snap.Body)
		if err != nil {
			logger.Warn("compress snapshot failed", "error", err)
		} else if err := p.deps.Store.WriteSnapshot(ctx, ref, compressed); err != nil {
			logger.Warn("archive snapshot failed", "error", err)
		}
	}

	manifest := &storage.Manifest{
		Run: storage.RunInfo{
			RunID:      rc.ID,
			StartedAt:  rc.StartedAt,
			FinishedAt: p.deps.Clock.Now().UTC(),
		},
		Counts: storage.Counts{
			Ingested:         summary.Ingested,
			Accepted:         summary.Accepted,
			Rejected:         summary.Rejected,
			Written:          int64(len(records)),
			RejectedByReason: reasonCounts(summary.RejectedByReason),
		},
		Table: storage.TableInfo{
			File:          tables.TableName + ".parquet",
			Checksum:      checksum,
			RowCount:      int64(len(records)),
			ByteSize:      int64(len(data)),
			SchemaVersion: tables.SchemaVersion,
		},
		Producer:  p.cfg.Producer,
		CreatedAt: p.deps.Clock.Now().UTC(),
	}

	if err := p.deps.Store.WriteArtifact(ctx, ref, data, manifest); err != nil {
		return "", "", 0, fmt.Errorf("write artifact: %w", err)
	}
	return p.deps.Store.URI(ref.ParquetPath(p.cfg.StoragePrefix)), checksum, int64(len(data)), nil
}

// fail marks the run failed from the given stage and records the outcome.
// Partial counts stay attached to the run for diagnosis.
func (p *Pipeline) fail(ctx context.Context, rc run.Context, stage run.State, summary run.Summary, err error, logger *slog.Logger) run.Report {
	state, _ := run.Advance(stage, run.StateFailed)
	if m := p.deps.Metrics; m != nil {
		m.RunsFailed.WithLabelValues(string(stage)).Inc()
	}

	report := run.Report{
		RunID:       rc.ID,
		StartedAt:   rc.StartedAt,
		FinishedAt:  p.deps.Clock.Now().UTC(),
		State:       state,
		Summary:     summary,
		FailedStage: stage,
		Err:         err,
	}
	p.recordOutcome(ctx, report, "", logger)
	logger.Error("run failed", "stage", string(stage), "error", err)
	return report
}

// recordOutcome persists the terminal run outcome to the catalog and the
// registry and emits the alert event. All three are best effort at this
// point; the artifact is already committed or abandoned.
func (p *Pipeline) recordOutcome(ctx context.Context, report run.Report, checksum string, logger *slog.Logger) {
	if p.deps.Catalog != nil {
		rec := catalog.RunRecord{
			RunID:           report.RunID,
			State:           string(report.State),
			StartedAt:       report.StartedAt,
			FinishedAt:      report.FinishedAt,
			Ingested:        report.Summary.Ingested,
			Accepted:        report.Summary.Accepted,
			Rejected:        report.Summary.Rejected,
			Written:         report.Summary.Written,
			ArtifactURI:     report.ArtifactURI,
			Checksum:        checksum,
			FailedStage:     string(report.FailedStage),
			ProducerVersion: p.cfg.Producer.Version,
		}
		if report.Err != nil {
			rec.Failure = report.Err.Error()
		}
		if err := p.deps.Catalog.FinishRun(ctx, rec); err != nil {
			logger.Warn("catalog finish run failed", "error", err)
		}
	}

	entry := run.Entry{
		RunID:      report.RunID,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		State:      report.State,
		Ingested:   report.Summary.Ingested,
		Accepted:   report.Summary.Accepted,
		Rejected:   report.Summary.Rejected,
		Written:    report.Summary.Written,
	}
	if err := p.deps.Registry.Record(ctx, entry); err != nil {
		logger.Warn("record run registry failed", "error", err)
	}

	if p.deps.Notifier != nil {
		evt := alerts.Event{
			Type:        alerts.EventRunCompleted,
			RunID:       report.RunID,
			Timestamp:   report.FinishedAt,
			Ingested:    report.Summary.Ingested,
			Accepted:    report.Summary.Accepted,
			Rejected:    report.Summary.Rejected,
			Written:     report.Summary.Written,
			ArtifactURI: report.ArtifactURI,
		}
		if report.State == run.StateFailed {
			evt.Type = alerts.EventRunFailed
			evt.FailedStage = string(report.FailedStage)
			if report.Err != nil {
				evt.Error = report.Err.Error()
			}
		}
		if err := p.deps.Notifier.Notify(ctx, evt); err != nil {
			logger.Warn("alert notify failed", "error", err)
		}
	}
}

// enter advances the run state machine. Transitions here follow the allowed
// edges, so a rejected advance is a programming error.
func (p *Pipeline) enter(state run.State, next run.State, logger *slog.Logger) run.State {
	s, err := run.Advance(state, next)
	if err != nil {
		panic(err)
	}
	logger.Debug("stage entered", "stage", string(next))
	return s
}

func (p *Pipeline) observeStage(stage run.State, start time.Time) {
	if m := p.deps.Metrics; m != nil {
		m.StageDuration.WithLabelValues(string(stage)).Observe(p.deps.Clock.Now().Sub(start).Seconds())
	}
}

func reasonCounts(m map[hydrant.Reason]int64) map[string]int64 {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[string(k)] = v
	}
	return out
}
