// Package catalog records run lineage in an external catalog so completed
// and failed runs are queryable across deployments. The catalog is an
// optional collaborator: without a DSN the pipeline runs with a no-op
// writer.
package catalog

import (
	"context"
	"time"
)

// Config configures the catalog connection.
type Config struct {
	PostgresDSN string
	Namespace   string
}

// RunRecord is one row of run lineage.
type RunRecord struct {
	RunID      string
	Namespace  string
	State      string
	StartedAt  time.Time
	FinishedAt time.Time

	Ingested int64
	Accepted int64
	Rejected int64
	Written  int64

	ArtifactURI string
	Checksum    string
	FailedStage string
	Failure     string

	ProducerVersion string
}

// Writer persists run lineage.
type Writer interface {
	// BeginRun records that a run has started.
	BeginRun(ctx context.Context, runID string, startedAt time.Time) error

	// FinishRun records the terminal outcome of a run. Called for both
	// completed and failed runs; failed runs keep their partial counts
	// under the same run_id.
	FinishRun(ctx context.Context, rec RunRecord) error

	// Close releases the connection.
	Close() error
}

// NewWriter returns a Postgres writer when a DSN is configured, otherwise
// a no-op writer.
func NewWriter(ctx context.Context, cfg Config) (Writer, error) {
	if cfg.PostgresDSN == "" {
		return noopWriter{}, nil
	}
	return NewPostgresWriter(ctx, cfg)
}

type noopWriter struct{}

func (noopWriter) BeginRun(context.Context, string, time.Time) error { return nil }
func (noopWriter) FinishRun(context.Context, RunRecord) error        { return nil }
func (noopWriter) Close() error                                      { return nil }
