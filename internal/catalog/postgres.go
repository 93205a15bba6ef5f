package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// PostgresWriter implements Writer using PostgreSQL.
type PostgresWriter struct {
	pool *pgxpool.Pool
	cfg  Config
}

// NewPostgresWriter connects to the catalog database and ensures the
// schema exists.
func NewPostgresWriter(ctx context.Context, cfg Config) (*PostgresWriter, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}
	poolCfg.MaxConns = 5
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	w := &PostgresWriter{pool: pool, cfg: cfg}
	if _, err := pool.Exec(connectCtx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return w, nil
}

// BeginRun inserts the run in its initial state.
func (w *PostgresWriter) BeginRun(ctx context.Context, runID string, startedAt time.Time) error {
	_, err := w.pool.Exec(ctx, `
		INSERT INTO pipeline_runs (run_id, namespace, state, started_at)
		VALUES ($1, $2, 'created', $3)`,
		runID, w.namespace(), startedAt)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", runID, err)
	}
	return nil
}

// FinishRun records the terminal outcome under the same run_id.
func (w *PostgresWriter) FinishRun(ctx context.Context, rec RunRecord) error {
	_, err := w.pool.Exec(ctx, `
		UPDATE pipeline_runs SET
			state = $2,
			finished_at = $3,
			ingested = $4,
			accepted = $5,
			rejected = $6,
			written = $7,
			artifact_uri = $8,
			checksum = $9,
			failed_stage = $10,
			failure = $11,
			producer_version = $12
		WHERE run_id = $1`,
		rec.RunID, rec.State, rec.FinishedAt,
		rec.Ingested, rec.Accepted, rec.Rejected, rec.Written,
		rec.ArtifactURI, rec.Checksum, rec.FailedStage, rec.Failure,
		rec.ProducerVersion)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", rec.RunID, err)
	}
	return nil
}

// Close releases the connection pool.
func (w *PostgresWriter) Close() error {
	w.pool.Close()
	return nil
}

func (w *PostgresWriter) namespace() string {
	if w.cfg.Namespace == "" {
		return "default"
	}
	return w.cfg.Namespace
}
