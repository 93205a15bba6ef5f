// Package storage persists run artifacts: the parquet file, its manifest
// sidecar, and the compressed raw snapshot, all keyed by run identifier.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrRunExists is returned when an artifact for the run identifier is
// already committed. Re-running with the same run_id is a conflict, never a
// silent overwrite; an idempotent re-run requires a fresh run_id.
var ErrRunExists = errors.New("artifact for run already exists")

// ArtifactRef addresses one run's output location.
type ArtifactRef struct {
	RunID string
}

// DirPath returns the run's directory key.
func (r ArtifactRef) DirPath(prefix string) string {
	return fmt.Sprintf("%sruns/run_id=%s", prefix, r.RunID)
}

// ParquetPath returns the key of the run's parquet file.
func (r ArtifactRef) ParquetPath(prefix string) string {
	return r.DirPath(prefix) + "/firehydrants.parquet"
}

// ManifestPath returns the key of the run's manifest sidecar.
func (r ArtifactRef) ManifestPath(prefix string) string {
	return r.DirPath(prefix) + "/_manifest.json"
}

// SnapshotPath returns the key of the archived raw API snapshot.
func (r ArtifactRef) SnapshotPath(prefix string) string {
	return r.DirPath(prefix) + "/raw/firehydrants.json.zst"
}

// Manifest describes the contents of a run artifact.
type Manifest struct {
	Run       RunInfo      `json:"run"`
	Counts    Counts       `json:"counts"`
	Table     TableInfo    `json:"table"`
	Producer  ProducerInfo `json:"producer"`
	CreatedAt time.Time    `json:"created_at"`
}

// RunInfo identifies the run that produced the artifact.
type RunInfo struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Counts carries the run summary: ingested, accepted, rejected (with a
// per-reason breakdown), and written.
type Counts struct {
	Ingested         int64            `json:"ingested"`
	Accepted         int64            `json:"accepted"`
	Rejected         int64            `json:"rejected"`
	Written          int64            `json:"written"`
	RejectedByReason map[string]int64 `json:"rejected_by_reason,omitempty"`
}

// TableInfo describes the parquet file in the artifact.
type TableInfo struct {
	File          string `json:"file"`
	Checksum      string `json:"checksum"`
	RowCount      int64  `json:"row_count"`
	ByteSize      int64  `json:"byte_size"`
	SchemaVersion string `json:"schema_version"`
}

// ProducerInfo describes the software that produced the artifact.
type ProducerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	GitSHA  string `json:"git_sha,omitempty"`
}

// MarshalJSON returns the manifest as indented JSON.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	type Alias Manifest
	return json.MarshalIndent((*Alias)(m), "", "  ")
}

// Store abstracts the destination storage collaborator. Implementations
// must guarantee atomic, run-keyed commits: the destination for a run_id
// either contains the complete artifact or does not exist.
type Store interface {
	// WriteArtifact commits the parquet payload and manifest under the run
	// key in one atomic publish. Returns ErrRunExists if an artifact for
	// this run is already committed; the original is left untouched.
	WriteArtifact(ctx context.Context, ref ArtifactRef, parquetData []byte, manifest *Manifest) error

	// WriteSnapshot archives the compressed raw API response under the run
	// key for audit and replay.
	WriteSnapshot(ctx context.Context, ref ArtifactRef, compressed []byte) error

	// Exists reports whether an artifact for the run is already committed.
	Exists(ctx context.Context, ref ArtifactRef) (bool, error)

	// URI returns the canonical URI for the given key.
	// For local: file:///path, buckets: the bucket URL plus key.
	URI(key string) string

	// Close releases any resources.
	Close() error
}

// Config configures the storage backend.
type Config struct {
	Backend string // "local" | "bucket"

	// Local filesystem
	LocalDir string

	// Bucket backends via gocloud: "file://...", "gs://...", "s3://..."
	BucketURL string

	// Prefix is the path prefix within the bucket or local dir.
	Prefix string
}

// NewStore creates a storage backend based on configuration.
func NewStore(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "local", "":
		if cfg.LocalDir == "" {
			return nil, fmt.Errorf("LocalDir required for local backend")
		}
		return NewLocalStore(cfg.LocalDir, cfg.Prefix)
	case "bucket":
		if cfg.BucketURL == "" {
			return nil, fmt.Errorf("BucketURL required for bucket backend")
		}
		return NewBucketStore(ctx, cfg.BucketURL, cfg.Prefix)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}
