package run

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrNoPriorRun is returned when the registry holds no previous run.
var ErrNoPriorRun = errors.New("no prior run recorded")

// Entry records the outcome of a past run. All cross-run state lives
// here: anything like "last run timestamp" is read from the registry,
// never from package-level variables, so concurrent runs stay isolated.
type Entry struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	State      State     `json:"state"`
	Ingested   int64     `json:"ingested"`
	Accepted   int64     `json:"accepted"`
	Rejected   int64     `json:"rejected"`
	Written    int64     `json:"written"`
}

// Registry is the prior-run collaborator passed into the orchestrator.
type Registry interface {
	// Last returns the most recently recorded run, or ErrNoPriorRun.
	Last(ctx context.Context) (*Entry, error)

	// Record persists a run outcome.
	Record(ctx context.Context, e Entry) error
}

// FileRegistry persists the latest run entry as a JSON file. Writes go
// through a temp file and rename so a crash never leaves a torn entry.
type FileRegistry struct {
	path string
}

// NewFileRegistry creates a registry stored under dir.
func NewFileRegistry(dir string) (*FileRegistry, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create registry directory %s: %w", dir, err)
	}
	return &FileRegistry{path: filepath.Join(dir, "last-run.json")}, nil
}

// Last reads the most recent run entry.
func (r *FileRegistry) Last(_ context.Context) (*Entry, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoPriorRun
		}
		return nil, fmt.Errorf("read registry %s: %w", r.path, err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", r.path, err)
	}
	return &e, nil
}

// Record persists the run outcome atomically.
func (r *FileRegistry) Record(_ context.Context, e Entry) error {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry entry: %w", err)
	}

	tempPath := r.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write temp registry %s: %w", tempPath, err)
	}
	if err := os.Rename(tempPath, r.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename %s to %s: %w", tempPath, r.path, err)
	}
	return nil
}

// NoopRegistry discards run entries; used when no registry is configured.
type NoopRegistry struct{}

func (NoopRegistry) Last(context.Context) (*Entry, error) { return nil, ErrNoPriorRun }
func (NoopRegistry) Record(context.Context, Entry) error  { return nil }
