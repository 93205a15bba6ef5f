package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coverline/hydrant-rating-etl/internal/alerts"
	"github.com/coverline/hydrant-rating-etl/internal/run"
	"github.com/coverline/hydrant-rating-etl/internal/source"
	"github.com/coverline/hydrant-rating-etl/internal/storage"
	"github.com/coverline/hydrant-rating-etl/internal/tables"
)

type fakeSource struct {
	body []byte
	err  error
}

func (f *fakeSource) FetchSnapshot(context.Context) (*source.Snapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	records, err := source.ParseSnapshot(f.body)
	if err != nil {
		return nil, err
	}
	return &source.Snapshot{Records: records, Body: f.body}, nil
}

type captureNotifier struct {
	events []alerts.Event
}

func (c *captureNotifier) Notify(_ context.Context, evt alerts.Event) error {
	c.events = append(c.events, evt)
	return nil
}

func (c *captureNotifier) Close() error { return nil }

func newTestPipeline(t *testing.T, src source.SnapshotSource) (*Pipeline, string, *captureNotifier, run.Registry) {
	t.Helper()

	dir := t.TempDir()
	store, err := storage.NewLocalStore(dir, "hydrants/")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	registry, err := run.NewFileRegistry(t.TempDir())
	require.NoError(t, err)

	notifier := &captureNotifier{}
	clock := clockwork.NewFakeClockAt(time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC))

	p := New(Config{
		StoragePrefix:   "hydrants/",
		ArchiveSnapshot: true,
		Producer:        storage.ProducerInfo{Name: "hydrant-rating-etl", Version: "test"},
	}, Deps{
		Source:   src,
		Store:    store,
		Registry: registry,
		Notifier: notifier,
		Clock:    clock,
	})
	return p, dir, notifier, registry
}

func TestExecute_MixedRecords(t *testing.T) {
	// One clean record, one missing its rating, one outside the service area.
	src := &fakeSource{body: []byte(`[
		{"assetid": "H-1", "objectid": 1, "latitude": "39.10", "longitude": "-84.51", "insurance_rating": "4", "lifecyclestatus": "AC", "staticpressure": "55", "neighborhood": "WESTWOOD"},
		{"assetid": "H-2", "objectid": 2, "latitude": "39.11", "longitude": "-84.52"},
		{"assetid": "H-3", "objectid": 3, "latitude": "0", "longitude": "0", "insurance_rating": "5"}
	]`)}

	p, dir, notifier, _ := newTestPipeline(t, src)
	report := p.Execute(context.Background())

	require.Equal(t, run.StateCompleted, report.State)
	require.NoError(t, report.Err)

	assert.Equal(t, int64(3), report.Summary.Ingested)
	assert.Equal(t, int64(1), report.Summary.Accepted)
	assert.Equal(t, int64(2), report.Summary.Rejected)
	assert.Equal(t, int64(1), report.Summary.Written)
	assert.NotEmpty(t, report.ArtifactURI)

	// The committed artifact carries exactly the accepted record.
	data, err := os.ReadFile(filepath.Join(dir, "hydrants/runs/run_id="+report.RunID+"/firehydrants.parquet"))
	require.NoError(t, err)
	rows, err := tables.Decode(data)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "H-1", rows[0].HydrantID)
	assert.Equal(t, report.RunID, rows[0].RunID)

	// Manifest sidecar sits next to it.
	_, err = os.Stat(filepath.Join(dir, "hydrants/runs/run_id="+report.RunID+"/_manifest.json"))
	assert.NoError(t, err)

	// Raw snapshot archived for audit.
	compressed, err := os.ReadFile(filepath.Join(dir, "hydrants/runs/run_id="+report.RunID+"/raw/firehydrants.json.zst"))
	require.NoError(t, err)
	raw, err := storage.DecompressSnapshot(compressed)
	require.NoError(t, err)
	assert.Equal(t, src.body, raw)

	// Alert event emitted.
	require.Len(t, notifier.events, 1)
	assert.Equal(t, alerts.EventRunCompleted, notifier.events[0].Type)
	assert.Equal(t, report.RunID, notifier.events[0].RunID)
}

func TestExecute_RejectionBreakdown(t *testing.T) {
	src := &fakeSource{body: []byte(`[
		{"assetid": "H-1", "latitude": "39.10", "longitude": "-84.51", "insurance_rating": "4"},
		{"assetid": "H-1", "latitude": "39.10", "longitude": "-84.51", "insurance_rating": "4"},
		{"latitude": "39.10", "longitude": "-84.51", "insurance_rating": "4"}
	]`)}

	p, _, _, _ := newTestPipeline(t, src)
	report := p.Execute(context.Background())

	require.Equal(t, run.StateCompleted, report.State)
	assert.Equal(t, int64(1), report.Summary.RejectedByReason["duplicate"])
	assert.Equal(t, int64(1), report.Summary.RejectedByReason["missing_hydrant_id"])
	assert.Equal(t, report.Summary.Ingested, report.Summary.Accepted+report.Summary.Rejected)
}

func TestExecute_EmptySnapshot(t *testing.T) {
	p, dir, _, registry := newTestPipeline(t, &fakeSource{body: []byte(`[]`)})
	report := p.Execute(context.Background())

	require.Equal(t, run.StateCompleted, report.State)
	assert.Zero(t, report.Summary.Ingested)
	assert.Zero(t, report.Summary.Written)

	// An empty run still commits a readable artifact.
	data, err := os.ReadFile(filepath.Join(dir, "hydrants/runs/run_id="+report.RunID+"/firehydrants.parquet"))
	require.NoError(t, err)
	rows, err := tables.Decode(data)
	require.NoError(t, err)
	assert.Empty(t, rows)

	entry, err := registry.Last(context.Background())
	require.NoError(t, err)
	assert.Equal(t, run.StateCompleted, entry.State)
}

func TestExecute_SourceFailure(t *testing.T) {
	srcErr := errors.New("connection refused")
	p, dir, notifier, registry := newTestPipeline(t, &fakeSource{err: srcErr})
	report := p.Execute(context.Background())

	require.Equal(t, run.StateFailed, report.State)
	assert.Equal(t, run.StateIngesting, report.FailedStage)
	assert.ErrorIs(t, report.Err, srcErr)
	assert.Empty(t, report.ArtifactURI)

	// No artifact directory appears for a failed run.
	_, err := os.Stat(filepath.Join(dir, "hydrants/runs/run_id="+report.RunID))
	assert.True(t, os.IsNotExist(err))

	// The failure is still recorded and alerted.
	entry, err := registry.Last(context.Background())
	require.NoError(t, err)
	assert.Equal(t, run.StateFailed, entry.State)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, alerts.EventRunFailed, notifier.events[0].Type)
	assert.Equal(t, string(run.StateIngesting), notifier.events[0].FailedStage)
}

func TestExecute_FreshRunIDPerExecution(t *testing.T) {
	src := &fakeSource{body: []byte(`[{"assetid": "H-1", "latitude": "39.10", "longitude": "-84.51", "insurance_rating": "4"}]`)}
	p, _, _, _ := newTestPipeline(t, src)

	a := p.Execute(context.Background())
	b := p.Execute(context.Background())

	require.Equal(t, run.StateCompleted, a.State)
	require.Equal(t, run.StateCompleted, b.State)
	assert.NotEqual(t, a.RunID, b.RunID, "re-running must mint a fresh run identifier")
	assert.NotEqual(t, a.ArtifactURI, b.ArtifactURI)
}

func TestExecute_TimestampsFromInjectedClock(t *testing.T) {
	start := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	src := &fakeSource{body: []byte(`[{"assetid": "H-1", "latitude": "39.10", "longitude": "-84.51", "insurance_rating": "4"}]`)}

	p, dir, _, _ := newTestPipeline(t, src)
	report := p.Execute(context.Background())

	require.Equal(t, run.StateCompleted, report.State)
	assert.True(t, report.StartedAt.Equal(start))
	assert.True(t, report.FinishedAt.Equal(start), "fake clock does not advance")

	data, err := os.ReadFile(filepath.Join(dir, "hydrants/runs/run_id="+report.RunID+"/firehydrants.parquet"))
	require.NoError(t, err)
	rows, err := tables.Decode(data)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].IngestedAt.Equal(start), "rows are stamped with the run start time")
}
