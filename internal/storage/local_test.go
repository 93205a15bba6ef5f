package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testManifest(runID string, rows int64) *Manifest {
	return &Manifest{
		Run: RunInfo{
			RunID:      runID,
			StartedAt:  time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC),
			FinishedAt: time.Date(2026, 8, 1, 9, 1, 0, 0, time.UTC),
		},
		Counts: Counts{Ingested: rows, Accepted: rows, Written: rows},
		Table: TableInfo{
			File:          "firehydrants.parquet",
			Checksum:      "sha256:abc",
			RowCount:      rows,
			SchemaVersion: "1.0.0",
		},
		Producer:  ProducerInfo{Name: "hydrant-rating-etl", Version: "test"},
		CreatedAt: time.Date(2026, 8, 1, 9, 1, 0, 0, time.UTC),
	}
}

func TestLocalStore_WriteArtifact(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "hydrants/")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	ctx := context.Background()
	ref := ArtifactRef{RunID: "run-1"}
	payload := []byte("parquet bytes")

	if err := store.WriteArtifact(ctx, ref, payload, testManifest("run-1", 3)); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	exists, err := store.Exists(ctx, ref)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !exists {
		t.Fatal("artifact should exist after commit")
	}

	parquetPath := filepath.Join(dir, "hydrants/runs/run_id=run-1/firehydrants.parquet")
	got, err := os.ReadFile(parquetPath)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(got) != string(payload) {
		t.Error("artifact content mismatch")
	}

	manifestData, err := os.ReadFile(filepath.Join(dir, "hydrants/runs/run_id=run-1/_manifest.json"))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var m struct {
		Run struct {
			RunID string `json:"run_id"`
		} `json:"run"`
		Counts struct {
			Written int64 `json:"written"`
		} `json:"counts"`
	}
	if err := json.Unmarshal(manifestData, &m); err != nil {
		t.Fatalf("parse manifest: %v", err)
	}
	if m.Run.RunID != "run-1" || m.Counts.Written != 3 {
		t.Errorf("manifest content: %+v", m)
	}
}

func TestLocalStore_RerunConflict(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	ctx := context.Background()
	ref := ArtifactRef{RunID: "run-1"}

	if err := store.WriteArtifact(ctx, ref, []byte("original"), testManifest("run-1", 1)); err != nil {
		t.Fatalf("first write: %v", err)
	}

	err = store.WriteArtifact(ctx, ref, []byte("overwrite attempt"), testManifest("run-1", 9))
	if !errors.Is(err, ErrRunExists) {
		t.Fatalf("expected ErrRunExists, got %v", err)
	}

	// The committed artifact must be untouched.
	got, err := os.ReadFile(filepath.Join(dir, "runs/run_id=run-1/firehydrants.parquet"))
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(got) != "original" {
		t.Error("conflicting write must not touch the committed artifact")
	}
}

func TestLocalStore_NoTempFilesAfterCommit(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	ctx := context.Background()
	if err := store.WriteArtifact(ctx, ArtifactRef{RunID: "run-1"}, []byte("data"), testManifest("run-1", 1)); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	if err := store.WriteSnapshot(ctx, ArtifactRef{RunID: "run-1"}, []byte("snngz")); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.Contains(d.Name(), ".tmp.") {
			t.Errorf("temp file left behind: %s", path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
}

func TestLocalStore_WriteSnapshot(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "hydrants/")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	raw := []byte(`[{"assetid": "H-1"}]`)
	compressed, err := CompressSnapshot(raw)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}

	ref := ArtifactRef{RunID: "run-1"}
	if err := store.WriteSnapshot(context.Background(), ref, compressed); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "hydrants/runs/run_id=run-1/raw/firehydrants.json.zst"))
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	back, err := DecompressSnapshot(got)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if string(back) != string(raw) {
		t.Error("snapshot round trip mismatch")
	}
}

func TestLocalStore_URI(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "hydrants/")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ref := ArtifactRef{RunID: "run-1"}
	uri := store.URI(ref.ParquetPath("hydrants/"))
	want := "file://" + filepath.Join(dir, "hydrants/runs/run_id=run-1/firehydrants.parquet")
	if uri != want {
		t.Errorf("URI = %q, want %q", uri, want)
	}
}
