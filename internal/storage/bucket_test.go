package storage

import (
	"context"
	"errors"
	"testing"
)

func TestBucketStore_WriteArtifact(t *testing.T) {
	ctx := context.Background()
	store, err := NewBucketStore(ctx, "file://"+t.TempDir(), "hydrants/")
	if err != nil {
		t.Fatalf("open bucket: %v", err)
	}
	defer store.Close()

	ref := ArtifactRef{RunID: "run-1"}
	if err := store.WriteArtifact(ctx, ref, []byte("parquet bytes"), testManifest("run-1", 2)); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	exists, err := store.Exists(ctx, ref)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !exists {
		t.Fatal("artifact should exist after commit")
	}
}

func TestBucketStore_RerunConflict(t *testing.T) {
	ctx := context.Background()
	store, err := NewBucketStore(ctx, "file://"+t.TempDir(), "")
	if err != nil {
		t.Fatalf("open bucket: %v", err)
	}
	defer store.Close()

	ref := ArtifactRef{RunID: "run-1"}
	if err := store.WriteArtifact(ctx, ref, []byte("original"), testManifest("run-1", 1)); err != nil {
		t.Fatalf("first write: %v", err)
	}

	err = store.WriteArtifact(ctx, ref, []byte("again"), testManifest("run-1", 1))
	if !errors.Is(err, ErrRunExists) {
		t.Fatalf("expected ErrRunExists, got %v", err)
	}
}

func TestBucketStore_SnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewBucketStore(ctx, "file://"+t.TempDir(), "hydrants/")
	if err != nil {
		t.Fatalf("open bucket: %v", err)
	}
	defer store.Close()

	compressed, err := CompressSnapshot([]byte(`[{"assetid": "H-1"}]`))
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if err := store.WriteSnapshot(ctx, ArtifactRef{RunID: "run-1"}, compressed); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
}
