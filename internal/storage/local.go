package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// LocalStore writes run artifacts to the local filesystem. Atomicity comes
// from writing temp files and renaming, so a crash mid-write leaves only
// temp files, never a half-visible artifact.
type LocalStore struct {
	baseDir string
	prefix  string
}

// NewLocalStore creates a new local filesystem store.
func NewLocalStore(baseDir, prefix string) (*LocalStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create base directory %s: %w", baseDir, err)
	}
	return &LocalStore{baseDir: baseDir, prefix: prefix}, nil
}

// WriteArtifact commits parquet and manifest atomically under the run key.
func (s *LocalStore) WriteArtifact(ctx context.Context, ref ArtifactRef, parquetData []byte, manifest *Manifest) error {
	exists, err := s.Exists(ctx, ref)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("run %s: %w", ref.RunID, ErrRunExists)
	}

	manifestData, err := manifest.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	parquetPath := filepath.Join(s.baseDir, ref.ParquetPath(s.prefix))
	manifestPath := filepath.Join(s.baseDir, ref.ManifestPath(s.prefix))

	tempParquet, err := s.writeTemp(parquetPath, parquetData)
	if err != nil {
		return err
	}
	tempManifest, err := s.writeTemp(manifestPath, manifestData)
	if err != nil {
		os.Remove(tempParquet)
		return err
	}

	// Publish the manifest first: readers treat the parquet file as the
	// commit marker, so it must appear last.
	if err := os.Rename(tempManifest, manifestPath); err != nil {
		os.Remove(tempParquet)
		os.Remove(tempManifest)
		return fmt.Errorf("rename %s to %s: %w", tempManifest, manifestPath, err)
	}
	if err := os.Rename(tempParquet, parquetPath); err != nil {
		os.Remove(tempParquet)
		os.Remove(manifestPath)
		return fmt.Errorf("rename %s to %s: %w", tempParquet, parquetPath, err)
	}
	return nil
}

// WriteSnapshot archives the compressed raw snapshot under the run key.
func (s *LocalStore) WriteSnapshot(_ context.Context, ref ArtifactRef, compressed []byte) error {
	path := filepath.Join(s.baseDir, ref.SnapshotPath(s.prefix))
	temp, err := s.writeTemp(path, compressed)
	if err != nil {
		return err
	}
	if err := os.Rename(temp, path); err != nil {
		os.Remove(temp)
		return fmt.Errorf("rename %s to %s: %w", temp, path, err)
	}
	return nil
}

// Exists reports whether the run's artifact is already committed.
func (s *LocalStore) Exists(_ context.Context, ref ArtifactRef) (bool, error) {
	path := filepath.Join(s.baseDir, ref.ParquetPath(s.prefix))
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// URI returns the canonical URI for the given key.
func (s *LocalStore) URI(key string) string {
	return "file://" + filepath.Join(s.baseDir, key)
}

// Close is a no-op for local storage.
func (s *LocalStore) Close() error {
	return nil
}

// writeTemp writes data to a unique temp file next to the final path,
// creating the directory as needed, and returns the temp path.
func (s *LocalStore) writeTemp(finalPath string, data []byte) (string, error) {
	dir := filepath.Dir(finalPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create directory %s: %w", dir, err)
	}

	tempPath := finalPath + ".tmp." + uuid.New().String()
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return "", fmt.Errorf("write temp file %s: %w", tempPath, err)
	}
	return tempPath, nil
}
