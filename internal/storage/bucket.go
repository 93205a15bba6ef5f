package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// driver
	_ "gocloud.dev/blob/gcsblob"  // gs:// driver
	_ "gocloud.dev/blob/s3blob"   // s3:// driver
)

// BucketStore writes run artifacts to an object store through gocloud blob.
// Object stores have no rename, so atomic publish is temp write, copy to
// the canonical key, then delete of the temp object.
type BucketStore struct {
	bucket    *blob.Bucket
	bucketURL string
	prefix    string
}

// NewBucketStore opens the bucket identified by a gocloud URL
// (gs://bucket, s3://bucket, file:///dir).
func NewBucketStore(ctx context.Context, bucketURL, prefix string) (*BucketStore, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucketURL, err)
	}
	return &BucketStore{
		bucket:    bucket,
		bucketURL: strings.TrimSuffix(bucketURL, "/"),
		prefix:    prefix,
	}, nil
}

// WriteArtifact commits parquet and manifest under the run key.
func (s *BucketStore) WriteArtifact(ctx context.Context, ref ArtifactRef, parquetData []byte, manifest *Manifest) error {
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

	parquetKey := ref.ParquetPath(s.prefix)
	manifestKey := ref.ManifestPath(s.prefix)

	tempParquet, err := s.writeTemp(ctx, parquetKey, parquetData)
	if err != nil {
		return err
	}
	tempManifest, err := s.writeTemp(ctx, manifestKey, manifestData)
	if err != nil {
		s.bucket.Delete(ctx, tempParquet)
		return err
	}
	tempKeys := []string{tempParquet, tempManifest}

	// Manifest first; the parquet object is the commit marker.
	if err := s.copyObject(ctx, tempManifest, manifestKey); err != nil {
		s.abort(ctx, tempKeys)
		return fmt.Errorf("finalize manifest: %w", err)
	}
	if err := s.copyObject(ctx, tempParquet, parquetKey); err != nil {
		s.bucket.Delete(ctx, manifestKey)
		s.abort(ctx, tempKeys)
		return fmt.Errorf("finalize parquet: %w", err)
	}

	s.abort(ctx, tempKeys)
	return nil
}

// WriteSnapshot archives the compressed raw snapshot under the run key.
func (s *BucketStore) WriteSnapshot(ctx context.Context, ref ArtifactRef, compressed []byte) error {
	key := ref.SnapshotPath(s.prefix)
	w, err := s.bucket.NewWriter(ctx, key, nil)
	if err != nil {
		return fmt.Errorf("create writer for %s: %w", key, err)
	}
	if _, err := w.Write(compressed); err != nil {
		w.Close()
		return fmt.Errorf("write snapshot to %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer for %s: %w", key, err)
	}
	return nil
}

// Exists reports whether the run's artifact is already committed.
func (s *BucketStore) Exists(ctx context.Context, ref ArtifactRef) (bool, error) {
	return s.bucket.Exists(ctx, ref.ParquetPath(s.prefix))
}

// URI returns the canonical URI for the given key.
func (s *BucketStore) URI(key string) string {
	return s.bucketURL + "/" + key
}

// Close releases the bucket connection.
func (s *BucketStore) Close() error {
	if s.bucket != nil {
		return s.bucket.Close()
	}
	return nil
}

func (s *BucketStore) writeTemp(ctx context.Context, finalKey string, data []byte) (string, error) {
	tempKey := finalKey + ".tmp." + uuid.New().String()

	w, err := s.bucket.NewWriter(ctx, tempKey, nil)
	if err != nil {
		return "", fmt.Errorf("create writer for %s: %w", tempKey, err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("write data to %s: %w", tempKey, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close writer for %s: %w", tempKey, err)
	}
	return tempKey, nil
}

func (s *BucketStore) copyObject(ctx context.Context, srcKey, dstKey string) error {
	r, err := s.bucket.NewReader(ctx, srcKey, nil)
	if err != nil {
		return fmt.Errorf("open source %s: %w", srcKey, err)
	}
	defer r.Close()

	w, err := s.bucket.NewWriter(ctx, dstKey, nil)
	if err != nil {
		return fmt.Errorf("create destination %s: %w", dstKey, err)
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("copy to %s: %w", dstKey, err)
	}
	return w.Close()
}

func (s *BucketStore) abort(ctx context.Context, tempKeys []string) {
	for _, key := range tempKeys {
		s.bucket.Delete(ctx, key) // best effort
	}
}

// Verify both backends satisfy the Store interface.
var (
	_ Store = (*LocalStore)(nil)
	_ Store = (*BucketStore)(nil)
)
