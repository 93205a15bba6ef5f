package storage

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// CompressSnapshot zstd-compresses a raw API response for the audit
// archive. Snapshots are text-heavy JSON and typically shrink 10-20x.
func CompressSnapshot(raw []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	defer enc.Close()

	return enc.EncodeAll(raw, nil), nil
}

// DecompressSnapshot restores an archived snapshot.
func DecompressSnapshot(compressed []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return raw, nil
}
