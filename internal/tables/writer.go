package tables

import (
	"bytes"
	"fmt"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/coverline/hydrant-rating-etl/internal/hydrant"
)

// EncodeConfig controls parquet output generation.
type EncodeConfig struct {
	Compression string // "snappy" | "zstd" | "gzip" | "none"
}

// DefaultEncodeConfig returns sensible defaults.
func DefaultEncodeConfig() EncodeConfig {
	return EncodeConfig{Compression: "snappy"}
}

// Encode serializes the full record set into one parquet file in memory.
// An empty record set produces a valid, empty parquet file — an empty run
// still commits a readable artifact.
func Encode(records []hydrant.TransformedRecord, cfg EncodeConfig) ([]byte, error) {
	codec, err := codecFor(cfg.Compression)
	if err != nil {
		return nil, err
	}

	rows := make([]HydrantRow, len(records))
	for i, rec := range records {
		rows[i] = RowFromRecord(rec)
	}

	var buf bytes.Buffer
	w := parquet.NewGenericWriter[HydrantRow](&buf, parquet.Compression(codec))

	if len(rows) > 0 {
		if _, err := w.Write(rows); err != nil {
			return nil, fmt.Errorf("write parquet rows: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}

	return buf.Bytes(), nil
}

// Decode reads rows back from an encoded artifact. Used by tests and by
// downstream verification tooling.
func Decode(data []byte) ([]HydrantRow, error) {
	rows, err := parquet.Read[HydrantRow](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("read parquet: %w", err)
	}
	return rows, nil
}

func codecFor(name string) (compress.Codec, error) {
	switch name {
	case "", "snappy":
		return &parquet.Snappy, nil
	case "zstd":
		return &parquet.Zstd, nil
	case "gzip":
		return &parquet.Gzip, nil
	case "none", "uncompressed":
		return &parquet.Uncompressed, nil
	default:
		return nil, fmt.Errorf("unknown parquet compression: %s", name)
	}
}
