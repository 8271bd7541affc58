package store

import (
	"io"
	"strings"

	"fx-data/internal/model"
)

// Codec encodes a whole series to one file and back.
// The store picks one implementation per data dir; callers only see bars.
type Codec interface {
	Extension() string
	Encode(w io.Writer, bars []model.Bar) error
	Decode(r io.ReaderAt, size int64) ([]model.Bar, error)
}

// NewCodec creates implementation by format (parquet, csv, json).
// Returns nil if format not supported.
func NewCodec(format string) Codec {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "parquet":
		return ParquetCodec{}
	case "csv":
		return CSVCodec{}
	case "json":
		return JSONCodec{}
	default:
		return nil
	}
}

// NewCodecs resolves SAVE_FORMAT to a primary codec and an optional mirror.
// "both" keeps parquet as the primary and exports csv next to it.
func NewCodecs(format string) (primary, mirror Codec) {
	if strings.EqualFold(strings.TrimSpace(format), "both") {
		return ParquetCodec{}, CSVCodec{}
	}
	return NewCodec(format), nil
}
