package store

import (
	"errors"
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"

	"fx-data/internal/model"
)

const readBatch = 8192

// ParquetCodec stores a series as one zstd-compressed Parquet file.
// spread and real_volume are optional columns; absent values read back as nil.
type ParquetCodec struct{}

func (ParquetCodec) Extension() string { return "parquet" }

func (ParquetCodec) Encode(w io.Writer, bars []model.Bar) error {
	pw := parquet.NewGenericWriter[model.Bar](w, parquet.Compression(&parquet.Zstd))
	if _, err := pw.Write(bars); err != nil {
		pw.Close()
		return fmt.Errorf("write rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}

func (ParquetCodec) Decode(r io.ReaderAt, size int64) ([]model.Bar, error) {
	// NewGenericReader panics on a bad footer; OpenFile reports it as an error.
	if _, err := parquet.OpenFile(r, size); err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	pr := parquet.NewGenericReader[model.Bar](io.NewSectionReader(r, 0, size))
	defer pr.Close()

	want := pr.NumRows()
	bars := make([]model.Bar, 0, want)
	buf := make([]model.Bar, readBatch)
	for {
		clear(buf) // optional columns decode into existing pointers
		n, err := pr.Read(buf)
		bars = append(bars, buf[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read rows: %w", err)
		}
		if n == 0 {
			break
		}
	}
	if int64(len(bars)) != want {
		return nil, fmt.Errorf("read %d rows, footer says %d", len(bars), want)
	}
	return bars, nil
}
