package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"fx-data/internal/model"
	"fx-data/internal/series"
)

// CSVCodec stores a series as CSV (header: timestamp,open,high,low,close,volume[,spread][,real_volume]).
// Optional columns are written only when the series carries them.
type CSVCodec struct{}

func (CSVCodec) Extension() string { return "csv" }

func (CSVCodec) Encode(w io.Writer, bars []model.Bar) error {
	cols, err := series.ColumnsOf(bars)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	header := []string{"timestamp", "open", "high", "low", "close", "volume"}
	if cols.Spread {
		header = append(header, "spread")
	}
	if cols.RealVolume {
		header = append(header, "real_volume")
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	row := make([]string, 0, len(header))
	for _, b := range bars {
		row = append(row[:0],
			strconv.FormatInt(b.Timestamp, 10),
			floatStr(b.Open),
			floatStr(b.High),
			floatStr(b.Low),
			floatStr(b.Close),
			strconv.FormatInt(b.Volume, 10),
		)
		if cols.Spread {
			row = append(row, strconv.FormatInt(*b.Spread, 10))
		}
		if cols.RealVolume {
			row = append(row, strconv.FormatInt(*b.RealVolume, 10))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (CSVCodec) Decode(r io.ReaderAt, size int64) ([]model.Bar, error) {
	cr := csv.NewReader(io.NewSectionReader(r, 0, size))
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[h] = i
	}
	for _, c := range []string{"timestamp", "open", "high", "low", "close", "volume"} {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("missing column %q", c)
		}
	}
	spreadCol, hasSpread := idx["spread"]
	realCol, hasReal := idx["real_volume"]

	var bars []model.Bar
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		var b model.Bar
		p := fieldParser{rec: rec}
		b.Timestamp = p.int(idx["timestamp"])
		b.Open = p.float(idx["open"])
		b.High = p.float(idx["high"])
		b.Low = p.float(idx["low"])
		b.Close = p.float(idx["close"])
		b.Volume = p.int(idx["volume"])
		if hasSpread {
			b.Spread = model.Int64(p.int(spreadCol))
		}
		if hasReal {
			b.RealVolume = model.Int64(p.int(realCol))
		}
		if p.err != nil {
			return nil, fmt.Errorf("line %d: %w", line, p.err)
		}
		bars = append(bars, b)
	}
	return bars, nil
}

// fieldParser keeps the first conversion error so a row is checked once.
type fieldParser struct {
	rec []string
	err error
}

func (p *fieldParser) int(i int) int64 {
	if p.err != nil {
		return 0
	}
	v, err := strconv.ParseInt(p.rec[i], 10, 64)
	p.err = err
	return v
}

func (p *fieldParser) float(i int) float64 {
	if p.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(p.rec[i], 64)
	p.err = err
	return v
}

func floatStr(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
