package store

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"fx-data/internal/model"
)

// JSONCodec stores a series as one JSON array (indent).
// JSON has no NaN, so a missing price is written as null and read back as NaN.
type JSONCodec struct{}

type jsonBar struct {
	Timestamp  int64    `json:"timestamp"`
	Open       *float64 `json:"open"`
	High       *float64 `json:"high"`
	Low        *float64 `json:"low"`
	Close      *float64 `json:"close"`
	Volume     int64    `json:"volume"`
	Spread     *int64   `json:"spread,omitempty"`
	RealVolume *int64   `json:"real_volume,omitempty"`
}

func (JSONCodec) Extension() string { return "json" }

func (JSONCodec) Encode(w io.Writer, bars []model.Bar) error {
	rows := make([]jsonBar, len(bars))
	for i, b := range bars {
		for _, v := range [...]float64{b.Open, b.High, b.Low, b.Close} {
			if math.IsInf(v, 0) {
				return fmt.Errorf("bar %d (%s): infinite price has no json form", i, b.Time().Format("2006-01-02T15:04Z"))
			}
		}
		rows[i] = jsonBar{
			Timestamp: b.Timestamp,
			Open:      jsonPrice(b.Open), High: jsonPrice(b.High), Low: jsonPrice(b.Low), Close: jsonPrice(b.Close),
			Volume: b.Volume, Spread: b.Spread, RealVolume: b.RealVolume,
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

func (JSONCodec) Decode(r io.ReaderAt, size int64) ([]model.Bar, error) {
	if size == 0 {
		return nil, nil
	}
	var rows []jsonBar
	if err := json.NewDecoder(io.NewSectionReader(r, 0, size)).Decode(&rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	bars := make([]model.Bar, len(rows))
	for i, j := range rows {
		bars[i] = model.Bar{
			Timestamp: j.Timestamp,
			Open:      barPrice(j.Open), High: barPrice(j.High), Low: barPrice(j.Low), Close: barPrice(j.Close),
			Volume: j.Volume, Spread: j.Spread, RealVolume: j.RealVolume,
		}
	}
	return bars, nil
}

func jsonPrice(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func barPrice(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}
