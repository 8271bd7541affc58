package model

import (
	"strings"
	"time"
)

// Bar represents one OHLCV minute bar.
// Shared by providers, the store codecs and the auditor (json, csv, parquet).
type Bar struct {
	Timestamp  int64   `json:"timestamp" parquet:"timestamp"` // Unix timestamp in milliseconds, UTC bucket open
	Open       float64 `json:"open" parquet:"open"`
	High       float64 `json:"high" parquet:"high"`
	Low        float64 `json:"low" parquet:"low"`
	Close      float64 `json:"close" parquet:"close"`
	Volume     int64   `json:"volume" parquet:"volume"`                                // Tick volume on FX terminals
	Spread     *int64  `json:"spread,omitempty" parquet:"spread,optional"`             // Points, when the source reports it
	RealVolume *int64  `json:"real_volume,omitempty" parquet:"real_volume,optional"` // Exchange volume, when the source reports it
}

// Time returns the bar open time in UTC.
func (b Bar) Time() time.Time {
	return time.UnixMilli(b.Timestamp).UTC()
}

// Columns is the set of optional columns a bar carries.
type Columns struct {
	Spread     bool
	RealVolume bool
}

// Columns reports which optional columns are present on b.
func (b Bar) Columns() Columns {
	return Columns{Spread: b.Spread != nil, RealVolume: b.RealVolume != nil}
}

// String lists column names, e.g. "timestamp,open,high,low,close,volume,spread".
func (c Columns) String() string {
	cols := []string{"timestamp", "open", "high", "low", "close", "volume"}
	if c.Spread {
		cols = append(cols, "spread")
	}
	if c.RealVolume {
		cols = append(cols, "real_volume")
	}
	return strings.Join(cols, ",")
}

// Int64 returns a pointer to v, for optional bar columns.
func Int64(v int64) *int64 { return &v }
